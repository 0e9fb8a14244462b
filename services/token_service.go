package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const (
	AccessTokenTTL  = 15 * time.Minute
	RefreshTokenTTL = 7 * 24 * time.Hour

	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// TokenPair holds the generated access and refresh tokens. ExpiresAt is the
// access token expiry, which is what clients treat as the session expiry.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshTokenID   string    `json:"-"`
	RefreshExpiresAt time.Time `json:"-"`
}

// TokenService is responsible for creating and validating JWTs.
type TokenService struct {
	secretKey []byte
	now       func() time.Time
}

func NewTokenService(secret string) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	return &TokenService{secretKey: []byte(secret), now: time.Now}, nil
}

// GenerateTokenPair creates a new access and refresh token pair. Only the
// refresh token carries a jti.
func (s *TokenService) GenerateTokenPair(userID, email, role string) (*TokenPair, error) {
	now := s.now()
	accessExp := now.Add(AccessTokenTTL)
	accessToken, err := s.generateToken(userID, email, role, TokenTypeAccess, now, accessExp, "")
	if err != nil {
		return nil, err
	}

	tokenID := uuid.NewString()
	refreshExp := now.Add(RefreshTokenTTL)
	refreshToken, err := s.generateToken(userID, email, role, TokenTypeRefresh, now, refreshExp, tokenID)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		ExpiresAt:        accessExp,
		RefreshTokenID:   tokenID,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// ValidateToken parses tokenStr and checks its typ claim when expectedType
// is not empty.
func (s *TokenService) ValidateToken(tokenStr, expectedType string) (jwt.MapClaims, error) {
	parser := jwt.Parser{}
	claims := jwt.MapClaims{}
	token, err := parser.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return s.secretKey, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid or expired token")
	}

	if expectedType != "" {
		if typ, ok := claims["typ"].(string); !ok || typ != expectedType {
			return nil, fmt.Errorf("invalid token type")
		}
	}
	return claims, nil
}

func (s *TokenService) generateToken(userID, email, role, tokenType string, issued, expires time.Time, tokenID string) (string, error) {
	claims := jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"role":  role,
		"typ":   tokenType,
		"exp":   expires.Unix(),
		"iat":   issued.Unix(),
	}
	if tokenID != "" {
		claims["jti"] = tokenID
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secretKey)
}
