package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/T1collo/agrofresh/models"
	"github.com/T1collo/agrofresh/repository"
)

// ResetTokenTTL is how long a password reset link stays valid.
const ResetTokenTTL = time.Hour

type ITokenService interface {
	GenerateTokenPair(userID, email, role string) (*TokenPair, error)
	ValidateToken(tokenStr, expectedType string) (jwt.MapClaims, error)
}

// RegisterInput is a sign-up request after binding.
type RegisterInput struct {
	Email           string
	Password        string
	ConfirmPassword string
	Name            string
	Phone           string
}

// Session is what a successful sign-in or refresh hands back.
type Session struct {
	*TokenPair
	User *models.User `json:"user"`
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*models.User, error)
	Login(ctx context.Context, email, password string) (*Session, error)
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
	Logout(ctx context.Context, userID uuid.UUID) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password, confirm string) error
}

type authServiceImpl struct {
	users     repository.UserRepository
	tokens    ITokenService
	passwords *PasswordValidator
	events    EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewAuthService(users repository.UserRepository, tokens ITokenService, events EventPublisher, logger *zap.Logger) AuthService {
	return &authServiceImpl{
		users:     users,
		tokens:    tokens,
		passwords: NewPasswordValidator(),
		events:    events,
		logger:    logger,
		now:       time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *authServiceImpl) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if err := s.passwords.ValidatePasswordPair(in.Password, in.ConfirmPassword); err != nil {
		return nil, invalid(err)
	}

	email := normalizeEmail(in.Email)
	_, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		return nil, ErrEmailTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, internal("failed to look up account", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, internal("failed to hash password", err)
	}

	user := &models.User{
		ID:       uuid.New(),
		Email:    email,
		Password: string(hashed),
		Name:     strings.TrimSpace(in.Name),
		Phone:    strings.TrimSpace(in.Phone),
		Role:     models.RoleCustomer,
		IsActive: true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, internal("Error creating user profile", err)
	}

	s.publish(ctx, EventUserRegistered, map[string]interface{}{
		"user_id": user.ID.String(),
		"email":   user.Email,
		"name":    user.Name,
	})
	return user, nil
}

func (s *authServiceImpl) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, internal("failed to look up account", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}
	return s.issue(ctx, user)
}

// Refresh rotates the refresh token: the presented one is revoked and a new
// pair is issued.
func (s *authServiceImpl) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := s.tokens.ValidateToken(refreshToken, TokenTypeRefresh)
	if err != nil {
		return nil, ErrInvalidToken
	}
	tokenID, _ := claims["jti"].(string)
	sub, _ := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if tokenID == "" || err != nil {
		return nil, ErrInvalidToken
	}

	stored, err := s.users.GetRefreshTokenByTokenID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, internal("failed to load refresh token", err)
	}
	if stored.Revoked || stored.UserID != userID || !s.now().Before(stored.ExpiresAt) {
		return nil, ErrInvalidToken
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, internal("failed to look up account", err)
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	if err := s.users.RevokeRefreshTokenByTokenID(ctx, tokenID); err != nil {
		return nil, internal("failed to revoke refresh token", err)
	}
	return s.issue(ctx, user)
}

func (s *authServiceImpl) Logout(ctx context.Context, userID uuid.UUID) error {
	if err := s.users.RevokeAllUserRefreshTokens(ctx, userID); err != nil {
		return internal("failed to revoke sessions", err)
	}
	return nil
}

// ForgotPassword never reports whether the email exists.
func (s *authServiceImpl) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Debug("password reset requested for unknown email")
			return nil
		}
		return internal("failed to look up account", err)
	}

	token, err := newResetToken()
	if err != nil {
		return internal("failed to generate reset token", err)
	}
	expires := s.now().Add(ResetTokenTTL)
	user.ResetToken = token
	user.ResetTokenExpiresAt = &expires
	if err := s.users.Update(ctx, user); err != nil {
		return internal("failed to store reset token", err)
	}

	s.publish(ctx, EventPasswordResetRequested, map[string]interface{}{
		"user_id":    user.ID.String(),
		"email":      user.Email,
		"token":      token,
		"expires_at": expires.UTC().Format(time.RFC3339),
	})
	return nil
}

func (s *authServiceImpl) ResetPassword(ctx context.Context, token, password, confirm string) error {
	if err := s.passwords.ValidatePasswordPair(password, confirm); err != nil {
		return invalid(err)
	}

	user, err := s.users.FindByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidResetToken
		}
		return internal("failed to look up reset token", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return internal("failed to hash password", err)
	}
	user.Password = string(hashed)
	user.ResetToken = ""
	user.ResetTokenExpiresAt = nil
	if err := s.users.Update(ctx, user); err != nil {
		return internal("failed to update password", err)
	}

	if err := s.users.RevokeAllUserRefreshTokens(ctx, user.ID); err != nil {
		s.logger.Warn("failed to revoke sessions after password reset", zap.String("user_id", user.ID.String()), zap.Error(err))
	}
	return nil
}

func (s *authServiceImpl) issue(ctx context.Context, user *models.User) (*Session, error) {
	pair, err := s.tokens.GenerateTokenPair(user.ID.String(), user.Email, string(user.Role))
	if err != nil {
		return nil, internal("failed to generate tokens", err)
	}
	err = s.users.CreateRefreshToken(ctx, &models.RefreshToken{
		TokenID:   pair.RefreshTokenID,
		UserID:    user.ID,
		ExpiresAt: pair.RefreshExpiresAt,
	})
	if err != nil {
		return nil, internal("failed to store refresh token", err)
	}
	return &Session{TokenPair: pair, User: user}, nil
}

// publish is best effort: a failed announcement never fails the request.
func (s *authServiceImpl) publish(ctx context.Context, eventType string, payload map[string]interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, eventType, payload); err != nil {
		s.logger.Warn("failed to publish event", zap.String("event_type", eventType), zap.Error(err))
	}
}

func newResetToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
