package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/T1collo/agrofresh/common/errors"
	"github.com/T1collo/agrofresh/common/logger"
)

// Context keys set by AuthMiddleware.
const (
	UserIDKey    = "user_id"
	EmailKey     = "email"
	RoleKey      = "role"
	ExpiresAtKey = "expires_at"
)

// TokenValidator is the part of services.TokenService the middleware needs.
type TokenValidator interface {
	ValidateToken(tokenStr, expectedType string) (jwt.MapClaims, error)
}

// AuthMiddleware accepts only access tokens sent as "Authorization: Bearer".
func AuthMiddleware(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			apperrors.Abort(c, apperrors.New(401, "Token is required", nil))
			return
		}
		if !strings.HasPrefix(header, "Bearer ") {
			apperrors.Abort(c, apperrors.New(401, "Invalid token format", nil))
			return
		}

		claims, err := tokens.ValidateToken(strings.TrimPrefix(header, "Bearer "), "access")
		if err != nil {
			logger.Debug(c, "access token rejected", zap.Error(err))
			apperrors.Abort(c, apperrors.ErrInvalidToken)
			return
		}
		sub, _ := claims["sub"].(string)
		userID, err := uuid.Parse(sub)
		if err != nil {
			apperrors.Abort(c, apperrors.ErrInvalidToken)
			return
		}

		c.Set(UserIDKey, userID)
		c.Set(EmailKey, claims["email"])
		c.Set(RoleKey, claims["role"])
		if exp, ok := claims["exp"].(float64); ok {
			c.Set(ExpiresAtKey, time.Unix(int64(exp), 0).UTC())
		}
		c.Next()
	}
}

// RequireRole must run after AuthMiddleware.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(RoleKey) != role {
			logger.Warn(c, "role check failed", zap.String("want", role), zap.String("have", c.GetString(RoleKey)))
			apperrors.Abort(c, apperrors.New(403, "Access denied", nil))
			return
		}
		c.Next()
	}
}

func GetUserID(c *gin.Context) (uuid.UUID, bool) {
	val, exists := c.Get(UserIDKey)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := val.(uuid.UUID)
	return id, ok && id != uuid.Nil
}
