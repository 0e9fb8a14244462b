package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/T1collo/agrofresh/common/errors"
	"github.com/T1collo/agrofresh/middleware"
	"github.com/T1collo/agrofresh/services"
)

type AuthController struct {
	auth   services.AuthService
	logger *zap.Logger
}

func NewAuthController(auth services.AuthService, logger *zap.Logger) *AuthController {
	return &AuthController{auth: auth, logger: logger}
}

// Register handles POST /api/auth/register
func (ac *AuthController) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Abort(c, invalidRequest(err))
		return
	}

	user, err := ac.auth.Register(c.Request.Context(), services.RegisterInput{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Name:            req.Name,
		Phone:           req.Phone,
	})
	if err != nil {
		apperrors.Abort(c, err)
		return
	}

	ac.logger.Info("user registered", zap.String("user_id", user.ID.String()))
	c.JSON(http.StatusCreated, gin.H{"user": gin.H{
		"id":    user.ID,
		"email": user.Email,
		"name":  user.Name,
		"role":  user.Role,
	}})
}

// Login handles POST /api/auth/login
func (ac *AuthController) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Abort(c, invalidRequest(err))
		return
	}

	session, err := ac.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// Refresh handles POST /api/auth/refresh
func (ac *AuthController) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Abort(c, invalidRequest(err))
		return
	}

	session, err := ac.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// Logout handles POST /api/auth/logout. Every refresh token of the user is
// revoked; outstanding access tokens lapse on their own.
func (ac *AuthController) Logout(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		apperrors.Abort(c, apperrors.ErrUnauthorized)
		return
	}
	if err := ac.auth.Logout(c.Request.Context(), userID); err != nil {
		apperrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Signed out"})
}

// Session handles GET /api/auth/session
func (ac *AuthController) Session(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		apperrors.Abort(c, apperrors.ErrUnauthorized)
		return
	}
	resp := gin.H{
		"user_id": userID,
		"email":   c.GetString(middleware.EmailKey),
		"role":    c.GetString(middleware.RoleKey),
	}
	if exp, ok := c.Get(middleware.ExpiresAtKey); ok {
		resp["expires_at"] = exp
	}
	c.JSON(http.StatusOK, resp)
}

// ForgotPassword handles POST /api/auth/forgot-password. The answer is the
// same whether or not the email is registered.
func (ac *AuthController) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Abort(c, invalidRequest(err))
		return
	}
	if err := ac.auth.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		apperrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "If an account exists for that email, a reset link has been sent"})
}

// ResetPassword handles POST /api/auth/reset-password
func (ac *AuthController) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Abort(c, invalidRequest(err))
		return
	}
	if err := ac.auth.ResetPassword(c.Request.Context(), req.Token, req.Password, req.ConfirmPassword); err != nil {
		apperrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}
