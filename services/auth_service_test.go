package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	apperrors "github.com/T1collo/agrofresh/common/errors"
	"github.com/T1collo/agrofresh/models"
)

func newTestAuthService(t *testing.T) (AuthService, *MockUserRepository, *MockEventPublisher, *TokenService) {
	t.Helper()
	repo := new(MockUserRepository)
	events := new(MockEventPublisher)
	ts, err := NewTokenService("test-secret")
	require.NoError(t, err)
	return NewAuthService(repo, ts, events, zap.NewNop()), repo, events, ts
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		svc, repo, events, _ := newTestAuthService(t)
		repo.On("FindByEmail", ctx, "ama@agrofresh.test").Return(nil, gorm.ErrRecordNotFound).Once()
		repo.On("Create", ctx, mock.AnythingOfType("*models.User")).Return(nil).Once()
		events.On("Publish", ctx, EventUserRegistered, mock.Anything).Return(nil).Once()

		user, err := svc.Register(ctx, RegisterInput{
			Email:           " Ama@AgroFresh.test ",
			Password:        "FreshKale42",
			ConfirmPassword: "FreshKale42",
			Name:            "Ama",
			Phone:           "0241234567",
		})

		require.NoError(t, err)
		assert.Equal(t, "ama@agrofresh.test", user.Email)
		assert.Equal(t, models.RoleCustomer, user.Role)
		assert.True(t, user.IsActive)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("FreshKale42")))
		repo.AssertExpectations(t)
		events.AssertExpectations(t)
	})

	t.Run("Password mismatch is caught before any lookup", func(t *testing.T) {
		svc, repo, _, _ := newTestAuthService(t)

		_, err := svc.Register(ctx, RegisterInput{Email: "a@b.c", Password: "FreshKale42", ConfirmPassword: "FreshKale24"})

		assert.ErrorIs(t, err, ErrPasswordMismatch)
		repo.AssertNotCalled(t, "FindByEmail", mock.Anything, mock.Anything)
	})

	t.Run("Weak password", func(t *testing.T) {
		svc, _, _, _ := newTestAuthService(t)

		_, err := svc.Register(ctx, RegisterInput{Email: "a@b.c", Password: "short", ConfirmPassword: "short"})

		assert.ErrorIs(t, err, ErrPasswordTooShort)
		assert.Equal(t, 400, apperrors.As(err).Code)
	})

	t.Run("Email taken", func(t *testing.T) {
		svc, repo, _, _ := newTestAuthService(t)
		repo.On("FindByEmail", ctx, "ama@agrofresh.test").Return(&models.User{}, nil).Once()

		_, err := svc.Register(ctx, RegisterInput{Email: "ama@agrofresh.test", Password: "FreshKale42", ConfirmPassword: "FreshKale42"})

		assert.ErrorIs(t, err, ErrEmailTaken)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("Publish failure does not fail registration", func(t *testing.T) {
		svc, repo, events, _ := newTestAuthService(t)
		repo.On("FindByEmail", ctx, "kofi@agrofresh.test").Return(nil, gorm.ErrRecordNotFound).Once()
		repo.On("Create", ctx, mock.AnythingOfType("*models.User")).Return(nil).Once()
		events.On("Publish", ctx, EventUserRegistered, mock.Anything).Return(errors.New("sns down")).Once()

		_, err := svc.Register(ctx, RegisterInput{Email: "kofi@agrofresh.test", Password: "FreshKale42", ConfirmPassword: "FreshKale42"})
		assert.NoError(t, err)
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	user := &models.User{
		ID:       uuid.New(),
		Email:    "ama@agrofresh.test",
		Role:     models.RoleCustomer,
		IsActive: true,
	}

	t.Run("Success", func(t *testing.T) {
		svc, repo, _, ts := newTestAuthService(t)
		u := *user
		u.Password = hashed(t, "FreshKale42")
		repo.On("FindByEmail", ctx, u.Email).Return(&u, nil).Once()
		repo.On("CreateRefreshToken", ctx, mock.MatchedBy(func(rt *models.RefreshToken) bool {
			return rt.UserID == u.ID && rt.TokenID != ""
		})).Return(nil).Once()

		sess, err := svc.Login(ctx, u.Email, "FreshKale42")

		require.NoError(t, err)
		assert.Equal(t, u.ID, sess.User.ID)
		claims, err := ts.ValidateToken(sess.AccessToken, TokenTypeAccess)
		require.NoError(t, err)
		assert.Equal(t, u.ID.String(), claims["sub"])
		repo.AssertExpectations(t)
	})

	t.Run("User Not Found", func(t *testing.T) {
		svc, repo, _, _ := newTestAuthService(t)
		repo.On("FindByEmail", ctx, "nobody@agrofresh.test").Return(nil, gorm.ErrRecordNotFound).Once()

		_, err := svc.Login(ctx, "nobody@agrofresh.test", "FreshKale42")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("Incorrect Password", func(t *testing.T) {
		svc, repo, _, _ := newTestAuthService(t)
		u := *user
		u.Password = hashed(t, "FreshKale42")
		repo.On("FindByEmail", ctx, u.Email).Return(&u, nil).Once()

		_, err := svc.Login(ctx, u.Email, "wrong")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("Disabled account", func(t *testing.T) {
		svc, repo, _, _ := newTestAuthService(t)
		u := *user
		u.Password = hashed(t, "FreshKale42")
		u.IsActive = false
		repo.On("FindByEmail", ctx, u.Email).Return(&u, nil).Once()

		_, err := svc.Login(ctx, u.Email, "FreshKale42")
		assert.ErrorIs(t, err, ErrAccountDisabled)
	})
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	user := &models.User{ID: uuid.New(), Email: "ama@agrofresh.test", Role: models.RoleCustomer, IsActive: true}

	t.Run("Rotates token", func(t *testing.T) {
		svc, repo, _, ts := newTestAuthService(t)
		pair, err := ts.GenerateTokenPair(user.ID.String(), user.Email, string(user.Role))
		require.NoError(t, err)

		repo.On("GetRefreshTokenByTokenID", ctx, pair.RefreshTokenID).Return(&models.RefreshToken{
			TokenID: pair.RefreshTokenID, UserID: user.ID, ExpiresAt: time.Now().Add(time.Hour),
		}, nil).Once()
		repo.On("FindByID", ctx, user.ID).Return(user, nil).Once()
		repo.On("RevokeRefreshTokenByTokenID", ctx, pair.RefreshTokenID).Return(nil).Once()
		repo.On("CreateRefreshToken", ctx, mock.AnythingOfType("*models.RefreshToken")).Return(nil).Once()

		sess, err := svc.Refresh(ctx, pair.RefreshToken)

		require.NoError(t, err)
		assert.NotEqual(t, pair.RefreshTokenID, sess.RefreshTokenID)
		repo.AssertExpectations(t)
	})

	t.Run("Revoked token", func(t *testing.T) {
		svc, repo, _, ts := newTestAuthService(t)
		pair, _ := ts.GenerateTokenPair(user.ID.String(), user.Email, string(user.Role))
		repo.On("GetRefreshTokenByTokenID", ctx, pair.RefreshTokenID).Return(&models.RefreshToken{
			TokenID: pair.RefreshTokenID, UserID: user.ID, Revoked: true, ExpiresAt: time.Now().Add(time.Hour),
		}, nil).Once()

		_, err := svc.Refresh(ctx, pair.RefreshToken)
		assert.ErrorIs(t, err, ErrInvalidToken)
		repo.AssertNotCalled(t, "CreateRefreshToken", mock.Anything, mock.Anything)
	})

	t.Run("Access token is refused", func(t *testing.T) {
		svc, _, _, ts := newTestAuthService(t)
		pair, _ := ts.GenerateTokenPair(user.ID.String(), user.Email, string(user.Role))

		_, err := svc.Refresh(ctx, pair.AccessToken)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestForgotPassword(t *testing.T) {
	ctx := context.Background()

	t.Run("Unknown email is silent", func(t *testing.T) {
		svc, repo, events, _ := newTestAuthService(t)
		repo.On("FindByEmail", ctx, "nobody@agrofresh.test").Return(nil, gorm.ErrRecordNotFound).Once()

		assert.NoError(t, svc.ForgotPassword(ctx, "nobody@agrofresh.test"))
		events.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Issues token and publishes", func(t *testing.T) {
		svc, repo, events, _ := newTestAuthService(t)
		user := &models.User{ID: uuid.New(), Email: "ama@agrofresh.test"}
		repo.On("FindByEmail", ctx, user.Email).Return(user, nil).Once()
		repo.On("Update", ctx, user).Return(nil).Once()
		events.On("Publish", ctx, EventPasswordResetRequested, mock.MatchedBy(func(p map[string]interface{}) bool {
			return p["token"] == user.ResetToken && p["user_id"] == user.ID.String()
		})).Return(nil).Once()

		require.NoError(t, svc.ForgotPassword(ctx, user.Email))

		assert.Len(t, user.ResetToken, 64)
		require.NotNil(t, user.ResetTokenExpiresAt)
		assert.WithinDuration(t, time.Now().Add(ResetTokenTTL), *user.ResetTokenExpiresAt, 5*time.Second)
		events.AssertExpectations(t)
	})
}

func TestResetPassword(t *testing.T) {
	ctx := context.Background()

	t.Run("Mismatch is caught before any lookup", func(t *testing.T) {
		svc, repo, _, _ := newTestAuthService(t)

		err := svc.ResetPassword(ctx, "tok", "FreshKale42", "FreshKale41")
		assert.ErrorIs(t, err, ErrPasswordMismatch)
		repo.AssertNotCalled(t, "FindByResetToken", mock.Anything, mock.Anything)
	})

	t.Run("Unknown token", func(t *testing.T) {
		svc, repo, _, _ := newTestAuthService(t)
		repo.On("FindByResetToken", ctx, "tok").Return(nil, gorm.ErrRecordNotFound).Once()

		err := svc.ResetPassword(ctx, "tok", "FreshKale42", "FreshKale42")
		assert.ErrorIs(t, err, ErrInvalidResetToken)
	})

	t.Run("Success", func(t *testing.T) {
		svc, repo, _, _ := newTestAuthService(t)
		exp := time.Now().Add(time.Minute)
		user := &models.User{ID: uuid.New(), ResetToken: "tok", ResetTokenExpiresAt: &exp}
		repo.On("FindByResetToken", ctx, "tok").Return(user, nil).Once()
		repo.On("Update", ctx, user).Return(nil).Once()
		repo.On("RevokeAllUserRefreshTokens", ctx, user.ID).Return(nil).Once()

		require.NoError(t, svc.ResetPassword(ctx, "tok", "FreshKale42", "FreshKale42"))

		assert.Empty(t, user.ResetToken)
		assert.Nil(t, user.ResetTokenExpiresAt)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("FreshKale42")))
		repo.AssertExpectations(t)
	})
}
