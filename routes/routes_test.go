package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/T1collo/agrofresh/common/errors"
	"github.com/T1collo/agrofresh/controllers"
	"github.com/T1collo/agrofresh/services"
)

func setupRouter(t *testing.T) (*gin.Engine, *services.TokenService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	tokens, err := services.NewTokenService("routes-secret")
	require.NoError(t, err)

	r := gin.New()
	r.Use(apperrors.ErrorMiddleware())
	RegisterRoutes(r, Controllers{
		Auth:    controllers.NewAuthController(nil, zap.NewNop()),
		Profile: controllers.NewProfileController(nil),
		Product: controllers.NewProductController(nil, controllers.NewMemoryProductCache(0, zap.NewNop()), nil, zap.NewNop()),
		Cart:    controllers.NewCartController(nil),
	}, tokens, nil)
	return r, tokens
}

func bearer(t *testing.T, tokens *services.TokenService, role string) string {
	t.Helper()
	pair, err := tokens.GenerateTokenPair(uuid.NewString(), "ama@agrofresh.test", role)
	require.NoError(t, err)
	return "Bearer " + pair.AccessToken
}

func TestProtectedGroupsRequireToken(t *testing.T) {
	r, _ := setupRouter(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/profile"},
		{http.MethodPut, "/api/profile/location"},
		{http.MethodGet, "/api/cart"},
		{http.MethodPost, "/api/cart/checkout"},
		{http.MethodPost, "/api/auth/logout"},
		{http.MethodGet, "/api/auth/session"},
		{http.MethodGet, "/api/admin/ping"},
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", tc.method, tc.path)
	}
}

func TestAdminRoleGate(t *testing.T) {
	r, tokens := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/ping", nil)
	req.Header.Set("Authorization", bearer(t, tokens, "CUSTOMER"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/admin/ping", nil)
	req.Header.Set("Authorization", bearer(t, tokens, "ADMIN"))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pong")
}

func TestSessionRouteEchoesClaims(t *testing.T) {
	r, tokens := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.Header.Set("Authorization", bearer(t, tokens, "CUSTOMER"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"email":"ama@agrofresh.test"`)
	assert.Contains(t, w.Body.String(), `"expires_at"`)
}
