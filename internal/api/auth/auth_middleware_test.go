package auth

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commercekit/catalog-api/internal/api"
)

func TestAuthenticateMissingHeader(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mw := Authenticate(logger, &testConfig().JWT)

	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	rr := httptest.NewRecorder()
	mw(next).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.False(t, called)
}

func TestAuthenticateMalformedHeader(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mw := Authenticate(logger, &testConfig().JWT)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	req.Header.Set("Authorization", "Token abcdef")
	rr := httptest.NewRecorder()
	mw(next).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuthenticatePopulatesContext(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := new(MockAuthRepo)
	svc := newTestService(repo)
	user := testUser(t, "middleware pass1")
	user.Role = api.RoleAdmin
	user.Derive()

	access, err := svc.generateAccessToken(user)
	require.NoError(t, err)

	mw := Authenticate(logger, &testConfig().JWT)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := UserIDFromContext(r.Context())
		require.True(t, ok)
		assert.Equal(t, user.ID, id)

		role, ok := RoleFromContext(r.Context())
		require.True(t, ok)
		assert.Equal(t, api.RoleAdmin, role)

		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	rr := httptest.NewRecorder()
	mw(next).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestAuthenticateRejectsExpiredToken(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := new(MockAuthRepo)

	cfg := testConfig()
	cfg.JWT.AccessTokenTTL = -time.Minute
	svc := NewAuthService(repo, cfg, logger)
	user := testUser(t, "expired pass 12")

	access, err := svc.generateAccessToken(user)
	require.NoError(t, err)

	mw := Authenticate(logger, &testConfig().JWT)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run for an expired token")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	rr := httptest.NewRecorder()
	mw(next).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRequireRoleDeniesOutsiders(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := new(MockAuthRepo)
	svc := newTestService(repo)
	user := testUser(t, "plain user pass1")

	access, err := svc.generateAccessToken(user)
	require.NoError(t, err)

	handler := Authenticate(logger, &testConfig().JWT)(
		RequireRole(api.RoleAdmin, api.RoleModerator)(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler must not run for role user")
			})))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/users", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRequireRoleAllowsListedRole(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := new(MockAuthRepo)
	svc := newTestService(repo)
	user := testUser(t, "moderator pass1")
	user.Role = api.RoleModerator
	user.Derive()

	access, err := svc.generateAccessToken(user)
	require.NoError(t, err)

	handler := Authenticate(logger, &testConfig().JWT)(
		RequireRole(api.RoleAdmin, api.RoleModerator)(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
}
