package auth

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/commercekit/catalog-api/config"
	"github.com/commercekit/catalog-api/internal/api"
)

type MockAuthRepo struct {
	mock.Mock
}

func (m *MockAuthRepo) GetUserByEmail(ctx context.Context, email string) (*api.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.User), args.Error(1)
}

func (m *MockAuthRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (*api.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.User), args.Error(1)
}

func (m *MockAuthRepo) CreateUser(ctx context.Context, params CreateUserParams) (*api.User, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.User), args.Error(1)
}

func (m *MockAuthRepo) StoreRefreshToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	args := m.Called(ctx, userID, token, expiresAt)
	return args.Error(0)
}

func (m *MockAuthRepo) GetRefreshToken(ctx context.Context, token string) (*RefreshToken, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*RefreshToken), args.Error(1)
}

func (m *MockAuthRepo) InvalidateRefreshToken(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockAuthRepo) InvalidateAllUserRefreshTokens(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockAuthRepo) UpdatePassword(ctx context.Context, userID uuid.UUID, newHashedPassword string) error {
	args := m.Called(ctx, userID, newHashedPassword)
	return args.Error(0)
}

func (m *MockAuthRepo) UpdateLastLogin(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.JWT = config.JWTConfig{
		SecretKey:       "test-secret-key-for-unit-tests",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		Issuer:          "catalog-api",
		Audience:        "catalog-api-clients",
	}
	return cfg
}

func testUser(t *testing.T, password string) *api.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	u := &api.User{
		ID:           uuid.New(),
		Username:     "jdoe",
		Email:        "jdoe@example.com",
		FirstName:    "Jane",
		LastName:     "Doe",
		Role:         api.RoleUser,
		Status:       api.StatusActive,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	u.Derive()
	return u
}

func newTestService(repo AuthRepo) *AuthServiceImpl {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAuthService(repo, testConfig(), logger)
}

func TestLoginSuccess(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAuthRepo)
	svc := newTestService(repo)
	user := testUser(t, "correct horse battery")

	repo.On("GetUserByEmail", ctx, user.Email).Return(user, nil)
	repo.On("StoreRefreshToken", ctx, user.ID, mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).Return(nil)
	repo.On("UpdateLastLogin", ctx, user.ID).Return(nil)

	got, access, refresh, err := svc.Login(ctx, user.Email, "correct horse battery")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.NotEmpty(t, access)
	assert.NotEmpty(t, refresh)
	repo.AssertExpectations(t)
}

func TestLoginUnknownEmail(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAuthRepo)
	svc := newTestService(repo)

	repo.On("GetUserByEmail", ctx, "nobody@example.com").Return(nil, api.ErrNotFound)

	_, _, _, err := svc.Login(ctx, "nobody@example.com", "whatever")
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrUnauthenticated)
	repo.AssertNotCalled(t, "StoreRefreshToken", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLoginWrongPassword(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAuthRepo)
	svc := newTestService(repo)
	user := testUser(t, "the real password")

	repo.On("GetUserByEmail", ctx, user.Email).Return(user, nil)

	_, _, _, err := svc.Login(ctx, user.Email, "not the password")
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrUnauthenticated)
	repo.AssertNotCalled(t, "UpdateLastLogin", mock.Anything, mock.Anything)
}

func TestLoginDeactivatedAccount(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAuthRepo)
	svc := newTestService(repo)
	user := testUser(t, "valid password 1")
	user.Status = api.StatusInactive
	user.Derive()

	repo.On("GetUserByEmail", ctx, user.Email).Return(user, nil)

	_, _, _, err := svc.Login(ctx, user.Email, "valid password 1")
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrUnauthenticated)
	repo.AssertNotCalled(t, "StoreRefreshToken", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRegisterForcesUserRole(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAuthRepo)
	svc := newTestService(repo)
	created := testUser(t, "some password 42")

	repo.On("CreateUser", ctx, mock.MatchedBy(func(p CreateUserParams) bool {
		return p.Role == api.RoleUser && p.Status == api.StatusActive && p.PasswordHash != "some password 42"
	})).Return(created, nil)
	repo.On("StoreRefreshToken", ctx, created.ID, mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).Return(nil)

	user, access, refresh, err := svc.Register(ctx, RegisterRequest{
		Username:        "jdoe",
		Email:           "jdoe@example.com",
		FirstName:       "Jane",
		LastName:        "Doe",
		Password:        "some password 42",
		PasswordConfirm: "some password 42",
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)
	assert.NotEmpty(t, access)
	assert.NotEmpty(t, refresh)
	repo.AssertExpectations(t)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAuthRepo)
	svc := newTestService(repo)

	repo.On("CreateUser", ctx, mock.Anything).Return(nil, api.ErrConflict)

	_, _, _, err := svc.Register(ctx, RegisterRequest{
		Username:        "jdoe",
		Email:           "taken@example.com",
		Password:        "some password 42",
		PasswordConfirm: "some password 42",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrConflict)
	repo.AssertNotCalled(t, "StoreRefreshToken", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAuthRepo)
	svc := newTestService(repo)
	user := testUser(t, "round trip pass1")
	user.Role = api.RoleModerator
	user.Derive()

	repo.On("GetUserByEmail", ctx, user.Email).Return(user, nil)
	repo.On("StoreRefreshToken", ctx, user.ID, mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).Return(nil)
	repo.On("UpdateLastLogin", ctx, user.ID).Return(nil)

	_, access, _, err := svc.Login(ctx, user.Email, "round trip pass1")
	require.NoError(t, err)

	claims, err := ParseAccessToken(access, &testConfig().JWT)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.UserID)
	assert.Equal(t, user.Email, claims.Email)
	assert.Equal(t, api.RoleModerator, claims.Role)
	assert.False(t, claims.IsAdmin)
}

func TestParseAccessTokenWrongSecret(t *testing.T) {
	repo := new(MockAuthRepo)
	svc := newTestService(repo)
	user := testUser(t, "irrelevant pass1")

	access, err := svc.generateAccessToken(user)
	require.NoError(t, err)

	badCfg := testConfig().JWT
	badCfg.SecretKey = "a-different-secret"
	_, err = ParseAccessToken(access, &badCfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrUnauthenticated)
}

func TestRefreshWithRevokedToken(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAuthRepo)
	svc := newTestService(repo)

	revokedAt := time.Now().Add(-time.Hour)
	repo.On("GetRefreshToken", ctx, "revoked-token").Return(&RefreshToken{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		Token:     "revoked-token",
		ExpiresAt: time.Now().Add(24 * time.Hour),
		RevokedAt: &revokedAt,
	}, nil)

	_, err := svc.RefreshAccessToken(ctx, "revoked-token")
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrTokenRevoked)
	repo.AssertNotCalled(t, "GetUserByID", mock.Anything, mock.Anything)
}

func TestRefreshWithExpiredToken(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAuthRepo)
	svc := newTestService(repo)

	repo.On("GetRefreshToken", ctx, "expired-token").Return(&RefreshToken{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		Token:     "expired-token",
		ExpiresAt: time.Now().Add(-time.Minute),
	}, nil)

	_, err := svc.RefreshAccessToken(ctx, "expired-token")
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrTokenExpired)
	assert.NotErrorIs(t, err, api.ErrTokenRevoked)
}

func TestRefreshSuccess(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAuthRepo)
	svc := newTestService(repo)
	user := testUser(t, "refresh me pass1")

	repo.On("GetRefreshToken", ctx, "live-token").Return(&RefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		Token:     "live-token",
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}, nil)
	repo.On("GetUserByID", ctx, user.ID).Return(user, nil)

	access, err := svc.RefreshAccessToken(ctx, "live-token")
	require.NoError(t, err)

	claims, err := ParseAccessToken(access, &testConfig().JWT)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.UserID)
}

func TestRefreshRejectsDeactivatedUser(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAuthRepo)
	svc := newTestService(repo)
	user := testUser(t, "deactivated pass1")
	user.Status = api.StatusInactive
	user.Derive()

	repo.On("GetRefreshToken", ctx, "live-token").Return(&RefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		Token:     "live-token",
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}, nil)
	repo.On("GetUserByID", ctx, user.ID).Return(user, nil)

	_, err := svc.RefreshAccessToken(ctx, "live-token")
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrUnauthenticated)
}

func TestChangePasswordWrongOldPassword(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAuthRepo)
	svc := newTestService(repo)
	user := testUser(t, "the old password")

	repo.On("GetUserByID", ctx, user.ID).Return(user, nil)

	err := svc.ChangePassword(ctx, user.ID, "wrong old password", "the new password 1")
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrValidation)
	repo.AssertNotCalled(t, "UpdatePassword", mock.Anything, mock.Anything, mock.Anything)
}

func TestChangePasswordRevokesSessions(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAuthRepo)
	svc := newTestService(repo)
	user := testUser(t, "the old password")

	repo.On("GetUserByID", ctx, user.ID).Return(user, nil)
	repo.On("UpdatePassword", ctx, user.ID, mock.MatchedBy(func(hash string) bool {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte("the new password 1")) == nil
	})).Return(nil)
	repo.On("InvalidateAllUserRefreshTokens", ctx, user.ID).Return(nil)

	err := svc.ChangePassword(ctx, user.ID, "the old password", "the new password 1")
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestLogoutDelegatesToDenylist(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAuthRepo)
	svc := newTestService(repo)

	repo.On("InvalidateRefreshToken", ctx, "some-token").Return(nil)

	require.NoError(t, svc.Logout(ctx, "some-token"))
	repo.AssertExpectations(t)
}

func TestEnsureAdminCreatesAccountWhenAbsent(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAuthRepo)
	svc := newTestService(repo)
	created := testUser(t, "bootstrap password 1")
	created.Role = api.RoleAdmin

	repo.On("GetUserByEmail", ctx, "ops@example.com").Return(nil, api.ErrNotFound)
	repo.On("CreateUser", ctx, mock.MatchedBy(func(p CreateUserParams) bool {
		return p.Role == api.RoleAdmin &&
			p.Status == api.StatusActive &&
			p.Username == "ops" &&
			p.Email == "ops@example.com" &&
			bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte("bootstrap password 1")) == nil
	})).Return(created, nil)

	err := svc.EnsureAdmin(ctx, "ops@example.com", "bootstrap password 1")
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestEnsureAdminSkipsExistingAccount(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAuthRepo)
	svc := newTestService(repo)
	existing := testUser(t, "whatever password")

	repo.On("GetUserByEmail", ctx, existing.Email).Return(existing, nil)

	err := svc.EnsureAdmin(ctx, existing.Email, "bootstrap password 1")
	require.NoError(t, err)
	repo.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
}

func TestEnsureAdminRejectsShortPassword(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAuthRepo)
	svc := newTestService(repo)

	err := svc.EnsureAdmin(ctx, "ops@example.com", "short")
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrValidation)
	repo.AssertNotCalled(t, "GetUserByEmail", mock.Anything, mock.Anything)
}
