package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/commercekit/catalog-api/app/observability/metrics"
	"github.com/commercekit/catalog-api/config"
	"github.com/commercekit/catalog-api/internal/api"
)

var _ AuthService = (*AuthServiceImpl)(nil)

// AuthService is the token issuer plus the credential-backed auth flows.
type AuthService interface {
	// Register creates a new identity (role forced to "user") and issues the
	// initial token pair.
	Register(ctx context.Context, req RegisterRequest) (*api.User, string, string, error)

	// Login checks credentials and issues an access/refresh token pair.
	Login(ctx context.Context, email, password string) (*api.User, string, string, error)

	// RefreshAccessToken mints a new access token from a live refresh token.
	RefreshAccessToken(ctx context.Context, refreshToken string) (string, error)

	// Logout revokes the supplied refresh token (durable denylist).
	Logout(ctx context.Context, refreshToken string) error

	// ChangePassword verifies the old password, stores the new hash and
	// revokes every outstanding refresh token for the user.
	ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error

	GetUserByID(ctx context.Context, userID uuid.UUID) (*api.User, error)

	// EnsureAdmin seeds an admin account at startup when no user holds the
	// given email. Self-service registration never assigns the admin role and
	// user creation is admin-only, so a fresh deployment needs this to get
	// its first admin.
	EnsureAdmin(ctx context.Context, email, password string) error
}

type AuthServiceImpl struct {
	logger *slog.Logger
	repo   AuthRepo
	cfg    *config.Config
}

func NewAuthService(repo AuthRepo, cfg *config.Config, logger *slog.Logger) *AuthServiceImpl {
	return &AuthServiceImpl{
		logger: logger,
		repo:   repo,
		cfg:    cfg,
	}
}

// generateAccessToken mints the short-lived JWT bearing the identity claims.
func (s *AuthServiceImpl) generateAccessToken(user *api.User) (string, error) {
	now := time.Now()
	claims := api.Claims{
		UserID:   user.ID.String(),
		Username: user.Username,
		Email:    user.Email,
		Role:     user.Role,
		IsAdmin:  user.Role == api.RoleAdmin,
		FullName: user.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    s.cfg.JWT.Issuer,
			Audience:  jwt.ClaimStrings{s.cfg.JWT.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWT.AccessTokenTTL)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWT.SecretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// issueTokenPair mints an access token and persists a fresh refresh token.
func (s *AuthServiceImpl) issueTokenPair(ctx context.Context, user *api.User) (string, string, error) {
	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return "", "", err
	}

	refreshToken := uuid.NewString()
	expiresAt := time.Now().Add(s.cfg.JWT.RefreshTokenTTL)
	if err := s.repo.StoreRefreshToken(ctx, user.ID, refreshToken, expiresAt); err != nil {
		return "", "", fmt.Errorf("failed to store refresh token: %w", err)
	}

	return accessToken, refreshToken, nil
}

func (s *AuthServiceImpl) Register(ctx context.Context, req RegisterRequest) (*api.User, string, string, error) {
	l := s.logger.With(slog.String("method", "Register"), slog.String("email", req.Email))
	metrics.Get().RegisterRequestsTotal.Add(ctx, 1)

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.repo.CreateUser(ctx, CreateUserParams{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		// Self-service registration never assigns elevated roles.
		Role:         api.RoleUser,
		Status:       api.StatusActive,
		PasswordHash: string(hashed),
	})
	if err != nil {
		l.WarnContext(ctx, "Registration failed", slog.Any("error", err))
		return nil, "", "", err
	}

	accessToken, refreshToken, err := s.issueTokenPair(ctx, user)
	if err != nil {
		l.ErrorContext(ctx, "Failed to issue tokens after registration", slog.Any("error", err))
		return nil, "", "", err
	}

	l.InfoContext(ctx, "User registered", slog.String("userID", user.ID.String()))
	return user, accessToken, refreshToken, nil
}

func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (*api.User, string, string, error) {
	l := s.logger.With(slog.String("method", "Login"), slog.String("email", email))
	metrics.Get().LoginRequestsTotal.Add(ctx, 1)

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		metrics.Get().AuthFailuresTotal.Add(ctx, 1)
		if errors.Is(err, api.ErrNotFound) {
			return nil, "", "", fmt.Errorf("invalid credentials: %w", api.ErrUnauthenticated)
		}
		return nil, "", "", fmt.Errorf("login lookup failed: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		metrics.Get().AuthFailuresTotal.Add(ctx, 1)
		l.WarnContext(ctx, "Password mismatch on login")
		return nil, "", "", fmt.Errorf("invalid credentials: %w", api.ErrUnauthenticated)
	}

	if !user.Status.IsActive() {
		metrics.Get().AuthFailuresTotal.Add(ctx, 1)
		return nil, "", "", fmt.Errorf("account is deactivated: %w", api.ErrUnauthenticated)
	}

	accessToken, refreshToken, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return nil, "", "", err
	}

	// Best effort: a failed timestamp update must not fail the login.
	if err := s.repo.UpdateLastLogin(ctx, user.ID); err != nil {
		l.WarnContext(ctx, "Failed to update last login", slog.Any("error", err))
	}

	l.InfoContext(ctx, "User logged in", slog.String("userID", user.ID.String()))
	return user, accessToken, refreshToken, nil
}

func (s *AuthServiceImpl) RefreshAccessToken(ctx context.Context, refreshToken string) (string, error) {
	l := s.logger.With(slog.String("method", "RefreshAccessToken"))
	metrics.Get().TokenRefreshTotal.Add(ctx, 1)

	rt, err := s.repo.GetRefreshToken(ctx, refreshToken)
	if err != nil {
		return "", err
	}

	// Denylist check first: a revoked token stays dead even past its expiry.
	if rt.RevokedAt != nil {
		l.WarnContext(ctx, "Refresh attempted with revoked token", slog.String("userID", rt.UserID.String()))
		return "", fmt.Errorf("refresh token revoked: %w", api.ErrTokenRevoked)
	}
	if time.Now().After(rt.ExpiresAt) {
		return "", fmt.Errorf("refresh token expired: %w", api.ErrTokenExpired)
	}

	user, err := s.repo.GetUserByID(ctx, rt.UserID)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return "", fmt.Errorf("user no longer exists: %w", api.ErrUnauthenticated)
		}
		return "", fmt.Errorf("refresh lookup failed: %w", err)
	}
	if !user.Status.IsActive() {
		return "", fmt.Errorf("account is deactivated: %w", api.ErrUnauthenticated)
	}

	return s.generateAccessToken(user)
}

func (s *AuthServiceImpl) Logout(ctx context.Context, refreshToken string) error {
	if err := s.repo.InvalidateRefreshToken(ctx, refreshToken); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}
	return nil
}

func (s *AuthServiceImpl) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error {
	l := s.logger.With(slog.String("method", "ChangePassword"), slog.String("userID", userID.String()))

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return fmt.Errorf("old password is incorrect: %w", api.ErrValidation)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash new password: %w", err)
	}

	if err := s.repo.UpdatePassword(ctx, userID, string(hashed)); err != nil {
		return err
	}

	// A password change ends every other session.
	if err := s.repo.InvalidateAllUserRefreshTokens(ctx, userID); err != nil {
		l.WarnContext(ctx, "Failed to invalidate refresh tokens after password change", slog.Any("error", err))
	}

	l.InfoContext(ctx, "Password changed")
	return nil
}

func (s *AuthServiceImpl) GetUserByID(ctx context.Context, userID uuid.UUID) (*api.User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

func (s *AuthServiceImpl) EnsureAdmin(ctx context.Context, email, password string) error {
	l := s.logger.With(slog.String("method", "EnsureAdmin"), slog.String("email", email))

	if len(password) < 8 {
		return fmt.Errorf("admin seed password must be at least 8 characters: %w", api.ErrValidation)
	}

	_, err := s.repo.GetUserByEmail(ctx, email)
	if err == nil {
		l.InfoContext(ctx, "Admin seed account already exists, skipping")
		return nil
	}
	if !errors.Is(err, api.ErrNotFound) {
		return fmt.Errorf("admin seed lookup failed: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin seed password: %w", err)
	}

	username := email
	if at := strings.Index(email, "@"); at > 0 {
		username = email[:at]
	}

	user, err := s.repo.CreateUser(ctx, CreateUserParams{
		Username:     username,
		Email:        email,
		Role:         api.RoleAdmin,
		Status:       api.StatusActive,
		PasswordHash: string(hashed),
	})
	if err != nil {
		return fmt.Errorf("admin seed create failed: %w", err)
	}

	l.InfoContext(ctx, "Seeded initial admin account", slog.String("userID", user.ID.String()))
	return nil
}
