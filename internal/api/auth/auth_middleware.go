package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/commercekit/catalog-api/config"
	"github.com/commercekit/catalog-api/internal/api"
)

type contextKey string

const (
	// UserIDKey holds the authenticated user's uuid.UUID in the request context.
	UserIDKey contextKey = "userID"
	// UserRoleKey holds the authenticated user's api.Role.
	UserRoleKey contextKey = "userRole"
	// ClaimsKey holds the full parsed *api.Claims.
	ClaimsKey contextKey = "claims"
)

// ParseAccessToken verifies signature, expiry, issuer and audience of an
// access token and returns its claims.
func ParseAccessToken(tokenString string, cfg *config.JWTConfig) (*api.Claims, error) {
	claims := &api.Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(cfg.SecretKey), nil
	},
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("access token expired: %w", api.ErrTokenExpired)
		}
		return nil, fmt.Errorf("invalid access token: %w", api.ErrUnauthenticated)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid access token: %w", api.ErrUnauthenticated)
	}
	if !api.VerifyAudience(claims.Audience, cfg.Audience) {
		return nil, fmt.Errorf("invalid token audience: %w", api.ErrUnauthenticated)
	}
	return claims, nil
}

// Authenticate requires a valid Bearer access token and stashes the identity
// in the request context.
func Authenticate(logger *slog.Logger, cfg *config.JWTConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Authorization header required")
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Authorization header must be of the form 'Bearer <token>'")
				return
			}

			claims, err := ParseAccessToken(parts[1], cfg)
			if err != nil {
				logger.DebugContext(r.Context(), "Rejected access token", slog.Any("error", err))
				api.DomainErrorResponse(w, r, err, "Invalid or expired token")
				return
			}

			userID, err := uuid.Parse(claims.UserID)
			if err != nil {
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Invalid token subject")
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			ctx = context.WithValue(ctx, UserRoleKey, claims.Role)
			ctx = context.WithValue(ctx, ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole gates a route subtree to the given roles. Must run after
// Authenticate.
func RequireRole(roles ...api.Role) func(http.Handler) http.Handler {
	allowed := make(map[api.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := RoleFromContext(r.Context())
			if !ok {
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
				return
			}
			if _, ok := allowed[role]; !ok {
				api.ErrorResponse(w, r, http.StatusForbidden, "You do not have permission to perform this action")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserIDFromContext returns the authenticated user's ID, if present.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return id, ok
}

// RoleFromContext returns the authenticated user's role, if present.
func RoleFromContext(ctx context.Context) (api.Role, bool) {
	role, ok := ctx.Value(UserRoleKey).(api.Role)
	return role, ok
}

// ClaimsFromContext returns the full token claims, if present.
func ClaimsFromContext(ctx context.Context) (*api.Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*api.Claims)
	return claims, ok
}
