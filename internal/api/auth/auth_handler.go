package auth

import (
	"log/slog"
	"net/http"

	"github.com/commercekit/catalog-api/internal/api"
)

// HandlerImpl exposes the auth flows over HTTP.
type HandlerImpl struct {
	authService AuthService
	logger      *slog.Logger
}

func NewHandlerImpl(authService AuthService, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		authService: authService,
		logger:      logger,
	}
}

// Register handles POST /auth/register.
func (h *HandlerImpl) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, access, refresh, err := h.authService.Register(r.Context(), req)
	if err != nil {
		api.DomainErrorResponse(w, r, err, "Registration failed: "+err.Error())
		return
	}

	api.WriteJSONResponse(w, r, http.StatusCreated, TokenPairResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         user,
	})
}

// Login handles POST /auth/login.
func (h *HandlerImpl) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, access, refresh, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		api.DomainErrorResponse(w, r, err, "Invalid email or password")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, TokenPairResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         user,
	})
}

// RefreshSession handles POST /auth/refresh. It mints a new access token from
// a refresh token; the refresh token itself is not rotated.
func (h *HandlerImpl) RefreshSession(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	access, err := h.authService.RefreshAccessToken(r.Context(), req.RefreshToken)
	if err != nil {
		api.DomainErrorResponse(w, r, err, "Token is invalid or expired")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, AccessTokenResponse{AccessToken: access})
}

// Logout handles POST /auth/logout. Revoking is idempotent; a missing token
// in the body is the only client error.
func (h *HandlerImpl) Logout(w http.ResponseWriter, r *http.Request) {
	var req LogoutRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.RefreshToken == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "refresh_token is required")
		return
	}

	if err := h.authService.Logout(r.Context(), req.RefreshToken); err != nil {
		api.DomainErrorResponse(w, r, err, "Logout failed")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, api.Response{
		Success: true,
		Message: "Successfully logged out",
	})
}

// ChangePassword handles POST /auth/change-password for the authenticated user.
func (h *HandlerImpl) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req ChangePasswordRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.authService.ChangePassword(r.Context(), userID, req.OldPassword, req.NewPassword); err != nil {
		api.DomainErrorResponse(w, r, err, err.Error())
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, api.Response{
		Success: true,
		Message: "Password changed successfully",
	})
}

// UserInfo handles GET /auth/me, returning the authenticated user's record.
func (h *HandlerImpl) UserInfo(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	user, err := h.authService.GetUserByID(r.Context(), userID)
	if err != nil {
		api.DomainErrorResponse(w, r, err, "User not found")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, user)
}
