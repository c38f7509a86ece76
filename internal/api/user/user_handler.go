package user

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/commercekit/catalog-api/internal/api"
	"github.com/commercekit/catalog-api/internal/api/auth"
)

// HandlerImpl exposes identity management over HTTP. Routes under /users plus
// the self-service profile routes mounted under /auth.
type HandlerImpl struct {
	userService UserService
	logger      *slog.Logger
}

func NewHandlerImpl(userService UserService, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		userService: userService,
		logger:      logger,
	}
}

func callerIdentity(w http.ResponseWriter, r *http.Request) (uuid.UUID, api.Role, bool) {
	callerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return uuid.Nil, "", false
	}
	role, ok := auth.RoleFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return uuid.Nil, "", false
	}
	return callerID, role, true
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid user ID")
		return uuid.Nil, false
	}
	return id, true
}

// List handles GET /users. Admins get full records; everyone else gets the
// reduced summary shape.
func (h *HandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	_, role, ok := callerIdentity(w, r)
	if !ok {
		return
	}

	filter := ListUsersFilter{Search: r.URL.Query().Get("search")}
	if v := r.URL.Query().Get("role"); v != "" {
		roleFilter := api.Role(v)
		if !roleFilter.Valid() {
			api.ErrorResponse(w, r, http.StatusBadRequest, fmt.Sprintf("Unknown role %q", v))
			return
		}
		filter.Role = &roleFilter
	}
	if v := r.URL.Query().Get("is_active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			api.ErrorResponse(w, r, http.StatusBadRequest, "is_active must be true or false")
			return
		}
		filter.IsActive = &active
	}

	users, err := h.userService.List(r.Context(), filter)
	if err != nil {
		api.DomainErrorResponse(w, r, err, "Failed to list users")
		return
	}

	if role != api.RoleAdmin {
		summaries := make([]api.UserSummary, 0, len(users))
		for _, u := range users {
			summaries = append(summaries, u.Summary())
		}
		api.WriteJSONResponse(w, r, http.StatusOK, summaries)
		return
	}
	if users == nil {
		users = []*api.User{}
	}
	api.WriteJSONResponse(w, r, http.StatusOK, users)
}

// Create handles POST /users (admin only).
func (h *HandlerImpl) Create(w http.ResponseWriter, r *http.Request) {
	_, role, ok := callerIdentity(w, r)
	if !ok {
		return
	}

	var req CreateUserRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.userService.Create(r.Context(), role, req)
	if err != nil {
		api.DomainErrorResponse(w, r, err, err.Error())
		return
	}

	api.WriteJSONResponse(w, r, http.StatusCreated, user)
}

// Get handles GET /users/{id}.
func (h *HandlerImpl) Get(w http.ResponseWriter, r *http.Request) {
	callerID, role, ok := callerIdentity(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	user, err := h.userService.Get(r.Context(), callerID, role, id)
	if err != nil {
		api.DomainErrorResponse(w, r, err, err.Error())
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, user)
}

// Update handles PUT and PATCH /users/{id}.
func (h *HandlerImpl) Update(w http.ResponseWriter, r *http.Request) {
	callerID, role, ok := callerIdentity(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Empty() {
		api.ErrorResponse(w, r, http.StatusBadRequest, "No fields provided to update")
		return
	}

	user, err := h.userService.Update(r.Context(), callerID, role, id, req)
	if err != nil {
		api.DomainErrorResponse(w, r, err, err.Error())
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, user)
}

// Delete handles DELETE /users/{id} (admin only, never self).
func (h *HandlerImpl) Delete(w http.ResponseWriter, r *http.Request) {
	callerID, role, ok := callerIdentity(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	email, err := h.userService.Delete(r.Context(), callerID, role, id)
	if err != nil {
		api.DomainErrorResponse(w, r, err, err.Error())
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, api.Response{
		Success: true,
		Message: fmt.Sprintf("User %s deleted successfully", email),
	})
}

// ToggleStatus handles POST /users/{id}/toggle-status (admin only, never self).
func (h *HandlerImpl) ToggleStatus(w http.ResponseWriter, r *http.Request) {
	callerID, role, ok := callerIdentity(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	user, err := h.userService.ToggleStatus(r.Context(), callerID, role, id)
	if err != nil {
		api.DomainErrorResponse(w, r, err, err.Error())
		return
	}

	verb := "activated"
	if !user.IsActive {
		verb = "deactivated"
	}
	api.WriteJSONResponse(w, r, http.StatusOK, ToggleStatusResponse{
		Message:  fmt.Sprintf("User %s successfully", verb),
		Status:   user.Status,
		IsActive: user.IsActive,
	})
}

// Stats handles GET /users/stats (admin only).
func (h *HandlerImpl) Stats(w http.ResponseWriter, r *http.Request) {
	_, role, ok := callerIdentity(w, r)
	if !ok {
		return
	}

	stats, err := h.userService.Stats(r.Context(), role)
	if err != nil {
		api.DomainErrorResponse(w, r, err, err.Error())
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, stats)
}

// Profile handles GET /auth/profile for the authenticated user.
func (h *HandlerImpl) Profile(w http.ResponseWriter, r *http.Request) {
	callerID, role, ok := callerIdentity(w, r)
	if !ok {
		return
	}

	user, err := h.userService.Get(r.Context(), callerID, role, callerID)
	if err != nil {
		api.DomainErrorResponse(w, r, err, "Profile not found")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, user)
}

// UpdateProfile handles PUT /auth/profile for the authenticated user.
func (h *HandlerImpl) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	callerID, _, ok := callerIdentity(w, r)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.userService.UpdateProfile(r.Context(), callerID, req)
	if err != nil {
		api.DomainErrorResponse(w, r, err, err.Error())
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, user)
}
