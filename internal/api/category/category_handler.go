package category

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/commercekit/catalog-api/internal/api"
	"github.com/commercekit/catalog-api/internal/api/auth"
)

// HandlerImpl exposes category management over HTTP. All routes are mounted
// behind RequireRole(admin, moderator).
type HandlerImpl struct {
	categoryService CategoryService
	logger          *slog.Logger
}

func NewHandlerImpl(categoryService CategoryService, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		categoryService: categoryService,
		logger:          logger,
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid category ID")
		return uuid.Nil, false
	}
	return id, true
}

// List handles GET /categories. Only active categories appear.
func (h *HandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	filter := ListCategoriesFilter{Search: r.URL.Query().Get("search")}

	categories, err := h.categoryService.List(r.Context(), filter)
	if err != nil {
		api.DomainErrorResponse(w, r, err, "Failed to list categories")
		return
	}
	if categories == nil {
		categories = []*Category{}
	}
	api.WriteJSONResponse(w, r, http.StatusOK, categories)
}

// Create handles POST /categories.
func (h *HandlerImpl) Create(w http.ResponseWriter, r *http.Request) {
	callerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	role, _ := auth.RoleFromContext(r.Context())

	var req CreateCategoryRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	category, err := h.categoryService.Create(r.Context(), callerID, role, req)
	if err != nil {
		api.DomainErrorResponse(w, r, err, err.Error())
		return
	}
	api.WriteJSONResponse(w, r, http.StatusCreated, category)
}

// Get handles GET /categories/{id}.
func (h *HandlerImpl) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	category, err := h.categoryService.Get(r.Context(), id)
	if err != nil {
		api.DomainErrorResponse(w, r, err, "Category not found")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, category)
}

// Update handles PUT and PATCH /categories/{id}.
func (h *HandlerImpl) Update(w http.ResponseWriter, r *http.Request) {
	role, _ := auth.RoleFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req UpdateCategoryRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	category, err := h.categoryService.Update(r.Context(), role, id, req)
	if err != nil {
		api.DomainErrorResponse(w, r, err, err.Error())
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, category)
}

// Delete handles DELETE /categories/{id}. Soft delete, answers 204.
func (h *HandlerImpl) Delete(w http.ResponseWriter, r *http.Request) {
	role, _ := auth.RoleFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.categoryService.SoftDelete(r.Context(), role, id); err != nil {
		api.DomainErrorResponse(w, r, err, err.Error())
		return
	}
	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}

// ToggleStatus handles POST /categories/{id}/toggle-status.
func (h *HandlerImpl) ToggleStatus(w http.ResponseWriter, r *http.Request) {
	role, _ := auth.RoleFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	category, err := h.categoryService.ToggleStatus(r.Context(), role, id)
	if err != nil {
		api.DomainErrorResponse(w, r, err, err.Error())
		return
	}

	verb := "activated"
	if !category.IsActive {
		verb = "deactivated"
	}
	api.WriteJSONResponse(w, r, http.StatusOK, ToggleStatusResponse{
		Message:  fmt.Sprintf("Category %s successfully", verb),
		Status:   category.Status,
		IsActive: category.IsActive,
	})
}

// Stats handles GET /categories/stats.
func (h *HandlerImpl) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.categoryService.Stats(r.Context())
	if err != nil {
		api.DomainErrorResponse(w, r, err, "Failed to compute category statistics")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, stats)
}
