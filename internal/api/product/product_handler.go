package product

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

// HandlerImpl exposes the product catalog over HTTP. Reads are open to any
// authenticated caller; mutating routes sit behind RequireRole.
type HandlerImpl struct {
	productService ProductService
	logger         *slog.Logger
}

func NewHandlerImpl(productService ProductService, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		productService: productService,
		logger:         logger,
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid product ID")
		return uuid.Nil, false
	}
	return id, true
}

func parseListFilter(w http.ResponseWriter, r *http.Request) (ListProductsFilter, bool) {
	q := r.URL.Query()
	filter := ListProductsFilter{
		Search:   q.Get("search"),
		Ordering: q.Get("ordering"),
	}

	if v := q.Get("min_price"); v != "" {
		price, err := strconv.ParseFloat(v, 64)
		if err != nil {
			api.ErrorResponse(w, r, http.StatusBadRequest, "min_price must be a number")
			return filter, false
		}
		filter.MinPrice = &price
	}
	if v := q.Get("max_price"); v != "" {
		price, err := strconv.ParseFloat(v, 64)
		if err != nil {
			api.ErrorResponse(w, r, http.StatusBadRequest, "max_price must be a number")
			return filter, false
		}
		filter.MaxPrice = &price
	}
	if v := q.Get("in_stock"); v != "" {
		inStock, err := strconv.ParseBool(v)
		if err != nil {
			api.ErrorResponse(w, r, http.StatusBadRequest, "in_stock must be true or false")
			return filter, false
		}
		filter.InStock = &inStock
	}
	return filter, true
}

// List handles GET /products. Only active products appear.
func (h *HandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseListFilter(w, r)
	if !ok {
		return
	}

	products, err := h.productService.List(r.Context(), filter)
	if err != nil {
		api.DomainErrorResponse(w, r, err, "Failed to list products")
		return
	}
	if products == nil {
		products = []*Product{}
	}
	api.WriteJSONResponse(w, r, http.StatusOK, products)
}

// Create handles POST /products.
func (h *HandlerImpl) Create(w http.ResponseWriter, r *http.Request) {
	callerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	role, _ := auth.RoleFromContext(r.Context())

	var req CreateProductRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	product, err := h.productService.Create(r.Context(), callerID, role, req)
	if err != nil {
		api.DomainErrorResponse(w, r, err, err.Error())
		return
	}
	api.WriteJSONResponse(w, r, http.StatusCreated, product)
}

// Get handles GET /products/{id}.
func (h *HandlerImpl) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	product, err := h.productService.Get(r.Context(), id)
	if err != nil {
		api.DomainErrorResponse(w, r, err, "Product not found")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, product)
}

// Update handles PUT and PATCH /products/{id}.
func (h *HandlerImpl) Update(w http.ResponseWriter, r *http.Request) {
	role, _ := auth.RoleFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req UpdateProductRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	product, err := h.productService.Update(r.Context(), role, id, req)
	if err != nil {
		api.DomainErrorResponse(w, r, err, err.Error())
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, product)
}

// Delete handles DELETE /products/{id}. Soft delete, answers 204.
func (h *HandlerImpl) Delete(w http.ResponseWriter, r *http.Request) {
	role, _ := auth.RoleFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.productService.SoftDelete(r.Context(), role, id); err != nil {
		api.DomainErrorResponse(w, r, err, err.Error())
		return
	}
	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}

// ToggleStatus handles POST /products/{id}/toggle-status.
func (h *HandlerImpl) ToggleStatus(w http.ResponseWriter, r *http.Request) {
	role, _ := auth.RoleFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	product, err := h.productService.ToggleStatus(r.Context(), role, id)
	if err != nil {
		api.DomainErrorResponse(w, r, err, err.Error())
		return
	}

	verb := "activated"
	if !product.IsActive {
		verb = "deactivated"
	}
	api.WriteJSONResponse(w, r, http.StatusOK, ToggleStatusResponse{
		Message:  fmt.Sprintf("Product %s successfully", verb),
		Status:   product.Status,
		IsActive: product.IsActive,
	})
}

// Stats handles GET /products/stats. The payload shape depends on the
// caller's role.
func (h *HandlerImpl) Stats(w http.ResponseWriter, r *http.Request) {
	role, ok := auth.RoleFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	stats, err := h.productService.Stats(r.Context(), role)
	if err != nil {
		api.DomainErrorResponse(w, r, err, "Failed to compute product statistics")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, stats)
}
