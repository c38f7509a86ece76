package category

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/commercekit/catalog-api/internal/api"
	"github.com/commercekit/catalog-api/internal/api/auth"
)

type MockCategoryService struct {
	mock.Mock
}

func (m *MockCategoryService) List(ctx context.Context, filter ListCategoriesFilter) ([]*Category, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Category), args.Error(1)
}

func (m *MockCategoryService) Get(ctx context.Context, id uuid.UUID) (*Category, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Category), args.Error(1)
}

func (m *MockCategoryService) Create(ctx context.Context, callerID uuid.UUID, callerRole api.Role, req CreateCategoryRequest) (*Category, error) {
	args := m.Called(ctx, callerID, callerRole, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Category), args.Error(1)
}

func (m *MockCategoryService) Update(ctx context.Context, callerRole api.Role, id uuid.UUID, req UpdateCategoryRequest) (*Category, error) {
	args := m.Called(ctx, callerRole, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Category), args.Error(1)
}

func (m *MockCategoryService) SoftDelete(ctx context.Context, callerRole api.Role, id uuid.UUID) error {
	args := m.Called(ctx, callerRole, id)
	return args.Error(0)
}

func (m *MockCategoryService) ToggleStatus(ctx context.Context, callerRole api.Role, id uuid.UUID) (*Category, error) {
	args := m.Called(ctx, callerRole, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Category), args.Error(1)
}

func (m *MockCategoryService) Stats(ctx context.Context) (*CategoryStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CategoryStats), args.Error(1)
}

func newTestHandler(svc CategoryService) *HandlerImpl {
	return NewHandlerImpl(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func staffRequest(method, target string, id uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	ctx := context.WithValue(req.Context(), auth.UserIDKey, uuid.New())
	ctx = context.WithValue(ctx, auth.UserRoleKey, api.RoleModerator)
	rctx := chi.NewRouteContext()
	if id != uuid.Nil {
		rctx.URLParams.Add("id", id.String())
	}
	return req.WithContext(context.WithValue(ctx, chi.RouteCtxKey, rctx))
}

func TestDeleteAnswersNoContent(t *testing.T) {
	svc := new(MockCategoryService)
	h := newTestHandler(svc)
	id := uuid.New()

	svc.On("SoftDelete", mock.Anything, api.RoleModerator, id).Return(nil)

	rr := httptest.NewRecorder()
	h.Delete(rr, staffRequest(http.MethodDelete, "/api/v1/categories/"+id.String(), id))

	require.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())
	svc.AssertExpectations(t)
}

func TestDeleteInvalidID(t *testing.T) {
	svc := new(MockCategoryService)
	h := newTestHandler(svc)

	req := staffRequest(http.MethodDelete, "/api/v1/categories/not-a-uuid", uuid.Nil)
	rctx := chi.RouteContext(req.Context())
	rctx.URLParams.Add("id", "not-a-uuid")

	rr := httptest.NewRecorder()
	h.Delete(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertNotCalled(t, "SoftDelete", mock.Anything, mock.Anything, mock.Anything)
}

func TestToggleStatusReportsVerb(t *testing.T) {
	svc := new(MockCategoryService)
	h := newTestHandler(svc)
	deactivated := activeCategory("Gadgets")
	deactivated.Status = api.StatusInactive
	deactivated.Derive()

	svc.On("ToggleStatus", mock.Anything, api.RoleModerator, deactivated.ID).
		Return(deactivated, nil)

	rr := httptest.NewRecorder()
	h.ToggleStatus(rr, staffRequest(http.MethodPost, "/api/v1/categories/"+deactivated.ID.String()+"/toggle-status", deactivated.ID))

	require.Equal(t, http.StatusOK, rr.Code)
	var body ToggleStatusResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "Category deactivated successfully", body.Message)
	assert.Equal(t, api.StatusInactive, body.Status)
	assert.False(t, body.IsActive)
}

func TestListEmptyResultIsJSONArray(t *testing.T) {
	svc := new(MockCategoryService)
	h := newTestHandler(svc)

	svc.On("List", mock.Anything, ListCategoriesFilter{}).Return([]*Category(nil), nil)

	rr := httptest.NewRecorder()
	h.List(rr, staffRequest(http.MethodGet, "/api/v1/categories", uuid.Nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String())
}

func TestGetNotFound(t *testing.T) {
	svc := new(MockCategoryService)
	h := newTestHandler(svc)
	id := uuid.New()

	svc.On("Get", mock.Anything, id).Return(nil, api.ErrNotFound)

	rr := httptest.NewRecorder()
	h.Get(rr, staffRequest(http.MethodGet, "/api/v1/categories/"+id.String(), id))

	require.Equal(t, http.StatusNotFound, rr.Code)
}
