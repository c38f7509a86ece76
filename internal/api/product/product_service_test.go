package product

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

	"github.com/commercekit/catalog-api/internal/api"
)

type MockProductRepo struct {
	mock.Mock
}

func (m *MockProductRepo) List(ctx context.Context, filter ListProductsFilter) ([]*Product, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Product), args.Error(1)
}

func (m *MockProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Product), args.Error(1)
}

func (m *MockProductRepo) Create(ctx context.Context, req CreateProductRequest, createdBy uuid.UUID) (*Product, error) {
	args := m.Called(ctx, req, createdBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Product), args.Error(1)
}

func (m *MockProductRepo) Update(ctx context.Context, id uuid.UUID, params UpdateProductParams) (*Product, error) {
	args := m.Called(ctx, id, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Product), args.Error(1)
}

func (m *MockProductRepo) SetStatus(ctx context.Context, id uuid.UUID, status api.Status) (*Product, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Product), args.Error(1)
}

func (m *MockProductRepo) Stats(ctx context.Context) (*ProductStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ProductStats), args.Error(1)
}

func newTestService(repo ProductRepo) *ProductServiceImpl {
	return NewProductService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func sampleProduct() *Product {
	p := &Product{
		ID:            uuid.New(),
		Name:          "Widget",
		CategoryID:    uuid.New(),
		CategoryName:  "Gadgets",
		Price:         19.99,
		StockQuantity: 5,
		SKU:           "WID-001",
		Status:        api.StatusActive,
		CreatedBy:     uuid.New(),
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	p.Derive()
	return p
}

func fullStats() *ProductStats {
	total := int64(12)
	inactive := int64(2)
	categories := int64(3)
	avg := 24.5
	return &ProductStats{
		TotalProducts:          10,
		InStock:                8,
		OutOfStock:             2,
		TotalIncludingInactive: &total,
		InactiveProducts:       &inactive,
		ActiveCategories:       &categories,
		AveragePrice:           &avg,
	}
}

func TestCreateForbiddenForPlainUser(t *testing.T) {
	ctx := context.Background()
	repo := new(MockProductRepo)
	svc := newTestService(repo)

	_, err := svc.Create(ctx, uuid.New(), api.RoleUser, CreateProductRequest{
		Name: "Widget", CategoryID: uuid.New(), SKU: "WID-001",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrForbidden)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateAllowedForModerator(t *testing.T) {
	ctx := context.Background()
	repo := new(MockProductRepo)
	svc := newTestService(repo)
	callerID := uuid.New()
	created := sampleProduct()
	req := CreateProductRequest{
		Name: "Widget", CategoryID: created.CategoryID, Price: 19.99,
		StockQuantity: 5, SKU: "WID-001",
	}

	repo.On("Create", ctx, req, callerID).Return(created, nil)

	product, err := svc.Create(ctx, callerID, api.RoleModerator, req)
	require.NoError(t, err)
	assert.Equal(t, created.ID, product.ID)
	assert.True(t, product.IsInStock)
	repo.AssertExpectations(t)
}

func TestCreateSKUConflict(t *testing.T) {
	ctx := context.Background()
	repo := new(MockProductRepo)
	svc := newTestService(repo)

	repo.On("Create", ctx, mock.Anything, mock.Anything).Return(nil, api.ErrConflict)

	_, err := svc.Create(ctx, uuid.New(), api.RoleAdmin, CreateProductRequest{
		Name: "Widget", CategoryID: uuid.New(), SKU: "WID-001",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrConflict)
}

func TestSoftDeleteMarksInactive(t *testing.T) {
	ctx := context.Background()
	repo := new(MockProductRepo)
	svc := newTestService(repo)
	target := sampleProduct()

	deactivated := *target
	deactivated.Status = api.StatusInactive
	deactivated.Derive()
	repo.On("SetStatus", ctx, target.ID, api.StatusInactive).Return(&deactivated, nil)

	require.NoError(t, svc.SoftDelete(ctx, api.RoleModerator, target.ID))
	repo.AssertExpectations(t)
}

func TestToggleStatusForbiddenForPlainUser(t *testing.T) {
	ctx := context.Background()
	repo := new(MockProductRepo)
	svc := newTestService(repo)

	_, err := svc.ToggleStatus(ctx, api.RoleUser, uuid.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrForbidden)
	repo.AssertNotCalled(t, "SetStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestStatsFullShapeForModerator(t *testing.T) {
	ctx := context.Background()
	repo := new(MockProductRepo)
	svc := newTestService(repo)

	repo.On("Stats", ctx).Return(fullStats(), nil)

	stats, err := svc.Stats(ctx, api.RoleModerator)
	require.NoError(t, err)
	require.NotNil(t, stats.AveragePrice)
	assert.Equal(t, 24.5, *stats.AveragePrice)
	require.NotNil(t, stats.TotalIncludingInactive)
	assert.Equal(t, int64(12), *stats.TotalIncludingInactive)
}

func TestStatsBasicShapeForPlainUser(t *testing.T) {
	ctx := context.Background()
	repo := new(MockProductRepo)
	svc := newTestService(repo)

	repo.On("Stats", ctx).Return(fullStats(), nil)

	stats, err := svc.Stats(ctx, api.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, int64(10), stats.TotalProducts)
	assert.Equal(t, int64(8), stats.InStock)
	assert.Nil(t, stats.AveragePrice)
	assert.Nil(t, stats.TotalIncludingInactive)
	assert.Nil(t, stats.InactiveProducts)
	assert.Nil(t, stats.ActiveCategories)
}

func TestStatsCachedAcrossRoles(t *testing.T) {
	ctx := context.Background()
	repo := new(MockProductRepo)
	svc := newTestService(repo)

	repo.On("Stats", ctx).Return(fullStats(), nil).Once()

	_, err := svc.Stats(ctx, api.RoleAdmin)
	require.NoError(t, err)
	// Second call, different role, still served from cache.
	stats, err := svc.Stats(ctx, api.RoleUser)
	require.NoError(t, err)
	assert.Nil(t, stats.AveragePrice)
	repo.AssertNumberOfCalls(t, "Stats", 1)
}
