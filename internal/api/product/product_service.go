package product

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/commercekit/catalog-api/internal/api"
	"github.com/commercekit/catalog-api/internal/api/access"
)

const statsCacheKey = "product-stats"

var _ ProductService = (*ProductServiceImpl)(nil)

// ProductService is the catalog-product contract. Reads are open to any
// authenticated caller; writes require admin or moderator.
type ProductService interface {
	List(ctx context.Context, filter ListProductsFilter) ([]*Product, error)
	Get(ctx context.Context, id uuid.UUID) (*Product, error)
	Create(ctx context.Context, callerID uuid.UUID, callerRole api.Role, req CreateProductRequest) (*Product, error)
	Update(ctx context.Context, callerRole api.Role, id uuid.UUID, req UpdateProductRequest) (*Product, error)

	// SoftDelete marks the product inactive.
	SoftDelete(ctx context.Context, callerRole api.Role, id uuid.UUID) error

	ToggleStatus(ctx context.Context, callerRole api.Role, id uuid.UUID) (*Product, error)

	// Stats returns the full payload for admins and moderators, and the basic
	// subset for everyone else.
	Stats(ctx context.Context, callerRole api.Role) (*ProductStats, error)
}

type ProductServiceImpl struct {
	logger *slog.Logger
	repo   ProductRepo
	cache  *gocache.Cache
}

func NewProductService(repo ProductRepo, logger *slog.Logger) *ProductServiceImpl {
	return &ProductServiceImpl{
		logger: logger,
		repo:   repo,
		cache:  gocache.New(30*time.Second, time.Minute),
	}
}

func (s *ProductServiceImpl) List(ctx context.Context, filter ListProductsFilter) ([]*Product, error) {
	return s.repo.List(ctx, filter)
}

func (s *ProductServiceImpl) Get(ctx context.Context, id uuid.UUID) (*Product, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *ProductServiceImpl) Create(ctx context.Context, callerID uuid.UUID, callerRole api.Role, req CreateProductRequest) (*Product, error) {
	l := s.logger.With(slog.String("method", "Create"))

	if !access.Allow(callerRole, access.ActionWrite, access.ResourceProducts, false) {
		return nil, fmt.Errorf("only admins and moderators may create products: %w", api.ErrForbidden)
	}

	product, err := s.repo.Create(ctx, req, callerID)
	if err != nil {
		return nil, err
	}

	s.cache.Delete(statsCacheKey)
	l.InfoContext(ctx, "Product created",
		slog.String("productID", product.ID.String()),
		slog.String("sku", product.SKU))
	return product, nil
}

func (s *ProductServiceImpl) Update(ctx context.Context, callerRole api.Role, id uuid.UUID, req UpdateProductRequest) (*Product, error) {
	if !access.Allow(callerRole, access.ActionWrite, access.ResourceProducts, false) {
		return nil, fmt.Errorf("only admins and moderators may update products: %w", api.ErrForbidden)
	}

	product, err := s.repo.Update(ctx, id, UpdateProductParams{
		Name:          req.Name,
		Description:   req.Description,
		CategoryID:    req.CategoryID,
		Price:         req.Price,
		StockQuantity: req.StockQuantity,
		SKU:           req.SKU,
	})
	if err != nil {
		return nil, err
	}

	s.cache.Delete(statsCacheKey)
	return product, nil
}

func (s *ProductServiceImpl) SoftDelete(ctx context.Context, callerRole api.Role, id uuid.UUID) error {
	l := s.logger.With(slog.String("method", "SoftDelete"), slog.String("productID", id.String()))

	if !access.Allow(callerRole, access.ActionWrite, access.ResourceProducts, false) {
		return fmt.Errorf("only admins and moderators may delete products: %w", api.ErrForbidden)
	}

	if _, err := s.repo.SetStatus(ctx, id, api.StatusInactive); err != nil {
		return err
	}

	s.cache.Delete(statsCacheKey)
	l.InfoContext(ctx, "Product deactivated")
	return nil
}

func (s *ProductServiceImpl) ToggleStatus(ctx context.Context, callerRole api.Role, id uuid.UUID) (*Product, error) {
	if !access.Allow(callerRole, access.ActionToggle, access.ResourceProducts, false) {
		return nil, fmt.Errorf("only admins and moderators may toggle products: %w", api.ErrForbidden)
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	product, err := s.repo.SetStatus(ctx, id, current.Status.Toggle())
	if err != nil {
		return nil, err
	}

	s.cache.Delete(statsCacheKey)
	return product, nil
}

func (s *ProductServiceImpl) Stats(ctx context.Context, callerRole api.Role) (*ProductStats, error) {
	stats, err := s.fullStats(ctx)
	if err != nil {
		return nil, err
	}

	if access.CanManageCatalog(callerRole) {
		return stats, nil
	}

	// Plain users only see the basic subset.
	return &ProductStats{
		TotalProducts: stats.TotalProducts,
		InStock:       stats.InStock,
		OutOfStock:    stats.OutOfStock,
	}, nil
}

func (s *ProductServiceImpl) fullStats(ctx context.Context) (*ProductStats, error) {
	if cached, found := s.cache.Get(statsCacheKey); found {
		return cached.(*ProductStats), nil
	}

	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, err
	}

	s.cache.SetDefault(statsCacheKey, stats)
	return stats, nil
}
