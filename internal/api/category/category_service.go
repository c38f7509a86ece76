package category

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

const statsCacheKey = "category-stats"

var _ CategoryService = (*CategoryServiceImpl)(nil)

// CategoryService is the category-management contract. Category routes are
// already gated to admin/moderator; the service re-checks mutations.
type CategoryService interface {
	List(ctx context.Context, filter ListCategoriesFilter) ([]*Category, error)
	Get(ctx context.Context, id uuid.UUID) (*Category, error)
	Create(ctx context.Context, callerID uuid.UUID, callerRole api.Role, req CreateCategoryRequest) (*Category, error)
	Update(ctx context.Context, callerRole api.Role, id uuid.UUID, req UpdateCategoryRequest) (*Category, error)

	// SoftDelete marks the category inactive. The row and its products stay.
	SoftDelete(ctx context.Context, callerRole api.Role, id uuid.UUID) error

	ToggleStatus(ctx context.Context, callerRole api.Role, id uuid.UUID) (*Category, error)
	Stats(ctx context.Context) (*CategoryStats, error)
}

type CategoryServiceImpl struct {
	logger *slog.Logger
	repo   CategoryRepo
	cache  *gocache.Cache
}

func NewCategoryService(repo CategoryRepo, logger *slog.Logger) *CategoryServiceImpl {
	return &CategoryServiceImpl{
		logger: logger,
		repo:   repo,
		cache:  gocache.New(30*time.Second, time.Minute),
	}
}

func (s *CategoryServiceImpl) List(ctx context.Context, filter ListCategoriesFilter) ([]*Category, error) {
	return s.repo.List(ctx, filter)
}

func (s *CategoryServiceImpl) Get(ctx context.Context, id uuid.UUID) (*Category, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *CategoryServiceImpl) Create(ctx context.Context, callerID uuid.UUID, callerRole api.Role, req CreateCategoryRequest) (*Category, error) {
	l := s.logger.With(slog.String("method", "Create"))

	if !access.Allow(callerRole, access.ActionWrite, access.ResourceCategories, false) {
		return nil, fmt.Errorf("only admins and moderators may create categories: %w", api.ErrForbidden)
	}

	category, err := s.repo.Create(ctx, req.Name, req.Description, callerID)
	if err != nil {
		return nil, err
	}

	s.cache.Delete(statsCacheKey)
	l.InfoContext(ctx, "Category created",
		slog.String("categoryID", category.ID.String()),
		slog.String("name", category.Name))
	return category, nil
}

func (s *CategoryServiceImpl) Update(ctx context.Context, callerRole api.Role, id uuid.UUID, req UpdateCategoryRequest) (*Category, error) {
	if !access.Allow(callerRole, access.ActionWrite, access.ResourceCategories, false) {
		return nil, fmt.Errorf("only admins and moderators may update categories: %w", api.ErrForbidden)
	}

	category, err := s.repo.Update(ctx, id, req.Name, req.Description)
	if err != nil {
		return nil, err
	}

	s.cache.Delete(statsCacheKey)
	return category, nil
}

func (s *CategoryServiceImpl) SoftDelete(ctx context.Context, callerRole api.Role, id uuid.UUID) error {
	l := s.logger.With(slog.String("method", "SoftDelete"), slog.String("categoryID", id.String()))

	if !access.Allow(callerRole, access.ActionWrite, access.ResourceCategories, false) {
		return fmt.Errorf("only admins and moderators may delete categories: %w", api.ErrForbidden)
	}

	if _, err := s.repo.SetStatus(ctx, id, api.StatusInactive); err != nil {
		return err
	}

	s.cache.Delete(statsCacheKey)
	l.InfoContext(ctx, "Category deactivated")
	return nil
}

func (s *CategoryServiceImpl) ToggleStatus(ctx context.Context, callerRole api.Role, id uuid.UUID) (*Category, error) {
	if !access.Allow(callerRole, access.ActionToggle, access.ResourceCategories, false) {
		return nil, fmt.Errorf("only admins and moderators may toggle categories: %w", api.ErrForbidden)
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	category, err := s.repo.SetStatus(ctx, id, current.Status.Toggle())
	if err != nil {
		return nil, err
	}

	s.cache.Delete(statsCacheKey)
	return category, nil
}

func (s *CategoryServiceImpl) Stats(ctx context.Context) (*CategoryStats, error) {
	if cached, found := s.cache.Get(statsCacheKey); found {
		return cached.(*CategoryStats), nil
	}

	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, err
	}

	s.cache.SetDefault(statsCacheKey, stats)
	return stats, nil
}
