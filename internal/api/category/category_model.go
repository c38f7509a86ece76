package category

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/commercekit/catalog-api/internal/api"
)

// Category is a product grouping. created_by is set once at creation and
// never reassigned.
type Category struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	Status        api.Status `json:"status"`
	IsActive      bool       `json:"is_active"`
	CreatedBy     uuid.UUID  `json:"created_by"`
	ProductsCount int64      `json:"products_count"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Derive fills the computed fields after a row scan.
func (c *Category) Derive() {
	c.IsActive = c.Status.IsActive()
}

// CreateCategoryRequest is the create payload.
type CreateCategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (r CreateCategoryRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(2, 100)),
		validation.Field(&r.Description, validation.Length(0, 500)),
	)
}

// UpdateCategoryRequest is the partial update payload. Nil fields are kept.
type UpdateCategoryRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (r UpdateCategoryRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Length(2, 100)),
		validation.Field(&r.Description, validation.Length(0, 500)),
	)
}

// ListCategoriesFilter narrows the category listing. Listings only ever show
// active categories.
type ListCategoriesFilter struct {
	Search string
}

// CategoryStats is the catalog-shape statistics payload.
type CategoryStats struct {
	TotalCategories    int64 `json:"total_categories"`
	ActiveCategories   int64 `json:"active_categories"`
	InactiveCategories int64 `json:"inactive_categories"`
	WithProducts       int64 `json:"categories_with_products"`
}

// ToggleStatusResponse reports the outcome of a status flip.
type ToggleStatusResponse struct {
	Message  string     `json:"message"`
	Status   api.Status `json:"status"`
	IsActive bool       `json:"is_active"`
}
