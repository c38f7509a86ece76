package product

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/commercekit/catalog-api/internal/api"
)

// Product is a catalog entry. CategoryName is joined in for list and detail
// responses; IsInStock derives from stock_quantity.
type Product struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	CategoryID    uuid.UUID  `json:"category_id"`
	CategoryName  string     `json:"category_name"`
	Price         float64    `json:"price"`
	StockQuantity int        `json:"stock_quantity"`
	SKU           string     `json:"sku"`
	Status        api.Status `json:"status"`
	IsActive      bool       `json:"is_active"`
	IsInStock     bool       `json:"is_in_stock"`
	CreatedBy     uuid.UUID  `json:"created_by"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Derive fills the computed fields after a row scan.
func (p *Product) Derive() {
	p.IsActive = p.Status.IsActive()
	p.IsInStock = p.StockQuantity > 0
}

// CreateProductRequest is the create payload.
type CreateProductRequest struct {
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	CategoryID    uuid.UUID `json:"category_id"`
	Price         float64   `json:"price"`
	StockQuantity int       `json:"stock_quantity"`
	SKU           string    `json:"sku"`
}

func (r CreateProductRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(2, 200)),
		validation.Field(&r.Description, validation.Length(0, 1000)),
		validation.Field(&r.CategoryID, validation.Required, validation.By(notNilUUID)),
		validation.Field(&r.Price, validation.Min(0.0)),
		validation.Field(&r.StockQuantity, validation.Min(0)),
		validation.Field(&r.SKU, validation.Required, validation.Length(3, 50)),
	)
}

func notNilUUID(value interface{}) error {
	id, _ := value.(uuid.UUID)
	if id == uuid.Nil {
		return validation.NewError("validation_required", "cannot be blank")
	}
	return nil
}

// UpdateProductRequest is the partial update payload. Nil fields are kept.
type UpdateProductRequest struct {
	Name          *string    `json:"name"`
	Description   *string    `json:"description"`
	CategoryID    *uuid.UUID `json:"category_id"`
	Price         *float64   `json:"price"`
	StockQuantity *int       `json:"stock_quantity"`
	SKU           *string    `json:"sku"`
}

func (r UpdateProductRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Length(2, 200)),
		validation.Field(&r.Description, validation.Length(0, 1000)),
		validation.Field(&r.Price, validation.Min(0.0)),
		validation.Field(&r.StockQuantity, validation.Min(0)),
		validation.Field(&r.SKU, validation.Length(3, 50)),
	)
}

// UpdateProductParams is the persistence-level partial update.
type UpdateProductParams struct {
	Name          *string
	Description   *string
	CategoryID    *uuid.UUID
	Price         *float64
	StockQuantity *int
	SKU           *string
}

// ListProductsFilter narrows the product listing. Listings only ever show
// active products.
type ListProductsFilter struct {
	Search   string
	MinPrice *float64
	MaxPrice *float64
	InStock  *bool
	Ordering string
}

// ProductStats is the catalog statistics payload. The pointer fields only
// appear for admin and moderator callers.
type ProductStats struct {
	TotalProducts int64 `json:"total_products"`
	InStock       int64 `json:"in_stock"`
	OutOfStock    int64 `json:"out_of_stock"`

	TotalIncludingInactive *int64   `json:"total_including_inactive,omitempty"`
	InactiveProducts       *int64   `json:"inactive_products,omitempty"`
	ActiveCategories       *int64   `json:"active_categories,omitempty"`
	AveragePrice           *float64 `json:"average_price,omitempty"`
}

// ToggleStatusResponse reports the outcome of a status flip.
type ToggleStatusResponse struct {
	Message  string     `json:"message"`
	Status   api.Status `json:"status"`
	IsActive bool       `json:"is_active"`
}
