package product

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commercekit/catalog-api/internal/api"
)

func newMockRepo(t *testing.T) (*PostgresProductRepo, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)
	repo := NewPostgresProductRepo(mockPool, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return repo, mockPool
}

func productJoinedRow(id uuid.UUID, name string, price float64, stock int) *pgxmock.Rows {
	now := time.Now()
	return pgxmock.NewRows([]string{
		"id", "name", "description", "category_id", "category_name",
		"price", "stock_quantity", "sku", "status", "created_by", "created_at", "updated_at",
	}).AddRow(
		id, name, "", uuid.New(), "Gadgets",
		price, stock, "WID-001", api.StatusActive, uuid.New(), now, now,
	)
}

func TestOrderClause(t *testing.T) {
	cases := []struct {
		ordering string
		want     string
	}{
		{"", "p.id ASC"},
		{"id", "p.id ASC"},
		{"name", "p.name ASC"},
		{"-name", "p.name DESC"},
		{"price", "p.price ASC"},
		{"-price", "p.price DESC"},
		{"created_at", "p.created_at ASC"},
		{"-created_at", "p.created_at DESC"},
		{"stock_quantity", "p.stock_quantity ASC"},
		{"sku", "p.id ASC"},
		{"-unknown", "p.id ASC"},
		{"price; DROP TABLE products", "p.id ASC"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, orderClause(tc.ordering), "ordering %q", tc.ordering)
	}
}

func TestListAppliesPriceAndStockFilters(t *testing.T) {
	repo, mockPool := newMockRepo(t)
	ctx := context.Background()
	minPrice, maxPrice := 10.0, 50.0
	inStock := true

	mockPool.ExpectQuery(`WHERE p.status = 'active' AND \(p.name ILIKE \$1 OR p.description ILIKE \$1 OR p.sku ILIKE \$1\) AND p.price >= \$2 AND p.price <= \$3 AND p.stock_quantity > 0 ORDER BY p.price DESC`).
		WithArgs("%wid%", minPrice, maxPrice).
		WillReturnRows(productJoinedRow(uuid.New(), "Widget", 19.99, 5))

	products, err := repo.List(ctx, ListProductsFilter{
		Search:   "wid",
		MinPrice: &minPrice,
		MaxPrice: &maxPrice,
		InStock:  &inStock,
		Ordering: "-price",
	})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Gadgets", products[0].CategoryName)
	assert.True(t, products[0].IsInStock)
	require.NoError(t, mockPool.ExpectationsWereMet())
}

func TestListUnknownOrderingFallsBack(t *testing.T) {
	repo, mockPool := newMockRepo(t)
	ctx := context.Background()

	mockPool.ExpectQuery(`WHERE p.status = 'active' ORDER BY p.id ASC`).
		WillReturnRows(productJoinedRow(uuid.New(), "Widget", 19.99, 5))

	_, err := repo.List(ctx, ListProductsFilter{Ordering: "not-a-column"})
	require.NoError(t, err)
	require.NoError(t, mockPool.ExpectationsWereMet())
}

func TestCreateRejectsInactiveCategory(t *testing.T) {
	repo, mockPool := newMockRepo(t)
	ctx := context.Background()
	categoryID := uuid.New()

	mockPool.ExpectBegin()
	mockPool.ExpectQuery(`SELECT name, status FROM categories WHERE id = \$1`).
		WithArgs(categoryID).
		WillReturnRows(pgxmock.NewRows([]string{"name", "status"}).
			AddRow("Gadgets", api.StatusInactive))
	mockPool.ExpectRollback()

	_, err := repo.Create(ctx, CreateProductRequest{
		Name: "Widget", CategoryID: categoryID, SKU: "WID-001",
	}, uuid.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrValidation)
	require.NoError(t, mockPool.ExpectationsWereMet())
}

func TestCreateRejectsUnknownCategory(t *testing.T) {
	repo, mockPool := newMockRepo(t)
	ctx := context.Background()
	categoryID := uuid.New()

	mockPool.ExpectBegin()
	mockPool.ExpectQuery(`SELECT name, status FROM categories WHERE id = \$1`).
		WithArgs(categoryID).
		WillReturnRows(pgxmock.NewRows([]string{"name", "status"}))
	mockPool.ExpectRollback()

	_, err := repo.Create(ctx, CreateProductRequest{
		Name: "Widget", CategoryID: categoryID, SKU: "WID-001",
	}, uuid.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrValidation)
}

func TestCreateRejectsDuplicateSKU(t *testing.T) {
	repo, mockPool := newMockRepo(t)
	ctx := context.Background()
	categoryID := uuid.New()

	mockPool.ExpectBegin()
	mockPool.ExpectQuery(`SELECT name, status FROM categories WHERE id = \$1`).
		WithArgs(categoryID).
		WillReturnRows(pgxmock.NewRows([]string{"name", "status"}).
			AddRow("Gadgets", api.StatusActive))
	mockPool.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM products WHERE sku = \$1 AND id <> \$2\)`).
		WithArgs("WID-001", uuid.Nil).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mockPool.ExpectRollback()

	_, err := repo.Create(ctx, CreateProductRequest{
		Name: "Widget", CategoryID: categoryID, SKU: "WID-001",
	}, uuid.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrConflict)
}

func TestCreateCommitsAndCarriesCategoryName(t *testing.T) {
	repo, mockPool := newMockRepo(t)
	ctx := context.Background()
	id := uuid.New()
	categoryID := uuid.New()
	creator := uuid.New()
	now := time.Now()

	mockPool.ExpectBegin()
	mockPool.ExpectQuery(`SELECT name, status FROM categories WHERE id = \$1`).
		WithArgs(categoryID).
		WillReturnRows(pgxmock.NewRows([]string{"name", "status"}).
			AddRow("Gadgets", api.StatusActive))
	mockPool.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM products WHERE sku`).
		WithArgs("WID-001", uuid.Nil).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mockPool.ExpectQuery(`INSERT INTO products`).
		WithArgs("Widget", "", categoryID, 19.99, 5, "WID-001", creator).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "description", "category_id", "price", "stock_quantity",
			"sku", "status", "created_by", "created_at", "updated_at",
		}).AddRow(id, "Widget", "", categoryID, 19.99, 5, "WID-001", api.StatusActive, creator, now, now))
	mockPool.ExpectCommit()
	mockPool.ExpectRollback()

	product, err := repo.Create(ctx, CreateProductRequest{
		Name: "Widget", CategoryID: categoryID, Price: 19.99, StockQuantity: 5, SKU: "WID-001",
	}, creator)
	require.NoError(t, err)
	assert.Equal(t, id, product.ID)
	assert.Equal(t, "Gadgets", product.CategoryName)
	assert.True(t, product.IsInStock)
	require.NoError(t, mockPool.ExpectationsWereMet())
}

func TestSetStatusUnknownProduct(t *testing.T) {
	repo, mockPool := newMockRepo(t)
	ctx := context.Background()
	id := uuid.New()

	mockPool.ExpectQuery(`UPDATE products SET status = \$1`).
		WithArgs(api.StatusInactive, pgxmock.AnyArg(), id).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	_, err := repo.SetStatus(ctx, id, api.StatusInactive)
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrNotFound)
}

func TestStatsDerivedCounts(t *testing.T) {
	repo, mockPool := newMockRepo(t)
	mockPool.MatchExpectationsInOrder(false)
	ctx := context.Background()

	mockPool.ExpectQuery(`FROM products`).
		WillReturnRows(pgxmock.NewRows([]string{"total", "active", "in_stock", "avg"}).
			AddRow(int64(12), int64(10), int64(8), 24.5))
	mockPool.ExpectQuery(`FROM categories WHERE status = 'active'`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(3)))

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), stats.TotalProducts)
	assert.Equal(t, int64(2), stats.OutOfStock)
	require.NotNil(t, stats.InactiveProducts)
	assert.Equal(t, int64(2), *stats.InactiveProducts)
	require.NotNil(t, stats.ActiveCategories)
	assert.Equal(t, int64(3), *stats.ActiveCategories)
	require.NoError(t, mockPool.ExpectationsWereMet())
}
