package product

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/commercekit/catalog-api/internal/api"
)

const uniqueViolation = "23505"

var _ ProductRepo = (*PostgresProductRepo)(nil)

// ProductRepo is the persistence contract for products.
type ProductRepo interface {
	// List returns active products only, joined with their category name.
	List(ctx context.Context, filter ListProductsFilter) ([]*Product, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Product, error)

	// Create validates inside the transaction that the category exists and is
	// active, and that the SKU is free.
	Create(ctx context.Context, req CreateProductRequest, createdBy uuid.UUID) (*Product, error)

	Update(ctx context.Context, id uuid.UUID, params UpdateProductParams) (*Product, error)
	SetStatus(ctx context.Context, id uuid.UUID, status api.Status) (*Product, error)
	Stats(ctx context.Context) (*ProductStats, error)
}

// PgxPool is the subset of pgxpool.Pool the repository uses; pgxmock
// satisfies it in tests.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ PgxPool = (*pgxpool.Pool)(nil)

type PostgresProductRepo struct {
	logger *slog.Logger
	pgpool PgxPool
}

func NewPostgresProductRepo(pgpool PgxPool, logger *slog.Logger) *PostgresProductRepo {
	return &PostgresProductRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

const productJoinedColumns = `p.id, p.name, p.description, p.category_id, c.name,
       p.price, p.stock_quantity, p.sku, p.status, p.created_by, p.created_at, p.updated_at`

const productReturning = `id, name, description, category_id, price, stock_quantity,
       sku, status, created_by, created_at, updated_at`

func scanProductJoined(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.CategoryID, &p.CategoryName,
		&p.Price, &p.StockQuantity, &p.SKU, &p.Status, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, api.ErrNotFound
		}
		return nil, fmt.Errorf("scan product: %w", err)
	}
	p.Derive()
	return &p, nil
}

func scanProductBase(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.CategoryID,
		&p.Price, &p.StockQuantity, &p.SKU, &p.Status, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, api.ErrNotFound
		}
		return nil, fmt.Errorf("scan product: %w", err)
	}
	p.Derive()
	return &p, nil
}

// orderableColumns whitelists the ordering keys the list endpoint accepts.
var orderableColumns = map[string]string{
	"id":             "p.id",
	"name":           "p.name",
	"price":          "p.price",
	"created_at":     "p.created_at",
	"stock_quantity": "p.stock_quantity",
}

// orderClause maps an ordering key ("price", "-created_at") to a safe ORDER BY
// expression. Unknown keys fall back to the default id ascending.
func orderClause(ordering string) string {
	direction := "ASC"
	key := ordering
	if strings.HasPrefix(ordering, "-") {
		direction = "DESC"
		key = ordering[1:]
	}
	column, ok := orderableColumns[key]
	if !ok {
		return "p.id ASC"
	}
	return column + " " + direction
}

func (r *PostgresProductRepo) List(ctx context.Context, filter ListProductsFilter) ([]*Product, error) {
	ctx, span := otel.Tracer("ProductRepo").Start(ctx, "List", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "products"),
	))
	defer span.End()

	var sb strings.Builder
	sb.WriteString("SELECT " + productJoinedColumns +
		" FROM products p JOIN categories c ON c.id = p.category_id WHERE p.status = 'active'")
	args := []any{}

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		fmt.Fprintf(&sb, " AND (p.name ILIKE $%d OR p.description ILIKE $%d OR p.sku ILIKE $%d)", n, n, n)
	}
	if filter.MinPrice != nil {
		args = append(args, *filter.MinPrice)
		fmt.Fprintf(&sb, " AND p.price >= $%d", len(args))
	}
	if filter.MaxPrice != nil {
		args = append(args, *filter.MaxPrice)
		fmt.Fprintf(&sb, " AND p.price <= $%d", len(args))
	}
	if filter.InStock != nil {
		if *filter.InStock {
			sb.WriteString(" AND p.stock_quantity > 0")
		} else {
			sb.WriteString(" AND p.stock_quantity = 0")
		}
	}
	sb.WriteString(" ORDER BY " + orderClause(filter.Ordering))

	rows, err := r.pgpool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list products: query failed: %w", err)
	}
	defer rows.Close()

	var products []*Product
	for rows.Next() {
		p, err := scanProductJoined(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list products: row iteration: %w", err)
	}
	return products, nil
}

func (r *PostgresProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	row := r.pgpool.QueryRow(ctx,
		"SELECT "+productJoinedColumns+
			" FROM products p JOIN categories c ON c.id = p.category_id WHERE p.id = $1", id)
	return scanProductJoined(row)
}

// activeCategory returns the category name after checking existence and
// active state on the supplied transaction.
func activeCategory(ctx context.Context, tx pgx.Tx, categoryID uuid.UUID) (string, error) {
	var name string
	var status api.Status
	err := tx.QueryRow(ctx,
		"SELECT name, status FROM categories WHERE id = $1", categoryID).
		Scan(&name, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("category does not exist: %w", api.ErrValidation)
		}
		return "", fmt.Errorf("category check: %w", err)
	}
	if !status.IsActive() {
		return "", fmt.Errorf("cannot assign product to an inactive category: %w", api.ErrValidation)
	}
	return name, nil
}

func skuTaken(ctx context.Context, tx pgx.Tx, sku string, excludeID uuid.UUID) (bool, error) {
	var taken bool
	err := tx.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM products WHERE sku = $1 AND id <> $2)",
		sku, excludeID).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("sku check: %w", err)
	}
	return taken, nil
}

func (r *PostgresProductRepo) Create(ctx context.Context, req CreateProductRequest, createdBy uuid.UUID) (*Product, error) {
	ctx, span := otel.Tracer("ProductRepo").Start(ctx, "Create", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "products"),
	))
	defer span.End()

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("create product: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	categoryName, err := activeCategory(ctx, tx, req.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	taken, err := skuTaken(ctx, tx, req.SKU, uuid.Nil)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	if taken {
		return nil, fmt.Errorf("product with this SKU already exists: %w", api.ErrConflict)
	}

	row := tx.QueryRow(ctx,
		`INSERT INTO products (name, description, category_id, price, stock_quantity, sku, created_by)
         VALUES ($1, $2, $3, $4, $5, $6, $7)
         RETURNING `+productReturning,
		req.Name, req.Description, req.CategoryID, req.Price, req.StockQuantity, req.SKU, createdBy)

	product, err := scanProductBase(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("product with this SKU already exists: %w", api.ErrConflict)
		}
		return nil, fmt.Errorf("create product: insert: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("product with this SKU already exists: %w", api.ErrConflict)
		}
		return nil, fmt.Errorf("create product: commit: %w", err)
	}

	product.CategoryName = categoryName
	return product, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func (r *PostgresProductRepo) Update(ctx context.Context, id uuid.UUID, params UpdateProductParams) (*Product, error) {
	ctx, span := otel.Tracer("ProductRepo").Start(ctx, "Update", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "products"),
	))
	defer span.End()

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("update product: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if params.CategoryID != nil {
		if _, err := activeCategory(ctx, tx, *params.CategoryID); err != nil {
			return nil, fmt.Errorf("update product: %w", err)
		}
	}
	if params.SKU != nil {
		taken, err := skuTaken(ctx, tx, *params.SKU, id)
		if err != nil {
			return nil, fmt.Errorf("update product: %w", err)
		}
		if taken {
			return nil, fmt.Errorf("product with this SKU already exists: %w", api.ErrConflict)
		}
	}

	setClauses := []string{}
	args := []any{}
	addSet := func(column string, value any) {
		args = append(args, value)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if params.Name != nil {
		addSet("name", *params.Name)
	}
	if params.Description != nil {
		addSet("description", *params.Description)
	}
	if params.CategoryID != nil {
		addSet("category_id", *params.CategoryID)
	}
	if params.Price != nil {
		addSet("price", *params.Price)
	}
	if params.StockQuantity != nil {
		addSet("stock_quantity", *params.StockQuantity)
	}
	if params.SKU != nil {
		addSet("sku", *params.SKU)
	}
	addSet("updated_at", time.Now())
	args = append(args, id)

	query := fmt.Sprintf("UPDATE products SET %s WHERE id = $%d RETURNING %s",
		strings.Join(setClauses, ", "), len(args), productReturning)

	product, err := scanProductBase(tx.QueryRow(ctx, query, args...))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("product with this SKU already exists: %w", api.ErrConflict)
		}
		return nil, err
	}

	err = tx.QueryRow(ctx, "SELECT name FROM categories WHERE id = $1", product.CategoryID).
		Scan(&product.CategoryName)
	if err != nil {
		return nil, fmt.Errorf("update product: category name: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("product with this SKU already exists: %w", api.ErrConflict)
		}
		return nil, fmt.Errorf("update product: commit: %w", err)
	}
	return product, nil
}

func (r *PostgresProductRepo) SetStatus(ctx context.Context, id uuid.UUID, status api.Status) (*Product, error) {
	row := r.pgpool.QueryRow(ctx,
		`UPDATE products SET status = $1, updated_at = $2 WHERE id = $3
         RETURNING `+productReturning,
		status, time.Now(), id)
	return scanProductBase(row)
}

func (r *PostgresProductRepo) Stats(ctx context.Context) (*ProductStats, error) {
	var (
		total, active, inStock int64
		avgPrice               float64
		activeCategories       int64
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := r.pgpool.QueryRow(ctx,
			`SELECT count(*),
                    count(*) FILTER (WHERE status = 'active'),
                    count(*) FILTER (WHERE status = 'active' AND stock_quantity > 0),
                    COALESCE(avg(price) FILTER (WHERE status = 'active'), 0)
             FROM products`).
			Scan(&total, &active, &inStock, &avgPrice)
		if err != nil {
			return fmt.Errorf("product totals: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		err := r.pgpool.QueryRow(ctx,
			`SELECT count(*) FROM categories WHERE status = 'active'`).
			Scan(&activeCategories)
		if err != nil {
			return fmt.Errorf("active categories: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("product stats: %w", err)
	}

	inactive := total - active
	return &ProductStats{
		TotalProducts:          active,
		InStock:                inStock,
		OutOfStock:             active - inStock,
		TotalIncludingInactive: &total,
		InactiveProducts:       &inactive,
		ActiveCategories:       &activeCategories,
		AveragePrice:           &avgPrice,
	}, nil
}
