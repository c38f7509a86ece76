package category

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
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

var _ CategoryRepo = (*PostgresCategoryRepo)(nil)

// CategoryRepo is the persistence contract for categories.
type CategoryRepo interface {
	// List returns active categories only, ordered by name.
	List(ctx context.Context, filter ListCategoriesFilter) ([]*Category, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Category, error)
	Create(ctx context.Context, name, description string, createdBy uuid.UUID) (*Category, error)
	Update(ctx context.Context, id uuid.UUID, name, description *string) (*Category, error)
	SetStatus(ctx context.Context, id uuid.UUID, status api.Status) (*Category, error)
	Stats(ctx context.Context) (*CategoryStats, error)
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

type PostgresCategoryRepo struct {
	logger *slog.Logger
	pgpool PgxPool
}

func NewPostgresCategoryRepo(pgpool PgxPool, logger *slog.Logger) *PostgresCategoryRepo {
	return &PostgresCategoryRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

// categoryColumns includes the active-products count as a correlated subquery
// so detail rows carry products_count without a second round trip.
const categoryColumns = `c.id, c.name, c.description, c.status, c.created_by,
       (SELECT count(*) FROM products p WHERE p.category_id = c.id AND p.status = 'active'),
       c.created_at, c.updated_at`

func scanCategory(row pgx.Row) (*Category, error) {
	var c Category
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Status, &c.CreatedBy,
		&c.ProductsCount, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, api.ErrNotFound
		}
		return nil, fmt.Errorf("scan category: %w", err)
	}
	c.Derive()
	return &c, nil
}

func (r *PostgresCategoryRepo) List(ctx context.Context, filter ListCategoriesFilter) ([]*Category, error) {
	query := "SELECT " + categoryColumns + " FROM categories c WHERE c.status = 'active'"
	args := []any{}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		query += " AND (c.name ILIKE $1 OR c.description ILIKE $1)"
	}
	query += " ORDER BY c.name ASC"

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: query failed: %w", err)
	}
	defer rows.Close()

	var categories []*Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list categories: row iteration: %w", err)
	}
	return categories, nil
}

func (r *PostgresCategoryRepo) GetByID(ctx context.Context, id uuid.UUID) (*Category, error) {
	row := r.pgpool.QueryRow(ctx,
		"SELECT "+categoryColumns+" FROM categories c WHERE c.id = $1", id)
	return scanCategory(row)
}

func (r *PostgresCategoryRepo) Create(ctx context.Context, name, description string, createdBy uuid.UUID) (*Category, error) {
	ctx, span := otel.Tracer("CategoryRepo").Start(ctx, "Create", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "categories"),
	))
	defer span.End()

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("create category: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var taken bool
	err = tx.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM categories WHERE name = $1)", name).Scan(&taken)
	if err != nil {
		return nil, fmt.Errorf("create category: name check: %w", err)
	}
	if taken {
		return nil, fmt.Errorf("category with this name already exists: %w", api.ErrConflict)
	}

	row := tx.QueryRow(ctx,
		`INSERT INTO categories (name, description, created_by)
         VALUES ($1, $2, $3)
         RETURNING `+categoryReturning,
		name, description, createdBy)

	category, err := scanCategoryInsert(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("category with this name already exists: %w", api.ErrConflict)
		}
		return nil, fmt.Errorf("create category: insert: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("category with this name already exists: %w", api.ErrConflict)
		}
		return nil, fmt.Errorf("create category: commit: %w", err)
	}
	return category, nil
}

// categoryReturning is the RETURNING column list for insert/update
// statements, which have no products_count subquery.
const categoryReturning = "id, name, description, status, created_by, created_at, updated_at"

func scanCategoryInsert(row pgx.Row) (*Category, error) {
	var c Category
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Status, &c.CreatedBy,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, api.ErrNotFound
		}
		return nil, fmt.Errorf("scan category: %w", err)
	}
	c.Derive()
	return &c, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func (r *PostgresCategoryRepo) Update(ctx context.Context, id uuid.UUID, name, description *string) (*Category, error) {
	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("update category: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if name != nil {
		var taken bool
		err = tx.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM categories WHERE name = $1 AND id <> $2)",
			*name, id).Scan(&taken)
		if err != nil {
			return nil, fmt.Errorf("update category: name check: %w", err)
		}
		if taken {
			return nil, fmt.Errorf("category with this name already exists: %w", api.ErrConflict)
		}
	}

	row := tx.QueryRow(ctx,
		`UPDATE categories SET
            name = COALESCE($1, name),
            description = COALESCE($2, description),
            updated_at = $3
         WHERE id = $4
         RETURNING `+categoryReturning,
		name, description, time.Now(), id)

	category, err := scanCategoryInsert(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("category with this name already exists: %w", api.ErrConflict)
		}
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("update category: commit: %w", err)
	}
	return category, nil
}

func (r *PostgresCategoryRepo) SetStatus(ctx context.Context, id uuid.UUID, status api.Status) (*Category, error) {
	row := r.pgpool.QueryRow(ctx,
		`UPDATE categories SET status = $1, updated_at = $2 WHERE id = $3
         RETURNING `+categoryReturning,
		status, time.Now(), id)
	return scanCategoryInsert(row)
}

func (r *PostgresCategoryRepo) Stats(ctx context.Context) (*CategoryStats, error) {
	stats := &CategoryStats{}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := r.pgpool.QueryRow(ctx,
			`SELECT count(*),
                    count(*) FILTER (WHERE status = 'active')
             FROM categories`).
			Scan(&stats.TotalCategories, &stats.ActiveCategories)
		if err != nil {
			return fmt.Errorf("category totals: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		err := r.pgpool.QueryRow(ctx,
			`SELECT count(DISTINCT category_id) FROM products WHERE status = 'active'`).
			Scan(&stats.WithProducts)
		if err != nil {
			return fmt.Errorf("categories with products: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("category stats: %w", err)
	}

	stats.InactiveCategories = stats.TotalCategories - stats.ActiveCategories
	return stats, nil
}
