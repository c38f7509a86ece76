package user

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

	"github.com/commercekit/catalog-api/app/observability/metrics"
	"github.com/commercekit/catalog-api/internal/api"
)

const uniqueViolation = "23505"

var _ UserRepo = (*PostgresUserRepo)(nil)

// UserRepo is the persistence contract for identity management.
type UserRepo interface {
	List(ctx context.Context, filter ListUsersFilter) ([]*api.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*api.User, error)
	Create(ctx context.Context, params CreateUserParams) (*api.User, error)

	// Update applies a partial update inside a transaction. Username/email
	// changes re-run the uniqueness check excluding the updated row.
	Update(ctx context.Context, id uuid.UUID, params UpdateUserParams) (*api.User, error)

	// Delete removes the row and returns the deleted account's email.
	// Refresh tokens go with it via FK cascade.
	Delete(ctx context.Context, id uuid.UUID) (string, error)

	SetStatus(ctx context.Context, id uuid.UUID, status api.Status) (*api.User, error)
	Stats(ctx context.Context) (*UserStats, error)
}

// PgxPool is the subset of pgxpool.Pool the repository uses; pgxmock
// satisfies it in tests.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ PgxPool = (*pgxpool.Pool)(nil)

type PostgresUserRepo struct {
	logger *slog.Logger
	pgpool PgxPool
}

func NewPostgresUserRepo(pgpool PgxPool, logger *slog.Logger) *PostgresUserRepo {
	return &PostgresUserRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

const userColumns = `id, username, email, first_name, last_name, role, status,
       password_hash, created_at, updated_at, last_login_at`

func scanUser(row pgx.Row) (*api.User, error) {
	var u api.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName,
		&u.Role, &u.Status, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt, &u.LastLoginAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, api.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Derive()
	return &u, nil
}

func (r *PostgresUserRepo) List(ctx context.Context, filter ListUsersFilter) ([]*api.User, error) {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "List", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "users"),
	))
	defer span.End()

	var sb strings.Builder
	sb.WriteString("SELECT " + userColumns + " FROM users WHERE 1=1")
	args := []any{}

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		fmt.Fprintf(&sb,
			" AND (username ILIKE $%d OR email ILIKE $%d OR first_name ILIKE $%d OR last_name ILIKE $%d)",
			n, n, n, n)
	}
	if filter.Role != nil {
		args = append(args, *filter.Role)
		fmt.Fprintf(&sb, " AND role = $%d", len(args))
	}
	if filter.IsActive != nil {
		status := api.StatusInactive
		if *filter.IsActive {
			status = api.StatusActive
		}
		args = append(args, status)
		fmt.Fprintf(&sb, " AND status = $%d", len(args))
	}
	sb.WriteString(" ORDER BY created_at DESC")

	rows, err := r.pgpool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list users: query failed: %w", err)
	}
	defer rows.Close()

	var users []*api.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: row iteration: %w", err)
	}
	return users, nil
}

func (r *PostgresUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*api.User, error) {
	row := r.pgpool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1", id)
	return scanUser(row)
}

// uniquenessTaken reports whether another row (excluding excludeID) already
// holds the email or username. Runs on the supplied transaction.
func uniquenessTaken(ctx context.Context, tx pgx.Tx, column, value string, excludeID uuid.UUID) (bool, error) {
	var taken bool
	err := tx.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM users WHERE "+column+" = $1 AND id <> $2)",
		value, excludeID).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("uniqueness check on %s: %w", column, err)
	}
	return taken, nil
}

func (r *PostgresUserRepo) Create(ctx context.Context, params CreateUserParams) (*api.User, error) {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "Create", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "users"),
	))
	defer span.End()

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("create user: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	taken, err := uniquenessTaken(ctx, tx, "email", params.Email, uuid.Nil)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	if taken {
		return nil, fmt.Errorf("user with this email already exists: %w", api.ErrConflict)
	}

	taken, err = uniquenessTaken(ctx, tx, "username", params.Username, uuid.Nil)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	if taken {
		return nil, fmt.Errorf("username already exists: %w", api.ErrConflict)
	}

	row := tx.QueryRow(ctx,
		`INSERT INTO users (username, email, first_name, last_name, role, status, password_hash)
         VALUES ($1, $2, $3, $4, $5, $6, $7)
         RETURNING `+userColumns,
		params.Username, params.Email, params.FirstName, params.LastName,
		params.Role, params.Status, params.PasswordHash)

	user, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("user already exists: %w", api.ErrConflict)
		}
		return nil, fmt.Errorf("create user: insert: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("user already exists: %w", api.ErrConflict)
		}
		return nil, fmt.Errorf("create user: commit: %w", err)
	}
	return user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func (r *PostgresUserRepo) Update(ctx context.Context, id uuid.UUID, params UpdateUserParams) (*api.User, error) {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "Update", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "users"),
	))
	defer span.End()

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("update user: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if params.Email != nil {
		taken, err := uniquenessTaken(ctx, tx, "email", *params.Email, id)
		if err != nil {
			return nil, fmt.Errorf("update user: %w", err)
		}
		if taken {
			return nil, fmt.Errorf("user with this email already exists: %w", api.ErrConflict)
		}
	}
	if params.Username != nil {
		taken, err := uniquenessTaken(ctx, tx, "username", *params.Username, id)
		if err != nil {
			return nil, fmt.Errorf("update user: %w", err)
		}
		if taken {
			return nil, fmt.Errorf("username already exists: %w", api.ErrConflict)
		}
	}

	setClauses := []string{}
	args := []any{}
	addSet := func(column string, value any) {
		args = append(args, value)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if params.Username != nil {
		addSet("username", *params.Username)
	}
	if params.Email != nil {
		addSet("email", *params.Email)
	}
	if params.FirstName != nil {
		addSet("first_name", *params.FirstName)
	}
	if params.LastName != nil {
		addSet("last_name", *params.LastName)
	}
	if params.Role != nil {
		addSet("role", *params.Role)
	}
	if params.Status != nil {
		addSet("status", *params.Status)
	}
	if len(setClauses) == 0 {
		// Nothing to change; return the current row.
		user, err := scanUser(tx.QueryRow(ctx,
			"SELECT "+userColumns+" FROM users WHERE id = $1", id))
		if err != nil {
			return nil, err
		}
		if err = tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("update user: commit: %w", err)
		}
		return user, nil
	}

	addSet("updated_at", time.Now())
	args = append(args, id)

	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d RETURNING %s",
		strings.Join(setClauses, ", "), len(args), userColumns)

	user, err := scanUser(tx.QueryRow(ctx, query, args...))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("user already exists: %w", api.ErrConflict)
		}
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("user already exists: %w", api.ErrConflict)
		}
		return nil, fmt.Errorf("update user: commit: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepo) Delete(ctx context.Context, id uuid.UUID) (string, error) {
	var email string
	err := r.pgpool.QueryRow(ctx,
		"DELETE FROM users WHERE id = $1 RETURNING email", id).Scan(&email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", api.ErrNotFound
		}
		return "", fmt.Errorf("delete user: db delete failed: %w", err)
	}
	return email, nil
}

func (r *PostgresUserRepo) SetStatus(ctx context.Context, id uuid.UUID, status api.Status) (*api.User, error) {
	row := r.pgpool.QueryRow(ctx,
		`UPDATE users SET status = $1, updated_at = $2 WHERE id = $3
         RETURNING `+userColumns,
		status, time.Now(), id)
	return scanUser(row)
}

// Stats runs the aggregate counts in parallel. Each count is an independent
// read; slight skew between them under concurrent writes is acceptable.
func (r *PostgresUserRepo) Stats(ctx context.Context) (*UserStats, error) {
	start := time.Now()
	defer func() {
		metrics.Get().DbQueryDurationSeconds.Record(ctx, time.Since(start).Seconds())
	}()

	stats := &UserStats{}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := r.pgpool.QueryRow(ctx,
			`SELECT count(*),
                    count(*) FILTER (WHERE status = 'active')
             FROM users`).
			Scan(&stats.TotalUsers, &stats.ActiveUsers)
		if err != nil {
			return fmt.Errorf("user totals: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		err := r.pgpool.QueryRow(ctx,
			`SELECT count(*) FILTER (WHERE role = 'admin'),
                    count(*) FILTER (WHERE role = 'moderator'),
                    count(*) FILTER (WHERE role = 'user')
             FROM users`).
			Scan(&stats.AdminCount, &stats.ModeratorCount, &stats.UserCount)
		if err != nil {
			return fmt.Errorf("role counts: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		err := r.pgpool.QueryRow(ctx,
			`SELECT count(*) FROM users WHERE created_at >= $1`,
			time.Now().AddDate(0, 0, -7)).
			Scan(&stats.RecentRegistrations)
		if err != nil {
			return fmt.Errorf("recent registrations: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("user stats: %w", err)
	}

	stats.InactiveUsers = stats.TotalUsers - stats.ActiveUsers
	return stats, nil
}
