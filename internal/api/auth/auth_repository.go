package auth

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

	"github.com/commercekit/catalog-api/internal/api"
)

const uniqueViolation = "23505"

var _ AuthRepo = (*PostgresAuthRepo)(nil)

// AuthRepo defines the contract for credential and refresh-token persistence.
type AuthRepo interface {
	GetUserByEmail(ctx context.Context, email string) (*api.User, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*api.User, error)

	// CreateUser inserts a new user inside a transaction. The uniqueness
	// pre-checks run in the same transaction; the table's unique constraints
	// remain the final authority and surface as api.ErrConflict.
	CreateUser(ctx context.Context, params CreateUserParams) (*api.User, error)

	StoreRefreshToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error
	GetRefreshToken(ctx context.Context, token string) (*RefreshToken, error)
	InvalidateRefreshToken(ctx context.Context, token string) error
	InvalidateAllUserRefreshTokens(ctx context.Context, userID uuid.UUID) error

	UpdatePassword(ctx context.Context, userID uuid.UUID, newHashedPassword string) error
	UpdateLastLogin(ctx context.Context, userID uuid.UUID) error
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

type PostgresAuthRepo struct {
	logger *slog.Logger
	pgpool PgxPool
}

func NewPostgresAuthRepo(pgpool PgxPool, logger *slog.Logger) *PostgresAuthRepo {
	return &PostgresAuthRepo{
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

func (r *PostgresAuthRepo) GetUserByEmail(ctx context.Context, email string) (*api.User, error) {
	row := r.pgpool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = $1", email)
	return scanUser(row)
}

func (r *PostgresAuthRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (*api.User, error) {
	row := r.pgpool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1", userID)
	return scanUser(row)
}

// CreateUser runs the uniqueness pre-check and the insert in one transaction
// so a concurrent registration with the same email/username is caught either
// by the pre-check or by the unique constraint at commit.
func (r *PostgresAuthRepo) CreateUser(ctx context.Context, params CreateUserParams) (*api.User, error) {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "CreateUser", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "users"),
	))
	defer span.End()

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("create user: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var taken bool
	err = tx.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)", params.Email).Scan(&taken)
	if err != nil {
		return nil, fmt.Errorf("create user: email check: %w", err)
	}
	if taken {
		return nil, fmt.Errorf("user with this email already exists: %w", api.ErrConflict)
	}

	err = tx.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)", params.Username).Scan(&taken)
	if err != nil {
		return nil, fmt.Errorf("create user: username check: %w", err)
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

func (r *PostgresAuthRepo) StoreRefreshToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	_, err := r.pgpool.Exec(ctx,
		`INSERT INTO refresh_tokens (user_id, token, expires_at)
         VALUES ($1, $2, $3)`,
		userID, token, expiresAt)
	if err != nil {
		return fmt.Errorf("store refresh token: db insert failed: %w", err)
	}
	return nil
}

func (r *PostgresAuthRepo) GetRefreshToken(ctx context.Context, token string) (*RefreshToken, error) {
	var rt RefreshToken
	err := r.pgpool.QueryRow(ctx,
		`SELECT id, user_id, token, expires_at, revoked_at, created_at
         FROM refresh_tokens WHERE token = $1`, token).
		Scan(&rt.ID, &rt.UserID, &rt.Token, &rt.ExpiresAt, &rt.RevokedAt, &rt.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("unknown refresh token: %w", api.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("get refresh token: query failed: %w", err)
	}
	return &rt, nil
}

// InvalidateRefreshToken adds the token to the durable denylist. Revoking an
// already-revoked or unknown token is not an error for logout purposes.
func (r *PostgresAuthRepo) InvalidateRefreshToken(ctx context.Context, token string) error {
	tag, err := r.pgpool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked_at = $1
         WHERE token = $2 AND revoked_at IS NULL`,
		time.Now(), token)
	if err != nil {
		return fmt.Errorf("invalidate refresh token: db update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.DebugContext(ctx, "Refresh token already revoked or unknown")
	}
	return nil
}

func (r *PostgresAuthRepo) InvalidateAllUserRefreshTokens(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pgpool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked_at = $1
         WHERE user_id = $2 AND revoked_at IS NULL`,
		time.Now(), userID)
	if err != nil {
		return fmt.Errorf("invalidate all tokens: db update failed: %w", err)
	}
	return nil
}

func (r *PostgresAuthRepo) UpdatePassword(ctx context.Context, userID uuid.UUID, newHashedPassword string) error {
	tag, err := r.pgpool.Exec(ctx,
		`UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`,
		newHashedPassword, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("update password: db update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return api.ErrNotFound
	}
	return nil
}

func (r *PostgresAuthRepo) UpdateLastLogin(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pgpool.Exec(ctx,
		`UPDATE users SET last_login_at = $1 WHERE id = $2`,
		time.Now(), userID)
	if err != nil {
		return fmt.Errorf("update last login: db update failed: %w", err)
	}
	return nil
}
