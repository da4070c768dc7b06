package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atrium-ops/atrium/internal/audit"
	"github.com/atrium-ops/atrium/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for accounts and their
// role assignment rows.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps the callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const selectUser = `SELECT u.id, u.email, u.name, u.department_id, u.is_active,
	u.version, u.created_at, u.updated_at,
	COALESCE(array_agg(ur.role_name) FILTER (WHERE ur.role_name IS NOT NULL), '{}')
FROM users u
LEFT JOIN user_roles ur ON ur.user_id = u.id`

func scanUser(row pgx.Row) (User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.DepartmentID, &user.IsActive,
		&user.Version, &user.CreatedAt, &user.UpdatedAt, &user.Roles)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// Get loads one account with its role assignments.
func (r *Repository) Get(ctx context.Context, id int64) (User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, selectUser+` WHERE u.id = $1 GROUP BY u.id`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return user, nil
}

// GetByEmail loads one account by its lowercased email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, selectUser+` WHERE u.email = $1 GROUP BY u.id`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return user, nil
}

// List returns accounts matching the filters, newest first.
func (r *Repository) List(ctx context.Context, filters ListFilters) ([]User, error) {
	var sb strings.Builder
	sb.WriteString(selectUser + ` WHERE 1=1`)
	args := make([]any, 0, 4)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filters.DepartmentID != 0 {
		sb.WriteString(` AND u.department_id = ` + arg(filters.DepartmentID))
	}
	if filters.UserID != 0 {
		sb.WriteString(` AND u.id = ` + arg(filters.UserID))
	}
	if filters.ActiveOnly {
		sb.WriteString(` AND u.is_active`)
	}
	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}
	sb.WriteString(` GROUP BY u.id ORDER BY u.created_at DESC LIMIT ` + arg(limit) + ` OFFSET ` + arg(filters.Offset))

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, user)
	}
	return result, rows.Err()
}

func (t *txRepo) Insert(ctx context.Context, u User, passwordHash string) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO users
	(email, name, password_hash, department_id, is_active, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
RETURNING id`,
		u.Email, u.Name, passwordHash, u.DepartmentID, u.IsActive, u.Version).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrDuplicateEmail
		}
		return 0, err
	}
	return id, nil
}

func (t *txRepo) Update(ctx context.Context, u User) error {
	tag, err := t.tx.Exec(ctx, `UPDATE users SET
	email = $1, name = $2, department_id = $3, is_active = $4,
	version = version + 1, updated_at = NOW()
WHERE id = $5 AND version = $6`,
		u.Email, u.Name, u.DepartmentID, u.IsActive, u.ID, u.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConcurrentModification
	}
	return nil
}

func (t *txRepo) Delete(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) AssignRole(ctx context.Context, userID int64, role string) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO user_roles (user_id, role_name)
VALUES ($1, $2)
ON CONFLICT (user_id, role_name) DO NOTHING`, userID, role)
	return err
}

func (t *txRepo) RemoveRole(ctx context.Context, userID int64, role string) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role_name = $2`, userID, role)
	return err
}

func (t *txRepo) AppendAudit(ctx context.Context, log audit.Log) error {
	return audit.RecordTx(ctx, t.tx, log)
}
