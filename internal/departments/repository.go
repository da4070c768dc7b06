package departments

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atrium-ops/atrium/internal/audit"
	"github.com/atrium-ops/atrium/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence.
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

const selectDepartment = `SELECT id, name, code,
	COALESCE(head_user_id, 0), COALESCE(deputy_head_user_id, 0),
	is_active, version, created_at, updated_at
FROM departments`

func scanDepartment(row pgx.Row) (Department, error) {
	var dept Department
	err := row.Scan(&dept.ID, &dept.Name, &dept.Code, &dept.HeadUserID, &dept.DeputyHeadUserID,
		&dept.IsActive, &dept.Version, &dept.CreatedAt, &dept.UpdatedAt)
	if err != nil {
		return Department{}, err
	}
	return dept, nil
}

// Get loads one department.
func (r *Repository) Get(ctx context.Context, id int64) (Department, error) {
	dept, err := scanDepartment(r.pool.QueryRow(ctx, selectDepartment+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Department{}, ErrNotFound
		}
		return Department{}, err
	}
	return dept, nil
}

// GetByCode loads one department by its short code.
func (r *Repository) GetByCode(ctx context.Context, code string) (Department, error) {
	dept, err := scanDepartment(r.pool.QueryRow(ctx, selectDepartment+` WHERE code = $1`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Department{}, ErrNotFound
		}
		return Department{}, err
	}
	return dept, nil
}

// List returns the directory ordered by name.
func (r *Repository) List(ctx context.Context, activeOnly bool) ([]Department, error) {
	query := selectDepartment
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY name`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []Department
	for rows.Next() {
		dept, err := scanDepartment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, dept)
	}
	return result, rows.Err()
}

func (t *txRepo) Insert(ctx context.Context, dept Department) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO departments
	(name, code, head_user_id, deputy_head_user_id, is_active, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
RETURNING id`,
		dept.Name, dept.Code, nullableID(dept.HeadUserID), nullableID(dept.DeputyHeadUserID),
		dept.IsActive, dept.Version).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrDuplicateCode
		}
		return 0, err
	}
	return id, nil
}

func (t *txRepo) Update(ctx context.Context, dept Department) error {
	tag, err := t.tx.Exec(ctx, `UPDATE departments SET
	name = $1, code = $2, head_user_id = $3, deputy_head_user_id = $4, is_active = $5,
	version = version + 1, updated_at = NOW()
WHERE id = $6 AND version = $7`,
		dept.Name, dept.Code, nullableID(dept.HeadUserID), nullableID(dept.DeputyHeadUserID),
		dept.IsActive, dept.ID, dept.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConcurrentModification
	}
	return nil
}

func (t *txRepo) AppendAudit(ctx context.Context, log audit.Log) error {
	return audit.RecordTx(ctx, t.tx, log)
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
