package visitors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
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

const selectVisit = `SELECT id, visitor_name, host_user_id, department_id,
	COALESCE(purpose, ''), check_in_time, check_out_time, version, created_at
FROM visitor_visits`

func scanVisit(row pgx.Row) (VisitorVisit, error) {
	var visit VisitorVisit
	var checkIn, checkOut *time.Time
	err := row.Scan(&visit.ID, &visit.VisitorName, &visit.HostUserID, &visit.DepartmentID,
		&visit.Purpose, &checkIn, &checkOut, &visit.Version, &visit.CreatedAt)
	if err != nil {
		return VisitorVisit{}, err
	}
	if checkIn != nil {
		visit.CheckInTime = *checkIn
	}
	if checkOut != nil {
		visit.CheckOutTime = *checkOut
	}
	return visit, nil
}

// Get loads one visit.
func (r *Repository) Get(ctx context.Context, id int64) (VisitorVisit, error) {
	visit, err := scanVisit(r.pool.QueryRow(ctx, selectVisit+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return VisitorVisit{}, ErrNotFound
		}
		return VisitorVisit{}, err
	}
	return visit, nil
}

// List returns visits matching the filters, newest first.
func (r *Repository) List(ctx context.Context, filters ListFilters) ([]VisitorVisit, error) {
	var sb strings.Builder
	sb.WriteString(selectVisit + ` WHERE 1=1`)
	args := make([]any, 0, 4)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filters.DepartmentID != 0 {
		sb.WriteString(` AND department_id = ` + arg(filters.DepartmentID))
	}
	if filters.HostUserID != 0 {
		sb.WriteString(` AND host_user_id = ` + arg(filters.HostUserID))
	}
	if filters.ActiveOnly {
		sb.WriteString(` AND check_in_time IS NOT NULL AND check_out_time IS NULL`)
	}
	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}
	sb.WriteString(` ORDER BY created_at DESC LIMIT ` + arg(limit) + ` OFFSET ` + arg(filters.Offset))

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []VisitorVisit
	for rows.Next() {
		visit, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, visit)
	}
	return result, rows.Err()
}

func (t *txRepo) Insert(ctx context.Context, visit VisitorVisit) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO visitor_visits
	(visitor_name, host_user_id, department_id, purpose, check_in_time, check_out_time, version, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
RETURNING id`,
		visit.VisitorName, visit.HostUserID, visit.DepartmentID, visit.Purpose,
		nullableTime(visit.CheckInTime), nullableTime(visit.CheckOutTime), visit.Version).Scan(&id)
	return id, err
}

func (t *txRepo) Update(ctx context.Context, visit VisitorVisit) error {
	tag, err := t.tx.Exec(ctx, `UPDATE visitor_visits SET
	visitor_name = $1, purpose = $2, check_in_time = $3, check_out_time = $4,
	version = version + 1
WHERE id = $5 AND version = $6`,
		visit.VisitorName, visit.Purpose, nullableTime(visit.CheckInTime),
		nullableTime(visit.CheckOutTime), visit.ID, visit.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConcurrentModification
	}
	return nil
}

func (t *txRepo) Delete(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM visitor_visits WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) AppendAudit(ctx context.Context, log audit.Log) error {
	return audit.RecordTx(ctx, t.tx, log)
}

func nullableTime(ts time.Time) any {
	if ts.IsZero() {
		return nil
	}
	return ts
}
