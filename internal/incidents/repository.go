package incidents

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

const selectIncident = `SELECT i.id, i.title, i.description, i.reported_by,
	COALESCE(u.department_id, 0), COALESCE(i.assigned_department_id, 0),
	COALESCE(i.assigned_to, 0), i.status, i.resolved_at,
	COALESCE(i.resolution_notes, ''), i.version, i.created_at, i.updated_at
FROM incidents i
JOIN users u ON u.id = i.reported_by`

func scanIncident(row pgx.Row) (Incident, error) {
	var inc Incident
	var resolvedAt *time.Time
	err := row.Scan(&inc.ID, &inc.Title, &inc.Description, &inc.ReportedBy,
		&inc.ReporterDepartmentID, &inc.AssignedDepartmentID, &inc.AssignedTo,
		&inc.Status, &resolvedAt, &inc.ResolutionNotes, &inc.Version,
		&inc.CreatedAt, &inc.UpdatedAt)
	if err != nil {
		return Incident{}, err
	}
	if resolvedAt != nil {
		inc.ResolvedAt = *resolvedAt
	}
	return inc, nil
}

// Get loads one incident with its reporter's department joined in.
func (r *Repository) Get(ctx context.Context, id int64) (Incident, error) {
	inc, err := scanIncident(r.pool.QueryRow(ctx, selectIncident+` WHERE i.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Incident{}, ErrNotFound
		}
		return Incident{}, err
	}
	return inc, nil
}

// List returns incidents matching the filters, newest first.
func (r *Repository) List(ctx context.Context, filters ListFilters) ([]Incident, error) {
	var sb strings.Builder
	sb.WriteString(selectIncident + ` WHERE 1=1`)
	args := make([]any, 0, 5)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filters.Status != "" {
		sb.WriteString(` AND i.status = ` + arg(string(filters.Status)))
	}
	if filters.DepartmentID != 0 {
		sb.WriteString(` AND i.assigned_department_id = ` + arg(filters.DepartmentID))
	}
	if filters.ReportedBy != 0 {
		sb.WriteString(` AND i.reported_by = ` + arg(filters.ReportedBy))
	}
	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}
	sb.WriteString(` ORDER BY i.created_at DESC LIMIT ` + arg(limit) + ` OFFSET ` + arg(filters.Offset))

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, inc)
	}
	return result, rows.Err()
}

func (t *txRepo) Insert(ctx context.Context, inc Incident) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO incidents
	(title, description, reported_by, assigned_department_id, assigned_to, status, resolution_notes, resolved_at, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
RETURNING id`,
		inc.Title, inc.Description, inc.ReportedBy, nullableID(inc.AssignedDepartmentID),
		nullableID(inc.AssignedTo), string(inc.Status), inc.ResolutionNotes,
		nullableTime(inc.ResolvedAt), inc.Version).Scan(&id)
	return id, err
}

func (t *txRepo) Update(ctx context.Context, inc Incident) error {
	tag, err := t.tx.Exec(ctx, `UPDATE incidents SET
	title = $1, description = $2, assigned_department_id = $3, assigned_to = $4,
	status = $5, resolved_at = $6, resolution_notes = $7,
	version = version + 1, updated_at = NOW()
WHERE id = $8 AND version = $9`,
		inc.Title, inc.Description, nullableID(inc.AssignedDepartmentID),
		nullableID(inc.AssignedTo), string(inc.Status), nullableTime(inc.ResolvedAt),
		inc.ResolutionNotes, inc.ID, inc.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConcurrentModification
	}
	return nil
}

func (t *txRepo) Delete(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM incidents WHERE id = $1`, id)
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

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func nullableTime(ts time.Time) any {
	if ts.IsZero() {
		return nil
	}
	return ts
}
