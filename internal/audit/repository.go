package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads audit rows from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TimelineWindow returns a window of audit rows, newest first.
func (r *Repository) TimelineWindow(ctx context.Context, filters TimelineFilters, limit, offset int) ([]TimelineRow, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT occurred_at, actor_id, action, entity, entity_id FROM audit_logs WHERE 1=1`)
	args := make([]any, 0, 7)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if !filters.From.IsZero() {
		sb.WriteString(` AND occurred_at >= ` + arg(filters.From))
	}
	if !filters.To.IsZero() {
		sb.WriteString(` AND occurred_at <= ` + arg(filters.To))
	}
	if filters.ActorID != 0 {
		sb.WriteString(` AND actor_id = ` + arg(filters.ActorID))
	}
	if filters.Entity != "" {
		sb.WriteString(` AND entity = ` + arg(filters.Entity))
	}
	if filters.Action != "" {
		sb.WriteString(` AND action = ` + arg(filters.Action))
	}
	sb.WriteString(` ORDER BY occurred_at DESC LIMIT ` + arg(limit) + ` OFFSET ` + arg(offset))

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []TimelineRow
	for rows.Next() {
		var row TimelineRow
		if err := rows.Scan(&row.At, &row.ActorID, &row.Action, &row.Entity, &row.EntityID); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
