package documents

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

const selectDocument = `SELECT id, title, department_id, created_by, is_confidential,
	COALESCE(file_path, ''), version, created_at, updated_at
FROM documents`

func scanDocument(row pgx.Row) (Document, error) {
	var doc Document
	err := row.Scan(&doc.ID, &doc.Title, &doc.DepartmentID, &doc.CreatedBy,
		&doc.IsConfidential, &doc.FilePath, &doc.Version, &doc.CreatedAt, &doc.UpdatedAt)
	return doc, err
}

const selectRouting = `SELECT id, document_id, from_user_id, to_user_id,
	COALESCE(message, ''), status, opened_at, version, created_at
FROM document_routings`

func scanRouting(row pgx.Row) (Routing, error) {
	var rt Routing
	var openedAt *time.Time
	err := row.Scan(&rt.ID, &rt.DocumentID, &rt.FromUserID, &rt.ToUserID,
		&rt.Message, &rt.Status, &openedAt, &rt.Version, &rt.CreatedAt)
	if err != nil {
		return Routing{}, err
	}
	if openedAt != nil {
		rt.OpenedAt = *openedAt
	}
	return rt, nil
}

// GetDocument loads one document.
func (r *Repository) GetDocument(ctx context.Context, id int64) (Document, error) {
	doc, err := scanDocument(r.pool.QueryRow(ctx, selectDocument+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

// GetRouting loads one routing hop.
func (r *Repository) GetRouting(ctx context.Context, id int64) (Routing, error) {
	rt, err := scanRouting(r.pool.QueryRow(ctx, selectRouting+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Routing{}, ErrNotFound
		}
		return Routing{}, err
	}
	return rt, nil
}

// WasRoutedTo reports whether the document appears anywhere in the user's
// routing trail.
func (r *Repository) WasRoutedTo(ctx context.Context, documentID, userID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM document_routings WHERE document_id = $1 AND to_user_id = $2)`,
		documentID, userID).Scan(&exists)
	return exists, err
}

// ListInbox returns routings addressed to the user, newest first.
func (r *Repository) ListInbox(ctx context.Context, userID int64, limit, offset int) ([]Routing, error) {
	rows, err := r.pool.Query(ctx,
		selectRouting+` WHERE to_user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []Routing
	for rows.Next() {
		rt, err := scanRouting(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rt)
	}
	return result, rows.Err()
}

// ListDocuments returns archive documents matching the filters.
func (r *Repository) ListDocuments(ctx context.Context, filters ListFilters) ([]Document, error) {
	var sb strings.Builder
	sb.WriteString(selectDocument + ` WHERE 1=1`)
	args := make([]any, 0, 4)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filters.DepartmentID != 0 {
		sb.WriteString(` AND department_id = ` + arg(filters.DepartmentID))
	}
	if filters.CreatedBy != 0 {
		sb.WriteString(` AND created_by = ` + arg(filters.CreatedBy))
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
	var result []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, doc)
	}
	return result, rows.Err()
}

func (t *txRepo) InsertDocument(ctx context.Context, doc Document) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO documents
	(title, department_id, created_by, is_confidential, file_path, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
RETURNING id`,
		doc.Title, doc.DepartmentID, doc.CreatedBy, doc.IsConfidential,
		doc.FilePath, doc.Version).Scan(&id)
	return id, err
}

func (t *txRepo) UpdateDocument(ctx context.Context, doc Document) error {
	tag, err := t.tx.Exec(ctx, `UPDATE documents SET
	title = $1, is_confidential = $2, file_path = $3,
	version = version + 1, updated_at = NOW()
WHERE id = $4 AND version = $5`,
		doc.Title, doc.IsConfidential, doc.FilePath, doc.ID, doc.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConcurrentModification
	}
	return nil
}

func (t *txRepo) DeleteDocument(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) InsertRouting(ctx context.Context, rt Routing) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO document_routings
	(document_id, from_user_id, to_user_id, message, status, opened_at, version, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
RETURNING id`,
		rt.DocumentID, rt.FromUserID, rt.ToUserID, rt.Message, string(rt.Status),
		nullableTime(rt.OpenedAt), rt.Version).Scan(&id)
	return id, err
}

func (t *txRepo) UpdateRouting(ctx context.Context, rt Routing) error {
	tag, err := t.tx.Exec(ctx, `UPDATE document_routings SET
	status = $1, opened_at = $2, version = version + 1
WHERE id = $3 AND version = $4`,
		string(rt.Status), nullableTime(rt.OpenedAt), rt.ID, rt.Version)
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

func nullableTime(ts time.Time) any {
	if ts.IsZero() {
		return nil
	}
	return ts
}
