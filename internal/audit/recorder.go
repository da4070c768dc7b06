package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Log represents one record in audit_logs: who did what, when, to what.
type Log struct {
	ActorID  int64
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

// Recorder writes records into audit_logs.
type Recorder struct {
	pool *pgxpool.Pool
}

// NewRecorder returns a new Recorder.
func NewRecorder(pool *pgxpool.Pool) *Recorder {
	return &Recorder{pool: pool}
}

const insertLogSQL = `INSERT INTO audit_logs (actor_id, action, entity, entity_id, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`

func validate(log Log) error {
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit: log requires action/entity/entity_id")
	}
	return nil
}

// Record persists the log entry on its own connection.
func (r *Recorder) Record(ctx context.Context, log Log) error {
	if r == nil {
		return errors.New("audit: recorder not initialised")
	}
	if err := validate(log); err != nil {
		return err
	}
	metaJSON, err := json.Marshal(log.Meta)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, insertLogSQL, log.ActorID, log.Action, log.Entity, log.EntityID, metaJSON, nullableTime(log.At))
	return err
}

// RecordTx appends the log entry inside an open transaction, so a state
// mutation and its audit record commit together or not at all.
func RecordTx(ctx context.Context, tx pgx.Tx, log Log) error {
	if err := validate(log); err != nil {
		return err
	}
	metaJSON, err := json.Marshal(log.Meta)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, insertLogSQL, log.ActorID, log.Action, log.Entity, log.EntityID, metaJSON, nullableTime(log.At))
	return err
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
