package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NotificationJob persists queued notifications so users see them on their
// next visit. Delivery is at-least-once; the ref column is unique so a
// retried task never produces a duplicate row.
type NotificationJob struct {
	Pool   *pgxpool.Pool
	Logger *slog.Logger
	clock  func() time.Time
}

// NewNotificationJob wires dependencies for the delivery handler.
func NewNotificationJob(pool *pgxpool.Pool, logger *slog.Logger) *NotificationJob {
	return &NotificationJob{
		Pool:   pool,
		Logger: logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskTypeNotify tasks.
func (j *NotificationJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("notify deliver: handler not configured")
	}
	var payload NotificationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.RecipientID == 0 || payload.Kind == "" {
		return asynq.SkipRetry
	}

	meta, err := json.Marshal(payload.Meta)
	if err != nil {
		return asynq.SkipRetry
	}
	_, err = j.Pool.Exec(ctx, `INSERT INTO notifications (ref, kind, recipient_id, subject, meta, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (ref) DO NOTHING`,
		payload.Ref, payload.Kind, payload.RecipientID, payload.Subject, meta, j.now())
	if err != nil {
		j.logger().Error("persist notification", slog.Any("error", err))
		return err
	}
	j.logger().Info("notification delivered",
		slog.String("kind", payload.Kind),
		slog.Int64("recipient_id", payload.RecipientID))
	return nil
}

func (j *NotificationJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskTypeNotify))
	}
	return slog.Default().With(slog.String("job", TaskTypeNotify))
}

func (j *NotificationJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
