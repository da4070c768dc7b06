// Package notify enqueues in-app notifications for asynchronous delivery.
package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/atrium-ops/atrium/jobs"
)

// Notification kinds understood by the worker.
const (
	KindDocumentRouted   = "document.routed"
	KindIncidentAssigned = "incident.assigned"
	KindVisitorArrived   = "visitor.arrived"
)

// Notification is one message addressed to a single user.
type Notification struct {
	Ref         string
	Kind        string
	RecipientID int64
	Subject     string
	Meta        map[string]any
}

// Enqueuer is the slice of the asynq client the dispatcher needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher fans notifications out to the job queue. Enqueue failures are
// reported to the caller; the caller decides whether the triggering mutation
// already committed and the failure is merely logged.
type Dispatcher struct {
	enqueuer Enqueuer
	logger   *slog.Logger
}

// NewDispatcher constructs a Dispatcher over an asynq client.
func NewDispatcher(enqueuer Enqueuer, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{enqueuer: enqueuer, logger: logger}
}

// Dispatch enqueues a single notification.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) error {
	if d == nil || d.enqueuer == nil {
		return errors.New("notify: dispatcher not configured")
	}
	if n.RecipientID == 0 || n.Kind == "" {
		return errors.New("notify: notification requires kind and recipient")
	}
	if n.Ref == "" {
		n.Ref = uuid.NewString()
	}
	task, err := jobs.NewNotificationTask(jobs.NotificationPayload{
		Ref:         n.Ref,
		Kind:        n.Kind,
		RecipientID: n.RecipientID,
		Subject:     n.Subject,
		Meta:        n.Meta,
	})
	if err != nil {
		return err
	}
	if _, err := d.enqueuer.EnqueueContext(ctx, task, asynq.Queue(jobs.QueueDefault)); err != nil {
		return err
	}
	if d.logger != nil {
		d.logger.Debug("notification enqueued",
			slog.String("kind", n.Kind),
			slog.Int64("recipient_id", n.RecipientID))
	}
	return nil
}

// Broadcast enqueues the same notification for every recipient concurrently.
func (d *Dispatcher) Broadcast(ctx context.Context, recipients []int64, kind, subject string, meta map[string]any) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, recipient := range recipients {
		if recipient == 0 {
			continue
		}
		n := Notification{Kind: kind, RecipientID: recipient, Subject: subject, Meta: meta}
		g.Go(func() error {
			return d.Dispatch(ctx, n)
		})
	}
	return g.Wait()
}
