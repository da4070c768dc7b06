package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeNotify is the task type for delivering an in-app notification.
	TaskTypeNotify = "notify:deliver"
)

// NotificationPayload describes one notification addressed to a single user.
type NotificationPayload struct {
	Ref         string         `json:"ref"`
	Kind        string         `json:"kind"`
	RecipientID int64          `json:"recipient_id"`
	Subject     string         `json:"subject"`
	Meta        map[string]any `json:"meta,omitempty"`
}

// NewNotificationTask constructs an Asynq task for one notification.
func NewNotificationTask(payload NotificationPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeNotify, data), nil
}
