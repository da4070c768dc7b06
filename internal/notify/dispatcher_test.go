package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/atrium-ops/atrium/jobs"
)

type stubEnqueuer struct {
	mu    sync.Mutex
	tasks []*asynq.Task
	err   error
}

func (s *stubEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.tasks = append(s.tasks, task)
	return &asynq.TaskInfo{}, nil
}

func TestDispatchAssignsRef(t *testing.T) {
	stub := &stubEnqueuer{}
	d := NewDispatcher(stub, nil)

	err := d.Dispatch(context.Background(), Notification{
		Kind:        KindIncidentAssigned,
		RecipientID: 7,
		Subject:     "Incident assigned to you",
	})
	require.NoError(t, err)
	require.Len(t, stub.tasks, 1)
	require.Equal(t, jobs.TaskTypeNotify, stub.tasks[0].Type())

	var payload jobs.NotificationPayload
	require.NoError(t, json.Unmarshal(stub.tasks[0].Payload(), &payload))
	require.NotEmpty(t, payload.Ref)
	require.Equal(t, int64(7), payload.RecipientID)
}

func TestDispatchRejectsIncomplete(t *testing.T) {
	d := NewDispatcher(&stubEnqueuer{}, nil)
	require.Error(t, d.Dispatch(context.Background(), Notification{Kind: KindDocumentRouted}))
	require.Error(t, d.Dispatch(context.Background(), Notification{RecipientID: 1}))
}

func TestBroadcastSkipsZeroRecipients(t *testing.T) {
	stub := &stubEnqueuer{}
	d := NewDispatcher(stub, nil)

	err := d.Broadcast(context.Background(), []int64{1, 0, 2}, KindVisitorArrived, "Your visitor has arrived", nil)
	require.NoError(t, err)
	require.Len(t, stub.tasks, 2)
}

func TestBroadcastPropagatesEnqueueError(t *testing.T) {
	stub := &stubEnqueuer{err: errors.New("queue down")}
	d := NewDispatcher(stub, nil)

	err := d.Broadcast(context.Background(), []int64{1, 2}, KindVisitorArrived, "", nil)
	require.Error(t, err)
}
