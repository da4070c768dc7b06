package incidents

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAssignTransitions(t *testing.T) {
	tests := []struct {
		name    string
		status  Status
		wantErr bool
	}{
		{"open accepts assignment", StatusOpen, false},
		{"in_progress accepts reassignment", StatusInProgress, false},
		{"resolved rejects assignment", StatusResolved, true},
		{"closed rejects assignment", StatusClosed, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			inc := Incident{ID: 1, Status: tc.status}
			event, err := inc.Assign(42, 3)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidTransition)
				return
			}
			require.NoError(t, err)
			require.Equal(t, StatusInProgress, inc.Status)
			require.Equal(t, int64(42), inc.AssignedTo)
			require.Equal(t, int64(3), inc.AssignedDepartmentID)
			require.Equal(t, "incidents.assign", event.Action)
		})
	}
}

func TestAssignRequiresAssignee(t *testing.T) {
	inc := Incident{Status: StatusOpen}
	_, err := inc.Assign(0, 3)
	require.ErrorIs(t, err, ErrValidation)
}

func TestResolveSetsTimestampAndNotes(t *testing.T) {
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	inc := Incident{Status: StatusInProgress}
	_, err := inc.Resolve("restarted the switch", now)
	require.NoError(t, err)
	require.Equal(t, StatusResolved, inc.Status)
	require.Equal(t, now, inc.ResolvedAt)
	require.Equal(t, "restarted the switch", inc.ResolutionNotes)
}

func TestResolveRejectsClosed(t *testing.T) {
	inc := Incident{Status: StatusClosed}
	_, err := inc.Resolve("", time.Now())
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestReopenClearsResolvedAt(t *testing.T) {
	now := time.Now()
	for _, status := range []Status{StatusResolved, StatusClosed} {
		inc := Incident{Status: status, ResolvedAt: now, ResolutionNotes: "done"}
		_, err := inc.Reopen()
		require.NoError(t, err)
		require.Equal(t, StatusOpen, inc.Status)
		require.True(t, inc.ResolvedAt.IsZero())
	}

	inc := Incident{Status: StatusOpen}
	_, err := inc.Reopen()
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCloseOnlyFromResolved(t *testing.T) {
	for _, status := range []Status{StatusOpen, StatusInProgress, StatusClosed} {
		inc := Incident{Status: status}
		_, err := inc.Close()
		require.ErrorIs(t, err, ErrInvalidTransition, "status %s", status)
	}

	inc := Incident{Status: StatusResolved}
	_, err := inc.Close()
	require.NoError(t, err)
	require.Equal(t, StatusClosed, inc.Status)
}
