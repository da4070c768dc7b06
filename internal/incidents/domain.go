package incidents

import (
	"errors"
	"time"
)

// Incident lifecycle statuses.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
)

// Incident domain model. ReporterDepartmentID is joined in from the reporter's
// user record so department leads can see reports raised by their own staff.
type Incident struct {
	ID                   int64
	Title                string
	Description          string
	ReportedBy           int64
	ReporterDepartmentID int64
	AssignedDepartmentID int64
	AssignedTo           int64
	Status               Status
	ResolvedAt           time.Time
	ResolutionNotes      string
	Version              int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Event is the audit payload a transition emits.
type Event struct {
	Action string
	Meta   map[string]any
}

var (
	// ErrInvalidTransition occurs when an action violates the status workflow.
	ErrInvalidTransition = errors.New("incidents: invalid state transition")
	// ErrNotFound indicates the incident does not exist.
	ErrNotFound = errors.New("incidents: not found")
	// ErrForbidden indicates the actor may not perform the action.
	ErrForbidden = errors.New("incidents: forbidden")
	// ErrConcurrentModification indicates the record changed under the caller.
	ErrConcurrentModification = errors.New("incidents: concurrent modification")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("incidents: invalid input")
)

// Assign hands the incident to a user and moves it to in_progress. Only open
// and in_progress incidents accept assignment.
func (i *Incident) Assign(assigneeID, departmentID int64) (Event, error) {
	if i.Status != StatusOpen && i.Status != StatusInProgress {
		return Event{}, ErrInvalidTransition
	}
	if assigneeID == 0 {
		return Event{}, ErrValidation
	}
	i.AssignedTo = assigneeID
	if departmentID != 0 {
		i.AssignedDepartmentID = departmentID
	}
	i.Status = StatusInProgress
	return Event{
		Action: "incidents.assign",
		Meta:   map[string]any{"assigned_to": assigneeID, "department_id": i.AssignedDepartmentID},
	}, nil
}

// Resolve marks the incident resolved with a timestamp and notes. Any
// non-closed incident can be resolved; re-resolving refreshes the notes.
func (i *Incident) Resolve(notes string, now time.Time) (Event, error) {
	if i.Status == StatusClosed {
		return Event{}, ErrInvalidTransition
	}
	i.Status = StatusResolved
	i.ResolvedAt = now
	i.ResolutionNotes = notes
	return Event{
		Action: "incidents.resolve",
		Meta:   map[string]any{"resolved_at": now},
	}, nil
}

// Reopen returns a resolved or closed incident to open and clears the
// resolution timestamp.
func (i *Incident) Reopen() (Event, error) {
	if i.Status != StatusResolved && i.Status != StatusClosed {
		return Event{}, ErrInvalidTransition
	}
	i.Status = StatusOpen
	i.ResolvedAt = time.Time{}
	return Event{Action: "incidents.reopen", Meta: map[string]any{}}, nil
}

// Close archives a resolved incident. Closing skips no steps: an open or
// in_progress incident must be resolved first.
func (i *Incident) Close() (Event, error) {
	if i.Status != StatusResolved {
		return Event{}, ErrInvalidTransition
	}
	i.Status = StatusClosed
	return Event{Action: "incidents.close", Meta: map[string]any{}}, nil
}
