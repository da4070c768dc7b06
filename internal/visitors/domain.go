package visitors

import (
	"errors"
	"time"
)

// VisitorVisit is one visit by one guest. The pair of nullable timestamps
// forms an implicit three-state machine: scheduled (neither set), active
// (checked in), completed (checked in and out). There are no backward edges.
type VisitorVisit struct {
	ID           int64
	VisitorName  string
	HostUserID   int64
	DepartmentID int64
	Purpose      string
	CheckInTime  time.Time
	CheckOutTime time.Time
	Version      int64
	CreatedAt    time.Time
}

// Event is the audit payload a transition emits.
type Event struct {
	Action string
	Meta   map[string]any
}

var (
	// ErrInvalidTransition occurs when an action violates the visit lifecycle.
	ErrInvalidTransition = errors.New("visitors: invalid state transition")
	// ErrNotFound indicates the visit does not exist.
	ErrNotFound = errors.New("visitors: not found")
	// ErrForbidden indicates the actor may not perform the action.
	ErrForbidden = errors.New("visitors: forbidden")
	// ErrConcurrentModification indicates the record changed under the caller.
	ErrConcurrentModification = errors.New("visitors: concurrent modification")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("visitors: invalid input")
)

// CheckedIn reports whether the guest has arrived.
func (v VisitorVisit) CheckedIn() bool { return !v.CheckInTime.IsZero() }

// CheckedOut reports whether the visit has ended.
func (v VisitorVisit) CheckedOut() bool { return !v.CheckOutTime.IsZero() }

// Duration returns the length of a completed visit, zero otherwise.
func (v VisitorVisit) Duration() time.Duration {
	if !v.CheckedIn() || !v.CheckedOut() {
		return 0
	}
	return v.CheckOutTime.Sub(v.CheckInTime)
}

// CheckIn records the guest's arrival. Only a scheduled visit checks in; a
// completed visit is history, not a slot to reuse.
func (v *VisitorVisit) CheckIn(now time.Time) (Event, error) {
	if v.CheckedIn() {
		return Event{}, ErrInvalidTransition
	}
	v.CheckInTime = now
	return Event{
		Action: "visitors.check_in",
		Meta:   map[string]any{"visitor_name": v.VisitorName, "check_in_time": now},
	}, nil
}

// CheckOut records the guest leaving. Fails when the guest never arrived or
// has already left.
func (v *VisitorVisit) CheckOut(now time.Time) (Event, error) {
	if !v.CheckedIn() || v.CheckedOut() {
		return Event{}, ErrInvalidTransition
	}
	v.CheckOutTime = now
	return Event{
		Action: "visitors.check_out",
		Meta:   map[string]any{"visitor_name": v.VisitorName, "duration": now.Sub(v.CheckInTime).String()},
	}, nil
}
