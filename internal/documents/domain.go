package documents

import (
	"errors"
	"time"
)

// Routing lifecycle statuses.
type RoutingStatus string

const (
	RoutingSent      RoutingStatus = "sent"
	RoutingOpened    RoutingStatus = "opened"
	RoutingForwarded RoutingStatus = "forwarded"
)

// Document domain model. The same record serves two audiences: routed mail
// and the department storage archive.
type Document struct {
	ID             int64
	Title          string
	DepartmentID   int64
	CreatedBy      int64
	IsConfidential bool
	FilePath       string
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Routing is one hop of a document's trail. Forwarding never mutates history:
// a forward closes this hop and opens a fresh one to the next recipient.
type Routing struct {
	ID         int64
	DocumentID int64
	FromUserID int64
	ToUserID   int64
	Message    string
	Status     RoutingStatus
	OpenedAt   time.Time
	Version    int64
	CreatedAt  time.Time
}

// Event is the audit payload a transition emits.
type Event struct {
	Action string
	Meta   map[string]any
}

var (
	// ErrNotFound indicates the document or routing does not exist.
	ErrNotFound = errors.New("documents: not found")
	// ErrForbidden indicates the actor may not perform the action.
	ErrForbidden = errors.New("documents: forbidden")
	// ErrConcurrentModification indicates the record changed under the caller.
	ErrConcurrentModification = errors.New("documents: concurrent modification")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("documents: invalid input")
)

// MarkOpened records the recipient opening the hop. Only a sent hop
// transitions; opened and forwarded hops are left untouched so a re-read
// never regresses the trail. The boolean reports whether anything changed.
func (rt *Routing) MarkOpened(now time.Time) (Event, bool) {
	if rt.Status != RoutingSent {
		return Event{}, false
	}
	rt.Status = RoutingOpened
	rt.OpenedAt = now
	return Event{
		Action: "documents.open",
		Meta:   map[string]any{"routing_id": rt.ID, "opened_at": now},
	}, true
}

// MarkForwarded closes the hop. Idempotent: forwarding an already forwarded
// hop changes nothing.
func (rt *Routing) MarkForwarded(now time.Time) (Event, bool) {
	if rt.Status == RoutingForwarded {
		return Event{}, false
	}
	rt.Status = RoutingForwarded
	return Event{
		Action: "documents.forward",
		Meta:   map[string]any{"routing_id": rt.ID, "forwarded_at": now},
	}, true
}
