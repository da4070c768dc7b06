package departments

import (
	"errors"
	"time"
)

// Department is an organizational unit. Head and deputy are user references
// used for escalation and visitor hosting defaults.
type Department struct {
	ID               int64
	Name             string
	Code             string
	HeadUserID       int64
	DeputyHeadUserID int64
	IsActive         bool
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

var (
	// ErrNotFound indicates the department does not exist.
	ErrNotFound = errors.New("departments: not found")
	// ErrForbidden indicates the actor may not perform the action.
	ErrForbidden = errors.New("departments: forbidden")
	// ErrDuplicateCode indicates the short code is already taken.
	ErrDuplicateCode = errors.New("departments: code already taken")
	// ErrConcurrentModification indicates the record changed under the caller.
	ErrConcurrentModification = errors.New("departments: concurrent modification")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("departments: invalid input")
)
