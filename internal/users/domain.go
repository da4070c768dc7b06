package users

import (
	"errors"
	"time"
)

// User is a managed account. Roles hold assignment names that the role graph
// resolves to permissions at authorization time.
type User struct {
	ID           int64
	Email        string
	Name         string
	DepartmentID int64
	Roles        []string
	IsActive     bool
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

var (
	// ErrNotFound indicates the user does not exist.
	ErrNotFound = errors.New("users: not found")
	// ErrForbidden indicates the actor may not perform the action.
	ErrForbidden = errors.New("users: forbidden")
	// ErrDuplicateEmail indicates the email is already registered.
	ErrDuplicateEmail = errors.New("users: email already registered")
	// ErrConcurrentModification indicates the record changed under the caller.
	ErrConcurrentModification = errors.New("users: concurrent modification")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("users: invalid input")
)

// HasRole reports whether the user holds the named role assignment.
func (u User) HasRole(name string) bool {
	for _, role := range u.Roles {
		if role == name {
			return true
		}
	}
	return false
}
