package auth

import (
	"time"

	"github.com/atrium-ops/atrium/internal/authz"
)

// User is the authenticated principal with everything the authorization
// engine needs to act on its behalf.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	DepartmentID int64
	Roles        []string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Actor converts the principal into its authorization view.
func (u User) Actor() authz.Actor {
	return authz.Actor{
		ID:           u.ID,
		DepartmentID: u.DepartmentID,
		Roles:        u.Roles,
		IsActive:     u.IsActive,
	}
}
