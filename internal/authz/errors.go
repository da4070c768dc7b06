package authz

import "errors"

var (
	// ErrDuplicatePermission indicates a permission name registered twice.
	ErrDuplicatePermission = errors.New("authz: duplicate permission")
	// ErrUnknownPermission indicates a name absent from the catalog.
	ErrUnknownPermission = errors.New("authz: unknown permission")
	// ErrUnknownRole indicates a role absent from the graph.
	ErrUnknownRole = errors.New("authz: unknown role")
	// ErrCycleDetected indicates a role inheriting itself, directly or not.
	ErrCycleDetected = errors.New("authz: role inheritance cycle")
)
