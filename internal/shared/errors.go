package shared

import "errors"

// Sentinels shared across feature packages. Packages with richer failure
// modes declare their own alongside these.
var (
	// ErrNotFound covers lookups for rows that do not exist or that the
	// caller cannot see.
	ErrNotFound = errors.New("shared: not found")
	// ErrInvalidCredentials is returned for unknown accounts, inactive
	// accounts, and password mismatches alike.
	ErrInvalidCredentials = errors.New("shared: invalid credentials")
	// ErrCSRFTokenMissing means the request carried no token or the session
	// holds none to compare against.
	ErrCSRFTokenMissing = errors.New("shared: csrf token missing")
	// ErrCSRFTokenMismatch means the submitted token failed comparison.
	ErrCSRFTokenMismatch = errors.New("shared: csrf token mismatch")
)
