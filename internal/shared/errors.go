package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTenantRequired indicates a missing tenant scope on a call that needs one.
	ErrTenantRequired = errors.New("tenant required")
)
