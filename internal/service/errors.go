package service

import "errors"

var (
	// ErrNotFound indicates the entity is absent or invisible to the caller.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates a valid identity lacking permission.
	ErrForbidden = errors.New("insufficient permissions")
	// ErrInvalidCredentials indicates a failed login attempt.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailTaken indicates a registration against an existing email.
	ErrEmailTaken = errors.New("email already in use")
)
