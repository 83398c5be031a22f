package auth

import "errors"

// Sentinel errors for outgoing credentials.
var (
	ErrMissingCredentials = errors.New("auth: missing credentials")
	ErrKeyNotFound        = errors.New("auth: signing key not found")
	ErrSigningFailed      = errors.New("auth: token signing failed")
	ErrUnknownProvider    = errors.New("auth: unknown provider")
	ErrInvalidProvider    = errors.New("auth: invalid provider registration")
)
