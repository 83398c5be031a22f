package cache

import "errors"

// Sentinel errors for cache operations.
var (
	ErrNilStore   = errors.New("cache: store is nil")
	ErrInvalidKey = errors.New("cache: key is invalid")
	ErrKeyTooLong = errors.New("cache: key exceeds max length")

	// ErrNotModified may be returned by a FetchFunc to settle a fetch without
	// touching the entry's data or error. It is never retried or surfaced.
	ErrNotModified = errors.New("cache: not modified")
)
