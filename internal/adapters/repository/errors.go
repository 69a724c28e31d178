package repository

import "errors"

// Sentinel kinds for slot errors.
var (
	// ErrStoreUnavailable wraps every storage I/O failure.
	ErrStoreUnavailable = errors.New("slot store unavailable")
	ErrEmptyUID         = errors.New("uid must not be empty")
)
