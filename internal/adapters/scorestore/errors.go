package scorestore

import "errors"

// Sentinel kinds for score store errors.
var (
	// ErrRemoteStore wraps every failure talking to the remote store.
	ErrRemoteStore = errors.New("remote score store failure")
	ErrInvalidSeed = errors.New("invalid seed file")
)
