package tapsim

import "time"

// Defaults for a scenario run.
const (
	DefaultBaseURL = "http://localhost:8000"
	DefaultTimeout = 10 * time.Second
	// DefaultWait is slightly longer than the server cooldown.
	DefaultWait = 5500 * time.Millisecond
)

// Default uids used by the scenario.
var DefaultUIDs = []string{"alice", "bob"}
