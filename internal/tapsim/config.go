// Package tapsim replays tap scenarios against a running tapscore server
// and checks every response code.
package tapsim

import (
	"context"
	"time"
)

// Config holds configuration for a scenario run.
type Config struct {
	BaseURL    string        // Base URL of the service
	Timeout    time.Duration // HTTP request timeout
	Wait       time.Duration // Pause used to let the cooldown expire
	UIDs       []string      // Two distinct uids: the toggled one and the replacement
	Burst      int           // Concurrent taps fired after the scenario; 0 disables
	OutputFile string        // Optional JSON report path
	Verbose    bool          // Log every response body

	// Sleep waits for d or until ctx ends. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// TapRequest is the POST /tap body.
type TapRequest struct {
	UID string `json:"uid"`
}

// Step is one request of a scenario.
type Step struct {
	Name       string        `json:"name"`
	Method     string        `json:"method"`
	Path       string        `json:"path"`
	Body       *TapRequest   `json:"body,omitempty"`
	WaitBefore time.Duration `json:"wait_before,omitempty"`
	Expect     []int         `json:"expect"`
}

// StepResult records what a step got back.
type StepResult struct {
	Step       Step          `json:"step"`
	RequestID  string        `json:"request_id"`
	Status     int           `json:"status"`
	RetryAfter string        `json:"retry_after,omitempty"`
	Body       string        `json:"body,omitempty"`
	Latency    time.Duration `json:"latency"`
	OK         bool          `json:"ok"`
}

// BurstResult counts outcomes of the concurrent burst.
type BurstResult struct {
	Sent        int `json:"sent"`
	Accepted    int `json:"accepted"`
	RateLimited int `json:"rate_limited"`
	Failed      int `json:"failed"`
}

// Report is the outcome of a run.
type Report struct {
	RunID     string        `json:"run_id"`
	BaseURL   string        `json:"base_url"`
	Steps     []StepResult  `json:"steps"`
	Burst     *BurstResult  `json:"burst,omitempty"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
}

// Failed returns the step results whose status was not expected.
func (r *Report) Failed() []StepResult {
	var out []StepResult
	for _, s := range r.Steps {
		if !s.OK {
			out = append(out, s)
		}
	}
	return out
}
