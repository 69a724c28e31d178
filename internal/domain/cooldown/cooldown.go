// Package cooldown implements the admission gate that spaces accepted taps.
package cooldown

import (
	"sync"
	"time"
)

// Window is the minimum time between two accepted taps.
const Window = 5 * time.Second

// Gate tracks the last accepted tap. The zero value is not usable; use New.
//
// TryAccept only inspects state; the caller commits with Commit once the tap
// it admitted has been durably applied, so failed taps never start a cooldown.
type Gate struct {
	mu             sync.Mutex
	window         time.Duration
	lastAcceptedAt time.Time
}

// New returns a gate whose last accepted tap is the Unix epoch, so the first
// tap is never blocked.
func New() *Gate {
	return &Gate{
		window:         Window,
		lastAcceptedAt: time.Unix(0, 0),
	}
}

// TryAccept reports whether a tap at now is outside the cooldown window.
func (g *Gate) TryAccept(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return now.Sub(g.lastAcceptedAt) >= g.window
}

// Commit records now as the time of the last accepted tap.
func (g *Gate) Commit(now time.Time) {
	g.mu.Lock()
	g.lastAcceptedAt = now
	g.mu.Unlock()
}

// Remaining returns how long a tap at now would still have to wait.
func (g *Gate) Remaining(now time.Time) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	left := g.window - now.Sub(g.lastAcceptedAt)
	if left < 0 {
		return 0
	}
	return left
}

// LastAccepted returns the time of the last committed tap.
func (g *Gate) LastAccepted() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastAcceptedAt
}
