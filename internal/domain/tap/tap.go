// Package tap implements the single-slot toggle driven by tap events.
//
// The slot is either Empty or Holding(uid). A tap of the held uid empties it;
// any other tap stores the new uid, silently discarding whatever was held.
// A cooldown gate sits in front of the machine and admits at most one tap
// per window. The whole admission + read + write + commit sequence runs
// under one mutex.
package tap

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/tapscore/internal/adapters/repository"
	"github.com/okian/tapscore/internal/domain/cooldown"
	"github.com/okian/tapscore/pkg/logger"
)

// Status tags the outcome of a tap.
type Status int

const (
	// StatusRateLimited means the tap arrived inside the cooldown window.
	StatusRateLimited Status = iota
	// StatusToggledOff means the held uid was tapped again and removed.
	StatusToggledOff
	// StatusStored means the tapped uid is now held.
	StatusStored
)

func (s Status) String() string {
	switch s {
	case StatusRateLimited:
		return "rate_limited"
	case StatusToggledOff:
		return "toggled_off"
	case StatusStored:
		return "stored"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is the outcome of a tap that reached a decision.
type Result struct {
	Status Status
	UID    string
	// Previous is the uid discarded by a StatusStored tap, if any.
	Previous string
	// RetryAfter is set for StatusRateLimited.
	RetryAfter time.Duration
}

// Gate is the admission filter consulted before every tap.
type Gate interface {
	TryAccept(now time.Time) bool
	Commit(now time.Time)
	Remaining(now time.Time) time.Duration
}

var _ Gate = (*cooldown.Gate)(nil)

// Machine serializes taps against a slot.
type Machine struct {
	mu   sync.Mutex
	slot repository.Slot
	gate Gate
	log  logger.Logger
}

// NewMachine returns a Machine over slot and gate. A nil log discards output.
func NewMachine(slot repository.Slot, gate Gate, log logger.Logger) *Machine {
	if log == nil {
		log = logger.Nop()
	}
	return &Machine{slot: slot, gate: gate, log: log}
}

// Handle applies a tap of uid at now.
//
// A returned error always wraps repository.ErrStoreUnavailable (or
// ErrEmptyUID); in that case neither the slot nor the gate changed.
func (m *Machine) Handle(ctx context.Context, uid string, now time.Time) (Result, error) {
	if uid == "" {
		return Result{}, repository.ErrEmptyUID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.gate.TryAccept(now) {
		wait := m.gate.Remaining(now)
		m.log.Debug(ctx, "tap rejected by cooldown", logger.String("uid", uid), logger.Duration("retry_after", wait))
		return Result{Status: StatusRateLimited, UID: uid, RetryAfter: wait}, nil
	}

	existing, held, err := m.slot.Read(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("tap %q: %w", uid, err)
	}

	var res Result
	if held && existing == uid {
		if err := m.slot.Clear(ctx, uid); err != nil {
			return Result{}, fmt.Errorf("tap %q: %w", uid, err)
		}
		res = Result{Status: StatusToggledOff, UID: uid}
	} else {
		if err := m.slot.Replace(ctx, uid); err != nil {
			return Result{}, fmt.Errorf("tap %q: %w", uid, err)
		}
		res = Result{Status: StatusStored, UID: uid}
		if held {
			res.Previous = existing
		}
	}

	m.gate.Commit(now)
	m.log.Debug(ctx, "tap applied",
		logger.String("uid", uid),
		logger.String("status", res.Status.String()),
		logger.String("previous", res.Previous),
	)
	return res, nil
}
