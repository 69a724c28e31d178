// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/tapscore/internal/adapters/repository"
	"github.com/okian/tapscore/internal/adapters/scorestore"
	"github.com/okian/tapscore/internal/domain/cooldown"
	"github.com/okian/tapscore/internal/domain/score"
	"github.com/okian/tapscore/internal/domain/tap"
	"github.com/okian/tapscore/internal/domain/types"
	"github.com/okian/tapscore/pkg/logger"
	"github.com/okian/tapscore/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// Sentinel kinds for service errors.
var (
	ErrNotStarted        = errors.New("service not started")
	ErrMissingDependency = errors.New("missing dependency")
)

// Service owns the slot, the cooldown gate and the remote store handle and
// exposes the tap and score operations.
type Service struct {
	mu sync.RWMutex

	// Core components
	slot    repository.Slot
	store   scorestore.Store
	gate    *cooldown.Gate
	machine *tap.Machine
	lookup  *score.Lookup

	now func() time.Time

	// State
	started      bool
	tapsStored   atomic.Int64
	tapsToggled  atomic.Int64
	tapsRejected atomic.Int64
	tapsFailed   atomic.Int64

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSlot sets the durable slot.
func WithSlot(slot repository.Slot) Option {
	return func(s *Service) {
		s.slot = slot
	}
}

// WithScoreStore sets the remote score store.
func WithScoreStore(store scorestore.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Service. Start must be called before use.
func New(opts ...Option) *Service {
	s := &Service{
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start wires the tap machine and the score lookup. It does not contact
// either store; use Health for that.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.slot == nil {
		return errors.Join(ErrMissingDependency, errors.New("slot"))
	}
	if s.store == nil {
		return errors.Join(ErrMissingDependency, errors.New("score store"))
	}

	s.gate = cooldown.New()
	s.machine = tap.NewMachine(s.slot, s.gate, s.logger.Named("tap"))
	s.lookup = score.NewLookup(s.slot, s.store)

	if _, held, err := s.slot.Read(ctx); err == nil {
		metrics.UpdateSlotHeld(held)
	}

	s.started = true
	s.logger.Info(ctx, "tap relay service started", logger.Duration("cooldown", cooldown.Window))
	return nil
}

// Stop releases the slot and the remote store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping tap relay service...")

	if err := s.slot.Close(); err != nil {
		s.logger.Warn(ctx, "closing slot failed", logger.Error(err))
	}
	if err := s.store.Close(ctx); err != nil {
		s.logger.Warn(ctx, "closing score store failed", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "tap relay service stopped")
}

func (s *Service) running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// Tap applies a tap of uid at the current time.
func (s *Service) Tap(ctx context.Context, uid string) (tap.Result, error) {
	if !s.running() {
		return tap.Result{}, ErrNotStarted
	}

	res, err := s.machine.Handle(ctx, uid, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrStoreUnavailable) {
			s.tapsFailed.Add(1)
			metrics.RecordTap("store_error")
			s.logger.Error(ctx, "tap failed", logger.String("uid", uid), logger.Error(err))
		}
		return tap.Result{}, err
	}

	metrics.RecordTap(res.Status.String())
	switch res.Status {
	case tap.StatusRateLimited:
		s.tapsRejected.Add(1)
		metrics.RecordCooldownRemaining(res.RetryAfter.Seconds())
		s.logger.Info(ctx, "tap rate limited", logger.String("uid", uid), logger.Duration("retry_after", res.RetryAfter))
	case tap.StatusToggledOff:
		s.tapsToggled.Add(1)
		metrics.UpdateSlotHeld(false)
		s.logger.Info(ctx, "uid toggled off", logger.String("uid", uid))
	case tap.StatusStored:
		s.tapsStored.Add(1)
		metrics.UpdateSlotHeld(true)
		s.logger.Info(ctx, "uid stored", logger.String("uid", uid), logger.String("previous", res.Previous))
	}
	return res, nil
}

// CurrentScore resolves the score of the held uid.
func (s *Service) CurrentScore(ctx context.Context) (score.Result, error) {
	if !s.running() {
		return score.Result{}, ErrNotStarted
	}

	res, err := s.lookup.Current(ctx)
	if err != nil {
		metrics.RecordScoreLookup("error")
		s.logger.Error(ctx, "score lookup failed", logger.Error(err))
		return score.Result{}, err
	}
	metrics.RecordScoreLookup(res.Status.String())
	s.logger.Debug(ctx, "score lookup", logger.String("uid", res.UID), logger.String("status", res.Status.String()))
	return res, nil
}

// UserByUID forwards a uid lookup to the remote store.
func (s *Service) UserByUID(ctx context.Context, uid string) (types.UserRecord, bool, error) {
	if !s.running() {
		return types.UserRecord{}, false, ErrNotStarted
	}
	rec, found, err := s.store.FindByUID(ctx, uid)
	if err != nil {
		s.logger.Error(ctx, "user lookup failed", logger.String("uid", uid), logger.Error(err))
	}
	return rec, found, err
}

// Users lists every remote user record.
func (s *Service) Users(ctx context.Context) ([]types.UserRecord, error) {
	if !s.running() {
		return nil, ErrNotStarted
	}
	recs, err := s.store.List(ctx)
	if err != nil {
		s.logger.Error(ctx, "user listing failed", logger.Error(err))
	}
	return recs, err
}

// Health pings the slot and the remote store.
func (s *Service) Health(ctx context.Context) error {
	if !s.running() {
		return ErrNotStarted
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.slot.Ping(gctx) })
	g.Go(func() error { return s.store.Ping(gctx) })
	return g.Wait()
}

// SlotHeld reports whether the slot currently holds a uid.
func (s *Service) SlotHeld(ctx context.Context) (bool, error) {
	if !s.running() {
		return false, ErrNotStarted
	}
	_, held, err := s.slot.Read(ctx)
	return held, err
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":      s.started,
		"cooldownMs":   cooldown.Window.Milliseconds(),
		"tapsStored":   s.tapsStored.Load(),
		"tapsToggled":  s.tapsToggled.Load(),
		"tapsRejected": s.tapsRejected.Load(),
		"tapsFailed":   s.tapsFailed.Load(),
	}
	if s.started {
		now := s.now()
		stats["cooldownRemainingMs"] = s.gate.Remaining(now).Milliseconds()
		if last := s.gate.LastAccepted(); last.After(time.Unix(0, 0)) {
			stats["lastAcceptedAt"] = last.UTC().Format(time.RFC3339Nano)
		}
	}
	return stats
}
