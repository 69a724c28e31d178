package tap_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/tapscore/internal/adapters/repository"
	"github.com/okian/tapscore/internal/domain/cooldown"
	"github.com/okian/tapscore/internal/domain/tap"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeSlot is an in-memory Slot whose operations can be made to fail.
type fakeSlot struct {
	mu      sync.Mutex
	uid     string
	held    bool
	failOn  map[string]bool
	inCrit  atomic.Int32
	overlap atomic.Bool
}

func newFakeSlot() *fakeSlot { return &fakeSlot{failOn: map[string]bool{}} }

func (f *fakeSlot) enter() func() {
	if f.inCrit.Add(1) > 1 {
		f.overlap.Store(true)
	}
	return func() { f.inCrit.Add(-1) }
}

func (f *fakeSlot) fail(op string) error {
	if f.failOn[op] {
		return fmt.Errorf("%w: %s: disk on fire", repository.ErrStoreUnavailable, op)
	}
	return nil
}

func (f *fakeSlot) Read(context.Context) (string, bool, error) {
	defer f.enter()()
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("read"); err != nil {
		return "", false, err
	}
	return f.uid, f.held, nil
}

func (f *fakeSlot) Replace(_ context.Context, uid string) error {
	defer f.enter()()
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("replace"); err != nil {
		return err
	}
	f.uid, f.held = uid, true
	return nil
}

func (f *fakeSlot) Clear(_ context.Context, uid string) error {
	defer f.enter()()
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("clear"); err != nil {
		return err
	}
	if f.held && f.uid == uid {
		f.uid, f.held = "", false
	}
	return nil
}

func (f *fakeSlot) Ping(context.Context) error { return nil }
func (f *fakeSlot) Close() error               { return nil }

func (f *fakeSlot) state() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uid, f.held
}

func TestMachine(t *testing.T) {
	Convey("Given an empty slot and an open cooldown gate", t, func() {
		ctx := context.Background()
		slot := newFakeSlot()
		gate := cooldown.New()
		m := tap.NewMachine(slot, gate, nil)
		t0 := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

		Convey("When a uid is tapped", func() {
			res, err := m.Handle(ctx, "alice", t0)

			Convey("Then it is stored and the cooldown starts", func() {
				So(err, ShouldBeNil)
				So(res.Status, ShouldEqual, tap.StatusStored)
				So(res.UID, ShouldEqual, "alice")
				So(res.Previous, ShouldEqual, "")
				uid, held := slot.state()
				So(held, ShouldBeTrue)
				So(uid, ShouldEqual, "alice")
				So(gate.LastAccepted(), ShouldEqual, t0)
			})

			Convey("And tapped again inside the window", func() {
				res, err := m.Handle(ctx, "alice", t0.Add(2*time.Second))

				Convey("Then it is rate limited and nothing changes", func() {
					So(err, ShouldBeNil)
					So(res.Status, ShouldEqual, tap.StatusRateLimited)
					So(res.RetryAfter, ShouldEqual, 3*time.Second)
					uid, held := slot.state()
					So(held, ShouldBeTrue)
					So(uid, ShouldEqual, "alice")
					So(gate.LastAccepted(), ShouldEqual, t0)
				})
			})

			Convey("And a different uid is tapped inside the window", func() {
				res, _ := m.Handle(ctx, "bob", t0.Add(time.Second))

				Convey("Then it is rate limited too", func() {
					So(res.Status, ShouldEqual, tap.StatusRateLimited)
					uid, _ := slot.state()
					So(uid, ShouldEqual, "alice")
				})
			})

			Convey("And tapped again after the window", func() {
				res, err := m.Handle(ctx, "alice", t0.Add(cooldown.Window))

				Convey("Then the slot toggles off", func() {
					So(err, ShouldBeNil)
					So(res.Status, ShouldEqual, tap.StatusToggledOff)
					_, held := slot.state()
					So(held, ShouldBeFalse)
				})
			})

			Convey("And a different uid is tapped after the window", func() {
				res, err := m.Handle(ctx, "bob", t0.Add(6*time.Second))

				Convey("Then the new uid replaces the old one without error", func() {
					So(err, ShouldBeNil)
					So(res.Status, ShouldEqual, tap.StatusStored)
					So(res.Previous, ShouldEqual, "alice")
					uid, held := slot.state()
					So(held, ShouldBeTrue)
					So(uid, ShouldEqual, "bob")
				})
			})
		})

		Convey("When the uid is empty", func() {
			_, err := m.Handle(ctx, "", t0)

			Convey("Then it is rejected before the gate", func() {
				So(errors.Is(err, repository.ErrEmptyUID), ShouldBeTrue)
				So(gate.LastAccepted().Equal(time.Unix(0, 0)), ShouldBeTrue)
			})
		})
	})
}

func TestMachineStorageFailures(t *testing.T) {
	Convey("Given a slot holding alice whose storage fails", t, func() {
		ctx := context.Background()
		slot := newFakeSlot()
		slot.uid, slot.held = "alice", true
		gate := cooldown.New()
		m := tap.NewMachine(slot, gate, nil)
		t0 := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

		for _, op := range []string{"read", "replace", "clear"} {
			Convey("When "+op+" fails", func() {
				slot.failOn[op] = true
				uid := "bob"
				if op == "clear" {
					uid = "alice"
				}
				_, err := m.Handle(ctx, uid, t0)

				Convey("Then the error is StoreUnavailable and nothing changed", func() {
					So(errors.Is(err, repository.ErrStoreUnavailable), ShouldBeTrue)
					held, ok := slot.state()
					So(ok, ShouldBeTrue)
					So(held, ShouldEqual, "alice")
					So(gate.LastAccepted().Equal(time.Unix(0, 0)), ShouldBeTrue)
				})

				Convey("And an immediate retry after recovery is not rate limited", func() {
					slot.failOn[op] = false
					res, err := m.Handle(ctx, uid, t0.Add(time.Millisecond))
					So(err, ShouldBeNil)
					So(res.Status, ShouldNotEqual, tap.StatusRateLimited)
				})
			})
		}
	})
}

func TestMachineConcurrency(t *testing.T) {
	Convey("Given many concurrent taps at the same instant", t, func() {
		ctx := context.Background()
		slot := newFakeSlot()
		m := tap.NewMachine(slot, cooldown.New(), nil)
		now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

		const n = 50
		var wg sync.WaitGroup
		var stored atomic.Int32
		var limited atomic.Int32
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				res, err := m.Handle(ctx, fmt.Sprintf("uid-%d", i), now)
				if err != nil {
					return
				}
				switch res.Status {
				case tap.StatusStored:
					stored.Add(1)
				case tap.StatusRateLimited:
					limited.Add(1)
				}
			}(i)
		}
		wg.Wait()

		Convey("Then exactly one tap is accepted and slot operations never overlap", func() {
			So(stored.Load(), ShouldEqual, 1)
			So(limited.Load(), ShouldEqual, n-1)
			So(slot.overlap.Load(), ShouldBeFalse)
			_, held := slot.state()
			So(held, ShouldBeTrue)
		})
	})
}

func TestStatusString(t *testing.T) {
	Convey("Status names are stable", t, func() {
		So(tap.StatusRateLimited.String(), ShouldEqual, "rate_limited")
		So(tap.StatusToggledOff.String(), ShouldEqual, "toggled_off")
		So(tap.StatusStored.String(), ShouldEqual, "stored")
		So(tap.Status(9).String(), ShouldEqual, "status(9)")
	})
}
