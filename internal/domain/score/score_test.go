package score_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"testing"

	"github.com/okian/tapscore/internal/adapters/repository"
	"github.com/okian/tapscore/internal/adapters/scorestore"
	"github.com/okian/tapscore/internal/domain/score"
	"github.com/okian/tapscore/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

type failingStore struct {
	scorestore.MemoryStore
	calls int
}

func (f *failingStore) FindByUID(context.Context, string) (types.UserRecord, bool, error) {
	f.calls++
	return types.UserRecord{}, false, fmt.Errorf("%w: connection refused", scorestore.ErrRemoteStore)
}

func newSlot(t *testing.T) *repository.SQLiteSlot {
	t.Helper()
	slot, err := repository.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "slot.db"))
	if err != nil {
		t.Fatalf("open slot: %v", err)
	}
	t.Cleanup(func() { _ = slot.Close() })
	return slot
}

func TestLookup(t *testing.T) {
	Convey("Given a slot and a remote store", t, func() {
		ctx := context.Background()
		slot := newSlot(t)
		store := scorestore.NewMemoryStore(
			types.UserRecord{Fields: map[string]any{"uid": "alice", "score": 42}},
			types.UserRecord{Fields: map[string]any{"uid": "bob", "score": 17.9}},
			types.UserRecord{Fields: map[string]any{"uid": "carol"}},
			types.UserRecord{Fields: map[string]any{"uid": "dave", "score": nil}},
			types.UserRecord{Fields: map[string]any{"uid": "erin", "score": "lots"}},
		)
		lookup := score.NewLookup(slot, store)

		Convey("When the slot is empty", func() {
			res, err := lookup.Current(ctx)

			Convey("Then no subject is held regardless of remote content", func() {
				So(err, ShouldBeNil)
				So(res.Status, ShouldEqual, score.StatusNoSubjectHeld)
			})
		})

		Convey("When the slot holds a known uid", func() {
			So(slot.Replace(ctx, "alice"), ShouldBeNil)
			res, err := lookup.Current(ctx)

			Convey("Then its score is returned", func() {
				So(err, ShouldBeNil)
				So(res.Status, ShouldEqual, score.StatusFound)
				So(res.UID, ShouldEqual, "alice")
				So(res.Score, ShouldEqual, int64(42))
			})
		})

		Convey("When the held uid has a fractional score", func() {
			So(slot.Replace(ctx, "bob"), ShouldBeNil)
			res, err := lookup.Current(ctx)

			Convey("Then it is truncated to an integer", func() {
				So(err, ShouldBeNil)
				So(res.Score, ShouldEqual, int64(17))
			})
		})

		Convey("When the held uid is absent remotely", func() {
			So(slot.Replace(ctx, "zed"), ShouldBeNil)
			res, err := lookup.Current(ctx)

			Convey("Then the subject is not found and the slot is untouched", func() {
				So(err, ShouldBeNil)
				So(res.Status, ShouldEqual, score.StatusSubjectNotFound)
				So(res.UID, ShouldEqual, "zed")
				uid, held, err := slot.Read(ctx)
				So(err, ShouldBeNil)
				So(held, ShouldBeTrue)
				So(uid, ShouldEqual, "zed")
			})
		})

		Convey("When the record has no score", func() {
			So(slot.Replace(ctx, "carol"), ShouldBeNil)
			res, err := lookup.Current(ctx)
			So(err, ShouldBeNil)
			So(res.Status, ShouldEqual, score.StatusScoreMissing)

			So(slot.Replace(ctx, "dave"), ShouldBeNil)
			res, err = lookup.Current(ctx)
			So(err, ShouldBeNil)
			So(res.Status, ShouldEqual, score.StatusScoreMissing)
		})

		Convey("When the score is not a number", func() {
			So(slot.Replace(ctx, "erin"), ShouldBeNil)
			_, err := lookup.Current(ctx)
			So(errors.Is(err, score.ErrInvalidScore), ShouldBeTrue)
		})

		Convey("When the remote store changes between calls", func() {
			So(slot.Replace(ctx, "frank"), ShouldBeNil)
			first, _ := lookup.Current(ctx)
			store.Put(types.UserRecord{Fields: map[string]any{"uid": "frank", "score": 5}})
			second, _ := lookup.Current(ctx)

			Convey("Then the second call sees the new record", func() {
				So(first.Status, ShouldEqual, score.StatusSubjectNotFound)
				So(second.Status, ShouldEqual, score.StatusFound)
				So(second.Score, ShouldEqual, int64(5))
			})
		})

		Convey("When the remote store fails", func() {
			So(slot.Replace(ctx, "alice"), ShouldBeNil)
			failing := &failingStore{}
			_, err := score.NewLookup(slot, failing).Current(ctx)

			Convey("Then a remote store error is returned", func() {
				So(errors.Is(err, scorestore.ErrRemoteStore), ShouldBeTrue)
				So(failing.calls, ShouldEqual, 1)
			})
		})

		Convey("When the slot storage is gone", func() {
			So(slot.Close(), ShouldBeNil)
			_, err := lookup.Current(ctx)

			Convey("Then a store unavailable error is returned", func() {
				So(errors.Is(err, repository.ErrStoreUnavailable), ShouldBeTrue)
			})
		})
	})
}

func TestToInt(t *testing.T) {
	Convey("Given stored score values of various types", t, func() {
		ok := map[any]int64{
			7:             7,
			int32(-3):     -3,
			int64(1e12):   1e12,
			uint32(9):     9,
			float64(2.9):  2,
			float32(-1.5): -1,
			" 12 ":        12,
			true:          1,
		}
		for in, want := range ok {
			got, err := score.ToInt(in)
			So(err, ShouldBeNil)
			So(got, ShouldEqual, want)
		}

		for _, bad := range []any{"twelve", "1.5", math.NaN(), math.Inf(1), uint64(math.MaxUint64), []int{1}} {
			_, err := score.ToInt(bad)
			So(errors.Is(err, score.ErrInvalidScore), ShouldBeTrue)
		}
	})
}

func TestStatusString(t *testing.T) {
	Convey("Status names are stable", t, func() {
		So(score.StatusNoSubjectHeld.String(), ShouldEqual, "no_subject")
		So(score.StatusSubjectNotFound.String(), ShouldEqual, "subject_not_found")
		So(score.StatusScoreMissing.String(), ShouldEqual, "score_missing")
		So(score.StatusFound.String(), ShouldEqual, "found")
	})
}
