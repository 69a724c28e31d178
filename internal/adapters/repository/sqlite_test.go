package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/okian/tapscore/internal/adapters/repository"
	. "github.com/smartystreets/goconvey/convey"
)

func openTestSlot(t *testing.T) (*repository.SQLiteSlot, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "slot.db")
	slot, err := repository.OpenSQLite(context.Background(), path, repository.WithBusyTimeout(time.Second))
	if err != nil {
		t.Fatalf("open slot: %v", err)
	}
	t.Cleanup(func() { _ = slot.Close() })
	return slot, path
}

func countRows(t *testing.T, path string) int {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM temp_uid`).Scan(&n); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	return n
}

func TestSQLiteSlot(t *testing.T) {
	Convey("Given a freshly opened SQLite slot", t, func() {
		slot, path := openTestSlot(t)
		ctx := context.Background()

		Convey("Then it starts empty", func() {
			uid, ok, err := slot.Read(ctx)
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
			So(uid, ShouldEqual, "")
			So(slot.Ping(ctx), ShouldBeNil)
			So(slot.Path(), ShouldEqual, path)
		})

		Convey("When a UID is stored", func() {
			So(slot.Replace(ctx, "alice"), ShouldBeNil)

			Convey("Then reads return it, twice in a row", func() {
				first, ok, err := slot.Read(ctx)
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				second, _, err := slot.Read(ctx)
				So(err, ShouldBeNil)
				So(first, ShouldEqual, "alice")
				So(second, ShouldEqual, first)
			})

			Convey("And it is replaced by another UID", func() {
				So(slot.Replace(ctx, "bob"), ShouldBeNil)

				Convey("Then only the new UID is held", func() {
					uid, ok, err := slot.Read(ctx)
					So(err, ShouldBeNil)
					So(ok, ShouldBeTrue)
					So(uid, ShouldEqual, "bob")
					So(countRows(t, path), ShouldEqual, 1)
				})
			})

			Convey("And the same UID is stored again", func() {
				So(slot.Replace(ctx, "alice"), ShouldBeNil)

				Convey("Then the unique constraint is not violated", func() {
					So(countRows(t, path), ShouldEqual, 1)
				})
			})

			Convey("And Clear is called with a different UID", func() {
				So(slot.Clear(ctx, "bob"), ShouldBeNil)

				Convey("Then the slot is untouched", func() {
					uid, ok, err := slot.Read(ctx)
					So(err, ShouldBeNil)
					So(ok, ShouldBeTrue)
					So(uid, ShouldEqual, "alice")
				})
			})

			Convey("And Clear is called with the held UID", func() {
				So(slot.Clear(ctx, "alice"), ShouldBeNil)

				Convey("Then the slot is empty", func() {
					_, ok, err := slot.Read(ctx)
					So(err, ShouldBeNil)
					So(ok, ShouldBeFalse)
					So(countRows(t, path), ShouldEqual, 0)
				})
			})
		})

		Convey("When an empty UID is stored", func() {
			err := slot.Replace(ctx, "")

			Convey("Then it is rejected without touching storage", func() {
				So(errors.Is(err, repository.ErrEmptyUID), ShouldBeTrue)
				_, ok, _ := slot.Read(ctx)
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When the database is closed", func() {
			So(slot.Close(), ShouldBeNil)

			Convey("Then every operation reports the store as unavailable", func() {
				_, _, err := slot.Read(ctx)
				So(errors.Is(err, repository.ErrStoreUnavailable), ShouldBeTrue)
				So(errors.Is(slot.Replace(ctx, "alice"), repository.ErrStoreUnavailable), ShouldBeTrue)
				So(errors.Is(slot.Clear(ctx, "alice"), repository.ErrStoreUnavailable), ShouldBeTrue)
				So(errors.Is(slot.Ping(ctx), repository.ErrStoreUnavailable), ShouldBeTrue)
			})
		})
	})
}

func TestSQLiteSlotPersistence(t *testing.T) {
	Convey("Given a slot holding a UID", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "slot.db")
		slot, err := repository.OpenSQLite(ctx, path)
		So(err, ShouldBeNil)
		So(slot.Replace(ctx, "carol"), ShouldBeNil)
		So(slot.Close(), ShouldBeNil)

		Convey("When the database is reopened", func() {
			reopened, err := repository.OpenSQLite(ctx, path)
			So(err, ShouldBeNil)
			defer reopened.Close()

			Convey("Then the UID survives", func() {
				uid, ok, err := reopened.Read(ctx)
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(uid, ShouldEqual, "carol")
			})
		})
	})

	Convey("Given an unusable path", t, func() {
		Convey("Then opening fails with ErrStoreUnavailable", func() {
			_, err := repository.OpenSQLite(context.Background(), "")
			So(errors.Is(err, repository.ErrStoreUnavailable), ShouldBeTrue)

			_, err = repository.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "missing", "dir", "slot.db"))
			So(errors.Is(err, repository.ErrStoreUnavailable), ShouldBeTrue)
		})
	})
}

func TestSQLiteSlotConcurrentReplace(t *testing.T) {
	Convey("Given many concurrent replaces", t, func() {
		slot, path := openTestSlot(t)
		ctx := context.Background()

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_ = slot.Replace(ctx, fmt.Sprintf("uid-%d", i))
			}(i)
		}
		wg.Wait()

		Convey("Then exactly one row remains", func() {
			So(countRows(t, path), ShouldEqual, 1)
			_, ok, err := slot.Read(ctx)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
		})
	})
}
