package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/okian/tapscore/pkg/metrics"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver
)

const defaultBusyTimeout = 5 * time.Second

// SQLite-backed Slot.
//
// The slot lives in a one-table database:
//
//	temp_uid(id INTEGER PRIMARY KEY, uid TEXT NOT NULL UNIQUE)
//
// The table holds at most one row because every write goes through Replace
// (delete all + insert in one transaction) or Clear (compare-and-delete).
// The pool is capped at a single connection so writers never observe
// SQLITE_BUSY from each other.
const (
	createTableSQL = `CREATE TABLE IF NOT EXISTS temp_uid (
		id INTEGER PRIMARY KEY,
		uid TEXT NOT NULL UNIQUE
	)`
	readSQL   = `SELECT uid FROM temp_uid LIMIT 1`
	deleteSQL = `DELETE FROM temp_uid`
	insertSQL = `INSERT INTO temp_uid (uid) VALUES (?)`
	clearSQL  = `DELETE FROM temp_uid WHERE uid = ?`
)

// SQLiteSlot implements Slot on top of modernc.org/sqlite.
type SQLiteSlot struct {
	db          *sql.DB
	path        string
	busyTimeout time.Duration
}

var _ Slot = (*SQLiteSlot)(nil)

// OpenSQLite opens (creating if needed) the slot database at path and
// ensures the schema exists.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLiteSlot, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: open: empty path", ErrStoreUnavailable)
	}
	s := &SQLiteSlot{path: path, busyTimeout: defaultBusyTimeout}
	for _, opt := range opts {
		opt(s)
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)", path, s.busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrStoreUnavailable, path, err)
	}
	db.SetMaxOpenConns(1)
	s.db = db

	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteSlot) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("%w: create temp_uid table: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// Read returns the stored UID, if any.
func (s *SQLiteSlot) Read(ctx context.Context) (string, bool, error) {
	defer observe("read", time.Now())

	var uid string
	err := s.db.QueryRowContext(ctx, readSQL).Scan(&uid)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("%w: read: %w", ErrStoreUnavailable, err)
	}
	return uid, true, nil
}

// Replace clears the slot and stores uid in a single transaction.
func (s *SQLiteSlot) Replace(ctx context.Context, uid string) (err error) {
	if uid == "" {
		return ErrEmptyUID
	}
	defer observe("replace", time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: replace: begin: %w", ErrStoreUnavailable, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, deleteSQL); err != nil {
		return fmt.Errorf("%w: replace: delete: %w", ErrStoreUnavailable, err)
	}
	if _, err = tx.ExecContext(ctx, insertSQL, uid); err != nil {
		return fmt.Errorf("%w: replace: insert: %w", ErrStoreUnavailable, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: replace: commit: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// Clear deletes the stored UID if it equals uid. A different or missing
// value is left alone.
func (s *SQLiteSlot) Clear(ctx context.Context, uid string) error {
	defer observe("clear", time.Now())

	if _, err := s.db.ExecContext(ctx, clearSQL, uid); err != nil {
		return fmt.Errorf("%w: clear: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// Ping checks the database is reachable.
func (s *SQLiteSlot) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: ping: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// Path returns the database path the slot was opened with.
func (s *SQLiteSlot) Path() string { return s.path }

// Close releases the database handle.
func (s *SQLiteSlot) Close() error {
	return s.db.Close()
}

func observe(op string, start time.Time) {
	metrics.RecordSlotOperation(op, float64(time.Since(start).Microseconds())/1000)
}
