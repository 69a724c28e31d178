package repository

import "time"

// Option applies a configuration option to the SQLiteSlot.
type Option func(*SQLiteSlot)

// WithBusyTimeout sets how long SQLite waits on a locked database file.
func WithBusyTimeout(d time.Duration) Option {
	return func(s *SQLiteSlot) {
		if d > 0 {
			s.busyTimeout = d
		}
	}
}
