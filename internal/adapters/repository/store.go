// Package repository holds the durable single-value slot that remembers the
// currently tapped UID.
package repository

import "context"

// Slot is a durable register holding zero or one UID.
type Slot interface {
	// Read returns the stored UID; ok is false when the slot is empty.
	Read(ctx context.Context) (uid string, ok bool, err error)

	// Replace atomically discards any stored UID and stores uid.
	Replace(ctx context.Context, uid string) error

	// Clear removes the stored UID only if it equals uid.
	Clear(ctx context.Context, uid string) error

	// Ping checks that the backing storage is reachable.
	Ping(ctx context.Context) error

	Close() error
}
