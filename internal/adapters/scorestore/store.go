// Package scorestore adapts the remote per-user score store. The service
// only ever reads from it.
package scorestore

import (
	"context"

	"github.com/okian/tapscore/internal/domain/types"
)

// UIDField is the document field that holds the user identifier.
const UIDField = "uid"

// Store is read-only access to user score documents.
type Store interface {
	// FindByUID returns the first document whose uid field equals uid.
	// found is false when no document matches.
	FindByUID(ctx context.Context, uid string) (rec types.UserRecord, found bool, err error)

	// List returns every document in the store.
	List(ctx context.Context) ([]types.UserRecord, error)

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
