package scorestore

import (
	"context"
	"maps"
	"sync"

	"github.com/google/uuid"

	"github.com/okian/tapscore/internal/domain/types"
)

// MemoryStore is an in-process Store, used for local runs and tests.
// Documents keep insertion order.
type MemoryStore struct {
	mu   sync.RWMutex
	docs []types.UserRecord
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns a store holding recs.
func NewMemoryStore(recs ...types.UserRecord) *MemoryStore {
	s := &MemoryStore{}
	for _, r := range recs {
		s.Put(r)
	}
	return s
}

// Put adds a document. A missing DocumentID is filled with a random UUID.
func (s *MemoryStore) Put(rec types.UserRecord) types.UserRecord {
	if rec.DocumentID == "" {
		rec.DocumentID = uuid.NewString()
	}
	rec.Fields = maps.Clone(rec.Fields)
	if rec.Fields == nil {
		rec.Fields = map[string]any{}
	}
	s.mu.Lock()
	s.docs = append(s.docs, rec)
	s.mu.Unlock()
	return rec
}

// FindByUID returns the first document whose uid field equals uid.
func (s *MemoryStore) FindByUID(_ context.Context, uid string) (types.UserRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.docs {
		if v, ok := d.Fields[UIDField].(string); ok && v == uid {
			return copyRecord(d), true, nil
		}
	}
	return types.UserRecord{}, false, nil
}

// List returns a copy of every document.
func (s *MemoryStore) List(_ context.Context) ([]types.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.UserRecord, len(s.docs))
	for i, d := range s.docs {
		out[i] = copyRecord(d)
	}
	return out, nil
}

// Len returns the number of documents.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func (s *MemoryStore) Ping(context.Context) error  { return nil }
func (s *MemoryStore) Close(context.Context) error { return nil }

func copyRecord(r types.UserRecord) types.UserRecord {
	return types.UserRecord{DocumentID: r.DocumentID, Fields: maps.Clone(r.Fields)}
}
