package scorestore

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okian/tapscore/internal/domain/types"
)

const seedUsersKey = "users"

// LoadSeed reads a YAML file of the form
//
//	users:
//	  - uid: alice
//	    score: 42
//	    document_id: optional-id
//
// into a MemoryStore.
func LoadSeed(path string) (*MemoryStore, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidSeed, path, err)
	}

	store := NewMemoryStore()
	raw := k.Get(seedUsersKey)
	if raw == nil {
		return store, nil
	}
	users, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s: %q must be a list", ErrInvalidSeed, path, seedUsersKey)
	}
	for i, u := range users {
		fields, ok := u.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s: users[%d] is not a mapping", ErrInvalidSeed, path, i)
		}
		if uid, ok := fields[UIDField].(string); !ok || uid == "" {
			return nil, fmt.Errorf("%w: %s: users[%d] has no uid", ErrInvalidSeed, path, i)
		}
		rec := types.UserRecord{Fields: fields}
		if id, ok := fields[types.DocumentIDKey].(string); ok {
			rec.DocumentID = id
			delete(fields, types.DocumentIDKey)
		}
		store.Put(rec)
	}
	return store, nil
}
