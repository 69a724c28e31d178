// Package types contains common types used across the application.
package types

import (
	"encoding/json"
	"maps"
)

// DocumentIDKey is the field injected into user records returned over HTTP.
const DocumentIDKey = "document_id"

// UserRecord is a user score document as stored remotely. Fields holds the
// document verbatim; DocumentID is the store's own identifier for it.
type UserRecord struct {
	DocumentID string
	Fields     map[string]any
}

// Get returns a field of the record.
func (r UserRecord) Get(key string) (any, bool) {
	v, ok := r.Fields[key]
	return v, ok
}

// MarshalJSON renders the document fields with document_id injected.
func (r UserRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Fields)+1)
	maps.Copy(out, r.Fields)
	out[DocumentIDKey] = r.DocumentID
	return json.Marshal(out)
}
