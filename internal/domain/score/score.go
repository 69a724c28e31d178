// Package score resolves the score of the currently held UID.
//
// Every lookup re-reads the slot and re-queries the remote store; scores are
// never cached locally.
package score

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/okian/tapscore/internal/adapters/repository"
	"github.com/okian/tapscore/internal/adapters/scorestore"
)

// Field is the document field holding the score.
const Field = "score"

// ErrInvalidScore is returned when the score field holds something that is
// not a number.
var ErrInvalidScore = errors.New("score is not a number")

// Status tags the outcome of a lookup.
type Status int

const (
	// StatusNoSubjectHeld means nothing has been tapped yet.
	StatusNoSubjectHeld Status = iota
	// StatusSubjectNotFound means the held uid has no remote record.
	StatusSubjectNotFound
	// StatusScoreMissing means the record exists but has no score.
	StatusScoreMissing
	// StatusFound carries a score.
	StatusFound
)

func (s Status) String() string {
	switch s {
	case StatusNoSubjectHeld:
		return "no_subject"
	case StatusSubjectNotFound:
		return "subject_not_found"
	case StatusScoreMissing:
		return "score_missing"
	case StatusFound:
		return "found"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is the outcome of a lookup.
type Result struct {
	Status Status
	UID    string
	Score  int64
}

// Lookup joins the slot to the remote score store.
type Lookup struct {
	slot  repository.Slot
	store scorestore.Store
}

// NewLookup returns a Lookup reading from slot and store.
func NewLookup(slot repository.Slot, store scorestore.Store) *Lookup {
	return &Lookup{slot: slot, store: store}
}

// Current returns the score of the held uid.
//
// Errors wrap repository.ErrStoreUnavailable, scorestore.ErrRemoteStore or
// ErrInvalidScore. The slot is never modified.
func (l *Lookup) Current(ctx context.Context) (Result, error) {
	uid, held, err := l.slot.Read(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("current score: %w", err)
	}
	if !held {
		return Result{Status: StatusNoSubjectHeld}, nil
	}

	rec, found, err := l.store.FindByUID(ctx, uid)
	if err != nil {
		return Result{}, fmt.Errorf("current score of %q: %w", uid, err)
	}
	if !found {
		return Result{Status: StatusSubjectNotFound, UID: uid}, nil
	}

	raw, ok := rec.Get(Field)
	if !ok || raw == nil {
		return Result{Status: StatusScoreMissing, UID: uid}, nil
	}
	n, err := ToInt(raw)
	if err != nil {
		return Result{}, fmt.Errorf("current score of %q: %w", uid, err)
	}
	return Result{Status: StatusFound, UID: uid, Score: n}, nil
}

// ToInt converts a stored score to an integer. Floats are truncated toward
// zero and numeric strings are parsed.
func ToInt(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %d overflows", ErrInvalidScore, n)
		}
		return int64(n), nil
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	case string:
		s := strings.TrimSpace(n)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		return 0, fmt.Errorf("%w: %q", ErrInvalidScore, n)
	default:
		return 0, fmt.Errorf("%w: %T", ErrInvalidScore, v)
	}
}

func floatToInt(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidScore, f)
	}
	return int64(f), nil
}
