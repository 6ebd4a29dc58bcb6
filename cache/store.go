package cache

import (
	"context"
	"errors"
	"time"
)

// Store keeps cache entries addressed by request keys.
// Absence of an entry is not an error: Get reports it with a false boolean.
// Errors are reserved for an unreachable or corrupted backend.
//
// Writes replace the whole entry (last write wins).
// Implementations must be thread-safe!
type Store interface {
	// Get returns the entry stored under the key, if it exists.
	Get(ctx context.Context, key string) (Entry, bool, error)
	// Set stores the entry under the key, replacing any previous entry.
	Set(ctx context.Context, key string, entry Entry) error
}

type Entry struct {
	// HTTP/1.1 representation of the stored response.
	Response []byte
	// Time from which the entry is stale (but still servable).
	StaleAt time.Time
}

// IsStale reports whether the entry is stale at the given time.
func (e Entry) IsStale(now time.Time) bool {
	return !now.Before(e.StaleAt)
}

// ErrCorruptEntry is returned when a stored entry cannot be decoded.
var ErrCorruptEntry = errors.New("corrupt cache entry")
