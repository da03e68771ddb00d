package store

import (
	"context"
	"errors"
	"math"
	"time"
)

var (
	// ErrNotFound is returned when a key is absent or its entry has expired.
	ErrNotFound = errors.New("entry not found")
	// ErrBackendUnavailable is returned when the backing store is unreachable.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrMalformedEntry is returned when a stored payload cannot be decoded.
	ErrMalformedEntry = errors.New("malformed entry")
)

// EntryInfo is the metadata projection handed to eviction policies.
// Values never cross this boundary.
type EntryInfo struct {
	Key        string
	Seq        uint64
	LastAccess time.Time
	ExpiresAt  time.Time // zero means the entry never expires
}

// Expired reports whether the entry's deadline has passed at instant now.
func (e EntryInfo) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// Remaining returns the time left before expiry at instant now. Entries
// without a deadline report the maximum duration; expired entries report 0.
func (e EntryInfo) Remaining(now time.Time) time.Duration {
	if e.ExpiresAt.IsZero() {
		return time.Duration(math.MaxInt64)
	}
	if e.Expired(now) {
		return 0
	}
	return e.ExpiresAt.Sub(now)
}

// Store holds cache entries and their expiry and recency metadata.
//
// Get, Put, Has, Remove and Touch are O(1) amortized. Snapshot is the only
// operation allowed O(n) cost; it runs only when eviction is triggered.
// Get reports liveness: an expired entry is removed on observation and
// surfaces as ErrNotFound. Has and Len report occupancy: an expired entry
// still holds its slot until a Get observes it, a Remove claims it, or a
// Put overwrites it.
//
// A Store is owned by a single engine instance and is not safe for
// concurrent use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Has(ctx context.Context, key string) (bool, error)
	Remove(ctx context.Context, key string) (bool, error)
	// Touch bumps the entry's last-access time. A positive ttl also slides
	// the expiry deadline forward.
	Touch(ctx context.Context, key string, ttl time.Duration) error
	Len(ctx context.Context) (int, error)
	// Snapshot returns metadata for every held entry, expired ones included,
	// so expiry-aware policies can claim them first.
	Snapshot(ctx context.Context) ([]EntryInfo, error)
	Clear(ctx context.Context) error
	Available(ctx context.Context) bool
	Close() error
}
