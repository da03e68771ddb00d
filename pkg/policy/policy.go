// Package policy implements the eviction strategies the cache engine
// chooses victims with. A policy sees only entry metadata, never values,
// and never mutates the snapshot it is given.
package policy

import (
	"fmt"
	"sort"
	"time"

	"github.com/cachesim/cachesim/pkg/store"
)

// Variant names, as they appear in configuration and run labels.
const (
	Recency = "recency"
	Expiry  = "expiry"
	Hybrid  = "hybrid"
)

// Policy selects eviction victims from a store snapshot.
type Policy interface {
	// Name returns the variant name used in run labels.
	Name() string
	// TracksRecency reports whether hits should bump last-access metadata.
	TracksRecency() bool
	// UsesTTL reports whether entries carry an expiry deadline under this
	// policy. When false, entries live until evicted.
	UsesTTL() bool
	// SelectVictims returns the keys to evict, most evictable first. It is
	// called only when the store has reached capacity, immediately before
	// an insertion that would grow it.
	SelectVictims(entries []store.EntryInfo, n int) []string
}

// New returns the policy implementation for a variant name.
func New(variant string) (Policy, error) {
	switch variant {
	case Recency:
		return recencyPolicy{}, nil
	case Expiry:
		return expiryPolicy{}, nil
	case Hybrid:
		return hybridPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown eviction policy %q", variant)
	}
}

// Variants lists the supported policy names.
func Variants() []string {
	return []string{Recency, Expiry, Hybrid}
}

// recencyPolicy evicts the least recently used entries first, breaking
// last-access ties by insertion order.
type recencyPolicy struct{}

func (recencyPolicy) Name() string        { return Recency }
func (recencyPolicy) TracksRecency() bool { return true }
func (recencyPolicy) UsesTTL() bool       { return false }

func (recencyPolicy) SelectVictims(entries []store.EntryInfo, n int) []string {
	sorted := sortedCopy(entries, func(a, b store.EntryInfo) bool {
		if !a.LastAccess.Equal(b.LastAccess) {
			return a.LastAccess.Before(b.LastAccess)
		}
		return a.Seq < b.Seq
	})
	return takeKeys(sorted, n)
}

// expiryPolicy evicts the entries closest to their deadline first. Entries
// already past it are always claimed, even beyond the requested count.
type expiryPolicy struct{}

func (expiryPolicy) Name() string        { return Expiry }
func (expiryPolicy) TracksRecency() bool { return false }
func (expiryPolicy) UsesTTL() bool       { return true }

func (expiryPolicy) SelectVictims(entries []store.EntryInfo, n int) []string {
	now := time.Now()
	sorted := sortedCopy(entries, func(a, b store.EntryInfo) bool {
		ar, br := a.Remaining(now), b.Remaining(now)
		if ar != br {
			return ar < br
		}
		return a.Seq < b.Seq
	})

	expired := 0
	for _, e := range sorted {
		if !e.Expired(now) {
			break
		}
		expired++
	}
	if expired > n {
		n = expired
	}
	return takeKeys(sorted, n)
}

// hybridPolicy evicts what is both stale and least recently used: deadline
// proximity first, with expired entries counting as due now, then
// last-access order.
type hybridPolicy struct{}

func (hybridPolicy) Name() string        { return Hybrid }
func (hybridPolicy) TracksRecency() bool { return true }
func (hybridPolicy) UsesTTL() bool       { return true }

func (hybridPolicy) SelectVictims(entries []store.EntryInfo, n int) []string {
	now := time.Now()
	sorted := sortedCopy(entries, func(a, b store.EntryInfo) bool {
		ar, br := a.Remaining(now), b.Remaining(now)
		if ar != br {
			return ar < br
		}
		if !a.LastAccess.Equal(b.LastAccess) {
			return a.LastAccess.Before(b.LastAccess)
		}
		return a.Seq < b.Seq
	})
	return takeKeys(sorted, n)
}

func sortedCopy(entries []store.EntryInfo, less func(a, b store.EntryInfo) bool) []store.EntryInfo {
	out := make([]store.EntryInfo, len(entries))
	copy(out, entries)
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func takeKeys(entries []store.EntryInfo, n int) []string {
	if n > len(entries) {
		n = len(entries)
	}
	if n < 0 {
		n = 0
	}
	keys := make([]string, 0, n)
	for _, e := range entries[:n] {
		keys = append(keys, e.Key)
	}
	return keys
}
