// Package engine orchestrates lookups and insertions against an entry
// store, enforcing capacity through an eviction policy and accounting
// every outcome.
package engine

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/cachesim/cachesim/pkg/metrics"
	"github.com/cachesim/cachesim/pkg/models"
	"github.com/cachesim/cachesim/pkg/policy"
	"github.com/cachesim/cachesim/pkg/store"
)

// ErrCapacityMisconfigured is returned by New when the capacity is not a
// positive integer.
var ErrCapacityMisconfigured = errors.New("capacity misconfigured")

// evictionFraction of the current size is evicted per over-capacity
// insertion, one entry minimum. Batching amortizes the victim scan across
// future insertions; results are only comparable across runs if every
// engine evicts the same way.
const evictionFraction = 0.10

// Config fixes one engine's capacity and TTL behavior for its lifetime.
type Config struct {
	Capacity int
	// TTL applies to inserted entries under expiry-aware policies. Ignored
	// when the policy does not use deadlines.
	TTL time.Duration
	// SlidingTTL refreshes an entry's deadline on every hit instead of
	// fixing it at insertion.
	SlidingTTL bool
}

// Engine answers get/set traffic for one (policy, capacity) configuration.
// Store failures never escape: an unreachable backend turns every lookup
// into a miss and every set into a failed set.
type Engine struct {
	store store.Store
	pol   policy.Policy
	col   *metrics.Collector
	cfg   Config
}

// New creates an Engine. A capacity of zero or less is a configuration
// error and is rejected immediately.
func New(st store.Store, pol policy.Policy, col *metrics.Collector, cfg Config) (*Engine, error) {
	if cfg.Capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity %d, want > 0", ErrCapacityMisconfigured, cfg.Capacity)
	}
	return &Engine{store: st, pol: pol, col: col, cfg: cfg}, nil
}

// Fingerprint derives the cache key from the normalized concatenation of
// title and content. Identical pairs always produce the same key.
func Fingerprint(title, content string) string {
	h := sha256.New()
	h.Write([]byte(strings.TrimSpace(title + "|" + content)))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Get looks up the judgment cached for (title, content). Every kind of
// miss (absent, expired, undecodable, backend down) returns ok false and
// counts as exactly one miss.
func (e *Engine) Get(ctx context.Context, title, content string) (models.Judgment, bool) {
	start := time.Now()
	key := Fingerprint(title, content)

	data, err := e.store.Get(ctx, key)
	if err != nil {
		e.observeBackend(err)
		e.col.RecordMiss(time.Since(start))
		return models.Judgment{}, false
	}
	e.col.SetBackendUp(true)

	var j models.Judgment
	if err := msgpack.Unmarshal(data, &j); err != nil {
		// Drop the undecodable entry and treat the lookup as a miss.
		_, _ = e.store.Remove(ctx, key)
		e.syncEntries(ctx)
		e.col.RecordMiss(time.Since(start))
		return models.Judgment{}, false
	}

	if e.pol.TracksRecency() || e.slideTTL() > 0 {
		_ = e.store.Touch(ctx, key, e.slideTTL())
	}

	e.col.RecordHit(time.Since(start))
	return j, true
}

// Set caches the judgment for (title, content), evicting a batch first
// when the store is full and the key would grow it. The set counter
// advances on every call, success or not.
func (e *Engine) Set(ctx context.Context, title, content string, j models.Judgment) bool {
	key := Fingerprint(title, content)
	e.col.RecordSet()

	data, err := msgpack.Marshal(j)
	if err != nil {
		return false
	}

	exists, err := e.store.Has(ctx, key)
	if err != nil {
		e.observeBackend(err)
		return false
	}
	size, err := e.store.Len(ctx)
	if err != nil {
		e.observeBackend(err)
		return false
	}

	if !exists && size >= e.cfg.Capacity {
		if removed := e.evictBatch(ctx, size); removed > 0 {
			e.col.RecordEviction(removed)
		}
	}

	if err := e.store.Put(ctx, key, data, e.entryTTL()); err != nil {
		e.observeBackend(err)
		return false
	}
	e.col.SetBackendUp(true)
	e.syncEntries(ctx)
	return true
}

// Reset clears the backing store so a new run starts cold.
func (e *Engine) Reset(ctx context.Context) error {
	if err := e.store.Clear(ctx); err != nil {
		return fmt.Errorf("reset cache: %w", err)
	}
	e.col.SetEntries(0)
	return nil
}

// Policy returns the engine's eviction policy.
func (e *Engine) Policy() policy.Policy { return e.pol }

// evictBatch removes ceil(evictionFraction × size) victims, one minimum,
// and returns how many were actually removed.
func (e *Engine) evictBatch(ctx context.Context, size int) int {
	snap, err := e.store.Snapshot(ctx)
	if err != nil {
		e.observeBackend(err)
		return 0
	}

	victims := e.pol.SelectVictims(snap, batchSize(size))
	removed := 0
	for _, key := range victims {
		ok, err := e.store.Remove(ctx, key)
		if err != nil {
			e.observeBackend(err)
			continue
		}
		if ok {
			removed++
		}
	}
	return removed
}

func batchSize(size int) int {
	n := int(math.Ceil(evictionFraction * float64(size)))
	if n < 1 {
		n = 1
	}
	return n
}

// entryTTL returns the deadline to insert with: the configured TTL under
// expiry-aware policies, none otherwise.
func (e *Engine) entryTTL() time.Duration {
	if !e.pol.UsesTTL() {
		return 0
	}
	return e.cfg.TTL
}

// slideTTL returns the deadline to refresh on hits, or 0 when expiry is
// fixed at insertion.
func (e *Engine) slideTTL() time.Duration {
	if !e.cfg.SlidingTTL {
		return 0
	}
	return e.entryTTL()
}

func (e *Engine) observeBackend(err error) {
	e.col.SetBackendUp(!errors.Is(err, store.ErrBackendUnavailable))
}

func (e *Engine) syncEntries(ctx context.Context) {
	if n, err := e.store.Len(ctx); err == nil {
		e.col.SetEntries(n)
	}
}
