// Package metrics accumulates per-engine counters and produces snapshots
// comparable across simulation runs.
package metrics

import (
	"sync/atomic"
	"time"
)

// Collector accumulates counters for one engine instance. Counters are
// atomic so a snapshot may be taken mid-run from another goroutine.
type Collector struct {
	hits      atomic.Int64
	misses    atomic.Int64
	sets      atomic.Int64
	evictions atomic.Int64
	entries   atomic.Int64

	hitLatencyNS  atomic.Int64
	hitLatencyN   atomic.Int64
	missLatencyNS atomic.Int64
	missLatencyN  atomic.Int64

	backendDown atomic.Bool
	started     time.Time
}

// NewCollector returns a Collector with the backend assumed available.
func NewCollector() *Collector {
	return &Collector{started: time.Now()}
}

// RecordHit counts one hit and its elapsed time.
func (c *Collector) RecordHit(d time.Duration) {
	c.hits.Add(1)
	c.hitLatencyNS.Add(int64(d))
	c.hitLatencyN.Add(1)
}

// RecordMiss counts one miss and its elapsed time.
func (c *Collector) RecordMiss(d time.Duration) {
	c.misses.Add(1)
	c.missLatencyNS.Add(int64(d))
	c.missLatencyN.Add(1)
}

// RecordSet counts one set, replacement or insert alike.
func (c *Collector) RecordSet() {
	c.sets.Add(1)
}

// RecordEviction counts n evicted entries.
func (c *Collector) RecordEviction(n int) {
	c.evictions.Add(int64(n))
}

// SetEntries records the store's current entry count.
func (c *Collector) SetEntries(n int) {
	c.entries.Store(int64(n))
}

// SetBackendUp records the last observed backend state.
func (c *Collector) SetBackendUp(up bool) {
	c.backendDown.Store(!up)
}

// Snapshot returns the counters as of the call. It is a pure read.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Sets:      c.sets.Load(),
		Evictions: c.evictions.Load(),
		Entries:   c.entries.Load(),
		HitLatency: LatencySummary{
			SumNS: c.hitLatencyNS.Load(),
			Count: c.hitLatencyN.Load(),
		},
		MissLatency: LatencySummary{
			SumNS: c.missLatencyNS.Load(),
			Count: c.missLatencyN.Load(),
		},
		DurationNS: time.Since(c.started).Nanoseconds(),
		BackendUp:  !c.backendDown.Load(),
	}
}

// LatencySummary is a running sum and count of operation latencies.
type LatencySummary struct {
	SumNS int64 `json:"sum_ns"`
	Count int64 `json:"count"`
}

// Mean returns the average latency, or 0 when nothing was recorded.
func (l LatencySummary) Mean() time.Duration {
	if l.Count == 0 {
		return 0
	}
	return time.Duration(l.SumNS / l.Count)
}

// Snapshot is a point-in-time report of one engine's counters. Rates are
// derived on demand, never stored.
type Snapshot struct {
	Hits        int64          `json:"hits"`
	Misses      int64          `json:"misses"`
	Sets        int64          `json:"sets"`
	Evictions   int64          `json:"evictions"`
	Entries     int64          `json:"entries"`
	HitLatency  LatencySummary `json:"hit_latency"`
	MissLatency LatencySummary `json:"miss_latency"`
	DurationNS  int64          `json:"duration_ns"`
	BackendUp   bool           `json:"backend_available"`
}

// TotalGets returns the number of lookups: hits plus misses.
func (s Snapshot) TotalGets() int64 {
	return s.Hits + s.Misses
}

// HitRate returns hits over total lookups, or 0 when nothing was looked up.
func (s Snapshot) HitRate() float64 {
	gets := s.TotalGets()
	if gets == 0 {
		return 0
	}
	return float64(s.Hits) / float64(gets)
}

// MissRate returns misses over total lookups, or 0 when nothing was looked up.
func (s Snapshot) MissRate() float64 {
	gets := s.TotalGets()
	if gets == 0 {
		return 0
	}
	return float64(s.Misses) / float64(gets)
}

// Efficiency returns hits over hits plus misses plus evictions, the single
// comparative score across configurations. 0 when no work was done.
func (s Snapshot) Efficiency() float64 {
	den := s.Hits + s.Misses + s.Evictions
	if den == 0 {
		return 0
	}
	return float64(s.Hits) / float64(den)
}

// Duration returns the wall-clock time covered by the snapshot.
func (s Snapshot) Duration() time.Duration {
	return time.Duration(s.DurationNS)
}
