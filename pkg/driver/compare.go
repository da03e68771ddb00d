package driver

import (
	"sort"

	"github.com/cachesim/cachesim/pkg/metrics"
)

// Ranked is one configuration within a ranking.
type Ranked struct {
	Label string           `json:"label"`
	Snap  metrics.Snapshot `json:"metrics"`
}

// Comparison ranks every configuration of a finished run three ways.
type Comparison struct {
	ByHitRate    []Ranked `json:"by_hit_rate"`
	ByEvictions  []Ranked `json:"by_evictions"`
	ByEfficiency []Ranked `json:"by_efficiency"`
}

// Compare builds rankings from per-configuration snapshots. Hit rate
// and efficiency rank descending, eviction counts ascending; ties keep
// label order so output is stable across runs.
func Compare(results map[string]metrics.Snapshot) Comparison {
	base := make([]Ranked, 0, len(results))
	for label, snap := range results {
		base = append(base, Ranked{Label: label, Snap: snap})
	}
	sort.Slice(base, func(i, j int) bool { return base[i].Label < base[j].Label })

	return Comparison{
		ByHitRate: rankBy(base, func(a, b Ranked) bool {
			return a.Snap.HitRate() > b.Snap.HitRate()
		}),
		ByEvictions: rankBy(base, func(a, b Ranked) bool {
			return a.Snap.Evictions < b.Snap.Evictions
		}),
		ByEfficiency: rankBy(base, func(a, b Ranked) bool {
			return a.Snap.Efficiency() > b.Snap.Efficiency()
		}),
	}
}

func rankBy(base []Ranked, less func(a, b Ranked) bool) []Ranked {
	ranked := make([]Ranked, len(base))
	copy(ranked, base)
	sort.SliceStable(ranked, func(i, j int) bool { return less(ranked[i], ranked[j]) })
	return ranked
}
