package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/cachesim/cachesim/pkg/driver"
	"github.com/cachesim/cachesim/pkg/metrics"
)

// Results maps configuration labels to their collected metrics.
type Results = map[string]metrics.Snapshot

// WriteTable renders per-configuration metrics as an aligned table,
// sorted by label.
func WriteTable(w io.Writer, results Results) error {
	labels := make([]string, 0, len(results))
	for label := range results {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CONFIG\tGETS\tHITS\tMISSES\tHIT RATE\tEVICTIONS\tEFFICIENCY\tMEAN HIT\tMEAN MISS\tENTRIES\tBACKEND")
	for _, label := range labels {
		snap := results[label]
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%.1f%%\t%d\t%.1f%%\t%s\t%s\t%d\t%s\n",
			label,
			snap.TotalGets(),
			snap.Hits,
			snap.Misses,
			snap.HitRate()*100,
			snap.Evictions,
			snap.Efficiency()*100,
			formatLatency(snap.HitLatency),
			formatLatency(snap.MissLatency),
			snap.Entries,
			backendLabel(snap.BackendUp),
		)
	}
	return tw.Flush()
}

// row augments a snapshot with its derived rates for JSON output.
type row struct {
	metrics.Snapshot
	HitRate    float64 `json:"hit_rate"`
	MissRate   float64 `json:"miss_rate"`
	Efficiency float64 `json:"efficiency"`
}

// WriteJSON renders per-configuration metrics as indented JSON keyed by
// label, with derived rates filled in.
func WriteJSON(w io.Writer, results Results) error {
	out := make(map[string]row, len(results))
	for label, snap := range results {
		out[label] = row{
			Snapshot:   snap,
			HitRate:    snap.HitRate(),
			MissRate:   snap.MissRate(),
			Efficiency: snap.Efficiency(),
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// WriteComparison renders the three rankings of a comparison, best
// configuration first in each.
func WriteComparison(w io.Writer, cmp driver.Comparison) error {
	sections := []struct {
		title  string
		ranked []driver.Ranked
		value  func(driver.Ranked) string
	}{
		{"BY HIT RATE", cmp.ByHitRate, func(r driver.Ranked) string {
			return fmt.Sprintf("%.1f%%", r.Snap.HitRate()*100)
		}},
		{"BY EVICTIONS (fewest first)", cmp.ByEvictions, func(r driver.Ranked) string {
			return fmt.Sprintf("%d", r.Snap.Evictions)
		}},
		{"BY EFFICIENCY", cmp.ByEfficiency, func(r driver.Ranked) string {
			return fmt.Sprintf("%.1f%%", r.Snap.Efficiency()*100)
		}},
	}

	for _, sec := range sections {
		fmt.Fprintln(w, sec.title)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for i, r := range sec.ranked {
			fmt.Fprintf(tw, "%d.\t%s\t%s\n", i+1, r.Label, sec.value(r))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}
	return nil
}

func formatLatency(l metrics.LatencySummary) string {
	if l.Count == 0 {
		return "-"
	}
	return l.Mean().Round(time.Microsecond).String()
}

func backendLabel(up bool) string {
	if up {
		return "up"
	}
	return "down"
}
