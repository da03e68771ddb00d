package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/cachesim/cachesim/pkg/driver"
	"github.com/cachesim/cachesim/pkg/metrics"
)

func sampleResults() Results {
	return Results{
		"recency_size_50": {
			Hits: 40, Misses: 10, Sets: 10, Entries: 10,
			HitLatency:  metrics.LatencySummary{SumNS: 40_000, Count: 40},
			MissLatency: metrics.LatencySummary{SumNS: 50_000, Count: 10},
			BackendUp:   true,
		},
		"expiry_size_50": {
			Hits: 30, Misses: 20, Sets: 20, Evictions: 5, Entries: 10,
			HitLatency:  metrics.LatencySummary{SumNS: 60_000, Count: 30},
			MissLatency: metrics.LatencySummary{SumNS: 40_000, Count: 20},
		},
	}
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTable(&buf, sampleResults()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	if !strings.Contains(out, "CONFIG") || !strings.Contains(out, "HIT RATE") {
		t.Errorf("missing header in output:\n%s", out)
	}
	if !strings.Contains(out, "recency_size_50") || !strings.Contains(out, "expiry_size_50") {
		t.Errorf("missing config rows in output:\n%s", out)
	}
	if strings.Index(out, "expiry_size_50") > strings.Index(out, "recency_size_50") {
		t.Error("expected rows sorted by label")
	}
	if !strings.Contains(out, "80.0%") {
		t.Errorf("expected 80.0%% hit rate in output:\n%s", out)
	}
	if !strings.Contains(out, "1µs") {
		t.Errorf("expected mean hit latency in output:\n%s", out)
	}
	if !strings.Contains(out, "up") || !strings.Contains(out, "down") {
		t.Errorf("expected backend states in output:\n%s", out)
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleResults()); err != nil {
		t.Fatal(err)
	}

	var decoded map[string]struct {
		Hits       int64   `json:"hits"`
		HitRate    float64 `json:"hit_rate"`
		Efficiency float64 `json:"efficiency"`
		BackendUp  bool    `json:"backend_available"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}

	recency := decoded["recency_size_50"]
	if recency.Hits != 40 {
		t.Errorf("expected 40 hits, got %d", recency.Hits)
	}
	if recency.HitRate != 0.8 {
		t.Errorf("expected hit rate 0.8, got %f", recency.HitRate)
	}
	if recency.Efficiency != 0.8 {
		t.Errorf("expected efficiency 0.8, got %f", recency.Efficiency)
	}
	if !recency.BackendUp {
		t.Error("expected backend available")
	}

	if decoded["expiry_size_50"].BackendUp {
		t.Error("expected backend unavailable for expiry config")
	}
}

func TestWriteComparison(t *testing.T) {
	cmp := driver.Compare(sampleResults())

	var buf bytes.Buffer
	if err := WriteComparison(&buf, cmp); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	for _, title := range []string{"BY HIT RATE", "BY EVICTIONS (fewest first)", "BY EFFICIENCY"} {
		if !strings.Contains(out, title) {
			t.Errorf("missing section %q in output:\n%s", title, out)
		}
	}

	// recency hits 80% vs expiry 60%, so it ranks first.
	lines := strings.Split(out, "\n")
	for i, line := range lines {
		if line == "BY HIT RATE" {
			if !strings.HasPrefix(lines[i+1], "1.") || !strings.Contains(lines[i+1], "recency_size_50") {
				t.Errorf("expected recency ranked first, got %q", lines[i+1])
			}
			break
		}
	}
}

func TestFormatLatency(t *testing.T) {
	if got := formatLatency(metrics.LatencySummary{}); got != "-" {
		t.Errorf("expected dash for empty summary, got %q", got)
	}
	if got := formatLatency(metrics.LatencySummary{SumNS: 3_000_000, Count: 3}); got != "1ms" {
		t.Errorf("expected 1ms, got %q", got)
	}
}
