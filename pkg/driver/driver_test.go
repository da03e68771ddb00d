package driver

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cachesim/cachesim/pkg/metrics"
	"github.com/cachesim/cachesim/pkg/models"
	"github.com/cachesim/cachesim/pkg/policy"
	"github.com/cachesim/cachesim/pkg/scoring"
	"github.com/cachesim/cachesim/pkg/workload"
)

// repeatedRequests cycles through distinct questions repeats times, the
// ordering every configuration replays.
func repeatedRequests(distinct, repeats int) []models.Record {
	var reqs []models.Record
	for range repeats {
		for i := range distinct {
			reqs = append(reqs, models.Record{
				ID:    int64(i + 1),
				Title: fmt.Sprintf("question-%d", i),
			})
		}
	}
	return reqs
}

func newTestRunner(workers int) *Runner {
	return &Runner{
		Scorer:   scoring.NewOffline("gpt-4o-mini"),
		NewStore: MemoryStores(),
		TTL:      time.Hour,
		Workers:  workers,
	}
}

func TestLabel(t *testing.T) {
	c := Config{Policy: policy.Recency, Capacity: 100}
	if c.Label() != "recency_size_100" {
		t.Errorf("unexpected label %q", c.Label())
	}
}

func TestGrid(t *testing.T) {
	configs := Grid([]string{policy.Recency, policy.Expiry}, []int{50, 100})
	if len(configs) != 4 {
		t.Fatalf("expected 4 configs, got %d", len(configs))
	}

	want := []string{"recency_size_50", "recency_size_100", "expiry_size_50", "expiry_size_100"}
	for i, cfg := range configs {
		if cfg.Label() != want[i] {
			t.Errorf("config %d: expected %s, got %s", i, want[i], cfg.Label())
		}
	}
}

func TestRunComparesCapacities(t *testing.T) {
	r := newTestRunner(2)
	configs := []Config{
		{Policy: policy.Recency, Capacity: 50},
		{Policy: policy.Recency, Capacity: 2},
	}
	requests := repeatedRequests(10, 5)

	results, err := r.Run(context.Background(), configs, requests)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	roomy := results["recency_size_50"]
	tight := results["recency_size_2"]

	if roomy.Hits != 40 || roomy.Misses != 10 {
		t.Errorf("expected 40 hits and 10 misses at capacity 50, got %d and %d", roomy.Hits, roomy.Misses)
	}
	if roomy.Evictions != 0 {
		t.Errorf("expected no evictions at capacity 50, got %d", roomy.Evictions)
	}
	if tight.Evictions == 0 {
		t.Error("expected evictions at capacity 2")
	}
	if tight.HitRate() >= roomy.HitRate() {
		t.Errorf("expected the tight cache to hit less: %.2f vs %.2f", tight.HitRate(), roomy.HitRate())
	}

	for label, snap := range results {
		if snap.TotalGets() != int64(len(requests)) {
			t.Errorf("%s: expected %d gets, got %d", label, len(requests), snap.TotalGets())
		}
	}
}

func TestRunEmptyRequests(t *testing.T) {
	r := newTestRunner(1)
	configs := []Config{{Policy: policy.Recency, Capacity: 10}}

	if _, err := r.Run(context.Background(), configs, nil); !errors.Is(err, workload.ErrNoRecords) {
		t.Errorf("expected ErrNoRecords, got %v", err)
	}
}

func TestRunEmptyGrid(t *testing.T) {
	r := newTestRunner(1)

	if _, err := r.Run(context.Background(), nil, repeatedRequests(3, 1)); err == nil {
		t.Error("expected error for empty grid")
	}
}

func TestRunUnknownPolicy(t *testing.T) {
	r := newTestRunner(1)
	configs := []Config{{Policy: "nonsense", Capacity: 10}}

	if _, err := r.Run(context.Background(), configs, repeatedRequests(3, 1)); err == nil {
		t.Error("expected error for unknown policy")
	}
}

type failScorer struct{}

func (failScorer) Score(context.Context, models.Record) (models.Judgment, error) {
	return models.Judgment{}, errors.New("scorer exploded")
}

func TestRunDiscardsResultsOnScorerFailure(t *testing.T) {
	r := &Runner{Scorer: failScorer{}, NewStore: MemoryStores(), Workers: 2}
	configs := []Config{
		{Policy: policy.Recency, Capacity: 10},
		{Policy: policy.Expiry, Capacity: 10},
	}

	results, err := r.Run(context.Background(), configs, repeatedRequests(3, 1))
	if err == nil {
		t.Fatal("expected error from failing scorer")
	}
	if results != nil {
		t.Errorf("expected no partial results, got %d", len(results))
	}
}

type fallbackScorer struct{}

func (fallbackScorer) Score(ctx context.Context, rec models.Record) (models.Judgment, error) {
	j := models.Judgment{Quality: models.QualityMedium, Score: 60, Answer: rec.BestAnswer, Model: "fallback"}
	return j, scoring.ErrAllProvidersFailed
}

func TestRunToleratesProviderFallback(t *testing.T) {
	r := &Runner{Scorer: fallbackScorer{}, NewStore: MemoryStores(), TTL: time.Hour, Workers: 1}
	configs := []Config{{Policy: policy.Recency, Capacity: 50}}

	results, err := r.Run(context.Background(), configs, repeatedRequests(10, 2))
	if err != nil {
		t.Fatal(err)
	}

	snap := results["recency_size_50"]
	if snap.Hits != 10 {
		t.Errorf("expected fallback judgments to be cached, got %d hits", snap.Hits)
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	r := newTestRunner(1)
	configs := []Config{{Policy: policy.Recency, Capacity: 10}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := r.Run(ctx, configs, repeatedRequests(3, 1)); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestCompareRankings(t *testing.T) {
	results := map[string]metrics.Snapshot{
		"recency_size_50": {Hits: 8, Misses: 2, Evictions: 4},
		"expiry_size_50":  {Hits: 5, Misses: 5, Evictions: 1},
		"hybrid_size_50":  {Hits: 9, Misses: 1, Evictions: 9},
	}

	cmp := Compare(results)

	wantHitRate := []string{"hybrid_size_50", "recency_size_50", "expiry_size_50"}
	for i, want := range wantHitRate {
		if cmp.ByHitRate[i].Label != want {
			t.Errorf("hit rate rank %d: expected %s, got %s", i, want, cmp.ByHitRate[i].Label)
		}
	}

	wantEvictions := []string{"expiry_size_50", "recency_size_50", "hybrid_size_50"}
	for i, want := range wantEvictions {
		if cmp.ByEvictions[i].Label != want {
			t.Errorf("evictions rank %d: expected %s, got %s", i, want, cmp.ByEvictions[i].Label)
		}
	}

	// Efficiency: recency 8/14, hybrid 9/19, expiry 5/11.
	wantEfficiency := []string{"recency_size_50", "hybrid_size_50", "expiry_size_50"}
	for i, want := range wantEfficiency {
		if cmp.ByEfficiency[i].Label != want {
			t.Errorf("efficiency rank %d: expected %s, got %s", i, want, cmp.ByEfficiency[i].Label)
		}
	}
}

func TestCompareBreaksTiesByLabel(t *testing.T) {
	results := map[string]metrics.Snapshot{
		"expiry_size_50":  {Hits: 5, Misses: 5, Evictions: 2},
		"recency_size_50": {Hits: 5, Misses: 5, Evictions: 2},
	}

	cmp := Compare(results)

	if cmp.ByHitRate[0].Label != "expiry_size_50" {
		t.Errorf("expected label order on ties, got %s first", cmp.ByHitRate[0].Label)
	}
	if cmp.ByEvictions[0].Label != "expiry_size_50" {
		t.Errorf("expected label order on ties, got %s first", cmp.ByEvictions[0].Label)
	}
}
