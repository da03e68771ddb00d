package driver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cachesim/cachesim/pkg/engine"
	"github.com/cachesim/cachesim/pkg/metrics"
	"github.com/cachesim/cachesim/pkg/models"
	"github.com/cachesim/cachesim/pkg/policy"
	"github.com/cachesim/cachesim/pkg/scoring"
	"github.com/cachesim/cachesim/pkg/store"
	"github.com/cachesim/cachesim/pkg/workload"
)

// Config names one engine configuration in a comparison grid.
type Config struct {
	Policy   string
	Capacity int
}

// Label returns the configuration's reporting label.
func (c Config) Label() string {
	return fmt.Sprintf("%s_size_%d", c.Policy, c.Capacity)
}

// Grid expands the cross product of policies and capacities.
func Grid(policies []string, capacities []int) []Config {
	configs := make([]Config, 0, len(policies)*len(capacities))
	for _, p := range policies {
		for _, capacity := range capacities {
			configs = append(configs, Config{Policy: p, Capacity: capacity})
		}
	}
	return configs
}

// StoreFactory builds a fresh store for one configuration. Labels are
// unique within a run, so factories can use them to keep backend state
// disjoint across configurations.
type StoreFactory func(label string) (store.Store, error)

// MemoryStores returns a factory producing independent in-memory stores.
func MemoryStores() StoreFactory {
	return func(string) (store.Store, error) {
		return store.NewMemory(), nil
	}
}

// Runner replays one request stream against every configuration in a
// grid and collects per-configuration metrics.
type Runner struct {
	Scorer     scoring.Scorer
	NewStore   StoreFactory
	TTL        time.Duration
	SlidingTTL bool
	Workers    int
}

// Run executes every configuration against the shared request stream,
// keyed by configuration label. Configurations run in parallel with
// fully disjoint engines, stores and collectors. If any run fails the
// whole comparison is discarded rather than reported partially.
func (r *Runner) Run(ctx context.Context, configs []Config, requests []models.Record) (map[string]metrics.Snapshot, error) {
	if len(configs) == 0 {
		return nil, errors.New("no configurations to run")
	}
	if len(requests) == 0 {
		return nil, workload.ErrNoRecords
	}

	workers := r.Workers
	if workers <= 0 {
		workers = 1
	}

	snaps := make([]metrics.Snapshot, len(configs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, cfg := range configs {
		g.Go(func() error {
			snap, err := r.runOne(ctx, cfg, requests)
			if err != nil {
				return fmt.Errorf("run %s: %w", cfg.Label(), err)
			}
			snaps[i] = snap
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make(map[string]metrics.Snapshot, len(configs))
	for i, cfg := range configs {
		results[cfg.Label()] = snaps[i]
	}
	return results, nil
}

func (r *Runner) runOne(ctx context.Context, cfg Config, requests []models.Record) (metrics.Snapshot, error) {
	pol, err := policy.New(cfg.Policy)
	if err != nil {
		return metrics.Snapshot{}, err
	}

	st, err := r.NewStore(cfg.Label())
	if err != nil {
		return metrics.Snapshot{}, fmt.Errorf("create store: %w", err)
	}
	defer st.Close()

	col := metrics.NewCollector()
	eng, err := engine.New(st, pol, col, engine.Config{
		Capacity:   cfg.Capacity,
		TTL:        r.TTL,
		SlidingTTL: r.SlidingTTL,
	})
	if err != nil {
		return metrics.Snapshot{}, err
	}

	// Leftover state from an earlier run against the same backend would
	// skew the numbers.
	if err := eng.Reset(ctx); err != nil {
		log.Printf("reset %s failed: %v, starting anyway", cfg.Label(), err)
	}
	if !st.Available(ctx) {
		log.Printf("store for %s unavailable, running degraded", cfg.Label())
		col.SetBackendUp(false)
	}

	for _, rec := range requests {
		if err := ctx.Err(); err != nil {
			return metrics.Snapshot{}, err
		}

		if _, ok := eng.Get(ctx, rec.Title, rec.Content); ok {
			continue
		}

		j, err := r.Scorer.Score(ctx, rec)
		if err != nil && !errors.Is(err, scoring.ErrAllProvidersFailed) {
			return metrics.Snapshot{}, fmt.Errorf("score %q: %w", rec.Title, err)
		}
		eng.Set(ctx, rec.Title, rec.Content, j)
	}

	return col.Snapshot(), nil
}
