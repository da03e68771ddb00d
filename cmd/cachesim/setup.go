package main

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/cachesim/cachesim/pkg/config"
	"github.com/cachesim/cachesim/pkg/driver"
	"github.com/cachesim/cachesim/pkg/models"
	"github.com/cachesim/cachesim/pkg/scoring"
	"github.com/cachesim/cachesim/pkg/store"
	redisstore "github.com/cachesim/cachesim/pkg/store/redis"
	"github.com/cachesim/cachesim/pkg/workload"
)

// loadConfig reads the config file, or falls back to the built-in
// defaults when no path is given.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// loadRequests builds the request stream: corpus records sampled with
// repetition so popular questions recur.
func loadRequests(ctx context.Context, cfg *config.Config) ([]models.Record, error) {
	qs, err := workload.NewQuestionStore(cfg.Data.DBPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = qs.Close() }()

	src, err := qs.Source(ctx, cfg.Data.Limit)
	if err != nil {
		if errors.Is(err, workload.ErrNoRecords) {
			return nil, fmt.Errorf("%w: import a corpus with `cachesim load` first", err)
		}
		return nil, err
	}

	records, err := workload.ReadAll(src)
	if err != nil {
		return nil, err
	}
	return workload.Sample(records, cfg.Run.Requests, cfg.Run.Seed, cfg.Run.Skew)
}

// buildScorer picks the scoring backend. Chain mode needs configured
// providers; anything else scores offline.
func buildScorer(cfg *config.Config) scoring.Scorer {
	if cfg.Scoring.Mode == "chain" && len(cfg.Scoring.Providers) > 0 {
		providers := make([]scoring.Provider, 0, len(cfg.Scoring.Providers))
		for _, p := range cfg.Scoring.Providers {
			providers = append(providers, scoring.Provider{
				Name:              p.Name,
				URL:               p.URL,
				APIKey:            p.APIKey,
				Model:             p.Model,
				Priority:          p.Priority,
				RequestsPerMinute: p.RequestsPerMinute,
			})
		}
		return scoring.NewChain(providers)
	}
	return scoring.NewOffline(cfg.Scoring.Model)
}

// buildStoreFactory selects the cache backend. Redis keeps each
// configuration under its own key prefix so parallel runs stay disjoint.
func buildStoreFactory(cfg *config.Config) driver.StoreFactory {
	if cfg.Cache.Backend != "redis" {
		return driver.MemoryStores()
	}
	return func(label string) (store.Store, error) {
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return redisstore.New(client, "cachesim:"+label), nil
	}
}

func newRunner(cfg *config.Config) *driver.Runner {
	return &driver.Runner{
		Scorer:     buildScorer(cfg),
		NewStore:   buildStoreFactory(cfg),
		TTL:        cfg.Cache.TTL.Std(),
		SlidingTTL: cfg.Cache.SlidingTTL,
		Workers:    cfg.Run.Workers,
	}
}
