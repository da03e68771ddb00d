package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/cachesim/cachesim/pkg/driver"
	"github.com/cachesim/cachesim/pkg/report"
)

func newRunCmd() *cobra.Command {
	var (
		configPath string
		policyName string
		capacity   int
		requests   int
		jsonOut    bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one cache configuration against the question stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if requests > 0 {
				cfg.Run.Requests = requests
			}

			ctx := context.Background()
			reqs, err := loadRequests(ctx, cfg)
			if err != nil {
				return err
			}

			r := newRunner(cfg)
			r.Workers = 1

			results, err := r.Run(ctx, []driver.Config{{Policy: policyName, Capacity: capacity}}, reqs)
			if err != nil {
				return err
			}

			if jsonOut {
				return report.WriteJSON(os.Stdout, results)
			}
			return report.WriteTable(os.Stdout, results)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&policyName, "policy", "recency", "eviction policy (recency, expiry, hybrid)")
	cmd.Flags().IntVar(&capacity, "capacity", 100, "cache capacity in entries")
	cmd.Flags().IntVar(&requests, "requests", 0, "request count (overrides config)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "write JSON instead of a table")
	return cmd
}
