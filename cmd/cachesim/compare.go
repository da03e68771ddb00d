package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cachesim/cachesim/pkg/driver"
	"github.com/cachesim/cachesim/pkg/report"
)

func newCompareCmd() *cobra.Command {
	var (
		configPath string
		jsonOut    bool
		noSave     bool
	)

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare every policy and capacity over the same request stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			ctx := context.Background()
			reqs, err := loadRequests(ctx, cfg)
			if err != nil {
				return err
			}

			configs := driver.Grid(cfg.Cache.Policies, cfg.Cache.Capacities)
			results, err := newRunner(cfg).Run(ctx, configs, reqs)
			if err != nil {
				return err
			}

			runID := ""
			if !noSave {
				rs, err := report.NewResultsStore(cfg.Data.DBPath)
				if err != nil {
					return err
				}
				defer func() { _ = rs.Close() }()

				runID = uuid.NewString()
				if err := rs.Save(ctx, runID, results); err != nil {
					return err
				}
			}

			if jsonOut {
				return report.WriteJSON(os.Stdout, results)
			}

			if err := report.WriteTable(os.Stdout, results); err != nil {
				return err
			}
			fmt.Println()
			if err := report.WriteComparison(os.Stdout, driver.Compare(results)); err != nil {
				return err
			}
			if runID != "" {
				fmt.Printf("Saved as run %s.\n", runID)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "write JSON instead of tables")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "skip persisting results")
	return cmd
}
