package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cachesim/cachesim/pkg/workload"
)

func newLoadCmd() *cobra.Command {
	var (
		configPath string
		csvPath    string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Import question records from a CSV file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if csvPath == "" {
				csvPath = cfg.Data.CSVPath
			}
			if csvPath == "" {
				return fmt.Errorf("no CSV file given; use --csv or set data.csv_path")
			}
			if limit <= 0 {
				limit = cfg.Data.Limit
			}

			qs, err := workload.NewQuestionStore(cfg.Data.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = qs.Close() }()

			ctx := context.Background()
			n, err := qs.ImportCSV(ctx, csvPath, limit)
			if err != nil {
				return err
			}

			total, err := qs.Count(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Imported %d rows; %d questions in %s.\n", n, total, cfg.Data.DBPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&csvPath, "csv", "", "CSV file to import")
	cmd.Flags().IntVar(&limit, "limit", 0, "max rows to import (overrides config)")
	return cmd
}
