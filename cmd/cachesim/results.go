package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cachesim/cachesim/pkg/report"
)

func newResultsCmd() *cobra.Command {
	var (
		configPath string
		limit      int
		keepRuns   int
	)

	cmd := &cobra.Command{
		Use:   "results",
		Short: "List saved comparison results",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			rs, err := report.NewResultsStore(cfg.Data.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = rs.Close() }()

			ctx := context.Background()

			if keepRuns > 0 {
				removed, err := rs.Prune(ctx, keepRuns)
				if err != nil {
					return err
				}
				fmt.Printf("Pruned %d rows.\n", removed)
			}

			rows, err := rs.List(ctx, limit)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Println("No results found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tCONFIG\tHITS\tMISSES\tHIT RATE\tEVICTIONS\tEFFICIENCY\tSAVED")
			for _, r := range rows {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.1f%%\t%d\t%.1f%%\t%s\n",
					shortID(r.RunID), r.Label, r.Snap.Hits, r.Snap.Misses,
					r.Snap.HitRate()*100, r.Snap.Evictions, r.Snap.Efficiency()*100,
					r.CreatedAt.Format("2006-01-02T15:04:05"))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.Flags().IntVar(&limit, "limit", 50, "max rows to show")
	cmd.Flags().IntVar(&keepRuns, "prune", 0, "prune old runs, keeping only the newest N")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
