package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:     "cachesim",
		Short:   "Cache eviction policy simulator for Q&A scoring workloads",
		Version: version,
	}

	root.AddCommand(
		newLoadCmd(),
		newRunCmd(),
		newCompareCmd(),
		newResultsCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
