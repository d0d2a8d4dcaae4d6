package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/concordlabs/concord/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "concord",
	Short: "Multi-agent coordination substrate",
	Long: `Concord coordinates fleets of analysis agents: it routes their
messages over typed priority channels, keeps the shared tactical ledger
of objectives, tasks and results, supervises progress, and arbitrates
conflicting findings.

Start a run from a plan file:

  concord run plan.yaml

Then follow it live from another terminal:

  concord watch`,
	Version: version.Get(),
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(watchCmd)
}
