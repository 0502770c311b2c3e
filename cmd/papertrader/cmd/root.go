package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "papertrader",
	Short: "A deterministic paper-trading execution and risk engine",
	Long: `Papertrader is a backtesting-grade execution core written in Go.

It provides tools for:
  - Replaying portfolio event journals into ledger state
  - Simulating order matching against quote scripts
  - Gating trades against portfolio-level risk limits
  - Journaling fills and equity curves to CSV or SQLite`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}
