package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/papertrader/config"
	"github.com/rustyeddy/papertrader/replay"
)

var simrunCmd = &cobra.Command{
	Use:   "simrun",
	Short: "Run quote and order scripts through the paper engine",
	Long: `Drive a quote script through the risk gate and matching engine,
submitting scripted orders as their time arrives.

Example:
  papertrader simrun --config run.yaml`,
	RunE: runSimrun,
}

var (
	simrunConfigPath string
	simrunVerbose    bool
)

func init() {
	rootCmd.AddCommand(simrunCmd)

	simrunCmd.Flags().StringVarP(&simrunConfigPath, "config", "f", "", "run configuration file")
	simrunCmd.Flags().BoolVarP(&simrunVerbose, "verbose", "v", false, "debug logging")
	simrunCmd.MarkFlagRequired("config")
}

func runSimrun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(simrunConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Replay.QuotesFile == "" {
		return fmt.Errorf("config must include replay.quotes_file")
	}

	log, err := newLogger(simrunVerbose)
	if err != nil {
		return err
	}
	defer log.Sync()

	qf, err := os.Open(cfg.Replay.QuotesFile)
	if err != nil {
		return fmt.Errorf("open quotes: %w", err)
	}
	defer qf.Close()
	quotes, err := replay.ReadQuotesCSV(qf)
	if err != nil {
		return err
	}

	var orders []replay.TimedOrder
	if cfg.Replay.OrdersFile != "" {
		of, err := os.Open(cfg.Replay.OrdersFile)
		if err != nil {
			return fmt.Errorf("open orders: %w", err)
		}
		defer of.Close()
		if orders, err = replay.ReadOrdersCSV(of); err != nil {
			return err
		}
	}

	runner, err := replay.New(cfg, log)
	if err != nil {
		return err
	}
	defer runner.Close()

	rep, err := runner.Run(context.Background(), quotes, orders)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	fmt.Printf("\nRun complete\n")
	fmt.Printf("  Cash:         %.2f\n", rep.Cash)
	fmt.Printf("  Equity:       %.2f\n", rep.Equity)
	fmt.Printf("  Realized P&L: %.2f\n", rep.RealizedPnL)
	fmt.Printf("  Max drawdown: %.2f%%\n", -100*rep.MaxDrawdown)
	fmt.Printf("  Fills:        %d (submitted %d, gated %d)\n", rep.Fills, rep.Submitted, rep.Gated)

	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
