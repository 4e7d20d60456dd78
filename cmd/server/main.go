package main

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"bookkeeping-service/internal/config"
	"bookkeeping-service/internal/logging"
)

func main() {
	// API consumers expect money as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "bookkeeping-service",
		Short:         "Cash flow forecasting over ledger data",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newServeCmd(), newMigrateCmd(), newForecastCmd())
	return cmd
}

// setup loads configuration and builds the process logger.
func setup() (*config.Config, logging.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("error loading config: %w", err)
	}
	logger := logging.NewLogrusAdapter(cfg.Log.Level, cfg.Log.Format).
		WithField("environment", cfg.Server.Environment)
	return cfg, logger, nil
}
