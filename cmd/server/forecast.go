package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"bookkeeping-service/internal/services"
)

func newForecastCmd() *cobra.Command {
	var (
		days      int
		scenarios bool
	)
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Generate and persist a forecast, printing it as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("days") {
				days = cfg.Forecast.DefaultDays
			}

			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()

			result, err := a.forecasts.GenerateForecast(cmd.Context(), days, scenarios)
			if err != nil && !(services.IsNotPersisted(err) && result != nil) {
				return err
			}
			if err != nil {
				logger.WithError(err).Warn("Forecast printed but not persisted")
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return fmt.Errorf("failed to encode forecast: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "Forecast horizon in days (1-365)")
	cmd.Flags().BoolVar(&scenarios, "scenarios", false, "Include best and worst case balances")
	return cmd
}
