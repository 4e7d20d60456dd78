package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"bookkeeping-service/internal/handlers"
	"bookkeeping-service/internal/logging"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()

			router := handlers.SetupRouter(a.handlers(), cfg, a.metrics, logger)
			srv := &http.Server{
				Addr:         cfg.Server.Address,
				Handler:      router,
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
			}

			serveErr := make(chan error, 1)
			go func() {
				logger.Info("Server is running", logging.F("address", cfg.Server.Address))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
				close(serveErr)
			}()

			select {
			case err := <-serveErr:
				if err != nil {
					logger.WithError(err).Error("HTTP server error")
					return err
				}
			case <-ctx.Done():
			}

			logger.Info("Shutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Error("Server shutdown failed")
				return err
			}
			logger.Info("Server exited gracefully")
			return nil
		},
	}
}
