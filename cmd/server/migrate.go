package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"bookkeeping-service/internal/config"
	"bookkeeping-service/internal/database"
	"bookkeeping-service/internal/logging"
)

func newMigrateCmd() *cobra.Command {
	var (
		command string
		steps   int
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect database schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			return handleMigration(cmd.Context(), cfg, logger, command, steps)
		},
	}
	cmd.Flags().StringVar(&command, "command", "up", "Migration command (up/down/version)")
	cmd.Flags().IntVar(&steps, "steps", 0, "Number of migration steps (0 means all)")
	return cmd
}

func handleMigration(ctx context.Context, cfg *config.Config, logger logging.Logger, command string, steps int) error {
	// The connection bootstrap creates the database when it is missing.
	db, err := database.NewConnection(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to ensure database exists: %w", err)
	}
	db.Close()

	m, err := migrate.New(
		fmt.Sprintf("file://%s", cfg.Migration.Dir),
		cfg.GetMigrationDBURL(),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize migrate: %w", err)
	}
	defer m.Close()

	switch command {
	case "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case "down":
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	case "version":
		version, dirty, verErr := m.Version()
		if verErr != nil {
			if errors.Is(verErr, migrate.ErrNilVersion) {
				logger.Info("No migrations have been applied yet")
				return nil
			}
			return fmt.Errorf("failed to get version: %w", verErr)
		}
		logger.Info("Current migration version",
			logging.F("version", version),
			logging.F("dirty", dirty))
		return nil
	default:
		return fmt.Errorf("invalid migration command: %s", command)
	}

	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("No migration changes to apply")
			return nil
		}
		return fmt.Errorf("migration failed: %w", err)
	}

	logger.Info("Migration completed successfully", logging.F(logging.FieldOperation, command))
	return nil
}
