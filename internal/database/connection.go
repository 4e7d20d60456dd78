package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"bookkeeping-service/internal/config"
	"bookkeeping-service/internal/logging"
)

// NewConnection opens the MySQL pool, creating the database first when the
// server reports it unknown.
func NewConnection(ctx context.Context, cfg *config.Config, logger logging.Logger) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	err = db.PingContext(ctx)
	if err != nil {
		db.Close()
		if !strings.Contains(err.Error(), "Unknown database") {
			return nil, fmt.Errorf("error pinging database: %w", err)
		}

		logger.Warn("Database does not exist, attempting to create it",
			logging.F(logging.FieldResource, cfg.Database.Name))
		if err := createDatabase(ctx, cfg); err != nil {
			return nil, err
		}
		logger.Info("Database created", logging.F(logging.FieldResource, cfg.Database.Name))

		db, err = sql.Open("mysql", cfg.GetDSN())
		if err != nil {
			return nil, fmt.Errorf("error connecting to new database: %w", err)
		}
		if err = db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("error verifying connection to new database: %w", err)
		}
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	logger.Info("Connected to MySQL database",
		logging.F("host", cfg.Database.Host),
		logging.F(logging.FieldResource, cfg.Database.Name))
	return db, nil
}

func createDatabase(ctx context.Context, cfg *config.Config) error {
	rootDB, err := sql.Open("mysql", getRootDSN(cfg))
	if err != nil {
		return fmt.Errorf("error connecting to MySQL root: %w", err)
	}
	defer rootDB.Close()

	_, err = rootDB.ExecContext(ctx, fmt.Sprintf(
		"CREATE DATABASE IF NOT EXISTS `%s` CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci",
		cfg.Database.Name))
	if err != nil {
		return fmt.Errorf("error creating database: %w", err)
	}
	return nil
}

func getRootDSN(cfg *config.Config) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/?parseTime=true",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
	)
}

// WithTx runs fn inside a transaction, committing when fn returns nil and
// rolling back otherwise.
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
