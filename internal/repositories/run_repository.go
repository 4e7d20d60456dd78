package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"bookkeeping-service/internal/models"
)

// RunRepository tracks sync and reconciliation batches.
type RunRepository interface {
	CreateRun(ctx context.Context, run *models.Run) error
	FinishRun(ctx context.Context, runID, status string, details json.RawMessage) error
	LastSuccessful(ctx context.Context, kind string) (*models.Run, error)
}

type runRepository struct {
	db *sql.DB
}

func NewRunRepository(db *sql.DB) RunRepository {
	return &runRepository{db: db}
}

func (r *runRepository) CreateRun(ctx context.Context, run *models.Run) error {
	query := `
		INSERT INTO runs (
			run_id, kind, status, started_at
		) VALUES (?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		run.RunID,
		run.Kind,
		run.Status,
		run.StartedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	run.ID = id
	return nil
}

func (r *runRepository) FinishRun(ctx context.Context, runID, status string, details json.RawMessage) error {
	query := `
		UPDATE runs
		SET status = ?,
			details = ?,
			finished_at = ?
		WHERE run_id = ?
	`
	result, err := r.db.ExecContext(ctx, query, status, []byte(details), time.Now().UTC(), runID)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

// LastSuccessful returns the most recently started successful run of a kind.
func (r *runRepository) LastSuccessful(ctx context.Context, kind string) (*models.Run, error) {
	run := &models.Run{}
	query := `
		SELECT id, run_id, kind, status, details, started_at, finished_at
		FROM runs
		WHERE kind = ?
		AND status = ?
		ORDER BY started_at DESC
		LIMIT 1
	`
	var details []byte
	var finished sql.NullTime
	err := r.db.QueryRowContext(ctx, query, kind, models.RunStatusSucceeded).Scan(
		&run.ID,
		&run.RunID,
		&run.Kind,
		&run.Status,
		&details,
		&run.StartedAt,
		&finished,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	run.Details = details
	run.FinishedAt = timePtr(finished)
	return run, nil
}
