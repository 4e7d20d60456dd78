package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"bookkeeping-service/internal/models"
)

type PatternRepository interface {
	SavePatterns(ctx context.Context, tx *sql.Tx, patterns []models.PaymentPattern) error
	Patterns(ctx context.Context) ([]models.PaymentPattern, error)
}

type patternRepository struct {
	db *sql.DB
}

func NewPatternRepository(db *sql.DB) PatternRepository {
	return &patternRepository{db: db}
}

func (r *patternRepository) SavePatterns(ctx context.Context, tx *sql.Tx, patterns []models.PaymentPattern) error {
	query := `
		INSERT INTO payment_patterns (
			contact_id, average_days_to_pay, on_time_rate, early_rate, late_rate, sample_size
		) VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			average_days_to_pay = VALUES(average_days_to_pay),
			on_time_rate = VALUES(on_time_rate),
			early_rate = VALUES(early_rate),
			late_rate = VALUES(late_rate),
			sample_size = VALUES(sample_size),
			updated_at = CURRENT_TIMESTAMP
	`
	for _, p := range patterns {
		_, err := tx.ExecContext(ctx, query,
			p.ContactID,
			p.AverageDaysToPay,
			p.OnTimeRate,
			p.EarlyRate,
			p.LateRate,
			p.SampleSize,
		)
		if err != nil {
			return fmt.Errorf("save payment pattern %s: %w", p.ContactID, err)
		}
	}
	return nil
}

func (r *patternRepository) Patterns(ctx context.Context) ([]models.PaymentPattern, error) {
	query := `
		SELECT contact_id, average_days_to_pay, on_time_rate, early_rate,
		       late_rate, sample_size, updated_at
		FROM payment_patterns
		ORDER BY contact_id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patterns []models.PaymentPattern
	for rows.Next() {
		var p models.PaymentPattern
		err := rows.Scan(
			&p.ContactID,
			&p.AverageDaysToPay,
			&p.OnTimeRate,
			&p.EarlyRate,
			&p.LateRate,
			&p.SampleSize,
			&p.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, p)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return patterns, nil
}
