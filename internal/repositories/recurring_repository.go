package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"bookkeeping-service/internal/models"
)

type RecurringRepository interface {
	UpsertTemplates(ctx context.Context, tx *sql.Tx, templates []models.RepeatingTransaction) error
	ActiveTemplates(ctx context.Context) ([]models.RepeatingTransaction, error)
}

type recurringRepository struct {
	db *sql.DB
}

func NewRecurringRepository(db *sql.DB) RecurringRepository {
	return &recurringRepository{db: db}
}

func (r *recurringRepository) UpsertTemplates(ctx context.Context, tx *sql.Tx, templates []models.RepeatingTransaction) error {
	query := `
		INSERT INTO repeating_transactions (
			external_id, type, contact_id, amount, next_scheduled_date,
			schedule_unit, schedule_period, end_date, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			type = VALUES(type),
			contact_id = VALUES(contact_id),
			amount = VALUES(amount),
			next_scheduled_date = VALUES(next_scheduled_date),
			schedule_unit = VALUES(schedule_unit),
			schedule_period = VALUES(schedule_period),
			end_date = VALUES(end_date),
			status = VALUES(status),
			updated_at = CURRENT_TIMESTAMP
	`
	for _, t := range templates {
		_, err := tx.ExecContext(ctx, query,
			t.ExternalID,
			t.Type,
			t.ContactID,
			t.Amount,
			t.NextScheduledDate,
			t.ScheduleUnit,
			t.SchedulePeriod,
			nullTime(t.EndDate),
			t.Status,
		)
		if err != nil {
			return fmt.Errorf("upsert repeating transaction %s: %w", t.ExternalID, err)
		}
	}
	return nil
}

func (r *recurringRepository) ActiveTemplates(ctx context.Context) ([]models.RepeatingTransaction, error) {
	query := `
		SELECT id, external_id, type, contact_id, amount, next_scheduled_date,
		       schedule_unit, schedule_period, end_date, status, updated_at
		FROM repeating_transactions
		WHERE status = ?
		ORDER BY next_scheduled_date, id
	`
	rows, err := r.db.QueryContext(ctx, query, models.RepeatingStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []models.RepeatingTransaction
	for rows.Next() {
		var t models.RepeatingTransaction
		var end sql.NullTime
		err := rows.Scan(
			&t.ID,
			&t.ExternalID,
			&t.Type,
			&t.ContactID,
			&t.Amount,
			&t.NextScheduledDate,
			&t.ScheduleUnit,
			&t.SchedulePeriod,
			&end,
			&t.Status,
			&t.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		t.EndDate = timePtr(end)
		templates = append(templates, t)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return templates, nil
}
