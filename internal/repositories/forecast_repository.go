package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bookkeeping-service/internal/models"
)

// ForecastRepository persists forecast days keyed by calendar date. Saving the
// same date twice replaces the earlier row.
type ForecastRepository interface {
	SaveDays(ctx context.Context, tx *sql.Tx, rows []models.ForecastRow) error
	Range(ctx context.Context, from time.Time, days int) ([]models.ForecastRow, error)
}

type forecastRepository struct {
	db *sql.DB
}

func NewForecastRepository(db *sql.DB) ForecastRepository {
	return &forecastRepository{db: db}
}

func (r *forecastRepository) SaveDays(ctx context.Context, tx *sql.Tx, rows []models.ForecastRow) error {
	query := `
		INSERT INTO cash_flow_forecasts (
			forecast_date, opening_balance, closing_balance, inflows, outflows,
			confidence_level, alerts, best_case, worst_case, generated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			opening_balance = VALUES(opening_balance),
			closing_balance = VALUES(closing_balance),
			inflows = VALUES(inflows),
			outflows = VALUES(outflows),
			confidence_level = VALUES(confidence_level),
			alerts = VALUES(alerts),
			best_case = VALUES(best_case),
			worst_case = VALUES(worst_case),
			generated_at = VALUES(generated_at)
	`
	for _, row := range rows {
		_, err := tx.ExecContext(ctx, query,
			row.ForecastDate,
			row.OpeningBalance,
			row.ClosingBalance,
			[]byte(row.Inflows),
			[]byte(row.Outflows),
			row.ConfidenceLevel,
			[]byte(row.Alerts),
			row.BestCase,
			row.WorstCase,
			row.GeneratedAt,
		)
		if err != nil {
			return fmt.Errorf("save forecast day %s: %w", row.ForecastDate.Format(models.DateLayout), err)
		}
	}
	return nil
}

// Range returns stored days in [from, from+days) ordered by date. Missing
// dates are simply absent from the result.
func (r *forecastRepository) Range(ctx context.Context, from time.Time, days int) ([]models.ForecastRow, error) {
	query := `
		SELECT forecast_date, opening_balance, closing_balance, inflows, outflows,
		       confidence_level, alerts, best_case, worst_case, generated_at
		FROM cash_flow_forecasts
		WHERE forecast_date >= ?
		AND forecast_date < ?
		ORDER BY forecast_date
	`
	rows, err := r.db.QueryContext(ctx, query, from, from.AddDate(0, 0, days))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ForecastRow
	for rows.Next() {
		var row models.ForecastRow
		var inflows, outflows, alerts []byte
		err := rows.Scan(
			&row.ForecastDate,
			&row.OpeningBalance,
			&row.ClosingBalance,
			&inflows,
			&outflows,
			&row.ConfidenceLevel,
			&alerts,
			&row.BestCase,
			&row.WorstCase,
			&row.GeneratedAt,
		)
		if err != nil {
			return nil, err
		}
		row.Inflows = inflows
		row.Outflows = outflows
		row.Alerts = alerts
		out = append(out, row)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
