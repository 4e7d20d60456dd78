package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"bookkeeping-service/internal/forecast"
	"bookkeeping-service/internal/models"
)

func rowsFromResult(result *forecast.Result, generatedAt time.Time) ([]models.ForecastRow, error) {
	rows := make([]models.ForecastRow, 0, len(result.Forecast))
	for _, day := range result.Forecast {
		inflows, err := json.Marshal(day.Inflows)
		if err != nil {
			return nil, fmt.Errorf("failed to encode inflows for %s: %w", day.Date, err)
		}
		outflows, err := json.Marshal(day.Outflows)
		if err != nil {
			return nil, fmt.Errorf("failed to encode outflows for %s: %w", day.Date, err)
		}
		alerts, err := json.Marshal(day.Alerts)
		if err != nil {
			return nil, fmt.Errorf("failed to encode alerts for %s: %w", day.Date, err)
		}

		row := models.ForecastRow{
			ForecastDate:    day.Date.Time,
			OpeningBalance:  day.OpeningBalance,
			ClosingBalance:  day.ClosingBalance,
			Inflows:         inflows,
			Outflows:        outflows,
			ConfidenceLevel: day.ConfidenceLevel,
			Alerts:          alerts,
			GeneratedAt:     generatedAt,
		}
		if day.Scenarios != nil {
			row.BestCase = decimal.NewNullDecimal(day.Scenarios.BestCase)
			row.WorstCase = decimal.NewNullDecimal(day.Scenarios.WorstCase)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func daysFromRows(rows []models.ForecastRow) ([]forecast.Day, error) {
	days := make([]forecast.Day, 0, len(rows))
	for _, row := range rows {
		day := forecast.Day{
			Date:            forecast.NewDate(row.ForecastDate),
			OpeningBalance:  row.OpeningBalance,
			ClosingBalance:  row.ClosingBalance,
			ConfidenceLevel: row.ConfidenceLevel,
			Alerts:          []forecast.Alert{},
		}
		if err := json.Unmarshal(row.Inflows, &day.Inflows); err != nil {
			return nil, fmt.Errorf("stored inflows for %s: %w", day.Date, err)
		}
		if err := json.Unmarshal(row.Outflows, &day.Outflows); err != nil {
			return nil, fmt.Errorf("stored outflows for %s: %w", day.Date, err)
		}
		if len(row.Alerts) > 0 {
			if err := json.Unmarshal(row.Alerts, &day.Alerts); err != nil {
				return nil, fmt.Errorf("stored alerts for %s: %w", day.Date, err)
			}
			if day.Alerts == nil {
				day.Alerts = []forecast.Alert{}
			}
		}
		if row.BestCase.Valid && row.WorstCase.Valid {
			day.Scenarios = &forecast.Scenarios{
				BestCase:  row.BestCase.Decimal,
				WorstCase: row.WorstCase.Decimal,
			}
		}
		days = append(days, day)
	}
	return days, nil
}
