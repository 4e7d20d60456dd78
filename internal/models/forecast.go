package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ForecastRow is the persisted form of one forecast day, keyed by date.
// Breakdown and alert columns are stored as JSON documents.
type ForecastRow struct {
	ForecastDate    time.Time           `db:"forecast_date" json:"forecast_date"`
	OpeningBalance  decimal.Decimal     `db:"opening_balance" json:"opening_balance"`
	ClosingBalance  decimal.Decimal     `db:"closing_balance" json:"closing_balance"`
	Inflows         json.RawMessage     `db:"inflows" json:"inflows"`
	Outflows        json.RawMessage     `db:"outflows" json:"outflows"`
	ConfidenceLevel float64             `db:"confidence_level" json:"confidence_level"`
	Alerts          json.RawMessage     `db:"alerts" json:"alerts"`
	BestCase        decimal.NullDecimal `db:"best_case" json:"best_case"`
	WorstCase       decimal.NullDecimal `db:"worst_case" json:"worst_case"`
	GeneratedAt     time.Time           `db:"generated_at" json:"generated_at"`
}
