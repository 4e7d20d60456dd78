package forecast

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"bookkeeping-service/internal/models"
)

// Category is the breakdown bucket an event's amount is accumulated into.
type Category string

const (
	FromInvoices  Category = "fromInvoices"
	FromRepeating Category = "fromRepeating"
	ToBills       Category = "toBills"
	ToRepeating   Category = "toRepeating"
	ToTaxes       Category = "toTaxes"
	ToPatterns    Category = "toPatterns"
	ToBudgets     Category = "toBudgets"
)

// Inflow reports whether amounts in the category increase the balance.
func (c Category) Inflow() bool {
	return c == FromInvoices || c == FromRepeating
}

// Alert types
const (
	AlertLowBalance      = "LOW_BALANCE"
	AlertNegativeBalance = "NEGATIVE_BALANCE"
	AlertTaxDue          = "TAX_DUE"
	AlertLargeOutflow    = "LARGE_OUTFLOW"
)

// Alert severities
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Date is a calendar day serialised as YYYY-MM-DD.
type Date struct {
	time.Time
}

// NewDate truncates t to midnight UTC of its calendar day.
func NewDate(t time.Time) Date {
	return Date{dateOf(t)}
}

func (d Date) String() string {
	return d.Format(models.DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", s, err)
	}
	d.Time = t
	return nil
}

// Inflows is the per-category breakdown of a day's incoming cash.
type Inflows struct {
	FromInvoices  decimal.Decimal `json:"fromInvoices"`
	FromRepeating decimal.Decimal `json:"fromRepeating"`
	Total         decimal.Decimal `json:"total"`
}

// Outflows is the per-category breakdown of a day's outgoing cash. All
// amounts are non-negative magnitudes.
type Outflows struct {
	ToBills     decimal.Decimal `json:"toBills"`
	ToRepeating decimal.Decimal `json:"toRepeating"`
	ToTaxes     decimal.Decimal `json:"toTaxes"`
	ToPatterns  decimal.Decimal `json:"toPatterns"`
	ToBudgets   decimal.Decimal `json:"toBudgets"`
	Total       decimal.Decimal `json:"total"`
}

// Scenarios holds the optimistic and pessimistic closing balance of a day.
type Scenarios struct {
	BestCase  decimal.Decimal `json:"bestCase"`
	WorstCase decimal.Decimal `json:"worstCase"`
}

// Alert is a structured warning attached to a forecast day.
type Alert struct {
	Type     string           `json:"type"`
	Severity string           `json:"severity"`
	Message  string           `json:"message"`
	Amount   *decimal.Decimal `json:"amount,omitempty"`
}

// Day is the projected state of one calendar day.
type Day struct {
	Date            Date            `json:"date"`
	OpeningBalance  decimal.Decimal `json:"openingBalance"`
	ClosingBalance  decimal.Decimal `json:"closingBalance"`
	Inflows         Inflows         `json:"inflows"`
	Outflows        Outflows        `json:"outflows"`
	ConfidenceLevel float64         `json:"confidenceLevel"`
	Alerts          []Alert         `json:"alerts"`
	Scenarios       *Scenarios      `json:"scenarios,omitempty"`
}

// Summary aggregates a forecast over its whole horizon.
type Summary struct {
	Days              int             `json:"days"`
	LowestBalance     decimal.Decimal `json:"lowestBalance"`
	LowestBalanceDate Date            `json:"lowestBalanceDate"`
	TotalInflows      decimal.Decimal `json:"totalInflows"`
	TotalOutflows     decimal.Decimal `json:"totalOutflows"`
	AverageConfidence float64         `json:"averageConfidence"`
	CriticalAlerts    int             `json:"criticalAlerts"`
}

// Result is the output of one projection run.
type Result struct {
	Forecast []Day   `json:"forecast"`
	Summary  Summary `json:"summary"`
}

// Input is the snapshot a projection runs over. Start is truncated to its
// calendar day.
type Input struct {
	Start     time.Time
	Days      int
	Position  decimal.Decimal
	Invoices  []models.Invoice
	Patterns  []models.PaymentPattern
	Recurring []models.RepeatingTransaction
	Budgets   []models.CashFlowBudget
	Taxes     []models.TaxObligation
}

// Options toggles optional parts of a projection.
type Options struct {
	Scenarios bool
}

// Settings holds the alert thresholds.
type Settings struct {
	LowBalanceThreshold  decimal.Decimal
	LargeOutflowFraction decimal.Decimal
}

// DefaultSettings returns a 5000 low-balance threshold and a 20% large-outflow fraction.
func DefaultSettings() Settings {
	return Settings{
		LowBalanceThreshold:  decimal.NewFromInt(5000),
		LargeOutflowFraction: decimal.NewFromFloat(0.2),
	}
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// dayIndex returns the number of whole days from start to t. Both must be
// midnight UTC.
func dayIndex(start, t time.Time) int {
	return int(t.Sub(start) / (24 * time.Hour))
}
