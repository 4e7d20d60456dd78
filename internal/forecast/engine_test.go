package forecast

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookkeeping-service/internal/models"
)

var start = time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.Truef(t, got.Equal(dec(want)), "expected %s, got %s %v", want, got.String(), msgAndArgs)
}

func day(n int) time.Time {
	return start.AddDate(0, 0, n)
}

func receivable(id string, amount string, due time.Time) models.Invoice {
	return models.Invoice{
		ExternalID:    id,
		InvoiceNumber: "INV-" + id,
		Type:          models.InvoiceTypeReceivable,
		ContactID:     "contact-" + id,
		Status:        models.InvoiceStatusAuthorised,
		Total:         dec(amount),
		AmountDue:     dec(amount),
		DueDate:       due,
	}
}

func payable(id string, amount string, due time.Time) models.Invoice {
	inv := receivable(id, amount, due)
	inv.Type = models.InvoiceTypePayable
	inv.InvoiceNumber = "BILL-" + id
	return inv
}

func project(t *testing.T, in Input, opts Options) *Result {
	t.Helper()
	if in.Start.IsZero() {
		in.Start = start
	}
	result, err := NewEngine(DefaultSettings()).Project(in, opts)
	require.NoError(t, err)
	require.Len(t, result.Forecast, in.Days)
	return result
}

func alertsOfType(alerts []Alert, typ string) []Alert {
	var out []Alert
	for _, a := range alerts {
		if a.Type == typ {
			out = append(out, a)
		}
	}
	return out
}

func TestProject_WorkedExample(t *testing.T) {
	result := project(t, Input{
		Days:     2,
		Position: dec("10000"),
		Invoices: []models.Invoice{
			receivable("1", "1000", day(1)),
			payable("2", "500", day(1)),
		},
	}, Options{Scenarios: true})

	d0 := result.Forecast[0]
	assertDecimal(t, "10000", d0.OpeningBalance)
	assertDecimal(t, "10000", d0.ClosingBalance)
	assert.Equal(t, 1.0, d0.ConfidenceLevel)
	assert.Empty(t, d0.Alerts)

	d1 := result.Forecast[1]
	assertDecimal(t, "10000", d1.OpeningBalance)
	assertDecimal(t, "1000", d1.Inflows.Total)
	assertDecimal(t, "500", d1.Outflows.Total)
	assertDecimal(t, "10500", d1.ClosingBalance)
	require.NotNil(t, d1.Scenarios)
	assertDecimal(t, "10750", d1.Scenarios.BestCase)
	assertDecimal(t, "10250", d1.Scenarios.WorstCase)
	assert.InDelta(t, InvoiceConfidence, d1.ConfidenceLevel, 1e-9)

	assert.Equal(t, 2, result.Summary.Days)
	assertDecimal(t, "10000", result.Summary.LowestBalance)
	assert.Equal(t, "2025-03-10", result.Summary.LowestBalanceDate.String())
	assertDecimal(t, "1000", result.Summary.TotalInflows)
	assertDecimal(t, "500", result.Summary.TotalOutflows)
	assert.Equal(t, 0, result.Summary.CriticalAlerts)
}

func TestProject_BalanceChainingAndClosure(t *testing.T) {
	result := project(t, Input{
		Days:     60,
		Position: dec("2500.55"),
		Invoices: []models.Invoice{
			receivable("1", "1234.56", day(3)),
			payable("2", "987.65", day(10)),
			payable("3", "40.01", day(10)),
		},
		Recurring: []models.RepeatingTransaction{{
			ExternalID:        "rent",
			Type:              models.InvoiceTypePayable,
			Amount:            dec("1500"),
			NextScheduledDate: day(5),
			ScheduleUnit:      models.ScheduleMonthly,
			SchedulePeriod:    1,
			Status:            models.RepeatingStatusActive,
		}},
		Budgets: []models.CashFlowBudget{
			{Category: "marketing", MonthYear: "2025-03", BudgetedAmount: dec("1000")},
			{Category: "marketing", MonthYear: "2025-04", BudgetedAmount: dec("777.77")},
		},
		Taxes: []models.TaxObligation{
			{ID: 1, TaxType: "VAT", DueDate: day(20), Amount: dec("640.10"), Status: models.TaxStatusPending},
		},
	}, Options{})

	for i, d := range result.Forecast {
		if i == 0 {
			assertDecimal(t, "2500.55", d.OpeningBalance)
		} else {
			assert.True(t, d.OpeningBalance.Equal(result.Forecast[i-1].ClosingBalance), "day %d opening", i)
		}
		want := d.OpeningBalance.Add(d.Inflows.Total).Sub(d.Outflows.Total)
		assert.True(t, d.ClosingBalance.Equal(want), "day %d closing", i)
		assert.GreaterOrEqual(t, d.ConfidenceLevel, 0.0)
		assert.LessOrEqual(t, d.ConfidenceLevel, 1.0)
	}
}

func TestProject_SeedIsSumOfActiveAccounts(t *testing.T) {
	position := CashPosition([]models.BankAccount{
		{Name: "Operating", Balance: dec("7000.25"), Status: models.BankAccountStatusActive},
		{Name: "Savings", Balance: dec("3000"), Status: "active"},
		{Name: "Closed", Balance: dec("999"), Status: models.BankAccountStatusArchived},
	})
	assertDecimal(t, "10000.25", position)

	result := project(t, Input{Days: 1, Position: position}, Options{})
	assertDecimal(t, "10000.25", result.Forecast[0].OpeningBalance)
}

func TestProject_NoAccountsNoEvents(t *testing.T) {
	assertDecimal(t, "0", CashPosition(nil))

	result := project(t, Input{Days: 5, Position: CashPosition(nil)}, Options{})
	for _, d := range result.Forecast {
		assertDecimal(t, "0", d.ClosingBalance)
		assert.Equal(t, 1.0, d.ConfidenceLevel)
		assert.True(t, d.Inflows.Total.IsZero())
		assert.True(t, d.Outflows.Total.IsZero())
	}
	assert.Equal(t, 1.0, result.Summary.AverageConfidence)
}

func TestProject_InvoicePlacement(t *testing.T) {
	result := project(t, Input{
		Days:     7,
		Position: dec("10000"),
		Invoices: []models.Invoice{receivable("1", "1000", day(3))},
	}, Options{})

	for i, d := range result.Forecast {
		if i == 3 {
			assertDecimal(t, "1000", d.Inflows.FromInvoices)
			continue
		}
		assert.True(t, d.Inflows.FromInvoices.IsZero(), "day %d", i)
	}
}

func TestProject_PatternShift(t *testing.T) {
	rec := receivable("1", "800", day(2))
	bill := payable("2", "300", day(2))
	result := project(t, Input{
		Days:     10,
		Position: dec("10000"),
		Invoices: []models.Invoice{rec, bill},
		Patterns: []models.PaymentPattern{
			{ContactID: rec.ContactID, AverageDaysToPay: 3},
			{ContactID: bill.ContactID, AverageDaysToPay: 2.6},
		},
	}, Options{})

	assert.True(t, result.Forecast[2].Inflows.FromInvoices.IsZero())
	assertDecimal(t, "800", result.Forecast[5].Inflows.FromInvoices)

	assert.True(t, result.Forecast[2].Outflows.ToBills.IsZero())
	assertDecimal(t, "300", result.Forecast[5].Outflows.ToPatterns)
	assert.True(t, result.Forecast[5].Outflows.ToBills.IsZero())
}

func TestProject_ScenarioBounds(t *testing.T) {
	result := project(t, Input{
		Days:     3,
		Position: dec("-500"),
		Invoices: []models.Invoice{
			receivable("1", "400", day(1)),
			payable("2", "900", day(1)),
		},
	}, Options{Scenarios: true})

	d := result.Forecast[1]
	require.NotNil(t, d.Scenarios)
	assert.True(t, d.Scenarios.WorstCase.LessThanOrEqual(d.Scenarios.BestCase))
	assertDecimal(t, "-500", d.OpeningBalance)
	// Each day recomputes from its own actual opening balance.
	day2 := result.Forecast[2]
	assertDecimal(t, day2.OpeningBalance.String(), day2.Scenarios.BestCase)
}

func TestProject_ScenariosOmittedByDefault(t *testing.T) {
	result := project(t, Input{Days: 2, Position: dec("100")}, Options{})
	for _, d := range result.Forecast {
		assert.Nil(t, d.Scenarios)
	}
}

func TestProject_LowBalanceAlert(t *testing.T) {
	result := project(t, Input{
		Days:     1,
		Position: dec("6000"),
		Invoices: []models.Invoice{payable("1", "2000", day(0))},
	}, Options{})

	low := alertsOfType(result.Forecast[0].Alerts, AlertLowBalance)
	require.Len(t, low, 1)
	assert.Equal(t, SeverityWarning, low[0].Severity)
	assertDecimal(t, "4000", *low[0].Amount)
	assert.Empty(t, alertsOfType(result.Forecast[0].Alerts, AlertNegativeBalance))
}

func TestProject_TaxAlert(t *testing.T) {
	result := project(t, Input{
		Days:     7,
		Position: dec("50000"),
		Taxes: []models.TaxObligation{
			{ID: 7, TaxType: "VAT", DueDate: day(4), Amount: dec("1200"), Status: models.TaxStatusPending},
			{ID: 8, TaxType: "VAT", DueDate: day(5), Amount: dec("999"), Status: models.TaxStatusPaid},
		},
	}, Options{})

	tax := alertsOfType(result.Forecast[4].Alerts, AlertTaxDue)
	require.Len(t, tax, 1)
	assert.Equal(t, SeverityWarning, tax[0].Severity)
	assertDecimal(t, "1200", *tax[0].Amount)
	assert.Contains(t, tax[0].Message, "VAT")
	assertDecimal(t, "1200", result.Forecast[4].Outflows.ToTaxes)
	assert.True(t, result.Forecast[5].Outflows.ToTaxes.IsZero())
}

func TestProject_BudgetAmortization(t *testing.T) {
	result := project(t, Input{
		Start:    time.Date(2025, time.April, 10, 0, 0, 0, 0, time.UTC),
		Days:     25,
		Position: dec("100000"),
		Budgets: []models.CashFlowBudget{
			{Category: "payroll", MonthYear: "2025-04", BudgetedAmount: dec("3000")},
		},
	}, Options{})

	for i, d := range result.Forecast {
		if d.Date.Month() == time.April {
			assertDecimal(t, "100", d.Outflows.ToBudgets, "day", i)
			assert.InDelta(t, BudgetConfidence, d.ConfidenceLevel, 1e-9)
		} else {
			assert.True(t, d.Outflows.ToBudgets.IsZero(), "day %d", i)
		}
	}
}

func TestProject_BudgetRemainderOnLastDay(t *testing.T) {
	result := project(t, Input{
		Start:    time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
		Days:     31,
		Position: dec("100000"),
		Budgets: []models.CashFlowBudget{
			{Category: "rent", MonthYear: "2025-03", BudgetedAmount: dec("1000")},
		},
	}, Options{})

	total := decimal.Zero
	for _, d := range result.Forecast[:30] {
		assertDecimal(t, "32.25", d.Outflows.ToBudgets)
		total = total.Add(d.Outflows.ToBudgets)
	}
	assertDecimal(t, "32.5", result.Forecast[30].Outflows.ToBudgets)
	total = total.Add(result.Forecast[30].Outflows.ToBudgets)
	assertDecimal(t, "1000", total)
}

func TestProject_ConfidenceWeighting(t *testing.T) {
	result := project(t, Input{
		Start:    time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC),
		Days:     1,
		Position: dec("100000"),
		Budgets: []models.CashFlowBudget{
			{Category: "ops", MonthYear: "2025-04", BudgetedAmount: dec("3000")},
		},
		Taxes: []models.TaxObligation{
			{TaxType: "GST", DueDate: time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC), Amount: dec("100"), Status: models.TaxStatusPending},
		},
	}, Options{})

	assert.InDelta(t, 0.8, result.Forecast[0].ConfidenceLevel, 1e-9)
}

func TestProject_NegativeBalance(t *testing.T) {
	result := project(t, Input{
		Days:     2,
		Position: dec("100"),
		Invoices: []models.Invoice{payable("1", "300", day(0))},
	}, Options{})

	alerts := result.Forecast[0].Alerts
	neg := alertsOfType(alerts, AlertNegativeBalance)
	require.Len(t, neg, 1)
	assert.Equal(t, SeverityCritical, neg[0].Severity)
	assert.Empty(t, alertsOfType(alerts, AlertLowBalance))
	require.Len(t, alertsOfType(alerts, AlertLargeOutflow), 1)

	// Day 1 opens negative: still critical, but no outflow checks.
	assert.Len(t, alertsOfType(result.Forecast[1].Alerts, AlertNegativeBalance), 1)
	assert.Equal(t, 2, result.Summary.CriticalAlerts)
	assertDecimal(t, "-200", result.Summary.LowestBalance)
	assert.Equal(t, "2025-03-10", result.Summary.LowestBalanceDate.String())
}

func TestProject_RejectsInvalidHorizon(t *testing.T) {
	engine := NewEngine(DefaultSettings())
	for _, days := range []int{-1, 0, 366, 1000} {
		_, err := engine.Project(Input{Start: start, Days: days}, Options{})
		require.Error(t, err, "days=%d", days)

		var verr *ValidationError
		assert.True(t, errors.As(err, &verr))
		assert.True(t, errors.Is(err, ErrInvalidHorizon))
		assert.Equal(t, "days", verr.Field)
	}

	for _, days := range []int{MinDays, MaxDays} {
		_, err := engine.Project(Input{Start: start, Days: days}, Options{})
		assert.NoError(t, err, "days=%d", days)
	}
}

func TestResult_JSONShape(t *testing.T) {
	// Above the low-balance threshold, so the day carries no alerts.
	result := project(t, Input{
		Days:     1,
		Position: dec("10000"),
	}, Options{})

	raw, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	days := decoded["forecast"].([]interface{})
	require.Len(t, days, 1)
	first := days[0].(map[string]interface{})
	assert.Equal(t, "2025-03-10", first["date"])
	assert.Contains(t, first, "openingBalance")
	assert.Contains(t, first, "confidenceLevel")
	assert.NotContains(t, first, "scenarios")
	assert.Equal(t, []interface{}{}, first["alerts"])
	assert.Contains(t, first["outflows"], "toPatterns")

	summary := decoded["summary"].(map[string]interface{})
	assert.Equal(t, "2025-03-10", summary["lowestBalanceDate"])
	assert.EqualValues(t, 1, summary["days"])

	var back Result
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, back.Forecast[0].Date.Equal(start))
}
