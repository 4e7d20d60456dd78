package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookkeeping-service/internal/models"
)

func utc(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func eventDates(events []Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.EffectiveDate().Format(models.DateLayout))
	}
	return out
}

func TestRecurringEvents_Schedules(t *testing.T) {
	end := utc(2025, time.April, 1)
	jan10 := utc(2025, time.January, 10)

	tests := []struct {
		name string
		tmpl models.RepeatingTransaction
		want []string
	}{
		{
			name: "monthly clamps to month end",
			tmpl: models.RepeatingTransaction{
				NextScheduledDate: utc(2025, time.January, 31),
				ScheduleUnit:      models.ScheduleMonthly,
				SchedulePeriod:    1,
			},
			want: []string{"2025-01-31", "2025-02-28", "2025-03-31"},
		},
		{
			name: "fortnightly",
			tmpl: models.RepeatingTransaction{
				NextScheduledDate: utc(2025, time.March, 1),
				ScheduleUnit:      models.ScheduleWeekly,
				SchedulePeriod:    2,
			},
			want: []string{"2025-03-01", "2025-03-15", "2025-03-29"},
		},
		{
			name: "stops at end date",
			tmpl: models.RepeatingTransaction{
				NextScheduledDate: utc(2025, time.January, 1),
				ScheduleUnit:      models.ScheduleWeekly,
				SchedulePeriod:    1,
				EndDate:           &jan10,
			},
			want: []string{"2025-01-01", "2025-01-08"},
		},
		{
			name: "zero period treated as one",
			tmpl: models.RepeatingTransaction{
				NextScheduledDate: utc(2025, time.January, 15),
				ScheduleUnit:      "monthly",
			},
			want: []string{"2025-01-15", "2025-02-15", "2025-03-15"},
		},
		{
			name: "unknown unit yields next date only",
			tmpl: models.RepeatingTransaction{
				NextScheduledDate: utc(2025, time.February, 2),
				ScheduleUnit:      "YEARLY",
				SchedulePeriod:    1,
			},
			want: []string{"2025-02-02"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.tmpl.Status = models.RepeatingStatusActive
			assert.Equal(t, tt.want, eventDates(recurringEvents(tt.tmpl, end)))
		})
	}
}

func TestRecurringEvents_InactiveTemplate(t *testing.T) {
	tmpl := models.RepeatingTransaction{
		NextScheduledDate: utc(2025, time.January, 1),
		ScheduleUnit:      models.ScheduleWeekly,
		SchedulePeriod:    1,
		Status:            models.InvoiceStatusDraft,
	}
	assert.Empty(t, recurringEvents(tmpl, utc(2025, time.February, 1)))
}

func TestBuildEvents_InvoiceSelection(t *testing.T) {
	overdue := payable("late", "250", day(-2))
	overdueShifted := receivable("shifted", "400", day(-2))
	paid := receivable("paid", "100", day(1))
	paid.Status = models.InvoiceStatusPaid
	settled := receivable("zero", "0", day(1))
	earlyPayer := payable("early", "75", day(4))

	events := BuildEvents(Input{
		Start: start,
		Days:  10,
		Invoices: []models.Invoice{
			overdue, overdueShifted, paid, settled, earlyPayer,
		},
		Patterns: []models.PaymentPattern{
			{ContactID: overdueShifted.ContactID, AverageDaysToPay: 5},
			{ContactID: earlyPayer.ContactID, AverageDaysToPay: -3.2},
		},
	})

	require.Len(t, events, 2)

	shifted, ok := events[0].(InvoiceEvent)
	require.True(t, ok)
	assert.Equal(t, "shifted", shifted.InvoiceID)
	assert.True(t, shifted.EffectiveDate().Equal(day(3)))
	assert.Equal(t, FromInvoices, shifted.Category())

	early, ok := events[1].(InvoiceEvent)
	require.True(t, ok)
	assert.True(t, early.EffectiveDate().Equal(day(4)))
	assert.False(t, early.Shifted())
	assert.Equal(t, ToBills, early.Category())
	assert.True(t, early.SignedAmount().Equal(dec("-75")))
}

func TestBuildEvents_DropsOutsideHorizon(t *testing.T) {
	events := BuildEvents(Input{
		Start: start,
		Days:  5,
		Invoices: []models.Invoice{
			receivable("in", "10", day(4)),
			receivable("out", "10", day(5)),
		},
		Taxes: []models.TaxObligation{
			{TaxType: "VAT", DueDate: day(-1), Amount: dec("10"), Status: models.TaxStatusPending},
		},
		Budgets: []models.CashFlowBudget{
			{Category: "x", MonthYear: "2024-12", BudgetedAmount: dec("310")},
			{Category: "y", MonthYear: "bogus", BudgetedAmount: dec("310")},
		},
	})

	require.Len(t, events, 1)
	assert.Equal(t, "in", events[0].(InvoiceEvent).InvoiceID)
}

func TestBuildEvents_StartTruncatedToDay(t *testing.T) {
	events := BuildEvents(Input{
		Start:    start.Add(15 * time.Hour),
		Days:     1,
		Invoices: []models.Invoice{receivable("1", "10", start.Add(2*time.Hour))},
	})
	require.Len(t, events, 1)
	assert.True(t, events[0].EffectiveDate().Equal(start))
}

func TestEventSigns(t *testing.T) {
	tests := []struct {
		event    Event
		category Category
		sign     int
	}{
		{InvoiceEvent{Receivable: true, Amount: dec("5")}, FromInvoices, 1},
		{InvoiceEvent{Amount: dec("5"), DueDate: start, ExpectedDate: start}, ToBills, -1},
		{InvoiceEvent{Amount: dec("5"), DueDate: start, ExpectedDate: day(1)}, ToPatterns, -1},
		{RecurringEvent{Receipt: true, Amount: dec("5")}, FromRepeating, 1},
		{RecurringEvent{Amount: dec("5")}, ToRepeating, -1},
		{BudgetEvent{Amount: dec("5")}, ToBudgets, -1},
		{TaxEvent{Amount: dec("5")}, ToTaxes, -1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.category, tt.event.Category())
		assert.Equal(t, tt.sign, tt.event.SignedAmount().Sign())
		assert.Equal(t, tt.category.Inflow(), tt.sign > 0)
	}
}

func TestAddMonths(t *testing.T) {
	assert.Equal(t, utc(2024, time.February, 29), addMonths(utc(2024, time.January, 31), 1))
	assert.Equal(t, utc(2025, time.April, 30), addMonths(utc(2025, time.January, 31), 3))
	assert.Equal(t, utc(2026, time.January, 15), addMonths(utc(2025, time.December, 15), 1))
}
