package forecast

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bookkeeping-service/internal/models"
)

// Fixed confidence of each event source.
const (
	InvoiceConfidence   = 0.95
	RecurringConfidence = 0.98
	TaxConfidence       = 1.00
	BudgetConfidence    = 0.60
)

// Event is a dated, signed cash movement. The set of implementations is
// closed: InvoiceEvent, RecurringEvent, BudgetEvent and TaxEvent.
type Event interface {
	EffectiveDate() time.Time
	// SignedAmount is positive for inflows and negative for outflows.
	SignedAmount() decimal.Decimal
	Confidence() float64
	Category() Category
	Description() string

	cashEvent()
}

// InvoiceEvent is an unsettled receivable or payable.
type InvoiceEvent struct {
	InvoiceID     string
	InvoiceNumber string
	ContactID     string
	Receivable    bool
	DueDate       time.Time
	ExpectedDate  time.Time
	Amount        decimal.Decimal
}

func (e InvoiceEvent) EffectiveDate() time.Time { return e.ExpectedDate }

func (e InvoiceEvent) SignedAmount() decimal.Decimal {
	if e.Receivable {
		return e.Amount
	}
	return e.Amount.Neg()
}

func (e InvoiceEvent) Confidence() float64 { return InvoiceConfidence }

// Shifted reports whether a payment pattern moved the expected date.
func (e InvoiceEvent) Shifted() bool { return e.ExpectedDate.After(e.DueDate) }

func (e InvoiceEvent) Category() Category {
	switch {
	case e.Receivable:
		return FromInvoices
	case e.Shifted():
		return ToPatterns
	default:
		return ToBills
	}
}

func (e InvoiceEvent) Description() string {
	if e.Receivable {
		return fmt.Sprintf("invoice %s", e.reference())
	}
	return fmt.Sprintf("bill %s", e.reference())
}

func (e InvoiceEvent) reference() string {
	if e.InvoiceNumber != "" {
		return e.InvoiceNumber
	}
	return e.InvoiceID
}

func (InvoiceEvent) cashEvent() {}

// RecurringEvent is one occurrence of a repeating invoice or bill.
type RecurringEvent struct {
	TemplateID string
	ContactID  string
	Receipt    bool
	Date       time.Time
	Amount     decimal.Decimal
}

func (e RecurringEvent) EffectiveDate() time.Time { return e.Date }

func (e RecurringEvent) SignedAmount() decimal.Decimal {
	if e.Receipt {
		return e.Amount
	}
	return e.Amount.Neg()
}

func (e RecurringEvent) Confidence() float64 { return RecurringConfidence }

func (e RecurringEvent) Category() Category {
	if e.Receipt {
		return FromRepeating
	}
	return ToRepeating
}

func (e RecurringEvent) Description() string {
	if e.Receipt {
		return fmt.Sprintf("recurring receipt %s", e.TemplateID)
	}
	return fmt.Sprintf("recurring payment %s", e.TemplateID)
}

func (RecurringEvent) cashEvent() {}

// BudgetEvent is one day's share of a monthly budgeted outflow.
type BudgetEvent struct {
	BudgetCategory string
	MonthYear      string
	Date           time.Time
	Amount         decimal.Decimal
}

func (e BudgetEvent) EffectiveDate() time.Time      { return e.Date }
func (e BudgetEvent) SignedAmount() decimal.Decimal { return e.Amount.Neg() }
func (e BudgetEvent) Confidence() float64           { return BudgetConfidence }
func (e BudgetEvent) Category() Category            { return ToBudgets }

func (e BudgetEvent) Description() string {
	return fmt.Sprintf("%s budget for %s", e.BudgetCategory, e.MonthYear)
}

func (BudgetEvent) cashEvent() {}

// TaxEvent is a pending tax obligation.
type TaxEvent struct {
	ObligationID int64
	TaxType      string
	DueDate      time.Time
	Amount       decimal.Decimal
}

func (e TaxEvent) EffectiveDate() time.Time      { return e.DueDate }
func (e TaxEvent) SignedAmount() decimal.Decimal { return e.Amount.Neg() }
func (e TaxEvent) Confidence() float64           { return TaxConfidence }
func (e TaxEvent) Category() Category            { return ToTaxes }

func (e TaxEvent) Description() string {
	return fmt.Sprintf("%s payment", e.TaxType)
}

func (TaxEvent) cashEvent() {}

// CashPosition sums the balances of active accounts. No accounts yields zero.
func CashPosition(accounts []models.BankAccount) decimal.Decimal {
	total := decimal.Zero
	for _, account := range accounts {
		if !strings.EqualFold(account.Status, models.BankAccountStatusActive) {
			continue
		}
		total = total.Add(account.Balance)
	}
	return total
}

// BuildEvents converts the snapshot into cash events whose effective date
// falls inside [in.Start, in.Start+in.Days). Everything else is dropped.
func BuildEvents(in Input) []Event {
	start := dateOf(in.Start)
	end := start.AddDate(0, 0, in.Days)

	var events []Event
	keep := func(e Event) {
		d := e.EffectiveDate()
		if d.Before(start) || !d.Before(end) {
			return
		}
		if e.SignedAmount().IsZero() {
			return
		}
		events = append(events, e)
	}

	patterns := make(map[string]models.PaymentPattern, len(in.Patterns))
	for _, p := range in.Patterns {
		patterns[p.ContactID] = p
	}
	for _, inv := range in.Invoices {
		if !inv.Unsettled() {
			continue
		}
		keep(invoiceEvent(inv, patterns))
	}

	for _, tmpl := range in.Recurring {
		for _, e := range recurringEvents(tmpl, end) {
			keep(e)
		}
	}

	for _, budget := range in.Budgets {
		for _, e := range budgetEvents(budget, start, end) {
			keep(e)
		}
	}

	for _, tax := range in.Taxes {
		if !strings.EqualFold(tax.Status, models.TaxStatusPending) {
			continue
		}
		keep(TaxEvent{
			ObligationID: tax.ID,
			TaxType:      tax.TaxType,
			DueDate:      dateOf(tax.DueDate),
			Amount:       tax.Amount.Abs(),
		})
	}

	return events
}

func invoiceEvent(inv models.Invoice, patterns map[string]models.PaymentPattern) InvoiceEvent {
	due := dateOf(inv.DueDate)
	expected := due
	if p, ok := patterns[inv.ContactID]; ok {
		// Early payers never pull an event before its due date.
		if shift := int(math.Round(p.AverageDaysToPay)); shift > 0 {
			expected = due.AddDate(0, 0, shift)
		}
	}
	return InvoiceEvent{
		InvoiceID:     inv.ExternalID,
		InvoiceNumber: inv.InvoiceNumber,
		ContactID:     inv.ContactID,
		Receivable:    inv.Receivable(),
		DueDate:       due,
		ExpectedDate:  expected,
		Amount:        inv.AmountDue.Abs(),
	}
}

// recurringEvents expands a template from its next scheduled date until its
// end date or the horizon end, whichever comes first.
func recurringEvents(tmpl models.RepeatingTransaction, horizonEnd time.Time) []Event {
	if !strings.EqualFold(tmpl.Status, models.RepeatingStatusActive) {
		return nil
	}
	anchor := dateOf(tmpl.NextScheduledDate)
	period := tmpl.SchedulePeriod
	if period < 1 {
		period = 1
	}

	var events []Event
	for n := 0; ; n++ {
		var d time.Time
		switch strings.ToUpper(tmpl.ScheduleUnit) {
		case models.ScheduleWeekly:
			d = anchor.AddDate(0, 0, 7*period*n)
		case models.ScheduleMonthly:
			d = addMonths(anchor, period*n)
		default:
			if n > 0 {
				return events
			}
			d = anchor
		}
		if !d.Before(horizonEnd) {
			return events
		}
		if tmpl.EndDate != nil && d.After(dateOf(*tmpl.EndDate)) {
			return events
		}
		events = append(events, RecurringEvent{
			TemplateID: tmpl.ExternalID,
			ContactID:  tmpl.ContactID,
			Receipt:    tmpl.Receipt(),
			Date:       d,
			Amount:     tmpl.Amount.Abs(),
		})
	}
}

// addMonths adds n months to t, clamping the day to the target month's length
// so that Jan 31 + 1 month is the last day of February.
func addMonths(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	day := t.Day()
	if last := daysIn(first); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

func daysIn(month time.Time) int {
	return time.Date(month.Year(), month.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// budgetEvents amortizes a monthly budget over the days of its month that fall
// in [start, end). Each day carries the budget divided by the month length,
// truncated to cents; the last day of the month carries the remainder so the
// month sums exactly to the budget.
func budgetEvents(budget models.CashFlowBudget, start, end time.Time) []Event {
	month, err := time.Parse(models.MonthYearLayout, budget.MonthYear)
	if err != nil {
		return nil
	}
	n := daysIn(month)
	if n <= 0 {
		return nil
	}
	monthEnd := month.AddDate(0, 1, 0)
	if !month.Before(end) || !monthEnd.After(start) {
		return nil
	}

	total := budget.BudgetedAmount.Abs()
	daily := total.Div(decimal.NewFromInt(int64(n))).Truncate(2)
	last := total.Sub(daily.Mul(decimal.NewFromInt(int64(n - 1))))

	var events []Event
	for i := 0; i < n; i++ {
		d := month.AddDate(0, 0, i)
		if d.Before(start) {
			continue
		}
		if !d.Before(end) {
			break
		}
		amount := daily
		if i == n-1 {
			amount = last
		}
		events = append(events, BudgetEvent{
			BudgetCategory: budget.Category,
			MonthYear:      budget.MonthYear,
			Date:           d,
			Amount:         amount,
		})
	}
	return events
}
