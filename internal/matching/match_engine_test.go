package matching

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookkeeping-service/internal/models"
)

var base = time.Date(2025, time.May, 12, 0, 0, 0, 0, time.UTC)

func on(days int) time.Time {
	return base.AddDate(0, 0, days)
}

func receipt(id, contact, amount, ref string, date time.Time) models.BankTransaction {
	return models.BankTransaction{
		ExternalID:      id,
		Type:            models.BankTransactionReceive,
		ContactID:       contact,
		Amount:          decimal.RequireFromString(amount),
		TransactionDate: date,
		Reference:       ref,
	}
}

func openInvoice(id, contact, number, amount string, due time.Time) models.Invoice {
	return models.Invoice{
		ExternalID:    id,
		InvoiceNumber: number,
		Type:          models.InvoiceTypeReceivable,
		ContactID:     contact,
		Status:        models.InvoiceStatusAuthorised,
		AmountDue:     decimal.RequireFromString(amount),
		Total:         decimal.RequireFromString(amount),
		DueDate:       due,
	}
}

func TestMatch_PerfectOneToOne(t *testing.T) {
	matches := NewMatcher().Match(
		[]models.BankTransaction{receipt("bt-1", "c-1", "1500.00", "INV-001", on(0))},
		[]models.Invoice{
			openInvoice("inv-2", "c-1", "INV-002", "1500.00", on(0)),
			openInvoice("inv-1", "c-1", "INV-001", "1500.00", on(0)),
		},
	)

	require.Len(t, matches, 1)
	m := matches[0]
	assert.Equal(t, MatchOneToOne, m.Type)
	assert.Equal(t, PerfectMatchConfidence, m.Confidence)
	assert.Equal(t, "inv-1", m.Invoices[0].ExternalID)
	assert.Equal(t, []string{"amount", "date", "reference"}, m.MatchCriteria)
	assert.True(t, m.AmountDifference.IsZero())
}

func TestMatch_ToleranceAndDateWindow(t *testing.T) {
	tests := []struct {
		name       string
		txn        models.BankTransaction
		invoice    models.Invoice
		matched    bool
		confidence float64
	}{
		{
			name:       "exact amount two days late",
			txn:        receipt("bt", "c", "200", "", on(2)),
			invoice:    openInvoice("inv", "c", "", "200", on(0)),
			matched:    true,
			confidence: 0.60,
		},
		{
			name:       "exact amount paid well before due",
			txn:        receipt("bt", "c", "200", "", on(-20)),
			invoice:    openInvoice("inv", "c", "", "200", on(0)),
			matched:    true,
			confidence: 0.60,
		},
		{
			name:       "within tolerance same day",
			txn:        receipt("bt", "c", "1000", "", on(0)),
			invoice:    openInvoice("inv", "c", "", "995", on(0)),
			matched:    true,
			confidence: 0.60,
		},
		{
			name:    "within tolerance but late",
			txn:     receipt("bt", "c", "1000", "", on(2)),
			invoice: openInvoice("inv", "c", "", "995", on(0)),
			matched: false,
		},
		{
			name:    "amount outside tolerance",
			txn:     receipt("bt", "c", "1000", "", on(0)),
			invoice: openInvoice("inv", "c", "", "900", on(0)),
			matched: false,
		},
		{
			name:    "conflicting reference",
			txn:     receipt("bt", "c", "200", "INV-9", on(0)),
			invoice: openInvoice("inv", "c", "INV-1", "200", on(0)),
			matched: false,
		},
		{
			name:    "different counterparty",
			txn:     receipt("bt", "c-1", "200", "", on(0)),
			invoice: openInvoice("inv", "c-2", "", "200", on(0)),
			matched: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches := NewMatcher().Match([]models.BankTransaction{tt.txn}, []models.Invoice{tt.invoice})
			if !tt.matched {
				assert.Empty(t, matches)
				return
			}
			require.Len(t, matches, 1)
			assert.InDelta(t, tt.confidence, matches[0].Confidence, 1e-9)
		})
	}
}

func TestMatch_DirectionMustAgree(t *testing.T) {
	spend := receipt("bt", "c", "300", "", on(0))
	spend.Type = models.BankTransactionSpend

	matches := NewMatcher().Match(
		[]models.BankTransaction{spend},
		[]models.Invoice{openInvoice("inv", "c", "", "300", on(0))},
	)
	assert.Empty(t, matches)

	bill := openInvoice("bill", "c", "", "300", on(0))
	bill.Type = models.InvoiceTypePayable
	matches = NewMatcher().Match([]models.BankTransaction{spend}, []models.Invoice{bill})
	require.Len(t, matches, 1)
	assert.Equal(t, "bill", matches[0].Invoices[0].ExternalID)
}

func TestMatch_OneToMany(t *testing.T) {
	matches := NewMatcher().Match(
		[]models.BankTransaction{receipt("bt-1", "c-1", "750", "", on(1))},
		[]models.Invoice{
			openInvoice("inv-1", "c-1", "INV-1", "500", on(0)),
			openInvoice("inv-2", "c-1", "INV-2", "250", on(0)),
			openInvoice("inv-3", "c-2", "INV-3", "750", on(30)),
		},
	)

	require.Len(t, matches, 1)
	m := matches[0]
	assert.Equal(t, MatchOneToMany, m.Type)
	assert.InDelta(t, HighMatchConfidence, m.Confidence, 1e-9)
	require.Len(t, m.Invoices, 2)
	assert.Equal(t, "inv-1", m.Invoices[0].ExternalID)
	assert.Equal(t, "inv-2", m.Invoices[1].ExternalID)
}

func TestMatch_EachRecordUsedOnce(t *testing.T) {
	matches := NewMatcher().Match(
		[]models.BankTransaction{
			receipt("bt-1", "c", "100", "", on(0)),
			receipt("bt-2", "c", "100", "", on(0)),
		},
		[]models.Invoice{openInvoice("inv-1", "c", "", "100", on(0))},
	)
	require.Len(t, matches, 1)
	assert.Equal(t, "bt-1", matches[0].BankTransaction.ExternalID)
}

func TestLearnPatterns(t *testing.T) {
	paid := func(contact string, dueOffset, paidOffset int) models.Invoice {
		p := on(paidOffset)
		return models.Invoice{ContactID: contact, DueDate: on(dueOffset), PaidDate: &p}
	}

	patterns := LearnPatterns([]models.Invoice{
		paid("b", 0, 5),
		paid("b", 0, -1),
		paid("b", 10, 10),
		paid("b", 0, 8),
		paid("a", 0, 2),
		{ContactID: "a", DueDate: on(0)},
		paid("", 0, 100),
	})

	require.Len(t, patterns, 2)

	a := patterns[0]
	assert.Equal(t, "a", a.ContactID)
	assert.Equal(t, 1, a.SampleSize)
	assert.InDelta(t, 2.0, a.AverageDaysToPay, 1e-9)
	assert.InDelta(t, 1.0, a.LateRate, 1e-9)

	b := patterns[1]
	assert.Equal(t, "b", b.ContactID)
	assert.Equal(t, 4, b.SampleSize)
	assert.InDelta(t, 3.0, b.AverageDaysToPay, 1e-9)
	assert.InDelta(t, 0.25, b.EarlyRate, 1e-9)
	assert.InDelta(t, 0.25, b.OnTimeRate, 1e-9)
	assert.InDelta(t, 0.5, b.LateRate, 1e-9)
}

func TestLearnPatterns_Empty(t *testing.T) {
	assert.Empty(t, LearnPatterns(nil))
}
