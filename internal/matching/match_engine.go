package matching

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bookkeeping-service/internal/models"
)

const (
	// Match confidence thresholds
	PerfectMatchConfidence = 1.00
	HighMatchConfidence    = 0.95
	MediumMatchConfidence  = 0.80
	LowMatchConfidence     = 0.60

	// Amount difference tolerance (in percentage)
	AmountTolerancePercent = 0.01 // 1%

	// Date difference tolerance (in days)
	DateToleranceDays = 3
)

// Match types
const (
	MatchOneToOne  = "one_to_one"
	MatchOneToMany = "one_to_many"
)

// Confidence is accumulated in whole points out of 100.
const (
	pointsPerfect = 100
	pointsLow     = 60
	pointsMedium  = 80
	pointsHigh    = 95
)

var amountTolerance = decimal.NewFromFloat(AmountTolerancePercent)

type Match struct {
	Type             string                 `json:"type"`
	Confidence       float64                `json:"confidence"`
	BankTransaction  models.BankTransaction `json:"bank_transaction"`
	Invoices         []models.Invoice       `json:"invoices"`
	AmountDifference decimal.Decimal        `json:"amount_difference"`
	MatchCriteria    []string               `json:"match_criteria"`
}

// Matcher pairs bank statement lines with the open invoices they settle.
type Matcher struct{}

func NewMatcher() *Matcher {
	return &Matcher{}
}

// Match runs three passes: perfect one-to-one matches, then one bank line
// settling several invoices of the same counterparty, then the best remaining
// one-to-one candidate above LowMatchConfidence. Each transaction and invoice
// is used at most once.
func (m *Matcher) Match(txns []models.BankTransaction, invoices []models.Invoice) []Match {
	var results []Match

	usedTxn := make(map[string]bool)
	usedInvoice := make(map[string]bool)

	for _, bt := range txns {
		for _, inv := range invoices {
			if usedInvoice[inv.ExternalID] {
				continue
			}
			if result, points := m.checkOneToOneMatch(bt, inv); result != nil && points == pointsPerfect {
				results = append(results, *result)
				usedTxn[bt.ExternalID] = true
				usedInvoice[inv.ExternalID] = true
				break
			}
		}
	}

	for _, bt := range txns {
		if usedTxn[bt.ExternalID] {
			continue
		}
		if result := m.findOneToManyMatch(bt, invoices, usedInvoice); result != nil {
			results = append(results, *result)
			usedTxn[bt.ExternalID] = true
			for _, inv := range result.Invoices {
				usedInvoice[inv.ExternalID] = true
			}
		}
	}

	for _, bt := range txns {
		if usedTxn[bt.ExternalID] {
			continue
		}

		var best *Match
		bestPoints := 0
		for _, inv := range invoices {
			if usedInvoice[inv.ExternalID] {
				continue
			}
			if result, points := m.checkOneToOneMatch(bt, inv); result != nil && points > bestPoints {
				best = result
				bestPoints = points
			}
		}

		if best != nil && bestPoints >= pointsLow {
			results = append(results, *best)
			usedTxn[bt.ExternalID] = true
			usedInvoice[best.Invoices[0].ExternalID] = true
		}
	}

	return results
}

func (m *Matcher) checkOneToOneMatch(bt models.BankTransaction, inv models.Invoice) (*Match, int) {
	if !sameDirection(bt, inv) || !sameContact(bt, inv) {
		return nil, 0
	}

	var criteria []string
	points := 0

	amountDiff := bt.Amount.Sub(inv.AmountDue).Abs()
	switch {
	case amountDiff.IsZero():
		criteria = append(criteria, "amount")
		points += 40
	case amountDiff.LessThanOrEqual(bt.Amount.Abs().Mul(amountTolerance)):
		criteria = append(criteria, "amount")
		points += 30
	default:
		return nil, 0
	}

	dateDiff := daysBetween(bt.TransactionDate, inv.DueDate)
	switch {
	case dateDiff == 0:
		criteria = append(criteria, "date")
		points += 30
	case dateDiff <= DateToleranceDays || paidBeforeDue(bt, inv):
		criteria = append(criteria, "date")
		points += 20
	}

	if bt.Reference != "" && inv.InvoiceNumber != "" {
		if referenceMatches(bt.Reference, inv.InvoiceNumber) {
			criteria = append(criteria, "reference")
			points += 30
		} else {
			return nil, 0
		}
	}

	if points < pointsLow {
		return nil, 0
	}
	return &Match{
		Type:             MatchOneToOne,
		Confidence:       float64(points) / 100,
		BankTransaction:  bt,
		Invoices:         []models.Invoice{inv},
		AmountDifference: amountDiff,
		MatchCriteria:    criteria,
	}, points
}

func (m *Matcher) findOneToManyMatch(bt models.BankTransaction, invoices []models.Invoice, used map[string]bool) *Match {
	var best *Match
	minDifference := bt.Amount.Abs()

	for _, combo := range m.findPossibleInvoiceCombinations(bt, invoices, used) {
		total := decimal.Zero
		for _, inv := range combo {
			total = total.Add(inv.AmountDue)
		}

		difference := bt.Amount.Sub(total).Abs()
		if !difference.LessThan(minDifference) {
			continue
		}
		minDifference = difference

		points := m.calculateOneToManyPoints(bt, combo, difference)
		if points < pointsMedium {
			continue
		}

		criteria := []string{"amount"}
		if maxDateDiff(bt, combo) <= DateToleranceDays {
			criteria = append(criteria, "date")
		}
		if referenceCount(bt, combo) > 0 {
			criteria = append(criteria, "reference")
		}

		best = &Match{
			Type:             MatchOneToMany,
			Confidence:       float64(points) / 100,
			BankTransaction:  bt,
			Invoices:         combo,
			AmountDifference: difference,
			MatchCriteria:    criteria,
		}
	}

	return best
}

// findPossibleInvoiceCombinations returns groups of two or three open invoices
// from the transaction's counterparty whose amounts sum to the transaction
// amount within tolerance.
func (m *Matcher) findPossibleInvoiceCombinations(bt models.BankTransaction, invoices []models.Invoice, used map[string]bool) [][]models.Invoice {
	var candidates []models.Invoice
	for _, inv := range invoices {
		if used[inv.ExternalID] || !sameDirection(bt, inv) {
			continue
		}
		if bt.ContactID == "" || inv.ContactID != bt.ContactID {
			continue
		}
		if inv.AmountDue.GreaterThan(bt.Amount.Abs()) {
			continue
		}
		candidates = append(candidates, inv)
	}

	var result [][]models.Invoice
	for size := 2; size <= 3; size++ {
		m.findCombinations(candidates, size, bt.Amount.Abs(), nil, &result)
	}
	return result
}

func (m *Matcher) findCombinations(candidates []models.Invoice, size int, target decimal.Decimal, current []models.Invoice, result *[][]models.Invoice) {
	if size == 0 {
		sum := decimal.Zero
		for _, inv := range current {
			sum = sum.Add(inv.AmountDue)
		}
		if target.Sub(sum).Abs().LessThanOrEqual(target.Mul(amountTolerance)) {
			combination := make([]models.Invoice, len(current))
			copy(combination, current)
			*result = append(*result, combination)
		}
		return
	}

	if len(candidates) < size {
		return
	}

	m.findCombinations(candidates[1:], size-1, target, append(current, candidates[0]), result)
	m.findCombinations(candidates[1:], size, target, current, result)
}

func (m *Matcher) calculateOneToManyPoints(bt models.BankTransaction, combo []models.Invoice, amountDiff decimal.Decimal) int {
	points := 70 // base for a matching sum

	if amountDiff.IsZero() {
		points += 20
	} else if amountDiff.LessThanOrEqual(bt.Amount.Abs().Mul(amountTolerance)) {
		points += 10
	}

	if maxDateDiff(bt, combo) <= DateToleranceDays {
		points += 10
	}

	if n := referenceCount(bt, combo); n > 0 {
		points += 10 * n / len(combo)
	}

	if points > pointsHigh {
		points = pointsHigh
	}
	return points
}

func sameDirection(bt models.BankTransaction, inv models.Invoice) bool {
	switch bt.Type {
	case models.BankTransactionReceive:
		return inv.Type == models.InvoiceTypeReceivable
	case models.BankTransactionSpend:
		return inv.Type == models.InvoiceTypePayable
	}
	return false
}

func sameContact(bt models.BankTransaction, inv models.Invoice) bool {
	return bt.ContactID == "" || inv.ContactID == "" || bt.ContactID == inv.ContactID
}

func paidBeforeDue(bt models.BankTransaction, inv models.Invoice) bool {
	return !calendarDay(bt.TransactionDate).After(calendarDay(inv.DueDate))
}

func referenceMatches(reference, invoiceNumber string) bool {
	ref := strings.ToUpper(strings.TrimSpace(reference))
	num := strings.ToUpper(strings.TrimSpace(invoiceNumber))
	return ref == num || strings.Contains(ref, num)
}

func referenceCount(bt models.BankTransaction, combo []models.Invoice) int {
	if bt.Reference == "" {
		return 0
	}
	n := 0
	for _, inv := range combo {
		if inv.InvoiceNumber != "" && referenceMatches(bt.Reference, inv.InvoiceNumber) {
			n++
		}
	}
	return n
}

func maxDateDiff(bt models.BankTransaction, combo []models.Invoice) int {
	widest := 0
	for _, inv := range combo {
		if d := daysBetween(bt.TransactionDate, inv.DueDate); d > widest {
			widest = d
		}
	}
	return widest
}

func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daysBetween returns the absolute number of calendar days between a and b.
func daysBetween(a, b time.Time) int {
	diff := calendarDay(a).Sub(calendarDay(b))
	if diff < 0 {
		diff = -diff
	}
	return int(diff / (24 * time.Hour))
}
