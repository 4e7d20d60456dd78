package forecast

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// EvaluateAlerts inspects one computed day and the events landing on it. The
// rules are independent, so a day may carry several alerts. It never returns
// nil.
func EvaluateAlerts(day Day, events []Event, settings Settings) []Alert {
	alerts := []Alert{}

	closing := day.ClosingBalance
	switch {
	case closing.IsNegative():
		alerts = append(alerts, Alert{
			Type:     AlertNegativeBalance,
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("Projected balance is negative: %s", closing.StringFixed(2)),
			Amount:   amountOf(closing),
		})
	case closing.LessThan(settings.LowBalanceThreshold):
		alerts = append(alerts, Alert{
			Type:     AlertLowBalance,
			Severity: SeverityWarning,
			Message: fmt.Sprintf("Projected balance %s is below the %s threshold",
				closing.StringFixed(2), settings.LowBalanceThreshold.StringFixed(2)),
			Amount: amountOf(closing),
		})
	}

	opening := day.OpeningBalance
	for _, e := range events {
		tax, ok := e.(TaxEvent)
		if !ok {
			continue
		}
		severity := SeverityWarning
		if opening.Sub(tax.Amount).IsNegative() {
			severity = SeverityCritical
		}
		alerts = append(alerts, Alert{
			Type:     AlertTaxDue,
			Severity: severity,
			Message:  fmt.Sprintf("%s payment of %s due", tax.TaxType, tax.Amount.StringFixed(2)),
			Amount:   amountOf(tax.Amount),
		})
	}

	if opening.IsPositive() {
		limit := opening.Mul(settings.LargeOutflowFraction)
		for _, e := range events {
			amount := e.SignedAmount()
			if !amount.IsNegative() || !amount.Abs().GreaterThan(limit) {
				continue
			}
			alerts = append(alerts, Alert{
				Type:     AlertLargeOutflow,
				Severity: SeverityWarning,
				Message: fmt.Sprintf("Large outflow of %s (%s) exceeds %s%% of the opening balance",
					amount.Abs().StringFixed(2), e.Description(),
					settings.LargeOutflowFraction.Shift(2).String()),
				Amount: amountOf(amount.Abs()),
			})
		}
	}

	return alerts
}

func amountOf(d decimal.Decimal) *decimal.Decimal {
	return &d
}
