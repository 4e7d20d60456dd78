// Package forecast projects a daily cash balance from a snapshot of bank
// balances and future-dated cash events. It performs no I/O: callers load the
// snapshot, run Project, and persist the result themselves.
package forecast

import (
	"github.com/shopspring/decimal"
)

// Engine runs projections with a fixed set of alert thresholds. It holds no
// mutable state and is safe for concurrent use.
type Engine struct {
	settings Settings
}

func NewEngine(settings Settings) *Engine {
	return &Engine{settings: settings}
}

// Project runs the sequential day loop over the snapshot. Day 0 opens at
// in.Position and every following day opens at the previous closing balance.
func (e *Engine) Project(in Input, opts Options) (*Result, error) {
	if err := ValidateHorizon(in.Days); err != nil {
		return nil, err
	}

	start := dateOf(in.Start)
	byDay := make([][]Event, in.Days)
	for _, ev := range BuildEvents(in) {
		idx := dayIndex(start, ev.EffectiveDate())
		byDay[idx] = append(byDay[idx], ev)
	}

	days := make([]Day, 0, in.Days)
	balance := in.Position
	for i := 0; i < in.Days; i++ {
		events := byDay[i]
		day := Day{
			Date:           Date{start.AddDate(0, 0, i)},
			OpeningBalance: balance,
		}
		day.Inflows, day.Outflows = accumulate(events)
		day.ClosingBalance = day.OpeningBalance.Add(day.Inflows.Total).Sub(day.Outflows.Total)
		day.ConfidenceLevel = Confidence(events)
		day.Alerts = EvaluateAlerts(day, events, e.settings)
		if opts.Scenarios {
			s := EstimateScenarios(day.OpeningBalance, day.Inflows, day.Outflows)
			day.Scenarios = &s
		}

		days = append(days, day)
		balance = day.ClosingBalance
	}

	return &Result{Forecast: days, Summary: Summarize(days)}, nil
}

func accumulate(events []Event) (Inflows, Outflows) {
	in := Inflows{FromInvoices: decimal.Zero, FromRepeating: decimal.Zero, Total: decimal.Zero}
	out := Outflows{
		ToBills: decimal.Zero, ToRepeating: decimal.Zero, ToTaxes: decimal.Zero,
		ToPatterns: decimal.Zero, ToBudgets: decimal.Zero, Total: decimal.Zero,
	}

	for _, ev := range events {
		amount := ev.SignedAmount().Abs()
		switch ev.Category() {
		case FromInvoices:
			in.FromInvoices = in.FromInvoices.Add(amount)
		case FromRepeating:
			in.FromRepeating = in.FromRepeating.Add(amount)
		case ToBills:
			out.ToBills = out.ToBills.Add(amount)
		case ToRepeating:
			out.ToRepeating = out.ToRepeating.Add(amount)
		case ToTaxes:
			out.ToTaxes = out.ToTaxes.Add(amount)
		case ToPatterns:
			out.ToPatterns = out.ToPatterns.Add(amount)
		case ToBudgets:
			out.ToBudgets = out.ToBudgets.Add(amount)
		}
		if ev.Category().Inflow() {
			in.Total = in.Total.Add(amount)
		} else {
			out.Total = out.Total.Add(amount)
		}
	}
	return in, out
}

// Confidence is the average of each event's confidence constant weighted by
// the event's absolute amount. A day without movement is fully certain.
func Confidence(events []Event) float64 {
	var weighted, weight float64
	for _, ev := range events {
		w := ev.SignedAmount().Abs().InexactFloat64()
		weighted += w * ev.Confidence()
		weight += w
	}
	if weight == 0 {
		return 1
	}
	c := weighted / weight
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// Summarize aggregates a projected horizon. The lowest balance keeps the
// earliest date on ties.
func Summarize(days []Day) Summary {
	s := Summary{
		Days:          len(days),
		TotalInflows:  decimal.Zero,
		TotalOutflows: decimal.Zero,
	}
	if len(days) == 0 {
		return s
	}

	s.LowestBalance = days[0].ClosingBalance
	s.LowestBalanceDate = days[0].Date
	var confidence float64
	for _, d := range days {
		if d.ClosingBalance.LessThan(s.LowestBalance) {
			s.LowestBalance = d.ClosingBalance
			s.LowestBalanceDate = d.Date
		}
		s.TotalInflows = s.TotalInflows.Add(d.Inflows.Total)
		s.TotalOutflows = s.TotalOutflows.Add(d.Outflows.Total)
		confidence += d.ConfidenceLevel
		for _, a := range d.Alerts {
			if a.Severity == SeverityCritical {
				s.CriticalAlerts++
			}
		}
	}
	s.AverageConfidence = confidence / float64(len(days))
	return s
}
