package forecast

import "github.com/shopspring/decimal"

var (
	bestInflowFactor   = decimal.RequireFromString("1.2")
	bestOutflowFactor  = decimal.RequireFromString("0.9")
	worstInflowFactor  = decimal.RequireFromString("0.8")
	worstOutflowFactor = decimal.RequireFromString("1.1")
)

// EstimateScenarios perturbs one day's totals around its actual opening
// balance: +20% income and -10% expense for the best case, -20% income and
// +10% expense for the worst case. Estimates do not compound across days.
func EstimateScenarios(opening decimal.Decimal, inflows Inflows, outflows Outflows) Scenarios {
	return Scenarios{
		BestCase: opening.
			Add(inflows.Total.Mul(bestInflowFactor)).
			Sub(outflows.Total.Mul(bestOutflowFactor)),
		WorstCase: opening.
			Add(inflows.Total.Mul(worstInflowFactor)).
			Sub(outflows.Total.Mul(worstOutflowFactor)),
	}
}
