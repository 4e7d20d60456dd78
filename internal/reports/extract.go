package reports

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Figure names used as label table keys.
const (
	MetricCash              = "cash"
	MetricTotalAssets       = "total_assets"
	MetricTotalLiabilities  = "total_liabilities"
	MetricNetAssets         = "net_assets"
	MetricTaxLiability      = "tax_liability"
	MetricRevenue           = "revenue"
	MetricCostOfSales       = "cost_of_sales"
	MetricGrossProfit       = "gross_profit"
	MetricOperatingExpenses = "operating_expenses"
	MetricNetProfit         = "net_profit"
)

type BalanceSheet struct {
	Date             string          `json:"date"`
	Cash             decimal.Decimal `json:"cash"`
	TotalAssets      decimal.Decimal `json:"total_assets"`
	TotalLiabilities decimal.Decimal `json:"total_liabilities"`
	NetAssets        decimal.Decimal `json:"net_assets"`
	TaxLiability     decimal.Decimal `json:"tax_liability"`
	Missing          []string        `json:"missing,omitempty"`
}

type ProfitLoss struct {
	Period            string          `json:"period"`
	Revenue           decimal.Decimal `json:"revenue"`
	CostOfSales       decimal.Decimal `json:"cost_of_sales"`
	GrossProfit       decimal.Decimal `json:"gross_profit"`
	OperatingExpenses decimal.Decimal `json:"operating_expenses"`
	NetProfit         decimal.Decimal `json:"net_profit"`
	Missing           []string        `json:"missing,omitempty"`
}

// Extractor reads named figures out of reports with a label table.
type Extractor struct {
	labels *LabelTable
}

func NewExtractor(labels *LabelTable) *Extractor {
	return &Extractor{labels: labels}
}

// ExtractBalanceSheet reads a balance sheet with the embedded label table.
func ExtractBalanceSheet(report *Report) BalanceSheet {
	return NewExtractor(DefaultLabels()).BalanceSheet(report)
}

// ExtractProfitLoss reads a profit and loss report with the embedded label table.
func ExtractProfitLoss(report *Report) ProfitLoss {
	return NewExtractor(DefaultLabels()).ProfitLoss(report)
}

// BalanceSheet extracts balance sheet figures. Figures that cannot be found
// are zero and listed in Missing.
func (e *Extractor) BalanceSheet(report *Report) BalanceSheet {
	values, missing := e.extract(report, e.labels.BalanceSheet)
	return BalanceSheet{
		Date:             report.Date,
		Cash:             values[MetricCash],
		TotalAssets:      values[MetricTotalAssets],
		TotalLiabilities: values[MetricTotalLiabilities],
		NetAssets:        values[MetricNetAssets],
		TaxLiability:     values[MetricTaxLiability],
		Missing:          missing,
	}
}

// ProfitLoss extracts profit and loss figures. Figures that cannot be found
// are zero and listed in Missing.
func (e *Extractor) ProfitLoss(report *Report) ProfitLoss {
	values, missing := e.extract(report, e.labels.ProfitLoss)
	return ProfitLoss{
		Period:            report.Date,
		Revenue:           values[MetricRevenue],
		CostOfSales:       values[MetricCostOfSales],
		GrossProfit:       values[MetricGrossProfit],
		OperatingExpenses: values[MetricOperatingExpenses],
		NetProfit:         values[MetricNetProfit],
		Missing:           missing,
	}
}

func (e *Extractor) extract(report *Report, rules map[string]Rule) (map[string]decimal.Decimal, []string) {
	values := make(map[string]decimal.Decimal, len(rules))
	var missing []string
	for metric, rule := range rules {
		v, ok := Find(report.Rows, rule)
		if !ok {
			missing = append(missing, metric)
			v = decimal.Zero
		}
		values[metric] = v
	}
	sort.Strings(missing)
	return values, missing
}
