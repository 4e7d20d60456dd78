package reports

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed labels.yaml
var defaultLabelsYAML []byte

// MatchMode controls how a row label is compared with a rule's labels.
type MatchMode string

const (
	MatchExact    MatchMode = "exact"
	MatchPrefix   MatchMode = "prefix"
	MatchContains MatchMode = "contains"
)

// RowKind restricts a rule to summary or data rows. Empty matches both.
type RowKind string

const (
	KindAny     RowKind = ""
	KindSummary RowKind = "summary"
	KindData    RowKind = "data"
)

// Rule locates one figure in a report tree.
type Rule struct {
	// Sections limits the search to rows nested under a section whose title
	// matches one of these. Empty searches the whole tree.
	Sections []string  `yaml:"sections"`
	Labels   []string  `yaml:"labels"`
	Match    MatchMode `yaml:"match"`
	Kind     RowKind   `yaml:"kind"`
}

// LabelTable maps figure names to rules for each supported report.
type LabelTable struct {
	BalanceSheet map[string]Rule `yaml:"balance_sheet"`
	ProfitLoss   map[string]Rule `yaml:"profit_loss"`
}

// ParseLabels decodes and validates a YAML label table.
func ParseLabels(data []byte) (*LabelTable, error) {
	var table LabelTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse label table: %w", err)
	}
	for name, rules := range map[string]map[string]Rule{
		"balance_sheet": table.BalanceSheet,
		"profit_loss":   table.ProfitLoss,
	} {
		for metric, rule := range rules {
			if err := rule.validate(); err != nil {
				return nil, fmt.Errorf("%s.%s: %w", name, metric, err)
			}
		}
	}
	return &table, nil
}

// DefaultLabels returns the embedded label table.
func DefaultLabels() *LabelTable {
	table, err := ParseLabels(defaultLabelsYAML)
	if err != nil {
		panic(err)
	}
	return table
}

func (r Rule) validate() error {
	if len(r.Labels) == 0 {
		return fmt.Errorf("at least one label is required")
	}
	switch r.Match {
	case MatchExact, MatchPrefix, MatchContains:
	default:
		return fmt.Errorf("unknown match mode %q", r.Match)
	}
	switch r.Kind {
	case KindAny, KindSummary, KindData:
	default:
		return fmt.Errorf("unknown row kind %q", r.Kind)
	}
	return nil
}

func (r Rule) matchesLabel(s string) bool {
	return matchAny(r.Labels, s, r.Match)
}

func (r Rule) matchesSection(title string) bool {
	return matchAny(r.Sections, title, r.Match)
}

func matchAny(candidates []string, s string, mode MatchMode) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return false
	}
	for _, c := range candidates {
		c = strings.ToLower(c)
		switch mode {
		case MatchPrefix:
			if strings.HasPrefix(s, c) {
				return true
			}
		case MatchContains:
			if strings.Contains(s, c) {
				return true
			}
		default:
			if s == c {
				return true
			}
		}
	}
	return false
}

// Find walks rows depth-first and returns the value of the first row matching
// rule, in document order. The value is the row's last numeric cell.
func Find(rows []Row, rule Rule) (decimal.Decimal, bool) {
	return find(rows, rule, len(rule.Sections) == 0)
}

func find(rows []Row, rule Rule, inScope bool) (decimal.Decimal, bool) {
	for _, row := range rows {
		switch r := row.(type) {
		case *SectionRow:
			scoped := inScope || rule.matchesSection(r.Title)
			if v, ok := find(r.Rows, rule, scoped); ok {
				return v, true
			}
		case *SummaryRow:
			if inScope && rule.Kind != KindData && rule.matchesLabel(label(r.Cells)) {
				if v, ok := value(r.Cells); ok {
					return v, true
				}
			}
		case *DataRow:
			if inScope && rule.Kind != KindSummary && rule.matchesLabel(label(r.Cells)) {
				if v, ok := value(r.Cells); ok {
					return v, true
				}
			}
		}
	}
	return decimal.Zero, false
}
