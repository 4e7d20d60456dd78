// Package reports walks the row trees of ledger financial reports (balance
// sheet, profit and loss) and extracts named figures using a declarative label
// table.
package reports

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Row is one node of a report tree: *SectionRow, *SummaryRow or *DataRow.
type Row interface {
	reportRow()
}

// SectionRow groups child rows under a title.
type SectionRow struct {
	Title string
	Rows  []Row
}

// SummaryRow is a totals line, usually the last row of a section.
type SummaryRow struct {
	Cells []string
}

// DataRow is a single account line.
type DataRow struct {
	Cells []string
}

func (*SectionRow) reportRow() {}
func (*SummaryRow) reportRow() {}
func (*DataRow) reportRow()    {}

// Report is a decoded ledger report.
type Report struct {
	ID   string
	Name string
	Date string
	Rows []Row
}

type rawCell struct {
	Value string `json:"Value"`
}

type rawRow struct {
	RowType string    `json:"RowType"`
	Title   string    `json:"Title"`
	Cells   []rawCell `json:"Cells"`
	Rows    []rawRow  `json:"Rows"`
}

type rawReport struct {
	ReportID   string   `json:"ReportID"`
	ReportName string   `json:"ReportName"`
	ReportDate string   `json:"ReportDate"`
	Rows       []rawRow `json:"Rows"`
}

// UnmarshalJSON decodes the ledger's generic row tree. Header rows are
// dropped; unknown row types are rejected.
func (r *Report) UnmarshalJSON(data []byte) error {
	var raw rawReport
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	rows, err := convertRows(raw.Rows)
	if err != nil {
		return fmt.Errorf("report %q: %w", raw.ReportName, err)
	}
	*r = Report{ID: raw.ReportID, Name: raw.ReportName, Date: raw.ReportDate, Rows: rows}
	return nil
}

// MarshalJSON writes the report back in the ledger's row tree layout so it can
// be cached and decoded again.
func (r Report) MarshalJSON() ([]byte, error) {
	return json.Marshal(rawReport{
		ReportID:   r.ID,
		ReportName: r.Name,
		ReportDate: r.Date,
		Rows:       toRawRows(r.Rows),
	})
}

func convertRows(raw []rawRow) ([]Row, error) {
	rows := make([]Row, 0, len(raw))
	for _, rr := range raw {
		switch strings.ToLower(rr.RowType) {
		case "header":
			continue
		case "section":
			children, err := convertRows(rr.Rows)
			if err != nil {
				return nil, err
			}
			rows = append(rows, &SectionRow{Title: rr.Title, Rows: children})
		case "summaryrow":
			rows = append(rows, &SummaryRow{Cells: cellValues(rr.Cells)})
		case "row":
			rows = append(rows, &DataRow{Cells: cellValues(rr.Cells)})
		default:
			return nil, fmt.Errorf("unknown row type %q", rr.RowType)
		}
	}
	return rows, nil
}

func cellValues(cells []rawCell) []string {
	values := make([]string, len(cells))
	for i, c := range cells {
		values[i] = c.Value
	}
	return values
}

func toRawRows(rows []Row) []rawRow {
	out := make([]rawRow, 0, len(rows))
	for _, row := range rows {
		switch r := row.(type) {
		case *SectionRow:
			out = append(out, rawRow{RowType: "Section", Title: r.Title, Rows: toRawRows(r.Rows)})
		case *SummaryRow:
			out = append(out, rawRow{RowType: "SummaryRow", Cells: toRawCells(r.Cells)})
		case *DataRow:
			out = append(out, rawRow{RowType: "Row", Cells: toRawCells(r.Cells)})
		}
	}
	return out
}

func toRawCells(values []string) []rawCell {
	cells := make([]rawCell, len(values))
	for i, v := range values {
		cells[i] = rawCell{Value: v}
	}
	return cells
}

// label is the first cell of a row.
func label(cells []string) string {
	if len(cells) == 0 {
		return ""
	}
	return strings.TrimSpace(cells[0])
}

// value is the last cell of a row that parses as a number.
func value(cells []string) (decimal.Decimal, bool) {
	for i := len(cells) - 1; i >= 1; i-- {
		s := strings.ReplaceAll(strings.TrimSpace(cells[i]), ",", "")
		if s == "" {
			continue
		}
		if d, err := decimal.NewFromString(s); err == nil {
			return d, true
		}
	}
	return decimal.Zero, false
}
