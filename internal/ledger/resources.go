package ledger

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bookkeeping-service/internal/models"
	"bookkeeping-service/internal/reports"
)

// pageSize is the number of records the API returns per page.
const pageSize = 100

type contactDTO struct {
	ContactID string `json:"ContactID"`
	Name      string `json:"Name"`
}

type accountDTO struct {
	AccountID    string          `json:"AccountID"`
	Name         string          `json:"Name"`
	Code         string          `json:"Code"`
	CurrencyCode string          `json:"CurrencyCode"`
	Status       string          `json:"Status"`
	Balance      decimal.Decimal `json:"Balance"`
}

type bankTransactionDTO struct {
	BankTransactionID string          `json:"BankTransactionID"`
	Type              string          `json:"Type"`
	Contact           contactDTO      `json:"Contact"`
	BankAccount       accountDTO      `json:"BankAccount"`
	Total             decimal.Decimal `json:"Total"`
	DateString        string          `json:"DateString"`
	Reference         string          `json:"Reference"`
}

type invoiceDTO struct {
	InvoiceID       string          `json:"InvoiceID"`
	InvoiceNumber   string          `json:"InvoiceNumber"`
	Type            string          `json:"Type"`
	Contact         contactDTO      `json:"Contact"`
	Status          string          `json:"Status"`
	Total           decimal.Decimal `json:"Total"`
	AmountDue       decimal.Decimal `json:"AmountDue"`
	DateString      string          `json:"DateString"`
	DueDateString   string          `json:"DueDateString"`
	FullyPaidOnDate string          `json:"FullyPaidOnDate"`
}

type scheduleDTO struct {
	Unit                    string `json:"Unit"`
	Period                  int    `json:"Period"`
	NextScheduledDateString string `json:"NextScheduledDateString"`
	EndDateString           string `json:"EndDateString"`
}

type repeatingInvoiceDTO struct {
	RepeatingInvoiceID string          `json:"RepeatingInvoiceID"`
	Type               string          `json:"Type"`
	Contact            contactDTO      `json:"Contact"`
	Schedule           scheduleDTO     `json:"Schedule"`
	Total              decimal.Decimal `json:"Total"`
	Status             string          `json:"Status"`
}

// BankAccounts returns every bank account of the organisation.
func (c *Client) BankAccounts(ctx context.Context) ([]models.BankAccount, error) {
	var resp struct {
		Accounts []accountDTO `json:"Accounts"`
	}
	query := url.Values{"where": {`Type=="BANK"`}}
	if err := c.getJSON(ctx, "Accounts", "/Accounts", query, time.Time{}, &resp); err != nil {
		return nil, err
	}

	accounts := make([]models.BankAccount, 0, len(resp.Accounts))
	for _, a := range resp.Accounts {
		accounts = append(accounts, models.BankAccount{
			ExternalID: a.AccountID,
			Name:       a.Name,
			Code:       a.Code,
			Currency:   a.CurrencyCode,
			Balance:    a.Balance,
			Status:     strings.ToUpper(a.Status),
		})
	}
	return accounts, nil
}

// BankTransactions returns bank transactions modified since the given time,
// following pagination until a short page.
func (c *Client) BankTransactions(ctx context.Context, since time.Time) ([]models.BankTransaction, error) {
	var txns []models.BankTransaction
	for page := 1; ; page++ {
		var resp struct {
			BankTransactions []bankTransactionDTO `json:"BankTransactions"`
		}
		query := url.Values{"page": {strconv.Itoa(page)}}
		if err := c.getJSON(ctx, "BankTransactions", "/BankTransactions", query, since, &resp); err != nil {
			return nil, err
		}
		for _, dto := range resp.BankTransactions {
			date, err := parseDate(dto.DateString)
			if err != nil {
				return nil, fmt.Errorf("bank transaction %s: %w", dto.BankTransactionID, err)
			}
			txns = append(txns, models.BankTransaction{
				ExternalID:      dto.BankTransactionID,
				BankAccountID:   dto.BankAccount.AccountID,
				Type:            strings.ToUpper(dto.Type),
				ContactID:       dto.Contact.ContactID,
				Amount:          dto.Total,
				TransactionDate: date,
				Reference:       dto.Reference,
			})
		}
		if len(resp.BankTransactions) < pageSize {
			return txns, nil
		}
	}
}

// Invoices returns receivables and payables modified since the given time.
func (c *Client) Invoices(ctx context.Context, since time.Time) ([]models.Invoice, error) {
	var invoices []models.Invoice
	for page := 1; ; page++ {
		var resp struct {
			Invoices []invoiceDTO `json:"Invoices"`
		}
		query := url.Values{"page": {strconv.Itoa(page)}}
		if err := c.getJSON(ctx, "Invoices", "/Invoices", query, since, &resp); err != nil {
			return nil, err
		}
		for _, dto := range resp.Invoices {
			inv, err := dto.model()
			if err != nil {
				return nil, err
			}
			invoices = append(invoices, inv)
		}
		if len(resp.Invoices) < pageSize {
			return invoices, nil
		}
	}
}

func (dto invoiceDTO) model() (models.Invoice, error) {
	issued, err := parseDate(dto.DateString)
	if err != nil {
		return models.Invoice{}, fmt.Errorf("invoice %s date: %w", dto.InvoiceID, err)
	}
	due, err := parseDate(dto.DueDateString)
	if err != nil {
		return models.Invoice{}, fmt.Errorf("invoice %s due date: %w", dto.InvoiceID, err)
	}
	inv := models.Invoice{
		ExternalID:    dto.InvoiceID,
		InvoiceNumber: dto.InvoiceNumber,
		Type:          strings.ToUpper(dto.Type),
		ContactID:     dto.Contact.ContactID,
		ContactName:   dto.Contact.Name,
		Status:        strings.ToUpper(dto.Status),
		Total:         dto.Total,
		AmountDue:     dto.AmountDue,
		IssueDate:     issued,
		DueDate:       due,
	}
	if dto.FullyPaidOnDate != "" {
		paid, err := parseDate(dto.FullyPaidOnDate)
		if err != nil {
			return models.Invoice{}, fmt.Errorf("invoice %s paid date: %w", dto.InvoiceID, err)
		}
		inv.PaidDate = &paid
	}
	return inv, nil
}

// RepeatingInvoices returns every repeating invoice and bill template.
func (c *Client) RepeatingInvoices(ctx context.Context) ([]models.RepeatingTransaction, error) {
	var resp struct {
		RepeatingInvoices []repeatingInvoiceDTO `json:"RepeatingInvoices"`
	}
	if err := c.getJSON(ctx, "RepeatingInvoices", "/RepeatingInvoices", nil, time.Time{}, &resp); err != nil {
		return nil, err
	}

	out := make([]models.RepeatingTransaction, 0, len(resp.RepeatingInvoices))
	for _, dto := range resp.RepeatingInvoices {
		next, err := parseDate(dto.Schedule.NextScheduledDateString)
		if err != nil {
			return nil, fmt.Errorf("repeating invoice %s: %w", dto.RepeatingInvoiceID, err)
		}
		tmpl := models.RepeatingTransaction{
			ExternalID:        dto.RepeatingInvoiceID,
			Type:              strings.ToUpper(dto.Type),
			ContactID:         dto.Contact.ContactID,
			Amount:            dto.Total,
			NextScheduledDate: next,
			ScheduleUnit:      strings.ToUpper(dto.Schedule.Unit),
			SchedulePeriod:    dto.Schedule.Period,
			Status:            strings.ToUpper(dto.Status),
		}
		if dto.Schedule.EndDateString != "" {
			end, err := parseDate(dto.Schedule.EndDateString)
			if err != nil {
				return nil, fmt.Errorf("repeating invoice %s end date: %w", dto.RepeatingInvoiceID, err)
			}
			tmpl.EndDate = &end
		}
		out = append(out, tmpl)
	}
	return out, nil
}

// Report names accepted by Report.
const (
	ReportBalanceSheet  = "BalanceSheet"
	ReportProfitAndLoss = "ProfitAndLoss"
)

// Report fetches a financial report by name with the given query parameters.
func (c *Client) Report(ctx context.Context, name string, params url.Values) (*reports.Report, error) {
	var resp struct {
		Reports []reports.Report `json:"Reports"`
	}
	if err := c.getJSON(ctx, name, "/Reports/"+url.PathEscape(name), params, time.Time{}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Reports) == 0 {
		return nil, fmt.Errorf("%s: empty report response", name)
	}
	return &resp.Reports[0], nil
}

var dateLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02",
	time.RFC3339,
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}
