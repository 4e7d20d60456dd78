package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookkeeping-service/internal/models"
	"bookkeeping-service/internal/notify"
	"bookkeeping-service/internal/reports"
	"bookkeeping-service/internal/repositories"
)

var fixedNow = time.Date(2025, time.March, 10, 9, 30, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.Truef(t, got.Equal(dec(want)), "expected %s, got %s %v", want, got.String(), msgAndArgs)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// newMockDB returns a sqlmock database for the transactions services open.
// Repository calls go to a fakeStore, so only Begin, Commit and Rollback are
// expected on it.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

// fakeStore implements every repository interface in memory. Errors keyed by
// method name are returned instead of touching the data.
type fakeStore struct {
	mu sync.Mutex

	accounts  []models.BankAccount
	txns      []models.BankTransaction
	invoices  []models.Invoice
	templates []models.RepeatingTransaction
	patterns  []models.PaymentPattern
	budgets   []models.CashFlowBudget
	taxes     []models.TaxObligation
	forecasts map[string]models.ForecastRow
	runs      []models.Run

	errs  map[string]error
	calls map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		forecasts: make(map[string]models.ForecastRow),
		errs:      make(map[string]error),
		calls:     make(map[string]int),
	}
}

func (f *fakeStore) repos() Repositories {
	return Repositories{
		Bank:      f,
		Invoices:  f,
		Recurring: f,
		Patterns:  f,
		Planning:  f,
		Forecasts: f,
		Runs:      f,
	}
}

func (f *fakeStore) enter(method string) error {
	f.calls[method]++
	return f.errs[method]
}

func (f *fakeStore) callCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeStore) UpsertAccounts(_ context.Context, _ *sql.Tx, accounts []models.BankAccount) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpsertAccounts"); err != nil {
		return err
	}
	f.accounts = append(f.accounts, accounts...)
	return nil
}

func (f *fakeStore) ActiveAccounts(context.Context) ([]models.BankAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ActiveAccounts"); err != nil {
		return nil, err
	}
	var out []models.BankAccount
	for _, a := range f.accounts {
		if a.Status == models.BankAccountStatusActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) UpsertTransactions(_ context.Context, _ *sql.Tx, txns []models.BankTransaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpsertTransactions"); err != nil {
		return err
	}
	f.txns = append(f.txns, txns...)
	return nil
}

func (f *fakeStore) UnreconciledTransactions(_ context.Context, from, to time.Time) ([]models.BankTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UnreconciledTransactions"); err != nil {
		return nil, err
	}
	var out []models.BankTransaction
	for _, bt := range f.txns {
		if bt.ReconciledInvoice == "" && !bt.TransactionDate.Before(from) && !bt.TransactionDate.After(to) {
			out = append(out, bt)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkReconciled(_ context.Context, _ *sql.Tx, transactionID, invoiceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("MarkReconciled"); err != nil {
		return err
	}
	for i := range f.txns {
		if f.txns[i].ExternalID == transactionID {
			f.txns[i].ReconciledInvoice = invoiceID
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (f *fakeStore) UpsertInvoices(_ context.Context, _ *sql.Tx, invoices []models.Invoice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpsertInvoices"); err != nil {
		return err
	}
	f.invoices = append(f.invoices, invoices...)
	return nil
}

func (f *fakeStore) Unsettled(context.Context) ([]models.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Unsettled"); err != nil {
		return nil, err
	}
	var out []models.Invoice
	for _, inv := range f.invoices {
		if inv.Unsettled() {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (f *fakeStore) UnsettledDueBefore(_ context.Context, before time.Time) ([]models.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UnsettledDueBefore"); err != nil {
		return nil, err
	}
	var out []models.Invoice
	for _, inv := range f.invoices {
		if inv.Unsettled() && inv.DueDate.Before(before) {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (f *fakeStore) Paid(context.Context) ([]models.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Paid"); err != nil {
		return nil, err
	}
	var out []models.Invoice
	for _, inv := range f.invoices {
		if inv.Status == models.InvoiceStatusPaid && inv.PaidDate != nil {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkPaid(_ context.Context, _ *sql.Tx, invoiceID string, paidOn time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("MarkPaid"); err != nil {
		return err
	}
	for i := range f.invoices {
		if f.invoices[i].ExternalID == invoiceID {
			paid := paidOn
			f.invoices[i].Status = models.InvoiceStatusPaid
			f.invoices[i].AmountDue = decimal.Zero
			f.invoices[i].PaidDate = &paid
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (f *fakeStore) UpsertTemplates(_ context.Context, _ *sql.Tx, templates []models.RepeatingTransaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpsertTemplates"); err != nil {
		return err
	}
	f.templates = append(f.templates, templates...)
	return nil
}

func (f *fakeStore) ActiveTemplates(context.Context) ([]models.RepeatingTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ActiveTemplates"); err != nil {
		return nil, err
	}
	return append([]models.RepeatingTransaction(nil), f.templates...), nil
}

func (f *fakeStore) SavePatterns(_ context.Context, _ *sql.Tx, patterns []models.PaymentPattern) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("SavePatterns"); err != nil {
		return err
	}
	f.patterns = append([]models.PaymentPattern(nil), patterns...)
	return nil
}

func (f *fakeStore) Patterns(context.Context) ([]models.PaymentPattern, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Patterns"); err != nil {
		return nil, err
	}
	return append([]models.PaymentPattern(nil), f.patterns...), nil
}

func (f *fakeStore) UpsertBudget(_ context.Context, budget *models.CashFlowBudget) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpsertBudget"); err != nil {
		return err
	}
	for i := range f.budgets {
		if f.budgets[i].Category == budget.Category && f.budgets[i].MonthYear == budget.MonthYear {
			f.budgets[i].BudgetedAmount = budget.BudgetedAmount
			budget.ID = f.budgets[i].ID
			return nil
		}
	}
	budget.ID = int64(len(f.budgets) + 1)
	f.budgets = append(f.budgets, *budget)
	return nil
}

func (f *fakeStore) Budgets(_ context.Context, monthYear string) ([]models.CashFlowBudget, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Budgets"); err != nil {
		return nil, err
	}
	var out []models.CashFlowBudget
	for _, b := range f.budgets {
		if monthYear == "" || b.MonthYear == monthYear {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) BudgetsBetween(_ context.Context, fromMonth, toMonth string) ([]models.CashFlowBudget, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("BudgetsBetween"); err != nil {
		return nil, err
	}
	var out []models.CashFlowBudget
	for _, b := range f.budgets {
		if b.MonthYear >= fromMonth && b.MonthYear <= toMonth {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateTaxObligation(_ context.Context, obligation *models.TaxObligation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateTaxObligation"); err != nil {
		return err
	}
	obligation.ID = int64(len(f.taxes) + 1)
	f.taxes = append(f.taxes, *obligation)
	return nil
}

func (f *fakeStore) TaxObligation(_ context.Context, id int64) (*models.TaxObligation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("TaxObligation"); err != nil {
		return nil, err
	}
	for _, t := range f.taxes {
		if t.ID == id {
			found := t
			return &found, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeStore) TaxObligations(_ context.Context, status string) ([]models.TaxObligation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("TaxObligations"); err != nil {
		return nil, err
	}
	var out []models.TaxObligation
	for _, t := range f.taxes {
		if status == "" || t.Status == status {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateTaxStatus(_ context.Context, id int64, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpdateTaxStatus"); err != nil {
		return err
	}
	for i := range f.taxes {
		if f.taxes[i].ID == id {
			f.taxes[i].Status = status
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (f *fakeStore) SaveDays(_ context.Context, _ *sql.Tx, rows []models.ForecastRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("SaveDays"); err != nil {
		return err
	}
	for _, row := range rows {
		f.forecasts[row.ForecastDate.Format(models.DateLayout)] = row
	}
	return nil
}

func (f *fakeStore) Range(_ context.Context, from time.Time, days int) ([]models.ForecastRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Range"); err != nil {
		return nil, err
	}
	var out []models.ForecastRow
	for i := 0; i < days; i++ {
		if row, ok := f.forecasts[from.AddDate(0, 0, i).Format(models.DateLayout)]; ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateRun(_ context.Context, run *models.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateRun"); err != nil {
		return err
	}
	run.ID = int64(len(f.runs) + 1)
	f.runs = append(f.runs, *run)
	return nil
}

func (f *fakeStore) FinishRun(_ context.Context, runID, status string, details json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("FinishRun"); err != nil {
		return err
	}
	for i := range f.runs {
		if f.runs[i].RunID == runID {
			finished := fixedNow
			f.runs[i].Status = status
			f.runs[i].Details = details
			f.runs[i].FinishedAt = &finished
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (f *fakeStore) LastSuccessful(_ context.Context, kind string) (*models.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("LastSuccessful"); err != nil {
		return nil, err
	}
	var last *models.Run
	for i := range f.runs {
		r := f.runs[i]
		if r.Kind == kind && r.Status == models.RunStatusSucceeded && (last == nil || r.StartedAt.After(last.StartedAt)) {
			last = &r
		}
	}
	if last == nil {
		return nil, repositories.ErrNotFound
	}
	return last, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	alerts []notify.DatedAlert
	err    error
}

func (p *fakePublisher) PublishAlerts(_ context.Context, alerts []notify.DatedAlert) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.alerts = append(p.alerts, alerts...)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

type fakeLedger struct {
	accounts  []models.BankAccount
	txns      []models.BankTransaction
	invoices  []models.Invoice
	templates []models.RepeatingTransaction
	err       error
	since     time.Time

	reports     map[string]*reports.Report
	reportCalls int
}

func (l *fakeLedger) BankAccounts(context.Context) ([]models.BankAccount, error) {
	return l.accounts, l.err
}

func (l *fakeLedger) BankTransactions(_ context.Context, since time.Time) ([]models.BankTransaction, error) {
	l.since = since
	return l.txns, nil
}

func (l *fakeLedger) Invoices(context.Context, time.Time) ([]models.Invoice, error) {
	return l.invoices, nil
}

func (l *fakeLedger) RepeatingInvoices(context.Context) ([]models.RepeatingTransaction, error) {
	return l.templates, nil
}

func (l *fakeLedger) Report(_ context.Context, name string, _ url.Values) (*reports.Report, error) {
	l.reportCalls++
	if l.err != nil {
		return nil, l.err
	}
	return l.reports[name], nil
}
