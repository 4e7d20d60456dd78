package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BankAccount represents a bank account synced from the ledger
type BankAccount struct {
	ID         int64           `db:"id" json:"id"`
	ExternalID string          `db:"external_id" json:"external_id"`
	Name       string          `db:"name" json:"name"`
	Code       string          `db:"code" json:"code"`
	Currency   string          `db:"currency" json:"currency"`
	Balance    decimal.Decimal `db:"balance" json:"balance"`
	Status     string          `db:"status" json:"status"`
	UpdatedAt  time.Time       `db:"updated_at" json:"-"`
}

// BankTransaction represents a bank statement line synced from the ledger
type BankTransaction struct {
	ID                int64           `db:"id" json:"id"`
	ExternalID        string          `db:"external_id" json:"external_id"`
	BankAccountID     string          `db:"bank_account_external_id" json:"bank_account_id"`
	Type              string          `db:"type" json:"type"`
	ContactID         string          `db:"contact_id" json:"contact_id"`
	Amount            decimal.Decimal `db:"amount" json:"amount"`
	TransactionDate   time.Time       `db:"transaction_date" json:"transaction_date"`
	Reference         string          `db:"reference" json:"reference"`
	ReconciledInvoice string          `db:"reconciled_invoice_id" json:"reconciled_invoice_id,omitempty"`
	CreatedAt         time.Time       `db:"created_at" json:"-"`
	UpdatedAt         time.Time       `db:"updated_at" json:"-"`
}

// Invoice represents a receivable (ACCREC) or payable (ACCPAY) document
type Invoice struct {
	ID            int64           `db:"id" json:"id"`
	ExternalID    string          `db:"external_id" json:"external_id"`
	InvoiceNumber string          `db:"invoice_number" json:"invoice_number"`
	Type          string          `db:"type" json:"type"`
	ContactID     string          `db:"contact_id" json:"contact_id"`
	ContactName   string          `db:"contact_name" json:"contact_name"`
	Status        string          `db:"status" json:"status"`
	Total         decimal.Decimal `db:"total" json:"total"`
	AmountDue     decimal.Decimal `db:"amount_due" json:"amount_due"`
	IssueDate     time.Time       `db:"issue_date" json:"issue_date"`
	DueDate       time.Time       `db:"due_date" json:"due_date"`
	PaidDate      *time.Time      `db:"paid_date" json:"paid_date,omitempty"`
	UpdatedAt     time.Time       `db:"updated_at" json:"-"`
}

// Receivable reports whether the invoice is money owed to the business.
func (i Invoice) Receivable() bool {
	return i.Type == InvoiceTypeReceivable
}

// Unsettled reports whether the invoice still has an open balance.
func (i Invoice) Unsettled() bool {
	if i.Status != InvoiceStatusAuthorised && i.Status != InvoiceStatusSubmitted {
		return false
	}
	return i.AmountDue.IsPositive()
}

// RepeatingTransaction is a recurring invoice/bill template
type RepeatingTransaction struct {
	ID                int64           `db:"id" json:"id"`
	ExternalID        string          `db:"external_id" json:"external_id"`
	Type              string          `db:"type" json:"type"`
	ContactID         string          `db:"contact_id" json:"contact_id"`
	Amount            decimal.Decimal `db:"amount" json:"amount"`
	NextScheduledDate time.Time       `db:"next_scheduled_date" json:"next_scheduled_date"`
	ScheduleUnit      string          `db:"schedule_unit" json:"schedule_unit"`
	SchedulePeriod    int             `db:"schedule_period" json:"schedule_period"`
	EndDate           *time.Time      `db:"end_date" json:"end_date,omitempty"`
	Status            string          `db:"status" json:"status"`
	UpdatedAt         time.Time       `db:"updated_at" json:"-"`
}

// Receipt reports whether the template produces incoming cash.
func (r RepeatingTransaction) Receipt() bool {
	return r.Type == InvoiceTypeReceivable
}

// PaymentPattern is the learned payment behaviour of one counterparty
type PaymentPattern struct {
	ContactID        string    `db:"contact_id" json:"contact_id"`
	AverageDaysToPay float64   `db:"average_days_to_pay" json:"average_days_to_pay"`
	OnTimeRate       float64   `db:"on_time_rate" json:"on_time_rate"`
	EarlyRate        float64   `db:"early_rate" json:"early_rate"`
	LateRate         float64   `db:"late_rate" json:"late_rate"`
	SampleSize       int       `db:"sample_size" json:"sample_size"`
	UpdatedAt        time.Time `db:"updated_at" json:"-"`
}

// CashFlowBudget is a monthly budgeted outflow for a category
type CashFlowBudget struct {
	ID             int64           `db:"id" json:"id"`
	Category       string          `db:"category" json:"category"`
	MonthYear      string          `db:"month_year" json:"month_year"`
	BudgetedAmount decimal.Decimal `db:"budgeted_amount" json:"budgeted_amount"`
	UpdatedAt      time.Time       `db:"updated_at" json:"-"`
}

// TaxObligation is a VAT/GST/income tax payment due on a fixed date
type TaxObligation struct {
	ID        int64           `db:"id" json:"id"`
	TaxType   string          `db:"tax_type" json:"tax_type"`
	PeriodEnd time.Time       `db:"period_end" json:"period_end"`
	DueDate   time.Time       `db:"due_date" json:"due_date"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	Status    string          `db:"status" json:"status"`
	CreatedAt time.Time       `db:"created_at" json:"-"`
	UpdatedAt time.Time       `db:"updated_at" json:"-"`
}

// MonthYearLayout is the storage layout of CashFlowBudget.MonthYear
const MonthYearLayout = "2006-01"

// DateLayout is the calendar-date layout used in queries and JSON parameters
const DateLayout = "2006-01-02"

// Bank account status constants
const (
	BankAccountStatusActive   = "ACTIVE"
	BankAccountStatusArchived = "ARCHIVED"
)

// Bank transaction type constants
const (
	BankTransactionReceive = "RECEIVE"
	BankTransactionSpend   = "SPEND"
)

// Invoice type constants
const (
	InvoiceTypeReceivable = "ACCREC"
	InvoiceTypePayable    = "ACCPAY"
)

// Invoice status constants
const (
	InvoiceStatusDraft      = "DRAFT"
	InvoiceStatusSubmitted  = "SUBMITTED"
	InvoiceStatusAuthorised = "AUTHORISED"
	InvoiceStatusPaid       = "PAID"
	InvoiceStatusVoided     = "VOIDED"
)

// Repeating schedule constants
const (
	ScheduleWeekly  = "WEEKLY"
	ScheduleMonthly = "MONTHLY"

	RepeatingStatusActive = "AUTHORISED"
)

// Tax obligation status constants
const (
	TaxStatusPending = "pending"
	TaxStatusPaid    = "paid"
)
