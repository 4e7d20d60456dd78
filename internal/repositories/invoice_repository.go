package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bookkeeping-service/internal/models"
)

type InvoiceRepository interface {
	UpsertInvoices(ctx context.Context, tx *sql.Tx, invoices []models.Invoice) error
	Unsettled(ctx context.Context) ([]models.Invoice, error)
	UnsettledDueBefore(ctx context.Context, before time.Time) ([]models.Invoice, error)
	Paid(ctx context.Context) ([]models.Invoice, error)
	MarkPaid(ctx context.Context, tx *sql.Tx, invoiceID string, paidOn time.Time) error
}

type invoiceRepository struct {
	db *sql.DB
}

func NewInvoiceRepository(db *sql.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

const invoiceColumns = `
	id, external_id, invoice_number, type, contact_id, contact_name, status,
	total, amount_due, issue_date, due_date, paid_date, updated_at
`

func (r *invoiceRepository) UpsertInvoices(ctx context.Context, tx *sql.Tx, invoices []models.Invoice) error {
	query := `
		INSERT INTO invoices (
			external_id, invoice_number, type, contact_id, contact_name, status,
			total, amount_due, issue_date, due_date, paid_date
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			invoice_number = VALUES(invoice_number),
			type = VALUES(type),
			contact_id = VALUES(contact_id),
			contact_name = VALUES(contact_name),
			status = VALUES(status),
			total = VALUES(total),
			amount_due = VALUES(amount_due),
			issue_date = VALUES(issue_date),
			due_date = VALUES(due_date),
			paid_date = VALUES(paid_date),
			updated_at = CURRENT_TIMESTAMP
	`
	for _, inv := range invoices {
		_, err := tx.ExecContext(ctx, query,
			inv.ExternalID,
			inv.InvoiceNumber,
			inv.Type,
			inv.ContactID,
			inv.ContactName,
			inv.Status,
			inv.Total,
			inv.AmountDue,
			inv.IssueDate,
			inv.DueDate,
			nullTime(inv.PaidDate),
		)
		if err != nil {
			return fmt.Errorf("upsert invoice %s: %w", inv.ExternalID, err)
		}
	}
	return nil
}

// Unsettled returns authorised or submitted invoices with an open balance.
func (r *invoiceRepository) Unsettled(ctx context.Context) ([]models.Invoice, error) {
	query := `SELECT` + invoiceColumns + `
		FROM invoices
		WHERE status IN (?, ?)
		AND amount_due > 0
		ORDER BY due_date, id
	`
	return r.query(ctx, query, models.InvoiceStatusAuthorised, models.InvoiceStatusSubmitted)
}

// UnsettledDueBefore is Unsettled restricted to due dates before the given day.
func (r *invoiceRepository) UnsettledDueBefore(ctx context.Context, before time.Time) ([]models.Invoice, error) {
	query := `SELECT` + invoiceColumns + `
		FROM invoices
		WHERE status IN (?, ?)
		AND amount_due > 0
		AND due_date < ?
		ORDER BY due_date, id
	`
	return r.query(ctx, query, models.InvoiceStatusAuthorised, models.InvoiceStatusSubmitted, before)
}

// Paid returns fully paid invoices that carry a payment date.
func (r *invoiceRepository) Paid(ctx context.Context) ([]models.Invoice, error) {
	query := `SELECT` + invoiceColumns + `
		FROM invoices
		WHERE status = ?
		AND paid_date IS NOT NULL
		ORDER BY paid_date, id
	`
	return r.query(ctx, query, models.InvoiceStatusPaid)
}

func (r *invoiceRepository) MarkPaid(ctx context.Context, tx *sql.Tx, invoiceID string, paidOn time.Time) error {
	query := `
		UPDATE invoices
		SET status = ?,
			amount_due = 0,
			paid_date = ?,
			updated_at = ?
		WHERE external_id = ?
	`
	result, err := tx.ExecContext(ctx, query, models.InvoiceStatusPaid, paidOn, time.Now().UTC(), invoiceID)
	if err != nil {
		return err
	}
	if err := checkAffected(result); err != nil {
		return fmt.Errorf("invoice %s: %w", invoiceID, err)
	}
	return nil
}

func (r *invoiceRepository) query(ctx context.Context, query string, args ...interface{}) ([]models.Invoice, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []models.Invoice
	for rows.Next() {
		var inv models.Invoice
		var paid sql.NullTime
		err := rows.Scan(
			&inv.ID,
			&inv.ExternalID,
			&inv.InvoiceNumber,
			&inv.Type,
			&inv.ContactID,
			&inv.ContactName,
			&inv.Status,
			&inv.Total,
			&inv.AmountDue,
			&inv.IssueDate,
			&inv.DueDate,
			&paid,
			&inv.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		inv.PaidDate = timePtr(paid)
		invoices = append(invoices, inv)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return invoices, nil
}
