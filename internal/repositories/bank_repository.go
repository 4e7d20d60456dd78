package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bookkeeping-service/internal/models"
)

type BankRepository interface {
	UpsertAccounts(ctx context.Context, tx *sql.Tx, accounts []models.BankAccount) error
	ActiveAccounts(ctx context.Context) ([]models.BankAccount, error)
	UpsertTransactions(ctx context.Context, tx *sql.Tx, txns []models.BankTransaction) error
	UnreconciledTransactions(ctx context.Context, from, to time.Time) ([]models.BankTransaction, error)
	MarkReconciled(ctx context.Context, tx *sql.Tx, transactionID, invoiceID string) error
}

type bankRepository struct {
	db *sql.DB
}

func NewBankRepository(db *sql.DB) BankRepository {
	return &bankRepository{db: db}
}

func (r *bankRepository) UpsertAccounts(ctx context.Context, tx *sql.Tx, accounts []models.BankAccount) error {
	query := `
		INSERT INTO bank_accounts (
			external_id, name, code, currency, balance, status, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			name = VALUES(name),
			code = VALUES(code),
			currency = VALUES(currency),
			balance = VALUES(balance),
			status = VALUES(status),
			updated_at = VALUES(updated_at)
	`
	now := time.Now().UTC()
	for _, a := range accounts {
		_, err := tx.ExecContext(ctx, query,
			a.ExternalID,
			a.Name,
			a.Code,
			a.Currency,
			a.Balance,
			a.Status,
			now,
		)
		if err != nil {
			return fmt.Errorf("upsert bank account %s: %w", a.ExternalID, err)
		}
	}
	return nil
}

func (r *bankRepository) ActiveAccounts(ctx context.Context) ([]models.BankAccount, error) {
	query := `
		SELECT id, external_id, name, code, currency, balance, status, updated_at
		FROM bank_accounts
		WHERE status = ?
		ORDER BY external_id
	`
	rows, err := r.db.QueryContext(ctx, query, models.BankAccountStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []models.BankAccount
	for rows.Next() {
		var a models.BankAccount
		err := rows.Scan(
			&a.ID,
			&a.ExternalID,
			&a.Name,
			&a.Code,
			&a.Currency,
			&a.Balance,
			&a.Status,
			&a.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *bankRepository) UpsertTransactions(ctx context.Context, tx *sql.Tx, txns []models.BankTransaction) error {
	query := `
		INSERT INTO bank_transactions (
			external_id, bank_account_external_id, type, contact_id,
			amount, transaction_date, reference
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			bank_account_external_id = VALUES(bank_account_external_id),
			type = VALUES(type),
			contact_id = VALUES(contact_id),
			amount = VALUES(amount),
			transaction_date = VALUES(transaction_date),
			reference = VALUES(reference),
			updated_at = CURRENT_TIMESTAMP
	`
	for _, bt := range txns {
		_, err := tx.ExecContext(ctx, query,
			bt.ExternalID,
			bt.BankAccountID,
			bt.Type,
			bt.ContactID,
			bt.Amount,
			bt.TransactionDate,
			bt.Reference,
		)
		if err != nil {
			return fmt.Errorf("upsert bank transaction %s: %w", bt.ExternalID, err)
		}
	}
	return nil
}

func (r *bankRepository) UnreconciledTransactions(ctx context.Context, from, to time.Time) ([]models.BankTransaction, error) {
	query := `
		SELECT id, external_id, bank_account_external_id, type, contact_id,
		       amount, transaction_date, reference, reconciled_invoice_id,
		       created_at, updated_at
		FROM bank_transactions
		WHERE reconciled_invoice_id IS NULL
		AND transaction_date BETWEEN ? AND ?
		ORDER BY transaction_date, id
	`
	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []models.BankTransaction
	for rows.Next() {
		var bt models.BankTransaction
		var reconciled sql.NullString
		err := rows.Scan(
			&bt.ID,
			&bt.ExternalID,
			&bt.BankAccountID,
			&bt.Type,
			&bt.ContactID,
			&bt.Amount,
			&bt.TransactionDate,
			&bt.Reference,
			&reconciled,
			&bt.CreatedAt,
			&bt.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		bt.ReconciledInvoice = reconciled.String
		transactions = append(transactions, bt)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return transactions, nil
}

func (r *bankRepository) MarkReconciled(ctx context.Context, tx *sql.Tx, transactionID, invoiceID string) error {
	query := `
		UPDATE bank_transactions
		SET reconciled_invoice_id = ?,
			updated_at = ?
		WHERE external_id = ?
	`
	result, err := tx.ExecContext(ctx, query, nullString(invoiceID), time.Now().UTC(), transactionID)
	if err != nil {
		return err
	}
	if err := checkAffected(result); err != nil {
		return fmt.Errorf("bank transaction %s: %w", transactionID, err)
	}
	return nil
}
