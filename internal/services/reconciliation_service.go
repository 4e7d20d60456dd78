package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"bookkeeping-service/internal/database"
	"bookkeeping-service/internal/lock"
	"bookkeeping-service/internal/logging"
	"bookkeeping-service/internal/matching"
	"bookkeeping-service/internal/models"
)

// Reconciliation status values
const (
	ReconciliationMatched   = "matched"
	ReconciliationUnmatched = "unmatched"
)

type ReconciliationService struct {
	db      *sql.DB
	repos   Repositories
	matcher *matching.Matcher
	locks   lock.Manager
	lockTTL time.Duration
	logger  logging.Logger
	now     func() time.Time
}

func NewReconciliationService(
	db *sql.DB,
	repos Repositories,
	locks lock.Manager,
	lockTTL time.Duration,
	logger logging.Logger,
) *ReconciliationService {
	return &ReconciliationService{
		db:      db,
		repos:   repos,
		matcher: matching.NewMatcher(),
		locks:   locks,
		lockTTL: lockTTL,
		logger:  logger.WithField(logging.FieldComponent, "reconciliation"),
		now:     time.Now,
	}
}

type ReconciliationSummary struct {
	TotalTransactions     int `json:"total_transactions"`
	Matched               int `json:"matched"`
	InvoicesSettled       int `json:"invoices_settled"`
	UnmatchedTransactions int `json:"unmatched_transactions"`
	UnmatchedInvoices     int `json:"unmatched_invoices"`
}

type ReconciliationResult struct {
	RunID                 string                   `json:"run_id"`
	Status                string                   `json:"status"`
	Matches               []matching.Match         `json:"matches"`
	UnmatchedTransactions []models.BankTransaction `json:"unmatched_transactions"`
	UnmatchedInvoices     []models.Invoice         `json:"unmatched_invoices"`
	Summary               ReconciliationSummary    `json:"summary"`
}

type UnmatchedRecords struct {
	Transactions []models.BankTransaction `json:"transactions"`
	Invoices     []models.Invoice         `json:"invoices"`
}

func validateRange(from, to time.Time) error {
	if to.Before(from) {
		return fmt.Errorf("%w: to_date %s is before from_date %s", ErrInvalidInput,
			to.Format(models.DateLayout), from.Format(models.DateLayout))
	}
	return nil
}

// Reconcile matches unreconciled bank lines in [from, to] against every open
// invoice, settles the matched invoices and links the bank lines to them in
// one transaction. Concurrent runs over the same range get lock.ErrLocked.
func (s *ReconciliationService) Reconcile(ctx context.Context, from, to time.Time) (*ReconciliationResult, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}

	resource := fmt.Sprintf("reconciliation:%s_%s", from.Format(models.DateLayout), to.Format(models.DateLayout))
	lease, err := s.locks.Acquire(ctx, resource, s.lockTTL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := s.locks.Release(context.WithoutCancel(ctx), lease); err != nil {
			s.logger.WithError(err).Warn("Failed to release reconciliation lock",
				logging.F(logging.FieldResource, resource))
		}
	}()

	run := &models.Run{
		RunID:     uuid.NewString(),
		Kind:      models.RunKindReconciliation,
		Status:    models.RunStatusRunning,
		StartedAt: s.now().UTC(),
	}
	logger := s.logger.WithField(logging.FieldRunID, run.RunID)
	if err := s.repos.Runs.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create reconciliation run: %w", err)
	}

	result, err := s.reconcile(ctx, run.RunID, from, to)
	if err != nil {
		s.finish(ctx, logger, run.RunID, models.RunStatusFailed, map[string]string{"error": err.Error()})
		logger.WithError(err).Error("Reconciliation failed")
		return nil, err
	}

	s.finish(ctx, logger, run.RunID, models.RunStatusSucceeded, result.Summary)
	logger.Info("Reconciliation completed",
		logging.F("matched", result.Summary.Matched),
		logging.F("unmatched_transactions", result.Summary.UnmatchedTransactions))
	return result, nil
}

func (s *ReconciliationService) reconcile(ctx context.Context, runID string, from, to time.Time) (*ReconciliationResult, error) {
	txns, err := s.repos.Bank.UnreconciledTransactions(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to get unreconciled bank transactions: %w", err)
	}
	invoices, err := s.repos.Invoices.Unsettled(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get open invoices: %w", err)
	}

	matches := s.matcher.Match(txns, invoices)

	matchedTxns := make(map[string]bool)
	settled := make(map[string]bool)
	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, m := range matches {
			ids := make([]string, 0, len(m.Invoices))
			for _, inv := range m.Invoices {
				if err := s.repos.Invoices.MarkPaid(ctx, tx, inv.ExternalID, m.BankTransaction.TransactionDate); err != nil {
					return err
				}
				ids = append(ids, inv.ExternalID)
				settled[inv.ExternalID] = true
			}
			if err := s.repos.Bank.MarkReconciled(ctx, tx, m.BankTransaction.ExternalID, strings.Join(ids, ",")); err != nil {
				return err
			}
			matchedTxns[m.BankTransaction.ExternalID] = true
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record matches: %w", err)
	}

	if len(matches) > 0 {
		if _, err := relearnPatterns(ctx, s.db, s.repos); err != nil {
			s.logger.WithError(err).Warn("Failed to relearn payment patterns")
		}
	}

	result := &ReconciliationResult{
		RunID:                 runID,
		Status:                ReconciliationMatched,
		Matches:               matches,
		UnmatchedTransactions: []models.BankTransaction{},
		UnmatchedInvoices:     []models.Invoice{},
	}
	if result.Matches == nil {
		result.Matches = []matching.Match{}
	}
	for _, bt := range txns {
		if !matchedTxns[bt.ExternalID] {
			result.UnmatchedTransactions = append(result.UnmatchedTransactions, bt)
		}
	}
	for _, inv := range invoices {
		if !settled[inv.ExternalID] && inRange(inv.DueDate, from, to) {
			result.UnmatchedInvoices = append(result.UnmatchedInvoices, inv)
		}
	}
	if len(result.UnmatchedTransactions) > 0 || len(result.UnmatchedInvoices) > 0 {
		result.Status = ReconciliationUnmatched
	}

	result.Summary = ReconciliationSummary{
		TotalTransactions:     len(txns),
		Matched:               len(matches),
		InvoicesSettled:       len(settled),
		UnmatchedTransactions: len(result.UnmatchedTransactions),
		UnmatchedInvoices:     len(result.UnmatchedInvoices),
	}
	return result, nil
}

func (s *ReconciliationService) finish(ctx context.Context, logger logging.Logger, runID, status string, details interface{}) {
	data, err := json.Marshal(details)
	if err != nil {
		logger.WithError(err).Warn("Failed to encode run details")
		data = nil
	}
	if err := s.repos.Runs.FinishRun(ctx, runID, status, data); err != nil {
		logger.WithError(err).Warn("Failed to record reconciliation outcome",
			logging.F(logging.FieldStatus, status))
	}
}

// Unmatched lists unreconciled bank lines dated in [from, to] and open
// invoices due in the same range.
func (s *ReconciliationService) Unmatched(ctx context.Context, from, to time.Time) (*UnmatchedRecords, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	txns, err := s.repos.Bank.UnreconciledTransactions(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to get unreconciled bank transactions: %w", err)
	}
	invoices, err := s.repos.Invoices.Unsettled(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get open invoices: %w", err)
	}

	records := &UnmatchedRecords{
		Transactions: []models.BankTransaction{},
		Invoices:     []models.Invoice{},
	}
	records.Transactions = append(records.Transactions, txns...)
	for _, inv := range invoices {
		if inRange(inv.DueDate, from, to) {
			records.Invoices = append(records.Invoices, inv)
		}
	}
	return records, nil
}

func inRange(t, from, to time.Time) bool {
	d := today(t)
	return !d.Before(today(from)) && !d.After(today(to))
}
