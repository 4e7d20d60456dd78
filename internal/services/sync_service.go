package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"bookkeeping-service/internal/cache"
	"bookkeeping-service/internal/config"
	"bookkeeping-service/internal/database"
	"bookkeeping-service/internal/lock"
	"bookkeeping-service/internal/logging"
	"bookkeeping-service/internal/matching"
	"bookkeeping-service/internal/metrics"
	"bookkeeping-service/internal/models"
	"bookkeeping-service/internal/repositories"
)

// LedgerSource is the read side of the external accounting system.
type LedgerSource interface {
	BankAccounts(ctx context.Context) ([]models.BankAccount, error)
	BankTransactions(ctx context.Context, since time.Time) ([]models.BankTransaction, error)
	Invoices(ctx context.Context, since time.Time) ([]models.Invoice, error)
	RepeatingInvoices(ctx context.Context) ([]models.RepeatingTransaction, error)
}

// Record kinds counted by a sync run
const (
	KindBankAccounts     = "bank_accounts"
	KindBankTransactions = "bank_transactions"
	KindInvoices         = "invoices"
	KindRepeating        = "repeating_transactions"
	KindPatterns         = "payment_patterns"
)

type SyncResult struct {
	RunID  string         `json:"run_id"`
	Since  time.Time      `json:"since"`
	Counts map[string]int `json:"counts"`
}

// SyncService copies ledger data into the local store. Runs for the same
// tenant are serialised through the lock manager.
type SyncService struct {
	db       *sql.DB
	repos    Repositories
	ledger   LedgerSource
	locks    lock.Manager
	reports  cache.Cache
	metrics  *metrics.Metrics
	logger   logging.Logger
	tenantID string
	lockTTL  time.Duration
	lookback time.Duration
	now      func() time.Time
}

func NewSyncService(
	db *sql.DB,
	repos Repositories,
	ledger LedgerSource,
	locks lock.Manager,
	reports cache.Cache,
	m *metrics.Metrics,
	logger logging.Logger,
	cfg *config.Config,
) *SyncService {
	return &SyncService{
		db:       db,
		repos:    repos,
		ledger:   ledger,
		locks:    locks,
		reports:  reports,
		metrics:  m,
		logger:   logger.WithField(logging.FieldComponent, "sync"),
		tenantID: cfg.Ledger.TenantID,
		lockTTL:  cfg.Lock.TTL,
		lookback: cfg.Ledger.SyncLookback,
		now:      time.Now,
	}
}

func (s *SyncService) lockResource() string {
	return "sync:" + s.tenantID
}

// Sync fetches accounts, transactions, invoices and repeating templates, and
// upserts them in one transaction. Payment patterns are relearned afterwards
// and cached reports are invalidated. It returns lock.ErrLocked when another
// sync holds the tenant lock.
func (s *SyncService) Sync(ctx context.Context) (*SyncResult, error) {
	lease, err := s.locks.Acquire(ctx, s.lockResource(), s.lockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			s.metrics.RecordSync(metrics.OutcomeLocked, nil)
		}
		return nil, err
	}
	defer func() {
		if err := s.locks.Release(context.WithoutCancel(ctx), lease); err != nil {
			s.logger.WithError(err).Warn("Failed to release sync lock",
				logging.F(logging.FieldResource, lease.Resource))
		}
	}()

	started := s.now().UTC()
	run := &models.Run{
		RunID:     uuid.NewString(),
		Kind:      models.RunKindSync,
		Status:    models.RunStatusRunning,
		StartedAt: started,
	}
	logger := s.logger.WithField(logging.FieldRunID, run.RunID)

	since, err := s.since(ctx, started)
	if err != nil {
		s.metrics.RecordSync(metrics.OutcomeFailure, nil)
		return nil, err
	}
	if err := s.repos.Runs.CreateRun(ctx, run); err != nil {
		s.metrics.RecordSync(metrics.OutcomeFailure, nil)
		return nil, fmt.Errorf("failed to record sync run: %w", err)
	}

	counts, err := s.run(ctx, since)
	if err != nil {
		s.finish(ctx, logger, run.RunID, models.RunStatusFailed, map[string]interface{}{"error": err.Error()})
		s.metrics.RecordSync(metrics.OutcomeFailure, counts)
		logger.WithError(err).Error("Sync failed")
		return nil, err
	}

	if err := s.reports.DeletePrefix(ctx, reportCachePrefix); err != nil {
		logger.WithError(err).Warn("Failed to invalidate report cache")
	}

	s.finish(ctx, logger, run.RunID, models.RunStatusSucceeded, counts)
	s.metrics.RecordSync(metrics.OutcomeSuccess, counts)
	logger.Info("Sync completed",
		logging.F(logging.FieldDuration, time.Since(started).Milliseconds()),
		logging.F("counts", counts))

	return &SyncResult{RunID: run.RunID, Since: since, Counts: counts}, nil
}

// since is the start of the last successful sync, or the configured lookback
// before now when there is none.
func (s *SyncService) since(ctx context.Context, now time.Time) (time.Time, error) {
	last, err := s.repos.Runs.LastSuccessful(ctx, models.RunKindSync)
	if errors.Is(err, repositories.ErrNotFound) {
		return now.Add(-s.lookback), nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to load last sync: %w", err)
	}
	return last.StartedAt, nil
}

func (s *SyncService) run(ctx context.Context, since time.Time) (map[string]int, error) {
	accounts, err := s.ledger.BankAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bank accounts: %w", err)
	}
	txns, err := s.ledger.BankTransactions(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bank transactions: %w", err)
	}
	invoices, err := s.ledger.Invoices(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch invoices: %w", err)
	}
	templates, err := s.ledger.RepeatingInvoices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch repeating invoices: %w", err)
	}

	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.repos.Bank.UpsertAccounts(ctx, tx, accounts); err != nil {
			return err
		}
		if err := s.repos.Bank.UpsertTransactions(ctx, tx, txns); err != nil {
			return err
		}
		if err := s.repos.Invoices.UpsertInvoices(ctx, tx, invoices); err != nil {
			return err
		}
		return s.repos.Recurring.UpsertTemplates(ctx, tx, templates)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store ledger data: %w", err)
	}

	counts := map[string]int{
		KindBankAccounts:     len(accounts),
		KindBankTransactions: len(txns),
		KindInvoices:         len(invoices),
		KindRepeating:        len(templates),
	}

	learned, err := relearnPatterns(ctx, s.db, s.repos)
	if err != nil {
		return counts, err
	}
	counts[KindPatterns] = learned
	return counts, nil
}

func (s *SyncService) finish(ctx context.Context, logger logging.Logger, runID, status string, details interface{}) {
	data, err := json.Marshal(details)
	if err != nil {
		logger.WithError(err).Warn("Failed to encode run details")
		data = nil
	}
	if err := s.repos.Runs.FinishRun(ctx, runID, status, data); err != nil {
		logger.WithError(err).Warn("Failed to record sync run outcome",
			logging.F(logging.FieldStatus, status))
	}
}

// relearnPatterns recomputes payment patterns from every paid invoice and
// returns how many counterparties were updated.
func relearnPatterns(ctx context.Context, db *sql.DB, repos Repositories) (int, error) {
	paid, err := repos.Invoices.Paid(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load paid invoices: %w", err)
	}
	patterns := matching.LearnPatterns(paid)
	if len(patterns) == 0 {
		return 0, nil
	}
	err = database.WithTx(ctx, db, func(tx *sql.Tx) error {
		return repos.Patterns.SavePatterns(ctx, tx, patterns)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to save payment patterns: %w", err)
	}
	return len(patterns), nil
}
