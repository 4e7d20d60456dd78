package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"bookkeeping-service/internal/database"
	"bookkeeping-service/internal/forecast"
	"bookkeeping-service/internal/logging"
	"bookkeeping-service/internal/metrics"
	"bookkeeping-service/internal/models"
	"bookkeeping-service/internal/notify"
	"bookkeeping-service/internal/repositories"
)

// ForecastService loads the snapshot a projection needs, runs the engine and
// persists the projected days.
type ForecastService struct {
	db        *sql.DB
	repos     Repositories
	engine    *forecast.Engine
	publisher notify.Publisher
	metrics   *metrics.Metrics
	logger    logging.Logger
	now       func() time.Time
}

func NewForecastService(
	db *sql.DB,
	repos Repositories,
	engine *forecast.Engine,
	publisher notify.Publisher,
	m *metrics.Metrics,
	logger logging.Logger,
) *ForecastService {
	return &ForecastService{
		db:        db,
		repos:     repos,
		engine:    engine,
		publisher: publisher,
		metrics:   m,
		logger:    logger.WithField(logging.FieldComponent, "forecast"),
		now:       time.Now,
	}
}

// GenerateForecast projects days calendar days starting today. Any snapshot
// load failure fails the run. A persistence failure still returns the result,
// together with an error wrapping ErrForecastNotPersisted.
func (s *ForecastService) GenerateForecast(ctx context.Context, days int, scenarios bool) (*forecast.Result, error) {
	if err := forecast.ValidateHorizon(days); err != nil {
		return nil, err
	}

	started := time.Now()
	start := today(s.now())
	logger := s.logger.WithFields(
		logging.F(logging.FieldOperation, "generate_forecast"),
		logging.F(logging.FieldDays, days),
		logging.F(logging.FieldDate, start.Format(models.DateLayout)),
	)

	in, err := s.loadSnapshot(ctx, start, days)
	if err != nil {
		s.metrics.RecordForecast(metrics.OutcomeFailure, time.Since(started), 0)
		logger.WithError(err).Error("Failed to load forecast inputs")
		return nil, fmt.Errorf("failed to load forecast inputs: %w", err)
	}

	result, err := s.engine.Project(in, forecast.Options{Scenarios: scenarios})
	if err != nil {
		s.metrics.RecordForecast(metrics.OutcomeFailure, time.Since(started), 0)
		return nil, err
	}

	var persistErr error
	if err := s.persist(ctx, result); err != nil {
		s.metrics.ForecastPersistFailures.Inc()
		logger.WithError(err).Error("Failed to persist forecast")
		persistErr = fmt.Errorf("%w: %v", ErrForecastNotPersisted, err)
	}

	critical := notify.CriticalAlerts(result)
	if err := s.publisher.PublishAlerts(ctx, critical); err != nil {
		logger.WithError(err).Warn("Failed to publish critical alerts",
			logging.F(logging.FieldCount, len(critical)))
	}

	duration := time.Since(started)
	s.metrics.RecordForecast(metrics.OutcomeSuccess, duration, len(critical))
	logger.Info("Forecast generated",
		logging.F(logging.FieldDuration, duration.Milliseconds()),
		logging.F("lowest_balance", result.Summary.LowestBalance.String()),
		logging.F("critical_alerts", len(critical)))

	return result, persistErr
}

// loadSnapshot runs the six independent loads concurrently.
func (s *ForecastService) loadSnapshot(ctx context.Context, start time.Time, days int) (forecast.Input, error) {
	end := start.AddDate(0, 0, days)
	in := forecast.Input{Start: start, Days: days}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		accounts, err := s.repos.Bank.ActiveAccounts(gctx)
		if err != nil {
			return fmt.Errorf("bank accounts: %w", err)
		}
		in.Position = forecast.CashPosition(accounts)
		return nil
	})
	g.Go(func() error {
		invoices, err := s.repos.Invoices.UnsettledDueBefore(gctx, end)
		if err != nil {
			return fmt.Errorf("invoices: %w", err)
		}
		in.Invoices = invoices
		return nil
	})
	g.Go(func() error {
		patterns, err := s.repos.Patterns.Patterns(gctx)
		if err != nil {
			return fmt.Errorf("payment patterns: %w", err)
		}
		in.Patterns = patterns
		return nil
	})
	g.Go(func() error {
		templates, err := s.repos.Recurring.ActiveTemplates(gctx)
		if err != nil {
			return fmt.Errorf("repeating transactions: %w", err)
		}
		in.Recurring = templates
		return nil
	})
	g.Go(func() error {
		last := end.AddDate(0, 0, -1)
		budgets, err := s.repos.Planning.BudgetsBetween(gctx,
			start.Format(models.MonthYearLayout), last.Format(models.MonthYearLayout))
		if err != nil {
			return fmt.Errorf("budgets: %w", err)
		}
		in.Budgets = budgets
		return nil
	})
	g.Go(func() error {
		taxes, err := s.repos.Planning.TaxObligations(gctx, models.TaxStatusPending)
		if err != nil {
			return fmt.Errorf("tax obligations: %w", err)
		}
		in.Taxes = taxes
		return nil
	})

	if err := g.Wait(); err != nil {
		return forecast.Input{}, err
	}
	return in, nil
}

func (s *ForecastService) persist(ctx context.Context, result *forecast.Result) error {
	rows, err := rowsFromResult(result, s.now().UTC())
	if err != nil {
		return err
	}
	return database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return s.repos.Forecasts.SaveDays(ctx, tx, rows)
	})
}

// StoredForecast returns previously persisted days in [from, from+days). It
// fails with repositories.ErrNotFound when nothing is stored for the range.
func (s *ForecastService) StoredForecast(ctx context.Context, from time.Time, days int) (*forecast.Result, error) {
	if err := forecast.ValidateHorizon(days); err != nil {
		return nil, err
	}
	rows, err := s.storedRows(ctx, today(from), days)
	if err != nil {
		return nil, err
	}
	return resultFromRows(rows)
}

func (s *ForecastService) storedRows(ctx context.Context, from time.Time, days int) ([]models.ForecastRow, error) {
	rows, err := s.repos.Forecasts.Range(ctx, from, days)
	if err != nil {
		return nil, fmt.Errorf("failed to load stored forecast: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no stored forecast from %s: %w", from.Format(models.DateLayout), repositories.ErrNotFound)
	}
	return rows, nil
}

func resultFromRows(rows []models.ForecastRow) (*forecast.Result, error) {
	forecastDays, err := daysFromRows(rows)
	if err != nil {
		return nil, err
	}
	return &forecast.Result{Forecast: forecastDays, Summary: forecast.Summarize(forecastDays)}, nil
}

// Forecast serves a stored horizon when one run generated today covers it and
// regenerate is not requested, and generates a fresh one otherwise.
func (s *ForecastService) Forecast(ctx context.Context, days int, scenarios, regenerate bool) (*forecast.Result, error) {
	if err := forecast.ValidateHorizon(days); err != nil {
		return nil, err
	}
	if regenerate {
		return s.GenerateForecast(ctx, days, scenarios)
	}

	logger := s.logger.WithField(logging.FieldDays, days)
	start := today(s.now())
	rows, err := s.storedRows(ctx, start, days)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		logger.Debug("No stored forecast, generating")
	case err != nil:
		logger.WithError(err).Warn("Stored forecast unavailable, regenerating")
	case !servable(rows, start, days, scenarios):
		logger.Debug("Stored forecast is partial or stale, regenerating")
	default:
		stored, err := resultFromRows(rows)
		if err == nil {
			logger.Debug("Serving stored forecast")
			return stored, nil
		}
		logger.WithError(err).Warn("Stored forecast unreadable, regenerating")
	}
	return s.GenerateForecast(ctx, days, scenarios)
}

// servable reports whether rows hold one complete run generated on start.
// Date-keyed upserts can leave a longer earlier run behind a shorter one, so
// the rows must share generated_at and each day must open at the previous close.
func servable(rows []models.ForecastRow, start time.Time, days int, scenarios bool) bool {
	if len(rows) != days {
		return false
	}
	generatedAt := rows[0].GeneratedAt
	if !today(generatedAt).Equal(start) {
		return false
	}
	for i, row := range rows {
		if !today(row.ForecastDate).Equal(start.AddDate(0, 0, i)) || !row.GeneratedAt.Equal(generatedAt) {
			return false
		}
		if i > 0 && !row.OpeningBalance.Equal(rows[i-1].ClosingBalance) {
			return false
		}
		if scenarios && !(row.BestCase.Valid && row.WorstCase.Valid) {
			return false
		}
	}
	return true
}

// IsNotPersisted reports whether err only signals a persistence failure.
func IsNotPersisted(err error) bool {
	return errors.Is(err, ErrForecastNotPersisted)
}
