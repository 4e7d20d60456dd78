package services

import (
	"database/sql"
	"errors"
	"time"

	"bookkeeping-service/internal/repositories"
)

var (
	// ErrForecastNotPersisted accompanies a computed forecast whose rows could
	// not be saved. The result returned alongside it is complete.
	ErrForecastNotPersisted = errors.New("forecast computed but not persisted")

	// ErrInvalidInput is wrapped by every request validation failure.
	ErrInvalidInput = errors.New("invalid input")
)

// Repositories bundles the data access objects shared by the services.
type Repositories struct {
	Bank      repositories.BankRepository
	Invoices  repositories.InvoiceRepository
	Recurring repositories.RecurringRepository
	Patterns  repositories.PatternRepository
	Planning  repositories.PlanningRepository
	Forecasts repositories.ForecastRepository
	Runs      repositories.RunRepository
}

func NewRepositories(db *sql.DB) Repositories {
	return Repositories{
		Bank:      repositories.NewBankRepository(db),
		Invoices:  repositories.NewInvoiceRepository(db),
		Recurring: repositories.NewRecurringRepository(db),
		Patterns:  repositories.NewPatternRepository(db),
		Planning:  repositories.NewPlanningRepository(db),
		Forecasts: repositories.NewForecastRepository(db),
		Runs:      repositories.NewRunRepository(db),
	}
}

func today(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
