package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bookkeeping-service/internal/logging"
	"bookkeeping-service/internal/models"
	"bookkeeping-service/internal/repositories"
)

// PlanningService manages budgets and tax obligations, the user-entered
// inputs of the forecast.
type PlanningService struct {
	repo   repositories.PlanningRepository
	logger logging.Logger
}

func NewPlanningService(repo repositories.PlanningRepository, logger logging.Logger) *PlanningService {
	return &PlanningService{
		repo:   repo,
		logger: logger.WithField(logging.FieldComponent, "planning"),
	}
}

type BudgetInput struct {
	Category  string          `json:"category"`
	MonthYear string          `json:"month_year"`
	Amount    decimal.Decimal `json:"amount"`
}

type TaxObligationInput struct {
	TaxType   string          `json:"tax_type"`
	PeriodEnd string          `json:"period_end"`
	DueDate   string          `json:"due_date"`
	Amount    decimal.Decimal `json:"amount"`
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func validateMonthYear(monthYear string) error {
	if _, err := time.Parse(models.MonthYearLayout, monthYear); err != nil {
		return invalid("month_year must use YYYY-MM, got %q", monthYear)
	}
	return nil
}

// UpsertBudget creates or replaces the budget of a category for one month.
func (s *PlanningService) UpsertBudget(ctx context.Context, input BudgetInput) (*models.CashFlowBudget, error) {
	category := strings.TrimSpace(input.Category)
	if category == "" {
		return nil, invalid("category is required")
	}
	if err := validateMonthYear(input.MonthYear); err != nil {
		return nil, err
	}
	if !input.Amount.IsPositive() {
		return nil, invalid("amount must be positive")
	}

	budget := &models.CashFlowBudget{
		Category:       category,
		MonthYear:      input.MonthYear,
		BudgetedAmount: input.Amount,
	}
	if err := s.repo.UpsertBudget(ctx, budget); err != nil {
		return nil, fmt.Errorf("failed to save budget: %w", err)
	}
	s.logger.Info("Budget saved",
		logging.F("category", category),
		logging.F("month_year", input.MonthYear))
	return budget, nil
}

// ListBudgets returns the budgets of one month, or all when monthYear is empty.
func (s *PlanningService) ListBudgets(ctx context.Context, monthYear string) ([]models.CashFlowBudget, error) {
	if monthYear != "" {
		if err := validateMonthYear(monthYear); err != nil {
			return nil, err
		}
	}
	budgets, err := s.repo.Budgets(ctx, monthYear)
	if err != nil {
		return nil, fmt.Errorf("failed to list budgets: %w", err)
	}
	if budgets == nil {
		budgets = []models.CashFlowBudget{}
	}
	return budgets, nil
}

func (s *PlanningService) CreateTaxObligation(ctx context.Context, input TaxObligationInput) (*models.TaxObligation, error) {
	taxType := strings.TrimSpace(input.TaxType)
	if taxType == "" {
		return nil, invalid("tax_type is required")
	}
	due, err := time.Parse(models.DateLayout, input.DueDate)
	if err != nil {
		return nil, invalid("due_date must use YYYY-MM-DD, got %q", input.DueDate)
	}
	periodEnd := due
	if input.PeriodEnd != "" {
		periodEnd, err = time.Parse(models.DateLayout, input.PeriodEnd)
		if err != nil {
			return nil, invalid("period_end must use YYYY-MM-DD, got %q", input.PeriodEnd)
		}
	}
	if !input.Amount.IsPositive() {
		return nil, invalid("amount must be positive")
	}

	obligation := &models.TaxObligation{
		TaxType:   taxType,
		PeriodEnd: periodEnd,
		DueDate:   due,
		Amount:    input.Amount,
		Status:    models.TaxStatusPending,
	}
	if err := s.repo.CreateTaxObligation(ctx, obligation); err != nil {
		return nil, fmt.Errorf("failed to create tax obligation: %w", err)
	}
	s.logger.Info("Tax obligation created",
		logging.F("tax_type", taxType),
		logging.F(logging.FieldDate, input.DueDate))
	return obligation, nil
}

func (s *PlanningService) ListTaxObligations(ctx context.Context, status string) ([]models.TaxObligation, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	switch status {
	case "", models.TaxStatusPending, models.TaxStatusPaid:
	default:
		return nil, invalid("status must be %q or %q", models.TaxStatusPending, models.TaxStatusPaid)
	}
	obligations, err := s.repo.TaxObligations(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list tax obligations: %w", err)
	}
	if obligations == nil {
		obligations = []models.TaxObligation{}
	}
	return obligations, nil
}

// MarkTaxPaid settles an obligation so it no longer enters forecasts.
func (s *PlanningService) MarkTaxPaid(ctx context.Context, id int64) (*models.TaxObligation, error) {
	if err := s.repo.UpdateTaxStatus(ctx, id, models.TaxStatusPaid); err != nil {
		return nil, fmt.Errorf("failed to mark tax obligation %d paid: %w", id, err)
	}
	return s.repo.TaxObligation(ctx, id)
}
