package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"bookkeeping-service/internal/models"
)

// PlanningRepository stores user-entered budgets and tax obligations.
type PlanningRepository interface {
	UpsertBudget(ctx context.Context, budget *models.CashFlowBudget) error
	Budgets(ctx context.Context, monthYear string) ([]models.CashFlowBudget, error)
	BudgetsBetween(ctx context.Context, fromMonth, toMonth string) ([]models.CashFlowBudget, error)
	CreateTaxObligation(ctx context.Context, obligation *models.TaxObligation) error
	TaxObligation(ctx context.Context, id int64) (*models.TaxObligation, error)
	TaxObligations(ctx context.Context, status string) ([]models.TaxObligation, error)
	UpdateTaxStatus(ctx context.Context, id int64, status string) error
}

type planningRepository struct {
	db *sql.DB
}

func NewPlanningRepository(db *sql.DB) PlanningRepository {
	return &planningRepository{db: db}
}

func (r *planningRepository) UpsertBudget(ctx context.Context, budget *models.CashFlowBudget) error {
	query := `
		INSERT INTO cash_flow_budgets (
			category, month_year, budgeted_amount, updated_at
		) VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			id = LAST_INSERT_ID(id),
			budgeted_amount = VALUES(budgeted_amount),
			updated_at = VALUES(updated_at)
	`
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, query,
		budget.Category,
		budget.MonthYear,
		budget.BudgetedAmount,
		now,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	budget.ID = id
	budget.UpdatedAt = now
	return nil
}

// Budgets lists budgets for one month, or every budget when monthYear is empty.
func (r *planningRepository) Budgets(ctx context.Context, monthYear string) ([]models.CashFlowBudget, error) {
	if monthYear == "" {
		return r.queryBudgets(ctx, `
			SELECT id, category, month_year, budgeted_amount, updated_at
			FROM cash_flow_budgets
			ORDER BY month_year, category
		`)
	}
	return r.queryBudgets(ctx, `
		SELECT id, category, month_year, budgeted_amount, updated_at
		FROM cash_flow_budgets
		WHERE month_year = ?
		ORDER BY category
	`, monthYear)
}

// BudgetsBetween returns budgets whose month lies in [fromMonth, toMonth].
// Months use the YYYY-MM layout, which sorts lexically.
func (r *planningRepository) BudgetsBetween(ctx context.Context, fromMonth, toMonth string) ([]models.CashFlowBudget, error) {
	return r.queryBudgets(ctx, `
		SELECT id, category, month_year, budgeted_amount, updated_at
		FROM cash_flow_budgets
		WHERE month_year BETWEEN ? AND ?
		ORDER BY month_year, category
	`, fromMonth, toMonth)
}

func (r *planningRepository) queryBudgets(ctx context.Context, query string, args ...interface{}) ([]models.CashFlowBudget, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var budgets []models.CashFlowBudget
	for rows.Next() {
		var b models.CashFlowBudget
		if err := rows.Scan(&b.ID, &b.Category, &b.MonthYear, &b.BudgetedAmount, &b.UpdatedAt); err != nil {
			return nil, err
		}
		budgets = append(budgets, b)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return budgets, nil
}

func (r *planningRepository) CreateTaxObligation(ctx context.Context, obligation *models.TaxObligation) error {
	query := `
		INSERT INTO tax_obligations (
			tax_type, period_end, due_date, amount, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, query,
		obligation.TaxType,
		obligation.PeriodEnd,
		obligation.DueDate,
		obligation.Amount,
		obligation.Status,
		now,
		now,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	obligation.ID = id
	obligation.CreatedAt = now
	obligation.UpdatedAt = now
	return nil
}

func (r *planningRepository) TaxObligation(ctx context.Context, id int64) (*models.TaxObligation, error) {
	t := &models.TaxObligation{}
	query := `
		SELECT id, tax_type, period_end, due_date, amount, status, created_at, updated_at
		FROM tax_obligations
		WHERE id = ?
	`
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&t.ID,
		&t.TaxType,
		&t.PeriodEnd,
		&t.DueDate,
		&t.Amount,
		&t.Status,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// TaxObligations lists obligations with the given status, or all when status is empty.
func (r *planningRepository) TaxObligations(ctx context.Context, status string) ([]models.TaxObligation, error) {
	query := `
		SELECT id, tax_type, period_end, due_date, amount, status, created_at, updated_at
		FROM tax_obligations
	`
	var args []interface{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY due_date, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var obligations []models.TaxObligation
	for rows.Next() {
		var t models.TaxObligation
		err := rows.Scan(
			&t.ID,
			&t.TaxType,
			&t.PeriodEnd,
			&t.DueDate,
			&t.Amount,
			&t.Status,
			&t.CreatedAt,
			&t.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		obligations = append(obligations, t)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return obligations, nil
}

func (r *planningRepository) UpdateTaxStatus(ctx context.Context, id int64, status string) error {
	query := `
		UPDATE tax_obligations
		SET status = ?,
			updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return checkAffected(result)
}
