package repository

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sjperalta/obrafin-api/internal/apperrors"
	"github.com/sjperalta/obrafin-api/internal/models"
	"gorm.io/gorm"
)

// BudgetRepository defines budget data access methods
type BudgetRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Budget, error)
	ExistsCode(ctx context.Context, code string) (bool, error)
	Create(ctx context.Context, budget *models.Budget) error
	Update(ctx context.Context, budget *models.Budget) error
	ReplaceItems(ctx context.Context, budgetID uint, items []models.BudgetItem) error
	ChargeUsage(ctx context.Context, id uint, delta decimal.Decimal) (bool, error)
	AdjustUsage(ctx context.Context, id uint, delta decimal.Decimal, expectedVersion int64) (bool, error)
	List(ctx context.Context, query *ListQuery) ([]models.Budget, int64, error)
	FindApproved(ctx context.Context, projectID *uint) ([]models.Budget, error)
}

type budgetRepository struct {
	db *gorm.DB
}

// NewBudgetRepository creates a new budget repository
func NewBudgetRepository(db *gorm.DB) BudgetRepository {
	return &budgetRepository{db: db}
}

func (r *budgetRepository) FindByID(ctx context.Context, id uint) (*models.Budget, error) {
	var budget models.Budget
	err := conn(ctx, r.db).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&budget, id).Error
	if err != nil {
		return nil, translate(err, "budget", id)
	}
	return &budget, nil
}

func (r *budgetRepository) ExistsCode(ctx context.Context, code string) (bool, error) {
	var count int64
	err := conn(ctx, r.db).Model(&models.Budget{}).Where("code = ?", code).Count(&count).Error
	return count > 0, err
}

func (r *budgetRepository) Create(ctx context.Context, budget *models.Budget) error {
	if budget.Version == 0 {
		budget.Version = 1
	}
	return conn(ctx, r.db).Create(budget).Error
}

// Update writes the editable columns and the status, guarded by the version
// the caller read. UsedAmount is never written here.
func (r *budgetRepository) Update(ctx context.Context, budget *models.Budget) error {
	result := conn(ctx, r.db).Model(&models.Budget{}).
		Where("id = ? AND version = ?", budget.ID, budget.Version).
		Updates(map[string]interface{}{
			"code":        budget.Code,
			"project_id":  budget.ProjectID,
			"fiscal_year": budget.FiscalYear,
			"type":        budget.Type,
			"currency":    budget.Currency,
			"amount":      budget.Amount,
			"status":      budget.Status,
			"version":     gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrConcurrencyConflict.WithMessage("budget %d was modified concurrently", budget.ID)
	}
	budget.Version++
	return nil
}

func (r *budgetRepository) ReplaceItems(ctx context.Context, budgetID uint, items []models.BudgetItem) error {
	db := conn(ctx, r.db)
	if err := db.Where("budget_id = ?", budgetID).Delete(&models.BudgetItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].ID = 0
		items[i].BudgetID = budgetID
		items[i].Position = i + 1
	}
	return db.Create(&items).Error
}

// ChargeUsage moves used_amount by delta in a single conditional statement.
// It reports false when no row satisfied the guard; the caller classifies why.
func (r *budgetRepository) ChargeUsage(ctx context.Context, id uint, delta decimal.Decimal) (bool, error) {
	query := conn(ctx, r.db).Model(&models.Budget{}).
		Where("id = ? AND status = ?", id, models.BudgetStatusApproved)
	return applyUsage(query, delta)
}

// AdjustUsage is ChargeUsage pinned to the version the caller read, for
// corrections computed from a separate read of the cost entries.
func (r *budgetRepository) AdjustUsage(ctx context.Context, id uint, delta decimal.Decimal, expectedVersion int64) (bool, error) {
	query := conn(ctx, r.db).Model(&models.Budget{}).
		Where("id = ? AND status = ? AND version = ?", id, models.BudgetStatusApproved, expectedVersion)
	return applyUsage(query, delta)
}

// usedAfter is the new used amount rounded to cents. sqlite keeps decimal
// columns as REAL, so the sum is rounded in SQL before it is compared or stored.
const usedAfter = "ROUND(used_amount + ?, 2)"

func applyUsage(query *gorm.DB, delta decimal.Decimal) (bool, error) {
	query = query.Where(usedAfter+" >= 0", delta)
	if delta.IsPositive() {
		query = query.Where(usedAfter+" <= ROUND(amount, 2)", delta)
	}

	result := query.Updates(map[string]interface{}{
		"used_amount": gorm.Expr(usedAfter, delta),
		"version":     gorm.Expr("version + 1"),
	})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *budgetRepository) List(ctx context.Context, query *ListQuery) ([]models.Budget, int64, error) {
	var budgets []models.Budget
	var total int64

	db := conn(ctx, r.db).Model(&models.Budget{})
	if v := query.Filters["status"]; v != "" {
		db = db.Where("status = ?", v)
	}
	if v := query.Filters["project_id"]; v != "" {
		db = db.Where("project_id = ?", v)
	}
	if v := query.Filters["fiscal_year"]; v != "" {
		db = db.Where("fiscal_year = ?", v)
	}
	if v := query.Filters["type"]; v != "" {
		db = db.Where("type = ?", v)
	}

	if err := db.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	allowed := map[string]bool{"code": true, "amount": true, "used_amount": true, "fiscal_year": true, "created_at": true}
	err := paginate(db, query, allowed, "created_at DESC").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Find(&budgets).Error
	return budgets, total, err
}

func (r *budgetRepository) FindApproved(ctx context.Context, projectID *uint) ([]models.Budget, error) {
	var budgets []models.Budget
	db := conn(ctx, r.db).Where("status = ?", models.BudgetStatusApproved)
	if projectID != nil {
		db = db.Where("project_id = ?", *projectID)
	}
	err := db.Order("id ASC").Find(&budgets).Error
	return budgets, err
}
