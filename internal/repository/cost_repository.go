package repository

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sjperalta/obrafin-api/internal/models"
	"gorm.io/gorm"
)

// CostRepository defines cost entry data access methods
type CostRepository interface {
	FindByID(ctx context.Context, id uint) (*models.CostEntry, error)
	Create(ctx context.Context, entry *models.CostEntry) error
	Update(ctx context.Context, entry *models.CostEntry) error
	Delete(ctx context.Context, id uint) error
	SumByBudget(ctx context.Context, budgetID uint) (decimal.Decimal, error)
	SumsByBudget(ctx context.Context) (map[uint]decimal.Decimal, error)
	List(ctx context.Context, query *ListQuery) ([]models.CostEntry, int64, error)
	AmountRows(ctx context.Context, filter models.ReportFilter) ([]models.AmountRow, error)
}

type costRepository struct {
	db *gorm.DB
}

// NewCostRepository creates a new cost entry repository
func NewCostRepository(db *gorm.DB) CostRepository {
	return &costRepository{db: db}
}

func (r *costRepository) FindByID(ctx context.Context, id uint) (*models.CostEntry, error) {
	var entry models.CostEntry
	if err := conn(ctx, r.db).First(&entry, id).Error; err != nil {
		return nil, translate(err, "cost entry", id)
	}
	return &entry, nil
}

func (r *costRepository) Create(ctx context.Context, entry *models.CostEntry) error {
	return conn(ctx, r.db).Create(entry).Error
}

func (r *costRepository) Update(ctx context.Context, entry *models.CostEntry) error {
	return conn(ctx, r.db).Save(entry).Error
}

// Delete soft deletes the entry so it drops out of every live sum.
func (r *costRepository) Delete(ctx context.Context, id uint) error {
	return conn(ctx, r.db).Delete(&models.CostEntry{}, id).Error
}

func (r *costRepository) SumByBudget(ctx context.Context, budgetID uint) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := conn(ctx, r.db).Model(&models.CostEntry{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("budget_id = ?", budgetID).
		Row().Scan(&total)
	return total, err
}

func (r *costRepository) SumsByBudget(ctx context.Context) (map[uint]decimal.Decimal, error) {
	rows, err := conn(ctx, r.db).Model(&models.CostEntry{}).
		Select("budget_id, COALESCE(SUM(amount), 0)").
		Where("budget_id IS NOT NULL").
		Group("budget_id").
		Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sums := make(map[uint]decimal.Decimal)
	for rows.Next() {
		var budgetID uint
		var total decimal.Decimal
		if err := rows.Scan(&budgetID, &total); err != nil {
			return nil, err
		}
		sums[budgetID] = total
	}
	return sums, rows.Err()
}

func (r *costRepository) List(ctx context.Context, query *ListQuery) ([]models.CostEntry, int64, error) {
	var entries []models.CostEntry
	var total int64

	db := conn(ctx, r.db).Model(&models.CostEntry{})
	if v := query.Filters["project_id"]; v != "" {
		db = db.Where("project_id = ?", v)
	}
	if v := query.Filters["budget_id"]; v != "" {
		db = db.Where("budget_id = ?", v)
	}
	if v := query.Filters["type"]; v != "" {
		db = db.Where("type = ?", v)
	}
	if v := query.Filters["supplier_id"]; v != "" {
		db = db.Where("supplier_id = ?", v)
	}

	if err := db.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	allowed := map[string]bool{"date": true, "amount": true, "created_at": true}
	err := paginate(db, query, allowed, "date DESC").Find(&entries).Error
	return entries, total, err
}

func (r *costRepository) AmountRows(ctx context.Context, filter models.ReportFilter) ([]models.AmountRow, error) {
	var entries []models.CostEntry
	db := conn(ctx, r.db).Model(&models.CostEntry{}).Select("type", "amount", "date")
	db = applyReportFilter(db, filter, "date")
	if err := db.Find(&entries).Error; err != nil {
		return nil, err
	}

	rows := make([]models.AmountRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, models.AmountRow{Type: e.Type, Amount: e.Amount, Date: e.Date})
	}
	return rows, nil
}

func applyReportFilter(db *gorm.DB, filter models.ReportFilter, dateColumn string) *gorm.DB {
	if filter.ProjectID != nil {
		db = db.Where("project_id = ?", *filter.ProjectID)
	}
	if filter.From != nil {
		db = db.Where(dateColumn+" >= ?", *filter.From)
	}
	if filter.To != nil {
		db = db.Where(dateColumn+" <= ?", *filter.To)
	}
	return db
}
