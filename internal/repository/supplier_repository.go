package repository

import (
	"context"

	"github.com/sjperalta/obrafin-api/internal/models"
	"gorm.io/gorm"
)

// SupplierRepository is the supplier directory backing store
type SupplierRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Supplier, error)
	Create(ctx context.Context, supplier *models.Supplier) error
	SetBlacklisted(ctx context.Context, id uint, blacklisted bool, reason string) error
	IsBlacklisted(ctx context.Context, id uint) (bool, error)
}

type supplierRepository struct {
	db *gorm.DB
}

// NewSupplierRepository creates a new supplier repository
func NewSupplierRepository(db *gorm.DB) SupplierRepository {
	return &supplierRepository{db: db}
}

func (r *supplierRepository) FindByID(ctx context.Context, id uint) (*models.Supplier, error) {
	var supplier models.Supplier
	if err := conn(ctx, r.db).First(&supplier, id).Error; err != nil {
		return nil, translate(err, "supplier", id)
	}
	return &supplier, nil
}

func (r *supplierRepository) Create(ctx context.Context, supplier *models.Supplier) error {
	return conn(ctx, r.db).Create(supplier).Error
}

func (r *supplierRepository) SetBlacklisted(ctx context.Context, id uint, blacklisted bool, reason string) error {
	result := conn(ctx, r.db).Model(&models.Supplier{}).Where("id = ?", id).
		Updates(map[string]interface{}{"is_blacklisted": blacklisted, "blacklist_reason": reason})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "supplier", id)
	}
	return nil
}

// IsBlacklisted reports the supplier's blacklist flag. Unknown suppliers are
// a NotFound error rather than "not blacklisted".
func (r *supplierRepository) IsBlacklisted(ctx context.Context, id uint) (bool, error) {
	supplier, err := r.FindByID(ctx, id)
	if err != nil {
		return false, err
	}
	return supplier.IsBlacklisted, nil
}
