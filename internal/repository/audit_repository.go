package repository

import (
	"context"

	"github.com/sjperalta/obrafin-api/internal/models"
	"gorm.io/gorm"
)

// AuditRepository persists audit entries
type AuditRepository interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	List(ctx context.Context, query *ListQuery) ([]models.AuditLog, int64, error)
}

type auditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	return conn(ctx, r.db).Create(entry).Error
}

func (r *auditRepository) List(ctx context.Context, query *ListQuery) ([]models.AuditLog, int64, error) {
	var logs []models.AuditLog
	var total int64

	db := conn(ctx, r.db).Model(&models.AuditLog{})
	if v := query.Filters["entity"]; v != "" {
		db = db.Where("entity = ?", v)
	}
	if v := query.Filters["entity_id"]; v != "" {
		db = db.Where("entity_id = ?", v)
	}
	if v := query.Filters["operator_id"]; v != "" {
		db = db.Where("operator_id = ?", v)
	}
	if v := query.Filters["action"]; v != "" {
		db = db.Where("action = ?", v)
	}

	if err := db.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := paginate(db, query, map[string]bool{"created_at": true}, "created_at DESC, id DESC").Find(&logs).Error
	return logs, total, err
}
