package repository

import (
	"context"

	"github.com/sjperalta/obrafin-api/internal/models"
	"gorm.io/gorm"
)

// ApprovalRepository stores the append-only decision logs
type ApprovalRepository interface {
	Append(ctx context.Context, record *models.ApprovalRecord) error
	ListFor(ctx context.Context, entityType string, entityID uint) (models.ApprovalChain, error)
}

type approvalRepository struct {
	db *gorm.DB
}

// NewApprovalRepository creates a new approval repository
func NewApprovalRepository(db *gorm.DB) ApprovalRepository {
	return &approvalRepository{db: db}
}

// Append inserts a record. The unique (entity, sequence) index rejects a
// second writer that computed the same sequence.
func (r *approvalRepository) Append(ctx context.Context, record *models.ApprovalRecord) error {
	return conn(ctx, r.db).Create(record).Error
}

func (r *approvalRepository) ListFor(ctx context.Context, entityType string, entityID uint) (models.ApprovalChain, error) {
	var records []models.ApprovalRecord
	err := conn(ctx, r.db).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("sequence ASC").
		Find(&records).Error
	return models.ApprovalChain(records), err
}
