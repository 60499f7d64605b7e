package services

import (
	"context"
	"fmt"

	"github.com/sjperalta/obrafin-api/internal/models"
	"github.com/sjperalta/obrafin-api/internal/repository"
	"github.com/sjperalta/obrafin-api/pkg/logger"
)

type AuditService struct {
	repo repository.AuditRepository
}

func NewAuditService(repo repository.AuditRepository) *AuditService {
	return &AuditService{repo: repo}
}

// Log records an audit entry. Called with a transactional context it commits
// or rolls back together with the change it describes.
func (s *AuditService) Log(ctx context.Context, operatorID, action, entity string, entityID uint, details string) error {
	meta := requestMetaFrom(ctx)
	entry := &models.AuditLog{
		OperatorID: operatorID,
		Action:     action,
		Entity:     entity,
		EntityID:   entityID,
		Details:    details,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
		RequestID:  logger.RequestID(ctx),
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// List retrieves audit logs with filters
func (s *AuditService) List(ctx context.Context, query *repository.ListQuery) ([]models.AuditLog, int64, error) {
	return s.repo.List(ctx, query)
}
