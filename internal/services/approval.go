package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sjperalta/obrafin-api/internal/apperrors"
	"github.com/sjperalta/obrafin-api/internal/models"
	"github.com/sjperalta/obrafin-api/internal/repository"
	"gorm.io/gorm"
)

// DecisionInput is an approver's verdict on a pending budget or payment.
type DecisionInput struct {
	Decision string `json:"decision" validate:"required,oneof=approved rejected"`
	Comment  string `json:"comment" validate:"max=2000"`
}

// approvalWorkflow appends decisions to the append-only approval log. The
// owner's status always follows the latest record of its chain.
type approvalWorkflow struct {
	approvals repository.ApprovalRepository
}

// decide records the next decision for an entity awaiting one and returns the
// record the owner must now transition on.
func (w approvalWorkflow) decide(ctx context.Context, entityType string, entityID uint, mayDecide bool, status string, input DecisionInput, approver string) (*models.ApprovalRecord, error) {
	if err := requireOperator(approver); err != nil {
		return nil, err
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if !mayDecide {
		return nil, ErrNotPending.WithMessage("%s %d is %s", entityType, entityID, status)
	}

	chain, err := w.approvals.ListFor(ctx, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to load approval history: %w", err)
	}

	record := &models.ApprovalRecord{
		EntityType: entityType,
		EntityID:   entityID,
		Sequence:   chain.NextSequence(),
		Approver:   approver,
		Decision:   input.Decision,
		Comment:    strings.TrimSpace(input.Comment),
		DecidedAt:  time.Now().UTC(),
	}
	if err := w.approvals.Append(ctx, record); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.ErrConcurrencyConflict.WithMessage("%s %d was decided concurrently", entityType, entityID)
		}
		return nil, fmt.Errorf("failed to append approval record: %w", err)
	}

	chain = append(chain, *record)
	return chain.Latest(), nil
}

// history returns the decision log of an entity in sequence order.
func (w approvalWorkflow) history(ctx context.Context, entityType string, entityID uint) (models.ApprovalChain, error) {
	return w.approvals.ListFor(ctx, entityType, entityID)
}
