package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sjperalta/obrafin-api/internal/apperrors"
	"github.com/sjperalta/obrafin-api/internal/database"
	"github.com/sjperalta/obrafin-api/internal/models"
	"github.com/sjperalta/obrafin-api/internal/repository"
	"github.com/sjperalta/obrafin-api/pkg/logger"
)

const costAttachmentFolder = "costs"

// RecordCostInput is the payload for a new cost entry.
type RecordCostInput struct {
	ProjectID   uint            `json:"project_id" validate:"required"`
	BudgetID    *uint           `json:"budget_id" validate:"omitempty,gt=0"`
	Type        string          `json:"type" validate:"required,oneof=material equipment labor other"`
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
	Date        time.Time       `json:"date"`
	Item        string          `json:"item" validate:"max=200"`
	Description string          `json:"description"`
	SupplierID  *uint           `json:"supplier_id" validate:"omitempty,gt=0"`
}

// UpdateCostInput changes a cost entry. Nil fields are left untouched;
// UnlinkBudget detaches the entry from its budget.
type UpdateCostInput struct {
	Amount       *decimal.Decimal `json:"amount" validate:"omitempty,gt=0"`
	BudgetID     *uint            `json:"budget_id" validate:"omitempty,gt=0"`
	UnlinkBudget bool             `json:"unlink_budget"`
	Type         *string          `json:"type" validate:"omitempty,oneof=material equipment labor other"`
	Date         *time.Time       `json:"date"`
	Item         *string          `json:"item" validate:"omitempty,max=200"`
	Description  *string          `json:"description"`
	SupplierID   *uint            `json:"supplier_id" validate:"omitempty,gt=0"`
}

// BalanceService keeps every budget's used amount equal to the sum of the
// live cost entries charged against it.
type BalanceService struct {
	budgets    repository.BudgetRepository
	costs      repository.CostRepository
	tx         database.TransactionManager
	audit      *AuditService
	blobs      BlobStore
	async      AsyncRunner
	maxRetries int
}

func NewBalanceService(
	budgets repository.BudgetRepository,
	costs repository.CostRepository,
	tx database.TransactionManager,
	audit *AuditService,
	blobs BlobStore,
	async AsyncRunner,
	maxRetries int,
) *BalanceService {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &BalanceService{
		budgets:    budgets,
		costs:      costs,
		tx:         tx,
		audit:      audit,
		blobs:      blobs,
		async:      async,
		maxRetries: maxRetries,
	}
}

// ChargeBudget moves the budget's used amount by delta. A negative delta is a
// reversal and skips the ceiling check. The update is a single conditional
// statement; when it matches no row the budget is re-read to find out why.
func (s *BalanceService) ChargeBudget(ctx context.Context, budgetID uint, delta decimal.Decimal) (*models.Budget, error) {
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		applied, err := s.budgets.ChargeUsage(ctx, budgetID, delta)
		if err != nil {
			return nil, fmt.Errorf("failed to charge budget %d: %w", budgetID, err)
		}

		budget, err := s.budgets.FindByID(ctx, budgetID)
		if err != nil {
			return nil, err
		}
		if applied {
			return budget, nil
		}

		if err := classifyCharge(budget, delta); err != nil {
			if errors.Is(err, apperrors.ErrInvariantViolation) {
				reportInvariant(ctx, err)
			}
			return nil, err
		}

		logger.WithContext(ctx).Warn("budget changed during charge, retrying",
			"budget_id", budgetID,
			"delta", delta.String(),
			"attempt", attempt,
		)
	}

	return nil, apperrors.ErrConcurrencyConflict.WithMessage(
		"budget %d: charge of %s not applied after %d attempts", budgetID, delta.StringFixed(2), s.maxRetries)
}

// classifyCharge explains a rejected charge from a fresh snapshot. A nil
// result means the snapshot would accept the charge, so the row moved.
func classifyCharge(budget *models.Budget, delta decimal.Decimal) error {
	if !budget.MayConsume() {
		return ErrBudgetNotApproved.WithMessage("budget %s is %s", budget.Code, budget.Status)
	}
	next := budget.UsedAmount.Add(delta)
	if next.IsNegative() {
		return apperrors.ErrInvariantViolation.WithMessage(
			"budget %s: used amount %s cannot absorb reversal of %s",
			budget.Code, budget.UsedAmount.StringFixed(2), delta.Neg().StringFixed(2))
	}
	if delta.IsPositive() && next.GreaterThan(budget.Amount) {
		return ErrBudgetExceeded.WithMessage("budget %s: requested %s, remaining %s",
			budget.Code, delta.StringFixed(2), budget.Remaining().StringFixed(2))
	}
	return nil
}

// RecordCost persists a cost entry, charging its budget first when linked.
func (s *BalanceService) RecordCost(ctx context.Context, input RecordCostInput, operatorID string) (*models.CostEntry, error) {
	if err := requireOperator(operatorID); err != nil {
		return nil, err
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if err := requireCents("amount", input.Amount); err != nil {
		return nil, err
	}

	date := input.Date
	if date.IsZero() {
		date = time.Now()
	}
	entry := &models.CostEntry{
		Code:        newCode("CST", time.Now()),
		ProjectID:   input.ProjectID,
		BudgetID:    input.BudgetID,
		Type:        input.Type,
		Amount:      input.Amount,
		Date:        date.UTC(),
		Item:        input.Item,
		Description: input.Description,
		SupplierID:  input.SupplierID,
		CreatedBy:   operatorID,
	}

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if entry.BudgetID != nil {
			if err := s.checkBudgetProject(txCtx, *entry.BudgetID, entry.ProjectID); err != nil {
				return err
			}
			if _, err := s.ChargeBudget(txCtx, *entry.BudgetID, entry.Amount); err != nil {
				return err
			}
		}
		if err := s.costs.Create(txCtx, entry); err != nil {
			return fmt.Errorf("failed to create cost entry: %w", err)
		}
		return s.audit.Log(txCtx, operatorID, models.AuditCreate, "cost_entry", entry.ID,
			fmt.Sprintf("Recorded cost %s of %s", entry.Code, entry.Amount.StringFixed(2)))
	})
	if err != nil {
		return nil, err
	}

	logger.WithContext(ctx).Info("cost recorded", "cost_id", entry.ID, "code", entry.Code, "amount", entry.Amount.String())
	return entry, nil
}

// checkBudgetProject refuses to charge a project budget with another project's cost.
func (s *BalanceService) checkBudgetProject(ctx context.Context, budgetID, projectID uint) error {
	budget, err := s.budgets.FindByID(ctx, budgetID)
	if err != nil {
		return err
	}
	if budget.Type == models.BudgetTypeProject && budget.ProjectID != projectID {
		return apperrors.Validation("budget %s belongs to project %d", budget.Code, budget.ProjectID)
	}
	return nil
}

// UpdateCost applies changes to a cost entry. While the budget link stays the
// same the budget moves by a single delta; a relink reverses the old budget
// and charges the new one inside the same transaction.
func (s *BalanceService) UpdateCost(ctx context.Context, id uint, input UpdateCostInput, operatorID string) (*models.CostEntry, error) {
	if err := requireOperator(operatorID); err != nil {
		return nil, err
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if input.Amount != nil {
		if err := requireCents("amount", *input.Amount); err != nil {
			return nil, err
		}
	}
	if input.UnlinkBudget && input.BudgetID != nil {
		return nil, apperrors.Validation("budget_id and unlink_budget are mutually exclusive")
	}

	var entry *models.CostEntry
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		entry, err = s.costs.FindByID(txCtx, id)
		if err != nil {
			return err
		}

		oldBudget, oldAmount := entry.BudgetID, entry.Amount
		newBudget, newAmount := oldBudget, oldAmount
		if input.Amount != nil {
			newAmount = *input.Amount
		}
		if input.UnlinkBudget {
			newBudget = nil
		} else if input.BudgetID != nil {
			newBudget = input.BudgetID
		}

		if err := s.rebalance(txCtx, entry.ProjectID, oldBudget, oldAmount, newBudget, newAmount); err != nil {
			return err
		}

		entry.BudgetID = newBudget
		entry.Amount = newAmount
		applyCostFields(entry, input)

		if err := s.costs.Update(txCtx, entry); err != nil {
			return fmt.Errorf("failed to update cost entry: %w", err)
		}
		return s.audit.Log(txCtx, operatorID, models.AuditUpdate, "cost_entry", entry.ID,
			fmt.Sprintf("Updated cost %s: amount %s -> %s", entry.Code, oldAmount.StringFixed(2), newAmount.StringFixed(2)))
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *BalanceService) rebalance(ctx context.Context, projectID uint, oldBudget *uint, oldAmount decimal.Decimal, newBudget *uint, newAmount decimal.Decimal) error {
	sameBudget := oldBudget != nil && newBudget != nil && *oldBudget == *newBudget
	if sameBudget {
		delta := newAmount.Sub(oldAmount)
		if delta.IsZero() {
			return nil
		}
		_, err := s.ChargeBudget(ctx, *newBudget, delta)
		return err
	}

	if oldBudget != nil {
		if _, err := s.ChargeBudget(ctx, *oldBudget, oldAmount.Neg()); err != nil {
			return err
		}
	}
	if newBudget != nil {
		if err := s.checkBudgetProject(ctx, *newBudget, projectID); err != nil {
			return err
		}
		if _, err := s.ChargeBudget(ctx, *newBudget, newAmount); err != nil {
			return err
		}
	}
	return nil
}

func applyCostFields(entry *models.CostEntry, input UpdateCostInput) {
	if input.Type != nil {
		entry.Type = *input.Type
	}
	if input.Date != nil {
		entry.Date = input.Date.UTC()
	}
	if input.Item != nil {
		entry.Item = *input.Item
	}
	if input.Description != nil {
		entry.Description = *input.Description
	}
	if input.SupplierID != nil {
		entry.SupplierID = input.SupplierID
	}
}

// DeleteCost reverses the entry's charge and soft deletes it.
func (s *BalanceService) DeleteCost(ctx context.Context, id uint, operatorID string) error {
	if err := requireOperator(operatorID); err != nil {
		return err
	}

	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		entry, err := s.costs.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		if entry.BudgetID != nil {
			if _, err := s.ChargeBudget(txCtx, *entry.BudgetID, entry.Amount.Neg()); err != nil {
				return err
			}
		}
		if err := s.costs.Delete(txCtx, entry.ID); err != nil {
			return fmt.Errorf("failed to delete cost entry: %w", err)
		}
		return s.audit.Log(txCtx, operatorID, models.AuditDelete, "cost_entry", entry.ID,
			fmt.Sprintf("Deleted cost %s of %s", entry.Code, entry.Amount.StringFixed(2)))
	})
}

// AttachCostFile stores a receipt for the entry. A replaced file is removed
// in the background.
func (s *BalanceService) AttachCostFile(ctx context.Context, id uint, data []byte, contentType, operatorID string) (*models.CostEntry, error) {
	if err := requireOperator(operatorID); err != nil {
		return nil, err
	}
	if _, err := s.costs.FindByID(ctx, id); err != nil {
		return nil, err
	}

	ref, err := s.blobs.Store(ctx, data, contentType, costAttachmentFolder)
	if err != nil {
		return nil, storeError(err)
	}

	var entry *models.CostEntry
	var previous string
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		entry, err = s.costs.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		if entry.AttachmentKey != nil {
			previous = *entry.AttachmentKey
		}
		entry.AttachmentKey = &ref.Key
		entry.AttachmentURL = &ref.URL
		if err := s.costs.Update(txCtx, entry); err != nil {
			return fmt.Errorf("failed to link attachment: %w", err)
		}
		return s.audit.Log(txCtx, operatorID, models.AuditAttach, "cost_entry", entry.ID,
			fmt.Sprintf("Attached %s to cost %s", ref.Key, entry.Code))
	})
	if err != nil {
		deleteBlobLater(s.async, s.blobs, ref.Key)
		return nil, err
	}

	deleteBlobLater(s.async, s.blobs, previous)
	return entry, nil
}

// ReconcileBudgets compares every approved budget with the sum of its live
// cost entries. With fix, drifted budgets are moved onto the live sum, pinned
// to the version that was read so a concurrent charge is never overwritten.
func (s *BalanceService) ReconcileBudgets(ctx context.Context, fix bool, operatorID string) ([]models.BudgetDrift, error) {
	budgets, err := s.budgets.FindApproved(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load budgets: %w", err)
	}

	drifts := make([]models.BudgetDrift, 0)
	for _, b := range budgets {
		live, err := s.costs.SumByBudget(ctx, b.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to sum costs of budget %d: %w", b.ID, err)
		}
		live = live.Round(2)
		if live.Equal(b.UsedAmount) {
			continue
		}

		drift := models.BudgetDrift{
			BudgetID:   b.ID,
			Code:       b.Code,
			UsedAmount: b.UsedAmount,
			LiveSum:    live,
			Difference: live.Sub(b.UsedAmount),
		}
		logger.WithContext(ctx).Warn("budget drift detected",
			"budget_id", b.ID,
			"used_amount", b.UsedAmount.String(),
			"live_sum", live.String(),
		)

		if fix {
			drift.Fixed, err = s.fixDrift(ctx, b, drift.Difference, operatorID)
			if err != nil {
				return nil, err
			}
		}
		drifts = append(drifts, drift)
	}
	return drifts, nil
}

func (s *BalanceService) fixDrift(ctx context.Context, budget models.Budget, delta decimal.Decimal, operatorID string) (bool, error) {
	var fixed bool
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		applied, err := s.budgets.AdjustUsage(txCtx, budget.ID, delta, budget.Version)
		if err != nil {
			return fmt.Errorf("failed to adjust budget %d: %w", budget.ID, err)
		}
		if !applied {
			return nil
		}
		fixed = true
		return s.audit.Log(txCtx, operatorID, models.AuditReconcile, "budget", budget.ID,
			fmt.Sprintf("Realigned used amount of %s by %s", budget.Code, delta.StringFixed(2)))
	})
	if err == nil && !fixed {
		logger.WithContext(ctx).Warn("budget drift left unfixed", "budget_id", budget.ID, "delta", delta.String())
	}
	return fixed, err
}

// GetCost returns a live cost entry.
func (s *BalanceService) GetCost(ctx context.Context, id uint) (*models.CostEntry, error) {
	return s.costs.FindByID(ctx, id)
}

func (s *BalanceService) ListCosts(ctx context.Context, query *repository.ListQuery) ([]models.CostEntry, int64, error) {
	return s.costs.List(ctx, query)
}
