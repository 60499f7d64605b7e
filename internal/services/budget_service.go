package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sjperalta/obrafin-api/internal/apperrors"
	"github.com/sjperalta/obrafin-api/internal/database"
	"github.com/sjperalta/obrafin-api/internal/models"
	"github.com/sjperalta/obrafin-api/internal/repository"
	"github.com/sjperalta/obrafin-api/internal/statemachine"
	"gorm.io/gorm"
)

type BudgetItemInput struct {
	Name          string          `json:"name" validate:"required,max=200"`
	Category      string          `json:"category" validate:"max=50"`
	PlannedAmount decimal.Decimal `json:"planned_amount" validate:"gte=0"`
	ActualAmount  decimal.Decimal `json:"actual_amount" validate:"gte=0"`
}

type CreateBudgetInput struct {
	Code       string            `json:"code" validate:"required,max=50"`
	ProjectID  uint              `json:"project_id" validate:"required"`
	FiscalYear int               `json:"fiscal_year" validate:"required,gte=2000,lte=2100"`
	Type       string            `json:"type" validate:"required,oneof=project department"`
	Currency   string            `json:"currency" validate:"omitempty,len=3"`
	Amount     decimal.Decimal   `json:"amount" validate:"gt=0"`
	Items      []BudgetItemInput `json:"items" validate:"required,min=1,dive"`
}

// UpdateBudgetInput changes a draft budget. Nil fields keep their value and
// an empty Items list keeps the current items.
type UpdateBudgetInput struct {
	ExpectedVersion *int64            `json:"expected_version"`
	ProjectID       *uint             `json:"project_id" validate:"omitempty,gt=0"`
	FiscalYear      *int              `json:"fiscal_year" validate:"omitempty,gte=2000,lte=2100"`
	Type            *string           `json:"type" validate:"omitempty,oneof=project department"`
	Currency        *string           `json:"currency" validate:"omitempty,len=3"`
	Amount          *decimal.Decimal  `json:"amount" validate:"omitempty,gt=0"`
	Items           []BudgetItemInput `json:"items" validate:"omitempty,dive"`
}

type BudgetService struct {
	budgets         repository.BudgetRepository
	tx              database.TransactionManager
	audit           *AuditService
	workflow        approvalWorkflow
	notifier        *EmailService
	defaultCurrency string
}

func NewBudgetService(
	budgets repository.BudgetRepository,
	approvals repository.ApprovalRepository,
	tx database.TransactionManager,
	audit *AuditService,
	notifier *EmailService,
	defaultCurrency string,
) *BudgetService {
	return &BudgetService{
		budgets:         budgets,
		tx:              tx,
		audit:           audit,
		workflow:        approvalWorkflow{approvals: approvals},
		notifier:        notifier,
		defaultCurrency: defaultCurrency,
	}
}

// Create stores a new draft budget.
func (s *BudgetService) Create(ctx context.Context, input CreateBudgetInput, operatorID string) (*models.Budget, error) {
	if err := requireOperator(operatorID); err != nil {
		return nil, err
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if err := requireCents("amount", input.Amount); err != nil {
		return nil, err
	}
	items, err := buildItems(input.Items)
	if err != nil {
		return nil, err
	}
	if err := checkItemsTotal(input.Amount, items); err != nil {
		return nil, err
	}

	currency := strings.ToUpper(input.Currency)
	if currency == "" {
		currency = s.defaultCurrency
	}
	budget := &models.Budget{
		Code:       strings.TrimSpace(input.Code),
		ProjectID:  input.ProjectID,
		FiscalYear: input.FiscalYear,
		Type:       input.Type,
		Currency:   currency,
		Amount:     input.Amount,
		UsedAmount: decimal.Zero,
		Status:     models.BudgetStatusDraft,
		CreatedBy:  operatorID,
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		exists, err := s.budgets.ExistsCode(txCtx, budget.Code)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateBudgetCode.WithMessage("budget code %s already exists", budget.Code)
		}
		if err := s.budgets.Create(txCtx, budget); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateBudgetCode.WithMessage("budget code %s already exists", budget.Code)
			}
			return fmt.Errorf("failed to create budget: %w", err)
		}
		if err := s.budgets.ReplaceItems(txCtx, budget.ID, items); err != nil {
			return fmt.Errorf("failed to store budget items: %w", err)
		}
		return s.audit.Log(txCtx, operatorID, models.AuditCreate, "budget", budget.ID,
			fmt.Sprintf("Created budget %s with ceiling %s", budget.Code, budget.Amount.StringFixed(2)))
	})
	if err != nil {
		return nil, err
	}
	budget.Items = items
	return budget, nil
}

// Update edits a draft budget. The items must still add up to the amount.
func (s *BudgetService) Update(ctx context.Context, id uint, input UpdateBudgetInput, operatorID string) (*models.Budget, error) {
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

	var budget *models.Budget
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		budget, err = s.budgets.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		if !budget.MayEdit() {
			return ErrNotEditable.WithMessage("budget %s is %s", budget.Code, budget.Status)
		}
		if input.ExpectedVersion != nil && *input.ExpectedVersion != budget.Version {
			return apperrors.ErrConcurrencyConflict.WithMessage(
				"budget %s is at version %d, expected %d", budget.Code, budget.Version, *input.ExpectedVersion)
		}

		applyBudgetFields(budget, input)

		items := budget.Items
		replaceItems := len(input.Items) > 0
		if replaceItems {
			if items, err = buildItems(input.Items); err != nil {
				return err
			}
		}
		if err := checkItemsTotal(budget.Amount, items); err != nil {
			return err
		}

		if err := s.budgets.Update(txCtx, budget); err != nil {
			return err
		}
		if replaceItems {
			if err := s.budgets.ReplaceItems(txCtx, budget.ID, items); err != nil {
				return fmt.Errorf("failed to store budget items: %w", err)
			}
			budget.Items = items
		}
		return s.audit.Log(txCtx, operatorID, models.AuditUpdate, "budget", budget.ID,
			fmt.Sprintf("Updated budget %s to version %d", budget.Code, budget.Version))
	})
	if err != nil {
		return nil, err
	}
	return budget, nil
}

func applyBudgetFields(budget *models.Budget, input UpdateBudgetInput) {
	if input.ProjectID != nil {
		budget.ProjectID = *input.ProjectID
	}
	if input.FiscalYear != nil {
		budget.FiscalYear = *input.FiscalYear
	}
	if input.Type != nil {
		budget.Type = *input.Type
	}
	if input.Currency != nil {
		budget.Currency = strings.ToUpper(*input.Currency)
	}
	if input.Amount != nil {
		budget.Amount = *input.Amount
	}
}

func buildItems(inputs []BudgetItemInput) ([]models.BudgetItem, error) {
	items := make([]models.BudgetItem, 0, len(inputs))
	for i, in := range inputs {
		if err := requireCents(fmt.Sprintf("items[%d].planned_amount", i), in.PlannedAmount); err != nil {
			return nil, err
		}
		items = append(items, models.BudgetItem{
			Position:      i + 1,
			Name:          strings.TrimSpace(in.Name),
			Category:      in.Category,
			PlannedAmount: in.PlannedAmount,
			ActualAmount:  in.ActualAmount,
		})
	}
	return items, nil
}

func checkItemsTotal(amount decimal.Decimal, items []models.BudgetItem) error {
	if len(items) == 0 {
		return apperrors.Validation("a budget needs at least one item")
	}
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.PlannedAmount)
	}
	if !total.Equal(amount) {
		return apperrors.Validation("items planned total %s must equal amount %s", total.StringFixed(2), amount.StringFixed(2))
	}
	return nil
}

// Submit sends a draft budget for approval.
func (s *BudgetService) Submit(ctx context.Context, id uint, operatorID string) (*models.Budget, error) {
	budget, err := s.transition(ctx, id, operatorID, models.AuditSubmit, func(ctx context.Context, fsm *statemachine.BudgetFSM) error {
		return fsm.Submit(ctx)
	})
	if err != nil {
		return nil, err
	}
	s.notifier.NotifyApprovalRequested(ctx, ApprovalRequest{
		Entity:      models.EntityBudget,
		ID:          budget.ID,
		Code:        budget.Code,
		Amount:      budget.Amount,
		Currency:    budget.Currency,
		RequestedBy: operatorID,
	})
	return budget, nil
}

// Revise reopens a rejected budget as an editable draft.
func (s *BudgetService) Revise(ctx context.Context, id uint, operatorID string) (*models.Budget, error) {
	return s.transition(ctx, id, operatorID, models.AuditUpdate, func(ctx context.Context, fsm *statemachine.BudgetFSM) error {
		return fsm.Revise(ctx)
	})
}

func (s *BudgetService) transition(ctx context.Context, id uint, operatorID, action string, fire func(context.Context, *statemachine.BudgetFSM) error) (*models.Budget, error) {
	if err := requireOperator(operatorID); err != nil {
		return nil, err
	}

	var budget *models.Budget
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		budget, err = s.budgets.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		from := budget.Status
		if err := fire(txCtx, statemachine.NewBudgetFSM(budget)); err != nil {
			return ErrInvalidState.WithMessage("%v", err)
		}
		if err := s.budgets.Update(txCtx, budget); err != nil {
			return err
		}
		return s.audit.Log(txCtx, operatorID, action, "budget", budget.ID,
			fmt.Sprintf("Budget %s moved from %s to %s", budget.Code, from, budget.Status))
	})
	if err != nil {
		return nil, err
	}
	return budget, nil
}

// Decide records an approver's decision on a pending budget.
func (s *BudgetService) Decide(ctx context.Context, id uint, input DecisionInput, approver string) (*models.Budget, error) {
	var budget *models.Budget
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		budget, err = s.budgets.FindByID(txCtx, id)
		if err != nil {
			return err
		}

		latest, err := s.workflow.decide(txCtx, models.EntityBudget, budget.ID, budget.MayDecide(), budget.Status, input, approver)
		if err != nil {
			return err
		}
		if err := statemachine.NewBudgetFSM(budget).Decide(txCtx, latest.Decision); err != nil {
			return ErrInvalidState.WithMessage("%v", err)
		}
		if err := s.budgets.Update(txCtx, budget); err != nil {
			return err
		}

		action := models.AuditApprove
		if latest.Decision == models.DecisionRejected {
			action = models.AuditReject
		}
		return s.audit.Log(txCtx, approver, action, "budget", budget.ID,
			fmt.Sprintf("Budget %s %s: %s", budget.Code, latest.Decision, latest.Comment))
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, budget.ID)
}

// Get returns the budget with its items and approval history.
func (s *BudgetService) Get(ctx context.Context, id uint) (*models.Budget, error) {
	budget, err := s.budgets.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	chain, err := s.workflow.history(ctx, models.EntityBudget, id)
	if err != nil {
		return nil, err
	}
	budget.Approvals = chain
	return budget, nil
}

func (s *BudgetService) List(ctx context.Context, query *repository.ListQuery) ([]models.Budget, int64, error) {
	return s.budgets.List(ctx, query)
}
