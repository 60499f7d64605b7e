package statemachine

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"
	"github.com/sjperalta/obrafin-api/internal/models"
)

// BudgetFSM wraps a budget with its state machine
type BudgetFSM struct {
	budget *models.Budget
	fsm    *fsm.FSM
}

// NewBudgetFSM creates a new budget state machine
func NewBudgetFSM(budget *models.Budget) *BudgetFSM {
	bfsm := &BudgetFSM{
		budget: budget,
	}

	bfsm.fsm = fsm.NewFSM(
		budget.Status,
		fsm.Events{
			// draft → pending
			{Name: "submit", Src: []string{models.BudgetStatusDraft}, Dst: models.BudgetStatusPending},

			// pending → approved | rejected
			{Name: "approve", Src: []string{models.BudgetStatusPending}, Dst: models.BudgetStatusApproved},
			{Name: "reject", Src: []string{models.BudgetStatusPending}, Dst: models.BudgetStatusRejected},

			// rejected → draft (reopen for editing)
			{Name: "revise", Src: []string{models.BudgetStatusRejected}, Dst: models.BudgetStatusDraft},
		},
		fsm.Callbacks{},
	)

	return bfsm
}

// Submit sends a draft budget for approval
func (b *BudgetFSM) Submit(ctx context.Context) error {
	if !b.budget.MaySubmit() {
		return fmt.Errorf("budget cannot be submitted in current state: %s", b.budget.Status)
	}
	return b.fire(ctx, "submit")
}

// Decide applies an approver decision to a pending budget
func (b *BudgetFSM) Decide(ctx context.Context, decision string) error {
	if !b.budget.MayDecide() {
		return fmt.Errorf("budget cannot be decided in current state: %s", b.budget.Status)
	}
	switch decision {
	case models.DecisionApproved:
		return b.fire(ctx, "approve")
	case models.DecisionRejected:
		return b.fire(ctx, "reject")
	}
	return fmt.Errorf("unknown decision: %s", decision)
}

// Revise reopens a rejected budget as a draft
func (b *BudgetFSM) Revise(ctx context.Context) error {
	if !b.budget.MayRevise() {
		return fmt.Errorf("budget cannot be revised in current state: %s", b.budget.Status)
	}
	return b.fire(ctx, "revise")
}

func (b *BudgetFSM) fire(ctx context.Context, event string) error {
	if err := b.fsm.Event(ctx, event); err != nil {
		return fmt.Errorf("failed to %s budget: %w", event, err)
	}
	b.budget.Status = b.fsm.Current()
	return nil
}

// Current returns the current state
func (b *BudgetFSM) Current() string {
	return b.fsm.Current()
}

// Can checks if a transition is possible
func (b *BudgetFSM) Can(event string) bool {
	return b.fsm.Can(event)
}
