package statemachine

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"
	"github.com/sjperalta/obrafin-api/internal/models"
)

// PaymentFSM wraps a payment with its state machine
type PaymentFSM struct {
	payment *models.Payment
	fsm     *fsm.FSM
}

// NewPaymentFSM creates a new payment state machine
func NewPaymentFSM(payment *models.Payment) *PaymentFSM {
	pfsm := &PaymentFSM{
		payment: payment,
	}

	pfsm.fsm = fsm.NewFSM(
		payment.Status,
		fsm.Events{
			// pending → approved | rejected
			{Name: "approve", Src: []string{models.PaymentStatusPending}, Dst: models.PaymentStatusApproved},
			{Name: "reject", Src: []string{models.PaymentStatusPending}, Dst: models.PaymentStatusRejected},

			// approved → paid (settlement)
			{Name: "confirm", Src: []string{models.PaymentStatusApproved}, Dst: models.PaymentStatusPaid},

			// rejected → pending (revised and sent again)
			{Name: "resubmit", Src: []string{models.PaymentStatusRejected}, Dst: models.PaymentStatusPending},
		},
		fsm.Callbacks{},
	)

	return pfsm
}

// Decide applies an approver decision to a pending payment
func (p *PaymentFSM) Decide(ctx context.Context, decision string) error {
	if !p.payment.MayDecide() {
		return fmt.Errorf("payment cannot be decided in current state: %s", p.payment.Status)
	}

	event := "approve"
	if decision == models.DecisionRejected {
		event = "reject"
	} else if decision != models.DecisionApproved {
		return fmt.Errorf("unknown decision: %s", decision)
	}

	if err := p.fsm.Event(ctx, event); err != nil {
		return fmt.Errorf("failed to %s payment: %w", event, err)
	}

	p.payment.Status = p.fsm.Current()
	return nil
}

// Confirm transitions an approved payment to paid
func (p *PaymentFSM) Confirm(ctx context.Context) error {
	if !p.payment.MayConfirm() {
		return fmt.Errorf("payment cannot be confirmed in current state: %s", p.payment.Status)
	}

	if err := p.fsm.Event(ctx, "confirm"); err != nil {
		return fmt.Errorf("failed to confirm payment: %w", err)
	}

	p.payment.Status = p.fsm.Current()
	return nil
}

// Resubmit moves a rejected payment back to pending
func (p *PaymentFSM) Resubmit(ctx context.Context) error {
	if !p.payment.MayResubmit() {
		return fmt.Errorf("payment cannot be resubmitted in current state: %s", p.payment.Status)
	}

	if err := p.fsm.Event(ctx, "resubmit"); err != nil {
		return fmt.Errorf("failed to resubmit payment: %w", err)
	}

	p.payment.Status = p.fsm.Current()
	return nil
}

// Current returns the current state
func (p *PaymentFSM) Current() string {
	return p.fsm.Current()
}

// Can checks if a transition is possible
func (p *PaymentFSM) Can(event string) bool {
	return p.fsm.Can(event)
}
