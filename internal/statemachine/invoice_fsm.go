package statemachine

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"
	"github.com/sjperalta/obrafin-api/internal/models"
)

// InvoiceFSM wraps an invoice with its state machine
type InvoiceFSM struct {
	invoice *models.Invoice
	fsm     *fsm.FSM
}

// NewInvoiceFSM creates a new invoice state machine
func NewInvoiceFSM(invoice *models.Invoice) *InvoiceFSM {
	ifsm := &InvoiceFSM{
		invoice: invoice,
	}

	ifsm.fsm = fsm.NewFSM(
		invoice.Status,
		fsm.Events{
			{Name: "verify", Src: []string{models.InvoiceStatusPending}, Dst: models.InvoiceStatusVerified},
			{Name: "reimburse", Src: []string{models.InvoiceStatusVerified}, Dst: models.InvoiceStatusReimbursed},
			{Name: "cancel", Src: []string{models.InvoiceStatusPending, models.InvoiceStatusVerified}, Dst: models.InvoiceStatusCancelled},
		},
		fsm.Callbacks{},
	)

	return ifsm
}

// Verify marks a pending invoice as verified by the registry
func (i *InvoiceFSM) Verify(ctx context.Context) error {
	if !i.invoice.MayVerify() {
		return fmt.Errorf("invoice cannot be verified in current state: %s", i.invoice.Status)
	}

	if err := i.fsm.Event(ctx, "verify"); err != nil {
		return fmt.Errorf("failed to verify invoice: %w", err)
	}

	i.invoice.Status = i.fsm.Current()
	return nil
}

// Reimburse marks a verified invoice as settled by a payment
func (i *InvoiceFSM) Reimburse(ctx context.Context) error {
	if !i.invoice.MayReimburse() {
		return fmt.Errorf("invoice cannot be reimbursed in current state: %s", i.invoice.Status)
	}

	if err := i.fsm.Event(ctx, "reimburse"); err != nil {
		return fmt.Errorf("failed to reimburse invoice: %w", err)
	}

	i.invoice.Status = i.fsm.Current()
	return nil
}

// Cancel moves a pending or verified invoice to cancelled
func (i *InvoiceFSM) Cancel(ctx context.Context) error {
	if !i.invoice.MayCancel() {
		return fmt.Errorf("invoice cannot be cancelled in current state: %s", i.invoice.Status)
	}

	if err := i.fsm.Event(ctx, "cancel"); err != nil {
		return fmt.Errorf("failed to cancel invoice: %w", err)
	}

	i.invoice.Status = i.fsm.Current()
	return nil
}

// Current returns the current state
func (i *InvoiceFSM) Current() string {
	return i.fsm.Current()
}
