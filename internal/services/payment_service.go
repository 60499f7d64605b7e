package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sjperalta/obrafin-api/internal/apperrors"
	"github.com/sjperalta/obrafin-api/internal/database"
	"github.com/sjperalta/obrafin-api/internal/models"
	"github.com/sjperalta/obrafin-api/internal/repository"
	"github.com/sjperalta/obrafin-api/internal/statemachine"
	"github.com/sjperalta/obrafin-api/pkg/logger"
)

type CreatePaymentInput struct {
	ProjectID   uint            `json:"project_id" validate:"required"`
	SupplierID  uint            `json:"supplier_id" validate:"required"`
	Type        string          `json:"type" validate:"required,oneof=advance progress final retention other"`
	Method      string          `json:"method" validate:"required,oneof=bank_transfer check cash other"`
	Currency    string          `json:"currency" validate:"omitempty,len=3"`
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
	PlannedDate time.Time       `json:"planned_date"`
	Description string          `json:"description"`
	InvoiceIDs  []uint          `json:"invoice_ids" validate:"dive,gt=0"`
}

// AmendPaymentInput changes a pending payment, or a rejected one on
// resubmission. A nil InvoiceIDs keeps the current invoice set.
type AmendPaymentInput struct {
	Amount      *decimal.Decimal `json:"amount" validate:"omitempty,gt=0"`
	PlannedDate *time.Time       `json:"planned_date"`
	Method      *string          `json:"method" validate:"omitempty,oneof=bank_transfer check cash other"`
	Description *string          `json:"description"`
	InvoiceIDs  []uint           `json:"invoice_ids" validate:"omitempty,dive,gt=0"`
}

type ConfirmPaymentInput struct {
	ActualDate *time.Time `json:"actual_date"`
}

// PaymentService settles verified invoices. A payment never asks for more
// than the total of the invoices it holds.
type PaymentService struct {
	payments        repository.PaymentRepository
	invoices        repository.InvoiceRepository
	tx              database.TransactionManager
	audit           *AuditService
	workflow        approvalWorkflow
	notifier        *EmailService
	defaultCurrency string
}

func NewPaymentService(
	payments repository.PaymentRepository,
	invoices repository.InvoiceRepository,
	approvals repository.ApprovalRepository,
	tx database.TransactionManager,
	audit *AuditService,
	notifier *EmailService,
	defaultCurrency string,
) *PaymentService {
	return &PaymentService{
		payments:        payments,
		invoices:        invoices,
		tx:              tx,
		audit:           audit,
		workflow:        approvalWorkflow{approvals: approvals},
		notifier:        notifier,
		defaultCurrency: defaultCurrency,
	}
}

func (s *PaymentService) notifyPending(ctx context.Context, payment *models.Payment, operatorID string) {
	s.notifier.NotifyApprovalRequested(ctx, ApprovalRequest{
		Entity:      models.EntityPayment,
		ID:          payment.ID,
		Code:        payment.Code,
		Amount:      payment.Amount,
		Currency:    payment.Currency,
		RequestedBy: operatorID,
	})
}

// Create stores a pending payment against verified invoices of one supplier.
func (s *PaymentService) Create(ctx context.Context, input CreatePaymentInput, operatorID string) (*models.Payment, error) {
	if err := requireOperator(operatorID); err != nil {
		return nil, err
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if input.PlannedDate.IsZero() {
		return nil, apperrors.Validation("planned_date is required")
	}
	if err := requireCents("amount", input.Amount); err != nil {
		return nil, err
	}

	currency := strings.ToUpper(input.Currency)
	if currency == "" {
		currency = s.defaultCurrency
	}
	payment := &models.Payment{
		Code:        newCode("PAY", time.Now()),
		ProjectID:   input.ProjectID,
		SupplierID:  input.SupplierID,
		Type:        input.Type,
		Method:      input.Method,
		Currency:    currency,
		Amount:      input.Amount,
		PlannedDate: input.PlannedDate.UTC(),
		Status:      models.PaymentStatusPending,
		Description: input.Description,
		CreatedBy:   operatorID,
	}

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		invoices, err := s.resolveInvoices(txCtx, payment.SupplierID, input.InvoiceIDs, 0)
		if err != nil {
			return err
		}
		if err := checkConservation(payment.Amount, invoices); err != nil {
			return err
		}
		payment.Invoices = invoices

		if err := s.payments.Create(txCtx, payment); err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}
		return s.audit.Log(txCtx, operatorID, models.AuditCreate, "payment", payment.ID,
			fmt.Sprintf("Created payment %s of %s against %d invoices", payment.Code, payment.Amount.StringFixed(2), len(invoices)))
	})
	if err != nil {
		return nil, err
	}
	s.notifyPending(ctx, payment, operatorID)
	return payment, nil
}

// resolveInvoices locks the invoices a payment wants to hold and checks each
// one may back it: same supplier, verified and not held by another open payment.
// The locks serialize competing payments until the link is committed.
func (s *PaymentService) resolveInvoices(ctx context.Context, supplierID uint, ids []uint, paymentID uint) ([]models.Invoice, error) {
	ids = uniqueIDs(ids)
	invoices, err := s.invoices.FindByIDsForUpdate(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoices: %w", err)
	}

	found := make(map[uint]models.Invoice, len(invoices))
	for _, inv := range invoices {
		found[inv.ID] = inv
	}
	for _, id := range ids {
		inv, ok := found[id]
		if !ok || inv.SupplierID != supplierID {
			return nil, ErrInvoiceNotFound.WithMessage("invoice %d not found for supplier %d", id, supplierID)
		}
		if inv.Status != models.InvoiceStatusVerified {
			return nil, ErrInvoiceNotVerified.WithMessage("invoice %s is %s", inv.Number, inv.Status)
		}
	}

	inUse, err := s.payments.FindInvoicesInUse(ctx, ids, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to check payment links: %w", err)
	}
	if len(inUse) > 0 {
		return nil, ErrInvoiceInUse.WithMessage("invoice %d is linked to another open payment", inUse[0])
	}
	return invoices, nil
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func checkConservation(amount decimal.Decimal, invoices []models.Invoice) error {
	total := decimal.Zero
	for _, inv := range invoices {
		total = total.Add(inv.TotalAmount)
	}
	if amount.GreaterThan(total) {
		return ErrAmountExceedsInvoices.WithMessage("payment amount %s exceeds invoice total %s", amount.StringFixed(2), total.StringFixed(2))
	}
	return nil
}

// Approve records an approver's decision on a pending payment.
func (s *PaymentService) Approve(ctx context.Context, id uint, input DecisionInput, approver string) (*models.Payment, error) {
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		payment, err := s.payments.FindByID(txCtx, id)
		if err != nil {
			return err
		}

		latest, err := s.workflow.decide(txCtx, models.EntityPayment, payment.ID, payment.MayDecide(), payment.Status, input, approver)
		if err != nil {
			return err
		}
		if err := statemachine.NewPaymentFSM(payment).Decide(txCtx, latest.Decision); err != nil {
			return ErrInvalidState.WithMessage("%v", err)
		}
		moved, err := s.payments.TransitionStatus(txCtx, payment, models.PaymentStatusPending)
		if err != nil {
			return fmt.Errorf("failed to record decision: %w", err)
		}
		if !moved {
			return apperrors.ErrConcurrencyConflict.WithMessage("payment %s was decided concurrently", payment.Code)
		}

		action := models.AuditApprove
		if latest.Decision == models.DecisionRejected {
			action = models.AuditReject
		}
		return s.audit.Log(txCtx, approver, action, "payment", payment.ID,
			fmt.Sprintf("Payment %s %s: %s", payment.Code, latest.Decision, latest.Comment))
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Confirm settles an approved payment. The payment and every linked invoice
// move together; if any invoice cannot be reimbursed nothing is written.
func (s *PaymentService) Confirm(ctx context.Context, id uint, input ConfirmPaymentInput, operatorID string) (*models.Payment, error) {
	if err := requireOperator(operatorID); err != nil {
		return nil, err
	}

	var payment *models.Payment
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		payment, err = s.payments.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		if !payment.MayConfirm() {
			return ErrNotApproved.WithMessage("payment %s is %s", payment.Code, payment.Status)
		}

		if err := statemachine.NewPaymentFSM(payment).Confirm(txCtx); err != nil {
			return ErrNotApproved.WithMessage("%v", err)
		}
		actual := time.Now().UTC()
		if input.ActualDate != nil {
			actual = input.ActualDate.UTC()
		}
		payment.ActualDate = &actual
		payment.ConfirmedBy = &operatorID

		moved, err := s.payments.TransitionStatus(txCtx, payment, models.PaymentStatusApproved)
		if err != nil {
			return fmt.Errorf("failed to confirm payment: %w", err)
		}
		if !moved {
			return ErrNotApproved.WithMessage("payment %s was confirmed concurrently", payment.Code)
		}

		for i := range payment.Invoices {
			if err := s.reimburse(txCtx, &payment.Invoices[i]); err != nil {
				return err
			}
		}

		return s.audit.Log(txCtx, operatorID, models.AuditConfirm, "payment", payment.ID,
			fmt.Sprintf("Confirmed payment %s, reimbursed %d invoices", payment.Code, len(payment.Invoices)))
	})
	if err != nil {
		return nil, err
	}

	logger.WithContext(ctx).Info("payment confirmed", "payment_id", payment.ID, "invoices", len(payment.Invoices))
	return payment, nil
}

func (s *PaymentService) reimburse(ctx context.Context, invoice *models.Invoice) error {
	if err := statemachine.NewInvoiceFSM(invoice).Reimburse(ctx); err != nil {
		return ErrInvoiceNotVerified.WithMessage("invoice %s cannot be reimbursed: %v", invoice.Number, err)
	}
	moved, err := s.invoices.TransitionStatus(ctx, invoice, models.InvoiceStatusVerified)
	if err != nil {
		return fmt.Errorf("failed to reimburse invoice %d: %w", invoice.ID, err)
	}
	if !moved {
		return ErrInvoiceNotVerified.WithMessage("invoice %s changed during confirmation", invoice.Number)
	}
	return nil
}

// Amend changes a pending payment and re-runs the creation checks.
func (s *PaymentService) Amend(ctx context.Context, id uint, input AmendPaymentInput, operatorID string) (*models.Payment, error) {
	return s.revise(ctx, id, input, operatorID, false)
}

// Resubmit sends a rejected payment back to pending with optional changes.
func (s *PaymentService) Resubmit(ctx context.Context, id uint, input AmendPaymentInput, operatorID string) (*models.Payment, error) {
	return s.revise(ctx, id, input, operatorID, true)
}

func (s *PaymentService) revise(ctx context.Context, id uint, input AmendPaymentInput, operatorID string, resubmit bool) (*models.Payment, error) {
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

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		payment, err := s.payments.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		from := payment.Status

		if resubmit {
			if err := statemachine.NewPaymentFSM(payment).Resubmit(txCtx); err != nil {
				return ErrInvalidState.WithMessage("%v", err)
			}
		} else if !payment.MayAmend() {
			return ErrNotPending.WithMessage("payment %s is %s", payment.Code, payment.Status)
		}

		applyPaymentFields(payment, input)

		ids := payment.InvoiceIDs()
		relink := input.InvoiceIDs != nil
		if relink {
			ids = input.InvoiceIDs
		}
		invoices, err := s.resolveInvoices(txCtx, payment.SupplierID, ids, payment.ID)
		if err != nil {
			return err
		}
		if err := checkConservation(payment.Amount, invoices); err != nil {
			return err
		}

		moved, err := s.payments.UpdateIfStatus(txCtx, payment, from)
		if err != nil {
			return fmt.Errorf("failed to update payment: %w", err)
		}
		if !moved {
			return apperrors.ErrConcurrencyConflict.WithMessage("payment %s changed concurrently", payment.Code)
		}
		if relink {
			if err := s.payments.ReplaceInvoices(txCtx, payment.ID, uniqueIDs(ids)); err != nil {
				return fmt.Errorf("failed to relink invoices: %w", err)
			}
		}

		action, verb := models.AuditUpdate, "Amended"
		if resubmit {
			action, verb = models.AuditSubmit, "Resubmitted"
		}
		return s.audit.Log(txCtx, operatorID, action, "payment", payment.ID,
			fmt.Sprintf("%s payment %s: amount %s, %d invoices", verb, payment.Code, payment.Amount.StringFixed(2), len(invoices)))
	})
	if err != nil {
		return nil, err
	}
	payment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if resubmit {
		s.notifyPending(ctx, payment, operatorID)
	}
	return payment, nil
}

func applyPaymentFields(payment *models.Payment, input AmendPaymentInput) {
	if input.Amount != nil {
		payment.Amount = *input.Amount
	}
	if input.PlannedDate != nil {
		payment.PlannedDate = input.PlannedDate.UTC()
	}
	if input.Method != nil {
		payment.Method = *input.Method
	}
	if input.Description != nil {
		payment.Description = *input.Description
	}
}

// Get returns the payment with its invoices and approval history.
func (s *PaymentService) Get(ctx context.Context, id uint) (*models.Payment, error) {
	payment, err := s.payments.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	chain, err := s.workflow.history(ctx, models.EntityPayment, id)
	if err != nil {
		return nil, err
	}
	payment.Approvals = chain
	return payment, nil
}

func (s *PaymentService) List(ctx context.Context, query *repository.ListQuery) ([]models.Payment, int64, error) {
	return s.payments.List(ctx, query)
}
