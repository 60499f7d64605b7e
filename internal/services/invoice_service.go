package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sjperalta/obrafin-api/internal/apperrors"
	"github.com/sjperalta/obrafin-api/internal/database"
	"github.com/sjperalta/obrafin-api/internal/models"
	"github.com/sjperalta/obrafin-api/internal/registry"
	"github.com/sjperalta/obrafin-api/internal/repository"
	"github.com/sjperalta/obrafin-api/internal/statemachine"
	"github.com/sjperalta/obrafin-api/pkg/logger"
	"gorm.io/gorm"
)

const invoiceImageFolder = "invoices"

type CreateInvoiceInput struct {
	Number     string          `json:"number" validate:"required,max=100"`
	SupplierID uint            `json:"supplier_id" validate:"required"`
	ProjectID  uint            `json:"project_id" validate:"required"`
	Type       string          `json:"type" validate:"required,oneof=material equipment labor service other"`
	IssueDate  time.Time       `json:"issue_date"`
	Currency   string          `json:"currency" validate:"omitempty,len=3"`
	Amount     decimal.Decimal `json:"amount" validate:"gt=0"`
	TaxRate    decimal.Decimal `json:"tax_rate" validate:"gte=0,lte=100"`
	Remarks    string          `json:"remarks"`
}

type InvoiceService struct {
	invoices        repository.InvoiceRepository
	payments        repository.PaymentRepository
	suppliers       SupplierDirectory
	validator       InvoiceValidator
	tx              database.TransactionManager
	audit           *AuditService
	blobs           BlobStore
	async           AsyncRunner
	defaultCurrency string
}

func NewInvoiceService(
	invoices repository.InvoiceRepository,
	payments repository.PaymentRepository,
	suppliers SupplierDirectory,
	validator InvoiceValidator,
	tx database.TransactionManager,
	audit *AuditService,
	blobs BlobStore,
	async AsyncRunner,
	defaultCurrency string,
) *InvoiceService {
	return &InvoiceService{
		invoices:        invoices,
		payments:        payments,
		suppliers:       suppliers,
		validator:       validator,
		tx:              tx,
		audit:           audit,
		blobs:           blobs,
		async:           async,
		defaultCurrency: defaultCurrency,
	}
}

// Create stores a pending invoice with its tax and total derived.
func (s *InvoiceService) Create(ctx context.Context, input CreateInvoiceInput, operatorID string) (*models.Invoice, error) {
	if err := requireOperator(operatorID); err != nil {
		return nil, err
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if input.IssueDate.IsZero() {
		return nil, apperrors.Validation("issue_date is required")
	}
	if err := requireCents("amount", input.Amount); err != nil {
		return nil, err
	}

	currency := strings.ToUpper(input.Currency)
	if currency == "" {
		currency = s.defaultCurrency
	}
	invoice := &models.Invoice{
		Code:       newCode("INV", time.Now()),
		Number:     strings.TrimSpace(input.Number),
		SupplierID: input.SupplierID,
		ProjectID:  input.ProjectID,
		Type:       input.Type,
		IssueDate:  input.IssueDate.UTC(),
		Currency:   currency,
		Amount:     input.Amount,
		TaxRate:    input.TaxRate,
		Status:     models.InvoiceStatusPending,
		Remarks:    strings.TrimSpace(input.Remarks),
		CreatedBy:  operatorID,
	}
	invoice.ApplyTax()

	blacklisted, err := s.suppliers.IsBlacklisted(ctx, invoice.SupplierID)
	if err != nil {
		return nil, err
	}
	if blacklisted {
		return nil, ErrSupplierBlacklisted.WithMessage("supplier %d is blacklisted", invoice.SupplierID)
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		exists, err := s.invoices.ExistsNumber(txCtx, invoice.SupplierID, invoice.Number)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateInvoiceNumber.WithMessage("invoice %s already exists for supplier %d", invoice.Number, invoice.SupplierID)
		}
		if err := s.invoices.Create(txCtx, invoice); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateInvoiceNumber.WithMessage("invoice %s already exists for supplier %d", invoice.Number, invoice.SupplierID)
			}
			return fmt.Errorf("failed to create invoice: %w", err)
		}
		return s.audit.Log(txCtx, operatorID, models.AuditCreate, "invoice", invoice.ID,
			fmt.Sprintf("Created invoice %s for %s", invoice.Number, invoice.TotalAmount.StringFixed(2)))
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// Verify asks the registry to validate a pending invoice. The registry call
// runs outside any transaction; only one concurrent verify can flip the status.
func (s *InvoiceService) Verify(ctx context.Context, id uint, operatorID string) (*models.Invoice, error) {
	if err := requireOperator(operatorID); err != nil {
		return nil, err
	}

	invoice, err := s.invoices.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !invoice.MayVerify() {
		return nil, ErrAlreadyProcessed.WithMessage("invoice %s is %s", invoice.Number, invoice.Status)
	}

	req := registry.Request{
		Number:     invoice.Number,
		Amount:     invoice.Amount,
		TaxRate:    invoice.TaxRate,
		IssueDate:  invoice.IssueDate,
		SupplierID: invoice.SupplierID,
	}
	if supplier, err := s.suppliers.FindByID(ctx, invoice.SupplierID); err == nil {
		req.SupplierTaxID = supplier.TaxID
	}

	result, err := s.validator.Validate(ctx, req)
	if err != nil {
		logger.WithContext(ctx).Warn("invoice registry unavailable", "invoice_id", invoice.ID, "error", err)
		return nil, verificationFailed("registry unavailable", err)
	}
	if !result.Valid {
		logger.WithContext(ctx).Info("invoice rejected by registry", "invoice_id", invoice.ID, "reason", result.Message)
		return nil, verificationFailed(result.Message, nil)
	}

	if err := statemachine.NewInvoiceFSM(invoice).Verify(ctx); err != nil {
		return nil, ErrAlreadyProcessed.WithMessage("%v", err)
	}
	now := time.Now().UTC()
	invoice.VerifiedAt = &now
	invoice.VerifiedBy = &operatorID
	if result.Message != "" {
		invoice.VerificationMessage = &result.Message
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		moved, err := s.invoices.TransitionStatus(txCtx, invoice, models.InvoiceStatusPending)
		if err != nil {
			return fmt.Errorf("failed to verify invoice: %w", err)
		}
		if !moved {
			return ErrAlreadyProcessed.WithMessage("invoice %s was processed concurrently", invoice.Number)
		}
		return s.audit.Log(txCtx, operatorID, models.AuditVerify, "invoice", invoice.ID,
			fmt.Sprintf("Verified invoice %s", invoice.Number))
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// Cancel withdraws an invoice that is neither settled nor held by an open payment.
func (s *InvoiceService) Cancel(ctx context.Context, id uint, reason, operatorID string) (*models.Invoice, error) {
	if err := requireOperator(operatorID); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.Validation("a cancellation reason is required")
	}

	var invoice *models.Invoice
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		locked, err := s.invoices.FindByIDsForUpdate(txCtx, []uint{id})
		if err != nil {
			return fmt.Errorf("failed to load invoice: %w", err)
		}
		if len(locked) == 0 {
			return apperrors.NotFound("invoice", id)
		}
		invoice = &locked[0]
		switch invoice.Status {
		case models.InvoiceStatusReimbursed:
			return ErrAlreadyReimbursed.WithMessage("invoice %s is already reimbursed", invoice.Number)
		case models.InvoiceStatusCancelled:
			return ErrAlreadyCancelled.WithMessage("invoice %s is already cancelled", invoice.Number)
		}

		inUse, err := s.payments.FindInvoicesInUse(txCtx, []uint{invoice.ID}, 0)
		if err != nil {
			return fmt.Errorf("failed to check payment links: %w", err)
		}
		if len(inUse) > 0 {
			return ErrInvoiceInUse.WithMessage("invoice %s is linked to an open payment", invoice.Number)
		}

		from := invoice.Status
		if err := statemachine.NewInvoiceFSM(invoice).Cancel(txCtx); err != nil {
			return ErrInvalidState.WithMessage("%v", err)
		}
		invoice.AppendRemark(fmt.Sprintf("Cancelled by %s on %s: %s", operatorID, time.Now().UTC().Format("2006-01-02"), reason))

		moved, err := s.invoices.TransitionStatus(txCtx, invoice, from)
		if err != nil {
			return fmt.Errorf("failed to cancel invoice: %w", err)
		}
		if !moved {
			return apperrors.ErrConcurrencyConflict.WithMessage("invoice %s changed during cancellation", invoice.Number)
		}
		return s.audit.Log(txCtx, operatorID, models.AuditCancel, "invoice", invoice.ID,
			fmt.Sprintf("Cancelled invoice %s: %s", invoice.Number, reason))
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// AttachImage stores a scan of the invoice. A replaced image is removed in
// the background.
func (s *InvoiceService) AttachImage(ctx context.Context, id uint, data []byte, contentType, operatorID string) (*models.Invoice, error) {
	if err := requireOperator(operatorID); err != nil {
		return nil, err
	}
	if _, err := s.invoices.FindByID(ctx, id); err != nil {
		return nil, err
	}

	ref, err := s.blobs.Store(ctx, data, contentType, invoiceImageFolder)
	if err != nil {
		return nil, storeError(err)
	}

	var invoice *models.Invoice
	var previous string
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		invoice, err = s.invoices.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		if invoice.ImageKey != nil {
			previous = *invoice.ImageKey
		}
		invoice.ImageKey = &ref.Key
		invoice.ImageURL = &ref.URL
		if err := s.invoices.SetImage(txCtx, invoice.ID, ref.Key, ref.URL); err != nil {
			return fmt.Errorf("failed to link invoice image: %w", err)
		}
		return s.audit.Log(txCtx, operatorID, models.AuditAttach, "invoice", invoice.ID,
			fmt.Sprintf("Attached %s to invoice %s", ref.Key, invoice.Number))
	})
	if err != nil {
		deleteBlobLater(s.async, s.blobs, ref.Key)
		return nil, err
	}

	deleteBlobLater(s.async, s.blobs, previous)
	return invoice, nil
}

func (s *InvoiceService) Get(ctx context.Context, id uint) (*models.Invoice, error) {
	return s.invoices.FindByID(ctx, id)
}

func (s *InvoiceService) List(ctx context.Context, query *repository.ListQuery) ([]models.Invoice, int64, error) {
	return s.invoices.List(ctx, query)
}
