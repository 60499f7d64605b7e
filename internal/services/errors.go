package services

import "github.com/sjperalta/obrafin-api/internal/apperrors"

// Business rule rejections. Callers match them with errors.Is.
var (
	ErrBudgetExceeded         = apperrors.New(apperrors.KindStateConflict, "BUDGET_EXCEEDED", "budget ceiling exceeded")
	ErrBudgetNotApproved      = apperrors.New(apperrors.KindStateConflict, "BUDGET_NOT_APPROVED", "budget is not approved")
	ErrNotEditable            = apperrors.New(apperrors.KindStateConflict, "NOT_EDITABLE", "entity can no longer be edited")
	ErrInvalidState           = apperrors.New(apperrors.KindStateConflict, "INVALID_TRANSITION", "invalid state transition")
	ErrDuplicateBudgetCode    = apperrors.New(apperrors.KindStateConflict, "DUPLICATE_BUDGET_CODE", "budget code already exists")
	ErrInvoiceNotVerified     = apperrors.New(apperrors.KindStateConflict, "INVOICE_NOT_VERIFIED", "invoice is not verified")
	ErrAmountExceedsInvoices  = apperrors.New(apperrors.KindStateConflict, "AMOUNT_EXCEEDS_INVOICES", "payment amount exceeds invoice total")
	ErrAlreadyProcessed       = apperrors.New(apperrors.KindStateConflict, "ALREADY_PROCESSED", "invoice was already processed")
	ErrNotPending             = apperrors.New(apperrors.KindStateConflict, "NOT_PENDING", "entity is not pending")
	ErrNotApproved            = apperrors.New(apperrors.KindStateConflict, "NOT_APPROVED", "payment is not approved")
	ErrAlreadyReimbursed      = apperrors.New(apperrors.KindStateConflict, "ALREADY_REIMBURSED", "invoice is already reimbursed")
	ErrAlreadyCancelled       = apperrors.New(apperrors.KindStateConflict, "ALREADY_CANCELLED", "invoice is already cancelled")
	ErrInvoiceInUse           = apperrors.New(apperrors.KindStateConflict, "INVOICE_IN_USE", "invoice is linked to an open payment")
	ErrDuplicateInvoiceNumber = apperrors.New(apperrors.KindStateConflict, "DUPLICATE_INVOICE_NUMBER", "invoice number already exists for supplier")
	ErrSupplierBlacklisted    = apperrors.New(apperrors.KindStateConflict, "SUPPLIER_BLACKLISTED", "supplier is blacklisted")

	ErrInvoiceNotFound = apperrors.New(apperrors.KindNotFound, "INVOICE_NOT_FOUND", "invoice not found for payee")

	ErrVerificationFailed = apperrors.New(apperrors.KindValidation, "VERIFICATION_FAILED", "invoice verification failed")
)

// verificationFailed keeps the registry's reason as the message. Collaborator
// failures are tagged ExternalService so callers know a retry may help.
func verificationFailed(reason string, cause error) *apperrors.Error {
	if reason == "" {
		reason = ErrVerificationFailed.Message
	}
	err := ErrVerificationFailed.WithMessage("%s", reason)
	if cause != nil {
		err.Kind = apperrors.KindExternalService
		err.Err = cause
	}
	return err
}
