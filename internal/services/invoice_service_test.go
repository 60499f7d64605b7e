package services

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sjperalta/obrafin-api/internal/apperrors"
	"github.com/sjperalta/obrafin-api/internal/models"
	"github.com/sjperalta/obrafin-api/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func invoiceInput(supplierID uint, number string) CreateInvoiceInput {
	return CreateInvoiceInput{
		Number:     number,
		SupplierID: supplierID,
		ProjectID:  1,
		Type:       models.InvoiceTypeMaterial,
		IssueDate:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Amount:     dec("1000"),
		TaxRate:    dec("13"),
	}
}

func TestInvoiceCreate_DerivesTax(t *testing.T) {
	f := newFixture(t)
	supplier := f.supplier(t, false)

	invoice, err := f.svc.Invoice.Create(f.ctx, invoiceInput(supplier.ID, "F-1"), operator)
	require.NoError(t, err)

	assertDecimal(t, "130.00", invoice.TaxAmount)
	assertDecimal(t, "1130.00", invoice.TotalAmount)
	assert.Equal(t, models.InvoiceStatusPending, invoice.Status)
	assert.Equal(t, "USD", invoice.Currency)
	assert.Regexp(t, `^INV-\d{8}-[0-9A-F]{8}$`, invoice.Code)

	stored := f.invoice(t, invoice.ID)
	assertDecimal(t, "1130", stored.TotalAmount)
	assert.Equal(t, int64(1), f.auditCount(t, "invoice", invoice.ID, models.AuditCreate))
}

func TestInvoiceCreate_Rejections(t *testing.T) {
	f := newFixture(t)
	supplier := f.supplier(t, false)
	blacklisted := f.supplier(t, true)
	_, err := f.svc.Invoice.Create(f.ctx, invoiceInput(supplier.ID, "F-1"), operator)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*CreateInvoiceInput)
		want   error
	}{
		{name: "duplicate number", mutate: func(in *CreateInvoiceInput) {}, want: ErrDuplicateInvoiceNumber},
		{name: "blacklisted supplier", mutate: func(in *CreateInvoiceInput) { in.SupplierID = blacklisted.ID }, want: ErrSupplierBlacklisted},
		{name: "unknown supplier", mutate: func(in *CreateInvoiceInput) { in.SupplierID = 999 }, want: apperrors.ErrNotFound},
		{name: "tax rate above 100", mutate: func(in *CreateInvoiceInput) { in.Number = "F-2"; in.TaxRate = dec("101") }, want: apperrors.ErrValidation},
		{name: "zero amount", mutate: func(in *CreateInvoiceInput) { in.Number = "F-3"; in.Amount = dec("0") }, want: apperrors.ErrValidation},
		{name: "fractional cents", mutate: func(in *CreateInvoiceInput) { in.Number = "F-4"; in.Amount = dec("10.005") }, want: apperrors.ErrValidation},
		{name: "missing issue date", mutate: func(in *CreateInvoiceInput) { in.Number = "F-5"; in.IssueDate = time.Time{} }, want: apperrors.ErrValidation},
		{name: "unknown type", mutate: func(in *CreateInvoiceInput) { in.Number = "F-6"; in.Type = "food" }, want: apperrors.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := invoiceInput(supplier.ID, "F-1")
			tt.mutate(&in)
			_, err := f.svc.Invoice.Create(f.ctx, in, operator)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestInvoiceCreate_SameNumberOtherSupplier(t *testing.T) {
	f := newFixture(t)
	first := f.supplier(t, false)
	second := f.supplier(t, false)

	_, err := f.svc.Invoice.Create(f.ctx, invoiceInput(first.ID, "F-1"), operator)
	require.NoError(t, err)
	_, err = f.svc.Invoice.Create(f.ctx, invoiceInput(second.ID, "F-1"), operator)
	assert.NoError(t, err)
}

func TestInvoiceVerify_Mismatch(t *testing.T) {
	f := newFixture(t)
	supplier := f.supplier(t, false)
	invoice := f.pendingInvoice(t, supplier.ID, "1000", "13")
	f.validator.result = registry.Result{Valid: false, Message: "mismatch"}

	_, err := f.svc.Invoice.Verify(f.ctx, invoice.ID, operator)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrVerificationFailed)
	assert.Equal(t, "mismatch", err.Error())
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	assert.Equal(t, models.InvoiceStatusPending, f.invoice(t, invoice.ID).Status)
	assert.Nil(t, f.invoice(t, invoice.ID).VerificationMessage)
}

func TestInvoiceVerify_RegistryUnavailable(t *testing.T) {
	f := newFixture(t)
	supplier := f.supplier(t, false)
	invoice := f.pendingInvoice(t, supplier.ID, "1000", "13")
	outage := errors.New("connection refused")
	f.validator.err = outage

	_, err := f.svc.Invoice.Verify(f.ctx, invoice.ID, operator)

	assert.ErrorIs(t, err, ErrVerificationFailed)
	assert.ErrorIs(t, err, outage)
	assert.Equal(t, apperrors.KindExternalService, apperrors.KindOf(err))
	assert.Equal(t, models.InvoiceStatusPending, f.invoice(t, invoice.ID).Status)
}

func TestInvoiceVerify_Success(t *testing.T) {
	f := newFixture(t)
	supplier := f.supplier(t, false)
	invoice := f.pendingInvoice(t, supplier.ID, "1000", "13")

	verified, err := f.svc.Invoice.Verify(f.ctx, invoice.ID, operator)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusVerified, verified.Status)

	stored := f.invoice(t, invoice.ID)
	assert.Equal(t, models.InvoiceStatusVerified, stored.Status)
	require.NotNil(t, stored.VerifiedBy)
	assert.Equal(t, operator, *stored.VerifiedBy)
	assert.NotNil(t, stored.VerifiedAt)

	require.Len(t, f.validator.calls, 1)
	call := f.validator.calls[0]
	assert.Equal(t, invoice.Number, call.Number)
	assert.Equal(t, supplier.TaxID, call.SupplierTaxID)
	assertDecimal(t, "1000", call.Amount)

	_, err = f.svc.Invoice.Verify(f.ctx, invoice.ID, operator)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
	assert.Len(t, f.validator.calls, 1)
}

func TestInvoiceCancel(t *testing.T) {
	f := newFixture(t)
	supplier := f.supplier(t, false)
	invoice := f.verifiedInvoice(t, supplier.ID, "1000", "13")

	_, err := f.svc.Invoice.Cancel(f.ctx, invoice.ID, "  ", operator)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	cancelled, err := f.svc.Invoice.Cancel(f.ctx, invoice.ID, "duplicate scan", operator)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusCancelled, cancelled.Status)

	stored := f.invoice(t, invoice.ID)
	assert.Equal(t, models.InvoiceStatusCancelled, stored.Status)
	assert.True(t, strings.HasSuffix(stored.Remarks, ": duplicate scan"), stored.Remarks)
	assert.Contains(t, stored.Remarks, "Cancelled by "+operator)

	_, err = f.svc.Invoice.Cancel(f.ctx, invoice.ID, "again", operator)
	assert.ErrorIs(t, err, ErrAlreadyCancelled)

	_, err = f.svc.Invoice.Verify(f.ctx, invoice.ID, operator)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
}

func TestInvoiceCancel_KeepsExistingRemarks(t *testing.T) {
	f := newFixture(t)
	supplier := f.supplier(t, false)
	in := invoiceInput(supplier.ID, "F-9")
	in.Remarks = "delivered to site B"
	invoice, err := f.svc.Invoice.Create(f.ctx, in, operator)
	require.NoError(t, err)

	_, err = f.svc.Invoice.Cancel(f.ctx, invoice.ID, "wrong project", operator)
	require.NoError(t, err)

	lines := strings.Split(f.invoice(t, invoice.ID).Remarks, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "delivered to site B", lines[0])
}

func TestInvoiceCancel_LinkedToOpenPayment(t *testing.T) {
	f := newFixture(t)
	supplier := f.supplier(t, false)
	invoice := f.verifiedInvoice(t, supplier.ID, "1000", "13")
	_, err := f.svc.Payment.Create(f.ctx, paymentInput(supplier.ID, "500", invoice.ID), operator)
	require.NoError(t, err)

	_, err = f.svc.Invoice.Cancel(f.ctx, invoice.ID, "supplier withdrew", operator)

	assert.ErrorIs(t, err, ErrInvoiceInUse)
	assert.Equal(t, models.InvoiceStatusVerified, f.invoice(t, invoice.ID).Status)
}

func TestInvoiceCancel_Reimbursed(t *testing.T) {
	f := newFixture(t)
	supplier := f.supplier(t, false)
	invoice := f.verifiedInvoice(t, supplier.ID, "1000", "13")
	f.paidPayment(t, supplier.ID, "1130", invoice.ID)

	_, err := f.svc.Invoice.Cancel(f.ctx, invoice.ID, "late", operator)
	assert.ErrorIs(t, err, ErrAlreadyReimbursed)
}

func TestInvoiceAttachImage(t *testing.T) {
	f := newFixture(t)
	supplier := f.supplier(t, false)
	invoice := f.pendingInvoice(t, supplier.ID, "1000", "13")

	updated, err := f.svc.Invoice.AttachImage(f.ctx, invoice.ID, []byte("%PDF-1.4"), "application/pdf", operator)
	require.NoError(t, err)
	require.NotNil(t, updated.ImageURL)

	stored := f.invoice(t, invoice.ID)
	require.NotNil(t, stored.ImageKey)
	assert.Equal(t, []string{*stored.ImageKey}, f.blobs.keys())
	assert.Equal(t, models.InvoiceStatusPending, stored.Status)

	_, err = f.svc.Invoice.AttachImage(f.ctx, invoice.ID, []byte("x"), "text/html", operator)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.svc.Invoice.AttachImage(f.ctx, 404, []byte("x"), "application/pdf", operator)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Len(t, f.blobs.keys(), 1)
}

func TestInvoiceCancel_UnknownInvoice(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Invoice.Cancel(f.ctx, 404, "lost", operator)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
