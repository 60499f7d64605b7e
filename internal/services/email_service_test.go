package services

import (
	"errors"
	"testing"

	"github.com/sjperalta/obrafin-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApprovalEmail_BudgetSubmit(t *testing.T) {
	f := newFixture(t)
	budget := f.draftBudget(t, 1, "2500")

	f.worker.WaitAsync()
	assert.Empty(t, f.mailer.messages(), "drafts do not notify")

	_, err := f.svc.Budget.Submit(f.ctx, budget.ID, operator)
	require.NoError(t, err)
	f.worker.WaitAsync()

	sent := f.mailer.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"approvals@obra.example"}, sent[0].to)
	assert.Equal(t, "Budget "+budget.Code+" needs approval", sent[0].subject)
	assert.Contains(t, sent[0].html, "2500.00 USD")
	assert.Contains(t, sent[0].html, "https://obrafin.example/budgets/")
}

func TestApprovalEmail_PaymentCreateAndResubmit(t *testing.T) {
	f := newFixture(t)
	supplier := f.supplier(t, false)
	invoice := f.verifiedInvoice(t, supplier.ID, "100", "0")

	payment, err := f.svc.Payment.Create(f.ctx, paymentInput(supplier.ID, "100", invoice.ID), operator)
	require.NoError(t, err)
	// Emails go out on a pool of two, so each one is drained before the next.
	f.worker.WaitAsync()
	require.Len(t, f.mailer.messages(), 1)

	_, err = f.svc.Payment.Approve(f.ctx, payment.ID, DecisionInput{Decision: models.DecisionRejected, Comment: "wrong amount"}, "approver-1")
	require.NoError(t, err)
	_, err = f.svc.Payment.Resubmit(f.ctx, payment.ID, AmendPaymentInput{Amount: ptr(dec("90"))}, operator)
	require.NoError(t, err)
	f.worker.WaitAsync()

	sent := f.mailer.messages()
	require.Len(t, sent, 2)
	assert.Contains(t, sent[0].html, "100.00 USD")
	assert.Contains(t, sent[1].html, "90.00 USD")
	assert.Equal(t, "Payment "+payment.Code+" needs approval", sent[1].subject)
}

func TestApprovalEmail_FailureDoesNotFailRequest(t *testing.T) {
	f := newFixture(t)
	f.mailer.err = errors.New("resend unavailable")
	budget := f.draftBudget(t, 1, "10")

	submitted, err := f.svc.Budget.Submit(f.ctx, budget.ID, operator)
	require.NoError(t, err)
	assert.Equal(t, models.BudgetStatusPending, submitted.Status)

	f.worker.WaitAsync()
	assert.EqualValues(t, 1, f.worker.GetStats().FailedJobs)
}

func TestEmailService_Disabled(t *testing.T) {
	f := newFixture(t)
	mailer := &fakeMailer{}

	NewEmailService(nil, []string{"a@example.com"}, "", nil).NotifyApprovalRequested(f.ctx, ApprovalRequest{Code: "X"})
	NewEmailService(mailer, nil, "", nil).NotifyApprovalRequested(f.ctx, ApprovalRequest{Code: "X"})
	var nilService *EmailService
	nilService.NotifyApprovalRequested(f.ctx, ApprovalRequest{Code: "X"})
	assert.Empty(t, mailer.messages())

	// Without a worker the message goes out inline.
	NewEmailService(mailer, []string{"a@example.com"}, "", nil).
		NotifyApprovalRequested(f.ctx, ApprovalRequest{Entity: models.EntityPayment, Code: "PAY-1", Amount: dec("5")})
	sent := mailer.messages()
	require.Len(t, sent, 1)
	assert.NotContains(t, sent[0].html, "Review it")
}
