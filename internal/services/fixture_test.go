package services

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sjperalta/obrafin-api/internal/config"
	"github.com/sjperalta/obrafin-api/internal/database"
	"github.com/sjperalta/obrafin-api/internal/jobs"
	"github.com/sjperalta/obrafin-api/internal/models"
	"github.com/sjperalta/obrafin-api/internal/registry"
	"github.com/sjperalta/obrafin-api/internal/repository"
	"github.com/sjperalta/obrafin-api/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const operator = "op-1"

type stubValidator struct {
	mu     sync.Mutex
	result registry.Result
	err    error
	calls  []registry.Request
}

func (v *stubValidator) Validate(ctx context.Context, req registry.Request) (registry.Result, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls = append(v.calls, req)
	return v.result, v.err
}

type memoryBlobs struct {
	mu    sync.Mutex
	next  int
	blobs map[string][]byte
}

func newMemoryBlobs() *memoryBlobs {
	return &memoryBlobs{blobs: make(map[string][]byte)}
}

func (m *memoryBlobs) Store(ctx context.Context, data []byte, contentType, folder string) (storage.BlobRef, error) {
	if !storage.IsValidContentType(contentType) {
		return storage.BlobRef{}, storage.ErrInvalidContentType
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	key := fmt.Sprintf("%s/%d", folder, m.next)
	m.blobs[key] = data
	return storage.BlobRef{Key: key, URL: "/files/" + key}, nil
}

func (m *memoryBlobs) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

func (m *memoryBlobs) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.blobs))
	for k := range m.blobs {
		keys = append(keys, k)
	}
	return keys
}

type sentEmail struct {
	to      []string
	subject string
	html    string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (m *fakeMailer) Send(ctx context.Context, to []string, subject, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentEmail{to: to, subject: subject, html: html})
	return nil
}

func (m *fakeMailer) messages() []sentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentEmail(nil), m.sent...)
}

type fixture struct {
	ctx       context.Context
	db        *gorm.DB
	repos     *repository.Repositories
	svc       *Services
	validator *stubValidator
	blobs     *memoryBlobs
	mailer    *fakeMailer
	worker    *jobs.Worker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := database.NewTestDB(t)
	repos := repository.NewRepositories(db)
	validator := &stubValidator{result: registry.Result{Valid: true}}
	blobs := newMemoryBlobs()
	mailer := &fakeMailer{}
	worker := jobs.NewWorker(2)
	t.Cleanup(worker.Shutdown)

	cfg := &config.Config{
		BalanceMaxRetries: 5,
		DefaultCurrency:   "USD",
		ApproverEmails:    []string{"approvals@obra.example"},
		AppURL:            "https://obrafin.example/",
	}
	svc := NewServices(Dependencies{
		Repos:     repos,
		Tx:        database.NewTransactionManager(db),
		Blobs:     blobs,
		Validator: validator,
		Async:     worker,
		Mailer:    mailer,
	}, cfg)

	return &fixture{
		ctx:       context.Background(),
		db:        db,
		repos:     repos,
		svc:       svc,
		validator: validator,
		blobs:     blobs,
		mailer:    mailer,
		worker:    worker,
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr[T any](v T) *T {
	return &v
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s", want, got.String())
}

var budgetSeq int

func (f *fixture) draftBudget(t *testing.T, projectID uint, amount string) *models.Budget {
	t.Helper()
	budgetSeq++
	budget, err := f.svc.Budget.Create(f.ctx, CreateBudgetInput{
		Code:       "BUD-" + strconv.Itoa(budgetSeq),
		ProjectID:  projectID,
		FiscalYear: 2024,
		Type:       models.BudgetTypeProject,
		Amount:     dec(amount),
		Items:      []BudgetItemInput{{Name: "Works", Category: "general", PlannedAmount: dec(amount)}},
	}, operator)
	require.NoError(t, err)
	return budget
}

func (f *fixture) approvedBudget(t *testing.T, projectID uint, amount string) *models.Budget {
	t.Helper()
	budget := f.draftBudget(t, projectID, amount)
	_, err := f.svc.Budget.Submit(f.ctx, budget.ID, operator)
	require.NoError(t, err)
	budget, err = f.svc.Budget.Decide(f.ctx, budget.ID, DecisionInput{Decision: models.DecisionApproved}, "approver-1")
	require.NoError(t, err)
	require.Equal(t, models.BudgetStatusApproved, budget.Status)
	return budget
}

func (f *fixture) budget(t *testing.T, id uint) *models.Budget {
	t.Helper()
	budget, err := f.repos.Budget.FindByID(f.ctx, id)
	require.NoError(t, err)
	return budget
}

func (f *fixture) supplier(t *testing.T, blacklisted bool) *models.Supplier {
	t.Helper()
	supplier := &models.Supplier{Name: "Acme Materiales", TaxID: "0614-010190-101-1", IsBlacklisted: blacklisted}
	require.NoError(t, f.repos.Supplier.Create(f.ctx, supplier))
	return supplier
}

var invoiceSeq int

func (f *fixture) pendingInvoice(t *testing.T, supplierID uint, amount, rate string) *models.Invoice {
	t.Helper()
	invoiceSeq++
	invoice, err := f.svc.Invoice.Create(f.ctx, CreateInvoiceInput{
		Number:     fmt.Sprintf("F-%05d", invoiceSeq),
		SupplierID: supplierID,
		ProjectID:  1,
		Type:       models.InvoiceTypeMaterial,
		IssueDate:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Amount:     dec(amount),
		TaxRate:    dec(rate),
	}, operator)
	require.NoError(t, err)
	return invoice
}

func (f *fixture) verifiedInvoice(t *testing.T, supplierID uint, amount, rate string) *models.Invoice {
	t.Helper()
	invoice := f.pendingInvoice(t, supplierID, amount, rate)
	invoice, err := f.svc.Invoice.Verify(f.ctx, invoice.ID, operator)
	require.NoError(t, err)
	return invoice
}

func (f *fixture) invoice(t *testing.T, id uint) *models.Invoice {
	t.Helper()
	invoice, err := f.repos.Invoice.FindByID(f.ctx, id)
	require.NoError(t, err)
	return invoice
}

func (f *fixture) payment(t *testing.T, id uint) *models.Payment {
	t.Helper()
	payment, err := f.repos.Payment.FindByID(f.ctx, id)
	require.NoError(t, err)
	return payment
}

func (f *fixture) auditCount(t *testing.T, entity string, entityID uint, action string) int64 {
	t.Helper()
	query := repository.NewListQuery()
	query.Filters["entity"] = entity
	query.Filters["entity_id"] = strconv.FormatUint(uint64(entityID), 10)
	query.Filters["action"] = action
	_, total, err := f.repos.Audit.List(f.ctx, query)
	require.NoError(t, err)
	return total
}
