package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sjperalta/obrafin-api/internal/apperrors"
	"github.com/sjperalta/obrafin-api/internal/config"
	"github.com/sjperalta/obrafin-api/internal/database"
	"github.com/sjperalta/obrafin-api/internal/jobs"
	"github.com/sjperalta/obrafin-api/internal/middleware"
	"github.com/sjperalta/obrafin-api/internal/models"
	"github.com/sjperalta/obrafin-api/internal/registry"
	"github.com/sjperalta/obrafin-api/internal/repository"
	"github.com/sjperalta/obrafin-api/internal/services"
	"github.com/sjperalta/obrafin-api/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jwtSecret = "handler-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type stubValidator struct {
	mu     sync.Mutex
	result registry.Result
	err    error
}

func (v *stubValidator) set(result registry.Result, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.result, v.err = result, err
}

func (v *stubValidator) Validate(ctx context.Context, req registry.Request) (registry.Result, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.result, v.err
}

type testServer struct {
	router    *gin.Engine
	repos     *repository.Repositories
	validator *stubValidator
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db := database.NewTestDB(t)
	repos := repository.NewRepositories(db)
	store, err := storage.NewLocalStorage(t.TempDir(), "/files")
	require.NoError(t, err)
	worker := jobs.NewWorker(1)
	t.Cleanup(worker.Shutdown)
	validator := &stubValidator{result: registry.Result{Valid: true}}

	svcs := services.NewServices(services.Dependencies{
		Repos:     repos,
		Tx:        database.NewTransactionManager(db),
		Blobs:     store,
		Validator: validator,
		Async:     worker,
	}, &config.Config{BalanceMaxRetries: 5, DefaultCurrency: "USD"})

	router := gin.New()
	router.Use(middleware.RequestContext())
	RegisterRoutes(router.Group("/api/v1"), NewHandlers(svcs), jwtSecret)
	return &testServer{router: router, repos: repos, validator: validator}
}

func token(t *testing.T, role string) string {
	t.Helper()
	claims := middleware.Claims{
		OperatorID: role + "-1",
		Role:       role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return signed
}

func (s *testServer) do(t *testing.T, role, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, "/api/v1"+path, reader)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, role))
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

// entity returns the object stored under key and its id.
func entity(t *testing.T, w *httptest.ResponseRecorder, key string) (map[string]any, uint) {
	t.Helper()
	obj, ok := decode(t, w)[key].(map[string]any)
	require.True(t, ok, w.Body.String())
	return obj, uint(obj["id"].(float64))
}

func (s *testServer) supplier(t *testing.T) uint {
	t.Helper()
	supplier := &models.Supplier{Name: "Ferretería Central", TaxID: "0801-1990-00001"}
	require.NoError(t, s.repos.Supplier.Create(context.Background(), supplier))
	return supplier.ID
}

func invoiceBody(supplierID uint, number string) gin.H {
	return gin.H{"invoice": gin.H{
		"number":      number,
		"supplier_id": supplierID,
		"project_id":  1,
		"type":        models.InvoiceTypeMaterial,
		"issue_date":  "2024-03-01T00:00:00Z",
		"amount":      "1000.00",
		"tax_rate":    "15",
	}}
}

func TestStatusFor(t *testing.T) {
	outage := errors.New("registry down")
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", apperrors.Validation("bad"), http.StatusBadRequest},
		{"verification failed", services.ErrVerificationFailed.WithMessage("mismatch"), http.StatusUnprocessableEntity},
		{"registry outage", &apperrors.Error{Kind: apperrors.KindExternalService, Code: services.ErrVerificationFailed.Code, Err: outage}, http.StatusBadGateway},
		{"not found", apperrors.NotFound("budget", 1), http.StatusNotFound},
		{"state conflict", services.ErrNotPending, http.StatusConflict},
		{"concurrency", apperrors.ErrConcurrencyConflict, http.StatusConflict},
		{"external", apperrors.ErrExternalService.Wrap(outage), http.StatusBadGateway},
		{"invariant", apperrors.ErrInvariantViolation, http.StatusInternalServerError},
		{"plain", outage, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestRespondError(t *testing.T) {
	t.Run("retryable conflict", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPatch, "/", nil)

		respondError(c, apperrors.ErrConcurrencyConflict)

		assert.Equal(t, http.StatusConflict, w.Code)
		body := decode(t, w)
		assert.Equal(t, "CONCURRENCY_CONFLICT", body["code"])
		assert.Equal(t, true, body["retryable"])
	})

	t.Run("internal details are hidden", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

		respondError(c, fmt.Errorf("dial tcp 10.0.0.5:5432: connection refused"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		body := decode(t, w)
		assert.Equal(t, "internal server error", body["error"])
		assert.NotContains(t, body, "retryable")
	})
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, "", http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "obrafin-api", decode(t, w)["service"])
}

func TestRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/budgets", "/invoices", "/payments", "/reports/overview"} {
		w := s.do(t, "", http.MethodGet, path, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestRoleGuards(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, middleware.RoleViewer, http.MethodPost, "/budgets", gin.H{})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, middleware.RoleFinance, http.MethodPost, "/budgets/1/decision", gin.H{"decision": "approved"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, middleware.RoleFinance, http.MethodGet, "/audits", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, middleware.RoleAdmin, http.MethodGet, "/jobs/status", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	status := decode(t, w)
	assert.EqualValues(t, 1, status["max_concurrent"])
	assert.Equal(t, true, status["healthy"])
	assert.Equal(t, []interface{}{}, status["schedules"])

	w = s.do(t, middleware.RoleViewer, http.MethodGet, "/budgets", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBudgetLifecycle(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, middleware.RoleFinance, http.MethodPost, "/budgets", gin.H{"budget": gin.H{
		"code":        "OB-2024-01",
		"project_id":  7,
		"fiscal_year": 2024,
		"type":        models.BudgetTypeProject,
		"amount":      "5000",
		"items": []gin.H{
			{"name": "Cimentación", "planned_amount": "3000"},
			{"name": "Estructura", "planned_amount": "2000"},
		},
	}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	budget, id := entity(t, w, "budget")
	assert.Equal(t, models.BudgetStatusDraft, budget["status"])

	path := fmt.Sprintf("/budgets/%d", id)
	w = s.do(t, middleware.RoleFinance, http.MethodPost, path+"/decision", gin.H{"decision": "approved"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, middleware.RoleFinance, http.MethodPost, path+"/submit", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, middleware.RoleFinance, http.MethodPatch, path, gin.H{"amount": "6000"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, services.ErrNotEditable.Code, decode(t, w)["code"])

	w = s.do(t, middleware.RoleApprover, http.MethodPost, path+"/decision", gin.H{"decision": "maybe"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, middleware.RoleApprover, http.MethodPost, path+"/decision", gin.H{"decision": "approved", "comment": "ok"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	budget, _ = entity(t, w, "budget")
	assert.Equal(t, models.BudgetStatusApproved, budget["status"])

	w = s.do(t, middleware.RoleViewer, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, middleware.RoleViewer, http.MethodGet, "/budgets/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, middleware.RoleViewer, http.MethodGet, "/budgets/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, middleware.RoleAdmin, http.MethodGet, "/audits?entity=budget", nil)
	require.Equal(t, http.StatusOK, w.Code)
	pagination := decode(t, w)["pagination"].(map[string]any)
	assert.EqualValues(t, 50, pagination["per_page"])
	assert.EqualValues(t, 3, pagination["total"])
}

func TestInvoiceVerifyStatuses(t *testing.T) {
	s := newTestServer(t)
	supplierID := s.supplier(t)

	w := s.do(t, middleware.RoleFinance, http.MethodPost, "/invoices", invoiceBody(supplierID, "001-001-01-00000001"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	invoice, id := entity(t, w, "invoice")
	assert.Equal(t, "150", invoice["tax_amount"])
	assert.Equal(t, "1150", invoice["total_amount"])

	w = s.do(t, middleware.RoleFinance, http.MethodPost, "/invoices", invoiceBody(supplierID, "001-001-01-00000001"))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, services.ErrDuplicateInvoiceNumber.Code, decode(t, w)["code"])

	verify := fmt.Sprintf("/invoices/%d/verify", id)

	s.validator.set(registry.Result{Valid: true}, errors.New("connection reset"))
	w = s.do(t, middleware.RoleFinance, http.MethodPost, verify, nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	s.validator.set(registry.Result{Valid: false, Message: "number not registered"}, nil)
	w = s.do(t, middleware.RoleFinance, http.MethodPost, verify, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decode(t, w)
	assert.Equal(t, "VERIFICATION_FAILED", body["code"])
	assert.Equal(t, "number not registered", body["error"])

	s.validator.set(registry.Result{Valid: true}, nil)
	w = s.do(t, middleware.RoleFinance, http.MethodPost, verify, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	invoice, _ = entity(t, w, "invoice")
	assert.Equal(t, models.InvoiceStatusVerified, invoice["status"])

	w = s.do(t, middleware.RoleFinance, http.MethodPost, verify, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestInvoiceCancelAndImage(t *testing.T) {
	s := newTestServer(t)
	supplierID := s.supplier(t)

	w := s.do(t, middleware.RoleFinance, http.MethodPost, "/invoices", invoiceBody(supplierID, "001-001-01-00000002"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	_, id := entity(t, w, "invoice")

	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="scan.png"`)
	header.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	require.NoError(t, png.Encode(part, image.NewGray(image.Rect(0, 0, 8, 8))))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/invoices/%d/image", id), &form)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token(t, middleware.RoleFinance))
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	invoice, _ := entity(t, w, "invoice")
	assert.NotEmpty(t, invoice["image_url"])

	w = s.do(t, middleware.RoleFinance, http.MethodPost, fmt.Sprintf("/invoices/%d/image", id), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	cancel := fmt.Sprintf("/invoices/%d/cancel", id)
	w = s.do(t, middleware.RoleFinance, http.MethodPost, cancel, gin.H{"reason": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, middleware.RoleFinance, http.MethodPost, cancel, gin.H{"reason": "duplicated by supplier"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	invoice, _ = entity(t, w, "invoice")
	assert.Equal(t, models.InvoiceStatusCancelled, invoice["status"])
}

func TestPaymentSettlement(t *testing.T) {
	s := newTestServer(t)
	supplierID := s.supplier(t)

	w := s.do(t, middleware.RoleFinance, http.MethodPost, "/invoices", invoiceBody(supplierID, "001-001-01-00000003"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	_, invoiceID := entity(t, w, "invoice")
	w = s.do(t, middleware.RoleFinance, http.MethodPost, fmt.Sprintf("/invoices/%d/verify", invoiceID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	paymentBody := func(amount string) gin.H {
		return gin.H{"payment": gin.H{
			"project_id":   1,
			"supplier_id":  supplierID,
			"type":         models.PaymentTypeProgress,
			"method":       models.PaymentMethodBankTransfer,
			"amount":       amount,
			"planned_date": "2024-04-15T00:00:00Z",
			"invoice_ids":  []uint{invoiceID},
		}}
	}

	w = s.do(t, middleware.RoleFinance, http.MethodPost, "/payments", paymentBody("1150.01"))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, services.ErrAmountExceedsInvoices.Code, decode(t, w)["code"])

	w = s.do(t, middleware.RoleFinance, http.MethodPost, "/payments", paymentBody("1150"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	_, paymentID := entity(t, w, "payment")
	path := fmt.Sprintf("/payments/%d", paymentID)

	w = s.do(t, middleware.RoleFinance, http.MethodPost, path+"/confirm", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, services.ErrNotApproved.Code, decode(t, w)["code"])

	w = s.do(t, middleware.RoleApprover, http.MethodPost, path+"/decision", gin.H{"decision": "approved"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, middleware.RoleFinance, http.MethodPost, path+"/confirm", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	payment, _ := entity(t, w, "payment")
	assert.Equal(t, models.PaymentStatusPaid, payment["status"])

	w = s.do(t, middleware.RoleViewer, http.MethodGet, fmt.Sprintf("/invoices/%d", invoiceID), nil)
	invoice, _ := entity(t, w, "invoice")
	assert.Equal(t, models.InvoiceStatusReimbursed, invoice["status"])

	w = s.do(t, middleware.RoleViewer, http.MethodGet, "/reports/payments/summary", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, middleware.RoleViewer, http.MethodGet, "/reports/payments/trend?granularity=week", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, middleware.RoleViewer, http.MethodGet, "/reports/lots/summary", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
