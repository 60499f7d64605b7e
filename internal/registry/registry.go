package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sjperalta/obrafin-api/internal/apperrors"
)

// Request is what the tax registry needs to validate an invoice.
type Request struct {
	Number        string          `json:"number"`
	Amount        decimal.Decimal `json:"amount"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	IssueDate     time.Time       `json:"-"`
	SupplierID    uint            `json:"supplier_id"`
	SupplierTaxID string          `json:"supplier_tax_id,omitempty"`
}

// Result is the registry's verdict.
type Result struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

// HTTPValidator asks a remote tax registry to validate invoices.
type HTTPValidator struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPValidator creates a validator posting to baseURL + "/invoices/validate".
func NewHTTPValidator(baseURL, apiKey string, timeout time.Duration) *HTTPValidator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPValidator{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type wireRequest struct {
	Request
	IssueDate string `json:"issue_date"`
}

// Validate returns the registry verdict. Transport failures and unexpected
// responses are ExternalService errors; a 422 carries a negative verdict.
func (v *HTTPValidator) Validate(ctx context.Context, req Request) (Result, error) {
	body, err := json.Marshal(wireRequest{Request: req, IssueDate: req.IssueDate.Format("2006-01-02")})
	if err != nil {
		return Result{}, fmt.Errorf("encode registry request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/invoices/validate", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build registry request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if v.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+v.apiKey)
	}

	resp, err := v.client.Do(httpReq)
	if err != nil {
		return Result{}, apperrors.ErrExternalService.WithMessage("invoice registry unreachable").Wrap(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusUnprocessableEntity {
		io.Copy(io.Discard, resp.Body)
		return Result{}, apperrors.ErrExternalService.WithMessage("invoice registry returned status %d", resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&result); err != nil {
		return Result{}, apperrors.ErrExternalService.WithMessage("invoice registry sent an unreadable response").Wrap(err)
	}
	if resp.StatusCode == http.StatusUnprocessableEntity {
		result.Valid = false
	}
	return result, nil
}

var invoiceNumberPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9\-/]{2,49}$`)

// LocalValidator checks invoices offline when no registry is configured: the
// number must be well formed, the amount positive, and the tax rate one of
// the rates in force.
type LocalValidator struct {
	rates []decimal.Decimal
}

func NewLocalValidator(rates []decimal.Decimal) *LocalValidator {
	return &LocalValidator{rates: rates}
}

func (v *LocalValidator) Validate(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if !invoiceNumberPattern.MatchString(req.Number) {
		return Result{Valid: false, Message: "invoice number is not well formed"}, nil
	}
	if !req.Amount.IsPositive() {
		return Result{Valid: false, Message: "amount must be positive"}, nil
	}
	if req.IssueDate.After(time.Now().Add(24 * time.Hour)) {
		return Result{Valid: false, Message: "issue date is in the future"}, nil
	}
	for _, rate := range v.rates {
		if rate.Equal(req.TaxRate) {
			return Result{Valid: true}, nil
		}
	}
	return Result{Valid: false, Message: fmt.Sprintf("tax rate %s%% is not recognised", req.TaxRate.String())}, nil
}
