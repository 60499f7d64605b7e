package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sjperalta/obrafin-api/internal/middleware"
	"github.com/sjperalta/obrafin-api/internal/services"
)

type InvoiceHandler struct {
	invoiceService *services.InvoiceService
}

func NewInvoiceHandler(invoiceService *services.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoiceService: invoiceService}
}

type CancelInvoiceRequest struct {
	Reason string `json:"reason"`
}

// @Summary List Invoices
// @Tags Invoices
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param status query string false "Filter by status"
// @Param project_id query int false "Filter by project"
// @Param supplier_id query int false "Filter by supplier"
// @Param number query string false "Filter by invoice number"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /invoices [get]
func (h *InvoiceHandler) Index(c *gin.Context) {
	query := listQuery(c, "status", "project_id", "supplier_id", "number")
	invoices, total, err := h.invoiceService.List(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoices": invoices, "pagination": pagination(query, total)})
}

// @Summary Get Invoice
// @Tags Invoices
// @Produce json
// @Param invoice_id path int true "Invoice ID"
// @Success 200 {object} models.Invoice
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /invoices/{invoice_id} [get]
func (h *InvoiceHandler) Show(c *gin.Context) {
	id, ok := pathID(c, "invoice_id")
	if !ok {
		return
	}
	invoice, err := h.invoiceService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoice": invoice})
}

// @Summary Create Invoice
// @Description Register a supplier invoice. Tax and total are derived from amount and tax_rate.
// @Tags Invoices
// @Accept json
// @Produce json
// @Param request body services.CreateInvoiceInput true "Invoice"
// @Success 201 {object} models.Invoice
// @Failure 409 {object} map[string]string "DUPLICATE_INVOICE_NUMBER or SUPPLIER_BLACKLISTED"
// @Security BearerAuth
// @Router /invoices [post]
func (h *InvoiceHandler) Create(c *gin.Context) {
	var input services.CreateInvoiceInput
	if err := BindNestedOrFlat(c, "invoice", &input); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	invoice, err := h.invoiceService.Create(c.Request.Context(), input, middleware.GetOperatorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"invoice": invoice})
}

// @Summary Verify Invoice
// @Description Check a pending invoice against the invoice registry
// @Tags Invoices
// @Produce json
// @Param invoice_id path int true "Invoice ID"
// @Success 200 {object} models.Invoice
// @Failure 409 {object} map[string]string "ALREADY_PROCESSED"
// @Failure 422 {object} map[string]string "VERIFICATION_FAILED"
// @Failure 502 {object} map[string]string "registry unavailable"
// @Security BearerAuth
// @Router /invoices/{invoice_id}/verify [post]
func (h *InvoiceHandler) Verify(c *gin.Context) {
	id, ok := pathID(c, "invoice_id")
	if !ok {
		return
	}
	invoice, err := h.invoiceService.Verify(c.Request.Context(), id, middleware.GetOperatorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoice": invoice})
}

// @Summary Cancel Invoice
// @Tags Invoices
// @Accept json
// @Produce json
// @Param invoice_id path int true "Invoice ID"
// @Param request body CancelInvoiceRequest true "Reason"
// @Success 200 {object} models.Invoice
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /invoices/{invoice_id}/cancel [post]
func (h *InvoiceHandler) Cancel(c *gin.Context) {
	id, ok := pathID(c, "invoice_id")
	if !ok {
		return
	}
	var req CancelInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	invoice, err := h.invoiceService.Cancel(c.Request.Context(), id, req.Reason, middleware.GetOperatorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoice": invoice})
}

// @Summary Upload Invoice Image
// @Tags Invoices
// @Accept multipart/form-data
// @Produce json
// @Param invoice_id path int true "Invoice ID"
// @Param file formData file true "Scan (pdf, jpeg, png)"
// @Success 200 {object} models.Invoice
// @Security BearerAuth
// @Router /invoices/{invoice_id}/image [post]
func (h *InvoiceHandler) AttachImage(c *gin.Context) {
	id, ok := pathID(c, "invoice_id")
	if !ok {
		return
	}
	data, contentType, ok := readUpload(c)
	if !ok {
		return
	}
	invoice, err := h.invoiceService.AttachImage(c.Request.Context(), id, data, contentType, middleware.GetOperatorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoice": invoice})
}
