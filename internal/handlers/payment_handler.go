package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sjperalta/obrafin-api/internal/middleware"
	"github.com/sjperalta/obrafin-api/internal/services"
)

type PaymentHandler struct {
	paymentService *services.PaymentService
}

func NewPaymentHandler(paymentService *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// @Summary List Payments
// @Description Get a paginated list of payments
// @Tags Payments
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param status query string false "Filter by status"
// @Param project_id query int false "Filter by project"
// @Param supplier_id query int false "Filter by supplier"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /payments [get]
func (h *PaymentHandler) Index(c *gin.Context) {
	query := listQuery(c, "status", "project_id", "supplier_id")
	payments, total, err := h.paymentService.List(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments, "pagination": pagination(query, total)})
}

// @Summary Get Payment
// @Description Get a payment with its invoices and approval history
// @Tags Payments
// @Produce json
// @Param payment_id path int true "Payment ID"
// @Success 200 {object} models.Payment
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /payments/{payment_id} [get]
func (h *PaymentHandler) Show(c *gin.Context) {
	id, ok := pathID(c, "payment_id")
	if !ok {
		return
	}
	payment, err := h.paymentService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": payment})
}

// @Summary Create Payment
// @Description Create a pending payment against verified invoices of one supplier. The amount may not exceed the invoices' total.
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body services.CreatePaymentInput true "Payment"
// @Success 201 {object} models.Payment
// @Failure 409 {object} map[string]string "AMOUNT_EXCEEDS_INVOICES, INVOICE_NOT_VERIFIED or INVOICE_IN_USE"
// @Security BearerAuth
// @Router /payments [post]
func (h *PaymentHandler) Create(c *gin.Context) {
	var input services.CreatePaymentInput
	if err := BindNestedOrFlat(c, "payment", &input); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	payment, err := h.paymentService.Create(c.Request.Context(), input, middleware.GetOperatorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"payment": payment})
}

// @Summary Amend Payment
// @Description Change a pending payment. Omit invoice_ids to keep the current invoices.
// @Tags Payments
// @Accept json
// @Produce json
// @Param payment_id path int true "Payment ID"
// @Param request body services.AmendPaymentInput true "Changes"
// @Success 200 {object} models.Payment
// @Failure 409 {object} map[string]string "NOT_PENDING"
// @Security BearerAuth
// @Router /payments/{payment_id} [patch]
func (h *PaymentHandler) Amend(c *gin.Context) {
	id, ok := pathID(c, "payment_id")
	if !ok {
		return
	}
	var input services.AmendPaymentInput
	if err := BindNestedOrFlat(c, "payment", &input); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	payment, err := h.paymentService.Amend(c.Request.Context(), id, input, middleware.GetOperatorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": payment})
}

// @Summary Decide Payment
// @Description Approve or reject a pending payment
// @Tags Payments
// @Accept json
// @Produce json
// @Param payment_id path int true "Payment ID"
// @Param request body services.DecisionInput true "Decision"
// @Success 200 {object} models.Payment
// @Failure 409 {object} map[string]string "NOT_PENDING"
// @Security BearerAuth
// @Router /payments/{payment_id}/decision [post]
func (h *PaymentHandler) Decide(c *gin.Context) {
	id, ok := pathID(c, "payment_id")
	if !ok {
		return
	}
	var input services.DecisionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	payment, err := h.paymentService.Approve(c.Request.Context(), id, input, middleware.GetOperatorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": payment})
}

// @Summary Confirm Payment
// @Description Settle an approved payment. Every linked invoice becomes reimbursed, or nothing changes.
// @Tags Payments
// @Accept json
// @Produce json
// @Param payment_id path int true "Payment ID"
// @Param request body services.ConfirmPaymentInput false "Actual payment date"
// @Success 200 {object} models.Payment
// @Failure 409 {object} map[string]string "NOT_APPROVED"
// @Security BearerAuth
// @Router /payments/{payment_id}/confirm [post]
func (h *PaymentHandler) Confirm(c *gin.Context) {
	id, ok := pathID(c, "payment_id")
	if !ok {
		return
	}
	var input services.ConfirmPaymentInput
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}
	payment, err := h.paymentService.Confirm(c.Request.Context(), id, input, middleware.GetOperatorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": payment})
}

// @Summary Resubmit Payment
// @Description Send a rejected payment back for approval, optionally with changes
// @Tags Payments
// @Accept json
// @Produce json
// @Param payment_id path int true "Payment ID"
// @Param request body services.AmendPaymentInput false "Changes"
// @Success 200 {object} models.Payment
// @Security BearerAuth
// @Router /payments/{payment_id}/resubmit [post]
func (h *PaymentHandler) Resubmit(c *gin.Context) {
	id, ok := pathID(c, "payment_id")
	if !ok {
		return
	}
	var input services.AmendPaymentInput
	if c.Request.ContentLength > 0 {
		if err := BindNestedOrFlat(c, "payment", &input); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}
	payment, err := h.paymentService.Resubmit(c.Request.Context(), id, input, middleware.GetOperatorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": payment})
}
