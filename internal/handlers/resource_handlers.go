package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sjperalta/obrafin-api/internal/services"
)

type ReportHandler struct {
	reportService *services.ReportService
}

func NewReportHandler(reportService *services.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

// @Summary Finance Overview
// @Description Cost, payment and invoice rollups for the same filter
// @Tags Reports
// @Produce json
// @Param project_id query int false "Project"
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD), inclusive"
// @Success 200 {object} models.Overview
// @Security BearerAuth
// @Router /reports/overview [get]
func (h *ReportHandler) Overview(c *gin.Context) {
	filter, err := reportFilter(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	overview, err := h.reportService.Overview(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}

// @Summary Summary Report
// @Description Per-type totals and shares of costs, payments or invoices
// @Tags Reports
// @Produce json
// @Param kind path string true "costs, payments or invoices"
// @Param project_id query int false "Project"
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD), inclusive"
// @Success 200 {object} models.Rollup
// @Security BearerAuth
// @Router /reports/{kind}/summary [get]
func (h *ReportHandler) Summary(c *gin.Context) {
	filter, err := reportFilter(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	var rollup interface{}
	switch c.Param("kind") {
	case services.ReportCosts:
		rollup, err = h.reportService.CostSummary(ctx, filter)
	case services.ReportPayments:
		rollup, err = h.reportService.PaymentSummary(ctx, filter)
	case services.ReportInvoices:
		rollup, err = h.reportService.InvoiceSummary(ctx, filter)
	default:
		badRequest(c, "unknown report "+c.Param("kind"))
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rollup)
}

// @Summary Trend Report
// @Description Totals bucketed by day, month or year
// @Tags Reports
// @Produce json
// @Param kind path string true "costs, payments or invoices"
// @Param granularity query string false "day, month or year" default(month)
// @Param project_id query int false "Project"
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD), inclusive"
// @Success 200 {array} models.TrendPoint
// @Security BearerAuth
// @Router /reports/{kind}/trend [get]
func (h *ReportHandler) Trend(c *gin.Context) {
	filter, err := reportFilter(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	granularity := c.DefaultQuery("granularity", services.GranularityMonth)
	points, err := h.reportService.Trend(c.Request.Context(), c.Param("kind"), granularity, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"granularity": granularity, "points": points})
}

// @Summary Budget Utilization
// @Description Consumption of every approved budget
// @Tags Reports
// @Produce json
// @Param project_id query int false "Project"
// @Success 200 {array} models.BudgetUtilization
// @Security BearerAuth
// @Router /reports/budgets/utilization [get]
func (h *ReportHandler) BudgetUtilization(c *gin.Context) {
	filter, err := reportFilter(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	rows, err := h.reportService.BudgetUtilization(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"budgets": rows})
}

type AuditHandler struct {
	auditService *services.AuditService
}

func NewAuditHandler(auditService *services.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

// @Summary List Audit Logs
// @Description Get a paginated list of system audit logs
// @Tags Audit
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(50)
// @Param entity query string false "Entity (budget, cost_entry, invoice, payment)"
// @Param entity_id query int false "Entity ID"
// @Param operator_id query string false "Operator"
// @Param action query string false "Action"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /audits [get]
func (h *AuditHandler) Index(c *gin.Context) {
	query := listQuery(c, "entity", "entity_id", "operator_id", "action")
	if c.Query("per_page") == "" {
		query.PerPage = 50
	}
	logs, total, err := h.auditService.List(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"audits": logs, "pagination": pagination(query, total)})
}
