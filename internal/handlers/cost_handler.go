package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sjperalta/obrafin-api/internal/middleware"
	"github.com/sjperalta/obrafin-api/internal/services"
)

type CostHandler struct {
	balanceService *services.BalanceService
}

func NewCostHandler(balanceService *services.BalanceService) *CostHandler {
	return &CostHandler{balanceService: balanceService}
}

// @Summary List Cost Entries
// @Tags Costs
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param project_id query int false "Filter by project"
// @Param budget_id query int false "Filter by budget"
// @Param type query string false "Filter by type"
// @Param supplier_id query int false "Filter by supplier"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /costs [get]
func (h *CostHandler) Index(c *gin.Context) {
	query := listQuery(c, "project_id", "budget_id", "type", "supplier_id")
	entries, total, err := h.balanceService.ListCosts(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"costs": entries, "pagination": pagination(query, total)})
}

// @Summary Get Cost Entry
// @Tags Costs
// @Produce json
// @Param cost_id path int true "Cost entry ID"
// @Success 200 {object} models.CostEntry
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /costs/{cost_id} [get]
func (h *CostHandler) Show(c *gin.Context) {
	id, ok := pathID(c, "cost_id")
	if !ok {
		return
	}
	entry, err := h.balanceService.GetCost(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cost": entry})
}

// @Summary Record Cost
// @Description Record a cost entry. A linked budget must be approved and have room for the amount.
// @Tags Costs
// @Accept json
// @Produce json
// @Param request body services.RecordCostInput true "Cost entry"
// @Success 201 {object} models.CostEntry
// @Failure 409 {object} map[string]string "BUDGET_EXCEEDED or BUDGET_NOT_APPROVED"
// @Security BearerAuth
// @Router /costs [post]
func (h *CostHandler) Create(c *gin.Context) {
	var input services.RecordCostInput
	if err := BindNestedOrFlat(c, "cost", &input); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	entry, err := h.balanceService.RecordCost(c.Request.Context(), input, middleware.GetOperatorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"cost": entry})
}

// @Summary Update Cost
// @Description Change a cost entry. Budget usage is adjusted by the difference.
// @Tags Costs
// @Accept json
// @Produce json
// @Param cost_id path int true "Cost entry ID"
// @Param request body services.UpdateCostInput true "Changes"
// @Success 200 {object} models.CostEntry
// @Security BearerAuth
// @Router /costs/{cost_id} [patch]
func (h *CostHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "cost_id")
	if !ok {
		return
	}
	var input services.UpdateCostInput
	if err := BindNestedOrFlat(c, "cost", &input); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	entry, err := h.balanceService.UpdateCost(c.Request.Context(), id, input, middleware.GetOperatorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cost": entry})
}

// @Summary Delete Cost
// @Description Delete a cost entry and release its amount from the budget
// @Tags Costs
// @Param cost_id path int true "Cost entry ID"
// @Success 204
// @Security BearerAuth
// @Router /costs/{cost_id} [delete]
func (h *CostHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "cost_id")
	if !ok {
		return
	}
	if err := h.balanceService.DeleteCost(c.Request.Context(), id, middleware.GetOperatorID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary Attach Cost File
// @Description Upload a receipt or delivery note for a cost entry
// @Tags Costs
// @Accept multipart/form-data
// @Produce json
// @Param cost_id path int true "Cost entry ID"
// @Param file formData file true "Attachment (pdf, jpeg, png)"
// @Success 200 {object} models.CostEntry
// @Security BearerAuth
// @Router /costs/{cost_id}/attachment [post]
func (h *CostHandler) Attach(c *gin.Context) {
	id, ok := pathID(c, "cost_id")
	if !ok {
		return
	}
	data, contentType, ok := readUpload(c)
	if !ok {
		return
	}
	entry, err := h.balanceService.AttachCostFile(c.Request.Context(), id, data, contentType, middleware.GetOperatorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cost": entry})
}
