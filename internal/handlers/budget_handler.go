package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sjperalta/obrafin-api/internal/middleware"
	"github.com/sjperalta/obrafin-api/internal/services"
)

type BudgetHandler struct {
	budgetService  *services.BudgetService
	balanceService *services.BalanceService
}

func NewBudgetHandler(budgetService *services.BudgetService, balanceService *services.BalanceService) *BudgetHandler {
	return &BudgetHandler{budgetService: budgetService, balanceService: balanceService}
}

// @Summary List Budgets
// @Description Get a paginated list of budgets
// @Tags Budgets
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param status query string false "Filter by status"
// @Param project_id query int false "Filter by project"
// @Param fiscal_year query int false "Filter by fiscal year"
// @Param type query string false "Filter by type"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /budgets [get]
func (h *BudgetHandler) Index(c *gin.Context) {
	query := listQuery(c, "status", "project_id", "fiscal_year", "type")
	budgets, total, err := h.budgetService.List(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"budgets": budgets, "pagination": pagination(query, total)})
}

// @Summary Get Budget
// @Description Get a budget with its items and approval history
// @Tags Budgets
// @Produce json
// @Param budget_id path int true "Budget ID"
// @Success 200 {object} models.Budget
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /budgets/{budget_id} [get]
func (h *BudgetHandler) Show(c *gin.Context) {
	id, ok := pathID(c, "budget_id")
	if !ok {
		return
	}
	budget, err := h.budgetService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"budget": budget})
}

// @Summary Create Budget
// @Description Create a draft budget. Item planned amounts must add up to the ceiling.
// @Tags Budgets
// @Accept json
// @Produce json
// @Param request body services.CreateBudgetInput true "Budget"
// @Success 201 {object} models.Budget
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /budgets [post]
func (h *BudgetHandler) Create(c *gin.Context) {
	var input services.CreateBudgetInput
	if err := BindNestedOrFlat(c, "budget", &input); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	budget, err := h.budgetService.Create(c.Request.Context(), input, middleware.GetOperatorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"budget": budget})
}

// @Summary Update Budget
// @Description Change a draft budget. Send expected_version to guard against concurrent edits.
// @Tags Budgets
// @Accept json
// @Produce json
// @Param budget_id path int true "Budget ID"
// @Param request body services.UpdateBudgetInput true "Changes"
// @Success 200 {object} models.Budget
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /budgets/{budget_id} [patch]
func (h *BudgetHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "budget_id")
	if !ok {
		return
	}
	var input services.UpdateBudgetInput
	if err := BindNestedOrFlat(c, "budget", &input); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	budget, err := h.budgetService.Update(c.Request.Context(), id, input, middleware.GetOperatorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"budget": budget})
}

// @Summary Submit Budget
// @Description Send a draft budget for approval
// @Tags Budgets
// @Produce json
// @Param budget_id path int true "Budget ID"
// @Success 200 {object} models.Budget
// @Security BearerAuth
// @Router /budgets/{budget_id}/submit [post]
func (h *BudgetHandler) Submit(c *gin.Context) {
	id, ok := pathID(c, "budget_id")
	if !ok {
		return
	}
	budget, err := h.budgetService.Submit(c.Request.Context(), id, middleware.GetOperatorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"budget": budget})
}

// @Summary Decide Budget
// @Description Approve or reject a pending budget
// @Tags Budgets
// @Accept json
// @Produce json
// @Param budget_id path int true "Budget ID"
// @Param request body services.DecisionInput true "Decision"
// @Success 200 {object} models.Budget
// @Security BearerAuth
// @Router /budgets/{budget_id}/decision [post]
func (h *BudgetHandler) Decide(c *gin.Context) {
	id, ok := pathID(c, "budget_id")
	if !ok {
		return
	}
	var input services.DecisionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	budget, err := h.budgetService.Decide(c.Request.Context(), id, input, middleware.GetOperatorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"budget": budget})
}

// @Summary Revise Budget
// @Description Reopen a rejected budget as a draft
// @Tags Budgets
// @Produce json
// @Param budget_id path int true "Budget ID"
// @Success 200 {object} models.Budget
// @Security BearerAuth
// @Router /budgets/{budget_id}/revise [post]
func (h *BudgetHandler) Revise(c *gin.Context) {
	id, ok := pathID(c, "budget_id")
	if !ok {
		return
	}
	budget, err := h.budgetService.Revise(c.Request.Context(), id, middleware.GetOperatorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"budget": budget})
}

// @Summary Reconcile Budgets
// @Description Compare each approved budget's used amount with its live cost entries. With fix=true drifted budgets are realigned.
// @Tags Budgets
// @Produce json
// @Param fix query bool false "Realign drifted budgets"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /budgets/reconcile [post]
func (h *BudgetHandler) Reconcile(c *gin.Context) {
	fix := c.Query("fix") == "true"
	drifts, err := h.balanceService.ReconcileBudgets(c.Request.Context(), fix, middleware.GetOperatorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"drifts": drifts, "fixed": fix})
}
