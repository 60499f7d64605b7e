package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sjperalta/obrafin-api/internal/middleware"
)

// RegisterRoutes mounts the API under v1. Everything except the health
// check requires a bearer token.
func RegisterRoutes(v1 *gin.RouterGroup, h *Handlers, jwtSecret string) {
	// Health check (public)
	v1.GET("/health", h.Health.Index)

	protected := v1.Group("")
	protected.Use(middleware.Auth(jwtSecret))
	{
		// Read access for every operator
		protected.GET("/budgets", h.Budget.Index)
		protected.GET("/budgets/:budget_id", h.Budget.Show)
		protected.GET("/costs", h.Cost.Index)
		protected.GET("/costs/:cost_id", h.Cost.Show)
		protected.GET("/invoices", h.Invoice.Index)
		protected.GET("/invoices/:invoice_id", h.Invoice.Show)
		protected.GET("/payments", h.Payment.Index)
		protected.GET("/payments/:payment_id", h.Payment.Show)

		reports := protected.Group("/reports")
		{
			// Static routes first so "overview" and "budgets" are not matched as :kind
			reports.GET("/overview", h.Report.Overview)
			reports.GET("/budgets/utilization", h.Report.BudgetUtilization)
			reports.GET("/:kind/summary", h.Report.Summary)
			reports.GET("/:kind/trend", h.Report.Trend)
		}

		// Finance operators record and change money movements
		finance := protected.Group("")
		finance.Use(middleware.RequireRole(middleware.RoleFinance))
		{
			finance.POST("/budgets", h.Budget.Create)
			finance.PATCH("/budgets/:budget_id", h.Budget.Update)
			finance.POST("/budgets/:budget_id/submit", h.Budget.Submit)
			finance.POST("/budgets/:budget_id/revise", h.Budget.Revise)

			finance.POST("/costs", h.Cost.Create)
			finance.PATCH("/costs/:cost_id", h.Cost.Update)
			finance.DELETE("/costs/:cost_id", h.Cost.Delete)
			finance.POST("/costs/:cost_id/attachment", h.Cost.Attach)

			finance.POST("/invoices", h.Invoice.Create)
			finance.POST("/invoices/:invoice_id/verify", h.Invoice.Verify)
			finance.POST("/invoices/:invoice_id/cancel", h.Invoice.Cancel)
			finance.POST("/invoices/:invoice_id/image", h.Invoice.AttachImage)

			finance.POST("/payments", h.Payment.Create)
			finance.PATCH("/payments/:payment_id", h.Payment.Amend)
			finance.POST("/payments/:payment_id/confirm", h.Payment.Confirm)
			finance.POST("/payments/:payment_id/resubmit", h.Payment.Resubmit)
		}

		approver := protected.Group("")
		approver.Use(middleware.RequireRole(middleware.RoleApprover))
		{
			approver.POST("/budgets/:budget_id/decision", h.Budget.Decide)
			approver.POST("/payments/:payment_id/decision", h.Payment.Decide)
		}

		// Admin-only routes
		admin := protected.Group("")
		admin.Use(middleware.RequireRole(middleware.RoleAdmin))
		{
			admin.POST("/budgets/reconcile", h.Budget.Reconcile)
			admin.GET("/audits", h.Audit.Index)
			admin.GET("/jobs/status", h.Job.Status)
		}
	}
}
