package handlers

import (
	"github.com/sjperalta/obrafin-api/internal/services"
)

// Handlers holds all handler instances
type Handlers struct {
	Health  *HealthHandler
	Budget  *BudgetHandler
	Cost    *CostHandler
	Invoice *InvoiceHandler
	Job     *JobHandler
	Payment *PaymentHandler
	Report  *ReportHandler
	Audit   *AuditHandler
}

// NewHandlers creates all handler instances
func NewHandlers(svcs *services.Services) *Handlers {
	return &Handlers{
		Health:  NewHealthHandler(),
		Budget:  NewBudgetHandler(svcs.Budget, svcs.Balance),
		Cost:    NewCostHandler(svcs.Balance),
		Invoice: NewInvoiceHandler(svcs.Invoice),
		Job:     NewJobHandler(svcs.Job),
		Payment: NewPaymentHandler(svcs.Payment),
		Report:  NewReportHandler(svcs.Report),
		Audit:   NewAuditHandler(svcs.Audit),
	}
}
