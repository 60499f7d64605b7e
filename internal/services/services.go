package services

import (
	"github.com/sjperalta/obrafin-api/internal/config"
	"github.com/sjperalta/obrafin-api/internal/database"
	"github.com/sjperalta/obrafin-api/internal/repository"
)

// Services holds all service instances
type Services struct {
	Audit   *AuditService
	Balance *BalanceService
	Budget  *BudgetService
	Email   *EmailService
	Invoice *InvoiceService
	Job     *JobService
	Payment *PaymentService
	Report  *ReportService
}

// Dependencies are the collaborators the services are wired with.
type Dependencies struct {
	Repos     *repository.Repositories
	Tx        database.TransactionManager
	Blobs     BlobStore
	Validator InvoiceValidator
	Async     AsyncRunner
	Mailer    EmailSender // optional, approval emails are skipped without it
}

// NewServices creates all service instances
func NewServices(deps Dependencies, cfg *config.Config) *Services {
	repos := deps.Repos
	auditSvc := NewAuditService(repos.Audit)
	blobs := NewImageService(deps.Blobs, cfg.ImageMaxDimension)
	monitor, _ := deps.Async.(JobMonitor)
	emailSvc := NewEmailService(deps.Mailer, cfg.ApproverEmails, cfg.AppURL, deps.Async)

	return &Services{
		Audit:   auditSvc,
		Balance: NewBalanceService(repos.Budget, repos.Cost, deps.Tx, auditSvc, blobs, deps.Async, cfg.BalanceMaxRetries),
		Budget:  NewBudgetService(repos.Budget, repos.Approval, deps.Tx, auditSvc, emailSvc, cfg.DefaultCurrency),
		Email:   emailSvc,
		Invoice: NewInvoiceService(repos.Invoice, repos.Payment, repos.Supplier, deps.Validator, deps.Tx, auditSvc, blobs, deps.Async, cfg.DefaultCurrency),
		Job:     NewJobService(monitor),
		Payment: NewPaymentService(repos.Payment, repos.Invoice, repos.Approval, deps.Tx, auditSvc, emailSvc, cfg.DefaultCurrency),
		Report:  NewReportService(repos.Cost, repos.Payment, repos.Invoice, repos.Budget),
	}
}
