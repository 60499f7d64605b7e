package repository

import (
	"context"

	"github.com/sjperalta/obrafin-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PaymentRepository defines payment data access methods
type PaymentRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Payment, error)
	Create(ctx context.Context, payment *models.Payment) error
	UpdateIfStatus(ctx context.Context, payment *models.Payment, from string) (bool, error)
	TransitionStatus(ctx context.Context, payment *models.Payment, from string) (bool, error)
	ReplaceInvoices(ctx context.Context, paymentID uint, invoiceIDs []uint) error
	FindInvoicesInUse(ctx context.Context, invoiceIDs []uint, excludePaymentID uint) ([]uint, error)
	List(ctx context.Context, query *ListQuery) ([]models.Payment, int64, error)
	AmountRows(ctx context.Context, filter models.ReportFilter) ([]models.AmountRow, error)
}

type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) FindByID(ctx context.Context, id uint) (*models.Payment, error) {
	var payment models.Payment
	err := conn(ctx, r.db).
		Preload("Invoices", func(db *gorm.DB) *gorm.DB { return db.Order("invoices.id ASC") }).
		First(&payment, id).Error
	if err != nil {
		return nil, translate(err, "payment", id)
	}
	return &payment, nil
}

// Create inserts the payment and links the invoices already attached to it.
func (r *paymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if err := conn(ctx, r.db).Omit(clause.Associations).Create(payment).Error; err != nil {
		return err
	}
	return r.ReplaceInvoices(ctx, payment.ID, payment.InvoiceIDs())
}

// UpdateIfStatus writes the amendable columns and the status only if the
// stored status still equals from. Invoice links are managed separately.
func (r *paymentRepository) UpdateIfStatus(ctx context.Context, payment *models.Payment, from string) (bool, error) {
	result := conn(ctx, r.db).Model(&models.Payment{}).
		Where("id = ? AND status = ?", payment.ID, from).
		Updates(map[string]interface{}{
			"amount":       payment.Amount,
			"planned_date": payment.PlannedDate,
			"method":       payment.Method,
			"description":  payment.Description,
			"status":       payment.Status,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// TransitionStatus saves payment only if its stored status still equals from.
func (r *paymentRepository) TransitionStatus(ctx context.Context, payment *models.Payment, from string) (bool, error) {
	result := conn(ctx, r.db).Model(&models.Payment{}).
		Where("id = ? AND status = ?", payment.ID, from).
		Updates(map[string]interface{}{
			"status":       payment.Status,
			"actual_date":  payment.ActualDate,
			"confirmed_by": payment.ConfirmedBy,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *paymentRepository) ReplaceInvoices(ctx context.Context, paymentID uint, invoiceIDs []uint) error {
	db := conn(ctx, r.db)
	if err := db.Where("payment_id = ?", paymentID).Delete(&models.PaymentInvoice{}).Error; err != nil {
		return err
	}
	if len(invoiceIDs) == 0 {
		return nil
	}
	links := make([]models.PaymentInvoice, 0, len(invoiceIDs))
	for _, id := range invoiceIDs {
		links = append(links, models.PaymentInvoice{PaymentID: paymentID, InvoiceID: id})
	}
	return db.Create(&links).Error
}

// FindInvoicesInUse returns which of invoiceIDs are linked to a pending or
// approved payment other than excludePaymentID.
func (r *paymentRepository) FindInvoicesInUse(ctx context.Context, invoiceIDs []uint, excludePaymentID uint) ([]uint, error) {
	var inUse []uint
	if len(invoiceIDs) == 0 {
		return inUse, nil
	}
	err := conn(ctx, r.db).Model(&models.PaymentInvoice{}).
		Joins("JOIN payments ON payments.id = payment_invoices.payment_id").
		Where("payment_invoices.invoice_id IN ?", invoiceIDs).
		Where("payments.status IN ?", models.NonTerminalPaymentStatuses).
		Where("payments.id <> ?", excludePaymentID).
		Distinct().
		Pluck("payment_invoices.invoice_id", &inUse).Error
	return inUse, err
}

func (r *paymentRepository) List(ctx context.Context, query *ListQuery) ([]models.Payment, int64, error) {
	var payments []models.Payment
	var total int64

	db := conn(ctx, r.db).Model(&models.Payment{})
	if v := query.Filters["status"]; v != "" {
		db = db.Where("status = ?", v)
	}
	if v := query.Filters["project_id"]; v != "" {
		db = db.Where("project_id = ?", v)
	}
	if v := query.Filters["supplier_id"]; v != "" {
		db = db.Where("supplier_id = ?", v)
	}

	if err := db.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	allowed := map[string]bool{"planned_date": true, "amount": true, "created_at": true}
	err := paginate(db, query, allowed, "planned_date DESC").
		Preload("Invoices").
		Find(&payments).Error
	return payments, total, err
}

// AmountRows projects non-rejected payments. A paid payment is dated by its
// actual date, any other by its planned date.
func (r *paymentRepository) AmountRows(ctx context.Context, filter models.ReportFilter) ([]models.AmountRow, error) {
	var payments []models.Payment
	db := conn(ctx, r.db).Model(&models.Payment{}).
		Select("type", "amount", "planned_date", "actual_date").
		Where("status <> ?", models.PaymentStatusRejected)
	if filter.ProjectID != nil {
		db = db.Where("project_id = ?", *filter.ProjectID)
	}
	if err := db.Find(&payments).Error; err != nil {
		return nil, err
	}

	rows := make([]models.AmountRow, 0, len(payments))
	for _, p := range payments {
		date := p.PlannedDate
		if p.ActualDate != nil {
			date = *p.ActualDate
		}
		if filter.From != nil && date.Before(*filter.From) {
			continue
		}
		if filter.To != nil && date.After(*filter.To) {
			continue
		}
		rows = append(rows, models.AmountRow{Type: p.Type, Amount: p.Amount, Date: date})
	}
	return rows, nil
}
