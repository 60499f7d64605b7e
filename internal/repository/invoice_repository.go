package repository

import (
	"context"

	"github.com/sjperalta/obrafin-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InvoiceRepository defines invoice data access methods
type InvoiceRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Invoice, error)
	FindByIDs(ctx context.Context, ids []uint) ([]models.Invoice, error)
	FindByIDsForUpdate(ctx context.Context, ids []uint) ([]models.Invoice, error)
	ExistsNumber(ctx context.Context, supplierID uint, number string) (bool, error)
	Create(ctx context.Context, invoice *models.Invoice) error
	TransitionStatus(ctx context.Context, invoice *models.Invoice, from string) (bool, error)
	SetImage(ctx context.Context, id uint, key, url string) error
	List(ctx context.Context, query *ListQuery) ([]models.Invoice, int64, error)
	AmountRows(ctx context.Context, filter models.ReportFilter) ([]models.AmountRow, error)
}

type invoiceRepository struct {
	db *gorm.DB
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

func (r *invoiceRepository) FindByID(ctx context.Context, id uint) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := conn(ctx, r.db).First(&invoice, id).Error; err != nil {
		return nil, translate(err, "invoice", id)
	}
	return &invoice, nil
}

// FindByIDs returns the invoices that exist among ids, ordered by id.
func (r *invoiceRepository) FindByIDs(ctx context.Context, ids []uint) ([]models.Invoice, error) {
	var invoices []models.Invoice
	if len(ids) == 0 {
		return invoices, nil
	}
	err := conn(ctx, r.db).Where("id IN ?", ids).Order("id ASC").Find(&invoices).Error
	return invoices, err
}

// FindByIDsForUpdate is FindByIDs holding row locks until the surrounding
// transaction ends. Rows are locked in id order.
func (r *invoiceRepository) FindByIDsForUpdate(ctx context.Context, ids []uint) ([]models.Invoice, error) {
	var invoices []models.Invoice
	if len(ids) == 0 {
		return invoices, nil
	}
	err := conn(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).Order("id ASC").Find(&invoices).Error
	return invoices, err
}

func (r *invoiceRepository) ExistsNumber(ctx context.Context, supplierID uint, number string) (bool, error) {
	var count int64
	err := conn(ctx, r.db).Model(&models.Invoice{}).
		Where("supplier_id = ? AND number = ?", supplierID, number).
		Count(&count).Error
	return count > 0, err
}

func (r *invoiceRepository) Create(ctx context.Context, invoice *models.Invoice) error {
	return conn(ctx, r.db).Create(invoice).Error
}

// TransitionStatus persists invoice's new status and lifecycle fields only if
// the stored status still equals from. It reports whether the row moved.
func (r *invoiceRepository) TransitionStatus(ctx context.Context, invoice *models.Invoice, from string) (bool, error) {
	result := conn(ctx, r.db).Model(&models.Invoice{}).
		Where("id = ? AND status = ?", invoice.ID, from).
		Updates(map[string]interface{}{
			"status":               invoice.Status,
			"remarks":              invoice.Remarks,
			"verified_at":          invoice.VerifiedAt,
			"verified_by":          invoice.VerifiedBy,
			"verification_message": invoice.VerificationMessage,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// SetImage writes only the image columns so a concurrent status change is kept.
func (r *invoiceRepository) SetImage(ctx context.Context, id uint, key, url string) error {
	return conn(ctx, r.db).Model(&models.Invoice{}).Where("id = ?", id).
		Updates(map[string]interface{}{"image_key": key, "image_url": url}).Error
}

func (r *invoiceRepository) List(ctx context.Context, query *ListQuery) ([]models.Invoice, int64, error) {
	var invoices []models.Invoice
	var total int64

	db := conn(ctx, r.db).Model(&models.Invoice{})
	if v := query.Filters["status"]; v != "" {
		db = db.Where("status = ?", v)
	}
	if v := query.Filters["project_id"]; v != "" {
		db = db.Where("project_id = ?", v)
	}
	if v := query.Filters["supplier_id"]; v != "" {
		db = db.Where("supplier_id = ?", v)
	}
	if v := query.Filters["number"]; v != "" {
		db = db.Where("number = ?", v)
	}

	if err := db.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	allowed := map[string]bool{"issue_date": true, "total_amount": true, "created_at": true}
	err := paginate(db, query, allowed, "issue_date DESC").Find(&invoices).Error
	return invoices, total, err
}

// AmountRows projects non-cancelled invoices by type, total and issue date.
func (r *invoiceRepository) AmountRows(ctx context.Context, filter models.ReportFilter) ([]models.AmountRow, error) {
	var invoices []models.Invoice
	db := conn(ctx, r.db).Model(&models.Invoice{}).
		Select("type", "total_amount", "issue_date").
		Where("status <> ?", models.InvoiceStatusCancelled)
	db = applyReportFilter(db, filter, "issue_date")
	if err := db.Find(&invoices).Error; err != nil {
		return nil, err
	}

	rows := make([]models.AmountRow, 0, len(invoices))
	for _, inv := range invoices {
		rows = append(rows, models.AmountRow{Type: inv.Type, Amount: inv.TotalAmount, Date: inv.IssueDate})
	}
	return rows, nil
}
