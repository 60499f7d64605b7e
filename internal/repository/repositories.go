package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/sjperalta/obrafin-api/internal/apperrors"
	"github.com/sjperalta/obrafin-api/internal/database"
	"gorm.io/gorm"
)

// Repositories holds all repository instances
type Repositories struct {
	Budget   BudgetRepository
	Cost     CostRepository
	Invoice  InvoiceRepository
	Payment  PaymentRepository
	Approval ApprovalRepository
	Supplier SupplierRepository
	Audit    AuditRepository
}

// NewRepositories creates all repository instances
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Budget:   NewBudgetRepository(db),
		Cost:     NewCostRepository(db),
		Invoice:  NewInvoiceRepository(db),
		Payment:  NewPaymentRepository(db),
		Approval: NewApprovalRepository(db),
		Supplier: NewSupplierRepository(db),
		Audit:    NewAuditRepository(db),
	}
}

// ListQuery represents common query parameters
type ListQuery struct {
	Page    int
	PerPage int
	SortBy  string
	SortDir string
	Filters map[string]string
}

// NewListQuery creates a ListQuery with defaults
func NewListQuery() *ListQuery {
	return &ListQuery{
		Page:    1,
		PerPage: 20,
		Filters: make(map[string]string),
	}
}

// paginate applies ordering restricted to allowed columns, then limit/offset.
func paginate(db *gorm.DB, query *ListQuery, allowedSort map[string]bool, defaultOrder string) *gorm.DB {
	order := defaultOrder
	if query.SortBy != "" && allowedSort[query.SortBy] {
		dir := "ASC"
		if strings.EqualFold(query.SortDir, "desc") {
			dir = "DESC"
		}
		order = query.SortBy + " " + dir
	}
	db = db.Order(order)

	perPage := query.PerPage
	if perPage <= 0 || perPage > 100 {
		perPage = 20
	}
	page := query.Page
	if page < 1 {
		page = 1
	}
	return db.Limit(perPage).Offset((page - 1) * perPage)
}

// translate maps gorm's not-found sentinel onto the application taxonomy.
func translate(err error, entity string, id any) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFound(entity, id)
	}
	return err
}

// conn resolves the transaction in ctx, falling back to the root handle.
func conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	return database.GetDB(ctx, db)
}
