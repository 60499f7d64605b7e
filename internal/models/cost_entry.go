package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CostEntry is a single expenditure, optionally drawn against a budget.
type CostEntry struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Code          string          `gorm:"size:50;not null;uniqueIndex" json:"code"`
	ProjectID     uint            `gorm:"not null;index" json:"project_id"`
	BudgetID      *uint           `gorm:"index" json:"budget_id"`
	Type          string          `gorm:"size:20;not null;index" json:"type"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	Date          time.Time       `gorm:"not null;index" json:"date"`
	Item          string          `gorm:"size:200" json:"item"`
	Description   string          `gorm:"type:text" json:"description"`
	SupplierID    *uint           `gorm:"index" json:"supplier_id"`
	AttachmentKey *string         `gorm:"size:255" json:"-"`
	AttachmentURL *string         `gorm:"size:500" json:"attachment_url"`
	CreatedBy     string          `gorm:"size:100" json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	DeletedAt     gorm.DeletedAt  `gorm:"index" json:"-"`
}

// TableName specifies the table name for CostEntry
func (CostEntry) TableName() string {
	return "cost_entries"
}

// Cost type constants
const (
	CostTypeMaterial  = "material"
	CostTypeEquipment = "equipment"
	CostTypeLabor     = "labor"
	CostTypeOther     = "other"
)

// IsCharged returns true if the entry draws against a budget
func (c *CostEntry) IsCharged() bool {
	return c.BudgetID != nil
}
