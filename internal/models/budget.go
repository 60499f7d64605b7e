package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Budget is an approved spending ceiling for a project or department.
// UsedAmount is only ever moved by the balance engine.
type Budget struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	Code       string          `gorm:"size:50;not null;uniqueIndex" json:"code"`
	ProjectID  uint            `gorm:"not null;index" json:"project_id"`
	FiscalYear int             `gorm:"not null;index" json:"fiscal_year"`
	Type       string          `gorm:"size:20;not null" json:"type"`
	Currency   string          `gorm:"size:3;not null" json:"currency"`
	Amount     decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	UsedAmount decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"used_amount"`
	Status     string          `gorm:"size:20;not null;default:draft;index" json:"status"`
	Version    int64           `gorm:"not null;default:1" json:"version"`
	CreatedBy  string          `gorm:"size:100" json:"created_by"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`

	Items     []BudgetItem     `gorm:"foreignKey:BudgetID" json:"items"`
	Approvals []ApprovalRecord `gorm:"-" json:"approvals,omitempty"`
}

// TableName specifies the table name for Budget
func (Budget) TableName() string {
	return "budgets"
}

// BudgetItem is one planned line of a budget.
type BudgetItem struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	BudgetID      uint            `gorm:"not null;index" json:"budget_id"`
	Position      int             `gorm:"not null" json:"position"`
	Name          string          `gorm:"size:200;not null" json:"name"`
	Category      string          `gorm:"size:50" json:"category"`
	PlannedAmount decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"planned_amount"`
	ActualAmount  decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"actual_amount"`
}

// TableName specifies the table name for BudgetItem
func (BudgetItem) TableName() string {
	return "budget_items"
}

// Budget status constants
const (
	BudgetStatusDraft    = "draft"
	BudgetStatusPending  = "pending"
	BudgetStatusApproved = "approved"
	BudgetStatusRejected = "rejected"
)

// Budget type constants
const (
	BudgetTypeProject    = "project"
	BudgetTypeDepartment = "department"
)

// MayEdit returns true if the budget fields and items may be changed
func (b *Budget) MayEdit() bool {
	return b.Status == BudgetStatusDraft
}

// MaySubmit returns true if the budget can be sent for approval
func (b *Budget) MaySubmit() bool {
	return b.Status == BudgetStatusDraft
}

// MayDecide returns true if an approver may record a decision
func (b *Budget) MayDecide() bool {
	return b.Status == BudgetStatusPending
}

// MayRevise returns true if a rejected budget can be reopened for editing
func (b *Budget) MayRevise() bool {
	return b.Status == BudgetStatusRejected
}

// MayConsume returns true if costs may be charged against the budget
func (b *Budget) MayConsume() bool {
	return b.Status == BudgetStatusApproved
}

// Remaining returns the unconsumed part of the ceiling.
func (b *Budget) Remaining() decimal.Decimal {
	return b.Amount.Sub(b.UsedAmount)
}

// PlannedTotal sums the planned amounts of all items.
func (b *Budget) PlannedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range b.Items {
		total = total.Add(item.PlannedAmount)
	}
	return total
}
