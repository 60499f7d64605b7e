package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment settles one or more verified invoices of a single supplier.
type Payment struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Code        string          `gorm:"size:50;not null;uniqueIndex" json:"code"`
	ProjectID   uint            `gorm:"not null;index" json:"project_id"`
	SupplierID  uint            `gorm:"not null;index" json:"supplier_id"`
	Type        string          `gorm:"size:20;not null;index" json:"type"`
	Method      string          `gorm:"size:20;not null" json:"method"`
	Currency    string          `gorm:"size:3;not null" json:"currency"`
	Amount      decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	PlannedDate time.Time       `gorm:"not null;index" json:"planned_date"`
	ActualDate  *time.Time      `gorm:"index" json:"actual_date"`
	Status      string          `gorm:"size:20;not null;default:pending;index" json:"status"`
	Description string          `gorm:"type:text" json:"description"`
	ConfirmedBy *string         `gorm:"size:100" json:"confirmed_by"`
	CreatedBy   string          `gorm:"size:100" json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`

	Invoices  []Invoice        `gorm:"many2many:payment_invoices;" json:"invoices"`
	Approvals []ApprovalRecord `gorm:"-" json:"approvals,omitempty"`
}

// TableName specifies the table name for Payment
func (Payment) TableName() string {
	return "payments"
}

// PaymentInvoice links a payment to one of the invoices it settles.
type PaymentInvoice struct {
	PaymentID uint      `gorm:"primaryKey"`
	InvoiceID uint      `gorm:"primaryKey;index"`
	CreatedAt time.Time
}

// TableName specifies the table name for PaymentInvoice
func (PaymentInvoice) TableName() string {
	return "payment_invoices"
}

// Payment status constants
const (
	PaymentStatusPending  = "pending"
	PaymentStatusApproved = "approved"
	PaymentStatusRejected = "rejected"
	PaymentStatusPaid     = "paid"
)

// Payment type constants
const (
	PaymentTypeAdvance   = "advance"
	PaymentTypeProgress  = "progress"
	PaymentTypeFinal     = "final"
	PaymentTypeRetention = "retention"
	PaymentTypeOther     = "other"
)

// Payment method constants
const (
	PaymentMethodBankTransfer = "bank_transfer"
	PaymentMethodCheck        = "check"
	PaymentMethodCash         = "cash"
	PaymentMethodOther        = "other"
)

// NonTerminalPaymentStatuses hold invoices and block their reuse.
var NonTerminalPaymentStatuses = []string{PaymentStatusPending, PaymentStatusApproved}

// MayAmend returns true if amount, dates or invoices may still change
func (p *Payment) MayAmend() bool {
	return p.Status == PaymentStatusPending
}

// MayDecide returns true if an approver may record a decision
func (p *Payment) MayDecide() bool {
	return p.Status == PaymentStatusPending
}

// MayConfirm returns true if the payment can be settled
func (p *Payment) MayConfirm() bool {
	return p.Status == PaymentStatusApproved
}

// MayResubmit returns true if a rejected payment can re-enter approval
func (p *Payment) MayResubmit() bool {
	return p.Status == PaymentStatusRejected
}

// InvoiceIDs returns the ids of the linked invoices in link order.
func (p *Payment) InvoiceIDs() []uint {
	ids := make([]uint, 0, len(p.Invoices))
	for _, inv := range p.Invoices {
		ids = append(ids, inv.ID)
	}
	return ids
}

// InvoiceTotal sums the total amount of the linked invoices.
func (p *Payment) InvoiceTotal() decimal.Decimal {
	total := decimal.Zero
	for _, inv := range p.Invoices {
		total = total.Add(inv.TotalAmount)
	}
	return total
}
