package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Invoice is a supplier invoice awaiting registry verification and settlement.
type Invoice struct {
	ID                  uint            `gorm:"primaryKey" json:"id"`
	Code                string          `gorm:"size:50;not null;uniqueIndex" json:"code"`
	Number              string          `gorm:"size:100;not null;uniqueIndex:idx_invoice_supplier_number" json:"number"`
	SupplierID          uint            `gorm:"not null;uniqueIndex:idx_invoice_supplier_number;index" json:"supplier_id"`
	ProjectID           uint            `gorm:"not null;index" json:"project_id"`
	Type                string          `gorm:"size:20;not null;index" json:"type"`
	IssueDate           time.Time       `gorm:"not null;index" json:"issue_date"`
	Currency            string          `gorm:"size:3;not null" json:"currency"`
	Amount              decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	TaxRate             decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"tax_rate"`
	TaxAmount           decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"tax_amount"`
	TotalAmount         decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"total_amount"`
	Status              string          `gorm:"size:20;not null;default:pending;index" json:"status"`
	Remarks             string          `gorm:"type:text" json:"remarks"`
	VerifiedAt          *time.Time      `json:"verified_at"`
	VerifiedBy          *string         `gorm:"size:100" json:"verified_by"`
	VerificationMessage *string         `gorm:"type:text" json:"verification_message,omitempty"`
	ImageKey            *string         `gorm:"size:255" json:"-"`
	ImageURL            *string         `gorm:"size:500" json:"image_url"`
	CreatedBy           string          `gorm:"size:100" json:"created_by"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// TableName specifies the table name for Invoice
func (Invoice) TableName() string {
	return "invoices"
}

// Invoice status constants
const (
	InvoiceStatusPending    = "pending"
	InvoiceStatusVerified   = "verified"
	InvoiceStatusReimbursed = "reimbursed"
	InvoiceStatusCancelled  = "cancelled"
)

// Invoice type constants
const (
	InvoiceTypeMaterial  = "material"
	InvoiceTypeEquipment = "equipment"
	InvoiceTypeLabor     = "labor"
	InvoiceTypeService   = "service"
	InvoiceTypeOther     = "other"
)

// ApplyTax derives TaxAmount and TotalAmount from Amount and TaxRate.
func (i *Invoice) ApplyTax() {
	i.TaxAmount = i.Amount.Mul(i.TaxRate).Div(hundred).Round(2)
	i.TotalAmount = i.Amount.Add(i.TaxAmount)
}

// MayVerify returns true if the invoice awaits registry verification
func (i *Invoice) MayVerify() bool {
	return i.Status == InvoiceStatusPending
}

// MayCancel returns true if the invoice can still be cancelled
func (i *Invoice) MayCancel() bool {
	return i.Status == InvoiceStatusPending || i.Status == InvoiceStatusVerified
}

// MayReimburse returns true if a confirmed payment may consume the invoice
func (i *Invoice) MayReimburse() bool {
	return i.Status == InvoiceStatusVerified
}

// IsTerminal returns true once no further transition is possible
func (i *Invoice) IsTerminal() bool {
	return i.Status == InvoiceStatusReimbursed || i.Status == InvoiceStatusCancelled
}

// AppendRemark adds a line to the remarks without rewriting earlier ones.
func (i *Invoice) AppendRemark(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	if i.Remarks == "" {
		i.Remarks = line
		return
	}
	i.Remarks = i.Remarks + "\n" + line
}
