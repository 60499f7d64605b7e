package models

import "time"

// Supplier is the read side of the supplier directory.
type Supplier struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Name            string    `gorm:"size:200;not null" json:"name"`
	TaxID           string    `gorm:"size:50;index" json:"tax_id"`
	IsBlacklisted   bool      `gorm:"not null;default:false" json:"is_blacklisted"`
	BlacklistReason string    `gorm:"type:text" json:"blacklist_reason,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName specifies the table name for Supplier
func (Supplier) TableName() string {
	return "suppliers"
}
