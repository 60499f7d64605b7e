package models

import (
	"time"
)

// AuditLog represents a system audit entry
type AuditLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	OperatorID string    `gorm:"size:100;not null;index" json:"operator_id"`
	Action     string    `gorm:"size:50;not null" json:"action"` // CREATE, UPDATE, DELETE, APPROVE, CONFIRM
	Entity     string    `gorm:"size:50;not null;index:idx_audit_entity" json:"entity"`
	EntityID   uint      `gorm:"index:idx_audit_entity" json:"entity_id"`
	Details    string    `gorm:"type:text" json:"details"`
	IPAddress  string    `gorm:"size:45" json:"ip_address"`
	UserAgent  string    `gorm:"size:255" json:"user_agent"`
	RequestID  string    `gorm:"size:64" json:"request_id"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for AuditLog
func (AuditLog) TableName() string {
	return "audit_logs"
}

// Audit action constants
const (
	AuditCreate    = "CREATE"
	AuditUpdate    = "UPDATE"
	AuditDelete    = "DELETE"
	AuditSubmit    = "SUBMIT"
	AuditApprove   = "APPROVE"
	AuditReject    = "REJECT"
	AuditVerify    = "VERIFY"
	AuditCancel    = "CANCEL"
	AuditConfirm   = "CONFIRM"
	AuditAttach    = "ATTACH"
	AuditReconcile = "RECONCILE"
)
