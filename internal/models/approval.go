package models

import (
	"time"
)

// ApprovalRecord is one entry of an append-only decision log.
type ApprovalRecord struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	EntityType string    `gorm:"size:30;not null;uniqueIndex:idx_approval_entity_seq" json:"entity_type"`
	EntityID   uint      `gorm:"not null;uniqueIndex:idx_approval_entity_seq" json:"entity_id"`
	Sequence   int       `gorm:"not null;uniqueIndex:idx_approval_entity_seq" json:"sequence"`
	Approver   string    `gorm:"size:100;not null" json:"approver"`
	Decision   string    `gorm:"size:20;not null" json:"decision"`
	Comment    string    `gorm:"type:text" json:"comment"`
	DecidedAt  time.Time `gorm:"not null" json:"decided_at"`
}

// TableName specifies the table name for ApprovalRecord
func (ApprovalRecord) TableName() string {
	return "approval_records"
}

// Approval decision constants
const (
	DecisionApproved = "approved"
	DecisionRejected = "rejected"
)

// Approvable entity types
const (
	EntityBudget  = "budget"
	EntityPayment = "payment"
)

// IsValidDecision reports whether d is a known decision
func IsValidDecision(d string) bool {
	return d == DecisionApproved || d == DecisionRejected
}

// ApprovalChain is an insertion ordered decision log.
type ApprovalChain []ApprovalRecord

// Latest returns the most recent decision, or nil for an empty chain.
func (c ApprovalChain) Latest() *ApprovalRecord {
	if len(c) == 0 {
		return nil
	}
	latest := &c[0]
	for i := range c {
		if c[i].Sequence > latest.Sequence {
			latest = &c[i]
		}
	}
	return latest
}

// NextSequence returns the sequence number for the next appended record.
func (c ApprovalChain) NextSequence() int {
	if latest := c.Latest(); latest != nil {
		return latest.Sequence + 1
	}
	return 1
}
