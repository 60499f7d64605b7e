package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReportFilter narrows a rollup to a project and an inclusive date range.
type ReportFilter struct {
	ProjectID *uint      `form:"project_id"`
	From      *time.Time `form:"from" time_format:"2006-01-02"`
	To        *time.Time `form:"to" time_format:"2006-01-02"`
}

// AmountRow is the slim projection the rollups are computed from.
type AmountRow struct {
	Type   string
	Amount decimal.Decimal
	Date   time.Time
}

// TypeShare is the contribution of one type to a rollup.
type TypeShare struct {
	Type       string          `json:"type"`
	Total      decimal.Decimal `json:"total"`
	Count      int             `json:"count"`
	Percentage float64         `json:"percentage"`
}

// Rollup is a per-type breakdown of a collection of amounts.
type Rollup struct {
	Total  decimal.Decimal `json:"total"`
	Count  int             `json:"count"`
	ByType []TypeShare     `json:"by_type"`
}

// Overview bundles the three rollups of the finance dashboard.
type Overview struct {
	Costs    Rollup `json:"costs"`
	Payments Rollup `json:"payments"`
	Invoices Rollup `json:"invoices"`
}

// TrendPoint is one time bucket of a trend series.
type TrendPoint struct {
	Period string          `json:"period"`
	Total  decimal.Decimal `json:"total"`
	Count  int             `json:"count"`
}

// BudgetUtilization reports how much of a budget has been consumed.
type BudgetUtilization struct {
	BudgetID   uint            `json:"budget_id"`
	Code       string          `json:"code"`
	ProjectID  uint            `json:"project_id"`
	Amount     decimal.Decimal `json:"amount"`
	UsedAmount decimal.Decimal `json:"used_amount"`
	Remaining  decimal.Decimal `json:"remaining"`
	Percentage float64         `json:"percentage"`
}

// BudgetDrift is a budget whose used amount disagrees with its live cost entries.
type BudgetDrift struct {
	BudgetID   uint            `json:"budget_id"`
	Code       string          `json:"code"`
	UsedAmount decimal.Decimal `json:"used_amount"`
	LiveSum    decimal.Decimal `json:"live_sum"`
	Difference decimal.Decimal `json:"difference"`
	Fixed      bool            `json:"fixed"`
}
