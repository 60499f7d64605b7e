package services

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sjperalta/obrafin-api/internal/apperrors"
	"github.com/sjperalta/obrafin-api/internal/models"
	"github.com/sjperalta/obrafin-api/internal/repository"
	"golang.org/x/sync/errgroup"
)

// Report kinds accepted by Trend.
const (
	ReportCosts    = "costs"
	ReportPayments = "payments"
	ReportInvoices = "invoices"
)

// Trend granularities.
const (
	GranularityDay   = "day"
	GranularityMonth = "month"
	GranularityYear  = "year"
)

var bucketLayouts = map[string]string{
	GranularityDay:   "2006-01-02",
	GranularityMonth: "2006-01",
	GranularityYear:  "2006",
}

// ReportService answers read-only rollups over costs, payments and invoices.
type ReportService struct {
	costs    repository.CostRepository
	payments repository.PaymentRepository
	invoices repository.InvoiceRepository
	budgets  repository.BudgetRepository
}

func NewReportService(
	costs repository.CostRepository,
	payments repository.PaymentRepository,
	invoices repository.InvoiceRepository,
	budgets repository.BudgetRepository,
) *ReportService {
	return &ReportService{
		costs:    costs,
		payments: payments,
		invoices: invoices,
		budgets:  budgets,
	}
}

func (s *ReportService) CostSummary(ctx context.Context, filter models.ReportFilter) (models.Rollup, error) {
	return s.summary(ctx, ReportCosts, filter)
}

func (s *ReportService) PaymentSummary(ctx context.Context, filter models.ReportFilter) (models.Rollup, error) {
	return s.summary(ctx, ReportPayments, filter)
}

func (s *ReportService) InvoiceSummary(ctx context.Context, filter models.ReportFilter) (models.Rollup, error) {
	return s.summary(ctx, ReportInvoices, filter)
}

func (s *ReportService) summary(ctx context.Context, kind string, filter models.ReportFilter) (models.Rollup, error) {
	rows, err := s.rows(ctx, kind, filter)
	if err != nil {
		return models.Rollup{}, err
	}
	return Summarize(rows), nil
}

// Overview computes the three summaries concurrently.
func (s *ReportService) Overview(ctx context.Context, filter models.ReportFilter) (*models.Overview, error) {
	var overview models.Overview
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		overview.Costs, err = s.CostSummary(gctx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		overview.Payments, err = s.PaymentSummary(gctx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		overview.Invoices, err = s.InvoiceSummary(gctx, filter)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &overview, nil
}

// Trend buckets a collection by day, month or year.
func (s *ReportService) Trend(ctx context.Context, kind, granularity string, filter models.ReportFilter) ([]models.TrendPoint, error) {
	if _, ok := bucketLayouts[granularity]; !ok {
		return nil, apperrors.Validation("unknown granularity %q", granularity)
	}
	rows, err := s.rows(ctx, kind, filter)
	if err != nil {
		return nil, err
	}
	return BucketTrend(rows, granularity)
}

// BudgetUtilization reports consumption of every approved budget.
func (s *ReportService) BudgetUtilization(ctx context.Context, filter models.ReportFilter) ([]models.BudgetUtilization, error) {
	budgets, err := s.budgets.FindApproved(ctx, filter.ProjectID)
	if err != nil {
		return nil, err
	}

	out := make([]models.BudgetUtilization, 0, len(budgets))
	for _, b := range budgets {
		out = append(out, models.BudgetUtilization{
			BudgetID:   b.ID,
			Code:       b.Code,
			ProjectID:  b.ProjectID,
			Amount:     b.Amount,
			UsedAmount: b.UsedAmount,
			Remaining:  b.Remaining(),
			Percentage: percentage(b.UsedAmount, b.Amount),
		})
	}
	return out, nil
}

func (s *ReportService) rows(ctx context.Context, kind string, filter models.ReportFilter) ([]models.AmountRow, error) {
	filter = normalizeFilter(filter)
	switch kind {
	case ReportCosts:
		return s.costs.AmountRows(ctx, filter)
	case ReportPayments:
		return s.payments.AmountRows(ctx, filter)
	case ReportInvoices:
		return s.invoices.AmountRows(ctx, filter)
	}
	return nil, apperrors.Validation("unknown report %q", kind)
}

// normalizeFilter makes the date range inclusive whole UTC days.
func normalizeFilter(filter models.ReportFilter) models.ReportFilter {
	if filter.From != nil {
		from := startOfDay(*filter.From)
		filter.From = &from
	}
	if filter.To != nil {
		to := startOfDay(*filter.To).Add(24*time.Hour - time.Nanosecond)
		filter.To = &to
	}
	return filter
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Summarize totals rows per type. Shares are sorted by total, largest first.
func Summarize(rows []models.AmountRow) models.Rollup {
	rollup := models.Rollup{Total: decimal.Zero, ByType: []models.TypeShare{}}
	index := make(map[string]int)

	for _, row := range rows {
		rollup.Total = rollup.Total.Add(row.Amount)
		rollup.Count++

		i, ok := index[row.Type]
		if !ok {
			i = len(rollup.ByType)
			index[row.Type] = i
			rollup.ByType = append(rollup.ByType, models.TypeShare{Type: row.Type, Total: decimal.Zero})
		}
		rollup.ByType[i].Total = rollup.ByType[i].Total.Add(row.Amount)
		rollup.ByType[i].Count++
	}

	for i := range rollup.ByType {
		rollup.ByType[i].Percentage = percentage(rollup.ByType[i].Total, rollup.Total)
	}
	sort.SliceStable(rollup.ByType, func(a, b int) bool {
		if cmp := rollup.ByType[a].Total.Cmp(rollup.ByType[b].Total); cmp != 0 {
			return cmp > 0
		}
		return rollup.ByType[a].Type < rollup.ByType[b].Type
	})
	return rollup
}

// BucketTrend groups rows into ascending time buckets.
func BucketTrend(rows []models.AmountRow, granularity string) ([]models.TrendPoint, error) {
	layout, ok := bucketLayouts[granularity]
	if !ok {
		return nil, apperrors.Validation("unknown granularity %q", granularity)
	}

	buckets := make(map[string]*models.TrendPoint)
	for _, row := range rows {
		period := row.Date.UTC().Format(layout)
		point, ok := buckets[period]
		if !ok {
			point = &models.TrendPoint{Period: period, Total: decimal.Zero}
			buckets[period] = point
		}
		point.Total = point.Total.Add(row.Amount)
		point.Count++
	}

	points := make([]models.TrendPoint, 0, len(buckets))
	for _, p := range buckets {
		points = append(points, *p)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Period < points[j].Period })
	return points, nil
}

// percentage returns part/whole*100 rounded to two places, or 0 for an empty whole.
func percentage(part, whole decimal.Decimal) float64 {
	if whole.IsZero() {
		return 0
	}
	f, _ := part.Div(whole).Mul(decimal.NewFromInt(100)).Round(2).Float64()
	return f
}
