package services

import (
	"testing"
	"time"

	"github.com/sjperalta/obrafin-api/internal/apperrors"
	"github.com/sjperalta/obrafin-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestSummarize_Empty(t *testing.T) {
	rollup := Summarize(nil)

	assert.True(t, rollup.Total.IsZero())
	assert.Equal(t, 0, rollup.Count)
	assert.NotNil(t, rollup.ByType)
	assert.Empty(t, rollup.ByType)
}

func TestSummarize_SharesSortedByTotal(t *testing.T) {
	rows := []models.AmountRow{
		{Type: "labor", Amount: dec("100")},
		{Type: "material", Amount: dec("200")},
		{Type: "material", Amount: dec("100")},
		{Type: "equipment", Amount: dec("50")},
		{Type: "other", Amount: dec("50")},
	}

	rollup := Summarize(rows)

	assertDecimal(t, "500", rollup.Total)
	assert.Equal(t, 5, rollup.Count)
	require.Len(t, rollup.ByType, 4)

	assert.Equal(t, "material", rollup.ByType[0].Type)
	assertDecimal(t, "300", rollup.ByType[0].Total)
	assert.Equal(t, 2, rollup.ByType[0].Count)
	assert.Equal(t, 60.0, rollup.ByType[0].Percentage)

	assert.Equal(t, "labor", rollup.ByType[1].Type)
	assert.Equal(t, 20.0, rollup.ByType[1].Percentage)

	// Equal totals fall back to the type name.
	assert.Equal(t, "equipment", rollup.ByType[2].Type)
	assert.Equal(t, "other", rollup.ByType[3].Type)
	assert.Equal(t, 10.0, rollup.ByType[3].Percentage)
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 0.0, percentage(dec("5"), dec("0")))
	assert.Equal(t, 33.33, percentage(dec("1"), dec("3")))
	assert.Equal(t, 100.0, percentage(dec("3"), dec("3")))
}

func TestBucketTrend(t *testing.T) {
	rows := []models.AmountRow{
		{Type: "material", Amount: dec("10"), Date: day(2024, 2, 10)},
		{Type: "material", Amount: dec("20"), Date: day(2024, 1, 31)},
		{Type: "labor", Amount: dec("5"), Date: day(2024, 2, 1)},
		{Type: "labor", Amount: dec("7"), Date: day(2023, 12, 24)},
	}

	monthly, err := BucketTrend(rows, GranularityMonth)
	require.NoError(t, err)
	require.Len(t, monthly, 3)
	assert.Equal(t, "2023-12", monthly[0].Period)
	assert.Equal(t, "2024-01", monthly[1].Period)
	assert.Equal(t, "2024-02", monthly[2].Period)
	assertDecimal(t, "15", monthly[2].Total)
	assert.Equal(t, 2, monthly[2].Count)

	yearly, err := BucketTrend(rows, GranularityYear)
	require.NoError(t, err)
	require.Len(t, yearly, 2)
	assertDecimal(t, "35", yearly[1].Total)

	daily, err := BucketTrend(rows, GranularityDay)
	require.NoError(t, err)
	assert.Len(t, daily, 4)
	assert.Equal(t, "2023-12-24", daily[0].Period)

	_, err = BucketTrend(rows, "week")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestNormalizeFilter_WholeDays(t *testing.T) {
	from := time.Date(2024, 3, 5, 15, 30, 0, 0, time.UTC)
	to := time.Date(2024, 3, 7, 8, 0, 0, 0, time.UTC)

	got := normalizeFilter(models.ReportFilter{From: &from, To: &to})

	assert.Equal(t, day(2024, 3, 5), *got.From)
	assert.Equal(t, day(2024, 3, 8).Add(-time.Nanosecond), *got.To)
	assert.Equal(t, time.Date(2024, 3, 5, 15, 30, 0, 0, time.UTC), from)
}

func (f *fixture) cost(t *testing.T, projectID uint, costType, amount string, date time.Time) {
	t.Helper()
	_, err := f.svc.Balance.RecordCost(f.ctx, RecordCostInput{
		ProjectID: projectID,
		Type:      costType,
		Amount:    dec(amount),
		Date:      date,
	}, operator)
	require.NoError(t, err)
}

func TestReportCostSummary_Filters(t *testing.T) {
	f := newFixture(t)
	f.cost(t, 1, models.CostTypeMaterial, "300", day(2024, 1, 10))
	f.cost(t, 1, models.CostTypeLabor, "100", day(2024, 2, 10))
	f.cost(t, 2, models.CostTypeMaterial, "50", day(2024, 2, 15))

	all, err := f.svc.Report.CostSummary(f.ctx, models.ReportFilter{})
	require.NoError(t, err)
	assertDecimal(t, "450", all.Total)
	assert.Equal(t, 3, all.Count)

	project := uint(1)
	byProject, err := f.svc.Report.CostSummary(f.ctx, models.ReportFilter{ProjectID: &project})
	require.NoError(t, err)
	assertDecimal(t, "400", byProject.Total)
	require.Len(t, byProject.ByType, 2)
	assert.Equal(t, 75.0, byProject.ByType[0].Percentage)

	from, to := day(2024, 2, 1), day(2024, 2, 28)
	february, err := f.svc.Report.CostSummary(f.ctx, models.ReportFilter{From: &from, To: &to})
	require.NoError(t, err)
	assertDecimal(t, "150", february.Total)
	assert.Equal(t, 2, february.Count)

	trend, err := f.svc.Report.Trend(f.ctx, ReportCosts, GranularityMonth, models.ReportFilter{})
	require.NoError(t, err)
	require.Len(t, trend, 2)
	assert.Equal(t, "2024-01", trend[0].Period)
	assertDecimal(t, "150", trend[1].Total)
}

func TestReportOverview(t *testing.T) {
	f := newFixture(t)
	supplier := f.supplier(t, false)
	f.cost(t, 1, models.CostTypeEquipment, "80", day(2024, 3, 2))
	paid := f.verifiedInvoice(t, supplier.ID, "1000", "13")
	f.paidPayment(t, supplier.ID, "1130", paid.ID)
	cancelled := f.pendingInvoice(t, supplier.ID, "500", "0")
	_, err := f.svc.Invoice.Cancel(f.ctx, cancelled.ID, "void", operator)
	require.NoError(t, err)

	overview, err := f.svc.Report.Overview(f.ctx, models.ReportFilter{})
	require.NoError(t, err)

	assertDecimal(t, "80", overview.Costs.Total)
	assertDecimal(t, "1130", overview.Payments.Total)
	assert.Equal(t, 1, overview.Payments.Count)
	assertDecimal(t, "1130", overview.Invoices.Total)
	assert.Equal(t, 1, overview.Invoices.Count)
	require.Len(t, overview.Invoices.ByType, 1)
	assert.Equal(t, models.InvoiceTypeMaterial, overview.Invoices.ByType[0].Type)
}

func TestReportTrend_UnknownInputs(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Report.Trend(f.ctx, ReportCosts, "week", models.ReportFilter{})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.svc.Report.Trend(f.ctx, "salaries", GranularityDay, models.ReportFilter{})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestReportBudgetUtilization(t *testing.T) {
	f := newFixture(t)
	budget := f.approvedBudget(t, 1, "1000")
	f.draftBudget(t, 1, "500")
	other := f.approvedBudget(t, 2, "200")
	_, err := f.svc.Balance.RecordCost(f.ctx, RecordCostInput{
		ProjectID: 1,
		BudgetID:  &budget.ID,
		Type:      models.CostTypeMaterial,
		Amount:    dec("250"),
		Date:      day(2024, 3, 1),
	}, operator)
	require.NoError(t, err)

	all, err := f.svc.Report.BudgetUtilization(f.ctx, models.ReportFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	project := uint(1)
	rows, err := f.svc.Report.BudgetUtilization(f.ctx, models.ReportFilter{ProjectID: &project})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, budget.ID, rows[0].BudgetID)
	assertDecimal(t, "250", rows[0].UsedAmount)
	assertDecimal(t, "750", rows[0].Remaining)
	assert.Equal(t, 25.0, rows[0].Percentage)
	assert.NotEqual(t, other.ID, rows[0].BudgetID)
}
