package report

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/vinodismyname/salesdash/internal/dashboard"
	"github.com/vinodismyname/salesdash/internal/kpi"
	"github.com/vinodismyname/salesdash/internal/sales"
)

func TestFormatPercent(t *testing.T) {
	cases := []struct {
		r    kpi.Ratio
		want string
	}{
		{kpi.Growth(150, 100), "50.0%"},
		{kpi.Ratio{Value: 33.333333, Status: kpi.StatusOK}, "33.3%"},
		{kpi.Ratio{Value: 12.25, Status: kpi.StatusOK}, "12.3%"},
		{kpi.Ratio{Value: -4.96, Status: kpi.StatusOK}, "-5.0%"},
		{kpi.Growth(100, 0), NoBaseline},
	}
	for _, c := range cases {
		require.Equal(t, c.want, FormatPercent(c.r))
	}
	require.Equal(t, "+50.0%", FormatGrowth(kpi.Growth(150, 100)))
	require.Equal(t, "-50.0%", FormatGrowth(kpi.Growth(50, 100)))
	require.Equal(t, "0.0%", FormatGrowth(kpi.Growth(100, 100)))
}

func TestFormatterCurrency(t *testing.T) {
	f := NewFormatter("ja", "¥")
	require.Equal(t, "¥1,234,567", f.Currency(1234567.4))
	require.Equal(t, "-¥1,000", f.Currency(-1000))
	require.Equal(t, "12,345", f.Count(12345))

	fallback := NewFormatter("not a tag!", "$")
	require.Equal(t, "$1,000", fallback.Currency(1000))
}

func TestFormatterKPI(t *testing.T) {
	f := NewFormatter("en", "$")
	require.Equal(t, "+50.0%", f.KPI(dashboard.KPI{Name: dashboard.KPISalesGrowth, Value: 50, Status: kpi.StatusOK, Unit: dashboard.UnitPercent}))
	require.Equal(t, "75.0%", f.KPI(dashboard.KPI{Name: dashboard.KPIAchievementRate, Value: 75, Status: kpi.StatusOK, Unit: dashboard.UnitPercent}))
	require.Equal(t, NoBaseline, f.KPI(dashboard.KPI{Name: dashboard.KPIAverageUnitPrice, Status: kpi.StatusNoBaseline, Unit: dashboard.UnitCurrency}))
	require.Equal(t, "$2,500", f.KPI(dashboard.KPI{Name: dashboard.KPITotalSales, Value: 2500, Status: kpi.StatusOK, Unit: dashboard.UnitCurrency}))
	require.Equal(t, "3", f.KPI(dashboard.KPI{Name: dashboard.KPITotalQuantity, Value: 3, Status: kpi.StatusOK, Unit: dashboard.UnitCount}))
	require.Equal(t, "0.376 (highly_concentrated)", f.KPI(dashboard.KPI{Name: dashboard.KPIAreaConcentration, Value: 0.37603, Status: kpi.StatusOK, Unit: dashboard.UnitIndex}))
}

func TestFormatterPoint(t *testing.T) {
	f := NewFormatter("en", "$")
	qty := dashboard.Series{Name: dashboard.SeriesMonthlyQuantity, Unit: dashboard.UnitCount}
	require.Equal(t, "1,200", f.Point(qty, dashboard.Point{Key: "2024-06", Value: 1200}))

	growth := kpi.Growth(150, 100)
	cmp := dashboard.Series{Name: dashboard.SeriesAreaComparison, Unit: dashboard.UnitCurrency}
	require.Equal(t, "$150 (+50.0%)", f.Point(cmp, dashboard.Point{Key: "North", Value: 150, Ratio: &growth}))

	ach := kpi.Achievement(150, 300)
	achievement := dashboard.Series{Name: dashboard.SeriesProductAchievement, Unit: dashboard.UnitCurrency}
	require.Equal(t, "$150 (50.0%, high)", f.Point(achievement, dashboard.Point{Key: "A", Value: 150, Ratio: &ach, Band: kpi.AchievementBand(ach)}))

	price := dashboard.Series{Name: dashboard.SeriesProductUnitPrice, Unit: dashboard.UnitCurrency}
	require.Equal(t, "$75", f.Point(price, dashboard.Point{Key: "A", Value: 75, Status: kpi.StatusOK}))
	require.Equal(t, NoBaseline, f.Point(price, dashboard.Point{Key: "B", Status: kpi.StatusNoBaseline}))
}

func TestBandColor(t *testing.T) {
	require.Equal(t, "#FF4757", BandColor(kpi.AchievementBand(kpi.Achievement(10, 100))))
	require.Equal(t, "#2ED573", BandColor(kpi.BandHigh))
	require.Equal(t, "#CED6E0", BandColor(kpi.BandNone))
}

func sampleDashboard() *dashboard.Dashboard {
	in := dashboard.Input{
		Sales: []sales.SalesRecord{
			{Period: "2024-05", Product: "A", Store: "S1", Area: "North", Amount: 100, Quantity: 1},
			{Period: "2024-06", Product: "A", Store: "S1", Area: "North", Amount: 150, Quantity: 2},
			{Period: "2024-06", Product: "B", Store: "S2", Area: "South", Amount: 50, Quantity: 1},
		},
		Targets: []sales.TargetRecord{{Period: "2024-06", Product: "A", TargetAmount: 300}},
	}
	return dashboard.Build(context.Background(), in, dashboard.Options{})
}

func TestSummary(t *testing.T) {
	out := Summary(sampleDashboard(), NewFormatter("en", "$"), 1)
	require.Contains(t, out, "Sales dashboard for 2024-06 (compared with 2024-05)")
	require.Contains(t, out, "- total_sales: $200")
	require.Contains(t, out, "- sales_growth: +100.0%")
	require.Contains(t, out, "  A: $150 (50.0%, high)")
	require.Contains(t, out, "  ... 1 more")
	require.Contains(t, out, "  North/S1: $150")
	require.Contains(t, out, "warnings:")
}

func TestWorkbookExport(t *testing.T) {
	d := sampleDashboard()
	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(d, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	require.Equal(t, kpiSheet, sheets[0])
	require.Len(t, sheets, 1+len(d.Series))

	v, err := f.GetCellValue(kpiSheet, "B1")
	require.NoError(t, err)
	require.Equal(t, "2024-06", v)

	rows, err := f.GetRows(dashboard.SeriesProductAchievement)
	require.NoError(t, err)
	require.Equal(t, []string{"key", "group", "value", "previous", "target", "ratio", "band"}, rows[0])
	require.Equal(t, "A", rows[1][0])
	require.Equal(t, "50", rows[1][5])
	require.Equal(t, "high", rows[1][6])
}

func TestSaveWorkbook(t *testing.T) {
	p := filepath.Join(t.TempDir(), "dash.xlsx")
	require.NoError(t, SaveWorkbook(sampleDashboard(), p))
	f, err := excelize.OpenFile(p)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestSheetName(t *testing.T) {
	require.Equal(t, "a_b", sheetName("a/b"))
	require.Len(t, sheetName("product_achievement_with_a_very_long_suffix"), maxSheetName)
}
