package dashboard

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"github.com/vinodismyname/salesdash/internal/aggregate"
	"github.com/vinodismyname/salesdash/internal/kpi"
	"github.com/vinodismyname/salesdash/internal/sales"
)

func rec(period, product, store, area string, amount, qty float64) sales.SalesRecord {
	return sales.SalesRecord{Period: period, Product: product, Store: store, Area: area, Amount: amount, Quantity: qty}
}

func mustKPI(t *testing.T, d *Dashboard, name string) KPI {
	t.Helper()
	k, ok := d.KPI(name)
	require.True(t, ok, name)
	return k
}

func mustSeries(t *testing.T, d *Dashboard, name string) Series {
	t.Helper()
	s, ok := d.SeriesByName(name)
	require.True(t, ok, name)
	return s
}

func TestBuildEndToEndWithoutTargets(t *testing.T) {
	in := Input{Sales: []sales.SalesRecord{
		rec("2024-05", "A", "", "", 100, 0),
		rec("2024-06", "A", "", "", 150, 0),
	}}
	d := Build(context.Background(), in, Options{})

	require.Equal(t, "2024-06", d.Current)
	require.Equal(t, "2024-05", d.Previous)
	require.Equal(t, 150.0, mustKPI(t, d, KPITotalSales).Value)

	growth := mustKPI(t, d, KPISalesGrowth)
	require.Equal(t, kpi.StatusOK, growth.Status)
	require.InDelta(t, 50.0, growth.Value, 1e-9)

	ach := mustKPI(t, d, KPIAchievementRate)
	require.Equal(t, kpi.StatusNoBaseline, ach.Status)
	require.Equal(t, 0.0, ach.Value)
	require.Contains(t, d.Diagnostics, `no targets for period "2024-06"; achievement has no baseline`)
}

func sampleInput() Input {
	return Input{
		Sales: []sales.SalesRecord{
			rec("2024-05", "A", "S1", "North", 100, 10),
			rec("2024-05", "B", "S2", "South", 50, 5),
			rec("2024-06", "A", "S1", "North", 120, 12),
			rec("2024-06", "B", "S2", "South", 30, 3),
			rec("2024-06", "C", "S3", "East", 50, 5),
			rec("2024-06", "A", "S4", "West", 20, 2),
		},
		Targets: []sales.TargetRecord{
			{Period: "2024-06", Product: "A", TargetAmount: 200, TargetQuantity: 20},
			{Period: "2024-06", Product: "B", TargetAmount: 100, TargetQuantity: 10},
			{Period: "2024-06", Product: "D", TargetAmount: 100, TargetQuantity: 10},
		},
	}
}

func TestBuildKPIs(t *testing.T) {
	d := Build(context.Background(), sampleInput(), Options{})

	require.Equal(t, []string{"2024-05", "2024-06"}, d.Periods)
	require.Equal(t, 220.0, mustKPI(t, d, KPITotalSales).Value)
	require.Equal(t, 22.0, mustKPI(t, d, KPITotalQuantity).Value)
	require.InDelta(t, (220.0-150)/150*100, mustKPI(t, d, KPISalesGrowth).Value, 1e-9)
	require.InDelta(t, 55.0, mustKPI(t, d, KPIAchievementRate).Value, 1e-9)
	require.InDelta(t, 55.0, mustKPI(t, d, KPIQuantityAchievementRate).Value, 1e-9)
	require.InDelta(t, 10.0, mustKPI(t, d, KPIAverageUnitPrice).Value, 1e-9)
	require.InDelta(t, (120.0*120+30*30+50*50+20*20)/(220*220), mustKPI(t, d, KPIAreaConcentration).Value, 1e-9)
	require.Len(t, d.KPIs, 8)
}

func TestBuildSeries(t *testing.T) {
	d := Build(context.Background(), sampleInput(), Options{TopAreas: 2, OtherLabel: "Other"})

	monthly := mustSeries(t, d, SeriesMonthlySales)
	require.Equal(t, aggregate.Month, monthly.Dimension)
	require.Equal(t, []Point{{Key: "2024-05", Value: 150}, {Key: "2024-06", Value: 220}}, monthly.Points)

	area := mustSeries(t, d, SeriesAreaSales)
	require.Equal(t, aggregate.Area, area.Dimension)
	require.Equal(t, []string{"North", "East", "South", "West"}, keys(area))

	shares := mustSeries(t, d, SeriesAreaShare)
	require.Equal(t, []string{"North", "East", "Other"}, keys(shares))
	require.Equal(t, 50.0, shares.Points[2].Value)
	var pct float64
	for _, p := range shares.Points {
		pct += p.Ratio.Value
	}
	require.InDelta(t, 100.0, pct, 1e-9)

	ach := mustSeries(t, d, SeriesProductAchievement)
	require.Equal(t, []string{"A", "B", "C", "D"}, keys(ach))
	require.InDelta(t, 70.0, ach.Points[0].Ratio.Value, 1e-9)
	require.Equal(t, kpi.BandHigh, ach.Points[0].Band)
	require.Equal(t, kpi.BandMedium, ach.Points[1].Band)
	require.Equal(t, kpi.BandNone, ach.Points[2].Band)
	require.Equal(t, kpi.BandLow, ach.Points[3].Band)

	cmp := mustSeries(t, d, SeriesProductComparison)
	require.Equal(t, []string{"A", "B", "C"}, keys(cmp))
	require.Equal(t, 100.0, *cmp.Points[0].Previous)
	require.InDelta(t, 40.0, cmp.Points[0].Ratio.Value, 1e-9)
	require.Equal(t, kpi.StatusNoBaseline, cmp.Points[2].Ratio.Status)

	trend := mustSeries(t, d, SeriesProductTrend)
	require.Equal(t, aggregate.Product, trend.GroupBy)
	require.Len(t, trend.Points, 6)
	require.Equal(t, Point{Key: "2024-05", Group: "C", Value: 0}, trend.Points[4])

	stores := mustSeries(t, d, SeriesStoreSales)
	require.Equal(t, []string{"S1", "S3", "S2", "S4"}, keys(stores))
	require.Equal(t, aggregate.Area, stores.GroupBy)
	require.Equal(t, []string{"North", "East", "South", "West"}, lo.Map(stores.Points, func(p Point, _ int) string { return p.Group }))

	qty := mustSeries(t, d, SeriesProductQuantity)
	require.Equal(t, UnitCount, qty.Unit)
	require.Equal(t, []Point{{Key: "A", Value: 14}, {Key: "B", Value: 3}, {Key: "C", Value: 5}}, qty.Points)

	price := mustSeries(t, d, SeriesProductUnitPrice)
	require.Equal(t, UnitCurrency, price.Unit)
	require.Equal(t, []string{"A", "B", "C"}, keys(price))
	for _, p := range price.Points {
		require.Equal(t, kpi.StatusOK, p.Status, p.Key)
		require.InDelta(t, 10.0, p.Value, 1e-9, p.Key)
	}

	require.Equal(t, UnitCount, mustSeries(t, d, SeriesMonthlyQuantity).Unit)
	require.Len(t, d.SeriesNames(), 12)

	require.Contains(t, d.Diagnostics, `product "D" has a target for 2024-06 but no sales`)
	require.Contains(t, d.Diagnostics, `product "C" has sales for 2024-06 but no target`)
}

func TestBuildUnitPriceWithoutQuantity(t *testing.T) {
	in := Input{Sales: []sales.SalesRecord{
		rec("2024-06", "A", "S1", "North", 300, 4),
		rec("2024-06", "B", "S1", "North", 80, 0),
	}}
	d := Build(context.Background(), in, Options{})

	price := mustSeries(t, d, SeriesProductUnitPrice)
	require.Equal(t, []Point{
		{Key: "A", Value: 75, Status: kpi.StatusOK},
		{Key: "B", Value: 0, Status: kpi.StatusNoBaseline},
	}, price.Points)
}

func TestBuildDefaultsIgnoreTargetOnlyPeriods(t *testing.T) {
	in := Input{
		Sales: []sales.SalesRecord{
			rec("2024-05", "A", "S1", "North", 100, 10),
			rec("2024-06", "A", "S1", "North", 150, 15),
		},
		Targets: []sales.TargetRecord{
			{Period: "2024-06", Product: "A", TargetAmount: 200, TargetQuantity: 20},
			{Period: "2024-07", Product: "A", TargetAmount: 250, TargetQuantity: 25},
		},
	}
	d := Build(context.Background(), in, Options{})

	require.Equal(t, "2024-06", d.Current)
	require.Equal(t, "2024-05", d.Previous)
	require.Equal(t, []string{"2024-05", "2024-06", "2024-07"}, d.Periods)
	require.Equal(t, 150.0, mustKPI(t, d, KPITotalSales).Value)
	growth := mustKPI(t, d, KPISalesGrowth)
	require.Equal(t, kpi.StatusOK, growth.Status)
	require.InDelta(t, 50.0, growth.Value, 1e-9)
	require.InDelta(t, 75.0, mustKPI(t, d, KPIAchievementRate).Value, 1e-9)

	// The planned month still shows up, zero-filled, in the monthly series.
	monthly := mustSeries(t, d, SeriesMonthlySales)
	require.Equal(t, []string{"2024-05", "2024-06", "2024-07"}, keys(monthly))
	require.Equal(t, 0.0, monthly.Points[2].Value)
}

func TestBuildPreviousSkipsTargetOnlyPeriod(t *testing.T) {
	in := Input{
		Sales: []sales.SalesRecord{
			rec("2024-04", "A", "S1", "North", 80, 8),
			rec("2024-06", "A", "S1", "North", 120, 12),
		},
		Targets: []sales.TargetRecord{{Period: "2024-05", Product: "A", TargetAmount: 100}},
	}
	d := Build(context.Background(), in, Options{})
	require.Equal(t, "2024-06", d.Current)
	require.Equal(t, "2024-04", d.Previous)
	require.InDelta(t, 50.0, mustKPI(t, d, KPISalesGrowth).Value, 1e-9)
}

func keys(s Series) []string {
	out := make([]string, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Key
	}
	return out
}

func TestBuildEmptySubsetWarns(t *testing.T) {
	var buf bytes.Buffer
	ctx := zerolog.New(&buf).WithContext(context.Background())

	d := Build(ctx, sampleInput(), Options{Current: "2023-01"})
	require.Equal(t, "", d.Previous)
	require.Equal(t, 0.0, mustKPI(t, d, KPITotalSales).Value)
	require.Equal(t, kpi.StatusNoBaseline, mustKPI(t, d, KPISalesGrowth).Status)
	require.Empty(t, mustSeries(t, d, SeriesAreaSales).Points)
	require.Contains(t, d.Diagnostics, `no sales rows for period "2023-01"`)
	require.Contains(t, buf.String(), `"level":"warn"`)
}

func TestBuildNoData(t *testing.T) {
	d := Build(context.Background(), Input{}, Options{})
	require.Equal(t, "", d.Current)
	require.Empty(t, d.Periods)
	for _, k := range d.KPIs {
		require.Equal(t, 0.0, k.Value, k.Name)
	}
}

func TestBuildExplicitPrevious(t *testing.T) {
	in := sampleInput()
	in.Sales = append(in.Sales, rec("2023-06", "A", "S1", "North", 110, 11))
	d := Build(context.Background(), in, Options{Current: "2024-06", Previous: "2023-06"})
	require.InDelta(t, 100.0, mustKPI(t, d, KPISalesGrowth).Value, 1e-9)
}

func TestIssueDiagnosticsCapped(t *testing.T) {
	var diag sales.Diagnostics
	for i := 1; i <= 25; i++ {
		diag.Coerced = append(diag.Coerced, sales.Issue{Row: i, Column: "total_amount", Value: "x", Reason: "not a number"})
	}
	out := issueDiagnostics(diag)
	require.Len(t, out, maxIssueDiagnostics+1)
	require.Equal(t, "5 more data issues omitted", out[maxIssueDiagnostics])
}
