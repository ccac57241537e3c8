// Package dashboard runs the aggregation pipeline once and returns named
// KPIs and dimension-tagged series.
package dashboard

import (
	"context"
	"fmt"
	"slices"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/vinodismyname/salesdash/config"
	"github.com/vinodismyname/salesdash/internal/aggregate"
	"github.com/vinodismyname/salesdash/internal/kpi"
	"github.com/vinodismyname/salesdash/internal/sales"
)

// KPI names.
const (
	KPITotalSales              = "total_sales"
	KPITotalQuantity           = "total_quantity"
	KPISalesGrowth             = "sales_growth"
	KPIQuantityGrowth          = "quantity_growth"
	KPIAchievementRate         = "achievement_rate"
	KPIQuantityAchievementRate = "quantity_achievement_rate"
	KPIAverageUnitPrice        = "average_unit_price"
	KPIAreaConcentration       = "area_concentration"
)

// Series names.
const (
	SeriesMonthlySales       = "monthly_sales"
	SeriesMonthlyQuantity    = "monthly_quantity"
	SeriesProductSales       = "product_sales"
	SeriesProductQuantity    = "product_quantity"
	SeriesProductUnitPrice   = "product_unit_price"
	SeriesAreaSales          = "area_sales"
	SeriesAreaShare          = "area_share"
	SeriesStoreSales         = "store_sales"
	SeriesProductAchievement = "product_achievement"
	SeriesProductComparison  = "product_comparison"
	SeriesAreaComparison     = "area_comparison"
	SeriesProductTrend       = "product_trend"
)

// Units attached to KPIs and series values.
const (
	UnitCurrency = "currency"
	UnitCount    = "count"
	UnitPercent  = "percent"
	UnitIndex    = "index"
)

const maxIssueDiagnostics = 20

// Options selects the periods and display parameters.
type Options struct {
	// Current defaults to the latest period with sales.
	Current string
	// Previous defaults to the latest period with sales before Current.
	Previous   string
	TopAreas   int
	OtherLabel string
}

func (o Options) withDefaults() Options {
	if o.TopAreas <= 0 {
		o.TopAreas = config.DefaultTopAreas
	}
	if o.OtherLabel == "" {
		o.OtherLabel = config.DefaultOtherLabel
	}
	return o
}

// Input is the decoded data for one run.
type Input struct {
	Sales       []sales.SalesRecord
	Targets     []sales.TargetRecord
	Diagnostics sales.Diagnostics
}

// KPI is a named scalar.
type KPI struct {
	Name   string     `json:"name"`
	Value  float64    `json:"value"`
	Status kpi.Status `json:"status"`
	Unit   string     `json:"unit"`
}

// Point is one value of a series. The optional fields are filled only by
// series that compare against a previous period or a target. Status is set
// when Value is itself a ratio.
type Point struct {
	Key      string     `json:"key"`
	Group    string     `json:"group,omitempty"`
	Value    float64    `json:"value"`
	Status   kpi.Status `json:"status,omitempty"`
	Previous *float64   `json:"previous,omitempty"`
	Target   *float64   `json:"target,omitempty"`
	Ratio    *kpi.Ratio `json:"ratio,omitempty"`
	Band     kpi.Band   `json:"band,omitempty"`
}

// Series is an ordered list of points tagged with the dimension of its keys.
// Unit applies to Point.Value; ratios are always percentages.
type Series struct {
	Name      string              `json:"name"`
	Dimension aggregate.Dimension `json:"dimension"`
	GroupBy   aggregate.Dimension `json:"group_by,omitempty"` // dimension of Point.Group
	Unit      string              `json:"unit"`
	Points    []Point             `json:"points"`
}

// Dashboard is the pipeline output.
type Dashboard struct {
	Current     string   `json:"current_period"`
	Previous    string   `json:"previous_period,omitempty"`
	Periods     []string `json:"periods"`
	KPIs        []KPI    `json:"kpis"`
	Series      []Series `json:"series"`
	Diagnostics []string `json:"diagnostics,omitempty"`
}

// KPI returns the named KPI.
func (d *Dashboard) KPI(name string) (KPI, bool) {
	return lo.Find(d.KPIs, func(k KPI) bool { return k.Name == name })
}

// SeriesByName returns the named series.
func (d *Dashboard) SeriesByName(name string) (Series, bool) {
	return lo.Find(d.Series, func(s Series) bool { return s.Name == name })
}

// SeriesNames lists the series in output order.
func (d *Dashboard) SeriesNames() []string {
	return lo.Map(d.Series, func(s Series, _ int) string { return s.Name })
}

func salesAmount(r sales.SalesRecord) float64     { return r.Amount }
func salesQuantity(r sales.SalesRecord) float64   { return r.Quantity }
func salesPeriod(r sales.SalesRecord) string      { return r.Period }
func salesProduct(r sales.SalesRecord) string     { return r.Product }
func salesArea(r sales.SalesRecord) string        { return r.Area }
func salesStore(r sales.SalesRecord) string       { return r.Store }
func targetAmount(r sales.TargetRecord) float64   { return r.TargetAmount }
func targetQuantity(r sales.TargetRecord) float64 { return r.TargetQuantity }
func targetProduct(r sales.TargetRecord) string   { return r.Product }

// Build aggregates in and computes KPIs and series. It never fails on data
// shape: empty subsets produce empty series, zero KPIs and a diagnostic.
func Build(ctx context.Context, in Input, opts Options) *Dashboard {
	log := zerolog.Ctx(ctx)
	opts = opts.withDefaults()

	periods := Periods(in.Sales, in.Targets)
	current, previous := resolvePeriods(Periods(in.Sales, nil), periods, opts)
	d := &Dashboard{Current: current, Previous: previous, Periods: periods}

	curSales := aggregate.Filter(in.Sales, sales.InPeriod[sales.SalesRecord](current))
	prevSales := aggregate.Filter(in.Sales, sales.InPeriod[sales.SalesRecord](previous))
	curTargets := aggregate.Filter(in.Targets, sales.InPeriod[sales.TargetRecord](current))

	warn := func(msg string) {
		log.Warn().Str("current", current).Str("previous", previous).Msg(msg)
		d.Diagnostics = append(d.Diagnostics, msg)
	}
	if len(curSales) == 0 {
		warn(fmt.Sprintf("no sales rows for period %q", current))
	}
	if previous == "" {
		warn("no previous period; growth has no baseline")
	} else if len(prevSales) == 0 {
		warn(fmt.Sprintf("no sales rows for previous period %q", previous))
	}
	if len(curTargets) == 0 {
		warn(fmt.Sprintf("no targets for period %q; achievement has no baseline", current))
	}

	productCur := aggregate.By(aggregate.Product, curSales, salesProduct, salesAmount)
	productPrev := aggregate.By(aggregate.Product, prevSales, salesProduct, salesAmount)
	areaCur := aggregate.By(aggregate.Area, curSales, salesArea, salesAmount)
	areaPrev := aggregate.By(aggregate.Area, prevSales, salesArea, salesAmount)
	productQty := aggregate.By(aggregate.Product, curSales, salesProduct, salesQuantity)
	storeCur := aggregate.By(aggregate.Store, curSales, salesStore, salesAmount)
	targetByProduct := aggregate.By(aggregate.Product, curTargets, targetProduct, targetAmount)

	d.KPIs = kpis(curSales, prevSales, curTargets)
	areaHHI := kpi.Concentration(lo.Map(areaCur.Entries(), func(e aggregate.Entry, _ int) float64 { return e.Value })...)
	d.KPIs = append(d.KPIs, KPI{Name: KPIAreaConcentration, Value: areaHHI.Value, Status: areaHHI.Status, Unit: UnitIndex})

	monthlySales := aggregate.By(aggregate.Month, in.Sales, salesPeriod, salesAmount)
	monthlyQty := aggregate.By(aggregate.Month, in.Sales, salesPeriod, salesQuantity)
	trend := aggregate.ByPair(aggregate.Month, aggregate.Product, in.Sales, salesPeriod, salesProduct, salesAmount)

	d.Series = []Series{
		chronological(SeriesMonthlySales, UnitCurrency, monthlySales, periods),
		chronological(SeriesMonthlyQuantity, UnitCount, monthlyQty, periods),
		plain(SeriesProductSales, UnitCurrency, productCur.Dimension, productCur.Entries()),
		plain(SeriesProductQuantity, UnitCount, productQty.Dimension, productQty.Entries()),
		unitPrice(productCur, productQty),
		plain(SeriesAreaSales, UnitCurrency, areaCur.Dimension, areaCur.SortedDesc()),
		share(areaCur, opts.TopAreas, opts.OtherLabel),
		storeSales(storeCur, curSales),
		achievement(productCur, targetByProduct),
		comparison(SeriesProductComparison, productCur, productPrev),
		comparison(SeriesAreaComparison, areaCur, areaPrev),
		productTrend(trend, periods),
	}

	if len(curTargets) > 0 {
		for _, p := range targetByProduct.Keys() {
			if !productCur.Has(p) {
				warn(fmt.Sprintf("product %q has a target for %s but no sales", p, current))
			}
		}
		for _, p := range productCur.Keys() {
			if !targetByProduct.Has(p) {
				warn(fmt.Sprintf("product %q has sales for %s but no target", p, current))
			}
		}
	}
	d.Diagnostics = append(d.Diagnostics, issueDiagnostics(in.Diagnostics)...)
	return d
}

func kpis(cur, prev []sales.SalesRecord, targets []sales.TargetRecord) []KPI {
	totalSales := kpi.Total(lo.Map(cur, func(r sales.SalesRecord, _ int) float64 { return r.Amount })...)
	totalQty := kpi.Total(lo.Map(cur, func(r sales.SalesRecord, _ int) float64 { return r.Quantity })...)
	prevSales := lo.SumBy(prev, salesAmount)
	prevQty := lo.SumBy(prev, salesQuantity)
	targetSales := lo.SumBy(targets, targetAmount)
	targetQty := lo.SumBy(targets, targetQuantity)

	ratio := func(name, unit string, r kpi.Ratio) KPI {
		return KPI{Name: name, Value: r.Value, Status: r.Status, Unit: unit}
	}
	return []KPI{
		{Name: KPITotalSales, Value: totalSales, Status: kpi.StatusOK, Unit: UnitCurrency},
		{Name: KPITotalQuantity, Value: totalQty, Status: kpi.StatusOK, Unit: UnitCount},
		ratio(KPISalesGrowth, UnitPercent, kpi.Growth(totalSales, prevSales)),
		ratio(KPIQuantityGrowth, UnitPercent, kpi.Growth(totalQty, prevQty)),
		ratio(KPIAchievementRate, UnitPercent, kpi.Achievement(totalSales, targetSales)),
		ratio(KPIQuantityAchievementRate, UnitPercent, kpi.Achievement(totalQty, targetQty)),
		ratio(KPIAverageUnitPrice, UnitCurrency, kpi.UnitPrice(totalSales, totalQty)),
	}
}

func plain(name, unit string, dim aggregate.Dimension, entries []aggregate.Entry) Series {
	return Series{
		Name:      name,
		Dimension: dim,
		Unit:      unit,
		Points:    lo.Map(entries, func(e aggregate.Entry, _ int) Point { return Point{Key: e.Key, Value: e.Value} }),
	}
}

// chronological emits one point per period in sorted order, zero-filling
// periods that only appear in the targets.
func chronological(name, unit string, a *aggregate.Aggregate, periods []string) Series {
	s := Series{Name: name, Dimension: a.Dimension, Unit: unit, Points: make([]Point, 0, len(periods))}
	for _, p := range periods {
		s.Points = append(s.Points, Point{Key: p, Value: a.Get(p)})
	}
	return s
}

func share(a *aggregate.Aggregate, top int, other string) Series {
	total := a.Total()
	s := Series{Name: SeriesAreaShare, Dimension: a.Dimension, Unit: UnitCurrency, Points: []Point{}}
	for _, e := range a.TopN(top, other) {
		r := kpi.Share(e.Value, total)
		s.Points = append(s.Points, Point{Key: e.Key, Value: e.Value, Ratio: &r})
	}
	return s
}

// unitPrice divides amount by quantity per product, in product order.
func unitPrice(amount, qty *aggregate.Aggregate) Series {
	s := Series{Name: SeriesProductUnitPrice, Dimension: amount.Dimension, Unit: UnitCurrency, Points: []Point{}}
	for _, k := range union(amount.Keys(), qty.Keys()) {
		r := kpi.UnitPrice(amount.Get(k), qty.Get(k))
		s.Points = append(s.Points, Point{Key: k, Value: r.Value, Status: r.Status})
	}
	return s
}

// storeSales ranks stores by amount and groups each under the area it was
// first seen in.
func storeSales(a *aggregate.Aggregate, rows []sales.SalesRecord) Series {
	areas := make(map[string]string, a.Len())
	for _, r := range rows {
		if _, ok := areas[r.Store]; !ok {
			areas[r.Store] = r.Area
		}
	}
	s := Series{Name: SeriesStoreSales, Dimension: a.Dimension, GroupBy: aggregate.Area, Unit: UnitCurrency, Points: []Point{}}
	for _, e := range a.SortedDesc() {
		s.Points = append(s.Points, Point{Key: e.Key, Group: areas[e.Key], Value: e.Value})
	}
	return s
}

func achievement(actual, target *aggregate.Aggregate) Series {
	s := Series{Name: SeriesProductAchievement, Dimension: aggregate.Product, Unit: UnitCurrency, Points: []Point{}}
	for _, k := range union(actual.Keys(), target.Keys()) {
		t := target.Get(k)
		r := kpi.Achievement(actual.Get(k), t)
		s.Points = append(s.Points, Point{
			Key:    k,
			Value:  actual.Get(k),
			Target: &t,
			Ratio:  &r,
			Band:   kpi.AchievementBand(r),
		})
	}
	return s
}

func comparison(name string, cur, prev *aggregate.Aggregate) Series {
	s := Series{Name: name, Dimension: cur.Dimension, Unit: UnitCurrency, Points: []Point{}}
	for _, k := range union(cur.Keys(), prev.Keys()) {
		p := prev.Get(k)
		r := kpi.Growth(cur.Get(k), p)
		s.Points = append(s.Points, Point{Key: k, Value: cur.Get(k), Previous: &p, Ratio: &r})
	}
	return s
}

func productTrend(n *aggregate.Nested, periods []string) Series {
	s := Series{Name: SeriesProductTrend, Dimension: n.Outer, GroupBy: n.Inner, Unit: UnitCurrency, Points: []Point{}}
	for _, product := range n.InnerKeys() {
		for _, e := range n.Column(product, periods) {
			s.Points = append(s.Points, Point{Key: e.Key, Group: product, Value: e.Value})
		}
	}
	return s
}

// Periods returns the distinct periods of sales and targets in ascending order.
func Periods(s []sales.SalesRecord, t []sales.TargetRecord) []string {
	all := append(lo.Map(s, func(r sales.SalesRecord, _ int) string { return r.Period }),
		lo.Map(t, func(r sales.TargetRecord, _ int) string { return r.Period })...)
	out := lo.Uniq(all)
	slices.Sort(out)
	return out
}

// resolvePeriods fills unset periods from the sorted sales periods so a
// target planned ahead never becomes the current period. Without sales it
// falls back to all periods.
func resolvePeriods(salesPeriods, all []string, opts Options) (current, previous string) {
	pool := salesPeriods
	if len(pool) == 0 {
		pool = all
	}
	current = opts.Current
	if current == "" && len(pool) > 0 {
		current = pool[len(pool)-1]
	}
	previous = opts.Previous
	if previous == "" {
		if i, _ := slices.BinarySearch(pool, current); i > 0 {
			previous = pool[i-1]
		}
	}
	return current, previous
}

func union(a, b []string) []string {
	return lo.Uniq(append(slices.Clone(a), b...))
}

func issueDiagnostics(diag sales.Diagnostics) []string {
	issues := append(slices.Clone(diag.Coerced), diag.Skipped...)
	out := make([]string, 0, min(len(issues), maxIssueDiagnostics)+1)
	for i, is := range issues {
		if i == maxIssueDiagnostics {
			out = append(out, fmt.Sprintf("%d more data issues omitted", len(issues)-i))
			break
		}
		out = append(out, is.String())
	}
	return out
}
