package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/vinodismyname/salesdash/config"
	"github.com/vinodismyname/salesdash/internal/dashboard"
	"github.com/vinodismyname/salesdash/internal/report"
	"github.com/vinodismyname/salesdash/internal/runtime"
	"github.com/vinodismyname/salesdash/internal/security"
	"github.com/vinodismyname/salesdash/internal/snapshots"
	"github.com/vinodismyname/salesdash/pkg/mcperr"
	"github.com/vinodismyname/salesdash/pkg/pagination"
	"github.com/vinodismyname/salesdash/pkg/validation"
)

// Tool names.
const (
	ToolSalesDashboard  = "sales_dashboard"
	ToolSalesKPIs       = "sales_kpis"
	ToolReadSeries      = "read_series"
	ToolExportDashboard = "export_dashboard"
)

// summaryPoints caps the entries per series listed in text summaries.
const summaryPoints = 5

// --- Input / Output Schemas (typed for discovery) ---

// DashboardInput selects sources and periods for one pipeline run.
type DashboardInput struct {
	SalesSource    string `json:"sales_source,omitempty" jsonschema_description:"Sales CSV/xlsx URL or allowed path; defaults to the configured source"`
	TargetSource   string `json:"target_source,omitempty" jsonschema_description:"Targets CSV/xlsx URL or allowed path; defaults to the configured source"`
	CurrentPeriod  string `json:"current_period,omitempty" jsonschema_description:"Period to report (YYYY-MM); defaults to the latest period with sales"`
	PreviousPeriod string `json:"previous_period,omitempty" jsonschema_description:"Comparison period (YYYY-MM); defaults to the period before current"`
	TopAreas       int    `json:"top_areas,omitempty" jsonschema_description:"Areas shown before folding the rest into Other"`
}

func (in DashboardInput) request() dashboard.Request {
	return dashboard.Request{
		SalesSource:  strings.TrimSpace(in.SalesSource),
		TargetSource: strings.TrimSpace(in.TargetSource),
		Current:      strings.TrimSpace(in.CurrentPeriod),
		Previous:     strings.TrimSpace(in.PreviousPeriod),
		TopAreas:     in.TopAreas,
	}
}

// KPIView is a KPI plus its display string.
type KPIView struct {
	dashboard.KPI
	Display string `json:"display"`
}

// SeriesInfo describes a series without its points.
type SeriesInfo struct {
	Name      string `json:"name"`
	Dimension string `json:"dimension"`
	GroupBy   string `json:"group_by,omitempty"`
	Unit      string `json:"unit"`
	Points    int    `json:"points"`
}

// DashboardOutput documents the sales_dashboard response.
type DashboardOutput struct {
	SnapshotID  string       `json:"snapshot_id" jsonschema_description:"Pass to read_series or export_dashboard"`
	Current     string       `json:"current_period"`
	Previous    string       `json:"previous_period,omitempty"`
	Periods     []string     `json:"periods"`
	KPIs        []KPIView    `json:"kpis"`
	Series      []SeriesInfo `json:"series"`
	Diagnostics []string     `json:"diagnostics,omitempty"`
}

// KPIsOutput documents the sales_kpis response.
type KPIsOutput struct {
	Current  string    `json:"current_period"`
	Previous string    `json:"previous_period,omitempty"`
	KPIs     []KPIView `json:"kpis"`
}

// ReadSeriesInput pages through one series of a snapshot.
type ReadSeriesInput struct {
	SnapshotID string `json:"snapshot_id,omitempty" validate:"required_without=Cursor" jsonschema_description:"Snapshot ID from sales_dashboard"`
	Series     string `json:"series,omitempty" validate:"required_without=Cursor" jsonschema_description:"Series name, e.g. area_sales"`
	Cursor     string `json:"cursor,omitempty" validate:"omitempty,cursor" jsonschema_description:"Opaque cursor from a previous page; takes precedence"`
	PageSize   int    `json:"page_size,omitempty" validate:"omitempty,min=1,max=1000" jsonschema_description:"Points per page"`
}

// PageMeta captures paging metadata.
type PageMeta struct {
	Total      int    `json:"total"`
	Returned   int    `json:"returned"`
	Truncated  bool   `json:"truncated"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// ReadSeriesOutput documents the read_series response.
type ReadSeriesOutput struct {
	SnapshotID string            `json:"snapshot_id"`
	Series     string            `json:"series"`
	Dimension  string            `json:"dimension"`
	GroupBy    string            `json:"group_by,omitempty"`
	Unit       string            `json:"unit"`
	Points     []dashboard.Point `json:"points"`
	Meta       PageMeta          `json:"meta"`
}

// ExportInput names a snapshot and an .xlsx destination.
type ExportInput struct {
	SnapshotID string `json:"snapshot_id" validate:"required" jsonschema_description:"Snapshot ID from sales_dashboard"`
	Path       string `json:"path" validate:"required,xlsx_path" jsonschema_description:"Destination .xlsx path inside an allowed directory"`
}

// ExportOutput documents the export_dashboard response.
type ExportOutput struct {
	Path   string `json:"path"`
	Sheets int    `json:"sheets"`
}

// Deps bundles the collaborators of the dashboard tools.
type Deps struct {
	Service       *dashboard.Service
	Store         *snapshots.Store
	Guard         *security.Manager
	Limits        runtime.Limits
	Formatter     *report.Formatter
	ExportEnabled bool
}

type toolset struct {
	Deps
	reg *Registry
}

// RegisterDashboardTools defines the dashboard tools on s and records them in reg.
func RegisterDashboardTools(s *server.MCPServer, reg *Registry, deps Deps) {
	ts := &toolset{Deps: deps, reg: reg}
	if ts.Formatter == nil {
		ts.Formatter = report.NewFormatter("en", "")
	}

	dash := mcp.NewTool(
		ToolSalesDashboard,
		mcp.WithDescription("Load the sales and target files, aggregate them by month, product, area and store, and return KPIs plus the list of available series. The dashboard is cached as a snapshot; page through any series with read_series. Ratios whose denominator is zero carry status no_baseline instead of a misleading 0. Errors: VALIDATION, FETCH_FAILED, PARSE_FAILED, SCHEMA_MISMATCH, SOURCE_TOO_LARGE, PERMISSION_DENIED."),
		mcp.WithInputSchema[DashboardInput](),
		mcp.WithOutputSchema[DashboardOutput](),
	)
	s.AddTool(dash, mcp.NewTypedToolHandler(ts.salesDashboard))
	reg.Register(dash)

	kpis := mcp.NewTool(
		ToolSalesKPIs,
		mcp.WithDescription("Compute only the headline KPIs (total sales and quantity, growth against the previous period, achievement against target, average unit price) without caching a snapshot."),
		mcp.WithInputSchema[DashboardInput](),
		mcp.WithOutputSchema[KPIsOutput](),
	)
	s.AddTool(kpis, mcp.NewTypedToolHandler(ts.salesKPIs))
	reg.Register(kpis)

	read := mcp.NewTool(
		ToolReadSeries,
		mcp.WithDescription("Return one page of a dashboard series (e.g. area_sales, product_achievement, product_trend) from a snapshot. Use nextCursor to continue. Errors: SNAPSHOT_NOT_FOUND, SERIES_NOT_FOUND, CURSOR_INVALID."),
		mcp.WithInputSchema[ReadSeriesInput](),
		mcp.WithOutputSchema[ReadSeriesOutput](),
	)
	s.AddTool(read, mcp.NewTypedToolHandler(ts.readSeries))
	reg.Register(read)

	export := mcp.NewTool(
		ToolExportDashboard,
		mcp.WithDescription("Write a snapshot to an .xlsx workbook (one KPI sheet and one sheet per series) inside an allowed directory. Hidden unless exports are enabled."),
		mcp.WithInputSchema[ExportInput](),
		mcp.WithOutputSchema[ExportOutput](),
	)
	s.AddTool(export, mcp.NewTypedToolHandler(ts.exportDashboard))
	reg.Register(export)
}

func (ts *toolset) run(ctx context.Context, in DashboardInput) (*dashboard.Dashboard, dashboard.Request, *mcp.CallToolResult) {
	req := in.request()
	if msg := validation.ValidateStruct(req); msg != "" {
		return nil, req, mcperr.FromText(msg)
	}
	d, err := ts.Service.Run(ctx, req)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("dashboard pipeline failed")
		return nil, req, mcperr.New(dashboard.ErrorCode(err), err.Error())
	}
	return d, req, nil
}

func (ts *toolset) kpiViews(d *dashboard.Dashboard) []KPIView {
	views := make([]KPIView, 0, len(d.KPIs))
	for _, k := range d.KPIs {
		views = append(views, KPIView{KPI: k, Display: ts.Formatter.KPI(k)})
	}
	return views
}

func (ts *toolset) salesDashboard(ctx context.Context, _ mcp.CallToolRequest, in DashboardInput) (*mcp.CallToolResult, error) {
	d, req, errRes := ts.run(ctx, in)
	if errRes != nil {
		return errRes, nil
	}
	id, err := ts.Store.Put(ctx, d, req)
	if err != nil {
		if errors.Is(err, runtime.ErrSnapshotsFull) {
			return mcperr.New(mcperr.BusyResource, "snapshot cache is full; retry after snapshots expire"), nil
		}
		return mcperr.New(mcperr.AnalysisFailed, err.Error()), nil
	}

	out := DashboardOutput{
		SnapshotID:  id,
		Current:     d.Current,
		Previous:    d.Previous,
		Periods:     d.Periods,
		KPIs:        ts.kpiViews(d),
		Diagnostics: d.Diagnostics,
	}
	for _, s := range d.Series {
		out.Series = append(out.Series, SeriesInfo{Name: s.Name, Dimension: string(s.Dimension), GroupBy: string(s.GroupBy), Unit: s.Unit, Points: len(s.Points)})
	}

	summary := fmt.Sprintf("snapshot_id=%s current=%s previous=%s series=%d warnings=%d", id, d.Current, d.Previous, len(d.Series), len(d.Diagnostics))
	text, _ := ts.reg.FitSummary(summary + "\n" + report.Summary(d, ts.Formatter, summaryPoints))
	res := mcp.NewToolResultStructured(out, summary)
	res.Content = []mcp.Content{mcp.NewTextContent(text)}
	return res, nil
}

func (ts *toolset) salesKPIs(ctx context.Context, _ mcp.CallToolRequest, in DashboardInput) (*mcp.CallToolResult, error) {
	d, _, errRes := ts.run(ctx, in)
	if errRes != nil {
		return errRes, nil
	}
	out := KPIsOutput{Current: d.Current, Previous: d.Previous, KPIs: ts.kpiViews(d)}

	lines := []string{fmt.Sprintf("current=%s previous=%s", d.Current, d.Previous)}
	for _, k := range out.KPIs {
		lines = append(lines, fmt.Sprintf("%s=%s", k.Name, k.Display))
	}
	text, _ := ts.reg.FitSummary(strings.Join(lines, "\n"))
	res := mcp.NewToolResultStructured(out, lines[0])
	res.Content = []mcp.Content{mcp.NewTextContent(text)}
	return res, nil
}

func (ts *toolset) readSeries(ctx context.Context, _ mcp.CallToolRequest, in ReadSeriesInput) (*mcp.CallToolResult, error) {
	if msg := validation.ValidateStruct(in); msg != "" {
		return mcperr.FromText(msg), nil
	}

	sid, name, off := strings.TrimSpace(in.SnapshotID), strings.TrimSpace(in.Series), 0
	ps := in.PageSize
	if ps <= 0 {
		ps = ts.Limits.SeriesPageSize
	}
	if ps <= 0 {
		ps = config.DefaultSeriesPageSize
	}
	if strings.TrimSpace(in.Cursor) != "" {
		cur, err := pagination.DecodeCursor(in.Cursor)
		if err != nil {
			return mcperr.New(mcperr.CursorInvalid, err.Error()), nil
		}
		sid, name, off, ps = cur.Sid, cur.Sr, cur.Off, cur.Ps
	}

	snap, ok := ts.Store.Get(sid)
	if !ok {
		return mcperr.New(mcperr.SnapshotNotFound, ""), nil
	}
	series, ok := snap.Dashboard.SeriesByName(name)
	if !ok {
		return mcperr.Wrapf(mcperr.SeriesNotFound, "unknown series %q; available: %s", name, strings.Join(snap.Dashboard.SeriesNames(), ", ")), nil
	}

	total := len(series.Points)
	start, end, more := pagination.Window(total, off, ps)
	out := ReadSeriesOutput{
		SnapshotID: sid,
		Series:     series.Name,
		Dimension:  string(series.Dimension),
		GroupBy:    string(series.GroupBy),
		Unit:       series.Unit,
		Points:     series.Points[start:end],
		Meta:       PageMeta{Total: total, Returned: end - start, Truncated: more},
	}
	if more {
		next, err := pagination.EncodeCursor(pagination.Cursor{Sid: sid, Sr: series.Name, Off: pagination.NextOffset(start, end-start), Ps: ps})
		if err != nil {
			return mcperr.New(mcperr.CursorBuildFailed, err.Error()), nil
		}
		out.Meta.NextCursor = next
	}

	summary := fmt.Sprintf("series=%s dimension=%s returned=%d total=%d truncated=%v", out.Series, out.Dimension, out.Meta.Returned, total, more)
	lines := []string{summary}
	for _, p := range out.Points {
		key := p.Key
		if p.Group != "" {
			key = p.Group + "/" + p.Key
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", key, ts.Formatter.Point(series, p)))
	}
	text, _ := ts.reg.FitSummary(strings.Join(lines, "\n"))
	res := mcp.NewToolResultStructured(out, summary)
	res.Content = []mcp.Content{mcp.NewTextContent(text)}
	return res, nil
}

func (ts *toolset) exportDashboard(ctx context.Context, _ mcp.CallToolRequest, in ExportInput) (*mcp.CallToolResult, error) {
	if !ts.ExportEnabled || ts.Guard == nil {
		return mcperr.New(mcperr.PermissionDenied, "exports are disabled"), nil
	}
	if msg := validation.ValidateStruct(in); msg != "" {
		return mcperr.FromText(msg), nil
	}
	snap, ok := ts.Store.Get(strings.TrimSpace(in.SnapshotID))
	if !ok {
		return mcperr.New(mcperr.SnapshotNotFound, ""), nil
	}

	path, err := ts.Guard.ValidateWritePath(in.Path, config.DefaultExportExtension)
	switch {
	case errors.Is(err, security.ErrUnsupportedExtension):
		return mcperr.New(mcperr.UnsupportedFormat, "export path must end in .xlsx"), nil
	case errors.Is(err, security.ErrNotFound):
		return mcperr.New(mcperr.Validation, "destination directory does not exist"), nil
	case err != nil:
		return mcperr.New(mcperr.PermissionDenied, err.Error()), nil
	}

	if err := report.SaveWorkbook(snap.Dashboard, path); err != nil {
		return mcperr.New(mcperr.ExportFailed, err.Error()), nil
	}
	zerolog.Ctx(ctx).Info().Str("snapshot_id", snap.ID).Str("path", path).Msg("dashboard exported")

	out := ExportOutput{Path: path, Sheets: 1 + len(snap.Dashboard.Series)}
	summary := fmt.Sprintf("exported snapshot %s to %s (%d sheets)", snap.ID, path, out.Sheets)
	res := mcp.NewToolResultStructured(out, summary)
	res.Content = []mcp.Content{mcp.NewTextContent(summary)}
	return res, nil
}
