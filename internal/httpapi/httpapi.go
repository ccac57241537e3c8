// Package httpapi serves the dashboard as JSON over echo.
package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/vinodismyname/salesdash/internal/dashboard"
	"github.com/vinodismyname/salesdash/internal/report"
	"github.com/vinodismyname/salesdash/internal/snapshots"
	"github.com/vinodismyname/salesdash/pkg/mcperr"
	"github.com/vinodismyname/salesdash/pkg/validation"
	"github.com/vinodismyname/salesdash/pkg/version"
)

// RequestObserver is told about every served request.
type RequestObserver interface {
	OnHTTPRequest(method, path string, status int, elapsed time.Duration)
}

// Runner produces a dashboard for a request.
type Runner interface {
	Run(ctx context.Context, req dashboard.Request) (*dashboard.Dashboard, error)
}

// Handler serves the JSON API over a Runner and an optional snapshot store.
type Handler struct {
	runner    Runner
	store     *snapshots.Store
	formatter *report.Formatter
}

// NewHandler constructs a Handler. store may be nil, in which case
// snapshot_id is rejected.
func NewHandler(runner Runner, store *snapshots.Store, formatter *report.Formatter) *Handler {
	if formatter == nil {
		formatter = report.NewFormatter("en", "")
	}
	return &Handler{runner: runner, store: store, formatter: formatter}
}

// RegisterRoutes mounts /healthz on e and the /api group behind mw.
func (h *Handler) RegisterRoutes(e *echo.Echo, mw ...echo.MiddlewareFunc) {
	e.GET("/healthz", h.Health)
	api := e.Group("/api", mw...)
	api.GET("/dashboard", h.GetDashboard)
	api.GET("/kpis", h.GetKPIs)
	api.GET("/series/:name", h.GetSeries)
}

// RequestLogger attaches logger to each request context and reports the
// outcome to obs.
func RequestLogger(logger zerolog.Logger, obs RequestObserver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			c.SetRequest(req.WithContext(logger.WithContext(req.Context())))

			err := next(c)
			if err != nil {
				c.Error(err)
			}
			if obs != nil {
				obs.OnHTTPRequest(req.Method, c.Path(), c.Response().Status, time.Since(start))
			}
			return nil
		}
	}
}

// KPIView is a KPI plus its display string.
type KPIView struct {
	dashboard.KPI
	Display string `json:"display"`
}

type dashboardResponse struct {
	*dashboard.Dashboard
	KPIs []KPIView `json:"kpis"`
}

type seriesResponse struct {
	Data      []dashboard.Point `json:"data"`
	Dimension string            `json:"dimension"`
	Unit      string            `json:"unit"`
	Total     int               `json:"total"`
	Limit     int               `json:"limit"`
	Offset    int               `json:"offset"`
}

// Health reports liveness and the build version.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": version.Version()})
}

// GetDashboard runs the pipeline with the query overrides and returns the
// dashboard with display strings for the KPIs.
func (h *Handler) GetDashboard(c echo.Context) error {
	d, err := h.run(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dashboardResponse{Dashboard: d, KPIs: h.views(d)})
}

// GetKPIs is GetDashboard without the series.
func (h *Handler) GetKPIs(c echo.Context) error {
	d, err := h.run(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"current_period":  d.Current,
		"previous_period": d.Previous,
		"kpis":            h.views(d),
	})
}

// GetSeries pages through one series with limit/offset. With snapshot_id
// the cached dashboard is read instead of running the pipeline.
func (h *Handler) GetSeries(c echo.Context) error {
	var (
		d   *dashboard.Dashboard
		err error
	)
	if sid := c.QueryParam("snapshot_id"); sid != "" {
		if h.store == nil {
			return echo.NewHTTPError(http.StatusNotFound, mcperr.Text(mcperr.SnapshotNotFound, ""))
		}
		snap, ok := h.store.Get(sid)
		if !ok {
			return echo.NewHTTPError(http.StatusNotFound, mcperr.Text(mcperr.SnapshotNotFound, ""))
		}
		d = snap.Dashboard
	} else if d, err = h.run(c); err != nil {
		return err
	}

	s, ok := d.SeriesByName(c.Param("name"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, mcperr.Text(mcperr.SeriesNotFound, ""))
	}

	total := len(s.Points)
	limit, offset := getPaginationParams(c, total)
	if offset > total {
		offset = total
	}
	end := min(offset+limit, total)
	return c.JSON(http.StatusOK, seriesResponse{
		Data:      s.Points[offset:end],
		Dimension: string(s.Dimension),
		Unit:      s.Unit,
		Total:     total,
		Limit:     limit,
		Offset:    offset,
	})
}

func getPaginationParams(c echo.Context, defaultLimit int) (int, int) {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}
	offset, err := strconv.Atoi(c.QueryParam("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (h *Handler) run(c echo.Context) (*dashboard.Dashboard, error) {
	req := dashboard.Request{
		SalesSource:  c.QueryParam("sales_source"),
		TargetSource: c.QueryParam("target_source"),
		Current:      c.QueryParam("current"),
		Previous:     c.QueryParam("previous"),
	}
	if v := c.QueryParam("top_areas"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, mcperr.Text(mcperr.Validation, "top_areas must be an integer"))
		}
		req.TopAreas = n
	}
	if msg := validation.ValidateStruct(req); msg != "" {
		return nil, echo.NewHTTPError(http.StatusBadRequest, msg)
	}

	ctx := c.Request().Context()
	d, err := h.runner.Run(ctx, req)
	if err != nil {
		code := dashboard.ErrorCode(err)
		zerolog.Ctx(ctx).Error().Err(err).Str("code", string(code)).Msg("dashboard request failed")
		return nil, echo.NewHTTPError(Status(code), mcperr.Text(code, err.Error())).SetInternal(err)
	}
	return d, nil
}

func (h *Handler) views(d *dashboard.Dashboard) []KPIView {
	out := make([]KPIView, 0, len(d.KPIs))
	for _, k := range d.KPIs {
		out = append(out, KPIView{KPI: k, Display: h.formatter.KPI(k)})
	}
	return out
}

// Status maps an error code to an HTTP status.
func Status(code mcperr.Code) int {
	switch code {
	case mcperr.Validation:
		return http.StatusBadRequest
	case mcperr.PermissionDenied:
		return http.StatusForbidden
	case mcperr.SnapshotNotFound, mcperr.SeriesNotFound:
		return http.StatusNotFound
	case mcperr.SourceTooBig, mcperr.LimitExceeded:
		return http.StatusRequestEntityTooLarge
	case mcperr.UnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case mcperr.SchemaMismatch, mcperr.ParseFailed:
		return http.StatusUnprocessableEntity
	case mcperr.FetchFailed:
		return http.StatusBadGateway
	case mcperr.BusyResource:
		return http.StatusServiceUnavailable
	case mcperr.Timeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
