package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vinodismyname/salesdash/internal/aggregate"
	"github.com/vinodismyname/salesdash/internal/dashboard"
	"github.com/vinodismyname/salesdash/internal/kpi"
	"github.com/vinodismyname/salesdash/internal/report"
	"github.com/vinodismyname/salesdash/internal/snapshots"
	"github.com/vinodismyname/salesdash/internal/source"
	"github.com/vinodismyname/salesdash/pkg/mcperr"
)

type fakeRunner struct {
	d    *dashboard.Dashboard
	err  error
	last dashboard.Request
}

func (f *fakeRunner) Run(_ context.Context, req dashboard.Request) (*dashboard.Dashboard, error) {
	f.last = req
	return f.d, f.err
}

type recordingObserver struct{ statuses []int }

func (o *recordingObserver) OnHTTPRequest(_, _ string, status int, _ time.Duration) {
	o.statuses = append(o.statuses, status)
}

func sampleDashboard() *dashboard.Dashboard {
	return &dashboard.Dashboard{
		Current:  "2024-06",
		Previous: "2024-05",
		Periods:  []string{"2024-05", "2024-06"},
		KPIs: []dashboard.KPI{
			{Name: dashboard.KPITotalSales, Value: 1500, Status: kpi.StatusOK, Unit: dashboard.UnitCurrency},
			{Name: dashboard.KPISalesGrowth, Status: kpi.StatusNoBaseline, Unit: dashboard.UnitPercent},
		},
		Series: []dashboard.Series{{
			Name:      dashboard.SeriesAreaSales,
			Dimension: aggregate.Area,
			Unit:      dashboard.UnitCurrency,
			Points:    []dashboard.Point{{Key: "North", Value: 3}, {Key: "South", Value: 2}, {Key: "East", Value: 1}},
		}},
	}
}

func newTestServer(r Runner, store *snapshots.Store, obs RequestObserver) *echo.Echo {
	e := echo.New()
	e.Use(RequestLogger(zerolog.Nop(), obs))
	NewHandler(r, store, report.NewFormatter("en", "$")).RegisterRoutes(e)
	return e
}

func get(t *testing.T, e *echo.Echo, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealth(t *testing.T) {
	rec := get(t, newTestServer(&fakeRunner{}, nil, nil), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestGetDashboard(t *testing.T) {
	r := &fakeRunner{d: sampleDashboard()}
	obs := &recordingObserver{}
	e := newTestServer(r, nil, obs)

	rec := get(t, e, "/api/dashboard?current=2024-06&sales_source=https://example.com/s.csv&top_areas=3")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "2024-06", r.last.Current)
	require.Equal(t, "https://example.com/s.csv", r.last.SalesSource)
	require.Equal(t, 3, r.last.TopAreas)

	var body struct {
		Current string    `json:"current_period"`
		KPIs    []KPIView `json:"kpis"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "2024-06", body.Current)
	require.Equal(t, "$1,500", body.KPIs[0].Display)
	require.Equal(t, report.NoBaseline, body.KPIs[1].Display)
	require.Equal(t, []int{http.StatusOK}, obs.statuses)
}

func TestGetKPIs(t *testing.T) {
	rec := get(t, newTestServer(&fakeRunner{d: sampleDashboard()}, nil, nil), "/api/kpis")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"total_sales"`)
	require.Contains(t, rec.Body.String(), `"previous_period":"2024-05"`)
}

func TestGetSeriesPagination(t *testing.T) {
	e := newTestServer(&fakeRunner{d: sampleDashboard()}, nil, nil)

	rec := get(t, e, "/api/series/area_sales?limit=2&offset=1")
	require.Equal(t, http.StatusOK, rec.Code)
	var body seriesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 3, body.Total)
	require.Equal(t, "area", body.Dimension)
	require.Equal(t, dashboard.UnitCurrency, body.Unit)
	require.Len(t, body.Data, 2)
	require.Equal(t, "South", body.Data[0].Key)

	rec = get(t, e, "/api/series/area_sales?offset=10")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Empty(t, body.Data)

	rec = get(t, e, "/api/series/weather")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetSeriesFromSnapshot(t *testing.T) {
	store := snapshots.NewStore(time.Minute, time.Minute, nil, nil)
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	id, err := store.Put(context.Background(), sampleDashboard(), dashboard.Request{})
	require.NoError(t, err)

	r := &fakeRunner{err: fmt.Errorf("should not run")}
	e := newTestServer(r, store, nil)

	rec := get(t, e, "/api/series/area_sales?snapshot_id="+id)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, e, "/api/series/area_sales?snapshot_id=missing")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), string(mcperr.SnapshotNotFound))
}

func TestErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: boom", source.ErrFetch), http.StatusBadGateway},
		{fmt.Errorf("%w: 10MB", source.ErrTooLarge), http.StatusRequestEntityTooLarge},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{fmt.Errorf("unexpected"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		obs := &recordingObserver{}
		rec := get(t, newTestServer(&fakeRunner{err: c.err}, nil, obs), "/api/kpis")
		require.Equal(t, c.want, rec.Code, c.err.Error())
		require.Equal(t, []int{c.want}, obs.statuses)
	}
}

func TestValidationRejected(t *testing.T) {
	r := &fakeRunner{d: sampleDashboard()}
	e := newTestServer(r, nil, nil)

	rec := get(t, e, "/api/dashboard?current=June")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "VALIDATION")

	rec = get(t, e, "/api/dashboard?top_areas=many")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatus(t *testing.T) {
	require.Equal(t, http.StatusUnprocessableEntity, Status(mcperr.SchemaMismatch))
	require.Equal(t, http.StatusForbidden, Status(mcperr.PermissionDenied))
	require.Equal(t, http.StatusInternalServerError, Status(mcperr.AnalysisFailed))
}
