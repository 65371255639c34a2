package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fuelroute/internal/geocode"
	"fuelroute/internal/geometry"
	"fuelroute/internal/planner"
	"fuelroute/internal/routing"
	"fuelroute/internal/station"
	"fuelroute/pkg/apperror"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubRoutes struct {
	route *routing.Route
	err   error
}

func (s *stubRoutes) GetRoute(_ context.Context, _, _ geometry.Point) (*routing.Route, error) {
	return s.route, s.err
}

type stubStations struct {
	stations []station.WithFraction
	err      error
}

func (s *stubStations) StationsWithinCorridor(_ context.Context, _ []geometry.Point, _ float64) ([]station.WithFraction, error) {
	return s.stations, s.err
}

func emptyRouterFactory() RouterFactory {
	return func() *geocode.Router {
		return geocode.NewRouter(nil, nil, nil, "")
	}
}

// thousandMileRoute fabricates a straight two-vertex route whose reported
// distance is exactly 1,000 miles.
func thousandMileRoute() *routing.Route {
	points := []geometry.Point{
		{Lat: 25.774, Lon: -80.19},
		{Lat: 39.0, Lon: -84.5},
	}
	return &routing.Route{
		Polyline:       geometry.EncodePolyline6(points),
		DistanceMeters: 1609344,
		Points:         points,
	}
}

func newTestServer(routes RouteFetcher, stations StationSource) *Server {
	svc := NewPlanService(routes, stations, emptyRouterFactory(), planner.DefaultConfig(), false, testLogger())
	return NewServer(svc, nil, "", testLogger())
}

func postPlan(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/plan", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandlePlan_FullFlow(t *testing.T) {
	stations := []station.WithFraction{
		{OpisID: 1, Name: "Cheap Stop", City: "A", State: "FL", Price: 2.00, Fraction: 0.2, Lat: 27, Lon: -81},
		{OpisID: 2, Name: "Pricey Stop", City: "B", State: "GA", Price: 4.00, Fraction: 0.6, Lat: 31, Lon: -83},
		{OpisID: 3, Name: "Late Stop", City: "C", State: "TN", Price: 2.10, Fraction: 0.8, Lat: 34, Lon: -84},
	}
	srv := newTestServer(&stubRoutes{route: thousandMileRoute()}, &stubStations{stations: stations})

	rec := postPlan(t, srv.Handler(), `{
		"start": {"lat": 25.774, "lon": -80.19},
		"finish": {"lat": 39.0, "lon": -84.5},
		"corridor_miles": 10
	}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp PlanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.InDelta(t, 1000, resp.RouteDistanceMiles, 1e-6)
	require.Len(t, resp.FuelPlan, 3)
	assert.Equal(t, int64(1), resp.FuelPlan[0].StationID)
	assert.InDelta(t, 200, resp.FuelPlan[0].MilesFromStart, 0.1)
	assert.InDelta(t, 20, resp.FuelPlan[0].GallonsPurchased, 0.01)
	assert.Equal(t, int64(2), resp.FuelPlan[1].StationID)
	assert.InDelta(t, 10, resp.FuelPlan[1].GallonsPurchased, 0.01)
	assert.Equal(t, int64(3), resp.FuelPlan[2].StationID)
	assert.InDelta(t, 20, resp.FuelPlan[2].GallonsPurchased, 0.01)
	assert.InDelta(t, 122.00, resp.TotalCost, 0.001)
	assert.InDelta(t, 50, resp.TotalGallons, 0.001)

	// bbox derives from the decoded polyline, not the zero placeholder.
	assert.InDelta(t, -84.5, resp.BBox[0], 1e-4)
	assert.InDelta(t, 25.774, resp.BBox[1], 1e-4)
	assert.InDelta(t, -80.19, resp.BBox[2], 1e-4)
	assert.InDelta(t, 39.0, resp.BBox[3], 1e-4)
}

func TestHandlePlan_InfeasibleReturns422(t *testing.T) {
	// A single station at mile 600 is beyond the initial 500-mile range.
	stations := []station.WithFraction{
		{OpisID: 9, Name: "Too Far", Price: 3.00, Fraction: 0.6},
	}
	srv := newTestServer(&stubRoutes{route: thousandMileRoute()}, &stubStations{stations: stations})

	rec := postPlan(t, srv.Handler(), `{
		"start": {"lat": 25.774, "lon": -80.19},
		"finish": {"lat": 39.0, "lon": -84.5}
	}`)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "No stations within range to continue trip.", body["error"])
	assert.Contains(t, body["detail"], "corridor_miles")
}

func TestHandlePlan_ValidationErrors(t *testing.T) {
	srv := newTestServer(&stubRoutes{route: thousandMileRoute()}, &stubStations{})
	handler := srv.Handler()

	tests := []struct {
		name string
		body string
	}{
		{"empty start", `{"start": "", "finish": "Atlanta, GA"}`},
		{"bad coords", `{"start": {"lat": 95, "lon": 0}, "finish": "Atlanta, GA"}`},
		{"missing lon", `{"start": {"lat": 25}, "finish": "Atlanta, GA"}`},
		{"corridor too wide", `{"start": {"lat": 25, "lon": -80}, "finish": {"lat": 30, "lon": -82}, "corridor_miles": 51}`},
		{"corridor zero", `{"start": {"lat": 25, "lon": -80}, "finish": {"lat": 30, "lon": -82}, "corridor_miles": 0}`},
		{"not json", `{{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postPlan(t, handler, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestHandlePlan_GeocodeFailureReturns400WithHint(t *testing.T) {
	// No providers configured: every geocode attempt fails, and the
	// commercial provider is not viable, so the hint is appended.
	srv := newTestServer(&stubRoutes{route: thousandMileRoute()}, &stubStations{})

	rec := postPlan(t, srv.Handler(), `{"start": "Nowhere Special, ZZ", "finish": {"lat": 30, "lon": -82}}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "Could not geocode location: Nowhere Special, ZZ.")
	assert.Contains(t, body["error"], "Google Maps API Key not configured")
}

func TestHandlePlan_RoutingEngineFailureReturns500(t *testing.T) {
	engineErr := apperror.New(apperror.CodeRoutingEngineError, "routing engine unreachable")
	srv := newTestServer(&stubRoutes{err: engineErr}, &stubStations{})

	rec := postPlan(t, srv.Handler(), `{"start": {"lat": 25, "lon": -80}, "finish": {"lat": 30, "lon": -82}}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(&stubRoutes{}, &stubStations{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEndpoint_UnmarshalJSON(t *testing.T) {
	var e Endpoint
	require.NoError(t, json.Unmarshal([]byte(`"Miami, FL"`), &e))
	assert.Equal(t, "Miami, FL", e.Address)
	assert.Nil(t, e.Coords)

	var c Endpoint
	require.NoError(t, json.Unmarshal([]byte(`{"lat": 25.5, "lon": -80.1}`), &c))
	require.NotNil(t, c.Coords)
	assert.InDelta(t, 25.5, c.Coords.Lat, 1e-9)

	var bad Endpoint
	assert.Error(t, json.Unmarshal([]byte(`{"lat": 25.5}`), &bad))
}
