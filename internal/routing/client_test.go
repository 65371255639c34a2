package routing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fuelroute/internal/geometry"
	"fuelroute/pkg/apperror"
	"fuelroute/pkg/cache"
	"fuelroute/pkg/logger"
)

func init() {
	logger.Init("error")
}

// fiveVertexPolyline6 encodes a short five-vertex line so the decoded route
// has real geometry to assert against.
func fiveVertexPolyline6(t *testing.T) (string, []geometry.Point) {
	t.Helper()
	points := []geometry.Point{
		{Lat: 25.774, Lon: -80.19},
		{Lat: 26.1, Lon: -80.3},
		{Lat: 27.0, Lon: -81.0},
		{Lat: 28.5, Lon: -81.4},
		{Lat: 30.33, Lon: -81.66},
	}
	return geometry.EncodePolyline6(points), points
}

func TestGetRoute_Success(t *testing.T) {
	encoded, points := fiveVertexPolyline6(t)

	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, "full", r.URL.Query().Get("overview"))
		assert.Equal(t, "polyline6", r.URL.Query().Get("geometries"))
		assert.Equal(t, "false", r.URL.Query().Get("steps"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":"Ok","routes":[{"geometry":"` + encoded + `","distance":548000.5}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	route, err := client.GetRoute(context.Background(), points[0], points[len(points)-1])

	require.NoError(t, err)
	assert.Equal(t, encoded, route.Polyline)
	assert.InDelta(t, 548000.5, route.DistanceMeters, 1e-9)
	require.Len(t, route.Points, len(points))
	assert.InDelta(t, points[0].Lat, route.Points[0].Lat, 1e-5)
	assert.Contains(t, gotPath, "-80.19")
}

func TestGetRoute_NonOkCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":"NoRoute","routes":[]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	_, err := client.GetRoute(context.Background(), geometry.Point{Lat: 1, Lon: 1}, geometry.Point{Lat: 2, Lon: 2})

	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.CodeRoutingEngineError))
}

func TestGetRoute_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	_, err := client.GetRoute(context.Background(), geometry.Point{Lat: 1, Lon: 1}, geometry.Point{Lat: 2, Lon: 2})

	require.Error(t, err)
	assert.True(t, IsEngineError(err))
}

func TestGetRoute_CacheHitSkipsEngine(t *testing.T) {
	encoded, points := fiveVertexPolyline6(t)

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":"Ok","routes":[{"geometry":"` + encoded + `","distance":1000}]}`))
	}))
	defer srv.Close()

	routeCache := cache.NewMemoryCache(nil)
	defer routeCache.Close()

	client := NewClient(srv.URL, routeCache)

	first, err := client.GetRoute(context.Background(), points[0], points[4])
	require.NoError(t, err)

	second, err := client.GetRoute(context.Background(), points[0], points[4])
	require.NoError(t, err)

	assert.Equal(t, 1, calls, "second request should be served from cache")
	assert.Equal(t, first.Polyline, second.Polyline)
	assert.Equal(t, first.DistanceMeters, second.DistanceMeters)
}
