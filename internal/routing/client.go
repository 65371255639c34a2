// Package routing is the client for the external OSRM-compatible routing
// engine: one GET per start/finish pair, polyline precision-6 geometry back,
// responses cached for 24 hours.
package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"fuelroute/internal/geometry"
	"fuelroute/pkg/apperror"
	"fuelroute/pkg/cache"
	"fuelroute/pkg/logger"
)

const (
	requestTimeout = 10 * time.Second
	cacheTTL       = 24 * time.Hour
)

// Route is the routing engine's answer: the encoded polyline, the total
// distance in meters, and the decoded vertex sequence.
type Route struct {
	Polyline       string           `json:"polyline"`
	DistanceMeters float64          `json:"distance_meters"`
	Points         []geometry.Point `json:"points"`
}

// Client talks to an OSRM-compatible routing engine.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cache      cache.Cache
}

// NewClient creates a routing client against baseURL
// (e.g. "https://router.project-osrm.org/route/v1/driving"). routeCache may
// be nil to disable response caching.
func NewClient(baseURL string, routeCache cache.Cache) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    baseURL,
		cache:      routeCache,
	}
}

type osrmResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Geometry string  `json:"geometry"`
		Distance float64 `json:"distance"`
	} `json:"routes"`
}

// GetRoute returns the driving route from start to finish, consulting the
// 24-hour response cache first.
func (c *Client) GetRoute(ctx context.Context, start, finish geometry.Point) (*Route, error) {
	key := cache.RouteKey(start.Lat, start.Lon, finish.Lat, finish.Lon)

	if c.cache != nil {
		if raw, err := c.cache.Get(ctx, key); err == nil {
			var cached Route
			if err := json.Unmarshal(raw, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	route, err := c.fetch(ctx, start, finish)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if raw, err := json.Marshal(route); err == nil {
			if err := c.cache.Set(ctx, key, raw, cacheTTL); err != nil {
				logger.Log.Warn("routing: failed to cache route", "error", err)
			}
		}
	}

	return route, nil
}

func (c *Client) fetch(ctx context.Context, start, finish geometry.Point) (*Route, error) {
	// OSRM wants lon,lat pairs in the path.
	u := fmt.Sprintf("%s/%f,%f;%f,%f?overview=full&geometries=polyline6&steps=false",
		c.baseURL, start.Lon, start.Lat, finish.Lon, finish.Lat)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeRoutingEngineError, "build routing request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeRoutingEngineError, "routing engine unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperror.New(apperror.CodeRoutingEngineError,
			fmt.Sprintf("routing engine returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeRoutingEngineError, "read routing response")
	}

	var parsed osrmResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeRoutingEngineError, "decode routing response")
	}

	if parsed.Code != "Ok" || len(parsed.Routes) == 0 {
		return nil, apperror.New(apperror.CodeRoutingEngineError,
			fmt.Sprintf("routing engine returned code %q with %d routes", parsed.Code, len(parsed.Routes)))
	}

	r := parsed.Routes[0]
	points, err := geometry.DecodePolyline6(r.Geometry)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeRoutingEngineError, "decode route polyline")
	}
	if len(points) < 2 {
		return nil, apperror.New(apperror.CodeRoutingEngineError, "route polyline has fewer than two vertices")
	}

	return &Route{
		Polyline:       r.Geometry,
		DistanceMeters: r.Distance,
		Points:         points,
	}, nil
}

// IsEngineError reports whether err originated in the routing engine layer.
func IsEngineError(err error) bool {
	var appErr *apperror.Error
	return errors.As(err, &appErr) && appErr.Code == apperror.CodeRoutingEngineError
}
