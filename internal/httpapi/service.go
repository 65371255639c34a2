package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fuelroute/internal/geocode"
	"fuelroute/internal/geometry"
	"fuelroute/internal/planner"
	"fuelroute/internal/routing"
	"fuelroute/internal/station"
	"fuelroute/pkg/apperror"
	"fuelroute/pkg/metrics"
	"fuelroute/pkg/telemetry"
)

// Contiguous-US sanity box. Endpoints outside it are logged, not rejected.
const (
	usaMinLat = 24.0
	usaMaxLat = 50.0
	usaMinLon = -125.0
	usaMaxLon = -66.0
)

// RouteFetcher is the routing-engine capability the service needs.
type RouteFetcher interface {
	GetRoute(ctx context.Context, start, finish geometry.Point) (*routing.Route, error)
}

// StationSource is the repository capability the service needs.
type StationSource interface {
	StationsWithinCorridor(ctx context.Context, line []geometry.Point, corridorMiles float64) ([]station.WithFraction, error)
}

// RouterFactory builds a fresh geocoding Router per request; its in-process
// cache lives and dies with that request.
type RouterFactory func() *geocode.Router

// PlanService orchestrates one planning request: endpoint resolution, the
// routing engine call, the corridor query, and the greedy planner.
type PlanService struct {
	routes      RouteFetcher
	stations    StationSource
	newRouter   RouterFactory
	plannerCfg  planner.Config
	warnOutside bool
	log         *slog.Logger
}

// NewPlanService wires a PlanService.
func NewPlanService(routes RouteFetcher, stations StationSource, newRouter RouterFactory, plannerCfg planner.Config, warnOutsideUS bool, log *slog.Logger) *PlanService {
	return &PlanService{
		routes:      routes,
		stations:    stations,
		newRouter:   newRouter,
		plannerCfg:  plannerCfg,
		warnOutside: warnOutsideUS,
		log:         log,
	}
}

// Plan executes the full planning flow for a validated request.
func (s *PlanService) Plan(ctx context.Context, req *PlanRequest, corridorMiles int) (*PlanResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "plan")
	defer span.End()

	started := time.Now()

	resp, err := s.plan(ctx, req, corridorMiles)

	stops := 0
	distance := 0.0
	if resp != nil {
		stops = len(resp.FuelPlan)
		distance = resp.RouteDistanceMiles
		span.SetAttributes(telemetry.PlannerAttributes(stops, distance, resp.TotalCost)...)
	}
	if err != nil {
		telemetry.SetError(ctx, err)
	}
	metrics.Get().RecordPlanOperation(err == nil, time.Since(started), stops, distance)

	return resp, err
}

func (s *PlanService) plan(ctx context.Context, req *PlanRequest, corridorMiles int) (*PlanResponse, error) {
	router := s.newRouter()

	start, err := s.resolveEndpoint(ctx, router, req.Start)
	if err != nil {
		return nil, err
	}
	finish, err := s.resolveEndpoint(ctx, router, req.Finish)
	if err != nil {
		return nil, err
	}

	if s.warnOutside {
		for _, p := range []geometry.Point{start, finish} {
			if p.Lat < usaMinLat || p.Lat > usaMaxLat || p.Lon < usaMinLon || p.Lon > usaMaxLon {
				s.log.Warn("endpoint outside contiguous US bounds", "lat", p.Lat, "lon", p.Lon)
			}
		}
	}

	route, err := s.routes.GetRoute(ctx, start, finish)
	if err != nil {
		return nil, err
	}

	candidates, err := s.stations.StationsWithinCorridor(ctx, route.Points, float64(corridorMiles))
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeStoreError, "load corridor stations")
	}

	totalMiles := geometry.MetersToMiles(route.DistanceMeters)

	plannerInput := make([]planner.StationCandidate, len(candidates))
	for i, c := range candidates {
		plannerInput[i] = planner.StationCandidate{
			OpisID:   c.OpisID,
			Name:     c.Name,
			Address:  c.Address,
			City:     c.City,
			State:    c.State,
			Lat:      c.Lat,
			Lon:      c.Lon,
			Price:    c.Price,
			Fraction: c.Fraction,
		}
	}

	result, err := planner.Plan(s.plannerCfg, plannerInput, totalMiles)
	if err != nil {
		return nil, err
	}

	steps := make([]RouteStep, len(result.Stops))
	for i, stop := range result.Stops {
		steps[i] = RouteStep{
			StationID:        stop.OpisID,
			Name:             stop.Name,
			Address:          stop.Address,
			City:             stop.City,
			State:            stop.State,
			Lat:              stop.Lat,
			Lon:              stop.Lon,
			PricePerGallon:   stop.Price,
			MilesFromStart:   stop.MilesFromStart,
			GallonsPurchased: stop.GallonsPurchased,
			StopCost:         stop.StopCost,
		}
	}

	return &PlanResponse{
		Start:              LatLon{Lat: start.Lat, Lon: start.Lon},
		Finish:             LatLon{Lat: finish.Lat, Lon: finish.Lon},
		RouteDistanceMiles: totalMiles,
		BBox:               geometry.ComputeBBox(route.Points),
		Polyline:           route.Polyline,
		FuelPlan:           steps,
		TotalCost:          result.TotalCost,
		TotalGallons:       result.TotalGallons,
	}, nil
}

// resolveEndpoint turns a request endpoint into a coordinate: explicit
// coordinates pass through, free text goes to the geocoding router.
func (s *PlanService) resolveEndpoint(ctx context.Context, router *geocode.Router, e Endpoint) (geometry.Point, error) {
	if e.Coords != nil {
		return *e.Coords, nil
	}

	point, debug := router.GeocodeString(ctx, e.Address)
	if point == nil {
		msg := fmt.Sprintf("Could not geocode location: %s.", e.Address)
		if !router.CommercialViable() {
			msg += " (Google Maps API Key not configured, and Census API failed for this input)."
		}
		return geometry.Point{}, apperror.New(apperror.CodeGeocodingUnresolved, msg).
			WithDetails("reason", debug.Reason)
	}
	return *point, nil
}
