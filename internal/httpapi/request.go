// Package httpapi is the thin HTTP shell over the planning core: request
// decoding and validation, the X-API-Key gate, middleware, and the error
// translation of the planning endpoint.
package httpapi

import (
	"encoding/json"
	"fmt"

	"fuelroute/internal/geometry"
	"fuelroute/pkg/apperror"
)

const (
	defaultCorridorMiles = 10
	minCorridorMiles     = 1
	maxCorridorMiles     = 50
)

// Endpoint is one side of a plan request: either a free-text address or an
// explicit coordinate pair.
type Endpoint struct {
	Address string
	Coords  *geometry.Point
}

// UnmarshalJSON accepts either a JSON string or a {"lat":..,"lon":..} object.
func (e *Endpoint) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		e.Address = s
		return nil
	}

	var coords struct {
		Lat *float64 `json:"lat"`
		Lon *float64 `json:"lon"`
	}
	if err := json.Unmarshal(data, &coords); err != nil {
		return fmt.Errorf("must be a string or coordinate object")
	}
	if coords.Lat == nil || coords.Lon == nil {
		return fmt.Errorf("coordinates must contain 'lat' and 'lon'")
	}

	e.Coords = &geometry.Point{Lat: *coords.Lat, Lon: *coords.Lon}
	return nil
}

// PlanRequest is the body of POST /plan.
type PlanRequest struct {
	Start         Endpoint `json:"start"`
	Finish        Endpoint `json:"finish"`
	CorridorMiles *int     `json:"corridor_miles"`
}

// Validate checks the request and returns the effective corridor width.
func (r *PlanRequest) Validate() (int, error) {
	if err := validateEndpoint("start", r.Start); err != nil {
		return 0, err
	}
	if err := validateEndpoint("finish", r.Finish); err != nil {
		return 0, err
	}

	corridor := defaultCorridorMiles
	if r.CorridorMiles != nil {
		corridor = *r.CorridorMiles
	}
	if corridor < minCorridorMiles || corridor > maxCorridorMiles {
		return 0, apperror.NewWithField(apperror.CodeValidation,
			fmt.Sprintf("corridor_miles must be between %d and %d", minCorridorMiles, maxCorridorMiles),
			"corridor_miles")
	}
	return corridor, nil
}

func validateEndpoint(field string, e Endpoint) error {
	if e.Coords != nil {
		if !geometry.ValidateWGS84(*e.Coords) {
			return apperror.NewWithField(apperror.CodeInvalidCoordinate,
				"lat must be in [-90, 90] and lon in [-180, 180]", field)
		}
		return nil
	}
	if e.Address == "" {
		return apperror.NewWithField(apperror.CodeValidation, "address cannot be empty", field)
	}
	return nil
}

// LatLon is a coordinate pair in a response body.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// RouteStep is one refueling stop in the response fuel plan.
type RouteStep struct {
	StationID        int64   `json:"station_id"`
	Name             string  `json:"name"`
	Address          string  `json:"address"`
	City             string  `json:"city"`
	State            string  `json:"state"`
	Lat              float64 `json:"lat"`
	Lon              float64 `json:"lon"`
	PricePerGallon   float64 `json:"price_per_gallon"`
	MilesFromStart   float64 `json:"miles_from_start"`
	GallonsPurchased float64 `json:"gallons_purchased"`
	StopCost         float64 `json:"stop_cost"`
}

// PlanResponse is the 200 body of POST /plan.
type PlanResponse struct {
	Start              LatLon      `json:"start"`
	Finish             LatLon      `json:"finish"`
	RouteDistanceMiles float64     `json:"route_distance_miles"`
	BBox               [4]float64  `json:"bbox"`
	Polyline           string      `json:"polyline"`
	FuelPlan           []RouteStep `json:"fuel_plan"`
	TotalCost          float64     `json:"total_cost"`
	TotalGallons       float64     `json:"total_gallons"`
}
