// Package planner implements the greedy fuel-stop algorithm: a pure
// function over a list of stations already projected onto the route
// polyline. It holds no state and performs no I/O, so it is trivially
// unit-testable by injecting the projected-station list directly (see
// internal/station for the repository that produces that list in
// production).
package planner

import (
	"math"
	"sort"

	"fuelroute/pkg/apperror"
)

// StationCandidate is one station already annotated with its normalized
// [0,1] position along the route (the repository's ST_LineLocatePoint
// analog).
type StationCandidate struct {
	OpisID   int64
	Name     string
	Address  string
	City     string
	State    string
	Lat      float64
	Lon      float64
	Price    float64
	Fraction float64
}

// Stop is one refueling event in the emitted plan.
type Stop struct {
	OpisID           int64
	Name             string
	Address          string
	City             string
	State            string
	Lat              float64
	Lon              float64
	Price            float64
	MilesFromStart   float64
	GallonsPurchased float64
	StopCost         float64
}

// Result is a complete fuel-stop plan.
type Result struct {
	Stops        []Stop
	TotalCost    float64
	TotalGallons float64
}

// Config holds the vehicle constants the planner applies.
type Config struct {
	VehicleMPG          float64
	TankCapacityGallons float64
}

// DefaultConfig returns the standard vehicle constants: 10 mpg, 50-gallon
// tank, for a 500-mile full-tank range.
func DefaultConfig() Config {
	return Config{VehicleMPG: 10, TankCapacityGallons: 50}
}

// MaxRangeMiles is the full-tank range in miles.
func (c Config) MaxRangeMiles() float64 {
	return c.VehicleMPG * c.TankCapacityGallons
}

type projected struct {
	StationCandidate
	Dist float64
}

// Plan runs the greedy refueling algorithm. stations need not be
// pre-sorted; Plan sorts a copy by Fraction before planning.
func Plan(cfg Config, stations []StationCandidate, totalDistanceMiles float64) (*Result, error) {
	maxRange := cfg.MaxRangeMiles()

	sorted := make([]projected, len(stations))
	for i, s := range stations {
		sorted[i] = projected{StationCandidate: s, Dist: s.Fraction * totalDistanceMiles}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Dist < sorted[j].Dist })

	pos := 0.0
	fuelMiles := maxRange
	destination := totalDistanceMiles
	var stops []Stop

	for {
		if fuelMiles >= destination-pos {
			break
		}

		maxReach := pos + fuelMiles
		reachable := stationsBetween(sorted, pos, maxReach)
		if len(reachable) == 0 {
			return nil, apperror.New(apperror.CodePlanningInfeasible, "No stations within range to continue trip.")
		}

		safe := safeChoices(sorted, reachable, maxRange, destination)
		if len(safe) == 0 {
			return nil, apperror.New(apperror.CodePlanningInfeasible, "No safe reachable stations found (dead-end detected).")
		}

		chosen := cheapestFirst(safe)

		fuelMiles -= chosen.Dist - pos
		pos = chosen.Dist

		gallons := purchaseAmount(cfg, sorted, chosen, pos, fuelMiles, destination, maxRange)

		stops = append(stops, Stop{
			OpisID:           chosen.OpisID,
			Name:             chosen.Name,
			Address:          chosen.Address,
			City:             chosen.City,
			State:            chosen.State,
			Lat:              chosen.Lat,
			Lon:              chosen.Lon,
			Price:            chosen.Price,
			MilesFromStart:   round(pos, 1),
			GallonsPurchased: round(gallons, 2),
			StopCost:         round(gallons*chosen.Price, 2),
		})

		fuelMiles += gallons * cfg.VehicleMPG
	}

	result := &Result{Stops: stops}
	for _, s := range stops {
		result.TotalCost += s.StopCost
		result.TotalGallons += s.GallonsPurchased
	}
	result.TotalCost = round(result.TotalCost, 2)
	result.TotalGallons = round(result.TotalGallons, 2)
	return result, nil
}

// stationsBetween returns stations s with lo < s.Dist <= hi; the planner's
// reachable and future sets are both half-open on the low end and closed
// on the high end.
func stationsBetween(sorted []projected, lo, hi float64) []projected {
	var out []projected
	for _, s := range sorted {
		if s.Dist > lo && s.Dist <= hi {
			out = append(out, s)
		}
	}
	return out
}

// safeChoices filters reachable candidates to those from which at least
// one further station (or the destination) is itself reachable within one
// tank — the dead-end-avoidance rule.
func safeChoices(all []projected, reachable []projected, maxRange, destination float64) []projected {
	var out []projected
	for _, c := range reachable {
		if c.Dist+maxRange >= destination {
			out = append(out, c)
			continue
		}
		hasFollowUp := false
		for _, s := range all {
			if s.Dist > c.Dist && s.Dist <= c.Dist+maxRange {
				hasFollowUp = true
				break
			}
		}
		if hasFollowUp {
			out = append(out, c)
		}
	}
	return out
}

// cheapestFirst picks the lowest-price candidate, breaking ties by nearest distance.
func cheapestFirst(candidates []projected) projected {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Price < best.Price || (c.Price == best.Price && c.Dist < best.Dist) {
			best = c
		}
	}
	return best
}

// purchaseAmount computes the gallons to buy at the just-arrived stop.
//
// The lookahead is bounded to one full tank from the stop: the first
// station in distance order strictly cheaper than the stop sets the
// purchase target, and the vehicle buys just enough to reach it. With no
// cheaper station in the window, it buys to the destination when that is
// within a tank, otherwise fills up.
func purchaseAmount(cfg Config, all []projected, stop projected, pos, fuelMiles, destination, maxRange float64) float64 {
	future := stationsBetween(all, pos, pos+maxRange)

	var cheaper *projected
	for i := range future {
		if future[i].Price < stop.Price {
			cheaper = &future[i]
			break
		}
	}

	switch {
	case cheaper != nil:
		needMiles := cheaper.Dist - pos
		return math.Max(0, needMiles-fuelMiles) / cfg.VehicleMPG
	case destination-pos <= maxRange:
		return math.Max(0, (destination-pos)-fuelMiles) / cfg.VehicleMPG
	default:
		return cfg.TankCapacityGallons - fuelMiles/cfg.VehicleMPG
	}
}

func round(v float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.Round(v*scale) / scale
}
