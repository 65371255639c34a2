package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Standard attribute keys used across the service's spans.
const (
	AttrGeocodeProvider       = "geocode.provider"
	AttrGeocodeClassification = "geocode.classification"
	AttrGeocodeCacheHit       = "geocode.cache_hit"

	AttrPlannerStops         = "planner.stops"
	AttrPlannerDistanceMiles = "planner.distance_miles"
	AttrPlannerTotalCost     = "planner.total_cost"

	AttrRoutingCacheHit = "routing.cache_hit"

	AttrIngestRowsTotal    = "ingest.rows_total"
	AttrIngestRowsResolved = "ingest.rows_resolved"
)

// GeocodeAttributes returns span attributes for a single geocoding lookup.
func GeocodeAttributes(provider, classification string, cacheHit bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrGeocodeProvider, provider),
		attribute.String(AttrGeocodeClassification, classification),
		attribute.Bool(AttrGeocodeCacheHit, cacheHit),
	}
}

// PlannerAttributes returns span attributes for a completed fuel-stop plan.
func PlannerAttributes(stops int, distanceMiles, totalCost float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrPlannerStops, stops),
		attribute.Float64(AttrPlannerDistanceMiles, distanceMiles),
		attribute.Float64(AttrPlannerTotalCost, totalCost),
	}
}

// IngestAttributes returns span attributes for a bulk ingest run.
func IngestAttributes(rowsTotal, rowsResolved int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrIngestRowsTotal, rowsTotal),
		attribute.Int(AttrIngestRowsResolved, rowsResolved),
	}
}
