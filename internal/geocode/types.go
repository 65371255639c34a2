// Package geocode implements the multi-provider geocoding router: three
// interchangeable provider backends behind a uniform contract, and a
// classification-driven router that walks a per-classification strategy
// table until one provider succeeds.
package geocode

import (
	"context"
	"strings"

	"fuelroute/internal/geometry"
)

// Metadata is the small structured record every provider call returns,
// alongside the point (or lack of one). Success carries the provider name;
// failure additionally carries Error.
type Metadata struct {
	Provider string
	Success  bool
	Error    string
	Raw      map[string]any
}

// Provider is the capability every geocoding backend implements: a name and
// a single geocode operation that never raises past its own boundary.
type Provider interface {
	Name() string
	Geocode(ctx context.Context, query string) (*geometry.Point, Metadata)
}

// NormalizeQuery lowercases, trims, and collapses internal whitespace —
// the form used as the GeocodeCache's deduplication key.
func NormalizeQuery(query string) string {
	fields := strings.Fields(strings.ToLower(query))
	return strings.Join(fields, " ")
}

// CacheStore is the persistent GeocodeCacheEntry store consulted and
// written by the Census provider. Get looks up by the normalized key. The
// Postgres-backed implementation, PostgresCacheStore in this package,
// resolves concurrent inserts of the same raw query text to a single row
// with no error surfaced to the caller; it does not enforce one row per
// normalized key.
type CacheStore interface {
	Get(ctx context.Context, normalizedQuery string) (*geometry.Point, map[string]any, bool, error)
	Put(ctx context.Context, queryText, normalizedQuery string, point geometry.Point, metadata map[string]any) error
}
