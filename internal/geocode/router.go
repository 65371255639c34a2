package geocode

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"fuelroute/internal/classify"
	"fuelroute/internal/geometry"
	"fuelroute/pkg/metrics"
	"fuelroute/pkg/telemetry"
)

var exitStripRe = regexp.MustCompile(`(?i)\bEXIT\s+\d+\b`)

// PriorityGoogleThenCensus selects the POSTAL_ADDRESS strategy that tries
// the commercial provider before Census. PrioritySmart is the default
// Census-first strategy; NewRouter uses it when given an empty priority.
const (
	PrioritySmart            = "smart"
	PriorityGoogleThenCensus = "google_then_census"
)

// AuditEntry records one provider attempt made while resolving a query.
type AuditEntry struct {
	Provider string
	Strategy string
	Query    string
	Meta     Metadata
}

// Debug is the structured trail returned alongside a geocode attempt: the
// full audit log plus, on success, the label recording how the point was
// resolved, or on total failure a terminal reason code.
type Debug struct {
	Audit        []AuditEntry
	Success      bool
	SuccessLabel string
	Reason       string
}

// Router dispatches a geocode query to the provider strategy selected by
// address classification, with a per-request cache and fallback chain. A
// Router is constructed fresh per planning request — its cache is never
// shared across requests.
type Router struct {
	commercial *CommercialProvider
	census     *CensusProvider
	osm        *OSMProvider
	priority   string

	cache map[string]cachedCall
}

type cachedCall struct {
	point *geometry.Point
	meta  Metadata
}

// NewRouter constructs a Router for a single planning or ingest request.
func NewRouter(commercial *CommercialProvider, census *CensusProvider, osm *OSMProvider, priority string) *Router {
	if priority == "" {
		priority = PrioritySmart
	}
	return &Router{
		commercial: commercial,
		census:     census,
		osm:        osm,
		priority:   priority,
		cache:      make(map[string]cachedCall),
	}
}

// CommercialViable reports whether the commercial provider has a key
// configured. The HTTP shell uses it to append a configuration hint to
// geocoding-failure responses.
func (r *Router) CommercialViable() bool {
	return r.commercial != nil && r.commercial.Viable()
}

func (r *Router) commercialViable() bool { return r.CommercialViable() }

func (r *Router) providerByName(name string) Provider {
	switch name {
	case "commercial":
		if r.commercial == nil {
			return nil
		}
		return r.commercial
	case "census":
		if r.census == nil {
			return nil
		}
		return r.census
	case "osm":
		if r.osm == nil {
			return nil
		}
		return r.osm
	default:
		return nil
	}
}

// call invokes a named provider for query, using (and populating) the
// per-request in-process cache keyed by "<provider>:<exact query>".
func (r *Router) call(ctx context.Context, providerName, query string) (*geometry.Point, Metadata) {
	key := providerName + ":" + query
	if cached, ok := r.cache[key]; ok {
		return cached.point, cached.meta
	}

	p := r.providerByName(providerName)
	if p == nil {
		meta := Metadata{Provider: providerName, Success: false, Error: "provider not configured"}
		r.cache[key] = cachedCall{nil, meta}
		return nil, meta
	}

	started := time.Now()
	point, meta := p.Geocode(ctx, query)
	metrics.Get().RecordGeocodeCall(providerName, meta.Success, time.Since(started))

	r.cache[key] = cachedCall{point, meta}
	return point, meta
}

type attempt struct {
	provider string
	strategy string
	query    string
}

// GeocodeString resolves a free-text query: commercial (if viable), then
// Census, then OSM — first success wins.
func (r *Router) GeocodeString(ctx context.Context, q string) (*geometry.Point, Debug) {
	var attempts []attempt
	if r.commercialViable() {
		attempts = append(attempts, attempt{"commercial", "commercial_query", q})
	}
	attempts = append(attempts, attempt{"census", "census_query", q})
	attempts = append(attempts, attempt{"osm", "osm_query", q})

	point, debug := r.walk(ctx, attempts)
	if !debug.Success {
		debug.Reason = "string_query_exhausted"
	}
	return point, debug
}

// GeocodeStation resolves a station's (address, city, state) triple using
// the classification-driven strategy table.
func (r *Router) GeocodeStation(ctx context.Context, addr, city, state string) (*geometry.Point, Debug) {
	ctx, span := telemetry.StartSpan(ctx, "geocode.station")
	defer span.End()

	classified := classify.Classify(addr)
	noExitAddr := stripExitTokens(addr)
	place := fmt.Sprintf("%s, %s", city, state)

	attempts, terminalReason := r.stationAttempts(classified, addr, noExitAddr, city, state, place)

	point, debug := r.walk(ctx, attempts)
	if !debug.Success {
		debug.Reason = terminalReason
	}

	provider := ""
	cacheHit := false
	if n := len(debug.Audit); n > 0 {
		last := debug.Audit[n-1]
		provider = last.Provider
		if hit, ok := last.Meta.Raw["cache_hit"].(bool); ok {
			cacheHit = hit
		}
	}
	span.SetAttributes(telemetry.GeocodeAttributes(provider, string(classified.Tag), cacheHit)...)

	return point, debug
}

func (r *Router) stationAttempts(classified classify.ClassifiedAddress, addr, noExitAddr, city, state, place string) ([]attempt, string) {
	fullAddr := fmt.Sprintf("%s, %s, %s", addr, city, state)
	noExitFull := fmt.Sprintf("%s, %s, %s", noExitAddr, city, state)

	switch classified.Tag {
	case classify.PostalAddress:
		if r.priority == PriorityGoogleThenCensus && r.commercialViable() {
			return []attempt{
				{"commercial", "postal_full_address", fullAddr},
				{"census", "postal_full_address", fullAddr},
				{"census", "postal_addr_only", addr},
			}, "postal_no_match"
		}
		attempts := []attempt{
			{"census", "postal_full_address", fullAddr},
			{"census", "postal_addr_only", addr},
		}
		if r.commercialViable() {
			attempts = append(attempts, attempt{"commercial", "postal_full_address", fullAddr})
		}
		return attempts, "postal_no_match"

	case classify.HighwayIntersection2:
		pairs := classify.RoadPairRank(classified.RoadTokens, 1)
		attempts := []attempt{
			{"commercial", "hwy2_no_exit", noExitFull},
		}
		if len(pairs) > 0 {
			attempts = append(attempts, attempt{"commercial", "hwy2_best_pair_0", fmt.Sprintf("%s, %s", pairs[0].String(), place)})
		}
		attempts = append(attempts, attempt{"commercial", "hwy2_place", place})
		return attempts, "hwy2_no_match"

	case classify.HighwayIntersectionMulti:
		pairs := classify.RoadPairRank(classified.RoadTokens, 2)
		var attempts []attempt
		for i, pair := range pairs {
			attempts = append(attempts, attempt{
				provider: "commercial",
				strategy: fmt.Sprintf("hwy_multi_best_pair_%d", i),
				query:    fmt.Sprintf("%s, %s", pair.String(), place),
			})
		}
		attempts = append(attempts,
			attempt{"commercial", "hwy_multi_no_exit", noExitFull},
			attempt{"commercial", "hwy_multi_place", place},
		)
		return attempts, "hwy_multi_no_match"

	case classify.SingleRoute, classify.MileMarker:
		return []attempt{
			{"commercial", "place_only", place},
		}, "unresolvable_single_route_no_place"

	default: // classify.Unknown
		return []attempt{
			{"commercial", "unknown_no_exit", noExitFull},
			{"commercial", "unknown_place", place},
		}, "unknown_exhausted"
	}
}

// walk runs each attempt in order, recording an audit entry for every call,
// and returns the first success.
func (r *Router) walk(ctx context.Context, attempts []attempt) (*geometry.Point, Debug) {
	var debug Debug

	for _, a := range attempts {
		select {
		case <-ctx.Done():
			debug.Reason = "context cancelled"
			return nil, debug
		default:
		}

		point, meta := r.call(ctx, a.provider, a.query)
		debug.Audit = append(debug.Audit, AuditEntry{
			Provider: a.provider,
			Strategy: a.strategy,
			Query:    a.query,
			Meta:     meta,
		})

		if meta.Success && point != nil {
			debug.Success = true
			debug.SuccessLabel = fmt.Sprintf("%s:%s", a.provider, a.strategy)
			return point, debug
		}
	}

	return nil, debug
}

func stripExitTokens(addr string) string {
	return classify.CollapseWhitespace(exitStripRe.ReplaceAllString(addr, " "))
}
