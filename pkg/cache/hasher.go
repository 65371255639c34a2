package cache

import "fmt"

// RouteKey builds the cache key for a routing-engine response, keyed by the
// rounded start/finish coordinate pair. Rounding to 1e-4 degrees (~11m) lets
// near-identical requests share a cache entry without meaningfully changing
// the route returned by the engine.
func RouteKey(startLat, startLon, finishLat, finishLon float64) string {
	return fmt.Sprintf("osrm_route:%.4f,%.4f:%.4f,%.4f", startLat, startLon, finishLat, finishLon)
}
