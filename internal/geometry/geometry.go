// Package geometry holds the pure geospatial helpers shared by the planner
// and the routing-engine client: polyline decoding, unit conversion, and the
// WKT line representation handed to the station repository's corridor
// query.
package geometry

import (
	"fmt"
	"math"
	"strings"

	"github.com/twpayne/go-polyline"
)

// EarthRadiusMeters is the mean Earth radius used for haversine distance.
const EarthRadiusMeters = 6371000.0

// MetersPerMile is the exact conversion factor between meters and miles.
const MetersPerMile = 1609.344

// polyline6 is the precision-6 codec the routing engine emits ("geometries=polyline6").
var polyline6 = polyline.Codec{Dim: 2, Scale: 1e6}

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64
	Lon float64
}

// DecodePolyline6 decodes a precision-6 encoded polyline string into an
// ordered sequence of (lat, lon) vertices.
func DecodePolyline6(encoded string) ([]Point, error) {
	coords, remaining, err := polyline6.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("decode polyline: %w", err)
	}
	if len(remaining) != 0 {
		return nil, fmt.Errorf("decode polyline: %d trailing bytes", len(remaining))
	}
	points := make([]Point, len(coords))
	for i, c := range coords {
		points[i] = Point{Lat: c[0], Lon: c[1]}
	}
	return points, nil
}

// EncodePolyline6 encodes an ordered sequence of (lat, lon) vertices into a
// precision-6 polyline string.
func EncodePolyline6(points []Point) string {
	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.Lat, p.Lon}
	}
	return string(polyline6.EncodeCoords(nil, coords))
}

// MetersToMiles converts a distance in meters to miles.
func MetersToMiles(meters float64) float64 {
	return meters / MetersPerMile
}

// MilesToMeters converts a distance in miles to meters.
func MilesToMeters(miles float64) float64 {
	return miles * MetersPerMile
}

// HaversineMiles returns the great-circle distance between two points, in miles.
func HaversineMiles(a, b Point) float64 {
	return MetersToMiles(haversineMeters(a, b))
}

func haversineMeters(a, b Point) float64 {
	lat1, lon1 := degToRad(a.Lat), degToRad(a.Lon)
	lat2, lon2 := degToRad(b.Lat), degToRad(b.Lon)

	dLat := lat2 - lat1
	dLon := lon2 - lon1

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusMeters * c
}

func degToRad(d float64) float64 {
	return d * math.Pi / 180
}

// BBox is the bounding box of a set of points, stored as
// [min_lon, min_lat, max_lon, max_lat].
type BBox [4]float64

// ComputeBBox returns the bounding box spanning the given points. Returns
// the zero BBox for an empty slice.
func ComputeBBox(points []Point) BBox {
	if len(points) == 0 {
		return BBox{}
	}
	minLon, minLat := points[0].Lon, points[0].Lat
	maxLon, maxLat := points[0].Lon, points[0].Lat
	for _, p := range points[1:] {
		minLon = math.Min(minLon, p.Lon)
		minLat = math.Min(minLat, p.Lat)
		maxLon = math.Max(maxLon, p.Lon)
		maxLat = math.Max(maxLat, p.Lat)
	}
	return BBox{minLon, minLat, maxLon, maxLat}
}

// ToWKTLineString renders a decoded point sequence as a WKT LINESTRING in
// (lon, lat) coordinate order, the form Postgres/PostGIS geography columns
// expect for ST_DWithin and ST_LineLocatePoint parameters.
func ToWKTLineString(points []Point) string {
	parts := make([]string, len(points))
	for i, p := range points {
		parts[i] = fmt.Sprintf("%f %f", p.Lon, p.Lat)
	}
	return "LINESTRING(" + strings.Join(parts, ", ") + ")"
}

// ToWKTPoint renders a single point as a WKT POINT in (lon, lat) order.
func ToWKTPoint(p Point) string {
	return fmt.Sprintf("POINT(%f %f)", p.Lon, p.Lat)
}

// ValidateWGS84 reports whether the point lies within WGS84 bounds
// (lat in [-90, 90], lon in [-180, 180]).
func ValidateWGS84(p Point) bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// Project finds the perpendicular projection of p onto the polyline
// described by points, returning the fraction in [0, 1] of the point's
// position along the line's total length. This is the in-process analog of
// the repository's ST_LineLocatePoint query, used by tests that exercise
// the planner without a database.
func Project(points []Point, p Point) float64 {
	if len(points) < 2 {
		return 0
	}

	segLengths := make([]float64, len(points)-1)
	var totalLength float64
	for i := 0; i < len(points)-1; i++ {
		segLengths[i] = haversineMeters(points[i], points[i+1])
		totalLength += segLengths[i]
	}
	if totalLength == 0 {
		return 0
	}

	var bestDist = math.Inf(1)
	var bestFraction float64
	var cumulative float64

	for i := 0; i < len(points)-1; i++ {
		t, distMeters := closestPointOnSegment(points[i], points[i+1], p)
		if distMeters < bestDist {
			bestDist = distMeters
			bestFraction = (cumulative + t*segLengths[i]) / totalLength
		}
		cumulative += segLengths[i]
	}

	return math.Max(0, math.Min(1, bestFraction))
}

// closestPointOnSegment returns the parametric position t in [0,1] of the
// closest point to p on segment a->b (in an equirectangular approximation
// suitable for short highway segments) and the haversine distance in meters
// from p to that closest point.
func closestPointOnSegment(a, b, p Point) (t float64, distMeters float64) {
	// Equirectangular projection local to the segment's latitude.
	lat0 := degToRad((a.Lat + b.Lat) / 2)
	ax, ay := degToRad(a.Lon)*math.Cos(lat0), degToRad(a.Lat)
	bx, by := degToRad(b.Lon)*math.Cos(lat0), degToRad(b.Lat)
	px, py := degToRad(p.Lon)*math.Cos(lat0), degToRad(p.Lat)

	dx, dy := bx-ax, by-ay
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return 0, haversineMeters(a, p)
	}

	t = ((px-ax)*dx + (py-ay)*dy) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	closest := Point{
		Lat: a.Lat + t*(b.Lat-a.Lat),
		Lon: a.Lon + t*(b.Lon-a.Lon),
	}
	return t, haversineMeters(closest, p)
}
