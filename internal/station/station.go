// Package station implements the Station Repository: the spatial corridor
// query over the stations table and the projection-onto-polyline
// annotation the planner consumes.
package station

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"fuelroute/internal/geometry"
	"fuelroute/pkg/database"
)

// WithFraction is a station row annotated with its normalized [0,1]
// position along a queried route line.
type WithFraction struct {
	OpisID   int64
	Name     string
	Address  string
	City     string
	State    string
	Price    float64
	Lat      float64
	Lon      float64
	Fraction float64
}

// Repository queries stations against a route corridor.
type Repository struct {
	db database.DB
}

// NewRepository wraps a database handle (a *pkg/database.PostgresDB in
// production, a pgxmock-backed adapter in tests).
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

// StationsWithinCorridor returns every station whose location lies within
// corridorMiles of the supplied route line, each annotated with its
// fractional position along that line (ST_LineLocatePoint).
//
// The query composes two PostGIS predicates: ST_DWithin against a
// geography cast of the line (meters, hence the mile-to-meter conversion)
// selects the candidate set using the GiST index on location, and
// ST_LineLocatePoint (evaluated against the geometry, not the geography,
// since PostGIS does not offer a geography overload) produces the
// fraction the planner needs.
func (r *Repository) StationsWithinCorridor(ctx context.Context, line []geometry.Point, corridorMiles float64) ([]WithFraction, error) {
	if len(line) < 2 {
		return nil, fmt.Errorf("station: route line needs at least two points")
	}

	lineWKT := geometry.ToWKTLineString(line)
	corridorMeters := corridorMiles * geometry.MetersPerMile

	rows, err := r.db.Query(ctx, `
		SELECT
			opis_id,
			name,
			address,
			city,
			state,
			retail_price,
			ST_Y(location::geometry) AS lat,
			ST_X(location::geometry) AS lon,
			ST_LineLocatePoint(ST_GeomFromText($1, 4326), location::geometry) AS fraction
		FROM stations
		WHERE location IS NOT NULL
		  AND ST_DWithin(location, ST_GeogFromText($1), $2)
		ORDER BY fraction`,
		lineWKT, corridorMeters,
	)
	if err != nil {
		return nil, fmt.Errorf("station: corridor query: %w", err)
	}
	defer rows.Close()

	var out []WithFraction
	for rows.Next() {
		var s WithFraction
		var price *float64
		if err := rows.Scan(&s.OpisID, &s.Name, &s.Address, &s.City, &s.State, &price, &s.Lat, &s.Lon, &s.Fraction); err != nil {
			return nil, fmt.Errorf("station: scan row: %w", err)
		}
		if price != nil {
			s.Price = *price
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("station: iterate rows: %w", err)
	}
	return out, nil
}

// ByOpisID fetches a single station by its source identifier. It returns
// nil and no error when no row has that identifier.
func (r *Repository) ByOpisID(ctx context.Context, opisID int64) (*WithFraction, error) {
	row := r.db.QueryRow(ctx, `
		SELECT opis_id, name, address, city, state, retail_price,
		       COALESCE(ST_Y(location::geometry), 0),
		       COALESCE(ST_X(location::geometry), 0)
		FROM stations
		WHERE opis_id = $1`,
		opisID,
	)

	var s WithFraction
	var price *float64
	if err := row.Scan(&s.OpisID, &s.Name, &s.Address, &s.City, &s.State, &price, &s.Lat, &s.Lon); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("station: lookup opis_id %d: %w", opisID, err)
	}
	if price != nil {
		s.Price = *price
	}
	return &s, nil
}

// UpdateLocation persists a resolved geocode result for a station row,
// recording the provider/strategy label that produced it alongside the
// point itself.
func (r *Repository) UpdateLocation(ctx context.Context, opisID int64, point geometry.Point, source string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE stations
		SET location = ST_GeogFromText($2),
		    geocode_source = $3,
		    updated_at = now()
		WHERE opis_id = $1`,
		opisID, geometry.ToWKTPoint(point), source,
	)
	if err != nil {
		return fmt.Errorf("station: update location for opis_id %d: %w", opisID, err)
	}
	return nil
}
