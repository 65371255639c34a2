package geocode

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fuelroute/internal/geometry"
)

// PostgresCacheStore is the Postgres-backed GeocodeCacheEntry store. It
// relies on a unique constraint on query_text and treats a duplicate-key
// conflict as a no-op, so concurrent writers racing on the same raw query
// text resolve to the first writer winning with no error surfaced. Raw
// texts that differ but share a normalized form each get their own row;
// Get returns the oldest of them.
type PostgresCacheStore struct {
	pool *pgxpool.Pool
}

// NewPostgresCacheStore wraps a connection pool as a CacheStore.
func NewPostgresCacheStore(pool *pgxpool.Pool) *PostgresCacheStore {
	return &PostgresCacheStore{pool: pool}
}

// Get implements CacheStore, looking up by the normalized query text.
func (s *PostgresCacheStore) Get(ctx context.Context, normalizedQuery string) (*geometry.Point, map[string]any, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT lat, lon, metadata
		FROM geocode_cache
		WHERE normalized_text = $1
		ORDER BY id
		LIMIT 1`,
		normalizedQuery,
	)

	var lat, lon *float64
	var rawMeta []byte
	if err := row.Scan(&lat, &lon, &rawMeta); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil, false, nil
		}
		return nil, nil, false, err
	}

	var meta map[string]any
	if len(rawMeta) > 0 {
		if err := json.Unmarshal(rawMeta, &meta); err != nil {
			meta = nil
		}
	}

	if lat == nil || lon == nil {
		return nil, meta, true, nil
	}
	return &geometry.Point{Lat: *lat, Lon: *lon}, meta, true, nil
}

// Put implements CacheStore. A conflict on query_text (the unique key) is
// swallowed: the first writer's row stands.
func (s *PostgresCacheStore) Put(ctx context.Context, queryText, normalizedQuery string, point geometry.Point, metadata map[string]any) error {
	rawMeta, err := json.Marshal(metadata)
	if err != nil {
		rawMeta = []byte("{}")
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO geocode_cache (query_text, normalized_text, lat, lon, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		ON CONFLICT (query_text) DO NOTHING`,
		queryText, normalizedQuery, point.Lat, point.Lon, rawMeta,
	)
	return err
}
