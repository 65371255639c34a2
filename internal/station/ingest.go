package station

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"fuelroute/internal/geometry"
	"fuelroute/pkg/database"
)

// NewStation is one parsed, normalized ingest row awaiting insertion.
type NewStation struct {
	OpisID  int64
	Name    string
	Address string
	City    string
	State   string
	RackID  *int
	Price   float64
}

// PendingGeocode is a station row still missing a location, queued for
// Phase 3 of the ingest pipeline.
type PendingGeocode struct {
	OpisID  int64
	Address string
	City    string
	State   string
}

// GeocodeUpdate is one worker's outcome, applied by the collector's
// batched update writer.
type GeocodeUpdate struct {
	OpisID int64
	Point  *geometry.Point // nil when the station remains unresolved
	Source string          // geocoded:<label> | unresolved:<classification>:<reason> | error:<message>
	Meta   map[string]any
}

const bulkInsertBatchSize = 2000

// ExistingOpisIDs returns the set of opis_id values already present, used
// by Phase 2 to compute the set-difference before bulk insert.
func (r *Repository) ExistingOpisIDs(ctx context.Context) (map[int64]bool, error) {
	rows, err := r.db.Query(ctx, `SELECT opis_id FROM stations`)
	if err != nil {
		return nil, fmt.Errorf("station: load existing opis_ids: %w", err)
	}
	defer rows.Close()

	existing := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("station: scan opis_id: %w", err)
		}
		existing[id] = true
	}
	return existing, rows.Err()
}

// BulkInsert inserts newRows in batches of bulkInsertBatchSize, building a
// single multi-row INSERT per batch rather than one round trip per row.
func (r *Repository) BulkInsert(ctx context.Context, newRows []NewStation) error {
	for start := 0; start < len(newRows); start += bulkInsertBatchSize {
		end := start + bulkInsertBatchSize
		if end > len(newRows) {
			end = len(newRows)
		}
		if err := r.insertBatch(ctx, newRows[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) insertBatch(ctx context.Context, batch []NewStation) error {
	if len(batch) == 0 {
		return nil
	}

	query := `INSERT INTO stations (opis_id, name, address, city, state, rack_id, retail_price, created_at, updated_at) VALUES `
	args := make([]any, 0, len(batch)*7)
	for i, s := range batch {
		base := i * 7
		if i > 0 {
			query += ", "
		}
		query += fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, now(), now())",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7)
		args = append(args, s.OpisID, s.Name, s.Address, s.City, s.State, s.RackID, s.Price)
	}
	query += ` ON CONFLICT (opis_id) DO NOTHING`

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("station: bulk insert batch of %d: %w", len(batch), err)
	}
	return nil
}

// WorkingSet returns stations with no location yet (Phase 3's candidate
// set), optionally restricted to those with no geocode_source recorded
// (skip_attempted) and capped at max rows (0 = unlimited).
func (r *Repository) WorkingSet(ctx context.Context, skipAttempted bool, max int) ([]PendingGeocode, error) {
	query := `SELECT opis_id, address, city, state FROM stations WHERE location IS NULL`
	if skipAttempted {
		query += ` AND geocode_source IS NULL`
	}
	query += ` ORDER BY opis_id`
	if max > 0 {
		query += fmt.Sprintf(" LIMIT %d", max)
	}

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("station: working set query: %w", err)
	}
	defer rows.Close()

	var out []PendingGeocode
	for rows.Next() {
		var p PendingGeocode
		if err := rows.Scan(&p.OpisID, &p.Address, &p.City, &p.State); err != nil {
			return nil, fmt.Errorf("station: scan working set row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ApplyGeocodeUpdates persists a batch of worker outcomes in one
// transaction. A failed or errored outcome still records geocode_source
// so skip_attempted can exclude it on a later run, but leaves location
// untouched.
func (r *Repository) ApplyGeocodeUpdates(ctx context.Context, updates []GeocodeUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	err := database.WithTransaction(ctx, r.db, func(tx pgx.Tx) error {
		for _, u := range updates {
			rawMeta, err := json.Marshal(u.Meta)
			if err != nil {
				rawMeta = []byte("{}")
			}

			if u.Point != nil {
				_, err = tx.Exec(ctx, `
					UPDATE stations
					SET location = ST_GeogFromText($2), geocode_source = $3, geocode_meta = $4, updated_at = now()
					WHERE opis_id = $1`,
					u.OpisID, geometry.ToWKTPoint(*u.Point), u.Source, rawMeta,
				)
			} else {
				_, err = tx.Exec(ctx, `
					UPDATE stations
					SET geocode_source = $2, geocode_meta = $3, updated_at = now()
					WHERE opis_id = $1`,
					u.OpisID, u.Source, rawMeta,
				)
			}
			if err != nil {
				return fmt.Errorf("station: apply update for opis_id %d: %w", u.OpisID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("station: batch update tx: %w", err)
	}
	return nil
}
