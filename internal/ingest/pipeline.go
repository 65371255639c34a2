package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"fuelroute/internal/station"
)

// BulkRepository is the subset of *station.Repository Phase 1/2 need.
type BulkRepository interface {
	ExistingOpisIDs(ctx context.Context) (map[int64]bool, error)
	BulkInsert(ctx context.Context, rows []station.NewStation) error
}

// Summary reports what each phase of a full Run did.
type Summary struct {
	ParsedRows   int
	InsertedRows int
	Geocode      Progress
}

// Run executes the full ingest pipeline: parse+dedupe (Phase 1), bulk
// insert (Phase 2), then the worker-pool geocode phase (Phase 3).
func Run(ctx context.Context, log *slog.Logger, csv io.Reader, repo interface {
	BulkRepository
	Repository
}, newRouter RouterFactory, cfg Config) (Summary, error) {
	rows, err := ParseRows(csv)
	if err != nil {
		return Summary{}, fmt.Errorf("ingest: parse: %w", err)
	}
	log.Info("ingest parsed rows", "count", len(rows))

	existing, err := repo.ExistingOpisIDs(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("ingest: load existing: %w", err)
	}

	toInsert := NewRows(rows, existing)
	if err := repo.BulkInsert(ctx, toInsert); err != nil {
		return Summary{}, fmt.Errorf("ingest: bulk insert: %w", err)
	}
	log.Info("ingest bulk insert complete", "inserted", len(toInsert), "skipped_existing", len(rows)-len(toInsert))

	progress, err := RunGeocodePhase(ctx, log, repo, newRouter, cfg)
	if err != nil {
		return Summary{ParsedRows: len(rows), InsertedRows: len(toInsert)}, fmt.Errorf("ingest: geocode phase: %w", err)
	}

	return Summary{
		ParsedRows:   len(rows),
		InsertedRows: len(toInsert),
		Geocode:      progress,
	}, nil
}
