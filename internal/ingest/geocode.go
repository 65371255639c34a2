package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fuelroute/internal/classify"
	"fuelroute/internal/geocode"
	"fuelroute/internal/station"
)

// RouterFactory builds a fresh Router per worker call, mirroring the
// request path's Router-per-request rule: ingest workers get one Router
// per station, not a shared one.
type RouterFactory func() *geocode.Router

// Repository is the subset of *station.Repository Phase 3 needs; narrowed
// to an interface so the worker-pool/collector can be unit-tested with a
// fake instead of a live Postgres or pgxmock handle.
type Repository interface {
	WorkingSet(ctx context.Context, skipAttempted bool, max int) ([]station.PendingGeocode, error)
	ApplyGeocodeUpdates(ctx context.Context, updates []station.GeocodeUpdate) error
}

// Progress reports ingest counters as the collector drains results, so
// callers (the CLI) can log without reaching into collector internals.
type Progress struct {
	Completed int
	Succeeded int
	Failed    int
}

// Config tunes Phase 3 of the pipeline.
type Config struct {
	Concurrent    int
	SleepBetween  time.Duration
	SkipAttempted bool
	MaxStations   int
	BatchSize     int // update flush cadence; spec default 50
	LogEvery      int // progress log cadence; spec default 100
}

// DefaultConfig returns the import CLI's defaults.
func DefaultConfig() Config {
	return Config{
		Concurrent:   5,
		SleepBetween: 100 * time.Millisecond,
		BatchSize:    50,
		LogEvery:     100,
	}
}

type workResult struct {
	opisID int64
	update station.GeocodeUpdate
	err    error
}

// RunGeocodePhase drives Phase 3: a bounded worker pool of cfg.Concurrent
// workers pulls PendingGeocode rows, calls the Router, and feeds a single
// serial collector that owns all DB writes — batching updates every
// cfg.BatchSize completions and logging progress every cfg.LogEvery.
func RunGeocodePhase(ctx context.Context, log *slog.Logger, repo Repository, newRouter RouterFactory, cfg Config) (Progress, error) {
	pending, err := repo.WorkingSet(ctx, cfg.SkipAttempted, cfg.MaxStations)
	if err != nil {
		return Progress{}, fmt.Errorf("ingest: load working set: %w", err)
	}
	if len(pending) == 0 {
		return Progress{}, nil
	}

	concurrent := cfg.Concurrent
	if concurrent <= 0 {
		concurrent = 1
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}
	logEvery := cfg.LogEvery
	if logEvery <= 0 {
		logEvery = 100
	}

	jobs := make(chan station.PendingGeocode)
	results := make(chan workResult)

	var wg sync.WaitGroup
	for i := 0; i < concurrent; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			geocodeWorker(ctx, newRouter, cfg.SleepBetween, jobs, results)
		}()
	}

	go func() {
		defer close(jobs)
		for _, p := range pending {
			select {
			case jobs <- p:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	return collectResults(ctx, log, repo, results, batchSize, logEvery)
}

func geocodeWorker(ctx context.Context, newRouter RouterFactory, sleep time.Duration, jobs <-chan station.PendingGeocode, results chan<- workResult) {
	for p := range jobs {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					results <- workResult{opisID: p.OpisID, update: station.GeocodeUpdate{
						OpisID: p.OpisID,
						Source: fmt.Sprintf("error:%v", rec),
					}}
				}
			}()

			if sleep > 0 {
				time.Sleep(sleep)
			}

			router := newRouter()
			point, debug := router.GeocodeStation(ctx, p.Address, p.City, p.State)

			if point != nil && debug.Success {
				results <- workResult{opisID: p.OpisID, update: station.GeocodeUpdate{
					OpisID: p.OpisID,
					Point:  point,
					Source: fmt.Sprintf("geocoded:%s", debug.SuccessLabel),
					Meta:   auditMeta(debug),
				}}
				return
			}

			classification := classify.Classify(p.Address).Tag
			results <- workResult{opisID: p.OpisID, update: station.GeocodeUpdate{
				OpisID: p.OpisID,
				Source: fmt.Sprintf("unresolved:%s:%s", classification, debug.Reason),
				Meta:   auditMeta(debug),
			}}
		}()
	}
}

func auditMeta(debug geocode.Debug) map[string]any {
	attempts := make([]map[string]any, 0, len(debug.Audit))
	for _, a := range debug.Audit {
		attempts = append(attempts, map[string]any{
			"provider": a.Provider,
			"strategy": a.Strategy,
			"success":  a.Meta.Success,
		})
	}
	return map[string]any{"audit": attempts}
}

// collectResults is the single serial collector: it drains the results
// channel, batches DB writes every batchSize completions, logs progress
// every logEvery completions, and flushes any remainder at the end.
func collectResults(ctx context.Context, log *slog.Logger, repo Repository, results <-chan workResult, batchSize, logEvery int) (Progress, error) {
	var progress Progress
	var pending []station.GeocodeUpdate

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		if err := repo.ApplyGeocodeUpdates(ctx, pending); err != nil {
			return err
		}
		pending = pending[:0]
		return nil
	}

	for r := range results {
		progress.Completed++
		if r.update.Point != nil {
			progress.Succeeded++
			log.Info("station geocoded", "opis_id", r.opisID, "source", r.update.Source)
		} else {
			progress.Failed++
			log.Warn("station unresolved", "opis_id", r.opisID, "source", r.update.Source)
		}

		pending = append(pending, r.update)
		if len(pending) >= batchSize {
			if err := flush(); err != nil {
				return progress, err
			}
		}
		if progress.Completed%logEvery == 0 {
			log.Info("ingest progress", "completed", progress.Completed, "succeeded", progress.Succeeded, "failed", progress.Failed)
		}
	}

	if err := flush(); err != nil {
		return progress, err
	}
	return progress, nil
}
