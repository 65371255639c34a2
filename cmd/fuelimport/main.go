// Package main is the fuel-price import tool.
//
// fuelimport runs the three-phase ingest pipeline against a tabular price
// feed: parse and dedupe the CSV, bulk-insert the new stations, then
// geocode every station still missing a location through a bounded worker
// pool feeding a single batched-update collector.
//
// # Usage
//
//	fuelimport --csv /app/data/fuel-prices-for-be-assessment.csv \
//	  --concurrent 5 --sleep 0.1 --provider smart
//
// Flags:
//
//	--csv            path to the price feed CSV
//	--sleep          inter-request delay per worker, in seconds
//	--max            cap on stations geocoded (0 = no cap)
//	--concurrent     worker count
//	--skip_attempted skip stations that already record a geocode_source
//	--provider       strategy priority: smart | google_then_census
//
// Configuration (DATABASE_URL, GOOGLE_MAPS_API_KEY, ...) is read the same
// way the planner service reads it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"fuelroute/internal/geocode"
	"fuelroute/internal/ingest"
	"fuelroute/internal/station"
	"fuelroute/migrations"
	"fuelroute/pkg/config"
	"fuelroute/pkg/database"
	"fuelroute/pkg/logger"
	"fuelroute/pkg/metrics"
	"fuelroute/pkg/telemetry"
)

const osmUserAgent = "fuelroute-fuelimport/1.0 (fuel-stop planning service)"

func main() {
	csvPath := flag.String("csv", "/app/data/fuel-prices-for-be-assessment.csv", "path to the fuel price CSV")
	sleep := flag.Float64("sleep", 0.1, "inter-request delay per worker, seconds")
	maxStations := flag.Int("max", 0, "cap on stations geocoded (0 = no cap)")
	concurrent := flag.Int("concurrent", 5, "geocode worker count")
	skipAttempted := flag.Bool("skip_attempted", false, "skip stations with a recorded geocode_source")
	provider := flag.String("provider", geocode.PrioritySmart, "strategy priority: smart | google_then_census")
	flag.Parse()

	if *provider != geocode.PrioritySmart && *provider != geocode.PriorityGoogleThenCensus {
		fmt.Fprintf(os.Stderr, "invalid --provider %q: must be %q or %q\n",
			*provider, geocode.PrioritySmart, geocode.PriorityGoogleThenCensus)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger.InitWithConfig(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})

	if cfg.Geocoding.GoogleMapsAPIKey == "" {
		logger.Warn("GOOGLE_MAPS_API_KEY is missing: highway intersections and mile markers will not resolve; only postal addresses via Census will geocode")
	}

	metrics.InitMetrics(cfg.Metrics.Namespace, "fuelimport")

	ctx := context.Background()

	db, err := database.NewPostgresDB(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := database.RunMigrations(ctx, db.Pool(), &cfg.Database, migrations.FS, "."); err != nil {
		logger.Fatal("failed to run migrations", "error", err)
	}

	f, err := os.Open(*csvPath)
	if err != nil {
		logger.Fatal("failed to open csv", "path", *csvPath, "error", err)
	}
	defer f.Close()

	// Providers are shared across workers; each worker builds its own
	// Router per station so no in-process cache crosses stations.
	commercial := geocode.NewCommercialProvider(cfg.Geocoding.GoogleBaseURL, cfg.Geocoding.GoogleMapsAPIKey)
	census := geocode.NewCensusProvider(cfg.Geocoding.CensusBaseURL, cfg.Geocoding.MaxRetries,
		geocode.WithCensusCache(geocode.NewPostgresCacheStore(db.Pool())))
	osm := geocode.NewOSMProvider(cfg.Geocoding.NominatimBaseURL, osmUserAgent)

	newRouter := func() *geocode.Router {
		return geocode.NewRouter(commercial, census, osm, *provider)
	}

	repo := station.NewRepository(db)

	ingestCfg := ingest.Config{
		Concurrent:    *concurrent,
		SleepBetween:  time.Duration(*sleep * float64(time.Second)),
		SkipAttempted: *skipAttempted,
		MaxStations:   *maxStations,
		BatchSize:     50,
		LogEvery:      100,
	}

	started := time.Now()
	runCtx, span := telemetry.StartSpan(ctx, "ingest.run")
	summary, err := ingest.Run(runCtx, logger.Log, f, repo, newRouter, ingestCfg)
	if err != nil {
		span.End()
		logger.Fatal("ingest failed", "error", err)
	}
	span.SetAttributes(telemetry.IngestAttributes(summary.Geocode.Completed, summary.Geocode.Succeeded)...)
	span.End()

	m := metrics.Get()
	m.IngestStationsTotal.WithLabelValues("geocoded").Add(float64(summary.Geocode.Succeeded))
	m.IngestStationsTotal.WithLabelValues("unresolved").Add(float64(summary.Geocode.Failed))

	logger.Info("ingest complete",
		"parsed", summary.ParsedRows,
		"inserted", summary.InsertedRows,
		"geocode_completed", summary.Geocode.Completed,
		"geocode_succeeded", summary.Geocode.Succeeded,
		"geocode_failed", summary.Geocode.Failed,
		"duration", time.Since(started).String(),
	)
}
