// Package main is the entry point for the fuel-route planner service.
//
// planner-svc exposes the refueling planner over a single JSON endpoint:
// given a start and finish (free text or coordinates), it resolves both
// through the multi-provider geocoding router, fetches the driving route
// from an OSRM-compatible engine, loads the fuel stations inside the
// route corridor, and runs the greedy minimum-cost refueling algorithm.
//
// # Endpoints
//
//	POST /plan     - compute the refueling plan
//	GET  /healthz  - liveness probe
//	GET  /readyz   - readiness probe (pings Postgres)
//	GET  /metrics  - Prometheus exposition
//
// # Configuration
//
// Configuration is loaded with the following priority (highest to lowest):
//  1. Direct environment variables: DATABASE_URL, REDIS_URL,
//     GOOGLE_MAPS_API_KEY, INTERNAL_API_KEY
//  2. Environment variables (prefix: PLANNER_)
//  3. Config files (config.yaml, config/config.yaml, /etc/fuelroute/config.yaml)
//  4. Default values
//
// Key options (environment variable format):
//
//	DATABASE_URL                 - Postgres DSN (required)
//	REDIS_URL                    - Redis URL for the route cache; empty
//	                               selects the in-memory backend
//	GOOGLE_MAPS_API_KEY          - commercial geocoder key; absence degrades
//	                               gracefully to Census/OSM
//	INTERNAL_API_KEY             - X-API-Key gate; when empty, requests
//	                               without the header pass and requests
//	                               presenting one get 403
//	PLANNER_HTTP_PORT            - HTTP port (default: 8080)
//	PLANNER_ROUTING_BASE_URL     - OSRM-compatible routing engine base URL
//	PLANNER_LOG_LEVEL            - debug, info, warn, error (default: info)
//	PLANNER_TRACING_ENABLED      - enable OpenTelemetry tracing
//	PLANNER_DATABASE_AUTO_MIGRATE - run goose migrations at startup
//
// # Graceful Shutdown
//
// The service handles SIGINT and SIGTERM: it stops accepting connections,
// waits up to the configured shutdown timeout for in-flight requests, then
// flushes telemetry and closes the pool.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"fuelroute/internal/geocode"
	"fuelroute/internal/httpapi"
	"fuelroute/internal/planner"
	"fuelroute/internal/routing"
	"fuelroute/internal/station"
	"fuelroute/migrations"
	"fuelroute/pkg/cache"
	"fuelroute/pkg/config"
	"fuelroute/pkg/database"
	"fuelroute/pkg/logger"
	"fuelroute/pkg/metrics"
	"fuelroute/pkg/telemetry"
)

const osmUserAgent = "fuelroute-planner/1.0 (fuel-stop planning service)"

func main() {
	// =========================================================================
	// Configuration Loading
	// =========================================================================
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// =========================================================================
	// Logger Initialization
	// =========================================================================
	logger.InitWithConfig(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})

	ctx := context.Background()

	// =========================================================================
	// Telemetry Initialization (OpenTelemetry)
	// =========================================================================
	if cfg.Tracing.Enabled {
		tp, err := telemetry.Init(ctx, telemetry.Config{
			Enabled:     cfg.Tracing.Enabled,
			Endpoint:    cfg.Tracing.Endpoint,
			ServiceName: cfg.App.Name,
			Version:     cfg.App.Version,
			Environment: cfg.App.Environment,
			SampleRate:  cfg.Tracing.SampleRate,
		})
		if err != nil {
			logger.Warn("Failed to init telemetry", "error", err)
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tp.Shutdown(shutdownCtx); err != nil {
					logger.Warn("Failed to shutdown telemetry", "error", err)
				}
			}()
			logger.Info("Telemetry initialized", "endpoint", cfg.Tracing.Endpoint)
		}
	}

	// =========================================================================
	// Metrics Initialization (Prometheus)
	// =========================================================================
	m := metrics.InitMetrics(cfg.Metrics.Namespace, cfg.Metrics.Subsystem)
	m.SetServiceInfo(cfg.App.Version, cfg.App.Environment)

	// =========================================================================
	// Database + Migrations
	// =========================================================================
	db, err := database.NewPostgresDB(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := database.RunMigrations(ctx, db.Pool(), &cfg.Database, migrations.FS, "."); err != nil {
		logger.Fatal("failed to run migrations", "error", err)
	}

	// =========================================================================
	// Route Cache (Redis when REDIS_URL is set, in-memory otherwise)
	// =========================================================================
	routeCache, err := cache.New(cache.FromConfig(&cfg.Cache))
	if err != nil {
		logger.Warn("Failed to create route cache, continuing without cache", "error", err)
		routeCache = nil
	} else {
		defer routeCache.Close()
	}

	// =========================================================================
	// Geocoding Providers + Router Factory
	// =========================================================================
	//
	// Providers are shared (they hold only HTTP clients and the persistent
	// Census cache); the Router itself is built fresh per request so its
	// in-process cache never leaks across requests.
	commercial := geocode.NewCommercialProvider(cfg.Geocoding.GoogleBaseURL, cfg.Geocoding.GoogleMapsAPIKey)
	census := geocode.NewCensusProvider(cfg.Geocoding.CensusBaseURL, cfg.Geocoding.MaxRetries,
		geocode.WithCensusCache(geocode.NewPostgresCacheStore(db.Pool())))
	osm := geocode.NewOSMProvider(cfg.Geocoding.NominatimBaseURL, osmUserAgent)

	newRouter := func() *geocode.Router {
		return geocode.NewRouter(commercial, census, osm, geocode.PrioritySmart)
	}

	// =========================================================================
	// Planning Service + HTTP Server
	// =========================================================================
	routingClient := routing.NewClient(cfg.Routing.BaseURL, routeCache)
	repo := station.NewRepository(db)

	plannerCfg := planner.Config{
		VehicleMPG:          cfg.Planner.VehicleMPG,
		TankCapacityGallons: cfg.Planner.TankCapacityGallons,
	}

	service := httpapi.NewPlanService(routingClient, repo, newRouter, plannerCfg, cfg.Planner.WarnOutsideUS, logger.Log)
	server := httpapi.NewServer(service, db, cfg.Auth.InternalAPIKey, logger.Log)

	httpServer := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.HTTP.Port),
		Handler:      server.Handler(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	logger.Info("Starting planner service",
		"port", cfg.HTTP.Port,
		"environment", cfg.App.Environment,
		"version", cfg.App.Version,
		"commercial_geocoder_viable", commercial.Viable(),
		"route_cache", routeCache != nil,
	)

	// =========================================================================
	// Run Server + Graceful Shutdown
	// =========================================================================
	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Fatal("server failed", "error", err)
	case sig := <-stop:
		logger.Info("Shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
