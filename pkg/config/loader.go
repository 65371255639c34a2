// pkg/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const configEnvVar = "CONFIG_PATH"

// directEnvVars maps the service's documented environment variables directly
// onto koanf keys, bypassing the prefixed PLANNER_ scheme used for everything
// else. These are the variables an operator actually sets: DATABASE_URL,
// REDIS_URL, GOOGLE_MAPS_API_KEY, INTERNAL_API_KEY.
var directEnvVars = map[string]string{
	"DATABASE_URL":        "database.url",
	"REDIS_URL":           "cache.url",
	"GOOGLE_MAPS_API_KEY": "geocoding.google_maps_api_key",
	"INTERNAL_API_KEY":    "auth.internal_api_key",
}

// Loader loads configuration from layered sources.
type Loader struct {
	k           *koanf.Koanf
	configPaths []string
	envPrefix   string
}

// NewLoader creates a configuration loader with default search paths.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		k: koanf.New("."),
		configPaths: []string{
			"config.yaml",
			"config/config.yaml",
			"/etc/fuelroute/config.yaml",
		},
		envPrefix: "PLANNER_",
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// LoaderOption customizes a Loader.
type LoaderOption func(*Loader)

// WithConfigPaths overrides the list of paths searched for a config file.
func WithConfigPaths(paths ...string) LoaderOption {
	return func(l *Loader) {
		l.configPaths = paths
	}
}

// WithEnvPrefix overrides the environment variable prefix.
func WithEnvPrefix(prefix string) LoaderOption {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// Load loads configuration with precedence:
// 1. Defaults (lowest)
// 2. Config file (yaml)
// 3. Prefixed environment variables
// 4. Direct environment variables (DATABASE_URL etc. - highest)
func (l *Loader) Load() (*Config, error) {
	if err := l.loadDefaults(); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := l.loadConfigFile(); err != nil {
		fmt.Printf("Warning: %v\n", err)
	}

	if err := l.loadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}

	if err := l.loadDirectEnv(); err != nil {
		return nil, fmt.Errorf("failed to load direct env vars: %w", err)
	}

	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (l *Loader) loadDefaults() error {
	defaults := map[string]any{
		"app.name":        "fuelroute",
		"app.version":     "1.0.0",
		"app.environment": "development",
		"app.debug":       false,

		"http.port":                   8080,
		"http.read_timeout":           30 * time.Second,
		"http.write_timeout":          30 * time.Second,
		"http.shutdown_timeout":       10 * time.Second,
		"http.cors.enabled":           true,
		"http.cors.allowed_origins":   []string{"*"},
		"http.cors.allowed_methods":   []string{"GET", "POST", "OPTIONS"},
		"http.cors.allowed_headers":   []string{"*"},
		"http.cors.allow_credentials": false,
		"http.cors.max_age":           86400,

		"log.level":       "info",
		"log.format":      "json",
		"log.output":      "stdout",
		"log.max_size":    100,
		"log.max_backups": 3,
		"log.max_age":     7,
		"log.compress":    true,

		"metrics.enabled":   true,
		"metrics.path":      "/metrics",
		"metrics.namespace": "fuelroute",
		"metrics.subsystem": "",

		"tracing.enabled":      false,
		"tracing.endpoint":     "localhost:4317",
		"tracing.service_name": "fuelroute",
		"tracing.sample_rate":  0.1,

		"database.url":               "",
		"database.max_open_conns":    25,
		"database.max_idle_conns":    5,
		"database.conn_max_lifetime": 5 * time.Minute,
		"database.conn_max_idle_time": 5 * time.Minute,
		"database.migrations_path":    "migrations",
		"database.auto_migrate":       true,

		"cache.url":         "",
		"cache.default_ttl": 24 * time.Hour,
		"cache.max_entries": 10000,

		"geocoding.google_maps_api_key": "",
		"geocoding.google_base_url":     "https://maps.googleapis.com/maps/api",
		"geocoding.census_base_url":     "https://geocoding.geo.census.gov/geocoder",
		"geocoding.nominatim_base_url":  "https://nominatim.openstreetmap.org",
		"geocoding.request_timeout":     10 * time.Second,
		"geocoding.max_retries":         3,
		"geocoding.retry_base_delay":    2 * time.Second,

		"routing.base_url": "http://localhost:5000",
		"routing.timeout":  15 * time.Second,

		"planner.vehicle_mpg":           10.0,
		"planner.tank_capacity_gallons": 50.0,
		"planner.max_range_miles":       500.0,
		"planner.corridor_width_miles":  10.0,
		"planner.warn_outside_us":       true,

		"auth.internal_api_key": "",
	}

	return l.k.Load(confmap.Provider(defaults, "."), nil)
}

func (l *Loader) loadConfigFile() error {
	if configPath := os.Getenv(configEnvVar); configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return l.k.Load(file.Provider(configPath), yaml.Parser())
		}
	}

	for _, path := range l.configPaths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			continue
		}

		if _, err := os.Stat(absPath); err == nil {
			return l.k.Load(file.Provider(absPath), yaml.Parser())
		}
	}

	return fmt.Errorf("config file not found in paths: %v", l.configPaths)
}

func (l *Loader) loadEnv() error {
	// Map PLANNER_ROUTING_BASE_URL onto the known key routing.base_url
	// rather than routing.base.url; unknown names fall back to "_" -> ".".
	known := make(map[string]string)
	for _, key := range l.k.Keys() {
		known[strings.ReplaceAll(key, ".", "_")] = key
	}
	return l.k.Load(env.Provider(l.envPrefix, ".", func(s string) string {
		name := strings.ToLower(strings.TrimPrefix(s, l.envPrefix))
		if key, ok := known[name]; ok {
			return key
		}
		return strings.ReplaceAll(name, "_", ".")
	}), nil)
}

// loadDirectEnv binds the handful of unprefixed environment variables the
// service documents for operators, taking precedence over everything else.
func (l *Loader) loadDirectEnv() error {
	values := map[string]any{}
	for envVar, key := range directEnvVars {
		if v, ok := os.LookupEnv(envVar); ok {
			values[key] = v
		}
	}
	if len(values) == 0 {
		return nil
	}
	return l.k.Load(confmap.Provider(values, "."), nil)
}

// MustLoad loads configuration or panics.
func MustLoad(opts ...LoaderOption) *Config {
	cfg, err := NewLoader(opts...).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Load loads configuration using default settings.
func Load() (*Config, error) {
	return NewLoader().Load()
}
