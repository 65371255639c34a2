package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"fuelroute/internal/geometry"
	"fuelroute/pkg/logger"
)

const censusRequestTimeout = 30 * time.Second

var censusRetryableStatus = map[int]bool{
	http.StatusTooManyRequests:    true,
	http.StatusBadGateway:         true,
	http.StatusServiceUnavailable: true,
	http.StatusGatewayTimeout:     true,
}

// CensusProvider geocodes against the Census Bureau's one-line address
// endpoint, retrying on transient failures and consulting/writing the
// persistent GeocodeCache on the normalized query.
type CensusProvider struct {
	httpClient *http.Client
	baseURL    string
	maxRetries int
	cache      CacheStore
	sleep      func(time.Duration)
}

// CensusOption customizes a CensusProvider.
type CensusOption func(*CensusProvider)

// WithCensusCache attaches the persistent GeocodeCache store.
func WithCensusCache(cache CacheStore) CensusOption {
	return func(c *CensusProvider) { c.cache = cache }
}

// WithCensusSleep overrides the backoff sleep function, for tests.
func WithCensusSleep(sleep func(time.Duration)) CensusOption {
	return func(c *CensusProvider) { c.sleep = sleep }
}

// NewCensusProvider creates a Census provider against baseURL
// (e.g. "https://geocoding.geo.census.gov/geocoder") with the given
// retry budget.
func NewCensusProvider(baseURL string, maxRetries int, opts ...CensusOption) *CensusProvider {
	c := &CensusProvider{
		httpClient: &http.Client{Timeout: censusRequestTimeout},
		baseURL:    baseURL,
		maxRetries: maxRetries,
		sleep:      time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements Provider.
func (c *CensusProvider) Name() string { return "census" }

type censusResponse struct {
	Result struct {
		AddressMatches []struct {
			Coordinates struct {
				X float64 `json:"x"`
				Y float64 `json:"y"`
			} `json:"coordinates"`
		} `json:"addressMatches"`
	} `json:"result"`
}

// Geocode implements Provider.
func (c *CensusProvider) Geocode(ctx context.Context, query string) (*geometry.Point, Metadata) {
	normalized := NormalizeQuery(query)

	if c.cache != nil {
		if point, _, ok, err := c.cache.Get(ctx, normalized); err == nil && ok {
			if point == nil {
				return nil, Metadata{Provider: c.Name(), Success: false, Error: "cached_no_match"}
			}
			return point, Metadata{Provider: c.Name(), Success: true, Raw: map[string]any{"cache_hit": true}}
		}
	}

	point, meta := c.geocodeWithRetry(ctx, query)

	if c.cache != nil && meta.Success && point != nil {
		if err := c.cache.Put(ctx, query, normalized, *point, meta.Raw); err != nil {
			logger.Log.Warn("census: failed to write geocode cache", "error", err)
		}
	}

	return point, meta
}

func (c *CensusProvider) geocodeWithRetry(ctx context.Context, query string) (*geometry.Point, Metadata) {
	var lastErr string

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, Metadata{Provider: c.Name(), Success: false, Error: "context cancelled"}
		default:
		}

		point, retryable, err := c.doRequest(ctx, query)
		if err == nil {
			return point, Metadata{Provider: c.Name(), Success: point != nil, Raw: map[string]any{"attempt": attempt}}
		}

		lastErr = err.Error()
		if !retryable || attempt == c.maxRetries {
			break
		}
		c.sleep(time.Duration(2*(attempt+1)) * time.Second)
	}

	return nil, Metadata{Provider: c.Name(), Success: false, Error: lastErr}
}

// doRequest issues a single Census geocoding request. retryable indicates
// whether the failure (if any) is worth another attempt.
func (c *CensusProvider) doRequest(ctx context.Context, query string) (*geometry.Point, bool, error) {
	u := fmt.Sprintf("%s/locations/onelineaddress", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, false, err
	}
	q := url.Values{}
	q.Set("address", query)
	q.Set("benchmark", "Public_AR_Current")
	q.Set("format", "json")
	req.URL.RawQuery = q.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	if censusRetryableStatus[resp.StatusCode] {
		return nil, true, fmt.Errorf("census: retryable status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("census: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("census: read body: %w", err)
	}

	var parsed censusResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, true, fmt.Errorf("census: non-JSON body: %w", err)
	}

	if len(parsed.Result.AddressMatches) == 0 {
		return nil, false, nil
	}

	match := parsed.Result.AddressMatches[0]
	return &geometry.Point{Lat: match.Coordinates.Y, Lon: match.Coordinates.X}, false, nil
}
