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
)

const osmRequestTimeout = 10 * time.Second

// OSMProvider geocodes against an OSM-Nominatim-compatible endpoint. It
// never retries, out of respect for Nominatim's usage policy, and always
// sends a user agent.
type OSMProvider struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
}

// NewOSMProvider creates an OSM provider. userAgent must not be empty;
// Nominatim's usage policy requires it.
func NewOSMProvider(baseURL, userAgent string) *OSMProvider {
	return &OSMProvider{
		httpClient: &http.Client{Timeout: osmRequestTimeout},
		baseURL:    baseURL,
		userAgent:  userAgent,
	}
}

// Name implements Provider.
func (o *OSMProvider) Name() string { return "osm" }

type osmResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Geocode implements Provider.
func (o *OSMProvider) Geocode(ctx context.Context, query string) (*geometry.Point, Metadata) {
	u := fmt.Sprintf("%s/search", o.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, Metadata{Provider: o.Name(), Success: false, Error: err.Error()}
	}
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("limit", "1")
	req.URL.RawQuery = q.Encode()
	req.Header.Set("User-Agent", o.userAgent)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, Metadata{Provider: o.Name(), Success: false, Error: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, Metadata{Provider: o.Name(), Success: false, Error: fmt.Sprintf("status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Metadata{Provider: o.Name(), Success: false, Error: err.Error()}
	}

	var results []osmResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, Metadata{Provider: o.Name(), Success: false, Error: "non-JSON body"}
	}

	if len(results) == 0 {
		return nil, Metadata{Provider: o.Name(), Success: false, Error: "no results"}
	}

	var lat, lon float64
	if _, err := fmt.Sscanf(results[0].Lat, "%f", &lat); err != nil {
		return nil, Metadata{Provider: o.Name(), Success: false, Error: "invalid lat"}
	}
	if _, err := fmt.Sscanf(results[0].Lon, "%f", &lon); err != nil {
		return nil, Metadata{Provider: o.Name(), Success: false, Error: "invalid lon"}
	}

	return &geometry.Point{Lat: lat, Lon: lon}, Metadata{Provider: o.Name(), Success: true}
}
