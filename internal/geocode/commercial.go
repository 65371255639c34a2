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

const commercialRequestTimeout = 10 * time.Second

// CommercialProvider geocodes against a Google-Maps-Geocoding-compatible
// commercial endpoint. It never retries (commercial quotas are metered per
// request) and fails immediately when no API key is configured.
type CommercialProvider struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewCommercialProvider creates a Commercial provider. An empty apiKey
// makes the provider permanently unviable (Geocode always fails fast).
func NewCommercialProvider(baseURL, apiKey string) *CommercialProvider {
	return &CommercialProvider{
		httpClient: &http.Client{Timeout: commercialRequestTimeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

// Name implements Provider.
func (c *CommercialProvider) Name() string { return "commercial" }

// Viable reports whether an API key is configured.
func (c *CommercialProvider) Viable() bool { return c.apiKey != "" }

type commercialResponse struct {
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Geocode implements Provider.
func (c *CommercialProvider) Geocode(ctx context.Context, query string) (*geometry.Point, Metadata) {
	if !c.Viable() {
		return nil, Metadata{Provider: c.Name(), Success: false, Error: "missing api key"}
	}

	u := fmt.Sprintf("%s/geocode/json", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, Metadata{Provider: c.Name(), Success: false, Error: err.Error()}
	}
	q := url.Values{}
	q.Set("address", query)
	q.Set("key", c.apiKey)
	req.URL.RawQuery = q.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, Metadata{Provider: c.Name(), Success: false, Error: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, Metadata{Provider: c.Name(), Success: false, Error: fmt.Sprintf("status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Metadata{Provider: c.Name(), Success: false, Error: err.Error()}
	}

	var parsed commercialResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, Metadata{Provider: c.Name(), Success: false, Error: "non-JSON body"}
	}

	if len(parsed.Results) == 0 {
		return nil, Metadata{Provider: c.Name(), Success: false, Error: "no results"}
	}

	loc := parsed.Results[0].Geometry.Location
	return &geometry.Point{Lat: loc.Lat, Lon: loc.Lng}, Metadata{Provider: c.Name(), Success: true}
}
