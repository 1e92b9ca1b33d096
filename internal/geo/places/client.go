// Package places provides a client for the Google Places text-search API.
package places

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/gtfsdisrupt/gtfsdisrupt/internal/geo"
	"github.com/gtfsdisrupt/gtfsdisrupt/internal/resilience"
)

const (
	// ProviderName identifies this geocoding provider.
	ProviderName = "google-places"

	// DefaultBaseURL is the Places API (New) base URL.
	DefaultBaseURL = "https://places.googleapis.com"

	// fieldMask limits the response to coordinates; this data source
	// cannot supply anything GTFS-shaped anyway.
	fieldMask = "places.location"
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the Places client.
type ClientConfig struct {
	// APIKey is the Google Maps API key (required).
	APIKey string

	// BaseURL is the API base URL (optional, defaults to Google).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a Google Places text-search client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new Places client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

type searchTextRequest struct {
	TextQuery    string       `json:"textQuery"`
	LocationBias locationBias `json:"locationBias"`
	PageSize     int          `json:"pageSize"`
}

type locationBias struct {
	Circle circle `json:"circle"`
}

type circle struct {
	Center latLng  `json:"center"`
	Radius float64 `json:"radius"`
}

type latLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type searchTextResponse struct {
	Places []struct {
		Location latLng `json:"location"`
	} `json:"places"`
}

// SearchPlace returns the single best location for a free-text query,
// biased toward the given circle.
func (c *Client) SearchPlace(ctx context.Context, query string, bias geo.Bias) (*geo.Location, error) {
	body, err := json.Marshal(searchTextRequest{
		TextQuery: query,
		LocationBias: locationBias{
			Circle: circle{
				Center: latLng{
					Latitude:  bias.Center.Lat,
					Longitude: bias.Center.Lon,
				},
				Radius: bias.RadiusMeters,
			},
		},
		PageSize: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/places:searchText", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", fieldMask)

	c.logger.Debug().
		Str("query", query).
		Float64("bias_lat", bias.Center.Lat).
		Float64("bias_lon", bias.Center.Lon).
		Msg("searching place")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", geo.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("body", string(payload)).
			Msg("places request failed")
		return nil, fmt.Errorf("%w: status %d", geo.ErrServiceUnavailable, resp.StatusCode)
	}

	var searchResp searchTextResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if len(searchResp.Places) == 0 {
		return nil, geo.ErrNoResults
	}

	loc := searchResp.Places[0].Location
	return &geo.Location{
		Coordinate: geo.Coordinate{
			Lat: loc.Latitude,
			Lon: loc.Longitude,
		},
	}, nil
}
