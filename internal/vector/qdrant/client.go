// Package qdrant provides a client for the Qdrant vector store REST API.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/gtfsdisrupt/gtfsdisrupt/internal/resilience"
)

const (
	// ServiceName identifies this collaborator in logs and breaker naming.
	ServiceName = "qdrant"

	// DefaultBaseURL is the local Qdrant instance.
	DefaultBaseURL = "http://localhost:6333"
)

// LinesCollection returns the operator-scoped line index name.
func LinesCollection(operator string) string {
	return "gtfs-lines-" + operator
}

// StopsCollection returns the operator-scoped stop index name.
func StopsCollection(operator string) string {
	return "gtfs-stops-" + operator
}

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the Qdrant client.
type ClientConfig struct {
	// BaseURL is the Qdrant base URL (optional, defaults to localhost).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a Qdrant REST API client.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new Qdrant client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ServiceName))
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Point is one vector with its payload.
type Point struct {
	ID      uint64                 `json:"id"`
	Vector  []float32              `json:"vector"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// ScoredPoint is a search hit.
type ScoredPoint struct {
	ID      uint64                 `json:"id"`
	Score   float64                `json:"score"`
	Payload map[string]interface{} `json:"payload"`
}

// RecreateCollection drops and recreates a collection with cosine
// distance vectors of the given size. Used by the index builder to make
// rebuilds idempotent.
func (c *Client) RecreateCollection(ctx context.Context, name string, vectorSize int) error {
	// Delete is best-effort: a 404 just means a first-time build.
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.collectionURL(name), http.NoBody)
	if err != nil {
		return fmt.Errorf("creating delete request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deleting collection %s: %w", name, err)
	}
	drain(resp)

	body, err := json.Marshal(map[string]interface{}{
		"vectors": map[string]interface{}{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	})
	if err != nil {
		return fmt.Errorf("marshaling create request: %w", err)
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodPut, c.collectionURL(name), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err = c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.statusError("create collection", name, resp)
	}

	c.logger.Info().
		Str("collection", name).
		Int("vector_size", vectorSize).
		Msg("collection recreated")

	return nil
}

// UpsertPoints writes points into a collection, waiting for the
// operation to be applied.
func (c *Client) UpsertPoints(ctx context.Context, name string, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	body, err := json.Marshal(map[string]interface{}{"points": points})
	if err != nil {
		return fmt.Errorf("marshaling points: %w", err)
	}

	url := fmt.Sprintf("%s/points?wait=true", c.collectionURL(name))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upserting points into %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.statusError("upsert points", name, resp)
	}
	return nil
}

// Search returns the top results for a query vector, payloads included.
func (c *Client) Search(ctx context.Context, name string, vector []float32, limit int) ([]ScoredPoint, error) {
	body, err := json.Marshal(map[string]interface{}{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling search request: %w", err)
	}

	url := fmt.Sprintf("%s/points/search", c.collectionURL(name))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError("search", name, resp)
	}

	var searchResp struct {
		Result []ScoredPoint `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}
	return searchResp.Result, nil
}

func (c *Client) collectionURL(name string) string {
	return fmt.Sprintf("%s/collections/%s", c.baseURL, name)
}

func (c *Client) statusError(op, collection string, resp *http.Response) error {
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	c.logger.Warn().
		Str("collection", collection).
		Int("status", resp.StatusCode).
		Str("body", string(payload)).
		Msg("qdrant request failed")
	return fmt.Errorf("%s on %s: qdrant returned status %d", op, collection, resp.StatusCode)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
