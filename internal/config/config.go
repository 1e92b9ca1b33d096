// Package config builds the service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Default service-area bias for geocoding when an operator has no
// configured center. Roughly the Padova basin, where most of the
// currently scraped operators run.
const (
	DefaultCenterLatitude  = 45.4092
	DefaultCenterLongitude = 11.8778

	// GeocodeRadiusMeters is the fixed search radius for the geocoding
	// fallback. Not tunable per operator.
	GeocodeRadiusMeters = 500.0
)

// OperatorCenter is the service-area center of one transit operator,
// used to bias geocoding queries.
type OperatorCenter struct {
	Latitude  float64
	Longitude float64
}

// Config holds all service configuration. It is constructed once via
// FromEnv and passed by reference into every constructor.
type Config struct {
	// OpenAIAPIKey authenticates chat and embedding requests (required
	// for resolution and indexing).
	OpenAIAPIKey string

	// ChatModel is the chat-completion model used for classification,
	// extraction and semantic resolution.
	ChatModel string

	// EmbedModel is the embedding model backing the vector index.
	EmbedModel string

	// EmbedDimensions is the embedding vector size. Must match the
	// dimensions the Qdrant collections were created with.
	EmbedDimensions int

	// QdrantURL is the base URL of the Qdrant instance.
	QdrantURL string

	// PlacesAPIKey authenticates Google Places requests. Empty disables
	// the geocoding fallback.
	PlacesAPIKey string

	// GTFSDir is the directory holding one subdirectory per operator,
	// each with routes.json and stops.json.
	GTFSDir string

	// Timezone is the location articles express dates in.
	Timezone *time.Location

	// OperatorCenters maps operator identifiers to their configured
	// service-area centers. Operators absent from the map fall back to
	// the regional default.
	OperatorCenters map[string]OperatorCenter

	// ListenAddr is the API server bind address.
	ListenAddr string

	// Environment names the deployment environment for telemetry.
	Environment string

	// OTLPEndpoint is the OTLP gRPC collector address. Empty disables
	// trace and metric export.
	OTLPEndpoint string
}

// TelemetryEnabled reports whether an OTLP collector is configured.
func (c *Config) TelemetryEnabled() bool {
	return c.OTLPEndpoint != ""
}

// FromEnv constructs the configuration from environment variables.
// Operator centers are read from <OPERATOR>_CENTER_LATITUDE and
// <OPERATOR>_CENTER_LONGITUDE for every operator directory found under
// the GTFS storage dir.
func FromEnv() (*Config, error) {
	cfg := &Config{
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		ChatModel:       envOrDefault("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
		EmbedModel:      envOrDefault("OPENAI_EMBED_MODEL", "text-embedding-3-small"),
		EmbedDimensions: 1536,
		QdrantURL:       envOrDefault("QDRANT_URL", "http://localhost:6333"),
		PlacesAPIKey:    os.Getenv("GOOGLE_MAPS_TOKEN"),
		GTFSDir:         envOrDefault("GTFS_DIR", "storage/gtfs"),
		Timezone:        time.Local,
		OperatorCenters: make(map[string]OperatorCenter),
		ListenAddr:      envOrDefault("LISTEN_ADDR", ":8080"),
		Environment:     envOrDefault("ENVIRONMENT", "development"),
		OTLPEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if dims := os.Getenv("OPENAI_EMBED_DIMENSIONS"); dims != "" {
		n, err := strconv.Atoi(dims)
		if err != nil {
			return nil, fmt.Errorf("parsing OPENAI_EMBED_DIMENSIONS: %w", err)
		}
		cfg.EmbedDimensions = n
	}

	if tz := os.Getenv("ARTICLE_TIMEZONE"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("loading ARTICLE_TIMEZONE: %w", err)
		}
		cfg.Timezone = loc
	}

	for _, operator := range discoverOperators(cfg.GTFSDir) {
		center, ok, err := centerFromEnv(operator)
		if err != nil {
			return nil, err
		}
		if ok {
			cfg.OperatorCenters[operator] = center
		}
	}

	return cfg, nil
}

// Operators returns the operator identifiers found under the GTFS
// storage directory, one per subdirectory.
func (c *Config) Operators() []string {
	return discoverOperators(c.GTFSDir)
}

// CenterFor returns the geocoding bias center for an operator, falling
// back to the regional default when unconfigured.
func (c *Config) CenterFor(operator string) OperatorCenter {
	if center, ok := c.OperatorCenters[operator]; ok {
		return center
	}
	return OperatorCenter{
		Latitude:  DefaultCenterLatitude,
		Longitude: DefaultCenterLongitude,
	}
}

func centerFromEnv(operator string) (OperatorCenter, bool, error) {
	prefix := strings.ToUpper(operator)
	latStr := os.Getenv(prefix + "_CENTER_LATITUDE")
	lonStr := os.Getenv(prefix + "_CENTER_LONGITUDE")
	if latStr == "" || lonStr == "" {
		return OperatorCenter{}, false, nil
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return OperatorCenter{}, false, fmt.Errorf("parsing %s_CENTER_LATITUDE: %w", prefix, err)
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return OperatorCenter{}, false, fmt.Errorf("parsing %s_CENTER_LONGITUDE: %w", prefix, err)
	}

	return OperatorCenter{Latitude: lat, Longitude: lon}, true, nil
}

func discoverOperators(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var operators []string
	for _, entry := range entries {
		if entry.IsDir() {
			operators = append(operators, entry.Name())
		}
	}
	return operators
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
