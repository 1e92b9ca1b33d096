// Package main provides the entrypoint for the disruption analysis API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/gtfsdisrupt/gtfsdisrupt/internal/analyze"
	"github.com/gtfsdisrupt/gtfsdisrupt/internal/api"
	"github.com/gtfsdisrupt/gtfsdisrupt/internal/api/middleware"
	"github.com/gtfsdisrupt/gtfsdisrupt/internal/config"
	"github.com/gtfsdisrupt/gtfsdisrupt/internal/daterange"
	"github.com/gtfsdisrupt/gtfsdisrupt/internal/geo"
	"github.com/gtfsdisrupt/gtfsdisrupt/internal/geo/places"
	"github.com/gtfsdisrupt/gtfsdisrupt/internal/gtfs"
	"github.com/gtfsdisrupt/gtfsdisrupt/internal/llm"
	"github.com/gtfsdisrupt/gtfsdisrupt/internal/resolve"
	"github.com/gtfsdisrupt/gtfsdisrupt/internal/telemetry"
	"github.com/gtfsdisrupt/gtfsdisrupt/internal/vector/qdrant"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "gtfsdisrupt-api"

	// A .env file is a convenience for local runs only.
	_ = godotenv.Load()

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting disruption analysis API")

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.OpenAIAPIKey == "" {
		log.Fatal().Msg("OPENAI_API_KEY is required")
	}

	// Initialize OpenTelemetry
	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TelemetryEnabled(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.TelemetryEnabled() {
		log.Info().
			Str("otlp_endpoint", cfg.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	// Load the canonical GTFS datasets
	datasets := gtfs.NewCache(cfg.GTFSDir, log)
	operators := cfg.Operators()
	if len(operators) == 0 {
		log.Warn().
			Str("dir", cfg.GTFSDir).
			Msg("no operator datasets found, analysis requests will fail")
	} else {
		log.Info().
			Strs("operators", operators).
			Msg("operator datasets discovered")
	}

	// Initialize the OpenAI client shared by classification, extraction
	// and semantic resolution
	chat := llm.NewClient(llm.ClientConfig{
		APIKey:          cfg.OpenAIAPIKey,
		ChatModel:       cfg.ChatModel,
		EmbedModel:      cfg.EmbedModel,
		EmbedDimensions: cfg.EmbedDimensions,
		Logger:          log,
	})
	log.Info().
		Str("chat_model", cfg.ChatModel).
		Str("embed_model", cfg.EmbedModel).
		Msg("language model client initialized")

	// Initialize the vector index client
	index := qdrant.NewClient(qdrant.ClientConfig{
		BaseURL: cfg.QdrantURL,
		Logger:  log,
	})
	log.Info().
		Str("url", cfg.QdrantURL).
		Msg("vector index client initialized")

	semantic := resolve.NewSemanticResolver(resolve.SemanticResolverConfig{
		Chat:     chat,
		Embedder: chat,
		Index:    index,
		Logger:   log,
	})

	// Geocoding is optional; without a token the stop cascade stops at
	// the semantic stage
	var geocoder geo.Geocoder
	if cfg.PlacesAPIKey != "" {
		geocoder = places.NewClient(places.ClientConfig{
			APIKey: cfg.PlacesAPIKey,
			Logger: log,
		})
		log.Info().Msg("geocoding fallback initialized")
	} else {
		log.Warn().Msg("GOOGLE_MAPS_TOKEN not set, geocoding fallback disabled")
	}

	resolver, err := resolve.NewResolver(resolve.ResolverConfig{
		Datasets: datasets,
		Fuzzy:    resolve.NewFuzzyMatcher(),
		Semantic: semantic,
		Geocoder: geocoder,
		Geocode:  geocodeConfig(cfg),
		Logger:   log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize resolver")
	}
	log.Info().Msg("resolver initialized")

	analyzer := analyze.NewService(analyze.ServiceConfig{
		Chat:  chat,
		Lines: resolver,
		Stops: resolver,
		Dates: daterange.NewNormalizer(daterange.NormalizerConfig{
			Location: cfg.Timezone,
			Logger:   log,
		}),
		Logger: log,
	})
	log.Info().Msg("analysis service initialized")

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:   Version,
		BuildTime: BuildTime,
		Logger:    log,
		Metrics:   metrics,
		Analyzer:  analyzer,
		Operators: cfg.Operators,
		Ready: func() error {
			if len(cfg.Operators()) == 0 {
				return fmt.Errorf("no operator datasets under %s", cfg.GTFSDir)
			}
			return nil
		},
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// geocodeConfig maps the operator centers from the environment into
// the resolver's bias configuration.
func geocodeConfig(cfg *config.Config) resolve.GeocodeConfig {
	centers := make(map[string]geo.Coordinate, len(cfg.OperatorCenters))
	for operator, center := range cfg.OperatorCenters {
		centers[operator] = geo.Coordinate{Lat: center.Latitude, Lon: center.Longitude}
	}
	return resolve.GeocodeConfig{
		Centers: centers,
		Default: geo.Coordinate{
			Lat: config.DefaultCenterLatitude,
			Lon: config.DefaultCenterLongitude,
		},
		RadiusMeters: config.GeocodeRadiusMeters,
	}
}
