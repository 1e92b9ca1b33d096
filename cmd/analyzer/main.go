// Package main provides the batch analyzer. It runs disruption
// articles from JSON files through the full analysis pipeline and
// prints one record per article, without going through the API server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gtfsdisrupt/gtfsdisrupt/internal/analyze"
	"github.com/gtfsdisrupt/gtfsdisrupt/internal/config"
	"github.com/gtfsdisrupt/gtfsdisrupt/internal/daterange"
	"github.com/gtfsdisrupt/gtfsdisrupt/internal/geo"
	"github.com/gtfsdisrupt/gtfsdisrupt/internal/geo/places"
	"github.com/gtfsdisrupt/gtfsdisrupt/internal/gtfs"
	"github.com/gtfsdisrupt/gtfsdisrupt/internal/llm"
	"github.com/gtfsdisrupt/gtfsdisrupt/internal/resolve"
	"github.com/gtfsdisrupt/gtfsdisrupt/internal/vector/qdrant"
)

// articleConcurrency bounds how many articles are analyzed at once.
// Resolution within one article stays sequential.
const articleConcurrency = 5

func main() {
	operator := flag.String("operator", "", "operator the articles belong to (required)")
	flag.Parse()

	_ = godotenv.Load()

	log := zerolog.New(os.Stderr).
		With().
		Timestamp().
		Str("service", "gtfsdisrupt-analyzer").
		Logger()

	if *operator == "" {
		log.Fatal().Msg("-operator is required")
	}
	if flag.NArg() == 0 {
		log.Fatal().Msg("no article files given")
	}

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.OpenAIAPIKey == "" {
		log.Fatal().Msg("OPENAI_API_KEY is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	service := buildService(cfg, log)

	records := make([]analyze.Record, flag.NArg())

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(articleConcurrency)
	for i, path := range flag.Args() {
		g.Go(func() error {
			article, err := readArticle(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}
			records[i] = service.Analyze(ctx, *operator, article)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("batch failed")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	for _, record := range records {
		if err := enc.Encode(record); err != nil {
			log.Fatal().Err(err).Msg("encoding record")
		}
	}
}

func readArticle(path string) (analyze.Article, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return analyze.Article{}, err
	}
	var article analyze.Article
	if err := json.Unmarshal(data, &article); err != nil {
		return analyze.Article{}, err
	}
	return article, nil
}

func buildService(cfg *config.Config, log zerolog.Logger) *analyze.Service {
	chat := llm.NewClient(llm.ClientConfig{
		APIKey:          cfg.OpenAIAPIKey,
		ChatModel:       cfg.ChatModel,
		EmbedModel:      cfg.EmbedModel,
		EmbedDimensions: cfg.EmbedDimensions,
		Logger:          log,
	})

	index := qdrant.NewClient(qdrant.ClientConfig{
		BaseURL: cfg.QdrantURL,
		Logger:  log,
	})

	var geocoder geo.Geocoder
	if cfg.PlacesAPIKey != "" {
		geocoder = places.NewClient(places.ClientConfig{
			APIKey: cfg.PlacesAPIKey,
			Logger: log,
		})
	}

	centers := make(map[string]geo.Coordinate, len(cfg.OperatorCenters))
	for operator, center := range cfg.OperatorCenters {
		centers[operator] = geo.Coordinate{Lat: center.Latitude, Lon: center.Longitude}
	}

	resolver, err := resolve.NewResolver(resolve.ResolverConfig{
		Datasets: gtfs.NewCache(cfg.GTFSDir, log),
		Fuzzy:    resolve.NewFuzzyMatcher(),
		Semantic: resolve.NewSemanticResolver(resolve.SemanticResolverConfig{
			Chat:     chat,
			Embedder: chat,
			Index:    index,
			Logger:   log,
		}),
		Geocoder: geocoder,
		Geocode: resolve.GeocodeConfig{
			Centers: centers,
			Default: geo.Coordinate{
				Lat: config.DefaultCenterLatitude,
				Lon: config.DefaultCenterLongitude,
			},
			RadiusMeters: config.GeocodeRadiusMeters,
		},
		Logger: log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize resolver")
	}

	return analyze.NewService(analyze.ServiceConfig{
		Chat:  chat,
		Lines: resolver,
		Stops: resolver,
		Dates: daterange.NewNormalizer(daterange.NormalizerConfig{
			Location: cfg.Timezone,
			Logger:   log,
		}),
		Logger: log,
	})
}
