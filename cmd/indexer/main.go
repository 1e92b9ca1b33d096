// Package main provides the index builder. It embeds the canonical
// GTFS routes and stops and rebuilds the vector collections the
// semantic resolver searches. Run it after every GTFS refresh.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/gtfsdisrupt/gtfsdisrupt/internal/config"
	"github.com/gtfsdisrupt/gtfsdisrupt/internal/gtfs"
	"github.com/gtfsdisrupt/gtfsdisrupt/internal/indexer"
	"github.com/gtfsdisrupt/gtfsdisrupt/internal/llm"
	"github.com/gtfsdisrupt/gtfsdisrupt/internal/vector/qdrant"
)

func main() {
	flag.Parse()

	_ = godotenv.Load()

	log := zerolog.New(os.Stderr).
		With().
		Timestamp().
		Str("service", "gtfsdisrupt-indexer").
		Logger()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.OpenAIAPIKey == "" {
		log.Fatal().Msg("OPENAI_API_KEY is required")
	}

	// Positional args narrow the rebuild to specific operators.
	operators := flag.Args()
	if len(operators) == 0 {
		operators = cfg.Operators()
	}
	if len(operators) == 0 {
		log.Fatal().
			Str("dir", cfg.GTFSDir).
			Msg("no operator datasets found")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	chat := llm.NewClient(llm.ClientConfig{
		APIKey:          cfg.OpenAIAPIKey,
		EmbedModel:      cfg.EmbedModel,
		EmbedDimensions: cfg.EmbedDimensions,
		Logger:          log,
	})

	builder := indexer.NewBuilder(indexer.BuilderConfig{
		Datasets: gtfs.NewCache(cfg.GTFSDir, log),
		Embedder: chat,
		Store: qdrant.NewClient(qdrant.ClientConfig{
			BaseURL: cfg.QdrantURL,
			Logger:  log,
		}),
		VectorSize: cfg.EmbedDimensions,
		Logger:     log,
	})

	log.Info().
		Strs("operators", operators).
		Str("embed_model", cfg.EmbedModel).
		Msg("rebuilding vector collections")

	if err := builder.RebuildAll(ctx, operators); err != nil {
		log.Fatal().Err(err).Msg("rebuild failed")
	}

	log.Info().Msg("rebuild complete")
}
