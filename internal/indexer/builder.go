// Package indexer builds the per-operator vector collections that
// back semantic resolution.
package indexer

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gtfsdisrupt/gtfsdisrupt/internal/gtfs"
	"github.com/gtfsdisrupt/gtfsdisrupt/internal/vector/qdrant"
)

const (
	defaultBatchSize = 64

	// rebuildConcurrency bounds how many operators are indexed at once.
	rebuildConcurrency = 5
)

// Embedder turns texts into vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore is the subset of the vector client the builder needs.
// *qdrant.Client satisfies it.
type VectorStore interface {
	RecreateCollection(ctx context.Context, name string, vectorSize int) error
	UpsertPoints(ctx context.Context, name string, points []qdrant.Point) error
}

// BuilderConfig holds the builder's collaborators.
type BuilderConfig struct {
	// Datasets supplies per-operator canonical GTFS data.
	Datasets *gtfs.Cache

	// Embedder produces the vectors.
	Embedder Embedder

	// Store receives the collections.
	Store VectorStore

	// VectorSize is the embedding dimensionality.
	VectorSize int

	// BatchSize bounds how many stop documents are embedded per
	// request (optional, defaults to 64).
	BatchSize int

	// Logger for build progress.
	Logger zerolog.Logger
}

// Builder rebuilds vector collections from GTFS data. Rebuilds are
// idempotent: each run drops and recreates the target collections.
type Builder struct {
	datasets   *gtfs.Cache
	embedder   Embedder
	store      VectorStore
	vectorSize int
	batchSize  int
	logger     zerolog.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(cfg BuilderConfig) *Builder {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Builder{
		datasets:   cfg.Datasets,
		embedder:   cfg.Embedder,
		store:      cfg.Store,
		vectorSize: cfg.VectorSize,
		batchSize:  batchSize,
		logger:     cfg.Logger,
	}
}

// RebuildAll rebuilds the collections for every operator, a bounded
// number of them in flight at a time. The first failure cancels the
// rest.
func (b *Builder) RebuildAll(ctx context.Context, operators []string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(rebuildConcurrency)

	for _, operator := range operators {
		operator := operator
		g.Go(func() error {
			return b.Rebuild(ctx, operator)
		})
	}
	return g.Wait()
}

// Rebuild rebuilds one operator's line and stop collections.
func (b *Builder) Rebuild(ctx context.Context, operator string) error {
	ds, err := b.datasets.Get(operator)
	if err != nil {
		return fmt.Errorf("loading dataset for %s: %w", operator, err)
	}

	if err := b.rebuildLines(ctx, ds); err != nil {
		return fmt.Errorf("rebuilding line index for %s: %w", operator, err)
	}
	if err := b.rebuildStops(ctx, ds); err != nil {
		return fmt.Errorf("rebuilding stop index for %s: %w", operator, err)
	}

	b.logger.Info().
		Str("operator", operator).
		Int("routes", len(ds.Routes)).
		Int("stops", len(ds.Stops)).
		Msg("vector collections rebuilt")
	return nil
}

// rebuildLines indexes the whole network as one aggregate document,
// so a single retrieval hands the model the complete line list.
func (b *Builder) rebuildLines(ctx context.Context, ds *gtfs.Dataset) error {
	collection := qdrant.LinesCollection(ds.Operator)
	if err := b.store.RecreateCollection(ctx, collection, b.vectorSize); err != nil {
		return err
	}

	doc := lineDocument(ds.Routes)
	vectors, err := b.embedder.Embed(ctx, []string{doc})
	if err != nil {
		return fmt.Errorf("embedding line document: %w", err)
	}

	return b.store.UpsertPoints(ctx, collection, []qdrant.Point{{
		ID:      1,
		Vector:  vectors[0],
		Payload: map[string]interface{}{"text": doc},
	}})
}

// rebuildStops indexes each stop as its own document, embedded in
// batches.
func (b *Builder) rebuildStops(ctx context.Context, ds *gtfs.Dataset) error {
	collection := qdrant.StopsCollection(ds.Operator)
	if err := b.store.RecreateCollection(ctx, collection, b.vectorSize); err != nil {
		return err
	}

	docs := make([]string, len(ds.Stops))
	for i, stop := range ds.Stops {
		docs[i] = stopDocument(stop)
	}

	for offset := 0; offset < len(docs); offset += b.batchSize {
		end := offset + b.batchSize
		if end > len(docs) {
			end = len(docs)
		}

		vectors, err := b.embedder.Embed(ctx, docs[offset:end])
		if err != nil {
			return fmt.Errorf("embedding stop batch at %d: %w", offset, err)
		}

		points := make([]qdrant.Point, end-offset)
		for i := range points {
			stop := ds.Stops[offset+i]
			points[i] = qdrant.Point{
				ID:     uint64(offset + i + 1),
				Vector: vectors[i],
				Payload: map[string]interface{}{
					"text":    docs[offset+i],
					"stop_id": stop.ID,
				},
			}
		}
		if err := b.store.UpsertPoints(ctx, collection, points); err != nil {
			return err
		}
	}
	return nil
}

func lineDocument(routes []gtfs.Route) string {
	var b strings.Builder
	for _, r := range routes {
		fmt.Fprintf(&b, "Line %s (route_id %s): %s\n", r.ShortName, r.ID, r.LongName)
	}
	return strings.TrimRight(b.String(), "\n")
}

func stopDocument(s gtfs.Stop) string {
	return fmt.Sprintf("Stop %s (code %s): %s", s.ID, s.Code, s.Desc)
}
