package resolve

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/gtfsdisrupt/gtfsdisrupt/internal/geo"
	"github.com/gtfsdisrupt/gtfsdisrupt/internal/gtfs"
)

const instrumentationName = "github.com/gtfsdisrupt/gtfsdisrupt/internal/resolve"

// GeocodeConfig controls the geocoding fallback bias per operator.
type GeocodeConfig struct {
	// Centers maps operator names to their network center.
	Centers map[string]geo.Coordinate

	// Default is used for operators without a configured center.
	Default geo.Coordinate

	// RadiusMeters is the bias circle radius.
	RadiusMeters float64
}

func (g GeocodeConfig) centerFor(operator string) geo.Coordinate {
	if c, ok := g.Centers[operator]; ok {
		return c
	}
	return g.Default
}

// ResolverConfig holds the cascade's collaborators.
type ResolverConfig struct {
	// Datasets supplies per-operator canonical GTFS data.
	Datasets *gtfs.Cache

	// Fuzzy is the first, deterministic resolution stage.
	Fuzzy *FuzzyMatcher

	// Semantic is the second stage. Optional; when nil the cascade
	// degrades to fuzzy matching plus geocoding.
	Semantic *SemanticResolver

	// Geocoder is the final fallback for stops only. Optional.
	Geocoder geo.Geocoder

	// Geocode configures the geocoder's location bias.
	Geocode GeocodeConfig

	// Logger for resolution activity.
	Logger zerolog.Logger
}

// Resolver runs descriptions through the strategy cascade. Each
// description is resolved independently; a failure on one never
// affects its neighbors, and every input position gets exactly one
// output record.
type Resolver struct {
	datasets *gtfs.Cache
	fuzzy    *FuzzyMatcher
	semantic *SemanticResolver
	geocoder geo.Geocoder
	geocode  GeocodeConfig
	logger   zerolog.Logger

	tracer   trace.Tracer
	attempts metric.Int64Counter
}

// NewResolver creates a Resolver.
func NewResolver(cfg ResolverConfig) (*Resolver, error) {
	meter := otel.Meter(instrumentationName)
	attempts, err := meter.Int64Counter("resolve.attempts",
		metric.WithDescription("Resolution outcomes by kind and strategy"))
	if err != nil {
		return nil, fmt.Errorf("creating attempts counter: %w", err)
	}

	return &Resolver{
		datasets: cfg.Datasets,
		fuzzy:    cfg.Fuzzy,
		semantic: cfg.Semantic,
		geocoder: cfg.Geocoder,
		geocode:  cfg.Geocode,
		logger:   cfg.Logger,
		tracer:   otel.Tracer(instrumentationName),
		attempts: attempts,
	}, nil
}

// ResolveLines resolves line descriptions to canonical routes. The
// result always has one record per description, in order; a record
// with all fields nil means no strategy matched.
func (r *Resolver) ResolveLines(ctx context.Context, operator string, descriptions []string) ([]ResolvedLine, error) {
	ds, err := r.datasets.Get(operator)
	if err != nil {
		return nil, fmt.Errorf("loading dataset for %s: %w", operator, err)
	}

	out := make([]ResolvedLine, len(descriptions))
	for i, desc := range descriptions {
		out[i] = r.resolveLine(ctx, ds, desc)
	}
	return out, nil
}

// ResolveStops resolves stop descriptions to canonical stops, falling
// back to geocoded coordinates when the dataset has no match. The
// result always has one record per description, in order.
func (r *Resolver) ResolveStops(ctx context.Context, operator string, descriptions []string) ([]ResolvedStop, error) {
	ds, err := r.datasets.Get(operator)
	if err != nil {
		return nil, fmt.Errorf("loading dataset for %s: %w", operator, err)
	}

	out := make([]ResolvedStop, len(descriptions))
	for i, desc := range descriptions {
		out[i] = r.resolveStop(ctx, ds, desc)
	}
	return out, nil
}

func (r *Resolver) resolveLine(ctx context.Context, ds *gtfs.Dataset, description string) ResolvedLine {
	ctx, span := r.tracer.Start(ctx, "resolve.line")
	defer span.End()

	if route, ok := r.fuzzy.MatchRoute(ds, description); ok {
		r.record(ctx, span, "line", "fuzzy", "hit")
		return LineFromRoute(route)
	}

	if r.semantic != nil {
		line, err := r.semantic.ResolveLine(ctx, ds, description)
		switch {
		case isConsistencyError(err):
			r.logger.Error().Err(err).
				Str("operator", ds.Operator).
				Str("description", description).
				Msg("semantic line resolution violated contract")
			r.record(ctx, span, "line", "semantic", "error")
			return ResolvedLine{}
		case err != nil:
			r.logger.Warn().Err(err).
				Str("operator", ds.Operator).
				Str("description", description).
				Msg("semantic line resolution unavailable")
		case line != nil:
			r.record(ctx, span, "line", "semantic", "hit")
			return *line
		}
	}

	r.record(ctx, span, "line", "none", "miss")
	return ResolvedLine{}
}

func (r *Resolver) resolveStop(ctx context.Context, ds *gtfs.Dataset, description string) ResolvedStop {
	ctx, span := r.tracer.Start(ctx, "resolve.stop")
	defer span.End()

	if stop, ok := r.fuzzy.MatchStop(ds, description); ok {
		r.record(ctx, span, "stop", "fuzzy", "hit")
		return StopFromRecord(stop)
	}

	if r.semantic != nil {
		resolved, err := r.semantic.ResolveStop(ctx, ds, description)
		switch {
		case isConsistencyError(err):
			r.logger.Error().Err(err).
				Str("operator", ds.Operator).
				Str("description", description).
				Msg("semantic stop resolution violated contract")
			r.record(ctx, span, "stop", "semantic", "error")
			return ResolvedStop{}
		case err != nil:
			r.logger.Warn().Err(err).
				Str("operator", ds.Operator).
				Str("description", description).
				Msg("semantic stop resolution unavailable")
		case resolved != nil:
			r.record(ctx, span, "stop", "semantic", "hit")
			return *resolved
		}
	}

	return r.geocodeStop(ctx, span, ds.Operator, description)
}

// geocodeStop is the last stop strategy. It always produces a record:
// coordinates on success, a fully empty record on any failure. Errors
// are logged and never surfaced.
func (r *Resolver) geocodeStop(ctx context.Context, span trace.Span, operator, description string) ResolvedStop {
	if r.geocoder == nil {
		r.record(ctx, span, "stop", "none", "miss")
		return ResolvedStop{}
	}

	bias := geo.Bias{
		Center:       r.geocode.centerFor(operator),
		RadiusMeters: r.geocode.RadiusMeters,
	}
	loc, err := r.geocoder.SearchPlace(ctx, description, bias)
	if err != nil {
		evt := r.logger.Warn()
		if errors.Is(err, geo.ErrNoResults) {
			evt = r.logger.Debug()
		}
		evt.Err(err).
			Str("operator", operator).
			Str("description", description).
			Msg("geocoding fallback found nothing")
		r.record(ctx, span, "stop", "geocode", "miss")
		return ResolvedStop{}
	}

	r.record(ctx, span, "stop", "geocode", "hit")
	desc := description
	lat := loc.Coordinate.Lat
	lon := loc.Coordinate.Lon
	return ResolvedStop{StopDesc: &desc, Lat: &lat, Long: &lon}
}

func (r *Resolver) record(ctx context.Context, span trace.Span, kind, strategy, outcome string) {
	attrs := []attribute.KeyValue{
		attribute.String("kind", kind),
		attribute.String("strategy", strategy),
		attribute.String("outcome", outcome),
	}
	span.SetAttributes(attrs...)
	r.attempts.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func isConsistencyError(err error) bool {
	return errors.Is(err, ErrUnknownStopID) ||
		errors.Is(err, ErrUnknownRouteID) ||
		errors.Is(err, ErrMalformedAnswer)
}
