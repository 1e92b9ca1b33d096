package resolve

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/gtfsdisrupt/gtfsdisrupt/internal/gtfs"
	"github.com/gtfsdisrupt/gtfsdisrupt/internal/vector/qdrant"
)

// ChatClient produces a completion for a system/user prompt pair.
type ChatClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Embedder turns texts into vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Searcher queries a vector collection. *qdrant.Client satisfies it.
type Searcher interface {
	Search(ctx context.Context, collection string, vector []float32, limit int) ([]qdrant.ScoredPoint, error)
}

const (
	// lineContextLimit and stopContextLimit bound how many indexed
	// documents are retrieved as prompt context. The line index holds
	// one aggregate document per operator, so one hit is the whole
	// network. Stops are indexed individually.
	lineContextLimit = 1
	stopContextLimit = 5
)

const lineSystemPrompt = `You match public transit line descriptions from service ` +
	`disruption notices against an operator's official line list. ` +
	`Answer only in the format you are asked for, with no commentary.`

const stopSystemPrompt = `You match public transit stop descriptions from service ` +
	`disruption notices against an operator's official stop list. ` +
	`Answer only in the format you are asked for, with no commentary.`

// SemanticResolverConfig holds the collaborators for semantic resolution.
type SemanticResolverConfig struct {
	Chat     ChatClient
	Embedder Embedder
	Index    Searcher
	Logger   zerolog.Logger
}

// SemanticResolver resolves descriptions the fuzzy layer could not, by
// retrieving indexed GTFS context and asking a language model to pick
// the canonical record.
type SemanticResolver struct {
	chat     ChatClient
	embedder Embedder
	index    Searcher
	logger   zerolog.Logger
}

// NewSemanticResolver creates a semantic resolver.
func NewSemanticResolver(cfg SemanticResolverConfig) *SemanticResolver {
	return &SemanticResolver{
		chat:     cfg.Chat,
		embedder: cfg.Embedder,
		index:    cfg.Index,
		logger:   cfg.Logger,
	}
}

// ResolveLine resolves one line description. A nil record with a nil
// error means the model declined to match. ErrUnknownRouteID and
// ErrMalformedAnswer report contract violations by the model; any
// other error is transient.
func (r *SemanticResolver) ResolveLine(ctx context.Context, ds *gtfs.Dataset, description string) (*ResolvedLine, error) {
	contextBlock, err := r.retrieve(ctx, qdrant.LinesCollection(ds.Operator), description, lineContextLimit)
	if err != nil {
		return nil, err
	}

	answer, err := r.chat.Complete(ctx, lineSystemPrompt, lineUserPrompt(contextBlock, description))
	if err != nil {
		return nil, fmt.Errorf("line completion: %w", err)
	}

	answer = strings.TrimSpace(answer)
	if isNoMatch(answer) {
		return nil, nil
	}

	// The model sometimes answers with a bare route identifier instead
	// of the requested JSON. Accept it when it exists in the feed.
	if route := ds.RouteByID(answer); route != nil {
		line := LineFromRoute(route)
		return &line, nil
	}

	var line ResolvedLine
	if err := json.Unmarshal([]byte(stripCodeFences(answer)), &line); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrMalformedAnswer, truncate(answer, 200))
	}
	if line.RouteID != nil {
		route := ds.RouteByID(*line.RouteID)
		if route == nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownRouteID, *line.RouteID)
		}
		// Canonical fields win over whatever the model echoed back.
		canonical := LineFromRoute(route)
		return &canonical, nil
	}
	if line.RouteShortName == nil && line.RouteLongName == nil {
		return nil, nil
	}
	return &line, nil
}

// ResolveStop resolves one stop description. The model must answer
// with a bare stop identifier or the no-match sentinel; an identifier
// missing from the feed is an ErrUnknownStopID consistency error.
func (r *SemanticResolver) ResolveStop(ctx context.Context, ds *gtfs.Dataset, description string) (*ResolvedStop, error) {
	contextBlock, err := r.retrieve(ctx, qdrant.StopsCollection(ds.Operator), description, stopContextLimit)
	if err != nil {
		return nil, err
	}

	answer, err := r.chat.Complete(ctx, stopSystemPrompt, stopUserPrompt(contextBlock, description))
	if err != nil {
		return nil, fmt.Errorf("stop completion: %w", err)
	}

	answer = strings.TrimSpace(answer)
	if isNoMatch(answer) {
		return nil, nil
	}
	if !isDigits(answer) {
		r.logger.Warn().
			Str("description", description).
			Str("answer", truncate(answer, 80)).
			Msg("semantic stop answer is neither an id nor the sentinel")
		return nil, nil
	}

	stop := ds.StopByID(answer)
	if stop == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStopID, answer)
	}
	resolved := StopFromRecord(stop)
	return &resolved, nil
}

// retrieve embeds the description and fetches the top indexed
// documents as a newline-joined context block.
func (r *SemanticResolver) retrieve(ctx context.Context, collection, description string, limit int) (string, error) {
	vectors, err := r.embedder.Embed(ctx, []string{description})
	if err != nil {
		return "", fmt.Errorf("embedding description: %w", err)
	}

	hits, err := r.index.Search(ctx, collection, vectors[0], limit)
	if err != nil {
		return "", fmt.Errorf("searching %s: %w", collection, err)
	}

	var b strings.Builder
	for _, hit := range hits {
		text, ok := hit.Payload["text"].(string)
		if !ok || text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(text)
	}
	return b.String(), nil
}

func lineUserPrompt(contextBlock, description string) string {
	return fmt.Sprintf(`These are the operator's transit lines:

%s

Find the line that best matches this description: %q

Keep in mind that a purely numeric line usually refers to an urban route: for example line "5" is usually the urban line with short name "U05".

Reply with a single JSON object with exactly these keys: "route_short_name", "route_id", "route_long_name". Use the values from the line list. If no line is a reasonable match, reply with the single word "none".`, contextBlock, description)
}

func stopUserPrompt(contextBlock, description string) string {
	return fmt.Sprintf(`These are the operator's transit stops that are most similar to the description:

%s

Find the stop that best matches this description: %q

Reply with only the numeric stop ID of the matching stop, and nothing else. If no stop is a reasonable match, reply with the single word "none".`, contextBlock, description)
}

func isNoMatch(answer string) bool {
	a := strings.ToLower(strings.Trim(answer, `"'.`))
	return a == NoMatch || a == "null"
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// stripCodeFences unwraps answers the model wrapped in a markdown
// code block.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
