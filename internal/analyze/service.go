package analyze

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gtfsdisrupt/gtfsdisrupt/internal/daterange"
	"github.com/gtfsdisrupt/gtfsdisrupt/internal/resolve"
)

// ChatClient produces a completion for a system/user prompt pair.
type ChatClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// LineResolver resolves line descriptions. *resolve.Resolver satisfies it.
type LineResolver interface {
	ResolveLines(ctx context.Context, operator string, descriptions []string) ([]resolve.ResolvedLine, error)
}

// StopResolver resolves stop descriptions. *resolve.Resolver satisfies it.
type StopResolver interface {
	ResolveStops(ctx context.Context, operator string, descriptions []string) ([]resolve.ResolvedStop, error)
}

// ServiceConfig holds the pipeline's collaborators.
type ServiceConfig struct {
	Chat  ChatClient
	Lines LineResolver
	Stops StopResolver
	Dates *daterange.Normalizer

	// Now supplies record timestamps. Defaults to time.Now.
	Now func() time.Time

	Logger zerolog.Logger
}

// Service runs one article through the full pipeline. It never fails:
// when a stage returns something unusable the article degrades to a
// not-relevant record, so one bad model answer cannot poison a batch.
type Service struct {
	chat   ChatClient
	lines  LineResolver
	stops  StopResolver
	dates  *daterange.Normalizer
	now    func() time.Time
	logger zerolog.Logger
}

// NewService creates a Service.
func NewService(cfg ServiceConfig) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		chat:   cfg.Chat,
		lines:  cfg.Lines,
		stops:  cfg.Stops,
		dates:  cfg.Dates,
		now:    now,
		logger: cfg.Logger,
	}
}

type classification struct {
	Title       string          `json:"title"`
	IsNecessary json.RawMessage `json:"is_necessary"`
}

type extraction struct {
	AffectedLines    []string                `json:"affected_lines"`
	SuspendedStops   []string                `json:"suspended_stops"`
	ReplacementStops []string                `json:"replacement_stops"`
	TimeIntervals    []daterange.RawInterval `json:"time_intervals"`
}

// Analyze processes one article for an operator and always returns a
// record.
func (s *Service) Analyze(ctx context.Context, operator string, article Article) Record {
	at := s.now()

	cls, ok := s.classify(ctx, article)
	if !ok {
		return notRelevantRecord(article.Title, article.URL, at)
	}

	title := strings.TrimSpace(cls.Title)
	if title == "" {
		title = article.Title
	}

	// The relevance verdict is read the way the classifier was asked
	// to phrase it: any zero in the answer means not relevant.
	if strings.Contains(string(cls.IsNecessary), "0") {
		s.logger.Debug().Str("title", title).Msg("article classified as not relevant")
		return notRelevantRecord(title, article.URL, at)
	}

	ext, ok := s.extract(ctx, article, at)
	if !ok {
		return notRelevantRecord(title, article.URL, at)
	}

	record := Record{
		Title:            title,
		SourceURL:        article.URL,
		Timestamp:        at,
		AffectedLines:    s.resolveLines(ctx, operator, ext.AffectedLines),
		SuspendedStops:   s.resolveStops(ctx, operator, ext.SuspendedStops),
		ReplacementStops: s.resolveStops(ctx, operator, ext.ReplacementStops),
		TimeIntervals:    s.dates.Normalize(ext.TimeIntervals),
	}
	return record
}

func (s *Service) classify(ctx context.Context, article Article) (classification, bool) {
	answer, err := s.chat.Complete(ctx, classifySystemPrompt, classifyUserPrompt(article))
	if err != nil {
		s.logger.Warn().Err(err).Str("url", article.URL).Msg("classification unavailable")
		return classification{}, false
	}

	var cls classification
	if err := json.Unmarshal([]byte(stripCodeFences(answer)), &cls); err != nil {
		s.logger.Warn().Err(err).Str("url", article.URL).Msg("unparsable classification answer")
		return classification{}, false
	}
	return cls, true
}

func (s *Service) extract(ctx context.Context, article Article, at time.Time) (extraction, bool) {
	answer, err := s.chat.Complete(ctx, extractSystemPrompt, extractUserPrompt(article, at))
	if err != nil {
		s.logger.Warn().Err(err).Str("url", article.URL).Msg("extraction unavailable")
		return extraction{}, false
	}

	var ext extraction
	if err := json.Unmarshal([]byte(stripCodeFences(answer)), &ext); err != nil {
		s.logger.Warn().Err(err).Str("url", article.URL).Msg("unparsable extraction answer")
		return extraction{}, false
	}
	return ext, true
}

func (s *Service) resolveLines(ctx context.Context, operator string, descriptions []string) []resolve.ResolvedLine {
	if len(descriptions) == 0 {
		return []resolve.ResolvedLine{}
	}
	lines, err := s.lines.ResolveLines(ctx, operator, descriptions)
	if err != nil {
		s.logger.Error().Err(err).Str("operator", operator).Msg("line resolution failed")
		return []resolve.ResolvedLine{}
	}
	return lines
}

func (s *Service) resolveStops(ctx context.Context, operator string, descriptions []string) []resolve.ResolvedStop {
	if len(descriptions) == 0 {
		return []resolve.ResolvedStop{}
	}
	stops, err := s.stops.ResolveStops(ctx, operator, descriptions)
	if err != nil {
		s.logger.Error().Err(err).Str("operator", operator).Msg("stop resolution failed")
		return []resolve.ResolvedStop{}
	}
	return stops
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
