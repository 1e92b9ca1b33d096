// Package analyze runs disruption notices through relevance
// classification, structured extraction, and entity resolution, and
// assembles the final disruption record.
package analyze

import (
	"time"

	"github.com/gtfsdisrupt/gtfsdisrupt/internal/daterange"
	"github.com/gtfsdisrupt/gtfsdisrupt/internal/resolve"
)

// Article is one scraped disruption notice.
type Article struct {
	// Title is the notice headline.
	Title string `json:"title"`

	// URL is where the notice was published.
	URL string `json:"url"`

	// Body is the notice text.
	Body string `json:"body"`
}

// Record is the analysis output for one article. Every article yields
// exactly one record. TimeIntervals is null when the article was
// classified as not affecting GTFS service, and an empty array when it
// was relevant but no window could be parsed.
type Record struct {
	Title            string                 `json:"title"`
	SourceURL        string                 `json:"source_url"`
	Timestamp        time.Time              `json:"timestamp"`
	AffectedLines    []resolve.ResolvedLine `json:"affected_lines"`
	SuspendedStops   []resolve.ResolvedStop `json:"suspended_stops"`
	ReplacementStops []resolve.ResolvedStop `json:"replacement_stops"`
	TimeIntervals    []daterange.Interval   `json:"time_intervals"`
}

// Relevant reports whether the record describes a service disruption.
func (r Record) Relevant() bool {
	return r.TimeIntervals != nil
}

// notRelevantRecord is the terminal record for articles that do not
// affect service, and the fail-closed fallback when a pipeline stage
// returns something unusable.
func notRelevantRecord(title, sourceURL string, at time.Time) Record {
	return Record{
		Title:            title,
		SourceURL:        sourceURL,
		Timestamp:        at,
		AffectedLines:    []resolve.ResolvedLine{},
		SuspendedStops:   []resolve.ResolvedStop{},
		ReplacementStops: []resolve.ResolvedStop{},
		TimeIntervals:    nil,
	}
}
