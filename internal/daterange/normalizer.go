// Package daterange turns the free-text date expressions extracted
// from disruption notices into concrete timestamps.
package daterange

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/rs/zerolog"
)

// RawInterval is one disruption window as extracted from a notice,
// endpoints still in whatever form the notice used. Either endpoint
// may be empty for an open-ended window.
type RawInterval struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Interval is a normalized disruption window. A nil endpoint means
// the notice left that side open.
type Interval struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// NormalizerConfig holds configuration for the normalizer.
type NormalizerConfig struct {
	// Location is the operator's timezone, used to anchor expressions
	// without an explicit zone.
	Location *time.Location

	// Now supplies the reference time for relative expressions like
	// "tomorrow". Defaults to time.Now.
	Now func() time.Time

	// Logger for parse activity.
	Logger zerolog.Logger
}

// Normalizer parses date expressions, first as structured dates and
// then as natural language relative to a reference time.
type Normalizer struct {
	location *time.Location
	now      func() time.Time
	logger   zerolog.Logger
	casual   *when.Parser
}

// NewNormalizer creates a normalizer.
func NewNormalizer(cfg NormalizerConfig) *Normalizer {
	location := cfg.Location
	if location == nil {
		location = time.UTC
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	casual := when.New(nil)
	casual.Add(en.All...)
	casual.Add(common.All...)

	return &Normalizer{
		location: location,
		now:      now,
		logger:   cfg.Logger,
		casual:   casual,
	}
}

// Normalize converts raw intervals to concrete ones, preserving
// order. Every input range produces exactly one output interval;
// an endpoint that fails to parse is absent, never a reason to drop
// the whole window.
func (n *Normalizer) Normalize(raws []RawInterval) []Interval {
	out := make([]Interval, 0, len(raws))
	for _, raw := range raws {
		start := n.parse(raw.Start)
		end := n.parse(raw.End)
		if start == nil && end == nil && (raw.Start != "" || raw.End != "") {
			n.logger.Debug().
				Str("start", raw.Start).
				Str("end", raw.End).
				Msg("interval with no parseable endpoint")
		}
		out = append(out, Interval{Start: start, End: end})
	}
	return out
}

func (n *Normalizer) parse(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	if t, err := dateparse.ParseIn(s, n.location); err == nil {
		return &t
	}

	// Structured parsing failed; try it as a casual expression
	// anchored to the reference time.
	result, err := n.casual.Parse(s, n.now().In(n.location))
	if err == nil && result != nil {
		t := result.Time
		return &t
	}

	n.logger.Debug().Str("expression", s).Msg("unparseable date expression")
	return nil
}
