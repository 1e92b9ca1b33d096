package resolve

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/gtfsdisrupt/gtfsdisrupt/internal/gtfs"
)

const (
	// minMatchLength is the shortest normalized description that can
	// produce a fuzzy match. Anything shorter matches half the feed.
	minMatchLength = 3

	// typoToleranceLength is the shortest string on which a single
	// character of edit distance is accepted. Route short codes stay
	// below it, so "E073" never matches "E074".
	typoToleranceLength = 6
)

// FuzzyMatcher scores free-text descriptions against canonical GTFS
// records. It is deterministic and close to exact: a candidate
// qualifies on normalized equality, a single typo in a long name, or
// substring containment in either direction.
type FuzzyMatcher struct{}

// NewFuzzyMatcher returns a ready matcher.
func NewFuzzyMatcher() *FuzzyMatcher {
	return &FuzzyMatcher{}
}

// MatchRoute finds the best route for a line description, scoring
// against both the short and the long name. The boolean reports
// whether any candidate qualified.
func (m *FuzzyMatcher) MatchRoute(ds *gtfs.Dataset, description string) (*gtfs.Route, bool) {
	idx, ok := bestMatch(description, len(ds.Routes), func(i int) []string {
		return []string{ds.Routes[i].ShortName, ds.Routes[i].LongName}
	})
	if !ok {
		return nil, false
	}
	return &ds.Routes[idx], true
}

// MatchStop finds the best stop for a stop description, scoring
// against the stop description field.
func (m *FuzzyMatcher) MatchStop(ds *gtfs.Dataset, description string) (*gtfs.Stop, bool) {
	idx, ok := bestMatch(description, len(ds.Stops), func(i int) []string {
		return []string{ds.Stops[i].Desc}
	})
	if !ok {
		return nil, false
	}
	return &ds.Stops[idx], true
}

// bestMatch scans n candidates and returns the index of the highest
// scoring one. Ties break toward the lowest index, so candidate order
// in the feed is stable across runs.
func bestMatch(description string, n int, keys func(i int) []string) (int, bool) {
	needle := normalizeText(description)
	if len([]rune(needle)) < minMatchLength {
		return 0, false
	}

	bestIdx := -1
	bestScore := 0.0
	for i := 0; i < n; i++ {
		for _, key := range keys(i) {
			s := matchScore(needle, normalizeText(key))
			if s > bestScore {
				bestScore = s
				bestIdx = i
			}
		}
	}
	if bestIdx < 0 {
		return 0, false
	}
	return bestIdx, true
}

// matchScore rates a normalized description against one normalized
// candidate key. Zero means no match.
func matchScore(needle, key string) float64 {
	if key == "" {
		return 0
	}
	if needle == key {
		return 1.0
	}

	nr := []rune(needle)
	kr := []rune(key)
	if len(nr) >= typoToleranceLength && len(kr) >= typoToleranceLength &&
		withinDistanceOne(nr, kr) {
		return 0.9
	}

	shorter, longer := needle, key
	if len(kr) < len(nr) {
		shorter, longer = key, needle
	}
	if len([]rune(shorter)) >= minMatchLength && strings.Contains(longer, shorter) {
		// Coverage of the longer string, capped below the typo tier so
		// a near-exact hit always beats a partial one.
		return 0.85 * float64(len([]rune(shorter))) / float64(len([]rune(longer)))
	}
	return 0
}

// withinDistanceOne reports whether a and b are at Levenshtein
// distance one or less.
func withinDistanceOne(a, b []rune) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	if len(b)-len(a) > 1 {
		return false
	}

	edits := 0
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i] == b[j] {
			i++
			j++
			continue
		}
		edits++
		if edits > 1 {
			return false
		}
		if len(a) == len(b) {
			i++ // substitution
		}
		j++ // insertion into a
	}
	return edits+(len(b)-j) <= 1
}

// normalizeText lowercases, trims, and strips diacritics so "Donà"
// and "dona" compare equal.
func normalizeText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}
