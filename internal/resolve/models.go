// Package resolve maps free-text line and stop descriptions onto
// canonical GTFS records through a cascade of strategies: fuzzy
// matching, semantic lookup, and (for stops) a geocoding fallback.
package resolve

import (
	"errors"

	"github.com/gtfsdisrupt/gtfsdisrupt/internal/gtfs"
)

// Resolution errors.
var (
	// ErrUnknownStopID indicates the semantic layer returned a stop
	// identifier that does not exist in the canonical dataset.
	ErrUnknownStopID = errors.New("semantic layer returned unknown stop id")

	// ErrUnknownRouteID indicates the semantic layer returned a route
	// identifier that does not exist in the canonical dataset.
	ErrUnknownRouteID = errors.New("semantic layer returned unknown route id")

	// ErrMalformedAnswer indicates the semantic layer returned
	// unparsable structured data where JSON was demanded.
	ErrMalformedAnswer = errors.New("semantic layer returned malformed answer")
)

// NoMatch is the literal sentinel the semantic layer is instructed to
// return when no reasonable candidate exists.
const NoMatch = "none"

// ResolvedLine is the output record for one line description. Fields
// are nil when resolution found nothing canonical.
type ResolvedLine struct {
	RouteShortName *string `json:"route_short_name"`
	RouteID        *string `json:"route_id"`
	RouteLongName  *string `json:"route_long_name"`
}

// LineFromRoute builds a ResolvedLine from a canonical route.
func LineFromRoute(r *gtfs.Route) ResolvedLine {
	shortName := r.ShortName
	id := r.ID
	longName := r.LongName
	return ResolvedLine{
		RouteShortName: &shortName,
		RouteID:        &id,
		RouteLongName:  &longName,
	}
}

// ResolvedStop is the output record for one stop description. A fully
// nil record ({}-shaped) means every strategy came up empty. A record
// with nil identifiers but coordinates set came from geocoding, which
// cannot supply GTFS identifiers.
type ResolvedStop struct {
	StopID   *string  `json:"stop_id"`
	StopCode *string  `json:"stop_code"`
	StopDesc *string  `json:"stop_desc"`
	Lat      *float64 `json:"lat"`
	Long     *float64 `json:"long"`
}

// StopFromRecord builds a ResolvedStop from a canonical stop.
func StopFromRecord(s *gtfs.Stop) ResolvedStop {
	id := s.ID
	code := s.Code
	desc := s.Desc
	lat := s.Lat
	lon := s.Lon
	return ResolvedStop{
		StopID:   &id,
		StopCode: &code,
		StopDesc: &desc,
		Lat:      &lat,
		Long:     &lon,
	}
}
