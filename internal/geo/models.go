// Package geo provides place-search types for the geocoding fallback.
package geo

import (
	"context"
	"errors"
)

// Geocoding errors.
var (
	// ErrNoResults indicates the place search returned nothing.
	ErrNoResults = errors.New("no places found")
	// ErrServiceUnavailable indicates the geocoding provider is down.
	ErrServiceUnavailable = errors.New("geocoding service unavailable")
)

// Coordinate represents a geographic point.
type Coordinate struct {
	Lat float64
	Lon float64
}

// Bias restricts a place search to a circle around a center point.
type Bias struct {
	Center       Coordinate
	RadiusMeters float64
}

// Location is a geocoded place.
type Location struct {
	Coordinate Coordinate
}

// Geocoder defines the interface for place-search providers.
type Geocoder interface {
	// SearchPlace returns the single best location for a free-text
	// query, biased toward the given area. Returns ErrNoResults when
	// nothing matches.
	SearchPlace(ctx context.Context, query string, bias Bias) (*Location, error)
}
