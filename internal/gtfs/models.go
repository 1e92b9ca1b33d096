// Package gtfs loads canonical GTFS reference data for a transit
// operator into in-memory lookup structures.
package gtfs

import "errors"

// GTFS errors.
var (
	// ErrDatasetNotFound indicates no dataset exists for the operator.
	ErrDatasetNotFound = errors.New("gtfs dataset not found for operator")
)

// Route is a canonical GTFS route record. Immutable once loaded.
type Route struct {
	// ID uniquely identifies the route within the operator's feed.
	ID string `json:"route_id"`

	// ShortName is the rider-facing line code (e.g. "E073", "U05").
	ShortName string `json:"route_short_name"`

	// LongName describes the route (e.g. "PADOVA - NOVENTA P. - STRA").
	LongName string `json:"route_long_name"`
}

// Stop is a canonical GTFS stop record. Immutable once loaded.
type Stop struct {
	// ID uniquely identifies the stop within the operator's feed.
	ID string `json:"stop_id"`

	// Code is the rider-facing stop code.
	Code string `json:"stop_code"`

	// Desc is the stop description used for matching.
	Desc string `json:"stop_desc"`

	// Lat and Lon are the stop coordinates.
	Lat float64 `json:"stop_lat"`
	Lon float64 `json:"stop_lon"`
}

// Dataset is one operator's canonical routes and stops. Resolution only
// ever reads a Dataset; nothing mutates it after loading, so it is safe
// to share across goroutines.
type Dataset struct {
	Operator string
	Routes   []Route
	Stops    []Stop

	routesByID map[string]*Route
	stopsByID  map[string]*Stop
}

// NewDataset builds an in-memory dataset with lookup indexes for data
// that does not come from disk.
func NewDataset(operator string, routes []Route, stops []Stop) *Dataset {
	ds := &Dataset{Operator: operator, Routes: routes, Stops: stops}
	ds.buildIndexes()
	return ds
}

// RouteByID returns the route with the given route_id, or nil.
func (d *Dataset) RouteByID(id string) *Route {
	return d.routesByID[id]
}

// StopByID returns the stop with the given stop_id, or nil.
func (d *Dataset) StopByID(id string) *Stop {
	return d.stopsByID[id]
}

func (d *Dataset) buildIndexes() {
	d.routesByID = make(map[string]*Route, len(d.Routes))
	for i := range d.Routes {
		d.routesByID[d.Routes[i].ID] = &d.Routes[i]
	}
	d.stopsByID = make(map[string]*Stop, len(d.Stops))
	for i := range d.Stops {
		d.stopsByID[d.Stops[i].ID] = &d.Stops[i]
	}
}
