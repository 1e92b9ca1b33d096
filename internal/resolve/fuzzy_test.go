package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gtfsdisrupt/gtfsdisrupt/internal/gtfs"
)

func testDataset() *gtfs.Dataset {
	routes := []gtfs.Route{
		{ID: "331", ShortName: "E073", LongName: "PADOVA - NOVENTA P. - STRA"},
		{ID: "105", ShortName: "U05", LongName: "PADOVA CENTRO - GUIZZA"},
	}
	stops := []gtfs.Stop{
		{ID: "1842", Code: "042", Desc: "Via Caduti sul Lavoro", Lat: 45.4135, Lon: 11.8821},
		{ID: "1907", Code: "107", Desc: "Via Valmarana", Lat: 45.4011, Lon: 11.8702},
		{ID: "2210", Code: "210", Desc: "Via Donà Centro", Lat: 45.4190, Lon: 11.8650},
	}
	return gtfs.NewDataset("padova", routes, stops)
}

func TestFuzzyMatchRouteShortName(t *testing.T) {
	m := NewFuzzyMatcher()
	ds := testDataset()

	route, ok := m.MatchRoute(ds, "E073")
	require.True(t, ok)
	assert.Equal(t, "331", route.ID)

	route, ok = m.MatchRoute(ds, "  e073 ")
	require.True(t, ok)
	assert.Equal(t, "331", route.ID)
}

func TestFuzzyMatchRouteLongName(t *testing.T) {
	m := NewFuzzyMatcher()
	ds := testDataset()

	route, ok := m.MatchRoute(ds, "padova - noventa p. - stra")
	require.True(t, ok)
	assert.Equal(t, "E073", route.ShortName)
}

func TestFuzzyMatchRouteSubstring(t *testing.T) {
	m := NewFuzzyMatcher()
	ds := testDataset()

	route, ok := m.MatchRoute(ds, "GUIZZA")
	require.True(t, ok)
	assert.Equal(t, "U05", route.ShortName)
}

func TestFuzzyShortCodeTypoDoesNotMatch(t *testing.T) {
	m := NewFuzzyMatcher()
	ds := testDataset()

	// A one-character difference on a short route code is a different
	// line, not a typo.
	_, ok := m.MatchRoute(ds, "E074")
	assert.False(t, ok)
}

func TestFuzzyLongNameToleratesOneTypo(t *testing.T) {
	m := NewFuzzyMatcher()
	ds := testDataset()

	route, ok := m.MatchRoute(ds, "PADOVA CENTRO - GUIZZZA")
	require.True(t, ok)
	assert.Equal(t, "U05", route.ShortName)
}

func TestFuzzyShortDescriptionNeverMatches(t *testing.T) {
	m := NewFuzzyMatcher()
	ds := testDataset()

	_, ok := m.MatchRoute(ds, "E0")
	assert.False(t, ok)
	_, ok = m.MatchStop(ds, "vi")
	assert.False(t, ok)
}

func TestFuzzyMatchStopIgnoresDiacritics(t *testing.T) {
	m := NewFuzzyMatcher()
	ds := testDataset()

	stop, ok := m.MatchStop(ds, "via dona centro")
	require.True(t, ok)
	assert.Equal(t, "2210", stop.ID)
}

func TestFuzzyMatchStopSubstring(t *testing.T) {
	m := NewFuzzyMatcher()
	ds := testDataset()

	stop, ok := m.MatchStop(ds, "Caduti sul Lavoro")
	require.True(t, ok)
	assert.Equal(t, "1842", stop.ID)
}

func TestFuzzyExactBeatsPartial(t *testing.T) {
	m := NewFuzzyMatcher()
	ds := gtfs.NewDataset("padova", nil, []gtfs.Stop{
		{ID: "1", Desc: "Via Roma Nord"},
		{ID: "2", Desc: "Via Roma"},
	})

	stop, ok := m.MatchStop(ds, "Via Roma")
	require.True(t, ok)
	assert.Equal(t, "2", stop.ID)
}

func TestFuzzyTieBreaksOnFeedOrder(t *testing.T) {
	m := NewFuzzyMatcher()
	ds := gtfs.NewDataset("padova", nil, []gtfs.Stop{
		{ID: "10", Desc: "Piazza Garibaldi"},
		{ID: "20", Desc: "Piazza Garibaldi"},
	})

	stop, ok := m.MatchStop(ds, "Piazza Garibaldi")
	require.True(t, ok)
	assert.Equal(t, "10", stop.ID)
}

func TestFuzzyNoCandidates(t *testing.T) {
	m := NewFuzzyMatcher()
	ds := testDataset()

	_, ok := m.MatchStop(ds, "stazione ferroviaria di mestre")
	assert.False(t, ok)
}
