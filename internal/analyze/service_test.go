package analyze

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gtfsdisrupt/gtfsdisrupt/internal/daterange"
	"github.com/gtfsdisrupt/gtfsdisrupt/internal/gtfs"
	"github.com/gtfsdisrupt/gtfsdisrupt/internal/resolve"
)

type scriptedChat struct {
	replies []string
	errs    []error
	calls   int
	users   []string
}

func (c *scriptedChat) Complete(_ context.Context, _, user string) (string, error) {
	i := c.calls
	c.calls++
	c.users = append(c.users, user)
	if i < len(c.errs) && c.errs[i] != nil {
		return "", c.errs[i]
	}
	if i < len(c.replies) {
		return c.replies[i], nil
	}
	return "", errors.New("unexpected completion call")
}

var testNow = time.Date(2025, 7, 4, 9, 0, 0, 0, time.UTC)

func testArticle() Article {
	return Article{
		Title: "Modifiche al servizio linea E073",
		URL:   "https://example.test/avvisi/123",
		Body:  "La linea E073 è sospesa tra Via Caduti sul Lavoro e Via Valmarana dalle 18:30 del 5 luglio.",
	}
}

// newTestService wires a Service over a real resolver running fuzzy
// matching against an on-disk dataset, with the chat scripted.
func newTestService(t *testing.T, chat ChatClient) *Service {
	t.Helper()

	dir := t.TempDir()
	operatorDir := filepath.Join(dir, "padova")
	require.NoError(t, os.MkdirAll(operatorDir, 0o755))

	routes, err := json.Marshal([]gtfs.Route{
		{ID: "331", ShortName: "E073", LongName: "PADOVA - NOVENTA P. - STRA"},
		{ID: "105", ShortName: "U05", LongName: "PADOVA CENTRO - GUIZZA"},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(operatorDir, "routes.json"), routes, 0o644))

	stops, err := json.Marshal([]gtfs.Stop{
		{ID: "1842", Code: "042", Desc: "Via Caduti sul Lavoro", Lat: 45.4135, Lon: 11.8821},
		{ID: "1907", Code: "107", Desc: "Via Valmarana", Lat: 45.4011, Lon: 11.8702},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(operatorDir, "stops.json"), stops, 0o644))

	resolver, err := resolve.NewResolver(resolve.ResolverConfig{
		Datasets: gtfs.NewCache(dir, zerolog.Nop()),
		Fuzzy:    resolve.NewFuzzyMatcher(),
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	return NewService(ServiceConfig{
		Chat:  chat,
		Lines: resolver,
		Stops: resolver,
		Dates: daterange.NewNormalizer(daterange.NormalizerConfig{
			Location: time.UTC,
			Now:      func() time.Time { return testNow },
			Logger:   zerolog.Nop(),
		}),
		Now:    func() time.Time { return testNow },
		Logger: zerolog.Nop(),
	})
}

func TestAnalyzeRelevantArticle(t *testing.T) {
	chat := &scriptedChat{replies: []string{
		`{"title":"Linea E073 sospesa","is_necessary":"1"}`,
		`{"affected_lines":["E073"],
		  "suspended_stops":["Via Caduti sul Lavoro","Via Valmarana"],
		  "replacement_stops":[],
		  "time_intervals":[{"start":"2025-07-05 18:30:00","end":"2025-07-06 02:00:00"}]}`,
	}}
	s := newTestService(t, chat)

	record := s.Analyze(context.Background(), "padova", testArticle())

	assert.True(t, record.Relevant())
	assert.Equal(t, "Linea E073 sospesa", record.Title)
	assert.Equal(t, "https://example.test/avvisi/123", record.SourceURL)
	assert.Equal(t, testNow, record.Timestamp)

	require.Len(t, record.AffectedLines, 1)
	assert.Equal(t, "331", *record.AffectedLines[0].RouteID)
	assert.Equal(t, "E073", *record.AffectedLines[0].RouteShortName)

	require.Len(t, record.SuspendedStops, 2)
	assert.Equal(t, "1842", *record.SuspendedStops[0].StopID)
	assert.Equal(t, "1907", *record.SuspendedStops[1].StopID)
	assert.Empty(t, record.ReplacementStops)

	require.Len(t, record.TimeIntervals, 1)
	require.NotNil(t, record.TimeIntervals[0].Start)
	assert.Equal(t, time.Date(2025, 7, 5, 18, 30, 0, 0, time.UTC), record.TimeIntervals[0].Start.UTC())
	require.NotNil(t, record.TimeIntervals[0].End)

	// Classification then extraction, nothing more.
	assert.Equal(t, 2, chat.calls)
}

func TestAnalyzeNotRelevantArticle(t *testing.T) {
	chat := &scriptedChat{replies: []string{
		`{"title":"Auguri di buone feste","is_necessary":"0"}`,
	}}
	s := newTestService(t, chat)

	record := s.Analyze(context.Background(), "padova", testArticle())

	assert.False(t, record.Relevant())
	assert.Equal(t, "Auguri di buone feste", record.Title)
	assert.Nil(t, record.TimeIntervals)
	assert.Empty(t, record.AffectedLines)
	assert.Equal(t, 1, chat.calls)
}

func TestAnalyzeZeroAnywhereMeansNotRelevant(t *testing.T) {
	chat := &scriptedChat{replies: []string{
		`{"title":"Avviso","is_necessary":"probably 0"}`,
	}}
	s := newTestService(t, chat)

	record := s.Analyze(context.Background(), "padova", testArticle())
	assert.False(t, record.Relevant())
}

func TestAnalyzeNumericVerdict(t *testing.T) {
	chat := &scriptedChat{replies: []string{
		`{"title":"Avviso","is_necessary":0}`,
	}}
	s := newTestService(t, chat)

	record := s.Analyze(context.Background(), "padova", testArticle())
	assert.False(t, record.Relevant())
}

func TestAnalyzeClassificationErrorFailsClosed(t *testing.T) {
	chat := &scriptedChat{errs: []error{errors.New("upstream timeout")}}
	s := newTestService(t, chat)

	record := s.Analyze(context.Background(), "padova", testArticle())

	assert.False(t, record.Relevant())
	// The article's own title survives when classification never ran.
	assert.Equal(t, "Modifiche al servizio linea E073", record.Title)
}

func TestAnalyzeUnparsableClassificationFailsClosed(t *testing.T) {
	chat := &scriptedChat{replies: []string{"this announcement looks important"}}
	s := newTestService(t, chat)

	record := s.Analyze(context.Background(), "padova", testArticle())

	assert.False(t, record.Relevant())
	assert.Equal(t, "Modifiche al servizio linea E073", record.Title)
}

func TestAnalyzeUnparsableExtractionFailsClosed(t *testing.T) {
	chat := &scriptedChat{replies: []string{
		`{"title":"Linea E073 sospesa","is_necessary":"1"}`,
		"the E073 line is suspended between two stops",
	}}
	s := newTestService(t, chat)

	record := s.Analyze(context.Background(), "padova", testArticle())

	assert.False(t, record.Relevant())
	assert.Equal(t, "Linea E073 sospesa", record.Title)
}

func TestAnalyzeCodeFencedAnswers(t *testing.T) {
	chat := &scriptedChat{replies: []string{
		"```json\n{\"title\":\"Linea E073 sospesa\",\"is_necessary\":\"1\"}\n```",
		"```json\n{\"affected_lines\":[\"E073\"],\"suspended_stops\":[],\"replacement_stops\":[],\"time_intervals\":[]}\n```",
	}}
	s := newTestService(t, chat)

	record := s.Analyze(context.Background(), "padova", testArticle())

	assert.True(t, record.Relevant())
	require.Len(t, record.AffectedLines, 1)
	assert.Equal(t, "E073", *record.AffectedLines[0].RouteShortName)
}

func TestAnalyzeRelevantWithUnparseableWindow(t *testing.T) {
	chat := &scriptedChat{replies: []string{
		`{"title":"Linea E073 sospesa","is_necessary":"1"}`,
		`{"affected_lines":["E073"],"suspended_stops":[],"replacement_stops":[],
		  "time_intervals":[{"start":"fino a nuovo avviso","end":""}]}`,
	}}
	s := newTestService(t, chat)

	record := s.Analyze(context.Background(), "padova", testArticle())

	// An extracted window survives even when neither endpoint parses;
	// it just comes out with both bounds open.
	assert.True(t, record.Relevant())
	require.Len(t, record.TimeIntervals, 1)
	assert.Nil(t, record.TimeIntervals[0].Start)
	assert.Nil(t, record.TimeIntervals[0].End)
}

func TestAnalyzeRelevantWithoutWindows(t *testing.T) {
	chat := &scriptedChat{replies: []string{
		`{"title":"Linea E073 sospesa","is_necessary":"1"}`,
		`{"affected_lines":["E073"],"suspended_stops":[],"replacement_stops":[],
		  "time_intervals":[]}`,
	}}
	s := newTestService(t, chat)

	record := s.Analyze(context.Background(), "padova", testArticle())

	// Relevant with no time information is an empty array, not null.
	assert.True(t, record.Relevant())
	assert.NotNil(t, record.TimeIntervals)
	assert.Empty(t, record.TimeIntervals)

	data, err := json.Marshal(record)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"time_intervals":[]`)
}

func TestAnalyzeNotRelevantMarshalsNullIntervals(t *testing.T) {
	chat := &scriptedChat{replies: []string{
		`{"title":"Avviso","is_necessary":"0"}`,
	}}
	s := newTestService(t, chat)

	record := s.Analyze(context.Background(), "padova", testArticle())

	data, err := json.Marshal(record)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"time_intervals":null`)
	assert.Contains(t, string(data), `"affected_lines":[]`)
}

func TestAnalyzeExtractionPromptCarriesReferenceDate(t *testing.T) {
	chat := &scriptedChat{replies: []string{
		`{"title":"Avviso","is_necessary":"1"}`,
		`{"affected_lines":[],"suspended_stops":[],"replacement_stops":[],"time_intervals":[]}`,
	}}
	s := newTestService(t, chat)

	s.Analyze(context.Background(), "padova", testArticle())

	require.Len(t, chat.users, 2)
	assert.Contains(t, chat.users[1], "Friday, 4 July 2025")
}

func TestAnalyzeResolutionFailureStillYieldsRecord(t *testing.T) {
	chat := &scriptedChat{replies: []string{
		`{"title":"Avviso","is_necessary":"1"}`,
		`{"affected_lines":["E073"],"suspended_stops":["Via Valmarana"],"replacement_stops":[],"time_intervals":[]}`,
	}}
	s := newTestService(t, chat)

	// The operator has no dataset, so resolution errors out; the
	// record still comes back with empty entity arrays.
	record := s.Analyze(context.Background(), "venezia", testArticle())

	assert.True(t, record.Relevant())
	assert.Empty(t, record.AffectedLines)
	assert.Empty(t, record.SuspendedStops)
}
