package resolve

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gtfsdisrupt/gtfsdisrupt/internal/vector/qdrant"
)

type fakeChat struct {
	reply  string
	err    error
	system string
	user   string
}

func (f *fakeChat) Complete(_ context.Context, system, user string) (string, error) {
	f.system = system
	f.user = user
	return f.reply, f.err
}

type fakeEmbedder struct {
	err   error
	texts []string
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.texts = texts
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

type fakeSearcher struct {
	hits       []qdrant.ScoredPoint
	err        error
	collection string
	limit      int
}

func (f *fakeSearcher) Search(_ context.Context, collection string, _ []float32, limit int) ([]qdrant.ScoredPoint, error) {
	f.collection = collection
	f.limit = limit
	return f.hits, f.err
}

func newSemantic(chat *fakeChat, searcher *fakeSearcher) *SemanticResolver {
	return NewSemanticResolver(SemanticResolverConfig{
		Chat:     chat,
		Embedder: &fakeEmbedder{},
		Index:    searcher,
		Logger:   zerolog.Nop(),
	})
}

func TestSemanticResolveStop(t *testing.T) {
	chat := &fakeChat{reply: "1842"}
	searcher := &fakeSearcher{hits: []qdrant.ScoredPoint{
		{ID: 1, Score: 0.92, Payload: map[string]interface{}{"text": "Stop 1842: Via Caduti sul Lavoro"}},
		{ID: 2, Score: 0.71, Payload: map[string]interface{}{"text": "Stop 1907: Via Valmarana"}},
	}}
	r := newSemantic(chat, searcher)

	resolved, err := r.ResolveStop(context.Background(), testDataset(), "via caduti")
	require.NoError(t, err)
	require.NotNil(t, resolved)
	require.NotNil(t, resolved.StopID)
	assert.Equal(t, "1842", *resolved.StopID)
	assert.Equal(t, "Via Caduti sul Lavoro", *resolved.StopDesc)

	assert.Equal(t, "gtfs-stops-padova", searcher.collection)
	assert.Equal(t, stopContextLimit, searcher.limit)
	assert.Contains(t, chat.user, "Stop 1842: Via Caduti sul Lavoro")
	assert.Contains(t, chat.user, "via caduti")
}

func TestSemanticResolveStopNoMatch(t *testing.T) {
	for _, reply := range []string{"none", "None", `"null"`, "none."} {
		chat := &fakeChat{reply: reply}
		r := newSemantic(chat, &fakeSearcher{})

		resolved, err := r.ResolveStop(context.Background(), testDataset(), "via inventata")
		require.NoError(t, err, "reply %q", reply)
		assert.Nil(t, resolved, "reply %q", reply)
	}
}

func TestSemanticResolveStopUnknownID(t *testing.T) {
	chat := &fakeChat{reply: "99999"}
	r := newSemantic(chat, &fakeSearcher{})

	_, err := r.ResolveStop(context.Background(), testDataset(), "via caduti")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownStopID)
}

func TestSemanticResolveStopNonNumericAnswer(t *testing.T) {
	chat := &fakeChat{reply: "the best match is stop 1842"}
	r := newSemantic(chat, &fakeSearcher{})

	resolved, err := r.ResolveStop(context.Background(), testDataset(), "via caduti")
	require.NoError(t, err)
	assert.Nil(t, resolved)
}

func TestSemanticResolveStopSearchError(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("connection refused")}
	r := newSemantic(&fakeChat{}, searcher)

	_, err := r.ResolveStop(context.Background(), testDataset(), "via caduti")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownStopID)
}

func TestSemanticResolveLine(t *testing.T) {
	chat := &fakeChat{reply: `{"route_short_name":"E073","route_id":"331","route_long_name":"PADOVA - NOVENTA P. - STRA"}`}
	searcher := &fakeSearcher{hits: []qdrant.ScoredPoint{
		{ID: 1, Score: 0.88, Payload: map[string]interface{}{"text": "Line E073 (331): PADOVA - NOVENTA P. - STRA"}},
	}}
	r := newSemantic(chat, searcher)

	line, err := r.ResolveLine(context.Background(), testDataset(), "linea extraurbana per Stra")
	require.NoError(t, err)
	require.NotNil(t, line)
	assert.Equal(t, "E073", *line.RouteShortName)
	assert.Equal(t, "331", *line.RouteID)
	assert.Equal(t, "PADOVA - NOVENTA P. - STRA", *line.RouteLongName)

	assert.Equal(t, "gtfs-lines-padova", searcher.collection)
	assert.Equal(t, lineContextLimit, searcher.limit)
}

func TestSemanticResolveLinePromptMentionsUrbanHeuristic(t *testing.T) {
	chat := &fakeChat{reply: "none"}
	r := newSemantic(chat, &fakeSearcher{})

	_, err := r.ResolveLine(context.Background(), testDataset(), "linea 5")
	require.NoError(t, err)
	assert.Contains(t, chat.user, "U05")
}

func TestSemanticResolveLineCodeFencedAnswer(t *testing.T) {
	chat := &fakeChat{reply: "```json\n{\"route_short_name\":\"U05\",\"route_id\":\"105\",\"route_long_name\":\"PADOVA CENTRO - GUIZZA\"}\n```"}
	r := newSemantic(chat, &fakeSearcher{})

	line, err := r.ResolveLine(context.Background(), testDataset(), "linea 5")
	require.NoError(t, err)
	require.NotNil(t, line)
	assert.Equal(t, "U05", *line.RouteShortName)
}

func TestSemanticResolveLineBareRouteID(t *testing.T) {
	chat := &fakeChat{reply: "331"}
	r := newSemantic(chat, &fakeSearcher{})

	line, err := r.ResolveLine(context.Background(), testDataset(), "linea per Stra")
	require.NoError(t, err)
	require.NotNil(t, line)
	assert.Equal(t, "E073", *line.RouteShortName)
}

func TestSemanticResolveLineCanonicalFieldsWin(t *testing.T) {
	// The model picked the right route but mangled the names. The feed
	// is authoritative once the id resolves.
	chat := &fakeChat{reply: `{"route_short_name":"E73","route_id":"331","route_long_name":"Padova Stra"}`}
	r := newSemantic(chat, &fakeSearcher{})

	line, err := r.ResolveLine(context.Background(), testDataset(), "linea per Stra")
	require.NoError(t, err)
	require.NotNil(t, line)
	assert.Equal(t, "E073", *line.RouteShortName)
	assert.Equal(t, "PADOVA - NOVENTA P. - STRA", *line.RouteLongName)
}

func TestSemanticResolveLineUnknownRouteID(t *testing.T) {
	chat := &fakeChat{reply: `{"route_short_name":"X99","route_id":"999","route_long_name":"NOWHERE"}`}
	r := newSemantic(chat, &fakeSearcher{})

	_, err := r.ResolveLine(context.Background(), testDataset(), "linea fantasma")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownRouteID)
}

func TestSemanticResolveLineMalformedAnswer(t *testing.T) {
	chat := &fakeChat{reply: "I think it is probably the E073 line."}
	r := newSemantic(chat, &fakeSearcher{})

	_, err := r.ResolveLine(context.Background(), testDataset(), "linea per Stra")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedAnswer)
}

func TestSemanticResolveLineNoMatch(t *testing.T) {
	chat := &fakeChat{reply: "none"}
	r := newSemantic(chat, &fakeSearcher{})

	line, err := r.ResolveLine(context.Background(), testDataset(), "linea fantasma")
	require.NoError(t, err)
	assert.Nil(t, line)
}

func TestSemanticEmbedErrorPropagates(t *testing.T) {
	r := NewSemanticResolver(SemanticResolverConfig{
		Chat:     &fakeChat{},
		Embedder: &fakeEmbedder{err: errors.New("rate limited")},
		Index:    &fakeSearcher{},
		Logger:   zerolog.Nop(),
	})

	_, err := r.ResolveStop(context.Background(), testDataset(), "via caduti")
	require.Error(t, err)
	_, err = r.ResolveLine(context.Background(), testDataset(), "linea 5")
	require.Error(t, err)
}
