package resilience

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trackedBody struct {
	io.Reader
	closed bool
}

func (b *trackedBody) Close() error {
	b.closed = true
	return nil
}

type scriptedTransport struct {
	statuses []int
	bodies   []*trackedBody
}

func (t *scriptedTransport) RoundTrip(*http.Request) (*http.Response, error) {
	status := t.statuses[len(t.bodies)]
	body := &trackedBody{Reader: strings.NewReader("{}")}
	t.bodies = append(t.bodies, body)
	return &http.Response{
		StatusCode: status,
		Body:       body,
		Header:     make(http.Header),
	}, nil
}

func TestClient_ClosesSupersededResponseBodies(t *testing.T) {
	transport := &scriptedTransport{
		statuses: []int{http.StatusServiceUnavailable, http.StatusInternalServerError, http.StatusOK},
	}
	client := NewClient(ClientConfig{
		Name:            "test-bodies",
		MaxRetries:      3,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
	})
	client.httpClient = &http.Client{Transport: transport}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, "http://qdrant.local/collections", http.NoBody)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Each retried 5xx body was closed before being replaced; only the
	// returned body stays open for the caller.
	require.Len(t, transport.bodies, 3)
	assert.True(t, transport.bodies[0].closed)
	assert.True(t, transport.bodies[1].closed)
	assert.False(t, transport.bodies[2].closed)
}
