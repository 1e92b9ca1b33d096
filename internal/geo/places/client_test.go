package places_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gtfsdisrupt/gtfsdisrupt/internal/geo"
	"github.com/gtfsdisrupt/gtfsdisrupt/internal/geo/places"
	"github.com/gtfsdisrupt/gtfsdisrupt/internal/resilience"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *places.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return places.NewClient(places.ClientConfig{
		APIKey:     "****",
		BaseURL:    server.URL,
		HTTPClient: resilience.NewClient(resilience.DefaultClientConfig("test")),
		Logger:     zerolog.Nop(),
	})
}

func TestClient_SearchPlace(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/places:searchText", r.URL.Path)
		assert.Equal(t, "****", r.Header.Get("X-Goog-Api-Key"))
		assert.Equal(t, "places.location", r.Header.Get("X-Goog-FieldMask"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Fermata provvisoria in via nona strada", body["textQuery"])
		assert.Equal(t, float64(1), body["pageSize"])

		bias := body["locationBias"].(map[string]interface{})
		circle := bias["circle"].(map[string]interface{})
		assert.Equal(t, 500.0, circle["radius"])
		center := circle["center"].(map[string]interface{})
		assert.Equal(t, 45.4092, center["latitude"])
		assert.Equal(t, 11.8778, center["longitude"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"places": [{"location": {"latitude": 45.4169, "longitude": 11.9522}}]
		}`))
	})

	loc, err := client.SearchPlace(context.Background(), "Fermata provvisoria in via nona strada", geo.Bias{
		Center:       geo.Coordinate{Lat: 45.4092, Lon: 11.8778},
		RadiusMeters: 500,
	})
	require.NoError(t, err)

	assert.Equal(t, 45.4169, loc.Coordinate.Lat)
	assert.Equal(t, 11.9522, loc.Coordinate.Lon)
}

func TestClient_SearchPlace_NoResults(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := client.SearchPlace(context.Background(), "nowhere", geo.Bias{RadiusMeters: 500})
	assert.ErrorIs(t, err, geo.ErrNoResults)
}

func TestClient_SearchPlace_ServiceError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error": {"status": "PERMISSION_DENIED"}}`))
	})

	_, err := client.SearchPlace(context.Background(), "somewhere", geo.Bias{RadiusMeters: 500})
	assert.ErrorIs(t, err, geo.ErrServiceUnavailable)
}
