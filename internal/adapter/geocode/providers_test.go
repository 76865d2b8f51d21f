package geocode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/building-lens/internal/domain"
)

const testToken = "test-token"

func testMapbox(baseURL string) *Mapbox {
	return &Mapbox{
		token:      testToken,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
	}
}

func testNominatim(baseURL string) *Nominatim {
	return &Nominatim{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
	}
}

func TestMapbox_ReverseGeocode_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Mapbox takes lon,lat in the path.
		assert.Contains(t, r.URL.Path, "-122.419400,37.774900")
		assert.Equal(t, testToken, r.URL.Query().Get("access_token"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))

		resp := mapboxResponse{
			Features: []mapboxFeature{
				{
					ID:        "address.123",
					Center:    []float64{-122.4194, 37.7749},
					PlaceName: "1 Market St, San Francisco, California",
					Text:      "Market St",
					Relevance: 0.95,
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	result, err := testMapbox(srv.URL).ReverseGeocode(context.Background(), testPoint)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "address.123", result.ExternalID)
	assert.Equal(t, "Market St", result.Name)
	assert.Equal(t, "1 Market St, San Francisco, California", result.Address)
	assert.Equal(t, domain.SourceMapbox, result.Source)
	assert.Equal(t, 37.7749, result.Coordinates.Latitude)
	assert.Equal(t, -122.4194, result.Coordinates.Longitude)
	assert.Equal(t, 0.95, result.Metadata["relevance"])
}

func TestMapbox_ReverseGeocode_NoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(mapboxResponse{}))
	}))
	defer srv.Close()

	result, err := testMapbox(srv.URL).ReverseGeocode(context.Background(), testPoint)
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestMapbox_ReverseGeocode_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message":"Not Authorized"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := testMapbox(srv.URL).ReverseGeocode(context.Background(), testPoint)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestNominatim_ReverseGeocode_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
		assert.Equal(t, "jsonv2", r.URL.Query().Get("format"))
		assert.Equal(t, "37.774900", r.URL.Query().Get("lat"))
		assert.Equal(t, "-122.419400", r.URL.Query().Get("lon"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"), "nominatim usage policy requires a User-Agent")

		resp := nominatimResponse{
			OSMType:     "way",
			OSMID:       24222973,
			Lat:         "37.7790262",
			Lon:         "-122.4199061",
			Name:        "San Francisco City Hall",
			DisplayName: "San Francisco City Hall, 1, Dr Carlton B Goodlett Place, San Francisco, California",
			Category:    "amenity",
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	result, err := testNominatim(srv.URL).ReverseGeocode(context.Background(), testPoint)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "way/24222973", result.ExternalID)
	assert.Equal(t, "San Francisco City Hall", result.Name)
	assert.Equal(t, domain.SourceNominatim, result.Source)
	assert.Equal(t, 37.7790262, result.Coordinates.Latitude)
	assert.Equal(t, -122.4199061, result.Coordinates.Longitude)
}

func TestNominatim_ReverseGeocode_UnableToGeocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// Nominatim reports no-match as 200 with an error field.
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(nominatimResponse{Error: "Unable to geocode"}))
	}))
	defer srv.Close()

	result, err := testNominatim(srv.URL).ReverseGeocode(context.Background(), testPoint)
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestNominatim_ReverseGeocode_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "Bandwidth limit exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := testNominatim(srv.URL).ReverseGeocode(context.Background(), testPoint)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}
