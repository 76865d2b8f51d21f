// Package geocode implements the reverse-geocoding fallback source as an
// ordered chain of providers: Mapbox first, Nominatim as the open-data
// second leg. Adding a provider is a wiring change in main, not a code
// change here.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/building-lens/internal/domain"
)

// Provider resolves a coordinate to at most one reverse-geocoded result.
// A nil result with a nil error means the provider had no match.
type Provider interface {
	Name() string
	ReverseGeocode(ctx context.Context, coord domain.Coordinate) (*domain.GeocodeResult, error)
}

// Mapbox reverse-geocodes through the Mapbox Geocoding API.
type Mapbox struct {
	token      string
	httpClient *http.Client
	baseURL    string
}

// NewMapbox creates a Mapbox reverse-geocoding provider.
func NewMapbox(token string, timeout time.Duration) *Mapbox {
	return &Mapbox{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: "https://api.mapbox.com/geocoding/v5/mapbox.places",
	}
}

func (m *Mapbox) Name() string { return string(domain.SourceMapbox) }

// ReverseGeocode converts a coordinate to the best-guess address or building
// at that point.
func (m *Mapbox) ReverseGeocode(ctx context.Context, coord domain.Coordinate) (*domain.GeocodeResult, error) {
	// Mapbox uses lon,lat order.
	pos := fmt.Sprintf("%.6f,%.6f", coord.Longitude, coord.Latitude)
	params := url.Values{
		"access_token": {m.token},
		"limit":        {"1"},
		"types":        {"address,poi"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s.json?%s", m.baseURL, pos, params.Encode()), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reverse geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("mapbox API error: status %d: %s", resp.StatusCode, body)
	}

	var mapboxResp mapboxResponse
	if err := json.NewDecoder(resp.Body).Decode(&mapboxResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(mapboxResp.Features) == 0 {
		return nil, nil
	}

	f := mapboxResp.Features[0]
	result := &domain.GeocodeResult{
		ExternalID: f.ID,
		Name:       f.Text,
		Address:    f.PlaceName,
		Source:     domain.SourceMapbox,
		Metadata:   domain.Metadata{"relevance": f.Relevance},
	}
	if len(f.Center) == 2 {
		result.Coordinates = domain.Coordinate{Latitude: f.Center[1], Longitude: f.Center[0]}
	} else {
		result.Coordinates = coord
	}
	return result, nil
}

// Mapbox API response types.

type mapboxResponse struct {
	Features []mapboxFeature `json:"features"`
}

type mapboxFeature struct {
	ID        string    `json:"id"`
	Center    []float64 `json:"center"` // [lon, lat]
	PlaceName string    `json:"place_name"`
	Text      string    `json:"text"`
	Relevance float64   `json:"relevance"`
}
