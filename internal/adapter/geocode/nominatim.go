package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/building-lens/internal/domain"
)

// userAgent identifies the service to Nominatim, whose usage policy
// requires a descriptive User-Agent on every request.
const userAgent = "building-lens/1.0"

// Nominatim reverse-geocodes through the OpenStreetMap Nominatim API. It
// needs no API key and serves as the lower-reliability second leg of the
// chain.
type Nominatim struct {
	httpClient *http.Client
	baseURL    string
}

// NewNominatim creates a Nominatim provider against the given base URL
// (typically https://nominatim.openstreetmap.org).
func NewNominatim(baseURL string, timeout time.Duration) *Nominatim {
	return &Nominatim{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
	}
}

func (n *Nominatim) Name() string { return string(domain.SourceNominatim) }

// ReverseGeocode converts a coordinate to the nearest addressable feature.
func (n *Nominatim) ReverseGeocode(ctx context.Context, coord domain.Coordinate) (*domain.GeocodeResult, error) {
	params := url.Values{
		"format":         {"jsonv2"},
		"lat":            {fmt.Sprintf("%.6f", coord.Latitude)},
		"lon":            {fmt.Sprintf("%.6f", coord.Longitude)},
		"zoom":           {"18"}, // building-level detail
		"addressdetails": {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/reverse?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reverse geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("nominatim API error: status %d: %s", resp.StatusCode, body)
	}

	var nomResp nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&nomResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	// Nominatim reports "unable to geocode" as a 200 with an error field.
	if nomResp.Error != "" || nomResp.DisplayName == "" {
		return nil, nil
	}

	result := &domain.GeocodeResult{
		ExternalID:  nominatimID(nomResp),
		Name:        nomResp.Name,
		Address:     nomResp.DisplayName,
		Coordinates: coord,
		Source:      domain.SourceNominatim,
		Metadata:    domain.Metadata{"osmType": nomResp.OSMType, "category": nomResp.Category},
	}
	if lat, err := strconv.ParseFloat(nomResp.Lat, 64); err == nil {
		if lon, err := strconv.ParseFloat(nomResp.Lon, 64); err == nil {
			result.Coordinates = domain.Coordinate{Latitude: lat, Longitude: lon}
		}
	}
	return result, nil
}

func nominatimID(r nominatimResponse) string {
	if r.OSMType == "" || r.OSMID == 0 {
		return ""
	}
	return fmt.Sprintf("%s/%d", r.OSMType, r.OSMID)
}

// Nominatim API response types. Lat/lon come back as strings.

type nominatimResponse struct {
	Error       string `json:"error"`
	OSMType     string `json:"osm_type"`
	OSMID       int64  `json:"osm_id"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Category    string `json:"category"`
}
