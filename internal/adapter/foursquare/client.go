// Package foursquare implements the places source against the Foursquare
// Places API v3.
package foursquare

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/building-lens/internal/domain"
	"github.com/couchcryptid/building-lens/internal/observability"
)

// buildingCategories are the Foursquare root category IDs requested from the
// search endpoint. They cover occupiable structures (venues, businesses,
// landmarks) and exclude transient categories like events.
const buildingCategories = "10000,11000,12000,13000,14000,15000,16000,17000,18000,19000"

const maxResults = 50

// Client queries the Foursquare Places API for nearby points of interest.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Foursquare places client.
func NewClient(apiKey string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: "https://api.foursquare.com/v3",
		metrics: metrics,
		logger:  logger,
	}
}

// FindNearby returns point-of-interest results within radiusM meters of the
// coordinate, filtered to building-relevant categories. Provider failures
// are returned as errors; deciding whether they abort the request is the
// caller's concern.
func (c *Client) FindNearby(ctx context.Context, coord domain.Coordinate, radiusM float64) ([]domain.PlaceResult, error) {
	params := url.Values{
		"ll":         {fmt.Sprintf("%.6f,%.6f", coord.Latitude, coord.Longitude)},
		"radius":     {strconv.Itoa(int(radiusM))},
		"categories": {buildingCategories},
		"limit":      {strconv.Itoa(maxResults)},
		"fields":     {"fsq_id,name,location,geocodes,categories,rating,stats"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/places/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.PlacesAPIDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.PlacesRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("places search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.metrics.PlacesRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("foursquare API error: status %d: %s", resp.StatusCode, body)
	}

	var fsqResp searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&fsqResp); err != nil {
		c.metrics.PlacesRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("decode response: %w", err)
	}

	results := make([]domain.PlaceResult, 0, len(fsqResp.Results))
	for _, p := range fsqResp.Results {
		// A place without a main geocode cannot be ranked by geometry.
		if p.Geocodes.Main.Latitude == 0 && p.Geocodes.Main.Longitude == 0 {
			continue
		}
		results = append(results, normalizePlace(p))
	}

	if len(results) == 0 {
		c.metrics.PlacesRequests.WithLabelValues("empty").Inc()
	} else {
		c.metrics.PlacesRequests.WithLabelValues("success").Inc()
	}
	return results, nil
}

// normalizePlace converts a raw Foursquare place into the common candidate
// input shape. Rating and review count land in metadata only when present so
// their absence stays observable to scoring.
func normalizePlace(p place) domain.PlaceResult {
	md := domain.Metadata{}
	if p.Rating > 0 {
		md["rating"] = p.Rating
	}
	if p.Stats.TotalRatings > 0 {
		md["reviewCount"] = p.Stats.TotalRatings
	}
	if len(p.Categories) > 0 {
		tags := make([]string, 0, len(p.Categories))
		for _, cat := range p.Categories {
			tags = append(tags, cat.Name)
		}
		md["categories"] = tags
	}

	return domain.PlaceResult{
		ExternalID: p.FsqID,
		Name:       p.Name,
		Address:    p.Location.FormattedAddress,
		Source:     domain.SourceFoursquare,
		Coordinates: domain.Coordinate{
			Latitude:  p.Geocodes.Main.Latitude,
			Longitude: p.Geocodes.Main.Longitude,
		},
		Metadata: md,
	}
}

// Foursquare API response types.

type searchResponse struct {
	Results []place `json:"results"`
}

type place struct {
	FsqID      string     `json:"fsq_id"`
	Name       string     `json:"name"`
	Location   location   `json:"location"`
	Geocodes   geocodes   `json:"geocodes"`
	Categories []category `json:"categories"`
	Rating     float64    `json:"rating"`
	Stats      stats      `json:"stats"`
}

type location struct {
	FormattedAddress string `json:"formatted_address"`
}

type geocodes struct {
	Main latLng `json:"main"`
}

type latLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type category struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type stats struct {
	TotalRatings int `json:"total_ratings"`
}
