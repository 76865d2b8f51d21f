package domain

import (
	"fmt"
	"math"
	"time"
)

// Coordinate is a WGS84 latitude/longitude pair. It is a value type with no
// identity; latitude is in [-90,90] and longitude in [-180,180].
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Source identifies the provider a candidate originated from. The scoring
// engine maps each source to a reliability weight.
type Source string

const (
	SourceFoursquare Source = "foursquare"
	SourceMapbox     Source = "mapbox"
	SourceNominatim  Source = "nominatim"
	SourceCache      Source = "cache"
)

// Metadata is an open key-value bag attached to candidates and building
// records: rating, review count, category tags, and whatever else a provider
// returns. Scoring reads only the presence of "rating"; everything else is
// passed through opaquely.
type Metadata map[string]any

// Candidate is one possible building match. Distance, bearing, bearingDiff,
// and confidence are computed by the identification pipeline, never supplied
// by a source.
type Candidate struct {
	ExternalID  string     `json:"externalId,omitempty"`
	Name        string     `json:"name,omitempty"`
	Address     string     `json:"address"`
	Coordinates Coordinate `json:"coordinates"`
	Distance    float64    `json:"distance"`
	Bearing     float64    `json:"bearing"`
	BearingDiff *float64   `json:"bearingDiff,omitempty"`
	Confidence  float64    `json:"confidence"`
	Source      Source     `json:"source"`
	Metadata    Metadata   `json:"metadata,omitempty"`
}

// HasName reports whether the candidate carries a non-empty name.
func (c *Candidate) HasName() bool { return c.Name != "" }

// HasRating reports whether the candidate's metadata carries a rating key.
func (c *Candidate) HasRating() bool {
	if c.Metadata == nil {
		return false
	}
	_, ok := c.Metadata["rating"]
	return ok
}

// PlaceResult is a normalized point-of-interest returned by a places
// provider.
type PlaceResult struct {
	ExternalID  string
	Name        string
	Address     string
	Coordinates Coordinate
	Source      Source
	Metadata    Metadata
}

// GeocodeResult is a normalized reverse-geocoding result: the best-guess
// address or building at an exact point.
type GeocodeResult struct {
	ExternalID  string
	Name        string
	Address     string
	Coordinates Coordinate
	Source      Source
	Metadata    Metadata
}

// BuildingRecord is the durable representation of a previously seen
// building, keyed by (ExternalID, Source).
type BuildingRecord struct {
	ID         int64
	ExternalID string
	Source     Source
	Name       string
	Address    string
	Coordinate Coordinate
	Metadata   Metadata
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ExpiresAt  *time.Time
}

// Expired reports whether the record has an expiry in the past.
func (r *BuildingRecord) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && r.ExpiresAt.Before(now)
}

// Candidate converts a stored building record into a pipeline candidate with
// placeholder geometry and confidence, to be filled in by enrichment.
func (r *BuildingRecord) Candidate() Candidate {
	return Candidate{
		ExternalID:  r.ExternalID,
		Name:        r.Name,
		Address:     r.Address,
		Coordinates: r.Coordinate,
		Source:      SourceCache,
		Metadata:    r.Metadata,
	}
}

// Result is the outcome of one identification request: candidates sorted by
// descending confidence plus the effective query parameters.
type Result struct {
	Candidates   []Candidate `json:"candidates"`
	SearchRadius float64     `json:"searchRadius"`
	SearchCenter Coordinate  `json:"searchCenter"`
	Heading      *float64    `json:"heading,omitempty"`
	Timestamp    time.Time   `json:"timestamp"`
}

// RoundCoordinate truncates a coordinate to the given number of decimal
// places. Five places is roughly one meter of precision, six roughly 0.1 m;
// cache keys round so that near-duplicate queries share entries.
func RoundCoordinate(c Coordinate, places int) Coordinate {
	f := math.Pow(10, float64(places))
	return Coordinate{
		Latitude:  math.Round(c.Latitude*f) / f,
		Longitude: math.Round(c.Longitude*f) / f,
	}
}

// ResultCacheKey builds the identify-result cache key from the query point
// (rounded to 5 decimals), the heading (rounded to the nearest whole degree,
// "-" when absent), and the search radius in whole meters.
func ResultCacheKey(center Coordinate, heading *float64, radiusM float64) string {
	r := RoundCoordinate(center, 5)
	h := "-"
	if heading != nil {
		h = fmt.Sprintf("%d", int(math.Round(*heading)))
	}
	return fmt.Sprintf("%.5f,%.5f|h=%s|r=%d", r.Latitude, r.Longitude, h, int(math.Round(radiusM)))
}
