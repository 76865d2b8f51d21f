package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRoundCoordinate(t *testing.T) {
	c := Coordinate{Latitude: 37.77491234, Longitude: -122.41945678}

	r5 := RoundCoordinate(c, 5)
	assert.Equal(t, 37.77491, r5.Latitude)
	assert.Equal(t, -122.41946, r5.Longitude)

	r6 := RoundCoordinate(c, 6)
	assert.Equal(t, 37.774912, r6.Latitude)
	assert.Equal(t, -122.419457, r6.Longitude)
}

func TestResultCacheKey(t *testing.T) {
	c := Coordinate{Latitude: 37.7749, Longitude: -122.4194}
	h := 269.6

	withHeading := ResultCacheKey(c, &h, 100)
	assert.Equal(t, "37.77490,-122.41940|h=270|r=100", withHeading)

	withoutHeading := ResultCacheKey(c, nil, 100)
	assert.Equal(t, "37.77490,-122.41940|h=-|r=100", withoutHeading)

	assert.NotEqual(t, withHeading, withoutHeading)
}

func TestResultCacheKey_NearDuplicatesCollide(t *testing.T) {
	a := Coordinate{Latitude: 37.774901, Longitude: -122.419402}
	b := Coordinate{Latitude: 37.774899, Longitude: -122.419398}
	assert.Equal(t, ResultCacheKey(a, nil, 100), ResultCacheKey(b, nil, 100))
}

func TestCandidate_HasRating(t *testing.T) {
	assert.False(t, (&Candidate{}).HasRating())
	assert.False(t, (&Candidate{Metadata: Metadata{"reviewCount": 3}}).HasRating())
	assert.True(t, (&Candidate{Metadata: Metadata{"rating": 8.4}}).HasRating())
}

func TestBuildingRecord_Candidate(t *testing.T) {
	rec := BuildingRecord{
		ID:         7,
		ExternalID: "abc123",
		Source:     SourceFoursquare,
		Name:       "Ferry Building",
		Address:    "1 Ferry Building, San Francisco",
		Coordinate: Coordinate{Latitude: 37.7955, Longitude: -122.3937},
		Metadata:   Metadata{"rating": 9.4},
	}

	c := rec.Candidate()
	assert.Equal(t, SourceCache, c.Source, "stored records surface as cache candidates")
	assert.Equal(t, rec.ExternalID, c.ExternalID)
	assert.Equal(t, rec.Coordinate, c.Coordinates)
	assert.Zero(t, c.Distance, "geometry is a placeholder until enrichment")
	assert.Zero(t, c.Confidence)
	assert.Nil(t, c.BearingDiff)
}

func TestBuildingRecord_Expired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.False(t, (&BuildingRecord{}).Expired(now), "no expiry never expires")
	assert.False(t, (&BuildingRecord{ExpiresAt: &future}).Expired(now))
	assert.True(t, (&BuildingRecord{ExpiresAt: &past}).Expired(now))
}
