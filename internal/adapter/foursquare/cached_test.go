package foursquare

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/building-lens/internal/domain"
	"github.com/couchcryptid/building-lens/internal/observability"
)

type countingSource struct {
	calls   int
	results []domain.PlaceResult
	err     error
}

func (m *countingSource) FindNearby(_ context.Context, _ domain.Coordinate, _ float64) ([]domain.PlaceResult, error) {
	m.calls++
	return m.results, m.err
}

func onePlace() []domain.PlaceResult {
	return []domain.PlaceResult{{
		ExternalID:  "fsq1",
		Name:        "Ferry Building",
		Coordinates: domain.Coordinate{Latitude: 37.7955, Longitude: -122.3937},
		Source:      domain.SourceFoursquare,
	}}
}

func TestCachedSource_Hit(t *testing.T) {
	inner := &countingSource{results: onePlace()}
	cached := NewCachedSource(inner, 10, time.Hour, observability.NewMetricsForTesting())

	r1, err := cached.FindNearby(context.Background(), ferryBuilding, 100)
	require.NoError(t, err)
	require.Len(t, r1, 1)

	r2, err := cached.FindNearby(context.Background(), ferryBuilding, 100)
	require.NoError(t, err)
	assert.Equal(t, r1, r2)

	assert.Equal(t, 1, inner.calls, "should only call inner once")
}

func TestCachedSource_NearDuplicateCoordinatesShareEntry(t *testing.T) {
	inner := &countingSource{results: onePlace()}
	cached := NewCachedSource(inner, 10, time.Hour, observability.NewMetricsForTesting())

	a := domain.Coordinate{Latitude: 37.795501, Longitude: -122.393702}
	b := domain.Coordinate{Latitude: 37.795499, Longitude: -122.393698}

	_, _ = cached.FindNearby(context.Background(), a, 100)
	_, _ = cached.FindNearby(context.Background(), b, 100)

	assert.Equal(t, 1, inner.calls, "keys round to 5 decimal places")
}

func TestCachedSource_RadiusRoundsToWholeMeters(t *testing.T) {
	inner := &countingSource{results: onePlace()}
	cached := NewCachedSource(inner, 10, time.Hour, observability.NewMetricsForTesting())

	_, _ = cached.FindNearby(context.Background(), ferryBuilding, 100.6)
	_, _ = cached.FindNearby(context.Background(), ferryBuilding, 101)

	assert.Equal(t, 1, inner.calls, "100.6 m and 101 m round to the same key")
}

func TestCachedSource_DifferentRadiusMisses(t *testing.T) {
	inner := &countingSource{results: onePlace()}
	cached := NewCachedSource(inner, 10, time.Hour, observability.NewMetricsForTesting())

	_, _ = cached.FindNearby(context.Background(), ferryBuilding, 100)
	_, _ = cached.FindNearby(context.Background(), ferryBuilding, 250)

	assert.Equal(t, 2, inner.calls)
}

func TestCachedSource_ErrorsPassThroughUncached(t *testing.T) {
	inner := &countingSource{err: errors.New("quota exceeded")}
	cached := NewCachedSource(inner, 10, time.Hour, observability.NewMetricsForTesting())

	_, err := cached.FindNearby(context.Background(), ferryBuilding, 100)
	require.Error(t, err)

	_, err = cached.FindNearby(context.Background(), ferryBuilding, 100)
	require.Error(t, err)
	assert.Equal(t, 2, inner.calls, "errors are never cached")
}

func TestCachedSource_EmptyNotCached(t *testing.T) {
	inner := &countingSource{}
	cached := NewCachedSource(inner, 10, time.Hour, observability.NewMetricsForTesting())

	_, err := cached.FindNearby(context.Background(), ferryBuilding, 100)
	require.NoError(t, err)
	_, err = cached.FindNearby(context.Background(), ferryBuilding, 100)
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls, "empty responses can be retried")
}
