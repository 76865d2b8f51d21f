package foursquare

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/couchcryptid/building-lens/internal/cache"
	"github.com/couchcryptid/building-lens/internal/domain"
	"github.com/couchcryptid/building-lens/internal/observability"
)

// PlacesSource is the provider contract the cache decorates.
type PlacesSource interface {
	FindNearby(ctx context.Context, coord domain.Coordinate, radiusM float64) ([]domain.PlaceResult, error)
}

// CachedSource wraps a places source with a TTL response cache. Place data
// changes slowly, so entries live for days; keys round the coordinate to
// 5 decimal places (~1 m) so near-duplicate queries share entries.
type CachedSource struct {
	inner   PlacesSource
	cache   *cache.TTL[[]domain.PlaceResult]
	ttl     time.Duration
	metrics *observability.Metrics
}

// NewCachedSource creates a cache decorator around a places source.
func NewCachedSource(inner PlacesSource, maxEntries int, ttl time.Duration, metrics *observability.Metrics) *CachedSource {
	return &CachedSource{
		inner:   inner,
		cache:   cache.New[[]domain.PlaceResult](maxEntries),
		ttl:     ttl,
		metrics: metrics,
	}
}

func (c *CachedSource) FindNearby(ctx context.Context, coord domain.Coordinate, radiusM float64) ([]domain.PlaceResult, error) {
	key := cacheKey(coord, radiusM)
	if results, ok := c.cache.Get(key); ok {
		c.metrics.PlacesCache.WithLabelValues("hit").Inc()
		return results, nil
	}
	c.metrics.PlacesCache.WithLabelValues("miss").Inc()

	results, err := c.inner.FindNearby(ctx, coord, radiusM)
	if err != nil {
		return nil, err
	}
	// Only cache non-empty responses so transient gaps can be retried.
	if len(results) > 0 {
		c.cache.Set(key, results, c.ttl)
	}
	return results, nil
}

func cacheKey(coord domain.Coordinate, radiusM float64) string {
	r := domain.RoundCoordinate(coord, 5)
	return fmt.Sprintf("%.5f,%.5f|r=%d", r.Latitude, r.Longitude, int(math.Round(radiusM)))
}
