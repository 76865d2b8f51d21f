package geocode

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/building-lens/internal/cache"
	"github.com/couchcryptid/building-lens/internal/domain"
	"github.com/couchcryptid/building-lens/internal/observability"
)

// Chain tries each provider in order and returns the first non-nil result.
// Per-provider failures are logged and counted but never surface to the
// caller; a nil result with a nil error means every leg failed or came back
// empty.
type Chain struct {
	providers []Provider
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewChain creates a provider chain. Order matters: earlier providers are
// more trusted and tried first.
func NewChain(metrics *observability.Metrics, logger *slog.Logger, providers ...Provider) *Chain {
	return &Chain{
		providers: providers,
		metrics:   metrics,
		logger:    logger,
	}
}

// ReverseGeocode resolves the coordinate through the chain.
func (c *Chain) ReverseGeocode(ctx context.Context, coord domain.Coordinate) (*domain.GeocodeResult, error) {
	for _, p := range c.providers {
		result, err := p.ReverseGeocode(ctx, coord)
		if err != nil {
			c.metrics.GeocodeRequests.WithLabelValues(p.Name(), "error").Inc()
			c.logger.Warn("reverse geocode provider failed",
				"provider", p.Name(),
				"lat", coord.Latitude,
				"lon", coord.Longitude,
				"error", err,
			)
			continue
		}
		if result == nil {
			c.metrics.GeocodeRequests.WithLabelValues(p.Name(), "empty").Inc()
			continue
		}
		c.metrics.GeocodeRequests.WithLabelValues(p.Name(), "success").Inc()
		return result, nil
	}
	return nil, nil
}

// Geocoder is the chain contract the cache decorates.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, coord domain.Coordinate) (*domain.GeocodeResult, error)
}

// Cached wraps a geocoder with a long-TTL cache keyed by the coordinate
// rounded to 6 decimal places (~0.1 m).
type Cached struct {
	inner   Geocoder
	cache   *cache.TTL[*domain.GeocodeResult]
	ttl     time.Duration
	metrics *observability.Metrics
}

// NewCached creates a cache decorator around a geocoder.
func NewCached(inner Geocoder, maxEntries int, ttl time.Duration, metrics *observability.Metrics) *Cached {
	return &Cached{
		inner:   inner,
		cache:   cache.New[*domain.GeocodeResult](maxEntries),
		ttl:     ttl,
		metrics: metrics,
	}
}

func (c *Cached) ReverseGeocode(ctx context.Context, coord domain.Coordinate) (*domain.GeocodeResult, error) {
	r := domain.RoundCoordinate(coord, 6)
	key := resultKey(r)
	if result, ok := c.cache.Get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return result, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	result, err := c.inner.ReverseGeocode(ctx, coord)
	if err != nil {
		return nil, err
	}
	// Only cache resolved results so a provider outage is retried.
	if result != nil {
		c.cache.Set(key, result, c.ttl)
	}
	return result, nil
}

func resultKey(r domain.Coordinate) string {
	return fmt.Sprintf("rev:%.6f,%.6f", r.Latitude, r.Longitude)
}
