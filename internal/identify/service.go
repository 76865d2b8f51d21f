// Package identify orchestrates the building identification pipeline:
// result-cache lookup, candidate gathering from the building store and the
// places provider, geocode fallback, geometry enrichment, scoring, sorting,
// and best-effort persistence.
package identify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/building-lens/internal/domain"
	"github.com/couchcryptid/building-lens/internal/geo"
	"github.com/couchcryptid/building-lens/internal/observability"
)

// PlacesSource queries the primary point-of-interest provider. Its failure
// is the one fault that aborts an identification.
type PlacesSource interface {
	FindNearby(ctx context.Context, coord domain.Coordinate, radiusM float64) ([]domain.PlaceResult, error)
}

// Geocoder is the reverse-geocoding fallback. A nil result with a nil error
// means no match; internal provider fallback is the geocoder's concern.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, coord domain.Coordinate) (*domain.GeocodeResult, error)
}

// BuildingStore is the durable building cache.
type BuildingStore interface {
	FindNear(ctx context.Context, coord domain.Coordinate, radiusM float64) ([]domain.BuildingRecord, error)
	Upsert(ctx context.Context, rec domain.BuildingRecord) (int64, error)
}

// ResultCache stores complete identification results with a TTL.
type ResultCache interface {
	Get(key string) ([]domain.Candidate, bool)
	Set(key string, candidates []domain.Candidate, ttl time.Duration)
}

// EventPublisher receives completed identifications, best-effort.
type EventPublisher interface {
	Publish(ctx context.Context, result *domain.Result) error
}

// Config holds the orchestrator's tunables.
type Config struct {
	DefaultRadiusM float64
	ResultCacheTTL time.Duration

	// Candidates with confidence above PersistMinConfidence are written to
	// the building store, at most PersistTopN per request.
	PersistMinConfidence float64
	PersistTopN          int

	// The geocode fallback runs only when fewer than MinCandidatesFallback
	// candidates were gathered from the store and the places provider.
	MinCandidatesFallback int
}

// Request are the identification inputs. A nil Heading means the caller's
// compass direction is unknown; RadiusM of zero selects the default radius.
// Validation of ranges is the transport layer's responsibility.
type Request struct {
	Center  domain.Coordinate
	Heading *float64
	RadiusM float64
}

// Service runs the identification pipeline.
type Service struct {
	places    PlacesSource
	geocoder  Geocoder
	store     BuildingStore
	results   ResultCache
	publisher EventPublisher // optional, may be nil
	scorer    *domain.Scorer
	cfg       Config
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// New creates the identification service. publisher may be nil when event
// publishing is disabled.
func New(places PlacesSource, geocoder Geocoder, store BuildingStore, results ResultCache,
	publisher EventPublisher, scorer *domain.Scorer, cfg Config,
	logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		places:    places,
		geocoder:  geocoder,
		store:     store,
		results:   results,
		publisher: publisher,
		scorer:    scorer,
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
	}
}

// Identify returns the buildings the user is most likely looking at, ranked
// by descending confidence. Only a places-provider failure propagates as an
// error; every other fault degrades to a partial result. A result-cache hit
// short-circuits the whole pipeline.
func (s *Service) Identify(ctx context.Context, req Request) (*domain.Result, error) {
	start := time.Now()

	radius := req.RadiusM
	if radius <= 0 {
		radius = s.cfg.DefaultRadiusM
	}

	key := domain.ResultCacheKey(req.Center, req.Heading, radius)
	if cached, ok := s.results.Get(key); ok {
		s.metrics.ResultCache.WithLabelValues("hit").Inc()
		s.metrics.IdentifyRequests.WithLabelValues("cache_hit").Inc()
		return s.buildResult(cached, req, radius), nil
	}
	s.metrics.ResultCache.WithLabelValues("miss").Inc()

	candidates, err := s.gather(ctx, req.Center, radius)
	if err != nil {
		s.metrics.IdentifyRequests.WithLabelValues("error").Inc()
		return nil, err
	}

	enrichGeometry(candidates, req.Center, req.Heading)
	for i := range candidates {
		s.scorer.Score(&candidates[i])
	}
	domain.SortByConfidence(candidates)

	s.persist(ctx, candidates)
	s.results.Set(key, candidates, s.cfg.ResultCacheTTL)

	result := s.buildResult(candidates, req, radius)
	s.publish(ctx, result)

	s.metrics.IdentifyRequests.WithLabelValues("ok").Inc()
	s.metrics.IdentifyDuration.Observe(time.Since(start).Seconds())
	s.metrics.CandidatesReturned.Observe(float64(len(candidates)))
	return result, nil
}

func (s *Service) buildResult(candidates []domain.Candidate, req Request, radius float64) *domain.Result {
	return &domain.Result{
		Candidates:   candidates,
		SearchRadius: radius,
		SearchCenter: req.Center,
		Heading:      req.Heading,
		Timestamp:    domain.Now(),
	}
}

// gather collects candidates from the building store and the places
// provider concurrently, then consults the geocode fallback when too few
// were found. The store query gets cache-tagged candidates with placeholder
// geometry; a store failure degrades to an empty contribution.
func (s *Service) gather(ctx context.Context, center domain.Coordinate, radiusM float64) ([]domain.Candidate, error) {
	var (
		wg        sync.WaitGroup
		records   []domain.BuildingRecord
		storeErr  error
		places    []domain.PlaceResult
		placesErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		records, storeErr = s.store.FindNear(ctx, center, radiusM)
	}()
	go func() {
		defer wg.Done()
		places, placesErr = s.places.FindNearby(ctx, center, radiusM)
	}()
	wg.Wait()

	// The places provider is the primary source: its total failure must be
	// visible to the caller.
	if placesErr != nil {
		return nil, fmt.Errorf("query places near (%.5f, %.5f) radius %.0fm: %w",
			center.Latitude, center.Longitude, radiusM, placesErr)
	}
	if storeErr != nil {
		s.logger.Warn("building store lookup failed, continuing without cached buildings",
			"lat", center.Latitude,
			"lon", center.Longitude,
			"radius_m", radiusM,
			"error", storeErr,
		)
		records = nil
	}

	candidates := make([]domain.Candidate, 0, len(records)+len(places)+1)
	for i := range records {
		candidates = append(candidates, records[i].Candidate())
	}
	for _, p := range places {
		candidates = append(candidates, domain.Candidate{
			ExternalID:  p.ExternalID,
			Name:        p.Name,
			Address:     p.Address,
			Coordinates: p.Coordinates,
			Source:      p.Source,
			Metadata:    p.Metadata,
		})
	}

	if len(candidates) < s.cfg.MinCandidatesFallback {
		geocoded, err := s.geocoder.ReverseGeocode(ctx, center)
		switch {
		case err != nil:
			s.logger.Warn("geocode fallback failed",
				"lat", center.Latitude,
				"lon", center.Longitude,
				"error", err,
			)
		case geocoded != nil:
			candidates = append(candidates, domain.Candidate{
				ExternalID:  geocoded.ExternalID,
				Name:        geocoded.Name,
				Address:     geocoded.Address,
				Coordinates: geocoded.Coordinates,
				Source:      geocoded.Source,
				Metadata:    geocoded.Metadata,
			})
		}
	}

	return candidates, nil
}

// enrichGeometry fills in distance, bearing, and, when a heading was
// supplied, the angular difference between the candidate's bearing and the
// heading. BearingDiff is always computed from the current request's
// heading; nothing heading-dependent survives across requests.
func enrichGeometry(candidates []domain.Candidate, center domain.Coordinate, heading *float64) {
	for i := range candidates {
		c := &candidates[i]
		c.Distance = geo.DistanceMeters(center, c.Coordinates)
		c.Bearing = geo.BearingDegrees(center, c.Coordinates)
		if heading != nil {
			diff := geo.AngularDifference(c.Bearing, *heading)
			c.BearingDiff = &diff
		}
	}
}

// persist writes confident non-cache candidates to the building store,
// up to PersistTopN from the top of the sorted list. Fire-and-forget:
// individual failures are logged, not retried, never propagated.
func (s *Service) persist(ctx context.Context, sorted []domain.Candidate) {
	saved := 0
	for i := range sorted {
		if saved >= s.cfg.PersistTopN {
			return
		}
		c := &sorted[i]
		if c.Source == domain.SourceCache || c.Confidence <= s.cfg.PersistMinConfidence {
			continue
		}
		saved++
		if _, err := s.store.Upsert(ctx, recordFromCandidate(c)); err != nil {
			s.logger.Warn("building store upsert failed",
				"external_id", c.ExternalID,
				"source", c.Source,
				"error", err,
			)
		}
	}
}

// recordFromCandidate snapshots a candidate as a building record. The
// geometry and confidence computed for this request land in metadata under
// their own keys so externally-sourced keys survive the merge. BearingDiff
// is deliberately dropped: it is only meaningful against this request's
// heading.
func recordFromCandidate(c *domain.Candidate) domain.BuildingRecord {
	md := make(domain.Metadata, len(c.Metadata)+3)
	for k, v := range c.Metadata {
		md[k] = v
	}
	md["lastDistanceM"] = c.Distance
	md["lastBearing"] = c.Bearing
	md["lastConfidence"] = c.Confidence

	return domain.BuildingRecord{
		ExternalID: c.ExternalID,
		Source:     c.Source,
		Name:       c.Name,
		Address:    c.Address,
		Coordinate: c.Coordinates,
		Metadata:   md,
	}
}

// publish sends the result to the event publisher when one is wired.
func (s *Service) publish(ctx context.Context, result *domain.Result) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, result); err != nil {
		s.logger.Warn("identify event publish failed", "error", err)
	}
}
