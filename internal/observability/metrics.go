package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// identification pipeline.
type Metrics struct {
	IdentifyRequests   *prometheus.CounterVec // labels: outcome={ok,error,cache_hit}
	IdentifyDuration   prometheus.Histogram
	CandidatesReturned prometheus.Histogram
	ResultCache        *prometheus.CounterVec // labels: result={hit,miss}

	// Places provider metrics.
	PlacesRequests    *prometheus.CounterVec // labels: outcome={success,error,empty}
	PlacesCache       *prometheus.CounterVec // labels: result={hit,miss}
	PlacesAPIDuration prometheus.Histogram

	// Reverse-geocode chain metrics.
	GeocodeRequests *prometheus.CounterVec // labels: provider, outcome={success,error,empty}
	GeocodeCache    *prometheus.CounterVec // labels: result={hit,miss}

	// Building store metrics.
	StoreOps *prometheus.CounterVec // labels: op={find_near,upsert}, outcome={success,error}

	// Identify-event publishing metrics.
	EventsPublished *prometheus.CounterVec // labels: outcome={success,error}
	PublishEnabled  prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.IdentifyRequests,
		m.IdentifyDuration,
		m.CandidatesReturned,
		m.ResultCache,
		m.PlacesRequests,
		m.PlacesCache,
		m.PlacesAPIDuration,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.StoreOps,
		m.EventsPublished,
		m.PublishEnabled,
	)
	return m
}

// NewMetricsForTesting creates Metrics without touching the default registry
// to avoid "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		IdentifyRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "building_lens",
			Name:      "identify_requests_total",
			Help:      "Identification requests by outcome.",
		}, []string{"outcome"}),
		IdentifyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "building_lens",
			Name:      "identify_duration_seconds",
			Help:      "Duration of a complete identification pipeline run.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		CandidatesReturned: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "building_lens",
			Name:      "identify_candidates_returned",
			Help:      "Number of candidates in an identification response.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		}),
		ResultCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "building_lens",
			Name:      "result_cache_total",
			Help:      "Identify-result cache lookups by result.",
		}, []string{"result"}),
		PlacesRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "building_lens",
			Name:      "places_requests_total",
			Help:      "Places provider requests by outcome.",
		}, []string{"outcome"}),
		PlacesCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "building_lens",
			Name:      "places_cache_total",
			Help:      "Places response cache lookups by result.",
		}, []string{"result"}),
		PlacesAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "building_lens",
			Name:      "places_api_duration_seconds",
			Help:      "Places API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "building_lens",
			Name:      "geocode_requests_total",
			Help:      "Reverse-geocode requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "building_lens",
			Name:      "geocode_cache_total",
			Help:      "Geocode cache lookups by result.",
		}, []string{"result"}),
		StoreOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "building_lens",
			Name:      "building_store_ops_total",
			Help:      "Building store operations by op and outcome.",
		}, []string{"op", "outcome"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "building_lens",
			Name:      "identify_events_published_total",
			Help:      "Identification events published to Kafka by outcome.",
		}, []string{"outcome"}),
		PublishEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "building_lens",
			Name:      "identify_events_enabled",
			Help:      "1 when identify-event publishing is enabled, 0 otherwise.",
		}),
	}
}
