package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Building store (Postgres).
	DatabaseURL string

	// Places provider (Foursquare).
	FoursquareAPIKey string
	PlacesTimeout    time.Duration
	PlacesCacheTTL   time.Duration
	PlacesCacheSize  int

	// Reverse-geocode chain. Mapbox is the primary leg and is enabled only
	// when a token is set; Nominatim needs no key and is always available.
	MapboxToken      string
	MapboxEnabled    bool
	NominatimBaseURL string
	GeocodeTimeout   time.Duration
	GeocodeCacheTTL  time.Duration
	GeocodeCacheSize int

	// Identification pipeline.
	DefaultRadiusM        float64
	MaxRadiusM            float64
	ResultCacheTTL        time.Duration
	ResultCacheSize       int
	PersistMinConfidence  float64
	PersistTopN           int
	MinCandidatesFallback int

	// Identify-event publishing (optional).
	KafkaBrokers     []string
	KafkaEventsTopic string
	PublishEnabled   bool
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	placesTimeout, err := parseDuration("PLACES_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	geocodeTimeout, err := parseDuration("GEOCODE_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	placesCacheTTL, err := parseDuration("PLACES_CACHE_TTL", "72h")
	if err != nil {
		return nil, err
	}
	geocodeCacheTTL, err := parseDuration("GEOCODE_CACHE_TTL", "168h")
	if err != nil {
		return nil, err
	}
	resultCacheTTL, err := parseDuration("RESULT_CACHE_TTL", "5m")
	if err != nil {
		return nil, err
	}

	brokers := parseBrokers(os.Getenv("KAFKA_BROKERS"))
	eventsTopic := envOrDefault("KAFKA_EVENTS_TOPIC", "building-identifications")
	publishEnabled := len(brokers) > 0

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DatabaseURL: os.Getenv("DATABASE_URL"),

		FoursquareAPIKey: os.Getenv("FOURSQUARE_API_KEY"),
		PlacesTimeout:    placesTimeout,
		PlacesCacheTTL:   placesCacheTTL,
		PlacesCacheSize:  envInt("PLACES_CACHE_SIZE", 5000),

		MapboxToken:      os.Getenv("MAPBOX_TOKEN"),
		MapboxEnabled:    os.Getenv("MAPBOX_TOKEN") != "",
		NominatimBaseURL: envOrDefault("NOMINATIM_BASE_URL", "https://nominatim.openstreetmap.org"),
		GeocodeTimeout:   geocodeTimeout,
		GeocodeCacheTTL:  geocodeCacheTTL,
		GeocodeCacheSize: envInt("GEOCODE_CACHE_SIZE", 10000),

		DefaultRadiusM:        envFloat("DEFAULT_RADIUS_M", 100),
		MaxRadiusM:            envFloat("MAX_RADIUS_M", 5000),
		ResultCacheTTL:        resultCacheTTL,
		ResultCacheSize:       envInt("RESULT_CACHE_SIZE", 2000),
		PersistMinConfidence:  envFloat("PERSIST_MIN_CONFIDENCE", 30),
		PersistTopN:           envInt("PERSIST_TOP_N", 5),
		MinCandidatesFallback: envInt("MIN_CANDIDATES_BEFORE_FALLBACK", 3),

		KafkaBrokers:     brokers,
		KafkaEventsTopic: eventsTopic,
		PublishEnabled:   publishEnabled,
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.FoursquareAPIKey == "" {
		return nil, errors.New("FOURSQUARE_API_KEY is required")
	}
	if cfg.DefaultRadiusM <= 0 || cfg.MaxRadiusM < cfg.DefaultRadiusM {
		return nil, errors.New("invalid search radius configuration")
	}
	if cfg.PublishEnabled && cfg.KafkaEventsTopic == "" {
		return nil, errors.New("KAFKA_BROKERS is set but KAFKA_EVENTS_TOPIC is empty")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if s := os.Getenv(key); s != "" {
		if v, err := strconv.ParseFloat(s, 64); err == nil && v > 0 {
			return v
		}
	}
	return def
}

func parseDuration(key, def string) (time.Duration, error) {
	s := envOrDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

// parseBrokers splits a comma-separated broker list, trimming whitespace and
// dropping empty entries.
func parseBrokers(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}
