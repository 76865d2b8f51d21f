package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/building-lens/internal/adapter/foursquare"
	"github.com/couchcryptid/building-lens/internal/adapter/geocode"
	httpadapter "github.com/couchcryptid/building-lens/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/building-lens/internal/adapter/kafka"
	"github.com/couchcryptid/building-lens/internal/adapter/postgres"
	"github.com/couchcryptid/building-lens/internal/cache"
	"github.com/couchcryptid/building-lens/internal/config"
	"github.com/couchcryptid/building-lens/internal/domain"
	"github.com/couchcryptid/building-lens/internal/identify"
	"github.com/couchcryptid/building-lens/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := postgres.Connect(ctx, cfg.DatabaseURL, metrics)
	if err != nil {
		logger.Error("database connect failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		logger.Error("schema setup failed", "error", err)
		os.Exit(1)
	}

	// Places provider with its response cache.
	placesClient := foursquare.NewClient(cfg.FoursquareAPIKey, cfg.PlacesTimeout, metrics, logger)
	places := foursquare.NewCachedSource(placesClient, cfg.PlacesCacheSize, cfg.PlacesCacheTTL, metrics)

	// Reverse-geocode chain: Mapbox first when a token is configured,
	// Nominatim as the open-data second leg.
	var providers []geocode.Provider
	if cfg.MapboxEnabled {
		providers = append(providers, geocode.NewMapbox(cfg.MapboxToken, cfg.GeocodeTimeout))
		logger.Info("mapbox geocoding enabled")
	} else {
		logger.Info("mapbox geocoding disabled, using nominatim only")
	}
	providers = append(providers, geocode.NewNominatim(cfg.NominatimBaseURL, cfg.GeocodeTimeout))
	chain := geocode.NewChain(metrics, logger, providers...)
	geocoder := geocode.NewCached(chain, cfg.GeocodeCacheSize, cfg.GeocodeCacheTTL, metrics)

	// Identify-event publishing (feature-flagged via KAFKA_BROKERS).
	var publisher identify.EventPublisher
	if cfg.PublishEnabled {
		kp := kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaEventsTopic, metrics, logger)
		defer kp.Close() //nolint:errcheck // shutdown path
		publisher = kp
		metrics.PublishEnabled.Set(1)
		logger.Info("identify event publishing enabled", "topic", cfg.KafkaEventsTopic)
	} else {
		logger.Info("identify event publishing disabled")
	}

	results := cache.New[[]domain.Candidate](cfg.ResultCacheSize)
	scorer := domain.NewScorer(domain.DefaultScoringConfig())

	service := identify.New(places, geocoder, store, results, publisher, scorer, identify.Config{
		DefaultRadiusM:        cfg.DefaultRadiusM,
		ResultCacheTTL:        cfg.ResultCacheTTL,
		PersistMinConfidence:  cfg.PersistMinConfidence,
		PersistTopN:           cfg.PersistTopN,
		MinCandidatesFallback: cfg.MinCandidatesFallback,
	}, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, service, store, cfg.MaxRadiusM, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
