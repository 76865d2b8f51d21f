// Package http exposes the identification API plus health, readiness, and
// metrics endpoints. Request validation lives here, outside the core
// pipeline.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/building-lens/internal/domain"
	"github.com/couchcryptid/building-lens/internal/identify"
)

// Identifier runs the identification pipeline for one request.
type Identifier interface {
	Identify(ctx context.Context, req identify.Request) (*domain.Result, error)
}

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	Ping(ctx context.Context) error
}

// Server exposes the identify, health, readiness, and metrics HTTP routes.
type Server struct {
	httpServer *http.Server
	identifier Identifier
	maxRadiusM float64
	logger     *slog.Logger
}

// NewServer creates the HTTP server. maxRadiusM caps the searchRadius query
// parameter.
func NewServer(addr string, identifier Identifier, ready ReadinessChecker, maxRadiusM float64, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		identifier: identifier,
		maxRadiusM: maxRadiusM,
		logger:     logger,
	}

	mux.HandleFunc("GET /v1/identify", s.handleIdentify)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleIdentify(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseIdentifyRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	result, err := s.identifier.Identify(r.Context(), req)
	if err != nil {
		s.logger.Error("identification failed",
			"lat", req.Center.Latitude,
			"lon", req.Center.Longitude,
			"error", err,
		)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "identification failed"})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// parseIdentifyRequest validates query parameters: lat in [-90,90], lon in
// [-180,180], optional heading in [0,360], optional radius in (0,max].
func (s *Server) parseIdentifyRequest(r *http.Request) (identify.Request, error) {
	q := r.URL.Query()

	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil || lat < -90 || lat > 90 {
		return identify.Request{}, errors.New("lat must be a number in [-90,90]")
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil || lon < -180 || lon > 180 {
		return identify.Request{}, errors.New("lon must be a number in [-180,180]")
	}

	req := identify.Request{
		Center: domain.Coordinate{Latitude: lat, Longitude: lon},
	}

	if h := q.Get("heading"); h != "" {
		heading, err := strconv.ParseFloat(h, 64)
		if err != nil || heading < 0 || heading > 360 {
			return identify.Request{}, errors.New("heading must be a number in [0,360]")
		}
		req.Heading = &heading
	}

	if rad := q.Get("radius"); rad != "" {
		radius, err := strconv.ParseFloat(rad, 64)
		if err != nil || radius <= 0 || radius > s.maxRadiusM {
			return identify.Request{}, errors.New("radius must be a positive number of meters, at most " + strconv.FormatFloat(s.maxRadiusM, 'f', 0, 64))
		}
		req.RadiusM = radius
	}

	return req, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response body
}
