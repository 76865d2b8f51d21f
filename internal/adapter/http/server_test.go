package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/building-lens/internal/domain"
	"github.com/couchcryptid/building-lens/internal/identify"
)

type stubIdentifier struct {
	lastReq identify.Request
	result  *domain.Result
	err     error
	calls   int
}

func (s *stubIdentifier) Identify(_ context.Context, req identify.Request) (*domain.Result, error) {
	s.calls++
	s.lastReq = req
	return s.result, s.err
}

type stubPinger struct {
	err error
}

func (s *stubPinger) Ping(context.Context) error { return s.err }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testServer(identifier Identifier, ready ReadinessChecker) *Server {
	return NewServer(":0", identifier, ready, 5000, discardLogger())
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestIdentifyEndpoint_Success(t *testing.T) {
	identifier := &stubIdentifier{result: &domain.Result{
		Candidates:   []domain.Candidate{{ExternalID: "fsq1", Name: "Ferry Building", Confidence: 92.5}},
		SearchRadius: 100,
		SearchCenter: domain.Coordinate{Latitude: 37.7749, Longitude: -122.4194},
	}}
	s := testServer(identifier, &stubPinger{})

	rec := get(t, s, "/v1/identify?lat=37.7749&lon=-122.4194&heading=270&radius=250")
	require.Equal(t, http.StatusOK, rec.Code)

	var result domain.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, "Ferry Building", result.Candidates[0].Name)

	assert.Equal(t, 37.7749, identifier.lastReq.Center.Latitude)
	assert.Equal(t, -122.4194, identifier.lastReq.Center.Longitude)
	require.NotNil(t, identifier.lastReq.Heading)
	assert.Equal(t, 270.0, *identifier.lastReq.Heading)
	assert.Equal(t, 250.0, identifier.lastReq.RadiusM)
}

func TestIdentifyEndpoint_OptionalParamsOmitted(t *testing.T) {
	identifier := &stubIdentifier{result: &domain.Result{}}
	s := testServer(identifier, &stubPinger{})

	rec := get(t, s, "/v1/identify?lat=37.7749&lon=-122.4194")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, identifier.lastReq.Heading)
	assert.Zero(t, identifier.lastReq.RadiusM, "radius defaulting is the service's concern")
}

func TestIdentifyEndpoint_Validation(t *testing.T) {
	tests := []struct {
		name   string
		target string
	}{
		{"missing lat", "/v1/identify?lon=-122.4194"},
		{"missing lon", "/v1/identify?lat=37.7749"},
		{"lat out of range", "/v1/identify?lat=91&lon=0"},
		{"lat below range", "/v1/identify?lat=-90.1&lon=0"},
		{"lon out of range", "/v1/identify?lat=0&lon=180.5"},
		{"lat not a number", "/v1/identify?lat=abc&lon=0"},
		{"heading negative", "/v1/identify?lat=0&lon=0&heading=-1"},
		{"heading too large", "/v1/identify?lat=0&lon=0&heading=361"},
		{"radius zero", "/v1/identify?lat=0&lon=0&radius=0"},
		{"radius negative", "/v1/identify?lat=0&lon=0&radius=-50"},
		{"radius above cap", "/v1/identify?lat=0&lon=0&radius=5001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identifier := &stubIdentifier{result: &domain.Result{}}
			s := testServer(identifier, &stubPinger{})

			rec := get(t, s, tt.target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, 0, identifier.calls, "invalid requests never reach the pipeline")
		})
	}
}

func TestIdentifyEndpoint_PipelineError(t *testing.T) {
	identifier := &stubIdentifier{err: errors.New("places provider down")}
	s := testServer(identifier, &stubPinger{})

	rec := get(t, s, "/v1/identify?lat=37.7749&lon=-122.4194")
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotContains(t, body["error"], "places provider down", "internal detail stays out of the response")
}

func TestHealthz(t *testing.T) {
	s := testServer(&stubIdentifier{}, &stubPinger{})

	rec := get(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestReadyz(t *testing.T) {
	s := testServer(&stubIdentifier{}, &stubPinger{})
	rec := get(t, s, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)

	s = testServer(&stubIdentifier{}, &stubPinger{err: errors.New("database unreachable")})
	rec = get(t, s, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
