package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/waypost/waypost/internal/core"
	"github.com/waypost/waypost/internal/core/admission"
	"github.com/waypost/waypost/internal/core/engine"
)

type stubPlanner struct {
	route   *core.RouteResult
	geocode *core.GeocodeResult
	err     error

	routeStart core.Position
	routeQuery string
	anchor     *core.Position
	limit      int
}

func (s *stubPlanner) Route(ctx context.Context, start core.Position, query string) (*core.RouteResult, error) {
	s.routeStart = start
	s.routeQuery = query
	return s.route, s.err
}

func (s *stubPlanner) Geocode(ctx context.Context, query string, anchor *core.Position, limit int) (*core.GeocodeResult, error) {
	s.anchor = anchor
	s.limit = limit
	return s.geocode, s.err
}

func (s *stubPlanner) Reverse(ctx context.Context, pos core.Position) (*core.GeocodeResult, error) {
	return s.geocode, s.err
}

func withPlanner(t *testing.T, p RoutePlanner) {
	t.Helper()
	SetPlanner(p)
	t.Cleanup(func() { SetPlanner(nil) })
}

func TestRouteHandler(t *testing.T) {
	stub := &stubPlanner{route: &core.RouteResult{
		Query:    "Museumsinsel",
		Start:    core.Position{13.4, 52.5},
		Geometry: []float64{13.4, 52.5, 13.42, 52.51},
	}}
	withPlanner(t, stub)

	req := httptest.NewRequest(http.MethodPost, "/route",
		strings.NewReader(`{"lat": 52.5, "lon": 13.4, "query": "Museumsinsel"}`))
	rec := httptest.NewRecorder()
	RouteHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, core.Position{13.4, 52.5}, stub.routeStart)
	require.Equal(t, "Museumsinsel", stub.routeQuery)

	var payload struct {
		Route []float64 `json:"route"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&payload))
	require.Equal(t, []float64{13.4, 52.5, 13.42, 52.51}, payload.Route)
}

func TestRouteHandlerRejectsBadBodies(t *testing.T) {
	withPlanner(t, &stubPlanner{})

	cases := map[string]string{
		"not json":      `{"lat": `,
		"missing query": `{"lat": 52.5, "lon": 13.4, "query": "  "}`,
		"bad latitude":  `{"lat": 91.0, "lon": 13.4, "query": "x"}`,
		"bad longitude": `{"lat": 52.5, "lon": -200.0, "query": "x"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/route", strings.NewReader(body))
			rec := httptest.NewRecorder()
			RouteHandler(rec, req)
			require.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestRouteHandlerQuotaExhaustedReturns503(t *testing.T) {
	nextReset := time.Now().UTC().Add(45 * time.Second)
	withPlanner(t, &stubPlanner{err: &admission.QuotaError{Name: "ors-directions-per-minute", NextReset: nextReset}})

	req := httptest.NewRequest(http.MethodPost, "/route",
		strings.NewReader(`{"lat": 52.5, "lon": 13.4, "query": "anywhere"}`))
	rec := httptest.NewRecorder()
	RouteHandler(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))

	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&payload))
	require.Equal(t, "UPSTREAM_RATE_LIMITED", payload.Error.Code)
}

func TestRouteHandlerBackoffReturns503(t *testing.T) {
	until := time.Now().UTC().Add(30 * time.Second)
	withPlanner(t, &stubPlanner{err: &admission.BackoffError{Name: "ors-directions", Until: until}})

	req := httptest.NewRequest(http.MethodPost, "/route",
		strings.NewReader(`{"lat": 52.5, "lon": 13.4, "query": "anywhere"}`))
	rec := httptest.NewRecorder()
	RouteHandler(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))

	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&payload))
	require.Equal(t, "UPSTREAM_BACKED_OFF", payload.Error.Code)
}

func TestRouteHandlerNoMatchReturns404(t *testing.T) {
	withPlanner(t, &stubPlanner{err: &engine.NoMatchError{Query: "nowhere"}})

	req := httptest.NewRequest(http.MethodPost, "/route",
		strings.NewReader(`{"lat": 52.5, "lon": 13.4, "query": "nowhere"}`))
	rec := httptest.NewRecorder()
	RouteHandler(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGeocodeHandler(t *testing.T) {
	stub := &stubPlanner{geocode: &core.GeocodeResult{
		Query:  "Museumsinsel",
		Places: []core.Place{{Name: "Museumsinsel", City: "Berlin"}},
	}}
	withPlanner(t, stub)

	req := httptest.NewRequest(http.MethodGet, "/geocode?q=Museumsinsel&limit=3&lat=52.5&lon=13.4", nil)
	rec := httptest.NewRecorder()
	GeocodeHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 3, stub.limit)
	require.NotNil(t, stub.anchor)
	require.Equal(t, core.Position{13.4, 52.5}, *stub.anchor)
}

func TestGeocodeHandlerValidation(t *testing.T) {
	withPlanner(t, &stubPlanner{})

	cases := map[string]string{
		"missing query": "/geocode",
		"bad limit":     "/geocode?q=x&limit=zero",
		"half anchor":   "/geocode?q=x&lat=52.5",
	}
	for name, target := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, target, nil)
			rec := httptest.NewRecorder()
			GeocodeHandler(rec, req)
			require.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestReverseHandler(t *testing.T) {
	stub := &stubPlanner{geocode: &core.GeocodeResult{
		Places: []core.Place{{Name: "Museumsinsel"}},
	}}
	withPlanner(t, stub)

	req := httptest.NewRequest(http.MethodGet, "/reverse?lat=52.5199&lon=13.4386", nil)
	rec := httptest.NewRecorder()
	ReverseHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestReverseHandlerRequiresCoordinates(t *testing.T) {
	withPlanner(t, &stubPlanner{})

	req := httptest.NewRequest(http.MethodGet, "/reverse", nil)
	rec := httptest.NewRecorder()
	ReverseHandler(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
