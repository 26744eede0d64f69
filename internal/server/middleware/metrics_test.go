package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fulmenhq/gofulmen/telemetry"
	telemetrytesting "github.com/fulmenhq/gofulmen/telemetry/testing"
	"github.com/stretchr/testify/require"

	"github.com/waypost/waypost/internal/observability"
)

func setupTelemetry(t *testing.T) *telemetrytesting.FakeCollector {
	t.Helper()

	collector := telemetrytesting.NewFakeCollector()
	sys, err := telemetry.NewSystem(&telemetry.Config{
		Enabled: true,
		Emitter: collector,
	})
	require.NoError(t, err)

	original := observability.TelemetrySystem
	observability.TelemetrySystem = sys
	t.Cleanup(func() { observability.TelemetrySystem = original })

	return collector
}

func TestRequestMetricsEmitsCountAndDuration(t *testing.T) {
	collector := setupTelemetry(t)

	handler := RequestMetrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/geocode", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Positive(t, collector.CountMetricsByName("http_requests_total"))
	require.Positive(t, collector.CountMetricsByName("http_request_duration_ms"))
}

func TestRequestMetricsCountsServerErrors(t *testing.T) {
	collector := setupTelemetry(t)

	handler := RequestMetrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/route", strings.NewReader("{}")))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Positive(t, collector.CountMetricsByName("http_errors_total"))
}

func TestRequestMetricsSkippedWhenTelemetryDisabled(t *testing.T) {
	original := observability.TelemetrySystem
	observability.TelemetrySystem = nil
	t.Cleanup(func() { observability.TelemetrySystem = original })

	called := false
	handler := RequestMetrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reverse", nil))

	require.True(t, called)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestEndpointLabelCollapsesUnknownPaths(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/internal/debug/pprof", nil)
	require.Equal(t, "/unknown", endpointLabel(req))

	req = httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	require.Equal(t, "/health/*", endpointLabel(req))
}
