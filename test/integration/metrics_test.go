package integration

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waypost/waypost/internal/core"
	"github.com/waypost/waypost/internal/core/engine"
	"github.com/waypost/waypost/internal/core/provider"
	"github.com/waypost/waypost/internal/observability"
	"github.com/waypost/waypost/internal/server"
	"github.com/waypost/waypost/internal/server/handlers"
)

// stubGeocoder and stubRouter stand in for Photon and ORS so a real planner
// drives the full HTTP stack, operation counters included, without network
// calls.
type stubGeocoder struct{}

func (stubGeocoder) Geocode(ctx context.Context, req provider.GeocodeRequest) ([]core.Place, error) {
	return []core.Place{{Name: req.Query, Coordinates: core.Position{13.4, 52.5}}}, nil
}

func (stubGeocoder) Reverse(ctx context.Context, pos core.Position) ([]core.Place, error) {
	return []core.Place{{Name: "Somewhere", Coordinates: pos}}, nil
}

type stubRouter struct{}

func (stubRouter) Directions(ctx context.Context, start, end core.Position) (*provider.Directions, error) {
	return &provider.Directions{
		Geometry:  []float64{start[0], start[1], end[0], end[1]},
		DistanceM: 1200,
		DurationS: 240,
	}, nil
}

// cleanupMetrics tears down global telemetry state so each test starts clean.
// This matters in sandboxes where lingering exporters can block future binds.
func cleanupMetrics(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		if observability.PrometheusExporter != nil {
			_ = observability.PrometheusExporter.Stop()
			observability.PrometheusExporter = nil
		}
		observability.TelemetrySystem = nil
	})
}

// isPermissionError normalizes OS-specific permission errors (macOS/Linux/BSD)
// so we can gracefully skip when loopback sockets are blocked.
func isPermissionError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, os.ErrPermission) || errors.Is(err, syscall.EACCES) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, fragment := range []string{"permission denied", "operation not permitted", "not permitted"} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}

	return false
}

// initMetricsOrSkip attempts to start the metrics exporter; if the environment
// forbids network binds we skip instead of failing the entire suite.
func initMetricsOrSkip(t *testing.T) {
	t.Helper()

	if err := observability.InitMetrics("test", 0, "test"); err != nil {
		if isPermissionError(err) {
			t.Skipf("skipping metrics tests due to sandbox permissions: %v", err)
		}
		require.NoError(t, err)
	}

	cleanupMetrics(t)
}

// newGatewayServer wires a full gateway (stub upstreams, real limiter registry)
// on an IPv4 loopback listener, skipping when the sandbox refuses sockets.
func newGatewayServer(t *testing.T) (*httptest.Server, *http.Client) {
	t.Helper()

	handlers.SetPlanner(&engine.Planner{Geocoder: stubGeocoder{}, Router: stubRouter{}})
	t.Cleanup(func() { handlers.SetPlanner(nil) })

	policy, err := provider.DefaultPolicy()
	require.NoError(t, err)
	registry, err := provider.NewRegistry(policy, nil)
	require.NoError(t, err)
	t.Cleanup(registry.Close)
	handlers.SetGuards(registry)
	t.Cleanup(func() { handlers.SetGuards(nil) })

	srv := server.New("127.0.0.1", 0)

	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if isPermissionError(err) {
			t.Skipf("skipping gateway server setup: %v", err)
		}
		require.NoError(t, err)
	}

	ts := &httptest.Server{
		Listener: listener,
		Config:   &http.Server{Handler: srv.Handler()},
	}
	ts.Start()
	t.Cleanup(ts.Close)
	return ts, ts.Client()
}

func TestMetricsEndpointUnderLoad(t *testing.T) {
	observability.InitCLILogger("test", false)
	observability.InitServerLogger("test", "info")

	initMetricsOrSkip(t)
	handlers.InitHealthManager("test")

	ts, client := newGatewayServer(t)

	const numRequests = 50
	const numWorkers = 10

	paths := []string{
		"/geocode?q=alexanderplatz",
		"/reverse?lat=52.52&lon=13.4",
		"/limits",
		"/health",
	}

	requestChan := make(chan int, numRequests)
	for i := 0; i < numRequests; i++ {
		requestChan <- i
	}
	close(requestChan)

	start := time.Now()

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func() {
			defer wg.Done()
			for reqNum := range requestChan {
				resp, err := client.Get(ts.URL + paths[reqNum%len(paths)])
				if err == nil {
					require.NoError(t, resp.Body.Close())
				}
			}
		}()
	}
	wg.Wait()

	elapsed := time.Since(start)

	resp, err := client.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, readErr := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, readErr)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	metricsContent := string(body)
	assert.Contains(t, metricsContent, "test_http_requests_total", "Should have HTTP request metrics")
	assert.Contains(t, metricsContent, "test_http_request_duration_ms", "Should have duration metrics")
	assert.Contains(t, metricsContent, "test_app_operations_total", "Should have planner operation metrics")
	assert.True(t, elapsed < 5*time.Second, "Load test should complete in reasonable time")
	t.Logf("Load test completed: %d requests in %v (%.2f req/s)", numRequests, elapsed, float64(numRequests)/elapsed.Seconds())
}

func TestMetricsEndpointPrometheusFormat(t *testing.T) {
	observability.InitCLILogger("test", false)
	observability.InitServerLogger("test", "info")

	initMetricsOrSkip(t)
	handlers.InitHealthManager("test")

	ts, client := newGatewayServer(t)

	resp, err := client.Get(ts.URL + "/limits")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	contentType := resp.Header.Get("Content-Type")
	assert.True(t,
		contentType == "text/plain; version=0.0.4" ||
			contentType == "text/plain; version=0.0.4; charset=utf-8",
		"Expected Prometheus content type, got: %s", contentType)

	body, readErr := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, readErr)

	var sampleLines int
	for _, line := range strings.Split(strings.TrimSpace(string(body)), "\n") {
		if strings.HasPrefix(line, "#") || strings.TrimSpace(line) == "" {
			continue
		}
		require.GreaterOrEqual(t, len(strings.Fields(line)), 2,
			"metric sample should be name/labels followed by a value: %q", line)
		sampleLines++
	}
	assert.Positive(t, sampleLines, "Should have actual metric samples")
}

func TestMetricsDisabledReturns503(t *testing.T) {
	observability.InitCLILogger("test", false)
	observability.InitServerLogger("test", "info")

	originalExporter := observability.PrometheusExporter
	originalTelemetry := observability.TelemetrySystem
	observability.PrometheusExporter = nil
	observability.TelemetrySystem = nil
	t.Cleanup(func() {
		observability.PrometheusExporter = originalExporter
		observability.TelemetrySystem = originalTelemetry
	})

	t.Setenv("WAYPOST_METRICS_ENABLED", "false")

	handlers.InitHealthManager("test")

	ts, client := newGatewayServer(t)

	resp, err := client.Get(ts.URL + "/geocode?q=alexanderplatz")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
