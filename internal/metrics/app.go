package metrics

import (
	"time"

	"github.com/waypost/waypost/internal/observability"
)

// Gateway operation and lifecycle metric names.
var (
	OperationsTotal       = "app_operations_total"
	OperationsErrorsTotal = "app_operations_errors_total"
	HealthCheckTotal      = "app_health_check_total"
	HealthCheckDuration   = "app_health_check_duration_ms"
	ServerStartTime       = "app_server_start_time_seconds"
)

// RecordOperation counts a planner operation (route, geocode, reverse) by
// outcome. Cache hits count the same as upstream-served results; the upstream
// metrics distinguish them.
func RecordOperation(operation string, success bool) {
	if observability.TelemetrySystem == nil {
		return
	}

	status := "success"
	if !success {
		status = "failure"
	}

	_ = observability.TelemetrySystem.Counter(OperationsTotal, 1, map[string]string{
		"operation": operation,
		"status":    status,
	})
}

// RecordOperationError counts a planner operation failure by error type.
func RecordOperationError(operation string, errorType string) {
	if observability.TelemetrySystem == nil {
		return
	}

	_ = observability.TelemetrySystem.Counter(OperationsErrorsTotal, 1, map[string]string{
		"operation":  operation,
		"error_type": errorType,
	})
}

// RecordHealthCheck counts a health checker run and records its duration.
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}

	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	_ = observability.TelemetrySystem.Counter(HealthCheckTotal, 1, map[string]string{
		"check":  checkName,
		"status": status,
	})
	_ = observability.TelemetrySystem.Histogram(HealthCheckDuration, duration, map[string]string{
		"check": checkName,
	})
}

// SetServerStartTime publishes the serve start instant as a Unix timestamp,
// the Prometheus convention for deriving uptime.
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem == nil {
		return
	}

	_ = observability.TelemetrySystem.Gauge(ServerStartTime, float64(timestamp), nil)
}
