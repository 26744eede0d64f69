package metrics

import (
	"github.com/waypost/waypost/internal/observability"
)

// Outbound admission metrics. Every external API call either goes out or is
// rejected locally; both sides are counted per endpoint.
var (
	UpstreamRequestsTotal  = "app_upstream_requests_total"
	AdmissionRejectedTotal = "app_admission_rejected_total"
	BackoffArmedTotal      = "app_backoff_armed_total"
	UpstreamQuotaUsed      = "app_upstream_quota_used"
	UpstreamQuotaLimit     = "app_upstream_quota_limit"
)

// RecordUpstreamRequest counts a completed call to an upstream endpoint.
func RecordUpstreamRequest(endpoint string, statusCode int) {
	status := "success"
	if statusCode >= 400 || statusCode == 0 {
		status = "failure"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			UpstreamRequestsTotal,
			1,
			map[string]string{
				"endpoint": endpoint,
				"status":   status,
			},
		)
	}
}

// RecordAdmissionRejected counts a request stopped before leaving the process.
// Reason is "quota" or "backoff".
func RecordAdmissionRejected(endpoint string, reason string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			AdmissionRejectedTotal,
			1,
			map[string]string{
				"endpoint": endpoint,
				"reason":   reason,
			},
		)
	}
}

// RecordBackoffArmed counts backoff gate activations per endpoint.
func RecordBackoffArmed(endpoint string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			BackoffArmedTotal,
			1,
			map[string]string{"endpoint": endpoint},
		)
	}
}

// SetQuotaUsage publishes the current window usage of a named limit.
func SetQuotaUsage(limitName string, used, limit uint32) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			UpstreamQuotaUsed,
			float64(used),
			map[string]string{"limit": limitName},
		)
		_ = observability.TelemetrySystem.Gauge(
			UpstreamQuotaLimit,
			float64(limit),
			map[string]string{"limit": limitName},
		)
	}
}
