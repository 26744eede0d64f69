package errors

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAdmissionEnvelopesCarryRetryAfter(t *testing.T) {
	until := time.Now().Add(45 * time.Second)

	envelope := NewUpstreamBackedOffError("photon asked us to back off", until)
	seconds, ok := retryAfterSeconds(envelope)
	require.True(t, ok, "backoff envelope should expose a retry hint")
	require.InDelta(t, 45, seconds, 2)

	envelope = NewUpstreamRateLimitedError("photon quota spent", until)
	seconds, ok = retryAfterSeconds(envelope)
	require.True(t, ok)
	require.InDelta(t, 45, seconds, 2)
}

func TestWithRetryAtClampsPastDeadlines(t *testing.T) {
	envelope := NewUpstreamBackedOffError("stale deadline", time.Now().Add(-time.Minute))
	seconds, ok := retryAfterSeconds(envelope)
	require.True(t, ok)
	require.EqualValues(t, 0, seconds)
}

func TestRespondWithEnvelopeSetsRetryAfterHeader(t *testing.T) {
	envelope := NewUpstreamRateLimitedError("ors quota spent", time.Now().Add(30*time.Second))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/route", nil)
	RespondWithEnvelope(rec, req, envelope)

	require.Equal(t, 503, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
}
