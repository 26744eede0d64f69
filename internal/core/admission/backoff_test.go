package admission

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func simulatedClock(start time.Time) (func() time.Time, func(time.Duration)) {
	now := start
	return func() time.Time { return now },
		func(d time.Duration) { now = now.Add(d) }
}

func TestBackerOffDelaySecondsLifecycle(t *testing.T) {
	clock, advance := simulatedClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	backer := NewBackerOff("api.openrouteservice.org").WithClock(clock)

	require.NoError(t, backer.CanRequest())
	require.NoError(t, backer.ParseAndSet("60"))

	err := backer.CanRequest()
	var blocked *BackoffError
	require.ErrorAs(t, err, &blocked)
	require.Equal(t, "api.openrouteservice.org", blocked.Name)
	require.Equal(t, clock().Add(60*time.Second), blocked.Until)

	advance(59 * time.Second)
	require.Error(t, backer.CanRequest())

	advance(time.Second)
	require.NoError(t, backer.CanRequest())

	// The elapsed deadline is cleared on the way through.
	require.Nil(t, backer.RetryUntil())
}

func TestBackerOffDefaultBackoff(t *testing.T) {
	clock, advance := simulatedClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	backer := NewBackerOff("photon.komoot.io").WithClock(clock)

	backer.SetDefaultBackoff()
	require.Error(t, backer.CanRequest())

	advance(DefaultBackoff - time.Millisecond)
	require.Error(t, backer.CanRequest())

	advance(time.Millisecond)
	require.NoError(t, backer.CanRequest())
}

func TestBackerOffHTTPDateHeader(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock, advance := simulatedClock(start)
	backer := NewBackerOff("photon.komoot.io").WithClock(clock)

	header := start.Add(20 * time.Second).Format("Mon, 02 Jan 2006 15:04:05 GMT")
	require.NoError(t, backer.ParseAndSet(header))
	require.Error(t, backer.CanRequest())

	advance(20 * time.Second)
	require.NoError(t, backer.CanRequest())
}

func TestBackerOffFromPastLeavesStateUntouched(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock, _ := simulatedClock(start)
	backer := NewBackerOff("stale").WithClock(clock)

	header := start.Add(-time.Hour).Format("Mon, 02 Jan 2006 15:04:05 GMT")
	err := backer.ParseAndSet(header)
	require.ErrorIs(t, err, ErrRetryAfterFromPast)
	require.Nil(t, backer.RetryUntil())
	require.NoError(t, backer.CanRequest())
}

func TestBackerOffParseFailureLeavesStateUntouched(t *testing.T) {
	clock, _ := simulatedClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	backer := NewBackerOff("noisy").WithClock(clock)

	var parseErr *ParseError
	require.ErrorAs(t, backer.ParseAndSet("whenever"), &parseErr)
	require.Nil(t, backer.RetryUntil())
	require.NoError(t, backer.CanRequest())
}

func TestBackerOffOverwritesUnconditionally(t *testing.T) {
	clock, advance := simulatedClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	backer := NewBackerOff("flappy").WithClock(clock)

	require.NoError(t, backer.ParseAndSet("60"))
	require.NoError(t, backer.ParseAndSet("10"))

	// The later, shorter deadline wins; no ordering guard is attempted.
	advance(11 * time.Second)
	require.NoError(t, backer.CanRequest())
}
