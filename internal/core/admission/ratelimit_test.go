package admission

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateLimitWindowExhaustion(t *testing.T) {
	limiter := NewRateLimit(3, 60*time.Millisecond, "photon-minute")
	defer limiter.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.TryConsume(1))
	}

	err := limiter.TryConsume(1)
	require.Error(t, err)

	var quota *QuotaError
	require.ErrorAs(t, err, &quota)
	require.Equal(t, "photon-minute", quota.Name)

	// Let the reset task open the next window.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, limiter.TryConsume(1))
}

func TestRateLimitBulkConsume(t *testing.T) {
	limiter := NewRateLimit(5, time.Minute, "ors-minute")
	defer limiter.Close()

	require.NoError(t, limiter.TryConsume(3))
	require.NoError(t, limiter.TryConsume(2))
	require.Error(t, limiter.TryConsume(1))
	require.Equal(t, uint32(5), limiter.Used())
}

func TestRateLimitZeroIsAlwaysFree(t *testing.T) {
	limiter := NewRateLimit(2, time.Minute, "tiny")
	defer limiter.Close()

	require.NoError(t, limiter.TryConsume(2))
	require.Error(t, limiter.TryConsume(1))

	// Full exhaustion must not matter, and the counter must not move.
	require.NoError(t, limiter.TryConsume(0))
	require.Equal(t, uint32(2), limiter.Used())
}

func TestRateLimitOverCapacityShortCircuits(t *testing.T) {
	limiter := NewRateLimit(10, time.Minute, "small")
	defer limiter.Close()

	err := limiter.TryConsume(11)
	require.Error(t, err)
	require.Equal(t, uint32(0), limiter.Used())

	var quota *QuotaError
	require.ErrorAs(t, err, &quota)
	require.False(t, quota.NextReset.IsZero())
}

func TestRateLimitUndoSaturatesAtZero(t *testing.T) {
	limiter := NewRateLimit(10, time.Minute, "sat")
	defer limiter.Close()

	require.NoError(t, limiter.TryConsume(2))
	limiter.Undo(5)
	require.Equal(t, uint32(0), limiter.Used())
}

func TestRateLimitUndoAfterResetLandsInFreshWindow(t *testing.T) {
	limiter := NewRateLimit(10, 40*time.Millisecond, "cross-window")
	defer limiter.Close()

	require.NoError(t, limiter.TryConsume(4))

	// Wait out a reset, then undo the old consumption. The subtraction
	// lands in the fresh window and saturates at zero instead of
	// underflowing; the transient under-count is accepted behavior.
	time.Sleep(70 * time.Millisecond)
	limiter.Undo(4)
	require.Equal(t, uint32(0), limiter.Used())
	require.NoError(t, limiter.TryConsume(10))
}

func TestRateLimitConcurrentConsume(t *testing.T) {
	const capacity = 100
	limiter := NewRateLimit(capacity, time.Hour, "contended")
	defer limiter.Close()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 4*capacity; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.TryConsume(1) == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, capacity, successes)
	require.Equal(t, uint32(capacity), limiter.Used())
}

func TestRateLimitIndependentResetCadence(t *testing.T) {
	first := NewRateLimit(5, time.Minute, "first")
	defer first.Close()

	time.Sleep(30 * time.Millisecond)

	second := NewRateLimit(5, time.Minute, "second")
	defer second.Close()

	// Identical window lengths, staggered construction: the reset
	// boundaries must not line up.
	gap := second.NextReset().Sub(first.NextReset())
	require.Greater(t, gap, 10*time.Millisecond)
}

func TestRateLimitCloseStopsResets(t *testing.T) {
	limiter := NewRateLimit(1, 20*time.Millisecond, "closed")
	require.NoError(t, limiter.TryConsume(1))

	limiter.Close()
	limiter.Close() // idempotent

	time.Sleep(60 * time.Millisecond)
	require.Equal(t, uint32(1), limiter.Used())
}
