package admission

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
)

// RateLimit is a fixed-window limiter for one upstream quota. The counter is
// zeroed by a background task on a fixed cadence; callers consume from it with
// a compare-and-swap retry loop and never block.
//
// Each RateLimit owns exactly one reset task. Close stops it; in-flight
// TryConsume/Undo calls stay correct even if a reset lands mid-call.
type RateLimit struct {
	name   string
	limit  uint32
	window time.Duration

	counter atomic.Uint32

	// nextReset is advisory only: the reset task republishes it shortly
	// before zeroing the counter, so a reader may observe a fresh reset
	// instant next to a stale counter. Callers must not treat it as a
	// correctness boundary.
	nextReset atomic.Pointer[time.Time]

	done      chan struct{}
	closeOnce sync.Once

	clock  func() time.Time
	logger *logging.Logger
}

// NewRateLimit creates a limiter admitting up to limit units per window and
// starts its reset task. The name is used for diagnostics only.
func NewRateLimit(limit uint32, window time.Duration, name string) *RateLimit {
	r := &RateLimit{
		name:   name,
		limit:  limit,
		window: window,
		done:   make(chan struct{}),
		clock:  func() time.Time { return time.Now() },
	}

	first := r.clock().Add(window)
	r.nextReset.Store(&first)

	go r.resetLoop()

	return r
}

// WithLogger attaches a logger for reset and rollback diagnostics.
func (r *RateLimit) WithLogger(logger *logging.Logger) *RateLimit {
	r.logger = logger
	return r
}

// Name returns the diagnostic label.
func (r *RateLimit) Name() string { return r.name }

// Limit returns the per-window capacity.
func (r *RateLimit) Limit() uint32 { return r.limit }

// Window returns the fixed window length.
func (r *RateLimit) Window() time.Duration { return r.window }

// Used returns the units consumed in the active window. Eventually consistent
// under concurrent updates.
func (r *RateLimit) Used() uint32 { return r.counter.Load() }

// NextReset returns the advisory instant of the next window boundary.
func (r *RateLimit) NextReset() time.Time {
	if t := r.nextReset.Load(); t != nil {
		return *t
	}
	// Should not happen after construction; fall back to a conservative
	// guess rather than a zero instant.
	return r.clock().Add(r.window)
}

// TryConsume attempts to consume n units from the current window without
// blocking. On rejection it returns a *QuotaError carrying the advisory next
// reset instant.
func (r *RateLimit) TryConsume(n uint32) error {
	// Obvious answers first: zero is always free, more than the whole
	// window can never be satisfied.
	if n == 0 {
		return nil
	}
	if n > r.limit {
		return &QuotaError{Name: r.name, NextReset: r.NextReset()}
	}

	// Another writer winning the race invalidates our read, so retry until
	// the exchange sticks or the window genuinely cannot admit n.
	for {
		count := r.counter.Load()
		next := saturatingAdd(count, n)
		if next > r.limit {
			return &QuotaError{Name: r.name, NextReset: r.NextReset()}
		}
		if r.counter.CompareAndSwap(count, next) {
			return nil
		}
	}
}

// Undo returns n previously consumed units to the window, saturating at zero.
// It exists for chain rollback only: if a reset happened between the consume
// and the undo, the subtraction lands in the fresher window and transiently
// under-counts usage. That race is accepted, hence the warning.
func (r *RateLimit) Undo(n uint32) {
	if n == 0 {
		return
	}

	r.warn("rolling back rate limit consumption; may land in a fresher window",
		zap.String("limiter", r.name),
		zap.Uint32("units", n))

	for {
		count := r.counter.Load()
		next := uint32(0)
		if count > n {
			next = count - n
		}
		if r.counter.CompareAndSwap(count, next) {
			return
		}
	}
}

// Close cancels the reset task. The limiter remains usable for reads, but its
// counter will no longer be zeroed. Safe to call more than once.
func (r *RateLimit) Close() {
	r.closeOnce.Do(func() {
		close(r.done)
	})
}

// resetLoop zeroes the counter once per window and republishes the advisory
// next reset instant. Doing the reset here instead of inside TryConsume keeps
// the consume path branch-free and cuts contention on the counter.
func (r *RateLimit) resetLoop() {
	ticker := time.NewTicker(r.window)
	defer ticker.Stop()

	r.debug("rate limit reset task ticking",
		zap.String("limiter", r.name),
		zap.Duration("window", r.window))

	for {
		select {
		case <-r.done:
			r.debug("rate limit reset task stopped", zap.String("limiter", r.name))
			return
		case <-ticker.C:
			// Publish the next boundary before zeroing so a caller
			// rejected right after the store is pointed at the
			// following window, not the one being opened now.
			next := r.clock().Add(r.window)
			r.nextReset.Store(&next)
			r.counter.Store(0)
			r.debug("rate limit window reset",
				zap.String("limiter", r.name),
				zap.Duration("window", r.window))
		}
	}
}

func (r *RateLimit) debug(msg string, fields ...zap.Field) {
	if r.logger != nil {
		r.logger.Debug(msg, fields...)
	}
}

func (r *RateLimit) warn(msg string, fields ...zap.Field) {
	if r.logger != nil {
		r.logger.Warn(msg, fields...)
	}
}

func saturatingAdd(a, b uint32) uint32 {
	if a > math.MaxUint32-b {
		return math.MaxUint32
	}
	return a + b
}
