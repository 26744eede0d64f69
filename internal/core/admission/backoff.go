package admission

import (
	"sync/atomic"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
)

// DefaultBackoff is applied when an upstream signals overload without a usable
// Retry-After value. A stand-in for a proper stateful backoff algorithm; kept
// as a fixed pause until one is warranted.
const DefaultBackoff = 30 * time.Second

// BackerOff gates calls to one upstream endpoint after it signals overload.
// It holds at most one "blocked until" deadline, overwritten on every set and
// cleared lazily the first time a caller checks after expiry.
type BackerOff struct {
	name  string
	until atomic.Pointer[time.Time]

	clock  func() time.Time
	logger *logging.Logger
}

// NewBackerOff creates an open gate for the named upstream endpoint.
func NewBackerOff(name string) *BackerOff {
	return &BackerOff{
		name:  name,
		clock: func() time.Time { return time.Now() },
	}
}

// WithClock overrides the time source. Intended for tests.
func (b *BackerOff) WithClock(clock func() time.Time) *BackerOff {
	b.clock = clock
	return b
}

// WithLogger attaches a logger for backoff diagnostics.
func (b *BackerOff) WithLogger(logger *logging.Logger) *BackerOff {
	b.logger = logger
	return b
}

// Name returns the diagnostic label.
func (b *BackerOff) Name() string { return b.name }

// RetryUntil returns the stored deadline, if any.
func (b *BackerOff) RetryUntil() *time.Time {
	return b.until.Load()
}

// CanRequest reports whether a request to the upstream is currently permitted.
// A deadline that has passed is cleared optimistically: losing that swap to a
// concurrent setter with a fresher deadline is harmless and ignored.
func (b *BackerOff) CanRequest() error {
	stored := b.until.Load()
	if stored == nil {
		return nil
	}

	if !b.clock().Before(*stored) {
		b.until.CompareAndSwap(stored, nil)
		return nil
	}

	return &BackoffError{Name: b.name, Until: *stored}
}

// ParseAndSet parses a Retry-After value and, on success, overwrites the
// deadline with now + the parsed delay. On ErrRetryAfterFromPast or a
// *ParseError the stored state is left untouched and the error surfaced so the
// call site can decide whether to fall back to SetDefaultBackoff.
func (b *BackerOff) ParseAndSet(value string) error {
	delay, err := ParseRetryAfter(value, b.clock())
	if err != nil {
		return err
	}
	b.setUntil(b.clock().Add(delay))
	return nil
}

// SetDefaultBackoff blocks the upstream for the fixed default duration. Used
// when an overload response carries no usable Retry-After value.
func (b *BackerOff) SetDefaultBackoff() {
	b.setUntil(b.clock().Add(DefaultBackoff))
}

// setUntil overwrites the deadline unconditionally. An earlier, longer
// deadline can be clobbered by a later, shorter one arriving out of order;
// accepted as a rare, low-impact race rather than guarded with a swap loop.
func (b *BackerOff) setUntil(at time.Time) {
	if b.logger != nil {
		b.logger.Info("setting upstream backoff",
			zap.String("endpoint", b.name),
			zap.Duration("for", at.Sub(b.clock())))
	}
	b.until.Store(&at)
}
