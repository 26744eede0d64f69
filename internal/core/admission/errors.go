package admission

import (
	"errors"
	"fmt"
	"time"
)

// QuotaError reports a fixed-window limit that could not admit the requested
// consumption. NextReset is advisory: it may be stale by up to one reset tick.
type QuotaError struct {
	Name      string
	NextReset time.Time
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("rate limit %q exhausted, window resets around %s", e.Name, e.NextReset.Format(time.RFC3339))
}

// BackoffError reports a backoff gate whose deadline has not yet elapsed.
type BackoffError struct {
	Name  string
	Until time.Time
}

func (e *BackoffError) Error() string {
	return fmt.Sprintf("upstream %q backed off until %s", e.Name, e.Until.Format(time.RFC3339))
}

// ParseError reports a Retry-After value that matched neither the
// delay-seconds nor the HTTP-date grammar.
type ParseError struct {
	Value string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %q as delay-seconds or HTTP-date", e.Value)
}

// ErrRetryAfterFromPast marks a Retry-After value that parsed cleanly but
// denotes a non-future instant. Distinct from a parse failure: the caller may
// ignore it entirely, since a past deadline implies no blocking was intended.
var ErrRetryAfterFromPast = errors.New("retry-after value represents a time already passed")
