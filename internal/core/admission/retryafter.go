package admission

import (
	"math"
	"net/http"
	"strconv"
	"time"
)

// ParseRetryAfter converts the literal value of a Retry-After header into a
// duration from now, per RFC 9110 §10.2.3.
//
// The delay-seconds grammar is tried first: a non-negative base-10 integer
// (the full uint64 range; durations beyond what time.Duration can hold
// saturate). Decimal values and a leading '-' are parse failures, not zero.
//
// Failing that, the value is parsed as an HTTP-date in the three recognized
// grammars, preferred first: IMF-fixdate, obsolete RFC 850, and asctime. A
// future timestamp yields the duration until it; one at or before now yields
// ErrRetryAfterFromPast, which is deliberately not a parse failure.
//
// The function is pure: the caller supplies now.
func ParseRetryAfter(value string, now time.Time) (time.Duration, error) {
	if secs, err := strconv.ParseUint(value, 10, 64); err == nil {
		return secondsToDuration(secs), nil
	}

	// http.ParseTime tries exactly the three RFC 9110 date grammars, in
	// preference order.
	if at, err := http.ParseTime(value); err == nil {
		if at.After(now) {
			return at.Sub(now), nil
		}
		return 0, ErrRetryAfterFromPast
	}

	return 0, &ParseError{Value: value}
}

func secondsToDuration(secs uint64) time.Duration {
	if secs > uint64(math.MaxInt64/int64(time.Second)) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(secs) * time.Second
}
