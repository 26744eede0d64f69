package admission

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseRetryAfterDelaySeconds(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	delay, err := ParseRetryAfter("60", now)
	require.NoError(t, err)
	require.Equal(t, 60*time.Second, delay)

	delay, err = ParseRetryAfter("0", now)
	require.NoError(t, err)
	require.Equal(t, time.Duration(0), delay)
}

func TestParseRetryAfterHugeDelaySaturates(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	delay, err := ParseRetryAfter("18446744073709551615", now)
	require.NoError(t, err)
	require.Equal(t, time.Duration(math.MaxInt64), delay)
}

func TestParseRetryAfterHTTPDates(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)

	// The three RFC 9110 date grammars: IMF-fixdate, obsolete RFC 850,
	// and asctime.
	layouts := map[string]string{
		"imf-fixdate": "Mon, 02 Jan 2006 15:04:05 GMT",
		"rfc850":      time.RFC850,
		"asctime":     time.ANSIC,
	}

	for name, layout := range layouts {
		t.Run(name, func(t *testing.T) {
			delay, err := ParseRetryAfter(future.Format(layout), now)
			require.NoError(t, err)
			require.Equal(t, time.Hour, delay)
		})
	}
}

func TestParseRetryAfterPastDateIsNotParseFail(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)

	layouts := []string{"Mon, 02 Jan 2006 15:04:05 GMT", time.RFC850, time.ANSIC}
	for _, layout := range layouts {
		_, err := ParseRetryAfter(past.Format(layout), now)
		require.ErrorIs(t, err, ErrRetryAfterFromPast)
	}

	// Exactly now counts as passed too.
	_, err := ParseRetryAfter(now.Format("Mon, 02 Jan 2006 15:04:05 GMT"), now)
	require.ErrorIs(t, err, ErrRetryAfterFromPast)
}

func TestParseRetryAfterMalformed(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for _, value := range []string{"-60", "3.5", "soon", "", "60s", "Mon 02 Jan"} {
		_, err := ParseRetryAfter(value, now)

		var parseErr *ParseError
		require.ErrorAs(t, err, &parseErr, "value %q", value)
		require.Equal(t, value, parseErr.Value)
		require.NotErrorIs(t, err, ErrRetryAfterFromPast)
	}
}
