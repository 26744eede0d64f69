package output

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/waypost/waypost/internal/core"
)

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("table")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	format, err = ParseFormat("JSON")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, format)

	format, err = ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	_, err = ParseFormat("csv")
	require.Error(t, err)
}

func sampleGeocode() *core.GeocodeResult {
	return &core.GeocodeResult{
		Query: "Museumsinsel",
		Places: []core.Place{
			{
				Name:        "Museumsinsel",
				Coordinates: core.Position{13.4386, 52.5199},
				Country:     "Germany",
				City:        "Berlin",
				Kind:        "museum",
			},
		},
		Provenance: core.Provenance{
			RequestID: "req-1",
			Source:    "photon",
		},
	}
}

func sampleRoute() *core.RouteResult {
	return &core.RouteResult{
		Query:       "Museumsinsel",
		Start:       core.Position{13.4, 52.5},
		Destination: core.Place{Name: "Museumsinsel", Coordinates: core.Position{13.4386, 52.5199}},
		Geometry:    []float64{13.4, 52.5, 13.42, 52.51, 13.4386, 52.5199},
		DistanceM:   3120,
		DurationS:   415,
		Provenance: core.Provenance{
			RequestID: "req-2",
			Source:    "photon+ors",
			FromCache: true,
		},
	}
}

func TestJSONFormatter(t *testing.T) {
	f := &JSONFormatter{Indent: true}

	rendered, err := f.FormatGeocode(sampleGeocode())
	require.NoError(t, err)
	require.Contains(t, rendered, "\"name\": \"Museumsinsel\"")
	require.Contains(t, rendered, "\"source\": \"photon\"")

	rendered, err = f.FormatRoute(sampleRoute())
	require.NoError(t, err)
	require.Contains(t, rendered, "\"distance_m\": 3120")
}

func TestTableFormatter(t *testing.T) {
	f := &TableFormatter{}

	rendered, err := f.FormatGeocode(sampleGeocode())
	require.NoError(t, err)
	require.Contains(t, rendered, "Museumsinsel")
	require.Contains(t, rendered, "Berlin, Germany")
	require.Contains(t, rendered, "1 MATCH(ES)")
	require.Contains(t, rendered, "source=photon")

	rendered, err = f.FormatRoute(sampleRoute())
	require.NoError(t, err)
	require.Contains(t, rendered, "3.1 km")
	require.Contains(t, rendered, "6m55s")
	require.Contains(t, rendered, "source=photon+ors (cached)")
}

func TestMarkdownFormatter(t *testing.T) {
	f := &MarkdownFormatter{}

	rendered, err := f.FormatGeocode(sampleGeocode())
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(rendered, "## Matches for Museumsinsel"))
	require.Contains(t, rendered, "| Museumsinsel | museum |")

	rendered, err = f.FormatRoute(sampleRoute())
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(rendered, "## Route to Museumsinsel"))
	require.Contains(t, rendered, "| Route points | 3 |")
}

func TestFormatLimits(t *testing.T) {
	until := time.Date(2026, 3, 1, 12, 0, 30, 0, time.UTC)
	rows := []LimitStatus{
		{
			Endpoint:     "ors-directions",
			Name:         "ors-directions-per-minute",
			Limit:        40,
			Window:       "1m0s",
			Used:         3,
			NextReset:    time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC),
			BackoffUntil: &until,
		},
		{
			Endpoint: "photon-geocode",
			Name:     "photon-geocode-per-minute",
			Limit:    100,
			Window:   "1m0s",
		},
	}

	rendered, err := FormatLimits(FormatTable, rows)
	require.NoError(t, err)
	require.Contains(t, rendered, "ors-directions")
	require.Contains(t, rendered, "2026-03-01T12:00:30Z")

	rendered, err = FormatLimits(FormatJSON, rows)
	require.NoError(t, err)
	require.Contains(t, rendered, "\"used\": 3")
}
