package output

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/waypost/waypost/internal/core"
)

// TableFormatter renders results as an ASCII table.
type TableFormatter struct{}

// FormatGeocode renders a geocoding result as a table.
func (f *TableFormatter) FormatGeocode(result *core.GeocodeResult) (string, error) {
	if result == nil {
		return "", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Name", "Kind", "Coordinates", "Address"})

	for _, place := range result.Places {
		t.AppendRow(table.Row{
			place.Name,
			place.Kind,
			formatPosition(place.Coordinates),
			placeLabel(place),
		})
	}

	if len(result.Places) > 0 {
		t.AppendFooter(table.Row{
			"",
			"",
			fmt.Sprintf("%d match(es)", len(result.Places)),
			"",
		})
	}

	rendered := t.Render()
	rendered += "\n" + provenanceLine(result.Provenance)
	return rendered, nil
}

// FormatRoute renders a route result as a table.
func (f *TableFormatter) FormatRoute(result *core.RouteResult) (string, error) {
	if result == nil {
		return "", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRows([]table.Row{
		{"Query", result.Query},
		{"Start", formatPosition(result.Start)},
		{"Destination", result.Destination.Name},
		{"Coordinates", formatPosition(result.Destination.Coordinates)},
		{"Distance", formatDistance(result.DistanceM)},
		{"Duration", formatDuration(result.DurationS)},
		{"Route points", fmt.Sprintf("%d", len(result.Geometry)/2)},
	})

	rendered := t.Render()
	rendered += "\n" + provenanceLine(result.Provenance)
	return rendered, nil
}
