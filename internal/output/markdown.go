package output

import (
	"fmt"
	"strings"

	"github.com/waypost/waypost/internal/core"
)

// MarkdownFormatter renders results as a markdown table.
type MarkdownFormatter struct{}

// FormatGeocode renders a geocoding result as Markdown.
func (f *MarkdownFormatter) FormatGeocode(result *core.GeocodeResult) (string, error) {
	if result == nil {
		return "", nil
	}

	var sb strings.Builder
	title := result.Query
	if title == "" {
		title = "reverse lookup"
	}
	sb.WriteString(fmt.Sprintf("## Matches for %s\n\n", escapeMarkdownCell(title)))
	sb.WriteString("| Name | Kind | Coordinates | Address |\n")
	sb.WriteString("|------|------|-------------|--------|\n")

	for _, place := range result.Places {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
			escapeMarkdownCell(place.Name),
			escapeMarkdownCell(place.Kind),
			formatPosition(place.Coordinates),
			escapeMarkdownCell(placeLabel(place)),
		))
	}

	sb.WriteString(fmt.Sprintf("\n%s\n", provenanceLine(result.Provenance)))
	return sb.String(), nil
}

// FormatRoute renders a route result as Markdown.
func (f *MarkdownFormatter) FormatRoute(result *core.RouteResult) (string, error) {
	if result == nil {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Route to %s\n\n", escapeMarkdownCell(result.Query)))
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|-------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Start | %s |\n", formatPosition(result.Start)))
	sb.WriteString(fmt.Sprintf("| Destination | %s |\n", escapeMarkdownCell(result.Destination.Name)))
	sb.WriteString(fmt.Sprintf("| Coordinates | %s |\n", formatPosition(result.Destination.Coordinates)))
	sb.WriteString(fmt.Sprintf("| Distance | %s |\n", formatDistance(result.DistanceM)))
	sb.WriteString(fmt.Sprintf("| Duration | %s |\n", formatDuration(result.DurationS)))
	sb.WriteString(fmt.Sprintf("| Route points | %d |\n", len(result.Geometry)/2))

	sb.WriteString(fmt.Sprintf("\n%s\n", provenanceLine(result.Provenance)))
	return sb.String(), nil
}

func escapeMarkdownCell(value string) string {
	return strings.ReplaceAll(value, "|", "\\|")
}
