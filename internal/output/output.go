package output

import (
	"fmt"
	"strings"

	"github.com/waypost/waypost/internal/core"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Formatter renders geocoding and routing results.
type Formatter interface {
	FormatGeocode(result *core.GeocodeResult) (string, error)
	FormatRoute(result *core.RouteResult) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown):
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}

// placeLabel is the single-line description of a place used by the table and
// markdown renderers.
func placeLabel(p core.Place) string {
	parts := make([]string, 0, 4)
	if p.Street != "" {
		parts = append(parts, p.Street)
	}
	if p.Postcode != "" {
		parts = append(parts, p.Postcode)
	}
	if p.City != "" {
		parts = append(parts, p.City)
	}
	if p.Country != "" {
		parts = append(parts, p.Country)
	}
	return strings.Join(parts, ", ")
}

func formatPosition(p core.Position) string {
	return fmt.Sprintf("%.5f, %.5f", p.Lat(), p.Lon())
}

func formatDistance(meters float64) string {
	if meters >= 1000 {
		return fmt.Sprintf("%.1f km", meters/1000)
	}
	return fmt.Sprintf("%.0f m", meters)
}

func formatDuration(seconds float64) string {
	total := int(seconds)
	if total >= 3600 {
		return fmt.Sprintf("%dh%02dm", total/3600, (total%3600)/60)
	}
	if total >= 60 {
		return fmt.Sprintf("%dm%02ds", total/60, total%60)
	}
	return fmt.Sprintf("%ds", total)
}

func provenanceLine(p core.Provenance) string {
	origin := p.Source
	if p.FromCache {
		origin += " (cached)"
	}
	return fmt.Sprintf("source=%s request_id=%s", origin, p.RequestID)
}
