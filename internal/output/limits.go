package output

import (
	"encoding/json"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

// LimitStatus is one fixed-window quota row, flattened for rendering.
type LimitStatus struct {
	Endpoint     string     `json:"endpoint"`
	Name         string     `json:"name"`
	Limit        uint32     `json:"limit"`
	Window       string     `json:"window"`
	Used         uint32     `json:"used"`
	NextReset    time.Time  `json:"next_reset"`
	BackoffUntil *time.Time `json:"backoff_until,omitempty"`
}

// FormatLimits renders quota rows in the requested format. Markdown falls
// back to the table rendering.
func FormatLimits(format Format, rows []LimitStatus) (string, error) {
	if format == FormatJSON {
		data, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Endpoint", "Limit", "Used", "Window", "Resets", "Backoff Until"})

	for _, row := range rows {
		backoff := "-"
		if row.BackoffUntil != nil {
			backoff = row.BackoffUntil.UTC().Format(time.RFC3339)
		}
		reset := "-"
		if !row.NextReset.IsZero() {
			reset = row.NextReset.UTC().Format(time.RFC3339)
		}
		t.AppendRow(table.Row{
			row.Endpoint,
			row.Limit,
			row.Used,
			row.Window,
			reset,
			backoff,
		})
	}

	return t.Render(), nil
}
