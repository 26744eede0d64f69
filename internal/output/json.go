package output

import (
	"encoding/json"

	"github.com/waypost/waypost/internal/core"
)

// JSONFormatter renders results as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatGeocode renders a geocoding result as JSON.
func (f *JSONFormatter) FormatGeocode(result *core.GeocodeResult) (string, error) {
	return f.marshal(result)
}

// FormatRoute renders a route result as JSON.
func (f *JSONFormatter) FormatRoute(result *core.RouteResult) (string, error) {
	return f.marshal(result)
}

func (f *JSONFormatter) marshal(value any) (string, error) {
	if value == nil {
		return "", nil
	}

	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(value, "", "  ")
	} else {
		data, err = json.Marshal(value)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
