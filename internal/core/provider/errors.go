package provider

import "fmt"

// UpstreamError reports a failed call to an external API: a transport
// failure, an unexpected status, or an unparseable payload.
type UpstreamError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("upstream %s returned %d: %s", e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upstream %s: %s", e.Endpoint, e.Message)
}
