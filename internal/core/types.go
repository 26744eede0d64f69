package core

import "time"

// Position is a lon/lat coordinate pair, GeoJSON axis order.
type Position [2]float64

// Lon returns the longitude component.
func (p Position) Lon() float64 { return p[0] }

// Lat returns the latitude component.
func (p Position) Lat() float64 { return p[1] }

// Provenance captures metadata about how a result was resolved.
type Provenance struct {
	RequestID      string     `json:"request_id"`
	RequestedAt    time.Time  `json:"requested_at"`
	ResolvedAt     time.Time  `json:"resolved_at"`
	Source         string     `json:"source"`
	Server         string     `json:"server,omitempty"`
	FromCache      bool       `json:"from_cache"`
	CacheExpiresAt *time.Time `json:"cache_expires_at,omitempty"`
	ToolVersion    string     `json:"tool_version"`
}

// Place is a single geocoding match.
type Place struct {
	Name        string   `json:"name"`
	Coordinates Position `json:"coordinates"`
	Country     string   `json:"country,omitempty"`
	City        string   `json:"city,omitempty"`
	Street      string   `json:"street,omitempty"`
	Postcode    string   `json:"postcode,omitempty"`
	Kind        string   `json:"kind,omitempty"`
}

// GeocodeResult reports the matches for one forward or reverse lookup.
type GeocodeResult struct {
	Query      string     `json:"query,omitempty"`
	Places     []Place    `json:"places"`
	Provenance Provenance `json:"provenance"`
}

// RouteResult reports a resolved route between a start position and a
// geocoded destination. Geometry is the route LineString flattened to
// alternating lon/lat values, which is what the app consumes.
type RouteResult struct {
	Query       string     `json:"query"`
	Start       Position   `json:"start"`
	Destination Place      `json:"destination"`
	Geometry    []float64  `json:"route"`
	DistanceM   float64    `json:"distance_m,omitempty"`
	DurationS   float64    `json:"duration_s,omitempty"`
	Provenance  Provenance `json:"provenance"`
}
