package provider

import (
	"encoding/json"
	"fmt"
)

// Minimal GeoJSON decoding for the two upstream payloads we consume. Photon
// returns Point features with address properties; ORS returns one LineString
// feature with a route summary. Geometry coordinates are one of two shapes
// depending on the type, so decoding happens in two steps.
type featureCollection struct {
	Features []feature `json:"features"`
}

type feature struct {
	Geometry   geometry          `json:"geometry"`
	Properties featureProperties `json:"properties"`
}

type featureProperties struct {
	Name     string       `json:"name"`
	Country  string       `json:"country"`
	City     string       `json:"city"`
	Street   string       `json:"street"`
	Postcode string       `json:"postcode"`
	OSMValue string       `json:"osm_value"`
	Summary  routeSummary `json:"summary"`
}

type routeSummary struct {
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
}

type geometry struct {
	Type  string
	Point []float64
	Line  [][]float64
}

func (g *geometry) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	g.Type = raw.Type
	switch raw.Type {
	case "Point":
		if err := json.Unmarshal(raw.Coordinates, &g.Point); err != nil {
			return fmt.Errorf("decode Point coordinates: %w", err)
		}
	case "LineString":
		if err := json.Unmarshal(raw.Coordinates, &g.Line); err != nil {
			return fmt.Errorf("decode LineString coordinates: %w", err)
		}
	}
	return nil
}
