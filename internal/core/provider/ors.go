package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/waypost/waypost/internal/core"
)

const orsDirectionsPath = "/v2/directions/driving-car/geojson"

// Directions is a computed route between two positions.
type Directions struct {
	// Geometry is the route LineString flattened to alternating lon/lat
	// values.
	Geometry  []float64
	DistanceM float64
	DurationS float64
}

// ORSClient calls the OpenRouteService directions API. Every request carries
// the API key in the Authorization header.
type ORSClient struct {
	Client    *http.Client
	BaseURL   string
	APIKey    string
	Guard     *Guard
	UserAgent string
}

type orsDirectionsRequest struct {
	Coordinates  [][2]float64 `json:"coordinates"`
	Instructions bool         `json:"instructions"`
}

// Directions computes a driving route from start to end.
func (c *ORSClient) Directions(ctx context.Context, start, end core.Position) (*Directions, error) {
	if c == nil {
		return nil, errors.New("openrouteservice client is not configured")
	}
	if c.APIKey == "" {
		return nil, errors.New("openrouteservice API key is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if err := c.Guard.Admit(1); err != nil {
		return nil, err
	}

	base, err := c.baseURL()
	if err != nil {
		c.Guard.Undo(1)
		return nil, err
	}
	target := base.ResolveReference(&url.URL{Path: orsDirectionsPath})

	body, err := json.Marshal(orsDirectionsRequest{
		Coordinates:  [][2]float64{start, end},
		Instructions: false,
	})
	if err != nil {
		c.Guard.Undo(1)
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), bytes.NewReader(body))
	if err != nil {
		c.Guard.Undo(1)
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", c.APIKey)
	if c.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := c.client().Do(httpReq)
	if err != nil {
		return nil, &UpstreamError{Endpoint: c.Guard.Name(), Message: err.Error()}
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	c.Guard.Observe(resp)
	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{Endpoint: c.Guard.Name(), StatusCode: resp.StatusCode, Message: "directions API returned a non-OK status"}
	}

	var collection featureCollection
	if err := json.NewDecoder(resp.Body).Decode(&collection); err != nil {
		return nil, &UpstreamError{Endpoint: c.Guard.Name(), StatusCode: resp.StatusCode, Message: fmt.Sprintf("unparseable directions payload: %v", err)}
	}
	return directionsFromFeatures(c.Guard.Name(), resp.StatusCode, collection.Features)
}

func directionsFromFeatures(endpoint string, status int, features []feature) (*Directions, error) {
	for _, f := range features {
		if f.Geometry.Type != "LineString" || len(f.Geometry.Line) == 0 {
			continue
		}
		geometry := make([]float64, 0, len(f.Geometry.Line)*2)
		for _, pos := range f.Geometry.Line {
			if len(pos) < 2 {
				return nil, &UpstreamError{Endpoint: endpoint, StatusCode: status, Message: "route coordinate with fewer than two components"}
			}
			geometry = append(geometry, pos[0], pos[1])
		}
		return &Directions{
			Geometry:  geometry,
			DistanceM: f.Properties.Summary.Distance,
			DurationS: f.Properties.Summary.Duration,
		}, nil
	}
	return nil, &UpstreamError{Endpoint: endpoint, StatusCode: status, Message: "directions response contains no route geometry"}
}

func (c *ORSClient) client() *http.Client {
	if c != nil && c.Client != nil {
		return c.Client
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func (c *ORSClient) baseURL() (*url.URL, error) {
	raw := "https://api.openrouteservice.org"
	if c != nil && c.BaseURL != "" {
		raw = c.BaseURL
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid openrouteservice base URL %q: %w", raw, err)
	}
	return parsed, nil
}
