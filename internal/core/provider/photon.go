package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/waypost/waypost/internal/core"
)

const (
	photonSearchPath  = "/api/"
	photonReversePath = "/reverse"

	// DefaultGeocodeLimit is how many candidate places a search returns when
	// the caller does not say otherwise.
	DefaultGeocodeLimit = 10
)

// GeocodeRequest is a forward-geocoding query against Photon. Anchor biases
// results toward a coordinate when set.
type GeocodeRequest struct {
	Query  string
	Limit  int
	Anchor *core.Position
}

// PhotonClient calls the Photon geocoder (hosted by Komoot). The API is
// unauthenticated; the guard is the only thing standing between us and a 429.
type PhotonClient struct {
	Client       *http.Client
	BaseURL      string
	GeocodeGuard *Guard
	ReverseGuard *Guard
	UserAgent    string
}

// Geocode resolves a free-text query to candidate places.
func (c *PhotonClient) Geocode(ctx context.Context, req GeocodeRequest) ([]core.Place, error) {
	if c == nil {
		return nil, errors.New("photon client is not configured")
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, errors.New("geocode query is required")
	}
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultGeocodeLimit
	}

	values := url.Values{}
	values.Set("q", query)
	values.Set("limit", strconv.Itoa(limit))
	if req.Anchor != nil {
		values.Set("lon", formatCoord(req.Anchor.Lon()))
		values.Set("lat", formatCoord(req.Anchor.Lat()))
	}
	return c.fetch(ctx, c.GeocodeGuard, photonSearchPath, values)
}

// Reverse resolves a coordinate to the places at or near it.
func (c *PhotonClient) Reverse(ctx context.Context, pos core.Position) ([]core.Place, error) {
	if c == nil {
		return nil, errors.New("photon client is not configured")
	}
	values := url.Values{}
	values.Set("lon", formatCoord(pos.Lon()))
	values.Set("lat", formatCoord(pos.Lat()))
	return c.fetch(ctx, c.ReverseGuard, photonReversePath, values)
}

func (c *PhotonClient) fetch(ctx context.Context, guard *Guard, path string, values url.Values) ([]core.Place, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := guard.Admit(1); err != nil {
		return nil, err
	}

	base, err := c.baseURL()
	if err != nil {
		guard.Undo(1)
		return nil, err
	}
	target := base.ResolveReference(&url.URL{Path: path, RawQuery: values.Encode()})

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		guard.Undo(1)
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := c.client().Do(httpReq)
	if err != nil {
		return nil, &UpstreamError{Endpoint: guard.Name(), Message: err.Error()}
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	guard.Observe(resp)
	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{Endpoint: guard.Name(), StatusCode: resp.StatusCode, Message: "geocoder returned a non-OK status"}
	}

	var collection featureCollection
	if err := json.NewDecoder(resp.Body).Decode(&collection); err != nil {
		return nil, &UpstreamError{Endpoint: guard.Name(), StatusCode: resp.StatusCode, Message: fmt.Sprintf("unparseable geocoder payload: %v", err)}
	}
	return placesFromFeatures(collection.Features), nil
}

func (c *PhotonClient) client() *http.Client {
	if c != nil && c.Client != nil {
		return c.Client
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func (c *PhotonClient) baseURL() (*url.URL, error) {
	raw := "https://photon.komoot.io"
	if c != nil && c.BaseURL != "" {
		raw = c.BaseURL
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid photon base URL %q: %w", raw, err)
	}
	return parsed, nil
}

func placesFromFeatures(features []feature) []core.Place {
	places := make([]core.Place, 0, len(features))
	for _, f := range features {
		if f.Geometry.Type != "Point" || len(f.Geometry.Point) < 2 {
			continue
		}
		places = append(places, core.Place{
			Name:        f.Properties.Name,
			Coordinates: core.Position{f.Geometry.Point[0], f.Geometry.Point[1]},
			Country:     f.Properties.Country,
			City:        f.Properties.City,
			Street:      f.Properties.Street,
			Postcode:    f.Properties.Postcode,
			Kind:        f.Properties.OSMValue,
		})
	}
	return places
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
