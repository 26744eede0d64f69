package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/waypost/waypost/internal/core"
	"github.com/waypost/waypost/internal/core/admission"
	"github.com/waypost/waypost/internal/core/provider"
	"github.com/waypost/waypost/internal/metrics"
)

const (
	photonSource = "photon"
	routeSource  = "photon+ors"
)

// Geocoder resolves queries and coordinates to places.
type Geocoder interface {
	Geocode(ctx context.Context, req provider.GeocodeRequest) ([]core.Place, error)
	Reverse(ctx context.Context, pos core.Position) ([]core.Place, error)
}

// Router computes a route between two positions.
type Router interface {
	Directions(ctx context.Context, start, end core.Position) (*provider.Directions, error)
}

// ResultCache stores resolved results keyed by request shape.
type ResultCache interface {
	GetGeocode(ctx context.Context, key string) (*core.GeocodeResult, error)
	SetGeocode(ctx context.Context, key string, result *core.GeocodeResult, ttl time.Duration) error
	GetRoute(ctx context.Context, key string) (*core.RouteResult, error)
	SetRoute(ctx context.Context, key string, result *core.RouteResult, ttl time.Duration) error
}

// NoMatchError reports a query the geocoder could not resolve to any place.
type NoMatchError struct {
	Query string
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("no geocoding match for %q", e.Query)
}

// Planner resolves geocoding and routing requests against the upstream
// clients, composing a geocode and a directions call for routes. A route
// geocodes the destination anchored at the caller's position, takes the best
// match, and asks the routing engine for the leg between the two.
type Planner struct {
	Geocoder    Geocoder
	Router      Router
	Cache       ResultCache
	UseCache    bool
	CacheTTL    time.Duration
	ToolVersion string
	Clock       func() time.Time
}

// Geocode resolves a free-text query to candidate places.
func (p *Planner) Geocode(ctx context.Context, query string, anchor *core.Position, limit int) (result *core.GeocodeResult, err error) {
	defer func() { recordOutcome("geocode", err) }()

	if p == nil || p.Geocoder == nil {
		return nil, errors.New("planner has no geocoder")
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("geocode query is required")
	}
	if limit <= 0 {
		limit = provider.DefaultGeocodeLimit
	}

	requestedAt := p.now()
	key := geocodeKey(query, anchor, limit)
	if cached := p.cachedGeocode(ctx, key); cached != nil {
		return cached, nil
	}

	places, err := p.Geocoder.Geocode(ctx, provider.GeocodeRequest{Query: query, Limit: limit, Anchor: anchor})
	if err != nil {
		return nil, err
	}
	result = &core.GeocodeResult{
		Query:      query,
		Places:     places,
		Provenance: p.provenance(photonSource, requestedAt),
	}
	p.cacheGeocode(ctx, key, result)
	return result, nil
}

// Reverse resolves a coordinate to the places at or near it.
func (p *Planner) Reverse(ctx context.Context, pos core.Position) (result *core.GeocodeResult, err error) {
	defer func() { recordOutcome("reverse", err) }()

	if p == nil || p.Geocoder == nil {
		return nil, errors.New("planner has no geocoder")
	}

	requestedAt := p.now()
	key := reverseKey(pos)
	if cached := p.cachedGeocode(ctx, key); cached != nil {
		return cached, nil
	}

	places, err := p.Geocoder.Reverse(ctx, pos)
	if err != nil {
		return nil, err
	}
	result = &core.GeocodeResult{
		Places:     places,
		Provenance: p.provenance(photonSource, requestedAt),
	}
	p.cacheGeocode(ctx, key, result)
	return result, nil
}

// Route plans a route from start to wherever query resolves to. The geocode
// is anchored at start and only the best match is considered.
func (p *Planner) Route(ctx context.Context, start core.Position, query string) (result *core.RouteResult, err error) {
	defer func() { recordOutcome("route", err) }()

	if p == nil || p.Geocoder == nil || p.Router == nil {
		return nil, errors.New("planner has no geocoder or router")
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("route query is required")
	}

	requestedAt := p.now()
	key := routeKey(start, query)
	if p.UseCache && p.Cache != nil {
		if cached, err := p.Cache.GetRoute(ctx, key); err == nil && cached != nil {
			cached.Provenance.FromCache = true
			return cached, nil
		}
	}

	places, err := p.Geocoder.Geocode(ctx, provider.GeocodeRequest{Query: query, Limit: 1, Anchor: &start})
	if err != nil {
		return nil, err
	}
	if len(places) == 0 {
		return nil, &NoMatchError{Query: query}
	}
	destination := places[0]

	leg, err := p.Router.Directions(ctx, start, destination.Coordinates)
	if err != nil {
		return nil, err
	}

	result = &core.RouteResult{
		Query:       query,
		Start:       start,
		Destination: destination,
		Geometry:    leg.Geometry,
		DistanceM:   leg.DistanceM,
		DurationS:   leg.DurationS,
		Provenance:  p.provenance(routeSource, requestedAt),
	}
	if p.UseCache && p.Cache != nil && p.CacheTTL > 0 {
		_ = p.Cache.SetRoute(ctx, key, result, p.CacheTTL)
	}
	return result, nil
}

// recordOutcome feeds the operation counters; failures also get bucketed by
// what stopped them so dashboards can tell local admission from upstream
// trouble.
func recordOutcome(operation string, err error) {
	metrics.RecordOperation(operation, err == nil)
	if err == nil {
		return
	}

	var quota *admission.QuotaError
	var blocked *admission.BackoffError
	var noMatch *NoMatchError
	switch {
	case errors.As(err, &quota):
		metrics.RecordOperationError(operation, "quota")
	case errors.As(err, &blocked):
		metrics.RecordOperationError(operation, "backoff")
	case errors.As(err, &noMatch):
		metrics.RecordOperationError(operation, "no_match")
	default:
		metrics.RecordOperationError(operation, "upstream")
	}
}

func (p *Planner) cachedGeocode(ctx context.Context, key string) *core.GeocodeResult {
	if !p.UseCache || p.Cache == nil {
		return nil
	}
	cached, err := p.Cache.GetGeocode(ctx, key)
	if err != nil || cached == nil {
		return nil
	}
	cached.Provenance.FromCache = true
	return cached
}

func (p *Planner) cacheGeocode(ctx context.Context, key string, result *core.GeocodeResult) {
	if !p.UseCache || p.Cache == nil || p.CacheTTL <= 0 {
		return
	}
	_ = p.Cache.SetGeocode(ctx, key, result, p.CacheTTL)
}

func (p *Planner) provenance(source string, requestedAt time.Time) core.Provenance {
	return core.Provenance{
		RequestID:   uuid.New().String(),
		RequestedAt: requestedAt,
		ResolvedAt:  p.now(),
		Source:      source,
		ToolVersion: p.ToolVersion,
	}
}

func (p *Planner) now() time.Time {
	if p != nil && p.Clock != nil {
		return p.Clock()
	}
	return time.Now().UTC()
}

func geocodeKey(query string, anchor *core.Position, limit int) string {
	key := "geocode|" + strings.ToLower(query) + "|" + strconv.Itoa(limit)
	if anchor != nil {
		key += "|" + coordKey(*anchor)
	}
	return key
}

func reverseKey(pos core.Position) string {
	return "reverse|" + coordKey(pos)
}

func routeKey(start core.Position, query string) string {
	return "route|" + coordKey(start) + "|" + strings.ToLower(query)
}

func coordKey(pos core.Position) string {
	return strconv.FormatFloat(pos.Lon(), 'f', 6, 64) + "," + strconv.FormatFloat(pos.Lat(), 'f', 6, 64)
}
