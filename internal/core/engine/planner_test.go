package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/waypost/waypost/internal/core"
	"github.com/waypost/waypost/internal/core/provider"
)

type stubGeocoder struct {
	places   []core.Place
	err      error
	lastReq  provider.GeocodeRequest
	lastPos  core.Position
	geocodes int
	reverses int
}

func (s *stubGeocoder) Geocode(ctx context.Context, req provider.GeocodeRequest) ([]core.Place, error) {
	s.geocodes++
	s.lastReq = req
	return s.places, s.err
}

func (s *stubGeocoder) Reverse(ctx context.Context, pos core.Position) ([]core.Place, error) {
	s.reverses++
	s.lastPos = pos
	return s.places, s.err
}

type stubRouter struct {
	leg   *provider.Directions
	err   error
	start core.Position
	end   core.Position
	calls int
}

func (s *stubRouter) Directions(ctx context.Context, start, end core.Position) (*provider.Directions, error) {
	s.calls++
	s.start = start
	s.end = end
	return s.leg, s.err
}

type memoryCache struct {
	geocodes map[string]*core.GeocodeResult
	routes   map[string]*core.RouteResult
}

func newMemoryCache() *memoryCache {
	return &memoryCache{
		geocodes: make(map[string]*core.GeocodeResult),
		routes:   make(map[string]*core.RouteResult),
	}
}

func (m *memoryCache) GetGeocode(ctx context.Context, key string) (*core.GeocodeResult, error) {
	return m.geocodes[key], nil
}

func (m *memoryCache) SetGeocode(ctx context.Context, key string, result *core.GeocodeResult, ttl time.Duration) error {
	m.geocodes[key] = result
	return nil
}

func (m *memoryCache) GetRoute(ctx context.Context, key string) (*core.RouteResult, error) {
	return m.routes[key], nil
}

func (m *memoryCache) SetRoute(ctx context.Context, key string, result *core.RouteResult, ttl time.Duration) error {
	m.routes[key] = result
	return nil
}

func testPlace() core.Place {
	return core.Place{Name: "Museumsinsel", Coordinates: core.Position{13.4386, 52.5199}, City: "Berlin"}
}

func TestPlannerRouteComposesGeocodeAndDirections(t *testing.T) {
	geocoder := &stubGeocoder{places: []core.Place{testPlace()}}
	router := &stubRouter{leg: &provider.Directions{
		Geometry:  []float64{13.4, 52.5, 13.42, 52.51},
		DistanceM: 1500,
		DurationS: 300,
	}}
	planner := &Planner{Geocoder: geocoder, Router: router, ToolVersion: "test"}

	start := core.Position{13.4, 52.5}
	result, err := planner.Route(context.Background(), start, "Museumsinsel")
	require.NoError(t, err)

	require.Equal(t, 1, geocoder.geocodes)
	require.Equal(t, 1, geocoder.lastReq.Limit, "route geocoding wants only the best match")
	require.NotNil(t, geocoder.lastReq.Anchor)
	require.Equal(t, start, *geocoder.lastReq.Anchor)

	require.Equal(t, start, router.start)
	require.Equal(t, testPlace().Coordinates, router.end)

	require.Equal(t, "Museumsinsel", result.Destination.Name)
	require.Equal(t, []float64{13.4, 52.5, 13.42, 52.51}, result.Geometry)
	require.Equal(t, float64(1500), result.DistanceM)
	require.NotEmpty(t, result.Provenance.RequestID)
	require.Equal(t, "photon+ors", result.Provenance.Source)
	require.False(t, result.Provenance.FromCache)
}

func TestPlannerRouteNoMatch(t *testing.T) {
	geocoder := &stubGeocoder{}
	router := &stubRouter{}
	planner := &Planner{Geocoder: geocoder, Router: router}

	_, err := planner.Route(context.Background(), core.Position{13.4, 52.5}, "nowhere at all")
	var noMatch *NoMatchError
	require.ErrorAs(t, err, &noMatch)
	require.Equal(t, "nowhere at all", noMatch.Query)
	require.Zero(t, router.calls, "routing must not run without a destination")
}

func TestPlannerRoutePropagatesUpstreamErrors(t *testing.T) {
	wantErr := errors.New("boom")
	planner := &Planner{Geocoder: &stubGeocoder{err: wantErr}, Router: &stubRouter{}}

	_, err := planner.Route(context.Background(), core.Position{13.4, 52.5}, "anywhere")
	require.ErrorIs(t, err, wantErr)
}

func TestPlannerGeocode(t *testing.T) {
	geocoder := &stubGeocoder{places: []core.Place{testPlace()}}
	planner := &Planner{Geocoder: geocoder, ToolVersion: "test"}

	result, err := planner.Geocode(context.Background(), "  Museumsinsel  ", nil, 0)
	require.NoError(t, err)
	require.Equal(t, "Museumsinsel", result.Query)
	require.Equal(t, provider.DefaultGeocodeLimit, geocoder.lastReq.Limit)
	require.Len(t, result.Places, 1)
	require.Equal(t, "photon", result.Provenance.Source)
}

func TestPlannerGeocodeEmptyQuery(t *testing.T) {
	planner := &Planner{Geocoder: &stubGeocoder{}}
	_, err := planner.Geocode(context.Background(), "   ", nil, 5)
	require.Error(t, err)
}

func TestPlannerReverse(t *testing.T) {
	geocoder := &stubGeocoder{places: []core.Place{testPlace()}}
	planner := &Planner{Geocoder: geocoder}

	pos := core.Position{13.4386, 52.5199}
	result, err := planner.Reverse(context.Background(), pos)
	require.NoError(t, err)
	require.Equal(t, pos, geocoder.lastPos)
	require.Len(t, result.Places, 1)
}

func TestPlannerGeocodeCacheHit(t *testing.T) {
	geocoder := &stubGeocoder{places: []core.Place{testPlace()}}
	cache := newMemoryCache()
	planner := &Planner{Geocoder: geocoder, Cache: cache, UseCache: true, CacheTTL: time.Hour}

	first, err := planner.Geocode(context.Background(), "Museumsinsel", nil, 3)
	require.NoError(t, err)
	require.False(t, first.Provenance.FromCache)

	second, err := planner.Geocode(context.Background(), "museumsinsel", nil, 3)
	require.NoError(t, err)
	require.True(t, second.Provenance.FromCache)
	require.Equal(t, 1, geocoder.geocodes, "the second lookup must come from cache")
}

func TestPlannerRouteCacheHit(t *testing.T) {
	geocoder := &stubGeocoder{places: []core.Place{testPlace()}}
	router := &stubRouter{leg: &provider.Directions{Geometry: []float64{1, 2}}}
	cache := newMemoryCache()
	planner := &Planner{Geocoder: geocoder, Router: router, Cache: cache, UseCache: true, CacheTTL: time.Hour}

	start := core.Position{13.4, 52.5}
	_, err := planner.Route(context.Background(), start, "Museumsinsel")
	require.NoError(t, err)

	cached, err := planner.Route(context.Background(), start, "Museumsinsel")
	require.NoError(t, err)
	require.True(t, cached.Provenance.FromCache)
	require.Equal(t, 1, router.calls)
}

func TestPlannerCacheDisabledByDefault(t *testing.T) {
	geocoder := &stubGeocoder{places: []core.Place{testPlace()}}
	cache := newMemoryCache()
	planner := &Planner{Geocoder: geocoder, Cache: cache}

	_, err := planner.Geocode(context.Background(), "Museumsinsel", nil, 3)
	require.NoError(t, err)
	require.Empty(t, cache.geocodes)
}
