//go:build cgo

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/waypost/waypost/internal/config"
	"github.com/waypost/waypost/internal/core"
)

func openMemoryStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s, err := Open(ctx, config.StoreConfig{Driver: "libsql", Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(ctx))
	return s
}

func TestGeocodeCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openMemoryStore(t)

	stored := &core.GeocodeResult{
		Query: "Museumsinsel",
		Places: []core.Place{
			{Name: "Museumsinsel", Coordinates: core.Position{13.4386, 52.5199}, City: "Berlin"},
		},
		Provenance: core.Provenance{RequestID: "req-1", Source: "photon"},
	}
	require.NoError(t, s.SetGeocode(ctx, "geocode|museumsinsel|10", stored, time.Hour))

	got, err := s.GetGeocode(ctx, "geocode|museumsinsel|10")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "Museumsinsel", got.Query)
	require.Len(t, got.Places, 1)
	require.True(t, got.Provenance.FromCache)
	require.NotNil(t, got.Provenance.CacheExpiresAt)
}

func TestCacheMissReturnsNil(t *testing.T) {
	s := openMemoryStore(t)

	got, err := s.GetGeocode(context.Background(), "geocode|unknown|10")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestRouteCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openMemoryStore(t)

	stored := &core.RouteResult{
		Query:    "Museumsinsel",
		Start:    core.Position{13.4, 52.5},
		Geometry: []float64{13.4, 52.5, 13.42, 52.51},
	}
	require.NoError(t, s.SetRoute(ctx, "route|13.4,52.5|museumsinsel", stored, time.Hour))

	got, err := s.GetRoute(ctx, "route|13.4,52.5|museumsinsel")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, []float64{13.4, 52.5, 13.42, 52.51}, got.Geometry)
	require.True(t, got.Provenance.FromCache)
}

func TestExpiredEntriesAreInvisible(t *testing.T) {
	ctx := context.Background()
	s := openMemoryStore(t)

	stored := &core.GeocodeResult{Query: "stale"}
	require.NoError(t, s.SetGeocode(ctx, "geocode|stale|1", stored, time.Second))

	_, err := s.DB.ExecContext(ctx, `UPDATE result_cache SET expires_at = ?`, time.Now().UTC().Add(-time.Minute).Unix())
	require.NoError(t, err)

	got, err := s.GetGeocode(ctx, "geocode|stale|1")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestZeroTTLIsNotStored(t *testing.T) {
	ctx := context.Background()
	s := openMemoryStore(t)

	require.NoError(t, s.SetGeocode(ctx, "geocode|skip|1", &core.GeocodeResult{Query: "skip"}, 0))

	got, err := s.GetGeocode(ctx, "geocode|skip|1")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestStatsAndPurge(t *testing.T) {
	ctx := context.Background()
	s := openMemoryStore(t)

	require.NoError(t, s.SetGeocode(ctx, "geocode|a|1", &core.GeocodeResult{Query: "a"}, time.Hour))
	require.NoError(t, s.SetRoute(ctx, "route|b", &core.RouteResult{Query: "b"}, time.Hour))
	require.NoError(t, s.SetRoute(ctx, "route|c", &core.RouteResult{Query: "c"}, time.Hour))

	_, err := s.DB.ExecContext(ctx, `UPDATE result_cache SET expires_at = ? WHERE key = ?`,
		time.Now().UTC().Add(-time.Minute).Unix(), "route|c")
	require.NoError(t, err)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	require.Equal(t, "geocode", stats[0].Kind)
	require.Equal(t, int64(1), stats[0].Total)
	require.Equal(t, "route", stats[1].Kind)
	require.Equal(t, int64(2), stats[1].Total)
	require.Equal(t, int64(1), stats[1].Expired)

	purged, err := s.PurgeExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), purged)

	cleared, err := s.Clear(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), cleared)
}
