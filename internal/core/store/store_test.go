package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/waypost/waypost/internal/config"
)

func TestResolveDSN(t *testing.T) {
	t.Run("URLUsesRawValue", func(t *testing.T) {
		cfg := config.StoreConfig{
			URL:       "libsql://example.turso.io",
			AuthToken: "token123",
		}
		dsn, err := resolveDSN(cfg)
		require.NoError(t, err)
		require.Equal(t, "libsql://example.turso.io?authToken=token123", dsn)
	})

	t.Run("URLKeepsExistingToken", func(t *testing.T) {
		cfg := config.StoreConfig{
			URL:       "libsql://example.turso.io?authToken=original",
			AuthToken: "ignored",
		}
		dsn, err := resolveDSN(cfg)
		require.NoError(t, err)
		require.Equal(t, "libsql://example.turso.io?authToken=original", dsn)
	})

	t.Run("MemoryPathPassesThrough", func(t *testing.T) {
		dsn, err := resolveDSN(config.StoreConfig{Path: ":memory:"})
		require.NoError(t, err)
		require.Equal(t, ":memory:", dsn)
	})

	t.Run("PlainPathGetsFileScheme", func(t *testing.T) {
		dir := t.TempDir()
		dsn, err := resolveDSN(config.StoreConfig{Path: dir + "/cache.db"})
		require.NoError(t, err)
		require.Equal(t, "file:"+dir+"/cache.db", dsn)
	})

	t.Run("MissingPathAndURLFails", func(t *testing.T) {
		_, err := resolveDSN(config.StoreConfig{})
		require.Error(t, err)
	})
}

func TestStoreNilSafety(t *testing.T) {
	var s *Store
	require.NoError(t, s.Close())
	require.Empty(t, s.Driver())
}
