package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/waypost/waypost/internal/core"
)

// Cache entry kinds. Stats are grouped by these.
const (
	kindGeocode = "geocode"
	kindRoute   = "route"
)

// GetGeocode returns a cached geocoding result if it is still valid.
func (s *Store) GetGeocode(ctx context.Context, key string) (*core.GeocodeResult, error) {
	var result core.GeocodeResult
	found, expires, err := s.fetch(ctx, key, kindGeocode, &result)
	if err != nil || !found {
		return nil, err
	}
	result.Provenance.FromCache = true
	result.Provenance.CacheExpiresAt = &expires
	return &result, nil
}

// SetGeocode stores a geocoding result with a TTL.
func (s *Store) SetGeocode(ctx context.Context, key string, result *core.GeocodeResult, ttl time.Duration) error {
	if result == nil {
		return nil
	}
	return s.put(ctx, key, kindGeocode, result, result.Provenance.ResolvedAt, ttl)
}

// GetRoute returns a cached route if it is still valid.
func (s *Store) GetRoute(ctx context.Context, key string) (*core.RouteResult, error) {
	var result core.RouteResult
	found, expires, err := s.fetch(ctx, key, kindRoute, &result)
	if err != nil || !found {
		return nil, err
	}
	result.Provenance.FromCache = true
	result.Provenance.CacheExpiresAt = &expires
	return &result, nil
}

// SetRoute stores a route with a TTL.
func (s *Store) SetRoute(ctx context.Context, key string, result *core.RouteResult, ttl time.Duration) error {
	if result == nil {
		return nil
	}
	return s.put(ctx, key, kindRoute, result, result.Provenance.ResolvedAt, ttl)
}

func (s *Store) fetch(ctx context.Context, key, kind string, into any) (bool, time.Time, error) {
	if s == nil || s.DB == nil {
		return false, time.Time{}, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return false, time.Time{}, errors.New("cache key is required")
	}

	var (
		payload   string
		expiresAt int64
	)
	row := s.DB.QueryRowContext(ctx, `
		SELECT payload, expires_at
		FROM result_cache
		WHERE key = ? AND kind = ? AND expires_at > ?
	`, key, kind, time.Now().UTC().Unix())

	if err := row.Scan(&payload, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, time.Time{}, nil
		}
		return false, time.Time{}, fmt.Errorf("fetch cached result: %w", err)
	}

	if err := json.Unmarshal([]byte(payload), into); err != nil {
		return false, time.Time{}, fmt.Errorf("decode cached result: %w", err)
	}
	return true, time.Unix(expiresAt, 0).UTC(), nil
}

func (s *Store) put(ctx context.Context, key, kind string, value any, resolvedAt time.Time, ttl time.Duration) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if ttl <= 0 {
		return nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("cache key is required")
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cached result: %w", err)
	}

	now := time.Now().UTC()
	if resolvedAt.IsZero() {
		resolvedAt = now
	}

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO result_cache (key, kind, payload, resolved_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			kind = excluded.kind,
			payload = excluded.payload,
			resolved_at = excluded.resolved_at,
			expires_at = excluded.expires_at
	`, key, kind, string(payload), resolvedAt.Unix(), now.Add(ttl).Unix())
	if err != nil {
		return fmt.Errorf("store cached result: %w", err)
	}
	return nil
}
