package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// CacheStats summarizes the result cache for the admin CLI.
type CacheStats struct {
	Kind    string
	Total   int64
	Expired int64
}

// Stats reports per-kind entry counts, including already-expired rows that
// have not been purged yet.
func (s *Store) Stats(ctx context.Context) ([]CacheStats, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT kind,
			COUNT(*),
			SUM(CASE WHEN expires_at <= ? THEN 1 ELSE 0 END)
		FROM result_cache
		GROUP BY kind
		ORDER BY kind
	`, time.Now().UTC().Unix())
	if err != nil {
		return nil, fmt.Errorf("query cache stats: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var stats []CacheStats
	for rows.Next() {
		var entry CacheStats
		if err := rows.Scan(&entry.Kind, &entry.Total, &entry.Expired); err != nil {
			return nil, fmt.Errorf("scan cache stats: %w", err)
		}
		stats = append(stats, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read cache stats: %w", err)
	}
	return stats, nil
}

// PurgeExpired removes rows whose TTL has lapsed and reports how many went.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	res, err := s.DB.ExecContext(ctx, `DELETE FROM result_cache WHERE expires_at <= ?`, time.Now().UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("purge expired cache rows: %w", err)
	}
	return res.RowsAffected()
}

// Clear empties the result cache.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	res, err := s.DB.ExecContext(ctx, `DELETE FROM result_cache`)
	if err != nil {
		return 0, fmt.Errorf("clear cache: %w", err)
	}
	return res.RowsAffected()
}
