package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// GetCacheEntry reads a shadow cache row. An expired row is treated as
// absent; it is left in place for the scheduler's cleanup job to collect.
func (s *Store) GetCacheEntry(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	var expiresAt time.Time
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT value, expires_at FROM cache_entries WHERE key = $1`, key,
	).Scan(&value, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cache entry %s: %w", key, err)
	}
	if time.Now().After(expiresAt) {
		return nil, false, nil
	}
	return value, true, nil
}

// SetCacheEntry upserts a shadow cache row with a computed expiry.
func (s *Store) SetCacheEntry(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := s.db.DB.ExecContext(ctx, `
		INSERT INTO cache_entries (key, value, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			expires_at = EXCLUDED.expires_at`,
		key, value, time.Now().Add(ttl),
	)
	if err != nil {
		return fmt.Errorf("writing cache entry %s: %w", key, err)
	}
	return nil
}

// DeleteExpiredCacheEntries garbage-collects expired shadow cache rows and
// returns the number removed.
func (s *Store) DeleteExpiredCacheEntries(ctx context.Context) (int64, error) {
	res, err := s.db.DB.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("deleting expired cache entries: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deleting expired cache entries: %w", err)
	}
	return deleted, nil
}
