package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vldmrch/pharmsync/internal/catalog"
)

// StartSyncLog creates a running sync log row and returns its ID.
func (s *Store) StartSyncLog(ctx context.Context, syncType string) (int64, error) {
	var id int64
	err := s.db.DB.QueryRowContext(ctx, `
		INSERT INTO sync_logs (sync_type, status, started_at)
		VALUES ($1, $2, $3)
		RETURNING id`,
		syncType, catalog.SyncStatusRunning, time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("starting %s sync log: %w", syncType, err)
	}
	return id, nil
}

// FinalizeSyncLog writes the final status, counters, and duration of a run.
func (s *Store) FinalizeSyncLog(ctx context.Context, id int64, status string, counts catalog.FullSyncResult, durationMs int64, errMsg string) error {
	_, err := s.db.DB.ExecContext(ctx, `
		UPDATE sync_logs SET
			status = $2, processed = $3, created = $4, updated = $5,
			failed = $6, duration_ms = $7, error_message = $8, finished_at = $9
		WHERE id = $1`,
		id, status, counts.Processed, counts.Created, counts.Updated,
		counts.Failed, durationMs, errMsg, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("finalizing sync log %d: %w", id, err)
	}
	return nil
}

// LatestSyncLog returns the most recent sync log row of any type, or
// nil, nil when no sync has ever run.
func (s *Store) LatestSyncLog(ctx context.Context) (*catalog.SyncLog, error) {
	return s.querySyncLog(ctx, `
		SELECT id, sync_type, status, processed, created, updated, failed,
		       duration_ms, error_message, started_at, finished_at
		FROM sync_logs ORDER BY started_at DESC LIMIT 1`)
}

// LatestCompletedSync returns the most recent successfully completed run,
// or nil, nil when none exists.
func (s *Store) LatestCompletedSync(ctx context.Context) (*catalog.SyncLog, error) {
	return s.querySyncLog(ctx, `
		SELECT id, sync_type, status, processed, created, updated, failed,
		       duration_ms, error_message, started_at, finished_at
		FROM sync_logs WHERE status = 'completed'
		ORDER BY started_at DESC LIMIT 1`)
}

func (s *Store) querySyncLog(ctx context.Context, query string, args ...any) (*catalog.SyncLog, error) {
	var l catalog.SyncLog
	var finished sql.NullTime
	err := s.db.DB.QueryRowContext(ctx, query, args...).Scan(
		&l.ID, &l.Type, &l.Status, &l.Processed, &l.Created, &l.Updated,
		&l.Failed, &l.DurationMs, &l.ErrorMessage, &l.StartedAt, &finished,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying sync log: %w", err)
	}
	if finished.Valid {
		l.FinishedAt = finished.Time
	}
	return &l, nil
}
