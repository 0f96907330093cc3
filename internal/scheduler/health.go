package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/vldmrch/pharmsync/internal/catalog"
)

// Sync health labels, ordered from worst to best.
const (
	HealthNoData      = "no_data"
	HealthNeverSynced = "never_synced"
	HealthUnhealthy   = "unhealthy"
	HealthStale       = "stale"
	HealthAging       = "aging"
	HealthHealthy     = "healthy"
)

const (
	agingAfter = 25 * time.Hour
	staleAfter = 48 * time.Hour
)

// HealthStore is the slice of the durable store health classification reads.
type HealthStore interface {
	CountProducts(ctx context.Context) (int64, error)
	LatestSyncLog(ctx context.Context) (*catalog.SyncLog, error)
	LatestCompletedSync(ctx context.Context) (*catalog.SyncLog, error)
}

// Health is the computed sync health snapshot.
type Health struct {
	Label         string           `json:"label"`
	ProductCount  int64            `json:"product_count"`
	LastSync      *catalog.SyncLog `json:"last_sync,omitempty"`
	HoursSinceOK  float64          `json:"hours_since_success,omitempty"`
	LastSuccessAt *time.Time       `json:"last_success_at,omitempty"`
}

// ClassifyHealth inspects the catalog and the latest sync log rows and
// produces the operational health label. The sync log is the sole source of
// "last successful sync"; product timestamps are never scanned.
func ClassifyHealth(ctx context.Context, st HealthStore) (*Health, error) {
	count, err := st.CountProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("classifying health: %w", err)
	}
	h := &Health{ProductCount: count}
	if count == 0 {
		h.Label = HealthNoData
		return h, nil
	}

	last, err := st.LatestSyncLog(ctx)
	if err != nil {
		return nil, fmt.Errorf("classifying health: %w", err)
	}
	h.LastSync = last
	if last == nil {
		h.Label = HealthNeverSynced
		return h, nil
	}
	if last.Status == catalog.SyncStatusFailed {
		h.Label = HealthUnhealthy
		return h, nil
	}

	success, err := st.LatestCompletedSync(ctx)
	if err != nil {
		return nil, fmt.Errorf("classifying health: %w", err)
	}
	if success == nil {
		h.Label = HealthNeverSynced
		return h, nil
	}
	h.LastSuccessAt = &success.FinishedAt
	elapsed := time.Since(success.FinishedAt)
	h.HoursSinceOK = elapsed.Hours()
	switch {
	case elapsed > staleAfter:
		h.Label = HealthStale
	case elapsed > agingAfter:
		h.Label = HealthAging
	default:
		h.Label = HealthHealthy
	}
	return h, nil
}
