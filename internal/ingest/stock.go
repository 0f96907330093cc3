package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vldmrch/pharmsync/internal/catalog"
	"github.com/vldmrch/pharmsync/internal/upstream"
	"github.com/vldmrch/pharmsync/pkg/kafka"
	"github.com/vldmrch/pharmsync/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// StockSyncer refreshes the volatile inventory view: it runs every few
// minutes, never touches embeddings, and never creates catalog rows.
type StockSyncer struct {
	store     CatalogStore
	fetcher   PageFetcher
	cache     InventoryCache
	events    EventPublisher
	batchSize int
	window    time.Duration
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewStockSyncer creates a stock synchronizer. batchSize bounds the fan-out
// parallelism per batch; window is the upstream change-date range fetched.
func NewStockSyncer(st CatalogStore, fetcher PageFetcher, cache InventoryCache, events EventPublisher, batchSize int, m *metrics.Metrics) *StockSyncer {
	if batchSize <= 0 {
		batchSize = 20
	}
	return &StockSyncer{
		store:     st,
		fetcher:   fetcher,
		cache:     cache,
		events:    events,
		batchSize: batchSize,
		window:    24 * time.Hour,
		metrics:   m,
		logger:    slog.Default().With("component", "stock-syncer"),
	}
}

// Run executes a quick stock sync bounded to maxProducts items. Items are
// processed concurrently with bounded parallelism; an individual item's
// failure is counted and never cancels its siblings.
func (s *StockSyncer) Run(ctx context.Context, maxProducts int) (catalog.StockSyncResult, error) {
	if maxProducts <= 0 {
		maxProducts = 500
	}
	start := time.Now()
	var result catalog.StockSyncResult

	logID, err := s.store.StartSyncLog(ctx, catalog.SyncTypeStock)
	if err != nil {
		return result, fmt.Errorf("starting stock sync: %w", err)
	}

	runErr := s.fetchAndApply(ctx, maxProducts, &result)

	durationMs := time.Since(start).Milliseconds()
	status := catalog.SyncStatusCompleted
	errMsg := ""
	if runErr != nil {
		status = catalog.SyncStatusFailed
		errMsg = runErr.Error()
	}
	finalCounts := catalog.FullSyncResult{
		Processed: result.Processed,
		Updated:   result.Updated,
		Failed:    result.Failed,
	}
	if err := s.store.FinalizeSyncLog(ctx, logID, status, finalCounts, durationMs, errMsg); err != nil {
		s.logger.Error("finalizing sync log failed", "log_id", logID, "error", err)
	}
	if s.metrics != nil {
		s.metrics.SyncRunsTotal.WithLabelValues(catalog.SyncTypeStock, status).Inc()
		s.metrics.SyncDuration.WithLabelValues(catalog.SyncTypeStock).Observe(float64(durationMs) / 1000)
	}
	s.publishEvent(ctx, status, result, durationMs)

	s.logger.Info("stock sync finished",
		"status", status,
		"processed", result.Processed,
		"updated", result.Updated,
		"cached", result.Cached,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"duration_ms", durationMs,
	)
	if runErr != nil {
		return result, fmt.Errorf("stock sync: %w", runErr)
	}
	return result, nil
}

func (s *StockSyncer) fetchAndApply(ctx context.Context, maxProducts int, result *catalog.StockSyncResult) error {
	now := time.Now().UTC()
	page := 1
	remaining := maxProducts
	for remaining > 0 {
		size := s.batchSize
		if size > remaining {
			size = remaining
		}
		fetched, err := s.fetcher.FetchPage(ctx, upstream.PageRequest{
			Page:      page,
			Size:      size,
			StartDate: now.Add(-s.window),
			EndDate:   now,
		})
		if err != nil {
			// One bounded page set per run; a failed page here fails the run
			// so the scheduler surfaces it, unlike the full sync's skip loop.
			return err
		}
		if len(fetched.Items) == 0 {
			return nil
		}

		s.applyBatch(ctx, fetched.Items, now, result)
		remaining -= len(fetched.Items)

		if fetched.TotalPages > 0 && page >= fetched.TotalPages {
			return nil
		}
		page++
	}
	return nil
}

// applyBatch fans the batch out over bounded workers and waits for every
// outcome before returning.
func (s *StockSyncer) applyBatch(ctx context.Context, items []upstream.Item, now time.Time, result *catalog.StockSyncResult) {
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.batchSize)

	for i := range items {
		it := &items[i]
		g.Go(func() error {
			outcome := s.applyItem(gctx, it, now)
			mu.Lock()
			result.Processed++
			switch outcome {
			case stockUpdated:
				result.Updated++
			case stockUpdatedAndCached:
				result.Updated++
				result.Cached++
			case stockSkipped:
				result.Skipped++
			case stockFailed:
				result.Failed++
			}
			mu.Unlock()
			return nil
		})
	}
	// Workers never return errors; failures are counted per item.
	_ = g.Wait()
}

type stockOutcome int

const (
	stockUpdated stockOutcome = iota
	stockUpdatedAndCached
	stockSkipped
	stockFailed
)

func (s *StockSyncer) applyItem(ctx context.Context, it *upstream.Item, now time.Time) stockOutcome {
	id := string(it.ProductID)
	if id == "" {
		return stockSkipped
	}

	// Stock sync must never create catalog rows: unknown products are
	// skipped, not errors.
	exists, err := s.store.ProductExists(ctx, id)
	if err != nil {
		s.logger.Error("product existence check failed", "product_id", id, "error", err)
		return stockFailed
	}
	if !exists {
		s.logger.Debug("product not in catalog, skipping stock update", "product_id", id)
		return stockSkipped
	}

	inv := toInventory(it, now)
	skipped, err := s.store.UpsertInventory(ctx, inv)
	if err != nil {
		s.logger.Error("inventory upsert failed", "product_id", id, "error", err)
		return stockFailed
	}
	if skipped {
		return stockSkipped
	}

	if s.cache != nil {
		if tier := s.cache.SetInventory(ctx, inv); tier != "" {
			return stockUpdatedAndCached
		}
	}
	return stockUpdated
}

func (s *StockSyncer) publishEvent(ctx context.Context, status string, result catalog.StockSyncResult, durationMs int64) {
	if s.events == nil {
		return
	}
	err := s.events.Publish(ctx, kafka.Event{
		Key: catalog.SyncTypeStock,
		Value: map[string]any{
			"type":        catalog.SyncTypeStock,
			"status":      status,
			"processed":   result.Processed,
			"updated":     result.Updated,
			"cached":      result.Cached,
			"skipped":     result.Skipped,
			"failed":      result.Failed,
			"duration_ms": durationMs,
		},
	})
	if err != nil {
		s.logger.Warn("publishing sync event failed", "error", err)
	}
}
