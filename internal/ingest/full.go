package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vldmrch/pharmsync/internal/catalog"
	"github.com/vldmrch/pharmsync/internal/upstream"
	"github.com/vldmrch/pharmsync/pkg/kafka"
	"github.com/vldmrch/pharmsync/pkg/metrics"
)

// FullOptions control a full catalog sync run.
type FullOptions struct {
	BatchSize          int  `json:"batchSize"`
	MaxProducts        int  `json:"maxProducts"`
	GenerateEmbeddings bool `json:"generateEmbeddings"`
}

// FullSyncer paginates the entire upstream catalog into the durable store,
// deduplicating repeated IDs as pages arrive and generating embeddings on
// request.
type FullSyncer struct {
	store      CatalogStore
	fetcher    PageFetcher
	embedder   Embedder
	events     EventPublisher
	invalidate EventPublisher
	embedDelay time.Duration
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewFullSyncer creates a full catalog synchronizer. embedder, events, and
// invalidate may be nil; the respective steps are then skipped.
func NewFullSyncer(st CatalogStore, fetcher PageFetcher, embedder Embedder, events, invalidate EventPublisher, embedDelay time.Duration, m *metrics.Metrics) *FullSyncer {
	return &FullSyncer{
		store:      st,
		fetcher:    fetcher,
		embedder:   embedder,
		events:     events,
		invalidate: invalidate,
		embedDelay: embedDelay,
		metrics:    m,
		logger:     slog.Default().With("component", "full-syncer"),
	}
}

// Run executes a full sync. Per-item and per-page failures are counted and
// skipped; only a page-failure count above the hard ceiling or a store that
// cannot even record the run aborts it. The sync log row is finalized in
// every outcome.
func (s *FullSyncer) Run(ctx context.Context, opts FullOptions) (catalog.FullSyncResult, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	start := time.Now()
	var result catalog.FullSyncResult

	logID, err := s.store.StartSyncLog(ctx, catalog.SyncTypeFull)
	if err != nil {
		return result, fmt.Errorf("starting full sync: %w", err)
	}
	s.logger.Info("full sync started",
		"batch_size", opts.BatchSize,
		"max_products", opts.MaxProducts,
		"generate_embeddings", opts.GenerateEmbeddings,
	)

	// The seen set is maintained as pages arrive: the upstream is known to
	// return overlapping pages under load, and a duplicate must be dropped
	// before it costs an embedding call.
	seen := make(map[string]struct{})
	runErr := s.paginate(ctx, opts, seen, &result)

	durationMs := time.Since(start).Milliseconds()
	status := catalog.SyncStatusCompleted
	errMsg := ""
	if runErr != nil {
		status = catalog.SyncStatusFailed
		errMsg = runErr.Error()
	}
	if err := s.store.FinalizeSyncLog(ctx, logID, status, result, durationMs, errMsg); err != nil {
		s.logger.Error("finalizing sync log failed", "log_id", logID, "error", err)
	}
	s.observe(catalog.SyncTypeFull, status, durationMs)
	s.publishEvents(ctx, status, result, durationMs, opts.GenerateEmbeddings)

	s.logger.Info("full sync finished",
		"status", status,
		"processed", result.Processed,
		"created", result.Created,
		"updated", result.Updated,
		"failed", result.Failed,
		"duration_ms", durationMs,
	)
	if runErr != nil {
		return result, fmt.Errorf("full sync: %w", runErr)
	}
	return result, nil
}

func (s *FullSyncer) paginate(ctx context.Context, opts FullOptions, seen map[string]struct{}, result *catalog.FullSyncResult) error {
	page := 1
	totalPages := 0
	pageFailures := 0

	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("sync cancelled: %w", err)
		}
		fetched, err := s.fetcher.FetchPage(ctx, upstream.PageRequest{Page: page, Size: opts.BatchSize})
		if err != nil {
			pageFailures++
			s.logger.Warn("page fetch failed, skipping",
				"page", page, "failures", pageFailures, "error", err)
			if pageFailures >= s.fetcher.MaxPageFailures() {
				return fmt.Errorf("aborting after %d failed pages: %w", pageFailures, err)
			}
			page++
			continue
		}
		if fetched.TotalPages > 0 {
			totalPages = fetched.TotalPages
		}

		fresh := make([]upstream.Item, 0, len(fetched.Items))
		for _, it := range fetched.Items {
			id := string(it.ProductID)
			if id == "" {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			fresh = append(fresh, it)
		}

		// A page of nothing-but-known IDs means pagination has wrapped.
		if len(fresh) == 0 {
			s.logger.Info("no new products on page, stopping", "page", page)
			return nil
		}

		s.processBatch(ctx, fresh, opts, result)

		if opts.MaxProducts > 0 && result.Processed >= opts.MaxProducts {
			s.logger.Info("max products reached", "max", opts.MaxProducts)
			return nil
		}
		if totalPages > 0 && page >= totalPages {
			return nil
		}
		page++

		select {
		case <-time.After(s.fetcher.PageDelay()):
		case <-ctx.Done():
			return fmt.Errorf("sync cancelled: %w", ctx.Err())
		}
	}
}

func (s *FullSyncer) processBatch(ctx context.Context, items []upstream.Item, opts FullOptions, result *catalog.FullSyncResult) {
	now := time.Now().UTC()
	for i := range items {
		if opts.MaxProducts > 0 && result.Processed >= opts.MaxProducts {
			return
		}
		it := &items[i]
		result.Processed++

		product := toProduct(it, now)
		if opts.GenerateEmbeddings && s.embedder != nil && product.SearchableText != "" {
			s.embed(ctx, product)
		}

		created, err := s.store.UpsertProduct(ctx, product)
		if err != nil {
			result.Failed++
			s.countUpsert("failed")
			s.logger.Error("product upsert failed", "product_id", product.ID, "error", err)
			continue
		}
		if created {
			result.Created++
			s.countUpsert("created")
		} else {
			result.Updated++
			s.countUpsert("updated")
		}

		if _, err := s.store.UpsertInventory(ctx, toInventory(it, now)); err != nil {
			// The catalog row landed; a failed inventory write is a batch
			// failure, not a reason to stop.
			result.Failed++
			s.logger.Error("inventory upsert failed", "product_id", product.ID, "error", err)
		}
	}
}

// embed generates the product's embedding, leaving it nil on failure: a
// product is never dropped solely because embedding failed.
func (s *FullSyncer) embed(ctx context.Context, product *catalog.Product) {
	vector, err := s.embedder.Embed(ctx, product.SearchableText)
	if err != nil {
		s.logger.Warn("embedding generation failed",
			"product_id", product.ID, "error", err)
	} else {
		vec := pgVector(vector)
		product.Embedding = &vec
	}
	if s.embedDelay > 0 {
		select {
		case <-time.After(s.embedDelay):
		case <-ctx.Done():
		}
	}
}

func (s *FullSyncer) publishEvents(ctx context.Context, status string, result catalog.FullSyncResult, durationMs int64, embedded bool) {
	if s.events != nil {
		err := s.events.Publish(ctx, kafka.Event{
			Key: catalog.SyncTypeFull,
			Value: map[string]any{
				"type":        catalog.SyncTypeFull,
				"status":      status,
				"processed":   result.Processed,
				"created":     result.Created,
				"updated":     result.Updated,
				"failed":      result.Failed,
				"duration_ms": durationMs,
			},
		})
		if err != nil {
			s.logger.Warn("publishing sync event failed", "error", err)
		}
	}
	if s.invalidate != nil && embedded && status == catalog.SyncStatusCompleted {
		err := s.invalidate.Publish(ctx, kafka.Event{
			Key:   catalog.SyncTypeFull,
			Value: map[string]any{"reason": "full_sync_completed"},
		})
		if err != nil {
			s.logger.Warn("publishing cache invalidation failed", "error", err)
		}
	}
}

func (s *FullSyncer) countUpsert(outcome string) {
	if s.metrics != nil {
		s.metrics.ProductsUpserted.WithLabelValues(outcome).Inc()
	}
}

func (s *FullSyncer) observe(syncType, status string, durationMs int64) {
	if s.metrics == nil {
		return
	}
	s.metrics.SyncRunsTotal.WithLabelValues(syncType, status).Inc()
	s.metrics.SyncDuration.WithLabelValues(syncType).Observe(float64(durationMs) / 1000)
}
