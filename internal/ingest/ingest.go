// Package ingest implements the two synchronization engines: the full
// catalog sync (slow, rare, embedding-generating) and the quick stock sync
// (fast, frequent, inventory-only).
package ingest

import (
	"context"
	"time"

	"github.com/vldmrch/pharmsync/internal/catalog"
	"github.com/vldmrch/pharmsync/internal/upstream"
	"github.com/vldmrch/pharmsync/pkg/kafka"
)

// CatalogStore is the slice of the durable store the sync engines need.
type CatalogStore interface {
	UpsertProduct(ctx context.Context, p *catalog.Product) (created bool, err error)
	UpsertInventory(ctx context.Context, inv *catalog.Inventory) (skipped bool, err error)
	ProductExists(ctx context.Context, id string) (bool, error)
	StartSyncLog(ctx context.Context, syncType string) (int64, error)
	FinalizeSyncLog(ctx context.Context, id int64, status string, counts catalog.FullSyncResult, durationMs int64, errMsg string) error
}

// PageFetcher fetches catalog pages from the upstream API.
type PageFetcher interface {
	FetchPage(ctx context.Context, req upstream.PageRequest) (*upstream.Page, error)
	PageDelay() time.Duration
	MaxPageFailures() int
}

// InventoryCache writes inventory views into the cache hierarchy.
type InventoryCache interface {
	SetInventory(ctx context.Context, inv *catalog.Inventory) string
}

// Embedder generates embedding vectors for searchable text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EventPublisher publishes sync lifecycle events. A nil publisher disables
// event publication without affecting the sync itself.
type EventPublisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}
