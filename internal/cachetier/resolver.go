// Package cachetier implements the layered inventory read/write path:
// hot cache first, durable shadow cache second, the inventory table third,
// and — only on explicit opt-in — a live upstream call. Cache-layer failures
// are converted into "try the next tier" and never surface to callers.
package cachetier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/vldmrch/pharmsync/internal/catalog"
	"github.com/vldmrch/pharmsync/internal/store"
	"github.com/vldmrch/pharmsync/internal/upstream"
	pkgerrors "github.com/vldmrch/pharmsync/pkg/errors"
	"github.com/vldmrch/pharmsync/pkg/metrics"
	pkgredis "github.com/vldmrch/pharmsync/pkg/redis"
)

const keyPrefix = "product:"

// Resolver answers inventory lookups through the cache hierarchy.
type Resolver struct {
	hot      *pkgredis.Client
	store    *store.Store
	upstream *upstream.Client
	ttl      time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New creates a Resolver. hot may be nil (no Redis) and up may be nil (live
// tier disabled); both degrade gracefully.
func New(hot *pkgredis.Client, st *store.Store, up *upstream.Client, ttl time.Duration, m *metrics.Metrics) *Resolver {
	if ttl <= 0 {
		ttl = 300 * time.Second
	}
	return &Resolver{
		hot:      hot,
		store:    st,
		upstream: up,
		ttl:      ttl,
		metrics:  m,
		logger:   slog.Default().With("component", "cache-tier-resolver"),
	}
}

// Key builds the hot-cache key for a product's inventory view.
func Key(productID string) string {
	return keyPrefix + productID
}

// GetInventory resolves the inventory view for a product, trying the hot
// cache, the shadow cache, and the inventory table in order. The live
// upstream tier runs only when the caller explicitly opts in; it is meant
// for high-stakes lookups such as the moment before committing a purchase.
// The returned source tag names the tier that answered.
func (r *Resolver) GetInventory(ctx context.Context, productID string, live bool) (*catalog.Inventory, string, error) {
	if live {
		if inv, err := r.fetchLive(ctx, productID); err == nil {
			r.count(catalog.SourceLive)
			return inv, catalog.SourceLive, nil
		} else {
			r.logger.Warn("live inventory fetch failed, falling back to caches",
				"product_id", productID, "error", err)
		}
	}

	if inv, ok := r.getHot(ctx, productID); ok {
		r.count(catalog.SourceHotCache)
		return inv, catalog.SourceHotCache, nil
	}

	if inv, ok := r.getShadow(ctx, productID); ok {
		r.count(catalog.SourceShadowCache)
		return inv, catalog.SourceShadowCache, nil
	}

	inv, err := r.store.GetInventory(ctx, productID)
	if err != nil {
		r.count("miss")
		return nil, "", err
	}
	r.count(catalog.SourceStore)
	// Repopulate the faster tiers for the next reader.
	r.SetInventory(ctx, inv)
	return inv, catalog.SourceStore, nil
}

// SetInventory writes the inventory view to the hot cache, falling back to a
// durable shadow row when the hot cache is unavailable. It returns the tier
// that took the write ("" when both failed) and never returns an error: a
// cache-write failure must not become a request failure.
func (r *Resolver) SetInventory(ctx context.Context, inv *catalog.Inventory) string {
	data, err := json.Marshal(inv)
	if err != nil {
		r.logger.Error("marshaling inventory view", "product_id", inv.ProductID, "error", err)
		return ""
	}
	key := Key(inv.ProductID)

	if r.hot != nil {
		if err := r.hot.Set(ctx, key, data, r.ttl); err == nil {
			return catalog.SourceHotCache
		} else {
			r.logger.Warn("hot cache write failed, using shadow cache",
				"product_id", inv.ProductID, "error", err)
		}
	}

	if err := r.store.SetCacheEntry(ctx, key, data, r.ttl); err != nil {
		r.logger.Error("shadow cache write failed", "product_id", inv.ProductID, "error", err)
		return ""
	}
	return catalog.SourceShadowCache
}

func (r *Resolver) getHot(ctx context.Context, productID string) (*catalog.Inventory, bool) {
	if r.hot == nil {
		return nil, false
	}
	data, err := r.hot.Get(ctx, Key(productID))
	if err != nil {
		if !pkgredis.IsNilError(err) {
			r.logger.Warn("hot cache read failed", "product_id", productID, "error", err)
		}
		return nil, false
	}
	return decodeInventory(productID, []byte(data), r.logger)
}

func (r *Resolver) getShadow(ctx context.Context, productID string) (*catalog.Inventory, bool) {
	data, ok, err := r.store.GetCacheEntry(ctx, Key(productID))
	if err != nil {
		r.logger.Warn("shadow cache read failed", "product_id", productID, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	return decodeInventory(productID, data, r.logger)
}

func (r *Resolver) fetchLive(ctx context.Context, productID string) (*catalog.Inventory, error) {
	if r.upstream == nil {
		return nil, fmt.Errorf("%w: live tier not configured", pkgerrors.ErrUpstreamUnavailable)
	}
	item, err := r.upstream.FetchProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	stock := item.PrimaryStock()
	inv := &catalog.Inventory{
		ProductID:    productID,
		Available:    int(stock.Available),
		OnHand:       int(stock.OnHand),
		Promised:     int(stock.Promise),
		BasePrice:    float64(item.BasePrice),
		IsActive:     item.IsActive(),
		FacilityName: string(stock.FacilityName),
		LastAPISync:  time.Now().UTC(),
	}
	// Re-cache the fresh view while we have it. The inventory table itself
	// belongs to the sync pipeline; a lookup never writes it.
	r.SetInventory(ctx, inv)
	return inv, nil
}

func (r *Resolver) count(tier string) {
	if r.metrics != nil {
		r.metrics.CacheReadsTotal.WithLabelValues(tier).Inc()
	}
}

func decodeInventory(productID string, data []byte, logger *slog.Logger) (*catalog.Inventory, bool) {
	var inv catalog.Inventory
	if err := json.Unmarshal(data, &inv); err != nil {
		logger.Warn("corrupt cached inventory", "product_id", productID, "error", err)
		return nil, false
	}
	if inv.ProductID == "" {
		inv.ProductID = productID
	}
	return &inv, true
}
