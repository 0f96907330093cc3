package embedding

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/vldmrch/pharmsync/internal/catalog"
	"github.com/vldmrch/pharmsync/pkg/metrics"
	pkgredis "github.com/vldmrch/pharmsync/pkg/redis"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "embedding:"

// Cached wraps a Provider with a Redis hot cache and singleflight stampede
// control. Cache failures are swallowed: the wrapper degrades to calling the
// underlying provider directly.
type Cached struct {
	provider Provider
	client   *pkgredis.Client
	ttl      time.Duration
	group    singleflight.Group
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewCached creates a caching wrapper. client may be nil, in which case every
// call goes straight to the provider.
func NewCached(provider Provider, client *pkgredis.Client, ttl time.Duration, m *metrics.Metrics) *Cached {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cached{
		provider: provider,
		client:   client,
		ttl:      ttl,
		metrics:  m,
		logger:   slog.Default().With("component", "embedding-cache"),
	}
}

// CacheKey builds the hot-cache key for an embedding input: the first 100
// runes of the text, base64-encoded.
func CacheKey(text string) string {
	return keyPrefix + base64.StdEncoding.EncodeToString([]byte(catalog.TruncateText(text, 100)))
}

// Embed returns a cached vector when available, otherwise computes one via
// the underlying provider (deduplicating concurrent identical requests) and
// stores it with the configured TTL.
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	key := CacheKey(text)
	if vector, ok := c.get(ctx, key); ok {
		c.count("cached")
		return vector, nil
	}

	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if vector, ok := c.get(ctx, key); ok {
			return vector, nil
		}
		vector, err := c.provider.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, vector)
		return vector, nil
	})
	if err != nil {
		c.count("failed")
		return nil, err
	}
	c.count("ok")
	return val.([]float32), nil
}

func (c *Cached) get(ctx context.Context, key string) ([]float32, bool) {
	if c.client == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Warn("embedding cache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	var vector []float32
	if err := json.Unmarshal([]byte(data), &vector); err != nil {
		c.logger.Warn("embedding cache unmarshal failed", "key", key, "error", err)
		return nil, false
	}
	return vector, true
}

func (c *Cached) set(ctx context.Context, key string, vector []float32) {
	if c.client == nil {
		return
	}
	data, err := json.Marshal(vector)
	if err != nil {
		c.logger.Warn("embedding cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("embedding cache set failed", "key", key, "error", err)
	}
}

func (c *Cached) count(outcome string) {
	if c.metrics != nil {
		c.metrics.EmbeddingCallsTotal.WithLabelValues(outcome).Inc()
	}
}

// Flush removes all cached embeddings, typically in response to a
// cache-invalidate event after a full sync.
func (c *Cached) Flush(ctx context.Context) (int64, error) {
	if c.client == nil {
		return 0, nil
	}
	return c.client.FlushByPattern(ctx, keyPrefix+"*")
}
