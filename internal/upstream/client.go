// Package upstream implements the client for the external product catalog
// API: paginated fetches with defensive envelope decoding, bounded per-page
// retries, and a circuit breaker around the HTTP calls.
package upstream

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/vldmrch/pharmsync/pkg/config"
	pkgerrors "github.com/vldmrch/pharmsync/pkg/errors"
	"github.com/vldmrch/pharmsync/pkg/metrics"
	"github.com/vldmrch/pharmsync/pkg/resilience"
)

// PageRequest selects one page of the upstream catalog.
type PageRequest struct {
	Page      int
	Size      int
	StartDate time.Time
	EndDate   time.Time
	ProductID string
}

// Client fetches product pages from the upstream catalog API.
type Client struct {
	cfg     config.UpstreamConfig
	http    *http.Client
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates an upstream client with the configured request timeout and a
// circuit breaker shared across all fetches.
func New(cfg config.UpstreamConfig, m *metrics.Metrics) *Client {
	cbCfg := resilience.CircuitBreakerConfig{}
	if m != nil {
		cbCfg.OnStateChange = func(name string, state resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
		}
	}
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: cfg.Timeout,
		},
		breaker: resilience.NewCircuitBreaker("upstream-catalog", cbCfg),
		metrics: m,
		logger:  slog.Default().With("component", "upstream-client"),
	}
}

// FetchPage fetches and decodes one catalog page. Transient failures are
// retried a bounded number of times before the page is reported failed.
func (c *Client) FetchPage(ctx context.Context, req PageRequest) (*Page, error) {
	var page *Page
	retryCfg := resilience.RetryConfig{
		MaxAttempts:  c.cfg.PageRetries + 1,
		InitialDelay: 500 * time.Millisecond,
	}
	err := resilience.Retry(ctx, "upstream-fetch-page", retryCfg, func() error {
		return c.breaker.Execute(func() error {
			var fetchErr error
			page, fetchErr = c.fetchOnce(ctx, req)
			return fetchErr
		})
	})
	if err != nil {
		if c.metrics != nil {
			c.metrics.UpstreamPagesTotal.WithLabelValues("failed").Inc()
		}
		return nil, fmt.Errorf("%w: page %d: %v", pkgerrors.ErrUpstreamUnavailable, req.Page, err)
	}
	if c.metrics != nil {
		c.metrics.UpstreamPagesTotal.WithLabelValues("ok").Inc()
	}
	return page, nil
}

// FetchProduct fetches a single product by upstream ID via the live tier.
// Returns pkg/errors.ErrProductNotFound when the upstream has no such row.
func (c *Client) FetchProduct(ctx context.Context, productID string) (*Item, error) {
	page, err := c.FetchPage(ctx, PageRequest{Page: 1, Size: 1, ProductID: productID})
	if err != nil {
		return nil, err
	}
	if len(page.Items) == 0 {
		return nil, fmt.Errorf("%w: upstream id %s", pkgerrors.ErrProductNotFound, productID)
	}
	item := page.Items[0]
	return &item, nil
}

// PageDelay returns the configured cooperative inter-page delay.
func (c *Client) PageDelay() time.Duration {
	return c.cfg.PageDelay
}

// MaxPageFailures returns the hard ceiling on failed pages per sync run.
func (c *Client) MaxPageFailures() int {
	if c.cfg.MaxPageFailures <= 0 {
		return 10
	}
	return c.cfg.MaxPageFailures
}

// Ping probes the upstream with a single tiny page request.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.fetchOnce(ctx, PageRequest{Page: 1, Size: 1})
	return err
}

func (c *Client) fetchOnce(ctx context.Context, req PageRequest) (*Page, error) {
	u, err := url.Parse(c.cfg.BaseURL + "/products")
	if err != nil {
		return nil, fmt.Errorf("building upstream url: %w", err)
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(req.Page))
	q.Set("size", strconv.Itoa(req.Size))
	if c.cfg.StoreID != "" {
		q.Set("storeId", c.cfg.StoreID)
	}
	if !req.StartDate.IsZero() {
		q.Set("startDate", req.StartDate.Format("2006-01-02"))
	}
	if !req.EndDate.IsZero() {
		q.Set("endDate", req.EndDate.Format("2006-01-02"))
	}
	if req.ProductID != "" {
		q.Set("productId", req.ProductID)
	}
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating upstream request: %w", err)
	}
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetching page %d: %w", req.Page, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("upstream returned %d for page %d: %s", resp.StatusCode, req.Page, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading page %d body: %w", req.Page, err)
	}
	page, err := DecodePage(body)
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", req.Page, err)
	}
	c.logger.Debug("page fetched", "page", req.Page, "items", len(page.Items), "total_pages", page.TotalPages)
	return page, nil
}
