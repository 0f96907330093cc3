// Package rank implements the vector ranking engine: query embedding,
// pre-filtered similarity search, inventory joining, pharmaceutical
// re-scoring, and the substring fallback that keeps search available when
// the similarity backend is not.
package rank

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/vldmrch/pharmsync/internal/catalog"
	"github.com/vldmrch/pharmsync/internal/query"
	"github.com/vldmrch/pharmsync/pkg/metrics"
)

// Search modes reported in results and metrics.
const (
	ModeVector   = "vector"
	ModeFallback = "fallback"
)

// SearchStore is the slice of the durable store the engine searches over.
type SearchStore interface {
	SimilaritySearch(ctx context.Context, queryEmbedding []float32, threshold float64, count int, category string, candidateIDs []string) ([]catalog.SearchCandidate, error)
	SubstringSearch(ctx context.Context, q string, category string, limit int) ([]catalog.SearchCandidate, error)
}

// Embedder produces the query embedding (hot-cache-backed in production).
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// InventoryResolver joins candidates with their current inventory view.
type InventoryResolver interface {
	GetInventory(ctx context.Context, productID string, live bool) (*catalog.Inventory, string, error)
}

// Options control one search invocation. Zero values take the engine's
// configured defaults.
type Options struct {
	Limit     int
	Threshold float64
	Category  string
}

// Result is a ranked search response.
type Result struct {
	Query   string                    `json:"query"`
	Parsed  *query.Parsed             `json:"parsed"`
	Mode    string                    `json:"mode"`
	Results []catalog.SearchCandidate `json:"results"`
}

// Engine runs the search pipeline.
type Engine struct {
	store            SearchStore
	prefilter        *query.PreFilter
	embedder         Embedder
	resolver         InventoryResolver
	defaultLimit     int
	defaultThreshold float64
	metrics          *metrics.Metrics
	logger           *slog.Logger
}

// New creates a search engine with the given collaborators and defaults.
func New(st SearchStore, pf *query.PreFilter, embedder Embedder, resolver InventoryResolver, defaultLimit int, defaultThreshold float64, m *metrics.Metrics) *Engine {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	return &Engine{
		store:            st,
		prefilter:        pf,
		embedder:         embedder,
		resolver:         resolver,
		defaultLimit:     defaultLimit,
		defaultThreshold: defaultThreshold,
		metrics:          m,
		logger:           slog.Default().With("component", "rank-engine"),
	}
}

// Search runs the full pipeline: parse, pre-filter, embed, similarity
// search with 2x headroom, inventory join, re-score, sort, truncate. When
// the embedding or similarity backend fails the engine degrades to a
// substring match instead of failing the request; an empty result set is a
// valid, non-error outcome.
func (e *Engine) Search(ctx context.Context, text string, opts Options) (*Result, error) {
	start := time.Now()
	if opts.Limit <= 0 {
		opts.Limit = e.defaultLimit
	}
	if opts.Threshold <= 0 {
		opts.Threshold = e.defaultThreshold
	}
	parsed := query.Parse(text)

	candidates, mode := e.fetchCandidates(ctx, text, parsed, opts)

	for i := range candidates {
		inv, source, err := e.resolver.GetInventory(ctx, candidates[i].Product.ID, false)
		if err != nil {
			// Missing inventory means inactive, never a request failure.
			candidates[i].Inventory = nil
			continue
		}
		candidates[i].Inventory = inv
		candidates[i].DataSource = source
	}

	for i := range candidates {
		candidates[i].FinalScore = FinalScore(&candidates[i], parsed)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].FinalScore > candidates[j].FinalScore
	})
	if len(candidates) > opts.Limit {
		candidates = candidates[:opts.Limit]
	}
	if candidates == nil {
		candidates = []catalog.SearchCandidate{}
	}

	e.observe(mode, time.Since(start))
	e.logger.Info("search executed",
		"query", text,
		"drug", parsed.DrugName,
		"dosage", parsed.Dosage(),
		"mode", mode,
		"results", len(candidates),
	)
	return &Result{
		Query:   text,
		Parsed:  parsed,
		Mode:    mode,
		Results: candidates,
	}, nil
}

// fetchCandidates returns raw scored candidates and the mode that produced
// them. Every failure path ends in the substring fallback.
func (e *Engine) fetchCandidates(ctx context.Context, text string, parsed *query.Parsed, opts Options) ([]catalog.SearchCandidate, string) {
	var candidateIDs []string
	if e.prefilter != nil {
		ids, err := e.prefilter.Candidates(ctx, parsed)
		if err != nil {
			e.logger.Warn("pre-filter failed, searching full corpus", "error", err)
		} else {
			candidateIDs = ids
		}
	}

	queryEmbedding, err := e.embedder.Embed(ctx, query.Normalize(text))
	if err != nil {
		e.logger.Warn("query embedding failed, using substring fallback",
			"query", text, "error", err)
		return e.fallback(ctx, text, parsed, opts), ModeFallback
	}

	// 2x headroom leaves room for re-ranking to demote wrong matches.
	raw, err := e.store.SimilaritySearch(ctx, queryEmbedding, opts.Threshold, opts.Limit*2, opts.Category, candidateIDs)
	if err != nil {
		e.logger.Warn("similarity search failed, using substring fallback",
			"query", text, "error", err)
		return e.fallback(ctx, text, parsed, opts), ModeFallback
	}
	return raw, ModeVector
}

func (e *Engine) fallback(ctx context.Context, text string, parsed *query.Parsed, opts Options) []catalog.SearchCandidate {
	// The canonical name is what catalog rows actually carry; the matched
	// variant may be a misspelling or a transliteration.
	term := text
	if parsed.HasDrug() {
		term = parsed.DrugName
	}
	results, err := e.store.SubstringSearch(ctx, term, opts.Category, opts.Limit*2)
	if err != nil {
		e.logger.Error("substring fallback failed", "query", text, "error", err)
		return nil
	}
	return results
}

func (e *Engine) observe(mode string, elapsed time.Duration) {
	if e.metrics == nil {
		return
	}
	e.metrics.SearchQueriesTotal.WithLabelValues(mode).Inc()
	e.metrics.SearchLatency.WithLabelValues(mode).Observe(elapsed.Seconds())
}
