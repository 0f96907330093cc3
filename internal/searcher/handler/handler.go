// Package handler exposes the product search and inventory lookup HTTP
// endpoints.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/vldmrch/pharmsync/internal/cachetier"
	"github.com/vldmrch/pharmsync/internal/rank"
	apperrors "github.com/vldmrch/pharmsync/pkg/errors"
	"github.com/vldmrch/pharmsync/pkg/logger"
)

// Handler serves the search endpoints.
type Handler struct {
	engine       *rank.Engine
	resolver     *cachetier.Resolver
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

// New creates a search handler.
func New(engine *rank.Engine, resolver *cachetier.Resolver, defaultLimit, maxResults int) *Handler {
	return &Handler{
		engine:       engine,
		resolver:     resolver,
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		logger:       slog.Default().With("component", "searcher-handler"),
	}
}

// Search handles GET /api/v1/search?q=&limit=&category=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	q := r.URL.Query().Get("q")
	if q == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	limit := h.defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	if limit > h.maxResults {
		limit = h.maxResults
	}

	result, err := h.engine.Search(ctx, q, rank.Options{
		Limit:    limit,
		Category: r.URL.Query().Get("category"),
	})
	if err != nil {
		log.Error("search failed", "query", q, "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), "search failed")
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// Inventory handles GET /api/v1/products/{id}/inventory. The live upstream
// tier runs only on explicit ?live=1 opt-in.
func (h *Handler) Inventory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID := r.PathValue("id")
	if productID == "" {
		h.writeError(w, http.StatusBadRequest, "product id is required")
		return
	}
	live := r.URL.Query().Get("live") == "1"

	inv, source, err := h.resolver.GetInventory(ctx, productID, live)
	if err != nil {
		h.writeError(w, apperrors.HTTPStatusCode(err), "inventory not found")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"inventory":   inv,
		"data_source": source,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
