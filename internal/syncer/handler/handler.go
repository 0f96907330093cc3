// Package handler exposes the sync admin HTTP surface: manual triggers,
// status, and scheduler start/stop for operators.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/vldmrch/pharmsync/internal/catalog"
	"github.com/vldmrch/pharmsync/internal/ingest"
	"github.com/vldmrch/pharmsync/internal/scheduler"
	apperrors "github.com/vldmrch/pharmsync/pkg/errors"
	"github.com/vldmrch/pharmsync/pkg/logger"
)

// Handler serves the sync admin endpoints.
type Handler struct {
	scheduler *scheduler.Scheduler
	logger    *slog.Logger
}

// New creates a sync admin handler.
func New(sched *scheduler.Scheduler) *Handler {
	return &Handler{
		scheduler: sched,
		logger:    slog.Default().With("component", "syncer-handler"),
	}
}

// TriggerRequest is the manual-sync request body.
type TriggerRequest struct {
	Type    string             `json:"type"`
	Options ingest.FullOptions `json:"options"`
}

// Trigger starts a sync run of the requested type and responds with its
// counters. Returns 409 while another sync is in flight.
func (h *Handler) Trigger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req TriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var result any
	var err error
	switch req.Type {
	case catalog.SyncTypeFull:
		// Manual full syncs run detached from the request context so a
		// closed connection does not abort a long catalog crawl.
		result, err = h.scheduler.TriggerFull(context.WithoutCancel(ctx), req.Options)
	case catalog.SyncTypeStock:
		result, err = h.scheduler.TriggerStock(context.WithoutCancel(ctx), req.Options.MaxProducts)
	default:
		h.writeError(w, http.StatusBadRequest, `type must be "full" or "stock"`)
		return
	}
	if err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("manual sync failed", "type", req.Type, "status_code", statusCode, "error", err)
		h.writeJSON(w, statusCode, map[string]any{
			"error":  err.Error(),
			"result": result,
		})
		return
	}
	log.Info("manual sync completed", "type", req.Type)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"type":   req.Type,
		"result": result,
	})
}

// Status reports the latest sync log and computed health label.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	health, err := h.scheduler.Health(r.Context())
	if err != nil {
		h.logger.Error("status check failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "status check failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"health":            health,
		"scheduler_running": h.scheduler.Running(),
	})
}

// Start brings the scheduler's job loops up.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	h.scheduler.Start(context.WithoutCancel(r.Context()))
	h.writeJSON(w, http.StatusOK, map[string]string{"scheduler": "started"})
}

// Stop halts the scheduler's job loops.
func (h *Handler) Stop(w http.ResponseWriter, r *http.Request) {
	h.scheduler.Stop()
	h.writeJSON(w, http.StatusOK, map[string]string{"scheduler": "stopped"})
}

// Restart stops and restarts the scheduler's job loops.
func (h *Handler) Restart(w http.ResponseWriter, r *http.Request) {
	h.scheduler.Restart(context.WithoutCancel(r.Context()))
	h.writeJSON(w, http.StatusOK, map[string]string{"scheduler": "restarted"})
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
