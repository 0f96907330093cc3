package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vldmrch/pharmsync/internal/catalog"
	"github.com/vldmrch/pharmsync/internal/ingest"
	"github.com/vldmrch/pharmsync/internal/scheduler"
	"github.com/vldmrch/pharmsync/pkg/config"
)

type stubFullRunner struct {
	result  catalog.FullSyncResult
	block   chan struct{}
	started chan struct{}
}

func (r *stubFullRunner) Run(context.Context, ingest.FullOptions) (catalog.FullSyncResult, error) {
	if r.started != nil {
		close(r.started)
	}
	if r.block != nil {
		<-r.block
	}
	return r.result, nil
}

type stubStockRunner struct {
	result catalog.StockSyncResult
}

func (r *stubStockRunner) Run(context.Context, int) (catalog.StockSyncResult, error) {
	return r.result, nil
}

type stubHousekeepingStore struct{}

func (stubHousekeepingStore) CountProducts(context.Context) (int64, error) { return 42, nil }
func (stubHousekeepingStore) LatestSyncLog(context.Context) (*catalog.SyncLog, error) {
	return &catalog.SyncLog{Status: catalog.SyncStatusCompleted}, nil
}
func (stubHousekeepingStore) LatestCompletedSync(context.Context) (*catalog.SyncLog, error) {
	return nil, nil
}
func (stubHousekeepingStore) DeleteExpiredCacheEntries(context.Context) (int64, error) {
	return 0, nil
}

func newTestHandler(full *stubFullRunner) *Handler {
	sched := scheduler.New(full, &stubStockRunner{}, stubHousekeepingStore{}, config.SyncConfig{})
	return New(sched)
}

func TestTriggerFullSync(t *testing.T) {
	h := newTestHandler(&stubFullRunner{result: catalog.FullSyncResult{Processed: 3, Created: 3}})
	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"type": "full", "options": {"generateEmbeddings": true}}`)
	h.Trigger(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sync", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Type   string                 `json:"type"`
		Result catalog.FullSyncResult `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Type != "full" || resp.Result.Processed != 3 {
		t.Errorf("response = %+v", resp)
	}
}

func TestTriggerRejectsUnknownType(t *testing.T) {
	h := newTestHandler(&stubFullRunner{})
	rec := httptest.NewRecorder()
	h.Trigger(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sync", strings.NewReader(`{"type": "partial"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestTriggerRejectsInvalidBody(t *testing.T) {
	h := newTestHandler(&stubFullRunner{})
	rec := httptest.NewRecorder()
	h.Trigger(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sync", strings.NewReader(`{broken`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestTriggerConflictsWhileSyncRunning(t *testing.T) {
	full := &stubFullRunner{
		block:   make(chan struct{}),
		started: make(chan struct{}),
	}
	h := newTestHandler(full)

	go func() {
		rec := httptest.NewRecorder()
		h.Trigger(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sync", strings.NewReader(`{"type": "full"}`)))
	}()
	<-full.started

	rec := httptest.NewRecorder()
	h.Trigger(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sync", strings.NewReader(`{"type": "stock"}`)))
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409 while a sync is in flight", rec.Code)
	}
	close(full.block)
}

func TestStatus(t *testing.T) {
	h := newTestHandler(&stubFullRunner{})
	rec := httptest.NewRecorder()
	h.Status(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sync/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Health           *scheduler.Health `json:"health"`
		SchedulerRunning bool              `json:"scheduler_running"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Health == nil || resp.Health.Label != scheduler.HealthNeverSynced {
		t.Errorf("health = %+v", resp.Health)
	}
	if resp.SchedulerRunning {
		t.Error("scheduler should not report running")
	}
}
