// Package scheduler drives the ingestion engines on fixed cadences and
// performs housekeeping: stock sync every few minutes, full catalog sync
// daily, shadow-cache cleanup hourly, and a periodic health check. Jobs are
// independent; one job's failure never disables the others.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vldmrch/pharmsync/internal/catalog"
	"github.com/vldmrch/pharmsync/internal/ingest"
	"github.com/vldmrch/pharmsync/pkg/config"
	pkgerrors "github.com/vldmrch/pharmsync/pkg/errors"
)

// FullRunner runs a full catalog sync.
type FullRunner interface {
	Run(ctx context.Context, opts ingest.FullOptions) (catalog.FullSyncResult, error)
}

// StockRunner runs a quick stock sync.
type StockRunner interface {
	Run(ctx context.Context, maxProducts int) (catalog.StockSyncResult, error)
}

// HousekeepingStore adds the cleanup operation to the health-check reads.
type HousekeepingStore interface {
	HealthStore
	DeleteExpiredCacheEntries(ctx context.Context) (int64, error)
}

// Scheduler owns the periodic job loops and the manual trigger surface.
type Scheduler struct {
	full   FullRunner
	stock  StockRunner
	store  HousekeepingStore
	cfg    config.SyncConfig
	logger *slog.Logger

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	syncBusy atomic.Bool
}

// New creates a Scheduler over the given engines and store.
func New(full FullRunner, stock StockRunner, st HousekeepingStore, cfg config.SyncConfig) *Scheduler {
	return &Scheduler{
		full:   full,
		stock:  stock,
		store:  st,
		cfg:    cfg,
		logger: slog.Default().With("component", "scheduler"),
	}
}

// Start launches all job loops. It is a no-op when already running.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	jobCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	done := make(chan struct{})
	s.done = done

	var wg sync.WaitGroup
	jobs := []struct {
		name     string
		interval time.Duration
		run      func(context.Context)
	}{
		{"stock-sync", s.cfg.StockInterval, s.runStockJob},
		{"full-sync", s.cfg.FullInterval, s.runFullJob},
		{"cache-cleanup", s.cfg.CleanupInterval, s.runCleanupJob},
		{"health-check", s.cfg.HealthInterval, s.runHealthJob},
	}
	for _, job := range jobs {
		if job.interval <= 0 {
			s.logger.Warn("job disabled, no interval configured", "job", job.name)
			continue
		}
		wg.Add(1)
		go func(name string, interval time.Duration, run func(context.Context)) {
			defer wg.Done()
			s.loop(jobCtx, name, interval, run)
		}(job.name, job.interval, job.run)
	}
	go func() {
		wg.Wait()
		close(done)
	}()
	s.logger.Info("scheduler started",
		"stock_interval", s.cfg.StockInterval,
		"full_interval", s.cfg.FullInterval,
		"cleanup_interval", s.cfg.CleanupInterval,
		"health_interval", s.cfg.HealthInterval,
	)
}

// Stop cancels all job loops and waits for them to drain.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("scheduler stopped")
}

// Restart stops and restarts all job loops.
func (s *Scheduler) Restart(ctx context.Context) {
	s.Stop()
	s.Start(ctx)
}

// Running reports whether the job loops are active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// loop runs one job on its ticker. Panics and errors are contained here so
// a broken job cannot take down its siblings.
func (s *Scheduler) loop(ctx context.Context, name string, interval time.Duration, run func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.runIsolated(ctx, name, run)
		case <-ctx.Done():
			s.logger.Debug("job loop stopping", "job", name)
			return
		}
	}
}

func (s *Scheduler) runIsolated(ctx context.Context, name string, run func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job panicked", "job", name, "panic", r)
		}
	}()
	run(ctx)
}

func (s *Scheduler) runStockJob(ctx context.Context) {
	if _, err := s.TriggerStock(ctx, s.cfg.StockMaxItems); err != nil {
		s.logger.Error("scheduled stock sync failed", "error", err)
	}
}

func (s *Scheduler) runFullJob(ctx context.Context) {
	opts := ingest.FullOptions{BatchSize: s.cfg.BatchSize, GenerateEmbeddings: true}
	if _, err := s.TriggerFull(ctx, opts); err != nil {
		s.logger.Error("scheduled full sync failed", "error", err)
	}
}

func (s *Scheduler) runCleanupJob(ctx context.Context) {
	deleted, err := s.store.DeleteExpiredCacheEntries(ctx)
	if err != nil {
		s.logger.Error("cache cleanup failed", "error", err)
		return
	}
	if deleted > 0 {
		s.logger.Info("expired cache entries removed", "deleted", deleted)
	}
}

func (s *Scheduler) runHealthJob(ctx context.Context) {
	health, err := ClassifyHealth(ctx, s.store)
	if err != nil {
		s.logger.Error("health check failed", "error", err)
		return
	}
	if health.Label == HealthHealthy {
		s.logger.Debug("sync health", "label", health.Label)
		return
	}
	s.logger.Warn("sync health degraded",
		"label", health.Label,
		"products", health.ProductCount,
		"hours_since_success", health.HoursSinceOK,
	)
}

// TriggerFull runs a full sync now, for the scheduler's daily job and the
// operator surface alike. Only one sync runs at a time.
func (s *Scheduler) TriggerFull(ctx context.Context, opts ingest.FullOptions) (catalog.FullSyncResult, error) {
	if !s.syncBusy.CompareAndSwap(false, true) {
		return catalog.FullSyncResult{}, fmt.Errorf("%w: full sync", pkgerrors.ErrSyncRunning)
	}
	defer s.syncBusy.Store(false)
	return s.full.Run(ctx, opts)
}

// TriggerStock runs a stock sync now, bounded to maxProducts items.
func (s *Scheduler) TriggerStock(ctx context.Context, maxProducts int) (catalog.StockSyncResult, error) {
	if !s.syncBusy.CompareAndSwap(false, true) {
		return catalog.StockSyncResult{}, fmt.Errorf("%w: stock sync", pkgerrors.ErrSyncRunning)
	}
	defer s.syncBusy.Store(false)
	return s.stock.Run(ctx, maxProducts)
}

// Health computes the current sync health snapshot.
func (s *Scheduler) Health(ctx context.Context) (*Health, error) {
	return ClassifyHealth(ctx, s.store)
}
