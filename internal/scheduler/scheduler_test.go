package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vldmrch/pharmsync/internal/catalog"
	"github.com/vldmrch/pharmsync/internal/ingest"
	"github.com/vldmrch/pharmsync/pkg/config"
	pkgerrors "github.com/vldmrch/pharmsync/pkg/errors"
)

type blockingFullRunner struct {
	started chan struct{}
	release chan struct{}
}

func (r *blockingFullRunner) Run(context.Context, ingest.FullOptions) (catalog.FullSyncResult, error) {
	close(r.started)
	<-r.release
	return catalog.FullSyncResult{Processed: 1}, nil
}

type noopStockRunner struct{}

func (noopStockRunner) Run(context.Context, int) (catalog.StockSyncResult, error) {
	return catalog.StockSyncResult{}, nil
}

type fakeHousekeepingStore struct {
	fakeHealthStore
	deleted int64
}

func (f *fakeHousekeepingStore) DeleteExpiredCacheEntries(context.Context) (int64, error) {
	return f.deleted, nil
}

func TestTriggerFullRejectsConcurrentRuns(t *testing.T) {
	runner := &blockingFullRunner{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	s := New(runner, noopStockRunner{}, &fakeHousekeepingStore{}, config.SyncConfig{})

	errCh := make(chan error, 1)
	go func() {
		_, err := s.TriggerFull(context.Background(), ingest.FullOptions{})
		errCh <- err
	}()
	<-runner.started

	// Both manual trigger paths must refuse while a sync is in flight.
	if _, err := s.TriggerFull(context.Background(), ingest.FullOptions{}); !errors.Is(err, pkgerrors.ErrSyncRunning) {
		t.Errorf("second full trigger error = %v, want ErrSyncRunning", err)
	}
	if _, err := s.TriggerStock(context.Background(), 10); !errors.Is(err, pkgerrors.ErrSyncRunning) {
		t.Errorf("stock trigger error = %v, want ErrSyncRunning", err)
	}

	close(runner.release)
	if err := <-errCh; err != nil {
		t.Fatalf("first trigger: %v", err)
	}

	// Once the run drains, triggers work again.
	if _, err := s.TriggerStock(context.Background(), 10); err != nil {
		t.Errorf("trigger after drain: %v", err)
	}
}

func TestSchedulerStartStop(t *testing.T) {
	s := New(
		&blockingFullRunner{started: make(chan struct{}), release: make(chan struct{})},
		noopStockRunner{},
		&fakeHousekeepingStore{},
		config.SyncConfig{
			// Long intervals: the loops must start and stop without firing.
			StockInterval:   time.Hour,
			FullInterval:    time.Hour,
			CleanupInterval: time.Hour,
			HealthInterval:  time.Hour,
		},
	)

	ctx := context.Background()
	if s.Running() {
		t.Fatal("scheduler should not report running before Start")
	}
	s.Start(ctx)
	if !s.Running() {
		t.Fatal("scheduler should report running after Start")
	}
	// Start is idempotent.
	s.Start(ctx)

	s.Stop()
	if s.Running() {
		t.Fatal("scheduler should not report running after Stop")
	}
	// Stop is idempotent.
	s.Stop()
}

func TestSchedulerRestart(t *testing.T) {
	s := New(
		&blockingFullRunner{started: make(chan struct{}), release: make(chan struct{})},
		noopStockRunner{},
		&fakeHousekeepingStore{},
		config.SyncConfig{StockInterval: time.Hour},
	)
	ctx := context.Background()
	s.Start(ctx)
	s.Restart(ctx)
	if !s.Running() {
		t.Fatal("scheduler should be running after Restart")
	}
	s.Stop()
}
