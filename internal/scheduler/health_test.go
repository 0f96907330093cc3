package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vldmrch/pharmsync/internal/catalog"
)

type fakeHealthStore struct {
	count     int64
	countErr  error
	latest    *catalog.SyncLog
	completed *catalog.SyncLog
}

func (f *fakeHealthStore) CountProducts(context.Context) (int64, error) {
	return f.count, f.countErr
}

func (f *fakeHealthStore) LatestSyncLog(context.Context) (*catalog.SyncLog, error) {
	return f.latest, nil
}

func (f *fakeHealthStore) LatestCompletedSync(context.Context) (*catalog.SyncLog, error) {
	return f.completed, nil
}

func completedLog(age time.Duration) *catalog.SyncLog {
	return &catalog.SyncLog{
		Type:       catalog.SyncTypeFull,
		Status:     catalog.SyncStatusCompleted,
		FinishedAt: time.Now().Add(-age),
	}
}

func TestClassifyHealth(t *testing.T) {
	tests := []struct {
		name  string
		store *fakeHealthStore
		want  string
	}{
		{
			"empty catalog",
			&fakeHealthStore{count: 0},
			HealthNoData,
		},
		{
			"products but no sync log",
			&fakeHealthStore{count: 100},
			HealthNeverSynced,
		},
		{
			"last sync failed",
			&fakeHealthStore{
				count:  100,
				latest: &catalog.SyncLog{Status: catalog.SyncStatusFailed},
			},
			HealthUnhealthy,
		},
		{
			"no completed sync yet",
			&fakeHealthStore{
				count:  100,
				latest: &catalog.SyncLog{Status: catalog.SyncStatusRunning},
			},
			HealthNeverSynced,
		},
		{
			"fresh sync",
			&fakeHealthStore{
				count:     100,
				latest:    completedLog(2 * time.Hour),
				completed: completedLog(2 * time.Hour),
			},
			HealthHealthy,
		},
		{
			"aging past one day",
			&fakeHealthStore{
				count:     100,
				latest:    completedLog(30 * time.Hour),
				completed: completedLog(30 * time.Hour),
			},
			HealthAging,
		},
		{
			"stale past two days",
			&fakeHealthStore{
				count:     100,
				latest:    completedLog(72 * time.Hour),
				completed: completedLog(72 * time.Hour),
			},
			HealthStale,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := ClassifyHealth(context.Background(), tt.store)
			if err != nil {
				t.Fatalf("ClassifyHealth: %v", err)
			}
			if h.Label != tt.want {
				t.Errorf("label = %q, want %q", h.Label, tt.want)
			}
		})
	}
}

func TestClassifyHealthDoesNotHideBoundaries(t *testing.T) {
	// 24 hours is within the grace window; 25 hours is the aging threshold.
	st := &fakeHealthStore{
		count:     10,
		latest:    completedLog(24 * time.Hour),
		completed: completedLog(24 * time.Hour),
	}
	h, err := ClassifyHealth(context.Background(), st)
	if err != nil {
		t.Fatalf("ClassifyHealth: %v", err)
	}
	if h.Label != HealthHealthy {
		t.Errorf("24h-old sync = %q, want healthy", h.Label)
	}
	if h.HoursSinceOK < 23.9 || h.HoursSinceOK > 24.1 {
		t.Errorf("HoursSinceOK = %v", h.HoursSinceOK)
	}
}

func TestClassifyHealthStoreError(t *testing.T) {
	st := &fakeHealthStore{countErr: errors.New("db down")}
	if _, err := ClassifyHealth(context.Background(), st); err == nil {
		t.Fatal("expected error to propagate")
	}
}
