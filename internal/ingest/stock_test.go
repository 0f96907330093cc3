package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vldmrch/pharmsync/internal/catalog"
	"github.com/vldmrch/pharmsync/internal/upstream"
)

type fakeInventoryCache struct {
	mu   sync.Mutex
	tier string
	set  []string
}

func (f *fakeInventoryCache) SetInventory(_ context.Context, inv *catalog.Inventory) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.set = append(f.set, inv.ProductID)
	return f.tier
}

func seedProducts(st *fakeCatalogStore, ids ...string) {
	for _, id := range ids {
		st.products[id] = &catalog.Product{ID: id, Name: "seeded"}
	}
}

func TestStockSyncSkipsUnknownProducts(t *testing.T) {
	st := newFakeCatalogStore()
	seedProducts(st, "1")
	fetcher := &fakeFetcher{pages: map[int]*upstream.Page{
		1: {Items: []upstream.Item{
			item("1", "Парацетамол 500мг", 7),
			item("2", "Неизвестный препарат", 3),
		}, TotalPages: 1},
	}}
	s := NewStockSyncer(st, fetcher, nil, nil, 10, nil)

	result, err := s.Run(context.Background(), 100)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Updated != 1 || result.Skipped != 1 {
		t.Errorf("result = %+v, want 1 updated and 1 skipped", result)
	}
	// The referential guard: stock sync must never create catalog rows.
	if _, exists := st.products["2"]; exists {
		t.Error("unknown product must not be created by stock sync")
	}
	if _, exists := st.inventories["2"]; exists {
		t.Error("inventory row for an unknown product must not exist")
	}
	if st.inventories["1"] == nil || st.inventories["1"].Available != 7 {
		t.Errorf("known product inventory = %+v", st.inventories["1"])
	}
}

func TestStockSyncCachesUpdates(t *testing.T) {
	st := newFakeCatalogStore()
	seedProducts(st, "1", "2")
	fetcher := &fakeFetcher{pages: map[int]*upstream.Page{
		1: {Items: []upstream.Item{
			item("1", "Парацетамол 500мг", 7),
			item("2", "Ибупрофен 200мг", 4),
		}, TotalPages: 1},
	}}
	cache := &fakeInventoryCache{tier: catalog.SourceHotCache}
	s := NewStockSyncer(st, fetcher, cache, nil, 10, nil)

	result, err := s.Run(context.Background(), 100)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Updated != 2 || result.Cached != 2 {
		t.Errorf("result = %+v, want 2 updated and 2 cached", result)
	}
	if len(cache.set) != 2 {
		t.Errorf("cache writes = %d", len(cache.set))
	}
}

func TestStockSyncCacheWriteFailureStillCountsUpdate(t *testing.T) {
	st := newFakeCatalogStore()
	seedProducts(st, "1")
	fetcher := &fakeFetcher{pages: map[int]*upstream.Page{
		1: {Items: []upstream.Item{item("1", "Парацетамол 500мг", 7)}, TotalPages: 1},
	}}
	cache := &fakeInventoryCache{tier: ""}
	s := NewStockSyncer(st, fetcher, cache, nil, 10, nil)

	result, err := s.Run(context.Background(), 100)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Updated != 1 || result.Cached != 0 {
		t.Errorf("result = %+v, want 1 updated and 0 cached", result)
	}
}

func TestStockSyncFailsRunOnPageError(t *testing.T) {
	st := newFakeCatalogStore()
	fetcher := &fakeFetcher{errPages: map[int]error{1: errors.New("upstream down")}}
	s := NewStockSyncer(st, fetcher, nil, nil, 10, nil)

	if _, err := s.Run(context.Background(), 100); err == nil {
		t.Fatal("expected the run to fail on a page error")
	}
	if got := st.finalized; len(got) != 1 || got[0] != catalog.SyncStatusFailed {
		t.Errorf("finalized = %v, want failed", got)
	}
}

func TestStockSyncPublishesEvent(t *testing.T) {
	st := newFakeCatalogStore()
	seedProducts(st, "1")
	fetcher := &fakeFetcher{pages: map[int]*upstream.Page{
		1: {Items: []upstream.Item{item("1", "Парацетамол 500мг", 7)}, TotalPages: 1},
	}}
	events := &fakePublisher{}
	s := NewStockSyncer(st, fetcher, nil, events, 10, nil)

	if _, err := s.Run(context.Background(), 100); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if events.count() != 1 {
		t.Errorf("events published = %d, want 1", events.count())
	}
}

func TestStockSyncItemsWithoutIDAreSkipped(t *testing.T) {
	st := newFakeCatalogStore()
	fetcher := &fakeFetcher{pages: map[int]*upstream.Page{
		1: {Items: []upstream.Item{item("", "Без идентификатора", 1)}, TotalPages: 1},
	}}
	s := NewStockSyncer(st, fetcher, nil, nil, 10, nil)

	result, err := s.Run(context.Background(), 100)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Skipped != 1 {
		t.Errorf("result = %+v, want 1 skipped", result)
	}
}

func TestConvertClampsNegativeCounters(t *testing.T) {
	it := upstream.Item{
		ProductID: "1",
		Stocks: []upstream.Stock{{
			Available: upstream.FlexInt(-3),
			OnHand:    upstream.FlexInt(5),
		}},
	}
	inv := toInventory(&it, time.Now().UTC())
	if inv.Available != 0 {
		t.Errorf("Available = %d, want clamped 0", inv.Available)
	}
	if inv.OnHand != 5 {
		t.Errorf("OnHand = %d", inv.OnHand)
	}
}

func TestConvertProductPipeline(t *testing.T) {
	it := upstream.Item{
		ProductID:    "42",
		Name:         "<b>Амоксициллин 500мг</b>",
		GenericName:  "амоксициллин",
		CategoryCode: upstream.FlexInt(2),
	}
	p := toProduct(&it, time.Now().UTC())
	if p.Name != "Амоксициллин 500мг" {
		t.Errorf("Name = %q", p.Name)
	}
	if p.Dosage != "500мг" {
		t.Errorf("Dosage = %q", p.Dosage)
	}
	if p.Category != "antibiotics" {
		t.Errorf("Category = %q", p.Category)
	}
	if !p.IsPrescriptionRequired {
		t.Error("amoxicillin should be flagged prescription-required")
	}
	if p.SearchableText == "" {
		t.Error("searchable text empty")
	}
}
