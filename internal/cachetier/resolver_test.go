package cachetier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/vldmrch/pharmsync/internal/catalog"
	"github.com/vldmrch/pharmsync/internal/store"
	"github.com/vldmrch/pharmsync/internal/upstream"
	"github.com/vldmrch/pharmsync/pkg/config"
	pkgerrors "github.com/vldmrch/pharmsync/pkg/errors"
	"github.com/vldmrch/pharmsync/pkg/postgres"
)

func TestKey(t *testing.T) {
	if got := Key("12345"); got != "product:12345" {
		t.Errorf("Key = %q", got)
	}
}

func TestDecodeInventory(t *testing.T) {
	logger := slog.Default()

	inv, ok := decodeInventory("p1", []byte(`{"product_id":"p1","available":7}`), logger)
	if !ok || inv.Available != 7 {
		t.Fatalf("decode = %+v, %v", inv, ok)
	}

	// Older cache entries may predate the product_id field.
	inv, ok = decodeInventory("p2", []byte(`{"available":3}`), logger)
	if !ok || inv.ProductID != "p2" {
		t.Fatalf("product id not backfilled: %+v", inv)
	}

	if _, ok := decodeInventory("p3", []byte(`{broken`), logger); ok {
		t.Error("corrupt payload must not decode")
	}
}

func TestNewDefaultsTTL(t *testing.T) {
	r := New(nil, nil, nil, 0, nil)
	if r.ttl != 300*time.Second {
		t.Errorf("default ttl = %v", r.ttl)
	}
}

// ---------------------------------------------------------------------------
// Postgres-backed tier tests. These skip when the database is unavailable.
// ---------------------------------------------------------------------------

func skipIfNoPostgres(t *testing.T) *store.Store {
	t.Helper()
	cfg := config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            envOrDefaultInt("TEST_POSTGRES_PORT", 5432),
		Database:        envOrDefault("TEST_POSTGRES_DB", "pharmsync_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "pharmsync"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	}
	db, err := postgres.New(cfg)
	if err != nil {
		t.Skipf("skipping: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ddl := `CREATE TABLE IF NOT EXISTS cache_entries (
		key        TEXT PRIMARY KEY,
		value      JSONB NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL
	)`
	if _, err := db.DB.Exec(ddl); err != nil {
		t.Skipf("skipping: cannot prepare schema: %v", err)
	}
	return store.New(db)
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// TestShadowCacheFallback verifies that with no hot cache configured, writes
// land in the durable shadow cache and reads come back from it.
func TestShadowCacheFallback(t *testing.T) {
	st := skipIfNoPostgres(t)
	r := New(nil, st, nil, time.Minute, nil)
	ctx := context.Background()

	productID := fmt.Sprintf("shadow-test-%d", time.Now().UnixNano())
	inv := &catalog.Inventory{
		ProductID:   productID,
		Available:   9,
		BasePrice:   120.5,
		IsActive:    true,
		LastAPISync: time.Now().UTC(),
	}

	if tier := r.SetInventory(ctx, inv); tier != catalog.SourceShadowCache {
		t.Fatalf("write tier = %q, want %q", tier, catalog.SourceShadowCache)
	}

	got, ok := r.getShadow(ctx, productID)
	if !ok {
		t.Fatal("shadow read missed a freshly written entry")
	}
	if got.Available != 9 || got.BasePrice != 120.5 {
		t.Errorf("shadow entry = %+v", got)
	}
}

// TestShadowCacheExpiry verifies that an expired shadow entry reads as
// absent.
func TestShadowCacheExpiry(t *testing.T) {
	st := skipIfNoPostgres(t)
	r := New(nil, st, nil, time.Minute, nil)
	ctx := context.Background()

	productID := fmt.Sprintf("expiry-test-%d", time.Now().UnixNano())
	if err := st.SetCacheEntry(ctx, Key(productID), []byte(`{"available":1}`), -time.Second); err != nil {
		t.Fatalf("SetCacheEntry: %v", err)
	}
	if _, ok := r.getShadow(ctx, productID); ok {
		t.Error("expired entry must read as absent")
	}
}

// TestLiveLookupDoesNotWriteInventoryTable verifies that a live-tier lookup
// refreshes only the caches. The product_inventory table is owned by the
// sync pipeline and stays untouched by reads.
func TestLiveLookupDoesNotWriteInventoryTable(t *testing.T) {
	st := skipIfNoPostgres(t)
	ddl := `CREATE TABLE IF NOT EXISTS product_inventory (
		product_id    TEXT PRIMARY KEY,
		available     INTEGER NOT NULL DEFAULT 0,
		onhand        INTEGER NOT NULL DEFAULT 0,
		promise       INTEGER NOT NULL DEFAULT 0,
		base_price    DOUBLE PRECISION NOT NULL DEFAULT 0,
		is_active     BOOLEAN NOT NULL DEFAULT TRUE,
		facility_name TEXT NOT NULL DEFAULT '',
		last_api_sync TIMESTAMPTZ NOT NULL
	)`
	if _, err := st.DB().DB.Exec(ddl); err != nil {
		t.Skipf("skipping: cannot prepare schema: %v", err)
	}

	productID := fmt.Sprintf("live-test-%d", time.Now().UnixNano())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `[{"PRODUCT_ID":%q,"NAME":"Парацетамол","ACTIVE":"true","BASE_PRICE":"50",
			"STOCKS":[{"AVAILABLE":4,"ONHAND":5,"PROMISE":1,"FACILITY_NAME":"main"}]}]`, productID)
	}))
	defer srv.Close()

	up := upstream.New(config.UpstreamConfig{BaseURL: srv.URL, Timeout: 5 * time.Second}, nil)
	r := New(nil, st, up, time.Minute, nil)
	ctx := context.Background()

	inv, source, err := r.GetInventory(ctx, productID, true)
	if err != nil {
		t.Fatalf("GetInventory: %v", err)
	}
	if source != catalog.SourceLive || inv.Available != 4 {
		t.Fatalf("source = %q, inv = %+v", source, inv)
	}

	if _, ok := r.getShadow(ctx, productID); !ok {
		t.Error("live lookup must refresh the shadow cache")
	}
	if _, err := st.GetInventory(ctx, productID); !errors.Is(err, pkgerrors.ErrInventoryNotFound) {
		t.Errorf("inventory table was written by a read: err = %v", err)
	}
}
