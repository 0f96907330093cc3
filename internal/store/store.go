// Package store implements the durable catalog repositories over PostgreSQL:
// products, inventory, sync logs, the shadow cache, and both search paths
// (pgvector similarity and substring fallback).
//
// Required schema (see scripts/schema.sql):
//
//	CREATE EXTENSION IF NOT EXISTS vector;
//
//	CREATE TABLE catalog_products (
//	    id                       TEXT PRIMARY KEY,
//	    name                     TEXT NOT NULL,
//	    generic_name             TEXT NOT NULL DEFAULT '',
//	    internal_name            TEXT NOT NULL DEFAULT '',
//	    manufacturer             TEXT NOT NULL DEFAULT '',
//	    description              TEXT NOT NULL DEFAULT '',
//	    category                 TEXT NOT NULL DEFAULT 'general',
//	    dosage                   TEXT NOT NULL DEFAULT '',
//	    is_prescription_required BOOLEAN NOT NULL DEFAULT FALSE,
//	    searchable_text          TEXT NOT NULL DEFAULT '',
//	    embedding                vector(1536),
//	    last_synced_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
//
//	CREATE TABLE product_inventory (
//	    product_id    TEXT PRIMARY KEY,
//	    available     INTEGER NOT NULL DEFAULT 0,
//	    onhand        INTEGER NOT NULL DEFAULT 0,
//	    promise       INTEGER NOT NULL DEFAULT 0,
//	    base_price    DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    is_active     BOOLEAN NOT NULL DEFAULT TRUE,
//	    facility_name TEXT NOT NULL DEFAULT '',
//	    last_api_sync TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
//
//	CREATE TABLE sync_logs (
//	    id            BIGSERIAL PRIMARY KEY,
//	    sync_type     TEXT NOT NULL,
//	    status        TEXT NOT NULL,
//	    processed     INTEGER NOT NULL DEFAULT 0,
//	    created       INTEGER NOT NULL DEFAULT 0,
//	    updated       INTEGER NOT NULL DEFAULT 0,
//	    failed        INTEGER NOT NULL DEFAULT 0,
//	    duration_ms   BIGINT NOT NULL DEFAULT 0,
//	    error_message TEXT NOT NULL DEFAULT '',
//	    started_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//	    finished_at   TIMESTAMPTZ
//	);
//
//	CREATE TABLE cache_entries (
//	    key        TEXT PRIMARY KEY,
//	    value      JSONB NOT NULL,
//	    expires_at TIMESTAMPTZ NOT NULL
//	);
package store

import (
	"log/slog"

	"github.com/vldmrch/pharmsync/pkg/postgres"
)

// Store bundles all catalog repositories over one connection pool.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

// New creates a Store over the given PostgreSQL client.
func New(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "store"),
	}
}

// DB exposes the underlying client for health checks.
func (s *Store) DB() *postgres.Client {
	return s.db
}
