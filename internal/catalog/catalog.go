// Package catalog defines the pharmaceutical product domain model shared by
// the ingestion, caching, and search layers, together with the text
// transformation pipeline applied to upstream product records.
package catalog

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// Sync run types and statuses recorded in the sync log.
const (
	SyncTypeFull  = "full"
	SyncTypeStock = "stock"

	SyncStatusRunning   = "running"
	SyncStatusCompleted = "completed"
	SyncStatusFailed    = "failed"
)

// Data-source tags reported by the cache-tier resolver.
const (
	SourceHotCache    = "hot_cache"
	SourceShadowCache = "shadow_cache"
	SourceStore       = "store"
	SourceLive        = "live"
)

// Product is the static, embeddable catalog record for a single
// pharmaceutical product. ID is the stable upstream identifier and the join
// key to inventory.
type Product struct {
	ID                     string           `json:"id"`
	Name                   string           `json:"name"`
	GenericName            string           `json:"generic_name"`
	InternalName           string           `json:"internal_name"`
	Manufacturer           string           `json:"manufacturer"`
	Description            string           `json:"description"`
	Category               string           `json:"category"`
	Dosage                 string           `json:"dosage,omitempty"`
	IsPrescriptionRequired bool             `json:"is_prescription_required"`
	SearchableText         string           `json:"-"`
	Embedding              *pgvector.Vector `json:"-"`
	LastSyncedAt           time.Time        `json:"last_synced_at"`
}

// Inventory is the volatile per-product stock and price view, 1:1 with
// Product by ProductID. It is mutated only by the ingestion engine.
type Inventory struct {
	ProductID    string    `json:"product_id"`
	Available    int       `json:"available"`
	OnHand       int       `json:"onhand"`
	Promised     int       `json:"promise"`
	BasePrice    float64   `json:"price"`
	IsActive     bool      `json:"is_active"`
	FacilityName string    `json:"facility_name"`
	LastAPISync  time.Time `json:"updated_at"`
}

// InStock reports whether the product currently has sellable stock.
func (inv *Inventory) InStock() bool {
	return inv != nil && inv.Available > 0
}

// SyncLog is one row per sync invocation: created at sync start, finalized
// at sync end. The latest completed row is the sole source of
// "last successful sync" for staleness checks.
type SyncLog struct {
	ID           int64     `json:"id"`
	Type         string    `json:"type"`
	Status       string    `json:"status"`
	Processed    int       `json:"processed"`
	Created      int       `json:"created"`
	Updated      int       `json:"updated"`
	Failed       int       `json:"failed"`
	DurationMs   int64     `json:"duration_ms"`
	ErrorMessage string    `json:"error_message,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at,omitempty"`
}

// SearchCandidate is a product joined with its current inventory view plus
// transient scoring fields. It is never persisted.
type SearchCandidate struct {
	Product    Product    `json:"product"`
	Inventory  *Inventory `json:"inventory,omitempty"`
	Similarity float64    `json:"similarity"`
	FinalScore float64    `json:"final_score"`
	DataSource string     `json:"data_source"`
}

// FullSyncResult holds the counters returned by a full catalog sync.
type FullSyncResult struct {
	Processed int `json:"processed"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Failed    int `json:"failed"`
}

// StockSyncResult holds the counters returned by a quick stock sync.
type StockSyncResult struct {
	Processed int `json:"processed"`
	Updated   int `json:"updated"`
	Cached    int `json:"cached"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}
