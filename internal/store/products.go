package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vldmrch/pharmsync/internal/catalog"
	pkgerrors "github.com/vldmrch/pharmsync/pkg/errors"
)

const productColumns = `id, name, generic_name, internal_name, manufacturer,
	description, category, dosage, is_prescription_required, searchable_text,
	last_synced_at`

// UpsertProduct inserts or updates a catalog product by its upstream ID and
// reports whether a new row was created. A nil embedding leaves an existing
// embedding untouched so a failed embedding call never erases a good vector.
func (s *Store) UpsertProduct(ctx context.Context, p *catalog.Product) (created bool, err error) {
	var embedding any
	if p.Embedding != nil {
		embedding = *p.Embedding
	}
	var inserted bool
	err = s.db.DB.QueryRowContext(ctx, `
		INSERT INTO catalog_products (
			id, name, generic_name, internal_name, manufacturer, description,
			category, dosage, is_prescription_required, searchable_text,
			embedding, last_synced_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			generic_name = EXCLUDED.generic_name,
			internal_name = EXCLUDED.internal_name,
			manufacturer = EXCLUDED.manufacturer,
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			dosage = EXCLUDED.dosage,
			is_prescription_required = EXCLUDED.is_prescription_required,
			searchable_text = EXCLUDED.searchable_text,
			embedding = COALESCE(EXCLUDED.embedding, catalog_products.embedding),
			last_synced_at = EXCLUDED.last_synced_at
		RETURNING (xmax = 0)`,
		p.ID, p.Name, p.GenericName, p.InternalName, p.Manufacturer,
		p.Description, p.Category, p.Dosage, p.IsPrescriptionRequired,
		p.SearchableText, embedding, p.LastSyncedAt,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("upserting product %s: %w", p.ID, err)
	}
	return inserted, nil
}

// GetProduct loads one product by upstream ID.
func (s *Store) GetProduct(ctx context.Context, id string) (*catalog.Product, error) {
	row := s.db.DB.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM catalog_products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", pkgerrors.ErrProductNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying product %s: %w", id, err)
	}
	return p, nil
}

// ProductExists reports whether a catalog row exists for the given ID.
func (s *Store) ProductExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM catalog_products WHERE id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking product %s: %w", id, err)
	}
	return exists, nil
}

// CountProducts returns the total number of catalog rows.
func (s *Store) CountProducts(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM catalog_products`,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting products: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*catalog.Product, error) {
	var p catalog.Product
	var lastSynced time.Time
	if err := row.Scan(
		&p.ID, &p.Name, &p.GenericName, &p.InternalName, &p.Manufacturer,
		&p.Description, &p.Category, &p.Dosage, &p.IsPrescriptionRequired,
		&p.SearchableText, &lastSynced,
	); err != nil {
		return nil, err
	}
	p.LastSyncedAt = lastSynced
	return &p, nil
}
