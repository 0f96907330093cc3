package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vldmrch/pharmsync/internal/catalog"
	pkgerrors "github.com/vldmrch/pharmsync/pkg/errors"
)

// UpsertInventory writes the volatile stock view for one product. When no
// catalog row exists for the product the write is skipped, not treated as an
// error: inventory must never create phantom products.
func (s *Store) UpsertInventory(ctx context.Context, inv *catalog.Inventory) (skipped bool, err error) {
	res, err := s.db.DB.ExecContext(ctx, `
		INSERT INTO product_inventory (
			product_id, available, onhand, promise, base_price, is_active,
			facility_name, last_api_sync
		)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8
		WHERE EXISTS (SELECT 1 FROM catalog_products WHERE id = $1)
		ON CONFLICT (product_id) DO UPDATE SET
			available = EXCLUDED.available,
			onhand = EXCLUDED.onhand,
			promise = EXCLUDED.promise,
			base_price = EXCLUDED.base_price,
			is_active = EXCLUDED.is_active,
			facility_name = EXCLUDED.facility_name,
			last_api_sync = EXCLUDED.last_api_sync`,
		inv.ProductID, inv.Available, inv.OnHand, inv.Promised, inv.BasePrice,
		inv.IsActive, inv.FacilityName, inv.LastAPISync,
	)
	if err != nil {
		return false, fmt.Errorf("upserting inventory %s: %w", inv.ProductID, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("upserting inventory %s: %w", inv.ProductID, err)
	}
	return rows == 0, nil
}

// GetInventory loads the durable inventory row for one product.
func (s *Store) GetInventory(ctx context.Context, productID string) (*catalog.Inventory, error) {
	var inv catalog.Inventory
	err := s.db.DB.QueryRowContext(ctx, `
		SELECT product_id, available, onhand, promise, base_price, is_active,
		       facility_name, last_api_sync
		FROM product_inventory WHERE product_id = $1`,
		productID,
	).Scan(
		&inv.ProductID, &inv.Available, &inv.OnHand, &inv.Promised,
		&inv.BasePrice, &inv.IsActive, &inv.FacilityName, &inv.LastAPISync,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", pkgerrors.ErrInventoryNotFound, productID)
	}
	if err != nil {
		return nil, fmt.Errorf("querying inventory %s: %w", productID, err)
	}
	return &inv, nil
}
