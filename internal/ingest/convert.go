package ingest

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/vldmrch/pharmsync/internal/catalog"
	"github.com/vldmrch/pharmsync/internal/upstream"
)

func pgVector(v []float32) pgvector.Vector {
	return pgvector.NewVector(v)
}

// toProduct maps one upstream item into a catalog product, applying the
// full text transform pipeline.
func toProduct(it *upstream.Item, now time.Time) *catalog.Product {
	name := catalog.CleanText(it.Name)
	generic := catalog.CleanText(it.GenericName)
	return &catalog.Product{
		ID:                     string(it.ProductID),
		Name:                   name,
		GenericName:            generic,
		InternalName:           catalog.CleanText(it.InternalName),
		Manufacturer:           catalog.CleanText(it.Manufacturer),
		Description:            catalog.CleanText(it.Description),
		Category:               catalog.CategoryLabel(int(it.CategoryCode)),
		Dosage:                 catalog.ExtractDosage(name),
		IsPrescriptionRequired: catalog.RequiresPrescription(name),
		SearchableText: catalog.BuildSearchableText(
			it.Name, it.GenericName, it.Manufacturer, it.Ingredients, it.Description,
		),
		LastSyncedAt: now,
	}
}

// toInventory maps the upstream item's primary stock block into an
// inventory row. Negative counters from the upstream clamp to zero.
func toInventory(it *upstream.Item, now time.Time) *catalog.Inventory {
	stock := it.PrimaryStock()
	return &catalog.Inventory{
		ProductID:    string(it.ProductID),
		Available:    clampNonNegative(int(stock.Available)),
		OnHand:       clampNonNegative(int(stock.OnHand)),
		Promised:     clampNonNegative(int(stock.Promise)),
		BasePrice:    float64(it.BasePrice),
		IsActive:     it.IsActive(),
		FacilityName: string(stock.FacilityName),
		LastAPISync:  now,
	}
}

func clampNonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
