package rank

import (
	"github.com/vldmrch/pharmsync/internal/catalog"
	"github.com/vldmrch/pharmsync/internal/query"
)

// Score adjustments applied on top of raw vector similarity. The wrong-drug
// penalty is deliberately larger than any single boost: a semantically
// similar but pharmacologically wrong product must never outrank the right
// drug.
const (
	boostNameMatch    = 0.40
	boostDosageExact  = 0.30
	boostDosageClose  = 0.15
	penaltyWrongDrug  = 0.50
	boostInStock      = 0.10
	boostHighStock    = 0.05
	penaltyOutOfStock = 0.20

	highStockLevel = 50
)

// FinalScore computes the pharmaceutical-correctness score for a candidate:
// raw similarity plus drug-identity, dosage, and availability adjustments.
func FinalScore(c *catalog.SearchCandidate, parsed *query.Parsed) float64 {
	score := c.Similarity

	if parsed.HasDrug() {
		if matchesQueryDrug(c, parsed.DrugName) {
			score += boostNameMatch
		} else {
			score -= penaltyWrongDrug
		}
	}

	if parsed.HasDosage() && c.Product.Dosage != "" {
		switch catalog.DosageMatch(parsed.DosageValue, parsed.DosageUnit, c.Product.Dosage) {
		case "exact":
			score += boostDosageExact
		case "close":
			score += boostDosageClose
		}
	}

	switch {
	case c.Inventory.InStock():
		score += boostInStock
		if c.Inventory.Available > highStockLevel {
			score += boostHighStock
		}
	default:
		// No inventory row counts as unavailable, same as zero stock.
		score -= penaltyOutOfStock
	}

	return score
}

func matchesQueryDrug(c *catalog.SearchCandidate, canonical string) bool {
	return query.MatchesDrug(c.Product.Name, canonical) ||
		query.MatchesDrug(c.Product.GenericName, canonical)
}
