package query

import (
	"context"
	"fmt"
	"log/slog"
)

// CandidateFinder is the store operation the pre-filter needs: IDs of
// products whose names contain any of the given terms.
type CandidateFinder interface {
	FindCandidateIDs(ctx context.Context, terms []string, limit int) ([]string, error)
}

// PreFilter narrows the candidate set by exact drug-name and brand-synonym
// match before similarity search runs.
type PreFilter struct {
	finder CandidateFinder
	limit  int
	logger *slog.Logger
}

// NewPreFilter creates a PreFilter with the given candidate bound.
func NewPreFilter(finder CandidateFinder, limit int) *PreFilter {
	if limit <= 0 {
		limit = 200
	}
	return &PreFilter{
		finder: finder,
		limit:  limit,
		logger: slog.Default().With("component", "pre-filter"),
	}
}

// Candidates returns the bounded product-ID set matching the parsed drug
// name or any of its registered brand synonyms. A nil result means no drug
// was detected (or no catalog row matched) and the full corpus is eligible.
func (f *PreFilter) Candidates(ctx context.Context, parsed *Parsed) ([]string, error) {
	if !parsed.HasDrug() {
		return nil, nil
	}
	terms := DrugTerms(parsed.DrugName)
	ids, err := f.finder.FindCandidateIDs(ctx, terms, f.limit)
	if err != nil {
		return nil, fmt.Errorf("pre-filtering %q: %w", parsed.DrugName, err)
	}
	f.logger.Debug("candidates pre-filtered",
		"drug", parsed.DrugName,
		"terms", len(terms),
		"candidates", len(ids),
	)
	if len(ids) == 0 {
		// A detected drug with no name matches still gets the open corpus;
		// the wrong-identity penalty keeps unrelated drugs out of the top.
		return nil, nil
	}
	return ids, nil
}
