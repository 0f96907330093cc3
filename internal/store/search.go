package store

import (
	"context"
	"database/sql/driver"
	"fmt"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/vldmrch/pharmsync/internal/catalog"
)

// SimilaritySearch runs a pgvector cosine search over products that have an
// embedding. When candidateIDs is non-empty the search is restricted to that
// pre-filtered set; category narrows further when non-empty. Results below
// threshold are excluded and rows come back ranked by similarity.
func (s *Store) SimilaritySearch(ctx context.Context, queryEmbedding []float32, threshold float64, count int, category string, candidateIDs []string) ([]catalog.SearchCandidate, error) {
	vec := pgvector.NewVector(queryEmbedding)
	rows, err := s.db.DB.QueryContext(ctx, `
		SELECT `+productColumns+`,
		       1 - (embedding <=> $1) AS similarity
		FROM catalog_products
		WHERE embedding IS NOT NULL
		  AND ($2 = '' OR category = $2)
		  AND ($3::text[] IS NULL OR cardinality($3::text[]) = 0 OR id = ANY($3))
		  AND 1 - (embedding <=> $1) >= $4
		ORDER BY embedding <=> $1
		LIMIT $5`,
		vec, category, candidateParam(candidateIDs), threshold, count,
	)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	var results []catalog.SearchCandidate
	for rows.Next() {
		var c catalog.SearchCandidate
		if err := rows.Scan(
			&c.Product.ID, &c.Product.Name, &c.Product.GenericName,
			&c.Product.InternalName, &c.Product.Manufacturer,
			&c.Product.Description, &c.Product.Category, &c.Product.Dosage,
			&c.Product.IsPrescriptionRequired, &c.Product.SearchableText,
			&c.Product.LastSyncedAt, &c.Similarity,
		); err != nil {
			return nil, fmt.Errorf("scanning similarity row: %w", err)
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

// candidateParam prepares the candidate-ID restriction for SimilaritySearch.
// lib/pq encodes a nil slice as SQL NULL, which would poison the cardinality
// predicate; an explicit empty array means "no restriction".
func candidateParam(ids []string) driver.Valuer {
	if ids == nil {
		ids = []string{}
	}
	return pq.Array(ids)
}

// SubstringSearch is the degraded search path: a case-insensitive substring
// match over name and generic name, used when the similarity backend fails.
func (s *Store) SubstringSearch(ctx context.Context, query string, category string, limit int) ([]catalog.SearchCandidate, error) {
	rows, err := s.db.DB.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM catalog_products
		WHERE (name ILIKE '%' || $1 || '%' OR generic_name ILIKE '%' || $1 || '%')
		  AND ($2 = '' OR category = $2)
		ORDER BY name
		LIMIT $3`,
		query, category, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("substring search: %w", err)
	}
	defer rows.Close()

	var results []catalog.SearchCandidate
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning substring row: %w", err)
		}
		results = append(results, catalog.SearchCandidate{Product: *p})
	}
	return results, rows.Err()
}

// FindCandidateIDs returns the IDs of products whose name or generic name
// contains any of the given terms (a drug name plus its brand synonyms).
// The result set is bounded to keep the vector step cheap.
func (s *Store) FindCandidateIDs(ctx context.Context, terms []string, limit int) ([]string, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	rows, err := s.db.DB.QueryContext(ctx, `
		SELECT id FROM catalog_products
		WHERE EXISTS (
			SELECT 1 FROM unnest($1::text[]) AS t(term)
			WHERE name ILIKE '%' || t.term || '%'
			   OR generic_name ILIKE '%' || t.term || '%'
		)
		LIMIT $2`,
		pq.Array(terms), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("finding candidates: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning candidate id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
