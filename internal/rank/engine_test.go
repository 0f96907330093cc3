package rank

import (
	"context"
	"errors"
	"testing"

	"github.com/vldmrch/pharmsync/internal/catalog"
)

type fakeStore struct {
	similarity      []catalog.SearchCandidate
	similarityErr   error
	substring       []catalog.SearchCandidate
	substringErr    error
	lastSubstringQ  string
	similarityCount int
}

func (f *fakeStore) SimilaritySearch(_ context.Context, _ []float32, _ float64, count int, _ string, _ []string) ([]catalog.SearchCandidate, error) {
	f.similarityCount = count
	if f.similarityErr != nil {
		return nil, f.similarityErr
	}
	return f.similarity, nil
}

func (f *fakeStore) SubstringSearch(_ context.Context, q string, _ string, _ int) ([]catalog.SearchCandidate, error) {
	f.lastSubstringQ = q
	if f.substringErr != nil {
		return nil, f.substringErr
	}
	return f.substring, nil
}

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return make([]float32, 1536), nil
}

type fakeResolver struct {
	inventories map[string]*catalog.Inventory
	err         error
}

func (f *fakeResolver) GetInventory(_ context.Context, productID string, _ bool) (*catalog.Inventory, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	inv, ok := f.inventories[productID]
	if !ok {
		return nil, "", errors.New("not found")
	}
	return inv, catalog.SourceHotCache, nil
}

func newTestEngine(st *fakeStore, emb *fakeEmbedder, res *fakeResolver) *Engine {
	return New(st, nil, emb, res, 10, 0.3, nil)
}

func TestSearchVectorMode(t *testing.T) {
	st := &fakeStore{
		similarity: []catalog.SearchCandidate{
			candidate("Парацетамол 500мг", "парацетамол", "500мг", 0.80, 0),
			candidate("Пантопразол 40мг", "пантопразол", "40мг", 0.85, 0),
		},
	}
	res := &fakeResolver{inventories: map[string]*catalog.Inventory{
		"p-Парацетамол 500мг": {ProductID: "p-Парацетамол 500мг", Available: 12},
		"p-Пантопразол 40мг":  {ProductID: "p-Пантопразол 40мг", Available: 12},
	}}
	engine := newTestEngine(st, &fakeEmbedder{}, res)

	result, err := engine.Search(context.Background(), "парацетамол 500мг", Options{Limit: 5})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.Mode != ModeVector {
		t.Errorf("mode = %q, want %q", result.Mode, ModeVector)
	}
	if len(result.Results) != 2 {
		t.Fatalf("got %d results", len(result.Results))
	}
	// Re-ranking must put the queried drug first despite the raw
	// similarity favouring the other product.
	if result.Results[0].Product.GenericName != "парацетамол" {
		t.Errorf("top result = %q", result.Results[0].Product.Name)
	}
	if st.similarityCount != 10 {
		t.Errorf("similarity fetch count = %d, want limit*2 = 10", st.similarityCount)
	}
}

func TestSearchFallbackOnEmbeddingFailure(t *testing.T) {
	st := &fakeStore{
		substring: []catalog.SearchCandidate{
			candidate("Парацетамол 500мг", "парацетамол", "500мг", 0, 0),
		},
	}
	engine := newTestEngine(st, &fakeEmbedder{err: errors.New("provider down")}, &fakeResolver{})

	result, err := engine.Search(context.Background(), "парацетомол 500", Options{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.Mode != ModeFallback {
		t.Errorf("mode = %q, want %q", result.Mode, ModeFallback)
	}
	if len(result.Results) != 1 {
		t.Fatalf("got %d results", len(result.Results))
	}
	// The fallback searches by the canonical drug name so a misspelled
	// query still matches correctly spelled catalog rows.
	if st.lastSubstringQ != "парацетамол" {
		t.Errorf("substring query = %q", st.lastSubstringQ)
	}
}

func TestSearchFallbackOnSimilarityFailure(t *testing.T) {
	st := &fakeStore{
		similarityErr: errors.New("pgvector unavailable"),
		substring: []catalog.SearchCandidate{
			candidate("Аспирин 100мг", "аспирин", "100мг", 0, 0),
		},
	}
	engine := newTestEngine(st, &fakeEmbedder{}, &fakeResolver{})

	result, err := engine.Search(context.Background(), "аспирин", Options{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.Mode != ModeFallback {
		t.Errorf("mode = %q, want %q", result.Mode, ModeFallback)
	}
}

func TestSearchEmptyResultIsNotError(t *testing.T) {
	engine := newTestEngine(&fakeStore{}, &fakeEmbedder{}, &fakeResolver{})
	result, err := engine.Search(context.Background(), "несуществующий препарат", Options{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.Results == nil {
		t.Error("results must be an empty slice, not nil")
	}
	if len(result.Results) != 0 {
		t.Errorf("got %d results", len(result.Results))
	}
}

func TestSearchTruncatesToLimit(t *testing.T) {
	var many []catalog.SearchCandidate
	for i := 0; i < 8; i++ {
		many = append(many, candidate("Аспирин 100мг", "аспирин", "100мг", 0.5, 10))
	}
	st := &fakeStore{similarity: many}
	engine := newTestEngine(st, &fakeEmbedder{}, &fakeResolver{err: errors.New("cache down")})

	result, err := engine.Search(context.Background(), "аспирин", Options{Limit: 3})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(result.Results) != 3 {
		t.Errorf("got %d results, want 3", len(result.Results))
	}
	// Resolver failure leaves candidates without inventory rather than
	// failing the search.
	if result.Results[0].Inventory != nil {
		t.Error("inventory should be nil when the resolver fails")
	}
}
