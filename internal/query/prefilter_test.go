package query

import (
	"context"
	"errors"
	"testing"
)

type fakeFinder struct {
	ids   []string
	err   error
	terms []string
}

func (f *fakeFinder) FindCandidateIDs(_ context.Context, terms []string, _ int) ([]string, error) {
	f.terms = terms
	return f.ids, f.err
}

func TestCandidatesNoDrugMeansOpenCorpus(t *testing.T) {
	finder := &fakeFinder{}
	pf := NewPreFilter(finder, 200)
	ids, err := pf.Candidates(context.Background(), Parse("что-то от головы"))
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}
	if ids != nil {
		t.Errorf("ids = %v, want nil for an unrecognized query", ids)
	}
	if finder.terms != nil {
		t.Error("finder must not be consulted without a detected drug")
	}
}

func TestCandidatesIncludeBrandTerms(t *testing.T) {
	finder := &fakeFinder{ids: []string{"1", "2"}}
	pf := NewPreFilter(finder, 200)
	ids, err := pf.Candidates(context.Background(), Parse("ибупрофен 200"))
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("ids = %v", ids)
	}
	var sawBrand bool
	for _, term := range finder.terms {
		if term == "нурофен" {
			sawBrand = true
		}
	}
	if !sawBrand {
		t.Errorf("terms %v missing brand synonym", finder.terms)
	}
}

func TestCandidatesEmptyMatchFallsOpen(t *testing.T) {
	pf := NewPreFilter(&fakeFinder{}, 200)
	ids, err := pf.Candidates(context.Background(), Parse("дротаверин"))
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}
	if ids != nil {
		t.Errorf("ids = %v, want nil when nothing matched", ids)
	}
}

func TestCandidatesPropagatesError(t *testing.T) {
	pf := NewPreFilter(&fakeFinder{err: errors.New("db down")}, 200)
	if _, err := pf.Candidates(context.Background(), Parse("аспирин")); err == nil {
		t.Fatal("expected the store error to propagate")
	}
}
