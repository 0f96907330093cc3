package store

import "testing"

// A whole-corpus search passes no candidate restriction. The parameter must
// encode as an empty array, not SQL NULL, or the candidate predicate filters
// out every row.
func TestCandidateParamNilEncodesAsEmptyArray(t *testing.T) {
	v, err := candidateParam(nil).Value()
	if err != nil {
		t.Fatalf("Value() error: %v", err)
	}
	if v == nil {
		t.Fatal("nil candidate slice encoded as SQL NULL, want empty array")
	}
	if s, ok := v.(string); !ok || s != "{}" {
		t.Fatalf("nil candidate slice encoded as %v (%T), want \"{}\"", v, v)
	}
}

func TestCandidateParamKeepsIDs(t *testing.T) {
	v, err := candidateParam([]string{"p1", "p2"}).Value()
	if err != nil {
		t.Fatalf("Value() error: %v", err)
	}
	if s, ok := v.(string); !ok || s != `{"p1","p2"}` {
		t.Fatalf("candidate slice encoded as %v (%T)", v, v)
	}
}
