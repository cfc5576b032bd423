package symptom

import (
	"reflect"
	"testing"
)

func testVocabulary(t *testing.T) *Vocabulary {
	t.Helper()
	vocab, err := NewVocabulary(
		[]string{"fever", "cough", "headache", "nausea", "fatigue"},
		map[string]float64{"fever": 5, "cough": 3, "headache": 2, "nausea": 4, "fatigue": 1},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return vocab
}

func TestMatchAllFuzzyAndExact(t *testing.T) {
	m, err := NewMatcher(testVocabulary(t), DefaultMatcherConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	valid, invalid, err := m.MatchAll([]string{"Feve", "cough"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(valid, []string{"fever", "cough"}) {
		t.Fatalf("expected [fever cough], got %v", valid)
	}
	if len(invalid) != 0 {
		t.Fatalf("expected no invalid tokens, got %v", invalid)
	}
}

func TestMatchAllDeduplicates(t *testing.T) {
	m, err := NewMatcher(testVocabulary(t), DefaultMatcherConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	valid, invalid, err := m.MatchAll([]string{"fever", "Feve", "FEVER", "cough"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(valid, []string{"fever", "cough"}) {
		t.Fatalf("expected deduplicated [fever cough], got %v", valid)
	}
	if len(invalid) != 0 {
		t.Fatalf("expected no invalid tokens, got %v", invalid)
	}
}

func TestMatchAllBelowCutoff(t *testing.T) {
	m, err := NewMatcher(testVocabulary(t), DefaultMatcherConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	valid, invalid, err := m.MatchAll([]string{"xyzzy"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(valid) != 0 {
		t.Fatalf("expected no valid tokens, got %v", valid)
	}
	if !reflect.DeepEqual(invalid, []string{"xyzzy"}) {
		t.Fatalf("expected [xyzzy], got %v", invalid)
	}
}

func TestMatchAllEmptyInput(t *testing.T) {
	m, err := NewMatcher(testVocabulary(t), DefaultMatcherConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, _, err := m.MatchAll(nil); err == nil {
		t.Fatal("expected error for empty input")
	}
	if _, _, err := m.MatchAll([]string{" ", "___"}); err == nil {
		t.Fatal("expected error for whitespace-only tokens")
	}
}

func TestMatchDeterministic(t *testing.T) {
	m, err := NewMatcher(testVocabulary(t), DefaultMatcherConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first, ok := m.Match("feve")
	if !ok {
		t.Fatal("expected a match for feve")
	}
	for i := 0; i < 10; i++ {
		got, ok := m.Match("feve")
		if !ok || got != first {
			t.Fatalf("match not deterministic: %q vs %q", got, first)
		}
	}
}

func TestSuggestionsOrderedAndCapped(t *testing.T) {
	vocab, err := NewVocabulary(
		[]string{"fever", "fevers", "feverish", "cough", "head"},
		nil,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, err := NewMatcher(vocab, DefaultMatcherConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := m.Suggestions("fevver")
	if len(got) == 0 || len(got) > 3 {
		t.Fatalf("expected 1-3 suggestions, got %v", got)
	}
	if got[0] != "fever" && got[0] != "fevers" {
		t.Fatalf("expected closest candidate first, got %v", got)
	}
	for i := 1; i < len(got); i++ {
		if Similarity("fevver", got[i]) > Similarity("fevver", got[i-1]) {
			t.Fatalf("suggestions not ordered by score: %v", got)
		}
	}
}

func TestSuggestionsNoneAboveCutoff(t *testing.T) {
	m, err := NewMatcher(testVocabulary(t), DefaultMatcherConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := m.Suggestions("zzzzzzzzzzzz"); len(got) != 0 {
		t.Fatalf("expected no suggestions, got %v", got)
	}
}

func TestSimilarity(t *testing.T) {
	cases := []struct {
		a, b string
		want float64
	}{
		{"fever", "fever", 1},
		{"feve", "fever", 0.8},
		{"", "fever", 0},
		{"abc", "xyz", 0},
	}
	for _, c := range cases {
		got := Similarity(c.a, c.b)
		if got != c.want {
			t.Fatalf("Similarity(%q, %q) = %v, want %v", c.a, c.b, got, c.want)
		}
	}

	if Similarity("fever", "feve") != Similarity("feve", "fever") {
		t.Fatal("similarity should be symmetric")
	}
}
