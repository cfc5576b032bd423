package symptom

import (
	"errors"
	"fmt"
	"sort"
)

// Vocabulary is the canonical, ordered symptom list plus severity weights.
// The entry order fixes feature vector positions, so the same Vocabulary
// ordering used to train a model must be used at inference time. Instances
// are immutable after construction.
type Vocabulary struct {
	symptoms []string
	index    map[string]int
	weights  map[string]float64
}

// NewVocabulary builds a vocabulary from canonical names and a weight map.
// Names are normalized, de-duplicated and kept in the given order. Symptoms
// missing from weights get weight 0.
func NewVocabulary(names []string, weights map[string]float64) (*Vocabulary, error) {
	if len(names) == 0 {
		return nil, errors.New("vocabulary is empty")
	}
	v := &Vocabulary{
		index:   make(map[string]int, len(names)),
		weights: make(map[string]float64, len(names)),
	}
	for _, name := range names {
		n := Normalize(name)
		if n == "" {
			continue
		}
		if _, ok := v.index[n]; ok {
			continue
		}
		v.index[n] = len(v.symptoms)
		v.symptoms = append(v.symptoms, n)
	}
	if len(v.symptoms) == 0 {
		return nil, errors.New("vocabulary is empty after normalization")
	}
	for name, w := range weights {
		n := Normalize(name)
		if w < 0 {
			return nil, fmt.Errorf("negative weight %v for symptom %q", w, n)
		}
		v.weights[n] = w
	}
	return v, nil
}

// SortedVocabulary builds a vocabulary with entries in sorted order, the
// ordering used when deriving the vocabulary from raw records.
func SortedVocabulary(names []string, weights map[string]float64) (*Vocabulary, error) {
	normalized := NormalizeAll(names)
	sort.Strings(normalized)
	return NewVocabulary(normalized, weights)
}

// Len returns the number of symptoms.
func (v *Vocabulary) Len() int { return len(v.symptoms) }

// Symptoms returns a copy of the ordered symptom list.
func (v *Vocabulary) Symptoms() []string {
	return append([]string(nil), v.symptoms...)
}

// At returns the symptom at position i.
func (v *Vocabulary) At(i int) string { return v.symptoms[i] }

// Index returns the feature position of a canonical symptom.
func (v *Vocabulary) Index(name string) (int, bool) {
	i, ok := v.index[name]
	return i, ok
}

// Contains reports whether the canonical symptom is in the vocabulary.
func (v *Vocabulary) Contains(name string) bool {
	_, ok := v.index[name]
	return ok
}

// Weight returns the severity weight of a symptom, 0 when undefined.
func (v *Vocabulary) Weight(name string) float64 {
	return v.weights[name]
}

// Weights returns a copy of the weight map covering every vocabulary entry.
func (v *Vocabulary) Weights() map[string]float64 {
	out := make(map[string]float64, len(v.symptoms))
	for _, s := range v.symptoms {
		out[s] = v.weights[s]
	}
	return out
}
