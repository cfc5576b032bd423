package symptom

import (
	"errors"
	"fmt"
)

// Transformer applies a fitted feature transform (e.g. standardization).
// The same transform fitted at training time must be applied at inference.
type Transformer interface {
	Transform(vector []float64) ([]float64, error)
	Dim() int
}

// Encoder turns a set of matched canonical symptoms into the fixed-length
// weighted feature vector. Position i holds weight(symptom_i) when present,
// 0 otherwise. A present symptom with weight 0 encodes the same as absence.
type Encoder struct {
	vocab  *Vocabulary
	scaler Transformer
}

// NewEncoder builds an encoder; scaler may be nil. A scaler whose dimension
// does not match the vocabulary is a configuration error, not recoverable.
func NewEncoder(vocab *Vocabulary, scaler Transformer) (*Encoder, error) {
	if vocab == nil || vocab.Len() == 0 {
		return nil, errors.New("encoder requires a non-empty vocabulary")
	}
	if scaler != nil && scaler.Dim() != vocab.Len() {
		return nil, fmt.Errorf("scaler dimension %d does not match vocabulary size %d",
			scaler.Dim(), vocab.Len())
	}
	return &Encoder{vocab: vocab, scaler: scaler}, nil
}

// Encode builds the feature vector for canonical symptoms. Symptoms outside
// the vocabulary are ignored; matched symptoms always come from it.
func (e *Encoder) Encode(symptoms []string) ([]float64, error) {
	vector := make([]float64, e.vocab.Len())
	for _, s := range symptoms {
		if idx, ok := e.vocab.Index(s); ok {
			vector[idx] = e.vocab.Weight(s)
		}
	}
	if e.scaler != nil {
		return e.scaler.Transform(vector)
	}
	return vector, nil
}

// Decode returns the symptoms present in an unscaled vector (values > 0),
// in vocabulary order.
func (e *Encoder) Decode(vector []float64) ([]string, error) {
	if len(vector) != e.vocab.Len() {
		return nil, fmt.Errorf("vector length %d does not match vocabulary size %d",
			len(vector), e.vocab.Len())
	}
	var present []string
	for i, v := range vector {
		if v > 0 {
			present = append(present, e.vocab.At(i))
		}
	}
	return present, nil
}
