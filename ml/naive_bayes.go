package ml

import (
	"encoding/json"
	"errors"
	"math"
	"os"

	"gonum.org/v1/gonum/stat"
)

// GaussianNB is a Gaussian naive Bayes classifier: per class a prior and
// per-feature mean/variance, scored in log space.
type GaussianNB struct {
	NumClasses int         `json:"num_classes"`
	LogPriors  []float64   `json:"log_priors"`
	Means      [][]float64 `json:"means"`     // [class][feature]
	Variances  [][]float64 `json:"variances"` // [class][feature]
}

// NewGaussianNB returns an untrained classifier.
func NewGaussianNB() *GaussianNB { return &GaussianNB{} }

// Family implements Classifier.
func (nb *GaussianNB) Family() string { return FamilyNaiveBayes }

// Fit estimates priors and per-class feature statistics. Variances are
// floored relative to the largest observed variance to keep the densities
// finite on constant features.
func (nb *GaussianNB) Fit(features [][]float64, labels []int) error {
	if len(features) == 0 || len(features) != len(labels) {
		return errors.New("features and labels are empty or mismatched")
	}
	dims := len(features[0])
	k := 0
	for _, y := range labels {
		if y+1 > k {
			k = y + 1
		}
	}
	nb.NumClasses = k
	nb.LogPriors = make([]float64, k)
	nb.Means = make([][]float64, k)
	nb.Variances = make([][]float64, k)

	byClass := make(map[int][][]float64)
	for i, x := range features {
		if len(x) != dims {
			return errors.New("ragged feature matrix")
		}
		byClass[labels[i]] = append(byClass[labels[i]], x)
	}

	maxVar := 0.0
	column := make([]float64, 0, len(features))
	for c := 0; c < k; c++ {
		rows := byClass[c]
		if len(rows) == 0 {
			return errors.New("class with no samples")
		}
		nb.LogPriors[c] = math.Log(float64(len(rows)) / float64(len(features)))
		nb.Means[c] = make([]float64, dims)
		nb.Variances[c] = make([]float64, dims)
		for j := 0; j < dims; j++ {
			column = column[:0]
			for _, row := range rows {
				column = append(column, row[j])
			}
			mean, variance := stat.MeanVariance(column, nil)
			if len(column) < 2 {
				variance = 0
			}
			nb.Means[c][j] = mean
			nb.Variances[c][j] = variance
			if variance > maxVar {
				maxVar = variance
			}
		}
	}

	floor := 1e-9
	if maxVar > 0 {
		floor = 1e-9 * maxVar
	}
	for c := range nb.Variances {
		for j := range nb.Variances[c] {
			if nb.Variances[c][j] < floor {
				nb.Variances[c][j] = floor
			}
		}
	}
	return nil
}

// Predict returns the class with the highest posterior.
func (nb *GaussianNB) Predict(features []float64) (int, error) {
	dist, err := nb.PredictProba(features)
	if err != nil {
		return 0, err
	}
	return argmax(dist), nil
}

// PredictProba returns normalized posteriors computed in log space.
func (nb *GaussianNB) PredictProba(features []float64) ([]float64, error) {
	if nb.NumClasses == 0 {
		return nil, errors.New("model not trained")
	}
	if len(features) != len(nb.Means[0]) {
		return nil, errors.New("feature dimension mismatch")
	}

	logPost := make([]float64, nb.NumClasses)
	for c := 0; c < nb.NumClasses; c++ {
		lp := nb.LogPriors[c]
		for j, x := range features {
			v := nb.Variances[c][j]
			diff := x - nb.Means[c][j]
			lp += -0.5*math.Log(2*math.Pi*v) - diff*diff/(2*v)
		}
		logPost[c] = lp
	}
	return softmax(logPost), nil
}

// Save writes the model as JSON.
func (nb *GaussianNB) Save(path string) error {
	if nb.NumClasses == 0 {
		return errors.New("model not trained")
	}
	payload, err := json.Marshal(nb)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

// Load reads a model saved by Save.
func (nb *GaussianNB) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var loaded GaussianNB
	if err := json.Unmarshal(payload, &loaded); err != nil {
		return err
	}
	if loaded.NumClasses == 0 || len(loaded.Means) != loaded.NumClasses {
		return errors.New("naive bayes file is corrupt")
	}
	*nb = loaded
	return nil
}

// softmax exponentiates after subtracting the max for stability and
// normalizes to a probability distribution.
func softmax(logits []float64) []float64 {
	maxLogit := logits[0]
	for _, v := range logits[1:] {
		if v > maxLogit {
			maxLogit = v
		}
	}
	out := make([]float64, len(logits))
	sum := 0.0
	for i, v := range logits {
		out[i] = math.Exp(v - maxLogit)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
