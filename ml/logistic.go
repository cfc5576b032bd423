package ml

import (
	"encoding/json"
	"errors"
	"os"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Logistic regression defaults.
const (
	DefaultLearningRate = 0.1
	DefaultEpochs       = 300
)

// LogisticRegression is a multinomial (softmax) regression classifier
// trained by full-batch gradient descent.
type LogisticRegression struct {
	LearningRate float64     `json:"learning_rate"`
	Epochs       int         `json:"epochs"`
	L2           float64     `json:"l2"`
	NumClasses   int         `json:"num_classes"`
	Weights      [][]float64 `json:"weights"` // [class][feature]
	Bias         []float64   `json:"bias"`    // [class]
}

// NewLogisticRegression returns an untrained classifier.
func NewLogisticRegression(learningRate float64, epochs int) *LogisticRegression {
	if learningRate <= 0 {
		learningRate = DefaultLearningRate
	}
	if epochs <= 0 {
		epochs = DefaultEpochs
	}
	return &LogisticRegression{LearningRate: learningRate, Epochs: epochs, L2: 1e-4}
}

// Family implements Classifier.
func (lr *LogisticRegression) Family() string { return FamilyLogistic }

// Fit runs batch gradient descent on the cross-entropy loss.
func (lr *LogisticRegression) Fit(features [][]float64, labels []int) error {
	if len(features) == 0 || len(features) != len(labels) {
		return errors.New("features and labels are empty or mismatched")
	}
	n := len(features)
	d := len(features[0])
	k := 0
	flat := make([]float64, 0, n*d)
	for i, row := range features {
		if len(row) != d {
			return errors.New("ragged feature matrix")
		}
		flat = append(flat, row...)
		if labels[i]+1 > k {
			k = labels[i] + 1
		}
	}
	lr.NumClasses = k

	x := mat.NewDense(n, d, flat)
	oneHot := mat.NewDense(n, k, nil)
	for i, y := range labels {
		oneHot.Set(i, y, 1)
	}

	weights := mat.NewDense(k, d, nil)
	bias := make([]float64, k)

	var logits, diff, grad mat.Dense
	for epoch := 0; epoch < lr.Epochs; epoch++ {
		logits.Mul(x, weights.T()) // n x k

		// softmax each row into diff = P - Y
		diff.CloneFrom(&logits)
		for i := 0; i < n; i++ {
			row := diff.RawRowView(i)
			floats.Add(row, bias)
			probs := softmax(row)
			for c := 0; c < k; c++ {
				row[c] = probs[c] - oneHot.At(i, c)
			}
		}

		grad.Mul(diff.T(), x) // k x d
		grad.Scale(1/float64(n), &grad)
		if lr.L2 > 0 {
			var reg mat.Dense
			reg.Scale(lr.L2, weights)
			grad.Add(&grad, &reg)
		}
		grad.Scale(lr.LearningRate, &grad)
		weights.Sub(weights, &grad)

		for c := 0; c < k; c++ {
			sum := 0.0
			for i := 0; i < n; i++ {
				sum += diff.At(i, c)
			}
			bias[c] -= lr.LearningRate * sum / float64(n)
		}
	}

	lr.Weights = make([][]float64, k)
	for c := 0; c < k; c++ {
		lr.Weights[c] = append([]float64(nil), weights.RawRowView(c)...)
	}
	lr.Bias = bias
	return nil
}

// Predict returns the most probable class.
func (lr *LogisticRegression) Predict(features []float64) (int, error) {
	dist, err := lr.PredictProba(features)
	if err != nil {
		return 0, err
	}
	return argmax(dist), nil
}

// PredictProba returns softmax class probabilities.
func (lr *LogisticRegression) PredictProba(features []float64) ([]float64, error) {
	if lr.NumClasses == 0 || len(lr.Weights) == 0 {
		return nil, errors.New("model not trained")
	}
	if len(features) != len(lr.Weights[0]) {
		return nil, errors.New("feature dimension mismatch")
	}
	logits := make([]float64, lr.NumClasses)
	for c := range lr.Weights {
		logits[c] = floats.Dot(lr.Weights[c], features) + lr.Bias[c]
	}
	return softmax(logits), nil
}

// Save writes the model as JSON.
func (lr *LogisticRegression) Save(path string) error {
	if len(lr.Weights) == 0 {
		return errors.New("model not trained")
	}
	payload, err := json.Marshal(lr)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

// Load reads a model saved by Save.
func (lr *LogisticRegression) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var loaded LogisticRegression
	if err := json.Unmarshal(payload, &loaded); err != nil {
		return err
	}
	if loaded.NumClasses == 0 || len(loaded.Weights) != loaded.NumClasses {
		return errors.New("logistic regression file is corrupt")
	}
	*lr = loaded
	return nil
}
