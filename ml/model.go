// Package ml holds the candidate classifier families, the training pipeline
// that cross-validates and selects among them, and the persisted artifact
// set the predictor loads.
package ml

// Classifier is a trainable multi-class model. Labels are dense class
// indices 0..K-1; the trainer owns the mapping to disease names.
type Classifier interface {
	Family() string
	Fit(features [][]float64, labels []int) error
	Predict(features []float64) (int, error)
	Save(path string) error
	Load(path string) error
}

// ProbabilityClassifier is the optional ranked-probabilities capability.
// Callers must capability-check and fall back to a single hard prediction
// when a model does not provide it.
type ProbabilityClassifier interface {
	Classifier
	PredictProba(features []float64) ([]float64, error)
}

// Classifier family identifiers, also used in artifact file names.
const (
	FamilyDecisionTree = "decision_tree"
	FamilyRandomForest = "random_forest"
	FamilyNaiveBayes   = "naive_bayes"
	FamilyLogistic     = "logistic_regression"
)
