package ml

import "fmt"

// NewClassifier returns an untrained classifier of the given family with
// default hyperparameters.
func NewClassifier(family string) (Classifier, error) {
	switch family {
	case FamilyDecisionTree:
		return NewDecisionTree(DefaultTreeDepth, DefaultMinSamplesSplit), nil
	case FamilyRandomForest:
		return NewRandomForest(DefaultForestSize, DefaultTreeDepth, 0), nil
	case FamilyNaiveBayes:
		return NewGaussianNB(), nil
	case FamilyLogistic:
		return NewLogisticRegression(DefaultLearningRate, DefaultEpochs), nil
	default:
		return nil, fmt.Errorf("unsupported model family %q", family)
	}
}

// LoadClassifier reconstructs a trained classifier from its artifact file.
func LoadClassifier(family, path string) (Classifier, error) {
	model, err := NewClassifier(family)
	if err != nil {
		return nil, err
	}
	if err := model.Load(path); err != nil {
		return nil, fmt.Errorf("load %s from %s: %w", family, path, err)
	}
	return model, nil
}
