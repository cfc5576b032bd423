package ml

import (
	"fmt"

	"go.uber.org/zap"
)

// ParameterGrid is one hyperparameter search space: every Settings entry is
// a full candidate configuration for Build.
type ParameterGrid struct {
	Family   string
	Settings []map[string]float64
	Build    func(params map[string]float64) Classifier
}

// DefaultGrids returns the stock search spaces for the families where
// hyperparameters matter.
func DefaultGrids() map[string]ParameterGrid {
	return map[string]ParameterGrid{
		FamilyDecisionTree: {
			Family: FamilyDecisionTree,
			Settings: []map[string]float64{
				{"max_depth": 8, "min_samples_split": 2},
				{"max_depth": 12, "min_samples_split": 2},
				{"max_depth": 16, "min_samples_split": 4},
			},
			Build: func(p map[string]float64) Classifier {
				return NewDecisionTree(int(p["max_depth"]), int(p["min_samples_split"]))
			},
		},
		FamilyRandomForest: {
			Family: FamilyRandomForest,
			Settings: []map[string]float64{
				{"num_trees": 30, "max_depth": 10},
				{"num_trees": 50, "max_depth": 12},
				{"num_trees": 80, "max_depth": 16},
			},
			Build: func(p map[string]float64) Classifier {
				return NewRandomForest(int(p["num_trees"]), int(p["max_depth"]), 0)
			},
		},
		FamilyLogistic: {
			Family: FamilyLogistic,
			Settings: []map[string]float64{
				{"learning_rate": 0.05, "epochs": 300},
				{"learning_rate": 0.1, "epochs": 300},
				{"learning_rate": 0.1, "epochs": 600},
			},
			Build: func(p map[string]float64) Classifier {
				return NewLogisticRegression(p["learning_rate"], int(p["epochs"]))
			},
		},
	}
}

// GridSearchResult is the best configuration found for one family.
type GridSearchResult struct {
	Family  string             `json:"family"`
	Params  map[string]float64 `json:"params"`
	CVMean  float64            `json:"cv_mean"`
	CVStd   float64            `json:"cv_std"`
	Settled int                `json:"settings_evaluated"`
}

// GridSearch scores every setting of a grid by stratified k-fold
// cross-validation on the training partition and returns the best one.
func GridSearch(grid ParameterGrid, features [][]float64, labels []int, folds int, seed int64, logger *zap.Logger) (*GridSearchResult, error) {
	if len(grid.Settings) == 0 || grid.Build == nil {
		return nil, fmt.Errorf("empty grid for family %q", grid.Family)
	}

	best := &GridSearchResult{Family: grid.Family, CVMean: -1}
	for _, setting := range grid.Settings {
		setting := setting
		mean, std, err := CrossValidate(func() Classifier { return grid.Build(setting) },
			features, labels, folds, seed)
		if err != nil {
			return nil, fmt.Errorf("grid setting %v: %w", setting, err)
		}
		logger.Debug("grid search setting scored",
			zap.String("family", grid.Family),
			zap.Any("params", setting),
			zap.Float64("cv_mean", mean))
		best.Settled++
		if mean > best.CVMean {
			best.CVMean = mean
			best.CVStd = std
			best.Params = setting
		}
	}
	return best, nil
}
