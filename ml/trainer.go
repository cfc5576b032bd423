package ml

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"
)

// TrainerConfig tunes the offline training run.
type TrainerConfig struct {
	ModelsDir    string  `yaml:"dir"`
	TestFraction float64 `yaml:"test_fraction"`
	Folds        int     `yaml:"cv_folds"`
	Seed         int64   `yaml:"seed"`
	GridSearch   bool    `yaml:"grid_search"`
}

// DefaultTrainerConfig returns the stock training parameters.
func DefaultTrainerConfig() TrainerConfig {
	return TrainerConfig{
		ModelsDir:    "models",
		TestFraction: 0.2,
		Folds:        5,
		Seed:         42,
	}
}

// Trainer trains the candidate families, selects the best by cross-validated
// accuracy and persists the artifact set. Any stage failure aborts the run
// without touching a previously valid artifact set.
type Trainer struct {
	cfg    TrainerConfig
	logger *zap.Logger
}

// NewTrainer builds a trainer.
func NewTrainer(cfg TrainerConfig, logger *zap.Logger) *Trainer {
	if cfg.TestFraction <= 0 || cfg.TestFraction >= 1 {
		cfg.TestFraction = 0.2
	}
	if cfg.Folds < 2 {
		cfg.Folds = 5
	}
	if cfg.ModelsDir == "" {
		cfg.ModelsDir = "models"
	}
	return &Trainer{cfg: cfg, logger: logger}
}

// Report summarizes a completed training run.
type Report struct {
	Meta           Metadata
	DroppedClasses []string
	TrainSamples   int
	TestSamples    int
	BestParams     map[string]float64
}

// Train runs the whole pipeline: rare-class filtering, stratified split,
// scaler fit, per-family cross-validation, optional grid search, and the
// atomic artifact swap. featureNames fixes the vocabulary order the caller
// encoded the matrix with.
func (t *Trainer) Train(features [][]float64, labels []string, featureNames []string) (*Report, error) {
	if len(features) == 0 || len(features) != len(labels) {
		return nil, errors.New("features and labels are empty or mismatched")
	}
	if len(featureNames) != len(features[0]) {
		return nil, fmt.Errorf("%d feature names for %d columns", len(featureNames), len(features[0]))
	}
	for i, row := range features {
		if len(row) != len(featureNames) {
			return nil, fmt.Errorf("row %d has %d columns, want %d", i, len(row), len(featureNames))
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("non-finite value at row %d column %d", i, j)
			}
		}
	}

	features, labels, dropped := FilterRareClasses(features, labels)
	if len(dropped) > 0 {
		t.logger.Warn("classes below stratification threshold filtered out",
			zap.Strings("classes", dropped),
			zap.Int("min_samples", MinClassSamples))
	}
	if len(features) == 0 {
		return nil, errors.New("no classes with enough samples to train on")
	}

	classes, y := encodeLabels(labels)
	if len(classes) < 2 {
		return nil, fmt.Errorf("need at least 2 classes, have %d", len(classes))
	}

	trainX, trainY, testX, testY, err := StratifiedSplit(features, y, t.cfg.TestFraction, t.cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("stratified split: %w", err)
	}
	t.logger.Info("data prepared",
		zap.Int("train_samples", len(trainX)),
		zap.Int("test_samples", len(testX)),
		zap.Int("classes", len(classes)))

	scaler, err := FitScaler(trainX)
	if err != nil {
		return nil, fmt.Errorf("fit scaler: %w", err)
	}
	trainX, err = scaler.TransformAll(trainX)
	if err != nil {
		return nil, err
	}
	testX, err = scaler.TransformAll(testX)
	if err != nil {
		return nil, err
	}

	families := []string{FamilyRandomForest, FamilyDecisionTree, FamilyNaiveBayes, FamilyLogistic}
	trained := make(map[string]Classifier, len(families))
	scores := make(map[string]ModelScore, len(families))
	bestFamily := ""
	bestScore := -1.0
	for _, family := range families {
		family := family
		cvMean, cvStd, err := CrossValidate(func() Classifier {
			m, _ := NewClassifier(family)
			return m
		}, trainX, trainY, t.cfg.Folds, t.cfg.Seed)
		if err != nil {
			return nil, fmt.Errorf("cross-validate %s: %w", family, err)
		}

		model, err := NewClassifier(family)
		if err != nil {
			return nil, err
		}
		if err := model.Fit(trainX, trainY); err != nil {
			return nil, fmt.Errorf("fit %s: %w", family, err)
		}
		testAcc, err := Accuracy(model, testX, testY)
		if err != nil {
			return nil, fmt.Errorf("evaluate %s: %w", family, err)
		}

		trained[family] = model
		scores[family] = ModelScore{CVMean: cvMean, CVStd: cvStd, TestAccuracy: testAcc}
		t.logger.Info("candidate trained",
			zap.String("family", family),
			zap.Float64("cv_mean", cvMean),
			zap.Float64("cv_std", cvStd),
			zap.Float64("test_accuracy", testAcc))

		if cvMean > bestScore {
			bestScore = cvMean
			bestFamily = family
		}
	}

	var bestParams map[string]float64
	if t.cfg.GridSearch {
		if grid, ok := DefaultGrids()[bestFamily]; ok {
			result, err := GridSearch(grid, trainX, trainY, t.cfg.Folds, t.cfg.Seed, t.logger)
			if err != nil {
				return nil, fmt.Errorf("grid search %s: %w", bestFamily, err)
			}
			// The tuned configuration replaces the stock one only on
			// an actual CV improvement.
			if result.CVMean > bestScore {
				tuned := grid.Build(result.Params)
				if err := tuned.Fit(trainX, trainY); err != nil {
					return nil, fmt.Errorf("fit tuned %s: %w", bestFamily, err)
				}
				testAcc, err := Accuracy(tuned, testX, testY)
				if err != nil {
					return nil, err
				}
				trained[bestFamily] = tuned
				scores[bestFamily] = ModelScore{CVMean: result.CVMean, CVStd: result.CVStd, TestAccuracy: testAcc}
				bestScore = result.CVMean
				bestParams = result.Params
				t.logger.Info("grid search improved best model",
					zap.String("family", bestFamily),
					zap.Any("params", result.Params),
					zap.Float64("cv_mean", result.CVMean))
			}
		}
	}

	meta := Metadata{
		BestModel:    bestFamily,
		BestScore:    bestScore,
		FeatureNames: append([]string(nil), featureNames...),
		Classes:      classes,
		Models:       scores,
		HasScaler:    true,
		TrainedAt:    time.Now().UTC(),
	}
	if err := t.persist(trained, bestFamily, scaler, &meta); err != nil {
		return nil, fmt.Errorf("persist artifacts: %w", err)
	}
	t.logger.Info("training run complete",
		zap.String("best_model", bestFamily),
		zap.Float64("best_score", bestScore),
		zap.String("models_dir", t.cfg.ModelsDir))

	return &Report{
		Meta:           meta,
		DroppedClasses: dropped,
		TrainSamples:   len(trainX),
		TestSamples:    len(testX),
		BestParams:     bestParams,
	}, nil
}

// persist writes every artifact into a staging directory first and renames
// the files into place only after all of them exist, metadata last. A crash
// mid-run leaves the previous artifact set intact.
func (t *Trainer) persist(trained map[string]Classifier, bestFamily string, scaler *StandardScaler, meta *Metadata) error {
	if err := os.MkdirAll(t.cfg.ModelsDir, 0o755); err != nil {
		return err
	}
	stage, err := os.MkdirTemp(t.cfg.ModelsDir, ".staging-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(stage)

	names := make([]string, 0, len(trained)+3)
	for family, model := range trained {
		name := CandidateModelFile(family)
		if err := model.Save(filepath.Join(stage, name)); err != nil {
			return fmt.Errorf("save %s: %w", family, err)
		}
		names = append(names, name)
	}
	if err := trained[bestFamily].Save(filepath.Join(stage, BestModelFile)); err != nil {
		return fmt.Errorf("save best model: %w", err)
	}
	names = append(names, BestModelFile)
	if err := scaler.Save(filepath.Join(stage, ScalerFile)); err != nil {
		return fmt.Errorf("save scaler: %w", err)
	}
	names = append(names, ScalerFile)
	if err := meta.save(filepath.Join(stage, MetadataFile)); err != nil {
		return fmt.Errorf("save metadata: %w", err)
	}
	names = append(names, MetadataFile)

	for _, name := range names {
		if err := os.Rename(filepath.Join(stage, name), filepath.Join(t.cfg.ModelsDir, name)); err != nil {
			return fmt.Errorf("swap %s into place: %w", name, err)
		}
	}
	return nil
}

// encodeLabels maps disease names to dense class indices. Classes are
// sorted so the mapping is stable for identical inputs.
func encodeLabels(labels []string) (classes []string, y []int) {
	set := make(map[string]bool)
	for _, name := range labels {
		set[name] = true
	}
	classes = make([]string, 0, len(set))
	for name := range set {
		classes = append(classes, name)
	}
	sort.Strings(classes)
	index := make(map[string]int, len(classes))
	for i, name := range classes {
		index[name] = i
	}
	y = make([]int, len(labels))
	for i, name := range labels {
		y[i] = index[name]
	}
	return classes, y
}
