package ml

import (
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"go.uber.org/zap"
)

// labeledBlobs builds three separable clusters keyed by disease name.
func labeledBlobs(perClass int) ([][]float64, []string) {
	centers := map[string][]float64{
		"flu":      {8, 0, 0},
		"cold":     {0, 8, 0},
		"migraine": {0, 0, 8},
	}
	var features [][]float64
	var labels []string
	for _, name := range []string{"flu", "cold", "migraine"} {
		c := centers[name]
		for i := 0; i < perClass; i++ {
			jitter := float64(i%4) * 0.2
			features = append(features, []float64{c[0] + jitter, c[1] + jitter, c[2] + jitter})
			labels = append(labels, name)
		}
	}
	return features, labels
}

func TestTrainPersistsArtifactSet(t *testing.T) {
	features, labels := labeledBlobs(15)
	dir := t.TempDir()

	cfg := DefaultTrainerConfig()
	cfg.ModelsDir = dir
	report, err := NewTrainer(cfg, zap.NewNop()).Train(features, labels, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Meta.BestModel == "" {
		t.Fatal("expected a best model")
	}
	if len(report.Meta.Models) != 4 {
		t.Fatalf("expected 4 candidate scores, got %d", len(report.Meta.Models))
	}
	if !reflect.DeepEqual(report.Meta.Classes, []string{"cold", "flu", "migraine"}) {
		t.Fatalf("expected sorted classes, got %v", report.Meta.Classes)
	}
	if report.TrainSamples+report.TestSamples != len(features) {
		t.Fatalf("samples lost: %d + %d != %d", report.TrainSamples, report.TestSamples, len(features))
	}

	for _, name := range []string{
		BestModelFile, ScalerFile, MetadataFile,
		CandidateModelFile(FamilyDecisionTree),
		CandidateModelFile(FamilyRandomForest),
		CandidateModelFile(FamilyNaiveBayes),
		CandidateModelFile(FamilyLogistic),
	} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected artifact %s: %v", name, err)
		}
	}

	arts, err := LoadArtifacts(dir)
	if err != nil {
		t.Fatalf("load artifacts: %v", err)
	}
	if arts.Meta.BestModel != report.Meta.BestModel {
		t.Fatalf("metadata mismatch: %s vs %s", arts.Meta.BestModel, report.Meta.BestModel)
	}
	if arts.Scaler == nil {
		t.Fatal("expected a persisted scaler")
	}

	// The loaded best model classifies a scaled cluster center correctly.
	vec, err := arts.Scaler.Transform([]float64{8, 0, 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pred, err := arts.Model.Predict(vec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if arts.Meta.Classes[pred] != "flu" {
		t.Fatalf("expected flu, got %s", arts.Meta.Classes[pred])
	}
}

func TestTrainDropsRareClasses(t *testing.T) {
	features, labels := labeledBlobs(10)
	features = append(features, []float64{4, 4, 4})
	labels = append(labels, "rabies")

	cfg := DefaultTrainerConfig()
	cfg.ModelsDir = t.TempDir()
	report, err := NewTrainer(cfg, zap.NewNop()).Train(features, labels, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(report.DroppedClasses, []string{"rabies"}) {
		t.Fatalf("expected [rabies] dropped, got %v", report.DroppedClasses)
	}
	for _, class := range report.Meta.Classes {
		if class == "rabies" {
			t.Fatal("dropped class leaked into metadata")
		}
	}
}

func TestTrainRejectsBadInput(t *testing.T) {
	cfg := DefaultTrainerConfig()
	cfg.ModelsDir = t.TempDir()
	trainer := NewTrainer(cfg, zap.NewNop())

	if _, err := trainer.Train(nil, nil, nil); err == nil {
		t.Fatal("expected error for empty input")
	}
	if _, err := trainer.Train([][]float64{{1, 2}}, []string{"flu"}, []string{"a"}); err == nil {
		t.Fatal("expected error for feature name count mismatch")
	}

	features, labels := labeledBlobs(5)
	features[3][1] = math.NaN()
	if _, err := trainer.Train(features, labels, []string{"a", "b", "c"}); err == nil {
		t.Fatal("expected error for non-finite values")
	}
}

func TestTrainNeedsTwoClasses(t *testing.T) {
	var features [][]float64
	var labels []string
	for i := 0; i < 10; i++ {
		features = append(features, []float64{float64(i)})
		labels = append(labels, "flu")
	}

	cfg := DefaultTrainerConfig()
	cfg.ModelsDir = t.TempDir()
	if _, err := NewTrainer(cfg, zap.NewNop()).Train(features, labels, []string{"a"}); err == nil {
		t.Fatal("expected error for single-class input")
	}
}

func TestLoadArtifactsRejectsPartialSet(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadArtifacts(dir); err == nil {
		t.Fatal("expected error for empty directory")
	}

	// Metadata without the model file it promises is corruption.
	meta := Metadata{
		BestModel:    FamilyDecisionTree,
		FeatureNames: []string{"a"},
		Classes:      []string{"cold", "flu"},
		HasScaler:    false,
	}
	if err := meta.save(filepath.Join(dir, MetadataFile)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := LoadArtifacts(dir); err == nil {
		t.Fatal("expected error for missing best model")
	}
}

func TestGridSearchImprovesOnlyOnBetterScore(t *testing.T) {
	features, labels := separableData(20)

	grid := DefaultGrids()[FamilyDecisionTree]
	result, err := GridSearch(grid, features, labels, 5, 42, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.CVMean < 0 || result.CVMean > 1 {
		t.Fatalf("cv mean %v out of range", result.CVMean)
	}
	if len(result.Params) == 0 {
		t.Fatal("expected chosen parameters")
	}
}

func TestEncodeLabels(t *testing.T) {
	classes, y := encodeLabels([]string{"flu", "cold", "flu", "migraine"})
	if !reflect.DeepEqual(classes, []string{"cold", "flu", "migraine"}) {
		t.Fatalf("expected sorted classes, got %v", classes)
	}
	if !reflect.DeepEqual(y, []int{1, 0, 1, 2}) {
		t.Fatalf("expected dense indices, got %v", y)
	}
}
