package predict

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"symptomdx/ml"
)

func writeSeverityTable(t *testing.T, path string) {
	t.Helper()
	severity := "Symptom,weight\nFever,5\nCough,3\nHeadache,2\nFatigue,1\n"
	if err := os.WriteFile(path, []byte(severity), 0o644); err != nil {
		t.Fatalf("write severity: %v", err)
	}
}

// trainModelsInto trains a tiny two-disease model into modelsDir, matching
// the severity table writeSeverityTable produces.
func trainModelsInto(t *testing.T, modelsDir string) {
	t.Helper()
	// Feature order matches the sorted vocabulary the loader would build.
	featureNames := []string{"cough", "fatigue", "fever", "headache"}
	var features [][]float64
	var labels []string
	for i := 0; i < 10; i++ {
		features = append(features, []float64{3, 0, 5, 0}) // cough + fever
		labels = append(labels, "flu")
		features = append(features, []float64{0, 1, 0, 2}) // fatigue + headache
		labels = append(labels, "migraine")
	}

	cfg := ml.DefaultTrainerConfig()
	cfg.ModelsDir = modelsDir
	if _, err := ml.NewTrainer(cfg, zap.NewNop()).Train(features, labels, featureNames); err != nil {
		t.Fatalf("train: %v", err)
	}
}

func trainArtifacts(t *testing.T) (modelsDir, severityPath string) {
	t.Helper()
	dir := t.TempDir()
	modelsDir = filepath.Join(dir, "models")
	severityPath = filepath.Join(dir, "severity.csv")
	writeSeverityTable(t, severityPath)
	trainModelsInto(t, modelsDir)
	return modelsDir, severityPath
}

func loadedPredictor(t *testing.T) *Predictor {
	t.Helper()
	modelsDir, severityPath := trainArtifacts(t)
	p := New(Config{ModelsDir: modelsDir, SeverityPath: severityPath}, zap.NewNop())
	if err := p.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	return p
}

func TestPredictBeforeLoad(t *testing.T) {
	p := New(Config{ModelsDir: t.TempDir()}, zap.NewNop())
	if p.Ready() {
		t.Fatal("expected unloaded predictor")
	}
	if _, err := p.Predict([]string{"fever"}, 3); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected ErrNotLoaded, got %v", err)
	}
}

func TestLoadMissingArtifacts(t *testing.T) {
	p := New(Config{ModelsDir: t.TempDir()}, zap.NewNop())
	if err := p.Load(); err == nil {
		t.Fatal("expected error for empty models directory")
	}
	if p.Ready() {
		t.Fatal("failed load must not mark the predictor ready")
	}
}

func TestPredictEndToEnd(t *testing.T) {
	p := loadedPredictor(t)

	result, err := p.Predict([]string{"Feve", "cough"}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(result.ValidSymptoms, []string{"fever", "cough"}) {
		t.Fatalf("expected fuzzy-corrected symptoms, got %v", result.ValidSymptoms)
	}
	if len(result.InvalidSymptoms) != 0 {
		t.Fatalf("expected no invalid symptoms, got %v", result.InvalidSymptoms)
	}
	if result.TotalSymptomsAnalyzed != 2 {
		t.Fatalf("expected 2 analyzed symptoms, got %d", result.TotalSymptomsAnalyzed)
	}
	if len(result.Predictions) == 0 {
		t.Fatal("expected predictions")
	}
	if result.Predictions[0].Disease != "flu" {
		t.Fatalf("expected flu first, got %s", result.Predictions[0].Disease)
	}
	for i := 1; i < len(result.Predictions); i++ {
		if result.Predictions[i].Probability > result.Predictions[i-1].Probability {
			t.Fatalf("predictions not sorted: %+v", result.Predictions)
		}
	}
}

func TestPredictEmptyInput(t *testing.T) {
	p := loadedPredictor(t)
	if _, err := p.Predict(nil, 3); !errors.Is(err, ErrNoSymptoms) {
		t.Fatalf("expected ErrNoSymptoms, got %v", err)
	}
	if _, err := p.Predict([]string{" ", "___"}, 3); !errors.Is(err, ErrNoSymptoms) {
		t.Fatalf("expected ErrNoSymptoms for blank tokens, got %v", err)
	}
}

func TestPredictNoMatch(t *testing.T) {
	p := loadedPredictor(t)

	_, err := p.Predict([]string{"xyzzy", "qwertyuiop"}, 3)
	var noMatch *NoMatchError
	if !errors.As(err, &noMatch) {
		t.Fatalf("expected NoMatchError, got %v", err)
	}
	if !reflect.DeepEqual(noMatch.InvalidSymptoms, []string{"xyzzy", "qwertyuiop"}) {
		t.Fatalf("expected both tokens reported, got %v", noMatch.InvalidSymptoms)
	}
}

func TestPredictNoMatchSuggestions(t *testing.T) {
	p := loadedPredictor(t)

	// Close enough for a suggestion but below the match cutoff.
	_, err := p.Predict([]string{"fatish"}, 3)
	var noMatch *NoMatchError
	if !errors.As(err, &noMatch) {
		t.Fatalf("expected NoMatchError, got %v", err)
	}
	if len(noMatch.Suggestions) == 0 {
		t.Fatal("expected suggestions for a near-miss token")
	}
	found := false
	for _, c := range noMatch.Suggestions[0].Candidates {
		if c == "fatigue" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected fatigue among candidates, got %v", noMatch.Suggestions)
	}
}

func TestPredictTopNClamping(t *testing.T) {
	p := loadedPredictor(t)

	// Requests beyond the class count are clamped.
	result, err := p.Predict([]string{"fever"}, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Predictions) != 2 {
		t.Fatalf("expected clamp to 2 classes, got %d", len(result.Predictions))
	}

	// A zero request falls back to the default, then clamps.
	result, err = p.Predict([]string{"fever"}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Predictions) != 2 {
		t.Fatalf("expected default clamped to 2, got %d", len(result.Predictions))
	}

	result, err = p.Predict([]string{"fever"}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Predictions) != 1 {
		t.Fatalf("expected exactly 1 prediction, got %d", len(result.Predictions))
	}
}

func TestPredictRejectsNegativeTopN(t *testing.T) {
	p := loadedPredictor(t)
	if _, err := p.Predict([]string{"fever"}, -1); !errors.Is(err, ErrInvalidTopN) {
		t.Fatalf("expected ErrInvalidTopN, got %v", err)
	}
}

func TestReloadKeepsServingOnFailure(t *testing.T) {
	modelsDir, severityPath := trainArtifacts(t)
	p := New(Config{ModelsDir: modelsDir, SeverityPath: severityPath}, zap.NewNop())
	if err := p.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}

	// Corrupt the metadata so the next reload fails validation.
	if err := os.WriteFile(filepath.Join(modelsDir, ml.MetadataFile), []byte("{"), 0o644); err != nil {
		t.Fatalf("corrupt metadata: %v", err)
	}
	if err := p.Reload(); err == nil {
		t.Fatal("expected reload to fail on corrupt metadata")
	}

	// The previous snapshot must keep serving.
	result, err := p.Predict([]string{"fever"}, 1)
	if err != nil {
		t.Fatalf("expected old state to keep serving, got %v", err)
	}
	if len(result.Predictions) != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

type stubProbaModel struct {
	dist []float64
}

func (s *stubProbaModel) Family() string                            { return "stub" }
func (s *stubProbaModel) Fit([][]float64, []int) error              { return nil }
func (s *stubProbaModel) Predict([]float64) (int, error)            { return 0, nil }
func (s *stubProbaModel) PredictProba([]float64) ([]float64, error) { return s.dist, nil }
func (s *stubProbaModel) Save(string) error                         { return nil }
func (s *stubProbaModel) Load(string) error                         { return nil }

type stubHardModel struct {
	label int
}

func (s *stubHardModel) Family() string                 { return "stub" }
func (s *stubHardModel) Fit([][]float64, []int) error   { return nil }
func (s *stubHardModel) Predict([]float64) (int, error) { return s.label, nil }
func (s *stubHardModel) Save(string) error              { return nil }
func (s *stubHardModel) Load(string) error              { return nil }

func TestRankConfidenceTiers(t *testing.T) {
	s := &state{
		proba:   &stubProbaModel{dist: []float64{0.82, 0.10, 0.08}},
		classes: []string{"flu", "cold", "migraine"},
		levels:  DefaultConfidenceLevels(),
	}

	predictions, degraded, err := s.rank([]float64{1}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if degraded {
		t.Fatal("probability model must not be degraded")
	}
	if len(predictions) != 2 {
		t.Fatalf("expected 2 predictions, got %d", len(predictions))
	}
	if predictions[0].Disease != "flu" || predictions[0].Probability != 82 || predictions[0].Confidence != "very high" {
		t.Fatalf("unexpected top prediction: %+v", predictions[0])
	}
	if predictions[1].Disease != "cold" || predictions[1].Probability != 10 || predictions[1].Confidence != "very low" {
		t.Fatalf("unexpected second prediction: %+v", predictions[1])
	}
}

func TestRankStableTieOrder(t *testing.T) {
	s := &state{
		proba:   &stubProbaModel{dist: []float64{0.4, 0.4, 0.2}},
		classes: []string{"flu", "cold", "migraine"},
		levels:  DefaultConfidenceLevels(),
	}

	predictions, _, err := s.rank([]float64{1}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if predictions[0].Disease != "flu" || predictions[1].Disease != "cold" {
		t.Fatalf("tie must keep class order: %+v", predictions)
	}
}

func TestRankDistributionLengthMismatch(t *testing.T) {
	s := &state{
		proba:   &stubProbaModel{dist: []float64{0.5, 0.5}},
		classes: []string{"flu", "cold", "migraine"},
		levels:  DefaultConfidenceLevels(),
	}
	if _, _, err := s.rank([]float64{1}, 3); err == nil {
		t.Fatal("expected error for distribution length mismatch")
	}
}

func TestRankHardLabelFallback(t *testing.T) {
	s := &state{
		model:   &stubHardModel{label: 1},
		classes: []string{"flu", "cold", "migraine"},
		levels:  DefaultConfidenceLevels(),
	}

	predictions, degraded, err := s.rank([]float64{1}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !degraded {
		t.Fatal("expected degraded result without probability support")
	}
	if len(predictions) != 1 {
		t.Fatalf("expected a single hard prediction, got %d", len(predictions))
	}
	if predictions[0].Disease != "cold" || predictions[0].Probability != 100 || predictions[0].Confidence != "high" {
		t.Fatalf("unexpected fallback prediction: %+v", predictions[0])
	}
}

func TestGetModelInfo(t *testing.T) {
	p := New(Config{ModelsDir: t.TempDir()}, zap.NewNop())
	if info := p.GetModelInfo(); info.IsLoaded {
		t.Fatal("expected unloaded info")
	}

	p = loadedPredictor(t)
	info := p.GetModelInfo()
	if !info.IsLoaded {
		t.Fatal("expected loaded info")
	}
	if info.TotalSymptoms != 4 || info.TotalDiseases != 2 {
		t.Fatalf("unexpected counts: %+v", info)
	}
	if !reflect.DeepEqual(info.DiseaseClasses, []string{"flu", "migraine"}) {
		t.Fatalf("unexpected classes: %v", info.DiseaseClasses)
	}
	if !info.HasScaler {
		t.Fatal("expected scaler flag")
	}
}

func TestGetAvailableSymptomsAndWeights(t *testing.T) {
	p := loadedPredictor(t)

	symptoms := p.GetAvailableSymptoms()
	if !reflect.DeepEqual(symptoms, []string{"cough", "fatigue", "fever", "headache"}) {
		t.Fatalf("unexpected vocabulary: %v", symptoms)
	}
	weights := p.GetSymptomWeights()
	if weights["fever"] != 5 || weights["fatigue"] != 1 {
		t.Fatalf("unexpected weights: %v", weights)
	}
}
