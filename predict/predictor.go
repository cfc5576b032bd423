// Package predict serves symptom-to-disease inference over a loaded
// artifact set: matching, encoding, classifier invocation and confidence
// bucketing.
package predict

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"sync/atomic"

	"go.uber.org/zap"

	"symptomdx/dataset"
	"symptomdx/ml"
	"symptomdx/symptom"
)

// DefaultTopN is used when the caller does not ask for a specific count.
const DefaultTopN = 3

// Config wires the predictor to its artifact store and tunables.
type Config struct {
	ModelsDir    string                `yaml:"dir"`
	SeverityPath string                `yaml:"severity_path"`
	Matcher      symptom.MatcherConfig `yaml:"matcher"`
	Confidence   ConfidenceLevels      `yaml:"confidence"`
}

// Prediction is one ranked disease candidate.
type Prediction struct {
	Disease     string  `json:"disease"`
	Probability float64 `json:"probability"` // percent, two decimals
	Confidence  string  `json:"confidence"`
}

// Result is the structured outcome of one prediction request.
type Result struct {
	Predictions           []Prediction `json:"predictions"`
	ValidSymptoms         []string     `json:"valid_symptoms"`
	InvalidSymptoms       []string     `json:"invalid_symptoms"`
	TotalSymptomsAnalyzed int          `json:"total_symptoms_analyzed"`
	Degraded              bool         `json:"degraded,omitempty"` // hard-label fallback, no ranking
}

// ModelInfo describes the currently loaded model.
type ModelInfo struct {
	ModelType      string   `json:"model_type"`
	IsLoaded       bool     `json:"is_loaded"`
	TotalSymptoms  int      `json:"total_symptoms"`
	TotalDiseases  int      `json:"total_diseases"`
	DiseaseClasses []string `json:"disease_classes"`
	HasScaler      bool     `json:"has_scaler"`
	BestScore      float64  `json:"best_score"`
}

// state is the immutable serving snapshot: model, scaler, vocabulary and
// matcher always travel together so in-flight requests never see a mix of
// old and new pieces.
type state struct {
	model   ml.Classifier
	proba   ml.ProbabilityClassifier // nil when the model has no probability interface
	vocab   *symptom.Vocabulary
	matcher *symptom.Matcher
	encoder *symptom.Encoder
	classes []string
	meta    ml.Metadata
	levels  ConfidenceLevels
}

// Predictor owns the serving state. It starts unloaded; every Predict call
// before a successful Load returns ErrNotLoaded. Load/Reload build a fully
// validated snapshot and swap it in atomically.
type Predictor struct {
	cfg     Config
	logger  *zap.Logger
	current atomic.Pointer[state]
}

// New builds an unloaded predictor.
func New(cfg Config, logger *zap.Logger) *Predictor {
	if cfg.ModelsDir == "" {
		cfg.ModelsDir = "models"
	}
	if cfg.Confidence == (ConfidenceLevels{}) {
		cfg.Confidence = DefaultConfidenceLevels()
	}
	return &Predictor{cfg: cfg, logger: logger}
}

// Load reads the artifact set and swaps it into serving. On any failure the
// previous state (possibly none) keeps serving and the error is returned,
// never thrown past this boundary.
func (p *Predictor) Load() error {
	next, err := p.buildState()
	if err != nil {
		p.logger.Error("model load failed", zap.Error(err))
		return err
	}
	p.current.Store(next)
	p.logger.Info("model loaded",
		zap.String("model_type", next.model.Family()),
		zap.Int("symptoms", next.vocab.Len()),
		zap.Int("diseases", len(next.classes)),
		zap.Bool("has_scaler", next.meta.HasScaler))
	return nil
}

// Reload is Load under its hot-swap name; watchers call it on artifact
// changes.
func (p *Predictor) Reload() error { return p.Load() }

// Ready reports whether a model is serving.
func (p *Predictor) Ready() bool { return p.current.Load() != nil }

func (p *Predictor) buildState() (*state, error) {
	arts, err := ml.LoadArtifacts(p.cfg.ModelsDir)
	if err != nil {
		return nil, err
	}

	weights, werr := dataset.LoadSeverity(p.cfg.SeverityPath)
	if werr != nil {
		if !errors.Is(werr, os.ErrNotExist) {
			return nil, fmt.Errorf("load severity table: %w", werr)
		}
		weights = map[string]float64{}
	}

	var vocab *symptom.Vocabulary
	if len(arts.Meta.FeatureNames) > 0 {
		// Feature order from training metadata is the contract.
		vocab, err = symptom.NewVocabulary(arts.Meta.FeatureNames, weights)
	} else {
		if len(weights) == 0 {
			return nil, errors.New("metadata has no feature names and severity table is unavailable")
		}
		p.logger.Warn("metadata has no feature names, deriving vocabulary from severity table",
			zap.String("path", p.cfg.SeverityPath))
		names := make([]string, 0, len(weights))
		for name := range weights {
			names = append(names, name)
		}
		vocab, err = symptom.SortedVocabulary(names, weights)
	}
	if err != nil {
		return nil, err
	}
	if werr != nil {
		p.logger.Warn("severity table missing, matched symptoms will carry weight 0",
			zap.String("path", p.cfg.SeverityPath))
	}

	matcher, err := symptom.NewMatcher(vocab, p.cfg.Matcher)
	if err != nil {
		return nil, err
	}
	var scaler symptom.Transformer
	if arts.Scaler != nil {
		scaler = arts.Scaler
	}
	encoder, err := symptom.NewEncoder(vocab, scaler)
	if err != nil {
		return nil, fmt.Errorf("scaler/vocabulary mismatch: %w", err)
	}

	next := &state{
		model:   arts.Model,
		vocab:   vocab,
		matcher: matcher,
		encoder: encoder,
		classes: arts.Meta.Classes,
		meta:    arts.Meta,
		levels:  p.cfg.Confidence,
	}
	if proba, ok := arts.Model.(ml.ProbabilityClassifier); ok {
		next.proba = proba
	}
	return next, nil
}

// Predict runs the full pipeline for one request. Input validation errors
// and no-match outcomes come back typed; anything unexpected is logged and
// masked behind ErrPredictionFailed.
func (p *Predictor) Predict(rawSymptoms []string, topN int) (result *Result, err error) {
	s := p.current.Load()
	if s == nil {
		return nil, ErrNotLoaded
	}
	if len(rawSymptoms) == 0 {
		return nil, ErrNoSymptoms
	}
	if topN < 0 {
		return nil, ErrInvalidTopN
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("panic during prediction", zap.Any("panic", r))
			result, err = nil, ErrPredictionFailed
		}
	}()

	valid, invalid, err := s.matcher.MatchAll(rawSymptoms)
	if err != nil {
		return nil, ErrNoSymptoms
	}
	if len(valid) == 0 {
		return nil, &NoMatchError{
			InvalidSymptoms: invalid,
			Suggestions:     suggestionsFor(s.matcher, invalid),
		}
	}

	vector, err := s.encoder.Encode(valid)
	if err != nil {
		p.logger.Error("feature encoding failed", zap.Error(err), zap.Strings("symptoms", valid))
		return nil, ErrPredictionFailed
	}

	predictions, degraded, err := s.rank(vector, topN)
	if err != nil {
		p.logger.Error("inference failed", zap.Error(err), zap.String("model_type", s.model.Family()))
		return nil, ErrPredictionFailed
	}

	return &Result{
		Predictions:           predictions,
		ValidSymptoms:         valid,
		InvalidSymptoms:       invalid,
		TotalSymptomsAnalyzed: len(valid),
		Degraded:              degraded,
	}, nil
}

// rank produces the top-N ranked candidates, topN clamped to
// [1, len(classes)] with zero meaning DefaultTopN. Negative values are
// rejected by Predict before any work happens. Without a probability
// interface it degrades to a single hard prediction at 100%.
func (s *state) rank(vector []float64, topN int) ([]Prediction, bool, error) {
	if topN == 0 {
		topN = DefaultTopN
	}
	if topN < 1 {
		topN = 1
	}
	if topN > len(s.classes) {
		topN = len(s.classes)
	}

	if s.proba == nil {
		label, err := s.model.Predict(vector)
		if err != nil {
			return nil, false, err
		}
		if label < 0 || label >= len(s.classes) {
			return nil, false, fmt.Errorf("class index %d out of range", label)
		}
		return []Prediction{{
			Disease:     s.classes[label],
			Probability: 100,
			Confidence:  "high",
		}}, true, nil
	}

	dist, err := s.proba.PredictProba(vector)
	if err != nil {
		return nil, false, err
	}
	if len(dist) != len(s.classes) {
		return nil, false, fmt.Errorf("model produced %d probabilities for %d classes", len(dist), len(s.classes))
	}

	order := make([]int, len(dist))
	for i := range order {
		order[i] = i
	}
	// Stable sort keeps original class order on ties; the classifier does
	// not guarantee a tie-break otherwise.
	sort.SliceStable(order, func(a, b int) bool {
		return dist[order[a]] > dist[order[b]]
	})

	predictions := make([]Prediction, 0, topN)
	for _, idx := range order[:topN] {
		percent := math.Round(dist[idx]*10000) / 100
		predictions = append(predictions, Prediction{
			Disease:     s.classes[idx],
			Probability: percent,
			Confidence:  s.levels.Label(percent),
		})
	}
	return predictions, false, nil
}

func suggestionsFor(matcher *symptom.Matcher, invalid []string) []Suggestion {
	var out []Suggestion
	for _, token := range invalid {
		if candidates := matcher.Suggestions(token); len(candidates) > 0 {
			out = append(out, Suggestion{Token: token, Candidates: candidates})
		}
	}
	return out
}

// GetModelInfo reports on the loaded model; a pure read of in-memory state.
func (p *Predictor) GetModelInfo() ModelInfo {
	s := p.current.Load()
	if s == nil {
		return ModelInfo{IsLoaded: false}
	}
	return ModelInfo{
		ModelType:      s.model.Family(),
		IsLoaded:       true,
		TotalSymptoms:  s.vocab.Len(),
		TotalDiseases:  len(s.classes),
		DiseaseClasses: append([]string(nil), s.classes...),
		HasScaler:      s.meta.HasScaler,
		BestScore:      s.meta.BestScore,
	}
}

// GetAvailableSymptoms returns the served vocabulary in feature order.
func (p *Predictor) GetAvailableSymptoms() []string {
	s := p.current.Load()
	if s == nil {
		return nil
	}
	return s.vocab.Symptoms()
}

// GetSymptomWeights returns the severity weight per served symptom.
func (p *Predictor) GetSymptomWeights() map[string]float64 {
	s := p.current.Load()
	if s == nil {
		return nil
	}
	return s.vocab.Weights()
}
