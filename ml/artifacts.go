package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Well-known artifact file names inside the models directory.
const (
	BestModelFile = "best_model.json"
	ScalerFile    = "scaler.json"
	MetadataFile  = "model_metadata.json"
)

// CandidateModelFile names the per-family artifact file.
func CandidateModelFile(family string) string {
	return family + "_model.json"
}

// ModelScore is the recorded cross-validation performance of one candidate.
type ModelScore struct {
	CVMean       float64 `json:"cv_mean"`
	CVStd        float64 `json:"cv_std"`
	TestAccuracy float64 `json:"test_accuracy"`
}

// Metadata describes a persisted artifact set. FeatureNames fixes the
// vocabulary ordering used at training time; the predictor must encode with
// exactly this ordering.
type Metadata struct {
	BestModel    string                `json:"best_model"`
	BestScore    float64               `json:"best_score"`
	FeatureNames []string              `json:"feature_names"`
	Classes      []string              `json:"classes"`
	Models       map[string]ModelScore `json:"models"`
	HasScaler    bool                  `json:"has_scaler"`
	TrainedAt    time.Time             `json:"trained_at"`
}

// Artifacts is a loaded, complete artifact set.
type Artifacts struct {
	Meta   Metadata
	Model  Classifier
	Scaler *StandardScaler // nil when the set was trained without one
}

// LoadArtifacts reads the artifact set from dir. A partial set (metadata
// without best model, or a promised scaler missing) is an error: the trainer
// writes the set atomically, so a partial set means corruption.
func LoadArtifacts(dir string) (*Artifacts, error) {
	meta, err := LoadMetadata(filepath.Join(dir, MetadataFile))
	if err != nil {
		return nil, fmt.Errorf("load metadata: %w", err)
	}

	model, err := LoadClassifier(meta.BestModel, filepath.Join(dir, BestModelFile))
	if err != nil {
		return nil, fmt.Errorf("artifact set incomplete: %w", err)
	}

	var scaler *StandardScaler
	if meta.HasScaler {
		scaler, err = LoadScaler(filepath.Join(dir, ScalerFile))
		if err != nil {
			return nil, fmt.Errorf("artifact set incomplete: %w", err)
		}
		if len(meta.FeatureNames) > 0 && scaler.Dim() != len(meta.FeatureNames) {
			return nil, fmt.Errorf("scaler dimension %d does not match %d feature names",
				scaler.Dim(), len(meta.FeatureNames))
		}
	}

	return &Artifacts{Meta: *meta, Model: model, Scaler: scaler}, nil
}

// LoadMetadata reads and validates artifact metadata.
func LoadMetadata(path string) (*Metadata, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var meta Metadata
	if err := json.Unmarshal(payload, &meta); err != nil {
		return nil, err
	}
	if meta.BestModel == "" {
		return nil, errors.New("metadata has no best model")
	}
	if len(meta.Classes) == 0 {
		return nil, errors.New("metadata has no class list")
	}
	return &meta, nil
}

func (m *Metadata) save(path string) error {
	payload, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}
