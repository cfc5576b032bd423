package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"gonum.org/v1/gonum/stat"
)

// StandardScaler standardizes features to zero mean and unit variance.
// Fit only on the training partition; the test partition and every
// inference vector get the already-fitted transform.
type StandardScaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// FitScaler computes per-column mean and standard deviation.
func FitScaler(features [][]float64) (*StandardScaler, error) {
	if len(features) == 0 || len(features[0]) == 0 {
		return nil, errors.New("cannot fit scaler on empty features")
	}
	cols := len(features[0])
	column := make([]float64, len(features))
	s := &StandardScaler{
		Mean: make([]float64, cols),
		Std:  make([]float64, cols),
	}
	for j := 0; j < cols; j++ {
		for i, row := range features {
			if len(row) != cols {
				return nil, fmt.Errorf("row %d has %d columns, want %d", i, len(row), cols)
			}
			column[i] = row[j]
		}
		mean, std := stat.MeanStdDev(column, nil)
		if std == 0 || len(features) < 2 {
			std = 1 // constant column, leave centered values at 0
		}
		s.Mean[j] = mean
		s.Std[j] = std
	}
	return s, nil
}

// Dim returns the fitted feature dimension.
func (s *StandardScaler) Dim() int { return len(s.Mean) }

// Transform standardizes one vector.
func (s *StandardScaler) Transform(vector []float64) ([]float64, error) {
	if len(vector) != len(s.Mean) {
		return nil, fmt.Errorf("vector length %d does not match scaler dimension %d",
			len(vector), len(s.Mean))
	}
	out := make([]float64, len(vector))
	for i, v := range vector {
		out[i] = (v - s.Mean[i]) / s.Std[i]
	}
	return out, nil
}

// TransformAll standardizes a matrix row by row.
func (s *StandardScaler) TransformAll(features [][]float64) ([][]float64, error) {
	out := make([][]float64, len(features))
	for i, row := range features {
		t, err := s.Transform(row)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

// Save writes the scaler as JSON.
func (s *StandardScaler) Save(path string) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

// LoadScaler reads a fitted scaler from disk.
func LoadScaler(path string) (*StandardScaler, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s StandardScaler
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, err
	}
	if len(s.Mean) == 0 || len(s.Mean) != len(s.Std) {
		return nil, errors.New("scaler file is corrupt")
	}
	return &s, nil
}
