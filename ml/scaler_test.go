package ml

import (
	"math"
	"path/filepath"
	"testing"
)

func TestFitScaler(t *testing.T) {
	features := [][]float64{
		{1, 10},
		{2, 10},
		{3, 10},
	}
	s, err := FitScaler(features)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Dim() != 2 {
		t.Fatalf("expected dim 2, got %d", s.Dim())
	}
	if s.Mean[0] != 2 {
		t.Fatalf("expected mean 2, got %v", s.Mean[0])
	}
	// Constant column keeps std 1 so centered values stay 0.
	if s.Std[1] != 1 {
		t.Fatalf("expected unit std for constant column, got %v", s.Std[1])
	}

	out, err := s.Transform([]float64{2, 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0] != 0 || out[1] != 0 {
		t.Fatalf("expected centered vector, got %v", out)
	}
}

func TestScalerTransformStandardizes(t *testing.T) {
	features := [][]float64{{0}, {2}, {4}, {6}}
	s, err := FitScaler(features)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, err := s.Transform([]float64{3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(out[0]) > 1e-9 {
		t.Fatalf("expected mean value to map to 0, got %v", out[0])
	}
}

func TestScalerDimensionMismatch(t *testing.T) {
	s, err := FitScaler([][]float64{{1, 2}, {3, 4}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Transform([]float64{1}); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestFitScalerRejectsRaggedRows(t *testing.T) {
	if _, err := FitScaler([][]float64{{1, 2}, {3}}); err == nil {
		t.Fatal("expected error for ragged rows")
	}
	if _, err := FitScaler(nil); err == nil {
		t.Fatal("expected error for empty features")
	}
}

func TestScalerSaveLoad(t *testing.T) {
	s, err := FitScaler([][]float64{{1, 5}, {3, 7}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	path := filepath.Join(t.TempDir(), ScalerFile)
	if err := s.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := LoadScaler(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Dim() != s.Dim() {
		t.Fatalf("expected dim %d, got %d", s.Dim(), loaded.Dim())
	}
	want, _ := s.Transform([]float64{2, 6})
	got, err := loaded.Transform([]float64{2, 6})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range want {
		if want[i] != got[i] {
			t.Fatalf("loaded scaler differs: %v vs %v", got, want)
		}
	}
}
