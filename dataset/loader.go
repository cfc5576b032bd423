// Package dataset loads the labeled training tables: the primary records
// file (disease plus symptom columns) and the symptom severity table.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"symptomdx/symptom"
)

// Record is one labeled training row: a disease and its reported symptoms
// in canonical form.
type Record struct {
	Disease  string
	Symptoms []string
}

// Table is the fully prepared training input.
type Table struct {
	Vocab    *symptom.Vocabulary
	Records  []Record
	Features [][]float64 // rows in Records order, columns in Vocab order
	Labels   []string    // disease per row
	Degraded bool        // severity table was absent, all weights are 0
}

// LoadSeverity reads the (Symptom, weight) severity table. Symptom names are
// normalized; duplicate rows keep the last weight.
func LoadSeverity(path string) (map[string]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read severity header: %w", err)
	}
	if len(header) < 2 {
		return nil, errors.New("severity table needs Symptom and weight columns")
	}

	weights := make(map[string]float64)
	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("severity line %d: %w", line, err)
		}
		if len(row) < 2 {
			return nil, fmt.Errorf("severity line %d: expected 2 columns, got %d", line, len(row))
		}
		name := symptom.Normalize(row[0])
		if name == "" {
			continue
		}
		w, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("severity line %d: bad weight %q: %w", line, row[1], err)
		}
		if w < 0 {
			return nil, fmt.Errorf("severity line %d: negative weight %v for %q", line, w, name)
		}
		weights[name] = w
	}
	if len(weights) == 0 {
		return nil, errors.New("severity table is empty")
	}
	return weights, nil
}

// LoadRecords reads the primary records table. The first column is the
// disease; every column whose header starts with "Symptom" holds one
// reported symptom (blank cells are skipped).
func LoadRecords(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read records header: %w", err)
	}
	var symptomCols []int
	diseaseCol := -1
	for i, col := range header {
		name := strings.TrimSpace(col)
		switch {
		case strings.EqualFold(name, "Disease"):
			diseaseCol = i
		case strings.HasPrefix(name, "Symptom"):
			symptomCols = append(symptomCols, i)
		}
	}
	if diseaseCol < 0 {
		return nil, errors.New("records table has no Disease column")
	}
	if len(symptomCols) == 0 {
		return nil, errors.New("records table has no Symptom columns")
	}

	var records []Record
	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("records line %d: %w", line, err)
		}
		if diseaseCol >= len(row) {
			return nil, fmt.Errorf("records line %d: expected %d columns, got %d", line, diseaseCol+1, len(row))
		}
		disease := strings.TrimSpace(row[diseaseCol])
		if disease == "" {
			continue
		}
		rec := Record{Disease: disease}
		seen := make(map[string]bool)
		for _, c := range symptomCols {
			if c >= len(row) {
				continue
			}
			s := symptom.Normalize(row[c])
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			rec.Symptoms = append(rec.Symptoms, s)
		}
		if len(rec.Symptoms) == 0 {
			continue
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, errors.New("records table has no usable rows")
	}
	return records, nil
}

// Build loads both tables and produces the weighted training matrix. A
// missing severity table is degraded but functional: the vocabulary still
// comes from the records and all weights default to 0.
func Build(recordsPath, severityPath string, logger *zap.Logger) (*Table, error) {
	records, err := LoadRecords(recordsPath)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}

	degraded := false
	weights, err := LoadSeverity(severityPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load severity: %w", err)
		}
		logger.Warn("severity table missing, all symptom weights default to 0",
			zap.String("path", severityPath))
		weights = map[string]float64{}
		degraded = true
	}

	var names []string
	for _, rec := range records {
		names = append(names, rec.Symptoms...)
	}
	vocab, err := symptom.SortedVocabulary(names, weights)
	if err != nil {
		return nil, err
	}

	encoder, err := symptom.NewEncoder(vocab, nil)
	if err != nil {
		return nil, err
	}
	features := make([][]float64, len(records))
	labels := make([]string, len(records))
	for i, rec := range records {
		vec, err := encoder.Encode(rec.Symptoms)
		if err != nil {
			return nil, err
		}
		features[i] = vec
		labels[i] = rec.Disease
	}

	logger.Info("training data prepared",
		zap.Int("records", len(records)),
		zap.Int("symptoms", vocab.Len()),
		zap.Bool("degraded", degraded))

	return &Table{
		Vocab:    vocab,
		Records:  records,
		Features: features,
		Labels:   labels,
		Degraded: degraded,
	}, nil
}
