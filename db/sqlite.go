// Package db keeps the SQLite registry of training runs.
package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"symptomdx/ml"
)

// TrainingRun is one recorded training run.
type TrainingRun struct {
	ID           int64                    `json:"id"`
	TrainedAt    time.Time                `json:"trained_at"`
	Samples      int                      `json:"samples"`
	Classes      int                      `json:"classes"`
	BestModel    string                   `json:"best_model"`
	BestScore    float64                  `json:"best_score"`
	ModelScores  map[string]ml.ModelScore `json:"model_scores"`
	DroppedCount int                      `json:"dropped_classes"`
}

// Store is the training-run registry.
type Store struct {
	db *sql.DB
}

// Open opens (and bootstraps) the registry at path.
func Open(path string) (*Store, error) {
	database, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	query := `
    CREATE TABLE IF NOT EXISTS training_runs (
        id INTEGER PRIMARY KEY,
        trained_at DATETIME NOT NULL,
        samples INTEGER NOT NULL,
        classes INTEGER NOT NULL,
        best_model VARCHAR(64) NOT NULL,
        best_score REAL NOT NULL,
        model_scores TEXT NOT NULL,
        dropped_classes INTEGER NOT NULL DEFAULT 0
    );`
	if _, err := database.Exec(query); err != nil {
		database.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}
	return &Store{db: database}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// RecordRun inserts a completed training run.
func (s *Store) RecordRun(report *ml.Report) (int64, error) {
	scores, err := json.Marshal(report.Meta.Models)
	if err != nil {
		return 0, err
	}
	res, err := s.db.Exec(
		`INSERT INTO training_runs (trained_at, samples, classes, best_model, best_score, model_scores, dropped_classes)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		report.Meta.TrainedAt,
		report.TrainSamples+report.TestSamples,
		len(report.Meta.Classes),
		report.Meta.BestModel,
		report.Meta.BestScore,
		string(scores),
		len(report.DroppedClasses),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(limit int) ([]TrainingRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, trained_at, samples, classes, best_model, best_score, model_scores, dropped_classes
         FROM training_runs ORDER BY trained_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []TrainingRun
	for rows.Next() {
		var run TrainingRun
		var scores string
		if err := rows.Scan(&run.ID, &run.TrainedAt, &run.Samples, &run.Classes,
			&run.BestModel, &run.BestScore, &scores, &run.DroppedCount); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(scores), &run.ModelScores); err != nil {
			return nil, fmt.Errorf("run %d has corrupt model scores: %w", run.ID, err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
