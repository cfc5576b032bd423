package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"symptomdx/db"
	"symptomdx/monitoring"
	"symptomdx/predict"
)

// DiseasePredictor is the serving surface the handlers need; satisfied by
// *predict.Predictor.
type DiseasePredictor interface {
	Ready() bool
	Predict(symptoms []string, topN int) (*predict.Result, error)
	GetModelInfo() predict.ModelInfo
	GetAvailableSymptoms() []string
	GetSymptomWeights() map[string]float64
}

// RunSource lists recorded training runs; satisfied by *db.Store.
type RunSource interface {
	RecentRuns(limit int) ([]db.TrainingRun, error)
}

// API bundles the handler dependencies. Runs and Monitor may be nil.
type API struct {
	Predictor DiseasePredictor
	Runs      RunSource
	Monitor   *monitoring.Hub
	Logger    *zap.Logger
}

// Register mounts all API routes.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", a.handleHealth)
	mux.HandleFunc("POST /api/predict", a.handlePredict)
	mux.HandleFunc("GET /api/symptoms", a.handleSymptoms)
	mux.HandleFunc("GET /api/symptoms/weights", a.handleSymptomWeights)
	mux.HandleFunc("GET /api/model/info", a.handleModelInfo)
	mux.HandleFunc("GET /api/training/runs", a.handleTrainingRuns)
	if a.Monitor != nil {
		mux.HandleFunc("GET /api/ws/monitor", a.Monitor.ServeWS)
	}
}

type predictRequest struct {
	Symptoms []string `json:"symptoms"`
	TopN     int      `json:"top_n"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// noMatchResponse is the structured payload for all-invalid input; it is an
// expected outcome, returned with 200 so front ends can re-prompt the user.
type noMatchResponse struct {
	Error           string               `json:"error"`
	InvalidSymptoms []string             `json:"invalid_symptoms"`
	Suggestions     []predict.Suggestion `json:"suggestions"`
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	info := a.Predictor.GetModelInfo()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"model_loaded":   info.IsLoaded,
		"total_symptoms": info.TotalSymptoms,
		"total_diseases": info.TotalDiseases,
	})
}

func (a *API) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.TopN == 0 {
		req.TopN = predict.DefaultTopN
	}

	start := time.Now()
	result, err := a.Predictor.Predict(req.Symptoms, req.TopN)
	if err != nil {
		var noMatch *predict.NoMatchError
		switch {
		case errors.As(err, &noMatch):
			// Expected outcome, not a system failure; the error counter
			// tracks only failures.
			suggestions := noMatch.Suggestions
			if suggestions == nil {
				suggestions = []predict.Suggestion{}
			}
			writeJSON(w, http.StatusOK, noMatchResponse{
				Error:           "no valid symptoms found",
				InvalidSymptoms: noMatch.InvalidSymptoms,
				Suggestions:     suggestions,
			})
		case errors.Is(err, predict.ErrNotLoaded):
			a.recordError()
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		case errors.Is(err, predict.ErrNoSymptoms), errors.Is(err, predict.ErrInvalidTopN):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		default:
			a.recordError()
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: predict.ErrPredictionFailed.Error()})
		}
		return
	}

	if a.Monitor != nil && len(result.Predictions) > 0 {
		a.Monitor.RecordPrediction(monitoring.PredictionEvent{
			SymptomCount: result.TotalSymptomsAnalyzed,
			InvalidCount: len(result.InvalidSymptoms),
			TopDisease:   result.Predictions[0].Disease,
			Probability:  result.Predictions[0].Probability,
			Duration:     time.Since(start),
		})
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleSymptoms(w http.ResponseWriter, r *http.Request) {
	symptoms := a.Predictor.GetAvailableSymptoms()
	if symptoms == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: predict.ErrNotLoaded.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"symptoms":    symptoms,
		"total_count": len(symptoms),
	})
}

func (a *API) handleSymptomWeights(w http.ResponseWriter, r *http.Request) {
	weights := a.Predictor.GetSymptomWeights()
	if weights == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: predict.ErrNotLoaded.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"symptom_weights": weights,
		"total_count":     len(weights),
	})
}

func (a *API) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	info := a.Predictor.GetModelInfo()
	if !info.IsLoaded {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: predict.ErrNotLoaded.Error()})
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (a *API) handleTrainingRuns(w http.ResponseWriter, r *http.Request) {
	if a.Runs == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "training run registry not configured"})
		return
	}
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}
	runs, err := a.Runs.RecentRuns(limit)
	if err != nil {
		a.Logger.Error("query training runs failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to list training runs"})
		return
	}
	if runs == nil {
		runs = []db.TrainingRun{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs":        runs,
		"total_count": len(runs),
	})
}

func (a *API) recordError() {
	if a.Monitor != nil {
		a.Monitor.RecordError()
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
