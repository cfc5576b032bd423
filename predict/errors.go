package predict

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotLoaded is returned while no artifact set has been loaded.
	ErrNotLoaded = errors.New("model not loaded")
	// ErrNoSymptoms rejects empty input before any matching work.
	ErrNoSymptoms = errors.New("no symptoms provided")
	// ErrInvalidTopN rejects negative top_n before any matching work.
	ErrInvalidTopN = errors.New("top_n must not be negative")
	// ErrPredictionFailed masks unexpected internal failures; details go to
	// the log, never to the caller.
	ErrPredictionFailed = errors.New("prediction failed")
)

// Suggestion proposes vocabulary entries close to one unrecognized token.
type Suggestion struct {
	Token      string   `json:"token"`
	Candidates []string `json:"candidates"`
}

func (s Suggestion) String() string {
	return fmt.Sprintf("%q might be: %s", s.Token, strings.Join(s.Candidates, ", "))
}

// NoMatchError reports that every token missed the vocabulary. It is an
// expected outcome, not a system failure: callers should surface the
// suggestions and re-prompt.
type NoMatchError struct {
	InvalidSymptoms []string     `json:"invalid_symptoms"`
	Suggestions     []Suggestion `json:"suggestions"`
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("no valid symptoms found among %d tokens", len(e.InvalidSymptoms))
}
