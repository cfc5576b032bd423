package ml

import (
	"encoding/json"
	"errors"
	"math/rand"
	"os"
)

// DefaultForestSize is the stock number of bagged trees.
const DefaultForestSize = 50

// RandomForest bags decision trees over bootstrap resamples and averages
// their leaf distributions.
type RandomForest struct {
	NumTrees   int             `json:"num_trees"`
	MaxDepth   int             `json:"max_depth"`
	Seed       int64           `json:"seed"`
	NumClasses int             `json:"num_classes"`
	Trees      []*DecisionTree `json:"trees"`
}

// NewRandomForest returns an untrained forest.
func NewRandomForest(numTrees, maxDepth int, seed int64) *RandomForest {
	if numTrees <= 0 {
		numTrees = DefaultForestSize
	}
	if maxDepth <= 0 {
		maxDepth = DefaultTreeDepth
	}
	return &RandomForest{NumTrees: numTrees, MaxDepth: maxDepth, Seed: seed}
}

// Family implements Classifier.
func (rf *RandomForest) Family() string { return FamilyRandomForest }

// Fit trains NumTrees trees, each on a bootstrap resample of the data.
func (rf *RandomForest) Fit(features [][]float64, labels []int) error {
	if len(features) == 0 || len(features) != len(labels) {
		return errors.New("features and labels are empty or mismatched")
	}
	k := 0
	for _, y := range labels {
		if y+1 > k {
			k = y + 1
		}
	}
	rf.NumClasses = k

	rng := rand.New(rand.NewSource(rf.Seed))
	rf.Trees = make([]*DecisionTree, 0, rf.NumTrees)
	n := len(features)
	for t := 0; t < rf.NumTrees; t++ {
		sampleX := make([][]float64, n)
		sampleY := make([]int, n)
		for i := 0; i < n; i++ {
			idx := rng.Intn(n)
			sampleX[i] = features[idx]
			sampleY[i] = labels[idx]
		}
		// Bootstrap can miss classes; pin the distribution width.
		tree := NewDecisionTree(rf.MaxDepth, DefaultMinSamplesSplit)
		tree.NumClasses = k
		tree.Nodes = tree.buildNode(sampleX, sampleY, 0)
		rf.Trees = append(rf.Trees, tree)
	}
	return nil
}

// Predict returns the class with the highest averaged probability.
func (rf *RandomForest) Predict(features []float64) (int, error) {
	dist, err := rf.PredictProba(features)
	if err != nil {
		return 0, err
	}
	return argmax(dist), nil
}

// PredictProba averages leaf distributions over all trees.
func (rf *RandomForest) PredictProba(features []float64) ([]float64, error) {
	if len(rf.Trees) == 0 {
		return nil, errors.New("model not trained")
	}
	sum := make([]float64, rf.NumClasses)
	for _, tree := range rf.Trees {
		dist, err := tree.PredictProba(features)
		if err != nil {
			return nil, err
		}
		for i, p := range dist {
			sum[i] += p
		}
	}
	for i := range sum {
		sum[i] /= float64(len(rf.Trees))
	}
	return sum, nil
}

// Save writes the forest as JSON.
func (rf *RandomForest) Save(path string) error {
	if len(rf.Trees) == 0 {
		return errors.New("model not trained")
	}
	payload, err := json.Marshal(rf)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

// Load reads a forest saved by Save.
func (rf *RandomForest) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var loaded RandomForest
	if err := json.Unmarshal(payload, &loaded); err != nil {
		return err
	}
	if len(loaded.Trees) == 0 || loaded.NumClasses == 0 {
		return errors.New("forest file is corrupt")
	}
	*rf = loaded
	return nil
}
