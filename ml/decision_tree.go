package ml

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"sort"
)

// Decision tree defaults.
const (
	DefaultTreeDepth       = 12
	DefaultMinSamplesSplit = 2
)

// DecisionTree is a gini-split classification tree. Leaves keep the full
// class distribution so the tree can report ranked probabilities.
type DecisionTree struct {
	MaxDepth        int        `json:"max_depth"`
	MinSamplesSplit int        `json:"min_samples_split"`
	NumClasses      int        `json:"num_classes"`
	Nodes           []TreeNode `json:"nodes"`
}

// TreeNode is one node in the flattened tree. Children index into the same
// node slice; leaves have Distribution set.
type TreeNode struct {
	FeatureIdx   int       `json:"feature_idx"`
	Threshold    float64   `json:"threshold"`
	LeftChild    int       `json:"left_child"`
	RightChild   int       `json:"right_child"`
	IsLeaf       bool      `json:"is_leaf"`
	Distribution []float64 `json:"distribution,omitempty"`
}

// NewDecisionTree returns an untrained tree.
func NewDecisionTree(maxDepth, minSamplesSplit int) *DecisionTree {
	if maxDepth <= 0 {
		maxDepth = DefaultTreeDepth
	}
	if minSamplesSplit < 2 {
		minSamplesSplit = DefaultMinSamplesSplit
	}
	return &DecisionTree{MaxDepth: maxDepth, MinSamplesSplit: minSamplesSplit}
}

// Family implements Classifier.
func (dt *DecisionTree) Family() string { return FamilyDecisionTree }

// Fit builds the tree on dense class indices 0..K-1.
func (dt *DecisionTree) Fit(features [][]float64, labels []int) error {
	if len(features) == 0 || len(labels) == 0 {
		return errors.New("features or labels empty")
	}
	if len(features) != len(labels) {
		return errors.New("features and labels size mismatch")
	}
	k := 0
	for _, y := range labels {
		if y < 0 {
			return errors.New("negative class label")
		}
		if y+1 > k {
			k = y + 1
		}
	}
	dt.NumClasses = k
	dt.Nodes = dt.buildNode(features, labels, 0)
	return nil
}

// Predict returns the majority class at the reached leaf.
func (dt *DecisionTree) Predict(features []float64) (int, error) {
	dist, err := dt.PredictProba(features)
	if err != nil {
		return 0, err
	}
	return argmax(dist), nil
}

// PredictProba returns the class distribution at the reached leaf.
func (dt *DecisionTree) PredictProba(features []float64) ([]float64, error) {
	if len(dt.Nodes) == 0 {
		return nil, errors.New("model not trained")
	}
	idx := 0
	for {
		node := dt.Nodes[idx]
		if node.IsLeaf {
			return append([]float64(nil), node.Distribution...), nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return nil, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(dt.Nodes) {
			return nil, errors.New("invalid tree state")
		}
	}
}

// Save writes the tree as JSON.
func (dt *DecisionTree) Save(path string) error {
	if len(dt.Nodes) == 0 {
		return errors.New("model not trained")
	}
	payload, err := json.Marshal(dt)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

// Load reads a tree saved by Save.
func (dt *DecisionTree) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var loaded DecisionTree
	if err := json.Unmarshal(payload, &loaded); err != nil {
		return err
	}
	if len(loaded.Nodes) == 0 || loaded.NumClasses == 0 {
		return errors.New("tree file is corrupt")
	}
	*dt = loaded
	return nil
}

func (dt *DecisionTree) buildNode(features [][]float64, labels []int, depth int) []TreeNode {
	leaf := TreeNode{
		FeatureIdx:   -1,
		LeftChild:    -1,
		RightChild:   -1,
		IsLeaf:       true,
		Distribution: classDistribution(labels, dt.NumClasses),
	}
	if depth >= dt.MaxDepth || len(labels) < dt.MinSamplesSplit || isPure(labels) {
		return []TreeNode{leaf}
	}

	bestFeature, threshold, ok := findBestSplit(features, labels)
	if !ok {
		return []TreeNode{leaf}
	}

	leftX, leftY, rightX, rightY := splitData(features, labels, bestFeature, threshold)
	if len(leftY) == 0 || len(rightY) == 0 {
		return []TreeNode{leaf}
	}

	leftNodes := dt.buildNode(leftX, leftY, depth+1)
	rightNodes := dt.buildNode(rightX, rightY, depth+1)

	root := TreeNode{
		FeatureIdx: bestFeature,
		Threshold:  threshold,
		LeftChild:  1,
		RightChild: 1 + len(leftNodes),
	}

	// Subtree child indices are local to their own slice; shift them to the
	// combined layout [root, left..., right...].
	shift(leftNodes, 1)
	shift(rightNodes, 1+len(leftNodes))

	nodes := make([]TreeNode, 0, 1+len(leftNodes)+len(rightNodes))
	nodes = append(nodes, root)
	nodes = append(nodes, leftNodes...)
	nodes = append(nodes, rightNodes...)
	return nodes
}

func shift(nodes []TreeNode, offset int) {
	for i := range nodes {
		if nodes[i].IsLeaf {
			continue
		}
		nodes[i].LeftChild += offset
		nodes[i].RightChild += offset
	}
}

func findBestSplit(features [][]float64, labels []int) (int, float64, bool) {
	featureCount := len(features[0])
	bestFeature := -1
	bestThreshold := 0.0
	bestImpurity := math.MaxFloat64

	values := make([]float64, len(features))
	for featureIdx := 0; featureIdx < featureCount; featureIdx++ {
		for i := range features {
			values[i] = features[i][featureIdx]
		}
		threshold := median(values)
		leftLabels, rightLabels := splitLabels(features, labels, featureIdx, threshold)
		if len(leftLabels) == 0 || len(rightLabels) == 0 {
			continue
		}
		impurity := weightedGini(leftLabels, rightLabels)
		if impurity < bestImpurity {
			bestImpurity = impurity
			bestFeature = featureIdx
			bestThreshold = threshold
		}
	}
	if bestFeature == -1 {
		return -1, 0, false
	}
	return bestFeature, bestThreshold, true
}

func splitData(features [][]float64, labels []int, featureIdx int, threshold float64) ([][]float64, []int, [][]float64, []int) {
	var leftX, rightX [][]float64
	var leftY, rightY []int
	for i, row := range features {
		if row[featureIdx] <= threshold {
			leftX = append(leftX, row)
			leftY = append(leftY, labels[i])
		} else {
			rightX = append(rightX, row)
			rightY = append(rightY, labels[i])
		}
	}
	return leftX, leftY, rightX, rightY
}

func splitLabels(features [][]float64, labels []int, featureIdx int, threshold float64) ([]int, []int) {
	var left, right []int
	for i, row := range features {
		if row[featureIdx] <= threshold {
			left = append(left, labels[i])
		} else {
			right = append(right, labels[i])
		}
	}
	return left, right
}

func weightedGini(leftLabels, rightLabels []int) float64 {
	leftWeight := float64(len(leftLabels))
	rightWeight := float64(len(rightLabels))
	total := leftWeight + rightWeight
	return (leftWeight/total)*gini(leftLabels) + (rightWeight/total)*gini(rightLabels)
}

func gini(labels []int) float64 {
	if len(labels) == 0 {
		return 0
	}
	counts := make(map[int]int)
	for _, y := range labels {
		counts[y]++
	}
	impurity := 1.0
	for _, count := range counts {
		p := float64(count) / float64(len(labels))
		impurity -= p * p
	}
	return impurity
}

func classDistribution(labels []int, numClasses int) []float64 {
	dist := make([]float64, numClasses)
	if len(labels) == 0 {
		return dist
	}
	for _, y := range labels {
		dist[y]++
	}
	for i := range dist {
		dist[i] /= float64(len(labels))
	}
	return dist
}

func isPure(labels []int) bool {
	if len(labels) == 0 {
		return true
	}
	first := labels[0]
	for _, y := range labels[1:] {
		if y != first {
			return false
		}
	}
	return true
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// argmax returns the index of the largest value, preferring the earliest on
// ties so ranking stays stable across calls.
func argmax(values []float64) int {
	best := 0
	for i, v := range values[1:] {
		if v > values[best] {
			best = i + 1
		}
	}
	return best
}
