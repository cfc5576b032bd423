package ml

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// MinClassSamples is the smallest class size stratification can handle;
// classes below it are filtered out before splitting.
const MinClassSamples = 2

// FilterRareClasses drops every sample whose class has fewer than
// MinClassSamples occurrences. It returns the kept samples and the dropped
// class names so the caller can log the decision rather than lose it
// silently.
func FilterRareClasses(features [][]float64, labels []string) (keptX [][]float64, keptY []string, dropped []string) {
	counts := make(map[string]int)
	for _, y := range labels {
		counts[y]++
	}
	droppedSet := make(map[string]bool)
	for i, x := range features {
		y := labels[i]
		if counts[y] < MinClassSamples {
			droppedSet[y] = true
			continue
		}
		keptX = append(keptX, x)
		keptY = append(keptY, y)
	}
	for y := range droppedSet {
		dropped = append(dropped, y)
	}
	sort.Strings(dropped)
	return keptX, keptY, dropped
}

// StratifiedSplit shuffles within each class and carves off testFraction of
// every class, preserving class proportions. Every class must already have
// at least MinClassSamples samples.
func StratifiedSplit(features [][]float64, labels []int, testFraction float64, seed int64) (trainX [][]float64, trainY []int, testX [][]float64, testY []int, err error) {
	if len(features) == 0 || len(features) != len(labels) {
		return nil, nil, nil, nil, errors.New("features and labels are empty or mismatched")
	}
	if testFraction <= 0 || testFraction >= 1 {
		return nil, nil, nil, nil, fmt.Errorf("test fraction %v out of (0,1)", testFraction)
	}

	byClass := make(map[int][]int)
	classOrder := make([]int, 0)
	for i, y := range labels {
		if _, ok := byClass[y]; !ok {
			classOrder = append(classOrder, y)
		}
		byClass[y] = append(byClass[y], i)
	}
	rng := rand.New(rand.NewSource(seed))
	for _, y := range classOrder {
		indices := byClass[y]
		if len(indices) < MinClassSamples {
			return nil, nil, nil, nil, fmt.Errorf("class %d has %d samples, need at least %d", y, len(indices), MinClassSamples)
		}
		rng.Shuffle(len(indices), func(i, j int) { indices[i], indices[j] = indices[j], indices[i] })

		nTest := int(math.Round(float64(len(indices)) * testFraction))
		if nTest < 1 {
			nTest = 1
		}
		if nTest >= len(indices) {
			nTest = len(indices) - 1
		}
		for k, idx := range indices {
			if k < nTest {
				testX = append(testX, features[idx])
				testY = append(testY, labels[idx])
			} else {
				trainX = append(trainX, features[idx])
				trainY = append(trainY, labels[idx])
			}
		}
	}
	return trainX, trainY, testX, testY, nil
}

// stratifiedFolds assigns sample indices to k folds, spreading every class
// round-robin so each fold keeps roughly the global class proportions.
func stratifiedFolds(labels []int, k int, seed int64) [][]int {
	byClass := make(map[int][]int)
	classOrder := make([]int, 0)
	for i, y := range labels {
		if _, ok := byClass[y]; !ok {
			classOrder = append(classOrder, y)
		}
		byClass[y] = append(byClass[y], i)
	}
	rng := rand.New(rand.NewSource(seed))
	folds := make([][]int, k)
	for _, y := range classOrder {
		indices := byClass[y]
		rng.Shuffle(len(indices), func(i, j int) { indices[i], indices[j] = indices[j], indices[i] })
		for n, idx := range indices {
			folds[n%k] = append(folds[n%k], idx)
		}
	}
	return folds
}

// CrossValidate scores a classifier family by stratified k-fold accuracy.
// factory must return a fresh untrained classifier per fold.
func CrossValidate(factory func() Classifier, features [][]float64, labels []int, k int, seed int64) (mean, std float64, err error) {
	if k < 2 {
		return 0, 0, fmt.Errorf("cross-validation needs k >= 2, got %d", k)
	}
	if len(features) < k {
		return 0, 0, fmt.Errorf("%d samples cannot fill %d folds", len(features), k)
	}

	folds := stratifiedFolds(labels, k, seed)
	scores := make([]float64, 0, k)
	for f := 0; f < k; f++ {
		if len(folds[f]) == 0 {
			continue
		}
		holdout := make(map[int]bool, len(folds[f]))
		for _, idx := range folds[f] {
			holdout[idx] = true
		}
		var trainX [][]float64
		var trainY []int
		for i := range features {
			if !holdout[i] {
				trainX = append(trainX, features[i])
				trainY = append(trainY, labels[i])
			}
		}
		model := factory()
		if err := model.Fit(trainX, trainY); err != nil {
			return 0, 0, fmt.Errorf("fold %d fit: %w", f, err)
		}
		var testX [][]float64
		var testY []int
		for _, idx := range folds[f] {
			testX = append(testX, features[idx])
			testY = append(testY, labels[idx])
		}
		score, err := Accuracy(model, testX, testY)
		if err != nil {
			return 0, 0, fmt.Errorf("fold %d score: %w", f, err)
		}
		scores = append(scores, score)
	}
	if len(scores) == 0 {
		return 0, 0, errors.New("no non-empty folds")
	}
	mean, std = stat.MeanStdDev(scores, nil)
	if len(scores) < 2 {
		std = 0
	}
	return mean, std, nil
}

// Accuracy is the fraction of correct predictions over the given set.
func Accuracy(model Classifier, features [][]float64, labels []int) (float64, error) {
	if len(features) == 0 {
		return 0, errors.New("empty evaluation set")
	}
	correct := 0
	for i, x := range features {
		pred, err := model.Predict(x)
		if err != nil {
			return 0, err
		}
		if pred == labels[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(features)), nil
}
