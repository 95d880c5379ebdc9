package ml

import (
	"math/rand"
	"sort"
)

// StratifiedSplit partitions row indices into train and test sets,
// preserving the class distribution of y in both halves. The split is
// deterministic for a given seed.
func StratifiedSplit(y []int, testSize float64, seed int64) (train, test []int) {
	byClass := map[int][]int{}
	for i, label := range y {
		byClass[label] = append(byClass[label], i)
	}

	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	rng := rand.New(rand.NewSource(seed))
	for _, c := range classes {
		idx := byClass[c]
		rng.Shuffle(len(idx), func(i, j int) {
			idx[i], idx[j] = idx[j], idx[i]
		})
		nTest := int(float64(len(idx)) * testSize)
		test = append(test, idx[:nTest]...)
		train = append(train, idx[nTest:]...)
	}

	sort.Ints(train)
	sort.Ints(test)
	return train, test
}

// Subset gathers the rows of X named by idx.
func Subset(X [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for i, j := range idx {
		out[i] = X[j]
	}
	return out
}

// SubsetLabels gathers the elements of y named by idx.
func SubsetLabels(y []int, idx []int) []int {
	out := make([]int, len(idx))
	for i, j := range idx {
		out[i] = y[j]
	}
	return out
}

// CrossValScore runs k-fold cross-validation, training a fresh model
// per fold via the constructor, and returns the per-fold F1 scores.
// Folds are contiguous slices of a seed-shuffled index permutation.
func CrossValScore(build func() Classifier, X [][]float64, y []int, folds int, seed int64) ([]float64, error) {
	n := len(y)
	if folds > n {
		folds = n
	}
	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(n)

	scores := make([]float64, 0, folds)
	foldSize := n / folds
	for f := 0; f < folds; f++ {
		start := f * foldSize
		end := start + foldSize
		if f == folds-1 {
			end = n
		}
		testIdx := perm[start:end]
		trainIdx := make([]int, 0, n-len(testIdx))
		trainIdx = append(trainIdx, perm[:start]...)
		trainIdx = append(trainIdx, perm[end:]...)

		model := build()
		if err := model.Fit(Subset(X, trainIdx), SubsetLabels(y, trainIdx)); err != nil {
			return nil, err
		}
		pred := model.Predict(Subset(X, testIdx))
		scores = append(scores, Evaluate(SubsetLabels(y, testIdx), pred).F1Score)
	}
	return scores, nil
}
