package ml

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// IsolationForest is the density-based outlier learner. Scores follow
// the usual convention: ScoreSamples returns negated anomaly measures,
// so lower means more anomalous, and the contamination fraction of the
// training set sets the outlier threshold.
type IsolationForest struct {
	NEstimators   int     `json:"nEstimators"`
	SampleSize    int     `json:"sampleSize"`
	Contamination float64 `json:"contamination"`
	Seed          int64   `json:"seed"`

	Trees  []*isoNode `json:"trees"`
	Offset float64    `json:"offset"`

	// cFactor is c(SampleSize), cached after fitting.
	CFactor float64 `json:"cFactor"`
}

// isoNode is one node of an isolation tree.
type isoNode struct {
	Feature   int      `json:"feature"`
	Threshold float64  `json:"threshold"`
	Left      *isoNode `json:"left,omitempty"`
	Right     *isoNode `json:"right,omitempty"`
	Leaf      bool     `json:"leaf"`
	Size      int      `json:"size"` // samples isolated at this external node
}

// NewIsolationForest creates a forest with the reference defaults.
func NewIsolationForest(contamination float64, seed int64) *IsolationForest {
	if contamination <= 0 {
		contamination = 0.1
	}
	return &IsolationForest{
		NEstimators:   100,
		SampleSize:    256,
		Contamination: contamination,
		Seed:          seed,
	}
}

// Fit builds the isolation trees and calibrates the outlier threshold
// from the training scores. The label argument is ignored; the variant
// is unsupervised.
func (f *IsolationForest) Fit(X [][]float64, _ []int) error {
	if len(X) == 0 {
		return fmt.Errorf("isolation forest: empty training set")
	}

	rng := rand.New(rand.NewSource(f.Seed))
	n := len(X)
	sample := f.SampleSize
	if sample > n {
		sample = n
	}
	maxDepth := int(math.Ceil(math.Log2(math.Max(2, float64(sample)))))
	f.CFactor = averagePathLength(sample)

	f.Trees = make([]*isoNode, 0, f.NEstimators)
	for t := 0; t < f.NEstimators; t++ {
		idx := rng.Perm(n)[:sample]
		f.Trees = append(f.Trees, buildIsoTree(X, idx, 0, maxDepth, rng))
	}

	// Threshold at the contamination quantile of the training scores.
	scores := f.ScoreSamples(X)
	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)
	rank := int(f.Contamination * float64(len(sorted)))
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	f.Offset = sorted[rank]
	return nil
}

// ScoreSamples returns the negated anomaly score per row, in (-1, 0).
// Lower values indicate stronger anomalies.
func (f *IsolationForest) ScoreSamples(X [][]float64) []float64 {
	scores := make([]float64, len(X))
	for i, row := range X {
		var pathSum float64
		for _, tree := range f.Trees {
			pathSum += pathLength(tree, row, 0)
		}
		mean := pathSum / float64(len(f.Trees))
		scores[i] = -math.Pow(2, -mean/f.CFactor)
	}
	return scores
}

// Predict returns 1 for outliers (score below the fitted threshold).
func (f *IsolationForest) Predict(X [][]float64) []int {
	scores := f.ScoreSamples(X)
	labels := make([]int, len(scores))
	for i, s := range scores {
		if s < f.Offset {
			labels[i] = 1
		}
	}
	return labels
}

// PredictProba returns the normalized anomaly measure in (0, 1) as the
// equivalent score; it is not a calibrated probability.
func (f *IsolationForest) PredictProba(X [][]float64) []float64 {
	scores := f.ScoreSamples(X)
	probs := make([]float64, len(scores))
	for i, s := range scores {
		probs[i] = -s
	}
	return probs
}

func buildIsoTree(X [][]float64, idx []int, depth, maxDepth int, rng *rand.Rand) *isoNode {
	if len(idx) <= 1 || depth >= maxDepth {
		return &isoNode{Leaf: true, Size: len(idx)}
	}

	feature := rng.Intn(len(X[0]))
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, i := range idx {
		v := X[i][feature]
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if lo == hi {
		return &isoNode{Leaf: true, Size: len(idx)}
	}

	threshold := lo + rng.Float64()*(hi-lo)

	var left, right []int
	for _, i := range idx {
		if X[i][feature] < threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	return &isoNode{
		Feature:   feature,
		Threshold: threshold,
		Left:      buildIsoTree(X, left, depth+1, maxDepth, rng),
		Right:     buildIsoTree(X, right, depth+1, maxDepth, rng),
	}
}

func pathLength(node *isoNode, row []float64, depth float64) float64 {
	if node.Leaf {
		return depth + averagePathLength(node.Size)
	}
	if row[node.Feature] < node.Threshold {
		return pathLength(node.Left, row, depth+1)
	}
	return pathLength(node.Right, row, depth+1)
}

// averagePathLength is c(n), the expected path length of an
// unsuccessful BST search over n samples.
func averagePathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	if n == 2 {
		return 1
	}
	fn := float64(n)
	const eulerGamma = 0.5772156649015329
	h := math.Log(fn-1) + eulerGamma
	return 2*h - 2*(fn-1)/fn
}
