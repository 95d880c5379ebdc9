package ml

import (
	"math"
	"math/rand"
	"sort"
)

// TreeNode is one node of a decision tree, serialized with the model.
// Leaf nodes carry a value: for classification trees the positive-class
// fraction, for regression trees the fitted response.
type TreeNode struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      *TreeNode `json:"left,omitempty"`
	Right     *TreeNode `json:"right,omitempty"`
	Leaf      bool      `json:"leaf"`
	Value     float64   `json:"value"`
}

func (n *TreeNode) isLeaf() bool { return n.Leaf }

// traverse walks a sample down to its leaf.
func (n *TreeNode) traverse(row []float64) *TreeNode {
	node := n
	for !node.isLeaf() {
		if row[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node
}

// treeConfig bounds tree growth.
type treeConfig struct {
	maxDepth       int // 0 = unlimited
	minSamplesLeaf int
	maxFeatures    int // features considered per split; 0 = all
}

// classificationSplit finds the best gini split over a random feature
// subset. Returns ok=false if no split improves purity.
func classificationSplit(X [][]float64, y []int, idx []int, cfg treeConfig, rng *rand.Rand, importances []float64, total int) (feature int, threshold float64, left, right []int, ok bool) {
	nFeatures := len(X[0])
	candidates := featureSubset(nFeatures, cfg.maxFeatures, rng)

	parentImp := gini(y, idx)
	bestGain := 0.0

	for _, f := range candidates {
		thresholds := splitPoints(X, idx, f)
		for _, t := range thresholds {
			l, r := partition(X, idx, f, t)
			if len(l) < cfg.minSamplesLeaf || len(r) < cfg.minSamplesLeaf {
				continue
			}
			n := float64(len(idx))
			childImp := float64(len(l))/n*gini(y, l) + float64(len(r))/n*gini(y, r)
			gain := parentImp - childImp
			if gain > bestGain+1e-12 {
				bestGain = gain
				feature, threshold, left, right, ok = f, t, l, r, true
			}
		}
	}

	if ok && importances != nil {
		importances[feature] += float64(len(idx)) / float64(total) * bestGain
	}
	return feature, threshold, left, right, ok
}

// buildClassificationTree grows a gini CART tree over the index set.
func buildClassificationTree(X [][]float64, y []int, idx []int, depth int, cfg treeConfig, rng *rand.Rand, importances []float64, total int) *TreeNode {
	if len(idx) == 0 {
		return &TreeNode{Leaf: true, Value: 0}
	}
	if pure(y, idx) || (cfg.maxDepth > 0 && depth >= cfg.maxDepth) || len(idx) < 2*cfg.minSamplesLeaf {
		return &TreeNode{Leaf: true, Value: positiveFraction(y, idx)}
	}

	f, t, left, right, ok := classificationSplit(X, y, idx, cfg, rng, importances, total)
	if !ok {
		return &TreeNode{Leaf: true, Value: positiveFraction(y, idx)}
	}

	return &TreeNode{
		Feature:   f,
		Threshold: t,
		Left:      buildClassificationTree(X, y, left, depth+1, cfg, rng, importances, total),
		Right:     buildClassificationTree(X, y, right, depth+1, cfg, rng, importances, total),
	}
}

// regressionLeaves collects, for each leaf, the sample indices that
// landed there. Used by the boosting trainer to refit leaf values.
type regressionTree struct {
	root   *TreeNode
	leaves map[*TreeNode][]int
}

// buildRegressionTree grows an MSE tree on a continuous response.
func buildRegressionTree(X [][]float64, resp []float64, idx []int, cfg treeConfig, rng *rand.Rand, importances []float64, total int) *regressionTree {
	t := &regressionTree{leaves: make(map[*TreeNode][]int)}
	t.root = t.build(X, resp, idx, 0, cfg, rng, importances, total)
	return t
}

func (t *regressionTree) build(X [][]float64, resp []float64, idx []int, depth int, cfg treeConfig, rng *rand.Rand, importances []float64, total int) *TreeNode {
	if len(idx) == 0 {
		leaf := &TreeNode{Leaf: true}
		t.leaves[leaf] = idx
		return leaf
	}
	if (cfg.maxDepth > 0 && depth >= cfg.maxDepth) || len(idx) < 2*cfg.minSamplesLeaf || constantResponse(resp, idx) {
		leaf := &TreeNode{Leaf: true, Value: meanAt(resp, idx)}
		t.leaves[leaf] = idx
		return leaf
	}

	f, thr, left, right, ok := regressionSplit(X, resp, idx, cfg, rng, importances, total)
	if !ok {
		leaf := &TreeNode{Leaf: true, Value: meanAt(resp, idx)}
		t.leaves[leaf] = idx
		return leaf
	}

	return &TreeNode{
		Feature:   f,
		Threshold: thr,
		Left:      t.build(X, resp, left, depth+1, cfg, rng, importances, total),
		Right:     t.build(X, resp, right, depth+1, cfg, rng, importances, total),
	}
}

func regressionSplit(X [][]float64, resp []float64, idx []int, cfg treeConfig, rng *rand.Rand, importances []float64, total int) (feature int, threshold float64, left, right []int, ok bool) {
	nFeatures := len(X[0])
	candidates := featureSubset(nFeatures, cfg.maxFeatures, rng)

	parentVar := varianceAt(resp, idx)
	bestGain := 0.0

	for _, f := range candidates {
		for _, t := range splitPoints(X, idx, f) {
			l, r := partition(X, idx, f, t)
			if len(l) < cfg.minSamplesLeaf || len(r) < cfg.minSamplesLeaf {
				continue
			}
			n := float64(len(idx))
			childVar := float64(len(l))/n*varianceAt(resp, l) + float64(len(r))/n*varianceAt(resp, r)
			gain := parentVar - childVar
			if gain > bestGain+1e-12 {
				bestGain = gain
				feature, threshold, left, right, ok = f, t, l, r, true
			}
		}
	}

	if ok && importances != nil {
		importances[feature] += float64(len(idx)) / float64(total) * bestGain
	}
	return feature, threshold, left, right, ok
}

// --- helpers ---

func featureSubset(nFeatures, maxFeatures int, rng *rand.Rand) []int {
	if maxFeatures <= 0 || maxFeatures >= nFeatures {
		all := make([]int, nFeatures)
		for i := range all {
			all[i] = i
		}
		return all
	}
	perm := rng.Perm(nFeatures)
	subset := perm[:maxFeatures]
	sort.Ints(subset)
	return subset
}

// splitPoints returns candidate thresholds: midpoints between the
// sorted distinct values of the feature over the index set.
func splitPoints(X [][]float64, idx []int, feature int) []float64 {
	vals := make([]float64, 0, len(idx))
	for _, i := range idx {
		vals = append(vals, X[i][feature])
	}
	sort.Float64s(vals)

	points := make([]float64, 0, len(vals))
	for i := 1; i < len(vals); i++ {
		if vals[i] != vals[i-1] {
			points = append(points, (vals[i]+vals[i-1])/2)
		}
	}
	return points
}

func partition(X [][]float64, idx []int, feature int, threshold float64) (left, right []int) {
	for _, i := range idx {
		if X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return left, right
}

func gini(y []int, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	p := positiveFraction(y, idx)
	return 2 * p * (1 - p)
}

func positiveFraction(y []int, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	pos := 0
	for _, i := range idx {
		if y[i] == 1 {
			pos++
		}
	}
	return float64(pos) / float64(len(idx))
}

func pure(y []int, idx []int) bool {
	p := positiveFraction(y, idx)
	return p == 0 || p == 1
}

func meanAt(resp []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	sum := 0.0
	for _, i := range idx {
		sum += resp[i]
	}
	return sum / float64(len(idx))
}

func varianceAt(resp []float64, idx []int) float64 {
	if len(idx) < 2 {
		return 0
	}
	m := meanAt(resp, idx)
	sum := 0.0
	for _, i := range idx {
		d := resp[i] - m
		sum += d * d
	}
	return sum / float64(len(idx))
}

func constantResponse(resp []float64, idx []int) bool {
	for i := 1; i < len(idx); i++ {
		if resp[idx[i]] != resp[idx[0]] {
			return false
		}
	}
	return true
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
