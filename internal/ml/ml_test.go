package ml

import (
	"math"
	"testing"
)

// separable builds a tiny two-cluster dataset: class 0 near the origin,
// class 1 shifted well away on both axes.
func separable(perClass int) ([][]float64, []int) {
	X := make([][]float64, 0, perClass*2)
	y := make([]int, 0, perClass*2)
	for i := 0; i < perClass; i++ {
		jitter := float64(i%5) * 0.1
		X = append(X, []float64{jitter, jitter + 0.2})
		y = append(y, 0)
		X = append(X, []float64{10 + jitter, 10 - jitter})
		y = append(y, 1)
	}
	return X, y
}

func TestRandomForestLearnsSeparableData(t *testing.T) {
	X, y := separable(20)
	rf := NewRandomForest(42)
	rf.NEstimators = 20
	if err := rf.Fit(X, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	pred := rf.Predict(X)
	for i := range y {
		if pred[i] != y[i] {
			t.Errorf("sample %d: predicted %d, want %d", i, pred[i], y[i])
		}
	}

	probs := rf.PredictProba([][]float64{{0, 0}, {10, 10}})
	if probs[0] >= 0.5 {
		t.Errorf("inlier probability = %v, want < 0.5", probs[0])
	}
	if probs[1] <= 0.5 {
		t.Errorf("shifted probability = %v, want > 0.5", probs[1])
	}
}

func TestRandomForestImportancesNormalized(t *testing.T) {
	X, y := separable(20)
	rf := NewRandomForest(7)
	rf.NEstimators = 10
	if err := rf.Fit(X, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	imp := rf.FeatureImportances()
	if len(imp) != 2 {
		t.Fatalf("importances length = %d, want 2", len(imp))
	}
	var sum float64
	for _, v := range imp {
		if v < 0 {
			t.Errorf("negative importance %v", v)
		}
		sum += v
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("importances sum = %v, want 1", sum)
	}
}

func TestRandomForestDeterministicForSeed(t *testing.T) {
	X, y := separable(15)
	a := NewRandomForest(99)
	b := NewRandomForest(99)
	a.NEstimators, b.NEstimators = 10, 10
	if err := a.Fit(X, y); err != nil {
		t.Fatalf("Fit a: %v", err)
	}
	if err := b.Fit(X, y); err != nil {
		t.Fatalf("Fit b: %v", err)
	}

	pa := a.PredictProba(X)
	pb := b.PredictProba(X)
	for i := range pa {
		if pa[i] != pb[i] {
			t.Fatalf("sample %d: probabilities differ for equal seeds: %v vs %v", i, pa[i], pb[i])
		}
	}
}

func TestGradientBoostingLearnsSeparableData(t *testing.T) {
	X, y := separable(20)
	gb := NewGradientBoosting(42)
	gb.NEstimators = 30
	if err := gb.Fit(X, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	pred := gb.Predict(X)
	for i := range y {
		if pred[i] != y[i] {
			t.Errorf("sample %d: predicted %d, want %d", i, pred[i], y[i])
		}
	}
}

func TestGradientBoostingSingleClass(t *testing.T) {
	X := [][]float64{{1, 2}, {1.1, 2.1}, {0.9, 1.9}}
	y := []int{0, 0, 0}
	gb := NewGradientBoosting(1)
	gb.NEstimators = 5
	if err := gb.Fit(X, y); err != nil {
		t.Fatalf("Fit on single-class data: %v", err)
	}
	for _, p := range gb.PredictProba(X) {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			t.Fatalf("degenerate probability %v", p)
		}
		if p >= 0.5 {
			t.Errorf("probability %v for all-negative training set, want < 0.5", p)
		}
	}
}

func TestIsolationForestFlagsOutliers(t *testing.T) {
	X := make([][]float64, 0, 101)
	for i := 0; i < 100; i++ {
		jitter := float64(i%10) * 0.05
		X = append(X, []float64{1 + jitter, 1 - jitter})
	}
	X = append(X, []float64{50, -50})

	f := NewIsolationForest(0.05, 42)
	if err := f.Fit(X, nil); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	scores := f.ScoreSamples(X)
	outlier := scores[len(scores)-1]
	for i := 0; i < len(scores)-1; i++ {
		if outlier >= scores[i] {
			t.Fatalf("outlier score %v not below inlier score %v (sample %d)", outlier, scores[i], i)
		}
	}
	if f.Predict([][]float64{{50, -50}})[0] != 1 {
		t.Error("known outlier not flagged")
	}

	for _, s := range scores {
		if s >= 0 || s <= -1 {
			t.Errorf("score %v outside (-1, 0)", s)
		}
	}
}

func TestEvaluateZeroDivision(t *testing.T) {
	// No positive predictions and no positive labels: every ratio
	// involving the positive class is undefined and must report 0.
	m := Evaluate([]int{0, 0, 0}, []int{0, 0, 0})
	if m.Accuracy != 1 {
		t.Errorf("accuracy = %v, want 1", m.Accuracy)
	}
	if m.Precision != 0 || m.Recall != 0 || m.F1Score != 0 {
		t.Errorf("precision/recall/f1 = %v/%v/%v, want zeros", m.Precision, m.Recall, m.F1Score)
	}
}

func TestEvaluatePerfectClassifier(t *testing.T) {
	m := Evaluate([]int{1, 0, 1, 0}, []int{1, 0, 1, 0})
	for name, v := range map[string]float64{
		"accuracy": m.Accuracy, "precision": m.Precision,
		"recall": m.Recall, "f1": m.F1Score,
	} {
		if v != 1 {
			t.Errorf("%s = %v, want 1", name, v)
		}
	}
}

func TestStratifiedSplitPreservesClassBalance(t *testing.T) {
	y := make([]int, 100)
	for i := 60; i < 100; i++ {
		y[i] = 1
	}

	train, test := StratifiedSplit(y, 0.3, 42)
	if len(train)+len(test) != 100 {
		t.Fatalf("split sizes %d+%d, want 100 total", len(train), len(test))
	}

	var testPos int
	for _, i := range test {
		if y[i] == 1 {
			testPos++
		}
	}
	if testPos != 12 { // 30% of 40 positives
		t.Errorf("test positives = %d, want 12", testPos)
	}

	seen := map[int]bool{}
	for _, i := range append(append([]int(nil), train...), test...) {
		if seen[i] {
			t.Fatalf("index %d appears twice", i)
		}
		seen[i] = true
	}
}

func TestStratifiedSplitDeterministic(t *testing.T) {
	y := make([]int, 50)
	for i := 0; i < 20; i++ {
		y[i] = 1
	}
	tr1, te1 := StratifiedSplit(y, 0.3, 7)
	tr2, te2 := StratifiedSplit(y, 0.3, 7)
	if len(tr1) != len(tr2) || len(te1) != len(te2) {
		t.Fatal("split sizes differ between identical calls")
	}
	for i := range te1 {
		if te1[i] != te2[i] {
			t.Fatalf("test index %d differs: %d vs %d", i, te1[i], te2[i])
		}
	}
}

func TestCrossValScoreFoldCount(t *testing.T) {
	X, y := separable(25)
	scores, err := CrossValScore(func() Classifier {
		rf := NewRandomForest(1)
		rf.NEstimators = 5
		return rf
	}, X, y, 5, 42)
	if err != nil {
		t.Fatalf("CrossValScore: %v", err)
	}
	if len(scores) != 5 {
		t.Fatalf("got %d fold scores, want 5", len(scores))
	}
	for i, s := range scores {
		if s < 0 || s > 1 {
			t.Errorf("fold %d score %v out of [0,1]", i, s)
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	X, y := separable(15)

	for _, tc := range []struct {
		name  string
		model Classifier
	}{
		{TypeRandomForest, func() Classifier {
			rf := NewRandomForest(3)
			rf.NEstimators = 5
			return rf
		}()},
		{TypeGradientBoosting, func() Classifier {
			gb := NewGradientBoosting(3)
			gb.NEstimators = 5
			return gb
		}()},
		{TypeIsolationForest, NewIsolationForest(0.15, 3)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.model.Fit(X, y); err != nil {
				t.Fatalf("Fit: %v", err)
			}
			modelType, payload, err := Encode(tc.model)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if modelType != tc.name {
				t.Fatalf("model type = %q, want %q", modelType, tc.name)
			}

			decoded, err := Decode(modelType, payload)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}

			want := tc.model.Predict(X)
			got := decoded.Predict(X)
			for i := range want {
				if got[i] != want[i] {
					t.Fatalf("sample %d: decoded model predicts %d, original %d", i, got[i], want[i])
				}
			}
		})
	}
}

func TestDecodeUnknownType(t *testing.T) {
	if _, err := Decode("svm", []byte(`{}`)); err == nil {
		t.Fatal("expected error for unknown model type")
	}
}
