package ml

import "github.com/opensource-finance/harrier/internal/domain"

// Evaluate computes accuracy, precision, recall, and F1 on the positive
// class. Undefined ratios (zero denominators) report as 0 rather than
// propagating NaN.
func Evaluate(yTrue, yPred []int) domain.ModelMetrics {
	var tp, tn, fp, fn float64
	for i := range yTrue {
		switch {
		case yTrue[i] == 1 && yPred[i] == 1:
			tp++
		case yTrue[i] == 0 && yPred[i] == 0:
			tn++
		case yTrue[i] == 0 && yPred[i] == 1:
			fp++
		default:
			fn++
		}
	}

	m := domain.ModelMetrics{}
	if total := tp + tn + fp + fn; total > 0 {
		m.Accuracy = (tp + tn) / total
	}
	if tp+fp > 0 {
		m.Precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		m.Recall = tp / (tp + fn)
	}
	if m.Precision+m.Recall > 0 {
		m.F1Score = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m
}
