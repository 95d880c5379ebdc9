package features

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Engineer derives feature matrices from transactions. Fitting captures
// the label-encoder vocabularies and standardization parameters; after
// Fit the engineer is read-only and Transform is a pure function over
// the fitted state.
type Engineer struct {
	encoders map[string]*domain.LabelEncoder
	scaler   *domain.Scaler
	names    []string
	fitted   bool
}

// NewEngineer creates an unfitted feature engineer.
func NewEngineer() *Engineer {
	return &Engineer{names: Names()}
}

// NewFittedEngineer creates an engineer from persisted preprocessing
// state, typically out of a loaded model package. The feature-name list
// must match the canonical list exactly.
func NewFittedEngineer(encoders map[string]*domain.LabelEncoder, scaler *domain.Scaler, names []string) (*Engineer, error) {
	if err := CheckNames(names); err != nil {
		return nil, err
	}
	if scaler == nil || len(scaler.Means) != len(names) {
		return nil, fmt.Errorf("scaler does not match feature list: %d means for %d features", scalerLen(scaler), len(names))
	}
	for _, field := range CategoricalFields() {
		if encoders[field] == nil {
			return nil, fmt.Errorf("missing label encoder for field %q", field)
		}
	}
	return &Engineer{
		encoders: encoders,
		scaler:   scaler,
		names:    append([]string(nil), names...),
		fitted:   true,
	}, nil
}

func scalerLen(s *domain.Scaler) int {
	if s == nil {
		return 0
	}
	return len(s.Means)
}

// CheckNames verifies that a persisted feature-name list is identical to
// the canonical order. Any mismatch is fatal, never a silent reshape.
func CheckNames(names []string) error {
	canonical := Names()
	if len(names) != len(canonical) {
		return fmt.Errorf("feature list mismatch: got %d features, want %d", len(names), len(canonical))
	}
	for i, n := range canonical {
		if names[i] != n {
			return fmt.Errorf("feature list mismatch at %d: got %q, want %q", i, names[i], n)
		}
	}
	return nil
}

// Fit learns encoder vocabularies and scaler parameters from the full
// training dataset, then returns the scaled feature matrix.
func (e *Engineer) Fit(txs []*domain.Transaction) ([][]float64, error) {
	if len(txs) == 0 {
		return nil, fmt.Errorf("cannot fit feature engineer on empty dataset")
	}

	e.encoders = fitEncoders(txs)

	raw := deriveMatrix(txs, e.encoders)
	e.scaler = fitScaler(raw)
	e.fitted = true

	return e.scale(raw), nil
}

// Transform derives and scales features using the fitted state. The
// frequency features are computed within the presented batch, matching
// training-time behavior for single-record inference.
func (e *Engineer) Transform(txs []*domain.Transaction) ([][]float64, error) {
	if !e.fitted {
		return nil, fmt.Errorf("feature engineer is not fitted")
	}
	raw := deriveMatrix(txs, e.encoders)
	return e.scale(raw), nil
}

// Raw derives the unscaled feature matrix using the fitted encoders.
func (e *Engineer) Raw(txs []*domain.Transaction) ([][]float64, error) {
	if !e.fitted {
		return nil, fmt.Errorf("feature engineer is not fitted")
	}
	return deriveMatrix(txs, e.encoders), nil
}

func (e *Engineer) scale(raw [][]float64) [][]float64 {
	out := make([][]float64, len(raw))
	for i, row := range raw {
		out[i] = e.scaler.Transform(row)
	}
	return out
}

// FeatureNames returns a copy of the ordered feature-name list.
func (e *Engineer) FeatureNames() []string {
	return append([]string(nil), e.names...)
}

// Encoders returns the fitted label encoders keyed by field name.
func (e *Engineer) Encoders() map[string]*domain.LabelEncoder {
	return e.encoders
}

// Scaler returns the fitted standardization parameters.
func (e *Engineer) Scaler() *domain.Scaler {
	return e.scaler
}

// fitEncoders builds one label encoder per categorical field from the
// observed vocabulary. Classes are sorted so codes are stable across
// runs on the same dataset.
func fitEncoders(txs []*domain.Transaction) map[string]*domain.LabelEncoder {
	values := map[string]map[string]struct{}{}
	for _, field := range CategoricalFields() {
		values[field] = map[string]struct{}{}
	}
	for _, tx := range txs {
		values[FieldPaymentType][tx.PaymentType] = struct{}{}
		values[FieldSenderLocation][tx.SenderLocation] = struct{}{}
		values[FieldReceiverLocation][tx.ReceiverLocation] = struct{}{}
		values[FieldPaymentCurrency][tx.PaymentCurrency] = struct{}{}
		values[FieldReceivedCurrency][tx.ReceivedCurrency] = struct{}{}
	}

	encoders := make(map[string]*domain.LabelEncoder, len(values))
	for field, set := range values {
		classes := make([]string, 0, len(set))
		for v := range set {
			classes = append(classes, v)
		}
		sort.Strings(classes)
		encoders[field] = &domain.LabelEncoder{Classes: classes}
	}
	return encoders
}

// fitScaler computes per-column mean and population standard deviation.
func fitScaler(matrix [][]float64) *domain.Scaler {
	cols := len(matrix[0])
	means := make([]float64, cols)
	stds := make([]float64, cols)

	col := make([]float64, len(matrix))
	for j := 0; j < cols; j++ {
		for i := range matrix {
			col[i] = matrix[i][j]
		}
		means[j] = stat.Mean(col, nil)
		stds[j] = math.Sqrt(stat.PopVariance(col, nil))
	}
	return &domain.Scaler{Means: means, Stds: stds}
}

// deriveMatrix computes the fixed derivation rules for a batch.
func deriveMatrix(txs []*domain.Transaction, encoders map[string]*domain.LabelEncoder) [][]float64 {
	senderFreq := make(map[string]float64, len(txs))
	receiverFreq := make(map[string]float64, len(txs))
	for _, tx := range txs {
		senderFreq[tx.SenderAccount]++
		receiverFreq[tx.ReceiverAccount]++
	}

	matrix := make([][]float64, len(txs))
	for i, tx := range txs {
		matrix[i] = deriveRow(tx, senderFreq[tx.SenderAccount], receiverFreq[tx.ReceiverAccount], encoders)
	}
	return matrix
}

func deriveRow(tx *domain.Transaction, senderFreq, receiverFreq float64, encoders map[string]*domain.LabelEncoder) []float64 {
	hour := float64(tx.Hour())

	return []float64{
		hour,
		boolFeature(isWeekend(tx.Timestamp)),
		boolFeature(tx.Hour() >= 22 || tx.Hour() <= 5),
		math.Log1p(tx.Amount),
		boolFeature(math.Mod(tx.Amount, 1000) == 0),
		boolFeature(tx.IsStructuringAmount()),
		boolFeature(tx.IsCrossBorder()),
		boolFeature(tx.IsCurrencyMismatch()),
		senderFreq,
		receiverFreq,
		float64(encoders[FieldPaymentType].Transform(tx.PaymentType)),
		float64(encoders[FieldSenderLocation].Transform(tx.SenderLocation)),
		float64(encoders[FieldReceiverLocation].Transform(tx.ReceiverLocation)),
		float64(encoders[FieldPaymentCurrency].Transform(tx.PaymentCurrency)),
		float64(encoders[FieldReceivedCurrency].Transform(tx.ReceivedCurrency)),
	}
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Labels extracts the ground-truth label vector for training.
func Labels(txs []*domain.Transaction) []int {
	y := make([]int, len(txs))
	for i, tx := range txs {
		if tx.IsLaundering {
			y[i] = 1
		}
	}
	return y
}
