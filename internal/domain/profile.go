package domain

// CustomerProfile aggregates per-account behavioral statistics and a
// heuristic risk score. Profiles are computed once per analysis run from
// the full transaction set and are immutable until the next run.
type CustomerProfile struct {
	Account string `json:"account"`

	// Transaction counts
	TotalTransactions    int `json:"totalTransactions"`
	SentTransactions     int `json:"sentTransactions"`
	ReceivedTransactions int `json:"receivedTransactions"`

	// Volumes
	TotalVolume    float64 `json:"totalVolume"`
	SentVolume     float64 `json:"sentVolume"`
	ReceivedVolume float64 `json:"receivedVolume"`

	// Amount statistics
	AvgTransaction float64 `json:"avgTransaction"`
	MaxTransaction float64 `json:"maxTransaction"`
	MinTransaction float64 `json:"minTransaction"`

	// Behavioral indicators
	SuspiciousTransactions int `json:"suspiciousTransactions"`
	CrossBorderCount       int `json:"crossBorderCount"`
	HighRiskLocations      int `json:"highRiskLocations"`
	StructuringIndicators  int `json:"structuringIndicators"`
	RapidTransactions      int `json:"rapidTransactions"`

	// Diversity
	CurrenciesUsed       int `json:"currenciesUsed"`
	PaymentTypesUsed     int `json:"paymentTypesUsed"`
	UniqueCounterparties int `json:"uniqueCounterparties"`

	// Derived risk
	RiskScore          float64 `json:"riskScore"`          // [0, 100]
	RiskClassification string  `json:"riskClassification"` // LOW, MEDIUM, HIGH
}

// Risk classification labels.
const (
	RiskHigh   = "HIGH"
	RiskMedium = "MEDIUM"
	RiskLow    = "LOW"
)

// Risk classification thresholds on the [0, 100] score.
const (
	HighRiskThreshold   = 70.0
	MediumRiskThreshold = 40.0
)

// ClassifyRiskScore maps a [0, 100] risk score to a classification.
// Boundaries are inclusive: exactly 70 is HIGH, exactly 40 is MEDIUM.
func ClassifyRiskScore(score float64) string {
	switch {
	case score >= HighRiskThreshold:
		return RiskHigh
	case score >= MediumRiskThreshold:
		return RiskMedium
	default:
		return RiskLow
	}
}
