package domain

// AnomalyRecord is the per-transaction output of the anomaly detection
// ensemble. Recomputed on every analysis run.
type AnomalyRecord struct {
	TxID            string  `json:"txId"`
	SenderAccount   string  `json:"senderAccount"`
	ReceiverAccount string  `json:"receiverAccount"`
	Amount          float64 `json:"amount"`

	// Density detector (isolation forest)
	IsolationFlag  bool    `json:"isolationFlag"`
	IsolationScore float64 `json:"isolationScore"` // lower = more anomalous

	// Statistical detector (fixed rules)
	StatisticalFlag bool    `json:"statisticalFlag"`
	AmountZScore    float64 `json:"amountZScore"`

	// Ensemble
	CompositeFlag bool    `json:"compositeFlag"`
	RiskScore     float64 `json:"riskScore"` // [0, 100]

	// Ground truth, carried through for evaluation display only.
	IsLaundering bool `json:"isLaundering"`
}
