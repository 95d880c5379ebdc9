package domain

import "time"

// AnalysisRun summarizes one batch analysis over a materialized dataset.
type AnalysisRun struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`

	TransactionCount int `json:"transactionCount"`
	ProfileCount     int `json:"profileCount"`
	AnomalyCount     int `json:"anomalyCount"`
	AlertCount       int `json:"alertCount"`

	// Selected supervised model, if training ran.
	SelectedModel string  `json:"selectedModel,omitempty"`
	SelectedF1    float64 `json:"selectedF1,omitempty"`
	ModelLoaded   bool    `json:"modelLoaded"` // true if a persisted model was reused
}

// Alert kinds published on the alert topic.
const (
	AlertHighRiskAccount   = "high_risk_account"
	AlertAnomalousTx       = "anomalous_transaction"
	AlertScenarioTriggered = "scenario_triggered"
)

// Alert is an event emitted for findings that need operator attention.
type Alert struct {
	Kind      string  `json:"kind"`
	Account   string  `json:"account,omitempty"`
	TxID      string  `json:"txId,omitempty"`
	Scenario  string  `json:"scenario,omitempty"`
	RiskScore float64 `json:"riskScore"`
	RunID     string  `json:"runId"`
}
