package domain

import "time"

// Scenario defines a laundering scenario configuration. A scenario groups
// multiple screening rules with weights to calculate a composite score.
// Example: "Structuring" combines StructuringBand (0.5) + NightActivity
// (0.2) + Velocity (0.3).
type Scenario struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`

	// Rules lists member rules with their weights.
	Rules []ScenarioRuleWeight `json:"rules"`

	// AlertThreshold is the minimum composite score that triggers.
	AlertThreshold float64 `json:"alertThreshold"`

	Enabled bool `json:"enabled"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// ScenarioRuleWeight defines a rule and its weight within a scenario.
type ScenarioRuleWeight struct {
	RuleID string  `json:"ruleId"`
	Weight float64 `json:"weight"`
}

// RuleContribution shows how a single rule contributed to a scenario score.
type RuleContribution struct {
	RuleID       string  `json:"ruleId"`
	RuleScore    float64 `json:"ruleScore"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// ScenarioResult is the aggregated result of rules for one scenario
// against one transaction.
type ScenarioResult struct {
	ScenarioID    string             `json:"scenarioId"`
	ScenarioName  string             `json:"scenarioName"`
	TxID          string             `json:"txId,omitempty"`
	Score         float64            `json:"score"`
	Threshold     float64            `json:"threshold"`
	Triggered     bool               `json:"triggered"`
	Contributions []RuleContribution `json:"contributions,omitempty"`
	ProcessMs     int64              `json:"processMs,omitempty"`
}
