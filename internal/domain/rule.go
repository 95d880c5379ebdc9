package domain

// RuleConfig defines a configurable screening rule evaluated against
// each transaction during an analysis run. Expressions are CEL.
type RuleConfig struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`

	// Expression is a CEL expression over transaction facts.
	Expression string `json:"expression"`

	// Bands map the expression's score to an outcome.
	Bands []RuleBand `json:"bands"`

	// Weight of this rule in scenario aggregation.
	Weight float64 `json:"weight"`

	Enabled bool `json:"enabled"`
}

// RuleBand maps a score range to an outcome.
type RuleBand struct {
	LowerLimit *float64 `json:"lowerLimit,omitempty"`
	UpperLimit *float64 `json:"upperLimit,omitempty"`
	SubRuleRef string   `json:"subRuleRef"` // ".pass", ".fail", ".review"
	Reason     string   `json:"reason"`
}

// RuleResult is the output of a screening rule evaluation.
type RuleResult struct {
	RuleID     string  `json:"ruleId"`
	TxID       string  `json:"txId"`
	SubRuleRef string  `json:"subRuleRef"`
	Score      float64 `json:"score"`
	Reason     string  `json:"reason"`
	Weight     float64 `json:"weight"`
	ProcessMs  int64   `json:"processMs"`
}

// Predefined rule outcomes.
const (
	RuleOutcomePass   = ".pass"
	RuleOutcomeFail   = ".fail"
	RuleOutcomeReview = ".review"
	RuleOutcomeError  = ".err"
)
