package rules

import "github.com/opensource-finance/harrier/internal/domain"

func limit(v float64) *float64 { return &v }

// BuiltinRules returns the default screening rule set. The set is
// seeded into the repository on first startup; operators replace or
// extend it through the rules API.
func BuiltinRules() []*domain.RuleConfig {
	return []*domain.RuleConfig{
		{
			ID:          "rule-structuring-band",
			Name:        "Structuring band",
			Description: "Amount just below the reporting threshold",
			Version:     "1.0",
			Expression:  "structuring",
			Bands: []domain.RuleBand{
				{UpperLimit: limit(1), SubRuleRef: domain.RuleOutcomePass, Reason: "amount outside structuring band"},
				{LowerLimit: limit(1), SubRuleRef: domain.RuleOutcomeFail, Reason: "amount in structuring band"},
			},
			Weight:  1.0,
			Enabled: true,
		},
		{
			ID:          "rule-night-activity",
			Name:        "Night activity",
			Description: "Transaction outside normal business hours",
			Version:     "1.0",
			Expression:  "hour >= 22 || hour <= 5",
			Bands: []domain.RuleBand{
				{UpperLimit: limit(1), SubRuleRef: domain.RuleOutcomePass, Reason: "daytime transaction"},
				{LowerLimit: limit(1), SubRuleRef: domain.RuleOutcomeReview, Reason: "night-time transaction"},
			},
			Weight:  0.5,
			Enabled: true,
		},
		{
			ID:          "rule-high-amount",
			Name:        "High amount",
			Description: "Large single transfer",
			Version:     "1.0",
			Expression:  "amount >= 250000.0 ? 2.0 : (amount >= 50000.0 ? 1.0 : 0.0)",
			Bands: []domain.RuleBand{
				{UpperLimit: limit(1), SubRuleRef: domain.RuleOutcomePass, Reason: "amount within normal range"},
				{LowerLimit: limit(1), UpperLimit: limit(2), SubRuleRef: domain.RuleOutcomeReview, Reason: "large transfer"},
				{LowerLimit: limit(2), SubRuleRef: domain.RuleOutcomeFail, Reason: "very large transfer"},
			},
			Weight:  0.8,
			Enabled: true,
		},
		{
			ID:          "rule-cross-border-mismatch",
			Name:        "Cross-border currency mismatch",
			Description: "Cross-border transfer with differing currencies",
			Version:     "1.0",
			Expression:  "cross_border && currency_mismatch",
			Bands: []domain.RuleBand{
				{UpperLimit: limit(1), SubRuleRef: domain.RuleOutcomePass, Reason: "no mismatch"},
				{LowerLimit: limit(1), SubRuleRef: domain.RuleOutcomeReview, Reason: "cross-border currency conversion"},
			},
			Weight:  0.6,
			Enabled: true,
		},
		{
			ID:          "rule-velocity",
			Name:        "Sender velocity",
			Description: "Burst of transactions from a single sender",
			Version:     "1.0",
			Expression:  "velocity_count >= 25 ? 2.0 : (velocity_count >= 10 ? 1.0 : 0.0)",
			Bands: []domain.RuleBand{
				{UpperLimit: limit(1), SubRuleRef: domain.RuleOutcomePass, Reason: "velocity within normal range"},
				{LowerLimit: limit(1), UpperLimit: limit(2), SubRuleRef: domain.RuleOutcomeReview, Reason: "elevated sender velocity"},
				{LowerLimit: limit(2), SubRuleRef: domain.RuleOutcomeFail, Reason: "excessive sender velocity"},
			},
			Weight:  0.7,
			Enabled: true,
		},
	}
}

// BuiltinScenarios returns the default scenario set, built over the
// default rules.
func BuiltinScenarios() []*domain.Scenario {
	return []*domain.Scenario{
		{
			ID:          "scenario-structuring",
			Name:        "Structuring",
			Description: "Sub-threshold amounts, odd hours, rapid succession",
			Version:     "1.0",
			Rules: []domain.ScenarioRuleWeight{
				{RuleID: "rule-structuring-band", Weight: 0.5},
				{RuleID: "rule-night-activity", Weight: 0.2},
				{RuleID: "rule-velocity", Weight: 0.3},
			},
			AlertThreshold: 0.5,
			Enabled:        true,
		},
		{
			ID:          "scenario-layering",
			Name:        "Layering",
			Description: "Cross-border conversion of large amounts",
			Version:     "1.0",
			Rules: []domain.ScenarioRuleWeight{
				{RuleID: "rule-cross-border-mismatch", Weight: 0.6},
				{RuleID: "rule-high-amount", Weight: 0.4},
			},
			AlertThreshold: 0.8,
			Enabled:        true,
		},
	}
}
