// Package domain defines the core interfaces and types for Harrier.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
type Repository interface {
	// Transaction operations
	SaveTransaction(ctx context.Context, tx *Transaction) error
	SaveTransactions(ctx context.Context, txs []*Transaction) error
	GetTransaction(ctx context.Context, txID string) (*Transaction, error)
	ListTransactions(ctx context.Context) ([]*Transaction, error)
	GetTransactionsByAccount(ctx context.Context, account string, since time.Time) ([]*Transaction, error)

	// Profile operations
	SaveProfiles(ctx context.Context, runID string, profiles []*CustomerProfile) error
	GetProfile(ctx context.Context, runID string, account string) (*CustomerProfile, error)
	ListProfiles(ctx context.Context, runID string) ([]*CustomerProfile, error)

	// Anomaly operations
	SaveAnomalies(ctx context.Context, runID string, records []*AnomalyRecord) error
	ListAnomalies(ctx context.Context, runID string, onlyComposite bool) ([]*AnomalyRecord, error)

	// Screening rule configuration
	SaveRuleConfig(ctx context.Context, rule *RuleConfig) error
	GetRuleConfig(ctx context.Context, ruleID string) (*RuleConfig, error)
	ListRuleConfigs(ctx context.Context) ([]*RuleConfig, error)

	// Scenario configuration
	SaveScenario(ctx context.Context, scenario *Scenario) error
	GetScenario(ctx context.Context, scenarioID string) (*Scenario, error)
	ListScenarios(ctx context.Context) ([]*Scenario, error)
	DeleteScenario(ctx context.Context, scenarioID string) error

	// Analysis runs
	SaveRun(ctx context.Context, run *AnalysisRun) error
	GetRun(ctx context.Context, runID string) (*AnalysisRun, error)
	LatestRun(ctx context.Context) (*AnalysisRun, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
