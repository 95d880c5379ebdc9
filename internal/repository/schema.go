package repository

// Schema definitions for Harrier database.
// Compatible with both SQLite and PostgreSQL.

const schemaTransactions = `
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    sender_account TEXT NOT NULL,
    receiver_account TEXT NOT NULL,
    amount REAL NOT NULL,
    payment_currency TEXT NOT NULL,
    received_currency TEXT NOT NULL,
    sender_location TEXT NOT NULL,
    receiver_location TEXT NOT NULL,
    payment_type TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    is_laundering INTEGER NOT NULL DEFAULT 0,
    laundering_type TEXT
);

CREATE INDEX IF NOT EXISTS idx_transactions_sender ON transactions(sender_account);
CREATE INDEX IF NOT EXISTS idx_transactions_receiver ON transactions(receiver_account);
CREATE INDEX IF NOT EXISTS idx_transactions_timestamp ON transactions(timestamp);
`

const schemaProfiles = `
CREATE TABLE IF NOT EXISTS profiles (
    run_id TEXT NOT NULL,
    account TEXT NOT NULL,
    risk_score REAL NOT NULL,
    risk_classification TEXT NOT NULL,
    profile TEXT NOT NULL,
    PRIMARY KEY (run_id, account)
);

CREATE INDEX IF NOT EXISTS idx_profiles_run ON profiles(run_id);
CREATE INDEX IF NOT EXISTS idx_profiles_classification ON profiles(run_id, risk_classification);
`

const schemaAnomalies = `
CREATE TABLE IF NOT EXISTS anomalies (
    run_id TEXT NOT NULL,
    tx_id TEXT NOT NULL,
    composite_flag INTEGER NOT NULL DEFAULT 0,
    risk_score REAL NOT NULL,
    record TEXT NOT NULL,
    PRIMARY KEY (run_id, tx_id)
);

CREATE INDEX IF NOT EXISTS idx_anomalies_run ON anomalies(run_id);
CREATE INDEX IF NOT EXISTS idx_anomalies_composite ON anomalies(run_id, composite_flag);
`

const schemaRuleConfigs = `
CREATE TABLE IF NOT EXISTS rule_configs (
    id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    bands TEXT NOT NULL,
    weight REAL NOT NULL DEFAULT 1.0,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, version)
);

CREATE INDEX IF NOT EXISTS idx_rule_configs_enabled ON rule_configs(enabled);
`

// schemaScenarios defines the scenarios table.
// Scenarios group multiple rules with weights to calculate composite risk scores.
const schemaScenarios = `
CREATE TABLE IF NOT EXISTS scenarios (
    id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    rules TEXT NOT NULL,
    alert_threshold REAL NOT NULL DEFAULT 0.6,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, version)
);

CREATE INDEX IF NOT EXISTS idx_scenarios_enabled ON scenarios(enabled);
CREATE INDEX IF NOT EXISTS idx_scenarios_name ON scenarios(name);
`

const schemaRuns = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP NOT NULL,
    transaction_count INTEGER NOT NULL DEFAULT 0,
    profile_count INTEGER NOT NULL DEFAULT 0,
    anomaly_count INTEGER NOT NULL DEFAULT 0,
    alert_count INTEGER NOT NULL DEFAULT 0,
    selected_model TEXT,
    selected_f1 REAL NOT NULL DEFAULT 0,
    model_loaded INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaTransactions,
		schemaProfiles,
		schemaAnomalies,
		schemaRuleConfigs,
		schemaScenarios,
		schemaRuns,
	}
}
