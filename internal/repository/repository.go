// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

const insertTransaction = `
	INSERT INTO transactions (
		id, sender_account, receiver_account, amount,
		payment_currency, received_currency,
		sender_location, receiver_location, payment_type,
		timestamp, is_laundering, laundering_type
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		sender_account = excluded.sender_account,
		receiver_account = excluded.receiver_account,
		amount = excluded.amount,
		payment_currency = excluded.payment_currency,
		received_currency = excluded.received_currency,
		sender_location = excluded.sender_location,
		receiver_location = excluded.receiver_location,
		payment_type = excluded.payment_type,
		timestamp = excluded.timestamp,
		is_laundering = excluded.is_laundering,
		laundering_type = excluded.laundering_type
`

// SaveTransaction stores a single transaction. Re-saving the same ID
// replaces the row, so ingestion is idempotent.
func (r *SQLRepository) SaveTransaction(ctx context.Context, tx *domain.Transaction) error {
	if tx == nil || tx.ID == "" {
		return fmt.Errorf("%w: transaction ID is required", ErrInvalidInput)
	}

	_, err := r.db.ExecContext(ctx, r.rebind(insertTransaction),
		tx.ID, tx.SenderAccount, tx.ReceiverAccount, tx.Amount,
		tx.PaymentCurrency, tx.ReceivedCurrency,
		tx.SenderLocation, tx.ReceiverLocation, tx.PaymentType,
		tx.Timestamp, boolToInt(tx.IsLaundering), tx.LaunderingType,
	)
	return err
}

// SaveTransactions stores a batch of transactions in a single database
// transaction.
func (r *SQLRepository) SaveTransactions(ctx context.Context, txs []*domain.Transaction) error {
	if len(txs) == 0 {
		return fmt.Errorf("%w: empty transaction batch", ErrInvalidInput)
	}

	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbtx.Rollback()

	stmt, err := dbtx.PrepareContext(ctx, r.rebind(insertTransaction))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, tx := range txs {
		if tx == nil || tx.ID == "" {
			return fmt.Errorf("%w: transaction ID is required", ErrInvalidInput)
		}
		if _, err := stmt.ExecContext(ctx,
			tx.ID, tx.SenderAccount, tx.ReceiverAccount, tx.Amount,
			tx.PaymentCurrency, tx.ReceivedCurrency,
			tx.SenderLocation, tx.ReceiverLocation, tx.PaymentType,
			tx.Timestamp, boolToInt(tx.IsLaundering), tx.LaunderingType,
		); err != nil {
			return err
		}
	}

	return dbtx.Commit()
}

const selectTransaction = `
	SELECT id, sender_account, receiver_account, amount,
		   payment_currency, received_currency,
		   sender_location, receiver_location, payment_type,
		   timestamp, is_laundering, laundering_type
	FROM transactions
`

func scanTransaction(row interface{ Scan(...any) error }) (*domain.Transaction, error) {
	var tx domain.Transaction
	var isLaundering int
	var launderingType sql.NullString

	err := row.Scan(
		&tx.ID, &tx.SenderAccount, &tx.ReceiverAccount, &tx.Amount,
		&tx.PaymentCurrency, &tx.ReceivedCurrency,
		&tx.SenderLocation, &tx.ReceiverLocation, &tx.PaymentType,
		&tx.Timestamp, &isLaundering, &launderingType,
	)
	if err != nil {
		return nil, err
	}

	tx.IsLaundering = isLaundering == 1
	tx.LaunderingType = launderingType.String
	return &tx, nil
}

// GetTransaction retrieves a transaction by ID.
func (r *SQLRepository) GetTransaction(ctx context.Context, txID string) (*domain.Transaction, error) {
	if txID == "" {
		return nil, fmt.Errorf("%w: txID is required", ErrInvalidInput)
	}

	row := r.db.QueryRowContext(ctx, r.rebind(selectTransaction+`WHERE id = ?`), txID)

	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// ListTransactions retrieves the full transaction set ordered by timestamp.
func (r *SQLRepository) ListTransactions(ctx context.Context) ([]*domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, selectTransaction+`ORDER BY timestamp, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	return transactions, rows.Err()
}

// GetTransactionsByAccount retrieves transactions where the account appears
// as sender or receiver, newest first.
func (r *SQLRepository) GetTransactionsByAccount(ctx context.Context, account string, since time.Time) ([]*domain.Transaction, error) {
	if account == "" {
		return nil, fmt.Errorf("%w: account is required", ErrInvalidInput)
	}

	query := selectTransaction + `
		WHERE (sender_account = ? OR receiver_account = ?)
		  AND timestamp >= ?
		ORDER BY timestamp DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), account, account, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	return transactions, rows.Err()
}

// SaveProfiles stores the profiles computed by one analysis run.
// Profiles for the same run and account are replaced.
func (r *SQLRepository) SaveProfiles(ctx context.Context, runID string, profiles []*domain.CustomerProfile) error {
	if runID == "" {
		return fmt.Errorf("%w: runID is required", ErrInvalidInput)
	}

	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbtx.Rollback()

	query := `
		INSERT INTO profiles (run_id, account, risk_score, risk_classification, profile)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, account) DO UPDATE SET
			risk_score = excluded.risk_score,
			risk_classification = excluded.risk_classification,
			profile = excluded.profile
	`

	stmt, err := dbtx.PrepareContext(ctx, r.rebind(query))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range profiles {
		payload, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to encode profile for %s: %w", p.Account, err)
		}
		if _, err := stmt.ExecContext(ctx,
			runID, p.Account, p.RiskScore, p.RiskClassification, string(payload),
		); err != nil {
			return err
		}
	}

	return dbtx.Commit()
}

// GetProfile retrieves one account's profile from a run.
func (r *SQLRepository) GetProfile(ctx context.Context, runID string, account string) (*domain.CustomerProfile, error) {
	if runID == "" || account == "" {
		return nil, fmt.Errorf("%w: runID and account are required", ErrInvalidInput)
	}

	query := `
		SELECT profile
		FROM profiles
		WHERE run_id = ? AND account = ?
	`

	var payload string
	err := r.db.QueryRowContext(ctx, r.rebind(query), runID, account).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var profile domain.CustomerProfile
	if err := json.Unmarshal([]byte(payload), &profile); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	return &profile, nil
}

// ListProfiles retrieves all profiles from a run ordered by account.
func (r *SQLRepository) ListProfiles(ctx context.Context, runID string) ([]*domain.CustomerProfile, error) {
	if runID == "" {
		return nil, fmt.Errorf("%w: runID is required", ErrInvalidInput)
	}

	query := `
		SELECT profile
		FROM profiles
		WHERE run_id = ?
		ORDER BY account
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []*domain.CustomerProfile
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var profile domain.CustomerProfile
		if err := json.Unmarshal([]byte(payload), &profile); err != nil {
			return nil, fmt.Errorf("failed to parse profile: %w", err)
		}
		profiles = append(profiles, &profile)
	}

	return profiles, rows.Err()
}

// SaveAnomalies stores the anomaly records produced by one analysis run.
func (r *SQLRepository) SaveAnomalies(ctx context.Context, runID string, records []*domain.AnomalyRecord) error {
	if runID == "" {
		return fmt.Errorf("%w: runID is required", ErrInvalidInput)
	}

	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbtx.Rollback()

	query := `
		INSERT INTO anomalies (run_id, tx_id, composite_flag, risk_score, record)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, tx_id) DO UPDATE SET
			composite_flag = excluded.composite_flag,
			risk_score = excluded.risk_score,
			record = excluded.record
	`

	stmt, err := dbtx.PrepareContext(ctx, r.rebind(query))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to encode anomaly record for %s: %w", rec.TxID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			runID, rec.TxID, boolToInt(rec.CompositeFlag), rec.RiskScore, string(payload),
		); err != nil {
			return err
		}
	}

	return dbtx.Commit()
}

// ListAnomalies retrieves anomaly records from a run, optionally limited
// to those flagged by the ensemble.
func (r *SQLRepository) ListAnomalies(ctx context.Context, runID string, onlyComposite bool) ([]*domain.AnomalyRecord, error) {
	if runID == "" {
		return nil, fmt.Errorf("%w: runID is required", ErrInvalidInput)
	}

	query := `
		SELECT record
		FROM anomalies
		WHERE run_id = ?
	`
	if onlyComposite {
		query += ` AND composite_flag = 1`
	}
	query += ` ORDER BY risk_score DESC, tx_id`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.AnomalyRecord
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var rec domain.AnomalyRecord
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, fmt.Errorf("failed to parse anomaly record: %w", err)
		}
		records = append(records, &rec)
	}

	return records, rows.Err()
}

// SaveRuleConfig stores a screening rule configuration.
func (r *SQLRepository) SaveRuleConfig(ctx context.Context, rule *domain.RuleConfig) error {
	if rule == nil || rule.ID == "" {
		return fmt.Errorf("%w: rule ID is required", ErrInvalidInput)
	}

	bands, _ := json.Marshal(rule.Bands)

	now := time.Now().UTC()

	query := `
		INSERT INTO rule_configs (
			id, name, description, version, expression, bands, weight, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, version) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			bands = excluded.bands,
			weight = excluded.weight,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Name, rule.Description,
		rule.Version, rule.Expression, string(bands), rule.Weight, boolToInt(rule.Enabled),
		now, now,
	)
	return err
}

// GetRuleConfig retrieves the latest enabled version of a rule.
func (r *SQLRepository) GetRuleConfig(ctx context.Context, ruleID string) (*domain.RuleConfig, error) {
	if ruleID == "" {
		return nil, fmt.Errorf("%w: ruleID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, name, description, version, expression, bands, weight, enabled
		FROM rule_configs
		WHERE id = ? AND enabled = 1
		ORDER BY version DESC
		LIMIT 1
	`

	var cfg domain.RuleConfig
	var bands string
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), ruleID).Scan(
		&cfg.ID, &cfg.Name, &cfg.Description,
		&cfg.Version, &cfg.Expression, &bands, &cfg.Weight, &enabled,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	cfg.Enabled = enabled == 1
	json.Unmarshal([]byte(bands), &cfg.Bands)

	return &cfg, nil
}

// ListRuleConfigs retrieves all enabled rule configurations.
func (r *SQLRepository) ListRuleConfigs(ctx context.Context) ([]*domain.RuleConfig, error) {
	query := `
		SELECT id, name, description, version, expression, bands, weight, enabled
		FROM rule_configs
		WHERE enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*domain.RuleConfig
	for rows.Next() {
		var cfg domain.RuleConfig
		var bands string
		var enabled int

		if err := rows.Scan(
			&cfg.ID, &cfg.Name, &cfg.Description,
			&cfg.Version, &cfg.Expression, &bands, &cfg.Weight, &enabled,
		); err != nil {
			return nil, err
		}

		cfg.Enabled = enabled == 1
		json.Unmarshal([]byte(bands), &cfg.Bands)
		configs = append(configs, &cfg)
	}

	return configs, rows.Err()
}

// SaveScenario stores a scenario configuration.
func (r *SQLRepository) SaveScenario(ctx context.Context, scenario *domain.Scenario) error {
	if scenario == nil || scenario.ID == "" {
		return fmt.Errorf("%w: scenario ID is required", ErrInvalidInput)
	}

	rules, _ := json.Marshal(scenario.Rules)

	now := time.Now().UTC()

	query := `
		INSERT INTO scenarios (
			id, name, description, version, rules, alert_threshold, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, version) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			rules = excluded.rules,
			alert_threshold = excluded.alert_threshold,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		scenario.ID, scenario.Name, scenario.Description,
		scenario.Version, string(rules), scenario.AlertThreshold, boolToInt(scenario.Enabled),
		now, now,
	)
	return err
}

// GetScenario retrieves the latest enabled version of a scenario.
func (r *SQLRepository) GetScenario(ctx context.Context, scenarioID string) (*domain.Scenario, error) {
	if scenarioID == "" {
		return nil, fmt.Errorf("%w: scenarioID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, name, description, version, rules, alert_threshold, enabled, created_at, updated_at
		FROM scenarios
		WHERE id = ? AND enabled = 1
		ORDER BY version DESC
		LIMIT 1
	`

	var s domain.Scenario
	var rules string
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), scenarioID).Scan(
		&s.ID, &s.Name, &s.Description,
		&s.Version, &rules, &s.AlertThreshold, &enabled,
		&s.CreatedAt, &s.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	s.Enabled = enabled == 1
	if err := json.Unmarshal([]byte(rules), &s.Rules); err != nil {
		return nil, fmt.Errorf("failed to parse scenario rules: %w", err)
	}

	return &s, nil
}

// ListScenarios retrieves all enabled scenario configurations.
func (r *SQLRepository) ListScenarios(ctx context.Context) ([]*domain.Scenario, error) {
	query := `
		SELECT id, name, description, version, rules, alert_threshold, enabled, created_at, updated_at
		FROM scenarios
		WHERE enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scenarios []*domain.Scenario
	for rows.Next() {
		var s domain.Scenario
		var rules string
		var enabled int

		if err := rows.Scan(
			&s.ID, &s.Name, &s.Description,
			&s.Version, &rules, &s.AlertThreshold, &enabled,
			&s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, err
		}

		s.Enabled = enabled == 1
		if err := json.Unmarshal([]byte(rules), &s.Rules); err != nil {
			return nil, fmt.Errorf("failed to parse scenario rules for %s: %w", s.ID, err)
		}
		scenarios = append(scenarios, &s)
	}

	return scenarios, rows.Err()
}

// DeleteScenario soft-deletes a scenario by setting enabled = 0.
func (r *SQLRepository) DeleteScenario(ctx context.Context, scenarioID string) error {
	if scenarioID == "" {
		return fmt.Errorf("%w: scenarioID is required", ErrInvalidInput)
	}

	query := `
		UPDATE scenarios
		SET enabled = 0, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), time.Now().UTC(), scenarioID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// SaveRun stores an analysis run summary.
func (r *SQLRepository) SaveRun(ctx context.Context, run *domain.AnalysisRun) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("%w: run ID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO runs (
			id, started_at, finished_at,
			transaction_count, profile_count, anomaly_count, alert_count,
			selected_model, selected_f1, model_loaded
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			finished_at = excluded.finished_at,
			transaction_count = excluded.transaction_count,
			profile_count = excluded.profile_count,
			anomaly_count = excluded.anomaly_count,
			alert_count = excluded.alert_count,
			selected_model = excluded.selected_model,
			selected_f1 = excluded.selected_f1,
			model_loaded = excluded.model_loaded
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		run.ID, run.StartedAt, run.FinishedAt,
		run.TransactionCount, run.ProfileCount, run.AnomalyCount, run.AlertCount,
		run.SelectedModel, run.SelectedF1, boolToInt(run.ModelLoaded),
	)
	return err
}

const selectRun = `
	SELECT id, started_at, finished_at,
		   transaction_count, profile_count, anomaly_count, alert_count,
		   selected_model, selected_f1, model_loaded
	FROM runs
`

func scanRun(row interface{ Scan(...any) error }) (*domain.AnalysisRun, error) {
	var run domain.AnalysisRun
	var selectedModel sql.NullString
	var modelLoaded int

	err := row.Scan(
		&run.ID, &run.StartedAt, &run.FinishedAt,
		&run.TransactionCount, &run.ProfileCount, &run.AnomalyCount, &run.AlertCount,
		&selectedModel, &run.SelectedF1, &modelLoaded,
	)
	if err != nil {
		return nil, err
	}

	run.SelectedModel = selectedModel.String
	run.ModelLoaded = modelLoaded == 1
	return &run, nil
}

// GetRun retrieves an analysis run by ID.
func (r *SQLRepository) GetRun(ctx context.Context, runID string) (*domain.AnalysisRun, error) {
	if runID == "" {
		return nil, fmt.Errorf("%w: runID is required", ErrInvalidInput)
	}

	row := r.db.QueryRowContext(ctx, r.rebind(selectRun+`WHERE id = ?`), runID)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// LatestRun retrieves the most recently started analysis run.
func (r *SQLRepository) LatestRun(ctx context.Context) (*domain.AnalysisRun, error) {
	row := r.db.QueryRowContext(ctx, selectRun+`ORDER BY started_at DESC LIMIT 1`)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
