package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/database/models"
	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/database/repositories"
)

// AlertRuleRepository implements repositories.AlertRuleRepository
type AlertRuleRepository struct {
	db *sql.DB
}

// NewAlertRuleRepository creates a new AlertRuleRepository
func NewAlertRuleRepository(db *sql.DB) repositories.AlertRuleRepository {
	return &AlertRuleRepository{db: db}
}

const ruleColumns = `
	id, scope_id, name, metric_key, operator, warning_threshold, critical_threshold,
	check_interval_seconds, cooldown_seconds, baseline_value,
	notify_on_warning, notify_on_critical, notify_on_recovery,
	recipient_roles, email_list, internal_enabled, email_enabled, enabled,
	current_status, last_checked_at, last_value, last_alert_sent_at,
	created_at, updated_at
`

// Create validates and inserts a new alert rule
func (r *AlertRuleRepository) Create(ctx context.Context, rule *models.AlertRule) error {
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("invalid alert rule: %w", err)
	}

	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	if rule.CurrentStatus == "" {
		rule.CurrentStatus = models.StatusOK
	}

	now := time.Now()
	query := `
		INSERT INTO alert_rules (` + ruleColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		rule.ID,
		rule.ScopeID,
		rule.Name,
		rule.MetricKey,
		rule.Operator,
		rule.WarningThreshold,
		rule.CriticalThreshold,
		rule.CheckIntervalSeconds,
		rule.CooldownSeconds,
		rule.BaselineValue,
		rule.NotifyOnWarning,
		rule.NotifyOnCritical,
		rule.NotifyOnRecovery,
		rule.RecipientRoles,
		rule.EmailList,
		rule.InternalEnabled,
		rule.EmailEnabled,
		rule.Enabled,
		rule.CurrentStatus,
		rule.LastCheckedAt,
		rule.LastValue,
		rule.LastAlertSentAt,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create alert rule: %w", err)
	}

	rule.CreatedAt = now
	rule.UpdatedAt = now

	return nil
}

// GetByID retrieves an alert rule by its ID
func (r *AlertRuleRepository) GetByID(ctx context.Context, id string) (*models.AlertRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM alert_rules WHERE id = ?`

	rule, err := scanRule(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("alert rule not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert rule: %w", err)
	}

	return rule, nil
}

// GetByScope retrieves all alert rules for a scope
func (r *AlertRuleRepository) GetByScope(ctx context.Context, scopeID string) ([]*models.AlertRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM alert_rules WHERE scope_id = ? ORDER BY created_at`
	return r.queryRules(ctx, query, scopeID)
}

// GetByScopeAndMetric retrieves rules bound to one metric series
func (r *AlertRuleRepository) GetByScopeAndMetric(ctx context.Context, scopeID, metricKey string) ([]*models.AlertRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM alert_rules WHERE scope_id = ? AND metric_key = ? ORDER BY created_at`
	return r.queryRules(ctx, query, scopeID, metricKey)
}

// GetEnabled retrieves all enabled rules for a scope
func (r *AlertRuleRepository) GetEnabled(ctx context.Context, scopeID string) ([]*models.AlertRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM alert_rules WHERE scope_id = ? AND enabled = TRUE ORDER BY created_at`
	return r.queryRules(ctx, query, scopeID)
}

// Update rewrites the full rule configuration
func (r *AlertRuleRepository) Update(ctx context.Context, rule *models.AlertRule) error {
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("invalid alert rule: %w", err)
	}

	query := `
		UPDATE alert_rules SET
			name = ?, metric_key = ?, operator = ?, warning_threshold = ?,
			critical_threshold = ?, check_interval_seconds = ?, cooldown_seconds = ?,
			baseline_value = ?, notify_on_warning = ?, notify_on_critical = ?,
			notify_on_recovery = ?, recipient_roles = ?, email_list = ?,
			internal_enabled = ?, email_enabled = ?, enabled = ?, updated_at = ?
		WHERE id = ?
	`

	now := time.Now()
	result, err := r.db.ExecContext(
		ctx,
		query,
		rule.Name,
		rule.MetricKey,
		rule.Operator,
		rule.WarningThreshold,
		rule.CriticalThreshold,
		rule.CheckIntervalSeconds,
		rule.CooldownSeconds,
		rule.BaselineValue,
		rule.NotifyOnWarning,
		rule.NotifyOnCritical,
		rule.NotifyOnRecovery,
		rule.RecipientRoles,
		rule.EmailList,
		rule.InternalEnabled,
		rule.EmailEnabled,
		rule.Enabled,
		now,
		rule.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update alert rule: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("alert rule not found: %s", rule.ID)
	}

	rule.UpdatedAt = now
	return nil
}

// UpdateState persists only the mutable evaluation state of a rule. The state
// machine is the single writer of these fields.
func (r *AlertRuleRepository) UpdateState(ctx context.Context, rule *models.AlertRule) error {
	query := `
		UPDATE alert_rules SET
			current_status = ?, last_checked_at = ?, last_value = ?,
			last_alert_sent_at = ?, updated_at = ?
		WHERE id = ?
	`

	now := time.Now()
	result, err := r.db.ExecContext(
		ctx,
		query,
		rule.CurrentStatus,
		rule.LastCheckedAt,
		rule.LastValue,
		rule.LastAlertSentAt,
		now,
		rule.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update alert rule state: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("alert rule not found: %s", rule.ID)
	}

	rule.UpdatedAt = now
	return nil
}

// Delete removes an alert rule
func (r *AlertRuleRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM alert_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete alert rule: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("alert rule not found: %s", id)
	}

	return nil
}

func (r *AlertRuleRepository) queryRules(ctx context.Context, query string, args ...interface{}) ([]*models.AlertRule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert rules: %w", err)
	}
	defer rows.Close()

	var rules []*models.AlertRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert rule: %w", err)
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRule(row rowScanner) (*models.AlertRule, error) {
	rule := &models.AlertRule{}
	err := row.Scan(
		&rule.ID,
		&rule.ScopeID,
		&rule.Name,
		&rule.MetricKey,
		&rule.Operator,
		&rule.WarningThreshold,
		&rule.CriticalThreshold,
		&rule.CheckIntervalSeconds,
		&rule.CooldownSeconds,
		&rule.BaselineValue,
		&rule.NotifyOnWarning,
		&rule.NotifyOnCritical,
		&rule.NotifyOnRecovery,
		&rule.RecipientRoles,
		&rule.EmailList,
		&rule.InternalEnabled,
		&rule.EmailEnabled,
		&rule.Enabled,
		&rule.CurrentStatus,
		&rule.LastCheckedAt,
		&rule.LastValue,
		&rule.LastAlertSentAt,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return rule, nil
}
