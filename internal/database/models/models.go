package models

import (
	"database/sql"
	"fmt"
	"time"
)

// Operator is the comparison applied between a sample value and a threshold.
type Operator string

const (
	OperatorGT          Operator = "gt"
	OperatorLT          Operator = "lt"
	OperatorEQ          Operator = "eq"
	OperatorGTE         Operator = "gte"
	OperatorLTE         Operator = "lte"
	OperatorChangePct   Operator = "change_pct"
	OperatorIncreasePct Operator = "increase_pct"
	OperatorDecreasePct Operator = "decrease_pct"
)

// IsPercentage reports whether the operator compares against a baseline
// instead of the raw value.
func (o Operator) IsPercentage() bool {
	switch o {
	case OperatorChangePct, OperatorIncreasePct, OperatorDecreasePct:
		return true
	}
	return false
}

// Valid reports whether the operator is one of the known comparisons.
func (o Operator) Valid() bool {
	switch o {
	case OperatorGT, OperatorLT, OperatorEQ, OperatorGTE, OperatorLTE,
		OperatorChangePct, OperatorIncreasePct, OperatorDecreasePct:
		return true
	}
	return false
}

// AlertStatus is the persisted status of a rule.
type AlertStatus string

const (
	StatusOK       AlertStatus = "ok"
	StatusWarning  AlertStatus = "warning"
	StatusCritical AlertStatus = "critical"
)

// Severity classifies a notification-relevant transition. Recovery is a
// transition label only and is never stored as a rule status.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
	SeverityRecovery Severity = "recovery"
)

// MinCheckIntervalSeconds is the floor for rule check intervals.
const MinCheckIntervalSeconds = 300

// AlertRule is one configured threshold watch on a metric series.
type AlertRule struct {
	ID                   string          `json:"id" db:"id"`
	ScopeID              string          `json:"scope_id" db:"scope_id"`
	Name                 string          `json:"name" db:"name"`
	MetricKey            string          `json:"metric_key" db:"metric_key"`
	Operator             Operator        `json:"operator" db:"operator"`
	WarningThreshold     sql.NullFloat64 `json:"warning_threshold" db:"warning_threshold"`
	CriticalThreshold    sql.NullFloat64 `json:"critical_threshold" db:"critical_threshold"`
	CheckIntervalSeconds int             `json:"check_interval_seconds" db:"check_interval_seconds"`
	CooldownSeconds      int             `json:"cooldown_seconds" db:"cooldown_seconds"`
	BaselineValue        sql.NullFloat64 `json:"baseline_value" db:"baseline_value"`
	NotifyOnWarning      bool            `json:"notify_on_warning" db:"notify_on_warning"`
	NotifyOnCritical     bool            `json:"notify_on_critical" db:"notify_on_critical"`
	NotifyOnRecovery     bool            `json:"notify_on_recovery" db:"notify_on_recovery"`
	RecipientRoles       string          `json:"recipient_roles" db:"recipient_roles"`
	EmailList            string          `json:"email_list" db:"email_list"`
	InternalEnabled      bool            `json:"internal_enabled" db:"internal_enabled"`
	EmailEnabled         bool            `json:"email_enabled" db:"email_enabled"`
	Enabled              bool            `json:"enabled" db:"enabled"`
	CurrentStatus        AlertStatus     `json:"current_status" db:"current_status"`
	LastCheckedAt        sql.NullTime    `json:"last_checked_at" db:"last_checked_at"`
	LastValue            sql.NullFloat64 `json:"last_value" db:"last_value"`
	LastAlertSentAt      sql.NullTime    `json:"last_alert_sent_at" db:"last_alert_sent_at"`
	CreatedAt            time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at" db:"updated_at"`
}

// Validate rejects malformed rule configurations before anything is persisted.
func (r *AlertRule) Validate() error {
	if r.ScopeID == "" {
		return fmt.Errorf("rule scope is required")
	}
	if r.MetricKey == "" {
		return fmt.Errorf("rule metric key is required")
	}
	if !r.Operator.Valid() {
		return fmt.Errorf("unknown operator %q", r.Operator)
	}
	if !r.WarningThreshold.Valid && !r.CriticalThreshold.Valid {
		return fmt.Errorf("at least one of warning or critical threshold must be set")
	}
	if r.CheckIntervalSeconds < MinCheckIntervalSeconds {
		return fmt.Errorf("check interval must be at least %d seconds", MinCheckIntervalSeconds)
	}
	return nil
}

// AlertHistoryEntry is an append-only audit record of a rule evaluation that
// changed status or continued a breach.
type AlertHistoryEntry struct {
	ID                int64           `json:"id" db:"id"`
	RuleID            string          `json:"rule_id" db:"rule_id"`
	ScopeID           string          `json:"scope_id" db:"scope_id"`
	PreviousStatus    AlertStatus     `json:"previous_status" db:"previous_status"`
	NewStatus         AlertStatus     `json:"new_status" db:"new_status"`
	MetricValue       float64         `json:"metric_value" db:"metric_value"`
	BreachedThreshold sql.NullFloat64 `json:"breached_threshold" db:"breached_threshold"`
	Details           string          `json:"details" db:"details"`
	Notified          bool            `json:"notified" db:"notified"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
}

// MetricSample is one observation of a metric series. Samples are immutable;
// only retention sweeps remove them.
type MetricSample struct {
	ID         int64           `json:"id" db:"id"`
	ScopeID    string          `json:"scope_id" db:"scope_id"`
	MetricKey  string          `json:"metric_key" db:"metric_key"`
	Value      float64         `json:"value" db:"value"`
	Label      sql.NullString  `json:"label" db:"label"`
	RowCount   sql.NullInt64   `json:"row_count" db:"row_count"`
	RecordedBy string          `json:"recorded_by" db:"recorded_by"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

// NotificationLedgerEntry marks that a severity already fired for a rule in
// the current alert cycle.
type NotificationLedgerEntry struct {
	ID        int64     `json:"id" db:"id"`
	ScopeID   string    `json:"scope_id" db:"scope_id"`
	RuleID    string    `json:"rule_id" db:"rule_id"`
	Severity  Severity  `json:"severity" db:"severity"`
	Details   string    `json:"details" db:"details"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
