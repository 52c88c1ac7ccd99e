package repositories

import (
	"context"
	"time"

	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/database/models"
)

// AlertRuleRepository defines alert rule data access methods
type AlertRuleRepository interface {
	Create(ctx context.Context, rule *models.AlertRule) error
	GetByID(ctx context.Context, id string) (*models.AlertRule, error)
	GetByScope(ctx context.Context, scopeID string) ([]*models.AlertRule, error)
	GetByScopeAndMetric(ctx context.Context, scopeID, metricKey string) ([]*models.AlertRule, error)
	GetEnabled(ctx context.Context, scopeID string) ([]*models.AlertRule, error)
	Update(ctx context.Context, rule *models.AlertRule) error
	UpdateState(ctx context.Context, rule *models.AlertRule) error
	Delete(ctx context.Context, id string) error
}

// AlertHistoryRepository defines alert history data access methods
type AlertHistoryRepository interface {
	Create(ctx context.Context, entry *models.AlertHistoryEntry) error
	GetByRule(ctx context.Context, ruleID string, limit int) ([]*models.AlertHistoryEntry, error)
	SetNotified(ctx context.Context, id int64) error
	TrimRule(ctx context.Context, ruleID string, keep int) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// MetricSampleRepository defines metric sample data access methods
type MetricSampleRepository interface {
	Create(ctx context.Context, sample *models.MetricSample) error
	GetLatest(ctx context.Context, scopeID, metricKey string, limit int) ([]*models.MetricSample, error)
	TrimSeries(ctx context.Context, scopeID, metricKey string, keep int) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	GetStatistics(ctx context.Context, scopeID, metricKey string) (*SeriesStatistics, error)
}

// SeriesStatistics aggregates the retained samples of one series.
type SeriesStatistics struct {
	Count     int        `json:"count"`
	Min       float64    `json:"min"`
	Max       float64    `json:"max"`
	Avg       float64    `json:"avg"`
	FirstSeen *time.Time `json:"first_seen,omitempty"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
}

// NotificationLedgerRepository defines notification dedupe ledger access.
// InsertIfAbsent must be atomic: under concurrent evaluation of the same rule
// only one caller may observe inserted=true for a given key.
type NotificationLedgerRepository interface {
	InsertIfAbsent(ctx context.Context, entry *models.NotificationLedgerEntry) (inserted bool, err error)
	Exists(ctx context.Context, scopeID, ruleID string, severity models.Severity) (bool, error)
	DeleteSeverities(ctx context.Context, scopeID, ruleID string, severities []models.Severity) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
