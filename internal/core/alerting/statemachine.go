package alerting

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/database/models"
	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/database/repositories"
	"github.com/sirupsen/logrus"
)

// Outcome describes what a single evaluation did to a rule's state.
type Outcome struct {
	OldStatus models.AlertStatus `json:"old_status"`
	NewStatus models.AlertStatus `json:"new_status"`
	Changed   bool               `json:"changed"`
	Recovered bool               `json:"recovered"`
	HistoryID int64              `json:"history_id,omitempty"`
	Details   string             `json:"details"`
}

// Severity maps the outcome onto the notification-relevant severity. Steady
// ok carries none. Continuing breaches keep their severity; the ledger is
// what dedupes them.
func (o Outcome) Severity() (models.Severity, bool) {
	if o.Recovered {
		return models.SeverityRecovery, true
	}
	switch o.NewStatus {
	case models.StatusWarning:
		return models.SeverityWarning, true
	case models.StatusCritical:
		return models.SeverityCritical, true
	}
	return "", false
}

// StateMachine owns the mutable status fields of alert rules. It is the
// single writer of current_status, last_checked_at and last_value.
type StateMachine struct {
	rules      repositories.AlertRuleRepository
	history    repositories.AlertHistoryRepository
	historyCap int
	logger     *logrus.Logger
}

// NewStateMachine creates a new StateMachine
func NewStateMachine(rules repositories.AlertRuleRepository, history repositories.AlertHistoryRepository, historyCap int, logger *logrus.Logger) *StateMachine {
	if historyCap <= 0 {
		historyCap = 50
	}
	return &StateMachine{
		rules:      rules,
		history:    history,
		historyCap: historyCap,
		logger:     logger,
	}
}

// Apply moves the rule to the evaluated status, detects recovery, appends a
// history entry for transitions and continuing breaches, and persists the
// rule. RECOVERY is a transition label only: the rule is persisted as ok.
func (sm *StateMachine) Apply(ctx context.Context, rule *models.AlertRule, eval Evaluation, value float64, now time.Time) (*Outcome, error) {
	oldStatus := rule.CurrentStatus
	if oldStatus == "" {
		oldStatus = models.StatusOK
	}
	newStatus := eval.Status

	outcome := &Outcome{
		OldStatus: oldStatus,
		NewStatus: newStatus,
		Changed:   oldStatus != newStatus,
		Recovered: oldStatus != models.StatusOK && newStatus == models.StatusOK,
		Details:   eval.Details,
	}

	rule.CurrentStatus = newStatus
	rule.LastCheckedAt = sql.NullTime{Time: now, Valid: true}
	rule.LastValue = sql.NullFloat64{Float64: value, Valid: true}

	if outcome.Changed || newStatus != models.StatusOK {
		entry := &models.AlertHistoryEntry{
			RuleID:         rule.ID,
			ScopeID:        rule.ScopeID,
			PreviousStatus: oldStatus,
			NewStatus:      newStatus,
			MetricValue:    value,
			Details:        eval.Details,
			CreatedAt:      now,
		}
		if eval.BreachedThreshold != nil {
			entry.BreachedThreshold = sql.NullFloat64{Float64: *eval.BreachedThreshold, Valid: true}
		}

		if err := sm.history.Create(ctx, entry); err != nil {
			return nil, fmt.Errorf("failed to append alert history: %w", err)
		}
		outcome.HistoryID = entry.ID

		if err := sm.history.TrimRule(ctx, rule.ID, sm.historyCap); err != nil {
			sm.logger.WithError(err).WithField("rule_id", rule.ID).Warn("Failed to trim alert history")
		}
	}

	if err := sm.rules.UpdateState(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to persist rule state: %w", err)
	}

	if outcome.Changed {
		sm.logger.WithFields(logrus.Fields{
			"rule_id":    rule.ID,
			"metric_key": rule.MetricKey,
			"old_status": outcome.OldStatus,
			"new_status": outcome.NewStatus,
			"recovered":  outcome.Recovered,
			"value":      value,
		}).Info("Alert rule status changed")
	}

	return outcome, nil
}

// MarkNotified records that a notification went out for the rule and flags
// the evaluation's history entry as notified.
func (sm *StateMachine) MarkNotified(ctx context.Context, rule *models.AlertRule, historyID int64, now time.Time) error {
	rule.LastAlertSentAt = sql.NullTime{Time: now, Valid: true}
	if err := sm.rules.UpdateState(ctx, rule); err != nil {
		return fmt.Errorf("failed to persist notification time: %w", err)
	}
	if historyID != 0 {
		if err := sm.history.SetNotified(ctx, historyID); err != nil {
			sm.logger.WithError(err).WithField("history_id", historyID).Warn("Failed to flag history entry as notified")
		}
	}
	return nil
}
