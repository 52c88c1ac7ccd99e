package alerting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/core/series"
	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/database/models"
	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/database/repositories"
	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/metrics"
	"github.com/sirupsen/logrus"
)

// ServiceConfig tunes the orchestration service. The per-rule history cap is
// owned by the StateMachine.
type ServiceConfig struct {
	MaxConcurrentEvals int
}

// Service orchestrates the alerting pipeline: sample ingestion, due-check
// gating, threshold evaluation, state transition, notification dedupe and
// dispatch.
type Service struct {
	rules      repositories.AlertRuleRepository
	history    repositories.AlertHistoryRepository
	store      *series.Store
	sm         *StateMachine
	ledger     *Ledger
	dispatcher *Dispatcher
	clock      Clock
	collector  *metrics.Collector
	logger     *logrus.Logger

	maxConcurrent int

	// Per-rule mutexes so two concurrent evaluations never race on the
	// same rule's status fields.
	ruleLocks sync.Map
}

// NewService creates a new Service
func NewService(
	rules repositories.AlertRuleRepository,
	history repositories.AlertHistoryRepository,
	store *series.Store,
	sm *StateMachine,
	ledger *Ledger,
	dispatcher *Dispatcher,
	clock Clock,
	collector *metrics.Collector,
	logger *logrus.Logger,
	cfg ServiceConfig,
) *Service {
	if clock == nil {
		clock = SystemClock{}
	}
	if cfg.MaxConcurrentEvals <= 0 {
		cfg.MaxConcurrentEvals = 10
	}
	return &Service{
		rules:         rules,
		history:       history,
		store:         store,
		sm:            sm,
		ledger:        ledger,
		dispatcher:    dispatcher,
		clock:         clock,
		collector:     collector,
		logger:        logger,
		maxConcurrent: cfg.MaxConcurrentEvals,
	}
}

// RecordResult reports what a RecordMetric call did.
type RecordResult struct {
	Stored   bool  `json:"stored"`
	SampleID int64 `json:"sample_id,omitempty"`
}

// RecordMetric ingests one metric observation through the series store.
func (s *Service) RecordMetric(ctx context.Context, scopeID, metricKey string, value float64, opts series.Options) (*RecordResult, error) {
	stored, id, err := s.store.Record(ctx, scopeID, metricKey, value, opts)
	if err != nil {
		return nil, err
	}

	if stored {
		s.collector.SampleStored()
	} else {
		s.collector.SampleSkipped()
	}

	return &RecordResult{Stored: stored, SampleID: id}, nil
}

// RuleOutcome is the per-rule result of an EvaluateDueAlerts run.
type RuleOutcome struct {
	RuleID     string          `json:"rule_id"`
	MetricKey  string          `json:"metric_key"`
	Skipped    bool            `json:"skipped"`
	SkipReason string          `json:"skip_reason,omitempty"`
	Outcome    *Outcome        `json:"outcome,omitempty"`
	Notified   bool            `json:"notified"`
	Dispatch   *DispatchResult `json:"dispatch,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// EvaluateDueAlerts evaluates every enabled, due rule of the scope whose
// metric key has a current value. Callers record the current observations
// through RecordMetric before evaluating: the newest stored sample is treated
// as the value under evaluation, so percentage baselines come from the sample
// before it. A series evaluated without a stored prior observation falls back
// to the rule's static baseline. Rules are independent units of work and
// run concurrently under a bounded semaphore; per-rule state mutation is
// serialized by a rule-id keyed mutex.
func (s *Service) EvaluateDueAlerts(ctx context.Context, scopeID string, values map[string]float64) (map[string]*RuleOutcome, error) {
	rules, err := s.rules.GetEnabled(ctx, scopeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules for scope %s: %w", scopeID, err)
	}

	outcomes := make(map[string]*RuleOutcome, len(rules))
	var mu sync.Mutex
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, s.maxConcurrent)

	now := s.clock.Now()

	for _, rule := range rules {
		value, hasValue := values[rule.MetricKey]
		if !hasValue {
			continue
		}

		if !IsDue(rule, now) {
			mu.Lock()
			outcomes[rule.ID] = &RuleOutcome{
				RuleID:     rule.ID,
				MetricKey:  rule.MetricKey,
				Skipped:    true,
				SkipReason: "not due",
			}
			mu.Unlock()
			continue
		}

		semaphore <- struct{}{}
		wg.Add(1)

		go func(r *models.AlertRule, v float64) {
			defer func() {
				<-semaphore
				wg.Done()
			}()

			outcome := s.evaluateRule(ctx, r, v)

			mu.Lock()
			outcomes[r.ID] = outcome
			mu.Unlock()
		}(rule, value)
	}

	wg.Wait()
	return outcomes, nil
}

// evaluateRule runs one rule through the full pipeline under its lock.
func (s *Service) evaluateRule(ctx context.Context, rule *models.AlertRule, value float64) *RuleOutcome {
	lock := s.lockFor(rule.ID)
	lock.Lock()
	defer lock.Unlock()

	result := &RuleOutcome{RuleID: rule.ID, MetricKey: rule.MetricKey}
	now := s.clock.Now()

	var previous *float64
	if prev, ok, err := s.store.PreviousValue(ctx, rule.ScopeID, rule.MetricKey); err != nil {
		result.Error = err.Error()
		return result
	} else if ok {
		previous = &prev
	}

	eval := Evaluate(rule, value, previous)
	s.collector.Evaluation(string(eval.Status))

	outcome, err := s.sm.Apply(ctx, rule, eval, value, now)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Outcome = outcome

	if outcome.Changed {
		s.collector.Transition(string(outcome.OldStatus), string(outcome.NewStatus))
	}

	severity, notify := outcome.Severity()
	if !notify || !s.notifyEnabled(rule, severity) {
		return result
	}

	if rule.CooldownSeconds > 0 && rule.LastAlertSentAt.Valid &&
		now.Sub(rule.LastAlertSentAt.Time) < time.Duration(rule.CooldownSeconds)*time.Second {
		result.SkipReason = "cooldown"
		return result
	}

	send, err := s.ledger.ShouldSend(ctx, rule.ScopeID, rule.ID, severity)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	if !send {
		result.SkipReason = "already notified this cycle"
		return result
	}

	dispatch, err := s.dispatcher.Send(ctx, rule, severity, eval)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Dispatch = dispatch

	if !dispatch.Sent() {
		s.collector.Notification(string(severity), "failed")
		s.logger.WithFields(logrus.Fields{
			"rule_id":  rule.ID,
			"severity": severity,
			"errors":   dispatch.Errors,
		}).Warn("Notification dispatch failed on every channel")
		return result
	}

	s.collector.Notification(string(severity), "sent")
	result.Notified = true

	if _, err := s.ledger.MarkSent(ctx, rule.ScopeID, rule.ID, severity, eval.Details, now); err != nil {
		result.Error = err.Error()
		return result
	}

	if err := s.sm.MarkNotified(ctx, rule, outcome.HistoryID, now); err != nil {
		result.Error = err.Error()
	}

	return result
}

func (s *Service) notifyEnabled(rule *models.AlertRule, severity models.Severity) bool {
	switch severity {
	case models.SeverityWarning:
		return rule.NotifyOnWarning
	case models.SeverityCritical:
		return rule.NotifyOnCritical
	case models.SeverityRecovery:
		return rule.NotifyOnRecovery
	}
	return false
}

func (s *Service) lockFor(ruleID string) *sync.Mutex {
	lock, _ := s.ruleLocks.LoadOrStore(ruleID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// StatusSummary aggregates the alert state of one scope.
type StatusSummary struct {
	OK              int                 `json:"ok"`
	Warning         int                 `json:"warning"`
	Critical        int                 `json:"critical"`
	HighestSeverity models.AlertStatus  `json:"highest_severity"`
	ActiveRules     []*models.AlertRule `json:"active_rules"`
}

// GetStatusSummary returns per-status counts, the active (non-ok) rules and
// the overall highest severity of a scope.
func (s *Service) GetStatusSummary(ctx context.Context, scopeID string) (*StatusSummary, error) {
	rules, err := s.rules.GetByScope(ctx, scopeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules for scope %s: %w", scopeID, err)
	}

	summary := &StatusSummary{HighestSeverity: models.StatusOK}
	for _, rule := range rules {
		switch rule.CurrentStatus {
		case models.StatusCritical:
			summary.Critical++
			summary.HighestSeverity = models.StatusCritical
			summary.ActiveRules = append(summary.ActiveRules, rule)
		case models.StatusWarning:
			summary.Warning++
			if summary.HighestSeverity != models.StatusCritical {
				summary.HighestSeverity = models.StatusWarning
			}
			summary.ActiveRules = append(summary.ActiveRules, rule)
		default:
			summary.OK++
		}
	}

	return summary, nil
}

// SweepMetricHistory deletes metric samples older than maxAgeDays.
func (s *Service) SweepMetricHistory(ctx context.Context, maxAgeDays int) (int64, error) {
	deleted, err := s.store.GlobalRetentionSweep(ctx, maxAgeDays)
	if err != nil {
		return 0, err
	}
	s.collector.SweepDeleted("metric_samples", deleted)
	return deleted, nil
}

// SweepAlertHistory deletes alert history entries older than maxAgeDays.
func (s *Service) SweepAlertHistory(ctx context.Context, maxAgeDays int) (int64, error) {
	if maxAgeDays <= 0 {
		return 0, nil
	}

	cutoff := s.clock.Now().AddDate(0, 0, -maxAgeDays)
	deleted, err := s.history.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("alert history sweep failed: %w", err)
	}

	if deleted > 0 {
		s.logger.WithField("deleted", deleted).Info("Swept old alert history entries")
	}
	s.collector.SweepDeleted("alert_history", deleted)
	return deleted, nil
}

// SweepLedger deletes notification ledger entries older than maxAgeDays.
func (s *Service) SweepLedger(ctx context.Context, maxAgeDays int) (int64, error) {
	deleted, err := s.ledger.Housekeeping(ctx, maxAgeDays)
	if err != nil {
		return 0, err
	}
	s.collector.SweepDeleted("notification_ledger", deleted)
	return deleted, nil
}
