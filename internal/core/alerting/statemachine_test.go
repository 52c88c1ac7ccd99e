package alerting

import (
	"context"
	"testing"
	"time"

	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/database/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRule(ruleRepo *fakeRuleRepo) *models.AlertRule {
	rule := &models.AlertRule{
		ScopeID:              "scope-1",
		Name:                 "CPU usage",
		MetricKey:            "cpu_pct",
		Operator:             models.OperatorGT,
		WarningThreshold:     threshold(80),
		CriticalThreshold:    threshold(95),
		CheckIntervalSeconds: 900,
		Enabled:              true,
		InternalEnabled:      true,
		NotifyOnWarning:      true,
		NotifyOnCritical:     true,
		NotifyOnRecovery:     true,
	}
	ruleRepo.Create(context.Background(), rule)
	return rule
}

func TestStateMachine_TransitionAppendsHistory(t *testing.T) {
	ruleRepo := newFakeRuleRepo()
	historyRepo := newFakeHistoryRepo()
	sm := NewStateMachine(ruleRepo, historyRepo, 50, logrus.New())
	rule := testRule(ruleRepo)
	ctx := context.Background()
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	eval := Evaluate(rule, 82, nil)
	outcome, err := sm.Apply(ctx, rule, eval, 82, now)
	require.NoError(t, err)

	assert.Equal(t, models.StatusOK, outcome.OldStatus)
	assert.Equal(t, models.StatusWarning, outcome.NewStatus)
	assert.True(t, outcome.Changed)
	assert.False(t, outcome.Recovered)
	assert.NotZero(t, outcome.HistoryID)

	entries := historyRepo.forRule(rule.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, models.StatusOK, entries[0].PreviousStatus)
	assert.Equal(t, models.StatusWarning, entries[0].NewStatus)
	assert.Equal(t, 82.0, entries[0].MetricValue)

	stored, err := ruleRepo.GetByID(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusWarning, stored.CurrentStatus)
	assert.True(t, stored.LastCheckedAt.Valid)
	assert.Equal(t, 82.0, stored.LastValue.Float64)
}

func TestStateMachine_SteadyOKSkipsHistory(t *testing.T) {
	ruleRepo := newFakeRuleRepo()
	historyRepo := newFakeHistoryRepo()
	sm := NewStateMachine(ruleRepo, historyRepo, 50, logrus.New())
	rule := testRule(ruleRepo)
	ctx := context.Background()
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	eval := Evaluate(rule, 70, nil)
	outcome, err := sm.Apply(ctx, rule, eval, 70, now)
	require.NoError(t, err)

	assert.False(t, outcome.Changed)
	assert.Zero(t, outcome.HistoryID)
	assert.Empty(t, historyRepo.forRule(rule.ID))

	// Timestamps still advance on steady ok.
	stored, err := ruleRepo.GetByID(ctx, rule.ID)
	require.NoError(t, err)
	assert.True(t, stored.LastCheckedAt.Valid)
}

func TestStateMachine_ContinuingBreachAppendsHistory(t *testing.T) {
	ruleRepo := newFakeRuleRepo()
	historyRepo := newFakeHistoryRepo()
	sm := NewStateMachine(ruleRepo, historyRepo, 50, logrus.New())
	rule := testRule(ruleRepo)
	ctx := context.Background()
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	_, err := sm.Apply(ctx, rule, Evaluate(rule, 97, nil), 97, now)
	require.NoError(t, err)

	outcome, err := sm.Apply(ctx, rule, Evaluate(rule, 98, nil), 98, now.Add(15*time.Minute))
	require.NoError(t, err)

	assert.False(t, outcome.Changed)
	assert.Equal(t, models.StatusCritical, outcome.NewStatus)
	assert.Len(t, historyRepo.forRule(rule.ID), 2)
}

func TestStateMachine_HistoryCapKeepsNewest(t *testing.T) {
	ruleRepo := newFakeRuleRepo()
	historyRepo := newFakeHistoryRepo()
	sm := NewStateMachine(ruleRepo, historyRepo, 2, logrus.New())
	rule := testRule(ruleRepo)
	ctx := context.Background()
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	// Every step is a breach, so each one appends a history entry.
	for i, value := range []float64{82, 97, 82, 97} {
		eval := Evaluate(rule, value, nil)
		_, err := sm.Apply(ctx, rule, eval, value, now.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
	}

	entries := historyRepo.forRule(rule.ID)
	require.Len(t, entries, 2)
	assert.Equal(t, 82.0, entries[0].MetricValue)
	assert.Equal(t, 97.0, entries[1].MetricValue)
}

func TestStateMachine_RecoveryPersistsOK(t *testing.T) {
	ruleRepo := newFakeRuleRepo()
	historyRepo := newFakeHistoryRepo()
	sm := NewStateMachine(ruleRepo, historyRepo, 50, logrus.New())
	rule := testRule(ruleRepo)
	ctx := context.Background()
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	_, err := sm.Apply(ctx, rule, Evaluate(rule, 97, nil), 97, now)
	require.NoError(t, err)

	outcome, err := sm.Apply(ctx, rule, Evaluate(rule, 60, nil), 60, now.Add(15*time.Minute))
	require.NoError(t, err)

	assert.True(t, outcome.Changed)
	assert.True(t, outcome.Recovered)
	assert.Equal(t, models.StatusOK, outcome.NewStatus)

	severity, notify := outcome.Severity()
	assert.True(t, notify)
	assert.Equal(t, models.SeverityRecovery, severity)

	// Recovery is a transition label, the stored status is plain ok.
	stored, err := ruleRepo.GetByID(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOK, stored.CurrentStatus)
}

func TestOutcome_Severity(t *testing.T) {
	tests := []struct {
		name     string
		outcome  Outcome
		severity models.Severity
		notify   bool
	}{
		{
			name:    "steady ok carries no severity",
			outcome: Outcome{OldStatus: models.StatusOK, NewStatus: models.StatusOK},
			notify:  false,
		},
		{
			name:     "warning",
			outcome:  Outcome{OldStatus: models.StatusOK, NewStatus: models.StatusWarning, Changed: true},
			severity: models.SeverityWarning,
			notify:   true,
		},
		{
			name:     "critical",
			outcome:  Outcome{OldStatus: models.StatusWarning, NewStatus: models.StatusCritical, Changed: true},
			severity: models.SeverityCritical,
			notify:   true,
		},
		{
			name:     "recovery",
			outcome:  Outcome{OldStatus: models.StatusCritical, NewStatus: models.StatusOK, Changed: true, Recovered: true},
			severity: models.SeverityRecovery,
			notify:   true,
		},
		{
			name:     "continuing breach keeps severity",
			outcome:  Outcome{OldStatus: models.StatusWarning, NewStatus: models.StatusWarning},
			severity: models.SeverityWarning,
			notify:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			severity, notify := tt.outcome.Severity()
			assert.Equal(t, tt.notify, notify)
			if tt.notify {
				assert.Equal(t, tt.severity, severity)
			}
		})
	}
}

func TestStateMachine_MarkNotified(t *testing.T) {
	ruleRepo := newFakeRuleRepo()
	historyRepo := newFakeHistoryRepo()
	sm := NewStateMachine(ruleRepo, historyRepo, 50, logrus.New())
	rule := testRule(ruleRepo)
	ctx := context.Background()
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	outcome, err := sm.Apply(ctx, rule, Evaluate(rule, 97, nil), 97, now)
	require.NoError(t, err)

	sentAt := now.Add(time.Second)
	require.NoError(t, sm.MarkNotified(ctx, rule, outcome.HistoryID, sentAt))

	stored, err := ruleRepo.GetByID(ctx, rule.ID)
	require.NoError(t, err)
	assert.True(t, stored.LastAlertSentAt.Valid)
	assert.Equal(t, sentAt, stored.LastAlertSentAt.Time)

	entries := historyRepo.forRule(rule.ID)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Notified)
}
