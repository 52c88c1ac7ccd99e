package alerting

import (
	"fmt"
	"math"

	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/database/models"
)

// Epsilon used for EQ comparisons and near-zero baseline detection.
const epsilon = 1e-4

// ThresholdKind names which of the two thresholds was breached.
type ThresholdKind string

const (
	ThresholdWarning  ThresholdKind = "warning"
	ThresholdCritical ThresholdKind = "critical"
)

// Evaluation is the result of checking one value against a rule. It is a pure
// function of the rule snapshot and the supplied values and is never persisted
// as its own entity.
type Evaluation struct {
	Status            models.AlertStatus `json:"status"`
	BreachedThreshold *float64           `json:"breached_threshold,omitempty"`
	ThresholdKind     ThresholdKind      `json:"threshold_kind,omitempty"`
	PercentChange     *float64           `json:"percent_change,omitempty"`
	Details           string             `json:"details"`
}

// Evaluate checks value against the rule's thresholds. previous is the prior
// sample value when one exists; percentage operators fall back to the rule's
// static baseline when previous is nil. Critical is always checked before
// warning.
func Evaluate(rule *models.AlertRule, value float64, previous *float64) Evaluation {
	if rule.Operator.IsPercentage() {
		return evaluatePercentage(rule, value, previous)
	}
	return evaluateAbsolute(rule, value)
}

func evaluateAbsolute(rule *models.AlertRule, value float64) Evaluation {
	if rule.CriticalThreshold.Valid && breaches(rule.Operator, value, rule.CriticalThreshold.Float64) {
		t := rule.CriticalThreshold.Float64
		return Evaluation{
			Status:            models.StatusCritical,
			BreachedThreshold: &t,
			ThresholdKind:     ThresholdCritical,
			Details:           fmt.Sprintf("value %.4g breached critical threshold %.4g (%s)", value, t, rule.Operator),
		}
	}

	if rule.WarningThreshold.Valid && breaches(rule.Operator, value, rule.WarningThreshold.Float64) {
		t := rule.WarningThreshold.Float64
		return Evaluation{
			Status:            models.StatusWarning,
			BreachedThreshold: &t,
			ThresholdKind:     ThresholdWarning,
			Details:           fmt.Sprintf("value %.4g breached warning threshold %.4g (%s)", value, t, rule.Operator),
		}
	}

	return Evaluation{
		Status:  models.StatusOK,
		Details: fmt.Sprintf("value %.4g within thresholds (%s)", value, rule.Operator),
	}
}

func breaches(op models.Operator, value, threshold float64) bool {
	switch op {
	case models.OperatorGT:
		return value > threshold
	case models.OperatorLT:
		return value < threshold
	case models.OperatorGTE:
		return value >= threshold
	case models.OperatorLTE:
		return value <= threshold
	case models.OperatorEQ:
		return math.Abs(value-threshold) < epsilon
	}
	return false
}

func evaluatePercentage(rule *models.AlertRule, value float64, previous *float64) Evaluation {
	baseline, ok := resolveBaseline(rule, previous)
	if !ok {
		return Evaluation{
			Status:  models.StatusOK,
			Details: "no baseline available for percentage comparison",
		}
	}

	change := (value - baseline) / math.Abs(baseline) * 100

	if rule.CriticalThreshold.Valid && breachesPct(rule.Operator, change, rule.CriticalThreshold.Float64) {
		t := rule.CriticalThreshold.Float64
		return Evaluation{
			Status:            models.StatusCritical,
			BreachedThreshold: &t,
			ThresholdKind:     ThresholdCritical,
			PercentChange:     &change,
			Details:           fmt.Sprintf("change of %.2f%% from baseline %.4g breached critical threshold %.4g%% (%s)", change, baseline, t, rule.Operator),
		}
	}

	if rule.WarningThreshold.Valid && breachesPct(rule.Operator, change, rule.WarningThreshold.Float64) {
		t := rule.WarningThreshold.Float64
		return Evaluation{
			Status:            models.StatusWarning,
			BreachedThreshold: &t,
			ThresholdKind:     ThresholdWarning,
			PercentChange:     &change,
			Details:           fmt.Sprintf("change of %.2f%% from baseline %.4g breached warning threshold %.4g%% (%s)", change, baseline, t, rule.Operator),
		}
	}

	return Evaluation{
		Status:        models.StatusOK,
		PercentChange: &change,
		Details:       fmt.Sprintf("change of %.2f%% from baseline %.4g within thresholds (%s)", change, baseline, rule.Operator),
	}
}

// resolveBaseline prefers the previous sample over the rule's static baseline.
// A missing or near-zero baseline makes percentage comparison degenerate, so
// evaluation reports ok instead of dividing by it.
func resolveBaseline(rule *models.AlertRule, previous *float64) (float64, bool) {
	var baseline float64
	switch {
	case previous != nil:
		baseline = *previous
	case rule.BaselineValue.Valid:
		baseline = rule.BaselineValue.Float64
	default:
		return 0, false
	}

	if math.Abs(baseline) < epsilon {
		return 0, false
	}

	return baseline, true
}

func breachesPct(op models.Operator, change, threshold float64) bool {
	switch op {
	case models.OperatorChangePct:
		return math.Abs(change) >= threshold
	case models.OperatorIncreasePct:
		return change >= threshold
	case models.OperatorDecreasePct:
		return change <= -threshold
	}
	return false
}
