package alerting

import (
	"time"

	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/database/models"
)

// IsDue reports whether a rule should be (re-)evaluated at now. Disabled
// rules are never due; rules that were never checked are always due.
func IsDue(rule *models.AlertRule, now time.Time) bool {
	if !rule.Enabled {
		return false
	}
	if !rule.LastCheckedAt.Valid {
		return true
	}
	return now.Sub(rule.LastCheckedAt.Time) >= time.Duration(rule.CheckIntervalSeconds)*time.Second
}
