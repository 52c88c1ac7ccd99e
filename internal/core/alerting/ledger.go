package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/database/models"
	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/database/repositories"
	"github.com/sirupsen/logrus"
)

// Ledger guarantees at most one outbound notification per
// (scope, rule, severity) within an alert cycle. A cycle ends when the
// opposite severity class fires: recovery clears warning/critical, and
// warning/critical clear recovery.
type Ledger struct {
	repo   repositories.NotificationLedgerRepository
	logger *logrus.Logger
}

// NewLedger creates a new Ledger
func NewLedger(repo repositories.NotificationLedgerRepository, logger *logrus.Logger) *Ledger {
	return &Ledger{repo: repo, logger: logger}
}

// ShouldSend reports whether a notification for this severity may go out,
// i.e. no ledger entry exists for the key yet.
func (l *Ledger) ShouldSend(ctx context.Context, scopeID, ruleID string, severity models.Severity) (bool, error) {
	exists, err := l.repo.Exists(ctx, scopeID, ruleID, severity)
	if err != nil {
		return false, fmt.Errorf("failed to check notification ledger: %w", err)
	}
	return !exists, nil
}

// MarkSent records a confirmed delivery. It first applies the cycle reset —
// recovery wipes the warning/critical entries so the alert can fire again
// from a clean slate, while warning/critical wipe recovery so the next
// recovery can fire — and then inserts the new entry. The insert is atomic
// insert-if-absent: when two evaluations of the same rule race, only one
// observes inserted=true and the ledger keeps a single entry per key.
func (l *Ledger) MarkSent(ctx context.Context, scopeID, ruleID string, severity models.Severity, details string, now time.Time) (bool, error) {
	var clear []models.Severity
	if severity == models.SeverityRecovery {
		clear = []models.Severity{models.SeverityWarning, models.SeverityCritical}
	} else {
		clear = []models.Severity{models.SeverityRecovery}
	}

	if err := l.repo.DeleteSeverities(ctx, scopeID, ruleID, clear); err != nil {
		return false, fmt.Errorf("failed to reset notification cycle: %w", err)
	}

	inserted, err := l.repo.InsertIfAbsent(ctx, &models.NotificationLedgerEntry{
		ScopeID:   scopeID,
		RuleID:    ruleID,
		Severity:  severity,
		Details:   details,
		CreatedAt: now,
	})
	if err != nil {
		return false, fmt.Errorf("failed to record notification: %w", err)
	}

	if !inserted {
		l.logger.WithFields(logrus.Fields{
			"rule_id":  ruleID,
			"severity": severity,
		}).Debug("Notification ledger entry already present, concurrent send suppressed")
	}

	return inserted, nil
}

// Housekeeping purges ledger entries older than the retention window. This is
// an operational safety valve: purging an entry whose condition never cleared
// lets that severity fire again after long silence.
func (l *Ledger) Housekeeping(ctx context.Context, maxAgeDays int) (int64, error) {
	if maxAgeDays <= 0 {
		return 0, nil
	}

	cutoff := time.Now().AddDate(0, 0, -maxAgeDays)
	deleted, err := l.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("ledger housekeeping failed: %w", err)
	}

	if deleted > 0 {
		l.logger.WithField("deleted", deleted).Info("Purged old notification ledger entries")
	}

	return deleted, nil
}
