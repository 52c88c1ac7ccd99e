package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/database/models"
	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/database/repositories"
)

// NotificationLedgerRepository implements repositories.NotificationLedgerRepository
type NotificationLedgerRepository struct {
	db *sql.DB
}

// NewNotificationLedgerRepository creates a new NotificationLedgerRepository
func NewNotificationLedgerRepository(db *sql.DB) repositories.NotificationLedgerRepository {
	return &NotificationLedgerRepository{db: db}
}

// InsertIfAbsent inserts a ledger entry unless one already exists for the
// (scope, rule, severity) key. The unique index makes the insert atomic:
// under a concurrent race exactly one caller observes inserted=true.
func (r *NotificationLedgerRepository) InsertIfAbsent(ctx context.Context, entry *models.NotificationLedgerEntry) (bool, error) {
	query := `
		INSERT OR IGNORE INTO notification_ledger (scope_id, rule_id, severity, details, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	result, err := r.db.ExecContext(
		ctx,
		query,
		entry.ScopeID,
		entry.RuleID,
		entry.Severity,
		entry.Details,
		entry.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert ledger entry: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return false, nil
	}

	id, err := result.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	entry.ID = id
	return true, nil
}

// Exists reports whether a ledger entry is present for the key
func (r *NotificationLedgerRepository) Exists(ctx context.Context, scopeID, ruleID string, severity models.Severity) (bool, error) {
	query := `
		SELECT COUNT(*) FROM notification_ledger
		WHERE scope_id = ? AND rule_id = ? AND severity = ?
	`

	var count int
	if err := r.db.QueryRowContext(ctx, query, scopeID, ruleID, severity).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check ledger entry: %w", err)
	}

	return count > 0, nil
}

// DeleteSeverities removes the ledger entries for the given severities of one rule
func (r *NotificationLedgerRepository) DeleteSeverities(ctx context.Context, scopeID, ruleID string, severities []models.Severity) error {
	if len(severities) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(severities)), ", ")
	query := fmt.Sprintf(`
		DELETE FROM notification_ledger
		WHERE scope_id = ? AND rule_id = ? AND severity IN (%s)
	`, placeholders)

	args := []interface{}{scopeID, ruleID}
	for _, s := range severities {
		args = append(args, s)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete ledger entries: %w", err)
	}

	return nil
}

// DeleteOlderThan removes ledger entries older than the cutoff. A purged
// entry lets its severity fire again without a real recovery, so the
// retention window should be much longer than any expected alert cycle.
func (r *NotificationLedgerRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM notification_ledger WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old ledger entries: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}
