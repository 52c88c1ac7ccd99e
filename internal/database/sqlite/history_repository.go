package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/database/models"
	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/database/repositories"
)

// AlertHistoryRepository implements repositories.AlertHistoryRepository
type AlertHistoryRepository struct {
	db *sql.DB
}

// NewAlertHistoryRepository creates a new AlertHistoryRepository
func NewAlertHistoryRepository(db *sql.DB) repositories.AlertHistoryRepository {
	return &AlertHistoryRepository{db: db}
}

// Create appends a new history entry
func (r *AlertHistoryRepository) Create(ctx context.Context, entry *models.AlertHistoryEntry) error {
	query := `
		INSERT INTO alert_history (
			rule_id, scope_id, previous_status, new_status, metric_value,
			breached_threshold, details, notified, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	result, err := r.db.ExecContext(
		ctx,
		query,
		entry.RuleID,
		entry.ScopeID,
		entry.PreviousStatus,
		entry.NewStatus,
		entry.MetricValue,
		entry.BreachedThreshold,
		entry.Details,
		entry.Notified,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create alert history entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}

	entry.ID = id
	return nil
}

// GetByRule retrieves history entries for a rule, newest first
func (r *AlertHistoryRepository) GetByRule(ctx context.Context, ruleID string, limit int) ([]*models.AlertHistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, rule_id, scope_id, previous_status, new_status, metric_value,
		       breached_threshold, details, notified, created_at
		FROM alert_history
		WHERE rule_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, ruleID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert history: %w", err)
	}
	defer rows.Close()

	var entries []*models.AlertHistoryEntry
	for rows.Next() {
		entry := &models.AlertHistoryEntry{}
		err := rows.Scan(
			&entry.ID,
			&entry.RuleID,
			&entry.ScopeID,
			&entry.PreviousStatus,
			&entry.NewStatus,
			&entry.MetricValue,
			&entry.BreachedThreshold,
			&entry.Details,
			&entry.Notified,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert history entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// SetNotified flags a history entry as having produced a notification
func (r *AlertHistoryRepository) SetNotified(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `UPDATE alert_history SET notified = TRUE WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to set notified flag: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("alert history entry not found: %d", id)
	}

	return nil
}

// TrimRule deletes all but the newest keep entries of one rule
func (r *AlertHistoryRepository) TrimRule(ctx context.Context, ruleID string, keep int) error {
	if keep <= 0 {
		return nil
	}

	query := `
		DELETE FROM alert_history
		WHERE rule_id = ?
		  AND id NOT IN (
			SELECT id FROM alert_history
			WHERE rule_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		  )
	`

	if _, err := r.db.ExecContext(ctx, query, ruleID, ruleID, keep); err != nil {
		return fmt.Errorf("failed to trim alert history: %w", err)
	}

	return nil
}

// DeleteOlderThan removes history entries older than the cutoff
func (r *AlertHistoryRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM alert_history WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old alert history: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}
