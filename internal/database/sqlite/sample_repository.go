package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/database/models"
	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/database/repositories"
)

// MetricSampleRepository implements repositories.MetricSampleRepository
type MetricSampleRepository struct {
	db *sql.DB
}

// NewMetricSampleRepository creates a new MetricSampleRepository
func NewMetricSampleRepository(db *sql.DB) repositories.MetricSampleRepository {
	return &MetricSampleRepository{db: db}
}

// Create inserts a new metric sample
func (r *MetricSampleRepository) Create(ctx context.Context, sample *models.MetricSample) error {
	query := `
		INSERT INTO metric_samples (scope_id, metric_key, value, label, row_count, recorded_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	if sample.CreatedAt.IsZero() {
		sample.CreatedAt = time.Now()
	}

	result, err := r.db.ExecContext(
		ctx,
		query,
		sample.ScopeID,
		sample.MetricKey,
		sample.Value,
		sample.Label,
		sample.RowCount,
		sample.RecordedBy,
		sample.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create metric sample: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}

	sample.ID = id
	return nil
}

// GetLatest retrieves the most recent samples of a series, newest first
func (r *MetricSampleRepository) GetLatest(ctx context.Context, scopeID, metricKey string, limit int) ([]*models.MetricSample, error) {
	if limit <= 0 {
		limit = 30
	}

	query := `
		SELECT id, scope_id, metric_key, value, label, row_count, recorded_by, created_at
		FROM metric_samples
		WHERE scope_id = ? AND metric_key = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, scopeID, metricKey, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query metric samples: %w", err)
	}
	defer rows.Close()

	var samples []*models.MetricSample
	for rows.Next() {
		sample := &models.MetricSample{}
		err := rows.Scan(
			&sample.ID,
			&sample.ScopeID,
			&sample.MetricKey,
			&sample.Value,
			&sample.Label,
			&sample.RowCount,
			&sample.RecordedBy,
			&sample.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan metric sample: %w", err)
		}
		samples = append(samples, sample)
	}

	return samples, rows.Err()
}

// TrimSeries deletes all but the newest keep samples of one series
func (r *MetricSampleRepository) TrimSeries(ctx context.Context, scopeID, metricKey string, keep int) error {
	if keep <= 0 {
		return nil
	}

	query := `
		DELETE FROM metric_samples
		WHERE scope_id = ? AND metric_key = ?
		  AND id NOT IN (
			SELECT id FROM metric_samples
			WHERE scope_id = ? AND metric_key = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		  )
	`

	if _, err := r.db.ExecContext(ctx, query, scopeID, metricKey, scopeID, metricKey, keep); err != nil {
		return fmt.Errorf("failed to trim metric series: %w", err)
	}

	return nil
}

// DeleteOlderThan removes samples older than the cutoff across all series
func (r *MetricSampleRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM metric_samples WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old metric samples: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}

// GetStatistics aggregates the retained samples of one series
func (r *MetricSampleRepository) GetStatistics(ctx context.Context, scopeID, metricKey string) (*repositories.SeriesStatistics, error) {
	query := `
		SELECT COUNT(*), COALESCE(MIN(value), 0), COALESCE(MAX(value), 0),
		       COALESCE(AVG(value), 0), MIN(created_at), MAX(created_at)
		FROM metric_samples
		WHERE scope_id = ? AND metric_key = ?
	`

	stats := &repositories.SeriesStatistics{}
	var firstSeen, lastSeen sql.NullTime
	err := r.db.QueryRowContext(ctx, query, scopeID, metricKey).Scan(
		&stats.Count,
		&stats.Min,
		&stats.Max,
		&stats.Avg,
		&firstSeen,
		&lastSeen,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get series statistics: %w", err)
	}

	if firstSeen.Valid {
		stats.FirstSeen = &firstSeen.Time
	}
	if lastSeen.Valid {
		stats.LastSeen = &lastSeen.Time
	}

	return stats, nil
}
