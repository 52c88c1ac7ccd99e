package series

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/database/models"
	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/database/repositories"
	"github.com/sirupsen/logrus"
)

// Deadband in percent below which a trend is reported as neutral.
const trendDeadbandPct = 0.5

// Clock abstracts the time source for deterministic tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Store is the bounded time-series store for metric samples. Ingestion is
// interval-gated per series and retention keeps only the newest samples.
type Store struct {
	repo         repositories.MetricSampleRepository
	minInterval  time.Duration
	maxPerSeries int
	clock        Clock
	logger       *logrus.Logger
}

// Options tunes a single Record call.
type Options struct {
	Label      string
	RowCount   *int64
	RecordedBy string
	// MinInterval overrides the store-wide ingestion gate when > 0.
	MinInterval time.Duration
}

// Trend compares the current value against the most recent prior sample.
type Trend struct {
	PercentChange float64  `json:"percent_change"`
	Direction     string   `json:"direction"`
	Previous      *float64 `json:"previous,omitempty"`
}

// NewStore creates a new Store. minInterval and maxPerSeries fall back to
// one hour and 30 samples when unset.
func NewStore(repo repositories.MetricSampleRepository, minInterval time.Duration, maxPerSeries int, clock Clock, logger *logrus.Logger) *Store {
	if minInterval <= 0 {
		minInterval = time.Hour
	}
	if maxPerSeries <= 0 {
		maxPerSeries = 30
	}
	if clock == nil {
		clock = systemClock{}
	}
	return &Store{
		repo:         repo,
		minInterval:  minInterval,
		maxPerSeries: maxPerSeries,
		clock:        clock,
		logger:       logger,
	}
}

// Record ingests one observation. The write is skipped when the newest
// sample of the series is younger than the minimum interval; otherwise the
// sample is stored and the series trimmed to its cap.
func (s *Store) Record(ctx context.Context, scopeID, metricKey string, value float64, opts Options) (bool, int64, error) {
	now := s.clock.Now()

	interval := s.minInterval
	if opts.MinInterval > 0 {
		interval = opts.MinInterval
	}

	latest, err := s.repo.GetLatest(ctx, scopeID, metricKey, 1)
	if err != nil {
		return false, 0, fmt.Errorf("failed to read latest sample: %w", err)
	}
	if len(latest) > 0 && now.Sub(latest[0].CreatedAt) < interval {
		s.logger.WithFields(logrus.Fields{
			"scope_id":   scopeID,
			"metric_key": metricKey,
			"age":        now.Sub(latest[0].CreatedAt).String(),
		}).Debug("Sample skipped, newest is younger than minimum interval")
		return false, 0, nil
	}

	sample := &models.MetricSample{
		ScopeID:    scopeID,
		MetricKey:  metricKey,
		Value:      value,
		RecordedBy: opts.RecordedBy,
		CreatedAt:  now,
	}
	if opts.Label != "" {
		sample.Label = sql.NullString{String: opts.Label, Valid: true}
	}
	if opts.RowCount != nil {
		sample.RowCount = sql.NullInt64{Int64: *opts.RowCount, Valid: true}
	}

	if err := s.repo.Create(ctx, sample); err != nil {
		return false, 0, fmt.Errorf("failed to store sample: %w", err)
	}

	if err := s.repo.TrimSeries(ctx, scopeID, metricKey, s.maxPerSeries); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"scope_id":   scopeID,
			"metric_key": metricKey,
		}).Warn("Failed to trim metric series")
	}

	return true, sample.ID, nil
}

// LastValue returns the most recent value of a series, or false when the
// series is empty.
func (s *Store) LastValue(ctx context.Context, scopeID, metricKey string) (float64, bool, error) {
	latest, err := s.repo.GetLatest(ctx, scopeID, metricKey, 1)
	if err != nil {
		return 0, false, fmt.Errorf("failed to read latest sample: %w", err)
	}
	if len(latest) == 0 {
		return 0, false, nil
	}
	return latest[0].Value, true, nil
}

// PreviousValue returns the second-most-recent value of a series, or false
// when fewer than two samples exist.
func (s *Store) PreviousValue(ctx context.Context, scopeID, metricKey string) (float64, bool, error) {
	latest, err := s.repo.GetLatest(ctx, scopeID, metricKey, 2)
	if err != nil {
		return 0, false, fmt.Errorf("failed to read samples: %w", err)
	}
	if len(latest) < 2 {
		return 0, false, nil
	}
	return latest[1].Value, true, nil
}

// History returns up to limit samples of a series, oldest first, for trend
// and sparkline consumers.
func (s *Store) History(ctx context.Context, scopeID, metricKey string, limit int) ([]*models.MetricSample, error) {
	samples, err := s.repo.GetLatest(ctx, scopeID, metricKey, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read sample history: %w", err)
	}

	// Repository returns newest first
	for i, j := 0, len(samples)-1; i < j; i, j = i+1, j-1 {
		samples[i], samples[j] = samples[j], samples[i]
	}

	return samples, nil
}

// ComputeTrend compares currentValue against the most recent prior sample.
// A previous value of zero is treated as +100% when the current value is
// positive and 0% otherwise.
func (s *Store) ComputeTrend(ctx context.Context, scopeID, metricKey string, currentValue float64) (*Trend, error) {
	latest, err := s.repo.GetLatest(ctx, scopeID, metricKey, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to read latest sample: %w", err)
	}

	if len(latest) == 0 {
		return &Trend{Direction: "neutral"}, nil
	}

	previous := latest[0].Value
	var change float64
	switch {
	case previous != 0:
		change = (currentValue - previous) / math.Abs(previous) * 100
	case currentValue > 0:
		change = 100
	default:
		change = 0
	}

	direction := "neutral"
	if change > trendDeadbandPct {
		direction = "up"
	} else if change < -trendDeadbandPct {
		direction = "down"
	}

	return &Trend{
		PercentChange: change,
		Direction:     direction,
		Previous:      &previous,
	}, nil
}

// Statistics aggregates all retained samples of a series.
func (s *Store) Statistics(ctx context.Context, scopeID, metricKey string) (*repositories.SeriesStatistics, error) {
	stats, err := s.repo.GetStatistics(ctx, scopeID, metricKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read series statistics: %w", err)
	}
	return stats, nil
}

// GlobalRetentionSweep deletes all samples older than maxAgeDays across every
// series, independent of the per-series count cap.
func (s *Store) GlobalRetentionSweep(ctx context.Context, maxAgeDays int) (int64, error) {
	if maxAgeDays <= 0 {
		return 0, nil
	}

	cutoff := s.clock.Now().AddDate(0, 0, -maxAgeDays)
	deleted, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("metric retention sweep failed: %w", err)
	}

	if deleted > 0 {
		s.logger.WithFields(logrus.Fields{
			"deleted":      deleted,
			"max_age_days": maxAgeDays,
		}).Info("Swept old metric samples")
	}

	return deleted, nil
}
