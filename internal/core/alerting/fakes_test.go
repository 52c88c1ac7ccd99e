package alerting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/database/models"
	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/database/repositories"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeRuleRepo struct {
	mu    sync.Mutex
	rules map[string]*models.AlertRule
}

func newFakeRuleRepo() *fakeRuleRepo {
	return &fakeRuleRepo{rules: make(map[string]*models.AlertRule)}
}

func (r *fakeRuleRepo) Create(ctx context.Context, rule *models.AlertRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rule.ID == "" {
		rule.ID = fmt.Sprintf("rule-%d", len(r.rules)+1)
	}
	if rule.CurrentStatus == "" {
		rule.CurrentStatus = models.StatusOK
	}
	r.rules[rule.ID] = rule
	return nil
}

func (r *fakeRuleRepo) GetByID(ctx context.Context, id string) (*models.AlertRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rule, ok := r.rules[id]
	if !ok {
		return nil, fmt.Errorf("rule %s not found", id)
	}
	return rule, nil
}

func (r *fakeRuleRepo) GetByScope(ctx context.Context, scopeID string) ([]*models.AlertRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.AlertRule
	for _, rule := range r.rules {
		if rule.ScopeID == scopeID {
			out = append(out, rule)
		}
	}
	return out, nil
}

func (r *fakeRuleRepo) GetByScopeAndMetric(ctx context.Context, scopeID, metricKey string) ([]*models.AlertRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.AlertRule
	for _, rule := range r.rules {
		if rule.ScopeID == scopeID && rule.MetricKey == metricKey {
			out = append(out, rule)
		}
	}
	return out, nil
}

func (r *fakeRuleRepo) GetEnabled(ctx context.Context, scopeID string) ([]*models.AlertRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.AlertRule
	for _, rule := range r.rules {
		if rule.ScopeID == scopeID && rule.Enabled {
			out = append(out, rule)
		}
	}
	return out, nil
}

func (r *fakeRuleRepo) Update(ctx context.Context, rule *models.AlertRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rules[rule.ID]; !ok {
		return fmt.Errorf("rule %s not found", rule.ID)
	}
	r.rules[rule.ID] = rule
	return nil
}

func (r *fakeRuleRepo) UpdateState(ctx context.Context, rule *models.AlertRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.rules[rule.ID]
	if !ok {
		return fmt.Errorf("rule %s not found", rule.ID)
	}
	stored.CurrentStatus = rule.CurrentStatus
	stored.LastCheckedAt = rule.LastCheckedAt
	stored.LastValue = rule.LastValue
	stored.LastAlertSentAt = rule.LastAlertSentAt
	return nil
}

func (r *fakeRuleRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rules, id)
	return nil
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	entries []*models.AlertHistoryEntry
	nextID  int64
}

func newFakeHistoryRepo() *fakeHistoryRepo {
	return &fakeHistoryRepo{}
}

func (r *fakeHistoryRepo) Create(ctx context.Context, entry *models.AlertHistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	entry.ID = r.nextID
	r.entries = append(r.entries, entry)
	return nil
}

func (r *fakeHistoryRepo) GetByRule(ctx context.Context, ruleID string, limit int) ([]*models.AlertHistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.AlertHistoryEntry
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if r.entries[i].RuleID == ruleID {
			out = append(out, r.entries[i])
		}
	}
	return out, nil
}

func (r *fakeHistoryRepo) SetNotified(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range r.entries {
		if entry.ID == id {
			entry.Notified = true
			return nil
		}
	}
	return fmt.Errorf("history entry %d not found", id)
}

func (r *fakeHistoryRepo) TrimRule(ctx context.Context, ruleID string, keep int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, entry := range r.entries {
		if entry.RuleID == ruleID {
			count++
		}
	}
	drop := count - keep
	if drop <= 0 {
		return nil
	}

	// Entries are appended in order, so the oldest come first.
	var kept []*models.AlertHistoryEntry
	for _, entry := range r.entries {
		if entry.RuleID == ruleID && drop > 0 {
			drop--
			continue
		}
		kept = append(kept, entry)
	}
	r.entries = kept
	return nil
}

func (r *fakeHistoryRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []*models.AlertHistoryEntry
	var deleted int64
	for _, entry := range r.entries {
		if entry.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, entry)
	}
	r.entries = kept
	return deleted, nil
}

func (r *fakeHistoryRepo) forRule(ruleID string) []*models.AlertHistoryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.AlertHistoryEntry
	for _, entry := range r.entries {
		if entry.RuleID == ruleID {
			out = append(out, entry)
		}
	}
	return out
}

type ledgerKey struct {
	scopeID  string
	ruleID   string
	severity models.Severity
}

type fakeLedgerRepo struct {
	mu      sync.Mutex
	entries map[ledgerKey]*models.NotificationLedgerEntry
}

func newFakeLedgerRepo() *fakeLedgerRepo {
	return &fakeLedgerRepo{entries: make(map[ledgerKey]*models.NotificationLedgerEntry)}
}

func (r *fakeLedgerRepo) InsertIfAbsent(ctx context.Context, entry *models.NotificationLedgerEntry) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := ledgerKey{entry.ScopeID, entry.RuleID, entry.Severity}
	if _, exists := r.entries[key]; exists {
		return false, nil
	}
	r.entries[key] = entry
	return true, nil
}

func (r *fakeLedgerRepo) Exists(ctx context.Context, scopeID, ruleID string, severity models.Severity) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, exists := r.entries[ledgerKey{scopeID, ruleID, severity}]
	return exists, nil
}

func (r *fakeLedgerRepo) DeleteSeverities(ctx context.Context, scopeID, ruleID string, severities []models.Severity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, severity := range severities {
		delete(r.entries, ledgerKey{scopeID, ruleID, severity})
	}
	return nil
}

func (r *fakeLedgerRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for key, entry := range r.entries {
		if entry.CreatedAt.Before(cutoff) {
			delete(r.entries, key)
			deleted++
		}
	}
	return deleted, nil
}

type fakeSampleRepo struct {
	mu      sync.Mutex
	samples []*models.MetricSample
	nextID  int64
}

func newFakeSampleRepo() *fakeSampleRepo {
	return &fakeSampleRepo{}
}

func (r *fakeSampleRepo) Create(ctx context.Context, sample *models.MetricSample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	sample.ID = r.nextID
	r.samples = append(r.samples, sample)
	return nil
}

func (r *fakeSampleRepo) GetLatest(ctx context.Context, scopeID, metricKey string, limit int) ([]*models.MetricSample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.MetricSample
	for i := len(r.samples) - 1; i >= 0 && len(out) < limit; i-- {
		s := r.samples[i]
		if s.ScopeID == scopeID && s.MetricKey == metricKey {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeSampleRepo) TrimSeries(ctx context.Context, scopeID, metricKey string, keep int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var series []*models.MetricSample
	for _, s := range r.samples {
		if s.ScopeID == scopeID && s.MetricKey == metricKey {
			series = append(series, s)
		}
	}
	if len(series) <= keep {
		return nil
	}
	drop := make(map[int64]bool)
	for _, s := range series[:len(series)-keep] {
		drop[s.ID] = true
	}
	var kept []*models.MetricSample
	for _, s := range r.samples {
		if !drop[s.ID] {
			kept = append(kept, s)
		}
	}
	r.samples = kept
	return nil
}

func (r *fakeSampleRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []*models.MetricSample
	var deleted int64
	for _, s := range r.samples {
		if s.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, s)
	}
	r.samples = kept
	return deleted, nil
}

func (r *fakeSampleRepo) GetStatistics(ctx context.Context, scopeID, metricKey string) (*repositories.SeriesStatistics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &repositories.SeriesStatistics{}
	for _, s := range r.samples {
		if s.ScopeID != scopeID || s.MetricKey != metricKey {
			continue
		}
		if stats.Count == 0 || s.Value < stats.Min {
			stats.Min = s.Value
		}
		if stats.Count == 0 || s.Value > stats.Max {
			stats.Max = s.Value
		}
		stats.Avg += s.Value
		stats.Count++
	}
	if stats.Count > 0 {
		stats.Avg /= float64(stats.Count)
	}
	return stats, nil
}

// recordingSink captures every delivery and can be told to fail per target.
type recordingSink struct {
	mu       sync.Mutex
	internal []Recipient
	emails   []string
	failFor  map[string]error
}

func newRecordingSink() *recordingSink {
	return &recordingSink{failFor: make(map[string]error)}
}

func (s *recordingSink) DeliverInternal(ctx context.Context, recipient Recipient, msg *RenderedMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failFor[recipient.DeliveryTarget]; ok {
		return err
	}
	s.internal = append(s.internal, recipient)
	return nil
}

func (s *recordingSink) DeliverEmail(ctx context.Context, address string, msg *RenderedMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failFor[address]; ok {
		return err
	}
	s.emails = append(s.emails, address)
	return nil
}

func (s *recordingSink) deliveries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.internal) + len(s.emails)
}
