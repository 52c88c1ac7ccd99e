package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/database/models"
)

func newHistoryEntry(ruleID string, createdAt time.Time) *models.AlertHistoryEntry {
	return &models.AlertHistoryEntry{
		RuleID:         ruleID,
		ScopeID:        "scope-1",
		PreviousStatus: models.StatusOK,
		NewStatus:      models.StatusWarning,
		MetricValue:    82,
		Details:        "value 82 breached warning threshold 80 (gt)",
		CreatedAt:      createdAt,
	}
}

func TestAlertHistoryRepository_CreateAndGetByRule(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewAlertHistoryRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		entry := newHistoryEntry("rule-1", base.Add(time.Duration(i)*time.Hour))
		entry.MetricValue = float64(80 + i)
		if err := repo.Create(ctx, entry); err != nil {
			t.Fatalf("Failed to create history entry: %v", err)
		}
		if entry.ID == 0 {
			t.Error("Expected entry ID to be set")
		}
	}
	if err := repo.Create(ctx, newHistoryEntry("rule-2", base)); err != nil {
		t.Fatalf("Failed to create history entry: %v", err)
	}

	entries, err := repo.GetByRule(ctx, "rule-1", 2)
	if err != nil {
		t.Fatalf("Failed to get history: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	// Newest first.
	if entries[0].MetricValue != 82 || entries[1].MetricValue != 81 {
		t.Errorf("Expected newest first, got [%v %v]", entries[0].MetricValue, entries[1].MetricValue)
	}
}

func TestAlertHistoryRepository_SetNotified(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewAlertHistoryRepository(db)
	ctx := context.Background()

	entry := newHistoryEntry("rule-1", time.Now())
	if err := repo.Create(ctx, entry); err != nil {
		t.Fatalf("Failed to create history entry: %v", err)
	}

	if err := repo.SetNotified(ctx, entry.ID); err != nil {
		t.Fatalf("Failed to set notified flag: %v", err)
	}

	entries, err := repo.GetByRule(ctx, "rule-1", 10)
	if err != nil {
		t.Fatalf("Failed to get history: %v", err)
	}
	if len(entries) != 1 || !entries[0].Notified {
		t.Error("Expected entry to be flagged as notified")
	}

	if err := repo.SetNotified(ctx, 9999); err == nil {
		t.Error("Expected error for missing entry")
	}
}

func TestAlertHistoryRepository_TrimRule(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewAlertHistoryRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		entry := newHistoryEntry("rule-1", base.Add(time.Duration(i)*time.Hour))
		entry.MetricValue = float64(i)
		if err := repo.Create(ctx, entry); err != nil {
			t.Fatalf("Failed to create history entry: %v", err)
		}
	}

	if err := repo.TrimRule(ctx, "rule-1", 2); err != nil {
		t.Fatalf("Failed to trim history: %v", err)
	}

	entries, err := repo.GetByRule(ctx, "rule-1", 10)
	if err != nil {
		t.Fatalf("Failed to get history: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries after trim, got %d", len(entries))
	}
	if entries[0].MetricValue != 4 || entries[1].MetricValue != 3 {
		t.Errorf("Expected newest entries kept, got [%v %v]", entries[0].MetricValue, entries[1].MetricValue)
	}
}

func TestAlertHistoryRepository_DeleteOlderThan(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewAlertHistoryRepository(db)
	ctx := context.Background()

	now := time.Now()
	if err := repo.Create(ctx, newHistoryEntry("rule-1", now.AddDate(0, 0, -120))); err != nil {
		t.Fatalf("Failed to create old entry: %v", err)
	}
	if err := repo.Create(ctx, newHistoryEntry("rule-1", now)); err != nil {
		t.Fatalf("Failed to create recent entry: %v", err)
	}

	deleted, err := repo.DeleteOlderThan(ctx, now.AddDate(0, 0, -90))
	if err != nil {
		t.Fatalf("Failed to delete old history: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deleted entry, got %d", deleted)
	}

	entries, err := repo.GetByRule(ctx, "rule-1", 10)
	if err != nil {
		t.Fatalf("Failed to get history: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected 1 remaining entry, got %d", len(entries))
	}
}
