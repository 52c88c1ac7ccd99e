package sqlite

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	schema := []string{
		`CREATE TABLE alert_rules (
			id TEXT PRIMARY KEY,
			scope_id TEXT NOT NULL,
			name TEXT NOT NULL,
			metric_key TEXT NOT NULL,
			operator TEXT NOT NULL,
			warning_threshold REAL,
			critical_threshold REAL,
			check_interval_seconds INTEGER NOT NULL DEFAULT 900,
			cooldown_seconds INTEGER NOT NULL DEFAULT 0,
			baseline_value REAL,
			notify_on_warning BOOLEAN NOT NULL DEFAULT TRUE,
			notify_on_critical BOOLEAN NOT NULL DEFAULT TRUE,
			notify_on_recovery BOOLEAN NOT NULL DEFAULT TRUE,
			recipient_roles TEXT NOT NULL DEFAULT '',
			email_list TEXT NOT NULL DEFAULT '',
			internal_enabled BOOLEAN NOT NULL DEFAULT TRUE,
			email_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			current_status TEXT NOT NULL DEFAULT 'ok',
			last_checked_at DATETIME,
			last_value REAL,
			last_alert_sent_at DATETIME,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE alert_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			rule_id TEXT NOT NULL,
			scope_id TEXT NOT NULL,
			previous_status TEXT NOT NULL,
			new_status TEXT NOT NULL,
			metric_value REAL NOT NULL,
			breached_threshold REAL,
			details TEXT NOT NULL DEFAULT '',
			notified BOOLEAN NOT NULL DEFAULT FALSE,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE metric_samples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			scope_id TEXT NOT NULL,
			metric_key TEXT NOT NULL,
			value REAL NOT NULL,
			label TEXT,
			row_count INTEGER,
			recorded_by TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE notification_ledger (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			scope_id TEXT NOT NULL,
			rule_id TEXT NOT NULL,
			severity TEXT NOT NULL,
			details TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(scope_id, rule_id, severity)
		)`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("Failed to create test schema: %v", err)
		}
	}

	return db
}
