package database

import (
	"database/sql"

	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/database/repositories"
	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/database/sqlite"
)

// Repositories holds all repository instances
type Repositories struct {
	Rule    repositories.AlertRuleRepository
	History repositories.AlertHistoryRepository
	Sample  repositories.MetricSampleRepository
	Ledger  repositories.NotificationLedgerRepository
}

// NewRepositories creates all repository instances
func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		Rule:    sqlite.NewAlertRuleRepository(db),
		History: sqlite.NewAlertHistoryRepository(db),
		Sample:  sqlite.NewMetricSampleRepository(db),
		Ledger:  sqlite.NewNotificationLedgerRepository(db),
	}
}
