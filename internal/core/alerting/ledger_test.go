package alerting

import (
	"context"
	"testing"
	"time"

	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/database/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_FireOncePerSeverity(t *testing.T) {
	ledger := NewLedger(newFakeLedgerRepo(), logrus.New())
	ctx := context.Background()
	now := time.Now()

	send, err := ledger.ShouldSend(ctx, "scope-1", "rule-1", models.SeverityCritical)
	require.NoError(t, err)
	assert.True(t, send)

	inserted, err := ledger.MarkSent(ctx, "scope-1", "rule-1", models.SeverityCritical, "breach", now)
	require.NoError(t, err)
	assert.True(t, inserted)

	send, err = ledger.ShouldSend(ctx, "scope-1", "rule-1", models.SeverityCritical)
	require.NoError(t, err)
	assert.False(t, send)

	// A different severity of the same rule is unaffected.
	send, err = ledger.ShouldSend(ctx, "scope-1", "rule-1", models.SeverityWarning)
	require.NoError(t, err)
	assert.True(t, send)

	// As is the same severity of a different rule.
	send, err = ledger.ShouldSend(ctx, "scope-1", "rule-2", models.SeverityCritical)
	require.NoError(t, err)
	assert.True(t, send)
}

func TestLedger_RecoveryClearsBreachSeverities(t *testing.T) {
	ledger := NewLedger(newFakeLedgerRepo(), logrus.New())
	ctx := context.Background()
	now := time.Now()

	_, err := ledger.MarkSent(ctx, "scope-1", "rule-1", models.SeverityWarning, "", now)
	require.NoError(t, err)
	_, err = ledger.MarkSent(ctx, "scope-1", "rule-1", models.SeverityCritical, "", now)
	require.NoError(t, err)

	_, err = ledger.MarkSent(ctx, "scope-1", "rule-1", models.SeverityRecovery, "", now)
	require.NoError(t, err)

	// The cycle reset: both breach severities may fire again.
	send, err := ledger.ShouldSend(ctx, "scope-1", "rule-1", models.SeverityWarning)
	require.NoError(t, err)
	assert.True(t, send)

	send, err = ledger.ShouldSend(ctx, "scope-1", "rule-1", models.SeverityCritical)
	require.NoError(t, err)
	assert.True(t, send)

	// But recovery itself is now recorded.
	send, err = ledger.ShouldSend(ctx, "scope-1", "rule-1", models.SeverityRecovery)
	require.NoError(t, err)
	assert.False(t, send)
}

func TestLedger_BreachClearsRecovery(t *testing.T) {
	ledger := NewLedger(newFakeLedgerRepo(), logrus.New())
	ctx := context.Background()
	now := time.Now()

	_, err := ledger.MarkSent(ctx, "scope-1", "rule-1", models.SeverityRecovery, "", now)
	require.NoError(t, err)

	_, err = ledger.MarkSent(ctx, "scope-1", "rule-1", models.SeverityWarning, "", now)
	require.NoError(t, err)

	send, err := ledger.ShouldSend(ctx, "scope-1", "rule-1", models.SeverityRecovery)
	require.NoError(t, err)
	assert.True(t, send)

	// Warning does not clear critical, only the opposite class.
	_, err = ledger.MarkSent(ctx, "scope-1", "rule-1", models.SeverityCritical, "", now)
	require.NoError(t, err)

	send, err = ledger.ShouldSend(ctx, "scope-1", "rule-1", models.SeverityWarning)
	require.NoError(t, err)
	assert.False(t, send)
}

func TestLedger_MarkSentIdempotent(t *testing.T) {
	ledger := NewLedger(newFakeLedgerRepo(), logrus.New())
	ctx := context.Background()
	now := time.Now()

	inserted, err := ledger.MarkSent(ctx, "scope-1", "rule-1", models.SeverityCritical, "", now)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = ledger.MarkSent(ctx, "scope-1", "rule-1", models.SeverityCritical, "", now)
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestLedger_Housekeeping(t *testing.T) {
	repo := newFakeLedgerRepo()
	ledger := NewLedger(repo, logrus.New())
	ctx := context.Background()

	old := time.Now().AddDate(0, 0, -120)
	_, err := ledger.MarkSent(ctx, "scope-1", "rule-old", models.SeverityCritical, "", old)
	require.NoError(t, err)
	_, err = ledger.MarkSent(ctx, "scope-1", "rule-new", models.SeverityCritical, "", time.Now())
	require.NoError(t, err)

	deleted, err := ledger.Housekeeping(ctx, 90)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	// Zero days disables the sweep.
	deleted, err = ledger.Housekeeping(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}
