package ingest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestJournal(t *testing.T) *SQLiteJournal {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	journal, err := NewSQLiteJournal(logger, filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { journal.Close() })
	return journal
}

func TestJournalRecordAndList(t *testing.T) {
	journal := newTestJournal(t)
	ctx := context.Background()

	entries := []*JournalEntry{
		{AlertID: "a1", Source: "Alert Ready", Outcome: OutcomeCreated, IncidentID: "inc-1"},
		{AlertID: "a2", Source: "Alert Ready", Outcome: OutcomeDuplicate, IncidentID: "inc-1"},
		{AlertID: "a3", Source: "BC Emergency", Outcome: OutcomeFailed, Error: "insert failed"},
	}
	for _, entry := range entries {
		require.NoError(t, journal.Record(ctx, entry))
		assert.NotZero(t, entry.ID)
		assert.False(t, entry.ProcessedAt.IsZero())
	}

	listed, err := journal.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	// Newest first
	assert.Equal(t, "a3", listed[0].AlertID)
	assert.Equal(t, "insert failed", listed[0].Error)
}

func TestJournalCountByOutcome(t *testing.T) {
	journal := newTestJournal(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, journal.Record(ctx, &JournalEntry{AlertID: "a", Source: "s", Outcome: OutcomeCreated}))
	}
	require.NoError(t, journal.Record(ctx, &JournalEntry{AlertID: "b", Source: "s", Outcome: OutcomeSkipped}))

	created, err := journal.CountByOutcome(ctx, OutcomeCreated)
	require.NoError(t, err)
	assert.Equal(t, 3, created)

	skipped, err := journal.CountByOutcome(ctx, OutcomeSkipped)
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
}

func TestJournalDeleteBefore(t *testing.T) {
	journal := newTestJournal(t)
	ctx := context.Background()

	old := &JournalEntry{
		AlertID:     "old",
		Source:      "s",
		Outcome:     OutcomeCreated,
		ProcessedAt: time.Now().UTC().AddDate(0, 0, -40),
	}
	require.NoError(t, journal.Record(ctx, old))
	require.NoError(t, journal.Record(ctx, &JournalEntry{AlertID: "fresh", Source: "s", Outcome: OutcomeCreated}))

	require.NoError(t, journal.DeleteBefore(ctx, time.Now().UTC().AddDate(0, 0, -30)))

	listed, err := journal.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "fresh", listed[0].AlertID)
}
