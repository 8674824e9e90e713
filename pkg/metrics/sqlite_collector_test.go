package metrics

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoe-assistant/zoe/pkg/db"
)

func newCollector(t *testing.T) *SQLiteCollector {
	t.Helper()
	ctx := context.Background()

	database, err := db.Open(ctx, filepath.Join(t.TempDir(), "storage.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	require.NoError(t, db.NewMigrationRunner(database).Run(ctx, Migrations()))
	return NewSQLiteCollector(database)
}

func TestRecordAndSummarize(t *testing.T) {
	ctx := context.Background()
	collector := newCollector(t)

	records := []Record{
		{UserID: "alice", Intent: "ListAdd", Tier: 0, Confidence: 0.95, LatencyMS: 12, Success: true, InputText: "add bread", Source: "intent_executor"},
		{UserID: "alice", Intent: "ListAdd", Tier: 0, Confidence: 0.90, LatencyMS: 8, Success: false, InputText: "add ???", Source: "intent_executor"},
		{UserID: "alice", Intent: "Greeting", Tier: 1, Confidence: 1.0, LatencyMS: 2, Success: true, InputText: "hello", Source: "intent_executor"},
	}
	for _, r := range records {
		require.NoError(t, collector.RecordExecution(ctx, r))
	}

	summary, err := collector.Summary(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, summary, 2)

	assert.Equal(t, "ListAdd", summary[0].Intent)
	assert.Equal(t, int64(2), summary[0].Executions)
	assert.Equal(t, int64(1), summary[0].Successes)
	assert.Equal(t, 10.0, summary[0].AvgLatencyMS)

	assert.Equal(t, "Greeting", summary[1].Intent)
}

func TestSummaryHonorsSince(t *testing.T) {
	ctx := context.Background()
	collector := newCollector(t)

	require.NoError(t, collector.RecordExecution(ctx, Record{UserID: "alice", Intent: "ListAdd", Success: true}))

	summary, err := collector.Summary(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, summary)
}
