package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/patch-warden/internal/core"
	"github.com/sevigo/patch-warden/internal/db"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	database, cleanup, err := db.NewDatabase(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(cleanup)
	return NewStore(database.DB)
}

func sampleReport(batchID string, started time.Time) *core.BatchReport {
	return &core.BatchReport{
		BatchID:   batchID,
		FixSetID:  "set-1",
		Policy:    core.PolicyBestEffort,
		StartedAt: started,
		Duration:  1500 * time.Millisecond,
		Outcomes: []core.FixOutcome{
			{FixID: "f1", IssueID: "i1", Path: "a.go", Status: core.StatusApplied},
			{FixID: "f2", IssueID: "i2", Path: "b.go", Status: core.StatusRejected,
				Rejection: core.RejectSyntaxBroken, Detail: "unbalanced braces"},
			{FixID: "f3", IssueID: "i3", Path: "b.go", Status: core.StatusNeedsApproval,
				Detail: "confidence 0.50 below threshold 0.80"},
		},
		Records: []core.ApplicationRecord{
			{
				Path:          "a.go",
				ContentHash:   "abc123",
				BackupPath:    "/backups/x/a.go.bak",
				AppliedFixIDs: []string{"f1"},
				AppliedAt:     started,
				Status:        core.RecordCommitted,
			},
		},
	}
}

func TestSaveAndGetReport(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	started := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, store.SaveReport(ctx, sampleReport("batch-1", started)))

	got, err := store.GetReport(ctx, "batch-1")
	require.NoError(t, err)

	assert.Equal(t, "set-1", got.FixSetID)
	assert.Equal(t, core.PolicyBestEffort, got.Policy)
	assert.Equal(t, 1500*time.Millisecond, got.Duration)

	require.Len(t, got.Outcomes, 3)
	assert.Equal(t, core.StatusApplied, got.Outcomes[0].Status)
	assert.Equal(t, core.RejectSyntaxBroken, got.Outcomes[1].Rejection)
	assert.Equal(t, "unbalanced braces", got.Outcomes[1].Detail)

	require.Len(t, got.Records, 1)
	assert.Equal(t, []string{"f1"}, got.Records[0].AppliedFixIDs)
	assert.Equal(t, core.RecordCommitted, got.Records[0].Status)
}

func TestDryRunBatchPersisted(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rep := sampleReport("batch-dry", time.Now().UTC().Truncate(time.Second))
	rep.DryRun = true
	require.NoError(t, store.SaveReport(ctx, rep))

	got, err := store.GetReport(ctx, "batch-dry")
	require.NoError(t, err)
	assert.True(t, got.DryRun)

	summaries, err := store.ListBatches(ctx, 10)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.True(t, summaries[0].DryRun)
}

func TestGetReportUnknownBatch(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetReport(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no batch found")
}

func TestListBatchesNewestFirstWithCounts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, store.SaveReport(ctx, sampleReport("old", base.Add(-time.Hour))))
	require.NoError(t, store.SaveReport(ctx, sampleReport("new", base)))

	summaries, err := store.ListBatches(ctx, 10)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, "new", summaries[0].BatchID)
	assert.Equal(t, "old", summaries[1].BatchID)
	assert.Equal(t, 1, summaries[0].Applied)
	assert.Equal(t, 1, summaries[0].Rejected)
	assert.Equal(t, 1, summaries[0].Pending)
}

func TestMarkBatchRolledBack(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveReport(ctx, sampleReport("batch-1", time.Now().UTC())))
	require.NoError(t, store.MarkBatchRolledBack(ctx, "batch-1"))

	got, err := store.GetReport(ctx, "batch-1")
	require.NoError(t, err)
	assert.True(t, got.RolledBack)
	require.Len(t, got.Records, 1)
	assert.Equal(t, core.RecordRolledBack, got.Records[0].Status)

	assert.Error(t, store.MarkBatchRolledBack(ctx, "missing"))
}

func TestDeleteBatchCascades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveReport(ctx, sampleReport("batch-1", time.Now().UTC())))
	require.NoError(t, store.DeleteBatch(ctx, "batch-1"))

	_, err := store.GetReport(ctx, "batch-1")
	assert.Error(t, err)

	assert.Error(t, store.DeleteBatch(ctx, "batch-1"))
}
