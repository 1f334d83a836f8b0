package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func Test_RunHistory(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)

	defer store.Close()

	ctx := context.Background()

	run := &Run{
		ID:        uuid.New().String(),
		FileName:  "listings.csv",
		Status:    RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}

	require.NoError(t, store.CreateRun(ctx, run))

	run.Status = RunStatusDone
	run.TotalRows = 10
	run.ValidRows = 8
	run.Successful = 7
	run.Failed = 1

	require.NoError(t, store.FinishRun(ctx, run))

	runs, err := store.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, run.ID, runs[0].ID)
	require.Equal(t, RunStatusDone, runs[0].Status)
	require.Equal(t, 8, runs[0].ValidRows)
	require.NotNil(t, runs[0].FinishedAt)
}
