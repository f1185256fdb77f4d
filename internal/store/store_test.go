package store

import (
	"context"
	"realitease/internal/components/chrono"
	"realitease/internal/failures"
	"realitease/lib/testutil"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	sqlite := testutil.SetupDB(t, Schema)
	clock := chrono.NewFakeTime(time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC))
	store := New(sqlite, clock)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	seasonsRun, err := store.StartRun(ctx, "seasons")
	require.NoError(t, err)
	require.Len(t, seasonsRun, 8)

	clock.Advance(time.Minute)
	bioRun, err := store.StartRun(ctx, "bio")
	require.NoError(t, err)

	clock.Advance(time.Hour)
	err = store.FinishRun(ctx, seasonsRun, StatusDone, Counts{Processed: 10, Updated: 8, Skipped: 3, Failed: 2}, []failures.Entry{
		{Row: 4, Name: "Teresa Giudice", Show: "RHONJ", Reason: "Episodes button not found", Worker: 2, At: clock.Now()},
		{Row: 9, Name: "Joe Gorga", Show: "RHONJ", Reason: "Processing timeout", At: clock.Now()},
	})
	require.NoError(t, err)
	require.Error(t, store.FinishRun(ctx, "missing", StatusDone, Counts{}, nil))

	runs, err := store.Runs(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, bioRun, runs[0].ID)
	require.Equal(t, StatusRunning, runs[0].Status)
	require.True(t, runs[0].FinishedAt.IsZero())

	require.Equal(t, seasonsRun, runs[1].ID)
	require.Equal(t, StatusDone, runs[1].Status)
	require.Equal(t, Counts{Processed: 10, Updated: 8, Skipped: 3, Failed: 2}, runs[1].Counts)
	require.Equal(t, 61*time.Minute, runs[1].FinishedAt.Sub(runs[1].StartedAt))

	only, err := store.Runs(ctx, "seasons", 10)
	require.NoError(t, err)
	require.Len(t, only, 1)

	failed, err := store.Failures(ctx, seasonsRun)
	require.NoError(t, err)
	require.Len(t, failed, 2)
	require.Equal(t, "Teresa Giudice", failed[0].Name)
	require.Equal(t, 2, failed[0].Worker)
	require.Equal(t, "Processing timeout", failed[1].Reason)
	require.True(t, failed[1].At.Equal(clock.Now()))
}
