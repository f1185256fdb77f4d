package runs

import (
	"context"
	"errors"
	"os"
	"realitease/internal/components/chrono"
	"realitease/internal/components/telemetry"
	"realitease/internal/failures"
	"realitease/internal/notify"
	"realitease/internal/store"
	"realitease/lib/testutil"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, clock chrono.TimeAPI) store.Store {
	t.Helper()
	return store.New(testutil.SetupDB(t, store.Schema), clock)
}

func TestStatus(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	testCases := []struct {
		ctx    context.Context
		err    error
		expect string
	}{
		{context.Background(), nil, store.StatusDone},
		{context.Background(), errors.New("load CastInfo: 403"), store.StatusFailed},
		{context.Background(), context.Canceled, store.StatusInterrupted},
		{cancelled, nil, store.StatusInterrupted},
		{cancelled, errors.New("final flush: 429"), store.StatusInterrupted},
	}
	for _, test := range testCases {
		require.Equal(t, test.expect, Status(test.ctx, test.err), test.err)
	}
}

func TestRunnerRun(t *testing.T) {
	clock := chrono.NewFakeTime(time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC))
	history := newStore(t, clock)
	dir := t.TempDir()

	var sent []notify.Summary
	runner := Runner{
		History:      history,
		FailedLogDir: dir,
		Time:         clock,
		Tel:          &telemetry.Recorder{},
		Notify: func(ctx context.Context, summary notify.Summary) error {
			require.NoError(t, ctx.Err())
			sent = append(sent, summary)
			return nil
		},
	}

	summary, err := runner.Run(context.Background(), "seasons", func(ctx context.Context, failed *failures.Log) (store.Counts, error) {
		failed.Add(failures.Entry{Row: 3, Name: "Joe Gorga", Reason: "Processing timeout"})
		failed.Add(failures.Entry{Row: 7, Name: "Some One", Reason: "Processing timeout"})
		failed.Add(failures.Entry{Row: 9, Name: "Other", Reason: "Episodes button not found"})
		clock.Advance(10 * time.Minute)
		return store.Counts{Processed: 10, Updated: 7, Skipped: 4, Failed: 3}, nil
	})
	require.NoError(t, err)
	require.Equal(t, store.StatusDone, summary.Status)
	require.Equal(t, 10*time.Minute, summary.Finished.Sub(summary.Started))
	require.Equal(t, map[string]int{"Processing timeout": 2, "Episodes button not found": 1}, summary.Reasons)
	require.FileExists(t, summary.FailedLog)
	require.Len(t, sent, 1)
	require.Equal(t, summary, sent[0])

	entries, err := failures.Load(summary.FailedLog)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	runs, err := history.Runs(context.Background(), "seasons", 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, summary.RunID, runs[0].ID)
	require.Equal(t, store.StatusDone, runs[0].Status)
	require.Equal(t, store.Counts{Processed: 10, Updated: 7, Skipped: 4, Failed: 3}, runs[0].Counts)

	recorded, err := history.Failures(context.Background(), summary.RunID)
	require.NoError(t, err)
	require.Len(t, recorded, 3)
}

func TestRunnerInterrupted(t *testing.T) {
	clock := chrono.NewFakeTime(time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC))
	history := newStore(t, clock)
	tel := &telemetry.Recorder{}
	runner := Runner{History: history, FailedLogDir: t.TempDir(), Time: clock, Tel: tel}

	ctx, cancel := context.WithCancel(context.Background())
	summary, err := runner.Run(ctx, "bio", func(ctx context.Context, failed *failures.Log) (store.Counts, error) {
		cancel()
		return store.Counts{Processed: 2, Updated: 2}, nil
	})
	require.NoError(t, err)
	require.Equal(t, store.StatusInterrupted, summary.Status)
	// nothing failed so no log is written
	require.Empty(t, summary.FailedLog)
	require.Empty(t, tel.Reports("broken"))

	runs, err := history.Runs(context.Background(), "bio", 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, store.StatusInterrupted, runs[0].Status)
}

func TestRunnerFailedWithoutHistory(t *testing.T) {
	clock := chrono.NewFakeTime(time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC))
	tel := &telemetry.Recorder{}
	dir := t.TempDir()
	runner := Runner{
		FailedLogDir: dir,
		Time:         clock,
		Tel:          tel,
		Notify: func(context.Context, notify.Summary) error {
			return errors.New("smtp: connection refused")
		},
	}

	jobErr := errors.New("load ShowInfo: 404")
	summary, err := runner.Run(context.Background(), "castinfo-build", func(ctx context.Context, failed *failures.Log) (store.Counts, error) {
		return store.Counts{}, jobErr
	})
	require.ErrorIs(t, err, jobErr)
	require.Equal(t, store.StatusFailed, summary.Status)
	require.Empty(t, summary.RunID)
	require.Len(t, tel.Reports("broken"), 1)
	require.Len(t, tel.Reports("warning"), 1)

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, files)
}

func TestSMTPNotifier(t *testing.T) {
	require.Nil(t, SMTPNotifier(notify.SmtpConfig{}))
	require.NotNil(t, SMTPNotifier(notify.SmtpConfig{
		Server:  "smtp.example.com",
		Port:    587,
		Address: "bot@example.com",
		To:      []string{"me@example.com"},
	}))
}
