// Package runs wraps every job in the same bookkeeping: a recorded run, the failed member
// log saved to disk and the optional summary email.
package runs

import (
	"context"
	"errors"
	"fmt"
	"realitease/internal/components/chrono"
	"realitease/internal/components/telemetry"
	"realitease/internal/failures"
	"realitease/internal/notify"
	"realitease/internal/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("realitease.internal.runs")

const (
	report_runner_history = "runner.history"
	report_runner_save    = "runner.save"
	report_runner_notify  = "runner.notify"
	report_runner_failed  = "runner.failed"
)

// History records runs, store.Store implements it.
type History interface {
	StartRun(ctx context.Context, job string) (string, error)
	FinishRun(ctx context.Context, id, status string, counts store.Counts, failed []failures.Entry) error
}

// Notifier delivers the summary of a finished run.
type Notifier func(ctx context.Context, summary notify.Summary) error

// SMTPNotifier sends summaries with config, nil is returned when config is incomplete.
func SMTPNotifier(config notify.SmtpConfig) Notifier {
	if !config.Enabled() {
		return nil
	}
	return func(ctx context.Context, summary notify.Summary) error {
		return notify.Send(ctx, config, summary)
	}
}

// Job does the actual work of a run, adding the members it fails on to failed.
type Job func(ctx context.Context, failed *failures.Log) (store.Counts, error)

type Runner struct {
	// History and Notify are optional.
	History      History
	Notify       Notifier
	FailedLogDir string
	Time         chrono.TimeAPI
	Tel          telemetry.API
}

// Status derives the final status of a run from the job's error and ctx.
func Status(ctx context.Context, err error) string {
	switch {
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		return store.StatusInterrupted
	case err != nil:
		return store.StatusFailed
	}
	return store.StatusDone
}

// Reasons counts failures by reason.
func Reasons(entries []failures.Entry) map[string]int {
	out := map[string]int{}
	for _, e := range entries {
		out[e.Reason]++
	}
	return out
}

// Run runs job and records it. The bookkeeping after the job is done with ctx detached so
// an interrupted run is still recorded. The job's error is returned as is.
func (r Runner) Run(ctx context.Context, name string, job Job) (notify.Summary, error) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()
	span.SetAttributes(attribute.String("job", name))

	tel := telemetry.NewScopedAPI("runs", r.Tel)
	summary := notify.Summary{Job: name, Started: r.Time.Now()}

	if r.History != nil {
		id, err := r.History.StartRun(ctx, name)
		if err != nil {
			tel.ReportWarning(report_runner_history, err)
		}
		summary.RunID = id
	}
	span.SetAttributes(attribute.String("run_id", summary.RunID))

	failed := failures.NewLog(r.Time)
	counts, jobErr := job(ctx, failed)
	after := context.WithoutCancel(ctx)

	summary.Status = Status(ctx, jobErr)
	summary.Finished = r.Time.Now()
	summary.Processed = counts.Processed
	summary.Updated = counts.Updated
	summary.Skipped = counts.Skipped
	summary.Failed = counts.Failed
	entries := failed.Entries()
	summary.Reasons = Reasons(entries)

	if jobErr != nil && summary.Status == store.StatusFailed {
		span.RecordError(jobErr)
		span.SetStatus(codes.Error, "job failed")
		tel.ReportBroken(report_runner_failed, jobErr, name)
	}

	path, err := failed.Save(r.FailedLogDir)
	if err != nil {
		tel.ReportWarning(report_runner_save, err)
	}
	summary.FailedLog = path

	if r.History != nil && summary.RunID != "" {
		err := r.History.FinishRun(after, summary.RunID, summary.Status, counts, entries)
		if err != nil {
			tel.ReportWarning(report_runner_history, err)
		}
	}

	tel.ReportDebug(fmt.Sprintf(
		"%s %s: %d processed, %d updated, %d skipped, %d failed in %s",
		name, summary.Status, counts.Processed, counts.Updated, counts.Skipped, counts.Failed,
		summary.Finished.Sub(summary.Started),
	))

	if r.Notify != nil {
		if err := r.Notify(after, summary); err != nil {
			tel.ReportWarning(report_runner_notify, err)
		}
	}
	return summary, jobErr
}
