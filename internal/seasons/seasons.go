// Package seasons fills the TotalEpisodes and Seasons columns of CastInfo from the IMDb
// full credits pages of each show.
package seasons

import (
	"context"
	"fmt"
	"realitease/internal/components/chrono"
	"realitease/internal/components/telemetry"
	"realitease/internal/failures"
	"realitease/internal/sheets"
	"realitease/internal/store"
	"realitease/internal/worker"
	"time"
)

const (
	report_job_load  = "job.load"
	report_job_flush = "job.flush"
)

type Options struct {
	BatchSize     int
	FlushInterval time.Duration
	// Limit is the maximum amount of rows processed, 0 means all of them.
	Limit int
	Pool  worker.Options
}

type Job struct {
	values  sheets.Values
	newPage worker.PageFactory
	tel     telemetry.API
	time    chrono.TimeAPI
	cron    chrono.CronAPI
}

func NewJob(
	values sheets.Values,
	newPage worker.PageFactory,
	tel telemetry.API,
	timeAPI chrono.TimeAPI,
	cron chrono.CronAPI,
) Job {
	return Job{
		values:  values,
		newPage: newPage,
		tel:     telemetry.NewScopedAPI("seasons", tel),
		time:    timeAPI,
		cron:    cron,
	}
}

// limitRows keeps the first n rows, n <= 0 keeps everything.
func limitRows(rows []sheets.CastInfoRow, n int) []sheets.CastInfoRow {
	if n <= 0 || n >= len(rows) {
		return rows
	}
	return rows[:n]
}

// Run processes every CastInfo row that is missing its episode count or seasons. Pending
// writes and crew deletions are flushed before returning, even when ctx was cancelled.
func (j Job) Run(ctx context.Context, opts Options, failed *failures.Log) (store.Counts, error) {
	values, err := j.values.Get(ctx, sheets.SheetCastInfo)
	if err != nil {
		j.tel.ReportBroken(report_job_load, err)
		return store.Counts{}, fmt.Errorf("load %s: %w", sheets.SheetCastInfo, err)
	}
	rows, loaded := sheets.LoadCastInfo(values)
	rows = limitRows(rows, opts.Limit)
	groups := sheets.GroupByShow(rows)
	j.tel.ReportDebug(fmt.Sprintf(
		"%d rows to process across %d shows (%d already filled, %d invalid)",
		len(rows), len(groups), loaded.SkippedFilled, loaded.SkippedInvalid,
	))

	writer := sheets.NewBatchWriter(j.values, sheets.WriterOptions{
		BatchSize:     opts.BatchSize,
		FlushInterval: opts.FlushInterval,
		OnFailed: func(u sheets.Update, reason string) {
			failed.Add(failures.Entry{
				Row:    u.Row,
				Name:   u.Label,
				Reason: "Sheet write failed: " + reason,
			})
		},
	}, j.tel, j.time)
	stopFlush, err := writer.Start(ctx, j.cron)
	if err != nil {
		return store.Counts{}, err
	}

	pool := worker.New(opts.Pool, j.newPage, writer, failed, j.tel, j.time, j.cron)
	stats := pool.Run(ctx, groups)
	stopFlush()

	counts := store.Counts{
		Processed: stats.Processed,
		Updated:   stats.Updated,
		Skipped:   loaded.SkippedFilled,
		Failed:    stats.Failed,
	}
	if err := writer.Close(context.WithoutCancel(ctx)); err != nil {
		j.tel.ReportBroken(report_job_flush, err)
		return counts, fmt.Errorf("final flush: %w", err)
	}

	ws := writer.Stats()
	counts.Failed += ws.Failed
	counts.Updated -= ws.Failed
	j.tel.ReportDebug(fmt.Sprintf(
		"wrote %d updates (%d cells) in %d batches, %d fallbacks, deleted %d crew rows",
		ws.Updates, ws.Cells, ws.Batches, ws.Fallbacks, ws.Deletions,
	))
	return counts, nil
}
