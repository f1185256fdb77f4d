// Package store records the history of job runs and the members each run failed on.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"realitease/internal/components/chrono"
	"realitease/internal/failures"
	"time"

	"github.com/mazen160/go-random"
)

//go:embed schema.sql
var Schema string

// Counts are the totals of a run.
type Counts struct {
	Processed int
	Updated   int
	Skipped   int
	Failed    int
}

// Run is a recorded run.
type Run struct {
	ID         string
	Job        string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     string
	Counts
}

const (
	StatusRunning     = "running"
	StatusDone        = "done"
	StatusInterrupted = "interrupted"
	StatusFailed      = "failed"
)

type Store struct {
	db   *sql.DB
	time chrono.TimeAPI
}

// New wraps a database that already has Schema applied.
func New(db *sql.DB, timeAPI chrono.TimeAPI) Store {
	return Store{db: db, time: timeAPI}
}

// StartRun records the start of a job run and returns its id.
func (s Store) StartRun(ctx context.Context, job string) (string, error) {
	id, err := random.String(8)
	if err != nil {
		return "", fmt.Errorf("generate run id: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`insert into runs (id, job, started_at, status) values (?, ?, ?, ?)`,
		id, job, s.time.Now().Unix(), StatusRunning,
	)
	if err != nil {
		return "", fmt.Errorf("start run: %w", err)
	}
	return id, nil
}

// FinishRun stores the final counts and failures of a run.
func (s Store) FinishRun(ctx context.Context, id, status string, counts Counts, failed []failures.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(
		ctx,
		`update runs set finished_at = ?, status = ?, processed = ?, updated = ?, skipped = ?, failed = ?
		where id = ?`,
		s.time.Now().Unix(), status, counts.Processed, counts.Updated, counts.Skipped, counts.Failed, id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run: unknown run %q", id)
	}

	for _, f := range failed {
		_, err := tx.ExecContext(
			ctx,
			`insert into run_failures
			(run_id, sheet_row, cast_name, cast_imdb_id, show_name, show_imdb_id, reason, worker, at)
			values (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, f.Row, f.Name, f.CastIMDbID, f.Show, f.ShowIMDbID, f.Reason, f.Worker, f.At.Unix(),
		)
		if err != nil {
			return fmt.Errorf("record failure: %w", err)
		}
	}
	return tx.Commit()
}

// Runs returns the most recent runs first, optionally filtered by job.
func (s Store) Runs(ctx context.Context, job string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(
		ctx,
		`select id, job, started_at, coalesce(finished_at, 0), status, processed, updated, skipped, failed
		from runs
		where ? = '' or job = ?
		order by started_at desc, rowid desc
		limit ?`,
		job, job, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished int64
		err := rows.Scan(
			&r.ID, &r.Job, &started, &finished, &r.Status,
			&r.Processed, &r.Updated, &r.Skipped, &r.Failed,
		)
		if err != nil {
			return nil, err
		}
		r.StartedAt = time.Unix(started, 0)
		if finished > 0 {
			r.FinishedAt = time.Unix(finished, 0)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Failures returns the failures recorded for a run.
func (s Store) Failures(ctx context.Context, runID string) ([]failures.Entry, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`select sheet_row, cast_name, cast_imdb_id, show_name, show_imdb_id, reason, worker, at
		from run_failures where run_id = ? order by rowid`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []failures.Entry
	for rows.Next() {
		var e failures.Entry
		var at int64
		err := rows.Scan(&e.Row, &e.Name, &e.CastIMDbID, &e.Show, &e.ShowIMDbID, &e.Reason, &e.Worker, &at)
		if err != nil {
			return nil, err
		}
		e.At = time.Unix(at, 0)
		out = append(out, e)
	}
	return out, rows.Err()
}
