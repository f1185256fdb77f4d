package sheets

import (
	"context"
	"fmt"
	"realitease/internal/assert"
	"realitease/internal/components/chrono"
	"realitease/internal/components/telemetry"
	"sort"
	"sync"
	"time"
)

const (
	report_writer_flush     = "writer.flush"
	report_writer_fallback  = "writer.fallback"
	report_writer_deletions = "writer.deletions"
	report_writer_append    = "writer.append"
)

// Cell is a single value to write into a column of the update's row.
type Cell struct {
	Column string
	Value  any
}

// Update is a pending write of some cells of one row.
type Update struct {
	Sheet string
	Row   int
	Cells []Cell
	// Label names the row in logs and in the failed log, usually the cast member's name.
	Label string
}

// ranges groups the update's cells into contiguous column ranges.
func (u Update) ranges() []ValueRange {
	cells := append([]Cell(nil), u.Cells...)
	sort.SliceStable(cells, func(i, j int) bool {
		return ColumnIndex(cells[i].Column) < ColumnIndex(cells[j].Column)
	})

	var out []ValueRange
	for i := 0; i < len(cells); {
		j := i + 1
		for j < len(cells) && ColumnIndex(cells[j].Column) == ColumnIndex(cells[j-1].Column)+1 {
			j++
		}
		values := make([]any, 0, j-i)
		for _, c := range cells[i:j] {
			values = append(values, c.Value)
		}
		out = append(out, ValueRange{
			Range:  RowRange(u.Sheet, cells[i].Column, cells[j-1].Column, u.Row),
			Values: [][]any{values},
		})
		i = j
	}
	return out
}

// WriterOptions configure a BatchWriter, zero values take the defaults.
type WriterOptions struct {
	// BatchSize is the amount of buffered updates that triggers a flush (50).
	BatchSize int
	// FlushInterval is the time after which a non-empty buffer is flushed (60s).
	FlushInterval time.Duration
	// MaxRetries is the amount of rate-limit retries of a batch (3).
	MaxRetries int
	// BackoffStart is the first rate-limit backoff (60s), it doubles up to BackoffMax (300s).
	BackoffStart time.Duration
	BackoffMax   time.Duration
	// CellDelay is the pause between single cell writes in the fallback path (200ms).
	CellDelay time.Duration
	// AppendChunk is the amount of rows per append request (50).
	AppendChunk int
	// AppendPause is the pause between append requests (30s), negative disables it.
	AppendPause time.Duration
	// OnFailed is called for every update that could not be written.
	OnFailed func(u Update, reason string)
}

func (o WriterOptions) withDefaults() WriterOptions {
	if o.BatchSize <= 0 {
		o.BatchSize = 50
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = 60 * time.Second
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.BackoffStart <= 0 {
		o.BackoffStart = 60 * time.Second
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = 300 * time.Second
	}
	if o.CellDelay <= 0 {
		o.CellDelay = 200 * time.Millisecond
	}
	if o.AppendChunk <= 0 {
		o.AppendChunk = 50
	}
	if o.AppendPause < 0 {
		o.AppendPause = 0
	} else if o.AppendPause == 0 {
		o.AppendPause = 30 * time.Second
	}
	return o
}

// WriterStats are the counters of a BatchWriter.
type WriterStats struct {
	Updates   int
	Cells     int
	Batches   int
	Fallbacks int
	Deletions int
	Appended  int
	Failed    int
	Pending   int
}

// BatchWriter buffers row updates and writes them to the spreadsheet in batches.
type BatchWriter struct {
	values  Values
	opts    WriterOptions
	tel     telemetry.API
	time    chrono.TimeAPI
	sleep   func(ctx context.Context, d time.Duration) error
	flushMu sync.Mutex

	mutex     sync.Mutex
	buffer    []Update
	deletions map[string][]int
	lastFlush time.Time
	stats     WriterStats
}

func NewBatchWriter(values Values, opts WriterOptions, tel telemetry.API, timeAPI chrono.TimeAPI) *BatchWriter {
	assert.NotNil("values", values)
	assert.NotNil("telemetry", tel)
	assert.NotNil("time", timeAPI)
	return &BatchWriter{
		values:    values,
		opts:      opts.withDefaults(),
		tel:       telemetry.NewScopedAPI("sheets", tel),
		time:      timeAPI,
		sleep:     sleepContext,
		deletions: map[string][]int{},
		lastFlush: timeAPI.Now(),
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Start registers the periodic time-based flush on cron, the returned function stops it.
func (w *BatchWriter) Start(ctx context.Context, cron chrono.CronAPI) (func(), error) {
	tick := w.opts.FlushInterval / 4
	if tick < time.Second {
		tick = time.Second
	}
	return cron.Cron(fmt.Sprintf("@every %s", tick), func() {
		if err := w.Flush(ctx, false); err != nil {
			w.tel.ReportBroken(report_writer_flush, err)
		}
	})
}

// Add buffers an update, the buffer is flushed as soon as it holds BatchSize updates.
func (w *BatchWriter) Add(ctx context.Context, u Update) error {
	if len(u.Cells) == 0 {
		return nil
	}
	w.mutex.Lock()
	w.buffer = append(w.buffer, u)
	full := len(w.buffer) >= w.opts.BatchSize
	w.mutex.Unlock()

	if !full {
		return nil
	}
	return w.Flush(ctx, true)
}

// Pending returns the amount of buffered updates.
func (w *BatchWriter) Pending() int {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return len(w.buffer)
}

// Stats returns a snapshot of the writer's counters.
func (w *BatchWriter) Stats() WriterStats {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	stats := w.stats
	stats.Pending = len(w.buffer)
	return stats
}

func (w *BatchWriter) due() bool {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if len(w.buffer) == 0 {
		return false
	}
	return len(w.buffer) >= w.opts.BatchSize ||
		w.time.Now().Sub(w.lastFlush) >= w.opts.FlushInterval
}

func (w *BatchWriter) backoff(attempt int) time.Duration {
	d := w.opts.BackoffStart
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= w.opts.BackoffMax {
			return w.opts.BackoffMax
		}
	}
	return d
}

// Flush writes the buffered updates. Without force nothing happens unless the buffer is
// full or FlushInterval has passed since the last flush.
//
// Rate-limited batches are retried with exponential backoff, other failures fall back to
// writing cell by cell. Updates leave the buffer only once they were written or gave up
// on, a context cancellation during a backoff keeps them buffered.
func (w *BatchWriter) Flush(ctx context.Context, force bool) error {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	if !force && !w.due() {
		return nil
	}

	w.mutex.Lock()
	batch := append([]Update(nil), w.buffer...)
	w.mutex.Unlock()
	if len(batch) == 0 {
		return nil
	}

	var data []ValueRange
	cells := 0
	for _, u := range batch {
		data = append(data, u.ranges()...)
		cells += len(u.Cells)
	}

	var failed []Update
	var reason string
	for attempt := 0; ; attempt++ {
		err := w.values.BatchUpdate(ctx, data)
		if err == nil {
			w.tel.ReportDebug(fmt.Sprintf("flushed %d updates (%d cells)", len(batch), cells))
			break
		}
		if IsRateLimited(err) {
			if attempt >= w.opts.MaxRetries {
				w.tel.ReportBroken(report_writer_flush, fmt.Errorf("giving up after %d retries: %w", attempt, err))
				failed = batch
				reason = fmt.Sprintf("rate limited after %d retries", attempt)
				break
			}
			delay := w.backoff(attempt)
			w.tel.ReportWarning(report_writer_flush, "rate limited, backing off", delay.String())
			if err := w.sleep(ctx, delay); err != nil {
				return fmt.Errorf("flush interrupted during backoff: %w", err)
			}
			continue
		}

		w.tel.ReportWarning(report_writer_fallback, err, len(batch))
		failed = w.fallback(ctx, batch)
		reason = fmt.Sprintf("batch update failed: %v", err)
		w.mutex.Lock()
		w.stats.Fallbacks++
		w.mutex.Unlock()
		break
	}

	w.mutex.Lock()
	w.buffer = w.buffer[len(batch):]
	w.lastFlush = w.time.Now()
	w.stats.Batches++
	w.stats.Updates += len(batch) - len(failed)
	for _, u := range batch {
		w.stats.Cells += len(u.Cells)
	}
	for _, u := range failed {
		w.stats.Cells -= len(u.Cells)
	}
	w.stats.Failed += len(failed)
	w.mutex.Unlock()

	if w.opts.OnFailed != nil {
		for _, u := range failed {
			w.opts.OnFailed(u, reason)
		}
	}
	return nil
}

// fallback writes every cell of the batch on its own and returns the updates that had
// at least one cell fail.
func (w *BatchWriter) fallback(ctx context.Context, batch []Update) []Update {
	var failed []Update
	for _, u := range batch {
		ok := true
		for _, c := range u.Cells {
			err := w.values.Update(ctx, CellRange(u.Sheet, c.Column, u.Row), [][]any{{c.Value}})
			if err != nil {
				w.tel.ReportBroken(report_writer_fallback, err, u.Label)
				ok = false
			}
			if err := w.sleep(ctx, w.opts.CellDelay); err != nil {
				ok = false
			}
		}
		if !ok {
			failed = append(failed, u)
		}
	}
	return failed
}

// AddDeletion queues a row for deletion at the next FlushDeletions.
func (w *BatchWriter) AddDeletion(sheet string, row int) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	for _, r := range w.deletions[sheet] {
		if r == row {
			return
		}
	}
	w.deletions[sheet] = append(w.deletions[sheet], row)
}

// PendingDeletions returns the queued rows of a sheet in the order they will be deleted.
func (w *BatchWriter) PendingDeletions(sheet string) []int {
	w.mutex.Lock()
	rows := append([]int(nil), w.deletions[sheet]...)
	w.mutex.Unlock()
	sort.Sort(sort.Reverse(sort.IntSlice(rows)))
	return rows
}

// FlushDeletions deletes every queued row, bottom-up so row numbers stay valid.
// Pending updates are flushed first since they address rows by number.
func (w *BatchWriter) FlushDeletions(ctx context.Context) error {
	if err := w.Flush(ctx, true); err != nil {
		return err
	}

	w.mutex.Lock()
	sheets := make([]string, 0, len(w.deletions))
	for sheet := range w.deletions {
		sheets = append(sheets, sheet)
	}
	w.mutex.Unlock()
	sort.Strings(sheets)

	for _, sheet := range sheets {
		rows := w.PendingDeletions(sheet)
		if len(rows) == 0 {
			continue
		}
		if err := w.values.DeleteRows(ctx, sheet, rows); err != nil {
			w.tel.ReportBroken(report_writer_deletions, err, sheet)
			return fmt.Errorf("delete %d rows from %s: %w", len(rows), sheet, err)
		}
		w.tel.ReportDebug(fmt.Sprintf("deleted %d rows from %s", len(rows), sheet), rows)

		w.mutex.Lock()
		delete(w.deletions, sheet)
		w.stats.Deletions += len(rows)
		w.mutex.Unlock()
	}
	return nil
}

// Close flushes every pending update and deletion.
func (w *BatchWriter) Close(ctx context.Context) error {
	return w.FlushDeletions(ctx)
}

// Append appends rows to a worksheet in chunks of AppendChunk, pausing AppendPause between
// chunks. It returns the amount of rows appended before the first error.
func (w *BatchWriter) Append(ctx context.Context, sheet string, rows [][]any) (int, error) {
	written := 0
	for start := 0; start < len(rows); start += w.opts.AppendChunk {
		if start > 0 {
			if err := w.sleep(ctx, w.opts.AppendPause); err != nil {
				return written, err
			}
		}
		end := min(start+w.opts.AppendChunk, len(rows))
		if err := w.appendChunk(ctx, sheet, rows[start:end]); err != nil {
			w.tel.ReportBroken(report_writer_append, err, sheet)
			return written, err
		}
		written += end - start

		w.mutex.Lock()
		w.stats.Appended += end - start
		w.mutex.Unlock()
		w.tel.ReportDebug(fmt.Sprintf("appended %d/%d rows to %s", written, len(rows), sheet))
	}
	return written, nil
}

func (w *BatchWriter) appendChunk(ctx context.Context, sheet string, chunk [][]any) error {
	for attempt := 0; ; attempt++ {
		err := w.values.Append(ctx, sheet, chunk)
		if err == nil || !IsRateLimited(err) || attempt >= w.opts.MaxRetries {
			return err
		}
		if err := w.sleep(ctx, w.backoff(attempt)); err != nil {
			return err
		}
	}
}

// Replace clears a worksheet and writes the header followed by rows starting at A1.
func (w *BatchWriter) Replace(ctx context.Context, sheet string, header []string, rows [][]any) error {
	if err := w.values.EnsureSheet(ctx, sheet); err != nil {
		return err
	}
	if err := w.values.Clear(ctx, quoteSheet(sheet)); err != nil {
		return fmt.Errorf("clear %s: %w", sheet, err)
	}

	all := make([][]any, 0, len(rows)+1)
	headerRow := make([]any, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	all = append(all, headerRow)
	all = append(all, rows...)

	rng := SheetRange(sheet, len(header), len(all))
	if err := w.values.Update(ctx, rng, all); err != nil {
		return fmt.Errorf("write %s: %w", rng, err)
	}
	return nil
}
