// Package worker runs the season extraction over many shows with a pool of browser
// workers, each owning its own page.
package worker

import (
	"context"
	"errors"
	"fmt"
	"realitease/internal/assert"
	"realitease/internal/components/chrono"
	"realitease/internal/components/telemetry"
	"realitease/internal/failures"
	"realitease/internal/scrapers/imdb"
	"realitease/internal/sheets"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("realitease.internal.worker")

const (
	report_pool_page      = "pool.page"
	report_pool_member    = "pool.member"
	report_pool_write     = "pool.write"
	report_pool_watchdog  = "pool.watchdog"
	report_pool_heartbeat = "pool.heartbeat"
	report_pool_processed = "pool.processed"
)

const reasonBrowserStart = "Failed to start browser: %v"

// PageFactory creates the page owned by a worker, workers are numbered from 1.
type PageFactory func(ctx context.Context, workerID int) (imdb.Page, error)

// Options configure a Pool, zero values take the defaults.
type Options struct {
	// Workers is the maximum amount of concurrent browsers (8).
	Workers int
	// MemberTimeout bounds the processing of one cast member (30s).
	MemberTimeout time.Duration
	// ResetGrace is how long a timed out member may take to unwind before the page is
	// reset anyway (5s).
	ResetGrace time.Duration
	// MemberDelay and ShowDelay are the pauses between two members (100ms) and two
	// shows (300ms) of a worker, negative disables them.
	MemberDelay time.Duration
	ShowDelay   time.Duration
	// FlushEvery is the amount of members a worker processes between two flush checks (10).
	FlushEvery int
	// Heartbeat is the cron spec of the progress log ("@every 30s").
	Heartbeat string
}

func pause(d, fallback time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if d == 0 {
		return fallback
	}
	return d
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 8
	}
	if o.MemberTimeout <= 0 {
		o.MemberTimeout = 30 * time.Second
	}
	if o.ResetGrace <= 0 {
		o.ResetGrace = 5 * time.Second
	}
	o.MemberDelay = pause(o.MemberDelay, 100*time.Millisecond)
	o.ShowDelay = pause(o.ShowDelay, 300*time.Millisecond)
	if o.FlushEvery <= 0 {
		o.FlushEvery = 10
	}
	if o.Heartbeat == "" {
		o.Heartbeat = "@every 30s"
	}
	return o
}

// Heartbeat is the last activity of a worker.
type Heartbeat struct {
	Worker int
	Show   string
	Member string
	At     time.Time
	Done   bool
}

// Stats are the counters of a pool run.
type Stats struct {
	Shows     int
	Processed int
	Updated   int
	Crew      int
	Failed    int
}

// Pool processes show groups with a fixed set of workers, worker i takes shows i, i+n,
// i+2n and so on.
type Pool struct {
	opts    Options
	newPage PageFactory
	writer  *sheets.BatchWriter
	failed  *failures.Log
	tel     telemetry.API
	time    chrono.TimeAPI
	cron    chrono.CronAPI
	sleep   func(ctx context.Context, d time.Duration) error

	mutex      sync.Mutex
	heartbeats map[int]Heartbeat
	stats      Stats
}

func New(
	opts Options,
	newPage PageFactory,
	writer *sheets.BatchWriter,
	failed *failures.Log,
	tel telemetry.API,
	timeAPI chrono.TimeAPI,
	cron chrono.CronAPI,
) *Pool {
	assert.NotNil("page factory", newPage)
	assert.NotNil("writer", writer)
	assert.NotNil("failed log", failed)
	return &Pool{
		opts:       opts.withDefaults(),
		newPage:    newPage,
		writer:     writer,
		failed:     failed,
		tel:        telemetry.NewScopedAPI("worker", tel),
		time:       timeAPI,
		cron:       cron,
		sleep:      sleepContext,
		heartbeats: map[int]Heartbeat{},
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

// Partition deals groups round-robin into at most n non-empty partitions.
func Partition(groups []sheets.ShowGroup, n int) [][]sheets.ShowGroup {
	n = min(n, len(groups))
	if n <= 0 {
		return nil
	}
	out := make([][]sheets.ShowGroup, n)
	for i, g := range groups {
		out[i%n] = append(out[i%n], g)
	}
	return out
}

func (p *Pool) Stats() Stats {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.stats
}

// Heartbeats returns the last activity of every worker ordered by worker id.
func (p *Pool) Heartbeats() []Heartbeat {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	out := make([]Heartbeat, 0, len(p.heartbeats))
	for _, hb := range p.heartbeats {
		out = append(out, hb)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Worker < out[j].Worker })
	return out
}

func (p *Pool) beat(worker int, show, member string, done bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.heartbeats[worker] = Heartbeat{
		Worker: worker,
		Show:   show,
		Member: member,
		At:     p.time.Now(),
		Done:   done,
	}
}

func (p *Pool) logHeartbeats() {
	now := p.time.Now()
	stats := p.Stats()
	p.tel.ReportCount(report_pool_processed, int64(stats.Processed))
	for _, hb := range p.Heartbeats() {
		if hb.Done {
			continue
		}
		p.tel.ReportDebug(fmt.Sprintf(
			"worker %d: %s / %s (%s ago)",
			hb.Worker, hb.Show, hb.Member, now.Sub(hb.At).Round(time.Second),
		))
	}
}

func (p *Pool) fail(worker int, show sheets.ShowGroup, member sheets.CastInfoRow, reason string) {
	p.failed.Add(failures.Entry{
		Row:        member.Row,
		Name:       member.CastName,
		CastIMDbID: member.CastIMDbID,
		Show:       show.ShowName,
		ShowIMDbID: show.ShowIMDbID,
		Reason:     reason,
		Worker:     worker,
	})
	p.mutex.Lock()
	p.stats.Processed++
	p.stats.Failed++
	p.mutex.Unlock()
	p.tel.ReportWarning(report_pool_member, reason, member.CastName, show.ShowName)
}

func (p *Pool) failAll(worker int, shows []sheets.ShowGroup, reason string) {
	for _, show := range shows {
		for _, member := range show.Members {
			p.fail(worker, show, member, reason)
		}
	}
}

// Run processes every group and returns when all workers are done or ctx is cancelled.
// Buffered writes are left to the caller to flush.
func (p *Pool) Run(ctx context.Context, groups []sheets.ShowGroup) Stats {
	if p.cron != nil {
		stop, err := p.cron.Cron(p.opts.Heartbeat, p.logHeartbeats)
		if err != nil {
			p.tel.ReportBroken(report_pool_heartbeat, err)
		} else {
			defer stop()
		}
	}

	var wg sync.WaitGroup
	for i, shows := range Partition(groups, p.opts.Workers) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.runWorker(ctx, i+1, shows)
		}()
	}
	wg.Wait()

	return p.Stats()
}

func (p *Pool) runWorker(ctx context.Context, id int, shows []sheets.ShowGroup) {
	defer p.beat(id, "", "", true)

	page, err := p.newPage(ctx, id)
	if err != nil {
		p.tel.ReportBroken(report_pool_page, err, id)
		p.failAll(id, shows, fmt.Sprintf(reasonBrowserStart, err))
		return
	}
	defer func() {
		if err := page.Close(); err != nil {
			p.tel.ReportWarning(report_pool_page, err, id)
		}
	}()

	processed := 0
	for i, show := range shows {
		if i > 0 && p.sleep(ctx, p.opts.ShowDelay) != nil {
			return
		}
		if ctx.Err() != nil {
			return
		}
		processed = p.runShow(ctx, id, page, show, processed)
	}
}

func (p *Pool) runShow(ctx context.Context, id int, page imdb.Page, show sheets.ShowGroup, processed int) int {
	ctx, span := tracer.Start(ctx, "show")
	defer span.End()
	span.SetAttributes(
		attribute.Int("worker", id),
		attribute.String("show", show.ShowName),
		attribute.Int("members", len(show.Members)),
	)

	p.beat(id, show.ShowName, "", false)
	p.mutex.Lock()
	p.stats.Shows++
	p.mutex.Unlock()

	if err := page.Open(ctx, show.ShowIMDbID); err != nil {
		if ctx.Err() != nil {
			return processed
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.tel.ReportWarning(report_pool_page, err, show.ShowName, show.ShowIMDbID)
		for _, member := range show.Members {
			p.fail(id, show, member, imdb.Reason(err))
		}
		return processed
	}

	for i, member := range show.Members {
		if i > 0 && p.sleep(ctx, p.opts.MemberDelay) != nil {
			return processed
		}
		if ctx.Err() != nil {
			return processed
		}
		p.processMember(ctx, id, page, show, member)
		processed++
		if processed%p.opts.FlushEvery == 0 {
			if err := p.writer.Flush(ctx, false); err != nil && ctx.Err() == nil {
				p.tel.ReportBroken(report_pool_write, err)
			}
		}
	}
	return processed
}

type creditsResult struct {
	credits imdb.Credits
	err     error
}

func (p *Pool) processMember(ctx context.Context, id int, page imdb.Page, show sheets.ShowGroup, row sheets.CastInfoRow) {
	p.beat(id, show.ShowName, row.CastName, false)
	member := imdb.Member{Name: row.CastName, IMDbID: row.CastIMDbID}

	if section, ok := page.Crew(member); ok {
		p.tel.ReportDebug(fmt.Sprintf("%s is listed under %s on %s, removing row %d", row.CastName, section, show.ShowName, row.Row))
		p.writer.AddDeletion(sheets.SheetCastInfo, row.Row)
		p.mutex.Lock()
		p.stats.Processed++
		p.stats.Crew++
		p.mutex.Unlock()
		return
	}

	memberCtx, cancel := context.WithTimeout(ctx, p.opts.MemberTimeout)
	defer cancel()

	done := make(chan creditsResult, 1)
	go func() {
		credits, err := page.Credits(memberCtx, member)
		done <- creditsResult{credits: credits, err: err}
	}()

	var res creditsResult
	select {
	case res = <-done:
	case <-memberCtx.Done():
		if ctx.Err() != nil {
			<-done
			return
		}
		p.watchdog(ctx, id, page, show, row, done)
		return
	}

	if res.err != nil {
		if ctx.Err() != nil {
			return
		}
		p.fail(id, show, row, imdb.Reason(res.err))
		if errors.Is(res.err, context.DeadlineExceeded) {
			page.Reset(ctx)
		}
		return
	}

	err := p.writer.Add(ctx, sheets.Update{
		Sheet: sheets.SheetCastInfo,
		Row:   row.Row,
		Label: row.CastName,
		Cells: []sheets.Cell{
			{Column: sheets.CastInfoTotalEpisodes, Value: res.credits.Episodes},
			{Column: sheets.CastInfoSeasons, Value: imdb.FormatSeasons(res.credits.Seasons)},
		},
	})
	if err != nil && ctx.Err() == nil {
		p.tel.ReportBroken(report_pool_write, err, row.CastName)
	}
	p.mutex.Lock()
	p.stats.Processed++
	p.stats.Updated++
	p.mutex.Unlock()
}

// watchdog records a member whose credits did not come back within the member timeout
// and brings the page back to a usable state.
func (p *Pool) watchdog(ctx context.Context, id int, page imdb.Page, show sheets.ShowGroup, row sheets.CastInfoRow, done <-chan creditsResult) {
	p.fail(id, show, row, imdb.TimeoutReason(p.opts.MemberTimeout))

	grace := time.NewTimer(p.opts.ResetGrace)
	defer grace.Stop()
	select {
	case <-done:
	case <-grace.C:
		p.tel.ReportWarning(report_pool_watchdog, "page did not unwind", id, row.CastName)
	case <-ctx.Done():
		return
	}
	page.Reset(ctx)
}
