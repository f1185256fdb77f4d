// Package castbuild builds the CastInfo and RealiteaseInfo worksheets, the first from TMDb
// aggregate credits of the ShowInfo shows and the second from ViableCast.
package castbuild

import (
	"context"
	"errors"
	"fmt"
	"realitease/internal/components/chrono"
	"realitease/internal/components/telemetry"
	"realitease/internal/failures"
	"realitease/internal/scrapers"
	"realitease/internal/scrapers/tmdb"
	"realitease/internal/sheets"
	"realitease/internal/store"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	report_builder_load   = "builder.load"
	report_builder_show   = "builder.show"
	report_builder_member = "builder.member"
	report_builder_append = "builder.append"
	report_builder_flush  = "builder.flush"
)

type Options struct {
	// StartRow is the first ShowInfo row looked at (2).
	StartRow int
	// Limit is the maximum amount of shows processed, 0 means all of them.
	Limit int
	// Overwrite replaces the Seasons of existing rows when TMDb disagrees, otherwise only
	// empty Seasons cells are filled.
	Overwrite bool
	// AppendOnly leaves existing rows untouched.
	AppendOnly bool
	// FillCounts writes TotalEpisodes and Seasons on appended rows, otherwise they are
	// left empty for the seasons job.
	FillCounts bool

	BatchSize   int
	AppendChunk int
	AppendPause time.Duration
	// ShowDelay is the pause between two shows.
	ShowDelay time.Duration
}

// Member is a cast member of a show as TMDb reports it.
type Member struct {
	TMDbID   string
	Name     string
	Episodes int
	Seasons  []int
}

// FormatSeasons joins sorted season numbers with ", ".
func FormatSeasons(seasons []int) string {
	parts := make([]string, len(seasons))
	for i, s := range seasons {
		parts[i] = strconv.Itoa(s)
	}
	return strings.Join(parts, ", ")
}

// Builder adds the TMDb cast of every ShowInfo show to CastInfo.
type Builder struct {
	values sheets.Values
	tmdb   *tmdb.Client
	tel    telemetry.API
	time   chrono.TimeAPI
	cron   chrono.CronAPI
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewBuilder(
	values sheets.Values,
	client *tmdb.Client,
	tel telemetry.API,
	timeAPI chrono.TimeAPI,
	cron chrono.CronAPI,
) Builder {
	return Builder{
		values: values,
		tmdb:   client,
		tel:    telemetry.NewScopedAPI("castbuild", tel),
		time:   timeAPI,
		cron:   cron,
		sleep:  scrapers.Sleep,
	}
}

// ShowCast returns the members of a show with at least MinEpisodes episodes. Seasons come
// from the roles of the series aggregate credits; members without any are looked up in
// the aggregate credits of every season. Shows without series credits take their members
// from the season credits and their episode counts from the members' tv credits.
func (b Builder) ShowCast(ctx context.Context, show sheets.ShowInfoRow) ([]Member, error) {
	seasonCount := show.SeasonCount
	if seasonCount <= 0 {
		tv, err := b.tmdb.TV(ctx, show.ShowID)
		if err != nil {
			return nil, fmt.Errorf("show details: %w", err)
		}
		seasonCount = tv.NumberOfSeasons
	}

	cast, err := b.tmdb.AggregateCredits(ctx, show.ShowID)
	if err != nil && !errors.Is(err, tmdb.ErrNotFound) {
		return nil, fmt.Errorf("aggregate credits: %w", err)
	}

	seasonCasts := map[int][]tmdb.AggregateCast{}
	seasonCast := func(season int) ([]tmdb.AggregateCast, error) {
		if c, ok := seasonCasts[season]; ok {
			return c, nil
		}
		c, err := b.tmdb.SeasonAggregateCredits(ctx, show.ShowID, season)
		if err != nil {
			return nil, fmt.Errorf("season %d aggregate credits: %w", season, err)
		}
		seasonCasts[season] = c
		return c, nil
	}

	var members []*Member
	byID := map[int]*Member{}
	for _, c := range cast {
		if c.ID == 0 || c.TotalEpisodeCount < show.MinEpisodes {
			continue
		}
		m := &Member{TMDbID: tmdb.ID(c.ID), Name: c.DisplayName(), Episodes: c.TotalEpisodeCount}
		for _, role := range c.Roles {
			if role.Season > 0 {
				m.Seasons = append(m.Seasons, role.Season)
			}
		}
		members = append(members, m)
		byID[c.ID] = m
	}

	// without series credits the totals are the person's tv credits for the show, or the
	// amount of seasons they appear in when TMDb has none
	if len(members) == 0 {
		seen := map[int]*Member{}
		var order []int
		for season := 1; season <= seasonCount; season++ {
			sc, err := seasonCast(season)
			if err != nil {
				return nil, err
			}
			for _, c := range sc {
				if c.ID == 0 {
					continue
				}
				m, ok := seen[c.ID]
				if !ok {
					m = &Member{TMDbID: tmdb.ID(c.ID), Name: c.DisplayName()}
					seen[c.ID] = m
					order = append(order, c.ID)
				}
				m.Episodes++
			}
		}
		for _, id := range order {
			if episodes := b.showEpisodes(ctx, seen[id], show.ShowID); episodes > 0 {
				seen[id].Episodes = episodes
			}
			if seen[id].Episodes >= max(1, show.MinEpisodes) {
				members = append(members, seen[id])
				byID[id] = seen[id]
			}
		}
	}

	missing := slices.ContainsFunc(members, func(m *Member) bool { return len(m.Seasons) == 0 })
	if missing {
		for season := 1; season <= seasonCount; season++ {
			sc, err := seasonCast(season)
			if err != nil {
				return nil, err
			}
			for _, c := range sc {
				if m, ok := byID[c.ID]; ok {
					m.Seasons = append(m.Seasons, season)
				}
			}
		}
	}

	out := make([]Member, len(members))
	for i, m := range members {
		slices.Sort(m.Seasons)
		m.Seasons = slices.Compact(m.Seasons)
		out[i] = *m
	}
	return out, nil
}

// showEpisodes is the episode count of showID in the tv credits of m, 0 when the show is
// not listed there.
func (b Builder) showEpisodes(ctx context.Context, m *Member, showID string) int {
	credits, err := b.tmdb.PersonTVCredits(ctx, m.TMDbID)
	if err != nil {
		if !errors.Is(err, tmdb.ErrNotFound) && ctx.Err() == nil {
			b.tel.ReportWarning(report_builder_member, err, m.Name)
		}
		return 0
	}
	episodes := 0
	for _, c := range credits.Cast {
		if tmdb.ID(c.ID) == showID {
			episodes = max(episodes, c.EpisodeCount)
		}
	}
	return episodes
}

type castKey struct {
	castID string
	showID string
}

type existingRow struct {
	row     int
	seasons string
}

// indexCastInfo maps (cast TMDb id, show TMDb id) to the existing CastInfo rows.
func indexCastInfo(values [][]string) map[castKey]existingRow {
	index := map[castKey]existingRow{}
	castCol := sheets.ColumnIndex(sheets.CastInfoCastTMDbID) - 1
	showCol := sheets.ColumnIndex(sheets.CastInfoShowTMDbID) - 1
	seasonsCol := sheets.ColumnIndex(sheets.CastInfoSeasons) - 1
	for i := 1; i < len(values); i++ {
		key := castKey{castID: sheets.CellAt(values[i], castCol), showID: sheets.CellAt(values[i], showCol)}
		if key.castID == "" || key.showID == "" {
			continue
		}
		index[key] = existingRow{row: i + 1, seasons: sheets.CellAt(values[i], seasonsCol)}
	}
	return index
}

func (b Builder) showIMDbID(ctx context.Context, show sheets.ShowInfoRow) string {
	if show.ShowIMDbID != "" {
		return show.ShowIMDbID
	}
	ids, err := b.tmdb.TVExternalIDs(ctx, show.ShowID)
	if err != nil {
		if !errors.Is(err, tmdb.ErrNotFound) {
			b.tel.ReportWarning(report_builder_show, err, show.ShowName)
		}
		return ""
	}
	return ids.IMDbID
}

func (b Builder) castIMDbID(ctx context.Context, m Member) string {
	ids, err := b.tmdb.PersonExternalIDs(ctx, m.TMDbID)
	if err != nil {
		if !errors.Is(err, tmdb.ErrNotFound) {
			b.tel.ReportWarning(report_builder_member, err, m.Name)
		}
		return ""
	}
	return ids.IMDbID
}

func windowShows(shows []sheets.ShowInfoRow, startRow, limit int) []sheets.ShowInfoRow {
	var out []sheets.ShowInfoRow
	for _, s := range shows {
		if s.Row < startRow {
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, s)
	}
	return out
}

// Run updates the Seasons of CastInfo rows already present for a (cast, show) pair and
// appends the pairs that are missing, show by show.
func (b Builder) Run(ctx context.Context, opts Options, failed *failures.Log) (store.Counts, error) {
	var counts store.Counts
	if err := b.values.EnsureSheet(ctx, sheets.SheetCastInfo); err != nil {
		return counts, fmt.Errorf("open %s: %w", sheets.SheetCastInfo, err)
	}
	showValues, err := b.values.Get(ctx, sheets.SheetShowInfo)
	if err != nil {
		b.tel.ReportBroken(report_builder_load, err, sheets.SheetShowInfo)
		return counts, fmt.Errorf("load %s: %w", sheets.SheetShowInfo, err)
	}
	castValues, err := b.values.Get(ctx, sheets.SheetCastInfo)
	if err != nil {
		b.tel.ReportBroken(report_builder_load, err, sheets.SheetCastInfo)
		return counts, fmt.Errorf("load %s: %w", sheets.SheetCastInfo, err)
	}

	shows := windowShows(sheets.LoadShowInfo(showValues), max(2, opts.StartRow), opts.Limit)
	index := indexCastInfo(castValues)
	b.tel.ReportDebug(fmt.Sprintf("%d shows to build, %d cast rows indexed", len(shows), len(index)))

	if opts.AppendChunk <= 0 {
		opts.AppendChunk = 100
	}
	writer := sheets.NewBatchWriter(b.values, sheets.WriterOptions{
		BatchSize:   opts.BatchSize,
		AppendChunk: opts.AppendChunk,
		AppendPause: opts.AppendPause,
		OnFailed: func(u sheets.Update, reason string) {
			failed.Add(failures.Entry{Row: u.Row, Name: u.Label, Reason: "Sheet write failed: " + reason})
		},
	}, b.tel, b.time)
	stopFlush, err := writer.Start(ctx, b.cron)
	if err != nil {
		return counts, err
	}
	defer stopFlush()

	if len(castValues) == 0 {
		header := make([]any, len(sheets.CastInfoHeader))
		for i, h := range sheets.CastInfoHeader {
			header[i] = h
		}
		if _, err := writer.Append(ctx, sheets.SheetCastInfo, [][]any{header}); err != nil {
			return counts, fmt.Errorf("write header: %w", err)
		}
	}

	for i, show := range shows {
		if i > 0 && b.sleep(ctx, opts.ShowDelay) != nil {
			break
		}
		members, err := b.ShowCast(ctx, show)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			counts.Failed++
			b.tel.ReportWarning(report_builder_show, err, show.ShowName)
			failed.Add(failures.Entry{Row: show.Row, Show: show.ShowName, Reason: err.Error()})
			continue
		}

		var showIMDb string
		var rows [][]any
		for _, m := range members {
			counts.Processed++
			seasons := FormatSeasons(m.Seasons)
			existing, ok := index[castKey{castID: m.TMDbID, showID: show.ShowID}]
			if ok {
				if existing.row == 0 || opts.AppendOnly || seasons == "" || existing.seasons == seasons ||
					(existing.seasons != "" && !opts.Overwrite) {
					counts.Skipped++
					continue
				}
				err := writer.Add(ctx, sheets.Update{
					Sheet: sheets.SheetCastInfo,
					Row:   existing.row,
					Cells: []sheets.Cell{{Column: sheets.CastInfoSeasons, Value: seasons}},
					Label: m.Name,
				})
				if err != nil && ctx.Err() == nil {
					b.tel.ReportWarning(report_builder_flush, err, m.Name)
				}
				counts.Updated++
				continue
			}

			if showIMDb == "" {
				showIMDb = b.showIMDbID(ctx, show)
			}
			row := sheets.CastInfoRow{
				CastName:   m.Name,
				CastTMDbID: m.TMDbID,
				CastIMDbID: b.castIMDbID(ctx, m),
				ShowName:   show.ShowName,
				ShowIMDbID: showIMDb,
				ShowTMDbID: show.ShowID,
			}
			if opts.FillCounts {
				row.TotalEpisodes = strconv.Itoa(m.Episodes)
				row.Seasons = seasons
			}
			rows = append(rows, row.Values())
			// a member listed twice is only appended once
			index[castKey{castID: m.TMDbID, showID: show.ShowID}] = existingRow{seasons: row.Seasons}
		}

		written, err := writer.Append(context.WithoutCancel(ctx), sheets.SheetCastInfo, rows)
		counts.Updated += written
		if err != nil {
			b.tel.ReportBroken(report_builder_append, err, show.ShowName)
			return counts, fmt.Errorf("append %s: %w", show.ShowName, err)
		}
		b.tel.ReportDebug(fmt.Sprintf("%s: %d members, %d appended", show.ShowName, len(members), written))
		if ctx.Err() != nil {
			break
		}
	}

	if err := writer.Close(context.WithoutCancel(ctx)); err != nil {
		b.tel.ReportBroken(report_builder_flush, err)
		return counts, fmt.Errorf("final flush: %w", err)
	}
	ws := writer.Stats()
	counts.Updated -= ws.Failed
	counts.Failed += ws.Failed
	return counts, nil
}
