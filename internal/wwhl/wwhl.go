// Package wwhl incrementally appends Watch What Happens Live episodes and their guests
// from TMDb to the WWHLinfo worksheet.
package wwhl

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
	"strconv"
	"time"
)

// ShowID is the TMDb id of Watch What Happens Live with Andy Cohen.
const ShowID = "22980"

// Provenance of a guest or of a whole row.
const (
	SourceCastInfo   = "CAST INFO"
	SourceRealitease = "REALITEASE"
	SourceNone       = "NONE"
)

const (
	report_fetcher_load    = "fetcher.load"
	report_fetcher_season  = "fetcher.season"
	report_fetcher_episode = "fetcher.episode"
	report_fetcher_guest   = "fetcher.guest"
	report_fetcher_append  = "fetcher.append"
)

type Options struct {
	ShowID string
	// Seasons is the last season checked, seasons 1..Seasons are looked at (22).
	Seasons     int
	AppendChunk int
	AppendPause time.Duration
	// GuestDelay is the pause between two guest lookups (100ms).
	GuestDelay time.Duration
	// SeasonDelay is the pause between two seasons (500ms).
	SeasonDelay time.Duration
}

func (o Options) withDefaults() Options {
	if o.ShowID == "" {
		o.ShowID = ShowID
	}
	if o.Seasons <= 0 {
		o.Seasons = 22
	}
	if o.GuestDelay == 0 {
		o.GuestDelay = 100 * time.Millisecond
	}
	if o.SeasonDelay == 0 {
		o.SeasonDelay = 500 * time.Millisecond
	}
	return o
}

// Known is what the workbook already knows about people and episodes.
type Known struct {
	// CastIMDb maps the TMDb ids of CastInfo members to their IMDb ids.
	CastIMDb map[string]string
	// Realitease holds the TMDb ids of RealiteaseInfo members.
	Realitease map[string]bool
	// Markers holds the "S{n}E{m}" of every episode already in WWHLinfo.
	Markers map[string]bool
	// Episodes holds the episode numbers already in WWHLinfo per season.
	Episodes map[int]map[int]bool
}

// CastIMDbMap maps TMDb ids to IMDb ids using the leftmost columns whose headers contain
// "tmdb" and "id", and "imdb" and "id".
func CastIMDbMap(values [][]string) map[string]string {
	out := map[string]string{}
	if len(values) < 2 {
		return out
	}
	header := sheets.NewHeader(values[0])
	tmdbCol := header.IndexContaining("tmdb", "id")
	imdbCol := header.IndexContaining("imdb", "id")
	if tmdbCol < 0 || imdbCol < 0 {
		return out
	}
	for _, row := range values[1:] {
		tmdbID, imdbID := sheets.CellAt(row, tmdbCol), sheets.CellAt(row, imdbCol)
		if tmdbID != "" && imdbID != "" {
			out[tmdbID] = imdbID
		}
	}
	return out
}

// TMDbIDSet returns the values of the first column whose header contains "tmdb" and "id".
func TMDbIDSet(values [][]string) map[string]bool {
	out := map[string]bool{}
	if len(values) < 2 {
		return out
	}
	col := sheets.NewHeader(values[0]).IndexContaining("tmdb", "id")
	if col < 0 {
		return out
	}
	for _, row := range values[1:] {
		if id := sheets.CellAt(row, col); id != "" {
			out[id] = true
		}
	}
	return out
}

// ExistingEpisodes reads the markers and per-season episode numbers of WWHLinfo rows,
// rows without numeric season and episode cells are ignored.
func ExistingEpisodes(values [][]string) (map[string]bool, map[int]map[int]bool) {
	markers := map[string]bool{}
	episodes := map[int]map[int]bool{}
	for i := 1; i < len(values); i++ {
		row := values[i]
		season, err1 := strconv.Atoi(sheets.CellAt(row, 2))
		episode, err2 := strconv.Atoi(sheets.CellAt(row, 3))
		if err1 != nil || err2 != nil {
			continue
		}
		if marker := sheets.CellAt(row, 1); marker != "" {
			markers[marker] = true
		}
		if episodes[season] == nil {
			episodes[season] = map[int]bool{}
		}
		episodes[season][episode] = true
	}
	return markers, episodes
}

// GuestSource is the provenance of a single guest.
func (k Known) GuestSource(tmdbID string) string {
	if tmdbID == "" {
		return SourceNone
	}
	if _, ok := k.CastIMDb[tmdbID]; ok {
		return SourceCastInfo
	}
	if k.Realitease[tmdbID] {
		return SourceRealitease
	}
	return SourceNone
}

// RowSource picks the provenance of a row, REALITEASE wins over CAST INFO over NONE.
func RowSource(guests []string) string {
	source := SourceNone
	for _, g := range guests {
		switch g {
		case SourceRealitease:
			return SourceRealitease
		case SourceCastInfo:
			source = SourceCastInfo
		}
	}
	return source
}

type Fetcher struct {
	values sheets.Values
	tmdb   *tmdb.Client
	tel    telemetry.API
	time   chrono.TimeAPI
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewFetcher(values sheets.Values, client *tmdb.Client, tel telemetry.API, timeAPI chrono.TimeAPI) Fetcher {
	return Fetcher{
		values: values,
		tmdb:   client,
		tel:    telemetry.NewScopedAPI("wwhl", tel),
		time:   timeAPI,
		sleep:  scrapers.Sleep,
	}
}

// optional reads a worksheet that may not exist.
func (f Fetcher) optional(ctx context.Context, sheet string) [][]string {
	values, err := f.values.Get(ctx, sheet)
	if err != nil {
		f.tel.ReportWarning(report_fetcher_load, err, sheet)
		return nil
	}
	return values
}

func (f Fetcher) load(ctx context.Context) (Known, int, error) {
	if err := f.values.EnsureSheet(ctx, sheets.SheetWWHLInfo); err != nil {
		return Known{}, 0, fmt.Errorf("open %s: %w", sheets.SheetWWHLInfo, err)
	}
	existing, err := f.values.Get(ctx, sheets.SheetWWHLInfo)
	if err != nil {
		return Known{}, 0, fmt.Errorf("load %s: %w", sheets.SheetWWHLInfo, err)
	}
	known := Known{
		CastIMDb:   CastIMDbMap(f.optional(ctx, sheets.SheetCastInfo)),
		Realitease: TMDbIDSet(f.optional(ctx, sheets.SheetRealiteaseInfo)),
	}
	known.Markers, known.Episodes = ExistingEpisodes(existing)
	return known, len(existing), nil
}

type guest struct {
	name   string
	tmdbID string
}

// guests returns the guests of an episode, the /credits endpoint is asked when the
// episode payload lists none.
func (f Fetcher) guests(ctx context.Context, opts Options, season int, ep tmdb.Episode) []tmdb.Credit {
	if len(ep.GuestStars) > 0 {
		return ep.GuestStars
	}
	credits, err := f.tmdb.EpisodeCredits(ctx, opts.ShowID, season, ep.EpisodeNumber)
	if err != nil && !errors.Is(err, tmdb.ErrNotFound) {
		f.tel.ReportWarning(report_fetcher_episode, err)
	}
	return credits.GuestStars
}

// resolve turns a guest credit into the person's id and name through /credit, falling
// back to what the episode listed.
func (f Fetcher) resolve(ctx context.Context, credit tmdb.Credit) guest {
	g := guest{name: credit.Name, tmdbID: tmdb.ID(credit.ID)}
	if credit.CreditID == "" {
		return g
	}
	details, err := f.tmdb.Credit(ctx, credit.CreditID)
	if err != nil {
		f.tel.ReportWarning(report_fetcher_guest, err, credit.Name)
		return g
	}
	if details.Person.ID != 0 {
		g.tmdbID = tmdb.ID(details.Person.ID)
	}
	if details.Person.Name != "" {
		g.name = details.Person.Name
	}
	return g
}

func (f Fetcher) imdbID(ctx context.Context, known Known, tmdbID string) string {
	if tmdbID == "" {
		return ""
	}
	if id, ok := known.CastIMDb[tmdbID]; ok {
		return id
	}
	ids, err := f.tmdb.PersonExternalIDs(ctx, tmdbID)
	if err != nil {
		if !errors.Is(err, tmdb.ErrNotFound) {
			f.tel.ReportWarning(report_fetcher_guest, err, tmdbID)
		}
		return ""
	}
	return ids.IMDbID
}

// EpisodeRow builds the WWHLinfo row of an episode listed in a season payload.
func (f Fetcher) EpisodeRow(ctx context.Context, opts Options, known Known, season int, listed tmdb.Episode) (sheets.WWHLRow, error) {
	ep, err := f.tmdb.Episode(ctx, opts.ShowID, season, listed.EpisodeNumber)
	if err != nil {
		return sheets.WWHLRow{}, err
	}
	if ep.ID == 0 {
		ep.ID = listed.ID
	}
	if ep.ID == 0 {
		ids, err := f.tmdb.EpisodeExternalIDs(ctx, opts.ShowID, season, listed.EpisodeNumber)
		if err == nil {
			ep.ID = ids.ID
		}
	}
	if ep.AirDate == "" {
		ep.AirDate = listed.AirDate
	}
	ep.EpisodeNumber = listed.EpisodeNumber

	row := sheets.WWHLRow{
		TMDbID:  tmdb.ID(ep.ID),
		Season:  season,
		Episode: ep.EpisodeNumber,
		AirDate: ep.AirDate,
	}
	var sources []string
	for i, credit := range f.guests(ctx, opts, season, ep) {
		if i > 0 {
			if err := f.sleep(ctx, opts.GuestDelay); err != nil {
				return sheets.WWHLRow{}, err
			}
		}
		g := f.resolve(ctx, credit)
		row.GuestNames = append(row.GuestNames, g.name)
		if g.tmdbID != "" {
			row.GuestTMDbIDs = append(row.GuestTMDbIDs, g.tmdbID)
		}
		row.GuestIMDbIDs = append(row.GuestIMDbIDs, f.imdbID(ctx, known, g.tmdbID))
		sources = append(sources, known.GuestSource(g.tmdbID))
	}
	row.Source = RowSource(sources)
	return row, nil
}

// Run appends every episode of seasons 1..Seasons that WWHLinfo does not have yet. A
// season is only walked when it is missing or its episode count differs from TMDb.
func (f Fetcher) Run(ctx context.Context, opts Options, failed *failures.Log) (store.Counts, error) {
	opts = opts.withDefaults()
	var counts store.Counts
	writer := sheets.NewBatchWriter(f.values, sheets.WriterOptions{
		AppendChunk: opts.AppendChunk,
		AppendPause: opts.AppendPause,
	}, f.tel, f.time)

	known, existingRows, err := f.load(ctx)
	if err != nil {
		f.tel.ReportBroken(report_fetcher_load, err)
		return counts, err
	}
	f.tel.ReportDebug(fmt.Sprintf(
		"%d episodes in sheet, %d cast info ids, %d realitease ids",
		len(known.Markers), len(known.CastIMDb), len(known.Realitease),
	))

	if existingRows == 0 {
		header := make([]any, len(sheets.WWHLHeader))
		for i, h := range sheets.WWHLHeader {
			header[i] = h
		}
		if _, err := writer.Append(ctx, sheets.SheetWWHLInfo, [][]any{header}); err != nil {
			return counts, fmt.Errorf("write header: %w", err)
		}
	}

	for season := 1; season <= opts.Seasons; season++ {
		if season > 1 && f.sleep(ctx, opts.SeasonDelay) != nil {
			break
		}
		listing, err := f.tmdb.Season(ctx, opts.ShowID, season)
		if errors.Is(err, tmdb.ErrNotFound) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			f.tel.ReportWarning(report_fetcher_season, err, season)
			continue
		}

		have := known.Episodes[season]
		if len(have) > 0 && len(have) == len(listing.Episodes) {
			counts.Skipped += len(have)
			continue
		}

		var rows [][]any
		for _, listed := range listing.Episodes {
			marker := sheets.EpisodeMarker(season, listed.EpisodeNumber)
			if known.Markers[marker] {
				counts.Skipped++
				continue
			}
			if ctx.Err() != nil {
				break
			}
			row, err := f.EpisodeRow(ctx, opts, known, season, listed)
			counts.Processed++
			if err != nil {
				if ctx.Err() != nil {
					break
				}
				counts.Failed++
				f.tel.ReportWarning(report_fetcher_episode, err, marker)
				failed.Add(failures.Entry{Name: marker, Show: "WWHL", Reason: err.Error()})
				continue
			}
			rows = append(rows, row.Values())
			known.Markers[marker] = true
		}

		// rows already built are written even after a cancellation
		written, err := writer.Append(context.WithoutCancel(ctx), sheets.SheetWWHLInfo, rows)
		counts.Updated += written
		if err != nil {
			f.tel.ReportBroken(report_fetcher_append, err, season)
			return counts, fmt.Errorf("append season %d: %w", season, err)
		}
		f.tel.ReportDebug(fmt.Sprintf("season %d: appended %d episodes", season, written))
		if ctx.Err() != nil {
			break
		}
	}
	return counts, nil
}
