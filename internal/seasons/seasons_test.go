package seasons

import (
	"context"
	"errors"
	"realitease/internal/components/chrono"
	"realitease/internal/components/telemetry"
	"realitease/internal/failures"
	"realitease/internal/scrapers/imdb"
	"realitease/internal/sheets"
	"realitease/internal/store"
	"realitease/internal/worker"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type noCron struct{}

func (noCron) Cron(string, func()) (func(), error) { return func() {}, nil }

type tablePage struct {
	credits map[string]imdb.Credits
	crew    map[string]bool
}

func (p tablePage) Open(context.Context, string) error { return nil }

func (p tablePage) Crew(m imdb.Member) (string, bool) {
	if p.crew[m.Name] {
		return "Directed by", true
	}
	return "", false
}

func (p tablePage) Credits(ctx context.Context, m imdb.Member) (imdb.Credits, error) {
	c, ok := p.credits[m.Name]
	if !ok {
		return imdb.Credits{}, &imdb.Failure{Reason: imdb.ReasonNotFound}
	}
	return c, nil
}

func (tablePage) Reset(context.Context) {}
func (tablePage) Close() error          { return nil }

func TestJobRun(t *testing.T) {
	values := sheets.NewMemoryValues()
	values.Set(sheets.SheetCastInfo, [][]string{
		sheets.CastInfoHeader,
		{"Teresa Giudice", "1", "nm2839386", "RHONJ", "tt1411598", "32390", "", ""},
		{"Melissa Gorga", "2", "nm4253938", "RHONJ", "tt1411598", "32390", "140", "3, 4, 5"},
		{"Some Director", "3", "nm0000003", "RHONJ", "tt1411598", "32390", "", ""},
		{"Lisa Vanderpump", "4", "nm0888831", "RHOBH", "tt1720601", "", "", "1"},
		{"Unknown Person", "5", "nm0000005", "RHOBH", "tt1720601", "", "", ""},
	})

	clock := chrono.NewFakeTime(time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC))
	page := tablePage{
		credits: map[string]imdb.Credits{
			"Teresa Giudice":  {Episodes: 252, Seasons: []int{1, 2, 3}},
			"Lisa Vanderpump": {Episodes: 180, Seasons: []int{1, 2}},
		},
		crew: map[string]bool{"Some Director": true},
	}
	job := NewJob(values, func(context.Context, int) (imdb.Page, error) {
		return page, nil
	}, &telemetry.Recorder{}, clock, noCron{})

	failed := failures.NewLog(clock)
	counts, err := job.Run(context.Background(), Options{
		Pool: worker.Options{Workers: 2, MemberDelay: -1, ShowDelay: -1},
	}, failed)
	require.NoError(t, err)
	require.Equal(t, store.Counts{Processed: 4, Updated: 2, Skipped: 1, Failed: 1}, counts)

	sheet := values.Sheet(sheets.SheetCastInfo)
	require.Len(t, sheet, 5)
	require.Equal(t, []string{"252", "1, 2, 3"}, sheet[1][6:8])
	require.Equal(t, []string{"140", "3, 4, 5"}, sheet[2][6:8])
	require.Equal(t, "Lisa Vanderpump", sheet[3][0])
	require.Equal(t, []string{"180", "1, 2"}, sheet[3][6:8])

	entries := failed.Entries()
	require.Len(t, entries, 1)
	require.Equal(t, "Unknown Person", entries[0].Name)
	require.Equal(t, imdb.ReasonNotFound, entries[0].Reason)
	require.Equal(t, "RHOBH", entries[0].Show)
}

func TestJobRunLimit(t *testing.T) {
	values := sheets.NewMemoryValues()
	values.Set(sheets.SheetCastInfo, [][]string{
		sheets.CastInfoHeader,
		{"A", "", "nm1", "Show", "tt1", "", "", ""},
		{"B", "", "nm2", "Show", "tt1", "", "", ""},
	})
	clock := chrono.NewFakeTime(time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC))
	page := tablePage{credits: map[string]imdb.Credits{"A": {Episodes: 1, Seasons: []int{1}}, "B": {Episodes: 2, Seasons: []int{1}}}}
	job := NewJob(values, func(context.Context, int) (imdb.Page, error) { return page, nil }, &telemetry.Recorder{}, clock, noCron{})

	counts, err := job.Run(context.Background(), Options{Limit: 1, Pool: worker.Options{MemberDelay: -1, ShowDelay: -1}}, failures.NewLog(clock))
	require.NoError(t, err)
	require.Equal(t, 1, counts.Processed)
	require.Equal(t, "", values.Sheet(sheets.SheetCastInfo)[2][6])
}

func TestJobRunLoadError(t *testing.T) {
	values := sheets.NewMemoryValues()
	clock := chrono.NewFakeTime(time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC))
	job := NewJob(values, func(context.Context, int) (imdb.Page, error) {
		return nil, errors.New("unused")
	}, &telemetry.Recorder{}, clock, noCron{})

	_, err := job.Run(context.Background(), Options{}, failures.NewLog(clock))
	require.Error(t, err)
}
