package enrich

import (
	"context"
	"errors"
	"realitease/internal/bio"
	"realitease/internal/components/chrono"
	"realitease/internal/components/telemetry"
	"realitease/internal/failures"
	"realitease/internal/sheets"
	"realitease/internal/store"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	name    string
	results map[string]bio.Result
	err     error
	calls   []string
}

func (s *fakeSource) Name() string { return s.name }

func (s *fakeSource) Lookup(ctx context.Context, person bio.Person) (bio.Result, error) {
	s.calls = append(s.calls, person.Name)
	if s.err != nil {
		return bio.Result{}, s.err
	}
	res, ok := s.results[person.Name]
	if !ok {
		return bio.Result{}, bio.ErrNotFound
	}
	return res, nil
}

type noCron struct{}

func (noCron) Cron(string, func()) (func(), error) { return func() {}, nil }

func TestCascadeLookup(t *testing.T) {
	imdb := &fakeSource{name: "imdb", results: map[string]bio.Result{
		"Kandi Burruss": {Birthday: "1976-05-17"},
	}}
	broken := &fakeSource{name: "wikidata", err: errors.New("503")}
	tmdb := &fakeSource{name: "tmdb", results: map[string]bio.Result{
		"Kandi Burruss": {Gender: bio.GenderFemale, Birthday: "1970-01-01"},
		"Bio Only":      {BioText: "She is a singer. Her album came out in 2001 and she toured with her band."},
	}}
	last := &fakeSource{name: "google"}

	tel := &telemetry.Recorder{}
	cascade := NewCascade(tel, imdb, broken, tmdb, last)
	require.Equal(t, []string{"imdb", "wikidata", "tmdb", "google"}, cascade.Sources())

	record, err := cascade.Lookup(context.Background(), bio.Person{Name: "Kandi Burruss"})
	require.NoError(t, err)
	require.Equal(t, bio.GenderFemale, record.Gender)
	require.Equal(t, "tmdb_gender", record.GenderSource)
	// the first source to know a field wins
	require.Equal(t, "1976-05-17", record.Birthday)
	require.Equal(t, "imdb_birthday", record.BirthdaySource)
	// complete after tmdb, google is never asked
	require.Empty(t, last.calls)
	require.Len(t, tel.Reports("warning"), 1)

	record, err = cascade.Lookup(context.Background(), bio.Person{Name: "Bio Only"})
	require.NoError(t, err)
	require.Equal(t, bio.GenderFemale, record.Gender)
	require.Equal(t, "bio_text_analysis", record.GenderSource)
	require.Empty(t, record.Birthday)
	require.Equal(t, []string{"Bio Only"}, last.calls)
}

func TestCascadeCancelled(t *testing.T) {
	source := &fakeSource{name: "imdb"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewCascade(&telemetry.Recorder{}, source).Lookup(ctx, bio.Person{Name: "A"})
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, source.calls)
}

func TestCells(t *testing.T) {
	testCases := []struct {
		name   string
		row    sheets.RealiteaseRow
		record bio.Record
		expect []sheets.Cell
	}{
		{
			name:   "everything empty",
			record: bio.Record{Gender: bio.GenderMale, Birthday: "1973-07-15"},
			expect: []sheets.Cell{
				{Column: sheets.RealiteaseGender, Value: "M"},
				{Column: sheets.RealiteaseBirthday, Value: "1973-07-15"},
				{Column: sheets.RealiteaseZodiac, Value: "Cancer"},
			},
		},
		{
			name:   "existing values are never overwritten",
			row:    sheets.RealiteaseRow{Gender: "F", Birthday: "1980-08-01"},
			record: bio.Record{Gender: bio.GenderMale, Birthday: "1973-07-15"},
			expect: []sheets.Cell{{Column: sheets.RealiteaseZodiac, Value: "Leo"}},
		},
		{
			name:   "zodiac from a non iso birthday already in the sheet",
			row:    sheets.RealiteaseRow{Gender: "F", Birthday: "March 3, 1990"},
			expect: []sheets.Cell{{Column: sheets.RealiteaseZodiac, Value: "Pisces"}},
		},
		{
			name:   "nothing found",
			row:    sheets.RealiteaseRow{Zodiac: "Leo"},
			expect: nil,
		},
	}
	for _, test := range testCases {
		require.Empty(t, cmp.Diff(test.expect, Cells(test.row, test.record)), test.name)
	}
}

func realiteaseSheet() [][]string {
	return [][]string{
		sheets.RealiteaseHeader,
		{"Kandi Burruss", "nm1", "101", "RHOA; Kandi & The Gang", "tt1", "1", "2", "", "", ""},
		{"Filled Person", "nm2", "102", "RHOA", "tt1", "1", "1", "F", "1980-08-01", "Leo"},
		{"Only Zodiac", "nm3", "", "RHOA", "tt1", "1", "1", "M", "1973-07-15", ""},
		{"Unknown Person", "nm4", "", "RHOA", "tt1", "1", "1", "", "", ""},
		{"Gender Known", "nm5", "105", "RHOA", "tt1", "1", "1", "M", "", ""},
	}
}

func TestPassRun(t *testing.T) {
	values := sheets.NewMemoryValues()
	values.Set(sheets.SheetRealiteaseInfo, realiteaseSheet())
	source := &fakeSource{name: "fandom", results: map[string]bio.Result{
		"Kandi Burruss": {Gender: bio.GenderFemale, Birthday: "1976-05-17"},
		"Gender Known":  {Gender: bio.GenderFemale, Birthday: "1966-01-02"},
	}}
	clock := chrono.NewFakeTime(time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC))
	pass := NewPass(values, NewCascade(&telemetry.Recorder{}, source), &telemetry.Recorder{}, clock, noCron{})
	failed := failures.NewLog(clock)

	counts, err := pass.Run(context.Background(), PassOptions{}, failed)
	require.NoError(t, err)
	require.Equal(t, store.Counts{Processed: 4, Updated: 3, Skipped: 1, Failed: 1}, counts)
	// rows with only the zodiac missing need no lookup
	require.Equal(t, []string{"Kandi Burruss", "Unknown Person", "Gender Known"}, source.calls)

	sheet := values.Sheet(sheets.SheetRealiteaseInfo)
	require.Equal(t, []string{"F", "1976-05-17", "Taurus"}, sheet[1][7:10])
	require.Equal(t, []string{"F", "1980-08-01", "Leo"}, sheet[2][7:10])
	require.Equal(t, []string{"M", "1973-07-15", "Cancer"}, sheet[3][7:10])
	require.Equal(t, []string{"", "", ""}, sheet[4][7:10])
	require.Equal(t, []string{"M", "1966-01-02", "Capricorn"}, sheet[5][7:10])

	entries := failed.Entries()
	require.Len(t, entries, 1)
	require.Equal(t, "Unknown Person", entries[0].Name)
	require.Equal(t, reasonNoBioData, entries[0].Reason)
}

func TestPassWindowAndSkip(t *testing.T) {
	values := sheets.NewMemoryValues()
	values.Set(sheets.SheetRealiteaseInfo, realiteaseSheet())
	source := &fakeSource{name: "tmdb", results: map[string]bio.Result{
		"Gender Known": {Birthday: "1966-01-02"},
	}}
	clock := chrono.NewFakeTime(time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC))
	pass := NewPass(values, NewCascade(&telemetry.Recorder{}, source), &telemetry.Recorder{}, clock, noCron{})

	counts, err := pass.Run(context.Background(), PassOptions{
		RealiteaseOptions: sheets.RealiteaseOptions{Reverse: true, Limit: 2},
		Skip:              func(r sheets.RealiteaseRow) bool { return r.CastTMDbID == "" },
	}, failures.NewLog(clock))
	require.NoError(t, err)
	require.Equal(t, store.Counts{Processed: 1, Updated: 1, Skipped: 1}, counts)
	require.Equal(t, []string{"Gender Known"}, source.calls)
	require.Equal(t, []string{"M", "1966-01-02", "Capricorn"}, values.Sheet(sheets.SheetRealiteaseInfo)[5][7:10])
}
