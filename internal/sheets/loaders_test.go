package sheets

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestColumnLetters(t *testing.T) {
	testCases := []struct {
		index  int
		letter string
	}{
		{1, "A"},
		{8, "H"},
		{26, "Z"},
		{27, "AA"},
		{52, "AZ"},
		{703, "AAA"},
	}
	for _, test := range testCases {
		require.Equal(t, test.letter, ColumnLetter(test.index))
		require.Equal(t, test.index, ColumnIndex(test.letter))
	}
	require.Equal(t, 0, ColumnIndex("A1"))
	require.Equal(t, "RealiteaseInfo!A1:J12", SheetRange(SheetRealiteaseInfo, 10, 12))
}

func TestLoadCastInfo(t *testing.T) {
	values := [][]string{
		CastInfoHeader,
		{"Teresa Giudice", "1", "nm2839386", "RHONJ", "tt1411598", "32390", "", ""},
		{"Melissa Gorga", "2", "nm4253938", "RHONJ", "tt1411598", "32390", "140", "3, 4, 5"},
		{"Joe Gorga", "3", "nm4253939", "RHONJ", "tt1411598", "32390", "120", ""},
		{"Short Row", "4", "nm1"},
		{"No Show Id", "5", "nm5", "RHONJ", "", "32390", "", ""},
		{"", "6", "", "RHOBH", "tt1720601", "", "", ""},
		{"Lisa Vanderpump", "7", "nm0888831", "RHOBH", "tt1720601", "", "250", "1, 2, 3"},
		{"Kyle Richards", "8", "", "RHOBH", "tt1720601", "", "", "1"},
	}
	rows, stats := LoadCastInfo(values)

	var names []string
	for _, r := range rows {
		names = append(names, r.CastName)
	}
	require.Equal(t, []string{"Teresa Giudice", "Joe Gorga", "Kyle Richards"}, names)
	require.Equal(t, 2, rows[0].Row)
	require.Equal(t, 9, rows[2].Row)
	require.Equal(t, "1", rows[2].Seasons)

	require.Equal(t, LoadStats{Total: 7, Loaded: 3, SkippedFilled: 2, SkippedInvalid: 2}, stats)
}

func TestLoadCastInfoSkipCountMatchesFilledRows(t *testing.T) {
	values := [][]string{CastInfoHeader}
	filled := 0
	for i := 0; i < 40; i++ {
		row := []string{"Name", "", "nm1", "Show", "tt1", "", "", ""}
		if i%3 == 0 {
			row[6], row[7] = "10", "1"
			filled++
		}
		values = append(values, row)
	}
	rows, stats := LoadCastInfo(values)
	require.Equal(t, filled, stats.SkippedFilled)
	require.Len(t, rows, 40-filled)

	// writing the results and loading again skips everything
	for i := range values[1:] {
		values[i+1][6], values[i+1][7] = "10", "1"
	}
	rows, stats = LoadCastInfo(values)
	require.Empty(t, rows)
	require.Equal(t, 40, stats.SkippedFilled)
}

func realiteaseValues() [][]string {
	return [][]string{
		RealiteaseHeader,
		{"A", "nm1", "", "", "", "", "1", "F", "1980-01-01", "Capricorn"},
		{"B", "nm2", "", "", "", "", "1", "", "", ""},
		{"C", "nm3", "", "", "", "", "1", "M", "", ""},
		{"", "", "", "", "", "", "", "", "", ""},
		{"E", "nm5", "", "", "", "", "1", "F", "1990-05-05", "Taurus"},
		{"F", "nm6", "", "", "", "", "1"},
	}
}

func TestLoadRealiteaseInfo(t *testing.T) {
	testCases := []struct {
		name   string
		opts   RealiteaseOptions
		expect []int
		stats  LoadStats
	}{
		{
			name:   "defaults",
			expect: []int{3, 4, 7},
			stats:  LoadStats{Total: 6, Loaded: 3, SkippedFilled: 2, SkippedInvalid: 1},
		},
		{
			name:   "start row and limit",
			opts:   RealiteaseOptions{StartRow: 4, Limit: 2},
			expect: []int{4},
			stats:  LoadStats{Total: 2, Loaded: 1, SkippedInvalid: 1},
		},
		{
			name:   "reverse from the end",
			opts:   RealiteaseOptions{Reverse: true},
			expect: []int{7, 4, 3},
			stats:  LoadStats{Total: 6, Loaded: 3, SkippedFilled: 2, SkippedInvalid: 1},
		},
		{
			name:   "reverse from a start row",
			opts:   RealiteaseOptions{StartRow: 4, Reverse: true},
			expect: []int{4, 3},
			stats:  LoadStats{Total: 3, Loaded: 2, SkippedFilled: 1},
		},
		{
			name: "birthday only",
			opts: RealiteaseOptions{Filled: func(r RealiteaseRow) bool {
				return r.Birthday != ""
			}},
			expect: []int{3, 4, 7},
			stats:  LoadStats{Total: 6, Loaded: 3, SkippedFilled: 2, SkippedInvalid: 1},
		},
	}
	for _, test := range testCases {
		rows, stats := LoadRealiteaseInfo(realiteaseValues(), test.opts)
		var numbers []int
		for _, r := range rows {
			numbers = append(numbers, r.Row)
		}
		require.Equal(t, test.expect, numbers, test.name)
		require.Equal(t, test.stats, stats, test.name)
	}
}

func TestGroupByShow(t *testing.T) {
	rows := []CastInfoRow{
		{Row: 2, CastName: "a", ShowName: "RHOBH", ShowIMDbID: "tt1"},
		{Row: 3, CastName: "b", ShowName: "Vanderpump Rules", ShowIMDbID: "tt2"},
		{Row: 4, CastName: "c", ShowName: "RHOBH", ShowIMDbID: "tt1"},
		{Row: 5, CastName: "d", ShowName: "Below Deck", ShowIMDbID: "tt3"},
		{Row: 6, CastName: "e", ShowName: "Vanderpump Rules", ShowIMDbID: "tt2"},
		// same title, different series
		{Row: 7, CastName: "f", ShowName: "Below Deck", ShowIMDbID: "tt9"},
		{Row: 8, CastName: "g", ShowName: "The Valley"},
		{Row: 9, CastName: "h", ShowName: "The Valley"},
	}
	groups := GroupByShow(rows)

	type summary struct {
		Show string
		ID   string
		Rows []int
	}
	var got []summary
	for _, g := range groups {
		s := summary{Show: g.ShowName, ID: g.ShowIMDbID}
		for _, m := range g.Members {
			s.Rows = append(s.Rows, m.Row)
		}
		got = append(got, s)
	}
	diff := cmp.Diff([]summary{
		{Show: "RHOBH", ID: "tt1", Rows: []int{2, 4}},
		{Show: "Vanderpump Rules", ID: "tt2", Rows: []int{3, 6}},
		{Show: "Below Deck", ID: "tt3", Rows: []int{5}},
		{Show: "Below Deck", ID: "tt9", Rows: []int{7}},
		{Show: "The Valley", Rows: []int{8, 9}},
	}, got)
	require.Empty(t, diff)
}

func TestLoadViableCastAndShowInfo(t *testing.T) {
	viable := LoadViableCast([][]string{
		{"Show IMDbID", "TMDb CastID", "CastName", "Cast IMDbID", "TMDb ShowID", "ShowName", "EpisodeCount", "Seasons"},
		{"tt1", "11", "Lisa", "nm1", "100", "RHOBH", "200", "1, 2"},
		{"tt2", "", "", "", "", "", "", ""},
	})
	require.Equal(t, []ViableCastRow{{
		ShowIMDbID: "tt1", CastTMDbID: "11", CastName: "Lisa", CastIMDbID: "nm1",
		ShowTMDbID: "100", ShowName: "RHOBH", EpisodeCount: "200", Seasons: "1, 2",
	}}, viable)

	shows := LoadShowInfo([][]string{
		{"ShowName", "ShowID", "IMDbSeriesID", "SeasonCount", "MinimumEpisodes", "ShowNameEdit"},
		{"The Real Housewives of Beverly Hills", "32390", "tt1720601", "14", "5", "RHOBH"},
		{"Vanderpump Rules", "60231", "", "x", "", ""},
		{"No Id", "", "", "", "", ""},
	})
	require.Equal(t, []ShowInfoRow{
		{Row: 2, ShowID: "32390", ShowName: "RHOBH", ShowIMDbID: "tt1720601", SeasonCount: 14, MinEpisodes: 5},
		{Row: 3, ShowID: "60231", ShowName: "Vanderpump Rules"},
	}, shows)
}
