package sheets

import (
	"strconv"
	"strings"
)

// LoadStats describes what a loader did with the rows of a worksheet.
type LoadStats struct {
	Total          int
	Loaded         int
	SkippedFilled  int
	SkippedInvalid int
}

// LoadCastInfo returns the CastInfo rows that still need episode/season data. Rows whose
// G and H cells are both filled are counted in SkippedFilled, rows without a show IMDb
// id or without any way to identify the cast member are skipped as invalid.
func LoadCastInfo(values [][]string) ([]CastInfoRow, LoadStats) {
	var stats LoadStats
	var rows []CastInfoRow
	for i := 1; i < len(values); i++ {
		row := values[i]
		if len(row) < 8 {
			continue
		}
		stats.Total++

		parsed := parseCastInfoRow(i+1, row)
		if parsed.TotalEpisodes != "" && parsed.Seasons != "" {
			stats.SkippedFilled++
			continue
		}
		if parsed.ShowIMDbID == "" || (parsed.CastIMDbID == "" && parsed.CastName == "") {
			stats.SkippedInvalid++
			continue
		}
		rows = append(rows, parsed)
	}
	stats.Loaded = len(rows)
	return rows, stats
}

// RealiteaseOptions select the window of RealiteaseInfo rows a pass works on.
type RealiteaseOptions struct {
	// StartRow is the first 1-based sheet row to look at, defaults to 2 (or to the last
	// row when Reverse is set).
	StartRow int
	// Limit is the maximum amount of rows looked at, 0 means all of them.
	Limit int
	// Reverse walks from StartRow up towards row 2.
	Reverse bool
	// Filled reports whether a row already has everything the pass would write.
	Filled func(RealiteaseRow) bool
}

// BioFilled is the Filled predicate of the full bio pass (gender, birthday and zodiac).
func BioFilled(r RealiteaseRow) bool {
	return r.Gender != "" && r.Birthday != "" && r.Zodiac != ""
}

// LoadRealiteaseInfo returns the RealiteaseInfo rows in the requested window that are not
// filled yet, in processing order.
func LoadRealiteaseInfo(values [][]string, opts RealiteaseOptions) ([]RealiteaseRow, LoadStats) {
	var stats LoadStats
	if len(values) < 2 {
		return nil, stats
	}
	if opts.Filled == nil {
		opts.Filled = BioFilled
	}
	last := len(values)

	start := opts.StartRow
	step := 1
	if opts.Reverse {
		step = -1
		if start <= 2 || start > last {
			start = last
		}
	} else if start < 2 {
		start = 2
	}

	var rows []RealiteaseRow
	for number := start; number >= 2 && number <= last; number += step {
		if opts.Limit > 0 && stats.Total >= opts.Limit {
			break
		}
		stats.Total++

		parsed := parseRealiteaseRow(number, values[number-1])
		if parsed.CastName == "" {
			stats.SkippedInvalid++
			continue
		}
		if opts.Filled(parsed) {
			stats.SkippedFilled++
			continue
		}
		rows = append(rows, parsed)
	}
	stats.Loaded = len(rows)
	return rows, stats
}

// ShowGroup is every CastInfo row of a single show.
type ShowGroup struct {
	ShowName   string
	ShowIMDbID string
	Members    []CastInfoRow
}

type showKey struct {
	imdbID string
	name   string
}

// GroupByShow groups rows by show IMDb id, or by show name for rows without one. Groups
// are ordered by the first appearance of their show.
func GroupByShow(rows []CastInfoRow) []ShowGroup {
	index := map[showKey]int{}
	var groups []ShowGroup
	for _, r := range rows {
		key := showKey{imdbID: r.ShowIMDbID}
		if key.imdbID == "" {
			key.name = r.ShowName
		}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, ShowGroup{ShowName: r.ShowName, ShowIMDbID: r.ShowIMDbID})
		}
		groups[i].Members = append(groups[i].Members, r)
	}
	return groups
}

// ViableCastRow is a ViableCast row, the sheet is addressed by header.
type ViableCastRow struct {
	ShowIMDbID   string
	CastTMDbID   string
	CastName     string
	CastIMDbID   string
	ShowTMDbID   string
	ShowName     string
	EpisodeCount string
	Seasons      string
}

// LoadViableCast reads ViableCast by header name, falling back to the canonical column
// order for headers that are missing.
func LoadViableCast(values [][]string) []ViableCastRow {
	if len(values) < 2 {
		return nil
	}
	h := NewHeader(values[0])
	idx := func(fallback int, names ...string) int {
		if i := h.Index(names...); i >= 0 {
			return i
		}
		return fallback
	}
	var (
		showIMDb = idx(0, "Show IMDbID", "ShowIMDbID")
		castTMDb = idx(1, "TMDb CastID", "CastTMDbID", "CastID")
		castName = idx(2, "CastName", "Cast Name")
		castIMDb = idx(3, "Cast IMDbID", "CastIMDbID")
		showTMDb = idx(4, "TMDb ShowID", "ShowTMDbID", "ShowID")
		showName = idx(5, "ShowName", "Show Name")
		episodes = idx(6, "EpisodeCount", "Episodes")
		seasons  = idx(7, "Seasons")
	)

	var rows []ViableCastRow
	for _, row := range values[1:] {
		r := ViableCastRow{
			ShowIMDbID:   CellAt(row, showIMDb),
			CastTMDbID:   CellAt(row, castTMDb),
			CastName:     CellAt(row, castName),
			CastIMDbID:   CellAt(row, castIMDb),
			ShowTMDbID:   CellAt(row, showTMDb),
			ShowName:     CellAt(row, showName),
			EpisodeCount: CellAt(row, episodes),
			Seasons:      CellAt(row, seasons),
		}
		if r.CastName == "" {
			continue
		}
		rows = append(rows, r)
	}
	return rows
}

// ShowInfoRow is a ShowInfo row, the sheet is addressed by header.
type ShowInfoRow struct {
	Row         int
	ShowID      string
	ShowName    string
	ShowIMDbID  string
	SeasonCount int
	MinEpisodes int
}

// LoadShowInfo reads ShowInfo rows that have a TMDb show id. ShowNameEdit wins over
// ShowName when it is filled.
func LoadShowInfo(values [][]string) []ShowInfoRow {
	if len(values) < 2 {
		return nil
	}
	h := NewHeader(values[0])
	var (
		showID      = h.Index("ShowID", "TMDbID", "TMDb ShowID")
		nameEdit    = h.Index("ShowNameEdit")
		name        = h.Index("ShowName", "Show Name")
		imdb        = h.IndexContaining("imdb")
		seasonCount = h.Index("SeasonCount")
		minEpisodes = h.Index("MinimumEpisodes", "MinEpisode")
	)

	var rows []ShowInfoRow
	for i, row := range values[1:] {
		r := ShowInfoRow{
			Row:         i + 2,
			ShowID:      CellAt(row, showID),
			ShowName:    CellAt(row, nameEdit),
			ShowIMDbID:  CellAt(row, imdb),
			SeasonCount: atoiOrZero(CellAt(row, seasonCount)),
			MinEpisodes: atoiOrZero(CellAt(row, minEpisodes)),
		}
		if r.ShowName == "" {
			r.ShowName = CellAt(row, name)
		}
		if r.ShowID == "" {
			continue
		}
		rows = append(rows, r)
	}
	return rows
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
