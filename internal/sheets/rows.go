package sheets

import (
	"fmt"
	"strings"
)

// Worksheet names in the Realitease workbook.
const (
	SheetCastInfo       = "CastInfo"
	SheetViableCast     = "ViableCast"
	SheetRealiteaseInfo = "RealiteaseInfo"
	SheetWWHLInfo       = "WWHLinfo"
	SheetShowInfo       = "ShowInfo"
)

// CastInfo columns.
const (
	CastInfoName          = "A"
	CastInfoCastTMDbID    = "B"
	CastInfoCastIMDbID    = "C"
	CastInfoShowName      = "D"
	CastInfoShowIMDbID    = "E"
	CastInfoShowTMDbID    = "F"
	CastInfoTotalEpisodes = "G"
	CastInfoSeasons       = "H"
)

// RealiteaseInfo columns.
const (
	RealiteaseName        = "A"
	RealiteaseCastIMDbID  = "B"
	RealiteaseCastTMDbID  = "C"
	RealiteaseShowNames   = "D"
	RealiteaseShowIMDbIDs = "E"
	RealiteaseShowTMDbIDs = "F"
	RealiteaseShowCount   = "G"
	RealiteaseGender      = "H"
	RealiteaseBirthday    = "I"
	RealiteaseZodiac      = "J"
)

var (
	CastInfoHeader = []string{
		"CastName", "TMDb CastID", "Cast IMDbID", "ShowName", "Show IMDbID", "Show TMDbID",
		"TotalEpisodes", "Seasons",
	}
	RealiteaseHeader = []string{
		"CastName", "CastIMDbID", "CastTMDbID", "ShowNames", "ShowIMDbIDs", "ShowTMDbIDs",
		"ShowCount", "Gender", "Birthday", "Zodiac",
	}
	WWHLHeader = []string{
		"TMDbID", "EpisodeMarker", "Season", "Episode", "AirDate", "GuestNames",
		"GuestStarTMDbIDs", "GuestStarIMDbIDs", "Cast_Source",
	}
)

// CellAt returns the trimmed value at a 0-based index, "" when the row is too short.
func CellAt(row []string, index int) string {
	if index < 0 || index >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[index])
}

func col(row []string, letter string) string {
	return CellAt(row, ColumnIndex(letter)-1)
}

// CastInfoRow is a CastInfo row together with its 1-based sheet row number.
type CastInfoRow struct {
	Row           int
	CastName      string
	CastTMDbID    string
	CastIMDbID    string
	ShowName      string
	ShowIMDbID    string
	ShowTMDbID    string
	TotalEpisodes string
	Seasons       string
}

func parseCastInfoRow(number int, row []string) CastInfoRow {
	return CastInfoRow{
		Row:           number,
		CastName:      col(row, CastInfoName),
		CastTMDbID:    col(row, CastInfoCastTMDbID),
		CastIMDbID:    col(row, CastInfoCastIMDbID),
		ShowName:      col(row, CastInfoShowName),
		ShowIMDbID:    col(row, CastInfoShowIMDbID),
		ShowTMDbID:    col(row, CastInfoShowTMDbID),
		TotalEpisodes: col(row, CastInfoTotalEpisodes),
		Seasons:       col(row, CastInfoSeasons),
	}
}

// Values returns the row as it is written to the sheet (A..H).
func (r CastInfoRow) Values() []any {
	return []any{
		r.CastName, r.CastTMDbID, r.CastIMDbID, r.ShowName,
		r.ShowIMDbID, r.ShowTMDbID, r.TotalEpisodes, r.Seasons,
	}
}

// RealiteaseRow is a RealiteaseInfo row together with its 1-based sheet row number.
type RealiteaseRow struct {
	Row         int
	CastName    string
	CastIMDbID  string
	CastTMDbID  string
	ShowNames   string
	ShowIMDbIDs string
	ShowTMDbIDs string
	ShowCount   string
	Gender      string
	Birthday    string
	Zodiac      string
}

func parseRealiteaseRow(number int, row []string) RealiteaseRow {
	return RealiteaseRow{
		Row:         number,
		CastName:    col(row, RealiteaseName),
		CastIMDbID:  col(row, RealiteaseCastIMDbID),
		CastTMDbID:  col(row, RealiteaseCastTMDbID),
		ShowNames:   col(row, RealiteaseShowNames),
		ShowIMDbIDs: col(row, RealiteaseShowIMDbIDs),
		ShowTMDbIDs: col(row, RealiteaseShowTMDbIDs),
		ShowCount:   col(row, RealiteaseShowCount),
		Gender:      col(row, RealiteaseGender),
		Birthday:    col(row, RealiteaseBirthday),
		Zodiac:      col(row, RealiteaseZodiac),
	}
}

// Values returns the row as it is written to the sheet (A..J).
func (r RealiteaseRow) Values() []any {
	return []any{
		r.CastName, r.CastIMDbID, r.CastTMDbID, r.ShowNames, r.ShowIMDbIDs,
		r.ShowTMDbIDs, r.ShowCount, r.Gender, r.Birthday, r.Zodiac,
	}
}

// WWHLRow is a single WWHL episode with its guests.
type WWHLRow struct {
	TMDbID       string
	Season       int
	Episode      int
	AirDate      string
	GuestNames   []string
	GuestTMDbIDs []string
	GuestIMDbIDs []string
	Source       string
}

// EpisodeMarker formats "S{season}E{episode}".
func EpisodeMarker(season, episode int) string {
	return fmt.Sprintf("S%dE%d", season, episode)
}

// Values returns [TMDbID, S{n}E{m}, n, m, air date, names, tmdb ids, imdb ids, source].
func (r WWHLRow) Values() []any {
	var imdb []string
	for _, id := range r.GuestIMDbIDs {
		if id != "" {
			imdb = append(imdb, id)
		}
	}
	return []any{
		r.TMDbID,
		EpisodeMarker(r.Season, r.Episode),
		r.Season,
		r.Episode,
		r.AirDate,
		strings.Join(r.GuestNames, ", "),
		strings.Join(r.GuestTMDbIDs, ", "),
		strings.Join(imdb, ", "),
		r.Source,
	}
}

// Header maps header names to 0-based column indexes, names are compared lowercase with
// surrounding spaces removed.
type Header map[string]int

func NewHeader(row []string) Header {
	h := Header{}
	for i, name := range row {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, exists := h[key]; !exists && key != "" {
			h[key] = i
		}
	}
	return h
}

// Index returns the index of the first name present in the header, -1 if none is.
func (h Header) Index(names ...string) int {
	for _, name := range names {
		if i, ok := h[strings.ToLower(strings.TrimSpace(name))]; ok {
			return i
		}
	}
	return -1
}

// IndexContaining returns the first (leftmost) column whose name contains every part.
func (h Header) IndexContaining(parts ...string) int {
	best := -1
	for name, i := range h {
		match := true
		for _, p := range parts {
			if !strings.Contains(name, strings.ToLower(p)) {
				match = false
				break
			}
		}
		if match && (best == -1 || i < best) {
			best = i
		}
	}
	return best
}
