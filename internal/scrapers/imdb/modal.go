package imdb

import (
	"realitease/lib/htmlutil"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	modalRootSelector   = `[role="dialog"], .ipc-promptable-base__content, .ipc-prompt`
	episodeItemSelector = "a.episodic-credits-bottomsheet__menu-item"
	// maxInspected bounds how many nodes per selector are read.
	maxInspected = 8
)

var (
	countSelectors = []string{
		".ipc-prompt-header__subtitle li.ipc-inline-list__item",
		".ipc-prompt-header__text li.ipc-inline-list__item",
		"ul.ipc-inline-list li.ipc-inline-list__item",
		"li.ipc-inline-list__item",
		".ipc-prompt-header ul li",
		".ipc-prompt-header li",
		".ipc-prompt-header",
	}
	markerSelectors = []string{
		episodeItemSelector,
		`a[role="menuitem"]`,
		`[data-testid*="episode"]`,
		"li.ipc-inline-list__item",
		"ul.ipc-inline-list li",
		`[class*="episode"]`,
		`[class*="credit"]`,
		".ipc-metadata-list-summary-item",
	}
	markerPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bS\s*(\d+)\s*[.·\-]?\s*E\s*\d+`),
		regexp.MustCompile(`(?i)\bSeason\s*(\d+)\b`),
		regexp.MustCompile(`\b(\d+)x\d+\b`),
	}
	seasonTabRegex = regexp.MustCompile(`season-tab-(\d+)`)
	yearRegex      = regexp.MustCompile(`^(?:19|20)\d{2}$`)
)

// YearTab is a year filter of the episodes modal, seasons of shows listed by year
// are read by activating each tab.
type YearTab struct {
	Year string
	Path string
}

// Modal is what one read of the episodes modal yields.
type Modal struct {
	Episodes   int
	SeasonTabs []int
	YearTabs   []YearTab
	// MarkerSeason is the season of the first S{n}.E{m} marker, 0 when none.
	MarkerSeason int
}

func modalRoot(doc *goquery.Selection) *goquery.Selection {
	if root := doc.Find(modalRootSelector).First(); root.Length() > 0 {
		return root
	}
	return doc
}

// ParseModal reads the episode count, season tabs, year tabs and the first episode
// marker from the HTML of a page with the episodes modal open.
func ParseModal(contents string) (Modal, error) {
	doc, err := htmlutil.Parse(contents)
	if err != nil {
		return Modal{}, err
	}
	root := modalRoot(doc.Selection)
	return Modal{
		Episodes:     modalEpisodes(root),
		SeasonTabs:   SeasonTabs(root),
		YearTabs:     yearTabs(root),
		MarkerSeason: MarkerSeason(root),
	}, nil
}

func modalEpisodes(root *goquery.Selection) int {
	for _, selector := range countSelectors {
		n := 0
		root.Find(selector).AddSelection(root.Filter(selector)).EachWithBreak(func(i int, item *goquery.Selection) bool {
			if i >= maxInspected {
				return false
			}
			if count, ok := EpisodeCount(htmlutil.Text(item)); ok {
				n = count
				return false
			}
			return true
		})
		if n > 0 {
			return n
		}
	}
	return root.Find(episodeItemSelector).Length()
}

// SeasonTabs reads season numbers from data-testid="season-tab-N" tabs.
func SeasonTabs(root *goquery.Selection) []int {
	seen := map[int]bool{}
	root.Find(`li[data-testid^="season-tab-"]`).Each(func(_ int, tab *goquery.Selection) {
		if m := seasonTabRegex.FindStringSubmatch(tab.AttrOr("data-testid", "")); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				seen[n] = true
			}
			return
		}
		if n, err := strconv.Atoi(htmlutil.Text(tab)); err == nil {
			seen[n] = true
		}
	})
	return sortedSeasons(seen)
}

func yearTabs(root *goquery.Selection) []YearTab {
	var tabs []YearTab
	root.Find(`li[role="tab"]`).Each(func(_ int, tab *goquery.Selection) {
		text := htmlutil.Text(tab)
		if yearRegex.MatchString(text) {
			tabs = append(tabs, YearTab{Year: text, Path: CSSPath(tab)})
		}
	})
	return tabs
}

// SeasonFromMarker reads the season out of texts like "S3.E7", "S3 · E7", "Season 3"
// or "3x07".
func SeasonFromMarker(text string) (int, bool) {
	for _, re := range markerPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			n, err := strconv.Atoi(m[1])
			if err == nil && n > 0 {
				return n, true
			}
		}
	}
	return 0, false
}

// MarkerSeason returns the season of the first episode marker in the modal, looking at
// episode items first and the whole modal text last.
func MarkerSeason(root *goquery.Selection) int {
	for _, selector := range markerSelectors {
		season := 0
		root.Find(selector).EachWithBreak(func(i int, item *goquery.Selection) bool {
			if i >= maxInspected {
				return false
			}
			if n, ok := SeasonFromMarker(htmlutil.Text(item)); ok {
				season = n
				return false
			}
			return true
		})
		if season > 0 {
			return season
		}
	}
	if n, ok := SeasonFromMarker(htmlutil.Text(root)); ok {
		return n
	}
	return 0
}

func sortedSeasons(set map[int]bool) []int {
	out := make([]int, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// FormatSeasons renders seasons the way the sheet stores them, "1, 2, 5".
func FormatSeasons(seasons []int) string {
	parts := make([]string, len(seasons))
	for i, s := range seasons {
		parts[i] = strconv.Itoa(s)
	}
	return strings.Join(parts, ", ")
}

// Seasons picks the season list of a modal read: season tabs, then the seasons
// collected from year tabs, then the first episode marker, and "1" when nothing is
// found.
func (m Modal) Seasons(fromYears []int) []int {
	switch {
	case len(m.SeasonTabs) > 0:
		return m.SeasonTabs
	case len(fromYears) > 0:
		set := map[int]bool{}
		for _, s := range fromYears {
			set[s] = true
		}
		return sortedSeasons(set)
	case m.MarkerSeason > 0:
		return []int{m.MarkerSeason}
	}
	return []int{1}
}
