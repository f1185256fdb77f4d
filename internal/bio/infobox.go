package bio

import (
	"realitease/lib/htmlutil"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// label keys (lowercased, compared after trimming ':') that mark a birth date row
var birthLabelKeys = []string{
	"born", "birth", "birth date", "birthdate", "date of birth", "dob", "birthday",
	"birth_date", "born on", "birth_day", "date born",
}

func isBirthLabel(label string) bool {
	label = strings.Trim(strings.ToLower(htmlutil.CleanText(label)), ": ")
	if label == "" || strings.Contains(label, "place") {
		return false
	}
	for _, k := range birthLabelKeys {
		if label == k || strings.HasPrefix(label, k+" ") {
			return true
		}
	}
	return false
}

const infoboxSelector = ".portable-infobox, .infobox, table.wikitable, .pi-data, aside"

// ExtractBirthday runs the infobox strategies over a wiki page in order and returns the
// first birth date that parses:
//   - span.bday and time[itemprop=birthDate][datetime]
//   - portable-infobox data items keyed by data-source or label
//   - table rows (th/td pairs and bold label cells)
//   - microdata and birth/born classes
//   - short infobox texts that happen to parse as dates
func ExtractBirthday(root *goquery.Selection) string {
	strategies := []func(*goquery.Selection) string{
		birthdayFromMarkup,
		birthdayFromPortableInfobox,
		birthdayFromTables,
		birthdayFromMicrodata,
		birthdayFromShortTexts,
	}
	for _, strategy := range strategies {
		if date := strategy(root); date != "" {
			return date
		}
	}
	return ""
}

func birthdayFromMarkup(root *goquery.Selection) string {
	if date := ParseDate(htmlutil.Text(root.Find("span.bday").First())); date != "" {
		return date
	}
	var found string
	root.Find("time[itemprop=birthDate][datetime], time[datetime]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		dt, _ := s.Attr("datetime")
		found = ParseDate(dt)
		return found == ""
	})
	return found
}

func birthdayFromPortableInfobox(root *goquery.Selection) string {
	var found string
	root.Find(".portable-infobox .pi-item.pi-data, .pi-item.pi-data").EachWithBreak(func(_ int, item *goquery.Selection) bool {
		source := strings.ToLower(item.AttrOr("data-source", ""))
		label := htmlutil.Text(item.Find(".pi-data-label").First())
		if !strings.Contains(source, "birth") && !strings.Contains(source, "born") && !isBirthLabel(label) {
			return true
		}
		value := item.Find(".pi-data-value").First()
		if value.Length() == 0 {
			value = item
		}
		found = ParseDate(htmlutil.Text(value))
		return found == ""
	})
	return found
}

func birthdayFromTables(root *goquery.Selection) string {
	var found string
	root.Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		var label, value string
		if th := row.Find("th").First(); th.Length() > 0 {
			label = htmlutil.Text(th)
			value = htmlutil.Text(row.Find("td").First())
		} else if cells := row.Find("td"); cells.Length() >= 2 {
			label = htmlutil.Text(cells.Eq(0))
			value = htmlutil.Text(cells.Eq(1))
		}
		if bold := row.Find("td b, td strong").First(); label == "" && bold.Length() > 0 {
			label = htmlutil.Text(bold)
			value = htmlutil.Text(bold.Closest("td").Next())
		}
		if !isBirthLabel(label) {
			return true
		}
		found = ParseDate(value)
		return found == ""
	})
	return found
}

func birthdayFromMicrodata(root *goquery.Selection) string {
	var found string
	root.Find(`[itemprop=birthDate], [data-source=birth_date], [class*=birth], [class*=born]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if content, ok := s.Attr("content"); ok {
			found = ParseDate(content)
		}
		if found == "" {
			found = ParseDate(htmlutil.Text(s))
		}
		return found == ""
	})
	return found
}

func birthdayFromShortTexts(root *goquery.Selection) string {
	var found string
	root.Find(infoboxSelector).Find("*").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := htmlutil.Text(s)
		if len(text) == 0 || len(text) >= 100 {
			return true
		}
		found = ParseDate(text)
		return found == ""
	})
	return found
}

// ExtractInfoboxGender reads an explicit gender field from a portable infobox.
func ExtractInfoboxGender(root *goquery.Selection) Gender {
	gender := GenderUnknown
	root.Find(".pi-item.pi-data, tr").EachWithBreak(func(_ int, item *goquery.Selection) bool {
		source := strings.ToLower(item.AttrOr("data-source", ""))
		label := strings.ToLower(htmlutil.Text(item.Find(".pi-data-label, th").First()))
		if source != "gender" && !strings.Contains(label, "gender") {
			return true
		}
		value := item.Find(".pi-data-value, td").First()
		if value.Length() == 0 {
			value = item
		}
		gender = GenderFromText(htmlutil.Text(value))
		return gender == GenderUnknown
	})
	return gender
}

// ArticleText returns the prose of a MediaWiki article without its infobox and navigation boxes.
func ArticleText(root *goquery.Selection) string {
	body := root.Find(".mw-parser-output").First()
	if body.Length() == 0 {
		body = root
	}
	return htmlutil.TextWithout(body, ".portable-infobox", ".infobox", ".navbox", ".mw-collapsible", "script", "style")
}

// IsRedirectOrDisambiguation reports pages that do not describe a single person.
func IsRedirectOrDisambiguation(root *goquery.Selection) bool {
	text := strings.ToLower(htmlutil.Text(root))
	return strings.Contains(text, "this page is a redirect") ||
		strings.Contains(text, "disambiguation")
}
