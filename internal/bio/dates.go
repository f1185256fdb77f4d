package bio

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// full month names and their three letter abbreviations, plus "sept"
var months = func() map[string]time.Month {
	out := map[string]time.Month{"sept": time.September}
	for m := time.January; m <= time.December; m++ {
		name := strings.ToLower(m.String())
		out[name] = m
		out[name[:3]] = m
	}
	return out
}()

var (
	whitespaceRe   = regexp.MustCompile(`\s+`)
	ageParenRe     = regexp.MustCompile(`\s*\(\s*age[^)]*\)`)
	parenRe        = regexp.MustCompile(`\s*\([^)]*\)`)
	leadingLabelRe = regexp.MustCompile(`^(?:birth\s*date|birthday|born|date of birth|dob)\s*(?:on)?\s*[:\-]?\s*`)

	isoDateRe      = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})(?:$|[^\d])`)
	monthDayYearRe = regexp.MustCompile(`\b([a-z]+)\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})\b`)
	dayMonthYearRe = regexp.MustCompile(`\b(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?([a-z]+)\.?,?\s+(\d{4})\b`)
	numericDateRe  = regexp.MustCompile(`\b(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{4})\b`)
	yearFirstRe    = regexp.MustCompile(`\b(\d{4})[/.](\d{1,2})[/.](\d{1,2})\b`)
)

// FormatDate renders a date as YYYY-MM-DD, it returns "" when the date does not exist
// in the calendar or the year is implausible for a living cast member.
func FormatDate(year int, month time.Month, day int) string {
	if year < 1900 || year > 2100 || month < time.January || month > time.December || day < 1 {
		return ""
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, int(month), day)
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}

// NormalizeDateText lowercases and trims text, removing "(age N)" and other parentheticals
// along with a leading "Born"/"Birthday" style label.
func NormalizeDateText(text string) string {
	text = strings.ToLower(whitespaceRe.ReplaceAllString(text, " "))
	text = ageParenRe.ReplaceAllString(text, "")
	text = parenRe.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)
	text = leadingLabelRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// ParseDate finds a birth date in free text and returns it as YYYY-MM-DD, or "" when no
// supported format parses. Supported, in order of precedence:
//
//	1973-07-15
//	July 15, 1973 / Jul 15th 1973
//	15 July 1973 / 15th of July, 1973
//	07/15/1973 (month first; day first when the first number is > 12)
//	1973/07/15
func ParseDate(text string) string {
	text = NormalizeDateText(text)
	if text == "" {
		return ""
	}

	for _, m := range isoDateRe.FindAllStringSubmatch(text, -1) {
		if out := FormatDate(atoi(m[1]), time.Month(atoi(m[2])), atoi(m[3])); out != "" {
			return out
		}
	}
	for _, m := range monthDayYearRe.FindAllStringSubmatch(text, -1) {
		month, ok := months[m[1]]
		if !ok {
			continue
		}
		if out := FormatDate(atoi(m[3]), month, atoi(m[2])); out != "" {
			return out
		}
	}
	for _, m := range dayMonthYearRe.FindAllStringSubmatch(text, -1) {
		month, ok := months[m[2]]
		if !ok {
			continue
		}
		if out := FormatDate(atoi(m[3]), month, atoi(m[1])); out != "" {
			return out
		}
	}
	for _, m := range numericDateRe.FindAllStringSubmatch(text, -1) {
		first, second, year := atoi(m[1]), atoi(m[2]), atoi(m[3])
		if first > 12 {
			first, second = second, first
		}
		if out := FormatDate(year, time.Month(first), second); out != "" {
			return out
		}
	}
	for _, m := range yearFirstRe.FindAllStringSubmatch(text, -1) {
		if out := FormatDate(atoi(m[1]), time.Month(atoi(m[2])), atoi(m[3])); out != "" {
			return out
		}
	}
	return ""
}
