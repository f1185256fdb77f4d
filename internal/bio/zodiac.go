package bio

import (
	"time"
)

type zodiacSign struct {
	name string
	// inclusive start (month, day), the sign runs until the next sign's start
	month time.Month
	day   int
}

// ordered by start date within the calendar year, Capricorn wraps around new year
var zodiacSigns = []zodiacSign{
	{name: "Capricorn", month: time.January, day: 1},
	{name: "Aquarius", month: time.January, day: 20},
	{name: "Pisces", month: time.February, day: 19},
	{name: "Aries", month: time.March, day: 21},
	{name: "Taurus", month: time.April, day: 20},
	{name: "Gemini", month: time.May, day: 21},
	{name: "Cancer", month: time.June, day: 21},
	{name: "Leo", month: time.July, day: 23},
	{name: "Virgo", month: time.August, day: 23},
	{name: "Libra", month: time.September, day: 23},
	{name: "Scorpio", month: time.October, day: 23},
	{name: "Sagittarius", month: time.November, day: 22},
	{name: "Capricorn", month: time.December, day: 22},
}

// ZodiacSigns lists the twelve sign names.
var ZodiacSigns = []string{
	"Aries", "Taurus", "Gemini", "Cancer", "Leo", "Virgo",
	"Libra", "Scorpio", "Sagittarius", "Capricorn", "Aquarius", "Pisces",
}

// ZodiacFor returns the sign for a month/day, or "" if the day does not exist
// (February 29 is accepted).
func ZodiacFor(month time.Month, day int) string {
	if FormatDate(2000, month, day) == "" {
		return ""
	}
	sign := ""
	for _, s := range zodiacSigns {
		if month > s.month || (month == s.month && day >= s.day) {
			sign = s.name
		}
	}
	return sign
}

// Zodiac returns the sign for a YYYY-MM-DD date, or "" if the date is not in that format.
func Zodiac(date string) string {
	if len(date) < 10 {
		return ""
	}
	t, err := time.Parse("2006-01-02", date[:10])
	if err != nil {
		return ""
	}
	return ZodiacFor(t.Month(), t.Day())
}
