package bio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestZodiac(t *testing.T) {
	testCases := []struct {
		date   string
		expect string
	}{
		{date: "1973-07-15", expect: "Cancer"},
		{date: "1973-07-22", expect: "Cancer"},
		{date: "1973-07-23", expect: "Leo"},
		{date: "1990-01-01", expect: "Capricorn"},
		{date: "1990-01-19", expect: "Capricorn"},
		{date: "1990-01-20", expect: "Aquarius"},
		{date: "1990-02-18", expect: "Aquarius"},
		{date: "1990-02-19", expect: "Pisces"},
		{date: "1990-03-20", expect: "Pisces"},
		{date: "1990-03-21", expect: "Aries"},
		{date: "1990-04-19", expect: "Aries"},
		{date: "1990-04-20", expect: "Taurus"},
		{date: "1990-05-21", expect: "Gemini"},
		{date: "1990-06-21", expect: "Cancer"},
		{date: "1990-08-23", expect: "Virgo"},
		{date: "1990-09-23", expect: "Libra"},
		{date: "1990-10-23", expect: "Scorpio"},
		{date: "1990-11-21", expect: "Scorpio"},
		{date: "1990-11-22", expect: "Sagittarius"},
		{date: "1990-12-21", expect: "Sagittarius"},
		{date: "1990-12-22", expect: "Capricorn"},
		{date: "2000-02-29", expect: "Pisces"},
		{date: "1990-13-01", expect: ""},
		{date: "July 15", expect: ""},
		{date: "", expect: ""},
	}
	for _, test := range testCases {
		require.Equal(t, test.expect, Zodiac(test.date), test.date)
	}
}

func TestZodiacCoversEveryDay(t *testing.T) {
	signs := map[string]struct{}{}
	for _, s := range ZodiacSigns {
		signs[s] = struct{}{}
	}

	seen := map[string]int{}
	day := time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)
	for day.Year() == 2000 {
		sign := ZodiacFor(day.Month(), day.Day())
		_, ok := signs[sign]
		require.True(t, ok, "%s has no sign", day.Format("01-02"))
		seen[sign]++
		day = day.AddDate(0, 0, 1)
	}
	require.Len(t, seen, 12)

	require.Equal(t, "", ZodiacFor(time.February, 30))
	require.Equal(t, "", ZodiacFor(time.April, 31))
}
