package bio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	testCases := []struct {
		text   string
		expect string
	}{
		{text: "July 15, 1973", expect: "1973-07-15"},
		{text: "15 July 1973", expect: "1973-07-15"},
		{text: "07/15/1973", expect: "1973-07-15"},
		{text: "1973-07-15", expect: "1973-07-15"},
		{text: "July 15, 1973 (age 39)", expect: "1973-07-15"},
		{text: "15 July 1973 (age 52) Jersey City, New Jersey", expect: "1973-07-15"},
		{text: "Born: July 15th, 1973", expect: "1973-07-15"},
		{text: "Birthday Jul 15 1973", expect: "1973-07-15"},
		{text: "15th of July, 1973", expect: "1973-07-15"},
		{text: "Sept. 4, 1981", expect: "1981-09-04"},
		{text: "15/07/1973", expect: "1973-07-15"},
		{text: "1973/7/15", expect: "1973-07-15"},
		{text: "1985-03-02T00:00:00Z", expect: "1985-03-02"},
		{text: "She was born in Miami on March 2, 1985 to a family of...", expect: "1985-03-02"},
		{text: "February 30, 1980", expect: ""},
		{text: "13/13/1980", expect: ""},
		{text: "Season 3, episode 12", expect: ""},
		{text: "", expect: ""},
	}
	for _, test := range testCases {
		require.Equal(t, test.expect, ParseDate(test.text), test.text)
	}
}

func TestParseDateIsIdempotent(t *testing.T) {
	for _, text := range []string{"July 15, 1973", "02/29/2000", "1 jan 1990"} {
		once := ParseDate(text)
		require.NotEmpty(t, once, text)
		require.Equal(t, once, ParseDate(once))
	}
}

func TestFormatDate(t *testing.T) {
	require.Equal(t, "2000-02-29", FormatDate(2000, time.February, 29))
	require.Equal(t, "", FormatDate(1999, time.February, 29))
	require.Equal(t, "", FormatDate(1850, time.January, 1))
}
