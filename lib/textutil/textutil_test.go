package textutil

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	testCases := []struct {
		name   string
		expect string
	}{
		{name: "Lisa Vanderpump", expect: "lisa vanderpump"},
		{name: "  Teresa   Giudice\n", expect: "teresa giudice"},
		{name: "Conan O’Brien", expect: "conan obrien"},
		{name: "Beyoncé Knowles", expect: "beyonce knowles"},
		{name: "Tom Sandoval (Himself)", expect: "tom sandoval"},
		{name: "Mary-Kate", expect: "mary kate"},
	}
	for _, test := range testCases {
		require.Equal(t, test.expect, NormalizeName(test.name), test.name)
	}
}

func TestNamesMatch(t *testing.T) {
	testCases := []struct {
		a, b   string
		expect bool
	}{
		{a: "O'Brien", b: "OBrien", expect: true},
		{a: "Kyle O'Brien", b: "kyle obrien", expect: true},
		{a: "Lisa Vanderpump", b: "LISA VANDERPUMP", expect: true},
		{a: "Lisa Vanderpump", b: "Lisa Vanderpump Todd", expect: true},
		{a: "Kandi Burruss-Tucker", b: "Kandi Burruss Tucker", expect: true},
		{a: "Lisa Vanderpump", b: "Lisa Rinna", expect: false},
		{a: "Lisa Vanderpump", b: "Kyle Richards", expect: false},
		{a: "Tom Schwartz", b: "Tom Sandoval", expect: false},
		{a: "", b: "Kyle Richards", expect: false},
	}
	for _, test := range testCases {
		require.Equal(t, test.expect, NamesMatch(test.a, test.b), "%q vs %q", test.a, test.b)
		require.Equal(t, test.expect, NamesMatch(test.b, test.a), "%q vs %q", test.b, test.a)
	}
}

func TestTokenRatio(t *testing.T) {
	require.Equal(t, 1.0, TokenRatio("Kyle Richards", "richards kyle"))
	require.Equal(t, 0.0, TokenRatio("Kyle Richards", ""))
	require.InDelta(t, 1.0/3.0, TokenRatio("Lisa Vanderpump", "Lisa Rinna"), 0.0001)
}

func TestSlug(t *testing.T) {
	require.Equal(t, "lisa-vanderpump", Slug("Lisa Vanderpump", "-"))
	require.Equal(t, "dj-pauly-d", Slug("DJ Pauly D.", "-"))
	require.Equal(t, "kyle_obrien", Slug("Kyle O'Brien", "_"))
}

func TestSplitList(t *testing.T) {
	diff := cmp.Diff(
		[]string{"Vanderpump Rules", "The Valley", "Below Deck"},
		SplitList("Vanderpump Rules, The Valley;  Below Deck ,"),
	)
	require.Empty(t, diff)
}

func TestMatchName(t *testing.T) {
	require.True(t, MatchName("Directed by", []string{"directed"}))
	require.False(t, MatchName("Cast", []string{"directed", "produced"}))
}
