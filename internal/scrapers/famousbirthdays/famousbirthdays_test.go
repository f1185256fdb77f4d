package famousbirthdays

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"realitease/internal/bio"
	"realitease/internal/components/telemetry"
	"realitease/lib/htmlutil"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestProfilePaths(t *testing.T) {
	testCases := []struct {
		name     string
		expected []string
	}{
		{name: "Lisa Vanderpump", expected: []string{"/people/lisa-vanderpump.html", "/people/vanderpump-lisa.html"}},
		{name: "Kyle Richards Umansky", expected: []string{"/people/kyle-richards-umansky.html"}},
		{name: "D'Andra Simmons", expected: []string{"/people/dandra-simmons.html", "/people/simmons-dandra.html"}},
	}
	for _, tc := range testCases {
		require.Empty(t, cmp.Diff(tc.expected, ProfilePaths(tc.name)), tc.name)
	}
}

func TestBirthday(t *testing.T) {
	testCases := []struct {
		name     string
		html     string
		expected string
	}{
		{
			name:     "json-ld",
			html:     `<script type="application/ld+json">{"@type": "Person", "birthDate": "1960-09-15T00:00:00-05:00"}</script>`,
			expected: "1960-09-15",
		},
		{
			name:     "bio module",
			html:     `<div class="bio-module"><span>Birthday</span> September 15, 1960</div>`,
			expected: "1960-09-15",
		},
		{
			name:     "bare date in text",
			html:     `<p>Joined the show on March 3, 2010 as a friend.</p>`,
			expected: "2010-03-03",
		},
		{
			name:     "nothing",
			html:     `<p>No dates here</p>`,
			expected: "",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			doc, err := htmlutil.Parse(tc.html)
			require.NoError(t, err)
			require.Equal(t, tc.expected, Birthday(doc))
		})
	}
}

func TestLookup(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /people/{slug}", func(w http.ResponseWriter, r *http.Request) {
		switch r.PathValue("slug") {
		case "vanderpump-lisa.html":
			fmt.Fprint(w, `<h1>Lisa Vanderpump</h1>
				<div class="bio-module">Birthday September 15, 1960</div>
				<p>She is a restaurateur. She has appeared on several reality shows.</p>`)
		case "impostor.html":
			fmt.Fprint(w, `<h1>Someone Else</h1><div class="bio-module">Birthday May 1, 1990</div>`)
		default:
			http.NotFound(w, r)
		}
	})
	mux.HandleFunc("GET /search/people", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<div class="search-result"><a href="/people/impostor.html">Someone Else</a></div>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	source, err := NewSource(Options{BaseURL: server.URL}, nil, &telemetry.Recorder{})
	require.NoError(t, err)

	res, err := source.Lookup(context.Background(), bio.Person{Name: "Lisa Vanderpump"})
	require.NoError(t, err)
	require.Equal(t, "1960-09-15", res.Birthday)
	require.Equal(t, bio.GenderFemale, res.Gender)

	_, err = source.Lookup(context.Background(), bio.Person{Name: "Brand New"})
	require.ErrorIs(t, err, bio.ErrNotFound)
}
