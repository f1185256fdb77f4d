package restyutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

func TestRedactURL(t *testing.T) {
	r := newRedactor([]string{"session"})

	testCases := []struct {
		in     string
		expect string
	}{
		{in: "https://api.themoviedb.org/3/tv/22980", expect: "https://api.themoviedb.org/3/tv/22980"},
		{
			in:     "https://api.themoviedb.org/3/tv/22980?api_key=secret&language=en-US",
			expect: "https://api.themoviedb.org/3/tv/22980?api_key=REDACTED&language=en-US",
		},
		{in: "https://example.com/?Session=abc", expect: "https://example.com/?Session=REDACTED"},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.expect, r.url(tc.in))
	}
}

func TestRedactHeaders(t *testing.T) {
	r := newRedactor(nil)
	out := r.headers(http.Header{
		"Authorization": {"Bearer secret"},
		"Accept":        {"application/json"},
	})
	require.Equal(t, "Accept: application/json\nAuthorization: REDACTED", out)
}

func TestSafeFilename(t *testing.T) {
	require.Equal(t, "GET_https_example.com_wiki_Kandi_Burruss", SafeFilename("GET", "https://example.com/wiki/Kandi Burruss"))
	require.Equal(t, "", SafeFilename("  ", "///"))
	require.Len(t, SafeFilename(strings.Repeat("a", 400)), 180)
}

func TestInstrumentClientDumps(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `{"id": 22980}`)
	}))
	t.Cleanup(server.Close)

	dir := t.TempDir()
	output, err := NewFilesystemOutput(filepath.Join(dir, "tmdb"))
	require.NoError(t, err)

	client := resty.New().SetBaseURL(server.URL).SetAuthToken("secret-token")
	InstrumentClient(client, InstrumentOptions{Source: "tmdb", Output: output})

	_, err = client.R().SetQueryParam("api_key", "secret-key").Get("/tv/22980")
	require.NoError(t, err)
	_, err = client.R().Get("/missing")
	require.NoError(t, err)

	entries, err := os.ReadDir(output.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.True(t, strings.HasPrefix(entries[0].Name(), "0001_GET_"))

	dump, err := os.ReadFile(filepath.Join(output.Dir(), entries[0].Name()))
	require.NoError(t, err)
	require.Contains(t, string(dump), `{"id": 22980}`)
	require.Contains(t, string(dump), "api_key=REDACTED")
	require.NotContains(t, string(dump), "secret")
}

func TestInstrumentClientWithoutOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	}))
	t.Cleanup(server.Close)

	client := resty.New()
	InstrumentClient(client, InstrumentOptions{Source: "wikipedia"})
	res, err := client.R().Get(server.URL)
	require.NoError(t, err)
	require.Equal(t, "ok", res.String())
}
