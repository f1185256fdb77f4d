package wikipedia

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"realitease/internal/bio"
	"realitease/internal/components/telemetry"
	"testing"

	"github.com/stretchr/testify/require"
)

const articleHTML = `<html><body>
<div class="mw-parser-output">
  <table class="infobox">
    <tr><th>Born</th><td>Teresa Gorga<br><span class="bday">1972-05-18</span> (age 52)</td></tr>
  </table>
  <p>Teresa Giudice is an American television personality. She rose to fame on a reality show.
  Her daughters also appear on the series, and she has written several cookbooks.</p>
</div>
</body></html>`

const disambigHTML = `<html><body><div id="disambigbox">may refer to</div>
<div class="mw-parser-output"><span class="bday">1950-01-01</span></div></body></html>`

func TestLookup(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /w/api.php", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Teresa Giudice The Real Housewives of New Jersey", r.URL.Query().Get("srsearch"))
		fmt.Fprint(w, `{"query": {"search": [
			{"title": "Teresa (disambiguation)"},
			{"title": "Teresa"},
			{"title": "Teresa Giudice"}
		]}}`)
	})
	mux.HandleFunc("GET /wiki/{title}", func(w http.ResponseWriter, r *http.Request) {
		switch r.PathValue("title") {
		case "Teresa_Giudice":
			fmt.Fprint(w, articleHTML)
		case "Teresa":
			fmt.Fprint(w, disambigHTML)
		default:
			http.NotFound(w, r)
		}
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	source, err := NewSource(Options{BaseURL: server.URL}, nil, &telemetry.Recorder{})
	require.NoError(t, err)

	res, err := source.Lookup(context.Background(), bio.Person{
		Name:  "Teresa Giudice",
		Shows: []string{"The Real Housewives of New Jersey"},
	})
	require.NoError(t, err)
	require.Equal(t, "1972-05-18", res.Birthday)
	require.Equal(t, bio.GenderFemale, res.Gender)
	require.Contains(t, res.BioText, "American television personality")
}

func TestLookupNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"query": {"search": []}}`)
	}))
	defer server.Close()

	source, err := NewSource(Options{BaseURL: server.URL}, nil, &telemetry.Recorder{})
	require.NoError(t, err)

	_, err = source.Lookup(context.Background(), bio.Person{Name: "Nobody"})
	require.ErrorIs(t, err, bio.ErrNotFound)
}
