package google

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

func TestQuery(t *testing.T) {
	require.Equal(
		t,
		"Kandi Burruss RHOA Kandi & the Gang birthday birth date reality tv",
		Query(bio.Person{Name: "Kandi Burruss", Shows: []string{"RHOA", "Kandi & the Gang", "Xscape"}}),
	)
	require.Equal(t, "Solo birthday birth date reality tv", Query(bio.Person{Name: "Solo"}))
}

func TestPriorityLinks(t *testing.T) {
	doc, err := htmlutil.Parse(`
		<a href="/url?q=https://en.wikipedia.org/wiki/Kandi_Burruss&sa=U">wiki</a>
		<a href="/url?q=https://example.com/kandi&sa=U">other</a>
		<a href="https://www.famousbirthdays.com/people/kandi-burruss.html">fb</a>
		<a href="/search?q=next">next</a>`)
	require.NoError(t, err)
	require.Empty(t, cmp.Diff([]string{
		"https://en.wikipedia.org/wiki/Kandi_Burruss",
		"https://www.famousbirthdays.com/people/kandi-burruss.html",
	}, PriorityLinks(context.Background(), doc)))
}

func TestLookupFollowsLinks(t *testing.T) {
	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("GET /search", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<a href="/url?q=%s/wikipedia.org/Kandi">result</a>`, server.URL)
	})
	mux.HandleFunc("GET /wikipedia.org/Kandi", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<div class="mw-parser-output">
			<table class="infobox"><tr><th>Born</th><td>May 17, 1976</td></tr></table>
			<p>She is a singer. She was a member of a group.</p></div>`)
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	source, err := NewSource(Options{BaseURL: server.URL}, nil, &telemetry.Recorder{})
	require.NoError(t, err)

	res, err := source.Lookup(context.Background(), bio.Person{Name: "Kandi Burruss"})
	require.NoError(t, err)
	require.Equal(t, "1976-05-17", res.Birthday)
	require.Equal(t, bio.GenderFemale, res.Gender)
}
