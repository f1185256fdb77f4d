package tmdb

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"realitease/internal/bio"
	"realitease/internal/components/telemetry"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler, opts Options) (*Client, *[]time.Duration) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts.BaseURL = server.URL
	if opts.Bearer == "" && opts.APIKey == "" {
		opts.Bearer = "token"
	}
	client, err := NewClient(opts, &telemetry.Recorder{})
	require.NoError(t, err)

	var slept []time.Duration
	client.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return client, &slept
}

func TestAuth(t *testing.T) {
	testCases := []struct {
		name   string
		opts   Options
		header string
		apiKey string
	}{
		{name: "bearer", opts: Options{Bearer: "abc"}, header: "Bearer abc"},
		{name: "api key", opts: Options{APIKey: "k"}, apiKey: "k"},
		{name: "bearer wins", opts: Options{Bearer: "abc", APIKey: "k"}, header: "Bearer abc"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("GET /tv/{id}", func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, tc.header, r.Header.Get("Authorization"))
				require.Equal(t, tc.apiKey, r.URL.Query().Get("api_key"))
				fmt.Fprintf(w, `{"id": %s, "name": "WWHL", "number_of_seasons": 22}`, r.PathValue("id"))
			})
			client, _ := newTestClient(t, mux, tc.opts)

			tv, err := client.TV(context.Background(), "22980")
			require.NoError(t, err)
			require.Equal(t, TV{ID: 22980, Name: "WWHL", NumberOfSeasons: 22}, tv)
		})
	}
}

func TestMissingCredentials(t *testing.T) {
	_, err := NewClient(Options{}, &telemetry.Recorder{})
	require.Error(t, err)
}

func TestRetryOnRateLimit(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /person/{id}", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"id": 7, "name": "Andy Cohen", "gender": 2, "birthday": "1968-06-02"}`)
	})
	client, slept := newTestClient(t, mux, Options{})

	p, err := client.Person(context.Background(), "7")
	require.NoError(t, err)
	require.Equal(t, "Andy Cohen", p.Name)
	require.Equal(t, int32(3), calls.Load())
	require.Empty(t, cmp.Diff([]time.Duration{2 * time.Second, 4 * time.Second}, *slept))
}

func TestRetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /person/{id}", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	client, slept := newTestClient(t, mux, Options{})

	_, err := client.Person(context.Background(), "7")
	require.Error(t, err)
	require.Equal(t, int32(3), calls.Load())
	require.Len(t, *slept, 2)
}

func TestNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /tv/{id}/season/{n}/aggregate_credits", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("n") == "9" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"cast": [{"id": 1, "name": "Teresa Giudice", "total_episode_count": 10}]}`)
	})
	mux.HandleFunc("GET /person/{id}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	client, _ := newTestClient(t, mux, Options{})

	cast, err := client.SeasonAggregateCredits(context.Background(), "1", 9)
	require.NoError(t, err)
	require.Empty(t, cast)

	cast, err = client.SeasonAggregateCredits(context.Background(), "1", 1)
	require.NoError(t, err)
	require.Len(t, cast, 1)
	require.Equal(t, "Teresa Giudice", cast[0].DisplayName())

	_, err = client.Person(context.Background(), "404")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSourceLookup(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /find/{id}", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "imdb_id", r.URL.Query().Get("external_source"))
		fmt.Fprint(w, `{"person_results": [{"id": 12, "name": "Lisa Vanderpump", "gender": 1}]}`)
	})
	mux.HandleFunc("GET /person/{id}", func(w http.ResponseWriter, r *http.Request) {
		switch r.PathValue("id") {
		case "12":
			fmt.Fprint(w, `{"id": 12, "gender": 1, "birthday": "1960-09-15", "biography": "She is a restaurateur."}`)
		case "13":
			fmt.Fprint(w, `{"id": 13, "gender": 3, "birthday": null}`)
		default:
			http.NotFound(w, r)
		}
	})
	client, _ := newTestClient(t, mux, Options{})
	source := NewSource(client)

	testCases := []struct {
		name     string
		person   bio.Person
		expected bio.Result
		err      error
	}{
		{
			name:   "by imdb id",
			person: bio.Person{Name: "Lisa Vanderpump", IMDbID: "nm0889386"},
			expected: bio.Result{
				Gender:   bio.GenderFemale,
				Birthday: "1960-09-15",
				BioText:  "She is a restaurateur.",
			},
		},
		{
			name:     "non-binary code is not written",
			person:   bio.Person{Name: "Someone", TMDbID: "13"},
			expected: bio.Result{},
		},
		{
			name:   "unknown person",
			person: bio.Person{Name: "Nobody", TMDbID: "99"},
			err:    bio.ErrNotFound,
		},
		{
			name:   "no ids",
			person: bio.Person{Name: "Nobody"},
			err:    bio.ErrNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := source.Lookup(context.Background(), tc.person)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			require.Empty(t, cmp.Diff(tc.expected, res))
		})
	}
}

func TestPersonExternalIDsCached(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /person/{id}/external_ids", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.PathValue("id") == "404" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprintf(w, `{"id": %s, "imdb_id": "nm0000%s"}`, r.PathValue("id"), r.PathValue("id"))
	})
	client, _ := newTestClient(t, mux, Options{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ids, err := client.PersonExternalIDs(ctx, "101")
		require.NoError(t, err)
		require.Equal(t, "nm0000101", ids.IMDbID)
	}
	require.EqualValues(t, 1, calls.Load())

	for i := 0; i < 2; i++ {
		_, err := client.PersonExternalIDs(ctx, "404")
		require.ErrorIs(t, err, ErrNotFound)
	}
	require.EqualValues(t, 3, calls.Load())
}
