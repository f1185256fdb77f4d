// Package wikipedia searches English Wikipedia and reads birth dates and gender from
// the matching article.
package wikipedia

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"realitease/internal/bio"
	"realitease/internal/components/telemetry"
	"realitease/internal/scrapers"
	"realitease/internal/webcache"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const BaseURL = "https://en.wikipedia.org"

const (
	report_source_search = "source.search"
	report_source_page   = "source.page"
)

type Options struct {
	BaseURL      string
	RequestDelay time.Duration
	DebugDir     string
}

type Source struct {
	http    *resty.Client
	cache   *webcache.Cache
	baseURL string
	tel     telemetry.API
}

func NewSource(opts Options, cache *webcache.Cache, tel telemetry.API) (*Source, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = BaseURL
	}
	tel = telemetry.NewScopedAPI("wikipedia", tel)
	httpClient, err := scrapers.NewClient(scrapers.ClientOptions{
		Name:         "wikipedia",
		RequestDelay: opts.RequestDelay,
		DebugDir:     opts.DebugDir,
	}, tel)
	if err != nil {
		return nil, err
	}
	return &Source{
		http:    httpClient,
		cache:   cache,
		baseURL: strings.TrimSuffix(opts.BaseURL, "/"),
		tel:     tel,
	}, nil
}

func (*Source) Name() string { return "wikipedia" }

// Search returns up to 3 article titles for the query, disambiguation pages excluded.
func (s *Source) Search(ctx context.Context, query string) ([]string, error) {
	params := url.Values{
		"action":   {"query"},
		"list":     {"search"},
		"srsearch": {query},
		"srlimit":  {"3"},
		"format":   {"json"},
	}
	body, err := scrapers.Get(ctx, s.http, s.cache, "wikipedia", s.baseURL+"/w/api.php?"+params.Encode())
	if err != nil {
		return nil, err
	}
	var res struct {
		Query struct {
			Search []struct {
				Title string `json:"title"`
			} `json:"search"`
		} `json:"query"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decode search: %w", err)
	}
	var titles []string
	for _, r := range res.Query.Search {
		if strings.Contains(strings.ToLower(r.Title), "(disambiguation)") {
			continue
		}
		titles = append(titles, r.Title)
	}
	return titles, nil
}

// ArticleURL is the /wiki/ URL of a title.
func (s *Source) ArticleURL(title string) string {
	return s.baseURL + "/wiki/" + url.PathEscape(strings.ReplaceAll(title, " ", "_"))
}

func (s *Source) Lookup(ctx context.Context, person bio.Person) (bio.Result, error) {
	query := person.Name
	if len(person.Shows) > 0 {
		query += " " + person.Shows[0]
	}
	titles, err := s.Search(ctx, query)
	if err != nil {
		s.tel.ReportBroken(report_source_search, err, query)
		return bio.Result{}, err
	}

	for _, title := range titles {
		doc, err := scrapers.FetchDocument(ctx, s.http, s.cache, "wikipedia", s.ArticleURL(title))
		if err != nil {
			s.tel.ReportWarning(report_source_page, err, title)
			continue
		}
		if doc.Find("#disambigbox, .mw-disambig").Length() > 0 {
			continue
		}
		res := scrapers.PageResult(doc, person.Name)
		if !scrapers.Empty(res) {
			return res, nil
		}
	}
	return bio.Result{}, bio.ErrNotFound
}
