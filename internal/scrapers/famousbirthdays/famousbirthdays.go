// Package famousbirthdays reads birthdays from famousbirthdays.com profile pages.
package famousbirthdays

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"realitease/internal/bio"
	"realitease/internal/components/telemetry"
	"realitease/internal/scrapers"
	"realitease/internal/webcache"
	"realitease/lib/htmlutil"
	"realitease/lib/textutil"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

const BaseURL = "https://www.famousbirthdays.com"

const (
	report_source_profile = "source.profile"
	report_source_search  = "source.search"
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
	tel = telemetry.NewScopedAPI("famousbirthdays", tel)
	httpClient, err := scrapers.NewClient(scrapers.ClientOptions{
		Name:         "famousbirthdays",
		RequestDelay: opts.RequestDelay,
		Cloudflare:   true,
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

func (*Source) Name() string { return "famousbirthdays" }

// ProfilePaths are the profile paths tried for a name: the slug, then last-first for
// two word names.
func ProfilePaths(name string) []string {
	paths := []string{"/people/" + textutil.Slug(name, "-") + ".html"}
	parts := strings.Fields(name)
	if len(parts) == 2 {
		paths = append(paths, "/people/"+textutil.Slug(parts[1]+" "+parts[0], "-")+".html")
	}
	return paths
}

func (s *Source) Lookup(ctx context.Context, person bio.Person) (bio.Result, error) {
	for _, path := range ProfilePaths(person.Name) {
		if res, ok := s.profile(ctx, path, person.Name); ok {
			return res, nil
		}
	}
	if path := s.search(ctx, person); path != "" {
		if res, ok := s.profile(ctx, path, person.Name); ok {
			return res, nil
		}
	}
	return bio.Result{}, bio.ErrNotFound
}

func (s *Source) profile(ctx context.Context, path, name string) (bio.Result, bool) {
	doc, err := scrapers.FetchDocument(ctx, s.http, s.cache, "famousbirthdays", s.baseURL+path)
	var status scrapers.ErrStatus
	if errors.As(err, &status) && status.Code == http.StatusNotFound {
		return bio.Result{}, false
	}
	if err != nil {
		s.tel.ReportWarning(report_source_profile, err, path)
		return bio.Result{}, false
	}

	heading := htmlutil.Text(doc.Find("h1").First())
	if heading != "" && !textutil.NamesMatch(heading, name) {
		return bio.Result{}, false
	}
	res := ProfileResult(doc, name)
	return res, !scrapers.Empty(res)
}

// search returns the path of the first search result whose name matches.
func (s *Source) search(ctx context.Context, person bio.Person) string {
	query := strings.TrimSpace(person.Name + " " + strings.Join(person.Shows, " "))
	doc, err := scrapers.FetchDocument(ctx, s.http, s.cache, "famousbirthdays", s.baseURL+"/search/people?q="+url.QueryEscape(query))
	if err != nil {
		s.tel.ReportWarning(report_source_search, err, query)
		return ""
	}
	for _, anchor := range htmlutil.Anchors(ctx, doc.Find(".search-result a, a.face"), nil, 3) {
		if textutil.NamesMatch(anchor.Text, person.Name) {
			return anchor.URL.Path
		}
	}
	return ""
}

var (
	labelledBirthday = regexp.MustCompile(`(?i)(?:birthday|born)\s*:?\s*([a-z]+\s+\d{1,2}\s*,?\s*\d{4})`)
	anyLongDate      = regexp.MustCompile(`(?i)\b([a-z]+\s+\d{1,2}\s*,\s*\d{4})`)
)

// Birthday tries JSON-LD birthDate, the bio module, then labelled and bare
// "Month D, YYYY" dates in the page text.
func Birthday(doc *goquery.Document) string {
	found := ""
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, script *goquery.Selection) bool {
		var data struct {
			BirthDate string `json:"birthDate"`
		}
		if json.Unmarshal([]byte(script.Text()), &data) != nil || data.BirthDate == "" {
			return true
		}
		date, _, _ := strings.Cut(data.BirthDate, "T")
		found = bio.ParseDate(date)
		return found == ""
	})
	if found != "" {
		return found
	}

	texts := []string{
		htmlutil.Text(doc.Find(".bio-module").First()),
		htmlutil.Text(doc.Selection),
	}
	for _, text := range texts {
		for _, re := range []*regexp.Regexp{labelledBirthday, anyLongDate} {
			for _, m := range re.FindAllStringSubmatch(text, -1) {
				if date := bio.ParseDate(m[1]); date != "" {
					return date
				}
			}
		}
	}
	return ""
}

func ProfileResult(doc *goquery.Document, name string) bio.Result {
	text := htmlutil.TextWithout(doc.Selection, "script", "style", "nav", "footer")
	gender, _ := bio.ScoreGender(text, name)
	return bio.Result{
		Gender:   gender,
		Birthday: Birthday(doc),
		BioText:  scrapers.Truncate(text, scrapers.BioTextLimit),
	}
}
