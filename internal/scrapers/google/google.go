// Package google is the last resort bio source: a Google web search whose result
// page is read directly, then the first result on a known biography site is followed.
package google

import (
	"context"
	"net/url"
	"realitease/internal/bio"
	"realitease/internal/components/telemetry"
	"realitease/internal/scrapers"
	"realitease/internal/webcache"
	"realitease/lib/htmlutil"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

const BaseURL = "https://www.google.com"

const (
	report_source_search = "source.search"
	report_source_follow = "source.follow"
)

// PriorityDomains are the sites whose result links are worth following.
var PriorityDomains = []string{
	"wikipedia.org",
	"imdb.com",
	"famousbirthdays.com",
	"fandom.com",
	"wikia.com",
	"tvguide.com",
	"eonline.com",
}

// linksScanned bounds how many result anchors are inspected.
const linksScanned = 10

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
	tel = telemetry.NewScopedAPI("google", tel)
	httpClient, err := scrapers.NewClient(scrapers.ClientOptions{
		Name:         "google",
		RequestDelay: opts.RequestDelay,
		Cloudflare:   true,
		DebugDir:     opts.DebugDir,
	}, tel)
	if err != nil {
		return nil, err
	}
	httpClient.SetHeader("accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	httpClient.SetHeader("accept-language", "en-US,en;q=0.5")
	return &Source{
		http:    httpClient,
		cache:   cache,
		baseURL: strings.TrimSuffix(opts.BaseURL, "/"),
		tel:     tel,
	}, nil
}

func (*Source) Name() string { return "google" }

// Query is the search text: the name, the first two shows and birthday terms.
func Query(person bio.Person) string {
	terms := []string{person.Name}
	terms = append(terms, person.Shows[:min(2, len(person.Shows))]...)
	terms = append(terms, "birthday", "birth date", "reality tv")
	return strings.Join(terms, " ")
}

// PriorityLinks extracts result URLs on PriorityDomains, unwrapping /url?q= redirects.
func PriorityLinks(ctx context.Context, doc *goquery.Document) []string {
	var links []string
	for _, anchor := range htmlutil.Anchors(ctx, doc.Find("a[href]"), nil, linksScanned) {
		link := anchor.URL
		if link.Path == "/url" && link.Query().Get("q") != "" {
			unwrapped, err := url.Parse(link.Query().Get("q"))
			if err != nil {
				continue
			}
			link = unwrapped
		}
		if link.Scheme != "http" && link.Scheme != "https" {
			continue
		}
		for _, domain := range PriorityDomains {
			if strings.Contains(link.Host+link.Path, domain) {
				links = append(links, link.String())
				break
			}
		}
	}
	return links
}

func (s *Source) Lookup(ctx context.Context, person bio.Person) (bio.Result, error) {
	query := Query(person)
	doc, err := scrapers.FetchDocument(ctx, s.http, s.cache, "google", s.baseURL+"/search?q="+url.QueryEscape(query))
	if err != nil {
		s.tel.ReportWarning(report_source_search, err, query)
		return bio.Result{}, err
	}

	text := htmlutil.Text(doc.Selection)
	gender, _ := bio.ScoreGender(text, person.Name)
	res := bio.Result{
		Gender:   gender,
		Birthday: bio.ExtractBirthday(doc.Selection),
	}
	if !scrapers.Empty(res) {
		res.BioText = scrapers.Truncate(text, scrapers.BioTextLimit)
		return res, nil
	}

	for _, link := range PriorityLinks(ctx, doc) {
		page, err := scrapers.FetchDocument(ctx, s.http, s.cache, "google", link)
		if err != nil {
			s.tel.ReportWarning(report_source_follow, err, link)
			continue
		}
		res := scrapers.PageResult(page, person.Name)
		if !scrapers.Empty(res) {
			return res, nil
		}
	}
	return bio.Result{}, bio.ErrNotFound
}
