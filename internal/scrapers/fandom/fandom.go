// Package fandom reads birthdays and gender from the fandom wikis of a cast member's
// shows, falling back to fandom's global search.
package fandom

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
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
	"github.com/gocolly/colly/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const GlobalSearchURL = "https://www.fandom.com/api/v1/Search/List"

const (
	report_source_search = "source.search"
	report_source_global = "source.global_search"
	report_source_page   = "source.page"
	report_source_debug  = "source.debug"
)

const (
	searchLimit       = 5
	globalSearchLimit = 6
)

var (
	wikiURLRegex = regexp.MustCompile(`^https?://([^/]+)/wiki/(.+)$`)
	unsafeRegex  = regexp.MustCompile(`[^\w\-.]`)
)

type Options struct {
	Table WikiTable
	// WikiURL replaces "https://<wiki domain>" with "<WikiURL>/<wiki domain>".
	WikiURL         string
	GlobalSearchURL string
	RequestDelay    time.Duration
	// PageDelay is the pause between two pages tried for the same person.
	PageDelay time.Duration
	DebugDir  string
	// DebugHTMLDir receives the HTML of every article read when set.
	DebugHTMLDir string
}

type Source struct {
	opts      Options
	http      *resty.Client
	collector *colly.Collector
	cache     *webcache.Cache
	tel       telemetry.API
}

func NewSource(opts Options, cache *webcache.Cache, tel telemetry.API) (*Source, error) {
	if opts.GlobalSearchURL == "" {
		opts.GlobalSearchURL = GlobalSearchURL
	}
	if opts.PageDelay == 0 {
		opts.PageDelay = 400 * time.Millisecond
	}
	tel = telemetry.NewScopedAPI("fandom", tel)

	httpClient, err := scrapers.NewClient(scrapers.ClientOptions{
		Name:         "fandom",
		RequestDelay: opts.RequestDelay,
		DebugDir:     opts.DebugDir,
	}, tel)
	if err != nil {
		return nil, err
	}

	collector := colly.NewCollector(
		colly.UserAgent(scrapers.UserAgent),
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(25 * time.Second)
	err = collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       opts.RequestDelay,
		RandomDelay: opts.RequestDelay / 2,
	})
	if err != nil {
		return nil, err
	}

	return &Source{
		opts:      opts,
		http:      httpClient,
		collector: collector,
		cache:     cache,
		tel:       tel,
	}, nil
}

func (*Source) Name() string { return "fandom" }

func (s *Source) wikiBase(domain string) string {
	if s.opts.WikiURL != "" {
		return strings.TrimSuffix(s.opts.WikiURL, "/") + "/" + domain
	}
	return "https://" + domain
}

func (s *Source) articleURL(domain, title string) string {
	return s.wikiBase(domain) + "/wiki/" + url.PathEscape(strings.ReplaceAll(title, " ", "_"))
}

// Search returns the title of the best article on a wiki for a name: the first of the
// top results whose title matches the name, else the top result.
func (s *Source) Search(ctx context.Context, domain, name string) (string, error) {
	params := url.Values{
		"action":   {"query"},
		"list":     {"search"},
		"srsearch": {name},
		"utf8":     {"1"},
		"srlimit":  {fmt.Sprint(searchLimit)},
		"format":   {"json"},
	}
	body, err := scrapers.Get(ctx, s.http, s.cache, "fandom", s.wikiBase(domain)+"/api.php?"+params.Encode())
	if err != nil {
		return "", err
	}
	var res struct {
		Query struct {
			Search []struct {
				Title string `json:"title"`
			} `json:"search"`
		} `json:"query"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return "", fmt.Errorf("decode search: %w", err)
	}
	if len(res.Query.Search) == 0 {
		return "", nil
	}
	for _, r := range res.Query.Search {
		if textutil.NamesMatch(name, r.Title) {
			return r.Title, nil
		}
	}
	return res.Query.Search[0].Title, nil
}

// Hit is an article found by the global search.
type Hit struct {
	Domain string
	Title  string
}

// GlobalSearch searches every fandom wiki for a name.
func (s *Source) GlobalSearch(ctx context.Context, name string) ([]Hit, error) {
	params := url.Values{
		"query":             {name},
		"limit":             {fmt.Sprint(globalSearchLimit)},
		"minArticleQuality": {"10"},
		"namespaces":        {"0"},
	}
	body, err := scrapers.Get(ctx, s.http, s.cache, "fandom", s.opts.GlobalSearchURL+"?"+params.Encode())
	if err != nil {
		return nil, err
	}
	var res struct {
		Items []struct {
			URL string `json:"url"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decode global search: %w", err)
	}
	var hits []Hit
	for _, item := range res.Items {
		m := wikiURLRegex.FindStringSubmatch(item.URL)
		if m == nil {
			continue
		}
		title, err := url.PathUnescape(m[2])
		if err != nil {
			title = m[2]
		}
		hits = append(hits, Hit{Domain: m[1], Title: strings.ReplaceAll(title, "_", " ")})
	}
	return hits, nil
}

// TitleGuesses are the article titles tried when a wiki's search finds nothing:
// Title_Case, as written, hyphenated and lowercase.
func TitleGuesses(name string) []string {
	clean := strings.Join(strings.Fields(strings.NewReplacer(".", "", "'", "", "’", "").Replace(name)), " ")
	if clean == "" {
		return nil
	}
	title := cases.Title(language.English).String(clean)
	lower := strings.ToLower(clean)

	var out []string
	seen := map[string]bool{}
	for _, guess := range []string{
		strings.ReplaceAll(title, " ", "_"),
		strings.ReplaceAll(clean, " ", "_"),
		strings.ReplaceAll(title, " ", "-"),
		strings.ReplaceAll(clean, " ", "-"),
		strings.ReplaceAll(lower, " ", "_"),
		strings.ReplaceAll(lower, " ", "-"),
	} {
		if !seen[guess] {
			seen[guess] = true
			out = append(out, guess)
		}
	}
	return out
}

// fetch reads an article with colly, through the page cache.
func (s *Source) fetch(ctx context.Context, pageURL string) ([]byte, error) {
	return s.cache.Fetch(ctx, "fandom", pageURL, func() ([]byte, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c := s.collector.Clone()
		var body []byte
		var fetchErr error
		c.OnResponse(func(r *colly.Response) {
			body = r.Body
		})
		c.OnError(func(r *colly.Response, err error) {
			fetchErr = err
		})
		if err := c.Visit(pageURL); err != nil && fetchErr == nil {
			fetchErr = err
		}
		c.Wait()
		if fetchErr != nil {
			return nil, fetchErr
		}
		return body, nil
	})
}

func (s *Source) dumpHTML(name, domain, title string, contents []byte) {
	if s.opts.DebugHTMLDir == "" {
		return
	}
	if err := os.MkdirAll(s.opts.DebugHTMLDir, 0755); err != nil {
		s.tel.ReportWarning(report_source_debug, err)
		return
	}
	file := fmt.Sprintf(
		"%s_%s_%s.html",
		unsafeRegex.ReplaceAllString(name, "_"),
		unsafeRegex.ReplaceAllString(domain, "_"),
		unsafeRegex.ReplaceAllString(title, "_"),
	)
	if err := os.WriteFile(filepath.Join(s.opts.DebugHTMLDir, file), contents, 0644); err != nil {
		s.tel.ReportWarning(report_source_debug, err, file)
	}
}

// ArticleResult reads the birthday and gender of a person article. ok is false for
// redirects and disambiguation pages.
func ArticleResult(doc *goquery.Document) (res bio.Result, ok bool) {
	root := doc.Selection
	if bio.IsRedirectOrDisambiguation(root) {
		return bio.Result{}, false
	}
	text := bio.ArticleText(root)
	gender := bio.ExtractInfoboxGender(root)
	if gender == bio.GenderUnknown {
		gender = bio.PronounGender(text)
	}
	return bio.Result{
		Gender:   gender,
		Birthday: bio.ExtractBirthday(root),
		BioText:  scrapers.Truncate(htmlutil.CleanText(text), scrapers.BioTextLimit),
	}, true
}

// article fetches and reads one article, a zero result means nothing usable.
func (s *Source) article(ctx context.Context, person bio.Person, domain, title string) bio.Result {
	body, err := s.fetch(ctx, s.articleURL(domain, title))
	if err != nil {
		s.tel.ReportDebug(fmt.Sprintf("%s/%s: %v", domain, title, err))
		return bio.Result{}
	}
	s.dumpHTML(person.Name, domain, title, body)

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		s.tel.ReportWarning(report_source_page, err, domain, title)
		return bio.Result{}
	}
	res, ok := ArticleResult(doc)
	if !ok {
		return bio.Result{}
	}
	return res
}

// merge fills the empty fields of into from res and reports whether both are known.
func merge(into *bio.Result, res bio.Result) bool {
	if into.Gender == bio.GenderUnknown {
		into.Gender = res.Gender
	}
	if into.Birthday == "" {
		into.Birthday = res.Birthday
	}
	if into.BioText == "" {
		into.BioText = res.BioText
	}
	return into.Gender != bio.GenderUnknown && into.Birthday != ""
}

func (s *Source) Lookup(ctx context.Context, person bio.Person) (bio.Result, error) {
	var found bio.Result
	tried := 0
	// try reads one article, hit reports it had something usable and stop that the
	// lookup is done
	try := func(domain, title string) (hit, stop bool) {
		if tried > 0 {
			if err := scrapers.Sleep(ctx, s.opts.PageDelay); err != nil {
				return false, true
			}
		}
		tried++
		res := s.article(ctx, person, domain, title)
		return !scrapers.Empty(res), merge(&found, res)
	}

	for _, domain := range s.opts.Table.Candidates(person.Shows) {
		if ctx.Err() != nil {
			return bio.Result{}, ctx.Err()
		}
		title, err := s.Search(ctx, domain, person.Name)
		if err != nil {
			s.tel.ReportWarning(report_source_search, err, domain, person.Name)
		}
		titles := TitleGuesses(person.Name)
		if title != "" {
			titles = []string{title}
		}
		for _, t := range titles {
			hit, stop := try(domain, t)
			if stop {
				return found, ctx.Err()
			}
			if hit {
				break
			}
		}
	}

	if found.Gender == bio.GenderUnknown || found.Birthday == "" {
		hits, err := s.GlobalSearch(ctx, person.Name)
		if err != nil {
			s.tel.ReportWarning(report_source_global, err, person.Name)
		}
		for _, hit := range hits {
			if !textutil.NamesMatch(person.Name, hit.Title) {
				continue
			}
			if _, stop := try(hit.Domain, hit.Title); stop {
				return found, ctx.Err()
			}
		}
	}

	if scrapers.Empty(found) {
		return bio.Result{}, bio.ErrNotFound
	}
	return found, nil
}
