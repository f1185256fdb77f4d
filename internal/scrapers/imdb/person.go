package imdb

import (
	"context"
	"fmt"
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

const (
	report_person_search = "person.search"
	report_person_page   = "person.page"
)

var (
	nameIDRegex   = regexp.MustCompile(`/name/(nm\d+)`)
	bornTextRegex = regexp.MustCompile(`(?i)born\s*:?\s*([A-Za-z]+\.?\s+\d{1,2},?\s+\d{4}|\d{1,2}\s+[A-Za-z]+\s+\d{4})`)
)

type PersonOptions struct {
	BaseURL      string
	RequestDelay time.Duration
	DebugDir     string
}

// PersonSource reads birthdays and gender hints from IMDb name pages.
type PersonSource struct {
	http    *resty.Client
	cache   *webcache.Cache
	baseURL string
	tel     telemetry.API
}

func NewPersonSource(opts PersonOptions, cache *webcache.Cache, tel telemetry.API) (*PersonSource, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = BaseURL
	}
	tel = telemetry.NewScopedAPI("imdb", tel)
	httpClient, err := scrapers.NewClient(scrapers.ClientOptions{
		Name:         "imdb",
		RequestDelay: opts.RequestDelay,
		Cloudflare:   true,
		DebugDir:     opts.DebugDir,
	}, tel)
	if err != nil {
		return nil, err
	}
	httpClient.SetHeader("accept-language", "en-US,en;q=0.9")
	return &PersonSource{
		http:    httpClient,
		cache:   cache,
		baseURL: strings.TrimSuffix(opts.BaseURL, "/"),
		tel:     tel,
	}, nil
}

func (*PersonSource) Name() string { return "imdb" }

// SearchPerson returns the id of the first name result for a query, "" when there is
// none.
func (s *PersonSource) SearchPerson(ctx context.Context, name string) (string, error) {
	params := url.Values{"q": {name}, "s": {"nm"}}
	doc, err := scrapers.FetchDocument(ctx, s.http, s.cache, "imdb", s.baseURL+"/find/?"+params.Encode())
	if err != nil {
		return "", err
	}
	id := ""
	doc.Find(`a[href*="/name/nm"]`).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if m := nameIDRegex.FindStringSubmatch(a.AttrOr("href", "")); m != nil {
			id = m[1]
			return false
		}
		return true
	})
	return id, nil
}

func (s *PersonSource) personPage(ctx context.Context, id string) (*goquery.Document, error) {
	return scrapers.FetchDocument(ctx, s.http, s.cache, "imdb", fmt.Sprintf("%s/name/%s/", s.baseURL, id))
}

// PersonBirthday reads the birth date of a name page from its time element or the
// "Born" block.
func PersonBirthday(root *goquery.Selection) string {
	var found string
	root.Find("time[datetime]").EachWithBreak(func(_ int, t *goquery.Selection) bool {
		found = bio.ParseDate(t.AttrOr("datetime", ""))
		return found == ""
	})
	if found != "" {
		return found
	}

	born := root.Find(`[data-testid="birth-and-death-birthdate"], #name-born-info`)
	if born.Length() > 0 {
		if date := bio.ParseDate(htmlutil.Text(born)); date != "" {
			return date
		}
		for _, part := range strings.Split(htmlutil.Text(born), "·") {
			if date := bio.ParseDate(part); date != "" {
				return date
			}
		}
	}
	if m := bornTextRegex.FindStringSubmatch(htmlutil.Text(root)); m != nil {
		return bio.ParseDate(m[1])
	}
	return ""
}

// roleGender reads the gender implied by the "Actor" / "Actress" role labels.
func roleGender(root *goquery.Selection) bio.Gender {
	actor, actress := false, false
	root.Find(`[data-testid="hero__primary-text-suffix"], .ipc-inline-list__item, #name-job-categories a`).
		Each(func(_ int, item *goquery.Selection) {
			switch strings.ToLower(htmlutil.Text(item)) {
			case "actor":
				actor = true
			case "actress":
				actress = true
			}
		})
	switch {
	case actress && !actor:
		return bio.GenderFemale
	case actor && !actress:
		return bio.GenderMale
	}
	return bio.GenderUnknown
}

// PersonResult reads birthday, gender and bio text from a name page.
func PersonResult(root *goquery.Selection) bio.Result {
	text := htmlutil.Text(root.Find(`[data-testid="bio-content"], .ipc-html-content-inner-div, #name-bio-text`))
	gender := roleGender(root)
	if gender == bio.GenderUnknown {
		gender = bio.PronounGender(text)
	}
	return bio.Result{
		Gender:   gender,
		Birthday: PersonBirthday(root),
		BioText:  scrapers.Truncate(text, scrapers.BioTextLimit),
	}
}

func (s *PersonSource) Lookup(ctx context.Context, person bio.Person) (bio.Result, error) {
	id := person.IMDbID
	if id == "" {
		var err error
		id, err = s.SearchPerson(ctx, person.Name)
		if err != nil {
			s.tel.ReportWarning(report_person_search, err, person.Name)
			return bio.Result{}, err
		}
		if id == "" {
			return bio.Result{}, bio.ErrNotFound
		}
	}

	doc, err := s.personPage(ctx, id)
	if err != nil {
		s.tel.ReportWarning(report_person_page, err, id)
		return bio.Result{}, err
	}
	// a searched id must be the person searched for
	if person.IMDbID == "" {
		name := htmlutil.Text(doc.Find(`h1 [data-testid="hero__primary-text"], h1`).First())
		if !textutil.NamesMatch(person.Name, name) {
			return bio.Result{}, bio.ErrNotFound
		}
	}
	return PersonResult(doc.Selection), nil
}
