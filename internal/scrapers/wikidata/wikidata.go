// Package wikidata looks people up in Wikidata: human entities (P31=Q5) with a date
// of birth (P569) and sex or gender (P21).
package wikidata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"realitease/internal/bio"
	"realitease/internal/components/telemetry"
	"realitease/internal/scrapers"
	"realitease/internal/webcache"
	"realitease/lib/textutil"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const BaseURL = "https://www.wikidata.org/w/api.php"

const (
	report_source_search   = "source.search"
	report_source_entities = "source.entities"
)

const (
	propInstanceOf = "P31"
	propBirthDate  = "P569"
	propGender     = "P21"
	propIMDbID     = "P345"

	entityHuman  = "Q5"
	entityMale   = "Q6581097"
	entityFemale = "Q6581072"
)

type Source struct {
	http    *resty.Client
	cache   *webcache.Cache
	baseURL string
	tel     telemetry.API
}

type Options struct {
	BaseURL      string
	RequestDelay time.Duration
	DebugDir     string
}

func NewSource(opts Options, cache *webcache.Cache, tel telemetry.API) (*Source, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = BaseURL
	}
	tel = telemetry.NewScopedAPI("wikidata", tel)
	httpClient, err := scrapers.NewClient(scrapers.ClientOptions{
		Name:         "wikidata",
		RequestDelay: opts.RequestDelay,
		DebugDir:     opts.DebugDir,
	}, tel)
	if err != nil {
		return nil, err
	}
	return &Source{
		http:    httpClient,
		cache:   cache,
		baseURL: opts.BaseURL,
		tel:     tel,
	}, nil
}

func (*Source) Name() string { return "wikidata" }

func (s *Source) api(ctx context.Context, params url.Values, out any) error {
	params.Set("format", "json")
	body, err := scrapers.Get(ctx, s.http, s.cache, "wikidata", s.baseURL+"?"+params.Encode())
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

// candidates returns entity ids to inspect, an IMDb id statement match comes first.
func (s *Source) candidates(ctx context.Context, person bio.Person) ([]string, error) {
	var ids []string
	if person.IMDbID != "" {
		var res struct {
			Query struct {
				Search []struct {
					Title string `json:"title"`
				} `json:"search"`
			} `json:"query"`
		}
		err := s.api(ctx, url.Values{
			"action":   {"query"},
			"list":     {"search"},
			"srsearch": {"haswbstatement:" + propIMDbID + "=" + person.IMDbID},
			"srlimit":  {"1"},
		}, &res)
		if err != nil {
			return nil, fmt.Errorf("search imdb statement: %w", err)
		}
		for _, r := range res.Query.Search {
			ids = append(ids, r.Title)
		}
	}

	var res struct {
		Search []struct {
			ID    string `json:"id"`
			Label string `json:"label"`
		} `json:"search"`
	}
	err := s.api(ctx, url.Values{
		"action":   {"wbsearchentities"},
		"search":   {person.Name},
		"language": {"en"},
		"type":     {"item"},
		"limit":    {"5"},
	}, &res)
	if err != nil {
		return nil, fmt.Errorf("search entities: %w", err)
	}
	for _, r := range res.Search {
		if textutil.NamesMatch(r.Label, person.Name) {
			ids = append(ids, r.ID)
		}
	}
	return ids, nil
}

func (s *Source) Lookup(ctx context.Context, person bio.Person) (bio.Result, error) {
	ids, err := s.candidates(ctx, person)
	if err != nil {
		s.tel.ReportBroken(report_source_search, err, person.Name)
		return bio.Result{}, err
	}
	if len(ids) == 0 {
		return bio.Result{}, bio.ErrNotFound
	}

	var res entitiesResponse
	err = s.api(ctx, url.Values{
		"action":    {"wbgetentities"},
		"ids":       {strings.Join(ids, "|")},
		"props":     {"claims|descriptions"},
		"languages": {"en"},
	}, &res)
	if err != nil {
		s.tel.ReportBroken(report_source_entities, err, person.Name)
		return bio.Result{}, err
	}

	for _, id := range ids {
		entity, ok := res.Entities[id]
		if !ok || !entity.isHuman() {
			continue
		}
		if person.IMDbID != "" && entity.imdbID() != "" && entity.imdbID() != person.IMDbID {
			continue
		}
		return entity.result(), nil
	}
	return bio.Result{}, bio.ErrNotFound
}

type entitiesResponse struct {
	Entities map[string]entity `json:"entities"`
}

type snak struct {
	Mainsnak struct {
		Datavalue struct {
			Value json.RawMessage `json:"value"`
		} `json:"datavalue"`
	} `json:"mainsnak"`
}

type entity struct {
	Claims       map[string][]snak `json:"claims"`
	Descriptions map[string]struct {
		Value string `json:"value"`
	} `json:"descriptions"`
}

func (e entity) entityIDs(prop string) []string {
	var out []string
	for _, claim := range e.Claims[prop] {
		var value struct {
			ID string `json:"id"`
		}
		if json.Unmarshal(claim.Mainsnak.Datavalue.Value, &value) == nil && value.ID != "" {
			out = append(out, value.ID)
		}
	}
	return out
}

func (e entity) isHuman() bool {
	for _, id := range e.entityIDs(propInstanceOf) {
		if id == entityHuman {
			return true
		}
	}
	return false
}

func (e entity) imdbID() string {
	for _, claim := range e.Claims[propIMDbID] {
		var value string
		if json.Unmarshal(claim.Mainsnak.Datavalue.Value, &value) == nil {
			return value
		}
	}
	return ""
}

// birthday reads the first P569 with day precision, "+1968-06-02T00:00:00Z".
func (e entity) birthday() string {
	for _, claim := range e.Claims[propBirthDate] {
		var value struct {
			Time      string `json:"time"`
			Precision int    `json:"precision"`
		}
		if json.Unmarshal(claim.Mainsnak.Datavalue.Value, &value) != nil {
			continue
		}
		if value.Precision != 0 && value.Precision < 11 {
			continue
		}
		t := strings.TrimPrefix(value.Time, "+")
		if i := strings.IndexByte(t, 'T'); i > 0 {
			t = t[:i]
		}
		if date := bio.ParseDate(t); date != "" {
			return date
		}
	}
	return ""
}

func (e entity) gender() bio.Gender {
	for _, id := range e.entityIDs(propGender) {
		switch id {
		case entityMale:
			return bio.GenderMale
		case entityFemale:
			return bio.GenderFemale
		}
	}
	return bio.GenderUnknown
}

func (e entity) result() bio.Result {
	return bio.Result{
		Gender:   e.gender(),
		Birthday: e.birthday(),
		BioText:  e.Descriptions["en"].Value,
	}
}
