// Package tmdb is a small TMDb API v3 client covering the TV, season, episode, credit
// and person endpoints the jobs use.
package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"realitease/internal/components/telemetry"
	"realitease/internal/scrapers"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const BaseURL = "https://api.themoviedb.org/3"

const (
	report_client_get = "client.get"
)

var ErrNotFound = errors.New("tmdb: resource not found")

type Options struct {
	BaseURL string
	// Bearer is a v4 read access token, it wins over APIKey.
	Bearer string
	APIKey string
	// RequestDelay is the minimum time between requests.
	RequestDelay time.Duration
	MaxRetries   int
	DebugDir     string
}

type Client struct {
	http       *resty.Client
	tel        telemetry.API
	maxRetries int
	sleep      func(ctx context.Context, d time.Duration) error
	// person id -> external ids
	people *expirable.LRU[string, ExternalIDs]
}

func NewClient(opts Options, tel telemetry.API) (*Client, error) {
	if opts.Bearer == "" && opts.APIKey == "" {
		return nil, fmt.Errorf("tmdb: TMDB_BEARER or TMDB_API_KEY must be set")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = BaseURL
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}

	tel = telemetry.NewScopedAPI("tmdb", tel)
	httpClient, err := scrapers.NewClient(scrapers.ClientOptions{
		Name:         "tmdb",
		BaseURL:      opts.BaseURL,
		RequestDelay: opts.RequestDelay,
		DebugDir:     opts.DebugDir,
	}, tel)
	if err != nil {
		return nil, err
	}

	httpClient.SetHeader("accept", "application/json")
	httpClient.SetQueryParam("language", "en-US")
	if opts.Bearer != "" {
		httpClient.SetAuthToken(opts.Bearer)
	} else {
		httpClient.SetQueryParam("api_key", opts.APIKey)
	}

	return &Client{
		http:       httpClient,
		tel:        tel,
		maxRetries: opts.MaxRetries,
		sleep:      scrapers.Sleep,
		people:     expirable.NewLRU[string, ExternalIDs](4096, nil, 6*time.Hour),
	}, nil
}

func retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// get requests path and decodes the JSON body into out. Rate limits, 5xx and network
// errors are retried, waiting 2^attempt seconds between attempts.
func (c *Client) get(ctx context.Context, path string, out any) error {
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		res, err := c.http.R().
			SetContext(ctx).
			Get(path)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
		case res.StatusCode() == http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		case retryable(res.StatusCode()):
			lastErr = fmt.Errorf("%s: status %d", path, res.StatusCode())
		case res.IsError():
			err := fmt.Errorf("%s: status %d: %s", path, res.StatusCode(), res.String())
			c.tel.ReportBroken(report_client_get, err)
			return err
		default:
			if err := json.Unmarshal(res.Body(), out); err != nil {
				err = fmt.Errorf("decode %s: %w", path, err)
				c.tel.ReportBroken(report_client_get, err)
				return err
			}
			return nil
		}

		if attempt == c.maxRetries {
			break
		}
		wait := time.Duration(math.Pow(2, float64(attempt))) * time.Second
		c.tel.ReportWarning(report_client_get, fmt.Errorf("retrying in %s: %w", wait, lastErr))
		if err := c.sleep(ctx, wait); err != nil {
			return err
		}
	}

	err := fmt.Errorf("%s: failed after %d attempts: %w", path, c.maxRetries, lastErr)
	c.tel.ReportBroken(report_client_get, err)
	return err
}

func (c *Client) TV(ctx context.Context, tvID string) (TV, error) {
	var tv TV
	err := c.get(ctx, fmt.Sprintf("/tv/%s", tvID), &tv)
	return tv, err
}

func (c *Client) TVExternalIDs(ctx context.Context, tvID string) (ExternalIDs, error) {
	var ids ExternalIDs
	err := c.get(ctx, fmt.Sprintf("/tv/%s/external_ids", tvID), &ids)
	return ids, err
}

func (c *Client) AggregateCredits(ctx context.Context, tvID string) ([]AggregateCast, error) {
	var credits aggregateCredits
	err := c.get(ctx, fmt.Sprintf("/tv/%s/aggregate_credits", tvID), &credits)
	return credits.Cast, err
}

// SeasonAggregateCredits returns the cast of one season, seasons TMDb does not know
// yield an empty list.
func (c *Client) SeasonAggregateCredits(ctx context.Context, tvID string, season int) ([]AggregateCast, error) {
	var credits aggregateCredits
	err := c.get(ctx, fmt.Sprintf("/tv/%s/season/%d/aggregate_credits", tvID, season), &credits)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return credits.Cast, err
}

func (c *Client) Season(ctx context.Context, tvID string, season int) (Season, error) {
	var s Season
	err := c.get(ctx, fmt.Sprintf("/tv/%s/season/%d", tvID, season), &s)
	return s, err
}

func (c *Client) Episode(ctx context.Context, tvID string, season, episode int) (Episode, error) {
	var e Episode
	err := c.get(ctx, fmt.Sprintf("/tv/%s/season/%d/episode/%d", tvID, season, episode), &e)
	return e, err
}

func (c *Client) EpisodeCredits(ctx context.Context, tvID string, season, episode int) (EpisodeCredits, error) {
	var credits EpisodeCredits
	err := c.get(ctx, fmt.Sprintf("/tv/%s/season/%d/episode/%d/credits", tvID, season, episode), &credits)
	return credits, err
}

func (c *Client) EpisodeExternalIDs(ctx context.Context, tvID string, season, episode int) (ExternalIDs, error) {
	var ids ExternalIDs
	err := c.get(ctx, fmt.Sprintf("/tv/%s/season/%d/episode/%d/external_ids", tvID, season, episode), &ids)
	return ids, err
}

func (c *Client) Credit(ctx context.Context, creditID string) (CreditDetails, error) {
	var credit CreditDetails
	err := c.get(ctx, fmt.Sprintf("/credit/%s", creditID), &credit)
	return credit, err
}

func (c *Client) Person(ctx context.Context, personID string) (Person, error) {
	var p Person
	err := c.get(ctx, fmt.Sprintf("/person/%s", personID), &p)
	return p, err
}

func (c *Client) PersonExternalIDs(ctx context.Context, personID string) (ExternalIDs, error) {
	if ids, ok := c.people.Get(personID); ok {
		return ids, nil
	}
	var ids ExternalIDs
	err := c.get(ctx, fmt.Sprintf("/person/%s/external_ids", personID), &ids)
	if err != nil {
		return ids, err
	}
	c.people.Add(personID, ids)
	return ids, nil
}

func (c *Client) PersonTVCredits(ctx context.Context, personID string) (PersonTVCredits, error) {
	var credits PersonTVCredits
	err := c.get(ctx, fmt.Sprintf("/person/%s/tv_credits", personID), &credits)
	return credits, err
}

// FindByIMDbID resolves an IMDb person id (nm...) to TMDb people.
func (c *Client) FindByIMDbID(ctx context.Context, imdbID string) ([]PersonSummary, error) {
	var found findResult
	err := c.get(ctx, fmt.Sprintf("/find/%s?external_source=imdb_id", imdbID), &found)
	return found.PersonResults, err
}
