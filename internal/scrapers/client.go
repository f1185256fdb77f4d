// Package scrapers holds what the HTTP bio/metadata sources share: the resty client
// setup (cookies, cloudflare transport, rate limiting, instrumentation) and the page
// fetch helper that goes through the page cache.
package scrapers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"path/filepath"
	"realitease/internal/assert"
	"realitease/internal/components/telemetry"
	"realitease/internal/webcache"
	"realitease/lib/restyutil"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// ErrStatus is wrapped by Get when a page answers with a non-2xx status.
type ErrStatus struct {
	Code int
	URL  string
}

func (e ErrStatus) Error() string {
	return fmt.Sprintf("%s: status %d", e.URL, e.Code)
}

type ClientOptions struct {
	// Name is the telemetry scope and the directory name of debug dumps.
	Name    string
	BaseURL string
	// RequestDelay is the minimum time between two requests, 0 disables limiting.
	RequestDelay time.Duration
	// Cloudflare wraps the transport with the cloudflare bypass, used for HTML sites.
	Cloudflare bool
	Timeout    time.Duration
	// DebugDir, when set, receives every HTTP message of the client.
	DebugDir string
}

// NewClient builds a resty client the way every source uses it.
func NewClient(opts ClientOptions, tel telemetry.API) (*resty.Client, error) {
	assert.NotNil("telemetry", tel)
	assert.NotEmptyStr("client name", opts.Name)

	httpClient := resty.New()
	if opts.BaseURL != "" {
		httpClient.SetBaseURL(opts.BaseURL)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	httpClient.SetCookieJar(jar)
	if opts.Cloudflare {
		transport := httpClient.GetClient().Transport
		if transport == nil {
			transport = http.DefaultTransport
		}
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(transport)
	}

	httpClient.SetHeader("user-agent", UserAgent)
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	httpClient.SetTimeout(opts.Timeout)

	if opts.RequestDelay > 0 {
		rateLimiter := rate.NewLimiter(rate.Every(opts.RequestDelay), 1)
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return rateLimiter.Wait(req.Context())
		})
	}

	telemetry.InstrumentResty(httpClient, tel)

	instrument := restyutil.InstrumentOptions{Source: opts.Name}
	if opts.DebugDir != "" {
		output, err := restyutil.NewFilesystemOutput(filepath.Join(opts.DebugDir, opts.Name))
		if err != nil {
			return nil, err
		}
		instrument.Output = output
	}
	restyutil.InstrumentClient(httpClient, instrument)

	return httpClient, nil
}

// Get fetches a page body, consulting the cache first. Only 2xx bodies are cached.
func Get(ctx context.Context, client *resty.Client, cache *webcache.Cache, namespace, url string) ([]byte, error) {
	return cache.Fetch(ctx, namespace, url, func() ([]byte, error) {
		res, err := client.R().
			SetContext(ctx).
			Get(url)
		if err != nil {
			return nil, err
		}
		if res.IsError() {
			return nil, ErrStatus{Code: res.StatusCode(), URL: url}
		}
		return res.Body(), nil
	})
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
