package imdb

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"realitease/internal/components/chrono"
	"realitease/internal/components/telemetry"
	"realitease/internal/scrapers"
	"realitease/lib/htmlutil"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/google/uuid"
)

const BaseURL = "https://www.imdb.com"

const (
	report_browser_open    = "browser.open"
	report_browser_credits = "browser.credits"
	report_browser_close   = "browser.close"
)

// Credits is what the episodes modal says about one member.
type Credits struct {
	Episodes int
	Seasons  []int
}

// Page is one worker's view of a show's full credits page.
type Page interface {
	// Open loads the full credits page of a show.
	Open(ctx context.Context, showIMDbID string) error
	// Crew returns the crew section a member is listed under, if the member is crew only.
	Crew(member Member) (string, bool)
	// Credits opens the member's episodes modal and reads it.
	Credits(ctx context.Context, member Member) (Credits, error)
	// Reset dismisses modals and stops loading after an abandoned member.
	Reset(ctx context.Context)
	Close() error
}

var closeSelectors = []string{
	`button[aria-label="Close Prompt"][title="Close Prompt"]`,
	`button.ipc-icon-button[aria-label="Close Prompt"]`,
	`[data-testid="promptable__x"] button`,
	`.ipc-promptable-base__close button`,
	`.ipc-prompt button[aria-label="Close"]`,
	`[aria-label="Close"]`,
}

type BrowserOptions struct {
	WorkerID        int
	BaseURL         string
	Headful         bool
	ExecPath        string
	PageLoadTimeout time.Duration
	ModalTimeout    time.Duration
	// LoadAttempts is how many times a page load is tried.
	LoadAttempts int
}

func (o BrowserOptions) withDefaults() BrowserOptions {
	if o.BaseURL == "" {
		o.BaseURL = BaseURL
	}
	if o.PageLoadTimeout <= 0 {
		o.PageLoadTimeout = 25 * time.Second
	}
	if o.ModalTimeout <= 0 {
		o.ModalTimeout = 8 * time.Second
	}
	if o.LoadAttempts <= 0 {
		o.LoadAttempts = 3
	}
	return o
}

// Browser drives one isolated Chrome instance over the full credits pages.
type Browser struct {
	opts        BrowserOptions
	tel         telemetry.API
	userDataDir string

	ctx         context.Context
	cancel      context.CancelFunc
	cancelAlloc context.CancelFunc

	mutex sync.Mutex
	doc   *goquery.Document
	// bumped by Open and Reset, a refresh started under an older generation is dropped
	gen uint64
}

// UserDataDir is the isolated profile directory of a worker's browser.
func UserDataDir(workerID int, now time.Time) string {
	return filepath.Join(
		os.TempDir(),
		fmt.Sprintf("chrome_worker_%d_%d_%s", workerID, now.Unix(), uuid.NewString()[:8]),
	)
}

func NewBrowser(opts BrowserOptions, tel telemetry.API, timeAPI chrono.TimeAPI) (*Browser, error) {
	opts = opts.withDefaults()
	tel = telemetry.NewScopedAPI(fmt.Sprintf("imdb_worker_%d", opts.WorkerID), tel)

	dir := UserDataDir(opts.WorkerID, timeAPI.Now())
	if err := os.RemoveAll(dir); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(dir),
		chromedp.Flag("headless", !opts.Headful),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.UserAgent("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	ctx, cancel := chromedp.NewContext(allocCtx)
	// starts the browser
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		cancelAlloc()
		os.RemoveAll(dir)
		return nil, fmt.Errorf("start browser: %w", err)
	}

	return &Browser{
		opts:        opts,
		tel:         tel,
		userDataDir: dir,
		ctx:         ctx,
		cancel:      cancel,
		cancelAlloc: cancelAlloc,
	}, nil
}

// scope derives a context of the browser tab that is also cancelled with ctx and
// after timeout (0 for none).
func (b *Browser) scope(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(b.ctx)
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, timeout)
		inner := cancel
		cancel = func() {
			cancelTimeout()
			inner()
		}
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func jitter(base, spread time.Duration) time.Duration {
	return base + time.Duration(rand.Int63n(int64(spread)+1))
}

// settle waits for the page to render after a click, returning early with the error of
// ctx when it is done.
func settle(ctx context.Context, base, spread time.Duration) error {
	return scrapers.Sleep(ctx, jitter(base, spread))
}

func waitReady(ctx context.Context) error {
	for {
		var state string
		if err := chromedp.Evaluate(`document.readyState`, &state).Do(ctx); err != nil {
			return err
		}
		if state == "complete" {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}

func (b *Browser) document() *goquery.Document {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.doc
}

func (b *Browser) generation() uint64 {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.gen
}

// invalidate starts a new generation, dropping the document when dropDoc is set.
func (b *Browser) invalidate(dropDoc bool) uint64 {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.gen++
	if dropDoc {
		b.doc = nil
	}
	return b.gen
}

// setDocument stores doc unless the browser moved past gen since it was read.
func (b *Browser) setDocument(doc *goquery.Document, gen uint64) bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if gen != b.gen {
		return false
	}
	b.doc = doc
	return true
}

// refresh re-reads the live DOM into the document used to locate nodes.
func (b *Browser) refresh(ctx context.Context, gen uint64) error {
	var contents string
	if err := chromedp.Run(ctx, chromedp.OuterHTML("html", &contents, chromedp.ByQuery)); err != nil {
		return err
	}
	doc, err := htmlutil.Parse(contents)
	if err != nil {
		return err
	}
	if !b.setDocument(doc, gen) {
		return ErrStale
	}
	return nil
}

func (b *Browser) Open(ctx context.Context, showIMDbID string) error {
	url := fmt.Sprintf("%s/title/%s/fullcredits", strings.TrimSuffix(b.opts.BaseURL, "/"), showIMDbID)
	gen := b.invalidate(true)

	var errs []error
	for attempt := 1; attempt <= b.opts.LoadAttempts; attempt++ {
		err := func() error {
			runCtx, cancel := b.scope(ctx, b.opts.PageLoadTimeout)
			defer cancel()
			err := chromedp.Run(runCtx,
				chromedp.Navigate(url),
				chromedp.ActionFunc(waitReady),
			)
			if err != nil {
				return err
			}
			return b.refresh(runCtx, gen)
		}()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		errs = append(errs, err)
		b.stopLoading()

		if attempt < b.opts.LoadAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(jitter(500*time.Millisecond, 300*time.Millisecond)):
			}
		}
	}

	err := fail(ReasonPageLoad, errors.Join(errs...))
	b.tel.ReportWarning(report_browser_open, err, url)
	return err
}

func (b *Browser) stopLoading() {
	ctx, cancel := context.WithTimeout(b.ctx, 2*time.Second)
	defer cancel()
	_ = chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return page.StopLoading().Do(ctx)
	}))
}

func (b *Browser) Crew(member Member) (string, bool) {
	doc := b.document()
	if doc == nil {
		return "", false
	}
	return FindCrew(doc.Selection, member)
}

func (b *Browser) locate(member Member) (string, error) {
	doc := b.document()
	if doc == nil {
		return "", fail(ReasonPageLoad, nil)
	}
	anchor, _ := FindCastAnchor(doc.Selection, member)
	if anchor == nil {
		return "", fail(ReasonNotFound, nil)
	}
	control := FindEpisodesControl(anchor)
	if control == nil {
		return "", fail(ReasonNoButton, nil)
	}
	return CSSPath(control), nil
}

func (b *Browser) exists(ctx context.Context, selector string) bool {
	var ok bool
	err := chromedp.Run(ctx, chromedp.Evaluate(
		fmt.Sprintf(`document.querySelector(%q) !== null`, selector), &ok,
	))
	return err == nil && ok
}

// activate clicks a node: a direct click, then a JS dispatched click, then a
// synthetic mouse click on the resolved node.
func (b *Browser) activate(ctx context.Context, selector string) error {
	if !b.exists(ctx, selector) {
		return ErrStale
	}
	_ = chromedp.Run(ctx, chromedp.ScrollIntoView(selector, chromedp.ByQuery))

	strategies := []func(ctx context.Context) error{
		func(ctx context.Context) error {
			clickCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			return chromedp.Run(clickCtx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
		},
		func(ctx context.Context) error {
			var clicked bool
			err := chromedp.Run(ctx, chromedp.Evaluate(fmt.Sprintf(
				`(() => { const el = document.querySelector(%q); if (!el) return false; el.click(); return true; })()`,
				selector,
			), &clicked))
			if err == nil && !clicked {
				return ErrStale
			}
			return err
		},
		func(ctx context.Context) error {
			var nodes []*cdp.Node
			err := chromedp.Run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQuery, chromedp.AtLeast(0)))
			if err != nil {
				return err
			}
			if len(nodes) == 0 {
				return ErrStale
			}
			return chromedp.Run(ctx, chromedp.MouseClickNode(nodes[0]))
		},
	}

	var errs []error
	for _, strategy := range strategies {
		err := strategy(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrStale) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (b *Browser) readModal(ctx context.Context) (Modal, error) {
	var contents string
	err := chromedp.Run(ctx, chromedp.OuterHTML("html", &contents, chromedp.ByQuery))
	if err != nil {
		return Modal{}, err
	}
	return ParseModal(contents)
}

// yearSeasons activates each year tab and reads the season of its first episode.
func (b *Browser) yearSeasons(ctx context.Context, tabs []YearTab) []int {
	var seasons []int
	for _, tab := range tabs {
		if ctx.Err() != nil {
			break
		}
		if err := b.activate(ctx, tab.Path); err != nil {
			continue
		}
		if settle(ctx, 500*time.Millisecond, 200*time.Millisecond) != nil {
			break
		}
		modal, err := b.readModal(ctx)
		if err != nil {
			continue
		}
		if modal.MarkerSeason > 0 {
			seasons = append(seasons, modal.MarkerSeason)
		}
	}
	return seasons
}

func (b *Browser) Credits(ctx context.Context, member Member) (Credits, error) {
	runCtx, cancel := b.scope(ctx, 0)
	defer cancel()
	gen := b.generation()

	selector, err := b.locate(member)
	if err != nil {
		return Credits{}, err
	}

	err = b.activate(runCtx, selector)
	if errors.Is(err, ErrStale) {
		if err := b.refresh(runCtx, gen); err != nil {
			return Credits{}, fail(ReasonNoClick, err)
		}
		if selector, err = b.locate(member); err != nil {
			return Credits{}, err
		}
		err = b.activate(runCtx, selector)
	}
	if runCtx.Err() != nil {
		return Credits{}, fail(ReasonProcessing, runCtx.Err())
	}
	if err != nil {
		return Credits{}, fail(ReasonNoClick, err)
	}
	defer b.closeModal()

	waitCtx, cancelWait := context.WithTimeout(runCtx, b.opts.ModalTimeout)
	err = chromedp.Run(waitCtx, chromedp.WaitVisible(".ipc-prompt-header", chromedp.ByQuery))
	cancelWait()
	if runCtx.Err() != nil {
		return Credits{}, fail(ReasonProcessing, runCtx.Err())
	}
	if err != nil {
		b.tel.ReportDebug(fmt.Sprintf("modal header did not show for %s: %v", member.Name, err))
	}
	if err := settle(runCtx, 600*time.Millisecond, 300*time.Millisecond); err != nil {
		return Credits{}, fail(ReasonProcessing, err)
	}

	modal, err := b.readModal(runCtx)
	if err != nil {
		if runCtx.Err() != nil {
			return Credits{}, fail(ReasonProcessing, err)
		}
		b.tel.ReportBroken(report_browser_credits, err, member.Name)
		return Credits{}, fail(ReasonNoClick, err)
	}

	var fromYears []int
	if len(modal.SeasonTabs) == 0 && len(modal.YearTabs) > 0 {
		yearCtx, cancelYears := context.WithTimeout(runCtx, b.opts.ModalTimeout)
		fromYears = b.yearSeasons(yearCtx, modal.YearTabs)
		cancelYears()
		if runCtx.Err() != nil {
			return Credits{}, fail(ReasonSeasonTimeout, runCtx.Err())
		}
	}

	credits := Credits{Episodes: modal.Episodes, Seasons: modal.Seasons(fromYears)}
	if credits.Episodes <= 0 {
		return credits, fail(NoDataReason(credits.Episodes, credits.Seasons), nil)
	}
	return credits, nil
}

// closeModal clicks the first close button found, else sends Escape.
func (b *Browser) closeModal() {
	ctx, cancel := context.WithTimeout(b.ctx, 3*time.Second)
	defer cancel()
	for _, selector := range closeSelectors {
		if !b.exists(ctx, selector) {
			continue
		}
		var clicked bool
		err := chromedp.Run(ctx, chromedp.Evaluate(fmt.Sprintf(
			`(() => { const el = document.querySelector(%q); if (!el) return false; el.click(); return true; })()`,
			selector,
		), &clicked))
		if err == nil && clicked {
			return
		}
	}
	_ = chromedp.Run(ctx, chromedp.KeyEvent(kb.Escape))
}

// Reset brings the page back to the credits list after a member was abandoned. The
// abandoned Credits call can no longer replace the document.
func (b *Browser) Reset(ctx context.Context) {
	b.invalidate(false)
	b.closeModal()
	ctx, cancel := context.WithTimeout(b.ctx, 2*time.Second)
	defer cancel()
	_ = chromedp.Run(ctx, chromedp.KeyEvent(kb.Escape))
	b.stopLoading()
}

// Close shuts the browser down and removes its profile directory.
func (b *Browser) Close() error {
	b.cancel()
	b.cancelAlloc()
	err := os.RemoveAll(b.userDataDir)
	if err != nil {
		b.tel.ReportWarning(report_browser_close, err, b.userDataDir)
	}
	return err
}
