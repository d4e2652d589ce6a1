// Package headless fetches pages with a shared headless Chrome instance.
// One browser serves every worker; the number of simultaneously open pages
// is capped by an admission gate sized independently of the worker pool.
package headless

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"golang.org/x/sync/semaphore"

	"github.com/docrover/docrover/internal/crawl"
)

// Config controls the shared browser.
type Config struct {
	// MaxOpenPages caps concurrent fetches against the browser.
	MaxOpenPages int
	UserAgent    string
	// NavigationTimeout is the fallback when a request carries no timeout.
	NavigationTimeout time.Duration
}

// Fetcher implements crawl.Fetcher with chromedp. The exec allocator is
// created once and shared; each fetch opens its own tab context.
type Fetcher struct {
	cfg         Config
	gate        *semaphore.Weighted
	allocator   context.Context
	allocCancel context.CancelFunc
}

// New starts the allocator for a shared headless Chrome.
func New(cfg Config) (*Fetcher, error) {
	if cfg.MaxOpenPages <= 0 {
		cfg.MaxOpenPages = 2
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Fetcher{
		cfg:         cfg,
		gate:        semaphore.NewWeighted(int64(cfg.MaxOpenPages)),
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close releases the browser.
func (f *Fetcher) Close() {
	f.allocCancel()
}

func aborted(ch <-chan struct{}) bool {
	if ch == nil {
		return false
	}
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// Fetch renders the requested page. The admission slot is held only for the
// duration of the browser interaction; parsing happens after release. A
// request.Abort broadcast wakes the slot wait but never interrupts a fetch
// that already holds a slot.
func (f *Fetcher) Fetch(ctx context.Context, request crawl.FetchRequest) (crawl.RenderedPage, error) {
	acquireCtx := ctx
	if request.Abort != nil {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithCancel(ctx)
		defer cancel()
		stop := make(chan struct{})
		defer close(stop)
		go func() {
			select {
			case <-request.Abort:
				cancel()
			case <-stop:
			}
		}()
	}
	if err := f.gate.Acquire(acquireCtx, 1); err != nil {
		if aborted(request.Abort) {
			return crawl.RenderedPage{}, crawl.NewFetchError(crawl.KindUnattempted, request.URL, err)
		}
		return crawl.RenderedPage{}, fmt.Errorf("admission gate: %w", err)
	}
	defer f.gate.Release(1)

	if err := f.allocator.Err(); err != nil {
		return crawl.RenderedPage{}, fmt.Errorf("%w: allocator closed: %v", crawl.ErrBrowserGone, err)
	}

	tabCtx, tabCancel := chromedp.NewContext(f.allocator)
	defer tabCancel()

	timeout := request.Config.Timeout
	if timeout <= 0 {
		timeout = f.cfg.NavigationTimeout
	}
	tabCtx, cancel := context.WithTimeout(tabCtx, timeout)
	defer cancel()

	meta := newResponseMeta()
	chromedp.ListenTarget(tabCtx, meta.captureEvent)

	start := time.Now()
	html, finalURL, err := f.render(tabCtx, request)
	if err != nil {
		return crawl.RenderedPage{}, f.classify(ctx, request.URL, err)
	}

	status, responseURL := meta.snapshot(request.URL, finalURL)
	if err := statusError(request.URL, status); err != nil {
		return crawl.RenderedPage{}, err
	}

	return crawl.RenderedPage{
		URL:        request.URL,
		FinalURL:   responseURL,
		StatusCode: status,
		HTML:       []byte(html),
		Duration:   time.Since(start),
		FetchedAt:  start.UTC(),
	}, nil
}

func (f *Fetcher) render(ctx context.Context, request crawl.FetchRequest) (string, string, error) {
	var (
		html     string
		finalURL string
	)

	wait := chromedp.WaitReady("body", chromedp.ByQuery)
	if sel := request.Config.WaitSelector; sel != "" {
		wait = chromedp.WaitVisible(sel, chromedp.ByQuery)
	}

	userAgent := request.Config.UserAgent
	if userAgent == "" {
		userAgent = f.cfg.UserAgent
	}

	actions := []chromedp.Action{
		networkSetupAction(userAgent),
		chromedp.Navigate(request.URL),
		wait,
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(ctx, actions...); err != nil {
		return "", "", fmt.Errorf("chromedp run: %w", err)
	}

	if request.Config.RenderFrames {
		if frames, err := frameDocuments(ctx); err == nil && frames != "" {
			html += "\n" + frames
		}
	}
	return html, finalURL, nil
}

// frameDocuments pulls same-origin iframe documents so their content and
// links participate in extraction.
func frameDocuments(ctx context.Context) (string, error) {
	const script = `Array.from(document.querySelectorAll("iframe")).map(function(f) {
  try { return f.contentDocument ? f.contentDocument.documentElement.outerHTML : ""; }
  catch (e) { return ""; }
}).join("\n")`
	var frames string
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &frames)); err != nil {
		return "", fmt.Errorf("evaluate frames: %w", err)
	}
	return strings.TrimSpace(frames), nil
}

func networkSetupAction(userAgent string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if userAgent != "" {
			if err := emulation.SetUserAgentOverride(userAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

// classify maps a chromedp failure onto the fetch error taxonomy. A dead
// allocator means the browser itself is gone, which is fatal to the run;
// everything else is a per-URL failure.
func (f *Fetcher) classify(ctx context.Context, url string, err error) error {
	if allocErr := f.allocator.Err(); allocErr != nil {
		return fmt.Errorf("%w: %v", crawl.ErrBrowserGone, err)
	}
	if ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return crawl.NewFetchError(crawl.KindTimeout, url, err)
	}
	return crawl.NewFetchError(crawl.KindNetwork, url, err)
}

func statusError(url string, status int) error {
	switch {
	case status == http.StatusNotFound || status == http.StatusGone:
		return crawl.NewFetchError(crawl.KindNotFound, url, fmt.Errorf("status %d", status))
	case status == http.StatusForbidden || status == http.StatusUnauthorized ||
		status == http.StatusTooManyRequests:
		return crawl.NewFetchError(crawl.KindBlocked, url, fmt.Errorf("status %d", status))
	case status >= 500:
		return crawl.NewFetchError(crawl.KindNetwork, url, fmt.Errorf("status %d", status))
	default:
		return nil
	}
}

// responseMeta records the document response observed via CDP events.
type responseMeta struct {
	mu     sync.Mutex
	status int
	url    string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{}
}

func (m *responseMeta) captureEvent(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	m.mu.Lock()
	m.status = int(resp.Response.Status)
	m.url = resp.Response.URL
	m.mu.Unlock()
}

// snapshot returns the observed status and URL, falling back to the request
// URL and 200 when no document event arrived (e.g. served from cache).
func (m *responseMeta) snapshot(requestURL, finalURL string) (int, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	url := m.url
	if url == "" {
		url = finalURL
	}
	if url == "" {
		url = requestURL
	}
	status := m.status
	if status == 0 {
		status = http.StatusOK
	}
	return status, url
}
