// Package static fetches pages over plain HTTP with Colly, for
// documentation sites that render server-side and need no browser.
package static

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/docrover/docrover/internal/crawl"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetcher implements crawl.Fetcher using a Colly collector. A base
// collector is built once; each fetch works on a clone so per-request
// callbacks don't accumulate.
type Fetcher struct {
	cfg  Config
	base *colly.Collector
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = false
	return &Fetcher{cfg: cfg, base: c}
}

// Fetch executes a single HTTP GET.
func (f *Fetcher) Fetch(ctx context.Context, request crawl.FetchRequest) (crawl.RenderedPage, error) {
	if err := ctx.Err(); err != nil {
		return crawl.RenderedPage{}, fmt.Errorf("fetch canceled: %w", err)
	}

	timeout := request.Config.Timeout
	if timeout <= 0 {
		timeout = f.cfg.Timeout
	}

	collector := f.base.Clone()
	collector.SetRequestTimeout(timeout)
	if ua := request.Config.UserAgent; ua != "" {
		collector.UserAgent = ua
	} else if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}

	var (
		page     crawl.RenderedPage
		fetchErr error
	)
	start := time.Now()

	collector.OnResponse(func(resp *colly.Response) {
		finalURL := request.URL
		if resp.Request != nil && resp.Request.URL != nil {
			finalURL = resp.Request.URL.String()
		}
		page = crawl.RenderedPage{
			URL:        request.URL,
			FinalURL:   finalURL,
			StatusCode: resp.StatusCode,
			HTML:       resp.Body,
			Duration:   time.Since(start),
			FetchedAt:  start.UTC(),
		}
	})
	collector.OnError(func(resp *colly.Response, err error) {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		fetchErr = classify(request.URL, status, err)
	})

	if err := collector.Visit(request.URL); err != nil {
		// Visit errors surface before any callback fires (bad scheme,
		// robots denial); OnError may also have recorded a richer one.
		if fetchErr == nil {
			fetchErr = classify(request.URL, 0, err)
		}
	}
	collector.Wait()

	if fetchErr != nil {
		return crawl.RenderedPage{}, fetchErr
	}
	if page.StatusCode == 0 {
		return crawl.RenderedPage{}, crawl.NewFetchError(crawl.KindNetwork, request.URL,
			errors.New("no response received"))
	}
	return page, nil
}

func classify(url string, status int, err error) error {
	switch status {
	case http.StatusNotFound, http.StatusGone:
		return crawl.NewFetchError(crawl.KindNotFound, url, err)
	case http.StatusForbidden, http.StatusUnauthorized, http.StatusTooManyRequests:
		return crawl.NewFetchError(crawl.KindBlocked, url, err)
	}
	if errors.Is(err, colly.ErrRobotsTxtBlocked) {
		return crawl.NewFetchError(crawl.KindBlocked, url, err)
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return crawl.NewFetchError(crawl.KindTimeout, url, err)
	}
	return crawl.NewFetchError(crawl.KindNetwork, url, err)
}
