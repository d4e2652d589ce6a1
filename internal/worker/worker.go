// Package worker implements the crawl pipeline execution loop: claim a URL
// from the frontier, fetch, extract, persist, and offer discovered links
// back, until the frontier reports completion or shutdown.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/docrover/docrover/internal/crawl"
	"github.com/docrover/docrover/internal/frontier"
	"github.com/docrover/docrover/internal/metrics"
)

// Limiter paces outbound fetches per domain.
type Limiter interface {
	Wait(ctx context.Context, url string) error
}

// Config controls Worker behavior.
type Config struct {
	// Source labels metrics and log lines.
	Source string
	// Fetch is applied to every request this worker issues.
	Fetch crawl.FetchConfig
	// ClaimTimeout bounds each frontier wait; zero waits until completion
	// or shutdown.
	ClaimTimeout time.Duration
}

// Worker consumes frontier entries and executes the fetch pipeline. One bad
// page never terminates the loop; only frontier exhaustion, shutdown, or
// context cancellation does.
type Worker struct {
	frontier  *frontier.Frontier
	fetcher   crawl.Fetcher
	extractor crawl.Extractor
	sink      crawl.Sink
	limiter   Limiter
	clock     crawl.Clock
	tally     *crawl.Tally
	fatal     func(error)
	logger    *zap.Logger
	cfg       Config
}

// New constructs a Worker. limiter may be nil; fatal is invoked at most once
// per worker when the shared fetch resource dies.
func New(
	frontier *frontier.Frontier,
	fetcher crawl.Fetcher,
	extractor crawl.Extractor,
	sink crawl.Sink,
	limiter Limiter,
	clock crawl.Clock,
	tally *crawl.Tally,
	fatal func(error),
	logger *zap.Logger,
	cfg Config,
) *Worker {
	if fatal == nil {
		fatal = func(error) {}
	}
	return &Worker{
		frontier:  frontier,
		fetcher:   fetcher,
		extractor: extractor,
		sink:      sink,
		limiter:   limiter,
		clock:     clock,
		tally:     tally,
		fatal:     fatal,
		logger:    logger,
		cfg:       cfg,
	}
}

// Run blocks, processing claimed URLs until the frontier stops handing out
// work.
func (w *Worker) Run(ctx context.Context) {
	for {
		pageURL, ok := w.frontier.Claim(ctx, w.cfg.ClaimTimeout)
		if !ok {
			return
		}
		w.publishGauges()
		w.process(ctx, pageURL)
		w.frontier.Done()
		w.publishGauges()
	}
}

func (w *Worker) process(ctx context.Context, pageURL string) {
	if w.limiter != nil {
		if err := w.limiter.Wait(ctx, pageURL); err != nil {
			// The URL was claimed but never fetched; it still has to
			// land in an outcome bucket.
			w.logger.Debug("rate limit wait aborted",
				zap.String("url", pageURL), zap.Error(err))
			w.tally.RecordFailure(pageURL, crawl.KindUnattempted, err)
			metrics.PageProcessed(w.cfg.Source, "failed")
			return
		}
	}

	page, err := w.fetch(ctx, pageURL)
	if err != nil {
		if crawl.IsFatal(err) {
			w.logger.Error("shared fetch resource lost",
				zap.String("url", pageURL), zap.Error(err))
			w.tally.RecordFailure(pageURL, crawl.Classify(err), err)
			metrics.PageProcessed(w.cfg.Source, "failed")
			w.fatal(err)
			return
		}
		kind := crawl.Classify(err)
		w.logger.Warn("fetch failed",
			zap.String("url", pageURL),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		w.tally.RecordFailure(pageURL, kind, err)
		metrics.PageProcessed(w.cfg.Source, "failed")
		return
	}
	metrics.ObserveFetchDuration(w.cfg.Source, page.Duration)

	content, links := w.extractor.Extract(page)

	record := crawl.PageRecord{
		URL:       pageURL,
		Page:      crawl.PageName(pageURL),
		Content:   content,
		Links:     links,
		FetchedAt: w.clock.Now(),
	}
	if err := w.sink.Persist(ctx, record); err != nil {
		// The page was fetched and parsed; persistence trouble is
		// tracked separately and never fails the URL.
		w.logger.Warn("persist failed", zap.String("url", pageURL), zap.Error(err))
		w.tally.RecordPersistFailure()
		metrics.PersistFailed()
	}

	w.tally.RecordSuccess()
	metrics.PageProcessed(w.cfg.Source, "succeeded")
	w.logger.Debug("page processed",
		zap.String("url", pageURL),
		zap.Int("links", len(links)),
	)

	for _, link := range links {
		w.frontier.Offer(link.Href)
	}
}

// fetch issues the request, retrying once on transient failures.
func (w *Worker) fetch(ctx context.Context, pageURL string) (crawl.RenderedPage, error) {
	request := crawl.FetchRequest{
		URL:    pageURL,
		Config: w.cfg.Fetch,
		Abort:  w.frontier.Stopping(),
	}

	page, err := w.fetcher.Fetch(ctx, request)
	if err == nil || crawl.IsFatal(err) || !crawl.IsTransient(err) || ctx.Err() != nil {
		return page, err
	}

	w.logger.Debug("retrying transient fetch failure",
		zap.String("url", pageURL), zap.Error(err))
	w.tally.RecordRetry()
	metrics.FetchRetried()
	return w.fetcher.Fetch(ctx, request)
}

func (w *Worker) publishGauges() {
	stats := w.frontier.Stats()
	metrics.SetActiveWorkers(stats.Active)
	metrics.SetFrontierPending(stats.Pending)
}
