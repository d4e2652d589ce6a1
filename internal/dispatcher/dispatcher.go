// Package dispatcher runs a crawl from seed to outcome: it seeds the
// frontier, fans out a worker pool, and assembles the run summary once the
// pool drains.
package dispatcher

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/docrover/docrover/internal/crawl"
	"github.com/docrover/docrover/internal/frontier"
	"github.com/docrover/docrover/internal/worker"
)

// DefaultPoolSize is used when Config.PoolSize is not positive.
const DefaultPoolSize = 3

// IDGenerator mints run identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// Config controls one crawl run.
type Config struct {
	// Source labels the run in logs, metrics, and the outcome.
	Source string
	// Seeds are the starting URLs. They pass through the frontier key
	// function like any discovered link.
	Seeds []string
	// PoolSize is the number of concurrent workers.
	PoolSize int
	// ClaimTimeout bounds each worker's frontier wait.
	ClaimTimeout time.Duration
	// Fetch is applied to every request the pool issues.
	Fetch crawl.FetchConfig
}

// Coordinator owns the lifecycle of one crawl run.
type Coordinator struct {
	fetcher   crawl.Fetcher
	extractor crawl.Extractor
	sink      crawl.Sink
	limiter   worker.Limiter
	clock     crawl.Clock
	ids       IDGenerator
	keyFor    frontier.KeyFunc
	logger    *zap.Logger
	cfg       Config

	state atomic.Pointer[runState]
}

type runState struct {
	runID string
	front *frontier.Frontier
	tally *crawl.Tally
}

// New constructs a Coordinator. limiter may be nil.
func New(
	fetcher crawl.Fetcher,
	extractor crawl.Extractor,
	sink crawl.Sink,
	limiter worker.Limiter,
	clock crawl.Clock,
	ids IDGenerator,
	keyFor frontier.KeyFunc,
	logger *zap.Logger,
	cfg Config,
) *Coordinator {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = DefaultPoolSize
	}
	return &Coordinator{
		fetcher:   fetcher,
		extractor: extractor,
		sink:      sink,
		limiter:   limiter,
		clock:     clock,
		ids:       ids,
		keyFor:    keyFor,
		logger:    logger,
		cfg:       cfg,
	}
}

// Run crawls until the frontier is exhausted, the context is cancelled, or a
// fatal resource failure forces shutdown. The returned Outcome is populated
// in every case; the error is non-nil only for cancelled and fatal runs.
func (c *Coordinator) Run(ctx context.Context) (crawl.Outcome, error) {
	runID, err := c.ids.NewID()
	if err != nil {
		return crawl.Outcome{}, err
	}
	started := c.clock.Now()

	front := frontier.New(c.keyFor)
	seeded := 0
	for _, seed := range c.cfg.Seeds {
		if front.Offer(seed) {
			seeded++
		} else {
			c.logger.Warn("seed rejected or duplicate", zap.String("url", seed))
		}
	}
	c.logger.Info("crawl starting",
		zap.String("run_id", runID),
		zap.String("source", c.cfg.Source),
		zap.Int("seeds", seeded),
		zap.Int("pool_size", c.cfg.PoolSize),
	)

	tally := crawl.NewTally()
	c.state.Store(&runState{runID: runID, front: front, tally: tally})
	defer c.state.Store(nil)

	var (
		fatalOnce sync.Once
		fatalErr  error
	)
	fatal := func(err error) {
		fatalOnce.Do(func() {
			fatalErr = err
			c.logger.Error("forcing shutdown", zap.Error(err))
			front.Shutdown()
		})
	}

	workerCfg := worker.Config{
		Source:       c.cfg.Source,
		Fetch:        c.cfg.Fetch,
		ClaimTimeout: c.cfg.ClaimTimeout,
	}
	var wg sync.WaitGroup
	for i := 0; i < c.cfg.PoolSize; i++ {
		w := worker.New(front, c.fetcher, c.extractor, c.sink,
			c.limiter, c.clock, tally, fatal, c.logger, workerCfg)
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run(ctx)
		}()
	}
	wg.Wait()

	outcome := tally.Snapshot()
	outcome.RunID = runID
	outcome.Source = c.cfg.Source
	outcome.Started = started
	outcome.Finished = c.clock.Now()

	var runErr error
	switch {
	case fatalErr != nil:
		outcome.Status = crawl.StatusFatal
		runErr = fatalErr
	case ctx.Err() != nil:
		outcome.Status = crawl.StatusCancelled
		runErr = ctx.Err()
	default:
		outcome.Status = crawl.StatusCompleted
	}

	if outcome.Status != crawl.StatusCompleted {
		pending := front.DrainPending()
		outcome.Skipped = len(pending)
		if fatalErr != nil {
			for _, url := range pending {
				outcome.Failures = append(outcome.Failures, crawl.PageFailure{
					URL:   url,
					Kind:  crawl.KindUnattempted,
					Error: fatalErr.Error(),
				})
			}
		}
	}

	c.logger.Info("crawl finished",
		zap.String("run_id", runID),
		zap.String("status", string(outcome.Status)),
		zap.Int("succeeded", outcome.Succeeded),
		zap.Int("failed", outcome.Failed),
		zap.Int("skipped", outcome.Skipped),
		zap.Duration("duration", outcome.Duration()),
	)
	return outcome, runErr
}

// Progress snapshots the live run. The zero value is returned when no run is
// active.
func (c *Coordinator) Progress() crawl.Progress {
	state := c.state.Load()
	if state == nil {
		return crawl.Progress{Source: c.cfg.Source}
	}
	stats := state.front.Stats()
	counts := state.tally.Snapshot()
	return crawl.Progress{
		RunID:           state.runID,
		Source:          c.cfg.Source,
		Offered:         stats.Offered,
		Pending:         stats.Pending,
		Active:          stats.Active,
		Done:            stats.Done,
		Succeeded:       counts.Succeeded,
		Failed:          counts.Failed,
		Retries:         counts.Retries,
		PersistFailures: counts.PersistFailures,
	}
}
