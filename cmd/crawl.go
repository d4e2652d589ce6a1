package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/docrover/docrover/internal/cache"
	"github.com/docrover/docrover/internal/clock/system"
	"github.com/docrover/docrover/internal/config"
	"github.com/docrover/docrover/internal/crawl"
	"github.com/docrover/docrover/internal/dispatcher"
	"github.com/docrover/docrover/internal/extract"
	"github.com/docrover/docrover/internal/fetcher/headless"
	"github.com/docrover/docrover/internal/fetcher/static"
	"github.com/docrover/docrover/internal/id/uuid"
	"github.com/docrover/docrover/internal/metrics"
	"github.com/docrover/docrover/internal/policy/ratelimit"
	"github.com/docrover/docrover/internal/sink/fs"
	"github.com/docrover/docrover/internal/status"
)

func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl [source...]",
		Short: "Crawl configured documentation sites",
		Long: `Runs the crawl for every configured source, or only the sources named
as arguments. Each source gets its own output directory with one markdown
and one JSON file per page, plus an outcome summary.`,

		RunE: runCrawlCommand,
	}
}

func runCrawlCommand(cmd *cobra.Command, args []string) error {
	e, err := resolveEnv(cmd.Context())
	if err != nil {
		return err
	}
	names, err := selectSources(e.cfg, args)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return fmt.Errorf("no sources configured")
	}

	metrics.Init()

	fetcher, closeFetcher, err := buildFetcher(e.cfg, e.logger)
	if err != nil {
		return err
	}
	defer closeFetcher()

	limiter := buildLimiter(e.cfg, names)
	statusSrv := status.NewServer(e.logger)

	g, gctx := errgroup.WithContext(cmd.Context())
	crawlCtx, crawlsDone := context.WithCancel(gctx)
	defer crawlsDone()

	if e.cfg.Status.Enabled {
		addr := fmt.Sprintf(":%d", e.cfg.Status.Port)
		g.Go(func() error {
			return statusSrv.Serve(crawlCtx, addr)
		})
	}
	g.Go(func() error {
		defer crawlsDone()
		return runSources(crawlCtx, e, names, fetcher, limiter, statusSrv)
	})

	return g.Wait()
}

func selectSources(cfg config.Config, args []string) ([]string, error) {
	if len(args) > 0 {
		for _, name := range args {
			if _, ok := cfg.Sources[name]; !ok {
				return nil, fmt.Errorf("unknown source %q", name)
			}
		}
		return args, nil
	}
	names := make([]string, 0, len(cfg.Sources))
	for name := range cfg.Sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func buildFetcher(cfg config.Config, logger *zap.Logger) (crawl.Fetcher, func(), error) {
	var (
		fetcher crawl.Fetcher
		closer  = func() {}
	)
	switch cfg.Fetch.Engine {
	case "static":
		fetcher = static.New(static.Config{
			UserAgent: cfg.Crawler.UserAgent,
			Timeout:   cfg.Fetch.NavTimeout(),
		})
	default:
		headlessFetcher, err := headless.New(headless.Config{
			MaxOpenPages:      cfg.Crawler.FetchParallel,
			UserAgent:         cfg.Crawler.UserAgent,
			NavigationTimeout: cfg.Fetch.NavTimeout(),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init browser: %w", err)
		}
		fetcher = headlessFetcher
		closer = headlessFetcher.Close
	}

	if cfg.Cache.Enabled {
		cached, err := cache.New(fetcher, system.New(), logger, cache.Config{
			Dir: cfg.Cache.Dir,
			TTL: cfg.Cache.TTL(),
		})
		if err != nil {
			closer()
			return nil, nil, fmt.Errorf("init cache: %w", err)
		}
		fetcher = cached
	}
	return fetcher, closer, nil
}

func buildLimiter(cfg config.Config, names []string) *ratelimit.Limiter {
	overrides := make(map[string]float64)
	for _, name := range names {
		src := cfg.Sources[name]
		if src.RPS <= 0 {
			continue
		}
		if host := seedHost(src.URL); host != "" {
			overrides[host] = src.RPS
		}
	}
	return ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.RateLimit.DefaultRPS,
		DefaultBurst: cfg.RateLimit.DefaultBurst,
		DomainRPS:    overrides,
	})
}

func seedHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func runSources(
	ctx context.Context,
	e *env,
	names []string,
	fetcher crawl.Fetcher,
	limiter *ratelimit.Limiter,
	statusSrv *status.Server,
) error {
	clk := system.New()
	ids := uuid.New()

	for _, name := range names {
		src := e.cfg.Sources[name]
		logger := e.logger.With(zap.String("source", name))

		prefix := src.AllowPrefix
		if prefix == "" {
			prefix = src.URL
		}
		scope, err := crawl.NewScope(prefix)
		if err != nil {
			return fmt.Errorf("source %s: %w", name, err)
		}

		outDir := src.OutputDir
		if outDir == "" {
			outDir = filepath.Join(e.cfg.Output.Dir, name)
		}
		sink, err := fs.New(outDir, logger)
		if err != nil {
			return fmt.Errorf("source %s: %w", name, err)
		}

		coord := dispatcher.New(
			fetcher,
			extract.New(src.ContentSelector, src.LinkSelector),
			sink,
			limiter,
			clk,
			ids,
			scope.Key,
			logger,
			dispatcher.Config{
				Source:       name,
				Seeds:        []string{src.URL},
				PoolSize:     e.cfg.Crawler.PoolSize,
				ClaimTimeout: e.cfg.Crawler.ClaimTimeout(),
				Fetch: crawl.FetchConfig{
					WaitSelector:    src.WaitSelector,
					ContentSelector: src.ContentSelector,
					Timeout:         e.cfg.Fetch.NavTimeout(),
					RenderFrames:    src.RenderFrames || e.cfg.Fetch.RenderFrames,
					UserAgent:       e.cfg.Crawler.UserAgent,
				},
			},
		)

		statusSrv.Track(name, coord)
		outcome, runErr := coord.Run(ctx)
		statusSrv.Untrack(name)

		if err := writeOutcome(outDir, outcome); err != nil {
			logger.Warn("outcome summary not written", zap.Error(err))
		}
		if runErr != nil {
			return fmt.Errorf("source %s: %w", name, runErr)
		}
	}
	return nil
}

func writeOutcome(dir string, outcome crawl.Outcome) error {
	payload, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}
	path := filepath.Join(dir, "outcome.json")
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		return fmt.Errorf("write outcome %s: %w", path, err)
	}
	return nil
}
