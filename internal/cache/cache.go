// Package cache wraps a Fetcher with an on-disk page cache so repeated runs
// against the same documentation site skip the expensive render.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/docrover/docrover/internal/crawl"
	"github.com/docrover/docrover/internal/hash/sha256"
)

// Config controls the cache.
type Config struct {
	Dir string
	// TTL bounds entry freshness; expired entries are refetched.
	TTL time.Duration
}

// Fetcher is a caching decorator around another crawl.Fetcher. Cache
// read/write failures degrade to a plain fetch and are only logged.
type Fetcher struct {
	inner  crawl.Fetcher
	hasher *sha256.Hasher
	clock  crawl.Clock
	logger *zap.Logger
	cfg    Config
}

type entry struct {
	StoredAt time.Time          `json:"stored_at"`
	Page     crawl.RenderedPage `json:"page"`
}

// New builds the caching fetcher, creating the cache directory.
func New(inner crawl.Fetcher, clock crawl.Clock, logger *zap.Logger, cfg Config) (*Fetcher, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create cache dir %s: %w", cfg.Dir, err)
	}
	return &Fetcher{
		inner:  inner,
		hasher: sha256.New(),
		clock:  clock,
		logger: logger,
		cfg:    cfg,
	}, nil
}

// Fetch returns a fresh cached page when available, otherwise delegates to
// the inner fetcher and stores the result.
func (f *Fetcher) Fetch(ctx context.Context, request crawl.FetchRequest) (crawl.RenderedPage, error) {
	path, err := f.entryPath(request.URL)
	if err != nil {
		return f.inner.Fetch(ctx, request)
	}

	if page, ok := f.load(path); ok {
		f.logger.Debug("cache hit", zap.String("url", request.URL))
		return page, nil
	}

	page, err := f.inner.Fetch(ctx, request)
	if err != nil {
		return crawl.RenderedPage{}, err
	}
	f.store(path, page)
	return page, nil
}

func (f *Fetcher) entryPath(url string) (string, error) {
	key, err := f.hasher.Hash([]byte(url))
	if err != nil {
		return "", fmt.Errorf("hash cache key: %w", err)
	}
	return filepath.Join(f.cfg.Dir, key+".json"), nil
}

func (f *Fetcher) load(path string) (crawl.RenderedPage, bool) {
	data, err := os.ReadFile(path) //nolint:gosec // path is derived from a hash
	if err != nil {
		return crawl.RenderedPage{}, false
	}
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		f.logger.Warn("cache entry unreadable", zap.String("path", path), zap.Error(err))
		return crawl.RenderedPage{}, false
	}
	if f.clock.Now().Sub(e.StoredAt) > f.cfg.TTL {
		return crawl.RenderedPage{}, false
	}
	return e.Page, true
}

func (f *Fetcher) store(path string, page crawl.RenderedPage) {
	data, err := json.Marshal(entry{StoredAt: f.clock.Now(), Page: page})
	if err != nil {
		f.logger.Warn("cache entry marshal failed", zap.Error(err))
		return
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		f.logger.Warn("cache write failed", zap.String("path", path), zap.Error(err))
	}
}
