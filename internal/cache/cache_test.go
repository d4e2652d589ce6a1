package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/docrover/docrover/internal/crawl"
)

type countingFetcher struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingFetcher) Fetch(_ context.Context, request crawl.FetchRequest) (crawl.RenderedPage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return crawl.RenderedPage{}, c.err
	}
	return crawl.RenderedPage{
		URL:        request.URL,
		StatusCode: 200,
		HTML:       []byte("<html>cached</html>"),
	}, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestFetchCachesSecondCall(t *testing.T) {
	t.Parallel()

	inner := &countingFetcher{}
	clock := &fakeClock{now: time.Unix(1000, 0)}
	f, err := New(inner, clock, zap.NewNop(), Config{Dir: t.TempDir()})
	require.NoError(t, err)

	req := crawl.FetchRequest{URL: "https://docs.example.com/guide"}
	first, err := f.Fetch(context.Background(), req)
	require.NoError(t, err)
	second, err := f.Fetch(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, 1, inner.calls)
	require.Equal(t, first.HTML, second.HTML)
}

func TestFetchExpiredEntryRefetches(t *testing.T) {
	t.Parallel()

	inner := &countingFetcher{}
	clock := &fakeClock{now: time.Unix(1000, 0)}
	f, err := New(inner, clock, zap.NewNop(), Config{Dir: t.TempDir(), TTL: time.Hour})
	require.NoError(t, err)

	req := crawl.FetchRequest{URL: "https://docs.example.com/guide"}
	_, err = f.Fetch(context.Background(), req)
	require.NoError(t, err)

	clock.advance(2 * time.Hour)
	_, err = f.Fetch(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 2, inner.calls)
}

func TestFetchErrorsAreNotCached(t *testing.T) {
	t.Parallel()

	inner := &countingFetcher{err: crawl.NewFetchError(crawl.KindNetwork, "u", nil)}
	clock := &fakeClock{now: time.Unix(1000, 0)}
	f, err := New(inner, clock, zap.NewNop(), Config{Dir: t.TempDir()})
	require.NoError(t, err)

	req := crawl.FetchRequest{URL: "https://docs.example.com/guide"}
	_, err = f.Fetch(context.Background(), req)
	require.Error(t, err)

	inner.mu.Lock()
	inner.err = nil
	inner.mu.Unlock()

	page, err := f.Fetch(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 200, page.StatusCode)
	require.Equal(t, 2, inner.calls)
}

func TestDistinctURLsGetDistinctEntries(t *testing.T) {
	t.Parallel()

	inner := &countingFetcher{}
	clock := &fakeClock{now: time.Unix(1000, 0)}
	f, err := New(inner, clock, zap.NewNop(), Config{Dir: t.TempDir()})
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), crawl.FetchRequest{URL: "https://docs.example.com/a"})
	require.NoError(t, err)
	_, err = f.Fetch(context.Background(), crawl.FetchRequest{URL: "https://docs.example.com/b"})
	require.NoError(t, err)
	require.Equal(t, 2, inner.calls)
}
