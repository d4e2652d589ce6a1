package static

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/docrover/docrover/internal/crawl"
)

func TestFetchSuccess(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><main>hello</main></body></html>"))
	}))
	defer srv.Close()

	f := New(Config{UserAgent: "docrover-test"})
	page, err := f.Fetch(context.Background(), crawl.FetchRequest{URL: srv.URL})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, page.StatusCode)
	require.Contains(t, string(page.HTML), "hello")
	require.Equal(t, srv.URL, page.URL)
}

func TestFetchNotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	f := New(Config{})
	_, err := f.Fetch(context.Background(), crawl.FetchRequest{URL: srv.URL + "/missing"})
	require.Error(t, err)
	require.Equal(t, crawl.KindNotFound, crawl.Classify(err))
	require.False(t, crawl.IsTransient(err))
}

func TestFetchBlocked(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	f := New(Config{})
	_, err := f.Fetch(context.Background(), crawl.FetchRequest{URL: srv.URL})
	require.Error(t, err)
	require.Equal(t, crawl.KindBlocked, crawl.Classify(err))
}

func TestFetchTimeoutIsTransient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer srv.Close()

	f := New(Config{Timeout: 50 * time.Millisecond})
	_, err := f.Fetch(context.Background(), crawl.FetchRequest{URL: srv.URL})
	require.Error(t, err)
	require.True(t, crawl.IsTransient(err))
}

func TestFetchRefusedConnection(t *testing.T) {
	t.Parallel()

	f := New(Config{Timeout: time.Second})
	_, err := f.Fetch(context.Background(), crawl.FetchRequest{URL: "http://127.0.0.1:1/"})
	require.Error(t, err)
	require.Equal(t, crawl.KindNetwork, crawl.Classify(err))
}

func TestFetchCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := New(Config{})
	_, err := f.Fetch(ctx, crawl.FetchRequest{URL: "http://docs.example.com/"})
	require.Error(t, err)
}
