package headless

import (
	"context"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/require"

	"github.com/docrover/docrover/internal/crawl"
)

func TestFetchAdmissionWaitWakesOnAbort(t *testing.T) {
	t.Parallel()

	f, err := New(Config{MaxOpenPages: 1})
	require.NoError(t, err)
	defer f.Close()

	// Hold the only slot so the fetch below blocks in the gate and never
	// reaches the browser.
	require.NoError(t, f.gate.Acquire(context.Background(), 1))
	defer f.gate.Release(1)

	abort := make(chan struct{})
	errCh := make(chan error, 1)
	go func() {
		_, fetchErr := f.Fetch(context.Background(), crawl.FetchRequest{
			URL:   "https://docs.example.com/blocked",
			Abort: abort,
		})
		errCh <- fetchErr
	}()

	close(abort)

	select {
	case fetchErr := <-errCh:
		var fe *crawl.FetchError
		require.ErrorAs(t, fetchErr, &fe)
		require.Equal(t, crawl.KindUnattempted, fe.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("gate wait did not wake on abort")
	}
}

func TestStatusError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		kind   crawl.ErrorKind
		ok     bool
	}{
		{200, "", true},
		{301, "", true},
		{404, crawl.KindNotFound, false},
		{410, crawl.KindNotFound, false},
		{401, crawl.KindBlocked, false},
		{403, crawl.KindBlocked, false},
		{429, crawl.KindBlocked, false},
		{500, crawl.KindNetwork, false},
		{503, crawl.KindNetwork, false},
	}
	for _, tt := range tests {
		err := statusError("https://docs.example.com/", tt.status)
		if tt.ok {
			require.NoError(t, err, "status %d", tt.status)
			continue
		}
		require.Error(t, err, "status %d", tt.status)
		require.Equal(t, tt.kind, crawl.Classify(err), "status %d", tt.status)
	}
}

func TestResponseMetaSnapshotFallbacks(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()

	status, url := meta.snapshot("https://req.example.com/", "")
	require.Equal(t, 200, status)
	require.Equal(t, "https://req.example.com/", url)

	status, url = meta.snapshot("https://req.example.com/", "https://final.example.com/")
	require.Equal(t, 200, status)
	require.Equal(t, "https://final.example.com/", url)
}

func TestResponseMetaCapturesDocumentEventOnly(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()
	meta.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeImage,
		Response: &network.Response{Status: 404, URL: "https://img.example.com/x.png"},
	})
	status, url := meta.snapshot("https://req.example.com/", "")
	require.Equal(t, 200, status)
	require.Equal(t, "https://req.example.com/", url)

	meta.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeDocument,
		Response: &network.Response{Status: 404, URL: "https://doc.example.com/missing"},
	})
	status, url = meta.snapshot("https://req.example.com/", "")
	require.Equal(t, 404, status)
	require.Equal(t, "https://doc.example.com/missing", url)
}
