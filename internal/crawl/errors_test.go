package crawl

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsTransient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"timeout kind", NewFetchError(KindTimeout, "u", nil), true},
		{"network kind", NewFetchError(KindNetwork, "u", nil), true},
		{"not found kind", NewFetchError(KindNotFound, "u", nil), false},
		{"blocked kind", NewFetchError(KindBlocked, "u", nil), false},
		{"bare deadline", context.DeadlineExceeded, true},
		{"cancellation", context.Canceled, false},
		{"nil", nil, false},
		{"wrapped fetch error", fmt.Errorf("attempt: %w", NewFetchError(KindTimeout, "u", nil)), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsFatal(t *testing.T) {
	t.Parallel()

	require.True(t, IsFatal(ErrBrowserGone))
	require.True(t, IsFatal(fmt.Errorf("fetch: %w", ErrBrowserGone)))
	require.False(t, IsFatal(NewFetchError(KindNetwork, "u", errors.New("refused"))))
}

func TestClassify(t *testing.T) {
	t.Parallel()

	require.Equal(t, KindBlocked, Classify(NewFetchError(KindBlocked, "u", nil)))
	require.Equal(t, KindTimeout, Classify(context.DeadlineExceeded))
	require.Equal(t, KindNetwork, Classify(errors.New("connection reset")))
}

func TestTallyConcurrentRecording(t *testing.T) {
	t.Parallel()

	tally := NewTally()
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(i int) {
			defer func() { done <- struct{}{} }()
			tally.RecordSuccess()
			tally.RecordFailure(fmt.Sprintf("https://example.com/%d", i), KindTimeout, context.DeadlineExceeded)
			tally.RecordRetry()
			tally.RecordPersistFailure()
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	snap := tally.Snapshot()
	require.Equal(t, 8, snap.Succeeded)
	require.Equal(t, 8, snap.Failed)
	require.Equal(t, 8, snap.Retries)
	require.Equal(t, 8, snap.PersistFailures)
	require.Len(t, snap.Failures, 8)
}
