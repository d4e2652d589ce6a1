// Package frontier implements the deduplicating, order-preserving work queue
// shared by all crawl workers, together with the synchronized completion
// detector: the crawl is finished exactly when the queue is empty and no
// worker holds a claimed URL.
package frontier

import (
	"context"
	"sync"
	"time"
)

// KeyFunc normalizes a raw href into a frontier key. It returns false for
// malformed or out-of-scope URLs, which Offer silently drops.
type KeyFunc func(raw string) (string, bool)

// Stats is a point-in-time snapshot of frontier state.
type Stats struct {
	Offered int `json:"offered"`
	Pending int `json:"pending"`
	Active  int `json:"active"`
	Done    int `json:"done"`
}

// Frontier is the single source of truth for which URLs exist, are claimed,
// and are finished. The mutex guards the visited set, the queue, and the
// active-worker count; it is never held across I/O.
type Frontier struct {
	keyFor KeyFunc

	mu      sync.Mutex
	seen    map[string]struct{}
	queue   []string
	active  int
	offered int
	done    int

	// wake carries at most one pending signal; claimers re-arm it while
	// entries remain so every queued item eventually wakes a waiter.
	wake     chan struct{}
	complete chan struct{}
	shutdown chan struct{}

	completeOnce sync.Once
	shutdownOnce sync.Once
}

// New builds an empty frontier using keyFor for normalization.
func New(keyFor KeyFunc) *Frontier {
	return &Frontier{
		keyFor:   keyFor,
		seen:     make(map[string]struct{}),
		wake:     make(chan struct{}, 1),
		complete: make(chan struct{}),
		shutdown: make(chan struct{}),
	}
}

// Offer normalizes raw and enqueues the resulting key unless it has already
// been offered during this run. Dedup happens at enqueue time, not claim
// time, so a URL discovered from two pages is never in flight twice.
// Returns false for duplicates and for URLs the KeyFunc rejects.
func (f *Frontier) Offer(raw string) bool {
	key, ok := f.keyFor(raw)
	if !ok {
		return false
	}

	f.mu.Lock()
	if _, dup := f.seen[key]; dup {
		f.mu.Unlock()
		return false
	}
	f.seen[key] = struct{}{}
	f.queue = append(f.queue, key)
	f.offered++
	f.mu.Unlock()

	f.signal()
	return true
}

// Claim removes and returns the oldest unclaimed key, incrementing the
// active count before it returns. With an empty queue it blocks until a new
// entry arrives, the run completes or shuts down, ctx is cancelled, or
// timeout elapses (timeout <= 0 means no bound). The bool result is false
// for every outcome other than a successful claim.
func (f *Frontier) Claim(ctx context.Context, timeout time.Duration) (string, bool) {
	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	for {
		// Shutdown and cancellation win over queued work so a forced
		// stop never hands out another URL.
		select {
		case <-f.shutdown:
			return "", false
		case <-ctx.Done():
			return "", false
		default:
		}

		f.mu.Lock()
		if len(f.queue) > 0 {
			key := f.queue[0]
			f.queue = f.queue[1:]
			f.active++
			remaining := len(f.queue)
			f.mu.Unlock()
			if remaining > 0 {
				f.signal()
			}
			return key, true
		}
		// Empty queue with nobody active means no work can ever arrive
		// again; this covers the zero-seed run.
		if f.active == 0 {
			f.completeLocked()
		}
		f.mu.Unlock()

		select {
		case <-f.wake:
		case <-f.complete:
			return "", false
		case <-f.shutdown:
			return "", false
		case <-ctx.Done():
			return "", false
		case <-timeoutCh:
			return "", false
		}
	}
}

// Done returns a claimed key, decrementing the active count. The worker that
// drops the count to zero while observing an empty queue is the unique point
// that declares completion; deriving completion from (empty queue, zero
// active) instead of a done-counter closes the race between the queue
// draining and the last worker finishing.
func (f *Frontier) Done() {
	f.mu.Lock()
	f.active--
	f.done++
	if f.active == 0 && len(f.queue) == 0 {
		f.completeLocked()
	}
	f.mu.Unlock()
}

// Shutdown forces termination: every blocked Claim wakes and returns false,
// and no further work is handed out. Multiple concurrent triggers collapse
// into a single broadcast.
func (f *Frontier) Shutdown() {
	f.shutdownOnce.Do(func() {
		close(f.shutdown)
	})
}

// Completed returns a channel closed when the graceful completion condition
// has been reached.
func (f *Frontier) Completed() <-chan struct{} {
	return f.complete
}

// Stopping returns a channel closed by Shutdown. Fetchers use it to wake
// admission waits when the run is forced down.
func (f *Frontier) Stopping() <-chan struct{} {
	return f.shutdown
}

// DrainPending empties the queue and returns the keys that were never
// claimed, for fatal-outcome reporting.
func (f *Frontier) DrainPending() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	pending := f.queue
	f.queue = nil
	return pending
}

// Stats snapshots the frontier counters.
func (f *Frontier) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Stats{
		Offered: f.offered,
		Pending: len(f.queue),
		Active:  f.active,
		Done:    f.done,
	}
}

func (f *Frontier) completeLocked() {
	f.completeOnce.Do(func() {
		close(f.complete)
	})
}

func (f *Frontier) signal() {
	select {
	case f.wake <- struct{}{}:
	default:
	}
}
