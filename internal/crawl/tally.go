package crawl

import "sync"

// Tally accumulates per-URL results across workers. All methods are safe for
// concurrent use; locking covers counter updates only.
type Tally struct {
	mu              sync.Mutex
	succeeded       int
	failed          int
	retries         int
	persistFailures int
	failures        []PageFailure
}

// NewTally returns an empty Tally.
func NewTally() *Tally {
	return &Tally{}
}

// RecordSuccess counts one fully processed URL.
func (t *Tally) RecordSuccess() {
	t.mu.Lock()
	t.succeeded++
	t.mu.Unlock()
}

// RecordFailure counts one failed URL with its error class.
func (t *Tally) RecordFailure(url string, kind ErrorKind, err error) {
	failure := PageFailure{URL: url, Kind: kind}
	if err != nil {
		failure.Error = err.Error()
	}
	t.mu.Lock()
	t.failed++
	t.failures = append(t.failures, failure)
	t.mu.Unlock()
}

// RecordRetry counts one transient-error retry.
func (t *Tally) RecordRetry() {
	t.mu.Lock()
	t.retries++
	t.mu.Unlock()
}

// RecordPersistFailure counts a sink write that failed. The page itself
// still counts as succeeded.
func (t *Tally) RecordPersistFailure() {
	t.mu.Lock()
	t.persistFailures++
	t.mu.Unlock()
}

// Snapshot copies the current counters into an Outcome shell.
func (t *Tally) Snapshot() Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Outcome{
		Succeeded:       t.succeeded,
		Failed:          t.failed,
		Retries:         t.retries,
		PersistFailures: t.persistFailures,
		Failures:        append([]PageFailure(nil), t.failures...),
	}
}
