package crawl

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies per-URL fetch failures.
type ErrorKind string

// Fetch failure classes. Timeout and Network are transient and retried once;
// NotFound and Blocked are permanent. Unattempted marks URLs that were never
// fetched: still queued when a fatal shutdown drained the frontier, or
// claimed but abandoned before the fetch began.
const (
	KindTimeout     ErrorKind = "timeout"
	KindNotFound    ErrorKind = "not_found"
	KindNetwork     ErrorKind = "network"
	KindBlocked     ErrorKind = "blocked"
	KindUnattempted ErrorKind = "unattempted"
)

// ErrBrowserGone signals that the shared browsing resource itself is
// unusable. It is the only error class that terminates a run early.
var ErrBrowserGone = errors.New("shared browser is unusable")

// FetchError is the typed failure returned by fetchers.
type FetchError struct {
	Kind ErrorKind
	URL  string
	Err  error
}

// NewFetchError wraps err with a failure class for the given URL.
func NewFetchError(kind ErrorKind, url string, err error) *FetchError {
	return &FetchError{Kind: kind, URL: url, Err: err}
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is worth one retry (timeout class, or a
// network blip). Context cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind == KindTimeout || fe.Kind == KindNetwork
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// IsFatal reports whether err must trigger forced shutdown of the run.
func IsFatal(err error) bool {
	return errors.Is(err, ErrBrowserGone)
}

// Classify maps an arbitrary fetch failure onto an ErrorKind.
func Classify(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindNetwork
}
