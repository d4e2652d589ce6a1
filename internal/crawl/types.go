// Package crawl defines the core types and contracts shared across the
// crawler subsystems: fetch requests and rendered pages, extracted content,
// page records handed to sinks, and the terminal crawl outcome.
package crawl

import (
	"time"
)

// FetchConfig carries the per-fetch rendering knobs.
type FetchConfig struct {
	// WaitSelector is a CSS selector the fetcher waits for before
	// considering the page loaded. Empty means wait for body readiness.
	WaitSelector string
	// ContentSelector restricts extraction to a subtree of the document.
	ContentSelector string
	// Timeout bounds a single fetch attempt.
	Timeout time.Duration
	// RenderFrames pulls nested iframe documents into the returned HTML.
	RenderFrames bool
	// UserAgent overrides the fetcher default when non-empty.
	UserAgent string
}

// FetchRequest captures everything needed to fetch one page.
type FetchRequest struct {
	URL    string
	Config FetchConfig
	// Abort, when closed, wakes a fetch still waiting for an admission
	// slot. A fetch already holding a slot runs to completion.
	Abort <-chan struct{}
}

// RenderedPage is the result of a successful fetch.
type RenderedPage struct {
	// URL is the requested URL; FinalURL reflects redirects.
	URL        string
	FinalURL   string
	StatusCode int
	HTML       []byte
	Duration   time.Duration
	FetchedAt  time.Time
}

// Link is one outbound navigation candidate discovered on a page.
type Link struct {
	Href string `json:"href"`
	Text string `json:"text"`
}

// Content is the extracted payload of a page.
type Content struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// PageRecord is produced once per successfully processed URL and handed to
// the sink. It is immutable after creation.
type PageRecord struct {
	URL       string    `json:"url"`
	Page      string    `json:"page"`
	Content   Content   `json:"content"`
	Links     []Link    `json:"navigation"`
	FetchedAt time.Time `json:"timestamp"`
}

// Status is the terminal state of a crawl run.
type Status string

// Terminal crawl statuses.
const (
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusFatal     Status = "fatal"
)

// PageFailure records one URL that could not be processed.
type PageFailure struct {
	URL   string    `json:"url"`
	Kind  ErrorKind `json:"kind"`
	Error string    `json:"error,omitempty"`
}

// Outcome is the summary assembled when a crawl terminates.
type Outcome struct {
	RunID           string        `json:"run_id"`
	Source          string        `json:"source"`
	Status          Status        `json:"status"`
	Succeeded       int           `json:"succeeded"`
	Failed          int           `json:"failed"`
	Skipped         int           `json:"skipped"`
	Retries         int           `json:"retries"`
	PersistFailures int           `json:"persist_failures"`
	Failures        []PageFailure `json:"failures,omitempty"`
	Started         time.Time     `json:"started_at"`
	Finished        time.Time     `json:"finished_at"`
}

// Duration reports the wall time of the run.
func (o Outcome) Duration() time.Duration {
	return o.Finished.Sub(o.Started)
}

// Progress is a point-in-time view of a running crawl, served by the status
// endpoint while the run is live.
type Progress struct {
	RunID           string `json:"run_id"`
	Source          string `json:"source"`
	Offered         int    `json:"offered"`
	Pending         int    `json:"pending"`
	Active          int    `json:"active"`
	Done            int    `json:"done"`
	Succeeded       int    `json:"succeeded"`
	Failed          int    `json:"failed"`
	Retries         int    `json:"retries"`
	PersistFailures int    `json:"persist_failures"`
}
