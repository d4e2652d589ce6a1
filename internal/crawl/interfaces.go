package crawl

import (
	"context"
	"time"
)

// Fetcher retrieves a page and returns its rendered content. The shared
// browsing resource behind a Fetcher enforces its own admission limit; a
// single fetch failure is reported through the error taxonomy in errors.go.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (RenderedPage, error)
}

// Extractor turns a rendered page into its payload and outbound link
// candidates. Implementations never fail: malformed or empty input yields
// empty content and no links.
type Extractor interface {
	Extract(page RenderedPage) (Content, []Link)
}

// Sink persists a page record. Sink failures are non-fatal to the crawl and
// are tracked separately from fetch outcomes.
type Sink interface {
	Persist(ctx context.Context, record PageRecord) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
