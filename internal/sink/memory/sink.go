// Package memory provides an in-memory sink for tests and dry runs.
package memory

import (
	"context"
	"sync"

	"github.com/docrover/docrover/internal/crawl"
)

// Sink collects page records in memory.
type Sink struct {
	mu      sync.Mutex
	records []crawl.PageRecord
	err     error
}

// New returns an empty Sink.
func New() *Sink {
	return &Sink{}
}

// FailWith makes subsequent Persist calls return err.
func (s *Sink) FailWith(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Persist appends the record, or returns the configured error.
func (s *Sink) Persist(_ context.Context, record crawl.PageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, record)
	return nil
}

// Records returns a copy of everything persisted so far.
func (s *Sink) Records() []crawl.PageRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]crawl.PageRecord(nil), s.records...)
}
