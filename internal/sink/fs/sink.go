// Package fs persists page records as one markdown and one JSON file per
// page under the source output directory.
package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nao1215/markdown"
	"go.uber.org/zap"

	"github.com/docrover/docrover/internal/crawl"
)

// Sink implements crawl.Sink on the local filesystem.
type Sink struct {
	root   string
	logger *zap.Logger
}

// New returns a sink rooted at dir, creating it if needed.
func New(dir string, logger *zap.Logger) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", dir, err)
	}
	return &Sink{root: dir, logger: logger}, nil
}

// Persist writes record as <page>.md and <page>.json.
func (s *Sink) Persist(ctx context.Context, record crawl.PageRecord) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("persist canceled: %w", err)
	}
	if err := s.writeMarkdown(record); err != nil {
		return err
	}
	if err := s.writeJSON(record); err != nil {
		return err
	}
	s.logger.Debug("page persisted",
		zap.String("url", record.URL),
		zap.String("page", record.Page),
	)
	return nil
}

func (s *Sink) writeMarkdown(record crawl.PageRecord) error {
	path := filepath.Join(s.root, record.Page+".md")
	file, err := os.Create(path) //nolint:gosec // page names are sanitized
	if err != nil {
		return fmt.Errorf("create markdown %s: %w", path, err)
	}
	defer file.Close() //nolint:errcheck // build error is returned below

	title := record.Content.Title
	if title == "" {
		title = record.Page
	}

	md := markdown.NewMarkdown(file).
		H1(title).
		PlainTextf("URL: %s", record.URL).
		PlainText("").
		PlainText(record.Content.Text)

	if len(record.Links) > 0 {
		items := make([]string, 0, len(record.Links))
		for _, link := range record.Links {
			text := link.Text
			if text == "" {
				text = link.Href
			}
			items = append(items, markdown.Link(text, link.Href))
		}
		md.PlainText("").H2("Navigation").BulletList(items...)
	}

	if err := md.Build(); err != nil {
		return fmt.Errorf("write markdown %s: %w", path, err)
	}
	return nil
}

func (s *Sink) writeJSON(record crawl.PageRecord) error {
	path := filepath.Join(s.root, record.Page+".json")
	payload, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", record.URL, err)
	}
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		return fmt.Errorf("write json %s: %w", path, err)
	}
	return nil
}
