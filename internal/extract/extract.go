// Package extract turns rendered HTML into the page payload and its
// outbound navigation candidates.
package extract

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/docrover/docrover/internal/crawl"
)

// chrome elements are stripped before content extraction; links are
// collected first so navigation menus still contribute candidates.
const chromeSelector = "nav, header, footer, script, style, noscript"

// skipLinkText marks pager anchors that never lead to new content.
var skipLinkText = map[string]struct{}{
	"next":     {},
	"previous": {},
	"prev":     {},
}

// Extractor implements crawl.Extractor using goquery.
type Extractor struct {
	contentSelector string
	linkSelector    string
}

// New builds an Extractor. contentSelector defaults to "main, article, body"
// and linkSelector to "a[href]" when empty.
func New(contentSelector, linkSelector string) *Extractor {
	if contentSelector == "" {
		contentSelector = "main, article, body"
	}
	if linkSelector == "" {
		linkSelector = "a[href]"
	}
	return &Extractor{
		contentSelector: contentSelector,
		linkSelector:    linkSelector,
	}
}

// Extract returns the content payload and outbound links of page, in
// document order. It never fails: unparseable input yields empty results.
func (e *Extractor) Extract(page crawl.RenderedPage) (crawl.Content, []crawl.Link) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.HTML))
	if err != nil {
		return crawl.Content{}, nil
	}

	base := page.FinalURL
	if base == "" {
		base = page.URL
	}
	links := e.collectLinks(doc, base)

	doc.Find(chromeSelector).Remove()

	content := crawl.Content{
		Title: pageTitle(doc),
	}
	if region := doc.Find(e.contentSelector).First(); region.Length() > 0 {
		content.Text = normalizeText(region.Text())
	}
	return content, links
}

func (e *Extractor) collectLinks(doc *goquery.Document, base string) []crawl.Link {
	baseURL, err := url.Parse(base)
	if err != nil {
		baseURL = nil
	}

	var links []crawl.Link
	seen := make(map[string]struct{})
	doc.Find(e.linkSelector).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
			return
		}

		text := strings.TrimSpace(sel.Text())
		if _, pager := skipLinkText[strings.ToLower(text)]; pager {
			return
		}

		absolute := href
		if baseURL != nil {
			ref, err := url.Parse(href)
			if err != nil {
				return
			}
			absolute = baseURL.ResolveReference(ref).String()
		}
		if _, dup := seen[absolute]; dup {
			return
		}
		seen[absolute] = struct{}{}
		links = append(links, crawl.Link{Href: absolute, Text: text})
	})
	return links
}

func pageTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

// normalizeText collapses runs of blank lines and trims per-line whitespace,
// mirroring what a text-mode dump of the content region should read like.
func normalizeText(raw string) string {
	lines := strings.Split(raw, "\n")
	out := make([]string, 0, len(lines))
	blank := true
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
