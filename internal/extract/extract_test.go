package extract

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/docrover/docrover/internal/crawl"
)

const samplePage = `<!DOCTYPE html>
<html>
<head><title>Install Guide</title></head>
<body>
<nav>
  <a href="/guide/install">Installation</a>
  <a href="/guide/config">Configuration</a>
  <a href="/guide/config">Configuration (duplicate)</a>
  <a href="/guide/api#section">Next</a>
</nav>
<main>
  <h1>Installing</h1>
  <p>Run the installer.</p>

  <p>Then verify the checksum.</p>
</main>
<footer><a href="https://other.example.com/legal">Legal</a></footer>
<script>console.log("ignore")</script>
</body>
</html>`

func TestExtractContentAndLinks(t *testing.T) {
	t.Parallel()

	e := New("main", "")
	content, links := e.Extract(crawl.RenderedPage{
		URL:  "https://docs.example.com/guide/",
		HTML: []byte(samplePage),
	})

	require.Equal(t, "Install Guide", content.Title)
	require.Contains(t, content.Text, "Run the installer.")
	require.Contains(t, content.Text, "Then verify the checksum.")
	require.NotContains(t, content.Text, "console.log")

	hrefs := make([]string, 0, len(links))
	for _, l := range links {
		hrefs = append(hrefs, l.Href)
	}
	// Document order, duplicates collapsed, pager text skipped; the
	// off-site link survives here because scope filtering is the
	// frontier's job.
	require.Equal(t, []string{
		"https://docs.example.com/guide/install",
		"https://docs.example.com/guide/config",
		"https://other.example.com/legal",
	}, hrefs)
	require.Equal(t, "Installation", links[0].Text)
}

func TestExtractLinkSelectorRestrictsCandidates(t *testing.T) {
	t.Parallel()

	e := New("main", "nav a")
	_, links := e.Extract(crawl.RenderedPage{
		URL:  "https://docs.example.com/guide/",
		HTML: []byte(samplePage),
	})

	for _, l := range links {
		require.NotEqual(t, "https://other.example.com/legal", l.Href)
	}
	require.Len(t, links, 2)
}

func TestExtractRelativeLinksResolveAgainstFinalURL(t *testing.T) {
	t.Parallel()

	e := New("", "")
	_, links := e.Extract(crawl.RenderedPage{
		URL:      "https://docs.example.com/old",
		FinalURL: "https://docs.example.com/guide/moved",
		HTML:     []byte(`<html><body><main><a href="sibling">Sibling</a></main></body></html>`),
	})

	require.Len(t, links, 1)
	require.Equal(t, "https://docs.example.com/guide/sibling", links[0].Href)
}

func TestExtractEmptyAndMalformedInput(t *testing.T) {
	t.Parallel()

	e := New("main", "")

	content, links := e.Extract(crawl.RenderedPage{URL: "https://docs.example.com/"})
	require.Empty(t, content.Text)
	require.Empty(t, links)

	content, links = e.Extract(crawl.RenderedPage{
		URL:  "https://docs.example.com/",
		HTML: []byte("<<<<not html at all"),
	})
	require.Empty(t, content.Text)
	require.Empty(t, links)
}

func TestExtractSkipsAnchorOnlyAndScriptLinks(t *testing.T) {
	t.Parallel()

	e := New("", "")
	_, links := e.Extract(crawl.RenderedPage{
		URL: "https://docs.example.com/",
		HTML: []byte(`<html><body><main>
<a href="#top">Top</a>
<a href="javascript:void(0)">Click</a>
<a href="mailto:docs@example.com">Mail</a>
<a href="/real">Real</a>
</main></body></html>`),
	})

	require.Len(t, links, 1)
	require.Equal(t, "https://docs.example.com/real", links[0].Href)
}

func TestExtractTitleFallsBackToH1(t *testing.T) {
	t.Parallel()

	e := New("main", "")
	content, _ := e.Extract(crawl.RenderedPage{
		URL:  "https://docs.example.com/",
		HTML: []byte(`<html><body><main><h1>Heading Only</h1></main></body></html>`),
	})
	require.Equal(t, "Heading Only", content.Title)
}
