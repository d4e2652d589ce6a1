package crawl

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// assetExtensions lists path suffixes that never hold documentation pages.
var assetExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".svg": {}, ".ico": {},
	".css": {}, ".js": {}, ".map": {},
	".pdf": {}, ".zip": {}, ".gz": {}, ".tar": {},
	".woff": {}, ".woff2": {}, ".ttf": {}, ".eot": {},
	".mp4": {}, ".webm": {},
}

// NormalizeURL standardizes a URL so that two spellings of the same page
// collapse into one work item. It lowercases the scheme and host, removes
// default ports, strips the fragment, sorts query parameters, and trims a
// trailing slash from non-root paths. Normalization is idempotent.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("missing host in %q", rawURL)
	}

	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""
	u.RawQuery = u.Query().Encode()

	if u.Path != "/" {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	return u.String(), nil
}

// Scope restricts a crawl to one documentation site: the seed host plus an
// optional path prefix, with asset URLs filtered out.
type Scope struct {
	host       string
	pathPrefix string
}

// NewScope derives a Scope from the allowed prefix URL (typically the seed).
func NewScope(prefixURL string) (Scope, error) {
	normalized, err := NormalizeURL(prefixURL)
	if err != nil {
		return Scope{}, fmt.Errorf("scope prefix: %w", err)
	}
	u, err := url.Parse(normalized)
	if err != nil {
		return Scope{}, fmt.Errorf("scope prefix: %w", err)
	}
	return Scope{
		host:       u.Hostname(),
		pathPrefix: u.Path,
	}, nil
}

// Allows reports whether the normalized URL belongs to this scope.
func (s Scope) Allows(normalized string) bool {
	u, err := url.Parse(normalized)
	if err != nil {
		return false
	}
	if !strings.EqualFold(u.Hostname(), s.host) {
		return false
	}
	if s.pathPrefix != "" && s.pathPrefix != "/" {
		if u.Path != s.pathPrefix && !strings.HasPrefix(u.Path, s.pathPrefix+"/") {
			return false
		}
	}
	if _, asset := assetExtensions[strings.ToLower(path.Ext(u.Path))]; asset {
		return false
	}
	return true
}

// Key normalizes raw and applies the scope filter, returning the frontier
// key and true, or "" and false for malformed or out-of-scope URLs.
func (s Scope) Key(raw string) (string, bool) {
	normalized, err := NormalizeURL(raw)
	if err != nil {
		return "", false
	}
	if !s.Allows(normalized) {
		return "", false
	}
	return normalized, true
}

// PageName derives the sink file stem for a URL: the path with slashes
// replaced by underscores, or "index" for the site root.
func PageName(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "index"
	}
	name := strings.Trim(u.Path, "/")
	if name == "" {
		return "index"
	}
	name = strings.ReplaceAll(name, "/", "_")
	return strings.ReplaceAll(name, "\\", "_")
}
