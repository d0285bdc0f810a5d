// Package scope decides which URLs a crawl may follow.
package scope

import (
	"net/url"
	"strings"
)

// Checker validates URLs against scope rules.
type Checker struct {
	rules      ScopeRules
	targetHost string
}

// NewChecker creates a new scope checker anchored on the seed URL's host.
func NewChecker(targetURL string, rules ScopeRules) (*Checker, error) {
	parsed, err := url.Parse(targetURL)
	if err != nil {
		return nil, err
	}

	return &Checker{
		rules:      rules,
		targetHost: strings.ToLower(parsed.Host),
	}, nil
}

// IsInScope checks if a URL may be fetched at the given depth.
func (c *Checker) IsInScope(urlStr string, depth int) bool {
	if c.rules.MaxDepth > 0 && depth > c.rules.MaxDepth {
		return false
	}
	return c.IsSameHost(urlStr)
}

// IsSameHost reports whether urlStr is an http(s) URL on the seed host.
func (c *Checker) IsSameHost(urlStr string) bool {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return false
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}

	return strings.ToLower(parsed.Host) == c.targetHost
}

// TargetHost returns the host every crawled URL must share.
func (c *Checker) TargetHost() string {
	return c.targetHost
}

// NormalizeURL strips the query string and fragment. The result keys the visited set.
func NormalizeURL(rawURL string) string {
	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}

// ResolveURL resolves a reference against the URL of the page it appeared on.
// The fragment is dropped; the query is kept.
func ResolveURL(baseURL, ref string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}

	parsed, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", err
	}

	resolved := base.ResolveReference(parsed)
	resolved.Fragment = ""
	resolved.RawFragment = ""
	return resolved.String(), nil
}

// ParseSeed checks that rawURL is an absolute http(s) URL with a host.
func ParseSeed(rawURL string) (*url.URL, bool) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, false
	}
	if parsed.Host == "" {
		return nil, false
	}
	return parsed, true
}

// IsFollowableRef filters references that never lead to a page.
func IsFollowableRef(ref string) bool {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") {
		return false
	}

	lower := strings.ToLower(ref)
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, prefix) {
			return false
		}
	}
	return true
}
