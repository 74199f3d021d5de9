package scrape

import (
	"net/url"
	"path"
	"strings"
)

// PathMatcher filters URLs based on glob-style path patterns.
// Uses path.Match from stdlib for proper glob matching, plus a segmented
// match so "/blog/*" matches multi-level paths like "/blog/deep/path".
// A nil or empty PathMatcher excludes nothing.
type PathMatcher struct {
	patterns []string
}

// NewPathMatcher creates a PathMatcher from glob patterns (e.g. "/blog/*", "/*.pdf").
// Patterns are matched case-insensitively; blank patterns are dropped.
func NewPathMatcher(patterns []string) *PathMatcher {
	m := &PathMatcher{}
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			m.patterns = append(m.patterns, p)
		}
	}
	return m
}

// Patterns returns the configured patterns.
func (m *PathMatcher) Patterns() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.patterns...)
}

// IsExcluded checks whether a URL matches any exclude pattern.
func (m *PathMatcher) IsExcluded(rawURL string) bool {
	_, excluded := m.Match(rawURL)
	return excluded
}

// Match returns the first pattern that excludes rawURL. URLs that do not
// parse are left to the providers, which report them as failures.
func (m *PathMatcher) Match(rawURL string) (string, bool) {
	if m == nil || len(m.patterns) == 0 {
		return "", false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	urlPath := strings.ToLower(u.Path)
	for _, pattern := range m.patterns {
		if matchSegmented(pattern, urlPath) {
			return pattern, true
		}
	}
	return "", false
}

// matchSegmented performs glob matching where a pattern like "/blog/*"
// matches both "/blog/post" and "/blog/deep/nested/path".
func matchSegmented(pattern, urlPath string) bool {
	if ok, _ := path.Match(pattern, urlPath); ok {
		return true
	}

	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if urlPath == prefix || strings.HasPrefix(urlPath, prefix+"/") {
			return true
		}
	}
	return false
}
