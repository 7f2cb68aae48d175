// Package dumplinks finds dump-file URLs on HTML listing pages. It is
// network-free: callers fetch the pages and hand the HTML in.
package dumplinks

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultPerPage is the listing page size assumed when expanding paging
// URLs and no explicit size is given.
const DefaultPerPage = 25

// DefaultSuffixes are the path suffixes treated as dump links when
// Options.Suffixes is empty.
var DefaultSuffixes = []string{".sql", ".sql.gz"}

// Options tunes link extraction.
type Options struct {
	// Suffixes are the URL path suffixes that mark a dump link, compared
	// case-insensitively. Empty means DefaultSuffixes.
	Suffixes []string
}

// Extract parses htmlBody and returns the dump URLs it links to, in
// document order, deduplicated (first occurrence wins).
//
// Hrefs are resolved against baseURL. Only http(s) links on the same host
// as baseURL are kept; fragments are stripped before deduplication.
func Extract(htmlBody, baseURL string, opt Options) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlBody))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("base url %q: %w", baseURL, err)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("base url %q: no host", baseURL)
	}

	suffixes := opt.Suffixes
	if len(suffixes) == 0 {
		suffixes = DefaultSuffixes
	}

	seen := make(map[string]struct{})
	var out []string

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		resolved, ok := resolveSameHost(base, strings.TrimSpace(href))
		if !ok {
			return
		}
		if !hasSuffix(resolved.Path, suffixes) {
			return
		}

		s := resolved.String()
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	})

	return out, nil
}

// resolveSameHost resolves href against base and applies the crawl rules:
// http(s) scheme only, exact same host (port included), fragment dropped.
func resolveSameHost(base *url.URL, href string) (*url.URL, bool) {
	if href == "" {
		return nil, false
	}
	u, err := url.Parse(href)
	if err != nil {
		return nil, false
	}

	resolved := base.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return nil, false
	}
	if resolved.Host != base.Host {
		return nil, false
	}
	resolved.Fragment = ""
	return resolved, true
}

// hasSuffix reports whether path ends in any of the suffixes, ignoring case.
func hasSuffix(path string, suffixes []string) bool {
	p := strings.ToLower(path)
	for _, s := range suffixes {
		if s == "" {
			continue
		}
		if strings.HasSuffix(p, strings.ToLower(s)) {
			return true
		}
	}
	return false
}

// PageURLs expands a listing URL into its numbered pages. Page 1 is the
// bare URL; pages 2..total/perPage follow the <url>/<n>/ convention. A
// non-positive perPage falls back to DefaultPerPage.
func PageURLs(listURL string, total, perPage int) []string {
	listURL = strings.TrimSuffix(strings.TrimSpace(listURL), "/")
	if listURL == "" {
		return nil
	}
	if perPage <= 0 {
		perPage = DefaultPerPage
	}

	out := []string{listURL}
	pages := total / perPage
	for p := 2; p <= pages; p++ {
		out = append(out, fmt.Sprintf("%s/%d/", listURL, p))
	}
	return out
}

// ParseCount parses a listing item count that may use spaces as thousand
// separators, e.g. "1 000".
func ParseCount(s string) (int, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if s == "" {
		return 0, fmt.Errorf("empty count")
	}
	return strconv.Atoi(s)
}
