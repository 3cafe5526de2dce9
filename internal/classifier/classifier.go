// Package classifier picks the links on a listing page that are likely to
// point at individual news articles.
package classifier

import (
	"bytes"
	"log/slog"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/IshaanNene/newsmonitor/internal/config"
	"github.com/IshaanNene/newsmonitor/internal/types"
)

// Options controls one classification run.
type Options struct {
	SameDomainOnly bool
	MaxLinks       int
}

// Classifier applies layered heuristics to the anchors of a listing page.
type Classifier struct {
	opts   Options
	logger *slog.Logger
}

// New creates a Classifier with options from config.
func New(cfg *config.ClassifierConfig, logger *slog.Logger) *Classifier {
	return &Classifier{
		opts: Options{
			SameDomainOnly: cfg.SameDomainOnly,
			MaxLinks:       cfg.MaxLinks,
		},
		logger: logger.With("component", "link_classifier"),
	}
}

// Classify returns the candidate article links of a listing body using the
// configured options.
func (c *Classifier) Classify(listingURL string, body []byte) ([]types.CandidateLink, error) {
	return c.ClassifyWith(listingURL, body, c.opts)
}

// ClassifyWith returns candidate article links in first-seen order,
// deduplicated and capped at opts.MaxLinks. RSS and Atom bodies yield
// their item links instead of going through the anchor heuristics.
func (c *Classifier) ClassifyWith(listingURL string, body []byte, opts Options) ([]types.CandidateLink, error) {
	base, err := url.Parse(listingURL)
	if err != nil || base.Host == "" {
		return nil, &types.ParseError{URL: listingURL, Err: types.ErrInvalidURL}
	}

	if looksLikeFeed(body) {
		links, err := c.classifyFeed(base, body, opts)
		if err == nil {
			return links, nil
		}
		c.logger.Debug("feed parse failed, treating listing as html", "url", listingURL, "error", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &types.ParseError{URL: listingURL, Err: err}
	}
	links := c.classifyDocument(base, doc, opts)
	c.logger.Debug("classified listing", "url", listingURL, "links", len(links))
	return links, nil
}

func (c *Classifier) classifyDocument(base *url.URL, doc *goquery.Document, opts Options) []types.CandidateLink {
	seen := make(map[string]bool)
	var links []types.CandidateLink

	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if opts.MaxLinks > 0 && len(links) >= opts.MaxLinks {
			return false
		}

		href, _ := sel.Attr("href")
		resolved, ok := resolve(base, href)
		if !ok {
			return true
		}
		if opts.SameDomainOnly && !sameHost(base, resolved) {
			return true
		}

		rule, ok := Evaluate(base, resolved)
		if !ok {
			return true
		}

		abs := resolved.String()
		if seen[abs] {
			return true
		}
		seen[abs] = true
		links = append(links, types.CandidateLink{URL: abs, Rule: rule})
		return true
	})

	return links
}

func (c *Classifier) classifyFeed(base *url.URL, body []byte, opts Options) ([]types.CandidateLink, error) {
	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var links []types.CandidateLink
	for _, item := range feed.Items {
		if opts.MaxLinks > 0 && len(links) >= opts.MaxLinks {
			break
		}
		if item == nil {
			continue
		}
		resolved, ok := resolve(base, item.Link)
		if !ok {
			continue
		}
		if opts.SameDomainOnly && !sameHost(base, resolved) {
			continue
		}
		abs := resolved.String()
		if seen[abs] {
			continue
		}
		seen[abs] = true
		links = append(links, types.CandidateLink{URL: abs, Rule: RuleFeed})
	}

	c.logger.Debug("classified feed listing", "url", base.String(), "items", len(feed.Items), "links", len(links))
	return links, nil
}

// Evaluate runs the per-link heuristics in order against an absolute URL
// found on the listing at base. The first accepting rule wins.
func Evaluate(base, u *url.URL) (string, bool) {
	path := strings.ToLower(u.Path)
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return "", false
	}
	if trimmed == strings.Trim(strings.ToLower(base.Path), "/") && strings.EqualFold(u.Host, base.Host) {
		return "", false
	}

	host := strings.ToLower(u.Hostname())
	for _, frag := range excludedFragments {
		if strings.Contains(path, frag) || strings.Contains(host, frag) {
			return "", false
		}
	}
	for _, word := range pathWords(trimmed) {
		if excludedTokens[word] {
			return "", false
		}
	}
	segments := strings.Split(trimmed, "/")
	for _, seg := range segments {
		if excludedSegments[seg] {
			return "", false
		}
	}

	padded := "/" + trimmed + "/"
	for _, prefix := range siteSections[strings.TrimPrefix(host, "www.")] {
		if strings.Contains(padded, prefix) {
			return RuleSiteSection, true
		}
	}

	for _, kw := range articleKeywords {
		if strings.Contains(path, kw) {
			return RuleKeyword, true
		}
	}

	last := segments[len(segments)-1]
	if strings.Count(last, "-") >= 2 && utf8.RuneCountInString(last) >= 15 {
		return RuleSlug, true
	}
	if len(segments) >= 2 && utf8.RuneCountInString(last) >= 10 {
		return RuleDepth, true
	}
	return "", false
}

func pathWords(path string) []string {
	return strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == '-' || r == '_' || r == '.'
	})
}

// resolve turns an href into an absolute http(s) URL without fragment.
func resolve(base *url.URL, href string) (*url.URL, bool) {
	href = strings.TrimSpace(href)
	lower := strings.ToLower(href)
	if href == "" ||
		strings.HasPrefix(href, "#") ||
		strings.HasPrefix(lower, "javascript:") ||
		strings.HasPrefix(lower, "mailto:") ||
		strings.HasPrefix(lower, "tel:") ||
		strings.HasPrefix(lower, "data:") {
		return nil, false
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return nil, false
	}
	resolved := base.ResolveReference(parsed)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return nil, false
	}
	resolved.Fragment = ""
	resolved.RawFragment = ""
	return resolved, true
}

func sameHost(a, b *url.URL) bool {
	return strings.EqualFold(a.Host, b.Host)
}

// looksLikeFeed sniffs the start of a body for an XML feed root.
func looksLikeFeed(body []byte) bool {
	head := body
	if len(head) > 512 {
		head = head[:512]
	}
	lower := strings.ToLower(strings.TrimSpace(string(head)))
	return strings.HasPrefix(lower, "<?xml") ||
		strings.Contains(lower, "<rss") ||
		strings.Contains(lower, "<feed")
}
