package extractor

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/newsmonitor/internal/parser"
)

// Page is a fetched document handed to extraction strategies.
type Page struct {
	URL  *url.URL
	HTML string
	Doc  *goquery.Document
	Meta *parser.PageMeta
}

// Document is the structured output of one strategy.
type Document struct {
	Title  string
	Text   string
	Date   string
	Image  string
	Images []string
}

// Strategy extracts a Document from a page, or returns nil when it cannot.
// Strategies run in order and the first non-nil Document wins.
type Strategy interface {
	Name() string
	Extract(page *Page) *Document
}

var (
	reSpaces     = regexp.MustCompile(`[ \t\f\r\v\x{00a0}]+`)
	reBlankLines = regexp.MustCompile(`\n{3,}`)
)

// normalizeText collapses runs of spaces and drops blank lines.
func normalizeText(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(reSpaces.ReplaceAllString(line, " "))
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// absolute resolves ref against base, returning "" for unusable refs.
func absolute(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "data:") {
		return ""
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base == nil {
		return parsed.String()
	}
	return base.ResolveReference(parsed).String()
}
