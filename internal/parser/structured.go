package parser

import (
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/IshaanNene/newsmonitor/internal/types"
)

// PageMeta holds the article signals found in a page's head and markup.
type PageMeta struct {
	// OpenGraph
	OGType  string
	OGTitle string
	OGImage string

	// Article meta tags
	PublishedTime string
	Section       string
	MetaCategory  string
	Keywords      string

	// HTMLTitle is the text of the <title> element.
	HTMLTitle string

	// TimeDatetime is the datetime attribute of the first <time> element.
	TimeDatetime string

	HasArticleElement bool
	HasH1             bool

	// JSONLD holds every parsed JSON-LD item, in document order.
	JSONLD []JSONLDItem
}

// IsArticle reports whether the page looks like a single news article:
// an article-ish og:type, any JSON-LD item, or an <article>
// element together with an <h1>.
func (m *PageMeta) IsArticle() bool {
	switch strings.ToLower(strings.TrimSpace(m.OGType)) {
	case "article", "news", "newsarticle":
		return true
	}
	if len(m.JSONLD) > 0 {
		return true
	}
	return m.HasArticleElement && m.HasH1
}

// Headline returns the first non-empty article JSON-LD headline.
func (m *PageMeta) Headline() string {
	for _, item := range m.JSONLD {
		if item.Article && item.Headline != "" {
			return item.Headline
		}
	}
	return ""
}

// Image returns the first image from article JSON-LD, then og:image.
func (m *PageMeta) Image() string {
	for _, item := range m.JSONLD {
		if item.Article && item.Image != "" {
			return item.Image
		}
	}
	return m.OGImage
}

// Date returns the first publication date signal: article JSON-LD, then
// meta tags, then a <time datetime> attribute.
func (m *PageMeta) Date() string {
	for _, item := range m.JSONLD {
		if item.Article && item.DatePublished != "" {
			return item.DatePublished
		}
	}
	if m.PublishedTime != "" {
		return m.PublishedTime
	}
	return m.TimeDatetime
}

// JSONLDSection returns the first articleSection or section of any JSON-LD item.
func (m *PageMeta) JSONLDSection() string {
	for _, item := range m.JSONLD {
		if item.Section != "" {
			return item.Section
		}
	}
	return ""
}

// MetaExtractor reads PageMeta from parsed HTML documents.
type MetaExtractor struct {
	logger *slog.Logger
}

// NewMetaExtractor creates a new page metadata extractor.
func NewMetaExtractor(logger *slog.Logger) *MetaExtractor {
	return &MetaExtractor{
		logger: logger.With("component", "meta_extractor"),
	}
}

// ExtractResponse parses the response body and extracts its metadata.
func (e *MetaExtractor) ExtractResponse(resp *types.Response) (*PageMeta, error) {
	doc, err := resp.Document()
	if err != nil {
		return nil, &types.ParseError{URL: resp.Request.URLString(), Err: err}
	}
	return e.Extract(doc), nil
}

// Extract collects the metadata of an already parsed document.
func (e *MetaExtractor) Extract(doc *goquery.Document) *PageMeta {
	meta := &PageMeta{
		OGType:        metaContent(doc, `meta[property="og:type"]`),
		OGTitle:       metaContent(doc, `meta[property="og:title"]`),
		OGImage:       metaContent(doc, `meta[property="og:image"]`),
		PublishedTime: metaContent(doc, `meta[property="article:published_time"]`, `meta[name="pubdate"]`),
		Section:       metaContent(doc, `meta[property="article:section"]`),
		MetaCategory:  metaContent(doc, `meta[name="section"]`, `meta[name="category"]`),
		Keywords:      metaContent(doc, `meta[name="keywords"]`, `meta[name="news_keywords"]`),
		HTMLTitle:     strings.TrimSpace(doc.Find("title").First().Text()),
	}

	doc.Find(`script[type*="ld+json"]`).Each(func(i int, sel *goquery.Selection) {
		raw := strings.TrimSpace(sel.Text())
		if raw == "" {
			return
		}
		items, err := parseJSONLD(raw)
		if err != nil {
			e.logger.Debug("skipping malformed json-ld block", "index", i, "error", err)
			return
		}
		meta.JSONLD = append(meta.JSONLD, items...)
	})

	if len(doc.Nodes) > 0 {
		e.scanMarkup(doc.Nodes[0], meta)
	}

	return meta
}

// scanMarkup fills the structural signals with XPath queries over the raw node tree.
func (e *MetaExtractor) scanMarkup(root *html.Node, meta *PageMeta) {
	if node, err := htmlquery.Query(root, "//article"); err == nil && node != nil {
		meta.HasArticleElement = true
	}
	if node, err := htmlquery.Query(root, "//h1"); err == nil && node != nil {
		meta.HasH1 = true
	}

	nodes, err := htmlquery.QueryAll(root, "//time[@datetime]")
	if err != nil {
		e.logger.Warn("invalid xpath", "error", err)
		return
	}
	for _, node := range nodes {
		if dt := strings.TrimSpace(htmlquery.SelectAttr(node, "datetime")); dt != "" {
			meta.TimeDatetime = dt
			return
		}
	}
}

// metaContent returns the first non-empty content attribute among selectors.
func metaContent(doc *goquery.Document, selectors ...string) string {
	for _, selector := range selectors {
		var found string
		doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			content, _ := sel.Attr("content")
			found = strings.TrimSpace(content)
			return found == ""
		})
		if found != "" {
			return found
		}
	}
	return ""
}
