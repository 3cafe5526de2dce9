// Package extractor turns an article page into an ExtractedArticle.
package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/newsmonitor/internal/category"
	"github.com/IshaanNene/newsmonitor/internal/config"
	"github.com/IshaanNene/newsmonitor/internal/fetcher"
	"github.com/IshaanNene/newsmonitor/internal/parser"
	"github.com/IshaanNene/newsmonitor/internal/types"
)

// DefaultStrategies is the structured-then-plain-text cascade.
func DefaultStrategies() []Strategy {
	return []Strategy{ReadabilityStrategy{}, PlainTextStrategy{}}
}

// Extractor decides whether a page is an article and extracts its fields.
type Extractor struct {
	fetcher    fetcher.Fetcher
	meta       *parser.MetaExtractor
	strategies []Strategy
	timeout    time.Duration
	logger     *slog.Logger
}

// New creates an Extractor. The fetcher is only used by ExtractURL.
func New(f fetcher.Fetcher, cfg *config.Config, logger *slog.Logger) *Extractor {
	return &Extractor{
		fetcher:    f,
		meta:       parser.NewMetaExtractor(logger),
		strategies: DefaultStrategies(),
		timeout:    cfg.Fetcher.ArticleTimeout,
		logger:     logger.With("component", "article_extractor"),
	}
}

// SetStrategies replaces the extraction cascade.
func (e *Extractor) SetStrategies(strategies ...Strategy) {
	e.strategies = strategies
}

// ExtractURL fetches pageURL and extracts it. Fetch failures are returned
// as-is so the caller can skip the link.
func (e *Extractor) ExtractURL(ctx context.Context, pageURL string) (*types.ExtractedArticle, error) {
	if e.fetcher == nil {
		return nil, fmt.Errorf("extract %s: no fetcher configured", pageURL)
	}
	req, err := types.NewRequest(pageURL)
	if err != nil {
		return nil, err
	}
	req.Tag = types.TagArticle
	req.Timeout = e.timeout

	resp, err := e.fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, &types.FetchError{URL: pageURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	meta, err := e.meta.ExtractResponse(resp)
	if err != nil {
		return nil, err
	}
	doc, _ := resp.Document()
	return e.extract(pageURL, &Page{URL: req.URL, HTML: string(resp.Body), Doc: doc, Meta: meta})
}

// Extract runs the is-article check, the strategy cascade and the field
// fallbacks on html. It returns ErrNotAnArticle or ErrExtractionEmpty when
// the page should be skipped.
func (e *Extractor) Extract(pageURL, html string) (*types.ExtractedArticle, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, &types.ParseError{URL: pageURL, Err: types.ErrInvalidURL}
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &types.ParseError{URL: pageURL, Err: err}
	}
	return e.extract(pageURL, &Page{URL: u, HTML: html, Doc: doc, Meta: e.meta.Extract(doc)})
}

func (e *Extractor) extract(pageURL string, page *Page) (*types.ExtractedArticle, error) {
	if !page.Meta.IsArticle() {
		e.logger.Info("not an article", "url", pageURL)
		return nil, types.ErrNotAnArticle
	}

	var (
		result   *Document
		strategy string
	)
	for _, s := range e.strategies {
		if d := s.Extract(page); d != nil && strings.TrimSpace(d.Text) != "" {
			result, strategy = d, s.Name()
			break
		}
		e.logger.Debug("strategy produced nothing", "url", pageURL, "strategy", s.Name())
	}
	if result == nil {
		e.logger.Warn("extraction empty", "url", pageURL)
		return nil, types.ErrExtractionEmpty
	}

	article := &types.ExtractedArticle{
		URL:         pageURL,
		Title:       resolveTitle(result, page.Meta, pageURL),
		Content:     strings.TrimSpace(result.Text),
		PublishDate: firstNonEmpty(result.Date, page.Meta.Date()),
		ImageURL:    resolveImage(result, page),
		Category:    categorySignal(page.Meta, pageURL),
		Strategy:    strategy,
	}
	if article.Category == "" {
		article.Category = category.Detect(article.Title + "\n" + article.Content)
	}

	e.logger.Debug("extracted article",
		"url", pageURL,
		"strategy", strategy,
		"category", article.Category,
		"chars", len(article.Content),
	)
	return article, nil
}

// resolveTitle never returns "": the page URL is the last resort.
func resolveTitle(doc *Document, meta *parser.PageMeta, pageURL string) string {
	return firstNonEmpty(doc.Title, meta.OGTitle, meta.Headline(), meta.HTMLTitle, pageURL)
}

func resolveImage(doc *Document, page *Page) string {
	image := doc.Image
	if image == "" && len(doc.Images) > 0 {
		image = doc.Images[0]
	}
	if image == "" {
		image = page.Meta.Image()
	}
	return absolute(page.URL, image)
}

// categorySignal returns the first category signal found, normalized
// through the alias table: article:section, section/category meta,
// JSON-LD section, keywords meta, then the URL path.
func categorySignal(meta *parser.PageMeta, pageURL string) string {
	for _, raw := range []string{meta.Section, meta.MetaCategory, meta.JSONLDSection()} {
		if label := category.Normalize(raw); label != "" {
			return label
		}
	}
	if label := category.FromKeywords(meta.Keywords); label != "" {
		return label
	}
	return category.FromURL(pageURL)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
