// Package engine runs the per-source scrape: fetch the listing, classify
// its links, then extract, clean and reconcile every candidate article.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/IshaanNene/newsmonitor/internal/classifier"
	"github.com/IshaanNene/newsmonitor/internal/config"
	"github.com/IshaanNene/newsmonitor/internal/events"
	"github.com/IshaanNene/newsmonitor/internal/extractor"
	"github.com/IshaanNene/newsmonitor/internal/fetcher"
	"github.com/IshaanNene/newsmonitor/internal/observability"
	"github.com/IshaanNene/newsmonitor/internal/pipeline"
	"github.com/IshaanNene/newsmonitor/internal/reconcile"
	"github.com/IshaanNene/newsmonitor/internal/storage"
	"github.com/IshaanNene/newsmonitor/internal/types"
)

// Extractor turns one article URL into an ExtractedArticle.
type Extractor interface {
	ExtractURL(ctx context.Context, pageURL string) (*types.ExtractedArticle, error)
}

// Indexer receives every article that passed through upsert.
type Indexer interface {
	IndexArticle(ctx context.Context, article *types.Article) error
}

// Engine is the scrape orchestrator. One Engine may serve concurrent
// Scrape calls; each call commits per article.
type Engine struct {
	cfg        *config.Config
	fetcher    fetcher.Fetcher
	classifier *classifier.Classifier
	extractor  Extractor
	reconciler *reconcile.Reconciler
	store      storage.Store
	indexer    Indexer
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// New creates an Engine that fetches with f and persists into store.
func New(cfg *config.Config, f fetcher.Fetcher, store storage.Store, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:        cfg,
		fetcher:    f,
		classifier: classifier.New(&cfg.Classifier, logger),
		extractor:  extractor.New(f, cfg, logger),
		reconciler: reconcile.New(store, logger),
		store:      store,
		logger:     logger.With("component", "orchestrator"),
	}
}

// SetExtractor replaces the article extractor.
func (e *Engine) SetExtractor(x Extractor) {
	e.extractor = x
}

// SetPublisher sets the sink for change events.
func (e *Engine) SetPublisher(p events.Publisher) {
	e.reconciler.SetPublisher(p)
}

// SetIndexer sets the search indexer. Nil disables indexing.
func (e *Engine) SetIndexer(ix Indexer) {
	e.indexer = ix
}

// SetMetrics sets the metrics collector.
func (e *Engine) SetMetrics(m *observability.Metrics) {
	e.metrics = m
	e.reconciler.SetMetrics(m)
}

// Scrape processes one listing page and returns a summary for every
// article that passed through upsert, in listing order. A listing fetch
// failure yields an empty result; per-article failures are logged and
// skipped.
func (e *Engine) Scrape(ctx context.Context, listingURL string) []types.Summary {
	summaries, err := e.run(ctx, listingURL, e.sourceLabel(ctx, listingURL))
	if err != nil {
		return []types.Summary{}
	}
	return summaries
}

// run is Scrape with an explicit source label. The returned error is set
// only when the listing itself could not be fetched or parsed.
func (e *Engine) run(ctx context.Context, listingURL, source string) ([]types.Summary, error) {
	start := time.Now()
	logger := e.logger.With("listing", listingURL, "source", source)

	links, err := e.listing(ctx, listingURL)
	if err != nil {
		e.count(func(m *observability.Metrics) { m.ListingsFailed.Add(1) })
		logger.Error("listing failed", "error", err)
		return nil, err
	}
	e.count(func(m *observability.Metrics) {
		m.ListingsFetched.Add(1)
		m.LinksClassified.Add(int64(len(links)))
	})
	logger.Info("listing classified", "links", len(links))

	p := pipeline.NewDefault(e.logger)
	p.Use(&pipeline.DefaultSourceMiddleware{Source: source})

	summaries := make([]types.Summary, 0, len(links))
	for _, link := range links {
		if ctx.Err() != nil {
			logger.Warn("scrape cancelled", "processed", len(summaries), "error", ctx.Err())
			break
		}
		summary, ok := e.process(ctx, logger, p, link)
		if ok {
			summaries = append(summaries, summary)
		}
	}

	logger.Info("scrape complete",
		"links", len(links),
		"processed", len(summaries),
		"duration", time.Since(start),
	)
	return summaries, nil
}

// listing fetches and classifies the listing page, returning the capped,
// canonicalized candidate URLs.
func (e *Engine) listing(ctx context.Context, listingURL string) ([]string, error) {
	req, err := types.NewRequest(listingURL)
	if err != nil {
		return nil, err
	}
	req.Tag = types.TagListing
	req.Timeout = e.cfg.Fetcher.Timeout

	resp, err := e.fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	base := listingURL
	if resp.FinalURL != "" {
		base = resp.FinalURL
	}

	candidates, err := e.classifier.Classify(base, resp.Body)
	if err != nil {
		return nil, err
	}

	limit := e.cfg.Engine.MaxArticlesPerSource
	set := newLinkSet(len(candidates))
	for _, c := range candidates {
		if limit > 0 && set.Len() >= limit {
			break
		}
		set.Add(c.URL)
	}
	return set.URLs(), nil
}

// process runs fetch, extract, clean, upsert and index for one link.
func (e *Engine) process(ctx context.Context, logger *slog.Logger, p *pipeline.Pipeline, link string) (types.Summary, bool) {
	logger = logger.With("url", link)

	extracted, err := e.extractor.ExtractURL(ctx, link)
	switch {
	case types.IsSkip(err):
		e.count(func(m *observability.Metrics) { m.ArticlesSkipped.Add(1) })
		logger.Info("link skipped", "reason", err)
		return types.Summary{}, false
	case err != nil:
		e.count(func(m *observability.Metrics) { m.ArticlesFailed.Add(1) })
		logger.Warn("article fetch failed", "error", err)
		return types.Summary{}, false
	}
	e.count(func(m *observability.Metrics) { m.ArticlesFetched.Add(1) })

	cleaned, err := p.Process(extracted)
	if err != nil || cleaned == nil {
		e.count(func(m *observability.Metrics) { m.ArticlesSkipped.Add(1) })
		logger.Warn("article dropped by pipeline", "error", err)
		return types.Summary{}, false
	}

	res, err := e.reconciler.Upsert(ctx, cleaned)
	if err != nil {
		var verr *types.ValidationError
		if errors.As(err, &verr) {
			logger.Warn("article rejected", "field", verr.Field)
		} else {
			logger.Error("upsert failed", "error", err)
		}
		return types.Summary{}, false
	}
	logger.Debug("article reconciled", "outcome", res.Outcome, "changes", len(res.Changes))

	if e.indexer != nil {
		if err := e.indexer.IndexArticle(ctx, res.Article); err != nil {
			e.count(func(m *observability.Metrics) { m.IndexErrors.Add(1) })
			logger.Warn("search index failed", "error", err)
		}
	}

	return types.Summary{
		ID:    res.Article.ID,
		Title: res.Article.Title,
		URL:   res.Article.URL,
	}, true
}

// sourceLabel is the registered source name for listingURL, else its host.
func (e *Engine) sourceLabel(ctx context.Context, listingURL string) string {
	if e.store != nil {
		src, err := e.store.GetSourceByURL(ctx, listingURL)
		if err == nil && strings.TrimSpace(src.Name) != "" {
			return src.Name
		}
		if err != nil && !errors.Is(err, types.ErrSourceNotFound) {
			e.logger.Warn("source lookup failed", "listing", listingURL, "error", err)
		}
	}
	return hostLabel(listingURL)
}

func hostLabel(listingURL string) string {
	u, err := url.Parse(listingURL)
	if err != nil || u.Host == "" {
		return listingURL
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func (e *Engine) count(fn func(m *observability.Metrics)) {
	if e.metrics != nil {
		fn(e.metrics)
	}
}

