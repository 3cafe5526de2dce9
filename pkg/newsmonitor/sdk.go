// Package newsmonitor embeds the news scraper as a library.
//
// Example usage:
//
//	m, err := newsmonitor.New(ctx,
//	    newsmonitor.WithSQLite("./news.db"),
//	    newsmonitor.WithRateLimit(time.Second),
//	    newsmonitor.WithMaxArticles(20),
//	)
//	if err != nil {
//	    return err
//	}
//	defer m.Close()
//
//	for _, s := range m.Scrape(ctx, "https://rpp.pe/politica") {
//	    fmt.Println(s.Title, s.URL)
//	}
package newsmonitor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/IshaanNene/newsmonitor/internal/config"
	"github.com/IshaanNene/newsmonitor/internal/engine"
	"github.com/IshaanNene/newsmonitor/internal/extractor"
	"github.com/IshaanNene/newsmonitor/internal/fetcher"
	"github.com/IshaanNene/newsmonitor/internal/observability"
	"github.com/IshaanNene/newsmonitor/internal/storage"
	"github.com/IshaanNene/newsmonitor/internal/types"
)

type (
	// Summary identifies one article processed by Scrape.
	Summary = types.Summary
	// Article is the result of extracting a single page.
	Article = types.ExtractedArticle
	// Change is one recorded field edit of a stored article.
	Change = types.ChangeRecord
)

// Option configures a Monitor.
type Option func(*config.Config)

// WithSQLite stores articles in the SQLite database at path.
func WithSQLite(path string) Option {
	return func(c *config.Config) {
		c.Storage.Type = "sqlite"
		c.Storage.SQLitePath = path
	}
}

// WithMongo stores articles in a MongoDB database.
func WithMongo(uri, database string) Option {
	return func(c *config.Config) {
		c.Storage.Type = "mongodb"
		c.Storage.MongoURI = uri
		c.Storage.MongoDatabase = database
	}
}

// WithUserAgent sets a custom User-Agent.
func WithUserAgent(ua string) Option {
	return func(c *config.Config) { c.Fetcher.UserAgent = ua }
}

// WithRateLimit sets the minimum interval between any two requests.
func WithRateLimit(d time.Duration) Option {
	return func(c *config.Config) { c.Fetcher.RateLimit = d }
}

// WithTimeouts sets the listing and article fetch timeouts.
func WithTimeouts(listing, article time.Duration) Option {
	return func(c *config.Config) {
		c.Fetcher.Timeout = listing
		c.Fetcher.ArticleTimeout = article
	}
}

// WithMaxRetries sets the retry budget per fetch.
func WithMaxRetries(n int) Option {
	return func(c *config.Config) { c.Fetcher.MaxRetries = n }
}

// WithMaxArticles caps the articles processed per listing.
func WithMaxArticles(n int) Option {
	return func(c *config.Config) { c.Engine.MaxArticlesPerSource = n }
}

// WithRobotsRespect enables/disables robots.txt compliance.
func WithRobotsRespect(respect bool) Option {
	return func(c *config.Config) { c.Fetcher.RespectRobotsTxt = respect }
}

// WithVerbose enables debug-level logging.
func WithVerbose() Option {
	return func(c *config.Config) { c.Logging.Level = "debug" }
}

// Monitor is the high-level API for using NewsMonitor as a library.
type Monitor struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     storage.Store
	fetcher   *fetcher.HTTPFetcher
	extractor *extractor.Extractor
	engine    *engine.Engine
	metrics   *observability.Metrics
}

// New creates a Monitor with the given options and opens its store.
func New(ctx context.Context, opts ...Option) (*Monitor, error) {
	cfg := config.DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	level := slog.LevelWarn
	if cfg.Logging.Level == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	store, err := storage.Open(ctx, &cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	f, err := fetcher.NewHTTPFetcher(cfg, nil, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create fetcher: %w", err)
	}

	metrics := observability.NewMetrics(logger)
	f.SetMetrics(metrics)
	eng := engine.New(cfg, f, store, logger)
	eng.SetMetrics(metrics)

	return &Monitor{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		fetcher:   f,
		extractor: extractor.New(f, cfg, logger),
		engine:    eng,
		metrics:   metrics,
	}, nil
}

// Scrape processes one listing page. See engine.Engine.Scrape.
func (m *Monitor) Scrape(ctx context.Context, listingURL string) []Summary {
	return m.engine.Scrape(ctx, listingURL)
}

// Extract fetches and extracts a single article without storing it.
func (m *Monitor) Extract(ctx context.Context, pageURL string) (*Article, error) {
	return m.extractor.ExtractURL(ctx, pageURL)
}

// Changes returns the recorded edits of the stored article at articleURL.
func (m *Monitor) Changes(ctx context.Context, articleURL string) ([]Change, error) {
	a, err := m.store.GetArticleByURL(ctx, articleURL)
	if err != nil {
		return nil, err
	}
	return m.store.ListChanges(ctx, a.ID)
}

// Stats returns scrape counters accumulated since New.
func (m *Monitor) Stats() map[string]int64 {
	return m.metrics.Snapshot()
}

// Close releases the fetcher and the store.
func (m *Monitor) Close() error {
	m.fetcher.Close()
	return m.store.Close()
}
