package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/newsmonitor/internal/config"
	"github.com/IshaanNene/newsmonitor/internal/engine"
	"github.com/IshaanNene/newsmonitor/internal/events"
	"github.com/IshaanNene/newsmonitor/internal/fetcher"
	"github.com/IshaanNene/newsmonitor/internal/observability"
	"github.com/IshaanNene/newsmonitor/internal/search"
	"github.com/IshaanNene/newsmonitor/internal/storage"
)

var (
	cfgFile      string
	verbose      bool
	sqlitePath   string
	userAgent    string
	maxRetries   int
	rateLimit    string
	maxArticles  int
	concurrency  int
	serveMetrics bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "newsmonitor",
		Short: "NewsMonitor: news listing scraper with change tracking",
		Long: `NewsMonitor scrapes news listing pages, extracts the articles they link to
and keeps a field-level history of every edit it sees between runs.

Features:
  • Listing link classification for HTML pages and RSS/Atom feeds
  • Readability extraction with a plain-text fallback
  • Category normalization into a fixed editorial set
  • SQLite (default) or MongoDB storage
  • Change events to Kafka and/or a JSONL file
  • Optional Elasticsearch indexing and Prometheus metrics`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&sqlitePath, "db", "", "SQLite database path (overrides storage.sqlite_path)")

	rootCmd.AddCommand(scrapeCmd())
	rootCmd.AddCommand(scrapeAllCmd())
	rootCmd.AddCommand(sourcesCmd())
	rootCmd.AddCommand(articlesCmd())
	rootCmd.AddCommand(changesCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// addScrapeFlags registers the flags shared by scrape and scrape-all.
func addScrapeFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&userAgent, "user-agent", "", "custom User-Agent string")
	cmd.Flags().IntVar(&maxRetries, "max-retries", -1, "max retries per failed fetch (-1 = use config)")
	cmd.Flags().StringVar(&rateLimit, "rate-limit", "", "minimum interval between requests, e.g. 500ms")
	cmd.Flags().IntVarP(&maxArticles, "max-articles", "m", 0, "maximum articles per listing (0 = use config)")
	cmd.Flags().BoolVar(&serveMetrics, "metrics", false, "serve Prometheus metrics while scraping")
}

// scrapeCmd creates the "scrape" subcommand.
func scrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape [listing-url]",
		Short: "Scrape one listing page",
		Long:  "Fetch a listing page, extract every article it links to and reconcile them into the store.",
		Args:  cobra.ExactArgs(1),
		RunE:  runScrape,
	}
	addScrapeFlags(cmd)
	return cmd
}

// scrapeAllCmd creates the "scrape-all" subcommand.
func scrapeAllCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape-all",
		Short: "Scrape every enabled source",
		Args:  cobra.NoArgs,
		RunE:  runScrapeAll,
	}
	addScrapeFlags(cmd)
	cmd.Flags().IntVarP(&concurrency, "concurrency", "n", 0, "sources scraped in parallel (0 = use config)")
	return cmd
}

func runScrape(cmd *cobra.Command, args []string) error {
	listingURL := args[0]
	if err := config.ValidateURL(listingURL); err != nil {
		return fmt.Errorf("invalid URL %q: %w", listingURL, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	start := time.Now()
	summaries := rt.engine.Scrape(ctx, listingURL)
	elapsed := time.Since(start)

	stats := rt.metrics.Snapshot()
	rt.logger.Info("scrape complete",
		"listing", listingURL,
		"processed", len(summaries),
		"elapsed", elapsed,
	)

	fmt.Printf("\n✅ Scrape complete in %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("   Articles:  %d processed (%d new, %d updated, %d unchanged)\n",
		len(summaries), stats["articles_inserted"], stats["articles_updated"], stats["articles_unchanged"])
	fmt.Printf("   Skipped:   %d not articles, %d failed\n", stats["articles_skipped"], stats["articles_failed"])
	fmt.Printf("   Changes:   %d recorded\n", stats["changes_recorded"])

	if len(summaries) > 0 {
		fmt.Println()
		printSummaries(summaries)
	}
	return nil
}

func runScrapeAll(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	start := time.Now()
	results, err := rt.engine.ScrapeSources(ctx)
	if err != nil {
		return fmt.Errorf("scrape sources: %w", err)
	}
	if len(results) == 0 {
		fmt.Println("No enabled sources. Add one with: newsmonitor sources add <url>")
		return nil
	}

	total, failed := 0, 0
	for _, r := range results {
		total += r.Processed()
		if r.Err != nil {
			failed++
		}
	}
	printSourceResults(results)

	stats := rt.metrics.Snapshot()
	fmt.Printf("\n✅ %d sources scraped in %s\n", len(results), time.Since(start).Round(time.Millisecond))
	fmt.Printf("   Articles:  %d processed (%d new, %d updated)\n",
		total, stats["articles_inserted"], stats["articles_updated"])
	fmt.Printf("   Changes:   %d recorded\n", stats["changes_recorded"])
	if failed > 0 {
		fmt.Printf("   Failed:    %d sources (listing unavailable)\n", failed)
	}
	return nil
}

// runtime holds everything a scrape needs, built from config.
type runtime struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     storage.Store
	fetcher   *fetcher.HTTPFetcher
	publisher events.Publisher
	metrics   *observability.Metrics
	engine    *engine.Engine
}

func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(ctx, &cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	rt := &runtime{cfg: cfg, logger: logger, store: store}

	rt.fetcher, err = fetcher.NewHTTPFetcher(cfg, nil, logger)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("create fetcher: %w", err)
	}

	rt.publisher, err = events.New(&cfg.Events, logger)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("create event publisher: %w", err)
	}

	rt.metrics = observability.NewMetrics(logger)
	rt.fetcher.SetMetrics(rt.metrics)
	if cfg.Metrics.Enabled {
		if err := rt.metrics.StartServer(ctx, cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
			logger.Warn("failed to start metrics server", "error", err)
		}
	}

	rt.engine = engine.New(cfg, rt.fetcher, store, logger)
	rt.engine.SetPublisher(rt.publisher)
	rt.engine.SetMetrics(rt.metrics)

	if cfg.Search.ElasticsearchAddr != "" {
		client, err := search.New(cfg.Search.ElasticsearchAddr, cfg.Search.ElasticsearchIndex, logger)
		if err != nil {
			logger.Warn("search indexing disabled", "error", err)
		} else if err := client.Ping(ctx); err != nil {
			logger.Warn("search indexing disabled", "addr", cfg.Search.ElasticsearchAddr, "error", err)
		} else {
			rt.engine.SetIndexer(client)
		}
	}

	logger.Debug("runtime ready",
		"storage", store.Name(),
		"events", rt.publisher.Name(),
		"rate_limit", cfg.Fetcher.RateLimit,
		"max_articles", cfg.Engine.MaxArticlesPerSource,
	)
	return rt, nil
}

func (rt *runtime) Close() {
	if rt.publisher != nil {
		if err := rt.publisher.Close(); err != nil {
			rt.logger.Error("event publisher close error", "error", err)
		}
	}
	if rt.fetcher != nil {
		rt.fetcher.Close()
	}
	if err := rt.store.Close(); err != nil {
		rt.logger.Error("storage close error", "error", err)
	}
}

// loadConfig loads, overrides and validates the config and builds the logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, setupLogger(cfg), nil
}

// openStore is loadConfig plus the configured store, for read-only commands.
func openStore(ctx context.Context) (storage.Store, *slog.Logger, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := storage.Open(ctx, &cfg.Storage, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}
	return store, logger, nil
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("NewsMonitor %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			applyCLIOverrides(cfg)
			fmt.Printf("Fetcher:\n")
			fmt.Printf("  User Agent:         %s\n", cfg.Fetcher.UserAgent)
			fmt.Printf("  Timeout:            %s (articles %s)\n", cfg.Fetcher.Timeout, cfg.Fetcher.ArticleTimeout)
			fmt.Printf("  Max Retries:        %d (backoff factor %.2f)\n", cfg.Fetcher.MaxRetries, cfg.Fetcher.BackoffFactor)
			fmt.Printf("  Rate Limit:         %s\n", cfg.Fetcher.RateLimit)
			fmt.Printf("  Respect robots.txt: %v\n", cfg.Fetcher.RespectRobotsTxt)
			fmt.Printf("\nClassifier:\n")
			fmt.Printf("  Same Domain Only:   %v\n", cfg.Classifier.SameDomainOnly)
			fmt.Printf("  Max Links:          %d\n", cfg.Classifier.MaxLinks)
			fmt.Printf("\nEngine:\n")
			fmt.Printf("  Max Articles:       %d per source\n", cfg.Engine.MaxArticlesPerSource)
			fmt.Printf("  Source Concurrency: %d\n", cfg.Engine.SourceConcurrency)
			fmt.Printf("\nStorage:\n")
			fmt.Printf("  Type:               %s\n", cfg.Storage.Type)
			if cfg.Storage.Type == "mongodb" {
				fmt.Printf("  Database:           %s\n", cfg.Storage.MongoDatabase)
			} else {
				fmt.Printf("  SQLite Path:        %s\n", cfg.Storage.SQLitePath)
			}
			fmt.Printf("\nEvents:\n")
			fmt.Printf("  Kafka:              %s (topic %q)\n", strings.Join(cfg.Events.KafkaBrokers, ","), cfg.Events.KafkaTopic)
			fmt.Printf("  JSONL:              %s\n", cfg.Events.JSONLPath)
			fmt.Printf("\nSearch:\n")
			fmt.Printf("  Elasticsearch:      %s (index %q)\n", cfg.Search.ElasticsearchAddr, cfg.Search.ElasticsearchIndex)
			fmt.Printf("\nMetrics:\n")
			fmt.Printf("  Enabled:            %v\n", cfg.Metrics.Enabled)
			fmt.Printf("  Port:               %d\n", cfg.Metrics.Port)
			return nil
		},
	}
}

// setupLogger creates a structured logger from the logging config.
func setupLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Logging.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// applyCLIOverrides applies command-line flag values to the config.
func applyCLIOverrides(cfg *config.Config) {
	if sqlitePath != "" {
		cfg.Storage.SQLitePath = sqlitePath
	}
	if userAgent != "" {
		cfg.Fetcher.UserAgent = userAgent
	}
	if maxRetries >= 0 {
		cfg.Fetcher.MaxRetries = maxRetries
	}
	if rateLimit != "" {
		d, err := time.ParseDuration(rateLimit)
		if err == nil {
			cfg.Fetcher.RateLimit = d
		}
	}
	if maxArticles > 0 {
		cfg.Engine.MaxArticlesPerSource = maxArticles
	}
	if concurrency > 0 {
		cfg.Engine.SourceConcurrency = concurrency
	}
	if serveMetrics {
		cfg.Metrics.Enabled = true
	}
}
