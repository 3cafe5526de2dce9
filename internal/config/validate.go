package config

import (
	"fmt"
	"net/url"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Fetcher.UserAgent == "" {
		return fmt.Errorf("fetcher.user_agent must not be empty")
	}
	if cfg.Fetcher.Timeout <= 0 {
		return fmt.Errorf("fetcher.timeout must be > 0")
	}
	if cfg.Fetcher.ArticleTimeout <= 0 {
		return fmt.Errorf("fetcher.article_timeout must be > 0")
	}
	if cfg.Fetcher.MaxRetries < 0 {
		return fmt.Errorf("fetcher.max_retries must be >= 0, got %d", cfg.Fetcher.MaxRetries)
	}
	if cfg.Fetcher.BackoffFactor < 0 {
		return fmt.Errorf("fetcher.backoff_factor must be >= 0, got %v", cfg.Fetcher.BackoffFactor)
	}
	if cfg.Fetcher.RateLimit < 0 {
		return fmt.Errorf("fetcher.rate_limit must be >= 0")
	}
	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	for _, code := range cfg.Fetcher.RetryStatuses {
		if code < 400 || code > 599 {
			return fmt.Errorf("fetcher.retry_statuses: %d is not an HTTP error status", code)
		}
	}

	if cfg.Classifier.MaxLinks < 1 {
		return fmt.Errorf("classifier.max_links must be >= 1, got %d", cfg.Classifier.MaxLinks)
	}
	if cfg.Engine.MaxArticlesPerSource < 1 {
		return fmt.Errorf("engine.max_articles_per_source must be >= 1, got %d", cfg.Engine.MaxArticlesPerSource)
	}
	if cfg.Engine.SourceConcurrency < 1 || cfg.Engine.SourceConcurrency > 64 {
		return fmt.Errorf("engine.source_concurrency must be 1-64, got %d", cfg.Engine.SourceConcurrency)
	}

	switch cfg.Storage.Type {
	case "sqlite":
		if cfg.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required for sqlite storage")
		}
	case "mongodb":
		if cfg.Storage.MongoURI == "" {
			return fmt.Errorf("storage.mongo_uri is required for mongodb storage")
		}
		if cfg.Storage.MongoDatabase == "" {
			return fmt.Errorf("storage.mongo_database is required for mongodb storage")
		}
	default:
		return fmt.Errorf("storage.type %q is not supported (valid: sqlite, mongodb)", cfg.Storage.Type)
	}

	if len(cfg.Events.KafkaBrokers) > 0 && cfg.Events.KafkaTopic == "" {
		return fmt.Errorf("events.kafka_topic is required when kafka brokers are set")
	}
	if cfg.Search.ElasticsearchAddr != "" {
		if err := ValidateURL(cfg.Search.ElasticsearchAddr); err != nil {
			return fmt.Errorf("search.elasticsearch_addr: %w", err)
		}
		if cfg.Search.ElasticsearchIndex == "" {
			return fmt.Errorf("search.elasticsearch_index is required when elasticsearch is enabled")
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	return nil
}

// ValidateURL checks if a URL string is a usable listing or service URL.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
