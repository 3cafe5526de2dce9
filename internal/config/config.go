package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for NewsMonitor.
type Config struct {
	Fetcher    FetcherConfig    `mapstructure:"fetcher"    yaml:"fetcher"`
	Classifier ClassifierConfig `mapstructure:"classifier" yaml:"classifier"`
	Engine     EngineConfig     `mapstructure:"engine"     yaml:"engine"`
	Storage    StorageConfig    `mapstructure:"storage"    yaml:"storage"`
	Events     EventsConfig     `mapstructure:"events"     yaml:"events"`
	Search     SearchConfig     `mapstructure:"search"     yaml:"search"`
	Logging    LoggingConfig    `mapstructure:"logging"    yaml:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"    yaml:"metrics"`
}

// FetcherConfig controls HTTP fetching, retries and the shared rate limit.
type FetcherConfig struct {
	UserAgent        string        `mapstructure:"user_agent"         yaml:"user_agent"`
	Timeout          time.Duration `mapstructure:"timeout"            yaml:"timeout"`
	ArticleTimeout   time.Duration `mapstructure:"article_timeout"    yaml:"article_timeout"`
	MaxRetries       int           `mapstructure:"max_retries"        yaml:"max_retries"`
	BackoffFactor    float64       `mapstructure:"backoff_factor"     yaml:"backoff_factor"`
	RetryStatuses    []int         `mapstructure:"retry_statuses"     yaml:"retry_statuses"`
	RateLimit        time.Duration `mapstructure:"rate_limit"         yaml:"rate_limit"`
	MaxBodySize      int64         `mapstructure:"max_body_size"      yaml:"max_body_size"`
	MaxRedirects     int           `mapstructure:"max_redirects"      yaml:"max_redirects"`
	RespectRobotsTxt bool          `mapstructure:"respect_robots_txt" yaml:"respect_robots_txt"`
}

// ClassifierConfig controls listing-page link classification.
type ClassifierConfig struct {
	SameDomainOnly bool `mapstructure:"same_domain_only" yaml:"same_domain_only"`
	MaxLinks       int  `mapstructure:"max_links"        yaml:"max_links"`
}

// EngineConfig controls the scrape orchestrator.
type EngineConfig struct {
	MaxArticlesPerSource int `mapstructure:"max_articles_per_source" yaml:"max_articles_per_source"`
	SourceConcurrency    int `mapstructure:"source_concurrency"      yaml:"source_concurrency"`
}

// StorageConfig selects and configures the persistent store.
type StorageConfig struct {
	Type          string `mapstructure:"type"           yaml:"type"` // sqlite, mongodb
	SQLitePath    string `mapstructure:"sqlite_path"    yaml:"sqlite_path"`
	MongoURI      string `mapstructure:"mongo_uri"      yaml:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database" yaml:"mongo_database"`
}

// EventsConfig controls where change events are published. Empty disables a sink.
type EventsConfig struct {
	KafkaBrokers []string `mapstructure:"kafka_brokers" yaml:"kafka_brokers"`
	KafkaTopic   string   `mapstructure:"kafka_topic"   yaml:"kafka_topic"`
	JSONLPath    string   `mapstructure:"jsonl_path"    yaml:"jsonl_path"`
}

// SearchConfig controls optional Elasticsearch indexing.
type SearchConfig struct {
	ElasticsearchAddr  string `mapstructure:"elasticsearch_addr"  yaml:"elasticsearch_addr"`
	ElasticsearchIndex string `mapstructure:"elasticsearch_index" yaml:"elasticsearch_index"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Fetcher: FetcherConfig{
			UserAgent:      "news-scraper/1.0",
			Timeout:        15 * time.Second,
			ArticleTimeout: 25 * time.Second,
			MaxRetries:     3,
			BackoffFactor:  0.5,
			RetryStatuses:  []int{429, 500, 502, 503, 504},
			RateLimit:      500 * time.Millisecond,
			MaxBodySize:    10 * 1024 * 1024, // 10MB
			MaxRedirects:   10,
		},
		Classifier: ClassifierConfig{
			SameDomainOnly: true,
			MaxLinks:       60,
		},
		Engine: EngineConfig{
			MaxArticlesPerSource: 50,
			SourceConcurrency:    1,
		},
		Storage: StorageConfig{
			Type:          "sqlite",
			SQLitePath:    "./newsmonitor.db",
			MongoDatabase: "newsmonitor",
		},
		Events: EventsConfig{
			KafkaTopic: "article-changes",
		},
		Search: SearchConfig{
			ElasticsearchIndex: "articles",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}
