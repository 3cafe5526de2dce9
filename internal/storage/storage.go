package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/IshaanNene/newsmonitor/internal/config"
	"github.com/IshaanNene/newsmonitor/internal/types"
)

// ArticleFilter narrows ListArticles. Zero values match everything.
type ArticleFilter struct {
	Category string
	Source   string
	Limit    int
}

// SourceFilter narrows ListSources.
type SourceFilter struct {
	Enabled *bool
	Limit   int
}

// ArticleStore persists articles and their change history.
type ArticleStore interface {
	// GetArticleByURL returns types.ErrArticleNotFound when no article has the URL.
	GetArticleByURL(ctx context.Context, url string) (*types.Article, error)

	// InsertArticle stores a new article. A second article with the same
	// URL fails with types.ErrDuplicateURL.
	InsertArticle(ctx context.Context, article *types.Article) error

	// UpdateArticle rewrites the article's mutable fields and appends the
	// change records as one unit of work.
	UpdateArticle(ctx context.Context, article *types.Article, changes []types.ChangeRecord) error

	ListArticles(ctx context.Context, filter ArticleFilter) ([]types.Article, error)

	// ListChanges returns an article's change records, oldest first.
	ListChanges(ctx context.Context, articleID string) ([]types.ChangeRecord, error)

	// DeleteArticle removes an article together with its change records.
	DeleteArticle(ctx context.Context, id string) error
}

// SourceStore persists the registry of monitored listing pages.
type SourceStore interface {
	CreateSource(ctx context.Context, source *types.Source) error
	GetSource(ctx context.Context, id string) (*types.Source, error)
	GetSourceByURL(ctx context.Context, url string) (*types.Source, error)
	ListSources(ctx context.Context, filter SourceFilter) ([]types.Source, error)
	SetSourceEnabled(ctx context.Context, id string, enabled bool) error
	MarkSourceScraped(ctx context.Context, id string, at time.Time) error
	DeleteSource(ctx context.Context, id string) error
}

// Store is the interface for all storage backends.
type Store interface {
	ArticleStore
	SourceStore

	// Close releases the backend's connections.
	Close() error

	// Name returns the storage backend identifier.
	Name() string
}

// Open creates the backend selected by cfg.Type.
func Open(ctx context.Context, cfg *config.StorageConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Type {
	case "", "sqlite":
		return NewSQLiteStore(cfg.SQLitePath, logger)
	case "mongodb":
		return NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
