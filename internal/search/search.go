// Package search indexes persisted articles into Elasticsearch.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/IshaanNene/newsmonitor/internal/types"
)

// Document is the indexed form of an article.
type Document struct {
	ID          string     `json:"id"`
	URL         string     `json:"url"`
	Source      string     `json:"source"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	Category    string     `json:"category,omitempty"`
	ImageURL    string     `json:"image_url,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewDocument converts an article into its indexed form.
func NewDocument(a *types.Article) Document {
	return Document{
		ID:          a.ID,
		URL:         a.URL,
		Source:      a.Source,
		Title:       a.Title,
		Content:     a.Content,
		Category:    types.Deref(a.Category),
		ImageURL:    types.Deref(a.ImageURL),
		PublishedAt: a.PublishedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

// Client wraps go-elasticsearch for article indexing.
type Client struct {
	es     *elasticsearch.Client
	index  string
	logger *slog.Logger
}

// New instantiates the Elasticsearch client.
func New(addr, index string, logger *slog.Logger) (*Client, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return &Client{
		es:     es,
		index:  index,
		logger: logger.With("component", "search_indexer"),
	}, nil
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping failed: %s", res.Status())
	}
	return nil
}

// IndexArticle writes the article under its ID, replacing any earlier version.
func (c *Client) IndexArticle(ctx context.Context, article *types.Article) error {
	payload, err := json.Marshal(NewDocument(article))
	if err != nil {
		return fmt.Errorf("marshal doc: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      c.index,
		DocumentID: article.ID,
		Body:       bytes.NewReader(payload),
		Refresh:    "false",
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("index doc: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("index doc failed: %s", strings.TrimSpace(string(body)))
	}

	c.logger.Debug("article indexed", "id", article.ID, "url", article.URL)
	return nil
}
