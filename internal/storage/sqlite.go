package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/IshaanNene/newsmonitor/internal/types"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sources (
	id TEXT PRIMARY KEY,
	url TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	enabled INTEGER NOT NULL DEFAULT 1,
	last_scraped_at TEXT,
	owner_id TEXT,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS articles (
	id TEXT PRIMARY KEY,
	url TEXT NOT NULL UNIQUE,
	source TEXT NOT NULL,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	published_at TEXT,
	image_url TEXT,
	category TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_articles_category ON articles(category);
CREATE INDEX IF NOT EXISTS idx_articles_source ON articles(source);

CREATE TABLE IF NOT EXISTS changes (
	id TEXT PRIMARY KEY,
	article_id TEXT NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
	field TEXT NOT NULL,
	old_value TEXT NOT NULL,
	new_value TEXT NOT NULL,
	detected_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_changes_article ON changes(article_id);
`

const articleColumns = `id, url, source, title, content, published_at, image_url, category, created_at, updated_at`

const sourceColumns = `id, url, name, enabled, last_scraped_at, owner_id, created_at`

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore is the default Store, backed by a single SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore opens (creating if needed) the database at dbPath.
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	dsn := dbPath
	if strings.Contains(dsn, "?") {
		dsn += "&_foreign_keys=on"
	} else {
		dsn += "?_foreign_keys=on"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{
		db:     db,
		path:   dbPath,
		logger: logger.With("component", "sqlite_store"),
	}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	store.logger.Debug("sqlite store opened", "path", dbPath)
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(sqliteSchema)
	return err
}

func (s *SQLiteStore) Name() string { return "sqlite" }

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) wrap(op string, err error) error {
	return &types.StorageError{Backend: "sqlite", Op: op, Err: err}
}

// --- Articles ---

func (s *SQLiteStore) GetArticleByURL(ctx context.Context, url string) (*types.Article, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE url = ?`, url)
	article, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrArticleNotFound
	}
	if err != nil {
		return nil, s.wrap("get_article", err)
	}
	return article, nil
}

func (s *SQLiteStore) InsertArticle(ctx context.Context, a *types.Article) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO articles (`+articleColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.URL, a.Source, a.Title, a.Content,
		formatTime(a.PublishedAt), nullString(a.ImageURL), nullString(a.Category),
		formatTime(&a.CreatedAt), formatTime(&a.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.ErrDuplicateURL
		}
		return s.wrap("insert_article", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateArticle(ctx context.Context, a *types.Article, changes []types.ChangeRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.wrap("begin", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE articles
		SET source = ?, title = ?, content = ?, published_at = ?, image_url = ?, category = ?, updated_at = ?
		WHERE id = ?`,
		a.Source, a.Title, a.Content,
		formatTime(a.PublishedAt), nullString(a.ImageURL), nullString(a.Category),
		formatTime(&a.UpdatedAt), a.ID,
	)
	if err != nil {
		return s.wrap("update_article", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return s.wrap("update_article", err)
	}
	if rows == 0 {
		return types.ErrArticleNotFound
	}

	for _, c := range changes {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO changes (id, article_id, field, old_value, new_value, detected_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			c.ID, c.ArticleID, c.Field, c.OldValue, c.NewValue, formatTime(&c.DetectedAt),
		)
		if err != nil {
			return s.wrap("insert_change", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return s.wrap("commit", err)
	}
	return nil
}

func (s *SQLiteStore) ListArticles(ctx context.Context, filter ArticleFilter) ([]types.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles`

	var whereClauses []string
	var args []any
	if filter.Category != "" {
		whereClauses = append(whereClauses, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.Source != "" {
		whereClauses = append(whereClauses, "source = ?")
		args = append(args, filter.Source)
	}
	if len(whereClauses) > 0 {
		query += " WHERE " + strings.Join(whereClauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.wrap("list_articles", err)
	}
	defer rows.Close()

	var articles []types.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, s.wrap("list_articles", err)
		}
		articles = append(articles, *a)
	}
	return articles, rows.Err()
}

func (s *SQLiteStore) ListChanges(ctx context.Context, articleID string) ([]types.ChangeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, article_id, field, old_value, new_value, detected_at
		FROM changes WHERE article_id = ?
		ORDER BY detected_at, rowid`, articleID)
	if err != nil {
		return nil, s.wrap("list_changes", err)
	}
	defer rows.Close()

	var changes []types.ChangeRecord
	for rows.Next() {
		var c types.ChangeRecord
		var detectedAt string
		if err := rows.Scan(&c.ID, &c.ArticleID, &c.Field, &c.OldValue, &c.NewValue, &detectedAt); err != nil {
			return nil, s.wrap("list_changes", err)
		}
		c.DetectedAt = parseTime(detectedAt)
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

func (s *SQLiteStore) DeleteArticle(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM articles WHERE id = ?", id)
	if err != nil {
		return s.wrap("delete_article", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return s.wrap("delete_article", err)
	}
	if rows == 0 {
		return types.ErrArticleNotFound
	}
	return nil
}

// --- Sources ---

func (s *SQLiteStore) CreateSource(ctx context.Context, src *types.Source) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO sources (`+sourceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		src.ID, src.URL, src.Name, src.Enabled,
		formatTime(src.LastScrapedAt), nullString(src.OwnerID), formatTime(&src.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.ErrDuplicateURL
		}
		return s.wrap("create_source", err)
	}
	return nil
}

func (s *SQLiteStore) GetSource(ctx context.Context, id string) (*types.Source, error) {
	return s.getSource(ctx, "id", id)
}

func (s *SQLiteStore) GetSourceByURL(ctx context.Context, url string) (*types.Source, error) {
	return s.getSource(ctx, "url", url)
}

func (s *SQLiteStore) getSource(ctx context.Context, column, value string) (*types.Source, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM sources WHERE `+column+` = ?`, value)
	src, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrSourceNotFound
	}
	if err != nil {
		return nil, s.wrap("get_source", err)
	}
	return src, nil
}

func (s *SQLiteStore) ListSources(ctx context.Context, filter SourceFilter) ([]types.Source, error) {
	query := `SELECT ` + sourceColumns + ` FROM sources`
	var args []any
	if filter.Enabled != nil {
		query += " WHERE enabled = ?"
		args = append(args, *filter.Enabled)
	}
	query += " ORDER BY created_at, id"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.wrap("list_sources", err)
	}
	defer rows.Close()

	var sources []types.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, s.wrap("list_sources", err)
		}
		sources = append(sources, *src)
	}
	return sources, rows.Err()
}

func (s *SQLiteStore) SetSourceEnabled(ctx context.Context, id string, enabled bool) error {
	return s.updateSource(ctx, "set_source_enabled", "UPDATE sources SET enabled = ? WHERE id = ?", enabled, id)
}

func (s *SQLiteStore) MarkSourceScraped(ctx context.Context, id string, at time.Time) error {
	return s.updateSource(ctx, "mark_source_scraped", "UPDATE sources SET last_scraped_at = ? WHERE id = ?", formatTime(&at), id)
}

func (s *SQLiteStore) DeleteSource(ctx context.Context, id string) error {
	return s.updateSource(ctx, "delete_source", "DELETE FROM sources WHERE id = ?", id)
}

func (s *SQLiteStore) updateSource(ctx context.Context, op, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return s.wrap(op, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return s.wrap(op, err)
	}
	if rows == 0 {
		return types.ErrSourceNotFound
	}
	return nil
}

// --- Scanning helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (*types.Article, error) {
	var a types.Article
	var publishedAt, imageURL, category sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&a.ID, &a.URL, &a.Source, &a.Title, &a.Content,
		&publishedAt, &imageURL, &category, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if publishedAt.Valid {
		t := parseTime(publishedAt.String)
		a.PublishedAt = &t
	}
	if imageURL.Valid {
		a.ImageURL = &imageURL.String
	}
	if category.Valid {
		a.Category = &category.String
	}
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return &a, nil
}

func scanSource(row rowScanner) (*types.Source, error) {
	var src types.Source
	var lastScrapedAt, ownerID sql.NullString
	var createdAt string

	err := row.Scan(&src.ID, &src.URL, &src.Name, &src.Enabled, &lastScrapedAt, &ownerID, &createdAt)
	if err != nil {
		return nil, err
	}

	if lastScrapedAt.Valid {
		t := parseTime(lastScrapedAt.String)
		src.LastScrapedAt = &t
	}
	if ownerID.Valid {
		src.OwnerID = &ownerID.String
	}
	src.CreatedAt = parseTime(createdAt)
	return &src, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint") ||
		strings.Contains(err.Error(), "unique constraint")
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Truncate(0).Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t.Truncate(0)
}

var _ Store = (*SQLiteStore)(nil)
