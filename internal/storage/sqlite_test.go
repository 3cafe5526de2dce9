package storage

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/newsmonitor/internal/config"
	"github.com/IshaanNene/newsmonitor/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

// Test helper: create a test store in a temp dir
func createTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), testLogger)
	require.NoError(t, err, "should create sqlite store")
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestArticle(url string) *types.Article {
	now := time.Now().UTC()
	published := time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)
	return &types.Article{
		ID:          uuid.NewString(),
		URL:         url,
		Source:      "diario.pe",
		Title:       "Congreso aprueba ley",
		Content:     "Texto de la nota.",
		PublishedAt: &published,
		ImageURL:    types.StringPtr("https://diario.pe/img.jpg"),
		Category:    types.StringPtr("Política"),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// --- Article Tests ---

func TestInsertAndGetArticle(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	a := newTestArticle("https://diario.pe/politica/congreso-aprueba-ley")
	require.NoError(t, store.InsertArticle(ctx, a))

	got, err := store.GetArticleByURL(ctx, a.URL)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, a.Title, got.Title)
	assert.Equal(t, a.Content, got.Content)
	require.NotNil(t, got.PublishedAt)
	assert.True(t, a.PublishedAt.Equal(*got.PublishedAt))
	assert.Equal(t, "https://diario.pe/img.jpg", types.Deref(got.ImageURL))
	assert.Equal(t, "Política", types.Deref(got.Category))
	assert.True(t, a.CreatedAt.Truncate(time.Microsecond).Equal(got.CreatedAt.Truncate(time.Microsecond)))
}

func TestGetArticleNotFound(t *testing.T) {
	store := createTestStore(t)
	_, err := store.GetArticleByURL(context.Background(), "https://diario.pe/nada")
	assert.ErrorIs(t, err, types.ErrArticleNotFound)
}

func TestInsertArticleDuplicateURL(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertArticle(ctx, newTestArticle("https://diario.pe/a")))
	err := store.InsertArticle(ctx, newTestArticle("https://diario.pe/a"))
	assert.ErrorIs(t, err, types.ErrDuplicateURL)
}

func TestInsertArticleOptionalFieldsNull(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	a := newTestArticle("https://diario.pe/b")
	a.PublishedAt, a.ImageURL, a.Category = nil, nil, nil
	require.NoError(t, store.InsertArticle(ctx, a))

	got, err := store.GetArticleByURL(ctx, a.URL)
	require.NoError(t, err)
	assert.Nil(t, got.PublishedAt)
	assert.Nil(t, got.ImageURL)
	assert.Nil(t, got.Category)
}

func TestUpdateArticleWithChanges(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	a := newTestArticle("https://diario.pe/c")
	require.NoError(t, store.InsertArticle(ctx, a))

	a.Title = "Congreso aprueba ley de presupuesto"
	a.UpdatedAt = a.UpdatedAt.Add(time.Minute)
	changes := []types.ChangeRecord{{
		ID:         uuid.NewString(),
		ArticleID:  a.ID,
		Field:      types.FieldTitle,
		OldValue:   "Congreso aprueba ley",
		NewValue:   a.Title,
		DetectedAt: a.UpdatedAt,
	}}
	require.NoError(t, store.UpdateArticle(ctx, a, changes))

	got, err := store.GetArticleByURL(ctx, a.URL)
	require.NoError(t, err)
	assert.Equal(t, a.Title, got.Title)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))

	records, err := store.ListChanges(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, types.FieldTitle, records[0].Field)
	assert.Equal(t, "Congreso aprueba ley", records[0].OldValue)
}

func TestUpdateArticleMissingRollsBack(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	a := newTestArticle("https://diario.pe/d")
	changes := []types.ChangeRecord{{ID: uuid.NewString(), ArticleID: a.ID, Field: "title", DetectedAt: time.Now()}}
	err := store.UpdateArticle(ctx, a, changes)
	assert.ErrorIs(t, err, types.ErrArticleNotFound)

	records, err := store.ListChanges(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDeleteArticleCascadesChanges(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	a := newTestArticle("https://diario.pe/e")
	require.NoError(t, store.InsertArticle(ctx, a))
	require.NoError(t, store.UpdateArticle(ctx, a, []types.ChangeRecord{{
		ID: uuid.NewString(), ArticleID: a.ID, Field: "content", OldValue: "x", NewValue: "y", DetectedAt: time.Now(),
	}}))

	require.NoError(t, store.DeleteArticle(ctx, a.ID))
	records, err := store.ListChanges(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, records, "change records should be deleted with their article")

	assert.ErrorIs(t, store.DeleteArticle(ctx, a.ID), types.ErrArticleNotFound)
}

func TestListArticlesFilter(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, cat := range []string{"Deportes", "Política", "Deportes"} {
		a := newTestArticle("https://diario.pe/n" + string(rune('a'+i)))
		a.Category = types.StringPtr(cat)
		a.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, store.InsertArticle(ctx, a))
	}

	all, err := store.ListArticles(ctx, ArticleFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "https://diario.pe/nc", all[0].URL, "newest first")

	sports, err := store.ListArticles(ctx, ArticleFilter{Category: "Deportes", Limit: 1})
	require.NoError(t, err)
	require.Len(t, sports, 1)
	assert.Equal(t, "https://diario.pe/nc", sports[0].URL)
}

// --- Source Tests ---

func newTestSource(url string) *types.Source {
	return &types.Source{
		ID:        uuid.NewString(),
		URL:       url,
		Name:      "Diario",
		Enabled:   true,
		CreatedAt: time.Now().UTC(),
	}
}

func TestSourceLifecycle(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	src := newTestSource("https://diario.pe/ultimas")
	require.NoError(t, store.CreateSource(ctx, src))
	assert.ErrorIs(t, store.CreateSource(ctx, newTestSource(src.URL)), types.ErrDuplicateURL)

	got, err := store.GetSourceByURL(ctx, src.URL)
	require.NoError(t, err)
	assert.Equal(t, src.ID, got.ID)
	assert.True(t, got.Enabled)
	assert.Nil(t, got.LastScrapedAt)

	require.NoError(t, store.SetSourceEnabled(ctx, src.ID, false))
	enabled := true
	list, err := store.ListSources(ctx, SourceFilter{Enabled: &enabled})
	require.NoError(t, err)
	assert.Empty(t, list)

	at := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.MarkSourceScraped(ctx, src.ID, at))
	got, err = store.GetSource(ctx, src.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastScrapedAt)
	assert.True(t, at.Equal(*got.LastScrapedAt))
	assert.False(t, got.Enabled)

	require.NoError(t, store.DeleteSource(ctx, src.ID))
	_, err = store.GetSource(ctx, src.ID)
	assert.ErrorIs(t, err, types.ErrSourceNotFound)
	assert.ErrorIs(t, store.DeleteSource(ctx, src.ID), types.ErrSourceNotFound)
}

func TestOpenSelectsBackend(t *testing.T) {
	cfg := &config.StorageConfig{Type: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "nested", "n.db")}
	store, err := Open(context.Background(), cfg, testLogger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	assert.Equal(t, "sqlite", store.Name())

	_, err = Open(context.Background(), &config.StorageConfig{Type: "redis"}, testLogger)
	assert.Error(t, err)
}
