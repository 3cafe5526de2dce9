package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/newsmonitor/internal/events"
	"github.com/IshaanNene/newsmonitor/internal/observability"
	"github.com/IshaanNene/newsmonitor/internal/storage"
	"github.com/IshaanNene/newsmonitor/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

// Test helper: reconciler over a temp SQLite store
func createTestReconciler(t *testing.T) (*Reconciler, *storage.SQLiteStore) {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), testLogger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	r := New(store, testLogger)
	clock := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return r, store
}

func extracted() *types.ExtractedArticle {
	return &types.ExtractedArticle{
		URL:         "https://diario.pe/deportes/gol-agonico-en-el-clasico",
		Source:      "diario.pe",
		Title:       "Gol agónico en el clásico",
		Content:     "El partido se definió en el último minuto.",
		PublishDate: "2024-03-05T14:30:00Z",
		ImageURL:    "https://diario.pe/img/gol.jpg",
		Category:    "Deportes",
	}
}

// --- Insert Tests ---

func TestUpsertInsertsNewArticle(t *testing.T) {
	r, store := createTestReconciler(t)
	ctx := context.Background()

	res, err := r.Upsert(ctx, extracted())
	require.NoError(t, err)
	assert.Equal(t, OutcomeInserted, res.Outcome)
	assert.Empty(t, res.Changes)
	assert.NotEmpty(t, res.Article.ID)
	assert.Equal(t, "Deportes", types.Deref(res.Article.Category))
	require.NotNil(t, res.Article.PublishedAt)
	assert.Equal(t, 14, res.Article.PublishedAt.Hour())

	changes, err := store.ListChanges(ctx, res.Article.ID)
	require.NoError(t, err)
	assert.Empty(t, changes, "initial insert records no changes")
}

func TestUpsertGatesCategoryOnInsert(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"", "Tendencias"},
		{"Mundo", "Tendencias"},
		{"futbol", "Deportes"},
		{"MÚSICA", "Música"},
	}
	for _, tt := range tests {
		r, _ := createTestReconciler(t)
		ex := extracted()
		ex.Category = tt.raw
		res, err := r.Upsert(context.Background(), ex)
		require.NoError(t, err)
		assert.Equal(t, tt.want, types.Deref(res.Article.Category), "raw category %q", tt.raw)
	}
}

func TestUpsertUnparseableDateStoredAsNull(t *testing.T) {
	r, _ := createTestReconciler(t)
	ex := extracted()
	ex.PublishDate = "hace 3 horas"

	res, err := r.Upsert(context.Background(), ex)
	require.NoError(t, err)
	assert.Nil(t, res.Article.PublishedAt)
}

// --- Validation Tests ---

func TestUpsertValidation(t *testing.T) {
	fields := map[string]func(*types.ExtractedArticle){
		"url":     func(e *types.ExtractedArticle) { e.URL = "" },
		"source":  func(e *types.ExtractedArticle) { e.Source = "  " },
		"title":   func(e *types.ExtractedArticle) { e.Title = "" },
		"content": func(e *types.ExtractedArticle) { e.Content = "\n" },
	}
	for field, mutate := range fields {
		t.Run(field, func(t *testing.T) {
			r, store := createTestReconciler(t)
			ex := extracted()
			mutate(ex)

			_, err := r.Upsert(context.Background(), ex)
			var verr *types.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, field, verr.Field)

			all, err := store.ListArticles(context.Background(), storage.ArticleFilter{})
			require.NoError(t, err)
			assert.Empty(t, all)
		})
	}
}

func TestUpsertNilArticle(t *testing.T) {
	r, _ := createTestReconciler(t)

	res, err := r.Upsert(context.Background(), nil)
	var verr *types.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Nil(t, res)
}

// --- Idempotence & Change Tracking Tests ---

func TestUpsertIdempotent(t *testing.T) {
	r, store := createTestReconciler(t)
	ctx := context.Background()

	first, err := r.Upsert(ctx, extracted())
	require.NoError(t, err)

	second, err := r.Upsert(ctx, extracted())
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, second.Outcome)
	assert.Equal(t, first.Article.ID, second.Article.ID)

	got, err := store.GetArticleByURL(ctx, extracted().URL)
	require.NoError(t, err)
	assert.True(t, first.Article.UpdatedAt.Equal(got.UpdatedAt), "no write on unchanged upsert")

	changes, err := store.ListChanges(ctx, first.Article.ID)
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestUpsertDateFormattingIsNotAChange(t *testing.T) {
	r, _ := createTestReconciler(t)
	ctx := context.Background()

	_, err := r.Upsert(ctx, extracted())
	require.NoError(t, err)

	ex := extracted()
	ex.PublishDate = "2024-03-05 09:30:00.000-0500"
	res, err := r.Upsert(ctx, ex)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, res.Outcome)
}

func TestUpsertSingleFieldChange(t *testing.T) {
	r, store := createTestReconciler(t)
	ctx := context.Background()

	first, err := r.Upsert(ctx, extracted())
	require.NoError(t, err)
	before := *first.Article

	ex := extracted()
	ex.Title = "Gol agónico define el clásico"
	res, err := r.Upsert(ctx, ex)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, res.Outcome)

	changes, err := store.ListChanges(ctx, first.Article.ID)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, types.FieldTitle, changes[0].Field)
	assert.Equal(t, "Gol agónico en el clásico", changes[0].OldValue)
	assert.Equal(t, "Gol agónico define el clásico", changes[0].NewValue)

	got, err := store.GetArticleByURL(ctx, ex.URL)
	require.NoError(t, err)
	assert.Equal(t, ex.Title, got.Title)
	assert.Equal(t, before.Content, got.Content)
	assert.Equal(t, types.Deref(before.ImageURL), types.Deref(got.ImageURL))
	assert.Equal(t, types.Deref(before.Category), types.Deref(got.Category))
	assert.True(t, got.UpdatedAt.After(before.UpdatedAt))
}

func TestUpsertTracksEveryField(t *testing.T) {
	r, store := createTestReconciler(t)
	ctx := context.Background()

	first, err := r.Upsert(ctx, extracted())
	require.NoError(t, err)

	ex := &types.ExtractedArticle{
		URL:         extracted().URL,
		Source:      "diario.pe",
		Title:       "Nuevo título",
		Content:     "Nuevo cuerpo",
		PublishDate: "2024-03-06",
		ImageURL:    "https://diario.pe/img/nueva.jpg",
		Category:    "politica",
	}
	res, err := r.Upsert(ctx, ex)
	require.NoError(t, err)
	require.Len(t, res.Changes, 5)

	changes, err := store.ListChanges(ctx, first.Article.ID)
	require.NoError(t, err)
	fields := make(map[string]types.ChangeRecord)
	for _, c := range changes {
		fields[c.Field] = c
	}
	assert.Equal(t, "2024-03-05T14:30:00Z", fields[types.FieldPublishedAt].OldValue)
	assert.Equal(t, "2024-03-06T00:00:00Z", fields[types.FieldPublishedAt].NewValue)
	assert.Equal(t, "Deportes", fields[types.FieldCategory].OldValue)
	assert.Equal(t, "Política", fields[types.FieldCategory].NewValue)
	assert.Equal(t, "https://diario.pe/img/nueva.jpg", fields[types.FieldImage].NewValue)
}

func TestUpsertEmptyValuesDoNotOverwrite(t *testing.T) {
	r, store := createTestReconciler(t)
	ctx := context.Background()

	_, err := r.Upsert(ctx, extracted())
	require.NoError(t, err)

	ex := extracted()
	ex.ImageURL, ex.Category, ex.PublishDate = "", "", ""
	res, err := r.Upsert(ctx, ex)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, res.Outcome)

	got, err := store.GetArticleByURL(ctx, ex.URL)
	require.NoError(t, err)
	assert.Equal(t, "https://diario.pe/img/gol.jpg", types.Deref(got.ImageURL))
	assert.Equal(t, "Deportes", types.Deref(got.Category))
	assert.NotNil(t, got.PublishedAt)
}

func TestUpsertUniqueness(t *testing.T) {
	r, store := createTestReconciler(t)
	ctx := context.Background()

	for _, content := range []string{"uno", "dos", "tres"} {
		ex := extracted()
		ex.Content = content
		_, err := r.Upsert(ctx, ex)
		require.NoError(t, err)
	}

	all, err := store.ListArticles(ctx, storage.ArticleFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "tres", all[0].Content)
}

// --- Events & Metrics Tests ---

type recordingPublisher struct {
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, evs []events.Event) error {
	p.events = append(p.events, evs...)
	return p.err
}
func (p *recordingPublisher) Close() error { return nil }
func (p *recordingPublisher) Name() string { return "recording" }

func TestUpsertPublishesChangeEvents(t *testing.T) {
	r, _ := createTestReconciler(t)
	pub := &recordingPublisher{}
	r.SetPublisher(pub)
	metrics := observability.NewMetrics(testLogger)
	r.SetMetrics(metrics)
	ctx := context.Background()

	_, err := r.Upsert(ctx, extracted())
	require.NoError(t, err)
	assert.Empty(t, pub.events, "inserts publish nothing")

	ex := extracted()
	ex.Content = "Texto corregido."
	_, err = r.Upsert(ctx, ex)
	require.NoError(t, err)
	require.Len(t, pub.events, 1)
	assert.Equal(t, types.FieldContent, pub.events[0].Field)
	assert.Equal(t, ex.URL, pub.events[0].URL)

	assert.Equal(t, int64(1), metrics.ArticlesInserted.Load())
	assert.Equal(t, int64(1), metrics.ArticlesUpdated.Load())
	assert.Equal(t, int64(1), metrics.ChangesRecorded.Load())
	assert.Equal(t, int64(1), metrics.EventsPublished.Load())
}

func TestUpsertPublishFailureIsNotFatal(t *testing.T) {
	r, store := createTestReconciler(t)
	r.SetPublisher(&recordingPublisher{err: errors.New("broker down")})
	ctx := context.Background()

	_, err := r.Upsert(ctx, extracted())
	require.NoError(t, err)

	ex := extracted()
	ex.Title = "Otro título"
	res, err := r.Upsert(ctx, ex)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, res.Outcome)

	got, err := store.GetArticleByURL(ctx, ex.URL)
	require.NoError(t, err)
	assert.Equal(t, "Otro título", got.Title)
}

type failingStore struct {
	storage.ArticleStore
}

func (failingStore) GetArticleByURL(context.Context, string) (*types.Article, error) {
	return nil, &types.StorageError{Backend: "test", Op: "get_article", Err: errors.New("disk full")}
}

func TestUpsertStorageError(t *testing.T) {
	r := New(failingStore{}, testLogger)
	metrics := observability.NewMetrics(testLogger)
	r.SetMetrics(metrics)

	_, err := r.Upsert(context.Background(), extracted())
	var serr *types.StorageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, int64(1), metrics.UpsertErrors.Load())
}
