package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/newsmonitor/internal/config"
	"github.com/IshaanNene/newsmonitor/internal/fetcher"
	"github.com/IshaanNene/newsmonitor/internal/observability"
	"github.com/IshaanNene/newsmonitor/internal/storage"
	"github.com/IshaanNene/newsmonitor/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

var articleSlugs = []string{
	"primera-nota-del-dia",
	"segunda-nota-del-dia",
	"tercera-nota-del-dia",
	"cuarta-nota-del-dia",
	"quinta-nota-del-dia",
}

// newsSite serves a listing at "/" linking to five article pages under
// /noticias/. Slugs in slow never answer before the client gives up.
type newsSite struct {
	mu      sync.Mutex
	titles  map[string]string
	slow    map[string]bool
	listing int
	server  *httptest.Server
}

func newNewsSite(t *testing.T) *newsSite {
	t.Helper()
	site := &newsSite{
		titles: make(map[string]string),
		slow:   make(map[string]bool),
	}
	for i, slug := range articleSlugs {
		site.titles[slug] = fmt.Sprintf("Nota número %d", i+1)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		site.mu.Lock()
		status := site.listing
		site.mu.Unlock()
		if status != 0 {
			w.WriteHeader(status)
			return
		}

		var b strings.Builder
		b.WriteString(`<html><body><nav><a href="/contacto">Contacto</a><a href="/">Inicio</a></nav><main>`)
		for _, slug := range articleSlugs {
			fmt.Fprintf(&b, `<a href="/noticias/%s">%s</a>`, slug, slug)
			fmt.Fprintf(&b, `<a href="/noticias/%s?utm_source=home#comentarios">comentarios</a>`, slug)
		}
		b.WriteString(`<a href="/quienes-somos">Quiénes somos</a></main></body></html>`)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, b.String())
	})
	mux.HandleFunc("/noticias/", func(w http.ResponseWriter, r *http.Request) {
		slug := strings.TrimPrefix(r.URL.Path, "/noticias/")
		site.mu.Lock()
		title, ok := site.titles[slug]
		slow := site.slow[slug]
		site.mu.Unlock()

		if !ok {
			http.NotFound(w, r)
			return
		}
		if slow {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<html><head>
<title>%[1]s</title>
<meta property="og:type" content="article">
<meta property="og:title" content="%[1]s">
<meta property="article:published_time" content="2024-03-05T14:30:00Z">
<meta property="article:section" content="Deportes">
</head><body><article><h1>%[1]s</h1>
<p>El equipo local ganó el partido en los minutos finales ante su afición.</p>
<p>El entrenador destacó el esfuerzo del plantel durante toda la temporada.</p>
</article></body></html>`, title)
	})

	site.server = httptest.NewServer(mux)
	t.Cleanup(site.server.Close)
	return site
}

func (s *newsSite) setTitle(slug, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.titles[slug] = title
}

func (s *newsSite) setSlow(slug string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slow[slug] = true
}

func (s *newsSite) setListingStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listing = status
}

func (s *newsSite) articleURL(slug string) string {
	return s.server.URL + "/noticias/" + slug
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Fetcher.RateLimit = 0
	cfg.Fetcher.MaxRetries = 0
	cfg.Fetcher.Timeout = 2 * time.Second
	cfg.Fetcher.ArticleTimeout = 300 * time.Millisecond
	return cfg
}

// Test helper: engine over a temp SQLite store and a real HTTP fetcher
func createTestEngine(t *testing.T, cfg *config.Config) (*Engine, *storage.SQLiteStore) {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), testLogger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	f, err := fetcher.NewHTTPFetcher(cfg, nil, testLogger)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	return New(cfg, f, store, testLogger), store
}

func summaryURLs(summaries []types.Summary) []string {
	urls := make([]string, len(summaries))
	for i, s := range summaries {
		urls[i] = s.URL
	}
	return urls
}

// --- Scrape Tests ---

func TestScrapeProcessesListingInOrder(t *testing.T) {
	site := newNewsSite(t)
	e, store := createTestEngine(t, testConfig())
	ctx := context.Background()

	summaries := e.Scrape(ctx, site.server.URL+"/")
	require.Len(t, summaries, 5)
	for i, slug := range articleSlugs {
		assert.Equal(t, site.articleURL(slug), summaries[i].URL)
		assert.Equal(t, fmt.Sprintf("Nota número %d", i+1), summaries[i].Title)
		assert.NotEmpty(t, summaries[i].ID)
	}

	stored, err := store.GetArticleByURL(ctx, site.articleURL(articleSlugs[0]))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", stored.Source)
	assert.Equal(t, "Deportes", types.Deref(stored.Category))
	assert.Contains(t, stored.Content, "El equipo local ganó el partido")
	require.NotNil(t, stored.PublishedAt)
}

func TestScrapeSkipsTimedOutLink(t *testing.T) {
	site := newNewsSite(t)
	site.setSlow(articleSlugs[2])
	e, _ := createTestEngine(t, testConfig())
	metrics := observability.NewMetrics(testLogger)
	e.SetMetrics(metrics)

	summaries := e.Scrape(context.Background(), site.server.URL+"/")
	assert.Equal(t, []string{
		site.articleURL(articleSlugs[0]),
		site.articleURL(articleSlugs[1]),
		site.articleURL(articleSlugs[3]),
		site.articleURL(articleSlugs[4]),
	}, summaryURLs(summaries))
	assert.Equal(t, int64(1), metrics.ArticlesFailed.Load())
	assert.Equal(t, int64(4), metrics.ArticlesInserted.Load())
}

func TestScrapeListingFailure(t *testing.T) {
	site := newNewsSite(t)
	site.setListingStatus(http.StatusInternalServerError)
	e, store := createTestEngine(t, testConfig())
	metrics := observability.NewMetrics(testLogger)
	e.SetMetrics(metrics)

	summaries := e.Scrape(context.Background(), site.server.URL+"/")
	assert.NotNil(t, summaries)
	assert.Empty(t, summaries)
	assert.Equal(t, int64(1), metrics.ListingsFailed.Load())

	all, err := store.ListArticles(context.Background(), storage.ArticleFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestScrapeUnreachableListing(t *testing.T) {
	e, _ := createTestEngine(t, testConfig())
	assert.Empty(t, e.Scrape(context.Background(), "http://127.0.0.1:1/"))
	assert.Empty(t, e.Scrape(context.Background(), "not a url"))
}

func TestScrapeIsIdempotent(t *testing.T) {
	site := newNewsSite(t)
	e, store := createTestEngine(t, testConfig())
	metrics := observability.NewMetrics(testLogger)
	e.SetMetrics(metrics)
	ctx := context.Background()

	first := e.Scrape(ctx, site.server.URL+"/")
	second := e.Scrape(ctx, site.server.URL+"/")
	require.Len(t, second, 5)
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}
	assert.Equal(t, int64(5), metrics.ArticlesUnchanged.Load())
	assert.Equal(t, int64(0), metrics.ChangesRecorded.Load())

	all, err := store.ListArticles(ctx, storage.ArticleFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 5)
	for _, a := range all {
		changes, err := store.ListChanges(ctx, a.ID)
		require.NoError(t, err)
		assert.Empty(t, changes)
	}
}

func TestScrapeRecordsChanges(t *testing.T) {
	site := newNewsSite(t)
	e, store := createTestEngine(t, testConfig())
	ctx := context.Background()

	first := e.Scrape(ctx, site.server.URL+"/")
	require.Len(t, first, 5)

	site.setTitle(articleSlugs[1], "Nota número 2 (actualizada)")
	second := e.Scrape(ctx, site.server.URL+"/")
	require.Len(t, second, 5)
	assert.Equal(t, "Nota número 2 (actualizada)", second[1].Title)

	changes, err := store.ListChanges(ctx, first[1].ID)
	require.NoError(t, err)
	var titleChange *types.ChangeRecord
	for i := range changes {
		if changes[i].Field == types.FieldTitle {
			titleChange = &changes[i]
		}
	}
	require.NotNil(t, titleChange, "title change recorded")
	assert.Equal(t, "Nota número 2", titleChange.OldValue)
	assert.Equal(t, "Nota número 2 (actualizada)", titleChange.NewValue)

	for _, i := range []int{0, 2, 3, 4} {
		unchanged, err := store.ListChanges(ctx, first[i].ID)
		require.NoError(t, err)
		assert.Empty(t, unchanged)
	}
}

func TestScrapeRespectsArticleCap(t *testing.T) {
	site := newNewsSite(t)
	cfg := testConfig()
	cfg.Engine.MaxArticlesPerSource = 2
	e, _ := createTestEngine(t, cfg)

	summaries := e.Scrape(context.Background(), site.server.URL+"/")
	assert.Equal(t, []string{
		site.articleURL(articleSlugs[0]),
		site.articleURL(articleSlugs[1]),
	}, summaryURLs(summaries))
}

func TestScrapeUsesRegisteredSourceName(t *testing.T) {
	site := newNewsSite(t)
	e, store := createTestEngine(t, testConfig())
	ctx := context.Background()

	listing := site.server.URL + "/"
	require.NoError(t, store.CreateSource(ctx, &types.Source{
		ID:        uuid.NewString(),
		URL:       listing,
		Name:      "Diario Local",
		Enabled:   true,
		CreatedAt: time.Now().UTC(),
	}))

	summaries := e.Scrape(ctx, listing)
	require.NotEmpty(t, summaries)
	got, err := store.GetArticleByURL(ctx, summaries[0].URL)
	require.NoError(t, err)
	assert.Equal(t, "Diario Local", got.Source)
}

type stubIndexer struct {
	mu      sync.Mutex
	indexed []string
	err     error
}

func (s *stubIndexer) IndexArticle(_ context.Context, a *types.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexed = append(s.indexed, a.URL)
	return s.err
}

func TestScrapeIndexesProcessedArticles(t *testing.T) {
	site := newNewsSite(t)
	site.setSlow(articleSlugs[4])
	e, _ := createTestEngine(t, testConfig())
	ix := &stubIndexer{}
	e.SetIndexer(ix)

	summaries := e.Scrape(context.Background(), site.server.URL+"/")
	assert.Equal(t, summaryURLs(summaries), ix.indexed)
}

func TestScrapeIndexFailureIsNotFatal(t *testing.T) {
	site := newNewsSite(t)
	e, _ := createTestEngine(t, testConfig())
	metrics := observability.NewMetrics(testLogger)
	e.SetMetrics(metrics)
	e.SetIndexer(&stubIndexer{err: errors.New("cluster unavailable")})

	summaries := e.Scrape(context.Background(), site.server.URL+"/")
	assert.Len(t, summaries, 5)
	assert.Equal(t, int64(5), metrics.IndexErrors.Load())
}

type scriptedExtractor struct {
	results map[string]error
	inner   Extractor
}

func (s *scriptedExtractor) ExtractURL(ctx context.Context, pageURL string) (*types.ExtractedArticle, error) {
	for suffix, err := range s.results {
		if strings.HasSuffix(pageURL, suffix) {
			return nil, err
		}
	}
	return s.inner.ExtractURL(ctx, pageURL)
}

func TestScrapeSkipsNonArticles(t *testing.T) {
	site := newNewsSite(t)
	e, _ := createTestEngine(t, testConfig())
	metrics := observability.NewMetrics(testLogger)
	e.SetMetrics(metrics)
	e.SetExtractor(&scriptedExtractor{
		results: map[string]error{
			articleSlugs[0]: types.ErrNotAnArticle,
			articleSlugs[3]: types.ErrExtractionEmpty,
		},
		inner: e.extractor,
	})

	summaries := e.Scrape(context.Background(), site.server.URL+"/")
	assert.Equal(t, []string{
		site.articleURL(articleSlugs[1]),
		site.articleURL(articleSlugs[2]),
		site.articleURL(articleSlugs[4]),
	}, summaryURLs(summaries))
	assert.Equal(t, int64(2), metrics.ArticlesSkipped.Load())
}

func TestScrapeCancelledContext(t *testing.T) {
	site := newNewsSite(t)
	e, _ := createTestEngine(t, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Empty(t, e.Scrape(ctx, site.server.URL+"/"))
}

// --- ScrapeSources Tests ---

func TestScrapeSources(t *testing.T) {
	siteA := newNewsSite(t)
	siteB := newNewsSite(t)
	siteB.setListingStatus(http.StatusServiceUnavailable)
	siteC := newNewsSite(t)

	cfg := testConfig()
	cfg.Engine.SourceConcurrency = 2
	e, store := createTestEngine(t, cfg)
	ctx := context.Background()

	base := time.Now().UTC()
	sources := []types.Source{
		{ID: uuid.NewString(), URL: siteA.server.URL + "/", Name: "Diario A", Enabled: true, CreatedAt: base},
		{ID: uuid.NewString(), URL: siteB.server.URL + "/", Name: "Diario B", Enabled: true, CreatedAt: base.Add(time.Second)},
		{ID: uuid.NewString(), URL: siteC.server.URL + "/", Name: "Diario C", Enabled: false, CreatedAt: base.Add(2 * time.Second)},
	}
	for i := range sources {
		require.NoError(t, store.CreateSource(ctx, &sources[i]))
	}

	results, err := e.ScrapeSources(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "Diario A", results[0].Source.Name)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, 5, results[0].Processed())

	assert.Equal(t, "Diario B", results[1].Source.Name)
	assert.Error(t, results[1].Err)
	assert.Equal(t, 0, results[1].Processed())

	for _, src := range sources {
		got, err := store.GetSource(ctx, src.ID)
		require.NoError(t, err)
		if src.Enabled {
			assert.NotNil(t, got.LastScrapedAt, "source %s marked after attempt", src.Name)
		} else {
			assert.Nil(t, got.LastScrapedAt, "disabled source %s untouched", src.Name)
		}
	}

	stored, err := store.GetArticleByURL(ctx, siteA.articleURL(articleSlugs[0]))
	require.NoError(t, err)
	assert.Equal(t, "Diario A", stored.Source)
}

func TestScrapeSourcesEmpty(t *testing.T) {
	e, _ := createTestEngine(t, testConfig())
	results, err := e.ScrapeSources(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)
}

// --- CanonicalizeURL Tests ---

func TestCanonicalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://Diario.PE/noticias/nota", "https://diario.pe/noticias/nota"},
		{"https://diario.pe:443/noticias/nota", "https://diario.pe/noticias/nota"},
		{"http://diario.pe:80/noticias/nota#comentarios", "http://diario.pe/noticias/nota"},
		{"https://diario.pe/noticias/nota?utm_source=fb&utm_medium=social", "https://diario.pe/noticias/nota"},
		{"https://diario.pe/noticias/nota?id=7&fbclid=abc", "https://diario.pe/noticias/nota?id=7"},
		{"https://diario.pe/noticias/nota/", "https://diario.pe/noticias/nota/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanonicalizeURL(tt.in), "input %q", tt.in)
	}
}

func TestLinkSetKeepsFirstSeenOrder(t *testing.T) {
	set := newLinkSet(4)
	assert.True(t, set.Add("https://diario.pe/b"))
	assert.True(t, set.Add("https://diario.pe/a"))
	assert.False(t, set.Add("https://diario.pe/b?utm_campaign=x"))
	assert.Equal(t, []string{"https://diario.pe/b", "https://diario.pe/a"}, set.URLs())
}
