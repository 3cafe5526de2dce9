package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Metrics tracks operational counters for scrape runs.
type Metrics struct {
	// Listing metrics
	ListingsFetched atomic.Int64
	ListingsFailed  atomic.Int64
	LinksClassified atomic.Int64

	// Article metrics
	ArticlesFetched   atomic.Int64
	ArticlesFailed    atomic.Int64
	ArticlesSkipped   atomic.Int64
	ArticlesInserted  atomic.Int64
	ArticlesUpdated   atomic.Int64
	ArticlesUnchanged atomic.Int64
	UpsertErrors      atomic.Int64
	ChangesRecorded   atomic.Int64

	// Fetcher metrics
	FetchRetries    atomic.Int64
	BytesDownloaded atomic.Int64

	// Sink metrics
	EventsPublished atomic.Int64
	EventErrors     atomic.Int64
	IndexErrors     atomic.Int64

	logger *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{
		logger: logger.With("component", "metrics"),
	}
}

type metricLine struct {
	name  string
	help  string
	value int64
}

func (m *Metrics) lines() []metricLine {
	return []metricLine{
		{"newsmonitor_listings_fetched_total", "Listing pages fetched", m.ListingsFetched.Load()},
		{"newsmonitor_listings_failed_total", "Listing pages that failed to fetch", m.ListingsFailed.Load()},
		{"newsmonitor_links_classified_total", "Candidate article links produced", m.LinksClassified.Load()},
		{"newsmonitor_articles_fetched_total", "Article pages fetched", m.ArticlesFetched.Load()},
		{"newsmonitor_articles_failed_total", "Article pages that failed to fetch", m.ArticlesFailed.Load()},
		{"newsmonitor_articles_skipped_total", "Pages skipped as non-articles or empty", m.ArticlesSkipped.Load()},
		{"newsmonitor_articles_inserted_total", "Articles inserted", m.ArticlesInserted.Load()},
		{"newsmonitor_articles_updated_total", "Articles updated", m.ArticlesUpdated.Load()},
		{"newsmonitor_articles_unchanged_total", "Articles seen without changes", m.ArticlesUnchanged.Load()},
		{"newsmonitor_upsert_errors_total", "Upserts that failed validation or storage", m.UpsertErrors.Load()},
		{"newsmonitor_changes_recorded_total", "Field change records written", m.ChangesRecorded.Load()},
		{"newsmonitor_fetch_retries_total", "HTTP retries performed", m.FetchRetries.Load()},
		{"newsmonitor_bytes_downloaded_total", "Decoded bytes downloaded", m.BytesDownloaded.Load()},
		{"newsmonitor_events_published_total", "Change events published", m.EventsPublished.Load()},
		{"newsmonitor_event_errors_total", "Change events that failed to publish", m.EventErrors.Load()},
		{"newsmonitor_index_errors_total", "Search index writes that failed", m.IndexErrors.Load()},
	}
}

// ServeHTTP serves metrics in Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	for _, metric := range m.lines() {
		fmt.Fprintf(w, "# HELP %s %s\n", metric.name, metric.help)
		fmt.Fprintf(w, "# TYPE %s counter\n", metric.name)
		fmt.Fprintf(w, "%s %d\n", metric.name, metric.value)
	}
}

// Router returns a chi router exposing the metrics path and /health.
func (m *Metrics) Router(path string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Method(http.MethodGet, path, m)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})
	return r
}

// StartServer serves the metrics router until ctx is cancelled.
func (m *Metrics) StartServer(ctx context.Context, port int, path string) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           m.Router(path),
		ReadHeaderTimeout: 5 * time.Second,
	}
	m.logger.Info("metrics server starting", "addr", srv.Addr, "path", path)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("metrics server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	return nil
}

// Snapshot returns all metrics as a map keyed by short name.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"listings_fetched":   m.ListingsFetched.Load(),
		"listings_failed":    m.ListingsFailed.Load(),
		"links_classified":   m.LinksClassified.Load(),
		"articles_fetched":   m.ArticlesFetched.Load(),
		"articles_failed":    m.ArticlesFailed.Load(),
		"articles_skipped":   m.ArticlesSkipped.Load(),
		"articles_inserted":  m.ArticlesInserted.Load(),
		"articles_updated":   m.ArticlesUpdated.Load(),
		"articles_unchanged": m.ArticlesUnchanged.Load(),
		"upsert_errors":      m.UpsertErrors.Load(),
		"changes_recorded":   m.ChangesRecorded.Load(),
		"fetch_retries":      m.FetchRetries.Load(),
		"bytes_downloaded":   m.BytesDownloaded.Load(),
		"events_published":   m.EventsPublished.Load(),
		"event_errors":       m.EventErrors.Load(),
		"index_errors":       m.IndexErrors.Load(),
	}
}
