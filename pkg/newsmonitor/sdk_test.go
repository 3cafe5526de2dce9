package newsmonitor

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"
)

const listingHTML = `<html><body>
<a href="/noticias/el-congreso-aprueba-la-reforma">El Congreso aprueba la reforma</a>
<a href="/contacto">Contacto</a>
</body></html>`

const articleHTML = `<html><head>
<title>El Congreso aprueba la reforma</title>
<meta property="og:type" content="article">
<meta property="article:section" content="politica">
</head><body><article><h1>El Congreso aprueba la reforma</h1>
<p>El pleno votó la reforma tras una larga sesión que terminó de madrugada.</p>
</article></body></html>`

func newTestSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, listingHTML)
	})
	mux.HandleFunc("/noticias/el-congreso-aprueba-la-reforma", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, articleHTML)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestMonitor(t *testing.T) *Monitor {
	t.Helper()
	m, err := New(context.Background(),
		WithSQLite(filepath.Join(t.TempDir(), "news.db")),
		WithRateLimit(0),
		WithMaxRetries(0),
		WithTimeouts(2*time.Second, 2*time.Second),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

// --- Monitor Tests ---

func TestMonitorScrape(t *testing.T) {
	srv := newTestSite(t)
	m := newTestMonitor(t)
	ctx := context.Background()

	summaries := m.Scrape(ctx, srv.URL+"/")
	if len(summaries) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(summaries))
	}
	if summaries[0].Title != "El Congreso aprueba la reforma" {
		t.Errorf("unexpected title %q", summaries[0].Title)
	}

	changes, err := m.Changes(ctx, summaries[0].URL)
	if err != nil {
		t.Fatalf("Changes: %v", err)
	}
	if len(changes) != 0 {
		t.Errorf("expected no changes after first scrape, got %d", len(changes))
	}

	stats := m.Stats()
	if stats["articles_inserted"] != 1 {
		t.Errorf("expected 1 inserted article, got %d", stats["articles_inserted"])
	}
}

func TestMonitorExtract(t *testing.T) {
	srv := newTestSite(t)
	m := newTestMonitor(t)

	a, err := m.Extract(context.Background(), srv.URL+"/noticias/el-congreso-aprueba-la-reforma")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if a.Category != "Política" {
		t.Errorf("expected category Política, got %q", a.Category)
	}
	if a.Content == "" {
		t.Error("expected content")
	}
}

func TestMonitorInvalidOptions(t *testing.T) {
	_, err := New(context.Background(), WithSQLite(""))
	if err == nil {
		t.Error("expected error for empty sqlite path")
	}
}
