package search

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/newsmonitor/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestIndexArticle(t *testing.T) {
	var gotPath string
	var gotDoc Document
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotDoc)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"result":"created"}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, "articles", testLogger)
	require.NoError(t, err)

	article := &types.Article{
		ID:        "a1",
		URL:       "https://diario.pe/nota",
		Source:    "diario.pe",
		Title:     "Titular",
		Content:   "Cuerpo",
		Category:  types.StringPtr("Deportes"),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, c.IndexArticle(context.Background(), article))

	assert.Equal(t, "/articles/_doc/a1", gotPath)
	assert.Equal(t, "Deportes", gotDoc.Category)
	assert.Equal(t, "Titular", gotDoc.Title)
}

func TestIndexArticleError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"mapper_parsing_exception"}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, "articles", testLogger)
	require.NoError(t, err)

	err = c.IndexArticle(context.Background(), &types.Article{ID: "a1"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "mapper_parsing_exception"))
}

func TestNewDocumentOptionalFields(t *testing.T) {
	doc := NewDocument(&types.Article{ID: "x"})
	assert.Empty(t, doc.Category)
	assert.Empty(t, doc.ImageURL)
	assert.Nil(t, doc.PublishedAt)
}
