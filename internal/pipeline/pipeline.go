package pipeline

import (
	"log/slog"
	"strings"

	"github.com/IshaanNene/newsmonitor/internal/types"
)

// Middleware processes an extracted article and returns the (possibly
// modified) article. Return nil to drop it.
type Middleware interface {
	// Name returns the middleware's identifier.
	Name() string

	// Process transforms an article. Return nil to drop the article.
	Process(article *types.ExtractedArticle) (*types.ExtractedArticle, error)
}

// Pipeline chains middleware processors together.
type Pipeline struct {
	middlewares []Middleware
	logger      *slog.Logger
}

// New creates a new, empty Pipeline.
func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{
		logger: logger.With("component", "pipeline"),
	}
}

// NewDefault creates the Pipeline run between extraction and upsert.
func NewDefault(logger *slog.Logger) *Pipeline {
	p := New(logger)
	p.Use(&TrimMiddleware{})
	p.Use(NewHTMLSanitizeMiddleware())
	p.Use(&DateNormalizeMiddleware{})
	p.Use(&CategoryMiddleware{})
	p.Use(&RequiredFieldsMiddleware{})
	return p
}

// Use adds a middleware to the pipeline chain.
func (p *Pipeline) Use(mw Middleware) {
	p.middlewares = append(p.middlewares, mw)
	p.logger.Debug("middleware added", "name", mw.Name(), "position", len(p.middlewares))
}

// Process runs the article through all middleware in order. A nil result
// with a nil error means the article was dropped.
func (p *Pipeline) Process(article *types.ExtractedArticle) (*types.ExtractedArticle, error) {
	current := article

	for _, mw := range p.middlewares {
		result, err := mw.Process(current)
		if err != nil {
			return nil, &types.PipelineError{
				Stage: mw.Name(),
				URL:   article.URL,
				Err:   err,
			}
		}
		if result == nil {
			p.logger.Debug("article dropped", "stage", mw.Name(), "url", article.URL)
			return nil, nil
		}
		current = result
	}

	return current, nil
}

// Len returns the number of middleware in the chain.
func (p *Pipeline) Len() int {
	return len(p.middlewares)
}

// --- Built-in Middleware ---

// TrimMiddleware trims whitespace from all string fields.
type TrimMiddleware struct{}

func (m *TrimMiddleware) Name() string { return "trim" }

func (m *TrimMiddleware) Process(a *types.ExtractedArticle) (*types.ExtractedArticle, error) {
	a.URL = strings.TrimSpace(a.URL)
	a.Source = strings.TrimSpace(a.Source)
	a.Title = strings.TrimSpace(a.Title)
	a.Content = strings.TrimSpace(a.Content)
	a.PublishDate = strings.TrimSpace(a.PublishDate)
	a.ImageURL = strings.TrimSpace(a.ImageURL)
	a.Category = strings.TrimSpace(a.Category)
	return a, nil
}

// DefaultSourceMiddleware fills in the source label when extraction left it blank.
type DefaultSourceMiddleware struct {
	Source string
}

func (m *DefaultSourceMiddleware) Name() string { return "default_source" }

func (m *DefaultSourceMiddleware) Process(a *types.ExtractedArticle) (*types.ExtractedArticle, error) {
	if a.Source == "" {
		a.Source = m.Source
	}
	return a, nil
}

// RequiredFieldsMiddleware rejects articles missing url, title or content.
// The source label is checked later, once the orchestrator has set it.
type RequiredFieldsMiddleware struct{}

func (m *RequiredFieldsMiddleware) Name() string { return "required_fields" }

func (m *RequiredFieldsMiddleware) Process(a *types.ExtractedArticle) (*types.ExtractedArticle, error) {
	switch {
	case a.URL == "":
		return nil, &types.ValidationError{URL: a.URL, Field: "url"}
	case a.Title == "":
		return nil, &types.ValidationError{URL: a.URL, Field: types.FieldTitle}
	case a.Content == "":
		return nil, &types.ValidationError{URL: a.URL, Field: types.FieldContent}
	}
	return a, nil
}
