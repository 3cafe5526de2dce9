package pipeline

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/IshaanNene/newsmonitor/internal/category"
	"github.com/IshaanNene/newsmonitor/internal/dates"
	"github.com/IshaanNene/newsmonitor/internal/types"
)

// --- Normalizing Middleware ---

// HTMLSanitizeMiddleware removes markup left in titles and collapses
// whitespace. Body text is already plain text and only has its spacing
// normalized, so a literal "<" or "&amp;" in it survives.
type HTMLSanitizeMiddleware struct{}

func NewHTMLSanitizeMiddleware() *HTMLSanitizeMiddleware {
	return &HTMLSanitizeMiddleware{}
}

func (m *HTMLSanitizeMiddleware) Name() string { return "html_sanitize" }

func (m *HTMLSanitizeMiddleware) Process(a *types.ExtractedArticle) (*types.ExtractedArticle, error) {
	a.Title = strings.Join(strings.Fields(stripMarkup(a.Title)), " ")

	// Content keeps its paragraph breaks.
	lines := strings.Split(a.Content, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	a.Content = strings.TrimSpace(strings.Join(lines, "\n"))
	return a, nil
}

// stripMarkup returns the text of s when it contains real HTML tags.
// Strings without tags are returned untouched.
func stripMarkup(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}

	var b strings.Builder
	tagged := false
	tokens := html.NewTokenizer(strings.NewReader(s))
	for {
		switch tokens.Next() {
		case html.ErrorToken:
			if !tagged {
				return s
			}
			return b.String()
		case html.TextToken:
			b.Write(tokens.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken, html.CommentToken:
			tagged = true
		}
	}
}

// DateNormalizeMiddleware rewrites parseable publish dates into canonical
// form. Unparseable values are kept as raw text.
type DateNormalizeMiddleware struct{}

func (m *DateNormalizeMiddleware) Name() string { return "date_normalize" }

func (m *DateNormalizeMiddleware) Process(a *types.ExtractedArticle) (*types.ExtractedArticle, error) {
	if a.PublishDate != "" {
		a.PublishDate = dates.Normalize(a.PublishDate)
	}
	return a, nil
}

// CategoryMiddleware coerces a non-empty category into the allowed set.
// An empty category stays empty so updates do not overwrite a stored one.
type CategoryMiddleware struct{}

func (m *CategoryMiddleware) Name() string { return "category_gate" }

func (m *CategoryMiddleware) Process(a *types.ExtractedArticle) (*types.ExtractedArticle, error) {
	if a.Category != "" {
		a.Category = category.Resolve(a.Category)
	}
	return a, nil
}
