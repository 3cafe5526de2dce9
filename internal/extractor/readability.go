package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

const blockSelector = "p, h2, h3, h4, blockquote, pre, li"

// ReadabilityStrategy renders the readable content found by go-readability
// into a structured Document.
type ReadabilityStrategy struct{}

func (ReadabilityStrategy) Name() string { return "readability" }

func (ReadabilityStrategy) Extract(page *Page) *Document {
	article, err := readability.FromReader(strings.NewReader(page.HTML), page.URL)
	if err != nil {
		return nil
	}
	if strings.TrimSpace(article.Content) == "" {
		return nil
	}

	content, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
	if err != nil {
		return nil
	}
	content.Find("script, style, noscript, figure figcaption").Remove()

	doc := &Document{
		Title: strings.TrimSpace(article.Title),
		Text:  blockText(content),
	}
	if doc.Text == "" {
		return nil
	}

	if dt, ok := content.Find("time[datetime]").First().Attr("datetime"); ok {
		doc.Date = strings.TrimSpace(dt)
	}
	content.Find("img[src]").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		if abs := absolute(page.URL, src); abs != "" {
			doc.Images = append(doc.Images, abs)
		}
	})

	return doc
}

// blockText joins the text of block elements with blank lines, falling
// back to the whole normalized text when no block carries any.
func blockText(content *goquery.Document) string {
	var parts []string
	content.Find(blockSelector).Each(func(_ int, sel *goquery.Selection) {
		// A list item wrapping paragraphs is covered by its paragraphs.
		if goquery.NodeName(sel) == "li" && sel.Find("p").Length() > 0 {
			return
		}
		if text := normalizeText(sel.Text()); text != "" {
			parts = append(parts, strings.ReplaceAll(text, "\n", " "))
		}
	})
	if len(parts) > 0 {
		return strings.Join(parts, "\n\n")
	}
	return normalizeText(content.Text())
}
