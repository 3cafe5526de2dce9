package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PlainTextStrategy takes the visible text of the main content container
// with page chrome removed. It produces no title, date or image.
type PlainTextStrategy struct{}

func (PlainTextStrategy) Name() string { return "plain_text" }

func (PlainTextStrategy) Extract(page *Page) *Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil
	}
	doc.Find("script, style, noscript, nav, header, footer, aside, form, iframe").Remove()

	var container *goquery.Selection
	for _, selector := range []string{"article", "main", "body"} {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			container = sel
			break
		}
	}
	if container == nil {
		container = doc.Selection
	}

	container.Find("p, h1, h2, h3, h4, li, blockquote, div, br").AfterHtml("\n")
	text := normalizeText(container.Text())
	if text == "" {
		return nil
	}
	return &Document{Text: text}
}
