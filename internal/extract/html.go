package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var spaceRun = regexp.MustCompile(`\s+`)

// blockSelector lists the block-level elements whose text forms natural
// paragraph boundaries for the chunker.
const blockSelector = "p, h1, h2, h3, h4, h5, h6, li, td, th, pre, blockquote"

// HTMLText extracts the visible text of a parsed HTML document. Script and
// style content is dropped, block elements become blank-line separated
// paragraphs, and whitespace inside a paragraph is collapsed to single
// spaces.
func HTMLText(doc *goquery.Document) string {
	doc.Find("script, style, noscript").Remove()

	var parts []string
	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		if t := CollapseWhitespace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	if len(parts) > 0 {
		return strings.Join(parts, "\n\n")
	}

	// Pages without block markup fall back to the whole body text.
	if body := doc.Find("body"); body.Length() > 0 {
		return CollapseWhitespace(body.Text())
	}
	return CollapseWhitespace(doc.Text())
}

// HTMLTitle returns the page title, or "" when none is present.
func HTMLTitle(doc *goquery.Document) string {
	return CollapseWhitespace(doc.Find("title").First().Text())
}

// CollapseWhitespace trims s and replaces every whitespace run with a single
// space.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}
