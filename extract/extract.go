// Package extract turns a parsed HTML document into the title, visible
// text, metadata, and outbound links of a page.
package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/mcardoso/go-ragcrawl/models"
	"github.com/mcardoso/go-ragcrawl/urlnorm"
)

// UntitledTitle is the sentinel used when a page exposes no usable title.
const UntitledTitle = "Untitled"

// strippedSelectors are removed before text extraction; their contents
// are boilerplate, not page content.
const strippedSelectors = "script, style, nav, footer, header, aside"

// skippedHrefPrefixes mark anchors that never produce a crawlable link.
var skippedHrefPrefixes = []string{"#", "javascript:", "mailto:", "tel:"}

// Page extracts all fields for one page. doc is consumed: the content
// pass prunes boilerplate nodes in place, so it runs after every other
// extraction.
func Page(doc *goquery.Selection, pageURL string) *models.Page {
	return &models.Page{
		URL:      pageURL,
		Title:    Title(doc),
		Metadata: Meta(doc),
		Links:    Links(doc, pageURL),
		Content:  Content(doc),
	}
}

// Title returns the title element text, falling back to the first
// heading-level-1 text and finally to the "Untitled" sentinel.
func Title(doc *goquery.Selection) string {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	return UntitledTitle
}

// Content removes boilerplate elements from doc, then flattens the
// remaining visible text into a single whitespace-normalized string.
// The prune mutates doc.
func Content(doc *goquery.Selection) string {
	doc.Find(strippedSelectors).Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// Meta collects meta-tag name/content pairs (property as the name
// fallback, last write wins on duplicates) and the h1-h6 outline.
func Meta(doc *goquery.Selection) models.Metadata {
	md := models.Metadata{}

	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		name := s.AttrOr("name", "")
		if name == "" {
			name = s.AttrOr("property", "")
		}
		content := s.AttrOr("content", "")
		if name == "" || content == "" {
			return
		}
		if md.Tags == nil {
			md.Tags = make(map[string]string)
		}
		md.Tags[name] = content
	})

	for level := 1; level <= 6; level++ {
		doc.Find(fmt.Sprintf("h%d", level)).Each(func(_ int, s *goquery.Selection) {
			md.Headings = append(md.Headings, models.Heading{
				Level: level,
				Text:  strings.TrimSpace(s.Text()),
			})
		})
	}

	return md
}

// Links resolves every anchor href against pageURL, dropping fragment,
// javascript, mailto, and tel targets plus anything that fails
// validation. Within-page duplicates collapse; document order is kept.
func Links(doc *goquery.Selection, pageURL string) []string {
	var links []string
	seen := make(map[string]struct{})

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := s.AttrOr("href", "")
		for _, prefix := range skippedHrefPrefixes {
			if strings.HasPrefix(href, prefix) {
				return
			}
		}

		abs, err := urlnorm.Absolute(pageURL, href)
		if err != nil {
			return
		}
		if _, ok := seen[abs]; ok {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	})

	return links
}
