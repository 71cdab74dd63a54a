package crawler

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractedLink is an anchor found in a document.
type ExtractedLink struct {
	URL  string
	Text string
	Rel  string
}

// ExtractTitle returns the trimmed text of the first <title> element, or ""
// when the document has none.
func ExtractTitle(document string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// ExtractLinks returns every anchor with an href, resolved against baseURL.
// Only valid http(s) URLs of at most MaxURLLength bytes are kept; document
// order is preserved.
func ExtractLinks(document, baseURL string) []ExtractedLink {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return nil
	}
	var links []ExtractedLink
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		target := NormalizeURL(href, baseURL)
		if len(target) > MaxURLLength || !IsValidURL(target) || !isHTTP(target) {
			return
		}
		rel, _ := sel.Attr("rel")
		links = append(links, ExtractedLink{
			URL:  target,
			Text: strings.Join(strings.Fields(sel.Text()), " "),
			Rel:  strings.TrimSpace(rel),
		})
	})
	return links
}

func isHTTP(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
