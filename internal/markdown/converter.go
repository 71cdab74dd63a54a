// Package markdown converts fetched HTML into cleaned markdown.
package markdown

import (
	"fmt"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/JakeFAU/linkgraph-crawler/internal/crawler"
)

var blankRuns = regexp.MustCompile(`\n{3,}`)

// Converter implements crawler.MarkdownConverter. Results are cached by
// content hash, so a page served twice is converted once.
type Converter struct {
	conv  *md.Converter
	cache *lru.Cache[string, string]
}

// NewConverter builds a Converter holding up to cacheSize results.
// A non-positive size disables caching.
func NewConverter(cacheSize int) (*Converter, error) {
	c := &Converter{conv: md.NewConverter("", true, nil)}
	if cacheSize <= 0 {
		return c, nil
	}
	cache, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create markdown cache: %w", err)
	}
	c.cache = cache
	return c, nil
}

// Convert renders html as markdown and applies Clean.
func (c *Converter) Convert(html string) (string, error) {
	if strings.TrimSpace(html) == "" {
		return "", nil
	}
	if c.cache == nil {
		return c.render(html)
	}
	key := crawler.GenerateContentHash(html)
	if cached, ok := c.cache.Get(key); ok {
		return cached, nil
	}
	out, err := c.render(html)
	if err != nil {
		return "", err
	}
	c.cache.Add(key, out)
	return out, nil
}

func (c *Converter) render(html string) (string, error) {
	out, err := c.conv.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("convert html: %w", err)
	}
	return Clean(out), nil
}

// Len reports how many results are cached.
func (c *Converter) Len() int {
	if c.cache == nil {
		return 0
	}
	return c.cache.Len()
}

// Clean normalizes converter output: control characters other than newline
// and tab are dropped, trailing spaces are trimmed from each line, runs of
// blank lines collapse to one, and the document is trimmed.
func Clean(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	s = strings.Join(lines, "\n")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
