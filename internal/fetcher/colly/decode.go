package collyfetcher

import (
	"bytes"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
)

const metaSniffLen = 4096

// decodeBody turns a response body into UTF-8 text. The response's own
// signal wins (Content-Type charset, BOM, <meta> declaration), then
// statistical detection, then UTF-8. Invalid sequences become U+FFFD.
func decodeBody(body []byte, contentType string) string {
	if len(body) == 0 {
		return ""
	}
	if declaredCharset(contentType) != "" {
		// Colly has already transcoded bodies with a declared charset.
		return toValidUTF8(body)
	}
	if enc, _, certain := charset.DetermineEncoding(body, ""); certain {
		return decodeWith(enc, body)
	}
	if label := metaCharset(body); label != "" {
		if enc, _ := charset.Lookup(label); enc != nil {
			return decodeWith(enc, body)
		}
	}
	if utf8.Valid(body) {
		return string(body)
	}
	if label := detectCharset(body); label != "" {
		if enc, _ := charset.Lookup(label); enc != nil {
			return decodeWith(enc, body)
		}
	}
	return toValidUTF8(body)
}

func declaredCharset(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return params["charset"]
}

func metaCharset(body []byte) string {
	head := body
	if len(head) > metaSniffLen {
		head = head[:metaSniffLen]
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(head))
	if err != nil {
		return ""
	}
	if cs, ok := doc.Find("meta[charset]").First().Attr("charset"); ok {
		return strings.TrimSpace(cs)
	}
	var label string
	doc.Find("meta[http-equiv]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		equiv, _ := sel.Attr("http-equiv")
		if !strings.EqualFold(strings.TrimSpace(equiv), "content-type") {
			return true
		}
		content, _ := sel.Attr("content")
		label = declaredCharset(content)
		return label == ""
	})
	return label
}

func detectCharset(body []byte) string {
	result, err := chardet.NewTextDetector().DetectBest(body)
	if err != nil || result == nil {
		return ""
	}
	return result.Charset
}

func decodeWith(enc encoding.Encoding, body []byte) string {
	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return toValidUTF8(body)
	}
	return toValidUTF8(out)
}

func toValidUTF8(body []byte) string {
	return strings.ToValidUTF8(string(body), "\uFFFD")
}
