package crawler

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// MaxURLLength is the longest URL a page record may carry.
const MaxURLLength = 2048

// IsValidURL reports whether rawURL has both a scheme and a network location.
func IsValidURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}

// GetDomain returns the network location (host and optional port) of rawURL.
func GetDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}

// SanitizeURL strips the query and fragment, returning scheme://host/path.
func SanitizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Scheme + "://" + u.Host + u.EscapedPath()
}

// NormalizeURL resolves rawURL against base when it has no scheme and drops
// the fragment. The query string is preserved.
func NormalizeURL(rawURL, base string) string {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if u.Scheme == "" && base != "" {
		if b, berr := url.Parse(base); berr == nil {
			u = b.ResolveReference(u)
		}
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// IsFileURL reports whether the URL path ends with one of the skip extensions.
// Matching ignores case on both sides.
func IsFileURL(rawURL string, skipExtensions []string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	p := strings.ToLower(u.Path)
	for _, ext := range skipExtensions {
		if ext == "" {
			continue
		}
		if strings.HasSuffix(p, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// GenerateContentHash returns the hex SHA-256 digest of content.
func GenerateContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
