package crawler

import "strings"

// domainBlocklist matches hosts against exact names and "*.suffix" or
// ".suffix" patterns. A nil blocklist blocks nothing.
type domainBlocklist struct {
	exact    map[string]struct{}
	suffixes []string
}

func newDomainBlocklist(patterns []string) *domainBlocklist {
	b := &domainBlocklist{exact: make(map[string]struct{})}
	seen := make(map[string]struct{})
	for _, raw := range patterns {
		value := strings.ToLower(strings.TrimSpace(raw))
		suffix, isSuffix := strings.CutPrefix(value, "*.")
		if !isSuffix {
			suffix, isSuffix = strings.CutPrefix(value, ".")
		}
		switch {
		case value == "":
		case isSuffix && suffix != "":
			if _, dup := seen[suffix]; !dup {
				seen[suffix] = struct{}{}
				b.suffixes = append(b.suffixes, suffix)
			}
		case !isSuffix:
			b.exact[value] = struct{}{}
		}
	}
	if len(b.exact) == 0 && len(b.suffixes) == 0 {
		return nil
	}
	return b
}

// Blocks reports whether the URL's host is on the list.
func (b *domainBlocklist) Blocks(rawURL string) bool {
	if b == nil {
		return false
	}
	host := strings.ToLower(hostname(rawURL))
	if host == "" {
		return false
	}
	if _, ok := b.exact[host]; ok {
		return true
	}
	for _, suffix := range b.suffixes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}
