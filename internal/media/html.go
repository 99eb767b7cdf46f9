// Package media finds media embedded in HTML fragments and keeps local
// copies of it.
package media

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// mediaTags are the elements whose src attribute points at media.
var mediaTags = map[string]bool{
	"img":    true,
	"video":  true,
	"audio":  true,
	"source": true,
}

// Extract returns the absolute URLs of media embedded in fragment, in
// document order without duplicates. Relative URLs resolve against base.
// data: URIs and unresolvable references are skipped.
func Extract(fragment, base string) []string {
	var urls []string
	seen := make(map[string]bool)
	walk(fragment, func(tok *html.Token) bool {
		for _, a := range tok.Attr {
			if a.Key != "src" {
				continue
			}
			u, ok := resolve(a.Val, base)
			if ok && !seen[u] {
				seen[u] = true
				urls = append(urls, u)
			}
		}
		return false
	})
	return urls
}

// Rewrite replaces media src attributes whose resolved URL is a key of
// mapping with the mapped value. Everything else is copied unchanged.
func Rewrite(fragment, base string, mapping map[string]string) string {
	if len(mapping) == 0 {
		return fragment
	}
	return walk(fragment, func(tok *html.Token) bool {
		changed := false
		for i, a := range tok.Attr {
			if a.Key != "src" {
				continue
			}
			u, ok := resolve(a.Val, base)
			if !ok {
				continue
			}
			if local, ok := mapping[u]; ok {
				tok.Attr[i].Val = local
				changed = true
			}
		}
		return changed
	})
}

// walk tokenizes fragment and calls fn for every media start tag. When fn
// reports a change the token is re-rendered; otherwise the raw input is
// kept. walk returns the reassembled fragment.
func walk(fragment string, fn func(tok *html.Token) bool) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(fragment))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if z.Err() != io.EOF {
				b.Write(z.Raw())
			}
			return b.String()
		}
		raw := string(z.Raw())
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			b.WriteString(raw)
			continue
		}
		tok := z.Token()
		if !mediaTags[tok.Data] || !fn(&tok) {
			b.WriteString(raw)
			continue
		}
		b.WriteString(tok.String())
	}
}

func resolve(ref, base string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "data:") {
		return "", false
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	if !u.IsAbs() {
		b, err := url.Parse(base)
		if err != nil || !b.IsAbs() {
			return "", false
		}
		u = b.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	return u.String(), true
}
