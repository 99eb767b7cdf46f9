package model

import (
	"fmt"
	"html"
	"strings"
)

// Entry is an item fetched from an RSS or Atom feed.
type Entry struct {
	Record
	Content    string   `json:"content,omitempty"`
	Summary    string   `json:"summary,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

// Render returns the entry body, falling back to its summary and then to a
// link to the original.
func (e Entry) Render() string {
	switch {
	case e.Content != "":
		// Some publishers wrap the body in layout tables.
		return strings.NewReplacer("<table>", "", "</table>", "").Replace(e.Content)
	case e.Summary != "":
		return e.Summary
	default:
		link := html.EscapeString(e.OriginURL)
		return fmt.Sprintf(`<a href="%s">%s</a>`, link, link)
	}
}
