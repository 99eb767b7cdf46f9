package model

import (
	"fmt"
	"html"
	"net/url"
)

// Story is a Hacker News submission.
type Story struct {
	Record
	Points      int    `json:"points"`
	Comments    int    `json:"comments"`
	CommentsURL string `json:"comments_url"`
}

// Score ranks stories by points. Stories without points count as one.
func (s Story) Score() float64 {
	if s.Points <= 0 {
		return 1
	}
	return float64(s.Points)
}

func (s Story) Render() string {
	user := "https://news.ycombinator.com/user?id=" + url.QueryEscape(s.Author)
	return fmt.Sprintf(`<article>
<div><a href="%s">%s</a></div>
<p>By <a href="%s">%s</a>
<span>%d points</span> <span>%d comments</span>
<a href="%s">[comments]</a></p>
</article>`,
		html.EscapeString(s.OriginURL), html.EscapeString(s.Title),
		html.EscapeString(user), html.EscapeString(s.Author), s.Points, s.Comments,
		html.EscapeString(s.CommentsURL))
}
