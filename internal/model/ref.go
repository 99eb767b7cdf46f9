package model

import (
	"fmt"
	"html"
	"strings"
	"time"
)

// Subpost is a reference to an item owned by another feed. Item is nil when
// the target could not be resolved, which callers treat as a dangling reference.
type Subpost struct {
	Key  Key
	Item Item
}

// Resolved reports whether the referenced item was loaded.
func (s Subpost) Resolved() bool {
	return s.Item != nil
}

// Ref wraps another item. It renders, ranks and deduplicates as the wrapped item.
type Ref struct {
	Record
	Sub Subpost
}

// RefDoc is the persisted form of a Ref.
type RefDoc struct {
	Record
	Subpost Key `json:"subpost"`
}

// NewRef wraps item under the given namespace and id, copying its descriptive fields.
func NewRef(namespace, id string, item Item) Ref {
	rec := item.Info()
	rec.Namespace = namespace
	rec.ID = id
	return Ref{
		Record: rec,
		Sub:    Subpost{Key: item.Info().Key(), Item: item},
	}
}

func (r Ref) Score() float64 {
	if r.Sub.Item == nil {
		return r.Record.Score()
	}
	return r.Sub.Item.Score()
}

func (r Ref) HashKey() string {
	if r.Sub.Item == nil {
		return r.Record.HashKey()
	}
	return r.Sub.Item.HashKey()
}

func (r Ref) Render() string {
	if r.Sub.Item == nil {
		return ""
	}
	return r.Sub.Item.Render()
}

// Doc returns the persisted form of the reference.
func (r Ref) Doc() RefDoc {
	return RefDoc{Record: r.Record, Subpost: r.Sub.Key}
}

// Judged is a reference annotated with a derived verdict.
type Judged struct {
	Ref
	Judgement Judgement
}

// JudgedDoc is the persisted form of a Judged item.
type JudgedDoc struct {
	RefDoc
	Judgement Judgement `json:"judgement"`
}

// Issue is one completed digest period and its selected sub-items, ordered by score.
type Issue struct {
	Record
	PeriodStart time.Time
	PeriodEnd   time.Time
	Subposts    []Subpost
}

// IssueDoc is the persisted form of an Issue.
type IssueDoc struct {
	Record
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	Subposts    []Key     `json:"subposts"`
}

// Doc returns the persisted form of the issue.
func (i Issue) Doc() IssueDoc {
	keys := make([]Key, 0, len(i.Subposts))
	for _, s := range i.Subposts {
		keys = append(keys, s.Key)
	}
	return IssueDoc{
		Record:      i.Record,
		PeriodStart: i.PeriodStart,
		PeriodEnd:   i.PeriodEnd,
		Subposts:    keys,
	}
}

// Items returns the resolved sub-items in order.
func (i Issue) Items() []Item {
	items := make([]Item, 0, len(i.Subposts))
	for _, s := range i.Subposts {
		if s.Item != nil {
			items = append(items, s.Item)
		}
	}
	return items
}

const issueTimeLayout = "Mon, Jan 02 03:04 PM"

func (i Issue) Render() string {
	var b strings.Builder
	b.WriteString("<p>")
	for _, item := range i.Items() {
		rec := item.Info()
		fmt.Fprintf(&b, "\n<section>\n<a href=\"%s\"><h3>%s</h3></a>\n<time>%s</time>\n<div>%s</div>\n<hr>\n</section>\n",
			html.EscapeString(rec.OriginURL),
			html.EscapeString(rec.Title),
			rec.PostedTime.Format(issueTimeLayout),
			item.Render(),
		)
	}
	return b.String()
}
