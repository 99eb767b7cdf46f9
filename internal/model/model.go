// Package model defines the domain types used across the application.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// MetaKey is the reserved cache key holding feed-level bookkeeping.
const MetaKey = "meta"

// PostedTimeField is the document field whose value doubles as the
// document's chronological sort key.
const PostedTimeField = "posted_time"

// Key is the compound identity of an item.
type Key struct {
	Namespace string `json:"namespace"`
	ID        string `json:"id"`
}

func (k Key) String() string {
	return k.Namespace + "/" + k.ID
}

// Record holds the fields every item carries.
type Record struct {
	Version        int       `json:"version"`
	Namespace      string    `json:"namespace"`
	ID             string    `json:"id"`
	Author         string    `json:"author,omitempty"`
	OriginURL      string    `json:"origin_url"`
	Title          string    `json:"title"`
	DiscoveredTime time.Time `json:"discovered_time"`
	PostedTime     time.Time `json:"posted_time"`
}

// Info returns the record itself. Embedding types inherit it.
func (r Record) Info() Record {
	return r
}

// Key returns the compound identity of the record.
func (r Record) Key() Key {
	return Key{Namespace: r.Namespace, ID: r.ID}
}

// Score ranks items; by default the posted time as epoch seconds.
func (r Record) Score() float64 {
	return float64(r.PostedTime.UnixNano()) / float64(time.Second)
}

// HashKey is the deduplication identity. By default it is the compound key.
func (r Record) HashKey() string {
	return r.Key().String()
}

// Item is one piece of content.
type Item interface {
	Info() Record
	Score() float64
	HashKey() string
	Render() string
}

// Meta is the feed-level bookkeeping stored under MetaKey.
type Meta struct {
	LastUpdated time.Time `json:"last_updated,omitzero"`
	LastRun     time.Time `json:"last_run,omitzero"`
	Locked      bool      `json:"locked,omitempty"`
	Title       string    `json:"title,omitempty"`
	Author      string    `json:"author,omitempty"`
	Link        string    `json:"link,omitempty"`
}

// Document is the persisted form of a cache entry: a mapping from field
// names to raw JSON values.
type Document map[string]json.RawMessage

// NewDocument converts any JSON-serializable value into a Document.
func NewDocument(v any) (Document, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return doc, nil
}

// Decode fills v from the document's fields.
func (d Document) Decode(v any) error {
	b, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// PostedTime returns the document's posted_time field, if present and valid.
func (d Document) PostedTime() (time.Time, bool) {
	raw, ok := d[PostedTimeField]
	if !ok {
		return time.Time{}, false
	}
	var t time.Time
	if err := json.Unmarshal(raw, &t); err != nil || t.IsZero() {
		return time.Time{}, false
	}
	return t, true
}
