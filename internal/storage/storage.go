// Package storage defines the time-indexed document cache and its implementations.
package storage

import (
	"context"
	"time"

	"rss_glue/internal/model"
)

// Cache is a namespaced key→document store in which every document's
// modification time doubles as its chronological sort key.
//
// Documents carrying a posted_time field are stamped with that instant;
// all others are stamped with the wall-clock write time.
type Cache interface {
	// Get returns the document stored under key. Missing keys report ok=false
	// without an error.
	Get(ctx context.Context, namespace, key string) (doc model.Document, ok bool, err error)
	Set(ctx context.Context, namespace, key string, doc model.Document) error
	Delete(ctx context.Context, namespace, key string) error
	// Keys lists keys newest first, never including model.MetaKey.
	Keys(ctx context.Context, namespace string, q Query) ([]string, error)
	Close() error
}

// Query bounds a Keys call. Zero Start or End means unbounded on that side;
// Limit <= 0 means unlimited. The time range is half-open: [Start, End).
type Query struct {
	Limit int
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the query's time range.
func (q Query) Contains(t time.Time) bool {
	if !q.Start.IsZero() && t.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && !t.Before(q.End) {
		return false
	}
	return true
}

// modTime picks the modification time to apply to doc.
func modTime(doc model.Document, now func() time.Time) time.Time {
	if t, ok := doc.PostedTime(); ok {
		return t
	}
	return now()
}
