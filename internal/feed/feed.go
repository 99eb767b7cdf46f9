// Package feed implements the feed graph: leaf sources, decorators that
// wrap another feed, merges of several feeds and periodic digests. All
// persistent state lives in the document cache, so feeds can be rebuilt
// from configuration on every run.
package feed

import (
	"context"
	"errors"
	"time"

	"rss_glue/internal/model"
	"rss_glue/internal/storage"
)

var (
	// ErrNotFound is returned by Post when the id is not cached.
	ErrNotFound = errors.New("post not found")
	// ErrUnresolved is returned when a stored reference points at an item
	// that no longer exists.
	ErrUnresolved = errors.New("unresolved reference")
)

// Feed is one content source or transformation.
type Feed interface {
	// Namespace is the feed's unique, stable identifier and cache partition.
	Namespace() string
	Title() string
	// Sources lists the feeds that must be updated before this one.
	Sources() []Feed

	// Update refreshes the feed's cached content unconditionally.
	Update(ctx context.Context) error
	// NextUpdate reports when the feed is next due and whether it is due now.
	// A zero next time means the feed is never due on its own.
	NextUpdate(ctx context.Context, force bool) (next time.Time, due bool, err error)

	// Post loads a single item. Missing ids return ErrNotFound.
	Post(ctx context.Context, id string) (model.Item, error)
	// Posts returns items newest first. Items that fail to load are dropped.
	Posts(ctx context.Context, q storage.Query) ([]model.Item, error)

	LastUpdated(ctx context.Context) (time.Time, error)
	Locked(ctx context.Context) (bool, error)
	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error
}

// Cleaner is implemented by feeds that can prune stale documents after a
// successful update.
type Cleaner interface {
	Cleanup(ctx context.Context) (removed int, err error)
}

// Wrapper is implemented by feeds whose update work is done entirely by
// another feed.
type Wrapper interface {
	Unwrap() Feed
}
