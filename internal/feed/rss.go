package feed

import (
	"context"
	"fmt"

	"github.com/mmcdole/gofeed"

	"rss_glue/internal/fetcher"
	"rss_glue/internal/model"
	"rss_glue/internal/storage"
)

// Fetcher downloads and parses a remote feed.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*gofeed.Feed, error)
}

// DefaultRSSLimit is how many entries an RSS fetch keeps when unset.
const DefaultRSSLimit = 12

// RSS is a leaf feed backed by an RSS or Atom document.
type RSS struct {
	Throttle
	url     string
	title   string
	limit   int
	fetcher Fetcher
}

// RSSConfig configures NewRSS.
type RSSConfig struct {
	ID     string
	URL    string
	Title  string
	Limit  int
	Policy Policy
}

// NewRSS creates an RSS feed in namespace "rss_<id>".
func NewRSS(env *Env, f Fetcher, cfg RSSConfig) *RSS {
	limit := cfg.Limit
	if limit == 0 {
		limit = DefaultRSSLimit
	}
	return &RSS{
		Throttle: newThrottle("rss_"+cfg.ID, env, cfg.Policy),
		url:      cfg.URL,
		title:    cfg.Title,
		limit:    limit,
		fetcher:  f,
	}
}

// Title returns the configured title, falling back to the URL.
func (r *RSS) Title() string {
	if r.title != "" {
		return r.title
	}
	return r.url
}

// Sources implements Feed. RSS feeds are leaves.
func (r *RSS) Sources() []Feed {
	return nil
}

// Update fetches the remote document and stores entries not seen before.
func (r *RSS) Update(ctx context.Context) error {
	parsed, err := r.fetcher.Fetch(ctx, r.url)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", r.url, err)
	}

	err = r.updateMeta(ctx, func(m *model.Meta) {
		m.Title = parsed.Title
		m.Link = parsed.Link
		if parsed.Author != nil {
			m.Author = parsed.Author.Name
		}
	})
	if err != nil {
		return err
	}

	entries := fetcher.Entries(parsed, r.ns, r.env.now())
	r.log.Debug("fetched", "entries", len(entries))
	if r.limit > 0 && len(entries) > r.limit {
		entries = entries[:r.limit]
	}

	for _, e := range entries {
		seen, err := r.has(ctx, e.ID)
		if err != nil {
			return err
		}
		if seen {
			r.log.Debug("cache hit", "id", e.ID)
			continue
		}
		if err := r.put(ctx, e.ID, e); err != nil {
			return err
		}
		r.log.Info("new post", "id", e.ID, "title", e.Title)
	}

	return r.MarkRun(ctx)
}

// Post implements Feed.
func (r *RSS) Post(ctx context.Context, id string) (model.Item, error) {
	var e model.Entry
	if err := r.load(ctx, id, &e); err != nil {
		return nil, err
	}
	return e, nil
}

// Posts implements Feed.
func (r *RSS) Posts(ctx context.Context, q storage.Query) ([]model.Item, error) {
	ids, err := r.keys(ctx, q)
	if err != nil {
		return nil, err
	}
	return r.loadAll(ctx, ids, r.Post), nil
}
