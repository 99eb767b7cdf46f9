package output

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gorilla/feeds"
	"github.com/spf13/afero"

	"rss_glue/internal/feed"
	"rss_glue/internal/storage"
)

// RSSFeed writes one feed to an RSS 2.0 file.
type RSSFeed struct {
	fs      afero.Fs
	feed    feed.Feed
	path    string
	limit   int
	baseURL string
	log     *slog.Logger
}

// NewRSSFeed creates an RSSFeed writing f to name under fs. A non-positive
// limit uses DefaultLimit.
func NewRSSFeed(fs afero.Fs, f feed.Feed, name string, limit int, baseURL string, log *slog.Logger) *RSSFeed {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if log == nil {
		log = slog.Default()
	}
	return &RSSFeed{
		fs:      fs,
		feed:    f,
		path:    cleanPath(name),
		limit:   limit,
		baseURL: trimBase(baseURL),
		log:     log.With("ns", f.Namespace(), "output", name),
	}
}

func (r *RSSFeed) Name() string      { return r.path }
func (r *RSSFeed) Source() feed.Feed { return r.feed }

// Generate rewrites the file when the feed changed after it was last written.
func (r *RSSFeed) Generate(ctx context.Context) error {
	n, wrote, err := generate(ctx, r.fs, r.path, r.feed, func(ctx context.Context) ([]byte, int, error) {
		doc, err := r.Render(ctx)
		if err != nil {
			return nil, 0, err
		}
		data, err := doc.ToRss()
		if err != nil {
			return nil, 0, fmt.Errorf("encode rss: %w", err)
		}
		return []byte(data), len(doc.Items), nil
	})
	if err != nil {
		return err
	}
	if !wrote {
		r.log.Debug("output up to date")
		return nil
	}
	r.log.Info("output generated", "items", n)
	return nil
}

// Render builds the channel for the newest posts.
func (r *RSSFeed) Render(ctx context.Context) (*feeds.Feed, error) {
	last, err := r.feed.LastUpdated(ctx)
	if err != nil {
		return nil, fmt.Errorf("read last updated: %w", err)
	}
	posts, err := r.feed.Posts(ctx, storage.Query{Limit: r.limit})
	if err != nil {
		return nil, fmt.Errorf("load posts: %w", err)
	}

	doc := &feeds.Feed{
		Title:       r.feed.Title(),
		Link:        &feeds.Link{Href: r.baseURL + "/"},
		Description: r.feed.Title(),
		Updated:     last,
		Items:       make([]*feeds.Item, 0, len(posts)),
	}
	for _, p := range posts {
		info := p.Info()
		html := p.Render()
		item := &feeds.Item{
			Id:          info.Key().String(),
			Title:       info.Title,
			Link:        &feeds.Link{Href: info.OriginURL},
			Description: html,
			Content:     html,
			Created:     info.PostedTime,
			Updated:     info.DiscoveredTime,
		}
		if info.Author != "" {
			item.Author = &feeds.Author{Name: info.Author}
		}
		doc.Items = append(doc.Items, item)
	}
	return doc, nil
}
