// Package output renders feeds into files consumed by feed readers.
package output

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/afero"

	"rss_glue/internal/feed"
	"rss_glue/internal/model"
	"rss_glue/internal/storage"
)

// Version is the JSON Feed version written by JSONFeed.
const Version = "https://jsonfeed.org/version/1.1"

// DefaultLimit caps the number of items in a generated file.
const DefaultLimit = 50

// Document is a JSON Feed document.
type Document struct {
	Version     string `json:"version"`
	Title       string `json:"title"`
	HomePageURL string `json:"home_page_url,omitempty"`
	FeedURL     string `json:"feed_url,omitempty"`
	Items       []Item `json:"items"`
}

// Item is a JSON Feed item.
type Item struct {
	ID            string   `json:"id"`
	URL           string   `json:"url,omitempty"`
	Title         string   `json:"title,omitempty"`
	ContentHTML   string   `json:"content_html"`
	DatePublished string   `json:"date_published,omitempty"`
	Authors       []Author `json:"authors,omitempty"`
}

// Author is a JSON Feed author.
type Author struct {
	Name string `json:"name"`
}

// JSONFeed writes one feed to a JSON Feed file.
type JSONFeed struct {
	fs      afero.Fs
	feed    feed.Feed
	path    string
	limit   int
	baseURL string
	log     *slog.Logger
}

// NewJSONFeed creates a JSONFeed writing f to name under fs. Items link
// back to baseURL. A non-positive limit uses DefaultLimit.
func NewJSONFeed(fs afero.Fs, f feed.Feed, name string, limit int, baseURL string, log *slog.Logger) *JSONFeed {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if log == nil {
		log = slog.Default()
	}
	return &JSONFeed{
		fs:      fs,
		feed:    f,
		path:    cleanPath(name),
		limit:   limit,
		baseURL: trimBase(baseURL),
		log:     log.With("ns", f.Namespace(), "output", name),
	}
}

// Name returns the output path.
func (j *JSONFeed) Name() string { return j.path }

// Source returns the rendered feed.
func (j *JSONFeed) Source() feed.Feed { return j.feed }

// Generate rewrites the file when the feed changed after it was last written.
func (j *JSONFeed) Generate(ctx context.Context) error {
	n, wrote, err := generate(ctx, j.fs, j.path, j.feed, func(ctx context.Context) ([]byte, int, error) {
		doc, err := j.Render(ctx)
		if err != nil {
			return nil, 0, err
		}
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, 0, fmt.Errorf("marshal json feed: %w", err)
		}
		return data, len(doc.Items), nil
	})
	if err != nil {
		return err
	}
	if !wrote {
		j.log.Debug("output up to date")
		return nil
	}
	j.log.Info("output generated", "items", n)
	return nil
}

// Render builds the JSON Feed document for the newest posts.
func (j *JSONFeed) Render(ctx context.Context) (Document, error) {
	posts, err := j.feed.Posts(ctx, storage.Query{Limit: j.limit})
	if err != nil {
		return Document{}, fmt.Errorf("load posts: %w", err)
	}

	doc := Document{
		Version: Version,
		Title:   j.feed.Title(),
		Items:   make([]Item, 0, len(posts)),
	}
	if j.baseURL != "" {
		doc.HomePageURL = j.baseURL + "/"
		doc.FeedURL = j.baseURL + "/" + j.path
	}
	for _, p := range posts {
		doc.Items = append(doc.Items, toItem(p))
	}
	return doc, nil
}

func toItem(p model.Item) Item {
	info := p.Info()
	item := Item{
		ID:          info.Key().String(),
		URL:         info.OriginURL,
		Title:       info.Title,
		ContentHTML: p.Render(),
	}
	if !info.PostedTime.IsZero() {
		item.DatePublished = info.PostedTime.UTC().Format(time.RFC3339)
	}
	if info.Author != "" {
		item.Authors = []Author{{Name: info.Author}}
	}
	return item
}
