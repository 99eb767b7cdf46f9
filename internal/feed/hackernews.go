package feed

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"rss_glue/internal/model"
	"rss_glue/internal/storage"
)

// JSONFetcher downloads a JSON document into v.
type JSONFetcher interface {
	FetchJSON(ctx context.Context, url string, v any) error
}

const (
	// HackerNewsAPI is the public Firebase API root.
	HackerNewsAPI = "https://hacker-news.firebaseio.com/v0"
	// DefaultHackerNewsLimit is how many listed stories an update reads.
	DefaultHackerNewsLimit = 30

	hackerNewsSite = "https://news.ycombinator.com"
)

// HackerNewsLists are the story lists the API serves.
var HackerNewsLists = []string{"top", "new", "best"}

type hnItem struct {
	ID          int64  `json:"id"`
	Type        string `json:"type"`
	By          string `json:"by"`
	Time        int64  `json:"time"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Score       int    `json:"score"`
	Descendants int    `json:"descendants"`
	Deleted     bool   `json:"deleted"`
	Dead        bool   `json:"dead"`
}

// HackerNews is a leaf feed of stories from one Hacker News list.
type HackerNews struct {
	Throttle
	list   string
	limit  int
	api    string
	client JSONFetcher
}

// HackerNewsConfig configures NewHackerNews.
type HackerNewsConfig struct {
	ID     string
	List   string
	Limit  int
	Policy Policy
	// API overrides HackerNewsAPI.
	API string
}

// NewHackerNews creates a feed in namespace "hackernews_<id>".
func NewHackerNews(env *Env, client JSONFetcher, cfg HackerNewsConfig) *HackerNews {
	limit := cfg.Limit
	if limit <= 0 {
		limit = DefaultHackerNewsLimit
	}
	list := cfg.List
	if list == "" {
		list = "top"
	}
	api := cfg.API
	if api == "" {
		api = HackerNewsAPI
	}
	return &HackerNews{
		Throttle: newThrottle("hackernews_"+cfg.ID, env, cfg.Policy),
		list:     list,
		limit:    limit,
		api:      strings.TrimRight(api, "/"),
		client:   client,
	}
}

func (h *HackerNews) Title() string {
	return "Hacker News - " + strings.ToUpper(h.list[:1]) + h.list[1:]
}

func (h *HackerNews) Sources() []Feed { return nil }

// Update reads the story list and stores stories not seen before. Deleted,
// dead and non-story items are skipped.
func (h *HackerNews) Update(ctx context.Context) error {
	var ids []int64
	listURL := fmt.Sprintf("%s/%sstories.json", h.api, h.list)
	if err := h.client.FetchJSON(ctx, listURL, &ids); err != nil {
		return fmt.Errorf("fetch %s: %w", listURL, err)
	}
	if len(ids) > h.limit {
		ids = ids[:h.limit]
	}

	now := h.env.now()
	for _, n := range ids {
		id := strconv.FormatInt(n, 10)
		seen, err := h.has(ctx, id)
		if err != nil {
			return err
		}
		if seen {
			continue
		}

		var it hnItem
		itemURL := fmt.Sprintf("%s/item/%s.json", h.api, id)
		if err := h.client.FetchJSON(ctx, itemURL, &it); err != nil {
			return fmt.Errorf("fetch %s: %w", itemURL, err)
		}
		if it.Deleted || it.Dead || it.Type != "story" {
			h.log.Debug("skipping item", "id", id, "type", it.Type)
			continue
		}

		story := newStory(h.ns, id, it, now)
		if err := h.put(ctx, id, story); err != nil {
			return err
		}
		h.log.Info("new post", "id", id, "title", story.Title, "points", story.Points)
	}

	return h.MarkRun(ctx)
}

func newStory(ns, id string, it hnItem, now time.Time) model.Story {
	comments := hackerNewsSite + "/item?id=" + id
	link := it.URL
	if link == "" {
		link = comments
	}
	posted := now
	if it.Time > 0 {
		posted = time.Unix(it.Time, 0).UTC()
	}
	return model.Story{
		Record: model.Record{
			Version:        1,
			Namespace:      ns,
			ID:             id,
			Author:         it.By,
			OriginURL:      link,
			Title:          it.Title,
			DiscoveredTime: now,
			PostedTime:     posted,
		},
		Points:      it.Score,
		Comments:    it.Descendants,
		CommentsURL: comments,
	}
}

// Post implements Feed.
func (h *HackerNews) Post(ctx context.Context, id string) (model.Item, error) {
	var s model.Story
	if err := h.load(ctx, id, &s); err != nil {
		return nil, err
	}
	return s, nil
}

// Posts implements Feed.
func (h *HackerNews) Posts(ctx context.Context, q storage.Query) ([]model.Item, error) {
	ids, err := h.keys(ctx, q)
	if err != nil {
		return nil, err
	}
	return h.loadAll(ctx, ids, h.Post), nil
}
