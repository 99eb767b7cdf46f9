package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rss_glue/internal/media"
	"rss_glue/internal/model"
	"rss_glue/internal/storage"
)

// MediaStore keeps local copies of remote media.
type MediaStore interface {
	Save(ctx context.Context, namespace, url string) (string, error)
}

// MediaCache republishes its source with embedded media served from a
// local store.
type MediaCache struct {
	Base
	title  string
	source Feed
	store  MediaStore
	limit  int
}

// MediaCacheConfig configures NewMediaCache.
type MediaCacheConfig struct {
	ID    string
	Title string
	// Limit bounds how many of the newest source items are cached per
	// update. Zero or negative caches them all.
	Limit int
}

// NewMediaCache creates a media cache in namespace "media_cache_<id>".
func NewMediaCache(env *Env, source Feed, store MediaStore, cfg MediaCacheConfig) *MediaCache {
	return &MediaCache{
		Base:   newBase("media_cache_"+cfg.ID, env),
		title:  cfg.Title,
		source: source,
		store:  store,
		limit:  cfg.Limit,
	}
}

func (c *MediaCache) Title() string {
	if c.title != "" {
		return c.title
	}
	return c.source.Title()
}

func (c *MediaCache) Sources() []Feed { return []Feed{c.source} }

// Update copies the media of source items that are not cached yet. A
// failed download is recorded and the original URL kept.
func (c *MediaCache) Update(ctx context.Context) error {
	items, err := c.source.Posts(ctx, storage.Query{Limit: c.limit})
	if err != nil {
		return fmt.Errorf("load source posts: %w", err)
	}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		id := item.Info().ID
		cached, err := c.has(ctx, id)
		if err != nil {
			return err
		}
		if cached {
			continue
		}

		doc := model.CachedDoc{
			RefDoc: model.NewRef(c.ns, id, item).Doc(),
			Media:  make(map[string]string),
		}
		for _, src := range media.Extract(item.Render(), item.Info().OriginURL) {
			local, err := c.store.Save(ctx, c.ns, src)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.log.Warn("failed to cache media", "id", id, "url", src, "error", err)
				doc.Failed = append(doc.Failed, src)
				continue
			}
			doc.Media[src] = local
		}
		if err := c.put(ctx, id, doc); err != nil {
			return err
		}
		c.log.Info("cached post media", "id", id, "saved", len(doc.Media), "failed", len(doc.Failed))
	}

	now := c.env.now()
	return c.updateMeta(ctx, func(m *model.Meta) { m.LastRun = now })
}

// NextUpdate reports the cache due whenever its source changed after the
// last run.
func (c *MediaCache) NextUpdate(ctx context.Context, force bool) (time.Time, bool, error) {
	return c.sourceDue(ctx, c.source, force)
}

func (c *MediaCache) cached(ctx context.Context, id string) (model.Cached, error) {
	var doc model.CachedDoc
	if err := c.load(ctx, id, &doc); err != nil {
		return model.Cached{}, err
	}
	out := model.Cached{
		Ref:   model.Ref{Record: doc.Record, Sub: model.Subpost{Key: doc.Subpost}},
		Media: doc.Media,
	}
	sub, err := c.source.Post(ctx, doc.Subpost.ID)
	if errors.Is(err, ErrNotFound) {
		return out, fmt.Errorf("%s/%s -> %s: %w", c.ns, id, doc.Subpost, ErrUnresolved)
	}
	if err != nil {
		return out, err
	}
	out.Sub.Item = sub
	return out, nil
}

func (c *MediaCache) Post(ctx context.Context, id string) (model.Item, error) {
	item, err := c.cached(ctx, id)
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (c *MediaCache) Posts(ctx context.Context, q storage.Query) ([]model.Item, error) {
	ids, err := c.keys(ctx, q)
	if err != nil {
		return nil, err
	}
	return c.loadAll(ctx, ids, c.Post), nil
}

// Cleanup deletes cached entries whose source item no longer exists.
func (c *MediaCache) Cleanup(ctx context.Context) (int, error) {
	ids, err := c.keys(ctx, storage.Query{})
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, id := range ids {
		_, err := c.cached(ctx, id)
		if !errors.Is(err, ErrUnresolved) {
			continue
		}
		c.log.Info("removing dangling cache entry", "id", id)
		if err := c.remove(ctx, id); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
