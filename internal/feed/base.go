package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"rss_glue/internal/model"
	"rss_glue/internal/storage"
)

// Base implements the bookkeeping shared by every feed that owns a cache
// namespace: the meta document, the lock flag and last-updated tracking.
type Base struct {
	ns  string
	env *Env
	log *slog.Logger
}

func newBase(ns string, env *Env) Base {
	return Base{ns: ns, env: env, log: env.logger().With("ns", ns)}
}

// Namespace returns the feed's cache namespace.
func (b *Base) Namespace() string {
	return b.ns
}

func (b *Base) meta(ctx context.Context) (model.Meta, error) {
	var m model.Meta
	doc, ok, err := b.env.Cache.Get(ctx, b.ns, model.MetaKey)
	if err != nil {
		return m, fmt.Errorf("load meta: %w", err)
	}
	if !ok {
		return m, nil
	}
	if err := doc.Decode(&m); err != nil {
		return m, fmt.Errorf("load meta: %w", err)
	}
	return m, nil
}

func (b *Base) updateMeta(ctx context.Context, fn func(m *model.Meta)) error {
	m, err := b.meta(ctx)
	if err != nil {
		return err
	}
	fn(&m)
	doc, err := model.NewDocument(m)
	if err != nil {
		return err
	}
	if err := b.env.Cache.Set(ctx, b.ns, model.MetaKey, doc); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	return nil
}

// LastUpdated returns when a content document in this namespace last changed.
func (b *Base) LastUpdated(ctx context.Context) (time.Time, error) {
	m, err := b.meta(ctx)
	return m.LastUpdated, err
}

// Locked reports whether automatic updates are suppressed.
func (b *Base) Locked(ctx context.Context) (bool, error) {
	m, err := b.meta(ctx)
	return m.Locked, err
}

// Lock suppresses automatic updates until Unlock is called.
func (b *Base) Lock(ctx context.Context) error {
	return b.updateMeta(ctx, func(m *model.Meta) { m.Locked = true })
}

// Unlock clears the lock flag.
func (b *Base) Unlock(ctx context.Context) error {
	return b.updateMeta(ctx, func(m *model.Meta) { m.Locked = false })
}

// sourceDue reports a derived feed due when source changed after the
// feed's last write or run. Locked feeds are never due unless forced.
func (b *Base) sourceDue(ctx context.Context, source Feed, force bool) (time.Time, bool, error) {
	now := b.env.now()
	if force {
		return now, true, nil
	}
	m, err := b.meta(ctx)
	if err != nil {
		return time.Time{}, false, err
	}
	if m.Locked {
		return time.Time{}, false, nil
	}
	upstream, err := source.LastUpdated(ctx)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("source last updated: %w", err)
	}
	seen := m.LastUpdated
	if m.LastRun.After(seen) {
		seen = m.LastRun
	}
	if upstream.After(seen) {
		return upstream, true, nil
	}
	return time.Time{}, false, nil
}

func (b *Base) touch(ctx context.Context) error {
	now := b.env.now()
	return b.updateMeta(ctx, func(m *model.Meta) { m.LastUpdated = now })
}

// put stores v under id. Writing an identical document is a no-op, so
// repeated updates do not advance LastUpdated.
func (b *Base) put(ctx context.Context, id string, v any) error {
	doc, err := model.NewDocument(v)
	if err != nil {
		return err
	}
	old, ok, err := b.env.Cache.Get(ctx, b.ns, id)
	if err != nil {
		return fmt.Errorf("load %s: %w", id, err)
	}
	if ok && sameDocument(old, doc) {
		return nil
	}
	if err := b.env.Cache.Set(ctx, b.ns, id, doc); err != nil {
		return fmt.Errorf("store %s: %w", id, err)
	}
	return b.touch(ctx)
}

func (b *Base) remove(ctx context.Context, id string) error {
	if err := b.env.Cache.Delete(ctx, b.ns, id); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return b.touch(ctx)
}

// load decodes the document stored under id into v. Missing ids return
// ErrNotFound.
func (b *Base) load(ctx context.Context, id string, v any) error {
	doc, ok, err := b.env.Cache.Get(ctx, b.ns, id)
	if err != nil {
		return fmt.Errorf("load %s: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("%s/%s: %w", b.ns, id, ErrNotFound)
	}
	return doc.Decode(v)
}

func (b *Base) has(ctx context.Context, id string) (bool, error) {
	_, ok, err := b.env.Cache.Get(ctx, b.ns, id)
	if err != nil {
		return false, fmt.Errorf("load %s: %w", id, err)
	}
	return ok, nil
}

func (b *Base) keys(ctx context.Context, q storage.Query) ([]string, error) {
	keys, err := b.env.Cache.Keys(ctx, b.ns, q)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	return keys, nil
}

// loadAll loads every id with get, dropping the ones that fail.
func (b *Base) loadAll(ctx context.Context, ids []string, get func(context.Context, string) (model.Item, error)) []model.Item {
	items := make([]model.Item, 0, len(ids))
	for _, id := range ids {
		item, err := get(ctx, id)
		if err != nil {
			b.log.Warn("dropping post", "id", id, "error", err)
			continue
		}
		items = append(items, item)
	}
	return items
}

func sameDocument(a, b model.Document) bool {
	ja, err := json.Marshal(a)
	if err != nil {
		return false
	}
	jb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ja, jb)
}
