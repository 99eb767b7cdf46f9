package feed

import (
	"context"
	"time"

	"rss_glue/internal/model"
	"rss_glue/internal/storage"
)

// Alias republishes another feed under its own namespace and title
// without fetching anything itself.
type Alias struct {
	ns     string
	title  string
	source Feed
}

// NewAlias creates an alias in namespace "alias_<id>".
func NewAlias(id, title string, source Feed) *Alias {
	return &Alias{ns: "alias_" + id, title: title, source: source}
}

func (a *Alias) Namespace() string { return a.ns }

func (a *Alias) Title() string {
	if a.title != "" {
		return a.title
	}
	return a.source.Title()
}

func (a *Alias) Sources() []Feed { return []Feed{a.source} }

// Unwrap returns the aliased feed.
func (a *Alias) Unwrap() Feed { return a.source }

func (a *Alias) Update(ctx context.Context) error {
	return a.source.Update(ctx)
}

func (a *Alias) NextUpdate(ctx context.Context, force bool) (time.Time, bool, error) {
	return a.source.NextUpdate(ctx, force)
}

func (a *Alias) LastUpdated(ctx context.Context) (time.Time, error) {
	return a.source.LastUpdated(ctx)
}

func (a *Alias) Locked(ctx context.Context) (bool, error) { return a.source.Locked(ctx) }
func (a *Alias) Lock(ctx context.Context) error           { return a.source.Lock(ctx) }
func (a *Alias) Unlock(ctx context.Context) error         { return a.source.Unlock(ctx) }

// Post wraps the source's item under the alias namespace.
func (a *Alias) Post(ctx context.Context, id string) (model.Item, error) {
	item, err := a.source.Post(ctx, id)
	if err != nil {
		return nil, err
	}
	return model.NewRef(a.ns, id, item), nil
}

// Posts wraps each of the source's items under the alias namespace.
func (a *Alias) Posts(ctx context.Context, q storage.Query) ([]model.Item, error) {
	items, err := a.source.Posts(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]model.Item, 0, len(items))
	for _, item := range items {
		out = append(out, model.NewRef(a.ns, item.Info().ID, item))
	}
	return out, nil
}
