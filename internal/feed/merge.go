package feed

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"rss_glue/internal/model"
	"rss_glue/internal/storage"
)

// mergeDelimiter joins an input namespace and item id into a merged id.
const mergeDelimiter = "////"

// Merge combines several feeds into one, dropping duplicates.
type Merge struct {
	Base
	title  string
	limit  int
	inputs []Feed
}

// MergeConfig configures NewMerge.
type MergeConfig struct {
	ID    string
	Title string
	// Limit caps Posts when the query sets neither a limit nor a time
	// range. A ranged query without a limit returns the whole range.
	Limit int
}

// NewMerge creates a merge feed in namespace "merge_<id>".
func NewMerge(env *Env, cfg MergeConfig, inputs ...Feed) *Merge {
	return &Merge{
		Base:   newBase("merge_"+cfg.ID, env),
		title:  cfg.Title,
		limit:  cfg.Limit,
		inputs: inputs,
	}
}

func (m *Merge) Title() string {
	if m.title != "" {
		return m.title
	}
	return "Merge Feed"
}

func (m *Merge) Sources() []Feed { return m.inputs }

// Update is a no-op; inputs are updated before the merge.
func (m *Merge) Update(context.Context) error { return nil }

// NextUpdate reports the merge due only when forced.
func (m *Merge) NextUpdate(_ context.Context, force bool) (time.Time, bool, error) {
	if force {
		return m.env.now(), true, nil
	}
	return time.Time{}, false, nil
}

// LastUpdated is the latest LastUpdated of the inputs.
func (m *Merge) LastUpdated(ctx context.Context) (time.Time, error) {
	var latest time.Time
	for _, in := range m.inputs {
		t, err := in.LastUpdated(ctx)
		if err != nil {
			return time.Time{}, fmt.Errorf("last updated %s: %w", in.Namespace(), err)
		}
		if t.After(latest) {
			latest = t
		}
	}
	return latest, nil
}

func mergedID(item model.Item) string {
	rec := item.Info()
	return rec.Namespace + mergeDelimiter + rec.ID
}

// Post resolves a merged id back to the input that owns it.
func (m *Merge) Post(ctx context.Context, id string) (model.Item, error) {
	ns, sub, ok := strings.Cut(id, mergeDelimiter)
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", m.ns, id, ErrNotFound)
	}
	for _, in := range m.inputs {
		if in.Namespace() != ns {
			continue
		}
		item, err := in.Post(ctx, sub)
		if err != nil {
			return nil, err
		}
		return model.NewRef(m.ns, id, item), nil
	}
	return nil, fmt.Errorf("%s/%s: %w", m.ns, id, ErrNotFound)
}

// Posts gathers every input's posts, keeps the earliest discovered copy of
// each duplicate and orders the result by posted time, newest first.
func (m *Merge) Posts(ctx context.Context, q storage.Query) ([]model.Item, error) {
	limit := q.Limit
	if limit <= 0 && q.Start.IsZero() && q.End.IsZero() {
		limit = m.limit
	}

	var merged []model.Item
	index := make(map[string]int)
	for _, in := range m.inputs {
		items, err := in.Posts(ctx, storage.Query{Limit: limit, Start: q.Start, End: q.End})
		if err != nil {
			m.log.Warn("skipping input", "input", in.Namespace(), "error", err)
			continue
		}
		for _, item := range items {
			key := item.HashKey()
			i, dup := index[key]
			if !dup {
				index[key] = len(merged)
				merged = append(merged, item)
				continue
			}
			if item.Info().DiscoveredTime.Before(merged[i].Info().DiscoveredTime) {
				merged[i] = item
			}
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Info().PostedTime.After(merged[j].Info().PostedTime)
	})
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}

	out := make([]model.Item, 0, len(merged))
	for _, item := range merged {
		out = append(out, model.NewRef(m.ns, mergedID(item), item))
	}
	return out, nil
}
