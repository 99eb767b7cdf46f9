package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rss_glue/internal/model"
	"rss_glue/internal/storage"
)

// Judge decides whether an item belongs in a derived feed.
type Judge interface {
	Judge(ctx context.Context, item model.Item) (model.Judgement, error)
}

// Augment wraps a source feed and persists one verdict per source item in
// its own namespace. Only included items are published.
type Augment struct {
	Base
	title  string
	source Feed
	judge  Judge
	limit  int
}

// AugmentConfig configures NewAugment.
type AugmentConfig struct {
	// Kind prefixes the namespace, e.g. "ai_filter".
	Kind  string
	ID    string
	Title string
	// Limit bounds how many of the newest source items are judged per
	// update. Zero or negative judges them all.
	Limit int
}

// NewAugment creates an augment feed in namespace "<kind>_<id>".
func NewAugment(env *Env, source Feed, judge Judge, cfg AugmentConfig) *Augment {
	return &Augment{
		Base:   newBase(cfg.Kind+"_"+cfg.ID, env),
		title:  cfg.Title,
		source: source,
		judge:  judge,
		limit:  cfg.Limit,
	}
}

func (a *Augment) Title() string {
	if a.title != "" {
		return a.title
	}
	return "Filter " + a.source.Title()
}

func (a *Augment) Sources() []Feed { return []Feed{a.source} }

// Update judges source items that have no verdict yet.
func (a *Augment) Update(ctx context.Context) error {
	items, err := a.source.Posts(ctx, storage.Query{Limit: a.limit})
	if err != nil {
		return fmt.Errorf("load source posts: %w", err)
	}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		id := item.Info().ID
		judged, err := a.has(ctx, id)
		if err != nil {
			return err
		}
		if judged {
			a.log.Debug("skipping judged post", "id", id)
			continue
		}

		jd, err := a.judge.Judge(ctx, item)
		if err != nil {
			return fmt.Errorf("judge %s: %w", id, err)
		}
		if jd.Verdict == model.VerdictUnparseable {
			a.log.Error("unparseable verdict", "id", id, "reply", jd.Reason)
		}

		doc := model.JudgedDoc{
			RefDoc:    model.NewRef(a.ns, id, item).Doc(),
			Judgement: jd,
		}
		if err := a.put(ctx, id, doc); err != nil {
			return err
		}
		a.log.Info("judged post", "id", id, "verdict", jd.Verdict, "cost", jd.Cost)
	}

	now := a.env.now()
	return a.updateMeta(ctx, func(m *model.Meta) { m.LastRun = now })
}

// NextUpdate reports the feed due whenever its source changed after the
// last run.
func (a *Augment) NextUpdate(ctx context.Context, force bool) (time.Time, bool, error) {
	return a.sourceDue(ctx, a.source, force)
}

func (a *Augment) judged(ctx context.Context, id string) (model.Judged, error) {
	var doc model.JudgedDoc
	if err := a.load(ctx, id, &doc); err != nil {
		return model.Judged{}, err
	}
	j := model.Judged{
		Ref:       model.Ref{Record: doc.Record, Sub: model.Subpost{Key: doc.Subpost}},
		Judgement: doc.Judgement,
	}
	sub, err := a.source.Post(ctx, doc.Subpost.ID)
	if errors.Is(err, ErrNotFound) {
		return j, fmt.Errorf("%s/%s -> %s: %w", a.ns, id, doc.Subpost, ErrUnresolved)
	}
	if err != nil {
		return j, err
	}
	j.Sub.Item = sub
	return j, nil
}

// Post implements Feed. Excluded items are still returned.
func (a *Augment) Post(ctx context.Context, id string) (model.Item, error) {
	j, err := a.judged(ctx, id)
	if err != nil {
		return nil, err
	}
	return j, nil
}

// Posts returns included items, newest first.
func (a *Augment) Posts(ctx context.Context, q storage.Query) ([]model.Item, error) {
	ids, err := a.keys(ctx, storage.Query{Start: q.Start, End: q.End})
	if err != nil {
		return nil, err
	}
	var out []model.Item
	for _, item := range a.loadAll(ctx, ids, a.Post) {
		if item.(model.Judged).Judgement.Verdict != model.VerdictInclude {
			continue
		}
		out = append(out, item)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

// Cleanup deletes verdicts whose source item no longer exists.
func (a *Augment) Cleanup(ctx context.Context) (int, error) {
	ids, err := a.keys(ctx, storage.Query{})
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, id := range ids {
		_, err := a.judged(ctx, id)
		if !errors.Is(err, ErrUnresolved) {
			continue
		}
		a.log.Info("removing dangling verdict", "id", id)
		if err := a.remove(ctx, id); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
