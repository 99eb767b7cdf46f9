package feed

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"rss_glue/internal/model"
	"rss_glue/internal/storage"
)

const (
	// DefaultDigestLimit is how many items an issue keeps when unset.
	DefaultDigestLimit = 12
	// DefaultBackIssues is how many past periods a new digest backfills.
	DefaultBackIssues = 2

	issueKeyLayout   = "200601021504"
	issueTitleLayout = "Mon, Jan 02 03:04 PM"
)

// Period is a half-open window [Start, End) between two schedule firings.
type Period struct {
	Start time.Time
	End   time.Time
}

// MissingPeriods lists the complete periods that still need an issue,
// oldest first. With no previous issue it backfills backIssues periods
// ending at the latest firing at or before now; otherwise it resumes at
// lastEnd.
func MissingPeriods(c *Cron, lastEnd, now time.Time, backIssues int) []Period {
	start := lastEnd
	if start.IsZero() {
		// Firings at or before now are strictly before now+1ns.
		b, ok := c.Prev(now.Add(time.Nanosecond))
		if !ok {
			return nil
		}
		for i := 0; i < backIssues; i++ {
			if b, ok = c.Prev(b); !ok {
				return nil
			}
		}
		start = b
	}

	var periods []Period
	for {
		end := c.Next(start)
		if end.IsZero() || end.After(now) {
			return periods
		}
		periods = append(periods, Period{Start: start, End: end})
		start = end
	}
}

// Digest rolls a source feed up into one issue per schedule period.
type Digest struct {
	Base
	title      string
	source     Feed
	schedule   *Cron
	limit      int
	backIssues int
}

// DigestConfig configures NewDigest.
type DigestConfig struct {
	ID         string
	Title      string
	Schedule   *Cron
	Limit      int
	BackIssues int
}

// NewDigest creates a digest feed in namespace "digest_<id>".
func NewDigest(env *Env, source Feed, cfg DigestConfig) *Digest {
	d := &Digest{
		Base:       newBase("digest_"+cfg.ID, env),
		title:      cfg.Title,
		source:     source,
		schedule:   cfg.Schedule,
		limit:      cfg.Limit,
		backIssues: cfg.BackIssues,
	}
	if d.limit == 0 {
		d.limit = DefaultDigestLimit
	}
	if d.backIssues <= 0 {
		d.backIssues = DefaultBackIssues
	}
	return d
}

func (d *Digest) Title() string {
	if d.title != "" {
		return d.title
	}
	return "Digest of " + d.source.Title()
}

func (d *Digest) Sources() []Feed { return []Feed{d.source} }

func (d *Digest) lastIssueEnd(ctx context.Context) (time.Time, error) {
	ids, err := d.keys(ctx, storage.Query{Limit: 1})
	if err != nil || len(ids) == 0 {
		return time.Time{}, err
	}
	var doc model.IssueDoc
	if err := d.load(ctx, ids[0], &doc); err != nil {
		return time.Time{}, err
	}
	return doc.PeriodEnd, nil
}

func (d *Digest) missing(ctx context.Context) ([]Period, error) {
	last, err := d.lastIssueEnd(ctx)
	if err != nil {
		return nil, fmt.Errorf("find last issue: %w", err)
	}
	return MissingPeriods(d.schedule, last, d.env.now(), d.backIssues), nil
}

// NextUpdate reports the digest due at the end of the oldest missing
// period, or at the next schedule firing when caught up.
func (d *Digest) NextUpdate(ctx context.Context, force bool) (time.Time, bool, error) {
	now := d.env.now()
	if force {
		return now, true, nil
	}
	m, err := d.meta(ctx)
	if err != nil {
		return time.Time{}, false, err
	}
	if m.Locked {
		return time.Time{}, false, nil
	}
	periods, err := d.missing(ctx)
	if err != nil {
		return time.Time{}, false, err
	}
	if len(periods) > 0 {
		return periods[0].End, true, nil
	}
	return d.schedule.Next(now), false, nil
}

// Update builds an issue for every missing period. Only the most recent
// one refreshes the source first; older periods use what is cached.
func (d *Digest) Update(ctx context.Context) error {
	periods, err := d.missing(ctx)
	if err != nil {
		return err
	}
	for i, p := range periods {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i == len(periods)-1 {
			if err := d.source.Update(ctx); err != nil {
				d.log.Warn("source refresh failed, using cached posts", "source", d.source.Namespace(), "error", err)
			}
		}
		if err := d.buildIssue(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// IssueID is the deterministic id of the issue covering p.
func (d *Digest) IssueID(p Period) string {
	return p.Start.Format(issueKeyLayout) + "_" + p.End.Format(issueKeyLayout) + "_" + d.ns
}

func (d *Digest) buildIssue(ctx context.Context, p Period) error {
	items, err := d.source.Posts(ctx, storage.Query{Start: p.Start, End: p.End})
	if err != nil {
		return fmt.Errorf("load posts for %s: %w", p.End.Format(issueKeyLayout), err)
	}
	if len(items) > d.limit && d.limit > 0 {
		d.log.Debug("truncating issue", "posts", len(items), "limit", d.limit)
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Score() > items[j].Score() })
	if d.limit > 0 && len(items) > d.limit {
		items = items[:d.limit]
	}

	issue := model.Issue{
		Record: model.Record{
			Version:        1,
			Namespace:      d.ns,
			ID:             d.IssueID(p),
			Author:         "RSS Glue",
			OriginURL:      d.env.BaseURL,
			Title:          "Issue " + p.End.Format(issueTitleLayout),
			DiscoveredTime: p.End,
			PostedTime:     p.End,
		},
		PeriodStart: p.Start,
		PeriodEnd:   p.End,
	}
	for _, item := range items {
		issue.Subposts = append(issue.Subposts, model.Subpost{Key: item.Info().Key(), Item: item})
	}

	if err := d.put(ctx, issue.ID, issue.Doc()); err != nil {
		return err
	}
	d.log.Info("built issue", "id", issue.ID, "posts", len(issue.Subposts),
		"period_start", p.Start, "period_end", p.End)
	return nil
}

func (d *Digest) resolve(ctx context.Context, key model.Key) (model.Item, error) {
	f, ok := d.env.Registry.Get(key.Namespace)
	if !ok && key.Namespace == d.source.Namespace() {
		f, ok = d.source, true
	}
	if !ok {
		return nil, fmt.Errorf("no feed for %s: %w", key, ErrUnresolved)
	}
	return f.Post(ctx, key.ID)
}

// Post loads an issue and resolves its sub-items. Sub-items that no longer
// exist are left unresolved.
func (d *Digest) Post(ctx context.Context, id string) (model.Item, error) {
	var doc model.IssueDoc
	if err := d.load(ctx, id, &doc); err != nil {
		return nil, err
	}
	issue := model.Issue{Record: doc.Record, PeriodStart: doc.PeriodStart, PeriodEnd: doc.PeriodEnd}
	for _, key := range doc.Subposts {
		sub := model.Subpost{Key: key}
		item, err := d.resolve(ctx, key)
		switch {
		case err == nil:
			sub.Item = item
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrUnresolved):
			d.log.Warn("missing reference", "id", id, "subpost", key.String())
		default:
			return nil, err
		}
		issue.Subposts = append(issue.Subposts, sub)
	}
	return issue, nil
}

// Posts returns non-empty issues, newest first.
func (d *Digest) Posts(ctx context.Context, q storage.Query) ([]model.Item, error) {
	ids, err := d.keys(ctx, storage.Query{Start: q.Start, End: q.End})
	if err != nil {
		return nil, err
	}
	var out []model.Item
	for _, item := range d.loadAll(ctx, ids, d.Post) {
		if len(item.(model.Issue).Items()) == 0 {
			continue
		}
		out = append(out, item)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}
