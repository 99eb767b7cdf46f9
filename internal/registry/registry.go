// Package registry builds live feeds from a validated feed graph.
package registry

import (
	"fmt"

	"rss_glue/internal/ai"
	"rss_glue/internal/config"
	"rss_glue/internal/feed"
	"rss_glue/internal/filter"
)

// Options supplies the collaborators feeds are built with.
type Options struct {
	Env     *feed.Env
	Fetcher feed.Fetcher
	// API backs hackernews feeds.
	API feed.JSONFetcher
	// Completer backs ai_filter feeds. Building a graph that declares one
	// without a Completer fails.
	Completer ai.Completer
	// Media backs media_cache feeds.
	Media feed.MediaStore
}

// Output is a feed bound to a generated file.
type Output struct {
	Feed   feed.Feed
	Path   string
	Limit  int
	Format string
}

// Set is the result of Build.
type Set struct {
	// ByID maps graph ids to feeds.
	ByID map[string]feed.Feed
	// Roots are the feeds no other feed reads from, in file order.
	Roots   []feed.Feed
	Outputs []Output
	// Index is the OPML list path.
	Index string
}

type builder struct {
	graph *config.Graph
	opts  Options
	built map[string]feed.Feed
}

// Build instantiates every feed in g and registers it with opts.Env.Registry.
// g must already be validated.
func Build(g *config.Graph, opts Options) (*Set, error) {
	if opts.Env.Registry == nil {
		opts.Env.Registry = feed.NewRegistry()
	}
	b := &builder{graph: g, opts: opts, built: make(map[string]feed.Feed, len(g.Feeds))}

	used := make(map[string]bool)
	for _, spec := range g.Feeds {
		for _, dep := range spec.Deps() {
			used[dep] = true
		}
	}

	set := &Set{ByID: b.built, Index: g.Index}
	for _, spec := range g.Feeds {
		f, err := b.build(spec.ID)
		if err != nil {
			return nil, err
		}
		if !used[spec.ID] {
			set.Roots = append(set.Roots, f)
		}
	}
	for _, o := range g.Outputs {
		set.Outputs = append(set.Outputs, Output{
			Feed:   b.built[o.Feed],
			Path:   o.Path,
			Limit:  o.Limit,
			Format: o.OutputFormat(),
		})
	}
	return set, nil
}

func (b *builder) build(id string) (feed.Feed, error) {
	if f, ok := b.built[id]; ok {
		return f, nil
	}
	spec, ok := b.graph.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("unknown feed %q", id)
	}

	var sources []feed.Feed
	for _, dep := range spec.Deps() {
		src, err := b.build(dep)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}

	f, err := b.instantiate(spec, sources)
	if err != nil {
		return nil, fmt.Errorf("build feed %q: %w", id, err)
	}
	b.built[id] = f
	b.opts.Env.Registry.Add(f)
	return f, nil
}

func (b *builder) instantiate(spec config.FeedSpec, sources []feed.Feed) (feed.Feed, error) {
	env := b.opts.Env
	switch spec.Kind {
	case config.KindRSS:
		if b.opts.Fetcher == nil {
			return nil, fmt.Errorf("no fetcher configured")
		}
		policy, err := leafPolicy(spec)
		if err != nil {
			return nil, err
		}
		return feed.NewRSS(env, b.opts.Fetcher, feed.RSSConfig{
			ID:     spec.ID,
			URL:    spec.URL,
			Title:  spec.Title,
			Limit:  spec.Limit,
			Policy: policy,
		}), nil

	case config.KindHackerNews:
		if b.opts.API == nil {
			return nil, fmt.Errorf("no api client configured")
		}
		policy, err := leafPolicy(spec)
		if err != nil {
			return nil, err
		}
		return feed.NewHackerNews(env, b.opts.API, feed.HackerNewsConfig{
			ID:     spec.ID,
			List:   spec.List,
			Limit:  spec.Limit,
			Policy: policy,
			API:    spec.URL,
		}), nil

	case config.KindAlias:
		return feed.NewAlias(spec.ID, spec.Title, sources[0]), nil

	case config.KindMerge:
		return feed.NewMerge(env, feed.MergeConfig{
			ID:    spec.ID,
			Title: spec.Title,
			Limit: spec.Limit,
		}, sources...), nil

	case config.KindDigest:
		c, err := feed.ParseCron(spec.Schedule)
		if err != nil {
			return nil, err
		}
		return feed.NewDigest(env, sources[0], feed.DigestConfig{
			ID:         spec.ID,
			Title:      spec.Title,
			Schedule:   c,
			Limit:      spec.Limit,
			BackIssues: spec.BackIssues,
		}), nil

	case config.KindKeywordFilter:
		return feed.NewAugment(env, sources[0], filter.Rules(spec.Rules), feed.AugmentConfig{
			Kind:  spec.Kind,
			ID:    spec.ID,
			Title: spec.Title,
			Limit: spec.Limit,
		}), nil

	case config.KindAIFilter:
		if b.opts.Completer == nil {
			return nil, fmt.Errorf("ai client not configured (set RSSGLUE_AI_API_KEY)")
		}
		judge := ai.NewJudge(b.opts.Completer, spec.Prompt, spec.ContentLimit)
		return feed.NewAugment(env, sources[0], judge, feed.AugmentConfig{
			Kind:  spec.Kind,
			ID:    spec.ID,
			Title: spec.Title,
			Limit: spec.Limit,
		}), nil

	case config.KindMediaCache:
		if b.opts.Media == nil {
			return nil, fmt.Errorf("no media store configured")
		}
		return feed.NewMediaCache(env, sources[0], b.opts.Media, feed.MediaCacheConfig{
			ID:    spec.ID,
			Title: spec.Title,
			Limit: spec.Limit,
		}), nil
	}
	return nil, fmt.Errorf("unknown kind %q", spec.Kind)
}

// leafPolicy is the fetch policy of a leaf feed: its cron schedule when set,
// otherwise its interval.
func leafPolicy(spec config.FeedSpec) (feed.Policy, error) {
	if spec.Schedule == "" {
		return feed.Interval(spec.Interval), nil
	}
	c, err := feed.ParseCron(spec.Schedule)
	if err != nil {
		return nil, err
	}
	return c, nil
}
