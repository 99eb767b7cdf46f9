package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"rss_glue/internal/feed"
	"rss_glue/internal/filter"
)

var (
	// ErrDuplicate is returned when two feeds share an id.
	ErrDuplicate = errors.New("duplicate feed id")
	// ErrCycle is returned when feeds depend on each other.
	ErrCycle = errors.New("dependency cycle")
)

// Feed kinds.
const (
	KindRSS           = "rss"
	KindAlias         = "alias"
	KindMerge         = "merge"
	KindDigest        = "digest"
	KindKeywordFilter = "keyword_filter"
	KindAIFilter      = "ai_filter"
	KindHackerNews    = "hackernews"
	KindMediaCache    = "media_cache"
)

var kinds = []string{KindRSS, KindHackerNews, KindAlias, KindMerge, KindDigest, KindKeywordFilter, KindAIFilter, KindMediaCache}

// Output formats.
const (
	FormatJSON = "json"
	FormatRSS  = "rss"
)

// Graph is the feed graph file.
type Graph struct {
	Feeds   []FeedSpec   `yaml:"feeds"`
	Outputs []OutputSpec `yaml:"outputs"`
	// Index is the path of the OPML list of all outputs.
	Index string `yaml:"index"`
}

// FeedSpec declares one feed. Which fields apply depends on Kind.
type FeedSpec struct {
	ID           string        `yaml:"id"`
	Kind         string        `yaml:"kind"`
	Title        string        `yaml:"title"`
	URL          string        `yaml:"url"`
	Schedule     string        `yaml:"schedule"`
	Interval     time.Duration `yaml:"interval"`
	Limit        int           `yaml:"limit"`
	Source       string        `yaml:"source"`
	Sources      []string      `yaml:"sources"`
	Prompt       string        `yaml:"prompt"`
	ContentLimit int           `yaml:"content_limit"`
	Rules        []filter.Rule `yaml:"rules"`
	BackIssues   int           `yaml:"back_issues"`
	// List is the Hacker News story list: top, new or best.
	List string `yaml:"list"`
}

// OutputSpec binds a feed to a generated file.
type OutputSpec struct {
	Feed   string `yaml:"feed"`
	Path   string `yaml:"path"`
	Limit  int    `yaml:"limit"`
	Format string `yaml:"format"`
}

// OutputFormat returns the declared format, or one inferred from the
// path's extension.
func (o OutputSpec) OutputFormat() string {
	if o.Format != "" {
		return o.Format
	}
	switch strings.ToLower(path.Ext(o.Path)) {
	case ".xml", ".rss":
		return FormatRSS
	}
	return FormatJSON
}

// Deps returns the ids this feed reads from.
func (f FeedSpec) Deps() []string {
	switch f.Kind {
	case KindMerge:
		return f.Sources
	case KindRSS, KindHackerNews:
		return nil
	default:
		if f.Source == "" {
			return nil
		}
		return []string{f.Source}
	}
}

// LoadGraph reads and validates the feed graph file at path.
func LoadGraph(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read graph: %w", err)
	}
	return ParseGraph(data)
}

// ParseGraph decodes and validates a feed graph. Unknown fields are rejected.
func ParseGraph(data []byte) (*Graph, error) {
	var g Graph
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&g); err != nil {
		return nil, fmt.Errorf("parse graph: %w", err)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

// Lookup returns the feed with the given id.
func (g *Graph) Lookup(id string) (FeedSpec, bool) {
	for _, f := range g.Feeds {
		if f.ID == id {
			return f, true
		}
	}
	return FeedSpec{}, false
}

// Validate checks the whole graph and reports every problem found.
func (g *Graph) Validate() error {
	var errs []error
	seen := make(map[string]bool, len(g.Feeds))

	for i, f := range g.Feeds {
		if f.ID == "" {
			errs = append(errs, fmt.Errorf("feed #%d: missing id", i+1))
			continue
		}
		if strings.ContainsAny(f.ID, "/\\ ") {
			errs = append(errs, fmt.Errorf("feed %q: id must not contain slashes or spaces", f.ID))
		}
		if seen[f.ID] {
			errs = append(errs, fmt.Errorf("feed %q: %w", f.ID, ErrDuplicate))
			continue
		}
		seen[f.ID] = true
	}

	for _, f := range g.Feeds {
		if f.ID == "" {
			continue
		}
		if err := f.validate(); err != nil {
			errs = append(errs, fmt.Errorf("feed %q: %w", f.ID, err))
		}
		for _, dep := range f.Deps() {
			if !seen[dep] {
				errs = append(errs, fmt.Errorf("feed %q: unknown source %q", f.ID, dep))
			}
		}
	}

	for _, cycle := range g.cycles() {
		errs = append(errs, fmt.Errorf("%w between %s", ErrCycle, strings.Join(cycle, ", ")))
	}

	for i, o := range g.Outputs {
		if o.Path == "" {
			errs = append(errs, fmt.Errorf("output #%d: missing path", i+1))
		}
		if !seen[o.Feed] {
			errs = append(errs, fmt.Errorf("output #%d: unknown feed %q", i+1, o.Feed))
		}
		if o.Limit < 0 {
			errs = append(errs, fmt.Errorf("output #%d: negative limit", i+1))
		}
		if f := o.OutputFormat(); f != FormatJSON && f != FormatRSS {
			errs = append(errs, fmt.Errorf("output #%d: unknown format %q (valid: json, rss)", i+1, f))
		}
	}

	return errors.Join(errs...)
}

func (f FeedSpec) validate() error {
	var errs []error
	if !slices.Contains(kinds, f.Kind) {
		return fmt.Errorf("unknown kind %q (valid: %s)", f.Kind, strings.Join(kinds, ", "))
	}
	if f.Limit < 0 {
		errs = append(errs, errors.New("negative limit"))
	}
	if f.Interval < 0 {
		errs = append(errs, fmt.Errorf("invalid interval %s", f.Interval))
	}
	if f.Schedule != "" {
		if _, err := feed.ParseCron(f.Schedule); err != nil {
			errs = append(errs, err)
		}
	}

	switch f.Kind {
	case KindRSS:
		if f.URL == "" {
			errs = append(errs, errors.New("missing url"))
		}
		if f.Schedule != "" && f.Interval != 0 {
			errs = append(errs, errors.New("schedule and interval are mutually exclusive"))
		}
	case KindHackerNews:
		if f.List != "" && !slices.Contains(feed.HackerNewsLists, f.List) {
			errs = append(errs, fmt.Errorf("unknown list %q (valid: %s)", f.List, strings.Join(feed.HackerNewsLists, ", ")))
		}
		if f.Schedule != "" && f.Interval != 0 {
			errs = append(errs, errors.New("schedule and interval are mutually exclusive"))
		}
	case KindMerge:
		if len(f.Sources) == 0 {
			errs = append(errs, errors.New("missing sources"))
		}
	case KindDigest:
		if f.Source == "" {
			errs = append(errs, errors.New("missing source"))
		}
		if f.Schedule == "" {
			errs = append(errs, errors.New("missing schedule"))
		}
		if f.BackIssues < 0 {
			errs = append(errs, errors.New("negative back_issues"))
		}
	case KindKeywordFilter:
		if f.Source == "" {
			errs = append(errs, errors.New("missing source"))
		}
		if len(f.Rules) == 0 {
			errs = append(errs, errors.New("missing rules"))
		}
		if err := filter.Validate(f.Rules); err != nil {
			errs = append(errs, err)
		}
	case KindAIFilter:
		if f.Source == "" {
			errs = append(errs, errors.New("missing source"))
		}
		if strings.TrimSpace(f.Prompt) == "" {
			errs = append(errs, errors.New("missing prompt"))
		}
		if f.ContentLimit < 0 {
			errs = append(errs, errors.New("negative content_limit"))
		}
	case KindAlias:
		if f.Source == "" {
			errs = append(errs, errors.New("missing source"))
		}
	case KindMediaCache:
		if f.Source == "" {
			errs = append(errs, errors.New("missing source"))
		}
	}
	return errors.Join(errs...)
}

// cycles returns the sorted members of every dependency cycle.
func (g *Graph) cycles() [][]string {
	graph := make(map[string][]string, len(g.Feeds))
	var order []string
	for _, f := range g.Feeds {
		if f.ID == "" {
			continue
		}
		if _, ok := graph[f.ID]; !ok {
			order = append(order, f.ID)
		}
		graph[f.ID] = f.Deps()
	}

	var cycles [][]string
	for _, scc := range tarjanSCC(graph, order) {
		if len(scc) == 1 && !slices.Contains(graph[scc[0]], scc[0]) {
			continue
		}
		slices.Sort(scc)
		cycles = append(cycles, scc)
	}
	return cycles
}

// tarjanSCC finds strongly connected components, visiting roots in order.
func tarjanSCC(graph map[string][]string, order []string) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, known := graph[w]; !known {
				continue
			}
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}
