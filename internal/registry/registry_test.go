package registry

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mmcdole/gofeed"
	"github.com/spf13/afero"

	"rss_glue/internal/ai"
	"rss_glue/internal/config"
	"rss_glue/internal/feed"
	"rss_glue/internal/storage"
)

type nopFetcher struct{}

func (nopFetcher) Fetch(context.Context, string) (*gofeed.Feed, error) {
	return &gofeed.Feed{}, nil
}

type yesCompleter struct{}

func (yesCompleter) Complete(context.Context, string) (ai.Response, error) {
	return ai.Response{Text: "yes", Tokens: 1}, nil
}

func newEnv() *feed.Env {
	return &feed.Env{
		Cache: storage.NewFiles(afero.NewMemMapFs(), "/cache"),
		Log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

const graphYAML = `
feeds:
  - id: hn
    kind: rss
    url: https://news.ycombinator.com/rss
    interval: 30m
  - id: lobsters
    kind: rss
    url: https://lobste.rs/rss
    schedule: "@hourly"
  - id: tech
    kind: merge
    sources: [hn, lobsters]
  - id: go
    kind: keyword_filter
    source: tech
    rules:
      - kind: include
        value: golang
  - id: smart
    kind: ai_filter
    source: tech
    prompt: Is this about databases?
  - id: daily
    kind: digest
    source: go
    schedule: "@daily"
  - id: hn2
    kind: alias
    source: hn
outputs:
  - feed: daily
    path: daily.json
    limit: 5
`

func namespaces(feeds []feed.Feed) []string {
	var out []string
	for _, f := range feeds {
		out = append(out, f.Namespace())
	}
	return out
}

func TestBuild(t *testing.T) {
	g, err := config.ParseGraph([]byte(graphYAML))
	if err != nil {
		t.Fatalf("ParseGraph() error: %v", err)
	}
	env := newEnv()

	set, err := Build(g, Options{Env: env, Fetcher: nopFetcher{}, Completer: yesCompleter{}})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	wantAll := []string{
		"ai_filter_smart",
		"alias_hn2",
		"digest_daily",
		"keyword_filter_go",
		"merge_tech",
		"rss_hn",
		"rss_lobsters",
	}
	if diff := cmp.Diff(wantAll, namespaces(env.Registry.All())); diff != "" {
		t.Errorf("registry mismatch (-want +got):\n%s", diff)
	}

	wantRoots := []string{"ai_filter_smart", "digest_daily", "alias_hn2"}
	if diff := cmp.Diff(wantRoots, namespaces(set.Roots)); diff != "" {
		t.Errorf("roots mismatch (-want +got):\n%s", diff)
	}

	if len(set.Outputs) != 1 {
		t.Fatalf("got %d outputs, want 1", len(set.Outputs))
	}
	if got := set.Outputs[0]; got.Feed.Namespace() != "digest_daily" || got.Path != "daily.json" || got.Limit != 5 {
		t.Errorf("output = %s %s %d", got.Feed.Namespace(), got.Path, got.Limit)
	}

	// Shared sources are built once.
	if set.ByID["tech"] != set.ByID["go"].Sources()[0] {
		t.Error("keyword filter does not read from the shared merge feed")
	}
	if set.ByID["tech"] != set.ByID["smart"].Sources()[0] {
		t.Error("ai filter does not read from the shared merge feed")
	}
}

func TestBuildWithoutCompleter(t *testing.T) {
	g, err := config.ParseGraph([]byte(graphYAML))
	if err != nil {
		t.Fatal(err)
	}
	_, err = Build(g, Options{Env: newEnv(), Fetcher: nopFetcher{}})
	if err == nil || !strings.Contains(err.Error(), `"smart"`) {
		t.Errorf("Build() error = %v, want ai filter failure", err)
	}
}

type nopAPI struct{}

func (nopAPI) FetchJSON(context.Context, string, any) error { return nil }

func TestBuildHackerNews(t *testing.T) {
	const graph = `
feeds:
  - id: best
    kind: hackernews
    list: best
    interval: 1h
  - id: weekly
    kind: digest
    source: best
    schedule: "0 0 * * 1"
outputs:
  - feed: weekly
    path: weekly.xml
index: feeds.opml
`
	g, err := config.ParseGraph([]byte(graph))
	if err != nil {
		t.Fatalf("ParseGraph() error: %v", err)
	}

	if _, err := Build(g, Options{Env: newEnv()}); err == nil || !strings.Contains(err.Error(), `"best"`) {
		t.Errorf("Build() without api client error = %v", err)
	}

	set, err := Build(g, Options{Env: newEnv(), API: nopAPI{}})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if diff := cmp.Diff("Hacker News - Best", set.ByID["best"].Title()); diff != "" {
		t.Errorf("title mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"digest_weekly"}, namespaces(set.Roots)); diff != "" {
		t.Errorf("roots mismatch (-want +got):\n%s", diff)
	}
	if got := set.Outputs[0]; got.Format != config.FormatRSS {
		t.Errorf("output format = %q, want rss", got.Format)
	}
	if diff := cmp.Diff("feeds.opml", set.Index); diff != "" {
		t.Errorf("index mismatch (-want +got):\n%s", diff)
	}
}

type nopStore struct{}

func (nopStore) Save(_ context.Context, _, url string) (string, error) { return url, nil }

func TestBuildMediaCache(t *testing.T) {
	const graph = `
feeds:
  - id: comics
    kind: rss
    url: https://example.com/comics.xml
    interval: 1h
  - id: pics
    kind: media_cache
    source: comics
    limit: 5
`
	g, err := config.ParseGraph([]byte(graph))
	if err != nil {
		t.Fatalf("ParseGraph() error: %v", err)
	}

	if _, err := Build(g, Options{Env: newEnv(), Fetcher: nopFetcher{}}); err == nil || !strings.Contains(err.Error(), "no media store") {
		t.Errorf("Build() without media store error = %v", err)
	}

	set, err := Build(g, Options{Env: newEnv(), Fetcher: nopFetcher{}, Media: nopStore{}})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if diff := cmp.Diff([]string{"media_cache_pics"}, namespaces(set.Roots)); diff != "" {
		t.Errorf("roots mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(set.ByID["comics"].Title(), set.ByID["pics"].Title()); diff != "" {
		t.Errorf("title mismatch (-want +got):\n%s", diff)
	}
}
