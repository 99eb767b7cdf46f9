package scheduler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"rss_glue/internal/feed"
	"rss_glue/internal/fetcher"
	"rss_glue/internal/model"
	"rss_glue/internal/storage"
)

// stubFeed is a scriptable feed.Feed.
type stubFeed struct {
	ns      string
	sources []feed.Feed
	due     bool
	err     error
	panics  bool
	bump    bool
	updates int
	updated time.Time
	locked  bool
}

func (s *stubFeed) Namespace() string    { return s.ns }
func (s *stubFeed) Title() string        { return s.ns }
func (s *stubFeed) Sources() []feed.Feed { return s.sources }

func (s *stubFeed) Locked(context.Context) (bool, error) { return s.locked, nil }
func (s *stubFeed) Lock(context.Context) error           { s.locked = true; return nil }
func (s *stubFeed) Unlock(context.Context) error         { s.locked = false; return nil }

func (s *stubFeed) LastUpdated(context.Context) (time.Time, error) { return s.updated, nil }

func (s *stubFeed) NextUpdate(_ context.Context, force bool) (time.Time, bool, error) {
	if force {
		return time.Time{}, true, nil
	}
	if s.locked {
		return time.Time{}, false, nil
	}
	return time.Time{}, s.due, nil
}

func (s *stubFeed) Update(context.Context) error {
	s.updates++
	if s.panics {
		panic("boom")
	}
	if s.err != nil {
		return s.err
	}
	if s.bump {
		s.updated = s.updated.Add(time.Minute)
	}
	return nil
}

func (s *stubFeed) Post(context.Context, string) (model.Item, error) {
	return nil, feed.ErrNotFound
}

func (s *stubFeed) Posts(context.Context, storage.Query) ([]model.Item, error) {
	return nil, nil
}

type recorder struct {
	mu       sync.Mutex
	statuses map[string]Status
	locked   int
}

func (r *recorder) ObserveUpdate(ns string, status Status, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.statuses == nil {
		r.statuses = make(map[string]Status)
	}
	r.statuses[ns] = status
}

func (r *recorder) SetLocked(n int) { r.locked = n }

type stubArtifact struct {
	name  string
	err   error
	calls int
}

func (a *stubArtifact) Name() string { return a.name }

func (a *stubArtifact) Generate(context.Context) error {
	a.calls++
	return a.err
}

func newTestScheduler(roots []feed.Feed, artifacts ...Artifact) (*Scheduler, *[]time.Duration) {
	s := New(roots, artifacts, slog.New(slog.NewTextHandler(io.Discard, nil)))
	var slept []time.Duration
	s.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return s, &slept
}

func namespaces(feeds []feed.Feed) []string {
	out := make([]string, 0, len(feeds))
	for _, f := range feeds {
		out = append(out, f.Namespace())
	}
	return out
}

func TestCollect(t *testing.T) {
	a := &stubFeed{ns: "a"}
	// Two distinct objects with the same namespace are one feed.
	aAgain := &stubFeed{ns: "a"}
	b := &stubFeed{ns: "b", sources: []feed.Feed{a, aAgain}}
	c := &stubFeed{ns: "c"}
	d := &stubFeed{ns: "d", sources: []feed.Feed{b, c, a}}

	tests := []struct {
		name  string
		roots []feed.Feed
		want  []string
	}{
		{name: "shared leaf once", roots: []feed.Feed{b}, want: []string{"a", "b"}},
		{name: "nested", roots: []feed.Feed{d}, want: []string{"a", "b", "c", "d"}},
		{name: "repeated roots", roots: []feed.Feed{a, d, b}, want: []string{"a", "b", "c", "d"}},
		{name: "empty", roots: nil, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ordered, byNS := Collect(tt.roots)
			if diff := cmp.Diff(tt.want, namespaces(ordered)); diff != "" {
				t.Errorf("order mismatch (-want +got):\n%s", diff)
			}
			if len(byNS) != len(tt.want) {
				t.Errorf("map has %d feeds, want %d", len(byNS), len(tt.want))
			}
		})
	}
}

func TestUpdatePassIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	bad := &stubFeed{ns: "bad", due: true, err: errors.New("upstream down")}
	crash := &stubFeed{ns: "crash", due: true, panics: true}
	good := &stubFeed{ns: "good", due: true, bump: true}
	idle := &stubFeed{ns: "idle"}
	roots := []feed.Feed{bad, crash, good, idle}

	s, slept := newTestScheduler(roots)
	rec := &recorder{}
	s.SetRecorder(rec)
	ordered, _ := Collect(roots)

	got := s.UpdatePass(ctx, ordered, false, nil)
	want := []Outcome{
		{Namespace: "bad", Status: StatusFailed},
		{Namespace: "crash", Status: StatusFailed},
		{Namespace: "good", Status: StatusUpdated},
		{Namespace: "idle", Status: StatusSkipped},
	}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(Outcome{}, "Err", "Duration", "Next")); diff != "" {
		t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
	}
	if !bad.locked || !crash.locked {
		t.Error("failed feeds must be locked")
	}
	if good.locked {
		t.Error("healthy feed locked")
	}
	if len(*slept) != 1 {
		t.Errorf("slept %d times, want 1", len(*slept))
	}
	if rec.locked != 2 || rec.statuses["good"] != StatusUpdated {
		t.Errorf("recorder = %+v", rec)
	}
}

func TestLockBreaker(t *testing.T) {
	ctx := context.Background()
	f := &stubFeed{ns: "flaky", due: true, err: errors.New("boom")}
	s, _ := newTestScheduler([]feed.Feed{f})
	ordered, _ := Collect([]feed.Feed{f})

	s.UpdatePass(ctx, ordered, false, nil)
	if !f.locked {
		t.Fatal("feed not locked after failure")
	}

	out := s.UpdatePass(ctx, ordered, false, nil)
	if out[0].Status != StatusSkipped || f.updates != 1 {
		t.Errorf("unforced pass ran a locked feed: %+v updates=%d", out[0], f.updates)
	}

	f.err = nil
	out = s.UpdatePass(ctx, ordered, true, nil)
	if out[0].Status != StatusUnchanged || f.updates != 2 {
		t.Errorf("forced pass: %+v updates=%d", out[0], f.updates)
	}
	if !f.locked {
		t.Error("successful forced run must not clear the lock")
	}
}

func TestUpdatePassFilter(t *testing.T) {
	ctx := context.Background()
	a := &stubFeed{ns: "a", due: true}
	b := &stubFeed{ns: "b", due: true}
	s, _ := newTestScheduler([]feed.Feed{a, b})
	ordered, _ := Collect([]feed.Feed{a, b})

	out := s.UpdatePass(ctx, ordered, true, Namespaces("b"))
	if len(out) != 1 || out[0].Namespace != "b" {
		t.Errorf("outcomes = %+v", out)
	}
	if a.updates != 0 || b.updates != 1 {
		t.Errorf("updates a=%d b=%d", a.updates, b.updates)
	}
}

func TestDelayRange(t *testing.T) {
	s, _ := newTestScheduler(nil)
	s.SetDelay(2*time.Second, 4*time.Second)
	for range 100 {
		d := s.delay()
		if d < 2*time.Second || d >= 4*time.Second {
			t.Fatalf("delay %v outside [2s, 4s)", d)
		}
	}
	s.SetDelay(time.Second, time.Second)
	if d := s.delay(); d != time.Second {
		t.Errorf("fixed delay = %v", d)
	}
}

func TestGenerateIsolatesArtifacts(t *testing.T) {
	broken := &stubArtifact{name: "broken", err: errors.New("disk full")}
	ok := &stubArtifact{name: "ok"}
	s, _ := newTestScheduler(nil, broken, ok)

	s.Generate(context.Background())
	if broken.calls != 1 || ok.calls != 1 {
		t.Errorf("calls broken=%d ok=%d", broken.calls, ok.calls)
	}
}

func TestUpdateOne(t *testing.T) {
	ctx := context.Background()
	leaf := &stubFeed{ns: "leaf", bump: true}
	root := &stubFeed{ns: "root", sources: []feed.Feed{leaf}}
	s, _ := newTestScheduler([]feed.Feed{root})

	o, err := s.UpdateOne(ctx, "leaf", true)
	if err != nil {
		t.Fatalf("update one: %v", err)
	}
	if o.Status != StatusUpdated || root.updates != 0 {
		t.Errorf("outcome %+v root updates %d", o, root.updates)
	}
	if _, err := s.UpdateOne(ctx, "nope", true); err == nil {
		t.Error("expected error for unknown namespace")
	}
}

type mockHTTP struct {
	body  string
	calls int
}

func (m *mockHTTP) Do(_ *http.Request) (*http.Response, error) {
	m.calls++
	return &http.Response{
		StatusCode: 200,
		Body:       io.NopCloser(bytes.NewBufferString(m.body)),
	}, nil
}

func loadFixture(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile("../../testdata/sample.xml")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return string(data)
}

func newTestStore(t *testing.T) *storage.SQLite {
	t.Helper()
	s, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPassOverRealFeeds(t *testing.T) {
	ctx := context.Background()
	httpClient := &mockHTTP{body: loadFixture(t)}
	env := &feed.Env{
		Cache:    newTestStore(t),
		Now:      func() time.Time { return time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC) },
		Log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Registry: feed.NewRegistry(),
	}
	rss := feed.NewRSS(env, fetcher.New(httpClient), feed.RSSConfig{ID: "devops", URL: "https://devops.example.com/rss", Policy: feed.Interval(time.Hour)})
	alias := feed.NewAlias("ops", "Ops", rss)
	merge := feed.NewMerge(env, feed.MergeConfig{ID: "all"}, rss, alias)

	s, slept := newTestScheduler([]feed.Feed{merge, alias})
	out := s.Pass(ctx, true, nil)

	got := make(map[string]Status)
	for _, o := range out {
		got[o.Namespace] = o.Status
	}
	want := map[string]Status{
		"rss_devops": StatusUpdated,
		"alias_ops":  StatusSkipped,
		"merge_all":  StatusUnchanged,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
	}
	if httpClient.calls != 1 {
		t.Errorf("fetches = %d, want 1", httpClient.calls)
	}
	if len(*slept) != 1 {
		t.Errorf("slept %d times, want 1", len(*slept))
	}

	posts, err := merge.Posts(ctx, storage.Query{})
	if err != nil {
		t.Fatalf("posts: %v", err)
	}
	if len(posts) != 5 {
		t.Errorf("merged posts = %d, want 5 (alias copies deduplicated)", len(posts))
	}

	// Unforced pass within the interval fetches nothing.
	s.Pass(ctx, false, nil)
	if httpClient.calls != 1 {
		t.Errorf("fetches after unforced pass = %d, want 1", httpClient.calls)
	}
}

func TestAliasChainFetchedOnce(t *testing.T) {
	ctx := context.Background()
	httpClient := &mockHTTP{body: loadFixture(t)}
	env := &feed.Env{
		Cache:    newTestStore(t),
		Now:      func() time.Time { return time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC) },
		Log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Registry: feed.NewRegistry(),
	}
	rss := feed.NewRSS(env, fetcher.New(httpClient), feed.RSSConfig{ID: "devops", URL: "https://devops.example.com/rss", Policy: feed.Interval(time.Hour)})
	one := feed.NewAlias("one", "", rss)
	two := feed.NewAlias("two", "", one)

	s, _ := newTestScheduler([]feed.Feed{two})
	out := s.Pass(ctx, true, nil)

	want := []Outcome{
		{Namespace: "rss_devops", Status: StatusUpdated},
		{Namespace: "alias_one", Status: StatusSkipped},
		{Namespace: "alias_two", Status: StatusSkipped},
	}
	if diff := cmp.Diff(want, out, cmpopts.IgnoreFields(Outcome{}, "Err", "Duration", "Next")); diff != "" {
		t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
	}
	if httpClient.calls != 1 {
		t.Errorf("fetches = %d, want 1", httpClient.calls)
	}
}

// cleaningFeed is a stubFeed that also prunes its cache.
type cleaningFeed struct {
	stubFeed
	err     error
	removed int
}

func (c *cleaningFeed) Cleanup(context.Context) (int, error) { return c.removed, c.err }

func TestCleanupFailure(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus Status
		wantLocked bool
	}{
		{name: "pruned", wantStatus: StatusUpdated},
		{name: "cleanup error", err: errors.New("disk full"), wantStatus: StatusFailed, wantLocked: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &cleaningFeed{stubFeed: stubFeed{ns: "c", due: true, bump: true}, err: tt.err, removed: 2}
			s, _ := newTestScheduler([]feed.Feed{f})
			ordered, _ := Collect([]feed.Feed{f})

			out := s.UpdatePass(context.Background(), ordered, false, nil)
			if diff := cmp.Diff(tt.wantStatus, out[0].Status); diff != "" {
				t.Errorf("status mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantLocked, f.locked); diff != "" {
				t.Errorf("locked mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
