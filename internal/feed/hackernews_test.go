package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"rss_glue/internal/model"
	"rss_glue/internal/storage"
)

// fakeAPI serves canned JSON documents by URL.
type fakeAPI struct {
	docs  map[string]string
	calls []string
}

func (f *fakeAPI) FetchJSON(_ context.Context, url string, v any) error {
	f.calls = append(f.calls, url)
	body, ok := f.docs[url]
	if !ok {
		return fmt.Errorf("unexpected status 404")
	}
	return json.Unmarshal([]byte(body), v)
}

// hackerNewsAPI lists six items posted on 2024-03-04, two of which are
// not live stories.
func hackerNewsAPI() *fakeAPI {
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	at := func(h int) int64 { return day.Add(time.Duration(h) * time.Hour).Unix() }
	api := &fakeAPI{docs: map[string]string{
		"https://hn.test/v0/topstories.json": "[1, 2, 3, 4, 5, 6]",
	}}
	item := func(id int, body string) {
		api.docs[fmt.Sprintf("https://hn.test/v0/item/%d.json", id)] = body
	}
	item(1, fmt.Sprintf(`{"id":1,"type":"story","by":"ann","time":%d,"title":"Small","url":"https://a.example/1","score":10}`, at(2)))
	item(2, fmt.Sprintf(`{"id":2,"type":"story","by":"bob","time":%d,"title":"Huge","url":"https://a.example/2","score":300,"descendants":120}`, at(5)))
	item(3, fmt.Sprintf(`{"id":3,"type":"story","by":"cy","time":%d,"title":"Big","url":"https://a.example/3","score":50}`, at(20)))
	item(4, fmt.Sprintf(`{"id":4,"type":"story","time":%d,"dead":true}`, at(21)))
	item(5, fmt.Sprintf(`{"id":5,"type":"comment","by":"dee","time":%d}`, at(21)))
	item(6, fmt.Sprintf(`{"id":6,"type":"story","by":"eve","time":%d,"title":"Ask HN: Newest","score":5}`, at(22)))
	return api
}

func TestHackerNewsUpdate(t *testing.T) {
	ctx := context.Background()
	env, _ := newTestEnv(t, time.Date(2024, 3, 5, 3, 0, 0, 0, time.UTC))
	api := hackerNewsAPI()
	hn := NewHackerNews(env, api, HackerNewsConfig{ID: "top", API: "https://hn.test/v0/", Policy: Interval(time.Hour)})

	if diff := cmp.Diff("hackernews_top", hn.Namespace()); diff != "" {
		t.Errorf("namespace mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("Hacker News - Top", hn.Title()); diff != "" {
		t.Errorf("title mismatch (-want +got):\n%s", diff)
	}

	if err := hn.Update(ctx); err != nil {
		t.Fatalf("update: %v", err)
	}
	posts, err := hn.Posts(ctx, storage.Query{})
	if err != nil {
		t.Fatalf("posts: %v", err)
	}
	if diff := cmp.Diff([]string{"6", "3", "2", "1"}, ids(posts)); diff != "" {
		t.Errorf("stored stories mismatch (-want +got):\n%s", diff)
	}

	ask := posts[0].(model.Story)
	if diff := cmp.Diff("https://news.ycombinator.com/item?id=6", ask.OriginURL); diff != "" {
		t.Errorf("text post link mismatch (-want +got):\n%s", diff)
	}

	// Known stories are not fetched again.
	api.calls = nil
	if err := hn.Update(ctx); err != nil {
		t.Fatalf("second update: %v", err)
	}
	want := []string{
		"https://hn.test/v0/topstories.json",
		"https://hn.test/v0/item/4.json",
		"https://hn.test/v0/item/5.json",
	}
	if diff := cmp.Diff(want, api.calls); diff != "" {
		t.Errorf("second update calls mismatch (-want +got):\n%s", diff)
	}
}

func TestDigestRanksStoriesByPoints(t *testing.T) {
	ctx := context.Background()
	env, _ := newTestEnv(t, time.Date(2024, 3, 5, 3, 0, 0, 0, time.UTC))
	hn := NewHackerNews(env, hackerNewsAPI(), HackerNewsConfig{ID: "top", API: "https://hn.test/v0"})
	env.Registry.Add(hn)
	d := NewDigest(env, hn, DigestConfig{ID: "hn", Schedule: mustCron(t, "0 0 * * *"), Limit: 2, BackIssues: 1})

	if err := hn.Update(ctx); err != nil {
		t.Fatalf("update source: %v", err)
	}
	if err := d.Update(ctx); err != nil {
		t.Fatalf("update digest: %v", err)
	}

	posts, err := d.Posts(ctx, storage.Query{})
	if err != nil {
		t.Fatalf("posts: %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("issues = %d, want 1", len(posts))
	}
	// The two newest stories are 6 and 3; points pick 2 and 3.
	if diff := cmp.Diff([]string{"2", "3"}, ids(posts[0].(model.Issue).Items())); diff != "" {
		t.Errorf("issue items mismatch (-want +got):\n%s", diff)
	}
}
