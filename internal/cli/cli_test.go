package cli

import (
	"bytes"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

const testGraph = `
feeds:
  - id: devops
    kind: rss
    url: http://feeds.test/devops.xml
    interval: 1h
  - id: k8s
    kind: keyword_filter
    source: devops
    title: Kubernetes news
    rules:
      - kind: include
        scope: title
        value: kubernetes
outputs:
  - feed: k8s
    path: k8s.json
  - feed: devops
    path: devops.xml
`

type mockHTTP struct {
	mu    sync.Mutex
	body  []byte
	calls int
}

func (m *mockHTTP) Do(*http.Request) (*http.Response, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewReader(m.body)),
	}, nil
}

// setup points the process config at a temporary workspace.
func setup(t *testing.T, graph string) (dir string, client *mockHTTP) {
	t.Helper()
	dir = t.TempDir()
	path := filepath.Join(dir, "feeds.yaml")
	if err := os.WriteFile(path, []byte(graph), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RSSGLUE_CONFIG", path)
	t.Setenv("RSSGLUE_CACHE_BACKEND", "files")
	t.Setenv("RSSGLUE_CACHE_DIR", filepath.Join(dir, "cache"))
	t.Setenv("RSSGLUE_OUTPUT_DIR", filepath.Join(dir, "out"))
	t.Setenv("RSSGLUE_DELAY_MIN", "0s")
	t.Setenv("RSSGLUE_DELAY_MAX", "0s")
	t.Setenv("RSSGLUE_LOG_LEVEL", "error")
	t.Setenv("RSSGLUE_AI_API_KEY", "")

	body, err := os.ReadFile(filepath.Join("..", "..", "testdata", "sample.xml"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return dir, &mockHTTP{body: body}
}

func run(t *testing.T, client *mockHTTP, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := newRootCommand(&RootOptions{HTTP: client})
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestValidateCommand(t *testing.T) {
	_, client := setup(t, testGraph)

	out, err := run(t, client, "validate")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, "2 feeds, 2 outputs") {
		t.Errorf("validate output = %q", out)
	}
}

func TestValidateCommandRejectsBadGraph(t *testing.T) {
	_, client := setup(t, "feeds:\n  - id: a\n    kind: alias\n    source: missing\n")

	if _, err := run(t, client, "validate"); err == nil || !strings.Contains(err.Error(), `unknown source "missing"`) {
		t.Errorf("validate error = %v", err)
	}
}

func TestUpdateGeneratesOutputs(t *testing.T) {
	dir, client := setup(t, testGraph)

	out, err := run(t, client, "update")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	for _, want := range []string{"rss_devops", "keyword_filter_k8s", "updated"} {
		if !strings.Contains(out, want) {
			t.Errorf("update output %q missing %q", out, want)
		}
	}
	if client.calls != 1 {
		t.Errorf("fetched %d times, want 1", client.calls)
	}

	data, err := os.ReadFile(filepath.Join(dir, "out", "k8s.json"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.Contains(string(data), "Kubernetes 1.32 Released") {
		t.Errorf("output missing included item:\n%s", data)
	}
	if strings.Contains(string(data), "Docker Desktop Update") {
		t.Errorf("output contains excluded item:\n%s", data)
	}

	rss, err := os.ReadFile(filepath.Join(dir, "out", "devops.xml"))
	if err != nil {
		t.Fatalf("read rss output: %v", err)
	}
	if !strings.Contains(string(rss), `<rss version="2.0"`) || !strings.Contains(string(rss), "Docker Desktop Update") {
		t.Errorf("rss output:\n%s", rss)
	}

	opml, err := os.ReadFile(filepath.Join(dir, "out", "index.opml"))
	if err != nil {
		t.Fatalf("read opml: %v", err)
	}
	for _, want := range []string{"/k8s.json", "/devops.xml"} {
		if !strings.Contains(string(opml), want) {
			t.Errorf("opml missing %q:\n%s", want, opml)
		}
	}

	// Not due again within the interval.
	if _, err := run(t, client, "update"); err != nil {
		t.Fatalf("second update: %v", err)
	}
	if client.calls != 1 {
		t.Errorf("fetched %d times after second pass, want 1", client.calls)
	}

	if _, err := run(t, client, "update", "--force", "rss_devops"); err != nil {
		t.Fatalf("forced update: %v", err)
	}
	if client.calls != 2 {
		t.Errorf("fetched %d times after forced pass, want 2", client.calls)
	}
}

func TestUpdateUnknownNamespace(t *testing.T) {
	_, client := setup(t, testGraph)

	if _, err := run(t, client, "update", "rss_nope"); err == nil {
		t.Fatal("expected error for unknown namespace")
	}
	if client.calls != 0 {
		t.Errorf("fetched %d times, want 0", client.calls)
	}
}

func TestLockListPosts(t *testing.T) {
	_, client := setup(t, testGraph)

	if _, err := run(t, client, "update"); err != nil {
		t.Fatalf("update: %v", err)
	}

	out, err := run(t, client, "lock", "rss_devops")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if out != "locked rss_devops\n" {
		t.Errorf("lock output = %q", out)
	}

	out, err = run(t, client, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var devops string
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "rss_devops") {
			devops = line
		}
	}
	if !strings.HasPrefix(devops, "🔒") || !strings.Contains(devops, "locked") {
		t.Errorf("list line for locked feed = %q", devops)
	}

	if _, err := run(t, client, "unlock", "rss_devops"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	out, err = run(t, client, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if strings.Contains(out, "🔒") {
		t.Errorf("list still shows a lock:\n%s", out)
	}

	out, err = run(t, client, "posts", "rss_devops", "-n", "2")
	if err != nil {
		t.Fatalf("posts: %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(out), "\n"); len(lines) != 2 {
		t.Errorf("posts printed %d lines, want 2:\n%s", len(lines), out)
	}

	if _, err := run(t, client, "posts", "rss_nope"); err == nil {
		t.Error("expected error for unknown namespace")
	}
}

func TestBotCommandRequiresToken(t *testing.T) {
	_, client := setup(t, testGraph)
	t.Setenv("RSSGLUE_TELEGRAM_BOT_TOKEN", "")

	if _, err := run(t, client, "bot"); err == nil || !strings.Contains(err.Error(), "TELEGRAM_BOT_TOKEN") {
		t.Errorf("bot error = %v", err)
	}
}
