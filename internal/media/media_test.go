package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name     string
		fragment string
		want     []string
	}{
		{
			name:     "absolute and relative",
			fragment: `<p><img src="https://cdn.example.com/a.png"><img src="/b.jpg"></p>`,
			want:     []string{"https://cdn.example.com/a.png", "https://example.com/b.jpg"},
		},
		{
			name:     "video sources deduplicated",
			fragment: `<video src="clip.mp4"><source src="clip.mp4"><source src="clip.webm"></video>`,
			want:     []string{"https://example.com/posts/clip.mp4", "https://example.com/posts/clip.webm"},
		},
		{
			name:     "data uri and non media tags skipped",
			fragment: `<img src="data:image/png;base64,AAAA"><script src="x.js"></script><a href="y.png">y</a>`,
		},
		{
			name:     "non http scheme skipped",
			fragment: `<img src="ftp://example.com/a.png">`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.fragment, "https://example.com/posts/1")
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRewrite(t *testing.T) {
	mapping := map[string]string{
		"https://example.com/b.jpg": "https://glue.example.com/media/x/b.jpg",
	}
	tests := []struct {
		name     string
		fragment string
		want     string
	}{
		{
			name:     "mapped source replaced",
			fragment: `<p>hi <img alt="b" src="/b.jpg"> there</p>`,
			want:     `<p>hi <img alt="b" src="https://glue.example.com/media/x/b.jpg"> there</p>`,
		},
		{
			name:     "unmapped source kept verbatim",
			fragment: `<p><IMG SRC="/c.jpg"></p>`,
			want:     `<p><IMG SRC="/c.jpg"></p>`,
		},
		{
			name:     "text and entities untouched",
			fragment: `a &amp; b<br>`,
			want:     `a &amp; b<br>`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Rewrite(tt.fragment, "https://example.com/posts/1", mapping)
			if got != tt.want {
				t.Errorf("Rewrite() = %q, want %q", got, tt.want)
			}
		})
	}
}

type mockTransport struct {
	body        string
	contentType string
	statusCode  int
	err         error
	calls       []string
}

func (m *mockTransport) Do(req *http.Request) (*http.Response, error) {
	m.calls = append(m.calls, req.URL.String())
	if m.err != nil {
		return nil, m.err
	}
	h := make(http.Header)
	if m.contentType != "" {
		h.Set("Content-Type", m.contentType)
	}
	return &http.Response{
		StatusCode: m.statusCode,
		Header:     h,
		Body:       io.NopCloser(bytes.NewBufferString(m.body)),
	}, nil
}

func TestStoreSave(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		url       string
		transport *mockTransport
		wantExt   string
		wantErr   bool
	}{
		{
			name:      "extension from url",
			url:       "https://example.com/a.PNG?w=100",
			transport: &mockTransport{body: "png", statusCode: 200},
			wantExt:   ".png",
		},
		{
			name:      "extension from content type",
			url:       "https://example.com/image?id=7",
			transport: &mockTransport{body: "jpeg", contentType: "image/jpeg; charset=binary", statusCode: 200},
			wantExt:   ".jpg",
		},
		{
			name:      "bad status",
			url:       "https://example.com/a.png",
			transport: &mockTransport{statusCode: 404},
			wantErr:   true,
		},
		{
			name:      "transport error",
			url:       "https://example.com/a.png",
			transport: &mockTransport{err: errors.New("refused")},
			wantErr:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			s := NewStore(fs, tt.transport, "https://glue.example.com/")

			got, err := s.Save(ctx, "media_cache_x", tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Save() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !strings.HasPrefix(got, "https://glue.example.com/media/media_cache_x/") || !strings.HasSuffix(got, tt.wantExt) {
				t.Errorf("Save() = %q", got)
			}
			data, err := afero.ReadFile(fs, strings.TrimPrefix(got, "https://glue.example.com/"))
			if err != nil {
				t.Fatalf("read saved file: %v", err)
			}
			if string(data) != tt.transport.body {
				t.Errorf("saved %q, want %q", data, tt.transport.body)
			}
		})
	}
}

func TestStoreSaveOnce(t *testing.T) {
	ctx := context.Background()
	transport := &mockTransport{body: "png", statusCode: 200}
	s := NewStore(afero.NewMemMapFs(), transport, "https://glue.example.com")

	first, err := s.Save(ctx, "media_cache_x", "https://example.com/a.png")
	if err != nil {
		t.Fatalf("first save: %v", err)
	}
	second, err := s.Save(ctx, "media_cache_x", "https://example.com/a.png")
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if first != second {
		t.Errorf("urls differ: %q vs %q", first, second)
	}
	if len(transport.calls) != 1 {
		t.Errorf("downloads = %v, want 1", transport.calls)
	}
}
