package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/spf13/afero"
)

const maxMediaSize = 20 * 1024 * 1024

// Dir is the directory under the output root that holds cached media.
const Dir = "media"

var knownExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
	".svg": true, ".avif": true, ".mp4": true, ".webm": true, ".mp3": true,
	".ogg": true, ".m4a": true,
}

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Store downloads media into an output filesystem.
type Store struct {
	fs        afero.Fs
	client    HTTPClient
	baseURL   string
	timeout   time.Duration
	userAgent string
}

// NewStore creates a Store writing below Dir in fs. Saved files are
// addressed relative to baseURL.
func NewStore(fs afero.Fs, client HTTPClient, baseURL string) *Store {
	return &Store{
		fs:        fs,
		client:    client,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		timeout:   60 * time.Second,
		userAgent: "rss-glue/1.0",
	}
}

// Save downloads src for namespace and returns the public URL of the copy.
// Files with a known extension are downloaded once.
func (s *Store) Save(ctx context.Context, namespace, src string) (string, error) {
	sum := sha256.Sum256([]byte(src))
	hash := hex.EncodeToString(sum[:])
	dir := path.Join(Dir, url.PathEscape(namespace), hash[:2])

	ext := urlExt(src)
	if ext != "" {
		name := path.Join(dir, hash+ext)
		if ok, _ := afero.Exists(s.fs, name); ok {
			return s.publicURL(name), nil
		}
	}

	data, contentType, err := s.download(ctx, src)
	if err != nil {
		return "", err
	}
	if ext == "" {
		ext = typeExt(contentType)
	}

	name := path.Join(dir, hash+ext)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}
	if err := afero.WriteFile(s.fs, name, data, 0o644); err != nil {
		return "", fmt.Errorf("write media: %w", err)
	}
	return s.publicURL(name), nil
}

func (s *Store) download(ctx context.Context, src string) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download media: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("read media: %w", err)
	}
	if len(data) > maxMediaSize {
		return nil, "", fmt.Errorf("read media: larger than %d bytes", maxMediaSize)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func (s *Store) publicURL(name string) string {
	return s.baseURL + "/" + name
}

func urlExt(src string) string {
	u, err := url.Parse(src)
	if err != nil {
		return ""
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if knownExts[ext] {
		return ext
	}
	return ""
}

func typeExt(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	switch mt {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/svg+xml":
		return ".svg"
	}
	exts, err := mime.ExtensionsByType(mt)
	if err != nil || len(exts) == 0 {
		return ""
	}
	return exts[0]
}
