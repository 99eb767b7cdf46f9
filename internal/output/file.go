package output

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/spf13/afero"

	"rss_glue/internal/feed"
)

// Published is an output file rendered from a single feed.
type Published interface {
	Name() string
	Source() feed.Feed
}

// cleanPath keeps an output name relative to the output root.
func cleanPath(name string) string {
	return path.Clean("/" + name)[1:]
}

func trimBase(baseURL string) string {
	return strings.TrimRight(baseURL, "/")
}

// stale reports whether the file at name is missing or older than last.
func stale(fs afero.Fs, name string, last time.Time) (bool, error) {
	info, err := fs.Stat(name)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat output: %w", err)
	}
	return last.After(info.ModTime()), nil
}

// unchanged reports whether the file at name already holds data.
func unchanged(fs afero.Fs, name string, data []byte) bool {
	old, err := afero.ReadFile(fs, name)
	return err == nil && bytes.Equal(old, data)
}

// writeFile replaces name through a temporary file and stamps it with mtime.
func writeFile(fs afero.Fs, name string, data []byte, mtime time.Time) error {
	if dir := path.Dir(name); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	tmp := name + ".tmp"
	if err := afero.WriteFile(fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if err := fs.Rename(tmp, name); err != nil {
		return fmt.Errorf("rename output: %w", err)
	}
	if !mtime.IsZero() {
		if err := fs.Chtimes(name, mtime, mtime); err != nil {
			return fmt.Errorf("set output mtime: %w", err)
		}
	}
	return nil
}

// generate runs render and writes its result when the source feed changed
// after the file was last written.
func generate(ctx context.Context, fs afero.Fs, name string, src feed.Feed, render func(context.Context) ([]byte, int, error)) (int, bool, error) {
	last, err := src.LastUpdated(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("read last updated: %w", err)
	}
	ok, err := stale(fs, name, last)
	if err != nil || !ok {
		return 0, false, err
	}

	data, n, err := render(ctx)
	if err != nil {
		return 0, false, err
	}
	if err := writeFile(fs, name, data, last); err != nil {
		return 0, false, err
	}
	return n, true, nil
}
