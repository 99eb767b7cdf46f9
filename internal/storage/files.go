package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"

	"rss_glue/internal/model"
)

const docExt = ".json"

// Files implements Cache as one directory per namespace and one JSON file
// per key. The file modification time is the document's sort key.
type Files struct {
	fs   afero.Fs
	root string
	now  func() time.Time
}

// NewFiles creates a Files cache rooted at root on the given filesystem.
func NewFiles(fsys afero.Fs, root string) *Files {
	return &Files{fs: fsys, root: root, now: time.Now}
}

// Close is a no-op; files are not held open between calls.
func (f *Files) Close() error {
	return nil
}

// Get returns a single document.
func (f *Files) Get(_ context.Context, namespace, key string) (model.Document, bool, error) {
	data, err := afero.ReadFile(f.fs, f.file(namespace, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read document %s/%s: %w", namespace, key, err)
	}

	var doc model.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, false, fmt.Errorf("decode document %s/%s: %w", namespace, key, err)
	}
	return doc, true, nil
}

// Set writes a document and stamps its file with the document's posted time.
func (f *Files) Set(_ context.Context, namespace, key string, doc model.Document) error {
	dir, err := f.ensureNamespace(namespace)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document %s/%s: %w", namespace, key, err)
	}

	name := path.Join(dir, encodeName(key)+docExt)
	tmp := name + ".tmp"
	if err := afero.WriteFile(f.fs, tmp, data, 0o640); err != nil {
		return fmt.Errorf("write document %s/%s: %w", namespace, key, err)
	}
	if err := f.fs.Rename(tmp, name); err != nil {
		return fmt.Errorf("rename document %s/%s: %w", namespace, key, err)
	}

	mtime := modTime(doc, f.now)
	if err := f.fs.Chtimes(name, mtime, mtime); err != nil {
		return fmt.Errorf("stamp document %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Delete removes a document. Deleting a missing key is not an error.
func (f *Files) Delete(_ context.Context, namespace, key string) error {
	err := f.fs.Remove(f.file(namespace, key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete document %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Keys lists document keys newest first.
func (f *Files) Keys(_ context.Context, namespace string, q Query) ([]string, error) {
	dir, err := f.ensureNamespace(namespace)
	if err != nil {
		return nil, err
	}
	infos, err := afero.ReadDir(f.fs, dir)
	if err != nil {
		return nil, fmt.Errorf("list namespace %s: %w", namespace, err)
	}

	type entry struct {
		key   string
		mtime time.Time
	}
	var entries []entry
	for _, info := range infos {
		if info.IsDir() || !strings.HasSuffix(info.Name(), docExt) {
			continue
		}
		key, err := url.PathUnescape(strings.TrimSuffix(info.Name(), docExt))
		if err != nil {
			continue
		}
		if key == model.MetaKey || !q.Contains(info.ModTime()) {
			continue
		}
		entries = append(entries, entry{key: key, mtime: info.ModTime()})
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].mtime.Equal(entries[j].mtime) {
			return entries[i].mtime.After(entries[j].mtime)
		}
		return entries[i].key < entries[j].key
	})
	if q.Limit > 0 && len(entries) > q.Limit {
		entries = entries[:q.Limit]
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.key)
	}
	return keys, nil
}

func (f *Files) file(namespace, key string) string {
	return path.Join(f.root, encodeName(namespace), encodeName(key)+docExt)
}

func (f *Files) ensureNamespace(namespace string) (string, error) {
	dir := path.Join(f.root, encodeName(namespace))
	if err := f.fs.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create namespace %s: %w", namespace, err)
	}
	return dir, nil
}

// encodeName turns a namespace or key into a single path element that
// url.PathUnescape maps back to the original. A leading dot is escaped so
// that "." and ".." stay inside the namespace.
func encodeName(s string) string {
	e := url.PathEscape(s)
	if strings.HasPrefix(e, ".") {
		e = "%2E" + e[1:]
	}
	return e
}
