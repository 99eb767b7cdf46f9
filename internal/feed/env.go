package feed

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"rss_glue/internal/storage"
)

// Env carries the process-wide collaborators every feed needs. It is built
// once at startup and treated as read-only afterwards.
type Env struct {
	Cache    storage.Cache
	Now      func() time.Time
	Log      *slog.Logger
	Registry *Registry
	BaseURL  string
}

func (e *Env) now() time.Time {
	if e.Now == nil {
		return time.Now().UTC()
	}
	return e.Now().UTC()
}

func (e *Env) logger() *slog.Logger {
	if e.Log == nil {
		return slog.Default()
	}
	return e.Log
}

// Registry maps namespaces to feeds. Stored references are resolved
// through it.
type Registry struct {
	mu    sync.RWMutex
	feeds map[string]Feed
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{feeds: make(map[string]Feed)}
}

// Add registers f under its namespace, replacing any previous entry.
func (r *Registry) Add(f Feed) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.feeds[f.Namespace()] = f
}

// Get returns the feed registered under namespace.
func (r *Registry) Get(namespace string) (Feed, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.feeds[namespace]
	return f, ok
}

// All returns every registered feed ordered by namespace.
func (r *Registry) All() []Feed {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Feed, 0, len(r.feeds))
	for _, f := range r.feeds {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Namespace() < out[j].Namespace() })
	return out
}
