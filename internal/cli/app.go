package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"rss_glue/internal/ai"
	"rss_glue/internal/config"
	"rss_glue/internal/feed"
	"rss_glue/internal/fetcher"
	"rss_glue/internal/media"
	"rss_glue/internal/metrics"
	"rss_glue/internal/output"
	"rss_glue/internal/registry"
	"rss_glue/internal/scheduler"
	"rss_glue/internal/storage"
)

// app is the wired process: cache, feed graph, outputs and scheduler.
type app struct {
	cfg   *config.Config
	log   *slog.Logger
	env   *feed.Env
	feeds *registry.Set
	sched *scheduler.Scheduler
	out   afero.Fs
}

func openApp(ctx context.Context, opts *RootOptions) (*app, error) {
	cfg := opts.cfg
	log := newLogger(cfg.LogLevel)

	graph, err := config.LoadGraph(cfg.GraphPath)
	if err != nil {
		return nil, err
	}

	cache, err := openCache(cfg)
	if err != nil {
		return nil, err
	}

	env := &feed.Env{
		Cache:    cache,
		Log:      log,
		Registry: feed.NewRegistry(),
		BaseURL:  cfg.BaseURL,
	}

	var completer ai.Completer
	if cfg.AI.APIKey != "" {
		completer, err = ai.New(ctx, ai.Options{
			Provider:    cfg.AI.Provider,
			BaseURL:     cfg.AI.BaseURL,
			APIKey:      cfg.AI.APIKey,
			Model:       cfg.AI.Model,
			MinInterval: cfg.AI.MinInterval,
		})
		if err != nil {
			_ = cache.Close()
			return nil, err
		}
	}

	client := opts.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o750); err != nil {
		_ = cache.Close()
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	out := afero.NewBasePathFs(afero.NewOsFs(), cfg.OutputDir)

	fetch := fetcher.New(client)
	set, err := registry.Build(graph, registry.Options{
		Env:       env,
		Fetcher:   fetch,
		API:       fetch,
		Completer: completer,
		Media:     media.NewStore(out, client, cfg.BaseURL),
	})
	if err != nil {
		_ = cache.Close()
		return nil, err
	}

	var (
		artifacts []scheduler.Artifact
		published []output.Published
	)
	for _, o := range set.Outputs {
		var a interface {
			scheduler.Artifact
			output.Published
		}
		switch o.Format {
		case config.FormatRSS:
			a = output.NewRSSFeed(out, o.Feed, o.Path, o.Limit, cfg.BaseURL, log)
		default:
			a = output.NewJSONFeed(out, o.Feed, o.Path, o.Limit, cfg.BaseURL, log)
		}
		artifacts = append(artifacts, a)
		published = append(published, a)
	}
	if len(published) > 0 {
		artifacts = append(artifacts, output.NewIndex(out, set.Index, "", cfg.BaseURL, published, log))
	}

	sched := scheduler.New(set.Roots, artifacts, log)
	sched.SetTickInterval(cfg.Tick)
	sched.SetDelay(cfg.DelayMin, cfg.DelayMax)
	sched.SetRecorder(metrics.Recorder{})

	return &app{cfg: cfg, log: log, env: env, feeds: set, sched: sched, out: out}, nil
}

func (a *app) Close() error {
	return a.env.Cache.Close()
}

// lookup finds a feed by namespace.
func (a *app) lookup(ns string) (feed.Feed, error) {
	f, ok := a.env.Registry.Get(ns)
	if !ok {
		return nil, fmt.Errorf("unknown feed %q", ns)
	}
	return f, nil
}

func openCache(cfg *config.Config) (storage.Cache, error) {
	var cache storage.Cache
	switch cfg.Cache.Backend {
	case config.BackendFiles:
		if err := os.MkdirAll(cfg.Cache.Dir, 0o750); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
		cache = storage.NewFiles(afero.NewOsFs(), cfg.Cache.Dir)
	default:
		if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("create data directory: %w", err)
			}
		}
		db, err := storage.NewSQLite(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("open database %s: %w", cfg.DatabasePath, err)
		}
		cache = db
	}

	if cfg.Cache.LRUSize <= 0 {
		return cache, nil
	}
	cached, err := storage.NewLRU(cache, cfg.Cache.LRUSize)
	if err != nil {
		_ = cache.Close()
		return nil, err
	}
	return cached, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
