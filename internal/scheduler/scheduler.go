// Package scheduler orders the feed graph and drives update and
// generation passes over it.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"rss_glue/internal/feed"
)

// Status is the result of one feed's turn in an update pass.
type Status string

// Possible statuses.
const (
	StatusSkipped   Status = "skipped"
	StatusUnchanged Status = "unchanged"
	StatusUpdated   Status = "updated"
	StatusFailed    Status = "failed"
)

// Outcome records what happened to one feed during an update pass.
type Outcome struct {
	Namespace string
	Status    Status
	Next      time.Time
	Duration  time.Duration
	Err       error
}

// Artifact is a generated output such as a published feed file.
type Artifact interface {
	Name() string
	Generate(ctx context.Context) error
}

// Recorder receives update pass measurements.
type Recorder interface {
	ObserveUpdate(namespace string, status Status, d time.Duration)
	SetLocked(n int)
}

// Filter selects which namespaces an update pass may touch.
type Filter func(namespace string) bool

// Namespaces returns a Filter matching exactly the given namespaces.
// With no arguments every namespace matches.
func Namespaces(ns ...string) Filter {
	if len(ns) == 0 {
		return nil
	}
	set := make(map[string]bool, len(ns))
	for _, n := range ns {
		set[n] = true
	}
	return func(namespace string) bool { return set[namespace] }
}

// Scheduler periodically updates the feed graph and regenerates artifacts.
type Scheduler struct {
	roots     []feed.Feed
	artifacts []Artifact
	log       *slog.Logger
	tick      time.Duration
	delayMin  time.Duration
	delayMax  time.Duration
	sleep     func(ctx context.Context, d time.Duration) error
	metrics   Recorder
}

// New creates a Scheduler over the given root feeds.
func New(roots []feed.Feed, artifacts []Artifact, log *slog.Logger) *Scheduler {
	return &Scheduler{
		roots:     roots,
		artifacts: artifacts,
		log:       log,
		tick:      1 * time.Minute,
		delayMin:  2 * time.Second,
		delayMax:  4 * time.Second,
		sleep:     sleepContext,
		metrics:   nopRecorder{},
	}
}

// SetTickInterval overrides the default 1-minute pass interval.
func (s *Scheduler) SetTickInterval(d time.Duration) {
	s.tick = d
}

// SetDelay sets the random pause applied after a feed fetched new content.
func (s *Scheduler) SetDelay(lo, hi time.Duration) {
	s.delayMin, s.delayMax = lo, hi
}

// SetRecorder installs a metrics recorder.
func (s *Scheduler) SetRecorder(r Recorder) {
	s.metrics = r
}

// Collect orders the graph below roots so that every feed comes after all
// of its sources. Each namespace appears once even when reachable by
// several paths.
func Collect(roots []feed.Feed) ([]feed.Feed, map[string]feed.Feed) {
	var ordered []feed.Feed
	seen := make(map[string]feed.Feed)

	var visit func(f feed.Feed)
	visit = func(f feed.Feed) {
		if _, ok := seen[f.Namespace()]; ok {
			return
		}
		seen[f.Namespace()] = f
		for _, src := range f.Sources() {
			visit(src)
		}
		ordered = append(ordered, f)
	}
	for _, r := range roots {
		visit(r)
	}
	return ordered, seen
}

// Run performs a pass immediately and then on every tick until ctx is
// cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.Pass(ctx, false, nil)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Pass(ctx, false, nil)
		}
	}
}

// Pass collects the graph, updates it and regenerates every artifact.
func (s *Scheduler) Pass(ctx context.Context, force bool, filter Filter) []Outcome {
	ordered, _ := Collect(s.roots)
	outcomes := s.UpdatePass(ctx, ordered, force, filter)
	if ctx.Err() == nil {
		s.Generate(ctx)
	}
	return outcomes
}

// UpdatePass updates each due feed in order. A failing feed is locked and
// the pass moves on.
func (s *Scheduler) UpdatePass(ctx context.Context, ordered []feed.Feed, force bool, filter Filter) []Outcome {
	outcomes := make([]Outcome, 0, len(ordered))
	ran := make(map[string]bool)

	for _, f := range ordered {
		if ctx.Err() != nil {
			break
		}
		if filter != nil && !filter(f.Namespace()) {
			continue
		}
		if inner := innermost(f); inner != f && ran[inner.Namespace()] {
			outcomes = append(outcomes, Outcome{Namespace: f.Namespace(), Status: StatusSkipped})
			ran[f.Namespace()] = true
			continue
		}

		o := s.updateFeed(ctx, f, force)
		outcomes = append(outcomes, o)
		if o.Status != StatusSkipped {
			ran[f.Namespace()] = true
		}
		s.metrics.ObserveUpdate(o.Namespace, o.Status, o.Duration)

		if o.Status == StatusUpdated {
			if err := s.sleep(ctx, s.delay()); err != nil {
				break
			}
		}
	}

	s.metrics.SetLocked(countLocked(ctx, ordered))
	return outcomes
}

// UpdateOne runs a single feed by namespace, ignoring its dependencies.
func (s *Scheduler) UpdateOne(ctx context.Context, namespace string, force bool) (Outcome, error) {
	_, byNS := Collect(s.roots)
	f, ok := byNS[namespace]
	if !ok {
		return Outcome{}, fmt.Errorf("unknown feed %q", namespace)
	}
	o := s.updateFeed(ctx, f, force)
	s.metrics.ObserveUpdate(o.Namespace, o.Status, o.Duration)
	return o, nil
}

// Generate writes every artifact. Failures are logged per artifact.
func (s *Scheduler) Generate(ctx context.Context) {
	for _, a := range s.artifacts {
		if ctx.Err() != nil {
			return
		}
		if err := a.Generate(ctx); err != nil {
			s.log.Error("generate artifact", "artifact", a.Name(), "error", err)
		}
	}
}

func (s *Scheduler) updateFeed(ctx context.Context, f feed.Feed, force bool) Outcome {
	ns := f.Namespace()
	o := Outcome{Namespace: ns, Status: StatusSkipped}

	next, due, err := f.NextUpdate(ctx, force)
	if err != nil {
		return s.fail(ctx, f, o, fmt.Errorf("next update: %w", err))
	}
	o.Next = next
	if !due {
		s.log.Debug("not due", "ns", ns, "next", next)
		return o
	}

	before, err := f.LastUpdated(ctx)
	if err != nil {
		return s.fail(ctx, f, o, fmt.Errorf("last updated: %w", err))
	}

	s.log.Debug("updating", "ns", ns, "force", force)
	start := time.Now()
	err = safeUpdate(ctx, f)
	o.Duration = time.Since(start)
	if err != nil {
		return s.fail(ctx, f, o, err)
	}

	if c, ok := f.(feed.Cleaner); ok {
		removed, err := c.Cleanup(ctx)
		if err != nil {
			return s.fail(ctx, f, o, fmt.Errorf("cleanup: %w", err))
		}
		if removed > 0 {
			s.log.Info("cleaned up", "ns", ns, "removed", removed)
		}
	}

	after, err := f.LastUpdated(ctx)
	if err != nil {
		return s.fail(ctx, f, o, fmt.Errorf("last updated: %w", err))
	}
	if after.After(before) {
		o.Status = StatusUpdated
		s.log.Info("updated", "ns", ns, "duration", o.Duration)
	} else {
		o.Status = StatusUnchanged
	}
	return o
}

func (s *Scheduler) fail(ctx context.Context, f feed.Feed, o Outcome, err error) Outcome {
	o.Status = StatusFailed
	o.Err = err
	s.log.Error("update feed", "ns", o.Namespace, "error", err)
	if ctx.Err() != nil {
		return o
	}
	if lerr := f.Lock(ctx); lerr != nil {
		s.log.Error("lock feed", "ns", o.Namespace, "error", lerr)
		return o
	}
	s.log.Warn("feed locked", "ns", o.Namespace)
	return o
}

// innermost follows a chain of wrappers down to the feed that does the work.
func innermost(f feed.Feed) feed.Feed {
	for {
		w, ok := f.(feed.Wrapper)
		if !ok {
			return f
		}
		f = w.Unwrap()
	}
}

func safeUpdate(ctx context.Context, f feed.Feed) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return f.Update(ctx)
}

func (s *Scheduler) delay() time.Duration {
	if s.delayMax <= s.delayMin {
		return s.delayMin
	}
	return s.delayMin + rand.N(s.delayMax-s.delayMin)
}

func countLocked(ctx context.Context, feeds []feed.Feed) int {
	n := 0
	for _, f := range feeds {
		if locked, err := f.Locked(ctx); err == nil && locked {
			n++
		}
	}
	return n
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type nopRecorder struct{}

func (nopRecorder) ObserveUpdate(string, Status, time.Duration) {}
func (nopRecorder) SetLocked(int)                               {}
