package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"rss_glue/internal/model"
)

// Policy decides when a throttled feed is next due given its last run.
// A zero result means never.
type Policy interface {
	Next(lastRun time.Time) time.Time
	String() string
}

// Interval is due a fixed duration after the last run. Zero never fires.
type Interval time.Duration

func (i Interval) Next(lastRun time.Time) time.Time {
	if i <= 0 {
		return time.Time{}
	}
	return lastRun.Add(time.Duration(i))
}

func (i Interval) String() string {
	if i <= 0 {
		return "manual"
	}
	return "every " + time.Duration(i).String()
}

// Cron is due whenever its schedule fires after the last run.
type Cron struct {
	spec  string
	sched cron.Schedule
}

// ParseCron parses a standard five field cron expression or descriptor
// such as "@daily".
func ParseCron(spec string) (*Cron, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse cron %q: %w", spec, err)
	}
	return &Cron{spec: spec, sched: sched}, nil
}

func (c *Cron) Next(lastRun time.Time) time.Time {
	return c.sched.Next(lastRun)
}

func (c *Cron) String() string {
	return c.spec
}

// Prev returns the latest firing strictly before t, searching back at most
// ten years.
func (c *Cron) Prev(t time.Time) (time.Time, bool) {
	const horizon = 10 * 365 * 24 * time.Hour
	for span := time.Minute; span <= horizon; span *= 2 {
		n := c.sched.Next(t.Add(-span))
		if n.IsZero() || !n.Before(t) {
			continue
		}
		for {
			nn := c.sched.Next(n)
			if nn.IsZero() || !nn.Before(t) {
				return n, true
			}
			n = nn
		}
	}
	return time.Time{}, false
}

// Throttle gates an expensive fetch behind a Policy. The last run is kept
// in the feed's meta document.
type Throttle struct {
	Base
	policy Policy
}

func newThrottle(ns string, env *Env, p Policy) Throttle {
	if p == nil {
		p = Interval(0)
	}
	return Throttle{Base: newBase(ns, env), policy: p}
}

// NextUpdate implements Feed. A locked feed is never due unless forced.
func (t *Throttle) NextUpdate(ctx context.Context, force bool) (time.Time, bool, error) {
	now := t.env.now()
	if force {
		return now, true, nil
	}
	m, err := t.meta(ctx)
	if err != nil {
		return time.Time{}, false, err
	}
	if m.Locked {
		return time.Time{}, false, nil
	}
	next := t.policy.Next(m.LastRun)
	if next.IsZero() {
		return next, false, nil
	}
	return next, !now.Before(next), nil
}

// MarkRun records a completed fetch, rounded up to the next whole minute so
// the same scheduler tick cannot trigger it again.
func (t *Throttle) MarkRun(ctx context.Context) error {
	run := t.env.now().Truncate(time.Minute).Add(time.Minute)
	return t.updateMeta(ctx, func(m *model.Meta) { m.LastRun = run })
}
