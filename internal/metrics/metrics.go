// Package metrics exposes Prometheus metrics for the update pass.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rss_glue/internal/scheduler"
)

const Namespace = "rss_glue"

const (
	NameFeedUpdates        = "feed_updates_total"
	NameFeedUpdateDuration = "feed_update_duration_seconds"
	NameLockedFeeds        = "locked_feeds"
	LabelStatus            = "status"
)

var FeedUpdates = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name:      NameFeedUpdates,
		Help:      "Feed update attempts by outcome",
		Namespace: Namespace,
	},
	[]string{LabelStatus},
)

var FeedUpdateDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Name:      NameFeedUpdateDuration,
		Help:      "Time spent updating a single feed",
		Namespace: Namespace,
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	},
)

var LockedFeeds = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name:      NameLockedFeeds,
		Help:      "Feeds currently locked after a failed update",
		Namespace: Namespace,
	},
)

// Recorder feeds scheduler measurements into the package metrics.
type Recorder struct{}

var _ scheduler.Recorder = Recorder{}

func (Recorder) ObserveUpdate(_ string, status scheduler.Status, d time.Duration) {
	FeedUpdates.WithLabelValues(string(status)).Inc()
	if status != scheduler.StatusSkipped {
		FeedUpdateDuration.Observe(d.Seconds())
	}
}

func (Recorder) SetLocked(n int) {
	LockedFeeds.Set(float64(n))
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
