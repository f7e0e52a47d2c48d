// Package metrics exposes Prometheus collectors for crawl runs.
//
// A crawl is a short-lived process, so instead of serving /metrics the
// recorder can dump its registry to a node-exporter textfile at exit.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements crawler.Metrics on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	listingPagesTotal *prometheus.CounterVec
	articlesTotal     *prometheus.CounterVec
	retriesTotal      *prometheus.CounterVec
	ledgerArticles    prometheus.Gauge
	failureQueueSize  prometheus.Gauge
	lastRunTimestamp  prometheus.Gauge
	runDuration       prometheus.Gauge
	rateLimitWait     *prometheus.HistogramVec
}

// New registers the crawl collectors on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		listingPagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "svtcrawler_listing_pages_total",
				Help: "Listing pages fetched, labeled by topic and status.",
			},
			[]string{"topic", "status"},
		),
		articlesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "svtcrawler_articles_total",
				Help: "Articles processed, labeled by topic and status (stored, skipped, failed).",
			},
			[]string{"topic", "status"},
		),
		retriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "svtcrawler_retries_total",
				Help: "Queued URLs retried, labeled by kind (listing, article) and status.",
			},
			[]string{"kind", "status"},
		),
		ledgerArticles: factory.NewGauge(prometheus.GaugeOpts{
			Name: "svtcrawler_ledger_articles",
			Help: "Articles recorded in the crawl ledger at the end of the run.",
		}),
		failureQueueSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "svtcrawler_failure_queue_size",
			Help: "URLs waiting in the failure queue at the end of the run.",
		}),
		lastRunTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "svtcrawler_last_run_timestamp_seconds",
			Help: "Unix time the last run finished.",
		}),
		runDuration: factory.NewGauge(prometheus.GaugeOpts{
			Name: "svtcrawler_run_duration_seconds",
			Help: "Wall time of the last run.",
		}),
		rateLimitWait: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "svtcrawler_rate_limit_wait_seconds",
				Help:    "Time spent waiting for the request rate limiter.",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
			},
			[]string{"host"},
		),
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveListing counts a listing page outcome.
func (r *Recorder) ObserveListing(topic, status string) {
	r.listingPagesTotal.WithLabelValues(topic, status).Inc()
}

// ObserveArticle counts an article outcome.
func (r *Recorder) ObserveArticle(topic, status string) {
	r.articlesTotal.WithLabelValues(topic, status).Inc()
}

// ObserveRetry counts a retried URL outcome.
func (r *Recorder) ObserveRetry(kind, status string) {
	r.retriesTotal.WithLabelValues(kind, status).Inc()
}

// ObserveRateLimitWait records how long a request waited for a token.
func (r *Recorder) ObserveRateLimitWait(host string, d time.Duration) {
	r.rateLimitWait.WithLabelValues(host).Observe(d.Seconds())
}

// ObserveRun records end-of-run state sizes and timing.
func (r *Recorder) ObserveRun(ledgerSize, queueSize int, started, finished time.Time) {
	r.ledgerArticles.Set(float64(ledgerSize))
	r.failureQueueSize.Set(float64(queueSize))
	r.lastRunTimestamp.Set(float64(finished.Unix()))
	r.runDuration.Set(finished.Sub(started).Seconds())
}

// WriteTextfile writes all collected metrics in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
