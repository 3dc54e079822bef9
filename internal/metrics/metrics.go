// Package metrics records run statistics as Prometheus collectors and flushes
// them to a node-exporter textfile at the end of each run.
package metrics

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Run outcomes.
const (
	OutcomeDelivered = "delivered"
	OutcomeSkipped   = "skipped"
	OutcomeFallback  = "fallback"
	OutcomeFailed    = "failed"
)

// Notification statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Recorder owns a private registry so repeated runs in one process never collide.
type Recorder struct {
	registry *prometheus.Registry

	runsTotal          *prometheus.CounterVec
	listingLinks       prometheus.Counter
	listingSkipped     prometheus.Counter
	downloadsTotal     *prometheus.CounterVec
	downloadBytesTotal *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
	archiveFailures    prometheus.Counter
	fetchDuration      *prometheus.HistogramVec
	latestAdvisory     prometheus.Gauge
}

// New registers every collector on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ashalert_runs_total",
			Help: "Total number of runs, labeled by outcome.",
		}, []string{"outcome"}),
		listingLinks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ashalert_listing_links_total",
			Help: "Anchors seen on the advisory index page.",
		}),
		listingSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ashalert_listing_skipped_total",
			Help: "Anchors on the index page that were not dated entries.",
		}),
		downloadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ashalert_downloads_total",
			Help: "Assets downloaded, labeled by kind.",
		}, []string{"kind"}),
		downloadBytesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ashalert_download_bytes_total",
			Help: "Bytes downloaded, labeled by kind.",
		}, []string{"kind"}),
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ashalert_notifications_total",
			Help: "Notification attempts, labeled by channel and status.",
		}, []string{"channel", "status"}),
		archiveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ashalert_archive_failures_total",
			Help: "Assets that could not be archived.",
		}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ashalert_fetch_duration_seconds",
			Help:    "Histogram of fetch latencies, labeled by site.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"site"}),
		latestAdvisory: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ashalert_latest_advisory_timestamp_seconds",
			Help: "Issue time of the most recent advisory seen on the index page.",
		}),
	}
	r.registry.MustRegister(
		r.runsTotal,
		r.listingLinks,
		r.listingSkipped,
		r.downloadsTotal,
		r.downloadBytesTotal,
		r.notificationsTotal,
		r.archiveFailures,
		r.fetchDuration,
		r.latestAdvisory,
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// ObserveFetch records the latency of one fetch.
func (r *Recorder) ObserveFetch(rawURL string, d time.Duration) {
	r.fetchDuration.WithLabelValues(SanitizeSite(rawURL)).Observe(d.Seconds())
}

// ObserveListing adds the link and skip counts of a parsed index page.
func (r *Recorder) ObserveListing(links, skipped int) {
	r.listingLinks.Add(float64(links))
	r.listingSkipped.Add(float64(skipped))
}

// ObserveDownload counts one asset of the given kind.
func (r *Recorder) ObserveDownload(kind string, bytes int) {
	r.downloadsTotal.WithLabelValues(kind).Inc()
	if bytes > 0 {
		r.downloadBytesTotal.WithLabelValues(kind).Add(float64(bytes))
	}
}

// ObserveNotification counts one delivery attempt on channel.
func (r *Recorder) ObserveNotification(channel string, err error) {
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	r.notificationsTotal.WithLabelValues(channel, status).Inc()
}

// ObserveArchiveFailure counts one asset that failed to archive.
func (r *Recorder) ObserveArchiveFailure() {
	r.archiveFailures.Inc()
}

// SetLatest records the issue time of the newest advisory.
func (r *Recorder) SetLatest(ts time.Time) {
	r.latestAdvisory.Set(float64(ts.Unix()))
}

// ObserveRun counts a finished run.
func (r *Recorder) ObserveRun(outcome string) {
	r.runsTotal.WithLabelValues(outcome).Inc()
}

// WriteTextfile writes the registry in text exposition format. The file is replaced
// atomically so a concurrent node-exporter scrape never sees a partial file.
func (r *Recorder) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
