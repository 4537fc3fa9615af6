// Package metrics exposes Prometheus collectors for the harvester.
package metrics

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	harvestFetchesTotal           *prometheus.CounterVec
	harvestTitlesTotal            *prometheus.CounterVec
	harvestDuplicatePagesTotal    prometheus.Counter
	harvestBytesTotal             prometheus.Counter
	harvestLevel                  prometheus.Gauge
	harvestFrontierTitles         *prometheus.GaugeVec
	harvestBatchDurationSeconds   prometheus.Histogram
	harvestRateLimitDelaysSeconds *prometheus.HistogramVec
	httpRequestsTotal             *prometheus.CounterVec
	httpRequestDurationSeconds    *prometheus.HistogramVec

	once sync.Once
)

// Title outcomes counted by ObserveTitles.
const (
	OutcomeAdmitted   = "admitted"
	OutcomeDeferred   = "deferred"
	OutcomeDiscarded  = "discarded"
	OutcomeRedirected = "redirected"
	OutcomeHeld       = "held"
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		harvestFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wikiharvest_fetches_total",
				Help: "Article fetches, labeled by status (ok, missing, failed).",
			},
			[]string{"status"},
		)

		harvestTitlesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wikiharvest_titles_total",
				Help: "Titles classified by the frontier, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		harvestDuplicatePagesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "wikiharvest_duplicate_pages_total",
				Help: "Fetched articles dropped because their page id was already harvested.",
			},
		)

		harvestBytesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "wikiharvest_content_bytes_total",
				Help: "Bytes of article markup fetched.",
			},
		)

		harvestLevel = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "wikiharvest_level",
				Help: "Current crawl level.",
			},
		)

		harvestFrontierTitles = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "wikiharvest_frontier_titles",
				Help: "Size of each frontier set.",
			},
			[]string{"set"},
		)

		harvestBatchDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "wikiharvest_batch_duration_seconds",
				Help:    "Histogram of batch fetch durations.",
				Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300},
			},
		)

		harvestRateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wikiharvest_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"host"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeHost extracts a lowercase hostname from a URL.
// It returns "unknown" if the URL is invalid.
func SanitizeHost(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// WriteTextfile writes every registered metric to path in the text exposition
// format, for the node exporter textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// ObserveFetch counts one article fetch outcome.
func ObserveFetch(status string, bytesFetched int) {
	Init()
	harvestFetchesTotal.WithLabelValues(status).Inc()
	if bytesFetched > 0 {
		harvestBytesTotal.Add(float64(bytesFetched))
	}
}

// ObserveTitles counts titles that reached an outcome.
func ObserveTitles(outcome string, n int) {
	Init()
	if n > 0 {
		harvestTitlesTotal.WithLabelValues(outcome).Add(float64(n))
	}
}

// ObserveDuplicatePage counts an article dropped by page-id dedup.
func ObserveDuplicatePage() {
	Init()
	harvestDuplicatePagesTotal.Inc()
}

// ObserveBatch records how long a batch fetch took.
func ObserveBatch(duration time.Duration) {
	Init()
	harvestBatchDurationSeconds.Observe(duration.Seconds())
}

// SetLevel records the current crawl level.
func SetLevel(level int) {
	Init()
	harvestLevel.Set(float64(level))
}

// SetFrontierSize records the size of one frontier set.
func SetFrontierSize(set string, n int) {
	Init()
	harvestFrontierTitles.WithLabelValues(set).Set(float64(n))
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(host string, duration time.Duration) {
	Init()
	harvestRateLimitDelaysSeconds.WithLabelValues(host).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
