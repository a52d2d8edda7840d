// Package metrics exposes Prometheus collectors for the discovery service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Provider outcome labels.
const (
	OutcomeSuccess  = "success"
	OutcomeEmpty    = "empty"
	OutcomeError    = "error"
	OutcomeFallback = "fallback"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	discoveryTotal             *prometheus.CounterVec
	providerAttemptsTotal      *prometheus.CounterVec
	providerDurationSeconds    *prometheus.HistogramVec
	analysisTotal              *prometheus.CounterVec
	feedbackTotal              *prometheus.CounterVec
	activeSessions             prometheus.Gauge
	reviewsScraped             *prometheus.HistogramVec
	rateLimitDelaysSeconds     *prometheus.HistogramVec
	progressDroppedTotal       *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 60},
			},
			[]string{"method", "route"},
		)

		discoveryTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "discovery_requests_total",
				Help: "Total discovery runs, labeled by the provider that produced the record.",
			},
			[]string{"source"},
		)

		providerAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "discovery_provider_attempts_total",
				Help: "Scrape provider attempts, labeled by provider and outcome.",
			},
			[]string{"provider", "outcome"},
		)

		providerDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "discovery_provider_duration_seconds",
				Help:    "Histogram of scrape provider latencies.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 240},
			},
			[]string{"provider"},
		)

		analysisTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analysis_runs_total",
				Help: "Analysis runs, labeled by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		)

		feedbackTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedback_actions_total",
				Help: "Feedback actions recorded, labeled by target and action.",
			},
			[]string{"target", "action"},
		)

		activeSessions = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "discovery_browser_sessions_active",
				Help: "Number of remote browser sessions currently open.",
			},
		)

		reviewsScraped = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "discovery_reviews_scraped",
				Help:    "Number of reviews collected per discovery, labeled by source.",
				Buckets: []float64{0, 1, 5, 10, 20, 40, 80},
			},
			[]string{"source"},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "discovery_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"provider"},
		)

		progressDroppedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "discovery_progress_events_dropped_total",
				Help: "Progress events discarded before reaching sinks, labeled by reason.",
			},
			[]string{"reason"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveDiscovery counts a completed discovery by its winning source.
func ObserveDiscovery(source string, reviews int) {
	Init()
	discoveryTotal.WithLabelValues(source).Inc()
	reviewsScraped.WithLabelValues(source).Observe(float64(reviews))
}

// ObserveProvider records one provider attempt.
func ObserveProvider(provider, outcome string, duration time.Duration) {
	Init()
	providerAttemptsTotal.WithLabelValues(provider, outcome).Inc()
	providerDurationSeconds.WithLabelValues(provider).Observe(duration.Seconds())
}

// ObserveAnalysis counts an analysis run.
func ObserveAnalysis(kind, outcome string) {
	Init()
	analysisTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveFeedback counts a recorded feedback action.
func ObserveFeedback(target, action string) {
	Init()
	feedbackTotal.WithLabelValues(target, action).Inc()
}

// IncActiveSessions increments the open browser session gauge.
func IncActiveSessions() {
	Init()
	activeSessions.Inc()
}

// DecActiveSessions decrements the open browser session gauge.
func DecActiveSessions() {
	Init()
	activeSessions.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(provider string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(provider).Observe(duration.Seconds())
}

// ObserveProgressDropped counts progress events the hub discarded.
func ObserveProgressDropped(reason string, n int) {
	if n <= 0 {
		return
	}
	Init()
	progressDroppedTotal.WithLabelValues(reason).Add(float64(n))
}
