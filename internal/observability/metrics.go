package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce             sync.Once
	httpRequestsTotal        *prometheus.CounterVec
	httpLatencySeconds       *prometheus.HistogramVec
	feedbackSubmissionsTotal *prometheus.CounterVec
	summaryCacheRequests     *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		feedbackSubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedback_submissions_total",
			Help: "Student feedback submissions partitioned by outcome.",
		}, []string{"outcome"})

		summaryCacheRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "summary_cache_requests_total",
			Help: "Feedback summary cache lookups partitioned by result.",
		}, []string{"result"})

		prometheus.MustRegister(httpRequestsTotal, httpLatencySeconds, feedbackSubmissionsTotal, summaryCacheRequests)
	})
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the request latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// FeedbackSubmissions exposes the submission outcome counter.
func FeedbackSubmissions() *prometheus.CounterVec {
	RegisterMetrics()
	return feedbackSubmissionsTotal
}

// SummaryCacheRequests exposes the summary cache hit/miss counter.
func SummaryCacheRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return summaryCacheRequests
}
