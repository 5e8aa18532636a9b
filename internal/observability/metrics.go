package observability

import "github.com/prometheus/client_golang/prometheus"

// Labels scope metrics to one dashboard connection and the dataset it
// serves, so several dashboards can share a Prometheus scrape.
type Labels struct {
	Connection string
	Dataset    string
}

func (l Labels) values(extra ...string) []string {
	return append([]string{l.Connection, l.Dataset}, extra...)
}

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "huggingduck_http_requests_total",
			Help: "Total number of dashboard API requests by route and status.",
		},
		[]string{"connection", "dataset", "method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "huggingduck_http_request_duration_seconds",
			Help:    "Dashboard API latency by route. Query routes include store execution.",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"connection", "dataset", "method", "route", "status"},
	)

	authFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "huggingduck_auth_failures_total",
			Help: "Rejected dashboard API calls by reason (missing_key, invalid_key, forbidden).",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDurationSeconds, authFailuresTotal)
}

// IncrementAuthFailure counts a request rejected before reaching the dataset.
func IncrementAuthFailure(reason string) {
	authFailuresTotal.WithLabelValues(reason).Inc()
}
