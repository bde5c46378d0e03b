package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	upstreamPagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "stridestats",
		Subsystem: "upstream",
		Name:      "pages_fetched_total",
		Help:      "Number of activity pages fetched from the Strava API.",
	})
	upstreamActivitiesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "stridestats",
		Subsystem: "upstream",
		Name:      "activities_fetched_total",
		Help:      "Number of activity records fetched from the Strava API.",
	})
	httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stridestats",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests served, by path and status code.",
	}, []string{"path", "code"})
	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "stridestats",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency, by path.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"path"})
)

func init() {
	prometheus.MustRegister(
		upstreamPagesTotal,
		upstreamActivitiesTotal,
		httpRequestsTotal,
		httpRequestDuration,
	)
}

// RecordUpstreamPage counts one fetched page and its activity records.
func RecordUpstreamPage(activities int) {
	upstreamPagesTotal.Inc()
	upstreamActivitiesTotal.Add(float64(activities))
}

// RecordHTTPRequest counts one served request and observes its latency.
func RecordHTTPRequest(path, code string, elapsed time.Duration) {
	httpRequestsTotal.WithLabelValues(path, code).Inc()
	httpRequestDuration.WithLabelValues(path).Observe(elapsed.Seconds())
}
