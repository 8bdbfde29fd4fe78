// metrics.go - Prometheus instrumentation.
package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spd_http_requests_total",
		Help: "HTTP requests by status class.",
	}, []string{"class"})

	metricUploads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spd_uploads_total",
		Help: "Files accepted for approval.",
	})

	metricUploadBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spd_upload_bytes_total",
		Help: "Encrypted payload bytes accepted.",
	})

	metricTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spd_status_transitions_total",
		Help: "Committed status transitions.",
	}, []string{"from", "to"})

	metricDeletes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spd_deletes_total",
		Help: "Soft deletes applied.",
	})

	metricEventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spd_events_published_total",
		Help: "Notification events published, by type.",
	}, []string{"event"})

	metricEventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spd_events_dropped_total",
		Help: "Events dropped because a subscriber channel was full.",
	})

	metricSSESubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "spd_sse_subscribers",
		Help: "Currently open notification streams.",
	})

	metricRateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spd_rate_limited_total",
		Help: "Requests rejected by the upload rate limiter.",
	})

	metricRetentionPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spd_retention_purged_total",
		Help: "Soft-deleted records hard-deleted by the retention janitor.",
	})
)

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
