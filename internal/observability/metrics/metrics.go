package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"service", "method", "path", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)

	MessagesIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_ingested_total",
			Help: "Total number of message submissions by outcome.",
		},
		[]string{"service", "status"},
	)

	WSSessionsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ws_sessions_active",
			Help: "Currently connected viewer sessions.",
		},
		[]string{"service"},
	)

	WSFanoutTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_fanout_total",
			Help: "Per-session broadcast delivery attempts by result.",
		},
		[]string{"service", "result"},
	)

	MediaUploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_uploads_total",
			Help: "Total number of media uploads by outcome.",
		},
		[]string{"service", "status"},
	)
)

func MustRegister(serviceName string) {
	HTTPRequestsTotal = HTTPRequestsTotal.MustCurryWith(prometheus.Labels{"service": serviceName})
	HTTPRequestDurationSeconds = HTTPRequestDurationSeconds.MustCurryWith(prometheus.Labels{"service": serviceName}).(*prometheus.HistogramVec)
	MessagesIngestedTotal = MessagesIngestedTotal.MustCurryWith(prometheus.Labels{"service": serviceName})
	WSSessionsActive = WSSessionsActive.MustCurryWith(prometheus.Labels{"service": serviceName})
	WSFanoutTotal = WSFanoutTotal.MustCurryWith(prometheus.Labels{"service": serviceName})
	MediaUploadsTotal = MediaUploadsTotal.MustCurryWith(prometheus.Labels{"service": serviceName})

	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDurationSeconds,
		MessagesIngestedTotal,
		WSSessionsActive,
		WSFanoutTotal,
		MediaUploadsTotal,
	)
}
