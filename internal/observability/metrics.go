package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TripsCreated     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "trip_share", Name: "trips_created_total", Help: "Total trips generated"})
	PositionsWritten = promauto.NewCounter(prometheus.CounterOpts{Namespace: "trip_share", Name: "positions_written_total", Help: "Total position samples accepted"})
	PositionsInvalid = promauto.NewCounter(prometheus.CounterOpts{Namespace: "trip_share", Name: "positions_invalid_total", Help: "Total position samples rejected"})
	RequestsSent     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "trip_share", Name: "route_requests_total", Help: "Total passenger route requests written"})
	ResolverFailures = promauto.NewCounter(prometheus.CounterOpts{Namespace: "trip_share", Name: "resolver_failures_total", Help: "Total failed restroom resolutions"})

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "trip_share", Name: "notifications_sent_total", Help: "Proximity notifications dispatched"},
		[]string{"kind"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "trip_share", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trip_share",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
