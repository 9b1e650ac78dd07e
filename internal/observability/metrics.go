package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rideshare", Name: "booking_transitions_total", Help: "Booking status changes by outcome"},
		[]string{"to", "outcome"},
	)
	UsersProvisioned = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rideshare", Name: "users_provisioned_total", Help: "First sign-in resolutions by path"},
		[]string{"path"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rideshare", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rideshare",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
