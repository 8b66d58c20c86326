package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	HTTPInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "localhub",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "localhub",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "localhub",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	CheckoutsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "localhub",
			Subsystem: "payments",
			Name:      "checkouts_created_total",
			Help:      "Checkout sessions created, by plan.",
		},
		[]string{"plan"},
	)

	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "localhub",
			Subsystem: "payments",
			Name:      "webhook_events_total",
			Help:      "Verified payment webhook events, by type and outcome.",
		},
		[]string{"type", "outcome"},
	)

	SubscriptionsCanceled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "localhub",
			Subsystem: "payments",
			Name:      "subscriptions_canceled_total",
			Help:      "Subscriptions canceled through the API.",
		},
	)

	SponsorImpressions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "localhub",
			Subsystem: "sponsors",
			Name:      "impressions_total",
			Help:      "Sponsor slots served.",
		},
	)

	RateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "localhub",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		},
	)

	ChatConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "localhub",
			Subsystem: "chat",
			Name:      "open_streams",
			Help:      "Open conversation websocket streams.",
		},
	)

	CronRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "localhub",
			Subsystem: "scheduler",
			Name:      "runs_total",
			Help:      "Scheduled job runs, by job and outcome.",
		},
		[]string{"job", "success"},
	)
)

func init() {
	Registry.MustRegister(
		HTTPInFlight,
		HTTPRequests,
		HTTPDuration,
		CheckoutsCreated,
		WebhookEvents,
		SubscriptionsCanceled,
		SponsorImpressions,
		RateLimited,
		ChatConnections,
		CronRuns,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
