package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "newsroom_http_request_duration_seconds",
		Help:    "HTTP request latency by route pattern and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	SlowRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "newsroom_http_slow_requests_total",
		Help: "Requests slower than the slow-request threshold.",
	}, []string{"method", "route"})

	DBQueryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "newsroom_db_query_duration_seconds",
		Help:    "Database call latency by operation.",
		Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"op"})

	DBSlowQueries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "newsroom_db_slow_queries_total",
		Help: "Database calls slower than the slow-query threshold.",
	}, []string{"op"})

	NewsletterDispatches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "newsroom_newsletter_dispatches_total",
		Help: "Finished newsletter dispatches by final status.",
	}, []string{"status"})

	NewsletterDispatchSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "newsroom_newsletter_dispatch_seconds",
		Help:    "Wall time of a newsletter dispatch from claim to final status.",
		Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
	})

	NewsletterDeliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "newsroom_newsletter_deliveries_total",
		Help: "Individual newsletter sends by outcome.",
	}, []string{"outcome"})

	Subscriptions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "newsroom_subscriptions_total",
		Help: "Subscribe requests by result.",
	}, []string{"result"})
)

// MustRegister registers every collector with registerer.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		HTTPRequestDuration,
		SlowRequests,
		DBQueryDuration,
		DBSlowQueries,
		NewsletterDispatches,
		NewsletterDispatchSeconds,
		NewsletterDeliveries,
		Subscriptions,
	)
}

// Handler serves the default gatherer in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRequest records one HTTP request.
func ObserveRequest(method, route string, status int, d time.Duration, slow bool) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
	if slow {
		SlowRequests.WithLabelValues(method, route).Inc()
	}
}

// ObserveQuery records one database call.
func ObserveQuery(op string, d time.Duration, slow bool) {
	DBQueryDuration.WithLabelValues(op).Observe(d.Seconds())
	if slow {
		DBSlowQueries.WithLabelValues(op).Inc()
	}
}

// ObserveDispatch records a finished dispatch.
func ObserveDispatch(status string, d time.Duration) {
	NewsletterDispatches.WithLabelValues(status).Inc()
	NewsletterDispatchSeconds.Observe(d.Seconds())
}

// IncDelivery counts one send attempt.
func IncDelivery(outcome string) {
	NewsletterDeliveries.WithLabelValues(outcome).Inc()
}

// IncSubscription counts one subscribe request result.
func IncSubscription(result string) {
	Subscriptions.WithLabelValues(result).Inc()
}
