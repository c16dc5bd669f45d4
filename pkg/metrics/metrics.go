package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carchat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "carchat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "route"},
	)

	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "carchat_messages_sent_total",
			Help: "Messages accepted by the store through the live channel",
		},
	)

	SendRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carchat_send_rejected_total",
			Help: "Send attempts rejected before or during persistence",
		},
		[]string{"reason"},
	)

	PushesDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "carchat_pushes_delivered_total",
			Help: "Messages queued to a live recipient connection",
		},
	)

	PushesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carchat_pushes_dropped_total",
			Help: "Live pushes dropped; recipients recover them from history",
		},
		[]string{"reason"},
	)

	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "carchat_active_connections",
			Help: "Live websocket connections on this instance",
		},
	)

	FanoutPublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "carchat_fanout_publish_failures_total",
			Help: "Failed publishes to the cross-instance fan-out topic",
		},
	)

	StoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "carchat_store_latency_seconds",
			Help:    "Message store operation latency",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25},
		},
		[]string{"backend", "op"},
	)
)

// ObserveStore records the latency of one store call started at start.
func ObserveStore(backend, op string, start time.Time) {
	StoreLatency.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
}

// Middleware records request counts and latency labelled by chi route
// pattern, so path parameters do not explode label cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
