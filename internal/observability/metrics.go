package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engagement_http_requests_total",
			Help: "Total number of HTTP requests processed by the engagement service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "engagement_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "engagement_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engagement_ws_events_total",
			Help: "Total number of websocket events.",
		},
		[]string{"event"},
	)
	pointsAwardedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engagement_points_awarded_total",
			Help: "Total number of point awards written to the ledger.",
		},
		[]string{"action"},
	)
	pointsThrottledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engagement_points_throttled_total",
			Help: "Total number of point awards rejected by the throttle.",
		},
		[]string{"action"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engagement_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		wsActiveConnections,
		wsEventsTotal,
		pointsAwardedTotal,
		pointsThrottledTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncWSActive() {
	wsActiveConnections.Inc()
}

func DecWSActive() {
	wsActiveConnections.Dec()
}

func IncWSEvent(event string) {
	wsEventsTotal.WithLabelValues(event).Inc()
}

func IncPointsAwarded(action string) {
	pointsAwardedTotal.WithLabelValues(action).Inc()
}

func IncPointsThrottled(action string) {
	pointsThrottledTotal.WithLabelValues(action).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
