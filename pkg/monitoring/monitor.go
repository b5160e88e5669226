package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	AttemptCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_attempts_total",
			Help: "Recorded quiz attempts",
		},
		[]string{"correct"},
	)

	SessionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_sessions_total",
			Help: "Quiz session lifecycle transitions",
		},
		[]string{"status"},
	)

	JobCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_jobs_total",
			Help: "Background completion jobs by type and result",
		},
		[]string{"type", "result"},
	)

	AnalyticsRecalculated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quiz_analytics_recalculated_total",
			Help: "Question analytics rows recalculated",
		},
	)

	AggregationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_aggregation_failures_total",
			Help: "Failed analytics or goal aggregation items",
		},
		[]string{"kind"},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			AttemptCounter,
			SessionCounter,
			JobCounter,
			AnalyticsRecalculated,
			AggregationFailures,
		)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
