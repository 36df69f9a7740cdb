// Package metrics provides Prometheus instrumentation for the antifraud service.
package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "antifraud",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "antifraud",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// ValidationsTotal counts signup validations by decision.
	ValidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "antifraud",
			Name:      "validations_total",
			Help:      "Total signup validations by decision.",
		},
		[]string{"decision"},
	)

	// FinalizationsTotal counts finalized signups by trust tier.
	FinalizationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "antifraud",
			Name:      "finalizations_total",
			Help:      "Total finalized signups by assigned trust tier.",
		},
		[]string{"tier"},
	)

	// FinalizeReplaysTotal counts idempotent finalize replays.
	FinalizeReplaysTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "antifraud",
		Name:      "finalize_replays_total",
		Help:      "Total finalize calls answered from the stored result.",
	})

	// ValidatorCallsTotal counts external validator calls by validator and outcome.
	ValidatorCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "antifraud",
			Name:      "validator_calls_total",
			Help:      "Total external validator calls by validator name and outcome.",
		},
		[]string{"validator", "outcome"},
	)

	// ValidatorDuration observes external validator latency.
	ValidatorDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "antifraud",
			Name:      "validator_duration_seconds",
			Help:      "External validator call duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5},
		},
		[]string{"validator"},
	)

	// DegradedValidationsTotal counts validations served in degraded mode.
	DegradedValidationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "antifraud",
		Name:      "degraded_validations_total",
		Help:      "Total validations served while the backing store was unreachable.",
	})

	// StatsWriteRetriesTotal counts abuse-stat write retries during finalize.
	StatsWriteRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "antifraud",
		Name:      "stats_write_retries_total",
		Help:      "Total abuse-stat write retries during finalize.",
	})

	// AlertDeliveriesTotal counts webhook alert deliveries by outcome.
	AlertDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "antifraud",
			Name:      "alert_deliveries_total",
			Help:      "Total webhook alert deliveries by outcome.",
		},
		[]string{"outcome"},
	)

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "antifraud", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBIdleConnections tracks idle database connections.
	DBIdleConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "antifraud", Name: "db_idle_connections",
		Help: "Number of idle database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "antifraud", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "antifraud", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ValidationsTotal,
		FinalizationsTotal,
		FinalizeReplaysTotal,
		ValidatorCallsTotal,
		ValidatorDuration,
		DegradedValidationsTotal,
		StatsWriteRetriesTotal,
		AlertDeliveriesTotal,
		DBOpenConnections,
		DBIdleConnections,
		DBInUseConnections,
		GoroutineCount,
	)
}

// StartDBStatsCollector periodically samples sql.DBStats and runtime goroutine
// count into Prometheus gauges. Call in a goroutine; exits when ctx is done.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBIdleConnections.Set(float64(stats.Idle))
			DBInUseConnections.Set(float64(stats.InUse))
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // Uses route pattern, not actual path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
