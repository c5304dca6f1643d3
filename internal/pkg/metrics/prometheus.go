package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ec2inventory"

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being served",
		},
	)

	// Sync run metrics
	syncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Total number of sync runs by scope and status",
		},
		[]string{"scope", "status"},
	)

	syncRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "run_duration_seconds",
			Help:      "Duration of sync runs in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"scope"},
	)

	syncRunsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "runs_in_flight",
			Help:      "Number of sync runs currently executing",
		},
	)

	fetchRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "records_total",
			Help:      "Records processed by resource fetchers",
		},
		[]string{"kind", "result"},
	)

	fetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of a single resource fetcher",
			Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"kind"},
	)

	// Provider call metrics
	providerCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "calls_total",
			Help:      "AWS API calls by operation and status",
		},
		[]string{"operation", "status"},
	)

	providerRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "retries_total",
			Help:      "AWS API call retries by operation",
		},
		[]string{"operation"},
	)

	providerConnections = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "connections_opened_total",
			Help:      "Connections created by client pools",
		},
	)

	// Pricing metrics
	pricesAppliedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "prices_total",
			Help:      "Price tuples processed by result",
		},
		[]string{"result"},
	)

	// Worker pool metrics
	workerQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "queue_depth",
			Help:      "Tasks waiting in the sync work queue",
		},
	)

	workerTaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "task_duration_seconds",
			Help:      "Duration of tasks executed by the worker pool",
			Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"task", "status"},
	)
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns a middleware that records Prometheus metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		routePattern := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			routePattern = rctx.RoutePattern()
		}

		status := strconv.Itoa(wrapped.statusCode)

		httpRequestsTotal.WithLabelValues(r.Method, routePattern, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, routePattern, status).Observe(time.Since(start).Seconds())
	})
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordSyncRun records a finished sync run. scope is resources or prices.
func RecordSyncRun(scope, status string, duration time.Duration) {
	syncRunsTotal.WithLabelValues(scope, status).Inc()
	syncRunDuration.WithLabelValues(scope).Observe(duration.Seconds())
}

// SyncRunStarted tracks a run entering execution; call the returned func when it ends
func SyncRunStarted() func() {
	syncRunsInFlight.Inc()
	return syncRunsInFlight.Dec
}

// RecordFetch records the outcome counters of a resource fetcher
func RecordFetch(kind string, upserted, created, failed int, duration time.Duration) {
	fetchRecordsTotal.WithLabelValues(kind, "upserted").Add(float64(upserted))
	fetchRecordsTotal.WithLabelValues(kind, "created").Add(float64(created))
	fetchRecordsTotal.WithLabelValues(kind, "failed").Add(float64(failed))
	fetchDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordProviderCall records a finished AWS call
func RecordProviderCall(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	providerCallsTotal.WithLabelValues(operation, status).Inc()
}

// RecordProviderRetry records a retried AWS call
func RecordProviderRetry(operation string) {
	providerRetriesTotal.WithLabelValues(operation).Inc()
}

// RecordConnectionOpened records a new pooled connection
func RecordConnectionOpened() {
	providerConnections.Inc()
}

// RecordPrice records a processed price tuple; result is applied, denied or failed
func RecordPrice(result string) {
	pricesAppliedTotal.WithLabelValues(result).Inc()
}

// SetQueueDepth sets the number of queued worker tasks
func SetQueueDepth(depth int) {
	workerQueueDepth.Set(float64(depth))
}

// RecordTask records a worker task execution
func RecordTask(task string, err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	workerTaskDuration.WithLabelValues(task, status).Observe(duration.Seconds())
}
