package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Scheduler metrics

	JobsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "pipeline",
		Name:      "jobs_in_flight",
		Help:      "Number of collection jobs currently running.",
	})

	JobQueueLength = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "pipeline",
		Name:      "job_queue_length",
		Help:      "Number of collection jobs waiting for a worker slot.",
	})

	JobsCompletedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pipeline",
		Name:      "jobs_completed_total",
		Help:      "Total collection jobs finished, by outcome.",
	}, []string{"outcome"})

	JobDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pipeline",
		Name:      "job_duration_seconds",
		Help:      "Wall-clock duration of a collection job.",
		Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
	})

	// Collection metrics

	TweetsCollectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "pipeline",
		Name:      "tweets_collected_total",
		Help:      "Total unique tweets accepted by the assembler.",
	})

	PagesFetchedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "pipeline",
		Name:      "pages_fetched_total",
		Help:      "Total timeline pages fetched from the source API.",
	})

	RateLimitWaitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pipeline",
		Name:      "rate_limit_waits_total",
		Help:      "Times a call was gated on the remote rate limit.",
	}, []string{"endpoint"})

	// Database metrics

	DBQueryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pipeline",
		Name:      "db_query_duration_seconds",
		Help:      "Single query latency.",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"op", "outcome"})

	DBTxDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pipeline",
		Name:      "db_tx_duration_seconds",
		Help:      "Transaction latency, begin to commit.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"op", "outcome"})

	SlowOperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pipeline",
		Name:      "db_slow_operations_total",
		Help:      "Operations exceeding the slow-query or long-transaction threshold.",
	}, []string{"kind"})

	PoolConnections = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "pipeline",
		Name:      "db_pool_connections",
		Help:      "Connection pool occupancy, by state.",
	}, []string{"state"})

	PoolAcquireRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "pipeline",
		Name:      "db_pool_acquire_retries_total",
		Help:      "Connection acquisitions that needed more than one attempt.",
	})

	// HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pipeline",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pipeline",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})
)

func Register() {
	prometheus.MustRegister(
		JobsInFlight,
		JobQueueLength,
		JobsCompletedTotal,
		JobDuration,
		TweetsCollectedTotal,
		PagesFetchedTotal,
		RateLimitWaitsTotal,
		DBQueryDuration,
		DBTxDuration,
		SlowOperationsTotal,
		PoolConnections,
		PoolAcquireRetriesTotal,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

// ReadinessReporter is satisfied by *health.Checker.
type ReadinessReporter interface {
	LivenessHandler() http.Handler
	ReadinessHandler() http.Handler
}

func NewServer(addr string, checker ReadinessReporter) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", checker.LivenessHandler())
	mux.Handle("/readyz", checker.ReadinessHandler())
	return &http.Server{Addr: addr, Handler: mux}
}
