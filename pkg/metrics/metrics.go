package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	WorkersAlive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "colony_workers_alive",
			Help: "Whether a worker slot currently has a live child (1 = alive, 0 = dead)",
		},
		[]string{"slot"},
	)

	WorkerRestartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "colony_worker_restarts_total",
			Help: "Total number of worker restarts by slot and reason",
		},
		[]string{"slot", "reason"},
	)

	ForksAlive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "colony_forks_alive",
			Help: "Total number of live fork subprocesses",
		},
	)

	ResultsStoredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "colony_results_stored_total",
			Help: "Total number of results stored by backend",
		},
		[]string{"backend"},
	)

	ResultsFetchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "colony_results_fetched_total",
			Help: "Total number of result fetches by backend and outcome",
		},
		[]string{"backend", "outcome"},
	)

	CanteenEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "colony_canteen_entries",
			Help: "Current number of fork paths published in the canteen",
		},
	)

	TasksProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "colony_tasks_processed_total",
			Help: "Total number of tasks processed by worker slot",
		},
		[]string{"slot"},
	)

	RPCRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "colony_rpc_requests_total",
			Help: "Total number of control-plane RPCs by method and status",
		},
		[]string{"method", "status"},
	)

	RPCRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "colony_rpc_request_duration_seconds",
			Help:    "Control-plane RPC duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(WorkersAlive)
	prometheus.MustRegister(WorkerRestartsTotal)
	prometheus.MustRegister(ForksAlive)
	prometheus.MustRegister(ResultsStoredTotal)
	prometheus.MustRegister(ResultsFetchedTotal)
	prometheus.MustRegister(CanteenEntries)
	prometheus.MustRegister(TasksProcessedTotal)
	prometheus.MustRegister(RPCRequestsTotal)
	prometheus.MustRegister(RPCRequestDuration)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
