package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status_code"},
	)

	// Queue metrics
	queueTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txqueue_transitions_total",
			Help: "Total number of transactions entering a status",
		},
		[]string{"status", "chain_id"},
	)

	queueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "txqueue_size",
			Help: "Current number of records in the transaction table",
		},
	)

	queueEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "txqueue_evictions_total",
			Help: "Total number of records evicted to enforce the size bound",
		},
	)

	confirmationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "txqueue_confirmation_duration_seconds",
			Help:    "Time from submission to terminal ledger outcome",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"status"},
	)

	// Monitor metrics
	activeMonitors = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "txqueue_active_monitors",
			Help: "Number of running confirmation monitors",
		},
	)

	monitorPollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txqueue_monitor_polls_total",
			Help: "Total number of ledger read attempts by result",
		},
		[]string{"chain_id", "result"},
	)

	monitorRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txqueue_monitor_retries_total",
			Help: "Total number of transient-error retries consumed",
		},
		[]string{"chain_id"},
	)

	// Persistence metrics
	persistenceOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txqueue_persistence_operations_total",
			Help: "Total number of store operations",
		},
		[]string{"operation", "status"},
	)

	corruptRecordsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "txqueue_corrupt_records_total",
			Help: "Total number of persisted entries skipped at load",
		},
	)

	// Event bus metrics
	eventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txqueue_events_published_total",
			Help: "Total number of queue events delivered",
		},
		[]string{"type"},
	)

	listenerPanicsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "txqueue_listener_panics_total",
			Help: "Total number of recovered event listener panics",
		},
	)
)

// HTTP Metrics
func RecordHTTPRequest(method, endpoint, statusCode string, duration float64) {
	httpRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, statusCode).Observe(duration)
}

// Queue Metrics
func RecordTransition(status string, chainID uint64) {
	queueTransitionsTotal.WithLabelValues(status, chainLabel(chainID)).Inc()
}

func SetQueueSize(size int) {
	queueSize.Set(float64(size))
}

func RecordEviction() {
	queueEvictionsTotal.Inc()
}

func RecordConfirmationDuration(status string, seconds float64) {
	confirmationDuration.WithLabelValues(status).Observe(seconds)
}

// Monitor Metrics
func SetActiveMonitors(count int) {
	activeMonitors.Set(float64(count))
}

func RecordPoll(chainID uint64, result string) {
	monitorPollsTotal.WithLabelValues(chainLabel(chainID), result).Inc()
}

func RecordRetry(chainID uint64) {
	monitorRetriesTotal.WithLabelValues(chainLabel(chainID)).Inc()
}

// Persistence Metrics
func RecordPersistence(operation, status string) {
	persistenceOperationsTotal.WithLabelValues(operation, status).Inc()
}

func RecordCorruptRecords(count int) {
	corruptRecordsTotal.Add(float64(count))
}

// Event Metrics
func RecordEvent(eventType string) {
	eventsPublishedTotal.WithLabelValues(eventType).Inc()
}

func RecordListenerPanic() {
	listenerPanicsTotal.Inc()
}

func chainLabel(chainID uint64) string {
	return strconv.FormatUint(chainID, 10)
}
