// Package metrics exposes Prometheus metrics for the student ranking
// pipeline: webhook ingestion, the scoring worker pool, the ranking
// aggregator, and the HTTP surface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Job outcome labels recorded by the worker loop.
const (
	OutcomeProcessed       = "processed"
	OutcomeSkippedChecksum = "skipped_checksum"
	OutcomeCachedPending   = "cached_pending"
	OutcomeDroppedInvalid  = "dropped_invalid"
	OutcomeFailed          = "failed"
)

// Manager owns every Prometheus collector used by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Ingestion metrics.
	eventsReceived      *prometheus.CounterVec
	eventsDebounced     prometheus.Counter
	gateUnavailable     prometheus.Counter
	webhookAuthFailures prometheus.Counter

	// Worker metrics.
	jobsProcessed   *prometheus.CounterVec
	jobDuration     prometheus.Histogram
	scoringDuration prometheus.Histogram
	workerCount     prometheus.Gauge

	// Queue metrics.
	queueDepth    prometheus.Gauge
	queueEnqueued prometheus.Counter
	queueDequeued prometheus.Counter

	// Aggregator metrics.
	aggregatorRuns     *prometheus.CounterVec
	aggregatorDuration prometheus.Histogram
	rankedStudents     prometheus.Gauge

	// Verification metrics.
	verificationFlushes prometheus.Counter
	verificationMisses  prometheus.Counter

	// HTTP metrics.
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid the default Go collectors.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // singleton metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager builds a metrics manager and registers all collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "rankhub",
		subsystem:        "ranking",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.eventsReceived = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "events_received_total",
			Help:      "Total number of profile events accepted at the webhook layer",
		},
		[]string{"reason"},
	)

	m.eventsDebounced = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_debounced_total",
		Help:      "Total number of events suppressed by the debounce gate",
	})

	m.gateUnavailable = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "gate_unavailable_total",
		Help:      "Total number of debounce gate checks that failed open",
	})

	m.webhookAuthFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "webhook_auth_failures_total",
		Help:      "Total number of webhook requests rejected by signature verification",
	})

	m.jobsProcessed = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "jobs_processed_total",
			Help:      "Total number of ranking jobs handled by the worker pool, by outcome",
		},
		[]string{"outcome"},
	)

	m.jobDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "job_duration_seconds",
		Help:      "End-to-end ranking job duration in seconds",
		Buckets:   m.histogramBuckets,
	})

	m.scoringDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "scoring_duration_seconds",
		Help:      "Score computation duration in seconds",
		Buckets:   m.histogramBuckets,
	})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_count",
		Help:      "Number of running worker loops",
	})

	m.queueDepth = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_depth",
		Help:      "Current length of the ranking job queue",
	})

	m.queueEnqueued = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueued_total",
		Help:      "Total number of jobs pushed onto the ranking queue",
	})

	m.queueDequeued = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_dequeued_total",
		Help:      "Total number of jobs popped off the ranking queue",
	})

	m.aggregatorRuns = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "aggregator_runs_total",
			Help:      "Total number of ranking aggregator attempts, by result",
		},
		[]string{"result"},
	)

	m.aggregatorDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "aggregator_duration_seconds",
		Help:      "Full ranking recomputation duration in seconds",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	m.rankedStudents = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ranked_students",
		Help:      "Number of students covered by the latest ranking pass",
	})

	m.verificationFlushes = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "verification_flushes_total",
		Help:      "Total number of pending scores persisted after verification",
	})

	m.verificationMisses = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "verification_misses_total",
		Help:      "Total number of verification events with no pending score to flush",
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint, method and status code",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)
}

// RecordEventReceived counts an accepted profile event by update reason.
func RecordEventReceived(reason string) {
	globalManager.eventsReceived.WithLabelValues(reason).Inc()
}

// RecordEventDebounced counts an event suppressed by the debounce gate.
func RecordEventDebounced() {
	globalManager.eventsDebounced.Inc()
}

// RecordGateUnavailable counts a debounce check that failed open.
func RecordGateUnavailable() {
	globalManager.gateUnavailable.Inc()
}

// RecordWebhookAuthFailure counts a webhook rejected by signature checks.
func RecordWebhookAuthFailure() {
	globalManager.webhookAuthFailures.Inc()
}

// RecordJobOutcome counts a finished ranking job by outcome label.
func RecordJobOutcome(outcome string) {
	globalManager.jobsProcessed.WithLabelValues(outcome).Inc()
}

// RecordJobDuration records end-to-end job duration in seconds.
func RecordJobDuration(seconds float64) {
	globalManager.jobDuration.Observe(seconds)
}

// RecordScoringDuration records score computation duration in seconds.
func RecordScoringDuration(seconds float64) {
	globalManager.scoringDuration.Observe(seconds)
}

// UpdateWorkerCount sets the number of running worker loops.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateQueueDepth sets the current ranking queue length.
func UpdateQueueDepth(depth int64) {
	globalManager.queueDepth.Set(float64(depth))
}

// RecordQueueEnqueue counts a job pushed onto the queue.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue counts a job popped off the queue.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordAggregatorRun counts an aggregator attempt; result is
// "completed", "skipped_locked" or "failed".
func RecordAggregatorRun(result string) {
	globalManager.aggregatorRuns.WithLabelValues(result).Inc()
}

// RecordAggregatorDuration records a full recomputation duration in seconds.
func RecordAggregatorDuration(seconds float64) {
	globalManager.aggregatorDuration.Observe(seconds)
}

// UpdateRankedStudents sets the population size of the latest ranking pass.
func UpdateRankedStudents(count int) {
	globalManager.rankedStudents.Set(float64(count))
}

// RecordVerificationFlush counts a pending score persisted after verification.
func RecordVerificationFlush() {
	globalManager.verificationFlushes.Inc()
}

// RecordVerificationMiss counts a verification with nothing pending to flush.
func RecordVerificationMiss() {
	globalManager.verificationMisses.Inc()
}

// RecordHTTPRequest counts an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records an HTTP request duration in seconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, seconds float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(seconds)
}

// GetRegistry returns the registry backing the package-level helpers,
// for wiring into an HTTP exposition handler.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
