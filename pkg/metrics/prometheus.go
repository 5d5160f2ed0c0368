package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Connection status values exported by the connection_status gauge.
const (
	ConnectionConnecting = 0
	ConnectionOpen       = 1
	ConnectionClosed     = 2
	ConnectionError      = 3
	ConnectionOther      = 4
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace      string
	subsystem      string
	latencyBuckets []float64
	constLabels    map[string]string
	metricPrefix   string
	registry       prometheus.Registerer

	// Live feed
	feedEventsReceived *prometheus.CounterVec
	feedEventsDropped  *prometheus.CounterVec
	connectionStatus   prometheus.Gauge
	reconnectsTotal    prometheus.Counter
	dialLatency        prometheus.Histogram

	// Reconciliation and ranking
	reconciliations      *prometheus.CounterVec
	reconcileErrors      *prometheus.CounterVec
	activitiesEmitted    prometheus.Counter
	achievementsShown    prometheus.Counter
	rankingCycles        prometheus.Counter
	rankChanges          prometheus.Counter
	totalCoins           prometheus.Gauge
	chapterCount         prometheus.Gauge
	loopCommandLatency   prometheus.Histogram
	sourceFallbacksTotal *prometheus.CounterVec

	// Outbound submissions
	submissions        *prometheus.CounterVec
	submissionFailures *prometheus.CounterVec

	// Queues
	queueSize          *prometheus.GaugeVec
	queueEnqueueErrors *prometheus.CounterVec

	// Viewers
	viewersConnected prometheus.Gauge
	viewerMessages   prometheus.Counter
	viewerDrops      prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegisterer(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "coinboard",
		subsystem:      "engine",
		latencyBuckets: prometheus.DefBuckets,
		constLabels:    make(map[string]string),
		registry:       prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)
	constLabels := prometheus.Labels(m.constLabels)

	counterVec := func(name, help string, labels ...string) *prometheus.CounterVec {
		return auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: constLabels,
		}, labels)
	}
	counter := func(name, help string) prometheus.Counter {
		return auto.NewCounter(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: constLabels,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return auto.NewGauge(prometheus.GaugeOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: constLabels,
		})
	}
	histogram := func(name, help string) prometheus.Histogram {
		return auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: constLabels,
			Buckets: m.latencyBuckets,
		})
	}

	m.feedEventsReceived = counterVec("feed_events_received_total", "Live feed events decoded, by type", "type")
	m.feedEventsDropped = counterVec("feed_events_dropped_total", "Live feed frames dropped, by reason", "reason")
	m.connectionStatus = gauge("connection_status", "Live feed connection status (0 connecting, 1 open, 2 closed, 3 error, 4 other)")
	m.reconnectsTotal = counter("reconnects_scheduled_total", "Reconnect attempts scheduled after the feed closed")
	m.dialLatency = histogram("dial_latency_milliseconds", "Time taken to establish the live feed connection")

	m.reconciliations = counterVec("reconciliations_total", "Metric updates applied, by metric and origin", "metric", "origin")
	m.reconcileErrors = counterVec("reconcile_errors_total", "Metric updates rejected, by reason", "reason")
	m.activitiesEmitted = counter("activities_emitted_total", "Activity records produced by positive metric deltas")
	m.achievementsShown = counter("achievements_shown_total", "Achievement notifications forwarded to viewers")
	m.rankingCycles = counter("ranking_cycles_total", "Committed ranking aggregations")
	m.rankChanges = counter("rank_changes_total", "Chapters whose rank changed in a committed ranking")
	m.totalCoins = gauge("total_coins", "Sum of coins across all chapters")
	m.chapterCount = gauge("chapters", "Number of chapters in the game")
	m.loopCommandLatency = histogram("loop_command_latency_milliseconds", "Time spent executing one event loop command")
	m.sourceFallbacksTotal = counterVec("source_fallbacks_total", "Initial fetches that fell back to demo data", "kind")

	m.submissions = counterVec("submissions_total", "Outbound submissions attempted, by kind", "kind")
	m.submissionFailures = counterVec("submission_failures_total", "Outbound submissions that failed, by kind", "kind")

	m.queueSize = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("queue_size"), Help: "Current queue depth", ConstLabels: constLabels,
	}, []string{"queue"})
	m.queueEnqueueErrors = counterVec("queue_enqueue_errors_total", "Rejected enqueues, by queue and reason", "queue", "reason")

	m.viewersConnected = gauge("viewers_connected", "Viewer websocket connections")
	m.viewerMessages = counter("viewer_messages_total", "Messages fanned out to viewers")
	m.viewerDrops = counter("viewer_drops_total", "Viewers disconnected because their send buffer was full")

	m.httpRequests = counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("http_request_duration_milliseconds"),
		Help: "HTTP request duration in milliseconds", Buckets: m.latencyBuckets, ConstLabels: constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.systemMemoryUsage = gauge("system_memory_bytes", "Allocated heap bytes")
	m.systemGoroutineCount = gauge("system_goroutines", "Number of goroutines")
}

// Live feed.

// RecordFeedEvent counts a decoded feed event.
func RecordFeedEvent(eventType string) {
	globalManager.feedEventsReceived.WithLabelValues(eventType).Inc()
}

// RecordFeedDrop counts a dropped feed frame.
func RecordFeedDrop(reason string) {
	globalManager.feedEventsDropped.WithLabelValues(reason).Inc()
}

// UpdateConnectionStatus sets the connection status gauge.
func UpdateConnectionStatus(status int) {
	globalManager.connectionStatus.Set(float64(status))
}

// RecordReconnectScheduled counts a scheduled reconnect.
func RecordReconnectScheduled() {
	globalManager.reconnectsTotal.Inc()
}

// RecordDialLatency records how long a dial took.
func RecordDialLatency(latencyMs float64) {
	globalManager.dialLatency.Observe(latencyMs)
}

// Reconciliation and ranking.

// RecordReconciliation counts an applied metric update.
func RecordReconciliation(metric, origin string) {
	globalManager.reconciliations.WithLabelValues(metric, origin).Inc()
}

// RecordReconcileError counts a rejected metric update.
func RecordReconcileError(reason string) {
	globalManager.reconcileErrors.WithLabelValues(reason).Inc()
}

// RecordActivityEmitted counts an activity record.
func RecordActivityEmitted() {
	globalManager.activitiesEmitted.Inc()
}

// RecordAchievementShown counts a forwarded achievement.
func RecordAchievementShown() {
	globalManager.achievementsShown.Inc()
}

// RecordRankingCycle counts a committed ranking and the number of rank moves in it.
func RecordRankingCycle(changed int) {
	globalManager.rankingCycles.Inc()
	globalManager.rankChanges.Add(float64(changed))
}

// UpdateTotalCoins sets the sum of coins across chapters.
func UpdateTotalCoins(total int) {
	globalManager.totalCoins.Set(float64(total))
}

// UpdateChapterCount sets the number of chapters.
func UpdateChapterCount(count int) {
	globalManager.chapterCount.Set(float64(count))
}

// RecordLoopCommandLatency records one event loop command duration.
func RecordLoopCommandLatency(latencyMs float64) {
	globalManager.loopCommandLatency.Observe(latencyMs)
}

// RecordSourceFallback counts a fallback to demo data.
func RecordSourceFallback(kind string) {
	globalManager.sourceFallbacksTotal.WithLabelValues(kind).Inc()
}

// Outbound submissions.

// RecordSubmission counts an attempted submission.
func RecordSubmission(kind string) {
	globalManager.submissions.WithLabelValues(kind).Inc()
}

// RecordSubmissionFailure counts a failed submission.
func RecordSubmissionFailure(kind string) {
	globalManager.submissionFailures.WithLabelValues(kind).Inc()
}

// Queues.

// UpdateQueueSize sets the depth of a named queue.
func UpdateQueueSize(queue string, size int) {
	globalManager.queueSize.WithLabelValues(queue).Set(float64(size))
}

// RecordQueueEnqueueError counts a rejected enqueue.
func RecordQueueEnqueueError(queue, reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(queue, reason).Inc()
}

// Viewers.

// UpdateViewersConnected sets the number of connected viewers.
func UpdateViewersConnected(count int) {
	globalManager.viewersConnected.Set(float64(count))
}

// RecordViewerMessage counts a message fanned out to one viewer.
func RecordViewerMessage() {
	globalManager.viewerMessages.Inc()
}

// RecordViewerDrop counts a viewer dropped for back-pressure.
func RecordViewerDrop() {
	globalManager.viewerDrops.Inc()
}

// HTTP.

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// System.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
