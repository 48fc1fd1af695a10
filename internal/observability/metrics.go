package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the ingestion crawler.
// Metrics are organized by subsystem: upstream fetches, store commits, tasks,
// and event publishing. All counters and histograms are registered via promauto
// for automatic registration with the default Prometheus registry.
type Metrics struct {
	// PagesFetched counts upstream result pages fetched, labeled by domain.
	PagesFetched *prometheus.CounterVec

	// RecordsFetched counts records drawn from upstream pages, labeled by domain.
	RecordsFetched *prometheus.CounterVec

	// RecordsCommitted counts new records inserted into the store, labeled by domain.
	RecordsCommitted *prometheus.CounterVec

	// RecordsReplaced counts records that already existed and were overwritten, labeled by domain.
	RecordsReplaced *prometheus.CounterVec

	// RelationsWritten counts citation edges written to the store.
	RelationsWritten prometheus.Counter

	// FetchRetries counts retried upstream requests, labeled by reason
	// (e.g., "rate_limited", "server_error", "network").
	FetchRetries *prometheus.CounterVec

	// PagesAbandoned counts pages given up after the attempt ceiling, labeled by reason.
	PagesAbandoned *prometheus.CounterVec

	// RequestDuration observes upstream request duration in seconds.
	RequestDuration prometheus.Histogram

	// BatchCommitDuration observes store batch commit duration in seconds.
	BatchCommitDuration prometheus.Histogram

	// StoreBatchFailures counts store batches that failed to commit.
	StoreBatchFailures prometheus.Counter

	// TasksCompleted counts crawl tasks that reached completion, labeled by domain.
	TasksCompleted *prometheus.CounterVec

	// TasksInFlight tracks the number of tasks with a page fetch in progress.
	TasksInFlight prometheus.Gauge

	// StoreFootprintBytes tracks the last observed store footprint.
	StoreFootprintBytes prometheus.Gauge

	// EventsPublished counts crawl lifecycle events published, labeled by event type.
	EventsPublished *prometheus.CounterVec

	// EventPublishFailures counts crawl lifecycle events that could not be published.
	EventPublishFailures prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Upstream fetches
		PagesFetched: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "Total number of upstream result pages fetched by domain",
		}, []string{"domain"}),
		RecordsFetched: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_fetched_total",
			Help:      "Total number of records drawn from upstream pages by domain",
		}, []string{"domain"}),
		FetchRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_retries_total",
			Help:      "Total number of retried upstream requests by reason",
		}, []string{"reason"}),
		PagesAbandoned: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_abandoned_total",
			Help:      "Total number of pages abandoned after exhausting attempts by reason",
		}, []string{"reason"}),
		RequestDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Duration of upstream requests in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),

		// Store commits
		RecordsCommitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_committed_total",
			Help:      "Total number of new records inserted into the store by domain",
		}, []string{"domain"}),
		RecordsReplaced: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_replaced_total",
			Help:      "Total number of existing records overwritten in the store by domain",
		}, []string{"domain"}),
		RelationsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relations_written_total",
			Help:      "Total number of citation edges written to the store",
		}),
		BatchCommitDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_commit_duration_seconds",
			Help:      "Duration of store batch commits in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		StoreBatchFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_batch_failures_total",
			Help:      "Total number of store batches that failed to commit",
		}),
		StoreFootprintBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_footprint_bytes",
			Help:      "Last observed store footprint in bytes",
		}),

		// Tasks
		TasksCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_completed_total",
			Help:      "Total number of crawl tasks completed by domain",
		}, []string{"domain"}),
		TasksInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks_in_flight",
			Help:      "Number of tasks with a page fetch in progress",
		}),

		// Events
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of crawl lifecycle events published by type",
		}, []string{"type"}),
		EventPublishFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_failures_total",
			Help:      "Total number of crawl lifecycle events that failed to publish",
		}),
	}
}

// RecordPageFetched records a fetched upstream page and its record count.
func (m *Metrics) RecordPageFetched(domain string, records int, durationSeconds float64) {
	m.PagesFetched.WithLabelValues(domain).Inc()
	m.RecordsFetched.WithLabelValues(domain).Add(float64(records))
	m.RequestDuration.Observe(durationSeconds)
}

// RecordFetchRetry records a retried upstream request.
func (m *Metrics) RecordFetchRetry(reason string) {
	m.FetchRetries.WithLabelValues(reason).Inc()
}

// RecordPageAbandoned records a page abandoned after exhausting attempts.
func (m *Metrics) RecordPageAbandoned(reason string) {
	m.PagesAbandoned.WithLabelValues(reason).Inc()
}

// RecordBatchCommitted records a committed store batch.
func (m *Metrics) RecordBatchCommitted(domain string, inserted, replaced int, durationSeconds float64) {
	m.RecordsCommitted.WithLabelValues(domain).Add(float64(inserted))
	m.RecordsReplaced.WithLabelValues(domain).Add(float64(replaced))
	m.BatchCommitDuration.Observe(durationSeconds)
}

// RecordRelationsWritten records citation edges written in a batch.
func (m *Metrics) RecordRelationsWritten(count int) {
	m.RelationsWritten.Add(float64(count))
}

// RecordStoreBatchFailure records a store batch that failed to commit.
func (m *Metrics) RecordStoreBatchFailure() {
	m.StoreBatchFailures.Inc()
}

// RecordTaskCompleted records a crawl task that reached completion.
func (m *Metrics) RecordTaskCompleted(domain string) {
	m.TasksCompleted.WithLabelValues(domain).Inc()
}

// TaskStarted marks a task as having a page fetch in progress.
func (m *Metrics) TaskStarted() {
	m.TasksInFlight.Inc()
}

// TaskFinished marks a task's page fetch as finished.
func (m *Metrics) TaskFinished() {
	m.TasksInFlight.Dec()
}

// SetStoreFootprint records the last observed store footprint in bytes.
func (m *Metrics) SetStoreFootprint(bytes float64) {
	m.StoreFootprintBytes.Set(bytes)
}

// RecordEventPublished records a published crawl lifecycle event.
func (m *Metrics) RecordEventPublished(eventType string) {
	m.EventsPublished.WithLabelValues(eventType).Inc()
}

// RecordEventPublishFailed records a crawl lifecycle event that failed to publish.
func (m *Metrics) RecordEventPublishFailed() {
	m.EventPublishFailures.Inc()
}
