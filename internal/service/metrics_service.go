package service

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the grade
// engine.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	recordsCreated      prometheus.Counter
	recordsUpdated      prometheus.Counter
	auditEntries        prometheus.Counter
	notificationsSent   prometheus.Counter
	notificationsFailed prometheus.Counter
	reconcileDuration   prometheus.Histogram
}

// NewMetricsService registers the engine's Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	recordsCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "grade_records_created_total",
		Help: "Total evaluation records created by reconciliation",
	})
	recordsUpdated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "grade_records_updated_total",
		Help: "Total evaluation records mutated by reconciliation",
	})
	auditEntries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "grade_audit_entries_total",
		Help: "Total audit entries appended",
	})
	notificationsSent := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "grade_notifications_sent_total",
		Help: "Total grade notifications handed to the dispatcher",
	})
	notificationsFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "grade_notifications_failed_total",
		Help: "Total grade notifications that failed to dispatch",
	})
	reconcileDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "grade_reconcile_duration_seconds",
		Help:    "Duration of single-record reconciliations",
		Buckets: prometheus.DefBuckets,
	})

	registry.MustRegister(recordsCreated, recordsUpdated, auditEntries, notificationsSent, notificationsFailed, reconcileDuration)

	return &MetricsService{
		registry:            registry,
		handler:             promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		recordsCreated:      recordsCreated,
		recordsUpdated:      recordsUpdated,
		auditEntries:        auditEntries,
		notificationsSent:   notificationsSent,
		notificationsFailed: notificationsFailed,
		reconcileDuration:   reconcileDuration,
	}
}

// Handler returns the scrape endpoint handler.
func (m *MetricsService) Handler() http.Handler {
	return m.handler
}

// IncRecordCreated counts a record created by reconciliation.
func (m *MetricsService) IncRecordCreated() {
	if m != nil {
		m.recordsCreated.Inc()
	}
}

// IncRecordUpdated counts a record mutated by reconciliation.
func (m *MetricsService) IncRecordUpdated() {
	if m != nil {
		m.recordsUpdated.Inc()
	}
}

// IncAuditEntry counts an appended audit entry.
func (m *MetricsService) IncAuditEntry() {
	if m != nil {
		m.auditEntries.Inc()
	}
}

// IncNotificationSent counts a dispatched notification.
func (m *MetricsService) IncNotificationSent() {
	if m != nil {
		m.notificationsSent.Inc()
	}
}

// IncNotificationFailed counts a failed notification dispatch.
func (m *MetricsService) IncNotificationFailed() {
	if m != nil {
		m.notificationsFailed.Inc()
	}
}

// ObserveReconcile records the duration of one reconciliation.
func (m *MetricsService) ObserveReconcile(d time.Duration) {
	if m != nil {
		m.reconcileDuration.Observe(d.Seconds())
	}
}
