package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/staff-appeal-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation. A nil *MetricsService is a valid no-op.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	appealsSubmitted  *prometheus.CounterVec
	appealTransitions *prometheus.CounterVec
	remoteAttempts    *prometheus.CounterVec
	remoteDuration    prometheus.Histogram
	notifications     *prometheus.CounterVec
	auditFailures     prometheus.Counter
	reviewerFallbacks prometheus.Counter
	remindersSent     *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests, by route template and error code",
	}, []string{"method", "route", "status", "outcome"})

	appealsSubmitted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "appeals_submitted_total",
		Help: "Appeals accepted, by priority and submission channel",
	}, []string{"priority", "channel"})

	appealTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "appeal_transitions_total",
		Help: "Appeal status transitions",
	}, []string{"from", "to"})

	remoteAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "appeal_remote_attempts_total",
		Help: "Calls to the external evaluation system, by outcome",
	}, []string{"outcome"})

	remoteDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "appeal_remote_attempt_seconds",
		Help:    "Latency of calls to the external evaluation system",
		Buckets: prometheus.DefBuckets,
	})

	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "appeal_notifications_total",
		Help: "Notification deliveries, by channel and outcome",
	}, []string{"channel", "outcome"})

	auditFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "appeal_audit_write_failures_total",
		Help: "Audit entries that could not be persisted",
	})

	reviewerFallbacks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "appeal_reviewer_fallbacks_total",
		Help: "Assignments that fell back to the default reviewer",
	})

	remindersSent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "appeal_reminders_total",
		Help: "Deadline reminders sent, by kind",
	}, []string{"kind"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, appealsSubmitted, appealTransitions, remoteAttempts,
		remoteDuration, notifications, auditFailures, reviewerFallbacks, remindersSent, goroutines)

	return &MetricsService{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		appealsSubmitted:  appealsSubmitted,
		appealTransitions: appealTransitions,
		remoteAttempts:    remoteAttempts,
		remoteDuration:    remoteDuration,
		notifications:     notifications,
		auditFailures:     auditFailures,
		reviewerFallbacks: reviewerFallbacks,
		remindersSent:     remindersSent,
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics. outcome is "ok" or the error code sent to the client.
func (m *MetricsService) ObserveHTTPRequest(method, route string, status int, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "ok"
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, route, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, route, labelStatus, outcome).Inc()
}

// AppealSubmitted counts an accepted appeal.
func (m *MetricsService) AppealSubmitted(priority models.Priority, channel models.SubmissionChannel) {
	if m == nil {
		return
	}
	m.appealsSubmitted.WithLabelValues(string(priority), string(channel)).Inc()
}

// AppealTransition counts a status change.
func (m *MetricsService) AppealTransition(from, to models.AppealStatus) {
	if m == nil {
		return
	}
	m.appealTransitions.WithLabelValues(string(from), string(to)).Inc()
}

// RemoteAttempt records one call to the evaluation system. outcome is success, transient or terminal.
func (m *MetricsService) RemoteAttempt(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.remoteAttempts.WithLabelValues(outcome).Inc()
	m.remoteDuration.Observe(duration.Seconds())
}

// NotificationDelivered records one channel delivery.
func (m *MetricsService) NotificationDelivered(channel string, ok bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.notifications.WithLabelValues(channel, outcome).Inc()
}

// AuditWriteFailed counts an audit entry that was not persisted.
func (m *MetricsService) AuditWriteFailed() {
	if m == nil {
		return
	}
	m.auditFailures.Inc()
}

// ReviewerFallback counts an escalation to the default reviewer.
func (m *MetricsService) ReviewerFallback() {
	if m == nil {
		return
	}
	m.reviewerFallbacks.Inc()
}

// ReminderSent counts a deadline reminder or overdue escalation.
func (m *MetricsService) ReminderSent(kind string) {
	if m == nil {
		return
	}
	m.remindersSent.WithLabelValues(kind).Inc()
}
