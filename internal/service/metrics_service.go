package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	notifsEmitted   prometheus.Counter
	notifsSent      prometheus.Counter
	notifsFailed    prometheus.Counter
	quizSubmissions *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	notifsEmitted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifications_emitted_total",
		Help: "Notifications appended to the outbox",
	})

	notifsSent := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifications_dispatched_total",
		Help: "Notifications handed to the mail transport",
	})

	notifsFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifications_dispatch_failures_total",
		Help: "Notification dispatch attempts that failed",
	})

	quizSubmissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quiz_submissions_total",
		Help: "Graded quiz submissions by outcome",
	}, []string{"outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, notifsEmitted, notifsSent, notifsFailed, quizSubmissions, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		notifsEmitted:   notifsEmitted,
		notifsSent:      notifsSent,
		notifsFailed:    notifsFailed,
		quizSubmissions: quizSubmissions,
	}
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

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordNotificationEmitted counts a notification appended to the outbox.
func (m *MetricsService) RecordNotificationEmitted() {
	if m == nil {
		return
	}
	m.notifsEmitted.Inc()
}

// RecordNotificationDispatch counts a dispatch attempt outcome.
func (m *MetricsService) RecordNotificationDispatch(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.notifsSent.Inc()
	} else {
		m.notifsFailed.Inc()
	}
}

// RecordQuizSubmission counts a graded submission by outcome.
func (m *MetricsService) RecordQuizSubmission(passed bool) {
	if m == nil {
		return
	}
	outcome := "failed"
	if passed {
		outcome = "passed"
	}
	m.quizSubmissions.WithLabelValues(outcome).Inc()
}
