package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker/v2"

	"github.com/vectorscan/fault-diagnosis/internal/core/diagnosis"
	"github.com/vectorscan/fault-diagnosis/internal/core/domain"
)

type HTTPServerMetrics struct {
	service  string
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	diagnosisTotal     *prometheus.CounterVec
	fallbackTotal      *prometheus.CounterVec
	retrievalHitTotal  *prometheus.CounterVec
	noContextTotal     *prometheus.CounterVec
	retrievedRecords   *prometheus.HistogramVec
	diagnosisDuration  *prometheus.HistogramVec
	breakerState       *prometheus.GaugeVec
	breakerTransitions *prometheus.CounterVec
	authAttemptsTotal  *prometheus.CounterVec
	rateLimitedTotal   *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faultdiag",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "faultdiag",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "faultdiag",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	diagnosisTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faultdiag",
			Subsystem: "diagnosis",
			Name:      "requests_total",
			Help:      "Total completed diagnoses by provenance and equipment category.",
		},
		[]string{"service", "provenance", "equipment"},
	)
	fallbackTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faultdiag",
			Subsystem: "diagnosis",
			Name:      "fallback_total",
			Help:      "Total mock diagnoses by fallback reason kind.",
		},
		[]string{"service", "reason"},
	)
	retrievalHitTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faultdiag",
			Subsystem: "diagnosis",
			Name:      "retrieval_hit_total",
			Help:      "Total diagnoses with at least one similar historical fault.",
		},
		[]string{"service"},
	)
	noContextTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faultdiag",
			Subsystem: "diagnosis",
			Name:      "no_context_total",
			Help:      "Total diagnoses without similar historical faults.",
		},
		[]string{"service"},
	)
	retrievedRecords := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "faultdiag",
			Subsystem: "diagnosis",
			Name:      "retrieved_records",
			Help:      "Distribution of similar historical faults retrieved per diagnosis.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5},
		},
		[]string{"service"},
	)
	diagnosisDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "faultdiag",
			Subsystem: "diagnosis",
			Name:      "duration_seconds",
			Help:      "Diagnosis pipeline duration in seconds by provenance.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"service", "provenance"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "faultdiag",
			Subsystem: "resilience",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state per operation (0 closed, 1 half-open, 2 open).",
		},
		[]string{"service", "operation"},
	)
	breakerTransitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faultdiag",
			Subsystem: "resilience",
			Name:      "circuit_breaker_transitions_total",
			Help:      "Total circuit breaker state transitions per operation.",
		},
		[]string{"service", "operation", "to"},
	)
	authAttemptsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faultdiag",
			Subsystem: "auth",
			Name:      "login_attempts_total",
			Help:      "Total login attempts by outcome.",
		},
		[]string{"service", "outcome"},
	)
	rateLimitedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faultdiag",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Total requests rejected by the rate limiter.",
		},
		[]string{"service", "path"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		diagnosisTotal,
		fallbackTotal,
		retrievalHitTotal,
		noContextTotal,
		retrievedRecords,
		diagnosisDuration,
		breakerState,
		breakerTransitions,
		authAttemptsTotal,
		rateLimitedTotal,
	)

	return &HTTPServerMetrics{
		service:            service,
		registry:           registry,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		diagnosisTotal:     diagnosisTotal,
		fallbackTotal:      fallbackTotal,
		retrievalHitTotal:  retrievalHitTotal,
		noContextTotal:     noContextTotal,
		retrievedRecords:   retrievedRecords,
		diagnosisDuration:  diagnosisDuration,
		breakerState:       breakerState,
		breakerTransitions: breakerTransitions,
		authAttemptsTotal:  authAttemptsTotal,
		rateLimitedTotal:   rateLimitedTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *HTTPServerMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *HTTPServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			m.service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(m.service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath keeps the path label bounded to known routes.
func normalizePath(path string) string {
	switch path {
	case "/healthz", "/metrics", "/v1/auth/login", "/v1/me", "/v1/diagnose", "/v1/diagnoses":
		return path
	default:
		return "other"
	}
}

// RecordDiagnosis implements ports.DiagnosisRecorder.
func (m *HTTPServerMetrics) RecordDiagnosis(d *domain.Diagnosis, retrieved int, duration time.Duration) {
	if d == nil {
		return
	}
	provenance := string(d.Provenance)
	if provenance == "" {
		provenance = string(domain.ProvenanceMock)
	}
	equipment := string(d.Equipment)
	if equipment == "" {
		equipment = string(domain.EquipmentUnknown)
	}

	m.diagnosisTotal.WithLabelValues(m.service, provenance, equipment).Inc()
	m.retrievedRecords.WithLabelValues(m.service).Observe(float64(retrieved))
	m.diagnosisDuration.WithLabelValues(m.service, provenance).Observe(duration.Seconds())
	if d.Provenance == domain.ProvenanceMock {
		m.fallbackTotal.WithLabelValues(m.service, fallbackReasonKind(d.FallbackReason)).Inc()
	}

	if retrieved > 0 {
		m.retrievalHitTotal.WithLabelValues(m.service).Inc()
		return
	}
	m.noContextTotal.WithLabelValues(m.service).Inc()
}

func fallbackReasonKind(reason string) string {
	switch {
	case reason == diagnosis.ReasonNoCredentials:
		return "no_credentials"
	case strings.HasPrefix(reason, diagnosis.ReasonGenerationFailedPrefix):
		return "generation_failed"
	default:
		return "other"
	}
}

// ObserveBreakerState matches resilience.StateObserver.
func (m *HTTPServerMetrics) ObserveBreakerState(operation string, _, to gobreaker.State) {
	m.breakerState.WithLabelValues(m.service, operation).Set(breakerStateValue(to))
	m.breakerTransitions.WithLabelValues(m.service, operation, to.String()).Inc()
}

func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

func (m *HTTPServerMetrics) RecordLogin(success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.authAttemptsTotal.WithLabelValues(m.service, outcome).Inc()
}

func (m *HTTPServerMetrics) RecordRateLimited(path string) {
	m.rateLimitedTotal.WithLabelValues(m.service, normalizePath(path)).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
