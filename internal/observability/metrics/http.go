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
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	billsCreatedTotal  *prometheus.CounterVec
	billsUpdatedTotal  *prometheus.CounterVec
	proofBytes         *prometheus.HistogramVec
	exportsTotal       *prometheus.CounterVec
	submissionsTotal   *prometheus.CounterVec
	storeRetriesTotal  *prometheus.CounterVec
	breakerTransitions *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "billed",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "billed",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "billed",
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	billsCreatedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "billed",
			Subsystem: "bills",
			Name:      "created_total",
			Help:      "Total bill stubs created from an uploaded proof.",
		},
		[]string{"service", "extension"},
	)
	billsUpdatedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "billed",
			Subsystem: "bills",
			Name:      "updated_total",
			Help:      "Total bill updates by resulting status.",
		},
		[]string{"service", "status"},
	)
	proofBytes := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "billed",
			Subsystem: "bills",
			Name:      "proof_size_bytes",
			Help:      "Size of uploaded proof files.",
			Buckets:   prometheus.ExponentialBuckets(16<<10, 4, 7),
		},
		[]string{"service"},
	)
	exportsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "billed",
			Subsystem: "bills",
			Name:      "exports_total",
			Help:      "Total spreadsheet exports by outcome.",
		},
		[]string{"service", "status"},
	)
	submissionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "billed",
			Subsystem: "newbill",
			Name:      "submissions_total",
			Help:      "NewBill form submissions by outcome.",
		},
		[]string{"service", "outcome"},
	)
	storeRetriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "billed",
			Subsystem: "store",
			Name:      "retries_total",
			Help:      "Retried remote store calls by operation.",
		},
		[]string{"service", "operation"},
	)
	breakerTransitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "billed",
			Subsystem: "store",
			Name:      "breaker_transitions_total",
			Help:      "Circuit breaker state transitions by operation.",
		},
		[]string{"service", "operation", "to"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		billsCreatedTotal,
		billsUpdatedTotal,
		proofBytes,
		exportsTotal,
		submissionsTotal,
		storeRetriesTotal,
		breakerTransitions,
	)

	return &HTTPServerMetrics{
		registry:           registry,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		billsCreatedTotal:  billsCreatedTotal,
		billsUpdatedTotal:  billsUpdatedTotal,
		proofBytes:         proofBytes,
		exportsTotal:       exportsTotal,
		submissionsTotal:   submissionsTotal,
		storeRetriesTotal:  storeRetriesTotal,
		breakerTransitions: breakerTransitions,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
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

		m.requestTotal.WithLabelValues(service, r.Method, path, strconv.Itoa(recorder.statusCode)).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath folds bill ids so label cardinality stays bounded.
func normalizePath(path string) string {
	rest, ok := strings.CutPrefix(path, "/v1/bills/")
	if !ok || rest == "" || rest == "export.xlsx" {
		return path
	}
	if strings.HasSuffix(rest, "/file") {
		return "/v1/bills/{id}/file"
	}
	return "/v1/bills/{id}"
}

func (m *HTTPServerMetrics) RecordBillCreated(service, extension string, size int64) {
	if extension == "" {
		extension = "unknown"
	}
	m.billsCreatedTotal.WithLabelValues(service, extension).Inc()
	if size > 0 {
		m.proofBytes.WithLabelValues(service).Observe(float64(size))
	}
}

func (m *HTTPServerMetrics) RecordBillUpdated(service, status string) {
	if status == "" {
		status = "unknown"
	}
	m.billsUpdatedTotal.WithLabelValues(service, status).Inc()
}

func (m *HTTPServerMetrics) RecordExport(service string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.exportsTotal.WithLabelValues(service, status).Inc()
}

func (m *HTTPServerMetrics) RecordSubmission(service, outcome string) {
	m.submissionsTotal.WithLabelValues(service, outcome).Inc()
}

func (m *HTTPServerMetrics) RecordStoreRetry(service, operation string) {
	m.storeRetriesTotal.WithLabelValues(service, operation).Inc()
}

func (m *HTTPServerMetrics) RecordBreakerTransition(service, operation, to string) {
	m.breakerTransitions.WithLabelValues(service, operation, to).Inc()
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
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
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
