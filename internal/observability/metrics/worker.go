package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	eventsTotal    *prometheus.CounterVec
	eventDuration  *prometheus.HistogramVec
	eventsInFlight prometheus.Gauge
	queueLag       *prometheus.HistogramVec
	billsByStatus  *prometheus.GaugeVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	eventsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "billed",
			Subsystem: "worker",
			Name:      "bill_events_total",
			Help:      "Total handled bill events by type and outcome.",
		},
		[]string{"service", "type", "status"},
	)
	eventDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "billed",
			Subsystem: "worker",
			Name:      "bill_event_duration_seconds",
			Help:      "Bill event handling duration in seconds by outcome.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	eventsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "billed",
			Subsystem:   "worker",
			Name:        "bill_events_in_flight",
			Help:        "Number of bill events being handled.",
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "billed",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between a bill event and its handling.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"service"},
	)
	billsByStatus := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "billed",
			Subsystem: "worker",
			Name:      "bills",
			Help:      "Bills per status across all employees, recounted on each handled event.",
		},
		[]string{"service", "status"},
	)

	registry.MustRegister(eventsTotal, eventDuration, eventsInFlight, queueLag, billsByStatus)

	return &WorkerMetrics{
		registry:       registry,
		eventsTotal:    eventsTotal,
		eventDuration:  eventDuration,
		eventsInFlight: eventsInFlight,
		queueLag:       queueLag,
		billsByStatus:  billsByStatus,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartEvent() {
	m.eventsInFlight.Inc()
}

func (m *WorkerMetrics) FinishEvent(service, eventType string, duration time.Duration, err error) {
	m.eventsInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}
	m.eventsTotal.WithLabelValues(service, eventType, status).Inc()
	m.eventDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}

func (m *WorkerMetrics) SetBillsByStatus(service string, counts map[string]int) {
	for status, n := range counts {
		m.billsByStatus.WithLabelValues(service, status).Set(float64(n))
	}
}
