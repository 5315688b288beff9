package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Request counters
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chat",
			Subsystem: "relay",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// Request duration histogram
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chat",
			Subsystem: "relay",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"method", "endpoint", "status"},
	)

	// Relay streams by outcome: completed, error, cancelled
	StreamsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chat",
			Subsystem: "relay",
			Name:      "streams_total",
			Help:      "Total relay streams by outcome",
		},
		[]string{"backend", "outcome"},
	)

	// Fragments forwarded to clients
	FragmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chat",
			Subsystem: "relay",
			Name:      "fragments_total",
			Help:      "Total response fragments relayed",
		},
		[]string{"backend"},
	)

	// Transport failures by upstream status
	TransportErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chat",
			Subsystem: "relay",
			Name:      "transport_errors_total",
			Help:      "Total backend call failures",
		},
		[]string{"backend", "status"},
	)

	// Stream duration from transport open to terminal record
	StreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chat",
			Subsystem: "relay",
			Name:      "stream_duration_seconds",
			Help:      "Relay stream duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"backend"},
	)

	// Backend reachability as reported by the periodic probe
	BackendReachable = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "chat",
			Subsystem: "relay",
			Name:      "backend_reachable",
			Help:      "Whether the configured backend answered the last probe (1/0)",
		},
		[]string{"backend"},
	)
)

// RecordRequest records per-request counters and latency.
func RecordRequest(method, endpoint, status string, duration float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(method, endpoint, status).Observe(duration)
}

// RecordTransportError records one backend call failure.
func RecordTransportError(backend string, statusCode int) {
	TransportErrorsTotal.WithLabelValues(backend, strconv.Itoa(statusCode)).Inc()
}

// RecordProbe updates the reachability gauge.
func RecordProbe(backend string, reachable bool) {
	value := 0.0
	if reachable {
		value = 1.0
	}
	BackendReachable.WithLabelValues(backend).Set(value)
}
