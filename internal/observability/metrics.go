package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	framesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mudra_frames_processed_total",
		Help: "Frames processed by endpoint and prediction mode",
	}, []string{"endpoint", "outcome"})

	// ActiveSessions tracks open recognition sessions.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mudra_active_sessions",
		Help: "Number of open recognition sessions",
	})

	activeStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mudra_active_streams",
		Help: "Number of connected WebSocket streams",
	})

	classifierLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mudra_classifier_latency_seconds",
		Help:    "Letter classifier latency in seconds",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	})

	classifierErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mudra_classifier_errors_total",
		Help: "Letter classifier failures",
	})

	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mudra_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	registeredWords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mudra_registered_words",
		Help: "Number of reference word shapes in the library",
	})

	eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mudra_events_published_total",
		Help: "Events handed to the event publisher",
	}, []string{"topic", "status"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mudra_errors_total",
		Help: "Errors by type and component",
	}, []string{"type", "component"})
)

// RecordFrame counts one processed frame.
func RecordFrame(endpoint, outcome string) {
	framesProcessed.WithLabelValues(endpoint, outcome).Inc()
}

// StreamOpened and StreamClosed track connected streams.
func StreamOpened() { activeStreams.Inc() }

func StreamClosed() { activeStreams.Dec() }

// RecordClassifier records one classifier invocation.
func RecordClassifier(elapsed time.Duration, err error) {
	classifierLatency.Observe(elapsed.Seconds())
	if err != nil {
		classifierErrors.Inc()
	}
}

// SetCircuitBreakerState publishes a breaker state.
func SetCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// SetRegisteredWords publishes the library size.
func SetRegisteredWords(n int) {
	registeredWords.Set(float64(n))
}

// RecordEvent counts one publish attempt.
func RecordEvent(topic string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	eventsPublished.WithLabelValues(topic, status).Inc()
}

// RecordError counts an error.
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// Handler serves the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
