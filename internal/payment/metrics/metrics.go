package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tair/payment-reconciler/internal/payment/domain"
)

// Metrics holds the reconciliation collectors
type Metrics struct {
	eventsTotal        *prometheus.CounterVec
	integrityAnomalies *prometheus.CounterVec
	reconcileLatency   *prometheus.HistogramVec
	gatewayFailures    *prometheus.CounterVec
	circuitState       *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them on reg.
// A nil registerer leaves them unregistered, which tests rely on.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_webhook_events_total",
				Help: "Webhook events handled, by event type and outcome",
			},
			[]string{"event_type", "outcome"},
		),
		integrityAnomalies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_integrity_anomalies_total",
				Help: "Events acknowledged without writes because they could not be attributed to a user",
			},
			[]string{"event_type", "reason"},
		),
		reconcileLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "payment_reconcile_duration_seconds",
				Help:    "Time spent reconciling one webhook event",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"event_type"},
		),
		gatewayFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_gateway_failures_total",
				Help: "Failed calls to the payment gateway API",
			},
			[]string{"operation"},
		),
		circuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "payment_gateway_circuit_open",
				Help: "1 while the gateway circuit breaker is open",
			},
			[]string{"circuit"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.eventsTotal,
			m.integrityAnomalies,
			m.reconcileLatency,
			m.gatewayFailures,
			m.circuitState,
		)
	}
	return m
}

// ObserveEvent records the outcome and latency of one reconciliation
func (m *Metrics) ObserveEvent(eventType string, outcome domain.Outcome, elapsed time.Duration) {
	m.eventsTotal.WithLabelValues(eventType, string(outcome)).Inc()
	m.reconcileLatency.WithLabelValues(eventType).Observe(elapsed.Seconds())
}

// IntegrityAnomaly counts an event that could not be attributed to a user
func (m *Metrics) IntegrityAnomaly(eventType, reason string) {
	m.integrityAnomalies.WithLabelValues(eventType, reason).Inc()
}

// GatewayFailure counts a failed gateway call
func (m *Metrics) GatewayFailure(op string) {
	m.gatewayFailures.WithLabelValues(op).Inc()
}

// CircuitOpen flags whether the named breaker is open
func (m *Metrics) CircuitOpen(circuit string, open bool) {
	v := 0.0
	if open {
		v = 1
	}
	m.circuitState.WithLabelValues(circuit).Set(v)
}
