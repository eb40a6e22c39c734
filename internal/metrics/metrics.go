package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/replydesk/server/internal/auth"
	"github.com/replydesk/server/internal/charge"
)

// Metrics provides observability for the portal: gate decisions, charge flow
// transitions and backend latency.
type Metrics struct {
	GateDecisions      *prometheus.CounterVec
	ChargeTransitions  *prometheus.CounterVec
	ChargeFailures     *prometheus.CounterVec
	BackendRequestTime *prometheus.HistogramVec
}

// New registers all portal metrics on reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		GateDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_gate_decisions_total",
			Help: "Route gate decisions by kind",
		}, []string{"decision"}),

		ChargeTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_charge_transitions_total",
			Help: "Charge flow step transitions",
		}, []string{"from", "to"}),

		ChargeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_charge_failures_total",
			Help: "Charge flow failures by kind",
		}, []string{"kind"}), // kind: "transport_error", "rejected"

		BackendRequestTime: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portal_backend_request_duration_seconds",
			Help:    "Duration of calls to the payment/auth backend",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"endpoint", "code"}),
	}
}

// ObserveDecision records a gate decision
func (m *Metrics) ObserveDecision(d auth.Decision) {
	if m != nil {
		m.GateDecisions.WithLabelValues(d.Kind.String()).Inc()
	}
}

// ObserveTransition records a charge flow transition. Failed calls are
// counted as failures, not as transitions.
func (m *Metrics) ObserveTransition(t charge.Transition) {
	if m == nil {
		return
	}
	switch label := t.Label(); label {
	case "transport_error", "rejected":
		m.ChargeFailures.WithLabelValues(label).Inc()
	default:
		m.ChargeTransitions.WithLabelValues(string(t.From), string(t.To)).Inc()
	}
}

// ObserveBackendRequest records the latency of one backend call. statusCode
// is 0 when the request never got a response.
func (m *Metrics) ObserveBackendRequest(endpoint string, statusCode int, d time.Duration) {
	if m == nil {
		return
	}
	code := "error"
	if statusCode > 0 {
		code = strconv.Itoa(statusCode)
	}
	m.BackendRequestTime.WithLabelValues(endpoint, code).Observe(d.Seconds())
}
