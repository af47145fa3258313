package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	SessionsInitiated    prometheus.Counter
	EmailsVerified       prometheus.Counter
	Decisions            *prometheus.CounterVec
	CreationRuns         *prometheus.CounterVec
	EntityFailures       *prometheus.CounterVec
	NotificationFailures prometheus.Counter
}

// New creates and registers all Prometheus metrics
func New() *Metrics {
	return &Metrics{
		SessionsInitiated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registrar_sessions_initiated_total",
			Help: "Total number of registration sessions initiated",
		}),
		EmailsVerified: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registrar_emails_verified_total",
			Help: "Total number of successful email verifications",
		}),
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_decisions_total",
			Help: "Administrator decisions by outcome",
		}, []string{"decision"}),
		CreationRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_creation_runs_total",
			Help: "Entity creation runs by overall result",
		}, []string{"result"}),
		EntityFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_entity_failures_total",
			Help: "Individual entity creation failures by entity type",
		}, []string{"entity"}),
		NotificationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registrar_notification_failures_total",
			Help: "Outbound notification emails that failed to send",
		}),
	}
}

// IncrementDecision counts one administrator decision.
func (m *Metrics) IncrementDecision(decision string) {
	m.Decisions.WithLabelValues(decision).Inc()
}

// IncrementCreationRun counts one entity creation run.
func (m *Metrics) IncrementCreationRun(result string) {
	m.CreationRuns.WithLabelValues(result).Inc()
}
