package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the onboarding pipeline.
type Metrics struct {
	// Stage latencies and results by stage and status
	StageLatency *prometheus.HistogramVec
	StageResults *prometheus.CounterVec

	// Terminal outcomes by decision and failing stage
	Outcomes *prometheus.CounterVec

	// Bureau call latency by collaborator
	CollaboratorLatency *prometheus.HistogramVec

	// Audit sink failures and buffer drops
	AuditFailures prometheus.Counter
	AuditDropped  prometheus.Counter

	// Rule document reloads by result
	RuleReloads *prometheus.CounterVec
}

// New registers the pipeline metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		StageLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "loanflow_stage_duration_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"stage"}),

		StageResults: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loanflow_stage_results_total",
			Help: "Pipeline stage results by stage and status",
		}, []string{"stage", "status"}),

		Outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loanflow_outcomes_total",
			Help: "Application outcomes by decision and failing stage",
		}, []string{"decision", "failing_stage"}),

		CollaboratorLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "loanflow_collaborator_duration_seconds",
			Help:    "Duration of external bureau calls",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"collaborator"}),

		AuditFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "loanflow_audit_failures_total",
			Help: "Audit entries that could not be persisted",
		}),

		AuditDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "loanflow_audit_dropped_total",
			Help: "Audit entries dropped because the buffer was full",
		}),

		RuleReloads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loanflow_rule_reloads_total",
			Help: "Rule document reloads by result",
		}, []string{"result"}),
	}
}

// ObserveStage records one stage execution.
func (m *Metrics) ObserveStage(stage, status string, d time.Duration) {
	if m != nil {
		m.StageLatency.WithLabelValues(stage).Observe(d.Seconds())
		m.StageResults.WithLabelValues(stage, status).Inc()
	}
}

// IncrementOutcome records a terminal outcome.
func (m *Metrics) IncrementOutcome(decision, failingStage string) {
	if m != nil {
		m.Outcomes.WithLabelValues(decision, failingStage).Inc()
	}
}

// ObserveCollaborator records the duration of a bureau call.
func (m *Metrics) ObserveCollaborator(name string, d time.Duration) {
	if m != nil {
		m.CollaboratorLatency.WithLabelValues(name).Observe(d.Seconds())
	}
}

// IncrementReload records a rule document reload attempt.
func (m *Metrics) IncrementReload(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.RuleReloads.WithLabelValues(result).Inc()
}
