package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides observability for the approval workflow and reports
type Metrics struct {
	registry *prometheus.Registry

	// Submissions by resulting status or error class
	Submissions *prometheus.CounterVec

	// Decisions by action and outcome
	Decisions *prometheus.CounterVec

	// Attempts per decision, above 1 only after version conflicts
	DecisionAttempts prometheus.Histogram

	// Decision latency including retries
	DecisionLatency *prometheus.HistogramVec

	// Report computation latency by kind and cache hit
	ReportLatency *prometheus.HistogramVec
}

// New creates a Metrics instance backed by its own registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "approval_submissions_total",
			Help: "Total submissions by outcome",
		}, []string{"outcome"}),

		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "approval_decisions_total",
			Help: "Total decisions by action and outcome",
		}, []string{"action", "outcome"}),

		DecisionAttempts: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "approval_decision_attempts",
			Help:    "Write attempts per decision",
			Buckets: []float64{1, 2, 3, 4, 5},
		}),

		DecisionLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "approval_decision_duration_seconds",
			Help:    "Duration of decision handling including conflict retries",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"action"}),

		ReportLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "approval_report_duration_seconds",
			Help:    "Duration of report computation by kind",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"kind", "cached"}),
	}
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveSubmission records a submission outcome
func (m *Metrics) ObserveSubmission(outcome string) {
	if m != nil {
		m.Submissions.WithLabelValues(outcome).Inc()
	}
}

// ObserveDecision records a decision outcome, its attempts and its duration
func (m *Metrics) ObserveDecision(action, outcome string, attempts int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(action, outcome).Inc()
	if attempts > 0 {
		m.DecisionAttempts.Observe(float64(attempts))
	}
	m.DecisionLatency.WithLabelValues(action).Observe(elapsed.Seconds())
}

// ObserveReport records how long a report took to produce
func (m *Metrics) ObserveReport(kind string, cached bool, elapsed time.Duration) {
	if m != nil {
		m.ReportLatency.WithLabelValues(kind, strconv.FormatBool(cached)).Observe(elapsed.Seconds())
	}
}
