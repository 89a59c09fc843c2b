// Package metrics holds the domain Prometheus collectors of the contract core.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"contractapi/internal/apperr"
	"contractapi/internal/lifecycle"
	"contractapi/internal/model"
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

type Metrics struct {
	transitions      *prometheus.CounterVec
	verifications    *prometheus.CounterVec
	pipelineDuration *prometheus.HistogramVec
	pipelineFailures *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contract_transitions_total",
				Help: "Contract status transitions by source and target status.",
			},
			[]string{"from", "to"},
		),
		verifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contract_verifications_total",
				Help: "Signing page verification attempts.",
			},
			[]string{"method", "result"},
		),
		pipelineDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "contract_pipeline_duration_seconds",
				Help:    "Duration of signed document assembly.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"result"},
		),
		pipelineFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contract_pipeline_failures_total",
				Help: "Failed document assemblies by step.",
			},
			[]string{"step"},
		),
	}

	for _, c := range []prometheus.Collector{m.transitions, m.verifications, m.pipelineDuration, m.pipelineFailures} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	// Legal edges are exported at zero before their first transition.
	for _, from := range lifecycle.Statuses() {
		for _, ev := range lifecycle.Events() {
			if to, err := lifecycle.Next(&model.Contract{Status: from}, ev); err == nil {
				m.transitions.WithLabelValues(string(from), string(to))
			}
		}
	}
	return m, nil
}

func (m *Metrics) Transition(from, to model.ContractStatus) {
	if m == nil {
		return
	}
	if from == "" {
		from = "NONE"
	}
	m.transitions.WithLabelValues(string(from), string(to)).Inc()
}

func (m *Metrics) Verification(method string, ok bool) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(method, result(ok)).Inc()
}

// Pipeline records one assembly. Failures are also counted per step.
func (m *Metrics) Pipeline(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.pipelineDuration.WithLabelValues(result(err == nil)).Observe(d.Seconds())
	if err == nil {
		return
	}
	step := "unknown"
	var pe *apperr.PipelineError
	if errors.As(err, &pe) {
		step = pe.Step
	}
	m.pipelineFailures.WithLabelValues(step).Inc()
}

func result(ok bool) string {
	if ok {
		return ResultSuccess
	}
	return ResultFailure
}
