// Package metrics exposes Prometheus collectors for decision outcomes.
package metrics

import (
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/ppiankov/amiengine/internal/action"
	"github.com/ppiankov/amiengine/internal/engine"
	"github.com/ppiankov/amiengine/internal/model"
)

// Namespace prefixes every metric name.
const Namespace = "amiengine"

// DecisionMetrics tracks decision outcomes.
//
// Metrics:
//   - amiengine_decisions_total: decisions by reason and escalation level
//   - amiengine_human_escalations_total: decisions requiring a human
//   - amiengine_soft_clamps_total: decisions reshaped by the soft clamp
//   - amiengine_preemptive_escalations_total: drift-triggered escalations
//   - amiengine_cus: combined uncertainty score distribution
//   - amiengine_confidence: confidence distribution
//   - amiengine_clamp_distortion: L1 distance between raw and final action
//   - amiengine_decision_duration_seconds: decision latency
type DecisionMetrics struct {
	decisions            *prometheus.CounterVec
	humanEscalations     prometheus.Counter
	softClamps           prometheus.Counter
	preemptiveEscalation prometheus.Counter
	cus                  prometheus.Histogram
	confidence           prometheus.Histogram
	distortion           prometheus.Histogram
	duration             prometheus.Histogram
}

// NewDecisionMetrics creates the collectors and registers them with reg.
func NewDecisionMetrics(reg prometheus.Registerer) *DecisionMetrics {
	unit := prometheus.LinearBuckets(0.1, 0.1, 10)
	m := &DecisionMetrics{
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "decisions_total",
				Help:      "Total number of decisions by reason and escalation level",
			},
			[]string{"reason", "level"},
		),
		humanEscalations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "human_escalations_total",
			Help:      "Total number of decisions that require a human",
		}),
		softClamps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "soft_clamps_total",
			Help:      "Total number of decisions reshaped by the soft clamp",
		}),
		preemptiveEscalation: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "preemptive_escalations_total",
			Help:      "Total number of decisions escalated by temporal drift",
		}),
		cus: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "cus",
			Help:      "Combined uncertainty score of decisions",
			Buckets:   unit,
		}),
		confidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "confidence",
			Help:      "Confidence of selected actions",
			Buckets:   unit,
		}),
		distortion: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "clamp_distortion",
			Help:      "L1 distance between raw and soft-clamped action",
			Buckets:   prometheus.LinearBuckets(0.05, 0.05, 10),
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "decision_duration_seconds",
			Help:      "Duration of a single decision in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 15), // 10µs to ~160ms
		}),
	}
	reg.MustRegister(
		m.decisions,
		m.humanEscalations,
		m.softClamps,
		m.preemptiveEscalation,
		m.cus,
		m.confidence,
		m.distortion,
		m.duration,
	)
	return m
}

// Observe records one decision.
func (m *DecisionMetrics) Observe(res *engine.Result) {
	m.decisions.WithLabelValues(string(res.Reason), model.LevelLabel(res.Escalation)).Inc()
	if res.HumanEscalation {
		m.humanEscalations.Inc()
	}
	if res.SoftSafeApplied {
		m.softClamps.Inc()
		m.distortion.Observe(action.Distortion(res.RawAction, res.Action))
	}
	if res.TemporalDrift != nil && res.TemporalDrift.PreemptiveEscalation {
		m.preemptiveEscalation.Inc()
	}
	m.cus.Observe(res.Uncertainty.CUS)
	m.confidence.Observe(res.Confidence)
}

// ObserveDuration records decision latency.
func (m *DecisionMetrics) ObserveDuration(d time.Duration) {
	m.duration.Observe(d.Seconds())
}

// WriteText renders every metric family gathered from g in the
// Prometheus text exposition format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("metrics: gather: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("metrics: write %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
