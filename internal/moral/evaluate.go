// Package moral scores a (state, action) pair on wellbeing, justice,
// harm and compassion. Every function is pure.
package moral

import (
	"github.com/ppiankov/amiengine/internal/model"
	"github.com/ppiankov/amiengine/internal/numeric"
	"github.com/ppiankov/amiengine/internal/policy"
)

// Wellbeing is harm-inverse plus intervention benefit.
func Wellbeing(s model.State, a model.Action) float64 {
	risk := s.Ext[model.ExtRisk]
	harm := 0.4*a[model.Severity] + 0.3*(1-a[model.Compassion]) + 0.3*risk
	benefit := 0.5 * a[model.Intervention] * (1 - a[model.Delay])
	return numeric.Clamp01(1 - 0.6*harm + 0.4*benefit)
}

// Justice is the weakest of three compliance terms. Context compliance
// only applies when risk exceeds 0.5.
func Justice(s model.State, a model.Action) float64 {
	severity := 1 - 0.5*a[model.Severity]
	compassion := 0.5 + 0.5*a[model.Compassion]
	context := 1.0
	if s.Ext[model.ExtRisk] > 0.5 {
		context = 1 - 0.5*max(0, s.Ext[model.ExtContext]-a[model.Intervention])
	}
	return numeric.Clamp01(min(severity, compassion, context))
}

// Harm is expected physical, psychological and social harm.
func Harm(s model.State, a model.Action) float64 {
	physical := 0.5 * a[model.Severity] * (1 - a[model.Compassion])
	psychological := 0.3 * (1 - a[model.Compassion]) * a[model.Intervention]
	social := 0.2 * s.Ext[model.ExtSocial] * a[model.Severity]
	return numeric.Clamp01(physical + psychological + social)
}

// Compassion depends on the state only: empathy and vulnerability raise
// it, responsibility lowers it.
func Compassion(s model.State, c policy.CompassionCoefficients) float64 {
	vulnerability := 1 - s.Ext[model.ExtPhysical]
	raw := c.Empathy*s.Moral[model.MoralEmpathy] + c.Physical*vulnerability - c.Responsibility*s.Moral[model.MoralResponsibility]
	return numeric.Clamp01(numeric.Sigmoid(2 * (raw - 0.5)))
}

// Evaluate computes all four scores for one action.
func Evaluate(s model.State, a model.Action, c policy.CompassionCoefficients) model.Scores {
	return model.Scores{
		W: Wellbeing(s, a),
		J: Justice(s, a),
		H: Harm(s, a),
		C: Compassion(s, c),
	}
}

// EvaluateAll scores every candidate, preserving order.
func EvaluateAll(s model.State, candidates []model.Action, c policy.CompassionCoefficients) []model.Scores {
	out := make([]model.Scores, len(candidates))
	for i, a := range candidates {
		out[i] = Evaluate(s, a, c)
	}
	return out
}

// Composite is α·W + β·J − γ·H + δ·C.
func Composite(sc model.Scores, w policy.Weights) float64 {
	return w.Alpha*sc.W + w.Beta*sc.J - w.Gamma*sc.H + w.Delta*sc.C
}

// CompositeAll returns the composite score of every entry, preserving order.
func CompositeAll(scores []model.Scores, w policy.Weights) []float64 {
	out := make([]float64, len(scores))
	for i, sc := range scores {
		out[i] = Composite(sc, w)
	}
	return out
}
