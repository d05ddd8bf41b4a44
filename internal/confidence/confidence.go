// Package confidence estimates how trustworthy the selected action's
// scores are.
package confidence

import (
	"github.com/ppiankov/amiengine/internal/constraint"
	"github.com/ppiankov/amiengine/internal/model"
	"github.com/ppiankov/amiengine/internal/numeric"
	"github.com/ppiankov/amiengine/internal/policy"
)

// Result of Compute. ConstraintMargin is raw and signed.
type Result struct {
	Confidence        float64 `json:"confidence"`
	ConstraintMargin  float64 `json:"constraint_margin"`
	BaseConfidence    float64 `json:"base_confidence"`
	MarginFactor      float64 `json:"margin_factor"`
	Gradient          float64 `json:"confidence_gradient"`
	SuggestEscalation bool    `json:"suggest_escalation"`
	ForceEscalation   bool    `json:"force_escalation"`
}

// Compute derives confidence from score dispersion and constraint margin:
//
//	base   = clamp01(1 - popstd(W,J,H,C)/sigma_max)
//	factor = sigmoid(k * clamp(margin, ±margin_clamp))
//	conf   = clamp01(base * factor)
//
// Gradient is d(conf)/d(margin) and is reported for observability only.
func Compute(sc model.Scores, th policy.Thresholds, p policy.Confidence) Result {
	sigma := numeric.PopStd([]float64{sc.W, sc.J, sc.H, sc.C})
	var norm float64
	if p.SigmaMax > 0 {
		norm = sigma / p.SigmaMax
	}
	base := numeric.Clamp01(1 - norm)

	margin := constraint.Margin(sc, th)
	clamped := numeric.Clamp(margin, -p.MarginClamp, p.MarginClamp)
	factor := numeric.Sigmoid(p.MarginK * clamped)
	conf := numeric.Clamp01(base * factor)

	return Result{
		Confidence:        conf,
		ConstraintMargin:  margin,
		BaseConfidence:    base,
		MarginFactor:      factor,
		Gradient:          base * p.MarginK * factor * (1 - factor),
		SuggestEscalation: conf < p.Suggest,
		ForceEscalation:   conf < p.Force,
	}
}
