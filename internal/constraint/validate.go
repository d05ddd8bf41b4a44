// Package constraint checks per-candidate moral scores against thresholds.
package constraint

import (
	"github.com/ppiankov/amiengine/internal/model"
	"github.com/ppiankov/amiengine/internal/policy"
)

// Result of validating one candidate.
type Result struct {
	Valid      bool              `json:"valid"`
	Violations []model.Violation `json:"violations"`
}

// Validate reports every violated rule, in fixed order: J, H, C.
// Violations is never nil.
func Validate(sc model.Scores, th policy.Thresholds) Result {
	violations := make([]model.Violation, 0, 3)
	if sc.J < th.JMin {
		violations = append(violations, model.ViolationJBelowMin)
	}
	if sc.H > th.HMax {
		violations = append(violations, model.ViolationHAboveMax)
	}
	if sc.C < th.CMin || sc.C > th.CMax {
		violations = append(violations, model.ViolationCOutOfBand)
	}
	return Result{Valid: len(violations) == 0, Violations: violations}
}

// Margin is the signed distance to the nearest threshold. Negative means
// at least one bound is violated.
func Margin(sc model.Scores, th policy.Thresholds) float64 {
	return min(sc.J-th.JMin, th.HMax-sc.H, min(sc.C-th.CMin, th.CMax-sc.C))
}
