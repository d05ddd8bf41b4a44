// Package failsafe is the global safety net computed from worst-case
// scores over every generated candidate.
package failsafe

import (
	"github.com/ppiankov/amiengine/internal/model"
	"github.com/ppiankov/amiengine/internal/policy"
)

// Result of the fail-safe check. SafeAction is nil when there is no override.
type Result struct {
	Override        bool          `json:"override"`
	HumanEscalation bool          `json:"human_escalation"`
	SafeAction      *model.Action `json:"safe_action"`
	WorstJ          float64       `json:"worst_J"`
	WorstH          float64       `json:"worst_H"`
}

// WorstCase returns min J and max H over all scores. An empty slice
// yields J=1, H=0 (no trigger).
func WorstCase(scores []model.Scores) (worstJ, worstH float64) {
	if len(scores) == 0 {
		return 1, 0
	}
	worstJ, worstH = scores[0].J, scores[0].H
	for _, sc := range scores[1:] {
		worstJ = min(worstJ, sc.J)
		worstH = max(worstH, sc.H)
	}
	return worstJ, worstH
}

// Check triggers when worstJ < JCritical or worstH > HCritical.
func Check(worstJ, worstH float64, crit policy.Critical) Result {
	r := Result{WorstJ: worstJ, WorstH: worstH}
	if worstJ < crit.JCritical || worstH > crit.HCritical {
		safe := model.SafeAction
		r.Override = true
		r.HumanEscalation = true
		r.SafeAction = &safe
	}
	return r
}

// Evaluate is WorstCase followed by Check.
func Evaluate(scores []model.Scores, crit policy.Critical) Result {
	j, h := WorstCase(scores)
	return Check(j, h, crit)
}
