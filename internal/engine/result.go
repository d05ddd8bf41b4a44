package engine

import (
	"github.com/ppiankov/amiengine/internal/confidence"
	"github.com/ppiankov/amiengine/internal/drift"
	"github.com/ppiankov/amiengine/internal/failsafe"
	"github.com/ppiankov/amiengine/internal/model"
	"github.com/ppiankov/amiengine/internal/trace"
	"github.com/ppiankov/amiengine/internal/uncertainty"
)

// ActionsGenerated is the step 2 payload.
type ActionsGenerated struct {
	Count   int            `json:"count"`
	Actions []model.Action `json:"actions"`
}

// ScoredAction is one entry of the step 3 payload.
type ScoredAction struct {
	A model.Action `json:"a"`
	model.Scores
}

// ConstraintEvent is the step 4 payload, one per candidate.
type ConstraintEvent struct {
	A          model.Action      `json:"a"`
	Valid      bool              `json:"valid"`
	Violations []model.Violation `json:"violations"`
}

// SelfRegulation records the confidence change caused by the soft clamp.
type SelfRegulation struct {
	DeltaConfidence float64 `json:"delta_confidence"`
}

// Selection is the step 6 payload.
type Selection struct {
	Action   model.Action `json:"action"`
	Reason   model.Reason `json:"reason"`
	Score    *float64     `json:"score"`
	Override bool         `json:"override"`
	Scores   model.Scores `json:"scores"`
	confidence.Result
	Uncertainty     uncertainty.Result `json:"uncertainty"`
	SelfRegulation  *SelfRegulation    `json:"self_regulation,omitempty"`
	Escalation      model.Level        `json:"escalation"`
	SoftSafeApplied bool               `json:"soft_safe_applied"`
	TemporalDrift   *drift.Result      `json:"temporal_drift,omitempty"`
}

// Result of one decision.
type Result struct {
	Action           model.Action       `json:"action"`
	RawAction        model.Action       `json:"raw_action"`
	HumanEscalation  bool               `json:"human_escalation"`
	Reason           model.Reason       `json:"reason"`
	Confidence       float64            `json:"confidence"`
	ConstraintMargin float64            `json:"constraint_margin"`
	Gradient         float64            `json:"confidence_gradient"`
	Uncertainty      uncertainty.Result `json:"uncertainty"`
	Escalation       model.Level        `json:"escalation"`
	SoftSafeApplied  bool               `json:"soft_safe_applied"`
	TemporalDrift    *drift.Result      `json:"temporal_drift,omitempty"`
	SelfRegulation   *SelfRegulation    `json:"self_regulation,omitempty"`
	J                float64            `json:"J"`
	H                float64            `json:"H"`

	// Selected-action scores and fail-safe details, not part of the
	// output contract.
	Scores          model.Scores    `json:"-"`
	FailSafe        failsafe.Result `json:"-"`
	Candidates      int             `json:"-"`
	ValidCandidates int             `json:"-"`

	Trace     *trace.Trace `json:"trace"`
	TraceHash string       `json:"trace_hash"`
}

// NeedsHuman reports whether the decision must not be actuated without
// a human.
func (r *Result) NeedsHuman() bool {
	return r.HumanEscalation || r.Escalation == model.LevelHardFailSafe
}
