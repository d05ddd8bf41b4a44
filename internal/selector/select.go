// Package selector picks the final action from scored candidates.
package selector

import (
	"github.com/ppiankov/amiengine/internal/failsafe"
	"github.com/ppiankov/amiengine/internal/model"
	"github.com/ppiankov/amiengine/internal/moral"
	"github.com/ppiankov/amiengine/internal/policy"
)

// Candidate is an action with its scores.
type Candidate struct {
	Action model.Action
	Scores model.Scores
}

// Result of selection. Score is nil unless Reason is max_score.
type Result struct {
	Action model.Action
	Score  *float64
	Reason model.Reason
	// Index of the chosen candidate in valid, or -1.
	Index int
}

// Select applies, in order:
//  1. Fail-safe override -> safe action (fail_safe)
//  2. Max composite score among valid candidates, first wins ties (max_score)
//  3. No valid candidate -> fail-safe action if present, else the constant
//     safe action (no_valid_fallback)
func Select(valid []Candidate, fs failsafe.Result, w policy.Weights) Result {
	if fs.Override && fs.SafeAction != nil {
		return Result{Action: *fs.SafeAction, Reason: model.ReasonFailSafe, Index: -1}
	}
	if len(valid) == 0 {
		fallback := model.SafeAction
		if fs.SafeAction != nil {
			fallback = *fs.SafeAction
		}
		return Result{Action: fallback, Reason: model.ReasonNoValidFallback, Index: -1}
	}

	best := 0
	bestScore := moral.Composite(valid[0].Scores, w)
	for i := 1; i < len(valid); i++ {
		// strict > keeps the first occurrence on ties
		if s := moral.Composite(valid[i].Scores, w); s > bestScore {
			best, bestScore = i, s
		}
	}
	return Result{
		Action: valid[best].Action,
		Score:  &bestScore,
		Reason: model.ReasonMaxScore,
		Index:  best,
	}
}
