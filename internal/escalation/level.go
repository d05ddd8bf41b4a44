// Package escalation maps confidence, margin, harm and uncertainty onto
// the three escalation levels.
package escalation

import (
	"github.com/ppiankov/amiengine/internal/model"
	"github.com/ppiankov/amiengine/internal/policy"
)

// Input to Compute. ASNorm and Divergence are optional.
type Input struct {
	Confidence       float64
	ConstraintMargin float64
	WorstH           float64
	HCritical        float64
	ASNorm           *float64
	Divergence       *float64
}

// Thresholds used by Compute.
type Thresholds struct {
	Force      float64
	ASSoft     float64
	Divergence float64
	Hysteresis float64
}

// ThresholdsFrom extracts the escalation thresholds from cfg.
func ThresholdsFrom(cfg *policy.Config) Thresholds {
	return Thresholds{
		Force:      cfg.Confidence.Force,
		ASSoft:     cfg.Escalation.ASSoftThreshold,
		Divergence: cfg.Escalation.DivergenceHardThreshold,
		Hysteresis: cfg.Escalation.Hysteresis,
	}
}

// Compute is a pure transition function. Evaluation order:
//  1. confidence < force or harm > critical -> HardFailSafe
//  2. divergence above threshold -> HardFailSafe
//  3. negative margin -> SoftSafe
//  4. action spread below threshold -> SoftSafe
//  5. otherwise Normal
//
// When prev is non-nil and the fresh level is lower, the downgrade only
// happens if the inputs cleared their thresholds by the hysteresis margin.
func Compute(in Input, th Thresholds, prev *model.Level) model.Level {
	hard := in.Confidence < th.Force || in.WorstH > in.HCritical

	var level model.Level
	switch {
	case hard:
		level = model.LevelHardFailSafe
	case in.Divergence != nil && *in.Divergence > th.Divergence:
		level = model.LevelHardFailSafe
	case in.ConstraintMargin < 0:
		level = model.LevelSoftSafe
	case in.ASNorm != nil && *in.ASNorm < th.ASSoft:
		level = model.LevelSoftSafe
	default:
		level = model.LevelNormal
	}

	if prev == nil || level >= *prev {
		return level
	}

	recovered := in.Confidence >= th.Force+th.Hysteresis && in.WorstH <= in.HCritical
	switch *prev {
	case model.LevelHardFailSafe:
		if level == model.LevelSoftSafe && !recovered {
			return model.LevelHardFailSafe
		}
		if level == model.LevelNormal && !(recovered && in.ConstraintMargin >= th.Hysteresis) {
			if hard {
				return model.LevelHardFailSafe
			}
			return model.LevelSoftSafe
		}
	case model.LevelSoftSafe:
		if level == model.LevelNormal && in.ConstraintMargin < th.Hysteresis {
			return model.LevelSoftSafe
		}
	}
	return level
}
