package amiengine

import (
	"fmt"

	"github.com/ppiankov/amiengine/internal/engine"
	"github.com/ppiankov/amiengine/internal/model"
)

// State is a raw state: named scalars, each expected in [0,1]. Missing or
// non-numeric values fall back to the configured default.
type State map[string]any

// Level is the escalation level of a decision.
type Level int

const (
	Normal       Level = Level(model.LevelNormal)
	SoftSafe     Level = Level(model.LevelSoftSafe)
	HardFailSafe Level = Level(model.LevelHardFailSafe)
)

func (l Level) String() string {
	return model.LevelLabel(model.Level(l))
}

// Decision is the outcome of one Decide call.
type Decision struct {
	// Action is severity, compassion, intervention and delay.
	Action          [4]float64
	RawAction       [4]float64
	Reason          string
	Level           Level
	HumanEscalation bool
	SoftClamp       bool
	Confidence      float64
	CUS             float64
	J               float64
	H               float64
	TraceHash       string

	// Trace is the canonical trace document, accepted by Client.Replay.
	Trace []byte
}

// NeedsHuman reports whether the decision must not be actuated without
// a human.
func (d Decision) NeedsHuman() bool {
	return d.HumanEscalation || d.Level == HardFailSafe
}

// EscalationError is returned by a guarded function when the decision
// needs a human. The wrapped function is not called.
type EscalationError struct {
	Decision Decision
}

func (e *EscalationError) Error() string {
	return fmt.Sprintf("amiengine escalated (%s, %s): human review required", e.Decision.Level, e.Decision.Reason)
}

// toDecision maps an engine result to an SDK Decision.
func toDecision(res *engine.Result, trace []byte) Decision {
	return Decision{
		Action:          res.Action,
		RawAction:       res.RawAction,
		Reason:          string(res.Reason),
		Level:           Level(res.Escalation),
		HumanEscalation: res.HumanEscalation,
		SoftClamp:       res.SoftSafeApplied,
		Confidence:      res.Confidence,
		CUS:             res.Uncertainty.CUS,
		J:               res.J,
		H:               res.H,
		TraceHash:       res.TraceHash,
		Trace:           trace,
	}
}
