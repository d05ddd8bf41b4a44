// Package trace records the per-stage steps of a decision and gives them
// a byte-stable canonical form for hashing and replay.
package trace

import (
	"encoding/json"

	"github.com/ppiankov/amiengine/internal/model"
)

// Version of the trace document format.
const Version = "1.0"

// Event types, one per pipeline stage.
const (
	EventRawState         = "raw_state"
	EventStateEncoded     = "state_encoded"
	EventActionsGenerated = "actions_generated"
	EventMoralScores      = "moral_scores"
	EventConstraint       = "constraint"
	EventFailSafe         = "fail_safe"
	EventSelection        = "selection"
)

// Step numbers matching the event types.
const (
	StepRawState = iota
	StepStateEncoded
	StepActionsGenerated
	StepMoralScores
	StepConstraint
	StepFailSafe
	StepSelection
)

// Step is one record. Data is any JSON-serializable value.
type Step struct {
	Step      int    `json:"step"`
	EventType string `json:"event_type"`
	Data      any    `json:"data"`
}

// History is the stream state a decision started from: the CUS window
// before this decision was added and the level damped against. Decisions
// made without a stream carry none.
type History struct {
	CUSHistory    []float64    `json:"cus_history"`
	Hysteresis    bool         `json:"hysteresis"`
	PreviousLevel *model.Level `json:"previous_level,omitempty"`
}

// Trace is a versioned, ordered list of steps. Legacy traces are a bare
// step array with no version and serialize back to that shape.
type Trace struct {
	Version string   `json:"version"`
	History *History `json:"history,omitempty"`
	Steps   []Step   `json:"steps"`
	Legacy  bool     `json:"-"`
}

// MarshalJSON writes legacy traces as a bare array.
func (t *Trace) MarshalJSON() ([]byte, error) {
	if t.Legacy {
		return json.Marshal(t.Steps)
	}
	type plain Trace
	return json.Marshal((*plain)(t))
}

// Find returns the first step with the given number and event type.
func (t *Trace) Find(step int, eventType string) (Step, bool) {
	for _, s := range t.Steps {
		if s.Step == step && s.EventType == eventType {
			return s, true
		}
	}
	return Step{}, false
}

// Logger accumulates steps in order. It is append-only.
type Logger struct {
	steps []Step
}

// Log appends a step.
func (l *Logger) Log(step int, eventType string, data any) {
	l.steps = append(l.steps, Step{Step: step, EventType: eventType, Data: data})
}

// Len returns the number of steps logged.
func (l *Logger) Len() int {
	return len(l.steps)
}

// Trace returns a versioned trace over a copy of the logged steps.
func (l *Logger) Trace() *Trace {
	steps := make([]Step, len(l.steps))
	copy(steps, l.steps)
	return &Trace{Version: Version, Steps: steps}
}
