package model

import "fmt"

// RawState is the caller-supplied situational input. Values are float-like;
// missing or malformed entries are substituted during encoding.
type RawState map[string]any

// Field names read from a RawState. Extra keys are ignored.
const (
	FieldPhysical       = "physical"
	FieldSocial         = "social"
	FieldContext        = "context"
	FieldRisk           = "risk"
	FieldCompassion     = "compassion"
	FieldJustice        = "justice"
	FieldHarmSens       = "harm_sens"
	FieldResponsibility = "responsibility"
	FieldEmpathy        = "empathy"
)

// ExternalFields lists the x_ext fields in encoding order.
var ExternalFields = [4]string{FieldPhysical, FieldSocial, FieldContext, FieldRisk}

// MoralFields lists the x_moral fields in encoding order.
var MoralFields = [5]string{FieldCompassion, FieldJustice, FieldHarmSens, FieldResponsibility, FieldEmpathy}

// Indexes into State.Ext.
const (
	ExtPhysical = iota
	ExtSocial
	ExtContext
	ExtRisk
)

// Indexes into State.Moral.
const (
	MoralCompassion = iota
	MoralJustice
	MoralHarmSens
	MoralResponsibility
	MoralEmpathy
)

// State is the encoded, fixed-shape situational vector. Every component is
// in [0,1]. A State is created once per decision and never mutated.
type State struct {
	Ext   [4]float64 `json:"x_ext"`
	Moral [5]float64 `json:"x_moral"`
}

// Action is [severity, compassion, intervention, delay], each in [0,1].
// Index 1 is compassion and index 2 is intervention; scoring and clamping
// depend on this order.
type Action [4]float64

// Indexes into Action.
const (
	Severity = iota
	Compassion
	Intervention
	Delay
)

// SafeAction is the constant fail-safe action.
var SafeAction = Action{0, 0.5, 0, 1}

// NoOpAction is the "do nothing" candidate appended to every grid.
var NoOpAction = Action{0, 0, 0, 1}

// InUnitCube reports whether every component lies in [0,1].
func (a Action) InUnitCube() bool {
	for _, x := range a {
		if x < 0 || x > 1 {
			return false
		}
	}
	return true
}

func (a Action) String() string {
	return fmt.Sprintf("[sev=%.3f comp=%.3f int=%.3f delay=%.3f]", a[Severity], a[Compassion], a[Intervention], a[Delay])
}

// Scores holds the four per-action moral scores, each in [0,1].
type Scores struct {
	W float64 `json:"W"`
	J float64 `json:"J"`
	H float64 `json:"H"`
	C float64 `json:"C"`
}

// Reason tags why an action was selected.
type Reason string

const (
	ReasonFailSafe        Reason = "fail_safe"
	ReasonMaxScore        Reason = "max_score"
	ReasonNoValidFallback Reason = "no_valid_fallback"
)

// Violation tags a broken constraint.
type Violation string

const (
	ViolationJBelowMin  Violation = "J_below_min"
	ViolationHAboveMax  Violation = "H_above_max"
	ViolationCOutOfBand Violation = "C_out_of_band"
)
