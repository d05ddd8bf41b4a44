package scenario

import "github.com/ppiankov/amiengine/internal/model"

// DefaultActionTolerance is the per-component tolerance of Expect.Action.
const DefaultActionTolerance = 1e-6

// Expect lists the outcome checks of one case. Nil fields are not checked.
type Expect struct {
	Reason          *model.Reason `yaml:"reason,omitempty" json:"reason,omitempty"`
	Level           *model.Level  `yaml:"level,omitempty" json:"level,omitempty"`
	MinLevel        *model.Level  `yaml:"min_level,omitempty" json:"min_level,omitempty"`
	HumanEscalation *bool         `yaml:"human_escalation,omitempty" json:"human_escalation,omitempty"`
	NeedsHuman      *bool         `yaml:"needs_human,omitempty" json:"needs_human,omitempty"`
	SoftClamp       *bool         `yaml:"soft_clamp,omitempty" json:"soft_clamp,omitempty"`
	Action          []float64     `yaml:"action,omitempty" json:"action,omitempty"`
	Tolerance       float64       `yaml:"tolerance,omitempty" json:"tolerance,omitempty"`
}

// Case is one test case within a scenario.
type Case struct {
	Name   string         `yaml:"name"`
	State  model.RawState `yaml:"state"`
	Expect Expect         `yaml:"expect"`
}

// Scenario is a named collection of decision test cases.
type Scenario struct {
	Name      string             `yaml:"name"`
	Profile   string             `yaml:"profile,omitempty"`
	Overrides map[string]float64 `yaml:"overrides,omitempty"`
	// Stream runs the cases in order as one decision stream sharing a
	// history with hysteresis enabled. Otherwise every case is independent.
	Stream bool   `yaml:"stream,omitempty"`
	Cases  []Case `yaml:"cases"`
}

// CaseResult is the outcome of evaluating one test case.
type CaseResult struct {
	Index    int          `json:"index"`
	Name     string       `json:"name"`
	Passed   bool         `json:"passed"`
	Expected string       `json:"expected"`
	Actual   string       `json:"actual"`
	Failures []string     `json:"failures,omitempty"`
	Reason   model.Reason `json:"reason"`
	Level    model.Level  `json:"level"`
	Action   model.Action `json:"action"`
}

// RunResult is the outcome of running all cases in one scenario file.
type RunResult struct {
	File    string       `json:"file"`
	Name    string       `json:"name"`
	Profile string       `json:"profile,omitempty"`
	Total   int          `json:"total"`
	Passed  int          `json:"passed"`
	Failed  int          `json:"failed"`
	Cases   []CaseResult `json:"cases"`
}
